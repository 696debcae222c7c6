package uci

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	defaultReadyTimeout = 4 * time.Second
	quitGraceTimeout    = 2 * time.Second
)

// Evaluation is the raw engine verdict for a position, from the perspective
// of the side to move. Exactly one of the two kinds applies.
type Evaluation struct {
	Mate       bool
	Centipawns int
	MatePlies  int
	BestMove   string
}

// SearchRequest describes one position query. Moves are UCI notations played
// from the starting position; MoveTime bounds the search.
type SearchRequest struct {
	FEN      string
	Moves    []string
	MoveTime time.Duration
}

// Session wraps a single UCI engine subprocess. A session is owned by one
// unit of work at a time; Search and Quit must not race.
type Session struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout *bufio.Reader
	mu     sync.Mutex
	search sync.Mutex
	done   bool
}

// NewSession spawns the engine binary and performs the uci/isready handshake.
func NewSession(ctx context.Context, binaryPath string) (*Session, error) {
	cmd := exec.CommandContext(ctx, binaryPath)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("create stdin pipe: %w", err)
	}
	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		stdin.Close()
		return nil, fmt.Errorf("create stdout pipe: %w", err)
	}
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		stdin.Close()
		stdoutPipe.Close()
		return nil, fmt.Errorf("start engine: %w", err)
	}

	s := &Session{
		cmd:    cmd,
		stdin:  stdin,
		stdout: bufio.NewReader(stdoutPipe),
	}

	if err := s.initialize(ctx); err != nil {
		_ = s.Kill()
		return nil, err
	}
	return s, nil
}

func (s *Session) initialize(ctx context.Context) error {
	initCtx, cancel := context.WithTimeout(ctx, defaultReadyTimeout)
	defer cancel()

	if err := s.send("uci\n"); err != nil {
		return fmt.Errorf("send uci: %w", err)
	}
	if err := s.awaitToken(initCtx, "uciok"); err != nil {
		return fmt.Errorf("wait uciok: %w", err)
	}
	if err := s.send("isready\n"); err != nil {
		return fmt.Errorf("send isready: %w", err)
	}
	if err := s.awaitToken(initCtx, "readyok"); err != nil {
		return fmt.Errorf("wait readyok: %w", err)
	}
	return nil
}

// SetSkillLevel applies the Stockfish "Skill Level" option (0-20).
func (s *Session) SetSkillLevel(ctx context.Context, level int) error {
	if level < 0 || level > 20 {
		return fmt.Errorf("skill level %d out of range 0-20", level)
	}
	if err := s.send(fmt.Sprintf("setoption name Skill Level value %d\n", level)); err != nil {
		return fmt.Errorf("apply skill level: %w", err)
	}
	readyCtx, cancel := context.WithTimeout(ctx, defaultReadyTimeout)
	defer cancel()
	if err := s.send("isready\n"); err != nil {
		return fmt.Errorf("send isready: %w", err)
	}
	if err := s.awaitToken(readyCtx, "readyok"); err != nil {
		return fmt.Errorf("wait readyok: %w", err)
	}
	return nil
}

// Search runs one bounded search and returns the final evaluation together
// with the engine's chosen move.
func (s *Session) Search(ctx context.Context, req SearchRequest) (Evaluation, error) {
	s.search.Lock()
	defer s.search.Unlock()

	if err := s.send(buildPositionCommand(req.FEN, req.Moves)); err != nil {
		return Evaluation{}, fmt.Errorf("send position: %w", err)
	}

	moveTime := req.MoveTime
	if moveTime <= 0 {
		moveTime = 500 * time.Millisecond
	}
	goCmd := fmt.Sprintf("go movetime %d\n", moveTime.Milliseconds())
	if err := s.send(goCmd); err != nil {
		return Evaluation{}, fmt.Errorf("send go: %w", err)
	}

	searchCtx, cancel := context.WithTimeout(ctx, moveTime*3+2*time.Second)
	defer cancel()

	var eval Evaluation
	for {
		line, err := s.readLine(searchCtx)
		if err != nil {
			return Evaluation{}, fmt.Errorf("read line: %w", err)
		}
		if line == "" {
			continue
		}

		switch {
		case strings.HasPrefix(line, "info "):
			if parsed, ok := parseScore(line); ok {
				eval = parsed
			}
		case strings.HasPrefix(line, "bestmove"):
			parts := strings.Fields(line)
			if len(parts) >= 2 {
				eval.BestMove = strings.ToLower(parts[1])
			}
			if eval.BestMove == "" || eval.BestMove == "(none)" {
				return Evaluation{}, fmt.Errorf("engine returned no move")
			}
			return eval, nil
		}
	}
}

func buildPositionCommand(fen string, moves []string) string {
	var sb strings.Builder
	if strings.TrimSpace(fen) == "" || fen == "startpos" {
		sb.WriteString("position startpos")
	} else {
		sb.WriteString("position fen ")
		sb.WriteString(fen)
	}
	if len(moves) > 0 {
		sb.WriteString(" moves ")
		sb.WriteString(strings.Join(moves, " "))
	}
	sb.WriteString("\n")
	return sb.String()
}

// parseScore extracts the score from a UCI info line. Only lines carrying a
// principal variation are trusted; bare currmove chatter is skipped.
func parseScore(line string) (Evaluation, bool) {
	parts := strings.Fields(line)
	var (
		eval    Evaluation
		haveSet bool
		havePV  bool
	)
	for i := 0; i < len(parts); i++ {
		switch parts[i] {
		case "score":
			if i+2 < len(parts) {
				kind := parts[i+1]
				val := parts[i+2]
				switch kind {
				case "cp":
					if v, err := strconv.Atoi(val); err == nil {
						eval = Evaluation{Centipawns: v}
						haveSet = true
					}
				case "mate":
					if v, err := strconv.Atoi(val); err == nil {
						eval = Evaluation{Mate: true, MatePlies: v}
						haveSet = true
					}
				}
				i += 2
			}
		case "pv":
			havePV = i+1 < len(parts)
			i = len(parts)
		}
	}
	if !haveSet || !havePV {
		return Evaluation{}, false
	}
	return eval, true
}

// Quit asks the engine to exit and waits briefly; callers that need a hard
// guarantee should follow up with Kill.
func (s *Session) Quit(ctx context.Context) error {
	s.mu.Lock()
	if s.done {
		s.mu.Unlock()
		return nil
	}
	s.done = true
	s.mu.Unlock()

	if err := s.sendUnlocked("quit\n"); err != nil {
		return s.kill()
	}

	waited := make(chan error, 1)
	go func() { waited <- s.cmd.Wait() }()

	grace := quitGraceTimeout
	if deadline, ok := ctx.Deadline(); ok {
		if d := time.Until(deadline); d < grace {
			grace = d
		}
	}
	select {
	case err := <-waited:
		return err
	case <-time.After(grace):
		return s.kill()
	}
}

// Kill force-terminates the subprocess. Safe to call more than once.
func (s *Session) Kill() error {
	s.mu.Lock()
	s.done = true
	s.mu.Unlock()
	return s.kill()
}

func (s *Session) kill() error {
	if s.stdin != nil {
		_ = s.stdin.Close()
	}
	if s.cmd != nil && s.cmd.Process != nil {
		_ = s.cmd.Process.Kill()
	}
	if s.cmd != nil {
		return s.cmd.Wait()
	}
	return nil
}

func (s *Session) send(msg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sendUnlocked(msg)
}

func (s *Session) sendUnlocked(msg string) error {
	_, err := io.WriteString(s.stdin, msg)
	return err
}

func (s *Session) awaitToken(ctx context.Context, token string) error {
	for {
		line, err := s.readLine(ctx)
		if err != nil {
			return err
		}
		if strings.Contains(line, token) {
			return nil
		}
	}
}

func (s *Session) readLine(ctx context.Context) (string, error) {
	type result struct {
		line string
		err  error
	}
	ch := make(chan result, 1)

	go func() {
		line, err := s.stdout.ReadString('\n')
		ch <- result{line: strings.TrimSpace(line), err: err}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		return res.line, res.err
	}
}
