package rules

import (
	"errors"
	"fmt"
	"strings"

	nchess "github.com/corentings/chess/v2"

	"github.com/gambitlabs/gambit/internal/domain"
)

// ErrIllegalMove is returned when a notation is malformed or the move is not
// legal in the current position.
var ErrIllegalMove = errors.New("illegal move")

// Position owns the full game state of one session: piece placement, side to
// move and the move history needed for draw detection. It must never be shared
// across concurrent requests.
type Position struct {
	game *nchess.Game
	san  []string
}

// NewPosition returns the standard starting position.
func NewPosition() *Position {
	return &Position{game: nchess.NewGame()}
}

// Replay rebuilds a position by applying an ordered list of UCI moves from the
// starting position. This is the deserialization path for durable records.
func Replay(movesUCI []string) (*Position, error) {
	p := NewPosition()
	for _, mv := range movesUCI {
		if _, _, err := p.ApplyMove(mv); err != nil {
			return nil, fmt.Errorf("replay move %s: %w", mv, err)
		}
	}
	return p, nil
}

// ApplyMove validates and applies a single move. SAN and UCI notations are
// both accepted; the applied move is reported back in both forms. On failure
// the position is left unchanged.
func (p *Position) ApplyMove(notation string) (uci string, san string, err error) {
	text := strings.TrimSpace(notation)
	if text == "" {
		return "", "", ErrIllegalMove
	}

	notationSAN := nchess.AlgebraicNotation{}
	notationUCI := nchess.UCINotation{}

	pos := p.game.Position()
	move, decodeErr := notationUCI.Decode(pos, strings.ToLower(text))
	if decodeErr != nil {
		move, decodeErr = notationSAN.Decode(pos, text)
		if decodeErr != nil {
			return "", "", ErrIllegalMove
		}
	}

	san = notationSAN.Encode(pos, move)
	uci = strings.ToLower(notationUCI.Encode(pos, move))
	if err := p.game.Move(move, nil); err != nil {
		return "", "", ErrIllegalMove
	}
	p.san = append(p.san, san)
	return uci, san, nil
}

// IsTerminal reports whether the game has reached checkmate, stalemate or a
// draw by rule.
func (p *Position) IsTerminal() bool {
	return p.game.Outcome() != nchess.NoOutcome
}

// Result maps the engine outcome to the domain result.
func (p *Position) Result() domain.Result {
	switch p.game.Outcome() {
	case nchess.WhiteWon:
		return domain.ResultWhiteWins
	case nchess.BlackWon:
		return domain.ResultBlackWins
	case nchess.Draw:
		return domain.ResultDraw
	default:
		return domain.ResultNone
	}
}

// Method describes how a terminal position ended (checkmate, stalemate, ...).
func (p *Position) Method() string {
	if !p.IsTerminal() {
		return ""
	}
	return strings.ToLower(p.game.Method().String())
}

// SideToMove returns the color to play.
func (p *Position) SideToMove() domain.Side {
	if p.game.Position().Turn() == nchess.White {
		return domain.SideWhite
	}
	return domain.SideBlack
}

// FEN is the canonical text encoding of the current position.
func (p *Position) FEN() string {
	return p.game.FEN()
}

// MovesSAN returns the algebraic history, one entry per applied move.
func (p *Position) MovesSAN() []string {
	return append([]string(nil), p.san...)
}

// MoveCount is the number of plies played.
func (p *Position) MoveCount() int {
	return len(p.san)
}

// Clone returns a disposable copy for speculative play; mutating the clone
// never affects the original.
func (p *Position) Clone() *Position {
	return &Position{
		game: p.game.Clone(),
		san:  append([]string(nil), p.san...),
	}
}

// Board exposes the underlying board for rendering.
func (p *Position) Board() *nchess.Board {
	return p.game.Position().Board()
}
