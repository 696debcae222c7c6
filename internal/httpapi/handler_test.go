package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image/png"
	"testing"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/gambitlabs/gambit/internal/domain"
	"github.com/gambitlabs/gambit/internal/engine"
	"github.com/gambitlabs/gambit/internal/game"
	"github.com/gambitlabs/gambit/internal/game/render"
	"github.com/gambitlabs/gambit/internal/msgcat"
	"github.com/gambitlabs/gambit/pkg/gamedto"
)

type scriptedHandle struct {
	bestMoves []string
}

func (s *scriptedHandle) BestMove(ctx context.Context, fen string, moves []string, budget time.Duration) (string, error) {
	if len(s.bestMoves) == 0 {
		return "", errors.New("no scripted move")
	}
	mv := s.bestMoves[0]
	s.bestMoves = s.bestMoves[1:]
	return mv, nil
}

func (s *scriptedHandle) Evaluate(ctx context.Context, fen string, moves []string, budget time.Duration) (engine.Score, error) {
	return engine.Score{Kind: engine.ScoreCentipawns, Centipawns: 0}, nil
}

type scriptedProvider struct {
	handle     *scriptedHandle
	acquireErr error
}

func (p *scriptedProvider) Acquire(ctx context.Context) (game.EngineHandle, error) {
	if p.acquireErr != nil {
		return nil, p.acquireErr
	}
	return p.handle, nil
}

func (p *scriptedProvider) Configure(ctx context.Context, h game.EngineHandle, level domain.Difficulty) {
}

func (p *scriptedProvider) Release(h game.EngineHandle) {}

type apiFixture struct {
	handler  *Handler
	provider *scriptedProvider
	handle   *scriptedHandle
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	store := game.NewMemoryStore()
	handle := &scriptedHandle{}
	provider := &scriptedProvider{handle: handle}
	controller, err := game.NewController(
		store,
		provider,
		game.NewEvaluator(0, 0, nil),
		game.NewProfileService(store, nil, nil),
		game.Config{},
		nil,
	)
	if err != nil {
		t.Fatalf("NewController: %v", err)
	}
	messages, err := msgcat.New("")
	if err != nil {
		t.Fatalf("msgcat.New: %v", err)
	}
	return &apiFixture{
		handler:  NewHandler(controller, render.NewSVGBoardRenderer(), messages, nil),
		provider: provider,
		handle:   handle,
	}
}

func (f *apiFixture) do(t *testing.T, method, uri, body string) *fasthttp.RequestCtx {
	t.Helper()
	var req fasthttp.Request
	req.Header.SetMethod(method)
	req.SetRequestURI(uri)
	req.Header.Set("X-Player-ID", "alice")
	if body != "" {
		req.Header.SetContentType("application/json")
		req.SetBodyString(body)
	}
	ctx := &fasthttp.RequestCtx{}
	ctx.Init(&req, nil, nil)
	f.handler.Handle(ctx)
	return ctx
}

func decodeState(t *testing.T, ctx *fasthttp.RequestCtx) gamedto.SessionState {
	t.Helper()
	var state gamedto.SessionState
	if err := json.Unmarshal(ctx.Response.Body(), &state); err != nil {
		t.Fatalf("decode state: %v (body %s)", err, ctx.Response.Body())
	}
	return state
}

func decodeError(t *testing.T, ctx *fasthttp.RequestCtx) gamedto.DomainError {
	t.Helper()
	var wrapper map[string]gamedto.DomainError
	if err := json.Unmarshal(ctx.Response.Body(), &wrapper); err != nil {
		t.Fatalf("decode error: %v (body %s)", err, ctx.Response.Body())
	}
	return wrapper["error"]
}

func TestResetAndMoveFlow(t *testing.T) {
	f := newAPIFixture(t)

	ctx := f.do(t, "POST", "http://test/api/game/reset", `{"difficulty":"hard","human_side":"white"}`)
	if ctx.Response.StatusCode() != fasthttp.StatusOK {
		t.Fatalf("reset status = %d, body %s", ctx.Response.StatusCode(), ctx.Response.Body())
	}
	state := decodeState(t, ctx)
	if state.SessionID == "" || state.Difficulty != "hard" {
		t.Fatalf("state = %+v", state)
	}

	f.handle.bestMoves = []string{"e7e5"}
	ctx = f.do(t, "POST", "http://test/api/game/move", `{"session_id":"`+state.SessionID+`","move":"e2e4"}`)
	if ctx.Response.StatusCode() != fasthttp.StatusOK {
		t.Fatalf("move status = %d, body %s", ctx.Response.StatusCode(), ctx.Response.Body())
	}
	moved := decodeState(t, ctx)
	if moved.EngineMove != "e7e5" || len(moved.History) != 2 {
		t.Fatalf("state after move = %+v", moved)
	}
}

func TestInvalidMoveReturns422(t *testing.T) {
	f := newAPIFixture(t)

	ctx := f.do(t, "POST", "http://test/api/game/reset", `{}`)
	state := decodeState(t, ctx)

	ctx = f.do(t, "POST", "http://test/api/game/move", `{"session_id":"`+state.SessionID+`","move":"e2e5"}`)
	if ctx.Response.StatusCode() != fasthttp.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", ctx.Response.StatusCode())
	}
	derr := decodeError(t, ctx)
	if derr.Code != gamedto.CodeInvalidMove {
		t.Fatalf("code = %q, want invalid_move", derr.Code)
	}
}

func TestEngineUnavailableReturns503(t *testing.T) {
	f := newAPIFixture(t)

	ctx := f.do(t, "POST", "http://test/api/game/reset", `{}`)
	state := decodeState(t, ctx)

	f.provider.acquireErr = engine.ErrEngineUnavailable
	ctx = f.do(t, "POST", "http://test/api/game/move", `{"session_id":"`+state.SessionID+`","move":"e2e4"}`)
	if ctx.Response.StatusCode() != fasthttp.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", ctx.Response.StatusCode())
	}
	derr := decodeError(t, ctx)
	if derr.Code != gamedto.CodeEngineUnavailable || !derr.Retryable {
		t.Fatalf("error = %+v, want retryable engine_unavailable", derr)
	}
}

func TestResumeForeignSessionReturns404(t *testing.T) {
	f := newAPIFixture(t)

	ctx := f.do(t, "POST", "http://test/api/game/resume", `{"session_id":"not-yours"}`)
	if ctx.Response.StatusCode() != fasthttp.StatusNotFound {
		t.Fatalf("status = %d, want 404", ctx.Response.StatusCode())
	}
	derr := decodeError(t, ctx)
	if derr.Code != gamedto.CodeNotFound {
		t.Fatalf("code = %q, want not_found", derr.Code)
	}
}

func TestStateAndHint(t *testing.T) {
	f := newAPIFixture(t)

	ctx := f.do(t, "POST", "http://test/api/game/reset", `{}`)
	state := decodeState(t, ctx)

	ctx = f.do(t, "GET", "http://test/api/game/state?session_id="+state.SessionID, "")
	if ctx.Response.StatusCode() != fasthttp.StatusOK {
		t.Fatalf("state status = %d", ctx.Response.StatusCode())
	}

	f.handle.bestMoves = []string{"d2d4"}
	ctx = f.do(t, "GET", "http://test/api/game/hint?session_id="+state.SessionID, "")
	if ctx.Response.StatusCode() != fasthttp.StatusOK {
		t.Fatalf("hint status = %d", ctx.Response.StatusCode())
	}
	var hint gamedto.HintResponse
	if err := json.Unmarshal(ctx.Response.Body(), &hint); err != nil {
		t.Fatalf("decode hint: %v", err)
	}
	if hint.Move != "d2d4" {
		t.Fatalf("hint = %+v, want d2d4", hint)
	}
}

func TestBoardReturnsPNG(t *testing.T) {
	f := newAPIFixture(t)

	ctx := f.do(t, "POST", "http://test/api/game/reset", `{}`)
	state := decodeState(t, ctx)

	ctx = f.do(t, "GET", "http://test/api/game/board?session_id="+state.SessionID+"&size=256", "")
	if ctx.Response.StatusCode() != fasthttp.StatusOK {
		t.Fatalf("board status = %d", ctx.Response.StatusCode())
	}
	if got := string(ctx.Response.Header.ContentType()); got != "image/png" {
		t.Fatalf("content type = %q, want image/png", got)
	}
	img, err := png.Decode(bytes.NewReader(ctx.Response.Body()))
	if err != nil {
		t.Fatalf("decode png: %v", err)
	}
	if img.Bounds().Dx() != 256 {
		t.Fatalf("board width = %d, want 256", img.Bounds().Dx())
	}
}

func TestSessionsList(t *testing.T) {
	f := newAPIFixture(t)

	f.do(t, "POST", "http://test/api/game/reset", `{}`)
	f.do(t, "POST", "http://test/api/game/reset", `{}`)

	ctx := f.do(t, "GET", "http://test/api/game/sessions", "")
	if ctx.Response.StatusCode() != fasthttp.StatusOK {
		t.Fatalf("sessions status = %d", ctx.Response.StatusCode())
	}
	var resp gamedto.SessionListResponse
	if err := json.Unmarshal(ctx.Response.Body(), &resp); err != nil {
		t.Fatalf("decode sessions: %v", err)
	}
	if len(resp.Sessions) != 2 {
		t.Fatalf("sessions = %d, want 2", len(resp.Sessions))
	}
}

func TestUnknownRoute(t *testing.T) {
	f := newAPIFixture(t)

	ctx := f.do(t, "GET", "http://test/api/unknown", "")
	if ctx.Response.StatusCode() != fasthttp.StatusNotFound {
		t.Fatalf("status = %d, want 404", ctx.Response.StatusCode())
	}
}

func TestMissingOwnerFallsBackToAnonymous(t *testing.T) {
	f := newAPIFixture(t)

	var req fasthttp.Request
	req.Header.SetMethod("POST")
	req.SetRequestURI("http://test/api/game/reset")
	ctx := &fasthttp.RequestCtx{}
	ctx.Init(&req, nil, nil)
	f.handler.Handle(ctx)

	if ctx.Response.StatusCode() != fasthttp.StatusOK {
		t.Fatalf("status = %d, want 200", ctx.Response.StatusCode())
	}
}
