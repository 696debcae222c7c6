// Package httpapi exposes the game controller over HTTP.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"

	nchess "github.com/corentings/chess/v2"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/gambitlabs/gambit/internal/domain"
	"github.com/gambitlabs/gambit/internal/engine"
	"github.com/gambitlabs/gambit/internal/game"
	"github.com/gambitlabs/gambit/internal/game/render"
	"github.com/gambitlabs/gambit/internal/msgcat"
	"github.com/gambitlabs/gambit/pkg/gamedto"
)

// ownerHeader identifies the caller; absent means the shared anonymous owner.
const ownerHeader = "X-Player-ID"

// Handler routes game API requests to the controller.
type Handler struct {
	controller *game.Controller
	renderer   render.BoardRenderer
	messages   *msgcat.Catalog
	logger     *zap.Logger
}

func NewHandler(controller *game.Controller, renderer render.BoardRenderer, messages *msgcat.Catalog, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		controller: controller,
		renderer:   renderer,
		messages:   messages,
		logger:     logger,
	}
}

// Handle is the fasthttp entrypoint.
func (h *Handler) Handle(ctx *fasthttp.RequestCtx) {
	path := string(ctx.Path())
	method := string(ctx.Method())

	switch {
	case path == "/healthz" && method == fasthttp.MethodGet:
		ctx.SetStatusCode(fasthttp.StatusOK)
		ctx.SetBodyString("ok")
	case path == "/api/game/reset" && method == fasthttp.MethodPost:
		h.handleReset(ctx)
	case path == "/api/game/move" && method == fasthttp.MethodPost:
		h.handleMove(ctx)
	case path == "/api/game/resume" && method == fasthttp.MethodPost:
		h.handleResume(ctx)
	case path == "/api/game/state" && method == fasthttp.MethodGet:
		h.handleState(ctx)
	case path == "/api/game/hint" && method == fasthttp.MethodGet:
		h.handleHint(ctx)
	case path == "/api/game/sessions" && method == fasthttp.MethodGet:
		h.handleSessions(ctx)
	case path == "/api/game/board" && method == fasthttp.MethodGet:
		h.handleBoard(ctx)
	case path == "/api/profile" && method == fasthttp.MethodGet:
		h.handleProfile(ctx)
	default:
		h.writeError(ctx, fasthttp.StatusNotFound, gamedto.DomainError{
			Code:    gamedto.CodeNotFound,
			Message: "unknown route",
		})
	}
}

func (h *Handler) handleReset(ctx *fasthttp.RequestCtx) {
	var req gamedto.ResetRequest
	if len(ctx.PostBody()) > 0 {
		if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
			h.writeBadRequest(ctx)
			return
		}
	}

	side := domain.ParseSide(req.HumanSide)
	difficulty := domain.ParseDifficulty(req.Difficulty)

	state, err := h.controller.Reset(requestContext(ctx), ownerID(ctx), difficulty, side)
	if err != nil {
		h.writeControllerError(ctx, err)
		return
	}
	h.writeJSON(ctx, fasthttp.StatusOK, h.stateDTO(state))
}

func (h *Handler) handleMove(ctx *fasthttp.RequestCtx) {
	var req gamedto.MoveRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil || strings.TrimSpace(req.Move) == "" {
		h.writeBadRequest(ctx)
		return
	}

	state, err := h.controller.Move(requestContext(ctx), ownerID(ctx), req.SessionID, strings.TrimSpace(req.Move))
	if err != nil {
		if errors.Is(err, game.ErrInvalidMove) {
			h.writeError(ctx, fasthttp.StatusUnprocessableEntity, gamedto.DomainError{
				Code:    gamedto.CodeInvalidMove,
				Message: h.messages.MustRender("game.invalid_move", map[string]string{"Move": req.Move}),
			})
			return
		}
		h.writeControllerError(ctx, err)
		return
	}
	h.writeJSON(ctx, fasthttp.StatusOK, h.stateDTO(state))
}

func (h *Handler) handleResume(ctx *fasthttp.RequestCtx) {
	var req gamedto.ResumeRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil || strings.TrimSpace(req.SessionID) == "" {
		h.writeBadRequest(ctx)
		return
	}

	state, err := h.controller.Resume(requestContext(ctx), ownerID(ctx), req.SessionID)
	if err != nil {
		h.writeControllerError(ctx, err)
		return
	}
	h.writeJSON(ctx, fasthttp.StatusOK, h.stateDTO(state))
}

func (h *Handler) handleState(ctx *fasthttp.RequestCtx) {
	state, err := h.controller.QueryState(requestContext(ctx), ownerID(ctx), sessionIDArg(ctx))
	if err != nil {
		h.writeControllerError(ctx, err)
		return
	}
	h.writeJSON(ctx, fasthttp.StatusOK, h.stateDTO(state))
}

func (h *Handler) handleHint(ctx *fasthttp.RequestCtx) {
	hint, err := h.controller.Hint(requestContext(ctx), ownerID(ctx), sessionIDArg(ctx))
	if err != nil {
		h.writeControllerError(ctx, err)
		return
	}

	resp := gamedto.HintResponse{Move: hint.Move, GameOver: hint.GameOver}
	if hint.GameOver {
		resp.Message = h.messages.MustRender("game.hint_game_over", nil)
	}
	h.writeJSON(ctx, fasthttp.StatusOK, resp)
}

func (h *Handler) handleSessions(ctx *fasthttp.RequestCtx) {
	summaries, err := h.controller.ListSessions(requestContext(ctx), ownerID(ctx))
	if err != nil {
		h.writeControllerError(ctx, err)
		return
	}

	resp := gamedto.SessionListResponse{Sessions: make([]gamedto.SessionSummary, 0, len(summaries))}
	for _, s := range summaries {
		resp.Sessions = append(resp.Sessions, gamedto.SessionSummary{
			SessionID: s.ID,
			CreatedAt: s.CreatedAt,
			UpdatedAt: s.UpdatedAt,
		})
	}
	h.writeJSON(ctx, fasthttp.StatusOK, resp)
}

func (h *Handler) handleBoard(ctx *fasthttp.RequestCtx) {
	if h.renderer == nil {
		h.writeError(ctx, fasthttp.StatusNotFound, gamedto.DomainError{
			Code:    gamedto.CodeNotFound,
			Message: "board rendering disabled",
		})
		return
	}

	reqCtx := requestContext(ctx)
	view, err := h.controller.Board(reqCtx, ownerID(ctx), sessionIDArg(ctx))
	if err != nil {
		h.writeControllerError(ctx, err)
		return
	}

	opts := render.Options{Size: boardSizeArg(ctx)}
	if string(ctx.QueryArgs().Peek("perspective")) == string(domain.SideBlack) {
		opts.Flip = true
	}
	if from, to, ok := moveSquares(view.LastMove); ok {
		opts.Highlight = &render.MoveHighlight{From: from, To: to}
	}

	png, err := h.renderer.RenderPNG(reqCtx, view.Position.Board(), opts)
	if err != nil {
		h.logger.Error("board render failed", zap.Error(err))
		h.writeError(ctx, fasthttp.StatusInternalServerError, gamedto.DomainError{
			Code:    gamedto.CodeInternal,
			Message: h.messages.MustRender("error.internal", nil),
		})
		return
	}
	ctx.SetStatusCode(fasthttp.StatusOK)
	ctx.SetContentType("image/png")
	ctx.SetBody(png)
}

func (h *Handler) handleProfile(ctx *fasthttp.RequestCtx) {
	profile, err := h.controller.Profile(requestContext(ctx), ownerID(ctx))
	if err != nil {
		h.writeControllerError(ctx, err)
		return
	}
	if profile == nil {
		h.writeError(ctx, fasthttp.StatusNotFound, gamedto.DomainError{
			Code:    gamedto.CodeNotFound,
			Message: "no profile yet",
		})
		return
	}
	h.writeJSON(ctx, fasthttp.StatusOK, gamedto.PlayerProfile{
		OwnerID:             profile.OwnerID,
		Rating:              profile.Rating,
		GamesPlayed:         profile.GamesPlayed,
		Wins:                profile.Wins,
		Losses:              profile.Losses,
		Draws:               profile.Draws,
		Streak:              profile.Streak,
		StreakType:          profile.StreakType,
		PreferredDifficulty: string(profile.PreferredDifficulty),
		LastPlayedAt:        profile.LastPlayedAt,
	})
}

func (h *Handler) stateDTO(s *game.State) gamedto.SessionState {
	out := gamedto.SessionState{
		SessionID:   s.SessionID,
		FEN:         s.FEN,
		HumanSide:   string(s.HumanSide),
		Difficulty:  string(s.Difficulty),
		History:     s.History,
		HistorySAN:  s.HistorySAN,
		EngineMove:  s.EngineMove,
		Probability: s.Probability,
		Result:      string(s.Result),
		Method:      s.Method,
	}
	if s.Result != "" {
		out.Message = h.resultMessage(s)
	}
	return out
}

func (h *Handler) resultMessage(s *game.State) string {
	data := map[string]string{"Method": s.Method}
	winner, decided := s.Result.Winner()
	switch {
	case !decided:
		return h.messages.MustRender("result.draw", data)
	case winner == s.HumanSide:
		return h.messages.MustRender("result.win", data)
	default:
		return h.messages.MustRender("result.loss", data)
	}
}

func (h *Handler) writeControllerError(ctx *fasthttp.RequestCtx, err error) {
	switch {
	case errors.Is(err, game.ErrGameOver):
		h.writeError(ctx, fasthttp.StatusConflict, gamedto.DomainError{
			Code:    gamedto.CodeGameOver,
			Message: h.messages.MustRender("game.game_over", nil),
		})
	case errors.Is(err, game.ErrNotFound):
		h.writeError(ctx, fasthttp.StatusNotFound, gamedto.DomainError{
			Code:    gamedto.CodeNotFound,
			Message: h.messages.MustRender("game.not_found", nil),
		})
	case errors.Is(err, engine.ErrEngineUnavailable):
		h.writeError(ctx, fasthttp.StatusServiceUnavailable, gamedto.DomainError{
			Code:      gamedto.CodeEngineUnavailable,
			Message:   h.messages.MustRender("game.engine_unavailable", nil),
			Retryable: true,
		})
	default:
		h.logger.Error("request failed", zap.String("path", string(ctx.Path())), zap.Error(err))
		h.writeError(ctx, fasthttp.StatusInternalServerError, gamedto.DomainError{
			Code:    gamedto.CodeInternal,
			Message: h.messages.MustRender("error.internal", nil),
		})
	}
}

func (h *Handler) writeBadRequest(ctx *fasthttp.RequestCtx) {
	h.writeError(ctx, fasthttp.StatusBadRequest, gamedto.DomainError{
		Code:    gamedto.CodeBadRequest,
		Message: h.messages.MustRender("error.bad_request", nil),
	})
}

func (h *Handler) writeError(ctx *fasthttp.RequestCtx, status int, derr gamedto.DomainError) {
	h.writeJSON(ctx, status, map[string]gamedto.DomainError{"error": derr})
}

func (h *Handler) writeJSON(ctx *fasthttp.RequestCtx, status int, body any) {
	payload, err := json.Marshal(body)
	if err != nil {
		h.logger.Error("encode response failed", zap.Error(err))
		ctx.SetStatusCode(fasthttp.StatusInternalServerError)
		return
	}
	ctx.SetStatusCode(status)
	ctx.SetContentType("application/json")
	ctx.SetBody(payload)
}

func ownerID(ctx *fasthttp.RequestCtx) string {
	owner := strings.TrimSpace(string(ctx.Request.Header.Peek(ownerHeader)))
	if owner == "" {
		return domain.AnonymousOwner
	}
	return owner
}

func sessionIDArg(ctx *fasthttp.RequestCtx) string {
	return strings.TrimSpace(string(ctx.QueryArgs().Peek("session_id")))
}

func boardSizeArg(ctx *fasthttp.RequestCtx) int {
	raw := string(ctx.QueryArgs().Peek("size"))
	if raw == "" {
		return 0
	}
	size, err := strconv.Atoi(raw)
	if err != nil || size < 64 || size > 2048 {
		return 0
	}
	return size
}

func moveSquares(moveUCI string) (nchess.Square, nchess.Square, bool) {
	if len(moveUCI) < 4 {
		return 0, 0, false
	}
	from, ok1 := parseSquare(moveUCI[0:2])
	to, ok2 := parseSquare(moveUCI[2:4])
	if !ok1 || !ok2 {
		return 0, 0, false
	}
	return from, to, true
}

func parseSquare(s string) (nchess.Square, bool) {
	if len(s) != 2 || s[0] < 'a' || s[0] > 'h' || s[1] < '1' || s[1] > '8' {
		return 0, false
	}
	file := nchess.File(s[0] - 'a')
	rank := nchess.Rank(s[1] - '1')
	return nchess.NewSquare(file, rank), true
}

// requestContext adapts the fasthttp request to a context for the service
// layer; fasthttp.RequestCtx itself satisfies context.Context.
func requestContext(ctx *fasthttp.RequestCtx) context.Context {
	return ctx
}
