package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/mcdev12/gamefloor/go/internal/floor"
	"github.com/mcdev12/gamefloor/go/internal/floorerr"
	"github.com/mcdev12/gamefloor/go/internal/lifecycle"
	"github.com/mcdev12/gamefloor/go/internal/models"
	"github.com/mcdev12/gamefloor/go/internal/settlement"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// Lifecycle defines what the gateway needs from the lifecycle controller
type Lifecycle interface {
	Start(ctx context.Context, req lifecycle.StartRequest) (models.Machine, error)
	Stop(ctx context.Context, req lifecycle.StopRequest) (*lifecycle.StopOutcome, error)
	Extend(ctx context.Context, req lifecycle.ExtendRequest) (*lifecycle.ExtendResult, error)
	OpenStartDialog(machineID int64) error
	CloseStartDialog(machineID int64)
	AwaitingMatchCount() []lifecycle.MatchCountRequest
	PreviewMatchPrice(sessionID int64, matches int) (decimal.Decimal, error)
	SubmitMatchCount(ctx context.Context, sessionID int64, matches int) (*settlement.Settlement, error)
	CancelMatchCount(sessionID int64) error
}

// Settlements defines what the gateway needs from the settlement manager
type Settlements interface {
	List() []settlement.Settlement
	Confirm(ctx context.Context, id uuid.UUID, amountGiven decimal.Decimal) (*models.Receipt, error)
	Cancel(ctx context.Context, id uuid.UUID) error
}

// Games lists the cached catalog.
type Games interface {
	Games() []models.Game
}

// Floor provides the latest floor snapshot.
type Floor interface {
	Current() floor.Snapshot
}

// Handler serves the operator API.
type Handler struct {
	lifecycle   Lifecycle
	settlements Settlements
	games       Games
	floor       Floor
	hub         *Hub
}

// NewHandler creates the operator API handler.
func NewHandler(lc Lifecycle, settlements Settlements, games Games, fl Floor, hub *Hub) *Handler {
	return &Handler{lifecycle: lc, settlements: settlements, games: games, floor: fl, hub: hub}
}

// Register mounts every route on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", h.health)
	mux.HandleFunc("GET /api/floor", h.getFloor)
	mux.HandleFunc("GET /api/games", h.listGames)

	mux.HandleFunc("POST /api/machines/{id}/dialog", h.openDialog)
	mux.HandleFunc("DELETE /api/machines/{id}/dialog", h.closeDialog)
	mux.HandleFunc("POST /api/machines/{id}/start", h.start)
	mux.HandleFunc("POST /api/machines/{id}/stop", h.stop)
	mux.HandleFunc("POST /api/machines/{id}/extend", h.extend)

	mux.HandleFunc("GET /api/matches", h.listAwaiting)
	mux.HandleFunc("GET /api/sessions/{id}/matches/preview", h.previewMatches)
	mux.HandleFunc("POST /api/sessions/{id}/matches", h.submitMatches)
	mux.HandleFunc("DELETE /api/sessions/{id}/matches", h.cancelMatches)

	mux.HandleFunc("GET /api/settlements", h.listSettlements)
	mux.HandleFunc("POST /api/settlements/{id}/confirm", h.confirm)
	mux.HandleFunc("DELETE /api/settlements/{id}", h.cancelSettlement)

	if h.hub != nil {
		mux.HandleFunc("GET /ws/floor", h.serveWS)
	}
}

func (h *Handler) health(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func (h *Handler) getFloor(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.floor.Current())
}

func (h *Handler) listGames(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.games.Games())
}

func (h *Handler) openDialog(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.lifecycle.OpenStartDialog(id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) closeDialog(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	h.lifecycle.CloseStartDialog(id)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) start(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var body struct {
		GameID    int64 `json:"game_id"`
		PricingID int64 `json:"pricing_id"`
	}
	if !decode(w, r, &body) {
		return
	}

	m, err := h.lifecycle.Start(r.Context(), lifecycle.StartRequest{MachineID: id, GameID: body.GameID, PricingID: body.PricingID})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

func (h *Handler) stop(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var body struct {
		SessionID int64 `json:"session_id"`
	}
	if r.ContentLength != 0 && !decode(w, r, &body) {
		return
	}

	out, err := h.lifecycle.Stop(r.Context(), lifecycle.StopRequest{MachineID: id, SessionID: body.SessionID, Trigger: lifecycle.StopTriggerOperator})
	if err != nil {
		writeError(w, err)
		return
	}
	status := http.StatusOK
	if out.AwaitingMatchCount != nil {
		status = http.StatusAccepted
	}
	writeJSON(w, status, out)
}

func (h *Handler) extend(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var body struct {
		PricingID int64 `json:"pricing_id"`
	}
	if !decode(w, r, &body) {
		return
	}

	res, err := h.lifecycle.Extend(r.Context(), lifecycle.ExtendRequest{MachineID: id, PricingID: body.PricingID})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) listAwaiting(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.lifecycle.AwaitingMatchCount())
}

func (h *Handler) previewMatches(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	matches, err := strconv.Atoi(r.URL.Query().Get("matches_played"))
	if err != nil {
		writeError(w, floorerr.Invalid("matches_played", "must be a whole number"))
		return
	}
	price, err := h.lifecycle.PreviewMatchPrice(id, matches)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"session_id": id, "matches_played": matches, "price": price})
}

func (h *Handler) submitMatches(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var body struct {
		MatchesPlayed int `json:"matches_played"`
	}
	if !decode(w, r, &body) {
		return
	}

	s, err := h.lifecycle.SubmitMatchCount(r.Context(), id, body.MatchesPlayed)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

func (h *Handler) cancelMatches(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.lifecycle.CancelMatchCount(id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listSettlements(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.settlements.List())
}

func (h *Handler) confirm(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, floorerr.Invalid("settlement", "invalid id"))
		return
	}
	var body struct {
		AmountGiven *decimal.Decimal `json:"amount_given"`
	}
	if !decode(w, r, &body) {
		return
	}
	if body.AmountGiven == nil {
		writeError(w, floorerr.Invalid("amount_given", "enter the amount received"))
		return
	}

	receipt, err := h.settlements.Confirm(r.Context(), id, *body.AmountGiven)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, receipt)
}

func (h *Handler) cancelSettlement(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, floorerr.Invalid("settlement", "invalid id"))
		return
	}
	if err := h.settlements.Cancel(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) serveWS(w http.ResponseWriter, r *http.Request) {
	if err := h.hub.ServeWS(w, r, h.floor.Current()); err != nil {
		log.Debug().Err(err).Msg("websocket upgrade failed")
	}
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, floorerr.Invalid("id", "invalid id"))
		return 0, false
	}
	return id, true
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, floorerr.Invalid("body", "malformed JSON"))
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, floorerr.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, floorerr.ErrStateConflict):
		status = http.StatusConflict
	case errors.Is(err, floorerr.ErrRemote):
		status = http.StatusBadGateway
	}
	writeJSON(w, status, map[string]string{"error": floorerr.Message(err)})
}
