package fakefloor

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"

	"github.com/mcdev12/gamefloor/go/internal/floorerr"
	"github.com/shopspring/decimal"
)

// Server serves a Floor over the floor service's REST contract.
type Server struct {
	*httptest.Server
	floor *Floor
	token string
}

// NewServer starts an HTTP server backed by f. A non-empty token is required
// as a bearer credential on every request.
func NewServer(f *Floor, token string) *Server {
	s := &Server{floor: f, token: token}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/machines", s.handleMachines)
	mux.HandleFunc("GET /api/games", s.handleGames)
	mux.HandleFunc("POST /api/sessions", s.handleStart)
	mux.HandleFunc("POST /api/sessions/check-auto-stop", s.handleCheckAutoStop)
	mux.HandleFunc("GET /api/sessions/{id}/status", s.handleStatus)
	mux.HandleFunc("POST /api/sessions/{id}/stop", s.handleStop)
	mux.HandleFunc("POST /api/sessions/{id}/extend", s.handleExtend)
	mux.HandleFunc("POST /api/sessions/{id}/payment", s.handlePayment)

	s.Server = httptest.NewServer(s.authorize(mux))
	return s
}

func (s *Server) authorize(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.token != "" && r.Header.Get("Authorization") != "Bearer "+s.token {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "unauthorized"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleMachines(w http.ResponseWriter, r *http.Request) {
	machines, err := s.floor.ListMachines(r.Context())
	reply(w, machines, err)
}

func (s *Server) handleGames(w http.ResponseWriter, r *http.Request) {
	games, err := s.floor.ListGames(r.Context())
	reply(w, games, err)
}

func (s *Server) handleCheckAutoStop(w http.ResponseWriter, r *http.Request) {
	reply(w, map[string]bool{"ok": true}, s.floor.CheckAutoStop(r.Context()))
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	var body struct {
		MachineID int64 `json:"machine_id"`
		GameID    int64 `json:"game_id"`
		PricingID int64 `json:"pricing_id"`
	}
	if !decode(w, r, &body) {
		return
	}
	session, err := s.floor.StartSession(r.Context(), body.MachineID, body.GameID, body.PricingID)
	if err != nil {
		reply(w, nil, err)
		return
	}
	if session == nil {
		writeJSON(w, http.StatusCreated, map[string]bool{"ok": true})
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"session": session})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}
	status, err := s.floor.GetSessionStatus(r.Context(), id)
	reply(w, status, err)
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}
	var body struct {
		MatchesPlayed *int `json:"matches_played"`
	}
	if !decode(w, r, &body) {
		return
	}
	result, err := s.floor.StopSession(r.Context(), id, body.MatchesPlayed)
	reply(w, result, err)
}

func (s *Server) handleExtend(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}
	var body struct {
		PricingID int64 `json:"pricing_id"`
	}
	if !decode(w, r, &body) {
		return
	}
	total, err := s.floor.ExtendSession(r.Context(), id, body.PricingID)
	reply(w, map[string]decimal.Decimal{"total_paid": total}, err)
}

func (s *Server) handlePayment(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}
	var body struct {
		AmountGiven decimal.Decimal `json:"amount_given"`
	}
	if !decode(w, r, &body) {
		return
	}
	receipt, err := s.floor.ConfirmPayment(r.Context(), id, body.AmountGiven)
	if err != nil {
		reply(w, nil, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"receipt": map[string]decimal.Decimal{
		"amount": receipt.Amount,
		"change": receipt.Change,
	}})
}

func sessionID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "session not found"})
		return 0, false
	}
	return id, true
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "malformed JSON"})
		return false
	}
	return true
}

// reply writes v, or maps err back onto the status code the real service
// uses for it.
func reply(w http.ResponseWriter, v any, err error) {
	if err == nil {
		writeJSON(w, http.StatusOK, v)
		return
	}

	status := http.StatusInternalServerError
	var ve *floorerr.ValidationError
	var re *floorerr.RemoteError
	switch {
	case errors.As(err, &ve):
		status = http.StatusUnprocessableEntity
		writeJSON(w, status, map[string]string{"message": ve.Reason})
		return
	case errors.Is(err, floorerr.ErrStateConflict):
		status = http.StatusConflict
	case errors.As(err, &re) && re.Status > 0:
		status = re.Status
	}
	writeJSON(w, status, map[string]string{"message": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
