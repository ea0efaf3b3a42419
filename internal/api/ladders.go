package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"regexp"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/ladderhq/ladderd/internal/config"
	"github.com/ladderhq/ladderd/internal/events"
	"github.com/ladderhq/ladderd/internal/rank"
	"github.com/ladderhq/ladderd/internal/store"
)

// Ladder names become NATS subject tokens, so characters with subject
// semantics (".", "*", ">", whitespace) are rejected at creation.
var ladderNamePattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

type LaddersHandler struct {
	store    store.Store
	ranker   *rank.Ranker
	events   events.Client
	defaults config.DefaultsConfig
}

func NewLaddersHandler(s store.Store, r *rank.Ranker, ev events.Client, defaults config.DefaultsConfig) *LaddersHandler {
	return &LaddersHandler{store: s, ranker: r, events: ev, defaults: defaults}
}

type SettingsRequest struct {
	Mu              *float64 `json:"mu,omitempty"`
	Sigma           *float64 `json:"sigma,omitempty"`
	Beta            *float64 `json:"beta,omitempty"`
	Tau             *float64 `json:"tau,omitempty"`
	DrawProbability *float64 `json:"draw_probability,omitempty"`
}

// Settings creates a ladder or replaces its rating parameters. Omitted
// fields fall back to the service-wide defaults.
func (h *LaddersHandler) Settings(w http.ResponseWriter, r *http.Request) {
	ladder := chi.URLParam(r, "ladder")
	if !ladderNamePattern.MatchString(ladder) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "ladder name must match [A-Za-z0-9_-]{1,64}"})
		return
	}

	var req SettingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	cfg := &store.LadderConfig{
		Name:            ladder,
		Mu:              h.defaults.Mu,
		Sigma:           h.defaults.Sigma,
		Beta:            h.defaults.Beta,
		Tau:             h.defaults.Tau,
		DrawProbability: h.defaults.DrawProbability,
	}
	if req.Mu != nil {
		cfg.Mu = *req.Mu
	}
	if req.Sigma != nil {
		cfg.Sigma = *req.Sigma
	}
	if req.Beta != nil {
		cfg.Beta = *req.Beta
	}
	if req.Tau != nil {
		cfg.Tau = *req.Tau
	}
	if req.DrawProbability != nil {
		cfg.DrawProbability = *req.DrawProbability
	}

	if cfg.Sigma <= 0 || cfg.Beta <= 0 || cfg.Tau < 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "sigma and beta must be positive, tau non-negative"})
		return
	}
	if cfg.DrawProbability < 0 || cfg.DrawProbability >= 1 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "draw_probability must be in [0, 1)"})
		return
	}

	if err := h.store.UpsertLadderConfig(r.Context(), cfg); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	if h.events != nil {
		_ = h.events.Publish(events.SubjectSettingsChanged(ladder), events.SettingsChangedEvent{
			EventID: uuid.New(),
			Ladder:  ladder,
		})
	}

	writeJSON(w, http.StatusCreated, map[string]string{"result": "ok"})
}

// Ranking recalculates the ladder and returns its standings. An unknown
// ladder is reported with exists=false rather than an error, so clients
// can probe for free names.
func (h *LaddersHandler) Ranking(w http.ResponseWriter, r *http.Request) {
	ladder := chi.URLParam(r, "ladder")

	exists, err := h.store.LadderExists(r.Context(), ladder)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if !exists {
		writeJSON(w, http.StatusOK, map[string]interface{}{"exists": false})
		return
	}

	if err := h.ranker.Recalculate(r.Context(), ladder); err != nil {
		writeRecalcError(w, err)
		return
	}

	standings, err := h.ranker.Standings(r.Context(), ladder)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"exists":  true,
		"ranking": standings,
	})
}

// Recalculate folds pending matches into ratings without returning
// standings.
func (h *LaddersHandler) Recalculate(w http.ResponseWriter, r *http.Request) {
	ladder := chi.URLParam(r, "ladder")
	if err := h.ranker.Recalculate(r.Context(), ladder); err != nil {
		writeRecalcError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// PlayerHistory returns a player's rating time series, oldest first.
func (h *LaddersHandler) PlayerHistory(w http.ResponseWriter, r *http.Request) {
	ladder := chi.URLParam(r, "ladder")
	name := chi.URLParam(r, "name")

	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid limit"})
			return
		}
		limit = n
	}

	if _, err := h.store.GetPlayer(r.Context(), ladder, name); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "player not found"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	entries, err := h.store.PlayerHistory(r.Context(), ladder, name, limit)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"ladder":  ladder,
		"player":  name,
		"history": entries,
	})
}

func writeRecalcError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, rank.ErrConfigMissing):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "ladder not found"})
	case errors.Is(err, store.ErrConcurrentRecalculation):
		writeJSON(w, http.StatusConflict, map[string]string{"error": "recalculation already in progress, retry"})
	default:
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
}
