package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/ladderhq/ladderd/internal/events"
	"github.com/ladderhq/ladderd/internal/store"
)

const defaultMatchPage = 42

type MatchesHandler struct {
	store  store.Store
	events events.Client
}

func NewMatchesHandler(s store.Store, ev events.Client) *MatchesHandler {
	return &MatchesHandler{store: s, events: ev}
}

type SubmitMatchRequest struct {
	// Outcome lists the teams in finish order: outcome[0] finished
	// first. Each team is an ordered list of player names.
	Outcome [][]string `json:"outcome"`
	// Ranks optionally overrides the finish rank per team; equal ranks
	// denote a draw. Defaults to the team's index in Outcome.
	Ranks []int `json:"ranks,omitempty"`
	// Timestamp is Unix seconds; zero means the submission time.
	Timestamp int64 `json:"timestamp,omitempty"`
}

func (h *MatchesHandler) Submit(w http.ResponseWriter, r *http.Request) {
	ladder := chi.URLParam(r, "ladder")

	var req SubmitMatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if len(req.Outcome) < 2 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "outcome needs at least 2 teams"})
		return
	}
	if req.Ranks != nil && len(req.Ranks) != len(req.Outcome) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "ranks must match outcome length"})
		return
	}
	for _, team := range req.Outcome {
		if len(team) == 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "empty team in outcome"})
			return
		}
		for _, name := range team {
			if name == "" {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "empty player name"})
				return
			}
		}
	}

	m := &store.Match{Ladder: ladder, Timestamp: req.Timestamp}
	for i, team := range req.Outcome {
		rank := i
		if req.Ranks != nil {
			rank = req.Ranks[i]
		}
		m.Teams = append(m.Teams, store.Team{Rank: rank, Players: team})
	}

	if err := h.store.CreateMatch(r.Context(), m); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "ladder not found"})
			return
		}
		if errors.Is(err, store.ErrStaleTimestamp) {
			writeJSON(w, http.StatusConflict, map[string]string{"error": "timestamp is at or before the last ranked match; delete a match to force a replay"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	if h.events != nil {
		_ = h.events.Publish(events.SubjectMatchRecorded(ladder), events.MatchRecordedEvent{
			EventID:   uuid.New(),
			Ladder:    ladder,
			MatchID:   m.ID,
			Timestamp: m.Timestamp,
			Outcome:   req.Outcome,
		})
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"result":    "ok",
		"id":        m.ID,
		"timestamp": m.Timestamp,
	})
}

func (h *MatchesHandler) List(w http.ResponseWriter, r *http.Request) {
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

	limit := defaultMatchPage
	offset := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid limit"})
			return
		}
		limit = n
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid offset"})
			return
		}
		offset = n
	}

	matches, err := h.store.ListRecentMatches(r.Context(), ladder, limit, offset)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"exists":  true,
		"matches": matches,
	})
}

// Delete removes a match and rewinds the ladder's watermark: updated
// ratings are not individually reversible, so the next recalculation
// replays the remaining matches from scratch.
func (h *MatchesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ladder := chi.URLParam(r, "ladder")
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid match id"})
		return
	}

	if err := h.store.DeleteMatch(r.Context(), ladder, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "match not found"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	if h.events != nil {
		_ = h.events.Publish(events.SubjectMatchDeleted(ladder), events.MatchDeletedEvent{
			EventID: uuid.New(),
			Ladder:  ladder,
			MatchID: id,
		})
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
