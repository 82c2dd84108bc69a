package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/rs/zerolog/log"

	"github.com/smarttrash/smarttrash/internal/engine"
	"github.com/smarttrash/smarttrash/internal/model"
	"github.com/smarttrash/smarttrash/internal/stats"
	"github.com/smarttrash/smarttrash/internal/store"
)

const (
	lidOpen   = "open"
	lidClosed = "closed"

	defaultRecent = 10
	maxRecent     = 100
)

// ---------------------------------------------------------------------------
// POST /api/toggle
// ---------------------------------------------------------------------------

type toggleResponse struct {
	State   string      `json:"state"`
	Item    *model.Item `json:"item,omitempty"`
	Warning string      `json:"warning,omitempty"`
	Reason  string      `json:"reason,omitempty"`
}

// handleToggle flips the lid. Opening it means something is being thrown
// away, so the pipeline runs before the response is written.
func (s *Server) handleToggle(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.lidOpen = !s.lidOpen
	open := s.lidOpen
	s.mu.Unlock()

	if !open {
		writeJSON(w, http.StatusOK, toggleResponse{State: lidClosed})
		return
	}

	// A viewer that disconnects mid-run must not cost the observation.
	resp := toggleResponse{State: lidOpen}
	item, err := s.pipeline.Run(context.WithoutCancel(r.Context()))
	switch {
	case err == nil:
		resp.Item = item
	case item != nil:
		log.Warn().Err(err).Int("id", item.ID).Msg("item recorded with warning")
		resp.Item = item
		resp.Warning = err.Error()
	case errors.Is(err, engine.ErrNoItem):
		resp.Reason = err.Error()
	default:
		log.Error().Err(err).Msg("pipeline failed")
		writeError(w, http.StatusInternalServerError, "pipeline failed")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// ---------------------------------------------------------------------------
// GET /api/state
// ---------------------------------------------------------------------------

func (s *Server) handleState(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	open := s.lidOpen
	s.mu.Unlock()

	state := lidClosed
	if open {
		state = lidOpen
	}
	writeJSON(w, http.StatusOK, map[string]string{"state": state})
}

// ---------------------------------------------------------------------------
// GET /api/stats/{period}
// ---------------------------------------------------------------------------

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	result, err := s.stats.Compute(r.Context(), r.PathValue("period"))
	if errors.Is(err, stats.ErrUnknownPeriod) {
		writeError(w, http.StatusBadRequest, "period must be one of day, week, month, year, all")
		return
	}
	if err != nil {
		log.Error().Err(err).Msg("compute stats")
		writeError(w, http.StatusInternalServerError, "failed to compute statistics")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// ---------------------------------------------------------------------------
// GET /api/summary
// ---------------------------------------------------------------------------

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	snap, err := s.items.Snapshot(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to read statistics")
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// ---------------------------------------------------------------------------
// GET /api/search?q=
// ---------------------------------------------------------------------------

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	items, err := s.items.Search(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to search items")
		return
	}
	if items == nil {
		items = []model.Item{}
	}
	writeJSON(w, http.StatusOK, items)
}

// ---------------------------------------------------------------------------
// GET /api/items?limit=
// ---------------------------------------------------------------------------

func (s *Server) handleRecentItems(w http.ResponseWriter, r *http.Request) {
	limit := defaultRecent
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxRecent)
	}

	items, err := s.items.Recent(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list items")
		return
	}
	writeJSON(w, http.StatusOK, items)
}

// ---------------------------------------------------------------------------
// GET /api/items/{id}
// ---------------------------------------------------------------------------

func (s *Server) handleGetItem(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "id must be an integer")
		return
	}

	item, err := s.items.Get(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "item not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get item")
		return
	}
	writeJSON(w, http.StatusOK, item)
}
