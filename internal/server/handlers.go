package server

import (
	"encoding/json"
	"net/http"
	"sort"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/jakobytes/elias-1848/internal/models"
)

const (
	defaultListLimit = 20
	maxListLimit     = 500
)

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	offset, err := queryInt(r, "offset", 0)
	if err != nil || offset < 0 {
		s.respondError(w, http.StatusBadRequest, "invalid offset")
		return
	}
	limit, err := queryInt(r, "limit", defaultListLimit)
	if err != nil || limit < 1 {
		s.respondError(w, http.StatusBadRequest, "invalid limit")
		return
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	runs, err := s.storage.ListRuns(r.Context(), offset, limit)
	if err != nil {
		s.logger.Error("list runs failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if runs == nil {
		runs = []*models.Run{}
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"runs": runs})
}

type runResponse struct {
	*models.Run
	StoredPairs      int64 `json:"stored_pairs"`
	StoredAlignments int64 `json:"stored_alignments"`
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")
	run, err := s.storage.GetRun(ctx, id)
	if err != nil {
		s.respondError(w, http.StatusNotFound, "run not found")
		return
	}
	resp := runResponse{Run: run}
	if resp.StoredPairs, err = s.storage.CountPairs(ctx, id); err != nil {
		s.logger.Error("count pairs failed", zap.String("run_id", id), zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if resp.StoredAlignments, err = s.storage.CountAlignments(ctx, id); err != nil {
		s.logger.Error("count alignments failed", zap.String("run_id", id), zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, resp)
}

// handleSimilar lists the poems paired with {poem} in run {id}, seen from
// {poem}. The order is by the "sort" query parameter (sim, sim_l, sim_r or
// sim_raw; default sim), highest first.
func (s *Server) handleSimilar(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")
	poem := chi.URLParam(r, "poem")
	if _, err := s.storage.GetRun(ctx, id); err != nil {
		s.respondError(w, http.StatusNotFound, "run not found")
		return
	}
	key, ok := sortKeys[r.URL.Query().Get("sort")]
	if !ok {
		s.respondError(w, http.StatusBadRequest, "invalid sort (use sim, sim_l, sim_r or sim_raw)")
		return
	}
	minSim, err := queryFloat(r, "min", 0)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid min")
		return
	}
	s.logger.Debug("similar request", zap.String("run_id", id), zap.String("poem", poem))
	pairs, err := s.storage.GetSimilar(ctx, id, poem)
	if err != nil {
		s.logger.Error("get similar failed", zap.String("run_id", id), zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	out := make([]*models.PairRecord, 0, len(pairs))
	for _, p := range pairs {
		if key(p) >= minSim {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(a, b int) bool { return key(out[a]) > key(out[b]) })
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"poem_id": poem,
		"similar": out,
	})
}

var sortKeys = map[string]func(*models.PairRecord) float64{
	"":        func(p *models.PairRecord) float64 { return p.Sym },
	"sim":     func(p *models.PairRecord) float64 { return p.Sym },
	"sim_l":   func(p *models.PairRecord) float64 { return p.Left },
	"sim_r":   func(p *models.PairRecord) float64 { return p.Right },
	"sim_raw": func(p *models.PairRecord) float64 { return p.Raw },
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func queryInt(r *http.Request, name string, def int) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, nil
	}
	return strconv.Atoi(v)
}

func queryFloat(r *http.Request, name string, def float64) (float64, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, nil
	}
	return strconv.ParseFloat(v, 64)
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
