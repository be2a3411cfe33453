package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/contextd/contextd/internal/predict"
	"github.com/contextd/contextd/internal/store"
)

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ActivityID   string `json:"activity_id"`
		ActivityType string `json:"activity_type"`
		Timestamp    string `json:"timestamp"`
		AppName      string `json:"app_name"`
		WindowTitle  string `json:"window_title"`
		FilePath     string `json:"file_path"`
		URL          string `json:"url"`
		Duration     int    `json:"duration"`
		Metadata     string `json:"metadata"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.ActivityID == "" || req.ActivityType == "" {
		writeError(w, http.StatusBadRequest, "activity_id and activity_type required")
		return
	}

	a := store.Activity{
		ActivityID:   req.ActivityID,
		ActivityType: req.ActivityType,
		AppName:      req.AppName,
		WindowTitle:  req.WindowTitle,
		FilePath:     req.FilePath,
		URL:          req.URL,
		Duration:     req.Duration,
		Metadata:     req.Metadata,
	}
	if req.Timestamp != "" {
		ts, err := time.Parse(time.RFC3339, req.Timestamp)
		if err != nil {
			writeError(w, http.StatusBadRequest, "timestamp must be RFC3339")
			return
		}
		a.Timestamp = ts
	}

	tracked, err := s.engine.Ingest(r.Context(), a)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !tracked {
		writeJSON(w, http.StatusOK, map[string]any{"status": "dropped"})
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"status": "recorded"})
}

func (s *Server) handleLink(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PrevID         string  `json:"prev_id"`
		NextID         string  `json:"next_id"`
		ElapsedSeconds float64 `json:"elapsed_seconds"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.PrevID == "" || req.NextID == "" {
		writeError(w, http.StatusBadRequest, "prev_id and next_id required")
		return
	}

	elapsed := time.Duration(req.ElapsedSeconds * float64(time.Second))
	if err := s.engine.LinkSequential(req.PrevID, req.NextID, elapsed); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "linked"})
}

func (s *Server) handleRecent(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50)
	hours := queryFloat(r, "hours", 24)

	activities, err := s.db.RecentActivities(limit, hours)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	type activityJSON struct {
		ActivityID   string `json:"activity_id"`
		ActivityType string `json:"activity_type"`
		Timestamp    string `json:"timestamp"`
		AppName      string `json:"app_name,omitempty"`
		WindowTitle  string `json:"window_title,omitempty"`
		FilePath     string `json:"file_path,omitempty"`
		URL          string `json:"url,omitempty"`
		Duration     int    `json:"duration,omitempty"`
	}
	out := make([]activityJSON, len(activities))
	for i, a := range activities {
		out[i] = activityJSON{
			ActivityID:   a.ActivityID,
			ActivityType: a.ActivityType,
			Timestamp:    a.Timestamp.Format(time.RFC3339),
			AppName:      a.AppName,
			WindowTitle:  a.WindowTitle,
			FilePath:     a.FilePath,
			URL:          a.URL,
			Duration:     a.Duration,
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"count":      len(out),
		"activities": out,
	})
}

func (s *Server) handlePredictions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	current := predict.CurrentActivity{
		ActivityID:  q.Get("activity_id"),
		AppName:     q.Get("app"),
		WindowTitle: q.Get("window"),
		FilePath:    q.Get("file"),
		URL:         q.Get("url"),
	}
	maxResults := queryInt(r, "max", 10)

	predictions, err := s.engine.Predict(r.Context(), current, maxResults)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"count":       len(predictions),
		"predictions": predictions,
	})
}

func (s *Server) handleRelated(w http.ResponseWriter, r *http.Request) {
	nodeID := chi.URLParam(r, "nodeID")
	depth := queryInt(r, "depth", 2)
	minStrength := queryFloat(r, "min_strength", 0.1)

	related, err := s.engine.Related(nodeID, depth, minStrength)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"node_id": nodeID,
		"count":   len(related),
		"related": related,
	})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		writeError(w, http.StatusBadRequest, "q parameter required")
		return
	}
	limit := queryInt(r, "limit", 10)
	floor := queryFloat(r, "floor", 0.3)

	matches, err := s.engine.Search(r.Context(), query, limit, floor)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"query":   query,
		"count":   len(matches),
		"results": matches,
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.engine.Stats()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	topApps, err := s.db.TopApplications(5)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	topFiles, err := s.db.TopFiles(5)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"graph":            stats.Graph,
		"activities":       stats.Activities,
		"vectors":          stats.Vectors,
		"privacy":          stats.Privacy,
		"top_applications": topApps,
		"top_files":        topFiles,
	})
}

func (s *Server) handleMaintenance(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.RunMaintenance(); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func queryInt(r *http.Request, key string, def int) int {
	if v := r.URL.Query().Get(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}

func queryFloat(r *http.Request, key string, def float64) float64 {
	if v := r.URL.Query().Get(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f >= 0 {
			return f
		}
	}
	return def
}
