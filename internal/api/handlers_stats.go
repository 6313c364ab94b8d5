package api

import (
	"encoding/json"
	"net/http"
)

func (s *Server) handleInferStats(w http.ResponseWriter, r *http.Request) {
	if s.stats == nil {
		jsonError(w, "inference stats unavailable", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"stats":       s.stats.Snapshot(),
		"queue_depth": s.orchestrator.QueueDepth(),
	})
}
