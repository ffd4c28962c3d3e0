package api

import (
	"encoding/json"
	"net/http"
)

func (s *Server) handleCheckerStats(w http.ResponseWriter, r *http.Request) {
	if s.stats == nil {
		jsonError(w, "checker stats unavailable", http.StatusServiceUnavailable)
		return
	}

	backend, _ := s.cfg.Backend()
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"backend":  backend,
		"locale":   s.cfg.CheckerLocale,
		"sessions": s.sessions.Len(),
		"stats":    s.stats.Snapshot(),
	})
}
