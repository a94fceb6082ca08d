package api

import (
	"net/http"
)

func (s *Server) handlePersistStats(w http.ResponseWriter, r *http.Request) {
	if s.writer == nil {
		jsonError(w, "persistence stats unavailable", http.StatusServiceUnavailable)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"stats": s.writer.Stats(),
	})
}
