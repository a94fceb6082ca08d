package api

import (
	"net/http"

	"github.com/dgallion1/docreader/internal/hotkey"
	"github.com/go-chi/chi/v5"
)

type pressRequest struct {
	Accelerator string `json:"accelerator"`
}

type readingModeRequest struct {
	Enabled bool `json:"enabled"`
}

func (s *Server) handleListHotkeys(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"bindings":     s.hotkeys.Bindings(),
		"reading_mode": s.hotkeys.ReadingMode(),
	})
}

// handlePress fires a hotkey. The action runs in the background, so the
// response only says what was triggered.
func (s *Server) handlePress(w http.ResponseWriter, r *http.Request) {
	var req pressRequest
	if err := decodeJSON(w, r, &req); err != nil {
		jsonError(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	action, err := s.hotkeys.Press(req.Accelerator)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"action": string(action)})
}

func (s *Server) handleRebind(w http.ResponseWriter, r *http.Request) {
	action := hotkey.Action(chi.URLParam(r, "action"))
	var req pressRequest
	if err := decodeJSON(w, r, &req); err != nil {
		jsonError(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if err := s.hotkeys.Rebind(action, req.Accelerator); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.log.Info("hotkey rebound", "action", string(action), "accelerator", req.Accelerator)
	s.handleListHotkeys(w, r)
}

func (s *Server) handleReadingMode(w http.ResponseWriter, r *http.Request) {
	var req readingModeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		jsonError(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	s.hotkeys.SetReadingMode(req.Enabled)
	writeJSON(w, http.StatusOK, map[string]bool{"reading_mode": s.hotkeys.ReadingMode()})
}
