package api

import (
	"net/http"
	"strings"

	"github.com/dgallion1/docreader/internal/doctree"
)

type openRequest struct {
	Path string `json:"path"`
}

type positionRequest struct {
	Position *int `json:"position"`
}

type lineSizeRequest struct {
	LineSize int `json:"line_size"`
}

func (s *Server) handleOpen(w http.ResponseWriter, r *http.Request) {
	var req openRequest
	if err := decodeJSON(w, r, &req); err != nil {
		jsonError(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Path) == "" {
		jsonError(w, "path is required", http.StatusBadRequest)
		return
	}

	snap, err := s.engine.Open(r.Context(), req.Path)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleClose(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.Close(); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	snap, err := s.engine.Snapshot()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleLine(w http.ResponseWriter, r *http.Request) {
	snap, err := s.engine.Snapshot()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"line":     snap.Line,
		"position": snap.Position,
	})
}

func (s *Server) handleSetPosition(w http.ResponseWriter, r *http.Request) {
	var req positionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		jsonError(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.Position == nil {
		jsonError(w, "position is required", http.StatusBadRequest)
		return
	}
	if err := s.engine.SetPosition(*req.Position); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.handleSnapshot(w, r)
}

// navigate adapts a cursor movement to a handler that answers with the new
// state.
func (s *Server) navigate(move func() error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := move(); err != nil {
			s.writeError(w, r, err)
			return
		}
		s.handleSnapshot(w, r)
	}
}

func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	p, err := s.engine.Progress()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]float64{"progress": p})
}

func (s *Server) handleChapters(w http.ResponseWriter, r *http.Request) {
	snap, err := s.engine.Snapshot()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Chapters []doctree.Chapter `json:"chapters"`
		Current  *doctree.Chapter  `json:"current"`
	}{snap.Chapters, snap.CurrentChapter})
}

func (s *Server) handleLineSize(w http.ResponseWriter, r *http.Request) {
	var req lineSizeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		jsonError(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if err := s.engine.Repaginate(req.LineSize); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"line_size": s.engine.LineSize()})
}
