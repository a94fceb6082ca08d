package api

import (
	"net/http"

	"github.com/dgallion1/docreader/internal/pipeline"
	"github.com/go-chi/chi/v5"
)

// handleLibrary lists every document with a saved position, most recently
// read first.
func (s *Server) handleLibrary(w http.ResponseWriter, r *http.Request) {
	recs, err := s.store.ListPositions(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if recs == nil {
		recs = []pipeline.Record{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"documents": recs})
}

// handleDeleteRecord forgets a document's saved position. The open document,
// if any, is left alone.
func (s *Server) handleDeleteRecord(w http.ResponseWriter, r *http.Request) {
	docID := chi.URLParam(r, "docID")
	if err := s.store.DeletePosition(r.Context(), docID); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.log.Info("saved position deleted", "doc_id", docID)
	w.WriteHeader(http.StatusNoContent)
}
