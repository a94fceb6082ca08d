package api

import (
	"encoding/json"
	"errors"
	"io/fs"
	"net/http"

	"github.com/dgallion1/docreader/internal/hotkey"
	"github.com/dgallion1/docreader/internal/parser"
	"github.com/dgallion1/docreader/internal/reader"
	"github.com/dgallion1/docreader/internal/textenc"
)

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// errorStatus classifies err into an HTTP status and a stable code.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, parser.ErrUnsupportedFormat):
		return http.StatusUnsupportedMediaType, "unsupported_format"
	case errors.Is(err, textenc.ErrUnsupportedEncoding):
		return http.StatusUnprocessableEntity, "unsupported_encoding"
	case errors.Is(err, reader.ErrIO) && errors.Is(err, fs.ErrNotExist):
		return http.StatusNotFound, "io_failure"
	case errors.Is(err, reader.ErrIO):
		return http.StatusUnprocessableEntity, "io_failure"
	case errors.Is(err, reader.ErrEmptyDocument):
		return http.StatusUnprocessableEntity, "empty_document"
	case errors.Is(err, reader.ErrOutOfBounds):
		return http.StatusConflict, "out_of_bounds"
	case errors.Is(err, reader.ErrNoAdjacentChapter):
		return http.StatusConflict, "no_adjacent_chapter"
	case errors.Is(err, reader.ErrNoActiveDocument):
		return http.StatusConflict, "no_active_document"
	case errors.Is(err, reader.ErrInvalidLineSize):
		return http.StatusBadRequest, "invalid_line_size"
	case errors.Is(err, reader.ErrLockFailure):
		return http.StatusInternalServerError, "lock_failure"
	case errors.Is(err, hotkey.ErrInvalidAccelerator):
		return http.StatusBadRequest, "invalid_accelerator"
	case errors.Is(err, hotkey.ErrUnknownAccelerator):
		return http.StatusNotFound, "unknown_accelerator"
	case errors.Is(err, hotkey.ErrUnknownAction):
		return http.StatusNotFound, "unknown_action"
	case errors.Is(err, hotkey.ErrDuplicateBinding):
		return http.StatusConflict, "duplicate_binding"
	}
	return http.StatusInternalServerError, "internal"
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := errorStatus(err)
	if status >= http.StatusInternalServerError {
		s.log.Error("request failed", "path", r.URL.Path, "error", err)
	}
	writeJSON(w, status, errorBody{Error: err.Error(), Code: code})
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	writeJSON(w, code, errorBody{Error: msg, Code: "bad_request"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
