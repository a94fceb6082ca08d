package api

import (
	"log/slog"
	"net/http"

	"github.com/dgallion1/docreader/internal/config"
	"github.com/dgallion1/docreader/internal/events"
	"github.com/dgallion1/docreader/internal/hotkey"
	"github.com/dgallion1/docreader/internal/pipeline"
	"github.com/dgallion1/docreader/internal/reader"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Server is the HTTP API server for docreader.
type Server struct {
	router  chi.Router
	engine  *reader.Engine
	hotkeys *hotkey.Dispatcher
	broker  *events.Broker
	writer  *pipeline.Writer
	store   pipeline.PositionStore
	log     *slog.Logger
	cfg     config.Config
}

// Deps are the services the API drives.
type Deps struct {
	Engine  *reader.Engine
	Hotkeys *hotkey.Dispatcher
	Broker  *events.Broker
	Writer  *pipeline.Writer
	Store   pipeline.PositionStore
}

// NewServer creates and configures the HTTP server.
func NewServer(deps Deps, log *slog.Logger, cfg config.Config) *Server {
	s := &Server{
		engine:  deps.Engine,
		hotkeys: deps.Hotkeys,
		broker:  deps.Broker,
		writer:  deps.Writer,
		store:   deps.Store,
		log:     log,
		cfg:     cfg,
	}
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(s.log))

	// Public endpoints.
	r.Get("/health", s.handleHealth)

	// Authenticated endpoints.
	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(s.cfg.APIKey, s.log))

		r.Route("/api/reader", func(r chi.Router) {
			r.Get("/", s.handleSnapshot)
			r.Post("/open", s.handleOpen)
			r.Post("/close", s.handleClose)
			r.Get("/line", s.handleLine)
			r.Put("/position", s.handleSetPosition)
			r.Post("/next-line", s.navigate(s.engine.NextLine))
			r.Post("/prev-line", s.navigate(s.engine.PrevLine))
			r.Post("/next-chapter", s.navigate(s.engine.NextChapter))
			r.Post("/prev-chapter", s.navigate(s.engine.PrevChapter))
			r.Get("/progress", s.handleProgress)
			r.Get("/chapters", s.handleChapters)
			r.Put("/line-size", s.handleLineSize)
		})

		r.Get("/api/hotkeys", s.handleListHotkeys)
		r.Post("/api/hotkeys/press", s.handlePress)
		r.Put("/api/hotkeys/reading-mode", s.handleReadingMode)
		r.Put("/api/hotkeys/{action}", s.handleRebind)

		r.Get("/api/library", s.handleLibrary)
		r.Delete("/api/library/{docID}", s.handleDeleteRecord)

		r.Get("/api/events", s.handleEvents)
		r.Get("/api/stats/persist", s.handlePersistStats)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}
