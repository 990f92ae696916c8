// Package web serves the Snowline chat UI: an embedded single-page client
// talking to a websocket endpoint that streams agent responses.
package web

import (
	"embed"
	"encoding/json"
	"io/fs"
	"log/slog"
	"net/http"

	"github.com/tyemill/snowline-agent/internal/agent"
	"github.com/tyemill/snowline-agent/internal/buildinfo"
	"github.com/tyemill/snowline-agent/internal/llm"
	"github.com/tyemill/snowline-agent/internal/memory"
	"github.com/tyemill/snowline-agent/internal/notify"
	"github.com/tyemill/snowline-agent/internal/tools"
)

//go:embed static/*
var staticFiles embed.FS

// Server is the chat web server.
type Server struct {
	logger   *slog.Logger
	loop     *agent.Loop
	gateway  llm.Client
	registry *tools.Registry
	store    *memory.Store
	dedup    *notify.Dedup
	provider string
}

// Options configures a Server. Store is optional; without it history lives
// only for the websocket session. Dedup is injected so the retention window
// is owned by the caller.
type Options struct {
	Logger   *slog.Logger
	Loop     *agent.Loop
	Gateway  llm.Client
	Registry *tools.Registry
	Store    *memory.Store
	Dedup    *notify.Dedup
	Provider string
}

// NewServer creates the chat server.
func NewServer(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	dedup := opts.Dedup
	if dedup == nil {
		dedup = notify.NewDedup(256)
	}
	return &Server{
		logger:   logger,
		loop:     opts.Loop,
		gateway:  opts.Gateway,
		registry: opts.Registry,
		store:    opts.Store,
		dedup:    dedup,
		provider: opts.Provider,
	}
}

// Handler returns the full route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	sub, err := fs.Sub(staticFiles, "static")
	if err != nil {
		panic(err)
	}
	fileServer := http.FileServer(http.FS(sub))
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/" || r.URL.Path == "" {
			r.URL.Path = "/index.html"
		}
		fileServer.ServeHTTP(w, r)
	})

	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/api/status", s.handleStatus)

	return mux
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := map[string]any{
		"version":  buildinfo.Version,
		"provider": s.provider,
		"tools":    s.registry.Names(),
	}
	if s.store != nil {
		status["memory"] = s.store.Stats()
	}

	if err := s.gateway.Ping(r.Context()); err != nil {
		status["model"] = "unreachable"
	} else {
		status["model"] = "ok"
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(status); err != nil {
		s.logger.Error("encode status", "error", err)
	}
}
