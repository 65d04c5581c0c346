package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"odas-monitor/internal/feed"
	"odas-monitor/internal/logging"
	"odas-monitor/internal/storage"
)

// StatusReporter exposes the loop's derived labels to the read surface;
// internal/service.Loop satisfies it.
type StatusReporter interface {
	TickStatus() string
	Health() string
}

// Server is the read-only status and feed surface consumed by the control
// panel dashboards. It never writes to the intervention log.
type Server struct {
	status   StatusReporter
	state    func() string
	store    storage.InterventionStore
	watcher  *feed.Watcher
	upgrader websocket.Upgrader
	logger   zerolog.Logger
	http     *http.Server
}

// Options configure the server surface.
type Options struct {
	Addr    string
	Status  StatusReporter
	State   func() string
	Store   storage.InterventionStore
	Watcher *feed.Watcher
}

// New constructs the server with routes registered.
func New(opts Options, logger zerolog.Logger) *Server {
	mux := http.NewServeMux()
	s := &Server{
		status:  opts.Status,
		state:   opts.State,
		store:   opts.Store,
		watcher: opts.Watcher,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger: logging.Component(logger, "server"),
		http: &http.Server{
			Addr:         opts.Addr,
			Handler:      mux,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
	}

	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/interventions", s.handleInterventions)
	mux.HandleFunc("/ws", s.handleFeed)
	return s
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.http.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.http.Shutdown(shutdownCtx); err != nil {
			s.logger.Error().Err(err).Msg("server shutdown failed")
		}
		<-errCh
		return ctx.Err()
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	payload := map[string]string{
		"tick_status": s.status.TickStatus(),
		"health":      s.status.Health(),
	}
	if s.state != nil {
		payload["state"] = s.state()
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error().Err(err).Msg("failed to encode status")
	}
}

// maxListLimit caps one /interventions response so a single request cannot
// drag the whole log through the store.
const maxListLimit = 500

func (s *Server) handleInterventions(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = parsed
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	records, err := s.store.ListRecentInterventions(r.Context(), limit)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to list interventions")
		http.Error(w, "failed to list interventions", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(records); err != nil {
		s.logger.Error().Err(err).Msg("failed to encode interventions")
	}
}

// handleFeed streams feed updates to a websocket client until either side
// disconnects.
func (s *Server) handleFeed(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	updates, cancel := s.watcher.Subscribe()
	defer cancel()

	// drain client frames so pings and close messages are processed
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-closed:
			return
		case <-r.Context().Done():
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			if err := conn.WriteJSON(update); err != nil {
				s.logger.Debug().Err(err).Msg("websocket write failed; dropping client")
				return
			}
		}
	}
}
