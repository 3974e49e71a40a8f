// Package httpapi exposes the controller over HTTP: command buttons,
// scheduling, status, the telemetry log and a live WebSocket stream.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"cleanxpert/internal/application"
	"cleanxpert/internal/domain"
)

// Service is what the HTTP surface drives.
type Service interface {
	Start()
	Stop()
	Schedule(entry domain.ScheduleEntry) time.Time
	Unschedule() bool
	Status(ctx context.Context) (application.Status, error)
	Log(ctx context.Context) ([]domain.LogLine, error)
	Watch(l application.DisplayListener) func()
}

type Server struct {
	addr        string
	authToken   string
	svc         Service
	hub         *Hub
	mux         *http.ServeMux
	rateLimiter *RateLimiter
	logger      *slog.Logger

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
	running  bool
}

func NewServer(addr, authToken string, svc Service, logger *slog.Logger) *Server {
	s := &Server{
		addr:        addr,
		authToken:   authToken,
		svc:         svc,
		hub:         NewHub(logger),
		mux:         http.NewServeMux(),
		rateLimiter: NewRateLimiter(30, time.Minute),
		logger:      logger,
	}
	s.mux.HandleFunc("POST /start", s.command(s.handleStart))
	s.mux.HandleFunc("POST /stop", s.command(s.handleStop))
	s.mux.HandleFunc("POST /schedule", s.command(s.handleSchedule))
	s.mux.HandleFunc("DELETE /schedule", s.command(s.handleUnschedule))
	s.mux.HandleFunc("GET /status", s.handleStatus)
	s.mux.HandleFunc("GET /log", s.handleLog)
	s.mux.HandleFunc("GET /ws", s.handleWebSocket)
	s.mux.HandleFunc("GET /health", s.handleHealth)
	return s
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

// Start begins serving in the background.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}

	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.addr, err)
	}

	s.listener = ln
	s.server = &http.Server{
		Handler:      s.mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		s.logger.Info("HTTP server starting", "addr", ln.Addr().String())
		if err := s.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Error("HTTP server error", "error", err)
		}
	}()

	s.running = true
	return nil
}

// Addr returns the bound address once started.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return s.addr
	}
	return s.listener.Addr().String()
}

func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}

	s.hub.CloseAll()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.server.Shutdown(ctx); err != nil {
		s.logger.Warn("graceful shutdown failed, forcing close", "error", err)
		if err := s.server.Close(); err != nil {
			return fmt.Errorf("closing server: %w", err)
		}
	}

	s.running = false
	return nil
}

// command wraps state-changing routes with authentication and rate limiting.
func (s *Server) command(next http.HandlerFunc) http.HandlerFunc {
	return s.rateLimiter.Middleware(func(w http.ResponseWriter, r *http.Request) {
		if s.authToken != "" {
			token := r.Header.Get("X-Auth-Token")
			if token == "" {
				token = r.URL.Query().Get("token")
			}
			if token != s.authToken {
				s.logger.Warn("unauthorized request", "path", r.URL.Path, "remote_addr", r.RemoteAddr)
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
		}
		next(w, r)
	})
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	s.svc.Start()
	writeJSON(w, http.StatusAccepted, map[string]string{"command": "start", "status": "sent"})
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	s.svc.Stop()
	writeJSON(w, http.StatusAccepted, map[string]string{"command": "stop", "status": "sent"})
}

type scheduleRequest struct {
	Time   string `json:"time,omitempty"`
	Hour   *int   `json:"hour,omitempty"`
	Minute *int   `json:"minute,omitempty"`
}

type scheduleResponse struct {
	Time string    `json:"time"`
	At   time.Time `json:"at"`
}

func (s *Server) handleSchedule(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(io.LimitReader(r.Body, 1024))
	if err != nil {
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	entry, err := parseSchedule(data)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	at := s.svc.Schedule(entry)
	writeJSON(w, http.StatusOK, scheduleResponse{Time: entry.String(), At: at})
}

func parseSchedule(data []byte) (domain.ScheduleEntry, error) {
	body := strings.TrimSpace(string(data))
	if body == "" {
		return domain.ScheduleEntry{}, fmt.Errorf("%w: empty body", domain.ErrInvalidSchedule)
	}
	if !strings.HasPrefix(body, "{") {
		return domain.ParseScheduleEntry(strings.Trim(body, `"`))
	}

	var req scheduleRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return domain.ScheduleEntry{}, fmt.Errorf("%w: %v", domain.ErrInvalidSchedule, err)
	}
	if req.Time != "" {
		return domain.ParseScheduleEntry(req.Time)
	}
	if req.Hour == nil || req.Minute == nil {
		return domain.ScheduleEntry{}, fmt.Errorf("%w: hour and minute are required", domain.ErrInvalidSchedule)
	}
	return domain.NewScheduleEntry(*req.Hour, *req.Minute)
}

func (s *Server) handleUnschedule(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"cancelled": s.svc.Unschedule()})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st, err := s.svc.Status(r.Context())
	if err != nil {
		s.unavailable(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleLog(w http.ResponseWriter, r *http.Request) {
	lines, err := s.svc.Log(r.Context())
	if err != nil {
		s.unavailable(w, err)
		return
	}

	if strings.Contains(r.Header.Get("Accept"), "application/json") {
		writeJSON(w, http.StatusOK, lines)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	for _, l := range lines {
		fmt.Fprintln(w, l.Text)
	}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	s.hub.Serve(w, r, s.svc.Watch)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	st, err := s.svc.Status(r.Context())
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "not_ready"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":     "ok",
		"connection": st.Connection,
		"clients":    s.hub.Count(),
	})
}

func (s *Server) unavailable(w http.ResponseWriter, err error) {
	if errors.Is(err, application.ErrDisplayClosed) {
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
		return
	}
	s.logger.Error("serving request", "error", err)
	http.Error(w, "internal error", http.StatusInternalServerError)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
