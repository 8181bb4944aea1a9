// Package api serves monitoring snapshots over HTTP.
package api

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/Iron-Ham/netmon/internal/errors"
	"github.com/Iron-Ham/netmon/internal/logging"
	"github.com/Iron-Ham/netmon/internal/monitor"
	"github.com/Iron-Ham/netmon/internal/traffic"
)

const (
	requestTimeout  = 5 * time.Second
	shutdownTimeout = 5 * time.Second
)

// Session is the part of a monitoring session the API reads from.
// *monitor.Session and *monitor.Manager implement it.
type Session interface {
	ID() string
	State() monitor.State
	Err() error
	Snapshot(ctx context.Context) (traffic.Snapshot, error)
	ClearHistory(ctx context.Context) error
}

// Health is the body of GET /api/v1/health.
type Health struct {
	SessionID string `json:"session_id"`
	State     string `json:"state"`
	Error     string `json:"error,omitempty"`
	Windows   uint64 `json:"windows"`
	Processes int    `json:"processes"`
	Uptime    string `json:"uptime"`
}

type errorBody struct {
	Error string `json:"error"`
}

// Server exposes a Session over HTTP.
type Server struct {
	session Session
	logger  *logging.Logger
	router  *mux.Router
	started time.Time
}

// NewServer builds the router for session.
func NewServer(session Session, logger *logging.Logger) *Server {
	if logger == nil {
		logger = logging.NopLogger()
	}
	s := &Server{
		session: session,
		logger:  logger.WithComponent("api"),
		router:  mux.NewRouter(),
		started: time.Now(),
	}

	api := s.router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/snapshot", s.snapshotHandler).Methods(http.MethodGet)
	api.HandleFunc("/processes/{name}/{pid:[0-9]+}", s.processHandler).Methods(http.MethodGet)
	api.HandleFunc("/history/clear", s.clearHistoryHandler).Methods(http.MethodPost)
	api.HandleFunc("/health", s.healthHandler).Methods(http.MethodGet)
	s.router.Use(s.logRequests)

	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Serve accepts connections on ln until ctx is done, then shuts down
// gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	server := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: requestTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("API server listening", "addr", ln.Addr().String())
		errCh <- server.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	s.logger.Info("API server shutting down")
	if err := server.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "API server forced to shut down")
	}
	return nil
}

// ListenAndServe listens on addr and calls Serve.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.Wrapf(err, "could not listen on %s", addr)
	}
	return s.Serve(ctx, ln)
}

// snapshotHandler returns the current snapshot. Optional query
// parameters: sort (in, out, name, pid, conns), order (asc, desc),
// limit (positive integer) and min_rate (bytes per second).
func (s *Server) snapshotHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	key, err := traffic.ParseSortKey(q.Get("sort"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	desc := q.Get("order") != "asc"

	limit := 0
	if v := q.Get("limit"); v != "" {
		limit, err = strconv.Atoi(v)
		if err != nil || limit < 0 {
			s.writeError(w, http.StatusBadRequest, errors.New("limit must be a non-negative integer"))
			return
		}
	}

	var minRate float64
	if v := q.Get("min_rate"); v != "" {
		minRate, err = strconv.ParseFloat(v, 64)
		if err != nil || minRate < 0 {
			s.writeError(w, http.StatusBadRequest, errors.New("min_rate must be a non-negative number"))
			return
		}
	}

	snap, ok := s.snapshot(w, r)
	if !ok {
		return
	}

	snap.Processes = traffic.Active(snap.Processes, minRate)
	traffic.SortProcesses(snap.Processes, key, desc)
	if limit > 0 && len(snap.Processes) > limit {
		snap.Processes = snap.Processes[:limit]
	}
	s.writeJSON(w, http.StatusOK, snap)
}

func (s *Server) processHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	pid, err := strconv.Atoi(vars["pid"])
	if err != nil {
		s.writeError(w, http.StatusBadRequest, errors.New("pid must be an integer"))
		return
	}
	key := traffic.ProcessKey{Name: vars["name"], PID: pid}

	snap, ok := s.snapshot(w, r)
	if !ok {
		return
	}
	view, found := snap.Lookup(key)
	if !found {
		s.writeError(w, http.StatusNotFound, errors.New("process "+key.String()+" is not being tracked"))
		return
	}
	s.writeJSON(w, http.StatusOK, view)
}

func (s *Server) clearHistoryHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	if err := s.session.ClearHistory(ctx); err != nil {
		status := http.StatusServiceUnavailable
		if errors.Is(err, errors.ErrSessionStopped) {
			status = http.StatusConflict
		}
		s.writeError(w, status, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	h := Health{
		SessionID: s.session.ID(),
		State:     s.session.State().String(),
		Uptime:    time.Since(s.started).Round(time.Second).String(),
	}
	if err := s.session.Err(); err != nil {
		h.Error = err.Error()
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	if snap, err := s.session.Snapshot(ctx); err == nil {
		h.Windows = snap.Window
		h.Processes = snap.Len()
	}

	status := http.StatusOK
	if s.session.State() == monitor.StateFailed {
		status = http.StatusServiceUnavailable
	}
	s.writeJSON(w, status, h)
}

func (s *Server) snapshot(w http.ResponseWriter, r *http.Request) (traffic.Snapshot, bool) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	snap, err := s.session.Snapshot(ctx)
	if err != nil {
		s.writeError(w, http.StatusServiceUnavailable, err)
		return traffic.Snapshot{}, false
	}
	return snap, true
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		s.logger.Error("failed to marshal response", "error", err.Error())
		http.Error(w, "failed to marshal response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(body); err != nil {
		s.logger.Debug("failed to write response", "error", err.Error())
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.writeJSON(w, status, errorBody{Error: err.Error()})
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug("request served",
			"method", r.Method,
			"path", r.URL.Path,
			"duration", time.Since(start).String(),
		)
	})
}
