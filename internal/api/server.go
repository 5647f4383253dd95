// Package api serves playback state, navigation and session figures over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/banshee-data/trialviewer/internal/catalog"
	"github.com/banshee-data/trialviewer/internal/config"
	"github.com/banshee-data/trialviewer/internal/httputil"
	"github.com/banshee-data/trialviewer/internal/monitoring"
	"github.com/banshee-data/trialviewer/internal/playback"
	"github.com/banshee-data/trialviewer/internal/timeseries"
	"github.com/banshee-data/trialviewer/internal/trials"
	"github.com/banshee-data/trialviewer/internal/wheel"
)

// ANSI escape codes for cyan and reset
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

var logf = monitoring.Tagged("api")

// errBadRequest marks malformed request input.
var errBadRequest = errors.New("bad request")

// Session is the session currently loaded into the playback runner.
type Session struct {
	ID       string
	Name     string
	Store    *timeseries.Store
	Index    *trials.Index
	Geometry wheel.Geometry
}

// Server holds the dependencies of the HTTP handlers. Catalog may be nil when
// serving a session that was never imported.
type Server struct {
	ctrl    playback.Controller
	session Session
	catalog *catalog.Catalog
	cfg     *config.ViewerConfig
	timeout time.Duration
}

// NewServer returns a server for the session driven by ctrl.
func NewServer(ctrl playback.Controller, session Session, cat *catalog.Catalog) *Server {
	return &Server{
		ctrl:    ctrl,
		session: session,
		catalog: cat,
		timeout: 5 * time.Second,
	}
}

// SetConfig exposes cfg on /api/config.
func (s *Server) SetConfig(cfg *config.ViewerConfig) {
	s.cfg = cfg
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, query, status, and duration
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		logf(
			"%s %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

// ServeMux returns the API routes. Catalog routes are only mounted when a
// catalog is attached.
func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/state", s.showState)
	mux.HandleFunc("/api/urls", s.showURLs)
	mux.HandleFunc("/api/config", s.showConfig)
	mux.HandleFunc("/api/play", s.command(func(ctx context.Context, _ *http.Request) error { return s.ctrl.Play(ctx) }))
	mux.HandleFunc("/api/stop", s.command(func(ctx context.Context, _ *http.Request) error { return s.ctrl.Stop(ctx) }))
	mux.HandleFunc("/api/next", s.command(func(ctx context.Context, _ *http.Request) error { return s.ctrl.NextTrial(ctx) }))
	mux.HandleFunc("/api/prev", s.command(func(ctx context.Context, _ *http.Request) error { return s.ctrl.PrevTrial(ctx) }))
	mux.HandleFunc("/api/goto/{n}", s.command(s.gotoTrial))

	mux.HandleFunc("/api/session", s.showSession)
	mux.HandleFunc("/api/session/chart", s.showSessionChart)
	mux.HandleFunc("/api/trials", s.listTrials)
	mux.HandleFunc("/api/trials/{n}", s.showTrial)
	mux.HandleFunc("/api/trials/{n}/chart", s.showTrialChart)
	mux.HandleFunc("/api/trials/{n}/plot.png", s.showTrialPlot)

	if s.catalog != nil {
		mux.HandleFunc("/api/sessions", s.listSessions)
		mux.HandleFunc("/api/sessions/{ref}", s.showCatalogSession)
	}
	return mux
}

// errorStatuses maps domain errors onto status codes. Anything else is a 500.
var errorStatuses = []httputil.ErrorStatus{
	{Err: errBadRequest, Status: http.StatusBadRequest},
	{Err: trials.ErrTrialOutOfRange, Status: http.StatusBadRequest},
	{Err: playback.ErrNavigationBoundary, Status: http.StatusConflict},
	{Err: playback.ErrNotLoaded, Status: http.StatusConflict},
	{Err: catalog.ErrSessionNotFound, Status: http.StatusNotFound},
	{Err: playback.ErrRunnerStopped, Status: http.StatusServiceUnavailable},
}

func writeError(w http.ResponseWriter, err error) {
	httputil.WriteError(w, err, errorStatuses)
}

// trialParam parses the {n} path value.
func trialParam(r *http.Request) (int, error) {
	n, err := strconv.Atoi(r.PathValue("n"))
	if err != nil {
		return 0, fmt.Errorf("%w: trial number %q is not an integer", errBadRequest, r.PathValue("n"))
	}
	return n, nil
}
