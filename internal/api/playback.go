package api

import (
	"context"
	"net/http"

	"github.com/banshee-data/trialviewer/internal/config"
	"github.com/banshee-data/trialviewer/internal/httputil"
)

func allow(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		httputil.MethodNotAllowed(w)
		return false
	}
	return true
}

func (s *Server) showState(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	httputil.WriteJSONOK(w, s.ctrl.Snapshot())
}

func (s *Server) showURLs(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	httputil.WriteJSONOK(w, s.ctrl.URLs())
}

func (s *Server) showConfig(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	cfg := s.cfg
	if cfg == nil {
		cfg = config.DefaultViewerConfig()
	}
	httputil.WriteJSONOK(w, cfg)
}

// command wraps a host-driven operation. The response is the snapshot
// published once the runner has applied it.
func (s *Server) command(fn func(context.Context, *http.Request) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !allow(w, r, http.MethodPost) {
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
		defer cancel()

		if err := fn(ctx, r); err != nil {
			logf("%s: %v", r.URL.Path, err)
			writeError(w, err)
			return
		}
		httputil.WriteJSONOK(w, s.ctrl.Snapshot())
	}
}

func (s *Server) gotoTrial(ctx context.Context, r *http.Request) error {
	n, err := trialParam(r)
	if err != nil {
		return err
	}
	return s.ctrl.GotoTrial(ctx, n)
}
