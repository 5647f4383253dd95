package api

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/banshee-data/trialviewer/internal/catalog"
	"github.com/banshee-data/trialviewer/internal/charts"
	"github.com/banshee-data/trialviewer/internal/httputil"
	"github.com/banshee-data/trialviewer/internal/security"
	"github.com/banshee-data/trialviewer/internal/timeseries"
	"github.com/banshee-data/trialviewer/internal/trials"
)

// SessionDetails describes the loaded session.
type SessionDetails struct {
	ID       string                     `json:"id,omitempty"`
	Name     string                     `json:"name"`
	Frames   int                        `json:"frames"`
	Duration float64                    `json:"duration"`
	FPS      float64                    `json:"fps"`
	Trials   int                        `json:"trials"`
	Correct  int                        `json:"correct"`
	Accuracy []charts.ContrastAccuracy `json:"accuracy"`
	Channels []catalog.ChannelStats     `json:"channels"`
}

// TrialDetails describes one trial of the loaded session.
type TrialDetails struct {
	N int `json:"n"`
	trials.Record
	NextStart    int     `json:"next_start"`
	Duration     float64 `json:"duration"`
	ResponseTime float64 `json:"response_time"`
}

type trialRow struct {
	N int `json:"n"`
	trials.Record
}

// CatalogSession is a catalog entry with its channel summaries.
type CatalogSession struct {
	catalog.SessionInfo
	Channels []catalog.ChannelStats `json:"channels"`
}

// spanDuration sums the frame durations of [from, to).
func spanDuration(store *timeseries.Store, from, to int) float64 {
	total := 0.0
	for f := max(from, 0); f < min(to, store.Len()); f++ {
		d, err := store.Get(timeseries.FrameDuration, f)
		if err != nil {
			return total
		}
		total += float64(d)
	}
	return total
}

func sessionDuration(store *timeseries.Store) float64 {
	return spanDuration(store, 0, store.Len())
}

// sessionFPS is the mean master frame rate, falling back to the configured
// video rate for a session without timing.
func (s *Server) sessionFPS() float64 {
	if d := sessionDuration(s.session.Store); d > 0 {
		return float64(s.session.Store.Len()) / d
	}
	if s.cfg != nil {
		return s.cfg.GetVideoFPS()
	}
	return 60
}

func (s *Server) showSession(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	store, index := s.session.Store, s.session.Index
	details := SessionDetails{
		ID:       s.session.ID,
		Name:     s.session.Name,
		Frames:   store.Len(),
		Duration: sessionDuration(store),
		FPS:      s.sessionFPS(),
		Trials:   index.Count(),
		Accuracy: charts.AccuracyByContrast(index.Records()),
	}
	for _, rec := range index.Records() {
		if rec.Correct {
			details.Correct++
		}
	}
	for _, name := range store.Names() {
		values, err := store.Channel(name)
		if err != nil {
			writeError(w, err)
			return
		}
		details.Channels = append(details.Channels, catalog.Summarize(name, values))
	}
	httputil.WriteJSONOK(w, details)
}

func (s *Server) showSessionChart(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	var buf bytes.Buffer
	if err := charts.RenderSessionPage(&buf, s.session.Name, s.session.Index.Records(), s.sessionFPS()); err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	buf.WriteTo(w)
}

func (s *Server) listTrials(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	records := s.session.Index.Records()
	rows := make([]trialRow, len(records))
	for i, rec := range records {
		rows[i] = trialRow{N: i, Record: rec}
	}
	httputil.WriteJSONOK(w, rows)
}

func (s *Server) trace(r *http.Request) (charts.Trace, error) {
	n, err := trialParam(r)
	if err != nil {
		return charts.Trace{}, err
	}
	return charts.TraceTrial(s.session.Store, s.session.Index, s.session.Geometry, n)
}

func (s *Server) showTrial(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	tr, err := s.trace(r)
	if err != nil {
		writeError(w, err)
		return
	}
	store := s.session.Store
	next := tr.Record.Start + len(tr.Frames)
	details := TrialDetails{
		N:            tr.TrialNo,
		Record:       tr.Record,
		NextStart:    next,
		Duration:     spanDuration(store, tr.Record.Start, next),
		ResponseTime: spanDuration(store, tr.Record.StimOn, tr.Record.Feedback),
	}
	httputil.WriteJSONOK(w, details)
}

func (s *Server) showTrialChart(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	tr, err := s.trace(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var buf bytes.Buffer
	if err := charts.RenderTracePage(&buf, s.session.Name, tr); err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	buf.WriteTo(w)
}

func (s *Server) showTrialPlot(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	tr, err := s.trace(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var buf bytes.Buffer
	if err := charts.WriteTracePNG(&buf, s.session.Name, tr); err != nil {
		writeError(w, err)
		return
	}
	filename := security.SanitizeFilename(fmt.Sprintf("%s_trial%d", s.session.Name, tr.TrialNo)) + ".png"
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", filename))
	buf.WriteTo(w)
}

func (s *Server) listSessions(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	sessions, err := s.catalog.Sessions(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if sessions == nil {
		sessions = []catalog.SessionInfo{}
	}
	httputil.WriteJSONOK(w, sessions)
}

func (s *Server) showCatalogSession(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	info, err := s.catalog.Resolve(r.Context(), r.PathValue("ref"))
	if err != nil {
		writeError(w, err)
		return
	}
	stats, err := s.catalog.ChannelStats(r.Context(), info.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.WriteJSONOK(w, CatalogSession{SessionInfo: info, Channels: stats})
}
