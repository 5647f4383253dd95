package media

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/banshee-data/trialviewer/internal/timeutil"
)

// DefaultURLTemplate follows the published layout of the scaled session
// videos: {session}_{camera}_scaled.mp4.
const DefaultURLTemplate = "https://viz.internationalbrainlab.org/WebGL/{session}_{camera}_scaled.mp4"

// TrackURL expands a URL template for one session camera. Plain http URLs are
// upgraded to https.
func TrackURL(template, sessionID string, camera TrackID) string {
	if template == "" {
		template = DefaultURLTemplate
	}
	url := strings.NewReplacer("{session}", sessionID, "{camera}", string(camera)).Replace(template)
	if strings.HasPrefix(url, "http://") {
		url = "https://" + strings.TrimPrefix(url, "http://")
	}
	return url
}

// SimConfig configures a SimTrack.
type SimConfig struct {
	URL    string
	Frames int
	FPS    float64
	// PreparePolls is how many readiness polls a Prepare takes to complete.
	PreparePolls int
}

// SimTrack is a clock-driven stand-in for a decoded video. While playing, its
// frame advances at FPS from the moment it became ready. It backs the
// headless server, where no decoder exists.
type SimTrack struct {
	mu    sync.Mutex
	cfg   SimConfig
	clock timeutil.Clock

	base      int // frame at the last seek/stop/start
	prepared  bool
	preparing bool
	pollsLeft int

	playing   bool
	playStart time.Time
}

// NewSimTrack creates a SimTrack. It starts unprepared at frame 0.
func NewSimTrack(cfg SimConfig, clock timeutil.Clock) (*SimTrack, error) {
	if cfg.Frames <= 0 {
		return nil, fmt.Errorf("sim track needs a positive frame count, got %d", cfg.Frames)
	}
	if cfg.FPS <= 0 {
		return nil, fmt.Errorf("sim track needs a positive fps, got %f", cfg.FPS)
	}
	if cfg.PreparePolls < 0 {
		cfg.PreparePolls = 0
	}
	return &SimTrack{cfg: cfg, clock: clock}, nil
}

// URL returns the media URL.
func (s *SimTrack) URL() string {
	return s.cfg.URL
}

// Frame reports the playhead, or NotReady while the track is preparing.
func (s *SimTrack) Frame() Position {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.pollLocked() {
		return NotReady
	}
	return At(s.currentLocked())
}

// Seek moves the playhead and invalidates preparation.
func (s *SimTrack) Seek(frame int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.base = s.clampLocked(frame)
	s.prepared = false
	s.preparing = false
	s.playStart = s.clock.Now()
}

// IsPrepared polls preparation progress.
func (s *SimTrack) IsPrepared() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pollLocked()
}

// Prepare starts preparing at the current playhead. It is a no-op when the
// track is already prepared or preparing.
func (s *SimTrack) Prepare() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.prepared || s.preparing {
		return
	}
	s.preparing = true
	s.pollsLeft = s.cfg.PreparePolls
}

// Play starts advancing the playhead, preparing first if needed.
func (s *SimTrack) Play() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.playing {
		return
	}
	if !s.prepared && !s.preparing {
		s.preparing = true
		s.pollsLeft = s.cfg.PreparePolls
	}
	s.playing = true
	s.playStart = s.clock.Now()
}

// Stop freezes the playhead where it is.
func (s *SimTrack) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.playing {
		return
	}
	if s.prepared {
		s.base = s.currentLocked()
	}
	s.playing = false
}

// Playing reports whether the track is advancing.
func (s *SimTrack) Playing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playing
}

func (s *SimTrack) pollLocked() bool {
	if s.prepared {
		return true
	}
	if !s.preparing {
		return false
	}
	if s.pollsLeft > 0 {
		s.pollsLeft--
		return false
	}
	s.prepared = true
	s.preparing = false
	// playback time starts once the first frame is available
	s.playStart = s.clock.Now()
	return true
}

func (s *SimTrack) currentLocked() int {
	if !s.playing {
		return s.base
	}
	elapsed := s.clock.Since(s.playStart).Seconds()
	return s.clampLocked(s.base + int(elapsed*s.cfg.FPS))
}

func (s *SimTrack) clampLocked(frame int) int {
	if frame < 0 {
		return 0
	}
	if frame >= s.cfg.Frames {
		return s.cfg.Frames - 1
	}
	return frame
}
