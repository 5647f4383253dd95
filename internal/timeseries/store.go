// Package timeseries holds the per-frame numeric channels of a recorded
// session. A Store is built once at load time and is read-only afterwards.
package timeseries

import (
	"errors"
	"fmt"
	"sort"
)

var (
	// ErrOutOfRange is returned for a frame index outside [0, Len()).
	ErrOutOfRange = errors.New("frame index out of range")
	// ErrUnknownChannel is returned when a channel name was never loaded.
	ErrUnknownChannel = errors.New("unknown channel")
	// ErrChannelLengthMismatch is returned when channels of one session differ in length.
	ErrChannelLengthMismatch = errors.New("channel length mismatch")
	// ErrMalformedChannelData is returned for payloads that are not a whole number of float32s.
	ErrMalformedChannelData = errors.New("malformed channel data")
)

// Store is an immutable snapshot of named channels that all share one length,
// the number of master frames in the session.
type Store struct {
	channels map[string][]float32
	length   int
}

// New copies the given channels into a Store. Every channel must have the
// same length.
func New(channels map[string][]float32) (*Store, error) {
	s := &Store{channels: make(map[string][]float32, len(channels))}

	// Iterate in name order so the reported mismatch is deterministic.
	names := make([]string, 0, len(channels))
	for name := range channels {
		names = append(names, name)
	}
	sort.Strings(names)

	for i, name := range names {
		data := channels[name]
		if i == 0 {
			s.length = len(data)
		} else if len(data) != s.length {
			return nil, fmt.Errorf("%w: %q has %d frames, %q has %d",
				ErrChannelLengthMismatch, name, len(data), names[0], s.length)
		}
		s.channels[name] = append([]float32(nil), data...)
	}
	return s, nil
}

// Get returns the value of channel name at frame.
func (s *Store) Get(name string, frame int) (float32, error) {
	data, ok := s.channels[name]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownChannel, name)
	}
	if frame < 0 || frame >= len(data) {
		return 0, fmt.Errorf("%w: %s[%d] (length %d)", ErrOutOfRange, name, frame, len(data))
	}
	return data[frame], nil
}

// Len returns the number of master frames.
func (s *Store) Len() int {
	return s.length
}

// Has reports whether a channel was loaded.
func (s *Store) Has(name string) bool {
	_, ok := s.channels[name]
	return ok
}

// Require returns ErrUnknownChannel for the first missing name.
func (s *Store) Require(names ...string) error {
	for _, name := range names {
		if !s.Has(name) {
			return fmt.Errorf("%w: required channel %q not loaded", ErrUnknownChannel, name)
		}
	}
	return nil
}

// Names returns the loaded channel names in sorted order.
func (s *Store) Names() []string {
	names := make([]string, 0, len(s.channels))
	for name := range s.channels {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Channel returns a copy of a whole channel, for charting and export.
func (s *Store) Channel(name string) ([]float32, error) {
	data, ok := s.channels[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownChannel, name)
	}
	return append([]float32(nil), data...), nil
}
