// Package sessionio reads and writes recorded sessions on disk: a trials CSV
// plus one "<session>.<channel>.bytes" file of little-endian float32 values
// per channel.
package sessionio

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/c2h5oh/datasize"

	"github.com/banshee-data/trialviewer/internal/monitoring"
	"github.com/banshee-data/trialviewer/internal/timeseries"
	"github.com/banshee-data/trialviewer/internal/trials"
)

var logf = monitoring.Tagged("sessionio")

const channelExt = ".bytes"

// Session is a recording as found on disk.
type Session struct {
	Name     string
	Trials   []trials.Record
	Channels map[string][]float32
	// Bytes is the total size of the channel payloads.
	Bytes int64
}

// TrialsPath returns where the trials CSV of session name lives in dir.
func TrialsPath(dir, name string) string {
	return filepath.Join(dir, name+".trials.csv")
}

// ChannelPath returns where one channel of session name lives in dir.
func ChannelPath(dir, name, channel string) string {
	return filepath.Join(dir, name+"."+channel+channelExt)
}

// LoadDir reads session name from dir. Channel files may use either the
// canonical names or the legacy suffixes of the original recordings; two
// files resolving to the same channel are an error.
func LoadDir(dir, name string) (*Session, error) {
	f, err := os.Open(TrialsPath(dir, name))
	if err != nil {
		return nil, fmt.Errorf("opening trials: %w", err)
	}
	defer f.Close()
	recs, err := ReadTrialsCSV(f)
	if err != nil {
		return nil, err
	}

	paths, err := filepath.Glob(filepath.Join(dir, name+".*"+channelExt))
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)

	s := &Session{Name: name, Trials: recs, Channels: make(map[string][]float32)}
	source := make(map[string]string)
	for _, p := range paths {
		suffix := strings.TrimSuffix(strings.TrimPrefix(filepath.Base(p), name+"."), channelExt)
		channel := timeseries.CanonicalName(suffix)
		if prev, dup := source[channel]; dup {
			return nil, fmt.Errorf("channel %q provided by both %s and %s", channel, filepath.Base(prev), filepath.Base(p))
		}

		payload, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", filepath.Base(p), err)
		}
		values, err := timeseries.Decode(payload)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filepath.Base(p), err)
		}
		source[channel] = p
		s.Channels[channel] = values
		s.Bytes += int64(len(payload))
		logf("loaded %s as %s: %d floats (%s)", filepath.Base(p), channel, len(values),
			datasize.ByteSize(len(payload)).HumanReadable())
	}
	if len(s.Channels) == 0 {
		return nil, fmt.Errorf("no %s channel files for session %q in %s", channelExt, name, dir)
	}

	logf("session %s: %d trials, %d channels, %s", name, len(recs), len(s.Channels),
		datasize.ByteSize(s.Bytes).HumanReadable())
	return s, nil
}

// WriteDir writes s to dir using canonical channel names.
func WriteDir(dir string, s *Session) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := WriteTrialsCSV(&buf, s.Trials); err != nil {
		return err
	}
	if err := os.WriteFile(TrialsPath(dir, s.Name), buf.Bytes(), 0o644); err != nil {
		return err
	}
	for name, values := range s.Channels {
		if err := os.WriteFile(ChannelPath(dir, s.Name, name), timeseries.Encode(values), 0o644); err != nil {
			return err
		}
	}
	return nil
}

// Open builds the validated store and trial index for s.
func (s *Session) Open() (*timeseries.Store, *trials.Index, error) {
	store, err := timeseries.New(s.Channels)
	if err != nil {
		return nil, nil, err
	}
	if err := store.Require(timeseries.Required()...); err != nil {
		return nil, nil, err
	}
	index, err := trials.NewIndex(s.Trials)
	if err != nil {
		return nil, nil, err
	}
	if err := index.ValidateAgainst(store.Len()); err != nil {
		return nil, nil, err
	}
	return store, index, nil
}
