package catalog

import (
	"context"
	"math"
	"sort"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// ChannelStats summarises one stored channel.
type ChannelStats struct {
	Name   string  `json:"name"`
	Frames int     `json:"frames"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`
	// NaN counts missing samples; they are excluded from the other figures.
	NaN int `json:"nan"`
}

// Summarize computes stats for one channel.
func Summarize(name string, values []float32) ChannelStats {
	st := ChannelStats{Name: name, Frames: len(values)}
	data := make([]float64, 0, len(values))
	for _, v := range values {
		if math.IsNaN(float64(v)) {
			st.NaN++
			continue
		}
		data = append(data, float64(v))
	}
	if len(data) == 0 {
		return st
	}
	st.Min = floats.Min(data)
	st.Max = floats.Max(data)
	st.Mean, st.StdDev = stat.MeanStdDev(data, nil)
	if len(data) == 1 {
		st.StdDev = 0
	}
	return st
}

// ChannelStats summarises every channel of a session, sorted by name.
func (c *Catalog) ChannelStats(ctx context.Context, id uuid.UUID) ([]ChannelStats, error) {
	s, err := c.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	out := make([]ChannelStats, 0, len(s.Channels))
	for name, values := range s.Channels {
		out = append(out, Summarize(name, values))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
