// Package trials holds the ordered trial records of a session and answers
// bounds and lookup questions about them.
package trials

import (
	"errors"
	"fmt"
	"sort"
)

var (
	// ErrTrialOutOfRange is returned for a trial number outside [0, Count()).
	ErrTrialOutOfRange = errors.New("trial out of range")
	// ErrMalformedTrialSequence is returned when records break the ordering invariants.
	ErrMalformedTrialSequence = errors.New("malformed trial sequence")
)

// Record is one behavioural episode. Start, StimOn and Feedback are master
// frame indices.
type Record struct {
	Start    int     `json:"start"`
	StimOn   int     `json:"stim_on"`
	Feedback int     `json:"feedback"`
	Right    bool    `json:"right"`
	Contrast float32 `json:"contrast"`
	Correct  bool    `json:"correct"`
}

// Index is an immutable, validated, 0-indexed trial list.
type Index struct {
	records []Record
}

// NewIndex validates records and wraps them in an Index. Invalid input is
// rejected, never repaired.
func NewIndex(records []Record) (*Index, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: no trials", ErrMalformedTrialSequence)
	}
	for i, r := range records {
		if r.Start < 0 {
			return nil, fmt.Errorf("%w: trial %d starts at negative frame %d", ErrMalformedTrialSequence, i, r.Start)
		}
		if r.Start > r.StimOn || r.StimOn > r.Feedback {
			return nil, fmt.Errorf("%w: trial %d has start=%d stim_on=%d feedback=%d",
				ErrMalformedTrialSequence, i, r.Start, r.StimOn, r.Feedback)
		}
		if r.Contrast < 0 || r.Contrast > 1 {
			return nil, fmt.Errorf("%w: trial %d contrast %.3f outside [0,1]", ErrMalformedTrialSequence, i, r.Contrast)
		}
		if i > 0 && records[i-1].Start >= r.Start {
			return nil, fmt.Errorf("%w: trial %d start %d does not follow trial %d start %d",
				ErrMalformedTrialSequence, i, r.Start, i-1, records[i-1].Start)
		}
	}
	return &Index{records: append([]Record(nil), records...)}, nil
}

// ValidateAgainst checks that the last trial's feedback lies within a session
// of the given number of frames.
func (x *Index) ValidateAgainst(frames int) error {
	last := x.records[len(x.records)-1]
	if last.Feedback > frames {
		return fmt.Errorf("%w: last feedback frame %d exceeds %d session frames",
			ErrMalformedTrialSequence, last.Feedback, frames)
	}
	return nil
}

// Count returns the number of trials.
func (x *Index) Count() int {
	return len(x.records)
}

// Contains reports whether n is a valid trial number.
func (x *Index) Contains(n int) bool {
	return n >= 0 && n < len(x.records)
}

// RecordAt returns trial n.
func (x *Index) RecordAt(n int) (Record, error) {
	if !x.Contains(n) {
		return Record{}, fmt.Errorf("%w: %d not in [0, %d)", ErrTrialOutOfRange, n, len(x.records))
	}
	return x.records[n], nil
}

// IsFirst reports whether n is the first trial; prev-navigation is disabled there.
func (x *Index) IsFirst(n int) bool {
	return n == 0
}

// IsLast reports whether n is the last trial; next-navigation is disabled there.
func (x *Index) IsLast(n int) bool {
	return n == len(x.records)-1
}

// Records returns a copy of all records.
func (x *Index) Records() []Record {
	return append([]Record(nil), x.records...)
}

// Locate returns the trial whose [Start, next.Start) span contains frame.
// Frames before the first trial report false.
func (x *Index) Locate(frame int) (int, bool) {
	// first trial starting after frame
	i := sort.Search(len(x.records), func(i int) bool {
		return x.records[i].Start > frame
	})
	if i == 0 {
		return 0, false
	}
	return i - 1, true
}
