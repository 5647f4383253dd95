package sessionio

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/banshee-data/trialviewer/internal/trials"
)

// ErrMalformedTrialFile is returned for a trials CSV that cannot be parsed.
var ErrMalformedTrialFile = errors.New("malformed trials file")

// trialColumns is the header written by WriteTrialsCSV.
var trialColumns = []string{"start", "stim_on", "feedback", "right", "contrast", "correct"}

// headerAliases accepts the camelCase column names of older exports.
var headerAliases = map[string]string{
	"stimon":   "stim_on",
	"stim_on":  "stim_on",
	"start":    "start",
	"feedback": "feedback",
	"right":    "right",
	"contrast": "contrast",
	"correct":  "correct",
}

// ReadTrialsCSV parses trial records from a CSV with a header row. Columns may
// appear in any order; extra columns are ignored.
func ReadTrialsCSV(r io.Reader) ([]trials.Record, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: reading header: %v", ErrMalformedTrialFile, err)
	}
	col := make(map[string]int, len(header))
	for i, h := range header {
		if name, ok := headerAliases[strings.ToLower(strings.TrimSpace(h))]; ok {
			col[name] = i
		}
	}
	for _, name := range trialColumns {
		if _, ok := col[name]; !ok {
			return nil, fmt.Errorf("%w: missing column %q", ErrMalformedTrialFile, name)
		}
	}

	var out []trials.Record
	for line := 2; ; line++ {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrMalformedTrialFile, line, err)
		}
		rec, err := parseTrialRow(row, col)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrMalformedTrialFile, line, err)
		}
		out = append(out, rec)
	}
	return out, nil
}

func parseTrialRow(row []string, col map[string]int) (trials.Record, error) {
	var rec trials.Record
	var err error
	field := func(name string) string {
		return strings.TrimSpace(row[col[name]])
	}

	if rec.Start, err = parseFrame(field("start")); err != nil {
		return rec, fmt.Errorf("start: %w", err)
	}
	if rec.StimOn, err = parseFrame(field("stim_on")); err != nil {
		return rec, fmt.Errorf("stim_on: %w", err)
	}
	if rec.Feedback, err = parseFrame(field("feedback")); err != nil {
		return rec, fmt.Errorf("feedback: %w", err)
	}
	if rec.Right, err = strconv.ParseBool(field("right")); err != nil {
		return rec, fmt.Errorf("right: %w", err)
	}
	contrast, err := strconv.ParseFloat(field("contrast"), 32)
	if err != nil {
		return rec, fmt.Errorf("contrast: %w", err)
	}
	rec.Contrast = float32(contrast)
	if rec.Correct, err = strconv.ParseBool(field("correct")); err != nil {
		return rec, fmt.Errorf("correct: %w", err)
	}
	return rec, nil
}

// parseFrame accepts integral values written as floats ("120.0").
func parseFrame(s string) (int, error) {
	if n, err := strconv.Atoi(s); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if f != float64(int(f)) {
		return 0, fmt.Errorf("frame %q is not integral", s)
	}
	return int(f), nil
}

// WriteTrialsCSV writes records with the canonical header.
func WriteTrialsCSV(w io.Writer, records []trials.Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(trialColumns); err != nil {
		return err
	}
	for _, r := range records {
		row := []string{
			strconv.Itoa(r.Start),
			strconv.Itoa(r.StimOn),
			strconv.Itoa(r.Feedback),
			strconv.FormatBool(r.Right),
			strconv.FormatFloat(float64(r.Contrast), 'g', -1, 32),
			strconv.FormatBool(r.Correct),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
