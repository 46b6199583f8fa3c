// Package clips turns a date folder of raw match recordings plus a splits
// CSV into the two artifacts the uploader cares about: the uncut full video
// and the goal-highlights reel.
package clips

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
)

const cumulativeTimeColumn = "Cumulative Time"

// ParseTimeToSeconds converts a CSV time value to seconds. Accepted formats:
// HH:MM:SS, MM:SS, or a raw number of seconds.
func ParseTimeToSeconds(s string) (float64, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	switch len(parts) {
	case 3:
		h, err := strconv.Atoi(parts[0])
		if err != nil {
			return 0, fmt.Errorf("bad hours in %q: %w", s, err)
		}
		m, err := strconv.Atoi(parts[1])
		if err != nil {
			return 0, fmt.Errorf("bad minutes in %q: %w", s, err)
		}
		sec, err := strconv.ParseFloat(parts[2], 64)
		if err != nil {
			return 0, fmt.Errorf("bad seconds in %q: %w", s, err)
		}
		return float64(h)*3600 + float64(m)*60 + sec, nil
	case 2:
		m, err := strconv.Atoi(parts[0])
		if err != nil {
			return 0, fmt.Errorf("bad minutes in %q: %w", s, err)
		}
		sec, err := strconv.ParseFloat(parts[1], 64)
		if err != nil {
			return 0, fmt.Errorf("bad seconds in %q: %w", s, err)
		}
		return float64(m)*60 + sec, nil
	case 1:
		sec, err := strconv.ParseFloat(parts[0], 64)
		if err != nil {
			return 0, fmt.Errorf("bad time value %q: %w", s, err)
		}
		return sec, nil
	default:
		return 0, fmt.Errorf("unrecognized time value %q", s)
	}
}

// ReadCumulativeTimes extracts the "Cumulative Time" column from a splits CSV.
func ReadCumulativeTimes(path string) ([]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read CSV header: %w", err)
	}
	col := -1
	for i, name := range header {
		if strings.TrimSpace(name) == cumulativeTimeColumn {
			col = i
			break
		}
	}
	if col < 0 {
		return nil, fmt.Errorf("column %q not found in %s", cumulativeTimeColumn, path)
	}

	var times []float64
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read CSV row: %w", err)
		}
		if col >= len(rec) || strings.TrimSpace(rec[col]) == "" {
			continue
		}
		t, err := ParseTimeToSeconds(rec[col])
		if err != nil {
			return nil, err
		}
		times = append(times, t)
	}
	return times, nil
}

// Window is a subclip interval within the concatenated match video.
type Window struct {
	Start float64
	End   float64
}

// Windows builds one clamped subclip window per timestamp. Windows never
// extend outside [0, duration]; timestamps beyond the duration are skipped.
func Windows(times []float64, before, after, duration float64) []Window {
	var out []Window
	for _, t := range times {
		if t > duration {
			continue
		}
		out = append(out, Window{
			Start: math.Max(t-before, 0),
			End:   math.Min(t+after, duration),
		})
	}
	return out
}
