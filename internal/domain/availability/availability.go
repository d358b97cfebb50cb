// Package availability measures how much of a requirement window a consultant
// can cover. Windows may recur through an RFC 5545 recurrence rule.
package availability

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/teambition/rrule-go"

	"github.com/okian/staffmatch/internal/domain/model"
)

var (
	// ErrInvalidRule is returned for an unparsable or unsupported recurrence rule.
	ErrInvalidRule = errors.New("invalid recurrence rule")
	// ErrInvalidWindow is returned when the measured window is empty or inverted.
	ErrInvalidWindow = errors.New("invalid window")
)

type interval struct {
	start, end time.Time
}

// Coverage returns the fraction of [start, end) covered by the union of the
// windows, in [0,1]. Overlapping windows are counted once.
func Coverage(windows []model.AvailabilityWindow, start, end time.Time) (float64, error) {
	if !end.After(start) {
		return 0, fmt.Errorf("%w: %s..%s", ErrInvalidWindow, start.Format(time.RFC3339), end.Format(time.RFC3339))
	}

	spans := make([]interval, 0, len(windows))
	for i, w := range windows {
		expanded, err := expand(w, start, end)
		if err != nil {
			return 0, fmt.Errorf("availability[%d]: %w", i, err)
		}
		spans = append(spans, expanded...)
	}

	covered := union(spans)
	ratio := float64(covered) / float64(end.Sub(start))
	if ratio > 1 {
		ratio = 1
	}
	return ratio, nil
}

// Overlaps reports whether any window intersects [start, end).
func Overlaps(windows []model.AvailabilityWindow, start, end time.Time) (bool, error) {
	c, err := Coverage(windows, start, end)
	if err != nil {
		return false, err
	}
	return c > 0, nil
}

// expand returns the occurrences of w clipped to [from, to).
func expand(w model.AvailabilityWindow, from, to time.Time) ([]interval, error) {
	if !w.End.After(w.Start) {
		return nil, nil
	}
	if w.RRule == "" {
		if iv, ok := clip(interval{w.Start, w.End}, from, to); ok {
			return []interval{iv}, nil
		}
		return nil, nil
	}

	rule, err := rrule.StrToRRule(w.RRule)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalidRule, w.RRule, err)
	}
	if rule.OrigOptions.Freq > rrule.HOURLY {
		return nil, fmt.Errorf("%w: %q: frequency finer than hourly", ErrInvalidRule, w.RRule)
	}
	rule.DTStart(w.Start)

	d := w.End.Sub(w.Start)
	var out []interval
	// An occurrence starting up to d before the window still overlaps it.
	for _, occ := range rule.Between(from.Add(-d), to, true) {
		if iv, ok := clip(interval{occ, occ.Add(d)}, from, to); ok {
			out = append(out, iv)
		}
	}
	return out, nil
}

func clip(iv interval, from, to time.Time) (interval, bool) {
	if iv.start.Before(from) {
		iv.start = from
	}
	if iv.end.After(to) {
		iv.end = to
	}
	return iv, iv.end.After(iv.start)
}

// union returns the total length covered by spans.
func union(spans []interval) time.Duration {
	if len(spans) == 0 {
		return 0
	}
	sort.Slice(spans, func(i, j int) bool { return spans[i].start.Before(spans[j].start) })

	var total time.Duration
	cur := spans[0]
	for _, s := range spans[1:] {
		if s.start.After(cur.end) {
			total += cur.end.Sub(cur.start)
			cur = s
			continue
		}
		if s.end.After(cur.end) {
			cur.end = s.end
		}
	}
	return total + cur.end.Sub(cur.start)
}
