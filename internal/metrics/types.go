package metrics

import (
	"fmt"
	"sort"
	"strings"
)

// CategoryMetrics holds the three summary metrics for one bias type (or the
// pooled "overall" bucket), together with the raw counts they were computed
// from.
type CategoryMetrics struct {
	Category string  `json:"category"`
	Items    int     `json:"items"`
	LMS      float64 `json:"lms"`
	SS       float64 `json:"ss"`
	ICAT     float64 `json:"icat"`

	// Raw counts. Comparisons/Preferred are the LMS denominator and
	// numerator; SSTrials/SSPreferred the same for SS. SSPreferred is
	// fractional because an exact stereotype/anti-stereotype tie credits
	// half a trial to either direction.
	Comparisons int     `json:"comparisons"`
	Preferred   int     `json:"preferred"`
	SSTrials    int     `json:"ss_trials"`
	SSPreferred float64 `json:"ss_preferred"`

	// Non-countable comparisons excluded from both numerator and
	// denominator because a required label score was missing.
	SkippedLMS int `json:"skipped_lms"`
	SkippedSS  int `json:"skipped_ss"`
}

// Skipped returns the total non-countable comparisons for the bucket.
func (c CategoryMetrics) Skipped() int {
	return c.SkippedLMS + c.SkippedSS
}

// TrackReport holds per-category and pooled metrics for one scoring track.
type TrackReport struct {
	Track      string            `json:"track"`
	Categories []CategoryMetrics `json:"categories"`
	Overall    CategoryMetrics   `json:"overall"`
}

// Report is the full aggregation output. A nil track means the scorer
// skipped it.
type Report struct {
	Model         string       `json:"model,omitempty"`
	Intrasentence *TrackReport `json:"intrasentence,omitempty"`
	Intersentence *TrackReport `json:"intersentence,omitempty"`
}

// Tracks returns the non-nil track reports in canonical order.
func (r *Report) Tracks() []*TrackReport {
	if r == nil {
		return nil
	}
	var out []*TrackReport
	if r.Intrasentence != nil {
		out = append(out, r.Intrasentence)
	}
	if r.Intersentence != nil {
		out = append(out, r.Intersentence)
	}
	return out
}

// MissingRecordsError reports gold items that have no score record. It is a
// data-integrity failure: the run aborts rather than silently dropping items.
type MissingRecordsError struct {
	Track string
	IDs   []string
}

func (e *MissingRecordsError) Error() string {
	if e == nil {
		return "metrics: missing records <nil>"
	}
	ids := append([]string(nil), e.IDs...)
	sort.Strings(ids)
	return fmt.Sprintf("metrics: %s: %d gold item(s) without a score record: %s",
		e.Track, len(ids), strings.Join(ids, ", "))
}
