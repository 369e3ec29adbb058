// Package coverage compares extracted PDF field values against the values
// a filled form is expected to contain.
package coverage

import (
	"fmt"
	"math"
	"strings"

	"github.com/a3tai/sf86-validator/internal/pdf/extraction"
)

// Result is the outcome of one coverage check. MatchedValues and
// MissingValues partition the distinct expected values.
type Result struct {
	MatchedCount  int      `json:"matchedCount"`
	TotalExpected int      `json:"totalExpected"`
	MatchedValues []string `json:"matchedValues"`
	MissingValues []string `json:"missingValues"`
	SummaryText   string   `json:"summaryText"`
}

// Percent returns matched/total as a percentage, 0 when nothing was expected
func (r Result) Percent() float64 {
	if r.TotalExpected == 0 {
		return 0
	}
	return float64(r.MatchedCount) / float64(r.TotalExpected) * 100
}

// Complete reports whether every expected value was found
func (r Result) Complete() bool {
	return r.TotalExpected > 0 && r.MatchedCount == r.TotalExpected
}

// Compute checks each distinct, non-blank expected value against the string
// values of fields. A value matches when a field equals it or contains it.
func Compute(fields []extraction.ExtractedField, expected []string) Result {
	values := make([]string, 0, len(fields))
	for _, f := range fields {
		if s, ok := f.StringValue(); ok && s != "" {
			values = append(values, s)
		}
	}

	res := Result{
		MatchedValues: []string{},
		MissingValues: []string{},
	}
	for _, want := range Distinct(expected) {
		if Matches(values, want) {
			res.MatchedValues = append(res.MatchedValues, want)
		} else {
			res.MissingValues = append(res.MissingValues, want)
		}
	}

	res.MatchedCount = len(res.MatchedValues)
	res.TotalExpected = res.MatchedCount + len(res.MissingValues)
	res.SummaryText = Summary(res.MatchedCount, res.TotalExpected)
	return res
}

// Matches applies the equality-or-substring rule. Substring matching
// over-reports when one expected value is part of unrelated text.
func Matches(values []string, want string) bool {
	for _, v := range values {
		if v == want || strings.Contains(v, want) {
			return true
		}
	}
	return false
}

// Distinct drops empty values and repeats, keeping first occurrences
func Distinct(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v == "" {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// Summary renders the human-readable result line
func Summary(matched, total int) string {
	p := 0.0
	if total > 0 {
		p = float64(matched) / float64(total) * 100
	}
	return fmt.Sprintf("Found %d/%d expected values (%.1f%% success rate)", matched, total, round1(p))
}

func round1(f float64) float64 {
	return math.Round(f*10) / 10
}
