// Package extract detects tax-context entities in free text.
//
// Extraction is pure and rule-based: fixed word lists and regular
// expressions, no I/O and no model calls. A category with no match yields an
// empty slice, never an error. Callers that need a second opinion (e.g. a
// slot answer the rules cannot parse) fall back to the completion provider
// themselves.
package extract

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/balncd/assist/core"
)

// Entities holds every candidate entity detected in one text, each category
// in order of appearance.
type Entities struct {
	States         []string
	Quarters       []core.Quarter
	Years          []int
	FilingStatuses []core.FilingStatus
}

var (
	statePatterns  []*regexp.Regexp // parallel to stateNames
	abbrevPattern  = regexp.MustCompile(`\b[A-Z]{2}\b`)
	quarterPattern = regexp.MustCompile(`(?i)\b(q[1-4]|quarter [1-4]|first quarter|second quarter|third quarter|fourth quarter)\b`)
	yearPattern    = regexp.MustCompile(`\b(20\d{2})\b`)
)

func init() {
	statePatterns = make([]*regexp.Regexp, len(stateNames))
	for i, name := range stateNames {
		statePatterns[i] = regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(name) + `\b`)
	}
}

// Extract detects all entity candidates in text.
func Extract(text string) Entities {
	return Entities{
		States:         States(text),
		Quarters:       Quarters(text),
		Years:          Years(text),
		FilingStatuses: FilingStatuses(text),
	}
}

// States returns canonical state names mentioned in text, in order of first
// appearance. Full names match case-insensitively as whole words; uppercase
// postal abbreviations are consulted only when no full name matched, so that
// tokens like "IN" and "OR" inside ordinary sentences cannot misfire while a
// real state name is present.
func States(text string) []string {
	type hit struct {
		pos, end int
		name     string
	}
	var hits []hit
	for i, pat := range statePatterns {
		if loc := pat.FindStringIndex(text); loc != nil {
			hits = append(hits, hit{pos: loc[0], end: loc[1], name: stateNames[i]})
		}
	}
	if len(hits) > 0 {
		// A name nested inside a longer one is not a separate mention:
		// "West Virginia" must not also yield "Virginia".
		kept := make([]hit, 0, len(hits))
		for _, h := range hits {
			contained := false
			for _, other := range hits {
				if other.name != h.name && other.pos <= h.pos && h.end <= other.end {
					contained = true
					break
				}
			}
			if !contained {
				kept = append(kept, h)
			}
		}
		hits = kept

		// Order by position in the text.
		for i := 1; i < len(hits); i++ {
			for j := i; j > 0 && hits[j].pos < hits[j-1].pos; j-- {
				hits[j], hits[j-1] = hits[j-1], hits[j]
			}
		}
		names := make([]string, 0, len(hits))
		for _, h := range hits {
			names = append(names, h.name)
		}
		return names
	}

	var names []string
	seen := make(map[string]bool)
	for _, tok := range abbrevPattern.FindAllString(text, -1) {
		if name, ok := stateAbbreviations[tok]; ok && !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	return names
}

// Quarters returns canonical quarters mentioned in text, in order of
// appearance, de-duplicated with the first mention winning.
func Quarters(text string) []core.Quarter {
	var quarters []core.Quarter
	seen := make(map[core.Quarter]bool)
	for _, m := range quarterPattern.FindAllString(text, -1) {
		q := canonicalQuarter(strings.ToLower(m))
		if q != "" && !seen[q] {
			seen[q] = true
			quarters = append(quarters, q)
		}
	}
	return quarters
}

func canonicalQuarter(m string) core.Quarter {
	switch {
	case strings.Contains(m, "q1"), strings.Contains(m, "first"), strings.Contains(m, "quarter 1"):
		return core.Q1
	case strings.Contains(m, "q2"), strings.Contains(m, "second"), strings.Contains(m, "quarter 2"):
		return core.Q2
	case strings.Contains(m, "q3"), strings.Contains(m, "third"), strings.Contains(m, "quarter 3"):
		return core.Q3
	case strings.Contains(m, "q4"), strings.Contains(m, "fourth"), strings.Contains(m, "quarter 4"):
		return core.Q4
	}
	return ""
}

// Years returns every four-digit 20xx token in text, in order of appearance.
func Years(text string) []int {
	var years []int
	for _, m := range yearPattern.FindAllString(text, -1) {
		y, err := strconv.Atoi(m)
		if err != nil {
			continue
		}
		years = append(years, y)
	}
	return years
}

// FilingStatuses detects a filing status via an ordered rule cascade; the
// first satisfied rule wins and at most one status is returned. Bare
// "married" with no joint/separate qualifier deliberately resolves to
// Married Filing Jointly.
func FilingStatuses(text string) []core.FilingStatus {
	lower := strings.ToLower(text)
	has := func(s string) bool { return strings.Contains(lower, s) }

	switch {
	case has("married") && has("joint"):
		return []core.FilingStatus{core.FilingMarriedFilingJointly}
	case has("married") && has("separate"):
		return []core.FilingStatus{core.FilingMarriedFilingSeparately}
	case has("single"):
		return []core.FilingStatus{core.FilingSingle}
	case has("head") && has("household"):
		return []core.FilingStatus{core.FilingHeadOfHousehold}
	case has("married"):
		return []core.FilingStatus{core.FilingMarriedFilingJointly}
	}
	return nil
}
