package extract

import (
	"reflect"
	"testing"

	"github.com/balncd/assist/core"
)

func TestStates_FullName(t *testing.T) {
	tests := []struct {
		text string
		want []string
	}{
		{"I live in California", []string{"California"}},
		{"what about new york taxes?", []string{"New York"}},
		{"moving from Texas to Washington next year", []string{"Texas", "Washington"}},
		{"tell me about the district of columbia", []string{"District of Columbia"}},
		{"no state here", nil},
	}
	for _, tt := range tests {
		if got := States(tt.text); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("States(%q) = %v, want %v", tt.text, got, tt.want)
		}
	}
}

func TestStates_AbbreviationFallback(t *testing.T) {
	if got := States("I just moved to CA"); !reflect.DeepEqual(got, []string{"California"}) {
		t.Errorf("expected CA to resolve to California, got %v", got)
	}
	// Lowercase two-letter tokens never match.
	if got := States("filing in ca maybe"); got != nil {
		t.Errorf("lowercase abbreviation should not match, got %v", got)
	}
}

func TestStates_AbbreviationDoesNotOverrideFullName(t *testing.T) {
	// "OR" is a valid postal code but "Oregon taxes OR not" contains the
	// full name; the abbreviation pass must not run.
	got := States("Oregon taxes, OR whatever IN means")
	if !reflect.DeepEqual(got, []string{"Oregon"}) {
		t.Errorf("full-name match should suppress abbreviation matching, got %v", got)
	}
}

func TestStates_NestedNameNotDoubleCounted(t *testing.T) {
	// "West Virginia" contains "Virginia"; only the longer mention counts.
	if got := States("moving to West Virginia"); !reflect.DeepEqual(got, []string{"West Virginia"}) {
		t.Errorf("States = %v, want [West Virginia]", got)
	}
	// A separate standalone mention still counts.
	got := States("Virginia first, then West Virginia")
	want := []string{"Virginia", "West Virginia"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("States = %v, want %v", got, want)
	}
}

func TestQuarters(t *testing.T) {
	tests := []struct {
		text string
		want []core.Quarter
	}{
		{"how much for Q2?", []core.Quarter{core.Q2}},
		{"the first quarter was rough", []core.Quarter{core.Q1}},
		{"compare quarter 3 with q3", []core.Quarter{core.Q3}},
		{"fourth quarter and Q1", []core.Quarter{core.Q4, core.Q1}},
		{"quarterly taxes", nil},
	}
	for _, tt := range tests {
		if got := Quarters(tt.text); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("Quarters(%q) = %v, want %v", tt.text, got, tt.want)
		}
	}
}

func TestYears(t *testing.T) {
	got := Years("compare 2023 and 2025, not 1999 or 20256")
	want := []int{2023, 2025}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Years = %v, want %v", got, want)
	}
}

func TestFilingStatuses_Cascade(t *testing.T) {
	tests := []struct {
		text string
		want core.FilingStatus
	}{
		{"we file married filing jointly", core.FilingMarriedFilingJointly},
		{"married filing separately", core.FilingMarriedFilingSeparately},
		{"I'm single", core.FilingSingle},
		{"head of household here", core.FilingHeadOfHousehold},
		// Default-to-joint policy for bare "married".
		{"I'm married", core.FilingMarriedFilingJointly},
	}
	for _, tt := range tests {
		got := FilingStatuses(tt.text)
		if len(got) != 1 || got[0] != tt.want {
			t.Errorf("FilingStatuses(%q) = %v, want [%v]", tt.text, got, tt.want)
		}
	}
	if got := FilingStatuses("tell me about deductions"); got != nil {
		t.Errorf("expected no filing status, got %v", got)
	}
}

func TestExtract_EmptyCategoriesNotErrors(t *testing.T) {
	ents := Extract("hello there")
	if len(ents.States) != 0 || len(ents.Quarters) != 0 || len(ents.Years) != 0 || len(ents.FilingStatuses) != 0 {
		t.Errorf("expected empty extraction, got %+v", ents)
	}
}
