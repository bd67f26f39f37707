package dialogue

import (
	"testing"

	"github.com/balncd/assist/core"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		text string
		want core.QueryType
	}{
		{"How much do I owe in quarterly taxes?", core.QueryTax},
		{"what's my tax bracket", core.QueryTax},
		{"Can I deduct my home office? Deductions confuse me", core.QueryTax},
		{"How much did I earn this quarter?", core.QueryIncome},
		{"what's my total income for 2024", core.QueryIncome},
		{"I earned $5000 last month", core.QueryIncome},
		// Income vocabulary without quantitative intent stays general.
		{"how do I increase my earning potential", core.QueryGeneral},
		{"what's a good budget app?", core.QueryGeneral},
		{"hello there", core.QueryGeneral},
	}
	for _, tt := range tests {
		if got := Classify(tt.text); got != tt.want {
			t.Errorf("Classify(%q) = %q, want %q", tt.text, got, tt.want)
		}
	}
}

func TestIsReset(t *testing.T) {
	if !isReset("let's change the topic") {
		t.Error("expected reset phrase to be detected")
	}
	if !isReset("Forget that, new question") {
		t.Error("expected reset phrase to be detected case-insensitively")
	}
	if isReset("what about my taxes") {
		t.Error("plain question must not count as reset")
	}
}

func TestShiftsDomain(t *testing.T) {
	// Income vocabulary with no tax vocabulary shifts away from tax.
	if !shiftsDomain(core.QueryTax, "how much did I earn in March") {
		t.Error("expected shift from tax to income")
	}
	// Text still in the current domain does not shift.
	if shiftsDomain(core.QueryTax, "and what about my taxes on that income") {
		t.Error("text containing current-domain vocabulary must not shift")
	}
	// Neutral text does not shift.
	if shiftsDomain(core.QueryTax, "thanks, that helps") {
		t.Error("neutral text must not shift")
	}
	// A general previous query never shifts.
	if shiftsDomain(core.QueryGeneral, "how much did I earn") {
		t.Error("general has no vocabulary to shift away from")
	}
}
