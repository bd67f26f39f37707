package handlers

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/balncd/assist/core"
	"github.com/balncd/assist/provider"
)

type fixedCalc struct {
	estimate Estimate
	lastReq  EstimateRequest
}

func (c *fixedCalc) Estimate(ctx context.Context, req EstimateRequest) (*Estimate, error) {
	c.lastReq = req
	est := c.estimate
	return &est, nil
}

func TestTaxRequiresState(t *testing.T) {
	h := NewTax(&fixedCalc{})
	result, err := h.Handle(context.Background(), core.HandlerRequest{
		UserID:   "user-1",
		Question: "how much tax do I owe",
		Context:  core.Context{FilingStatus: core.FilingSingle, Quarter: core.Q2, TaxYear: 2026},
	})
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if result.RequiredSlot != core.SlotState {
		t.Errorf("required slot = %q, want state", result.RequiredSlot)
	}
}

func TestTaxEstimateReply(t *testing.T) {
	calc := &fixedCalc{estimate: Estimate{
		EstimatedTax:   4325.5,
		Federal:        2500,
		StateTax:       825.5,
		SelfEmployment: 1000,
		EffectiveRate:  0.21,
	}}
	h := NewTax(calc)

	result, err := h.Handle(context.Background(), core.HandlerRequest{
		UserID:   "user-1",
		Question: "how much tax do I owe",
		Context: core.Context{
			State:        "California",
			FilingStatus: core.FilingSingle,
			Quarter:      core.Q2,
			TaxYear:      2026,
		},
		Defaulted: []string{"filingStatus", "quarter"},
	})
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}

	if !strings.Contains(result.Text, "$4,325.50") {
		t.Errorf("reply %q missing formatted amount", result.Text)
	}
	if !strings.Contains(result.Text, "California") {
		t.Errorf("reply %q missing state", result.Text)
	}
	// Defaulted slots must be disclosed in the reply.
	if !strings.Contains(result.Text, "filing status") || !strings.Contains(result.Text, "quarter") {
		t.Errorf("reply %q missing defaults disclosure", result.Text)
	}

	if result.Workspace == nil || result.Workspace.Type != "tax_estimate" {
		t.Fatalf("workspace = %+v, want tax_estimate payload", result.Workspace)
	}
	data := result.Workspace.Data.(map[string]any)
	if data["estimatedTax"] != 4325.5 {
		t.Errorf("workspace estimatedTax = %v", data["estimatedTax"])
	}
	if calc.lastReq.State != "California" || calc.lastReq.Quarter != core.Q2 {
		t.Errorf("calculator request = %+v", calc.lastReq)
	}
}

type fixedAnalyzer struct {
	summary IncomeSummary
}

func (a *fixedAnalyzer) Analyze(ctx context.Context, req AnalyzeRequest) (*IncomeSummary, error) {
	s := a.summary
	return &s, nil
}

func TestIncomeReply(t *testing.T) {
	h := NewIncome(&fixedAnalyzer{summary: IncomeSummary{
		Total:      18000,
		Average:    6000,
		Period:     "Q2 2026",
		Highlights: []string{"Your biggest month was May."},
	}})

	result, err := h.Handle(context.Background(), core.HandlerRequest{
		UserID:   "user-1",
		Question: "how much did I earn this quarter",
		Context:  core.Context{Quarter: core.Q2, TaxYear: 2026},
	})
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if !strings.Contains(result.Text, "$18,000.00") || !strings.Contains(result.Text, "Q2 2026") {
		t.Errorf("reply = %q", result.Text)
	}
	if result.Workspace == nil || result.Workspace.Type != "income_summary" {
		t.Errorf("workspace = %+v", result.Workspace)
	}
}

func TestGeneralUsesHistory(t *testing.T) {
	stub := provider.NewStub(provider.StubResponse{Text: "A budget app can help."})
	h := NewGeneral(stub)

	history := []core.Message{{Role: core.RoleUser, Content: "earlier question"}}
	result, err := h.Handle(context.Background(), core.HandlerRequest{
		UserID:   "user-1",
		Question: "what's a good budget app?",
		History:  history,
	})
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if result.Text != "A budget app can help." {
		t.Errorf("reply = %q", result.Text)
	}

	reqs := stub.Requests()
	if len(reqs) != 1 || len(reqs[0].History) != 1 {
		t.Fatalf("provider requests = %+v, want enriched history forwarded", reqs)
	}
}

func TestProviderCalculatorEstimate(t *testing.T) {
	structured, _ := json.Marshal(map[string]any{
		"estimatedTax":   3000.0,
		"federal":        1800.0,
		"stateTax":       400.0,
		"selfEmployment": 800.0,
		"effectiveRate":  0.18,
		"notes":          "Assumes similar income to last quarter.",
	})
	stub := provider.NewStub(provider.StubResponse{Structured: structured})
	calc := NewProviderCalculator(stub)

	est, err := calc.Estimate(context.Background(), EstimateRequest{
		State:        "Texas",
		FilingStatus: core.FilingSingle,
		Quarter:      core.Q3,
		TaxYear:      2026,
		Question:     "what do I owe",
	})
	if err != nil {
		t.Fatalf("Estimate: %v", err)
	}
	if est.EstimatedTax != 3000 || est.EffectiveRate != 0.18 {
		t.Errorf("estimate = %+v", est)
	}

	reqs := stub.Requests()
	if len(reqs) != 1 || reqs[0].Schema == nil || reqs[0].Schema.Name != "tax_estimate" {
		t.Fatalf("provider request schema missing: %+v", reqs)
	}
	if !strings.Contains(reqs[0].System, "Texas") {
		t.Errorf("system prompt %q missing resolved state", reqs[0].System)
	}
}

func TestFormatCurrency(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "$0.00"},
		{5, "$5.00"},
		{1234.5, "$1,234.50"},
		{1234567.89, "$1,234,567.89"},
		{-42.1, "-$42.10"},
		{0.999, "$1.00"},
		{1.995, "$2.00"},
		{999.999, "$1,000.00"},
		{-0.999, "-$1.00"},
	}
	for _, tt := range tests {
		if got := formatCurrency(tt.in); got != tt.want {
			t.Errorf("formatCurrency(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
