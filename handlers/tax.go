// Package handlers implements the domain handlers the dialogue manager
// routes to: tax estimation, income analytics, and general questions.
package handlers

import (
	"context"
	"fmt"
	"strings"

	"github.com/balncd/assist/core"
)

// EstimateRequest carries the resolved slots a tax estimate needs.
type EstimateRequest struct {
	UserID       string
	Question     string
	State        string
	FilingStatus core.FilingStatus
	Quarter      core.Quarter
	TaxYear      int
}

// Estimate is a quarterly tax estimate. Amounts are in dollars.
type Estimate struct {
	EstimatedTax   float64 `json:"estimatedTax"`
	Federal        float64 `json:"federal"`
	StateTax       float64 `json:"stateTax"`
	SelfEmployment float64 `json:"selfEmployment"`
	EffectiveRate  float64 `json:"effectiveRate"` // fraction, 0.153 = 15.3%
	Notes          string  `json:"notes"`
}

// TaxCalculator produces estimates from resolved slots. The dialogue core
// treats it as opaque; the reference implementation is ProviderCalculator.
type TaxCalculator interface {
	Estimate(ctx context.Context, req EstimateRequest) (*Estimate, error)
}

// Tax answers tax questions. It requires a resolved state and asks the
// manager to fill the slot when it is missing.
type Tax struct {
	calc TaxCalculator
}

// NewTax creates the tax handler.
func NewTax(calc TaxCalculator) *Tax {
	return &Tax{calc: calc}
}

// Handle estimates taxes for the merged context, or requests the state slot.
func (h *Tax) Handle(ctx context.Context, req core.HandlerRequest) (*core.HandlerResult, error) {
	if req.Context.State == "" {
		return &core.HandlerResult{RequiredSlot: core.SlotState}, nil
	}

	est, err := h.calc.Estimate(ctx, EstimateRequest{
		UserID:       req.UserID,
		Question:     req.Question,
		State:        req.Context.State,
		FilingStatus: req.Context.FilingStatus,
		Quarter:      req.Context.Quarter,
		TaxYear:      req.Context.TaxYear,
	})
	if err != nil {
		return nil, fmt.Errorf("tax estimate: %w", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "For %s %d in %s (%s), your estimated payment is %s.",
		req.Context.Quarter, req.Context.TaxYear, req.Context.State,
		req.Context.FilingStatus, formatCurrency(est.EstimatedTax))
	if est.Notes != "" {
		fmt.Fprintf(&b, " %s", est.Notes)
	}
	if note := defaultsNote(req.Defaulted); note != "" {
		fmt.Fprintf(&b, " %s", note)
	}

	return &core.HandlerResult{
		Text: b.String(),
		Workspace: &core.WorkspacePayload{
			Type:  "tax_estimate",
			Title: fmt.Sprintf("%s %d Estimated Taxes", req.Context.Quarter, req.Context.TaxYear),
			Data: map[string]any{
				"state":          req.Context.State,
				"filingStatus":   string(req.Context.FilingStatus),
				"quarter":        string(req.Context.Quarter),
				"taxYear":        req.Context.TaxYear,
				"estimatedTax":   est.EstimatedTax,
				"federal":        est.Federal,
				"stateTax":       est.StateTax,
				"selfEmployment": est.SelfEmployment,
				"effectiveRate":  est.EffectiveRate,
				"defaulted":      req.Defaulted,
			},
		},
	}, nil
}

// defaultsNote discloses which answer inputs came from defaults rather than
// the user.
func defaultsNote(defaulted []string) string {
	if len(defaulted) == 0 {
		return ""
	}
	labels := make([]string, 0, len(defaulted))
	for _, d := range defaulted {
		switch d {
		case "filingStatus":
			labels = append(labels, "filing status")
		case "quarter":
			labels = append(labels, "quarter")
		default:
			labels = append(labels, d)
		}
	}
	return fmt.Sprintf("(I used saved or default info for: %s.)", strings.Join(labels, ", "))
}
