package handlers

import (
	"context"
	"fmt"
	"strings"

	"github.com/balncd/assist/core"
)

// AnalyzeRequest carries the resolved slots an income analysis needs.
type AnalyzeRequest struct {
	UserID   string
	Question string
	Quarter  core.Quarter
	TaxYear  int
}

// IncomeSummary is the result of an income analysis.
type IncomeSummary struct {
	Total      float64  `json:"total"`
	Average    float64  `json:"average"` // per month over the period
	Period     string   `json:"period"`  // human-readable, e.g. "Q2 2026"
	Highlights []string `json:"highlights"`
}

// IncomeAnalyzer produces income summaries. The dialogue core treats it as
// opaque; the reference implementation is ProviderCalculator.
type IncomeAnalyzer interface {
	Analyze(ctx context.Context, req AnalyzeRequest) (*IncomeSummary, error)
}

// Income answers income and earnings questions.
type Income struct {
	analyzer IncomeAnalyzer
}

// NewIncome creates the income handler.
func NewIncome(analyzer IncomeAnalyzer) *Income {
	return &Income{analyzer: analyzer}
}

// Handle summarizes income for the merged context.
func (h *Income) Handle(ctx context.Context, req core.HandlerRequest) (*core.HandlerResult, error) {
	summary, err := h.analyzer.Analyze(ctx, AnalyzeRequest{
		UserID:   req.UserID,
		Question: req.Question,
		Quarter:  req.Context.Quarter,
		TaxYear:  req.Context.TaxYear,
	})
	if err != nil {
		return nil, fmt.Errorf("income analysis: %w", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Your income for %s totals %s", summary.Period, formatCurrency(summary.Total))
	if summary.Average > 0 {
		fmt.Fprintf(&b, ", averaging %s per month", formatCurrency(summary.Average))
	}
	b.WriteString(".")
	for _, hl := range summary.Highlights {
		fmt.Fprintf(&b, " %s", hl)
	}

	return &core.HandlerResult{
		Text: b.String(),
		Workspace: &core.WorkspacePayload{
			Type:  "income_summary",
			Title: fmt.Sprintf("Income — %s", summary.Period),
			Data: map[string]any{
				"total":      summary.Total,
				"average":    summary.Average,
				"period":     summary.Period,
				"highlights": summary.Highlights,
			},
		},
	}, nil
}
