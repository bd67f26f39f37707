package handlers

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/balncd/assist/provider"
)

// ProviderCalculator is the reference TaxCalculator and IncomeAnalyzer,
// backed by the completion provider's structured output mode.
type ProviderCalculator struct {
	provider provider.Provider
}

// NewProviderCalculator creates a provider-backed calculator.
func NewProviderCalculator(p provider.Provider) *ProviderCalculator {
	return &ProviderCalculator{provider: p}
}

// Estimate asks the provider for a structured quarterly tax estimate.
func (c *ProviderCalculator) Estimate(ctx context.Context, req EstimateRequest) (*Estimate, error) {
	system := fmt.Sprintf(
		"You estimate US quarterly self-employment taxes. The user files as %s in %s for %s %d. "+
			"Produce a realistic estimate with federal, state, and self-employment components. "+
			"Amounts are in dollars; effectiveRate is a fraction.",
		req.FilingStatus, req.State, req.Quarter, req.TaxYear)

	result, err := c.provider.Complete(ctx, &provider.Request{
		System:      system,
		UserMessage: req.Question,
		Schema: &provider.Schema{
			Name:        "tax_estimate",
			Description: "Quarterly estimated tax breakdown.",
			Properties: map[string]interface{}{
				"estimatedTax":   provider.NumberProperty("Total estimated quarterly payment in dollars"),
				"federal":        provider.NumberProperty("Federal income tax portion in dollars"),
				"stateTax":       provider.NumberProperty("State income tax portion in dollars"),
				"selfEmployment": provider.NumberProperty("Self-employment tax portion in dollars"),
				"effectiveRate":  provider.NumberProperty("Effective tax rate as a fraction, e.g. 0.22"),
				"notes":          provider.StringProperty("One-sentence caveat or context for the estimate"),
			},
			Required: []string{"estimatedTax", "federal", "stateTax", "selfEmployment", "effectiveRate"},
		},
	})
	if err != nil {
		return nil, err
	}

	var est Estimate
	if err := json.Unmarshal(result.Structured, &est); err != nil {
		return nil, fmt.Errorf("decode tax estimate: %w", err)
	}
	return &est, nil
}

// Analyze asks the provider for a structured income summary.
func (c *ProviderCalculator) Analyze(ctx context.Context, req AnalyzeRequest) (*IncomeSummary, error) {
	system := fmt.Sprintf(
		"You summarize a freelancer's income. The period under discussion is %s %d. "+
			"Amounts are in dollars.",
		req.Quarter, req.TaxYear)

	result, err := c.provider.Complete(ctx, &provider.Request{
		System:      system,
		UserMessage: req.Question,
		Schema: &provider.Schema{
			Name:        "income_summary",
			Description: "Income summary for the requested period.",
			Properties: map[string]interface{}{
				"total":   provider.NumberProperty("Total income for the period in dollars"),
				"average": provider.NumberProperty("Average monthly income in dollars"),
				"period":  provider.StringProperty("Human-readable period, e.g. 'Q2 2026'"),
				"highlights": provider.ArrayProperty("Short observations about the income",
					provider.StringProperty("One observation")),
			},
			Required: []string{"total", "period"},
		},
	})
	if err != nil {
		return nil, err
	}

	var summary IncomeSummary
	if err := json.Unmarshal(result.Structured, &summary); err != nil {
		return nil, fmt.Errorf("decode income summary: %w", err)
	}
	return &summary, nil
}
