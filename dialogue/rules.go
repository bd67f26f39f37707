package dialogue

import (
	"strings"

	"github.com/balncd/assist/core"
)

// Classification and topic-change heuristics. The rule sets live here as
// data so they can be tuned and tested without touching the turn pipeline.

// resetPhrases explicitly end the current topic.
var resetPhrases = []string{
	"change the topic",
	"change topic",
	"change the subject",
	"forget that",
	"forget it",
	"start over",
	"start fresh",
	"new question",
	"different question",
	"something else",
	"never mind",
	"nevermind",
	"moving on",
}

// domainVocabulary maps each domain-specific query type to the words that
// signal it. Used both for classification and for topic-change detection.
var domainVocabulary = map[core.QueryType][]string{
	core.QueryTax: {
		"tax", "taxes", "taxed", "irs", "quarterly", "estimated payment",
		"filing", "deduction", "deductions", "write-off", "write off",
		"withholding", "bracket", "owe",
	},
	core.QueryIncome: {
		"income", "earn", "earned", "earning", "earnings", "revenue",
		"made", "making", "invoice", "invoices", "paid", "profit",
	},
}

// quantitativeCues mark a question as asking for numbers rather than advice.
// Income vocabulary alone classifies as general; with a cue it is an income
// query.
var quantitativeCues = []string{
	"how much", "how many", "total", "average", "sum", "per month",
	"per quarter", "per year", "this month", "this quarter", "this year",
	"last month", "last quarter", "last year", "$",
}

// classificationRule is one prioritized classification rule. The first rule
// whose conditions are met determines the query type.
type classificationRule struct {
	queryType core.QueryType

	// anyOf fires the rule when at least one word is present.
	anyOf []string

	// requiresCue additionally requires a quantitative cue or a digit.
	requiresCue bool
}

var classificationRules = []classificationRule{
	{queryType: core.QueryTax, anyOf: domainVocabulary[core.QueryTax]},
	{queryType: core.QueryIncome, anyOf: domainVocabulary[core.QueryIncome], requiresCue: true},
}

// Classify maps a question to a query type via the prioritized rule list.
func Classify(text string) core.QueryType {
	lower := strings.ToLower(text)
	for _, rule := range classificationRules {
		if !containsAny(lower, rule.anyOf) {
			continue
		}
		if rule.requiresCue && !hasQuantitativeCue(lower) {
			continue
		}
		return rule.queryType
	}
	return core.QueryGeneral
}

// isReset reports whether the text contains explicit topic-reset phrasing.
func isReset(text string) bool {
	return containsAny(strings.ToLower(text), resetPhrases)
}

// shiftsDomain reports whether text strongly matches a domain other than
// current while containing none of current's vocabulary.
func shiftsDomain(current core.QueryType, text string) bool {
	currentVocab, ok := domainVocabulary[current]
	if !ok {
		return false
	}
	lower := strings.ToLower(text)
	if containsAny(lower, currentVocab) {
		return false
	}
	for queryType, vocab := range domainVocabulary {
		if queryType == current {
			continue
		}
		if containsAny(lower, vocab) {
			return true
		}
	}
	return false
}

func containsAny(lower string, words []string) bool {
	for _, w := range words {
		if strings.Contains(lower, w) {
			return true
		}
	}
	return false
}

func hasQuantitativeCue(lower string) bool {
	if containsAny(lower, quantitativeCues) {
		return true
	}
	return strings.ContainsAny(lower, "0123456789")
}
