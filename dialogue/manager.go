// Package dialogue implements the turn pipeline of the assistant: slot
// filling, topic-change detection, entity extraction, memory recall, the
// precedence merge, and routing to domain handlers.
package dialogue

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/balncd/assist/core"
	"github.com/balncd/assist/extract"
	"github.com/balncd/assist/memory"
	"github.com/balncd/assist/prefs"
	"github.com/balncd/assist/provider"
)

// recalledHistoryLimit caps how many messages from a recalled conversation
// are prepended to the handler's history.
const recalledHistoryLimit = 4

// Turn is the outcome of one processed user turn. Context is the new session
// context; the caller threads it into the next turn.
type Turn struct {
	Reply     string
	Workspace *core.WorkspacePayload
	Context   core.Context

	// Defaulted names context fields the answer relied on without the user
	// supplying them, so the consumer can render a defaults indicator.
	Defaulted []string
}

// Manager orchestrates one user turn end to end.
type Manager struct {
	memory   *memory.Store
	prefs    *prefs.Store
	provider provider.Provider
	handlers map[core.QueryType]core.Handler

	now             func() time.Time
	recallLimit     int
	providerclasses bool

	persist sync.WaitGroup
}

// Option configures the manager.
type Option func(*Manager)

// WithClock overrides the time source (tests).
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// WithRecallLimit overrides how many similar conversations are retrieved.
func WithRecallLimit(k int) Option {
	return func(m *Manager) {
		m.recallLimit = k
	}
}

// WithProviderClassification lets the manager consult the completion
// provider when the keyword rules classify a question as general. Rule
// classification stays the fast path and the sole fallback on provider
// failure.
func WithProviderClassification() Option {
	return func(m *Manager) {
		m.providerclasses = true
	}
}

// New creates a dialogue manager. handlers must cover every core.QueryType.
func New(mem *memory.Store, pref *prefs.Store, p provider.Provider, handlers map[core.QueryType]core.Handler, opts ...Option) *Manager {
	m := &Manager{
		memory:      mem,
		prefs:       pref,
		provider:    p,
		handlers:    handlers,
		now:         time.Now,
		recallLimit: 3,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Wait blocks until all background persistence started by processed turns
// has finished. Called on shutdown and by tests.
func (m *Manager) Wait() {
	m.persist.Wait()
}

// ProcessTurn runs one user turn through the pipeline and returns the reply
// plus the new session context. history is the session dialogue so far, not
// including text.
func (m *Manager) ProcessTurn(ctx context.Context, userID, text string, session core.Context, history []core.Message) (*Turn, error) {
	// Blank input has nothing to classify, extract, or suspend on.
	if strings.TrimSpace(text) == "" {
		return &Turn{
			Reply:   "I didn't catch a question there. What would you like to know?",
			Context: session,
		}, nil
	}
	if slot, pendingQuery, ok := session.Continuation.Awaiting(); ok {
		return m.resumeSlot(ctx, userID, text, session, history, slot, pendingQuery)
	}
	return m.run(ctx, userID, text, session, history)
}

// resumeSlot interprets text as the answer to a pending slot request. On
// success the original pending query is replayed with the filled context; on
// failure the user is re-prompted and the continuation is kept.
func (m *Manager) resumeSlot(ctx context.Context, userID, text string, session core.Context, history []core.Message, slot core.Slot, pendingQuery string) (*Turn, error) {
	log.Printf("[DIALOGUE] Resuming slot %q for user %s", slot, userID)

	switch slot {
	case core.SlotState:
		state := ResolveState(ctx, m.provider, text)
		if state == "" {
			session.Continuation = core.AwaitingSlot(slot, pendingQuery)
			return &Turn{
				Reply:   "I still need your state. Please give a US state name, like California or New York.",
				Context: session,
			}, nil
		}
		session.State = state
		m.persistAsync(userID, nil, core.Snapshot{}, &prefs.TaxPreference{State: state})

	case core.SlotFilingStatus:
		status := ResolveFilingStatus(ctx, m.provider, text)
		if status == "" {
			session.Continuation = core.AwaitingSlot(slot, pendingQuery)
			return &Turn{
				Reply:   "I still need your filing status: single, married filing jointly, married filing separately, or head of household?",
				Context: session,
			}, nil
		}
		session.FilingStatus = status
		m.persistAsync(userID, nil, core.Snapshot{}, &prefs.TaxPreference{FilingStatus: status})

	default:
		return nil, fmt.Errorf("unknown slot %q", slot)
	}

	session.Continuation = core.Idle()
	log.Printf("[DIALOGUE] Slot %q filled, replaying pending query", slot)
	return m.run(ctx, userID, pendingQuery, session, history)
}

// ResolveState parses a US state from free text: extractor rules first,
// then one provider fallback. Empty when neither succeeds.
func ResolveState(ctx context.Context, p provider.Provider, text string) string {
	if states := extract.States(text); len(states) > 0 {
		return states[0]
	}
	result, err := p.Complete(ctx, &provider.Request{
		System:      "Identify which US state the user means. If no state can be determined, return an empty string.",
		UserMessage: text,
		Schema: &provider.Schema{
			Name:        "extract_state",
			Description: "The US state named or implied by the user's answer.",
			Properties: map[string]interface{}{
				"state": provider.StringProperty("Full US state name, e.g. California. Empty if unknown."),
			},
			Required: []string{"state"},
		},
	})
	if err != nil {
		log.Printf("[DIALOGUE] State fallback failed: %v", err)
		return ""
	}
	var parsed struct {
		State string `json:"state"`
	}
	if err := json.Unmarshal(result.Structured, &parsed); err != nil {
		return ""
	}
	// Trust the provider only if it names a real state.
	if states := extract.States(parsed.State); len(states) > 0 {
		return states[0]
	}
	return ""
}

// ResolveFilingStatus parses a filing status from free text: extractor rules
// first, then one provider fallback. Empty when neither succeeds.
func ResolveFilingStatus(ctx context.Context, p provider.Provider, text string) core.FilingStatus {
	if statuses := extract.FilingStatuses(text); len(statuses) > 0 {
		return statuses[0]
	}
	result, err := p.Complete(ctx, &provider.Request{
		System:      "Identify the user's federal tax filing status. If it cannot be determined, return an empty string.",
		UserMessage: text,
		Schema: &provider.Schema{
			Name:        "extract_filing_status",
			Description: "The filing status named or implied by the user's answer.",
			Properties: map[string]interface{}{
				"filingStatus": provider.StringEnumProperty("Filing status",
					string(core.FilingSingle),
					string(core.FilingMarriedFilingJointly),
					string(core.FilingMarriedFilingSeparately),
					string(core.FilingHeadOfHousehold),
					""),
			},
			Required: []string{"filingStatus"},
		},
	})
	if err != nil {
		log.Printf("[DIALOGUE] Filing status fallback failed: %v", err)
		return ""
	}
	var parsed struct {
		FilingStatus string `json:"filingStatus"`
	}
	if err := json.Unmarshal(result.Structured, &parsed); err != nil {
		return ""
	}
	if statuses := extract.FilingStatuses(parsed.FilingStatus); len(statuses) > 0 {
		return statuses[0]
	}
	return ""
}

// run is the main pipeline: topic check, extraction, recall, merge,
// classification, routing, persistence.
func (m *Manager) run(ctx context.Context, userID, text string, session core.Context, history []core.Message) (*Turn, error) {
	now := m.now()

	// Topic change resets the whole context before anything else reads it.
	if session.LastQuery == core.QueryTax || session.LastQuery == core.QueryIncome {
		if isReset(text) || shiftsDomain(session.LastQuery, text) {
			log.Printf("[DIALOGUE] Topic change detected for user %s, resetting context", userID)
			session = session.Reset(now)
		}
	}

	entities := extract.Extract(text)

	recalled, recalledHistory := m.recall(ctx, userID, text)

	pref := m.loadPreferences(ctx, userID)

	session = mergeContext(session, entities, recalled, pref)
	session.LastQuery = m.classify(ctx, text)

	// Defaults are applied to the handler's view only, never to the session,
	// so a defaulted value can still be overridden by later sources.
	working, defaulted := applyDefaults(session, now)

	handler, ok := m.handlers[session.LastQuery]
	if !ok {
		return nil, fmt.Errorf("no handler for query type %q", session.LastQuery)
	}

	enrichedHistory := make([]core.Message, 0, len(recalledHistory)+len(history))
	enrichedHistory = append(enrichedHistory, recalledHistory...)
	enrichedHistory = append(enrichedHistory, history...)
	result, err := handler.Handle(ctx, core.HandlerRequest{
		UserID:    userID,
		Question:  text,
		Context:   working,
		History:   enrichedHistory,
		Defaulted: defaulted,
	})
	if err != nil {
		// Degrade to a plain-language reply; raw errors never reach the user.
		log.Printf("[DIALOGUE] Handler %q failed for user %s: %v", session.LastQuery, userID, err)
		return &Turn{
			Reply:   "I wasn't able to answer that just now. Could you try asking again?",
			Context: session,
		}, nil
	}

	if result.RequiredSlot != core.SlotNone {
		session.Continuation = core.AwaitingSlot(result.RequiredSlot, text)
		return &Turn{
			Reply:   slotPrompt(result.RequiredSlot),
			Context: session,
		}, nil
	}

	session.Continuation = core.Idle()

	messages := []core.Message{
		{Role: core.RoleUser, Content: text},
		{Role: core.RoleAssistant, Content: result.Text},
	}
	var newPref *prefs.TaxPreference
	if len(entities.States) > 0 || len(entities.FilingStatuses) > 0 {
		newPref = &prefs.TaxPreference{}
		if len(entities.States) > 0 {
			newPref.State = entities.States[0]
		}
		if len(entities.FilingStatuses) > 0 {
			newPref.FilingStatus = entities.FilingStatuses[0]
		}
	}
	m.persistAsync(userID, messages, session.Snapshot(), newPref)

	return &Turn{
		Reply:     result.Text,
		Workspace: result.Workspace,
		Context:   session,
		Defaulted: defaulted,
	}, nil
}

// recall retrieves the most similar past conversation. A usable match
// contributes its context snapshot and a short slice of its messages;
// retrieval failure only skips enrichment.
func (m *Manager) recall(ctx context.Context, userID, text string) (*core.Snapshot, []core.Message) {
	matches, err := m.memory.FindSimilar(ctx, userID, text, m.recallLimit)
	if err != nil {
		log.Printf("[DIALOGUE] Memory recall failed for user %s: %v", userID, err)
		return nil, nil
	}
	if len(matches) == 0 || matches[0].Similarity <= m.memory.MinSimilarity() {
		return nil, nil
	}

	best := matches[0]
	log.Printf("[DIALOGUE] Recalled conversation %s (similarity %.3f) for user %s",
		best.Conversation.ID, best.Similarity, userID)

	msgs := best.Conversation.Messages
	if len(msgs) > recalledHistoryLimit {
		msgs = msgs[len(msgs)-recalledHistoryLimit:]
	}
	snapshot := best.Conversation.Context
	return &snapshot, msgs
}

func (m *Manager) loadPreferences(ctx context.Context, userID string) *prefs.TaxPreference {
	pref, err := m.prefs.GetPreferences(ctx, userID)
	if err != nil {
		log.Printf("[DIALOGUE] Preference lookup failed for user %s: %v", userID, err)
		return nil
	}
	return pref
}

// mergeContext fills each context field from the highest-precedence source:
// current text, then the active session value, then a recalled conversation,
// then saved preferences. Defaults are applied separately.
func mergeContext(session core.Context, entities extract.Entities, recalled *core.Snapshot, pref *prefs.TaxPreference) core.Context {
	switch {
	case len(entities.States) > 0:
		session.State = entities.States[0]
	case session.State != "":
	case recalled != nil && recalled.State != "":
		session.State = recalled.State
	case pref != nil && pref.State != "":
		session.State = pref.State
	}

	switch {
	case len(entities.FilingStatuses) > 0:
		session.FilingStatus = entities.FilingStatuses[0]
	case session.FilingStatus != "":
	case recalled != nil && recalled.FilingStatus != "":
		session.FilingStatus = recalled.FilingStatus
	case pref != nil && pref.FilingStatus != "":
		session.FilingStatus = pref.FilingStatus
	}

	switch {
	case len(entities.Quarters) > 0:
		session.Quarter = entities.Quarters[0]
	case session.Quarter != "":
	case recalled != nil && recalled.Quarter != "":
		session.Quarter = recalled.Quarter
	}

	if len(entities.Years) > 0 {
		session.TaxYear = entities.Years[0]
	}

	return session
}

// applyDefaults fills remaining gaps for the handler's view of the context
// and reports which fields were defaulted.
func applyDefaults(session core.Context, now time.Time) (core.Context, []string) {
	var defaulted []string
	if session.FilingStatus == "" {
		session.FilingStatus = core.FilingSingle
		defaulted = append(defaulted, "filingStatus")
	}
	if session.Quarter == "" {
		session.Quarter = core.CurrentQuarter(now)
		defaulted = append(defaulted, "quarter")
	}
	return session, defaulted
}

// classify runs the keyword rules, then optionally asks the provider to
// categorize questions the rules could not place.
func (m *Manager) classify(ctx context.Context, text string) core.QueryType {
	queryType := Classify(text)
	if queryType != core.QueryGeneral || !m.providerclasses {
		return queryType
	}

	result, err := m.provider.Complete(ctx, &provider.Request{
		System:      "Categorize the user's personal-finance question.",
		UserMessage: text,
		Schema: &provider.Schema{
			Name:        "categorize_question",
			Description: "The category and intent of the question.",
			Properties: map[string]interface{}{
				"category": provider.StringEnumProperty("Question category",
					string(core.QueryTax), string(core.QueryIncome), string(core.QueryGeneral)),
				"isCalculation": provider.BooleanProperty("Whether the user wants a computed number"),
				"isFollowUp":    provider.BooleanProperty("Whether this continues the previous question"),
			},
			Required: []string{"category"},
		},
	})
	if err != nil {
		log.Printf("[DIALOGUE] Provider classification failed: %v", err)
		return core.QueryGeneral
	}

	var parsed struct {
		Category string `json:"category"`
	}
	if err := json.Unmarshal(result.Structured, &parsed); err != nil {
		return core.QueryGeneral
	}
	switch core.QueryType(parsed.Category) {
	case core.QueryTax:
		return core.QueryTax
	case core.QueryIncome:
		return core.QueryIncome
	default:
		return core.QueryGeneral
	}
}

func slotPrompt(slot core.Slot) string {
	switch slot {
	case core.SlotState:
		return "Which state are you in? I need it to estimate your state taxes."
	case core.SlotFilingStatus:
		return "What's your filing status? Single, married filing jointly, married filing separately, or head of household?"
	default:
		return fmt.Sprintf("I need one more detail (%s) before I can answer.", strings.ReplaceAll(string(slot), "_", " "))
	}
}

// persistAsync writes the finished turn's records in the background. The
// user-visible reply never blocks on persistence, and persistence failures
// are logged, not surfaced.
func (m *Manager) persistAsync(userID string, messages []core.Message, snapshot core.Snapshot, pref *prefs.TaxPreference) {
	m.persist.Add(1)
	go func() {
		defer m.persist.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if len(messages) > 0 {
			if _, err := m.memory.StoreConversation(ctx, userID, messages, snapshot); err != nil {
				log.Printf("[DIALOGUE] Failed to store conversation for user %s: %v", userID, err)
			}
		}
		if pref != nil {
			if err := m.prefs.SavePreferences(ctx, userID, *pref); err != nil {
				log.Printf("[DIALOGUE] Failed to save preferences for user %s: %v", userID, err)
			}
		}
	}()
}
