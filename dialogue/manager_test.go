package dialogue

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/balncd/assist/core"
	"github.com/balncd/assist/docstore"
	"github.com/balncd/assist/extract"
	"github.com/balncd/assist/memory"
	"github.com/balncd/assist/memory/embedder/mock"
	"github.com/balncd/assist/prefs"
	"github.com/balncd/assist/provider"
)

// taxStub requires a state before answering, mirroring the tax handler.
type taxStub struct {
	requests []core.HandlerRequest
}

func (h *taxStub) Handle(ctx context.Context, req core.HandlerRequest) (*core.HandlerResult, error) {
	h.requests = append(h.requests, req)
	if req.Context.State == "" {
		return &core.HandlerResult{RequiredSlot: core.SlotState}, nil
	}
	return &core.HandlerResult{Text: "Here is your " + req.Context.State + " tax estimate."}, nil
}

// echoStub answers everything.
type echoStub struct {
	requests []core.HandlerRequest
}

func (h *echoStub) Handle(ctx context.Context, req core.HandlerRequest) (*core.HandlerResult, error) {
	h.requests = append(h.requests, req)
	return &core.HandlerResult{Text: "ok"}, nil
}

type fixture struct {
	manager *Manager
	prefs   *prefs.Store
	memory  *memory.Store
	tax     *taxStub
	general *echoStub
	income  *echoStub
}

func newFixture(t *testing.T, p provider.Provider) *fixture {
	t.Helper()
	prefStore, err := prefs.New(docstore.NewMemory())
	if err != nil {
		t.Fatalf("prefs.New: %v", err)
	}
	memStore := memory.NewStore(docstore.NewMemory(), mock.New(), nil)

	f := &fixture{
		prefs:   prefStore,
		memory:  memStore,
		tax:     &taxStub{},
		general: &echoStub{},
		income:  &echoStub{},
	}
	f.manager = New(memStore, prefStore, p, map[core.QueryType]core.Handler{
		core.QueryTax:     f.tax,
		core.QueryIncome:  f.income,
		core.QueryGeneral: f.general,
	})
	return f
}

func TestBlankInputLeavesSessionUntouched(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, provider.NewStub())
	session := core.NewContext(time.Now())
	session.State = "Oregon"

	for _, text := range []string{"", "   ", "\n\t"} {
		turn, err := f.manager.ProcessTurn(ctx, "user-1", text, session, nil)
		if err != nil {
			t.Fatalf("ProcessTurn(%q): %v", text, err)
		}
		if turn.Reply == "" {
			t.Errorf("ProcessTurn(%q): expected a re-prompt", text)
		}
		if turn.Context != session {
			t.Errorf("ProcessTurn(%q): context changed to %+v", text, turn.Context)
		}
	}
	if len(f.tax.requests)+len(f.general.requests)+len(f.income.requests) != 0 {
		t.Error("blank input should not reach any handler")
	}

	// Blank input while a slot is pending keeps the continuation alive.
	session.Continuation = core.AwaitingSlot(core.SlotState, "quarterly taxes?")
	turn, err := f.manager.ProcessTurn(ctx, "user-1", "  ", session, nil)
	if err != nil {
		t.Fatalf("ProcessTurn(blank while awaiting): %v", err)
	}
	if _, pending, awaiting := turn.Context.Continuation.Awaiting(); !awaiting || pending != "quarterly taxes?" {
		t.Errorf("continuation lost on blank input: %+v", turn.Context.Continuation)
	}
}

func TestSlotFillRoundTrip(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, provider.NewStub())
	session := core.NewContext(time.Now())

	question := "How much do I owe in quarterly taxes?"
	turn, err := f.manager.ProcessTurn(ctx, "user-1", question, session, nil)
	if err != nil {
		t.Fatalf("ProcessTurn: %v", err)
	}

	slot, pending, awaiting := turn.Context.Continuation.Awaiting()
	if !awaiting {
		t.Fatal("expected the manager to await a slot")
	}
	if slot != core.SlotState {
		t.Errorf("awaiting slot = %q, want state", slot)
	}
	if pending != question {
		t.Errorf("pending query = %q, want original question", pending)
	}
	if turn.Reply == "" {
		t.Error("expected a state-request prompt")
	}

	// Supplying the state resumes and replays the original question.
	turn, err = f.manager.ProcessTurn(ctx, "user-1", "California", turn.Context, nil)
	if err != nil {
		t.Fatalf("ProcessTurn(slot answer): %v", err)
	}
	if !turn.Context.Continuation.IsIdle() {
		t.Error("continuation should be idle after the slot is filled")
	}
	if turn.Context.State != "California" {
		t.Errorf("state = %q, want California", turn.Context.State)
	}
	if turn.Reply != "Here is your California tax estimate." {
		t.Errorf("reply = %q", turn.Reply)
	}

	// The handler must have seen the pending query, not the literal answer.
	last := f.tax.requests[len(f.tax.requests)-1]
	if last.Question != question {
		t.Errorf("replayed question = %q, want %q", last.Question, question)
	}

	// The resolved state is persisted to preferences in the background.
	f.manager.Wait()
	saved, err := f.prefs.GetPreferences(ctx, "user-1")
	if err != nil {
		t.Fatalf("GetPreferences: %v", err)
	}
	if saved == nil || saved.State != "California" {
		t.Errorf("saved preferences = %+v, want state California", saved)
	}
}

func TestSlotRepromptWhenAnswerUnparseable(t *testing.T) {
	ctx := context.Background()
	// The stub returns an empty object for structured requests, so the
	// provider fallback yields no state either.
	f := newFixture(t, provider.NewStub())
	session := core.NewContext(time.Now())

	turn, err := f.manager.ProcessTurn(ctx, "user-1", "how much tax do I owe", session, nil)
	if err != nil {
		t.Fatalf("ProcessTurn: %v", err)
	}

	turn, err = f.manager.ProcessTurn(ctx, "user-1", "um, not sure", turn.Context, nil)
	if err != nil {
		t.Fatalf("ProcessTurn(bad answer): %v", err)
	}
	slot, pending, awaiting := turn.Context.Continuation.Awaiting()
	if !awaiting || slot != core.SlotState {
		t.Fatal("manager must stay in the awaiting-state slot")
	}
	if pending != "how much tax do I owe" {
		t.Errorf("pending query = %q, must be preserved", pending)
	}
	if turn.Reply == "" {
		t.Error("expected a clarified re-prompt")
	}
}

func TestSlotProviderFallback(t *testing.T) {
	ctx := context.Background()
	structured, _ := json.Marshal(map[string]string{"state": "New York"})
	p := provider.NewStub(provider.StubResponse{Structured: structured})
	f := newFixture(t, p)
	session := core.NewContext(time.Now())

	turn, err := f.manager.ProcessTurn(ctx, "user-1", "how much tax do I owe", session, nil)
	if err != nil {
		t.Fatalf("ProcessTurn: %v", err)
	}

	// "the empire state" defeats the extractor; the provider resolves it.
	turn, err = f.manager.ProcessTurn(ctx, "user-1", "the empire state", turn.Context, nil)
	if err != nil {
		t.Fatalf("ProcessTurn(fallback answer): %v", err)
	}
	if turn.Context.State != "New York" {
		t.Errorf("state = %q, want New York via provider fallback", turn.Context.State)
	}
	if !turn.Context.Continuation.IsIdle() {
		t.Error("continuation should be idle after fallback resolution")
	}
}

func TestTopicChangeResetsContext(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, provider.NewStub())

	session := core.NewContext(time.Now())
	session.State = "Texas"
	session.LastQuery = core.QueryTax

	turn, err := f.manager.ProcessTurn(ctx, "user-1",
		"let's talk about something else, what's a good budget app?", session, nil)
	if err != nil {
		t.Fatalf("ProcessTurn: %v", err)
	}
	if turn.Context.State != "" {
		t.Errorf("state = %q, want cleared after topic change", turn.Context.State)
	}
	if turn.Context.LastQuery != core.QueryGeneral {
		t.Errorf("lastQuery = %q, want general", turn.Context.LastQuery)
	}
}

func TestCurrentTextOutranksMemory(t *testing.T) {
	session := core.Context{}
	entities := extract.Extract("What about California taxes?")
	recalled := &core.Snapshot{State: "Oregon"}

	merged := mergeContext(session, entities, recalled, nil)
	if merged.State != "California" {
		t.Errorf("merged state = %q, current text must outrank memory", merged.State)
	}
}

func TestSessionOutranksMemoryAndPrefs(t *testing.T) {
	session := core.Context{State: "Texas", FilingStatus: core.FilingHeadOfHousehold}
	recalled := &core.Snapshot{State: "Oregon", FilingStatus: core.FilingSingle}
	pref := &prefs.TaxPreference{State: "Nevada", FilingStatus: core.FilingMarriedFilingJointly}

	merged := mergeContext(session, extract.Entities{}, recalled, pref)
	if merged.State != "Texas" {
		t.Errorf("merged state = %q, session must outrank memory and prefs", merged.State)
	}
	if merged.FilingStatus != core.FilingHeadOfHousehold {
		t.Errorf("merged filing status = %q, session must win", merged.FilingStatus)
	}
}

func TestPreferencesFillEmptyContext(t *testing.T) {
	pref := &prefs.TaxPreference{State: "Nevada", FilingStatus: core.FilingMarriedFilingJointly}

	merged := mergeContext(core.Context{}, extract.Entities{}, nil, pref)
	if merged.State != "Nevada" {
		t.Errorf("merged state = %q, want preference value", merged.State)
	}
	if merged.FilingStatus != core.FilingMarriedFilingJointly {
		t.Errorf("merged filing status = %q, want preference value", merged.FilingStatus)
	}
}

func TestRecalledContextFillsMissingState(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, provider.NewStub())

	// Seed memory with a conversation whose transcript will match the next
	// query exactly; its context carries the state.
	messages := []core.Message{{Role: core.RoleUser, Content: "how do my quarterly tax payments work"}}
	if _, err := f.memory.StoreConversation(ctx, "user-1", messages, core.Snapshot{State: "Oregon"}); err != nil {
		t.Fatalf("StoreConversation: %v", err)
	}

	turn, err := f.manager.ProcessTurn(ctx, "user-1",
		memory.Transcript(messages), core.NewContext(time.Now()), nil)
	if err != nil {
		t.Fatalf("ProcessTurn: %v", err)
	}
	if turn.Context.State != "Oregon" {
		t.Errorf("state = %q, want Oregon recovered from memory", turn.Context.State)
	}
	// The recalled messages are prepended to the handler's history.
	last := f.tax.requests[len(f.tax.requests)-1]
	if len(last.History) == 0 || last.History[0].Content != messages[0].Content {
		t.Errorf("handler history = %+v, want recalled messages prepended", last.History)
	}
}

func TestDefaultsAreDisclosed(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, provider.NewStub())

	session := core.NewContext(time.Now())
	session.State = "Texas"

	turn, err := f.manager.ProcessTurn(ctx, "user-1", "how much tax do I owe", session, nil)
	if err != nil {
		t.Fatalf("ProcessTurn: %v", err)
	}
	want := map[string]bool{"filingStatus": true, "quarter": true}
	if len(turn.Defaulted) != 2 || !want[turn.Defaulted[0]] || !want[turn.Defaulted[1]] {
		t.Errorf("defaulted = %v, want filingStatus and quarter", turn.Defaulted)
	}
	// Defaults reach the handler but never leak into the session context.
	if turn.Context.FilingStatus != "" {
		t.Errorf("session filing status = %q, defaults must not persist", turn.Context.FilingStatus)
	}
	last := f.tax.requests[len(f.tax.requests)-1]
	if last.Context.FilingStatus != core.FilingSingle {
		t.Errorf("handler filing status = %q, want defaulted Single", last.Context.FilingStatus)
	}
}

func TestProviderClassificationUpgradesGeneral(t *testing.T) {
	ctx := context.Background()
	structured, _ := json.Marshal(map[string]any{"category": "income", "isCalculation": true})
	p := provider.NewStub(provider.StubResponse{Structured: structured})

	f := newFixture(t, p)
	f.manager = New(f.memory, f.prefs, p, map[core.QueryType]core.Handler{
		core.QueryTax:     f.tax,
		core.QueryIncome:  f.income,
		core.QueryGeneral: f.general,
	}, WithProviderClassification())

	// Rules alone place this as general; the provider categorizes it.
	turn, err := f.manager.ProcessTurn(ctx, "user-1",
		"what came in from clients recently?", core.NewContext(time.Now()), nil)
	if err != nil {
		t.Fatalf("ProcessTurn: %v", err)
	}
	if turn.Context.LastQuery != core.QueryIncome {
		t.Errorf("lastQuery = %q, want income via provider classification", turn.Context.LastQuery)
	}
	if len(f.income.requests) != 1 {
		t.Errorf("income handler calls = %d, want 1", len(f.income.requests))
	}
}

func TestCompletedTurnIsPersisted(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, provider.NewStub())

	turn, err := f.manager.ProcessTurn(ctx, "user-1",
		"how much tax do I owe in California", core.NewContext(time.Now()), nil)
	if err != nil {
		t.Fatalf("ProcessTurn: %v", err)
	}
	f.manager.Wait()

	transcript := memory.Transcript([]core.Message{
		{Role: core.RoleUser, Content: "how much tax do I owe in California"},
		{Role: core.RoleAssistant, Content: turn.Reply},
	})
	matches, err := f.memory.FindSimilar(ctx, "user-1", transcript, 1)
	if err != nil {
		t.Fatalf("FindSimilar: %v", err)
	}
	if len(matches) != 1 || matches[0].Similarity < 0.99 {
		t.Fatalf("stored conversation not found, matches = %v", matches)
	}

	saved, err := f.prefs.GetPreferences(ctx, "user-1")
	if err != nil {
		t.Fatalf("GetPreferences: %v", err)
	}
	if saved == nil || saved.State != "California" {
		t.Errorf("saved preferences = %+v, want state California", saved)
	}
}
