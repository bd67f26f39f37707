package core

import "time"

// FilingStatus is a federal tax filing status.
type FilingStatus string

const (
	FilingSingle                  FilingStatus = "Single"
	FilingMarriedFilingJointly    FilingStatus = "Married Filing Jointly"
	FilingMarriedFilingSeparately FilingStatus = "Married Filing Separately"
	FilingHeadOfHousehold         FilingStatus = "Head of Household"
)

// Quarter is a fiscal quarter in canonical form.
type Quarter string

const (
	Q1 Quarter = "Q1"
	Q2 Quarter = "Q2"
	Q3 Quarter = "Q3"
	Q4 Quarter = "Q4"
)

// CurrentQuarter maps a point in time to its calendar quarter.
func CurrentQuarter(t time.Time) Quarter {
	switch {
	case t.Month() <= 3:
		return Q1
	case t.Month() <= 6:
		return Q2
	case t.Month() <= 9:
		return Q3
	default:
		return Q4
	}
}

// QueryType categorizes a user question for routing.
type QueryType string

const (
	QueryTax     QueryType = "tax"
	QueryIncome  QueryType = "income"
	QueryGeneral QueryType = "general"
)

// Slot is a required piece of information a domain handler can ask for.
type Slot string

const (
	SlotNone         Slot = ""
	SlotState        Slot = "state"
	SlotFilingStatus Slot = "filingStatus"
)

// Continuation is the tagged awaiting-slot state. The zero value is Idle.
// A non-idle continuation always carries the query that triggered the slot
// request, so the next user turn can be replayed once the slot is filled.
type Continuation struct {
	slot         Slot
	pendingQuery string
}

// Idle returns the continuation for a session with no slot pending.
func Idle() Continuation {
	return Continuation{}
}

// AwaitingSlot returns a continuation that suspends pendingQuery until the
// user supplies slot. It panics if pendingQuery is empty: an awaiting state
// without a query to replay is a programming error, not a runtime condition.
func AwaitingSlot(slot Slot, pendingQuery string) Continuation {
	if slot == SlotNone {
		panic("core: AwaitingSlot requires a slot")
	}
	if pendingQuery == "" {
		panic("core: AwaitingSlot requires the pending query")
	}
	return Continuation{slot: slot, pendingQuery: pendingQuery}
}

// Awaiting reports whether a slot is pending, and which.
func (c Continuation) Awaiting() (Slot, string, bool) {
	if c.slot == SlotNone {
		return SlotNone, "", false
	}
	return c.slot, c.pendingQuery, true
}

// IsIdle reports whether no slot is pending.
func (c Continuation) IsIdle() bool {
	return c.slot == SlotNone
}

// Context is the per-session dialogue context. It is a value: each turn
// receives the previous context and returns a new one, with no mutation
// from other call sites.
type Context struct {
	State        string       // resolved US state name, "" if unknown
	FilingStatus FilingStatus // "" if unknown
	Quarter      Quarter      // "" if unknown
	TaxYear      int
	LastQuery    QueryType // "" before the first classified turn
	Continuation Continuation
}

// NewContext returns a fresh context for a session starting at now.
func NewContext(now time.Time) Context {
	return Context{TaxYear: now.Year()}
}

// Reset clears all dialogue state but keeps the tax year anchored to now.
func (c Context) Reset(now time.Time) Context {
	return NewContext(now)
}

// Snapshot captures the retrieval-relevant context fields for persistence
// alongside a stored conversation.
type Snapshot struct {
	State        string       `json:"state,omitempty"`
	FilingStatus FilingStatus `json:"filingStatus,omitempty"`
	Quarter      Quarter      `json:"quarter,omitempty"`
	TaxYear      int          `json:"taxYear,omitempty"`
	LastQuery    QueryType    `json:"lastQueryType,omitempty"`
}

// Snapshot extracts the durable view of the context.
func (c Context) Snapshot() Snapshot {
	return Snapshot{
		State:        c.State,
		FilingStatus: c.FilingStatus,
		Quarter:      c.Quarter,
		TaxYear:      c.TaxYear,
		LastQuery:    c.LastQuery,
	}
}
