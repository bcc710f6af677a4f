// Package session defines the per-actor conversation state.
package session

import (
	"time"

	"github.com/m3rciful/guideshop/core/telegram/state"
	"github.com/m3rciful/guideshop/internal/shop"
)

// Flow names the dialogue a session belongs to.
type Flow string

const (
	FlowNone       Flow = ""
	FlowSubmission Flow = "submission"
	FlowPurchase   Flow = "purchase"
)

// Step is the current position inside a flow.
type Step string

// Submission steps, in order.
const (
	StepName        Step = "name"
	StepPhoto       Step = "photo"
	StepDescription Step = "description"
	StepFile        Step = "file"
	StepPriceMinor  Step = "price_minor"
	StepPriceStars  Step = "price_stars"
)

// Purchase steps.
const (
	StepSelected         Step = "selected"
	StepStarsInvoiced    Step = "stars_invoiced"
	StepAwaitingReceipt  Step = "awaiting_receipt"
	StepAwaitingDecision Step = "awaiting_decision"
)

// Session is the state of one actor's conversation. At most one exists per actor.
type Session struct {
	ActorID   int64                `json:"actor_id"`
	Flow      Flow                 `json:"flow"`
	Step      Step                 `json:"step"`
	Kind      shop.Kind            `json:"kind"`
	Pending   *shop.PendingItem    `json:"pending,omitempty"`
	Purchase  *shop.PurchaseIntent `json:"purchase,omitempty"`
	Handshake *shop.Handshake      `json:"handshake,omitempty"`
	CreatedAt time.Time            `json:"created_at"`
}

// Store is the session store used by the workflows.
type Store = state.Store[Session]

// NewSubmission starts an item submission at the name step.
func NewSubmission(actor int64, kind shop.Kind, now time.Time) Session {
	return Session{
		ActorID:   actor,
		Flow:      FlowSubmission,
		Step:      StepName,
		Kind:      kind,
		Pending:   &shop.PendingItem{},
		CreatedAt: now,
	}
}

// NewPurchase starts a purchase of name.
func NewPurchase(buyer int64, kind shop.Kind, name string, now time.Time) Session {
	return Session{
		ActorID:   buyer,
		Flow:      FlowPurchase,
		Step:      StepSelected,
		Kind:      kind,
		Purchase:  &shop.PurchaseIntent{BuyerID: buyer, Kind: kind, ItemName: name},
		CreatedAt: now,
	}
}

// In reports whether s is in flow at one of steps (any step when none given).
func (s Session) In(flow Flow, steps ...Step) bool {
	if s.Flow != flow {
		return false
	}
	if len(steps) == 0 {
		return true
	}
	for _, st := range steps {
		if s.Step == st {
			return true
		}
	}
	return false
}

// OpenHandshake returns the handshake if it is still awaiting a decision.
func (s Session) OpenHandshake() (*shop.Handshake, bool) {
	if s.Flow != FlowPurchase || s.Handshake == nil || s.Handshake.State.Terminal() {
		return nil, false
	}
	return s.Handshake, true
}
