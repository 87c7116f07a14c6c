// Package payment wraps the external payment processor: intent creation and
// verification, plus inbound webhook signature checks. The processor itself
// is an opaque collaborator; this package only tracks the intents we created
// and the checkout state attached to them.
package payment

import (
	"time"

	"nameclaim/pkg/platform/sentinel"
)

// CheckoutState tracks where a checkout (one payment intent covering one or
// more reserved domains) sits in its lifecycle.
type CheckoutState string

const (
	StateAwaitingPayment CheckoutState = "AWAITING_PAYMENT"
	StatePaymentVerified CheckoutState = "PAYMENT_VERIFIED"
	StatePaymentFailed   CheckoutState = "PAYMENT_FAILED"
	StateExpired         CheckoutState = "EXPIRED"
)

// validCheckoutTransitions is the closed set of allowed moves. Terminal
// states have no successors; re-applying the current state is a no-op
// handled by callers, not a transition.
var validCheckoutTransitions = map[CheckoutState][]CheckoutState{
	StateAwaitingPayment: {StatePaymentVerified, StatePaymentFailed, StateExpired},
}

// CanTransition reports whether from -> to is an allowed checkout move.
func CanTransition(from, to CheckoutState) bool {
	for _, next := range validCheckoutTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Intent is a payment intent we created, with enough context to resume the
// order flow when the processor reports back asynchronously.
type Intent struct {
	ID            string
	ClientSecret  string
	AmountCents   int64
	DomainNames   []string
	WalletAddress string
	CheckoutStart time.Time
	State         CheckoutState
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Transition moves the intent to a new state, enforcing the validity table.
// Returns sentinel.ErrInvalidState when the move is not allowed.
func (i *Intent) Transition(to CheckoutState, at time.Time) error {
	if !CanTransition(i.State, to) {
		return sentinel.ErrInvalidState
	}
	i.State = to
	i.UpdatedAt = at
	return nil
}
