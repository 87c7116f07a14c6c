package order

// State is the lifecycle position of a single domain order. A domain moves
// forward through the happy path and into one of the failure branches; the
// failure branches are terminal unless a retry re-enters the flow.
type State string

const (
	StateSearching       State = "SEARCHING"
	StateReserving       State = "RESERVING"
	StateReserved        State = "RESERVED"
	StateAwaitingPayment State = "AWAITING_PAYMENT"
	StatePaymentVerified State = "PAYMENT_VERIFIED"
	StateTransferring    State = "TRANSFERRING"
	StateTransferred     State = "TRANSFERRED"

	StateReserveFailed  State = "RESERVE_FAILED"
	StatePaymentFailed  State = "PAYMENT_FAILED"
	StateTransferFailed State = "TRANSFER_FAILED"
	StateExpired        State = "EXPIRED"
)

// validTransitions is the closed set of forward moves. Failure states admit
// no successors except the retry re-entries listed here.
var validTransitions = map[State][]State{
	StateSearching:       {StateReserving},
	StateReserving:       {StateReserved, StateReserveFailed},
	StateReserved:        {StateAwaitingPayment, StateTransferring, StateExpired},
	StateAwaitingPayment: {StatePaymentVerified, StatePaymentFailed, StateExpired},
	StatePaymentVerified: {StateTransferring},
	StateTransferring:    {StateTransferred, StateTransferFailed},
	StateTransferFailed:  {StateTransferring},
	StateTransferred:     {},
	StateReserveFailed:   {},
	StatePaymentFailed:   {},
	StateExpired:         {},
}

// CanTransition reports whether from -> to is an allowed move.
func CanTransition(from, to State) bool {
	for _, next := range validTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Terminal reports whether the state admits no further transitions.
func (s State) Terminal() bool {
	return len(validTransitions[s]) == 0
}

func (s State) Valid() bool {
	_, ok := validTransitions[s]
	return ok
}
