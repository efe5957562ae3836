package orderbook

// Order is the canonical live representation of one order and its state
// machine. It is a plain aggregate: concurrency is the
// owning Book's concern, not the Order's.
type Order struct {
	ID     OrderID
	Symbol string
	Side   Side
	Kind   Kind
	TIF    TimeInForce

	LimitPrice Price // Limit, StopLimit, Iceberg
	StopPrice  Price // StopMarket, StopLimit

	TotalQty     Quantity
	RemainingQty Quantity
	DisplayedQty Quantity // Iceberg only
	RefillQty    Quantity // Iceberg only: the original display slice

	Expiry Timestamp // GTD only

	Sequence Sequence
	State    State

	CreatedAt Timestamp
}

// NewOrder constructs an order in its initial State, ready for Accept or
// Park. Validation of field combinations is the Engine's job.
func NewOrder(id OrderID, symbol string, side Side, kind Kind, tif TimeInForce, qty Quantity, now Timestamp) *Order {
	return &Order{
		ID:           id,
		Symbol:       symbol,
		Side:         side,
		Kind:         kind,
		TIF:          tif,
		TotalQty:     qty,
		RemainingQty: qty,
		State:        StateNew,
		CreatedAt:    now,
	}
}

// VisibleQty is the quantity counterparties can actually trade against: the
// displayed slice for Iceberg, the full remaining quantity otherwise.
func (o *Order) VisibleQty() Quantity {
	if o.Kind == Iceberg {
		return o.DisplayedQty
	}
	return o.RemainingQty
}

// Accept transitions New -> Working and assigns the book's time-priority
// sequence. Used for every order that rests or matches
// immediately; stop orders awaiting trigger use Park instead.
func (o *Order) Accept(seq Sequence) error {
	if o.State != StateNew {
		return ErrInvalidState
	}
	if o.Kind.IsStop() {
		return ErrInvalidState
	}
	o.Sequence = seq
	o.State = StateWorking
	if o.Kind == Iceberg && o.DisplayedQty == 0 {
		o.DisplayedQty = minQty(o.RefillQty, o.RemainingQty)
	}
	return nil
}

// Park transitions New -> Accepted: a stop order has been acknowledged but
// has not yet crossed its trigger, so it sits in a stop book rather than a
// side book.
func (o *Order) Park(seq Sequence) error {
	if o.State != StateNew {
		return ErrInvalidState
	}
	if !o.Kind.IsStop() {
		return ErrInvalidState
	}
	o.Sequence = seq
	o.State = StateAccepted
	return nil
}

// Trigger transitions Accepted -> Triggered: the stop's condition fired
// against the last trade price. Callers then rebuild the
// order as a Market or Limit and Activate it into the main book.
func (o *Order) Trigger() error {
	if o.State != StateAccepted {
		return ErrInvalidState
	}
	o.State = StateTriggered
	return nil
}

// Activate transitions Triggered -> Working with a fresh book sequence,
// used once a triggered stop re-enters the matching path.
func (o *Order) Activate(seq Sequence) error {
	if o.State != StateTriggered {
		return ErrInvalidState
	}
	o.Sequence = seq
	o.State = StateWorking
	if o.Kind == Iceberg && o.DisplayedQty == 0 {
		o.DisplayedQty = minQty(o.RefillQty, o.RemainingQty)
	}
	return nil
}

// Fill consumes qty from RemainingQty (and DisplayedQty, for Iceberg),
// transitioning to PartiallyFilled or Filled.
func (o *Order) Fill(qty Quantity) error {
	if o.State != StateWorking && o.State != StatePartiallyFilled {
		return ErrInvalidState
	}
	if qty == 0 || qty > o.RemainingQty {
		return ErrInvalidState
	}
	o.RemainingQty -= qty
	if o.Kind == Iceberg {
		if qty > o.DisplayedQty {
			o.DisplayedQty = 0
		} else {
			o.DisplayedQty -= qty
		}
	}
	if o.RemainingQty == 0 {
		o.State = StateFilled
	} else {
		o.State = StatePartiallyFilled
	}
	return nil
}

// NeedsIcebergRefill reports whether the visible slice is exhausted while
// quantity remains: the next slice goes to the tail of the level with a
// new sequence, losing time priority.
func (o *Order) NeedsIcebergRefill() bool {
	return o.Kind == Iceberg && o.DisplayedQty == 0 && o.RemainingQty > 0
}

// Refill re-slices an Iceberg order after its displayed quantity was
// consumed and assigns it the new sequence it receives at the tail.
func (o *Order) Refill(seq Sequence) {
	o.DisplayedQty = minQty(o.RefillQty, o.RemainingQty)
	o.Sequence = seq
}

// Reject transitions New -> Rejected or Triggered -> Rejected: the order
// failed screening (expired on arrival, infeasible FOK) before ever resting
// in a side book. The Triggered source covers a parked FOK stop whose
// feasibility check fails at trigger time.
func (o *Order) Reject() error {
	if o.State != StateNew && o.State != StateTriggered {
		return ErrInvalidState
	}
	o.State = StateRejected
	return nil
}

// Cancel transitions to Cancelled. Rejected if the order is already
// terminal.
func (o *Order) Cancel() error {
	if o.State.IsTerminal() {
		return ErrInvalidState
	}
	o.State = StateCancelled
	return nil
}

// Expire transitions to Expired, used by GTD sweeps.
func (o *Order) Expire() error {
	if o.State.IsTerminal() {
		return ErrInvalidState
	}
	o.State = StateExpired
	return nil
}

// IsLive reports whether the order still occupies a book position (resting
// or parked) and therefore holds an id-index locator.
func (o *Order) IsLive() bool {
	switch o.State {
	case StateAccepted, StateWorking, StatePartiallyFilled, StateTriggered:
		return true
	default:
		return false
	}
}

func minQty(a, b Quantity) Quantity {
	if a < b {
		return a
	}
	return b
}
