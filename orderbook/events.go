package orderbook

import "github.com/google/uuid"

// EventType enumerates every book-level occurrence a caller can observe.
// Trades and per-order lifecycle events are reported through the same Event
// type so a single EventSink can assemble both a trade tape and an order
// audit log.
type EventType int8

const (
	EventTrade EventType = iota
	EventOrderAccepted
	EventOrderPartiallyFilled
	EventOrderFilled
	EventOrderCancelled
	EventOrderRejected
	EventOrderTriggered
	EventOrderExpired
)

func (t EventType) String() string {
	switch t {
	case EventTrade:
		return "Trade"
	case EventOrderAccepted:
		return "OrderAccepted"
	case EventOrderPartiallyFilled:
		return "OrderPartiallyFilled"
	case EventOrderFilled:
		return "OrderFilled"
	case EventOrderCancelled:
		return "OrderCancelled"
	case EventOrderRejected:
		return "OrderRejected"
	case EventOrderTriggered:
		return "OrderTriggered"
	case EventOrderExpired:
		return "OrderExpired"
	default:
		return "Unknown"
	}
}

// Event is the single notification shape emitted by a Book during command
// processing. Only the fields relevant to Type are populated; TraceID
// threads an Event back to the command that produced it.
type Event struct {
	Type    EventType
	TraceID uuid.UUID
	Symbol  string

	// Trade fields
	TakerOrderID OrderID
	MakerOrderID OrderID
	Price        Price
	Quantity     Quantity
	TakerSide    Side

	// Order lifecycle fields
	OrderID   OrderID
	Remaining Quantity
	Err       error

	Sequence  Sequence
	Timestamp Timestamp
}

// EventSink receives events in the order they are produced during a single
// command's processing; a Book never buffers a partial sequence, so a sink
// observing a Trade event is guaranteed both counterparties already reflect
// the fill.
type EventSink func(Event)

func newTradeEvent(symbol string, taker, maker OrderID, price Price, qty Quantity, takerSide Side, seq Sequence, now Timestamp, trace uuid.UUID) Event {
	return Event{
		Type:         EventTrade,
		TraceID:      trace,
		Symbol:       symbol,
		TakerOrderID: taker,
		MakerOrderID: maker,
		Price:        price,
		Quantity:     qty,
		TakerSide:    takerSide,
		Sequence:     seq,
		Timestamp:    now,
	}
}

func newLifecycleEvent(typ EventType, symbol string, id OrderID, remaining Quantity, err error, seq Sequence, now Timestamp, trace uuid.UUID) Event {
	return Event{
		Type:      typ,
		TraceID:   trace,
		Symbol:    symbol,
		OrderID:   id,
		Remaining: remaining,
		Err:       err,
		Sequence:  seq,
		Timestamp: now,
	}
}
