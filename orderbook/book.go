package orderbook

import (
	"github.com/google/uuid"

	"github.com/openalpha/lobengine/metrics"
)

// locator is the id-index entry for one live order: its node handle and the
// level it currently occupies, so Cancel/Modify/ExpireDue never need a tree
// lookup to find where an order rests.
type locator struct {
	order *Order
	node  *orderNode
	level *priceLevel
	side  Side
	stop  bool
}

// Book is one symbol's matching state: two side books, two stop books, and
// the id index tying them together. A Book is not safe for concurrent use;
// concurrent.Facade serializes access per symbol.
type Book struct {
	symbol string

	bids *sideBook
	asks *sideBook

	buyStops  *stopBook
	sellStops *stopBook

	byID map[OrderID]*locator
	pool *nodePool

	clock          Clock
	seq            Sequence
	lastTradePrice Price
	hasTraded      bool

	activeOrders [2]int // live orders per side, resting or parked
	parkedStops  [2]int // subset of activeOrders sitting in a stop book

	sink    EventSink
	metrics *metrics.Collector
}

// NewBook constructs an empty book for symbol. sink may be nil, in which
// case events are computed but discarded; collector may be nil to disable
// gauge publishing.
func NewBook(symbol string, clock Clock, sink EventSink, collector *metrics.Collector) *Book {
	return &Book{
		symbol:    symbol,
		bids:      newSideBook(true),
		asks:      newSideBook(false),
		buyStops:  newStopBook(true),
		sellStops: newStopBook(false),
		byID:      make(map[OrderID]*locator),
		pool:      newNodePool(),
		clock:     clock,
		sink:      sink,
		metrics:   collector,
	}
}

func (b *Book) nextSeq() Sequence {
	b.seq++
	return b.seq
}

func (b *Book) emit(e Event) {
	if b.sink != nil {
		b.sink(e)
	}
}

// trackAdd/trackRemove keep the live-order counters in step with every byID
// insert and delete, feeding the active-orders and parked-stops gauges.
func (b *Book) trackAdd(side Side, stop bool) {
	b.activeOrders[side]++
	if stop {
		b.parkedStops[side]++
	}
	b.publishGauges(side)
}

func (b *Book) trackRemove(side Side, stop bool) {
	b.activeOrders[side]--
	if stop {
		b.parkedStops[side]--
	}
	b.publishGauges(side)
}

func (b *Book) publishGauges(side Side) {
	if b.metrics == nil {
		return
	}
	b.metrics.SetOrdersActive(b.symbol, side.String(), b.activeOrders[side])
	b.metrics.SetStopsParked(b.symbol, side.String(), b.parkedStops[side])
}

func (b *Book) sideFor(s Side) *sideBook {
	if s == Buy {
		return b.bids
	}
	return b.asks
}

func (b *Book) oppositeSide(s Side) *sideBook {
	if s == Buy {
		return b.asks
	}
	return b.bids
}

func (b *Book) stopSideFor(s Side) *stopBook {
	if s == Buy {
		return b.buyStops
	}
	return b.sellStops
}

// Submit accepts a new order into the book: a GTD order already expired is
// rejected outright, a stop order is parked pending trigger, everything
// else is matched immediately and (for GTC/GTD leftovers) rested. Submit
// never returns an error for ordinary trading outcomes (rejection, partial
// fill, kill) -- those surface as events; the error return is reserved for
// programmer mistakes the Engine should already have screened out.
func (b *Book) Submit(o *Order, trace uuid.UUID) error {
	now := b.clock()
	if o.TIF == GTD && o.Expiry <= now {
		_ = o.Reject()
		b.emit(newLifecycleEvent(EventOrderRejected, b.symbol, o.ID, o.RemainingQty, ErrExpiredOnArrival, o.Sequence, now, trace))
		return nil
	}
	if o.Kind.IsStop() {
		if b.stopCrossed(o) {
			// Already triggered on arrival: skip the stop book and run the
			// underlying market/limit logic directly.
			materializeTriggered(o)
			return b.acceptAndMatch(o, trace)
		}
		return b.parkStop(o, trace)
	}
	return b.acceptAndMatch(o, trace)
}

func (b *Book) stopCrossed(o *Order) bool {
	if !b.hasTraded {
		return false
	}
	if o.Side == Buy {
		return b.lastTradePrice >= o.StopPrice
	}
	return b.lastTradePrice <= o.StopPrice
}

func (b *Book) acceptAndMatch(o *Order, trace uuid.UUID) error {
	now := b.clock()
	if o.TIF == FOK && !b.feasible(o) {
		_ = o.Reject()
		b.emit(newLifecycleEvent(EventOrderRejected, b.symbol, o.ID, o.RemainingQty, ErrInsufficientLiquidity, o.Sequence, now, trace))
		return nil
	}
	seq := b.nextSeq()
	if err := o.Accept(seq); err != nil {
		return err
	}
	b.emit(newLifecycleEvent(EventOrderAccepted, b.symbol, o.ID, o.RemainingQty, nil, seq, now, trace))

	timer := metrics.NewTimer()
	b.matchAgainst(o, trace)
	if b.metrics != nil {
		b.metrics.RecordMatchingLatency(b.symbol, timer.ElapsedUs())
	}
	b.finalizeResting(o, trace)
	b.drainStops(trace)
	return nil
}

func (b *Book) parkStop(o *Order, trace uuid.UUID) error {
	now := b.clock()
	seq := b.nextSeq()
	if err := o.Park(seq); err != nil {
		return err
	}
	level := b.stopSideFor(o.Side).insertAt(o.StopPrice)
	node := b.pool.get(o)
	level.append(node)
	b.byID[o.ID] = &locator{order: o, node: node, level: level, side: o.Side, stop: true}
	b.trackAdd(o.Side, true)
	b.emit(newLifecycleEvent(EventOrderAccepted, b.symbol, o.ID, o.RemainingQty, nil, seq, now, trace))
	return nil
}

// finalizeResting disposes of whatever remains of o once matching has run
// its course: nothing to do if fully filled, discard the remainder for
// Market/IOC/FOK, otherwise rest it.
func (b *Book) finalizeResting(o *Order, trace uuid.UUID) {
	now := b.clock()
	switch {
	case o.RemainingQty == 0:
		return
	case o.Kind == Market, o.TIF == IOC, o.TIF == FOK:
		_ = o.Cancel()
		delete(b.byID, o.ID)
		b.emit(newLifecycleEvent(EventOrderCancelled, b.symbol, o.ID, o.RemainingQty, nil, o.Sequence, now, trace))
	default:
		// A taker Iceberg can burn through its displayed slice while
		// sweeping; re-slice before it rests so it stays visible to the
		// matching walk and to FOK feasibility.
		if o.Kind == Iceberg && o.DisplayedQty == 0 {
			o.DisplayedQty = minQty(o.RefillQty, o.RemainingQty)
		}
		level := b.sideFor(o.Side).insertAt(o.LimitPrice)
		node := b.pool.get(o)
		level.append(node)
		b.byID[o.ID] = &locator{order: o, node: node, level: level, side: o.Side}
		b.trackAdd(o.Side, false)
	}
}

func (b *Book) emitFillEvent(o *Order, seq Sequence, now Timestamp, trace uuid.UUID) {
	switch o.State {
	case StateFilled:
		b.emit(newLifecycleEvent(EventOrderFilled, b.symbol, o.ID, o.RemainingQty, nil, seq, now, trace))
	case StatePartiallyFilled:
		b.emit(newLifecycleEvent(EventOrderPartiallyFilled, b.symbol, o.ID, o.RemainingQty, nil, seq, now, trace))
	}
}

// matchAgainst walks the opposite side from best price, consuming FIFO
// within each crossing level, until the taker is exhausted or no further
// level crosses. It does not decide what happens to any taker remainder;
// finalizeResting does that once matching stops.
func (b *Book) matchAgainst(taker *Order, trace uuid.UUID) {
	opposite := b.oppositeSide(taker.Side)
	now := b.clock()

	for taker.RemainingQty > 0 {
		level := opposite.best()
		if level == nil {
			break
		}
		if taker.Kind != Market && !priceCompatible(taker, level.price) {
			break
		}

		for taker.RemainingQty > 0 && !level.isEmpty() {
			node := level.front()
			maker := node.order

			tradeQty := minQty(taker.RemainingQty, maker.VisibleQty())
			price := level.price
			seq := b.nextSeq()

			_ = taker.Fill(tradeQty)
			_ = maker.Fill(tradeQty)
			level.adjustVolume(tradeQty)
			b.lastTradePrice = price
			b.hasTraded = true

			b.emit(newTradeEvent(b.symbol, taker.ID, maker.ID, price, tradeQty, taker.Side, seq, now, trace))
			b.emitFillEvent(taker, seq, now, trace)
			b.emitFillEvent(maker, seq, now, trace)

			switch {
			case maker.RemainingQty == 0:
				level.popFront()
				delete(b.byID, maker.ID)
				b.pool.put(node)
				b.trackRemove(maker.Side, false)
			case maker.NeedsIcebergRefill():
				level.remove(node)
				maker.Refill(b.nextSeq())
				level.append(node)
			}
		}

		if level.isEmpty() {
			opposite.removeLevel(level.price)
		}
	}
}

func priceCompatible(taker *Order, levelPrice Price) bool {
	if taker.Side == Buy {
		return taker.LimitPrice >= levelPrice
	}
	return taker.LimitPrice <= levelPrice
}

// feasible reports whether the opposite side currently holds enough visible
// volume, at prices the taker would accept, to fill o completely -- the
// pre-trade scan a Fill-or-Kill order requires before any mutation occurs.
func (b *Book) feasible(o *Order) bool {
	var acc Quantity
	satisfied := false
	b.oppositeSide(o.Side).iterFromBest(func(level *priceLevel) bool {
		if o.Kind != Market && !priceCompatible(o, level.price) {
			return false
		}
		acc += level.visibleVolume()
		if acc >= o.RemainingQty {
			satisfied = true
			return false
		}
		return true
	})
	return satisfied
}

// Cancel removes a live order from whichever book it currently occupies.
func (b *Book) Cancel(id OrderID, trace uuid.UUID) error {
	loc, ok := b.byID[id]
	if !ok {
		return ErrNotFound
	}
	now := b.clock()
	loc.level.remove(loc.node)
	b.pool.put(loc.node)
	delete(b.byID, id)
	b.trackRemove(loc.side, loc.stop)
	if loc.level.isEmpty() {
		if loc.stop {
			b.stopSideFor(loc.side).removeLevel(loc.level.price)
		} else {
			b.sideFor(loc.side).removeLevel(loc.level.price)
		}
	}
	if err := loc.order.Cancel(); err != nil {
		return err
	}
	b.emit(newLifecycleEvent(EventOrderCancelled, b.symbol, id, loc.order.RemainingQty, nil, loc.order.Sequence, now, trace))
	return nil
}

// Modify amends a resting order as a cancel-plus-resubmit that retains the
// original id, permitted only when neither price nor quantity increases;
// any increase needs a new id and a fresh Submit. The order re-enters the
// matching path with a new sequence, so queue position is given up, and a
// sell whose price dropped through the bid side trades immediately rather
// than resting crossed.
func (b *Book) Modify(id OrderID, newPrice Price, newQty Quantity, trace uuid.UUID) error {
	loc, ok := b.byID[id]
	if !ok || loc.stop {
		return ErrNotFound
	}
	order := loc.order
	if newPrice <= 0 || newQty == 0 {
		return ErrBadOrder
	}
	if newPrice > order.LimitPrice || newQty > order.RemainingQty {
		return ErrInvalidModify
	}

	loc.level.remove(loc.node)
	b.pool.put(loc.node)
	if loc.level.isEmpty() {
		b.sideFor(loc.side).removeLevel(loc.level.price)
	}
	delete(b.byID, id)
	b.trackRemove(loc.side, false)

	order.LimitPrice = newPrice
	order.RemainingQty = newQty
	if order.Kind == Iceberg {
		order.DisplayedQty = minQty(order.RefillQty, order.RemainingQty)
	}
	order.Sequence = b.nextSeq()

	b.matchAgainst(order, trace)
	b.finalizeResting(order, trace)
	b.drainStops(trace)
	return nil
}

// drainStops triggers every stop whose condition the most recent trade
// price has crossed, activating each in sequence and re-running matching,
// which may itself move the price far enough to trigger further stops; it
// iterates to a fixpoint rather than a single pass.
func (b *Book) drainStops(trace uuid.UUID) {
	if !b.hasTraded {
		return
	}
	for {
		level, buySide, ok := b.nextDueStopLevel()
		if !ok {
			return
		}
		for !level.isEmpty() {
			node := level.popFront()
			order := node.order
			delete(b.byID, order.ID)
			b.pool.put(node)
			b.trackRemove(order.Side, true)

			if err := order.Trigger(); err != nil {
				continue
			}
			now := b.clock()
			b.emit(newLifecycleEvent(EventOrderTriggered, b.symbol, order.ID, order.RemainingQty, nil, order.Sequence, now, trace))

			materializeTriggered(order)
			if order.TIF == FOK && !b.feasible(order) {
				// FOK applies post-trigger: kill before any mutation.
				_ = order.Reject()
				b.emit(newLifecycleEvent(EventOrderRejected, b.symbol, order.ID, order.RemainingQty, ErrInsufficientLiquidity, order.Sequence, now, trace))
				continue
			}
			seq := b.nextSeq()
			_ = order.Activate(seq)
			b.matchAgainst(order, trace)
			b.finalizeResting(order, trace)
		}
		b.stopSideFor(sideFromBuy(buySide)).removeLevel(level.price)
	}
}

func (b *Book) nextDueStopLevel() (*priceLevel, bool, bool) {
	if due := b.buyStops.dueUpTo(b.lastTradePrice, true); len(due) > 0 {
		return due[0], true, true
	}
	if due := b.sellStops.dueUpTo(b.lastTradePrice, false); len(due) > 0 {
		return due[0], false, true
	}
	return nil, false, false
}

func sideFromBuy(buySide bool) Side {
	if buySide {
		return Buy
	}
	return Sell
}

// materializeTriggered converts a conditional order into the plain order it
// becomes once triggered: StopMarket acts as Market, StopLimit as Limit at
// its already-assigned LimitPrice.
func materializeTriggered(o *Order) {
	switch o.Kind {
	case StopMarket:
		o.Kind = Market
	case StopLimit:
		o.Kind = Limit
	}
}

// ExpireDue cancels every resting or parked GTD order whose expiry is at or
// before now, and returns the ids it expired so callers can prune any
// index keyed on order id.
func (b *Book) ExpireDue(now Timestamp, trace uuid.UUID) []OrderID {
	var expired []OrderID
	for id, loc := range b.byID {
		order := loc.order
		if order.TIF != GTD || order.Expiry > now {
			continue
		}
		loc.level.remove(loc.node)
		b.pool.put(loc.node)
		if loc.level.isEmpty() {
			if loc.stop {
				b.stopSideFor(loc.side).removeLevel(loc.level.price)
			} else {
				b.sideFor(loc.side).removeLevel(loc.level.price)
			}
		}
		delete(b.byID, id)
		b.trackRemove(loc.side, loc.stop)
		_ = order.Expire()
		b.emit(newLifecycleEvent(EventOrderExpired, b.symbol, id, order.RemainingQty, nil, order.Sequence, now, trace))
		expired = append(expired, id)
	}
	return expired
}
