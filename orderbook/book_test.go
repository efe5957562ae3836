package orderbook

import (
	"testing"

	"github.com/google/uuid"
)

// testBook wires a Book with a fixed clock and an id counter, recording
// every event emitted so assertions can inspect the full trade/lifecycle
// trail a scenario produces.
type testBook struct {
	*Book
	now    Timestamp
	nextID OrderID
	events []Event
}

func newTestBook(symbol string) *testBook {
	tb := &testBook{}
	tb.Book = NewBook(symbol, func() Timestamp { return tb.now }, func(e Event) {
		tb.events = append(tb.events, e)
	}, nil)
	return tb
}

func (tb *testBook) submit(side Side, kind Kind, tif TimeInForce, limitPrice, stopPrice Price, qty, refill Quantity) *Order {
	tb.nextID++
	o := NewOrder(tb.nextID, tb.symbol, side, kind, tif, qty, tb.now)
	o.LimitPrice = limitPrice
	o.StopPrice = stopPrice
	o.RefillQty = refill
	_ = tb.Submit(o, uuid.New())
	return o
}

func (tb *testBook) tradesCount() int {
	n := 0
	for _, e := range tb.events {
		if e.Type == EventTrade {
			n++
		}
	}
	return n
}

func TestScenarioSimpleCross(t *testing.T) {
	tb := newTestBook("BTC-USD")
	tb.submit(Sell, Limit, GTC, 100_00, 0, 10, 0)

	taker := tb.submit(Buy, Limit, GTC, 100_00, 0, 4, 0)

	if taker.State != StateFilled {
		t.Fatalf("taker state = %v, want Filled", taker.State)
	}
	if tb.tradesCount() != 1 {
		t.Fatalf("trades = %d, want 1", tb.tradesCount())
	}
	if best := tb.asks.best(); best == nil || best.visibleVolume() != 6 {
		t.Fatalf("remaining ask volume = %v, want 6", best)
	}
}

func TestScenarioMarketSweepsTwoLevels(t *testing.T) {
	tb := newTestBook("BTC-USD")
	tb.submit(Sell, Limit, GTC, 100_00, 0, 5, 0)
	tb.submit(Sell, Limit, GTC, 101_00, 0, 5, 0)

	taker := tb.submit(Buy, Market, IOC, 0, 0, 7, 0)

	if taker.RemainingQty != 0 {
		t.Fatalf("remaining = %d, want 0", taker.RemainingQty)
	}
	if tb.tradesCount() != 2 {
		t.Fatalf("trades = %d, want 2 (one per level swept)", tb.tradesCount())
	}
	if tb.asks.len() != 1 {
		t.Fatalf("remaining ask levels = %d, want 1", tb.asks.len())
	}
	if best := tb.asks.best(); best.price != 101_00 || best.visibleVolume() != 3 {
		t.Fatalf("remaining level = %+v, want price 101_00 qty 3", best)
	}
}

func TestScenarioFillOrKillRejectedWithoutMutation(t *testing.T) {
	tb := newTestBook("BTC-USD")
	tb.submit(Sell, Limit, GTC, 100_00, 0, 3, 0)

	before := tb.asks.best().visibleVolume()
	taker := tb.submit(Buy, Limit, FOK, 100_00, 0, 10, 0)

	if taker.State != StateRejected {
		t.Fatalf("state = %v, want Rejected", taker.State)
	}
	if tb.tradesCount() != 0 {
		t.Fatal("an infeasible FOK must not produce any trade")
	}
	if tb.asks.best().visibleVolume() != before {
		t.Fatal("an infeasible FOK must not mutate the book")
	}

	last := tb.events[len(tb.events)-1]
	if last.Type != EventOrderRejected || last.Err != ErrInsufficientLiquidity {
		t.Fatalf("last event = %+v, want OrderRejected/ErrInsufficientLiquidity", last)
	}
}

func TestScenarioIOCPartialFillKillsRemainder(t *testing.T) {
	tb := newTestBook("BTC-USD")
	tb.submit(Sell, Limit, GTC, 100_00, 0, 3, 0)

	taker := tb.submit(Buy, Limit, IOC, 100_00, 0, 10, 0)

	if taker.RemainingQty != 7 {
		t.Fatalf("remaining = %d, want 7", taker.RemainingQty)
	}
	if taker.State != StateCancelled {
		t.Fatalf("state = %v, want Cancelled (IOC remainder killed)", taker.State)
	}
	if tb.asks.len() != 0 {
		t.Fatal("the fully-consumed ask level should have been removed")
	}
}

func TestScenarioIcebergRefillLosesPriority(t *testing.T) {
	tb := newTestBook("BTC-USD")
	maker := tb.submit(Sell, Iceberg, GTC, 100_00, 0, 9, 3)
	other := tb.submit(Sell, Limit, GTC, 100_00, 0, 3, 0)

	// maker's displayed 3 sits ahead of other's 3 at the same price.
	level := tb.asks.best()
	if level.front().order.ID != maker.ID {
		t.Fatal("iceberg maker should have time priority before its first refill")
	}

	tb.submit(Buy, Limit, GTC, 100_00, 0, 3, 0) // consumes maker's first slice, triggers refill

	if maker.RemainingQty != 6 {
		t.Fatalf("maker remaining = %d, want 6", maker.RemainingQty)
	}
	if maker.DisplayedQty != 3 {
		t.Fatalf("maker displayed after refill = %d, want 3", maker.DisplayedQty)
	}
	if level.front().order.ID != other.ID {
		t.Fatal("after refill the iceberg maker should have moved behind other at the tail")
	}
}

func TestIcebergTakerResidualRestsWithFreshSlice(t *testing.T) {
	tb := newTestBook("BTC-USD")
	tb.submit(Sell, Limit, GTC, 100_00, 0, 5, 0)

	// The sweep consumes the whole displayed slice in one 5-lot trade, so
	// the residual must rest with a fresh slice, not an empty one.
	berg := tb.submit(Buy, Iceberg, GTC, 100_00, 0, 20, 3)

	if berg.RemainingQty != 15 {
		t.Fatalf("remaining = %d, want 15", berg.RemainingQty)
	}
	if berg.DisplayedQty != 3 {
		t.Fatalf("displayed after resting = %d, want 3", berg.DisplayedQty)
	}
	if level := tb.bids.best(); level == nil || level.visibleVolume() != 3 {
		t.Fatalf("resting bid level = %+v, want visible volume 3", level)
	}

	// The fresh slice counts for FOK feasibility and fills without any
	// zero-quantity trade leaking to the sink.
	taker := tb.submit(Sell, Limit, FOK, 100_00, 0, 3, 0)
	if taker.State != StateFilled {
		t.Fatalf("FOK against the resting slice: state = %v, want Filled", taker.State)
	}
	for _, e := range tb.events {
		if e.Type == EventTrade && e.Quantity == 0 {
			t.Fatal("a zero-quantity trade reached the sink")
		}
	}
	if berg.RemainingQty != 12 || berg.DisplayedQty != 3 {
		t.Fatalf("berg = remaining %d displayed %d, want 12/3", berg.RemainingQty, berg.DisplayedQty)
	}
}

func TestLiveOrderCountersTrackBookMutations(t *testing.T) {
	tb := newTestBook("BTC-USD")
	resting := tb.submit(Sell, Limit, GTC, 100_00, 0, 5, 0)
	tb.submit(Buy, StopMarket, GTC, 0, 105_00, 1, 0)

	if tb.activeOrders[Sell] != 1 || tb.activeOrders[Buy] != 1 {
		t.Fatalf("active = buy %d sell %d, want 1/1", tb.activeOrders[Buy], tb.activeOrders[Sell])
	}
	if tb.parkedStops[Buy] != 1 || tb.parkedStops[Sell] != 0 {
		t.Fatalf("parked = buy %d sell %d, want 1/0", tb.parkedStops[Buy], tb.parkedStops[Sell])
	}

	// Filling the resting ask decrements its side; the trade at 100_00
	// stays below the 105_00 trigger, so the stop remains parked.
	tb.submit(Buy, Limit, GTC, 100_00, 0, 5, 0)
	if tb.activeOrders[Sell] != 0 {
		t.Fatalf("active sell after fill = %d, want 0", tb.activeOrders[Sell])
	}
	if tb.parkedStops[Buy] != 1 {
		t.Fatalf("parked buy after off-trigger trade = %d, want 1", tb.parkedStops[Buy])
	}

	_ = resting // fully filled above; its id no longer resolves
	if err := tb.Cancel(resting.ID, uuid.New()); err != ErrNotFound {
		t.Fatalf("Cancel of filled order: err = %v, want ErrNotFound", err)
	}

	// A trade at 105_00 drains the stop; it converts to a market buy with
	// nothing to hit, so every counter returns to zero.
	tb.submit(Sell, Limit, GTC, 105_00, 0, 1, 0)
	tb.submit(Buy, Limit, GTC, 105_00, 0, 1, 0)
	if tb.activeOrders[Buy] != 0 || tb.parkedStops[Buy] != 0 {
		t.Fatalf("after drain: active buy %d parked buy %d, want 0/0", tb.activeOrders[Buy], tb.parkedStops[Buy])
	}
}

func TestStopAlreadyTriggeredOnArrivalMatchesImmediately(t *testing.T) {
	tb := newTestBook("BTC-USD")
	tb.submit(Sell, Limit, GTC, 100_00, 0, 1, 0)
	tb.submit(Buy, Limit, GTC, 100_00, 0, 1, 0) // prints 100_00

	tb.submit(Sell, Limit, GTC, 101_00, 0, 1, 0)
	stop := tb.submit(Buy, StopMarket, GTC, 0, 99_00, 1, 0) // 100_00 >= 99_00: crossed on arrival

	if tb.buyStops.len() != 0 {
		t.Fatal("a stop already past its trigger must not park")
	}
	if stop.State != StateFilled {
		t.Fatalf("state = %v, want Filled (matched the 101_00 ask)", stop.State)
	}
	if last, _ := tb.LastTradePrice(); last != 101_00 {
		t.Fatalf("last trade = %d, want 101_00", last)
	}
}

func TestTriggeredStopWithFOKRejectsWhenInfeasible(t *testing.T) {
	tb := newTestBook("BTC-USD")
	stop := tb.submit(Buy, StopLimit, FOK, 106_00, 105_00, 10, 0)
	if tb.buyStops.len() != 1 {
		t.Fatal("stop should park before any trade")
	}

	// Print 105_00 to fire the trigger; nothing rests on the ask side
	// afterwards, far short of the stop's 10.
	tb.submit(Sell, Limit, GTC, 105_00, 0, 1, 0)
	tb.submit(Buy, Limit, GTC, 105_00, 0, 1, 0)

	if stop.State != StateRejected {
		t.Fatalf("state = %v, want Rejected", stop.State)
	}
	var sawReject bool
	for _, e := range tb.events {
		if e.Type == EventOrderRejected && e.OrderID == stop.ID && e.Err == ErrInsufficientLiquidity {
			sawReject = true
		}
	}
	if !sawReject {
		t.Fatal("expected OrderRejected/ErrInsufficientLiquidity for the triggered FOK stop")
	}
}

func TestModifyPriceDropResubmitsThroughMatching(t *testing.T) {
	tb := newTestBook("BTC-USD")
	tb.submit(Buy, Limit, GTC, 100_00, 0, 5, 0)
	ask := tb.submit(Sell, Limit, GTC, 105_00, 0, 5, 0)

	if err := tb.Modify(ask.ID, 100_00, 5, uuid.New()); err != nil {
		t.Fatalf("Modify: %v", err)
	}
	if ask.State != StateFilled {
		t.Fatalf("state = %v, want Filled (price drop crossed the bid)", ask.State)
	}
	if tb.tradesCount() != 1 {
		t.Fatalf("trades = %d, want 1", tb.tradesCount())
	}
	if last, _ := tb.LastTradePrice(); last != 100_00 {
		t.Fatalf("trade should print at the maker's 100_00, got %d", last)
	}
}

func TestModifyQtyReductionKeepsIDAndLosesPriority(t *testing.T) {
	tb := newTestBook("BTC-USD")
	first := tb.submit(Sell, Limit, GTC, 100_00, 0, 5, 0)
	second := tb.submit(Sell, Limit, GTC, 100_00, 0, 5, 0)

	if err := tb.Modify(first.ID, 100_00, 3, uuid.New()); err != nil {
		t.Fatalf("Modify: %v", err)
	}

	level := tb.asks.best()
	if level.front().order.ID != second.ID {
		t.Fatal("a modified order resubmits at the tail, behind second")
	}
	if level.visibleVolume() != 8 {
		t.Fatalf("level volume = %d, want 8", level.visibleVolume())
	}
	if _, ok := tb.byID[first.ID]; !ok {
		t.Fatal("a qty-reducing modify keeps the original id live")
	}
}

func TestExpireDueSweepsRestingAndParkedGTD(t *testing.T) {
	tb := newTestBook("BTC-USD")
	tb.now = 100
	resting := tb.submit(Buy, Limit, GTC, 99_00, 0, 1, 0)

	gtd := NewOrder(900, tb.symbol, Buy, Limit, GTD, 2, tb.now)
	gtd.LimitPrice = 98_00
	gtd.Expiry = 500
	_ = tb.Submit(gtd, uuid.New())

	stop := NewOrder(901, tb.symbol, Sell, StopMarket, GTD, 3, tb.now)
	stop.StopPrice = 90_00
	stop.Expiry = 500
	_ = tb.Submit(stop, uuid.New())

	tb.now = 600
	expired := tb.ExpireDue(tb.now, uuid.New())

	if len(expired) != 2 {
		t.Fatalf("expired %d orders, want 2", len(expired))
	}
	if gtd.State != StateExpired || stop.State != StateExpired {
		t.Fatalf("states = %v/%v, want Expired/Expired", gtd.State, stop.State)
	}
	if resting.State != StateWorking {
		t.Fatalf("the GTC order must survive the sweep, got %v", resting.State)
	}
	if tb.sellStops.len() != 0 {
		t.Fatal("the parked GTD stop's level should be evicted")
	}
}

func TestCancelRestoresLevelAggregates(t *testing.T) {
	tb := newTestBook("BTC-USD")
	tb.submit(Sell, Limit, GTC, 100_00, 0, 5, 0)
	before := tb.Snapshot(10)

	extra := tb.submit(Sell, Limit, GTC, 101_00, 0, 2, 0)
	if err := tb.Cancel(extra.ID, uuid.New()); err != nil {
		t.Fatalf("Cancel: %v", err)
	}

	after := tb.Snapshot(10)
	if len(after.Asks) != len(before.Asks) {
		t.Fatalf("ask levels = %d, want %d", len(after.Asks), len(before.Asks))
	}
	for i := range before.Asks {
		if after.Asks[i].Price != before.Asks[i].Price || after.Asks[i].Qty != before.Asks[i].Qty {
			t.Fatalf("level %d changed: %+v != %+v", i, after.Asks[i], before.Asks[i])
		}
	}
}

func TestFullSnapshotExcludesHiddenIcebergQuantity(t *testing.T) {
	tb := newTestBook("BTC-USD")
	berg := tb.submit(Sell, Iceberg, GTC, 100_00, 0, 20, 4)
	plain := tb.submit(Sell, Limit, GTC, 100_00, 0, 6, 0)

	snap := tb.FullSnapshot(10)
	if !snap.HasTraded && snap.LastTrade != 0 {
		t.Fatalf("untouched book reports last trade %d", snap.LastTrade)
	}
	if len(snap.Asks) != 1 {
		t.Fatalf("ask levels = %d, want 1", len(snap.Asks))
	}
	level := snap.Asks[0]
	if level.Orders != 2 || level.Qty != 10 {
		t.Fatalf("level = %+v, want 2 orders, visible qty 10", level)
	}
	if len(level.Queue) != 2 || level.Queue[0].ID != berg.ID || level.Queue[1].ID != plain.ID {
		t.Fatalf("queue = %+v, want FIFO [%d %d]", level.Queue, berg.ID, plain.ID)
	}
	if level.Queue[0].Qty != 4 {
		t.Fatalf("iceberg row qty = %d, want the 4 displayed lots only", level.Queue[0].Qty)
	}
}

func TestBookNeverRestsCrossed(t *testing.T) {
	tb := newTestBook("BTC-USD")
	tb.submit(Sell, Limit, GTC, 100_00, 0, 3, 0)
	tb.submit(Buy, Limit, GTC, 102_00, 0, 5, 0) // crosses, residual rests at 102_00

	bid, ask, bidOK, askOK := tb.BestBidAsk()
	if !bidOK {
		t.Fatal("the buy residual should rest")
	}
	if askOK && bid.Price >= ask.Price {
		t.Fatalf("book rests crossed: bid %d >= ask %d", bid.Price, ask.Price)
	}
	if bid.Qty != 2 {
		t.Fatalf("residual bid qty = %d, want 2", bid.Qty)
	}
}

func TestScenarioStopTriggerChain(t *testing.T) {
	tb := newTestBook("BTC-USD")
	tb.submit(Sell, StopMarket, GTC, 0, 98_00, 4, 0)
	tb.submit(Buy, Limit, GTC, 98_00, 0, 4, 0)
	tb.submit(Buy, Limit, GTC, 97_00, 0, 4, 0)

	// No trade yet, so the stop should still be parked.
	if tb.sellStops.len() != 1 {
		t.Fatalf("parked sell stops = %d, want 1", tb.sellStops.len())
	}

	// This trade prints at 98_00, which should trigger and fill the stop.
	tb.submit(Sell, Limit, GTC, 98_00, 0, 4, 0)

	if tb.sellStops.len() != 0 {
		t.Fatal("the stop should have drained once triggered")
	}

	var sawTrigger, sawStopTrade bool
	for _, e := range tb.events {
		if e.Type == EventOrderTriggered {
			sawTrigger = true
		}
	}
	if tb.tradesCount() >= 2 {
		sawStopTrade = true
	}
	if !sawTrigger {
		t.Fatal("expected an OrderTriggered event")
	}
	if !sawStopTrade {
		t.Fatal("expected the triggered stop to have matched")
	}
}
