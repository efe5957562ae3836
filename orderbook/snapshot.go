package orderbook

// OrderView is one per-order row in a full-depth snapshot: the visible
// quantity only, hidden Iceberg quantity is never exposed.
type OrderView struct {
	ID  OrderID
	Qty Quantity
}

// LevelView is one read-only price level in a Snapshot: the aggregate
// visible quantity and order count resting at a price. Queue is populated
// only by FullSnapshot, in FIFO order.
type LevelView struct {
	Price  Price
	Qty    Quantity
	Orders int
	Queue  []OrderView
}

// Snapshot is a point-in-time, copy-out view of a Book's depth and last
// trade price. There is no cached top-of-book: both Snapshot and BestBidAsk
// query the side books directly, cheap enough given the btree's O(log P)
// Min/Max.
type Snapshot struct {
	Symbol    string
	LastTrade Price
	HasTraded bool
	Bids      []LevelView
	Asks      []LevelView
}

// Snapshot copies out up to depth price levels per side, best first, as
// level aggregates.
func (b *Book) Snapshot(depth int) Snapshot {
	return b.snapshot(depth, false)
}

// FullSnapshot copies out up to depth levels per side including the
// per-order FIFO queue at each level.
func (b *Book) FullSnapshot(depth int) Snapshot {
	return b.snapshot(depth, true)
}

func (b *Book) snapshot(depth int, full bool) Snapshot {
	return Snapshot{
		Symbol:    b.symbol,
		LastTrade: b.lastTradePrice,
		HasTraded: b.hasTraded,
		Bids:      levelViews(b.bids, depth, full),
		Asks:      levelViews(b.asks, depth, full),
	}
}

func levelViews(s *sideBook, depth int, full bool) []LevelView {
	if depth <= 0 {
		return nil
	}
	views := make([]LevelView, 0, depth)
	s.iterFromBest(func(level *priceLevel) bool {
		view := LevelView{Price: level.price, Qty: level.visibleVolume(), Orders: level.count}
		if full {
			view.Queue = make([]OrderView, 0, level.count)
			for n := level.front(); n != nil; n = n.next {
				view.Queue = append(view.Queue, OrderView{ID: n.order.ID, Qty: n.order.VisibleQty()})
			}
		}
		views = append(views, view)
		return len(views) < depth
	})
	return views
}

// BestBidAsk returns the best resting price on each side; ok is false for a
// side with no resting orders.
func (b *Book) BestBidAsk() (bestBid, bestAsk LevelView, bidOK, askOK bool) {
	if level := b.bids.best(); level != nil {
		bestBid, bidOK = LevelView{Price: level.price, Qty: level.visibleVolume(), Orders: level.count}, true
	}
	if level := b.asks.best(); level != nil {
		bestAsk, askOK = LevelView{Price: level.price, Qty: level.visibleVolume(), Orders: level.count}, true
	}
	return
}

// LastTradePrice returns the most recent trade price for this symbol and
// whether any trade has occurred yet.
func (b *Book) LastTradePrice() (Price, bool) {
	return b.lastTradePrice, b.hasTraded
}
