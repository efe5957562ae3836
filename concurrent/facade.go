// Package concurrent makes orderbook.Engine safe for many producer
// goroutines: a mutex per symbol serializes matching on each book while
// commands on different symbols run in parallel.
package concurrent

import (
	"sort"
	"sync"

	"github.com/openalpha/lobengine/orderbook"
)

// symbolShard serializes every command against one symbol's Book.
type symbolShard struct {
	mu sync.Mutex
}

// Facade makes orderbook.Engine safe for concurrent callers: commands
// against different symbols run uncontended, commands against the same
// symbol serialize behind that symbol's shard.
type Facade struct {
	engine *orderbook.Engine

	shardsMu sync.RWMutex
	shards   map[string]*symbolShard
}

// NewFacade wraps engine for concurrent use.
func NewFacade(engine *orderbook.Engine) *Facade {
	return &Facade{
		engine: engine,
		shards: make(map[string]*symbolShard),
	}
}

// AddSymbol registers a new symbol on the underlying engine and allocates
// its shard.
func (f *Facade) AddSymbol(symbol string) {
	f.shardsMu.Lock()
	defer f.shardsMu.Unlock()
	f.engine.AddSymbol(symbol)
	if _, ok := f.shards[symbol]; !ok {
		f.shards[symbol] = &symbolShard{}
	}
}

func (f *Facade) shardFor(symbol string) *symbolShard {
	f.shardsMu.RLock()
	shard, ok := f.shards[symbol]
	f.shardsMu.RUnlock()
	if ok {
		return shard
	}
	f.shardsMu.Lock()
	defer f.shardsMu.Unlock()
	if shard, ok = f.shards[symbol]; ok {
		return shard
	}
	shard = &symbolShard{}
	f.shards[symbol] = shard
	return shard
}

// Submit serializes req against its symbol's shard before delegating to the
// engine.
func (f *Facade) Submit(req orderbook.NewOrderRequest) (orderbook.OrderID, error) {
	shard := f.shardFor(req.Symbol)
	shard.mu.Lock()
	defer shard.mu.Unlock()
	return f.engine.Submit(req)
}

// Cancel resolves id to its symbol first, then serializes against that
// symbol's shard. The id can turn terminal between the lookup and the lock;
// the engine re-checks under the shard and reports NotFound.
func (f *Facade) Cancel(id orderbook.OrderID) error {
	symbol, ok := f.engine.SymbolOf(id)
	if !ok {
		return orderbook.ErrNotFound
	}
	shard := f.shardFor(symbol)
	shard.mu.Lock()
	defer shard.mu.Unlock()
	return f.engine.Cancel(id)
}

// Modify behaves like Cancel with respect to locking.
func (f *Facade) Modify(id orderbook.OrderID, newPrice orderbook.Price, newQty orderbook.Quantity) error {
	symbol, ok := f.engine.SymbolOf(id)
	if !ok {
		return orderbook.ErrNotFound
	}
	shard := f.shardFor(symbol)
	shard.mu.Lock()
	defer shard.mu.Unlock()
	return f.engine.Modify(id, newPrice, newQty)
}

// ExpireDue sweeps every book for due GTD orders, holding every shard for
// the duration. Shards are acquired in sorted symbol order so two
// concurrent sweeps cannot deadlock against each other.
func (f *Facade) ExpireDue(now orderbook.Timestamp) {
	shards := f.allShards()
	for _, shard := range shards {
		shard.mu.Lock()
	}
	defer func() {
		for i := len(shards) - 1; i >= 0; i-- {
			shards[i].mu.Unlock()
		}
	}()
	f.engine.ExpireDue(now)
}

// Snapshot takes a consistent aggregate-depth snapshot of one symbol's
// book.
func (f *Facade) Snapshot(symbol string, depth int) (orderbook.Snapshot, bool) {
	return f.snapshot(symbol, depth, false)
}

// FullSnapshot takes a consistent snapshot including each level's per-order
// FIFO queue.
func (f *Facade) FullSnapshot(symbol string, depth int) (orderbook.Snapshot, bool) {
	return f.snapshot(symbol, depth, true)
}

func (f *Facade) snapshot(symbol string, depth int, full bool) (orderbook.Snapshot, bool) {
	shard := f.shardFor(symbol)
	shard.mu.Lock()
	defer shard.mu.Unlock()
	book := f.engine.Book(symbol)
	if book == nil {
		return orderbook.Snapshot{}, false
	}
	if full {
		return book.FullSnapshot(depth), true
	}
	return book.Snapshot(depth), true
}

func (f *Facade) allShards() []*symbolShard {
	f.shardsMu.RLock()
	defer f.shardsMu.RUnlock()
	names := make([]string, 0, len(f.shards))
	for name := range f.shards {
		names = append(names, name)
	}
	sort.Strings(names)
	shards := make([]*symbolShard, len(names))
	for i, name := range names {
		shards[i] = f.shards[name]
	}
	return shards
}
