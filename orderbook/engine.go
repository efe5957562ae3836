package orderbook

import (
	"sync"
	"sync/atomic"

	"cosmossdk.io/log"
	"github.com/google/uuid"

	"github.com/openalpha/lobengine/metrics"
)

// NewOrderRequest is the validated shape an Engine accepts for Submit; it
// mirrors the Order fields a caller may set, leaving id, sequence and state
// for the Engine and Book to assign.
type NewOrderRequest struct {
	Symbol       string
	Side         Side
	Kind         Kind
	TIF          TimeInForce
	LimitPrice   Price
	StopPrice    Price
	Qty          Quantity
	DisplayedQty Quantity // Iceberg only
	Expiry       Timestamp
	TraceID      uuid.UUID
}

// Engine owns every symbol's Book plus the cross-symbol indexes a Book
// cannot keep by itself: order id generation and the id -> symbol routing
// table a symbol-less Cancel/Modify command needs.
//
// The mutex guards only the cross-symbol maps; it does not serialize
// matching. Books themselves are single-threaded, so concurrent callers
// must serialize per symbol through concurrent.Facade.
type Engine struct {
	mu         sync.RWMutex
	books      map[string]*Book
	idToSymbol map[OrderID]string

	lastID atomic.Uint64
	idgen  IDGenerator

	clock   Clock
	logger  log.Logger
	metrics *metrics.Collector
	sink    EventSink
}

// NewEngine constructs an Engine with no symbols registered yet. idgen may
// be nil, in which case ids come from an internal monotonic counter; a nil
// logger is replaced by log.NewNopLogger(); metrics may be nil to disable
// recording.
func NewEngine(clock Clock, idgen IDGenerator, logger log.Logger, collector *metrics.Collector, sink EventSink) *Engine {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &Engine{
		books:      make(map[string]*Book),
		idToSymbol: make(map[OrderID]string),
		idgen:      idgen,
		clock:      clock,
		logger:     logger.With("module", "orderbook"),
		metrics:    collector,
		sink:       sink,
	}
}

// AddSymbol registers a new, empty Book. It is a no-op if the symbol is
// already registered.
func (e *Engine) AddSymbol(symbol string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.books[symbol]; ok {
		return
	}
	e.books[symbol] = NewBook(symbol, e.clock, e.sink, e.metrics)
	e.logger.Info("registered symbol", "symbol", symbol)
}

func (e *Engine) nextOrderID() OrderID {
	if e.idgen != nil {
		return e.idgen()
	}
	return OrderID(e.lastID.Add(1))
}

// Submit validates req, assigns it a fresh OrderID, and hands it to the
// symbol's Book. The returned error is reserved for malformed requests and
// unknown symbols; ordinary trading outcomes (rejection, kill, partial
// fill) are reported through the Engine's EventSink instead.
func (e *Engine) Submit(req NewOrderRequest) (OrderID, error) {
	if err := validateRequest(req); err != nil {
		return 0, err
	}
	book := e.Book(req.Symbol)
	if book == nil {
		return 0, ErrUnknownSymbol
	}

	id := e.nextOrderID()
	now := e.clock()
	order := buildOrder(id, req, now)

	trace := req.TraceID
	if trace == uuid.Nil {
		trace = uuid.New()
	}

	e.mu.Lock()
	if _, dup := e.idToSymbol[id]; dup {
		e.mu.Unlock()
		return 0, ErrDuplicateID
	}
	e.idToSymbol[id] = req.Symbol
	e.mu.Unlock()

	timer := metrics.NewTimer()
	if err := book.Submit(order, trace); err != nil {
		e.dropID(id)
		return 0, err
	}
	if e.metrics != nil {
		e.metrics.RecordOrder(req.Symbol, req.Side.String(), req.Kind.String())
		e.metrics.RecordOrderLatency(req.Symbol, req.Kind.String(), timer.ElapsedUs())
	}
	if !order.IsLive() {
		e.dropID(id)
	}
	return id, nil
}

// SymbolOf resolves a live order id to its symbol, the routing step a
// symbol-less Cancel/Modify needs before it can pick a lock to serialize
// under.
func (e *Engine) SymbolOf(id OrderID) (string, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	symbol, ok := e.idToSymbol[id]
	return symbol, ok
}

func (e *Engine) dropID(id OrderID) {
	e.mu.Lock()
	delete(e.idToSymbol, id)
	e.mu.Unlock()
}

// Cancel cancels a live order by id, routing to its symbol via the id
// index.
func (e *Engine) Cancel(id OrderID) error {
	symbol, ok := e.SymbolOf(id)
	if !ok {
		return ErrNotFound
	}
	book := e.Book(symbol)
	if err := book.Cancel(id, uuid.New()); err != nil {
		return err
	}
	e.dropID(id)
	return nil
}

// Modify amends a resting order by cancel-plus-resubmit under the same id,
// per the non-increasing rule in Book.Modify. The resubmit leg may match,
// so the id can turn terminal inside the call.
func (e *Engine) Modify(id OrderID, newPrice Price, newQty Quantity) error {
	symbol, ok := e.SymbolOf(id)
	if !ok {
		return ErrNotFound
	}
	book := e.Book(symbol)
	if err := book.Modify(id, newPrice, newQty, uuid.New()); err != nil {
		return err
	}
	if _, live := book.byID[id]; !live {
		e.dropID(id)
	}
	return nil
}

// ExpireDue sweeps every registered Book for GTD orders past expiry.
func (e *Engine) ExpireDue(now Timestamp) {
	trace := uuid.New()
	e.mu.RLock()
	books := make([]*Book, 0, len(e.books))
	for _, book := range e.books {
		books = append(books, book)
	}
	e.mu.RUnlock()
	for _, book := range books {
		for _, id := range book.ExpireDue(now, trace) {
			e.dropID(id)
		}
	}
}

// Book returns the Book for symbol, or nil if unregistered. Exposed for
// read-only queries (Snapshot, BestBidAsk); mutation should go through
// Submit/Cancel/Modify so the id index stays consistent.
func (e *Engine) Book(symbol string) *Book {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.books[symbol]
}

func buildOrder(id OrderID, req NewOrderRequest, now Timestamp) *Order {
	o := NewOrder(id, req.Symbol, req.Side, req.Kind, req.TIF, req.Qty, now)
	o.LimitPrice = req.LimitPrice
	o.StopPrice = req.StopPrice
	o.Expiry = req.Expiry
	if req.Kind == Iceberg {
		o.RefillQty = req.DisplayedQty
	}
	return o
}

func validateRequest(req NewOrderRequest) error {
	if req.Symbol == "" || req.Qty == 0 {
		return ErrBadOrder
	}
	switch req.Kind {
	case Limit, Iceberg:
		if req.LimitPrice <= 0 {
			return ErrBadOrder
		}
	case Market:
		// no price fields required
	case StopMarket:
		if req.StopPrice <= 0 {
			return ErrBadOrder
		}
	case StopLimit:
		if req.StopPrice <= 0 || req.LimitPrice <= 0 {
			return ErrBadOrder
		}
	default:
		return ErrBadOrder
	}
	if req.Kind == Iceberg && (req.DisplayedQty == 0 || req.DisplayedQty > req.Qty) {
		return ErrBadOrder
	}
	if req.TIF == GTD && req.Expiry == 0 {
		return ErrBadOrder
	}
	return nil
}
