package cmd

import (
	"time"

	"cosmossdk.io/log"

	"github.com/openalpha/lobengine/concurrent"
	"github.com/openalpha/lobengine/metrics"
	"github.com/openalpha/lobengine/orderbook"
)

// newDemoFacade wires a fresh Engine behind a Facade, logging every event
// through logger and recording trades, triggers and rejections on
// collector.
func newDemoFacade(symbol string, logger log.Logger, collector *metrics.Collector) *concurrent.Facade {
	clock := func() orderbook.Timestamp { return orderbook.Timestamp(time.Now().UnixNano()) }
	sink := func(e orderbook.Event) {
		logger.Info("event", "type", e.Type.String(), "symbol", e.Symbol, "order_id", e.OrderID,
			"taker", e.TakerOrderID, "maker", e.MakerOrderID, "price", e.Price, "qty", e.Quantity)
		if collector == nil {
			return
		}
		switch e.Type {
		case orderbook.EventTrade:
			collector.RecordTrade(e.Symbol, float64(e.Quantity))
		case orderbook.EventOrderTriggered:
			collector.RecordStopTriggered(e.Symbol, e.TakerSide.String())
		case orderbook.EventOrderRejected:
			reason := "unknown"
			if e.Err != nil {
				reason = e.Err.Error()
			}
			collector.RecordOrderRejected(e.Symbol, reason)
		}
	}
	engine := orderbook.NewEngine(clock, nil, logger, collector, sink)
	facade := concurrent.NewFacade(engine)
	facade.AddSymbol(symbol)
	return facade
}

// publishDepth pushes the current book shape onto the depth/spread gauges
// after a scenario run; per-command gauge updates would double the cost of
// the matching hot path for no extra fidelity at scrape resolution.
func publishDepth(facade *concurrent.Facade, collector *metrics.Collector, symbol string) {
	if collector == nil {
		return
	}
	snap, ok := facade.Snapshot(symbol, 1_000)
	if !ok {
		return
	}
	collector.SetDepth(symbol, orderbook.Buy.String(), len(snap.Bids))
	collector.SetDepth(symbol, orderbook.Sell.String(), len(snap.Asks))
	if len(snap.Bids) > 0 && len(snap.Asks) > 0 {
		bid, ask := snap.Bids[0].Price, snap.Asks[0].Price
		mid := float64(bid+ask) / 2
		if mid > 0 {
			collector.SetSpread(symbol, float64(ask-bid)/mid*10_000)
		}
	}
}

// runScenarios exercises the book-level situations a reader would expect to
// see demonstrated: a simple cross, a market order sweeping two levels, a
// Fill-or-Kill rejection, an Immediate-or-Cancel partial fill, an Iceberg
// refill, and a stop-order trigger chain.
func runScenarios(facade *concurrent.Facade, symbol string) {
	submit := func(side orderbook.Side, kind orderbook.Kind, tif orderbook.TimeInForce, price, stop orderbook.Price, qty, displayed orderbook.Quantity) {
		_, _ = facade.Submit(orderbook.NewOrderRequest{
			Symbol:       symbol,
			Side:         side,
			Kind:         kind,
			TIF:          tif,
			LimitPrice:   price,
			StopPrice:    stop,
			Qty:          qty,
			DisplayedQty: displayed,
		})
	}

	// Resting book: two ask levels, one bid level.
	submit(orderbook.Sell, orderbook.Limit, orderbook.GTC, 101_00, 0, 5, 0)
	submit(orderbook.Sell, orderbook.Limit, orderbook.GTC, 102_00, 0, 5, 0)
	submit(orderbook.Buy, orderbook.Limit, orderbook.GTC, 99_00, 0, 5, 0)

	// Simple cross.
	submit(orderbook.Buy, orderbook.Limit, orderbook.GTC, 101_00, 0, 3, 0)

	// Market sweep across both remaining ask levels.
	submit(orderbook.Buy, orderbook.Market, orderbook.IOC, 0, 0, 6, 0)

	// Fill-or-Kill rejected: only 1 lot still rests on the ask side.
	submit(orderbook.Buy, orderbook.Limit, orderbook.FOK, 103_00, 0, 10, 0)

	// Immediate-or-Cancel partial fill: 5 lots trade against the resting
	// bid, the other 2 are cancelled.
	submit(orderbook.Sell, orderbook.Limit, orderbook.IOC, 99_00, 0, 7, 0)

	// Iceberg maker that refills twice against a sweeping taker.
	submit(orderbook.Sell, orderbook.Iceberg, orderbook.GTC, 105_00, 0, 9, 3)
	submit(orderbook.Buy, orderbook.Limit, orderbook.GTC, 105_00, 0, 9, 0)

	// Stop-market parked below the market, triggered by a trade at its price.
	submit(orderbook.Sell, orderbook.StopMarket, orderbook.GTC, 0, 98_00, 4, 0)
	submit(orderbook.Buy, orderbook.Limit, orderbook.GTC, 98_00, 0, 4, 0)
	submit(orderbook.Sell, orderbook.Limit, orderbook.GTC, 98_00, 0, 4, 0)
}
