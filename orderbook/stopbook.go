package orderbook

import "github.com/huandu/skiplist"

// priceKeyAsc/priceKeyDesc implement skiplist.Comparable over Price, giving
// the buy-stop book ascending order (triggers as price rises) and the
// sell-stop book descending order (triggers as price falls).
type priceKeyAsc struct{}

func (priceKeyAsc) Compare(lhs, rhs interface{}) int {
	a, b := lhs.(Price), rhs.(Price)
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func (priceKeyAsc) CalcScore(key interface{}) float64 {
	return float64(key.(Price))
}

type priceKeyDesc struct{}

func (priceKeyDesc) Compare(lhs, rhs interface{}) int {
	a, b := lhs.(Price), rhs.(Price)
	switch {
	case a > b:
		return -1
	case a < b:
		return 1
	default:
		return 0
	}
}

func (priceKeyDesc) CalcScore(key interface{}) float64 {
	return -float64(key.(Price))
}

// stopBook holds parked conditional orders (StopMarket/StopLimit), keyed
// by stop price, FIFO-by-sequence within a price via the shared priceLevel
// type. Buy stops trigger on a rising last-trade price so they are stored
// ascending; sell stops trigger on a falling price so they are stored
// descending; either way Front() yields the level nearest to triggering
// next.
type stopBook struct {
	list *skiplist.SkipList
}

func newStopBook(buySide bool) *stopBook {
	if buySide {
		return &stopBook{list: skiplist.New(priceKeyAsc{})}
	}
	return &stopBook{list: skiplist.New(priceKeyDesc{})}
}

func (s *stopBook) get(price Price) *priceLevel {
	elem := s.list.Get(price)
	if elem == nil {
		return nil
	}
	return elem.Value.(*priceLevel)
}

func (s *stopBook) insertAt(price Price) *priceLevel {
	if level := s.get(price); level != nil {
		return level
	}
	level := newPriceLevel(price)
	s.list.Set(price, level)
	return level
}

func (s *stopBook) removeLevel(price Price) {
	s.list.Remove(price)
}

func (s *stopBook) len() int { return s.list.Len() }

// dueUpTo returns every level whose stop price has been crossed by last, in
// trigger order, without removing them; the caller (Book.drainStops) pops
// orders off each level and removes the level once empty.
func (s *stopBook) dueUpTo(last Price, buySide bool) []*priceLevel {
	var due []*priceLevel
	for elem := s.list.Front(); elem != nil; elem = elem.Next() {
		price := elem.Key().(Price)
		if buySide {
			if price > last {
				break
			}
		} else {
			if price < last {
				break
			}
		}
		due = append(due, elem.Value.(*priceLevel))
	}
	return due
}
