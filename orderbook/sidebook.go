package orderbook

import "github.com/google/btree"

const sideBookDegree = 32

// priceLevelItem adapts a priceLevel for storage in a btree.BTree, ordered
// by Price ascending; descending traversal for the buy side is obtained by
// Descend rather than by inverting the comparator.
type priceLevelItem struct {
	price Price
	level *priceLevel
}

func (a *priceLevelItem) Less(than btree.Item) bool {
	return a.price < than.(*priceLevelItem).price
}

// sideBook is one side (bids or asks) of an Order Book: an ordered map of
// Price -> priceLevel with best-price access, backed by a btree for O(log P)
// insert/remove of levels.
type sideBook struct {
	tree *btree.BTree
	desc bool // true for bids (best = highest price)
}

func newSideBook(desc bool) *sideBook {
	return &sideBook{tree: btree.New(sideBookDegree), desc: desc}
}

func (s *sideBook) get(price Price) *priceLevel {
	item := s.tree.Get(&priceLevelItem{price: price})
	if item == nil {
		return nil
	}
	return item.(*priceLevelItem).level
}

// insertAt returns the level at price, creating an empty one if absent.
func (s *sideBook) insertAt(price Price) *priceLevel {
	if level := s.get(price); level != nil {
		return level
	}
	level := newPriceLevel(price)
	s.tree.ReplaceOrInsert(&priceLevelItem{price: price, level: level})
	return level
}

// removeLevel evicts a price level; callers must only call this once the
// level is empty.
func (s *sideBook) removeLevel(price Price) {
	s.tree.Delete(&priceLevelItem{price: price})
}

// best returns the best (highest for bids, lowest for asks) non-empty level,
// or nil if the side is empty.
func (s *sideBook) best() *priceLevel {
	var item btree.Item
	if s.desc {
		item = s.tree.Max()
	} else {
		item = s.tree.Min()
	}
	if item == nil {
		return nil
	}
	return item.(*priceLevelItem).level
}

func (s *sideBook) len() int { return s.tree.Len() }

// iterFromBest walks levels in matching priority order (best first),
// stopping early if fn returns false, without mutating the tree.
func (s *sideBook) iterFromBest(fn func(*priceLevel) bool) {
	iter := func(item btree.Item) bool {
		return fn(item.(*priceLevelItem).level)
	}
	if s.desc {
		s.tree.Descend(iter)
	} else {
		s.tree.Ascend(iter)
	}
}
