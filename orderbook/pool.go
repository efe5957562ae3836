package orderbook

import "sync"

// nodePool recycles orderNode values across the lifetime of a Book.
// Hot-path level insertion and removal should not pay for a heap allocation
// on every order; sync.Pool stands in for the fixed arena a systems-language
// implementation would use.
type nodePool struct {
	pool sync.Pool
}

func newNodePool() *nodePool {
	return &nodePool{
		pool: sync.Pool{
			New: func() interface{} { return &orderNode{} },
		},
	}
}

func (p *nodePool) get(order *Order) *orderNode {
	n := p.pool.Get().(*orderNode)
	n.order = order
	n.prev = nil
	n.next = nil
	return n
}

func (p *nodePool) put(n *orderNode) {
	n.order = nil
	n.prev = nil
	n.next = nil
	p.pool.Put(n)
}
