package aicq

import "container/list"

// boundedCache keeps the most recently written entries up to size.
type boundedCache[K comparable, V any] struct {
	size  int
	order *list.List
	items map[K]*list.Element
}

type cacheEntry[K comparable, V any] struct {
	key K
	val V
}

func newBoundedCache[K comparable, V any](size int) *boundedCache[K, V] {
	return &boundedCache[K, V]{size: size, order: list.New(), items: make(map[K]*list.Element)}
}

func (c *boundedCache[K, V]) get(k K) (V, bool) {
	if el, ok := c.items[k]; ok {
		return el.Value.(*cacheEntry[K, V]).val, true
	}
	var zero V
	return zero, false
}

func (c *boundedCache[K, V]) put(k K, v V) {
	if el, ok := c.items[k]; ok {
		el.Value.(*cacheEntry[K, V]).val = v
		c.order.MoveToFront(el)
		return
	}
	c.items[k] = c.order.PushFront(&cacheEntry[K, V]{key: k, val: v})
	for c.order.Len() > c.size {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.items, oldest.Value.(*cacheEntry[K, V]).key)
	}
}

func (c *boundedCache[K, V]) len() int { return c.order.Len() }
