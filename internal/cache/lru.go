package cache

import (
	"container/list"
	"strings"
	"sync"
	"time"
)

// LRU is a fixed-capacity cache where every entry also carries a TTL. The
// least recently used entry is evicted when the cache is full; expired
// entries are dropped lazily on Get and in bulk by SweepExpired.
type LRU[T any] struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	index    map[string]*list.Element
	order    *list.List // front = most recently used
}

type entry[T any] struct {
	key     string
	value   T
	expires time.Time
}

func NewLRU[T any](capacity int, ttl time.Duration) *LRU[T] {
	return &LRU[T]{
		capacity: capacity,
		ttl:      ttl,
		index:    make(map[string]*list.Element),
		order:    list.New(),
	}
}

func (c *LRU[T]) Get(key string) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero T
	elem, ok := c.index[key]
	if !ok {
		return zero, false
	}
	e := elem.Value.(*entry[T])
	if time.Now().After(e.expires) {
		c.drop(elem)
		return zero, false
	}
	c.order.MoveToFront(elem)
	return e.value, true
}

func (c *LRU[T]) Set(key string, value T) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e := &entry[T]{key: key, value: value, expires: time.Now().Add(c.ttl)}
	if elem, ok := c.index[key]; ok {
		elem.Value = e
		c.order.MoveToFront(elem)
		return
	}
	c.index[key] = c.order.PushFront(e)
	if c.order.Len() > c.capacity {
		if oldest := c.order.Back(); oldest != nil {
			c.drop(oldest)
		}
	}
}

func (c *LRU[T]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if elem, ok := c.index[key]; ok {
		c.drop(elem)
	}
}

func (c *LRU[T]) DeletePrefix(prefix string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	var victims []*list.Element
	for key, elem := range c.index {
		if strings.HasPrefix(key, prefix) {
			victims = append(victims, elem)
		}
	}
	for _, elem := range victims {
		c.drop(elem)
	}
	return len(victims)
}

// SweepExpired removes expired entries and reports how many were dropped.
func (c *LRU[T]) SweepExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	var victims []*list.Element
	for elem := c.order.Front(); elem != nil; elem = elem.Next() {
		if now.After(elem.Value.(*entry[T]).expires) {
			victims = append(victims, elem)
		}
	}
	for _, elem := range victims {
		c.drop(elem)
	}
	return len(victims)
}

func (c *LRU[T]) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.index)
}

func (c *LRU[T]) drop(elem *list.Element) {
	delete(c.index, elem.Value.(*entry[T]).key)
	c.order.Remove(elem)
}
