package pagelru

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPushFrontOrderAndTail(t *testing.T) {
	lru := &LRU{}
	assert.True(t, lru.Empty())

	a := &Page{Base: 1}
	b := &Page{Base: 2}
	c := &Page{Base: 3}

	lru.PushFront(a)
	lru.PushFront(b)
	lru.PushFront(c)

	assert.Equal(t, 3, lru.Len())
	// tail is the least-recently split page: a, since it was pushed first.
	assert.Same(t, a, lru.Tail())
	// walking toward the head from the tail visits pages in push order.
	assert.Same(t, b, lru.TowardHead(a))
	assert.Same(t, c, lru.TowardHead(b))
	assert.Nil(t, lru.TowardHead(c))
}

func TestRemove(t *testing.T) {
	lru := &LRU{}
	a := &Page{Base: 1}
	b := &Page{Base: 2}
	c := &Page{Base: 3}
	lru.PushFront(a)
	lru.PushFront(b)
	lru.PushFront(c)

	lru.Remove(b)
	assert.Equal(t, 2, lru.Len())
	assert.Same(t, a, lru.Tail())
	assert.Same(t, c, lru.TowardHead(a))
	assert.Nil(t, lru.TowardHead(c))

	// removing an unlinked page is a no-op.
	lru.Remove(b)
	assert.Equal(t, 2, lru.Len())

	lru.Remove(a)
	lru.Remove(c)
	assert.True(t, lru.Empty())
	assert.Nil(t, lru.Tail())
}

func TestRemoveThenPushFrontAgain(t *testing.T) {
	lru := &LRU{}
	a := &Page{Base: 1}
	lru.PushFront(a)
	lru.Remove(a)
	lru.PushFront(a)
	assert.Equal(t, 1, lru.Len())
	assert.Same(t, a, lru.Tail())
}
