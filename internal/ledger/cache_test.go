package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLRUEvictsLeastRecentlyUsed(t *testing.T) {
	c := newLRU[string, int](2)

	assert.True(t, c.SetIfGeneration("a", 1, c.Generation()))
	assert.True(t, c.SetIfGeneration("b", 2, c.Generation()))
	_, _ = c.Get("a")
	assert.True(t, c.SetIfGeneration("c", 3, c.Generation()))

	_, ok := c.Get("b")
	assert.False(t, ok, "b was least recently used")
	v, ok := c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 1, v)
	assert.Equal(t, 2, c.Len())
}

func TestLRUGenerationGuard(t *testing.T) {
	c := newLRU[string, int](4)

	gen := c.Generation()
	c.DeleteFunc(func(string) bool { return false })

	assert.False(t, c.SetIfGeneration("a", 1, gen), "value computed before an invalidation")
	_, ok := c.Get("a")
	assert.False(t, ok)

	assert.True(t, c.SetIfGeneration("a", 2, c.Generation()))
}

func TestLRUDeleteFunc(t *testing.T) {
	c := newLRU[string, int](4)
	for i, k := range []string{"g1", "g2", "f1"} {
		c.SetIfGeneration(k, i, c.Generation())
	}

	n := c.DeleteFunc(func(k string) bool { return k[0] == 'g' })

	assert.Equal(t, 2, n)
	assert.Equal(t, 1, c.Len())
	_, ok := c.Get("f1")
	assert.True(t, ok)
}
