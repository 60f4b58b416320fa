package suggest

import (
	"math"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collectAll(ix *PrefixIndex, prefix string) []TermID {
	node, ok := ix.Subtree(prefix)
	if !ok {
		return nil
	}
	return slices.Collect(ix.Collect(node, 0))
}

func TestPrefixIndexInsertAndCollect(t *testing.T) {
	ix := NewPrefixIndex()
	ix.Insert("cat", 1, 5)
	ix.Insert("car", 2, 5)
	ix.Insert("cart", 3, 3)
	ix.Insert("dog", 4, 10)

	tests := []struct {
		prefix   string
		expected []TermID
	}{
		{prefix: "", expected: []TermID{4, 2, 1, 3}},
		{prefix: "c", expected: []TermID{2, 1, 3}},
		{prefix: "car", expected: []TermID{2, 3}},
		{prefix: "cart", expected: []TermID{3}},
		{prefix: "d", expected: []TermID{4}},
	}
	for _, test := range tests {
		assert.Equal(t, test.expected, collectAll(ix, test.prefix), "prefix %q", test.prefix)
	}

	_, ok := ix.Subtree("cab")
	assert.False(t, ok)
	_, ok = ix.Subtree("carts")
	assert.False(t, ok)

	assert.Equal(t, 4, ix.Len())
	assert.Equal(t, 9, ix.Size())
}

func TestPrefixIndexCachedBest(t *testing.T) {
	ix := NewPrefixIndex()
	ix.Insert("ab", 1, 2)
	ix.Insert("abc", 2, 8)
	ix.Insert("abd", 3, 4)

	node, ok := ix.Subtree("ab")
	require.True(t, ok)
	assert.Equal(t, 8.0, node.Best())
	assert.Equal(t, 8.0, ix.root.Best())

	// Lowering a score recomputes the path rather than keeping the stale max.
	ix.Insert("abc", 2, 1)
	assert.Equal(t, 4.0, node.Best())
	assert.Equal(t, 4.0, ix.root.Best())

	require.True(t, ix.Remove(3, "abd"))
	assert.Equal(t, 2.0, node.Best())

	require.True(t, ix.Remove(1, "ab"))
	require.True(t, ix.Remove(2, "abc"))
	assert.True(t, math.IsInf(ix.root.Best(), -1))
	assert.Equal(t, 1, ix.Size())
	assert.Empty(t, collectAll(ix, ""))
}

func TestPrefixIndexRemovePrunes(t *testing.T) {
	ix := NewPrefixIndex()
	ix.Insert("cat", 1, 5)
	ix.Insert("car", 2, 5)
	ix.Insert("cart", 3, 3)
	require.Equal(t, 6, ix.Size())

	require.True(t, ix.Remove(3, "cart"))
	assert.Equal(t, 5, ix.Size())

	// "car" ends at a node that is now childless, so it goes too.
	require.True(t, ix.Remove(2, "car"))
	assert.Equal(t, 4, ix.Size())
	_, ok := ix.Subtree("car")
	assert.False(t, ok)

	// Interior terminal keeps its node while children remain.
	ix.Insert("ca", 4, 1)
	ix.Insert("cab", 5, 2)
	require.True(t, ix.Remove(4, "ca"))
	node, ok := ix.Subtree("ca")
	require.True(t, ok)
	assert.Equal(t, 5.0, node.Best())
	assert.Equal(t, []TermID{1, 5}, collectAll(ix, "ca"))
}

func TestPrefixIndexRemoveMismatch(t *testing.T) {
	ix := NewPrefixIndex()
	ix.Insert("cat", 1, 5)
	size := ix.Size()

	assert.False(t, ix.Remove(1, "ca"), "non-terminal node")
	assert.False(t, ix.Remove(2, "cat"), "wrong id")
	assert.False(t, ix.Remove(1, "cow"), "missing path")
	assert.Equal(t, size, ix.Size())
	assert.Equal(t, 1, ix.Len())
}

func TestPrefixIndexCollectStopsEarly(t *testing.T) {
	ix := NewPrefixIndex()
	words := []string{"a", "ab", "abc", "abcd", "abce", "b", "ba", "bb"}
	for i, w := range words {
		ix.Insert(w, TermID(i+1), float64(i))
	}

	var got []TermID
	for id := range ix.Collect(ix.root, 2) {
		got = append(got, id)
		if len(got) == 2 {
			break
		}
	}
	// bb (7) then ba (6)
	assert.Equal(t, []TermID{8, 7}, got)
}

func TestPrefixIndexUnicode(t *testing.T) {
	ix := NewPrefixIndex()
	ix.Insert("café", 1, 2)
	ix.Insert("cafétéria", 2, 3)
	ix.Insert("caffè", 3, 1)

	assert.Equal(t, []TermID{2, 1}, collectAll(ix, "café"))
	assert.Equal(t, []TermID{2, 1, 3}, collectAll(ix, "caf"))
}

func TestPrefixIndexReset(t *testing.T) {
	ix := NewPrefixIndex()
	ix.Insert("cat", 1, 5)
	ix.Reset()

	assert.Equal(t, 1, ix.Size())
	assert.Equal(t, 0, ix.Len())
	assert.Empty(t, collectAll(ix, ""))
}
