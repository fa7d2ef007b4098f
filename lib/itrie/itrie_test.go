package itrie_test

import (
	"math/rand"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/snowmerak/pubsub.go/lib/itrie"
)

func TestITrie_InsertAndSearch(t *testing.T) {
	trie := itrie.New[int]()
	value := 42
	trie.Insert(0x1234567890abcdef, &value)

	result := trie.Search(0x1234567890abcdef)
	require.NotNil(t, result)
	assert.Equal(t, value, *result)
	assert.Equal(t, 1, trie.Len())
}

func TestITrie_SearchMissing(t *testing.T) {
	trie := itrie.New[int]()
	assert.Nil(t, trie.Search(0))
	assert.Nil(t, trie.Search(0x1234567890abcdef))

	value := 1
	trie.Insert(1, &value)
	// Shares every interior node with key 1 except the leaf
	assert.Nil(t, trie.Search(2))
	assert.Nil(t, trie.Search(0))
}

func TestITrie_ReplaceAndDelete(t *testing.T) {
	trie := itrie.New[string]()
	a, b := "a", "b"
	trie.Insert(7, &a)
	trie.Insert(7, &b)
	assert.Equal(t, "b", *trie.Search(7))
	assert.Equal(t, 1, trie.Len())

	trie.Delete(7)
	assert.Nil(t, trie.Search(7))
	assert.Zero(t, trie.Len())

	// Deleting twice or deleting a missing key is a no-op
	trie.Delete(7)
	trie.Delete(99)
	assert.Zero(t, trie.Len())

	trie.Insert(7, &a)
	assert.Equal(t, "a", *trie.Search(7))
}

func TestITrie_ConcurrentInsertAndSearch(t *testing.T) {
	trie := itrie.New[int]()
	keys := make([]uint64, 1000)
	for i := range keys {
		keys[i] = rand.Uint64()
	}

	var wg sync.WaitGroup
	for i, key := range keys {
		wg.Add(2)
		go func(i int, key uint64) {
			defer wg.Done()
			v := i
			trie.Insert(key, &v)
		}(i, key)
		go func(key uint64) {
			defer wg.Done()
			_ = trie.Search(key)
		}(key)
	}
	wg.Wait()

	for i, key := range keys {
		result := trie.Search(key)
		require.NotNil(t, result)
		assert.Equal(t, i, *result)
	}
}
