// Package itrie provides a lock-free trie keyed by uint64, one byte per level.
//
// Readers never take a lock. Writers may run concurrently with readers and with each other.
package itrie

import "sync/atomic"

const depth = 8

type Node[T any] struct {
	slot [256]atomic.Pointer[Node[T]]
	data atomic.Pointer[T]
}

type ITrie[T any] struct {
	head *Node[T]
	size atomic.Int64
}

func New[T any]() *ITrie[T] {
	return &ITrie[T]{head: &Node[T]{}}
}

// Insert stores value under key, replacing any previous value.
func (t *ITrie[T]) Insert(key uint64, value *T) {
	node := t.head
	for i := 0; i < depth; i++ {
		index := (key >> (56 - i*8)) & 0xff
		next := node.slot[index].Load()
		if next == nil {
			node.slot[index].CompareAndSwap(nil, &Node[T]{})
			next = node.slot[index].Load()
		}
		node = next
	}
	if node.data.Swap(value) == nil && value != nil {
		t.size.Add(1)
	}
}

// Search returns the value stored under key, or nil.
func (t *ITrie[T]) Search(key uint64) *T {
	node := t.leaf(key)
	if node == nil {
		return nil
	}
	return node.data.Load()
}

// Delete removes the value under key. Interior nodes are kept for later inserts.
func (t *ITrie[T]) Delete(key uint64) {
	node := t.leaf(key)
	if node == nil {
		return
	}
	if node.data.Swap(nil) != nil {
		t.size.Add(-1)
	}
}

// Len returns the number of stored values.
func (t *ITrie[T]) Len() int {
	return int(t.size.Load())
}

func (t *ITrie[T]) leaf(key uint64) *Node[T] {
	node := t.head
	for i := 0; i < depth; i++ {
		index := (key >> (56 - i*8)) & 0xff
		node = node.slot[index].Load()
		if node == nil {
			return nil
		}
	}
	return node
}
