package queue

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueue_FIFO(t *testing.T) {
	q := New[int]()
	for i := 0; i < 200; i++ {
		require.NoError(t, q.Push(i))
	}
	assert.Equal(t, 200, q.Len())

	for i := 0; i < 200; i++ {
		v, ok := q.TryPop()
		require.True(t, ok)
		assert.Equal(t, i, v)
	}

	_, ok := q.TryPop()
	assert.False(t, ok)
	assert.Equal(t, 0, q.Len())
}

func TestQueue_InterleavedPushPop(t *testing.T) {
	q := New[int]()
	next := 0
	for round := 0; round < 50; round++ {
		for i := 0; i < 5; i++ {
			require.NoError(t, q.Push(round*5+i))
		}
		for i := 0; i < 3; i++ {
			v, ok := q.TryPop()
			require.True(t, ok)
			assert.Equal(t, next, v)
			next++
		}
	}
	for q.Len() > 0 {
		v, _ := q.TryPop()
		assert.Equal(t, next, v)
		next++
	}
	assert.Equal(t, 250, next)
}

func TestQueue_PopBlocksUntilPush(t *testing.T) {
	q := New[string]()
	got := make(chan string, 1)

	go func() {
		v, err := q.Pop(context.Background())
		if err == nil {
			got <- v
		}
	}()

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, q.Push("hello"))

	select {
	case v := <-got:
		assert.Equal(t, "hello", v)
	case <-time.After(time.Second):
		t.Fatal("Pop did not return after Push")
	}
}

func TestQueue_PopHonoursContext(t *testing.T) {
	q := New[int]()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := q.Pop(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestQueue_CloseDrainsThenFails(t *testing.T) {
	q := New[int]()
	require.NoError(t, q.Push(1))
	require.NoError(t, q.Push(2))
	q.Close()

	assert.True(t, q.Closed())
	assert.ErrorIs(t, q.Push(3), ErrClosed)

	v, err := q.Pop(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, v)
	v, err = q.Pop(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, v)

	_, err = q.Pop(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
}

func TestQueue_CloseWakesBlockedConsumer(t *testing.T) {
	q := New[int]()
	done := make(chan error, 1)
	go func() {
		_, err := q.Pop(context.Background())
		done <- err
	}()

	time.Sleep(20 * time.Millisecond)
	q.Close()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrClosed)
	case <-time.After(time.Second):
		t.Fatal("Close did not wake consumer")
	}
}

func TestQueue_ManyProducers(t *testing.T) {
	q := New[int]()
	const producers, perProducer = 8, 500

	var wg sync.WaitGroup
	wg.Add(producers)
	for p := 0; p < producers; p++ {
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				_ = q.Push(p*perProducer + i)
			}
		}(p)
	}

	seen := make(map[int]bool)
	lastPerProducer := make(map[int]int)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for len(seen) < producers*perProducer {
		v, err := q.Pop(ctx)
		require.NoError(t, err)
		p := v / perProducer
		if last, ok := lastPerProducer[p]; ok {
			assert.Greater(t, v, last, "per-producer order must be preserved")
		}
		lastPerProducer[p] = v
		seen[v] = true
	}
	wg.Wait()
	assert.Equal(t, 0, q.Len())
}
