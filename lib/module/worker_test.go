package module

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/snowmerak/pubsub.go/lib/message"
	"github.com/snowmerak/pubsub.go/lib/queue"
)

type recorder struct {
	mu   sync.Mutex
	seen []message.Message
}

func (r *recorder) Handle(ctx context.Context, msg message.Message) ([]message.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = append(r.seen, msg)
	return nil, nil
}

func (r *recorder) messages() []message.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]message.Message(nil), r.seen...)
}

func newTestWorker(h Handler) (*Worker, *queue.Queue[message.Envelope]) {
	out := queue.New[message.Envelope]()
	return NewWorker(7, "test", h, queue.New[message.Message](), out, nil), out
}

func runWorker(t *testing.T, w *Worker) {
	t.Helper()
	go func() {
		_ = w.Run(context.Background())
	}()
}

func waitDone(t *testing.T, w *Worker) {
	t.Helper()
	select {
	case <-w.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop")
	}
}

func TestWorker_ProcessesInOrder(t *testing.T) {
	rec := &recorder{}
	w, _ := newTestWorker(rec)

	for i := 0; i < 100; i++ {
		require.NoError(t, w.Inbox().Push(message.Generic("/seq", message.JSONPayload([]byte{byte('0' + i%10)}))))
	}
	require.NoError(t, w.Inbox().Push(message.Shutdown()))

	runWorker(t, w)
	waitDone(t, w)

	seen := rec.messages()
	require.Len(t, seen, 101)
	for i := 0; i < 100; i++ {
		assert.Equal(t, byte('0'+i%10), seen[i].Payload.(message.JSONPayload)[0])
	}
	assert.Equal(t, message.KindShutdown, seen[100].Kind)
	assert.True(t, w.IsShutdown())
	assert.True(t, w.Stopped())
	assert.EqualValues(t, 101, w.Handled())
}

func TestWorker_NeverHandlesConcurrently(t *testing.T) {
	var (
		mu      sync.Mutex
		active  int
		maxSeen int
	)
	h := HandlerFunc(func(ctx context.Context, msg message.Message) ([]message.Message, error) {
		mu.Lock()
		active++
		if active > maxSeen {
			maxSeen = active
		}
		mu.Unlock()

		time.Sleep(time.Millisecond)

		mu.Lock()
		active--
		mu.Unlock()
		return nil, nil
	})

	w, _ := newTestWorker(h)
	runWorker(t, w)

	var wg sync.WaitGroup
	for p := 0; p < 4; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 10; i++ {
				_ = w.Inbox().Push(message.Tick())
			}
		}()
	}
	wg.Wait()
	require.NoError(t, w.Inbox().Push(message.Shutdown()))
	waitDone(t, w)

	assert.Equal(t, 1, maxSeen)
}

func TestWorker_StampsOutbound(t *testing.T) {
	h := HandlerFunc(func(ctx context.Context, msg message.Message) ([]message.Message, error) {
		if msg.Kind == message.KindStartup {
			return Emit(message.Subscribe("/frames"), message.Subscribe("/faces"))
		}
		return nil, nil
	})

	w, out := newTestWorker(h)
	require.NoError(t, w.Inbox().Push(message.Startup()))
	require.NoError(t, w.Inbox().Push(message.Shutdown()))
	runWorker(t, w)
	waitDone(t, w)

	require.Equal(t, 2, out.Len())
	first, _ := out.TryPop()
	second, _ := out.TryPop()
	assert.Equal(t, message.Envelope{From: 7, Message: message.Subscribe("/frames")}, first)
	assert.Equal(t, message.Envelope{From: 7, Message: message.Subscribe("/faces")}, second)
}

func TestWorker_HandlerErrorAndPanicDoNotStopLoop(t *testing.T) {
	calls := 0
	h := HandlerFunc(func(ctx context.Context, msg message.Message) ([]message.Message, error) {
		calls++
		switch calls {
		case 1:
			return []message.Message{message.Subscribe("/dropped")}, errors.New("boom")
		case 2:
			panic("kaboom")
		}
		return Emit(message.Subscribe("/kept"))
	})

	w, out := newTestWorker(h)
	for i := 0; i < 3; i++ {
		require.NoError(t, w.Inbox().Push(message.Tick()))
	}
	require.NoError(t, w.Inbox().Push(message.Shutdown()))
	runWorker(t, w)
	waitDone(t, w)

	assert.EqualValues(t, 2, w.Failed())
	assert.EqualValues(t, 2, w.Handled())

	env, ok := out.TryPop()
	require.True(t, ok)
	assert.Equal(t, "/kept", env.Message.Topic)
	env, ok = out.TryPop()
	require.True(t, ok)
	assert.Equal(t, "/kept", env.Message.Topic)
	_, ok = out.TryPop()
	assert.False(t, ok)
}

func TestWorker_ClosesInboxOnShutdown(t *testing.T) {
	w, _ := newTestWorker(&recorder{})
	require.NoError(t, w.Inbox().Push(message.Shutdown()))
	runWorker(t, w)
	waitDone(t, w)

	assert.ErrorIs(t, w.Inbox().Push(message.Tick()), queue.ErrClosed)
}

func TestWorker_StopsOnContextCancel(t *testing.T) {
	w, _ := newTestWorker(&recorder{})
	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)
	go func() { errCh <- w.Run(ctx) }()
	cancel()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("worker did not stop on cancel")
	}
	assert.False(t, w.IsShutdown())
}
