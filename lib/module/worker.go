package module

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/snowmerak/pubsub.go/lib/message"
	"github.com/snowmerak/pubsub.go/lib/queue"
)

// Worker runs one Handler on its own goroutine.
//
// The inbox is owned by the broker side for writing and by the worker for reading.
// Outbound messages are stamped with the worker's ID and pushed to the outbox,
// which may be private (pull strategy) or shared with other workers (push strategy).
type Worker struct {
	id      message.ModuleID
	name    string
	handler Handler
	inbox   *queue.Queue[message.Message]
	outbox  *queue.Queue[message.Envelope]
	logger  *zap.Logger

	shutdownChan chan struct{}
	shutdownOnce sync.Once
	done         chan struct{}

	handled atomic.Uint64
	failed  atomic.Uint64
}

// NewWorker wires a worker. A nil logger is replaced by a no-op logger.
func NewWorker(id message.ModuleID, name string, handler Handler, inbox *queue.Queue[message.Message], outbox *queue.Queue[message.Envelope], logger *zap.Logger) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Worker{
		id:           id,
		name:         name,
		handler:      handler,
		inbox:        inbox,
		outbox:       outbox,
		logger:       logger.Named("module").With(zap.String("module", name), zap.Uint64("id", uint64(id))),
		shutdownChan: make(chan struct{}),
		done:         make(chan struct{}),
	}
}

func (w *Worker) ID() message.ModuleID { return w.id }
func (w *Worker) Name() string         { return w.name }

// Inbox returns the endpoint the broker delivers to.
func (w *Worker) Inbox() *queue.Queue[message.Message] { return w.inbox }

// Handled returns how many messages the handler processed successfully.
func (w *Worker) Handled() uint64 { return w.handled.Load() }

// Failed returns how many messages the handler rejected with an error or panic.
func (w *Worker) Failed() uint64 { return w.failed.Load() }

// Done is closed when Run returns.
func (w *Worker) Done() <-chan struct{} { return w.done }

// IsShutdown returns true once the worker has handled Shutdown.
func (w *Worker) IsShutdown() bool {
	select {
	case <-w.shutdownChan:
		return true
	default:
		return false
	}
}

// Stopped returns true once Run has returned.
func (w *Worker) Stopped() bool {
	select {
	case <-w.done:
		return true
	default:
		return false
	}
}

// Run consumes the inbox until Shutdown has been handled, the inbox is closed and drained,
// or ctx is cancelled. Messages are handled strictly one at a time in arrival order.
// The inbox is closed on return so later deliveries fail instead of piling up.
func (w *Worker) Run(ctx context.Context) error {
	defer close(w.done)
	defer w.inbox.Close()

	w.logger.Info("started")

	for {
		msg, err := w.inbox.Pop(ctx)
		if err != nil {
			if errors.Is(err, queue.ErrClosed) {
				w.logger.Info("inbox closed")
				return nil
			}
			return err
		}

		w.logger.Debug("received", zap.Stringer("kind", msg.Kind), zap.String("topic", msg.Topic), zap.String("trace", msg.ID))
		w.process(ctx, msg)

		if msg.Kind == message.KindShutdown {
			w.shutdownOnce.Do(func() {
				close(w.shutdownChan)
			})
			w.logger.Info("stopped consuming after shutdown")
			return nil
		}
	}
}

func (w *Worker) process(ctx context.Context, msg message.Message) {
	out, err := w.invoke(ctx, msg)
	if err != nil {
		w.failed.Add(1)
		// Handler errors never stop the loop
		w.logger.Warn("handler error", zap.Stringer("kind", msg.Kind), zap.String("topic", msg.Topic), zap.Error(err))
		return
	}
	w.handled.Add(1)

	for _, m := range out {
		if err := w.outbox.Push(message.Envelope{From: w.id, Message: m}); err != nil {
			w.logger.Warn("outbox closed, dropping outbound message", zap.Stringer("kind", m.Kind), zap.String("topic", m.Topic))
		}
	}
}

func (w *Worker) invoke(ctx context.Context, msg message.Message) (out []message.Message, err error) {
	defer func() {
		if r := recover(); r != nil {
			out = nil
			err = fmt.Errorf("handler panic while processing %s: %v", msg.Kind, r)
		}
	}()
	return w.handler.Handle(ctx, msg)
}
