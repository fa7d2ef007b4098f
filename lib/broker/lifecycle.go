package broker

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/snowmerak/pubsub.go/lib/message"
	"github.com/snowmerak/pubsub.go/lib/queue"
)

// Run starts every module worker, sends Startup to each in registration order and then routes
// messages until ctx is done. No Generic message is dispatched before every module has been
// sent Startup.
//
// On exit, live modules are sent Shutdown and their inboxes are closed; Run waits up to
// ShutdownGrace for workers to return. Run returns nil after a normal stop, or the
// *DeliveryError that stopped it under FailureAbort.
func (b *Broker) Run(ctx context.Context) error {
	b.mu.Lock()
	if b.started {
		b.mu.Unlock()
		return ErrAlreadyRan
	}
	b.started = true
	entries := append([]*entry(nil), b.entries...)
	b.mu.Unlock()

	// Workers outlive ctx long enough to see Shutdown
	workerCtx, cancelWorkers := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelWorkers()

	for _, e := range entries {
		b.wg.Add(1)
		go func(e *entry) {
			defer b.wg.Done()
			if err := e.worker.Run(workerCtx); err != nil && !errors.Is(err, context.Canceled) {
				b.logger.Warn("module worker exited", zap.Uint64("id", uint64(e.id)), zap.String("name", e.name), zap.Error(err))
			}
		}(e)
	}

	b.logger.Info("broker starting", zap.Int("modules", len(entries)), zap.Stringer("strategy", b.options.Strategy))

	runErr := b.startup(entries)
	if runErr == nil {
		switch b.options.Strategy {
		case StrategyPull:
			runErr = b.runPull(ctx, entries)
		default:
			runErr = b.runPush(ctx)
		}
	}

	b.shutdown(entries)
	cancelWorkers()

	if runErr != nil {
		b.logger.Error("broker stopped on fatal error", zap.Error(runErr))
		return runErr
	}
	b.logger.Info("broker stopped")
	return nil
}

func (b *Broker) startup(entries []*entry) error {
	for _, e := range entries {
		b.logger.Info("sending startup", zap.Uint64("id", uint64(e.id)), zap.String("name", e.name))
		if err := b.deliver(e, message.Startup()); err != nil {
			return err
		}
	}
	return nil
}

// shutdown sends Shutdown to live modules, seals every endpoint and waits for workers.
func (b *Broker) shutdown(entries []*entry) {
	for _, e := range entries {
		if !e.dead.Load() {
			_ = e.inbox.Push(message.Shutdown())
		}
		e.inbox.Close()
	}

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()

	timer := time.NewTimer(b.options.ShutdownGrace)
	defer timer.Stop()

	select {
	case <-done:
		// All workers returned
	case <-timer.C:
		b.logger.Warn("shutdown grace elapsed, some modules are still running", zap.Duration("grace", b.options.ShutdownGrace))
	}

	b.external.Close()
	if b.collector != nil {
		b.collector.Close()
	}
	for _, e := range entries {
		e.outbox.Close()
	}
}

func (b *Broker) runPush(ctx context.Context) error {
	for {
		env, err := b.collector.Pop(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		if err := b.handle(env); err != nil {
			return err
		}
	}
}

// runPull drains every outbox in registration order, then external injections.
// Each source is drained only up to the length it had when the scan reached it,
// so a chatty module cannot starve the others within one cycle.
func (b *Broker) runPull(ctx context.Context, entries []*entry) error {
	timer := time.NewTimer(b.options.IdleInterval)
	defer timer.Stop()

	for {
		if ctx.Err() != nil {
			return nil
		}

		moved := false
		for _, e := range entries {
			n, err := b.drain(e.outbox)
			if err != nil {
				return err
			}
			moved = moved || n > 0
		}
		n, err := b.drain(b.external)
		if err != nil {
			return err
		}
		moved = moved || n > 0

		if moved {
			continue
		}

		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(b.options.IdleInterval)

		select {
		case <-ctx.Done():
			return nil
		case <-timer.C:
		}
	}
}

func (b *Broker) drain(q *queue.Queue[message.Envelope]) (int, error) {
	n := q.Len()
	handled := 0
	for i := 0; i < n; i++ {
		env, ok := q.TryPop()
		if !ok {
			break
		}
		handled++
		if err := b.handle(env); err != nil {
			return handled, err
		}
	}
	return handled, nil
}
