// Package ticker injects periodic Tick messages into a broker.
package ticker

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/snowmerak/pubsub.go/lib/broker"
	"github.com/snowmerak/pubsub.go/lib/message"
)

// Injector is the part of a broker the ticker needs.
type Injector interface {
	Send(to message.ModuleID, msg message.Message) error
	Broadcast(msg message.Message) error
}

// Ticker sends Tick to one module, or to every live module when the target is External.
type Ticker struct {
	target   message.ModuleID
	interval time.Duration
	sink     Injector
	logger   *zap.Logger
	sent     uint64
}

// New creates a ticker. A nil logger is replaced by a no-op logger.
func New(sink Injector, interval time.Duration, target message.ModuleID, logger *zap.Logger) *Ticker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ticker{
		target:   target,
		interval: interval,
		sink:     sink,
		logger:   logger.Named("ticker"),
	}
}

// Sent returns how many ticks were injected. Only valid after Run returns.
func (t *Ticker) Sent() uint64 { return t.sent }

// Run injects a Tick every interval until ctx is done or the broker stops.
// A non-positive interval disables the ticker and Run returns immediately.
func (t *Ticker) Run(ctx context.Context) error {
	if t.interval <= 0 {
		t.logger.Info("tick source disabled")
		return nil
	}

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	t.logger.Info("tick source started", zap.Duration("interval", t.interval), zap.Uint64("target", uint64(t.target)))

	for {
		select {
		case <-ctx.Done():
			t.logger.Info("tick source stopped", zap.Uint64("sent", t.sent))
			return nil
		case <-ticker.C:
			var err error
			if t.target == message.External {
				err = t.sink.Broadcast(message.Tick())
			} else {
				err = t.sink.Send(t.target, message.Tick())
			}

			switch {
			case err == nil:
				t.sent++
			case errors.Is(err, broker.ErrStopped):
				t.logger.Info("broker stopped, tick source exiting", zap.Uint64("sent", t.sent))
				return nil
			default:
				return err
			}
		}
	}
}
