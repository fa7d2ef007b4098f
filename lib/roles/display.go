package roles

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/snowmerak/pubsub.go/lib/message"
	"github.com/snowmerak/pubsub.go/lib/module"
)

// Display subscribes to face coordinates and narrates each arrival.
type Display struct{}

func (Display) Name() string { return "display" }
func (Display) Description() string {
	return "logs every face coordinate message it receives"
}
func (Display) Defaults() Config { return Config{Input: "/faces"} }

func (Display) New(name string, cfg Config, logger *zap.Logger) (module.Handler, error) {
	if cfg.Input == "" {
		return nil, errors.New("display needs an input topic")
	}

	d := &DisplayHandler{logger: logger}
	d.Router = module.NewRouter().
		AutoSubscribe().
		OnStartup(func(ctx context.Context) ([]message.Message, error) {
			logger.Info("startup, subscribing", zap.String("topic", cfg.Input))
			return nil, nil
		}).
		OnShutdown(func(ctx context.Context) ([]message.Message, error) {
			logger.Info("shutdown", zap.Uint64("received", d.Received()))
			return nil, nil
		}).
		OnTopic(cfg.Input, d.coords)
	return d, nil
}

// DisplayHandler is the handler created by the display role.
type DisplayHandler struct {
	*module.Router
	logger   *zap.Logger
	received atomic.Uint64
	last     atomic.Pointer[FaceCoords]
}

// Received returns how many face coordinate messages arrived.
func (d *DisplayHandler) Received() uint64 { return d.received.Load() }

// Last returns the most recent coordinates, or nil.
func (d *DisplayHandler) Last() *FaceCoords { return d.last.Load() }

func (d *DisplayHandler) coords(ctx context.Context, msg message.Message) ([]message.Message, error) {
	coords, ok := msg.Payload.(FaceCoords)
	if !ok {
		return nil, fmt.Errorf("expected FaceCoords on %s, got %T", msg.Topic, msg.Payload)
	}

	d.received.Add(1)
	d.last.Store(&coords)
	d.logger.Info("received face coordinates",
		zap.String("topic", msg.Topic),
		zap.Uint64("frame", coords.FrameSeq),
		zap.Int("faces", len(coords.Faces)),
		zap.Float32("confidence", coords.Confidence.GetValue()),
		zap.String("trace", msg.ID))
	return nil, nil
}
