package roles

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/snowmerak/pubsub.go/lib/message"
	"github.com/snowmerak/pubsub.go/lib/module"
)

const (
	frameWidth  = 32
	frameHeight = 24
)

// Camera publishes one VideoFrame to its output topic on every Tick.
type Camera struct{}

func (Camera) Name() string { return "camera" }
func (Camera) Description() string {
	return "publishes a video frame on every tick"
}
func (Camera) Defaults() Config { return Config{Output: "/frames"} }

func (Camera) New(name string, cfg Config, logger *zap.Logger) (module.Handler, error) {
	if cfg.Output == "" {
		return nil, errors.New("camera needs an output topic")
	}

	c := &camera{output: cfg.Output, logger: logger, now: time.Now}
	return module.NewRouter().
		OnStartup(c.startup).
		OnShutdown(c.shutdown).
		OnTick(c.tick), nil
}

type camera struct {
	output string
	seq    uint64
	logger *zap.Logger
	now    func() time.Time
}

func (c *camera) startup(ctx context.Context) ([]message.Message, error) {
	c.logger.Info("startup")
	return nil, nil
}

func (c *camera) shutdown(ctx context.Context) ([]message.Message, error) {
	c.logger.Info("shutdown", zap.Uint64("frames", c.seq))
	return nil, nil
}

func (c *camera) tick(ctx context.Context) ([]message.Message, error) {
	c.seq++
	frame := capture(c.seq, c.now())
	c.logger.Info("publishing video frame", zap.String("topic", c.output), zap.Uint64("seq", frame.Seq))
	return module.Emit(message.Generic(c.output, frame))
}

// capture synthesizes a frame whose brightness drifts with seq.
func capture(seq uint64, at time.Time) VideoFrame {
	pixels := make([]byte, frameWidth*frameHeight)
	for i := range pixels {
		pixels[i] = byte(uint64(i) + seq*7)
	}
	return VideoFrame{
		Seq:        seq,
		Width:      frameWidth,
		Height:     frameHeight,
		Pixels:     pixels,
		CapturedAt: at,
	}
}
