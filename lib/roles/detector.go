package roles

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/snowmerak/pubsub.go/lib/message"
	"github.com/snowmerak/pubsub.go/lib/module"
)

// FaceDetector subscribes to frames and publishes the faces found in each one.
type FaceDetector struct{}

func (FaceDetector) Name() string { return "face_detector" }
func (FaceDetector) Description() string {
	return "turns video frames into face coordinates"
}
func (FaceDetector) Defaults() Config { return Config{Input: "/frames", Output: "/faces"} }

func (FaceDetector) New(name string, cfg Config, logger *zap.Logger) (module.Handler, error) {
	if cfg.Input == "" || cfg.Output == "" {
		return nil, errors.New("face detector needs input and output topics")
	}

	d := &detector{output: cfg.Output, logger: logger}
	return module.NewRouter().
		AutoSubscribe().
		OnStartup(func(ctx context.Context) ([]message.Message, error) {
			logger.Info("startup, subscribing", zap.String("topic", cfg.Input))
			return nil, nil
		}).
		OnShutdown(func(ctx context.Context) ([]message.Message, error) {
			logger.Info("shutdown")
			return nil, nil
		}).
		OnTopic(cfg.Input, d.frame), nil
}

type detector struct {
	output string
	logger *zap.Logger
}

func (d *detector) frame(ctx context.Context, msg message.Message) ([]message.Message, error) {
	frame, ok := msg.Payload.(VideoFrame)
	if !ok {
		return nil, fmt.Errorf("expected VideoFrame on %s, got %T", msg.Topic, msg.Payload)
	}

	d.logger.Info("received video frame", zap.String("topic", msg.Topic), zap.Uint64("seq", frame.Seq), zap.String("trace", msg.ID))
	coords := detect(frame)
	d.logger.Info("detected faces", zap.Int("faces", len(coords.Faces)), zap.String("topic", d.output))

	return module.Emit(message.Generic(d.output, coords))
}

// detect reports one face centred in any non-empty frame, with a confidence
// derived from mean brightness.
func detect(frame VideoFrame) FaceCoords {
	coords := FaceCoords{FrameSeq: frame.Seq}
	if frame.Width <= 0 || frame.Height <= 0 || len(frame.Pixels) == 0 {
		coords.Confidence = wrapperspb.Float(0)
		return coords
	}

	var sum int
	for _, p := range frame.Pixels {
		sum += int(p)
	}
	mean := float32(sum) / float32(len(frame.Pixels))

	w, h := frame.Width/2, frame.Height/2
	coords.Faces = []Rect{{X: (frame.Width - w) / 2, Y: (frame.Height - h) / 2, W: w, H: h}}
	coords.Confidence = wrapperspb.Float(mean / 255)
	return coords
}
