package roles

import (
	"time"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/snowmerak/pubsub.go/lib/message"
)

// VideoFrame is one captured camera frame.
type VideoFrame struct {
	Seq        uint64
	Width      int
	Height     int
	Pixels     []byte
	CapturedAt time.Time
}

// Clone implements message.Payload
func (f VideoFrame) Clone() message.Payload {
	cp := f
	if f.Pixels != nil {
		cp.Pixels = append([]byte(nil), f.Pixels...)
	}
	return cp
}

// Rect is an axis-aligned box in frame pixels.
type Rect struct {
	X, Y, W, H int
}

// FaceCoords lists the faces found in one frame.
type FaceCoords struct {
	FrameSeq   uint64
	Faces      []Rect
	Confidence *wrapperspb.FloatValue
}

// Clone implements message.Payload
func (c FaceCoords) Clone() message.Payload {
	cp := c
	if c.Faces != nil {
		cp.Faces = append([]Rect(nil), c.Faces...)
	}
	if c.Confidence != nil {
		cp.Confidence = proto.Clone(c.Confidence).(*wrapperspb.FloatValue)
	}
	return cp
}
