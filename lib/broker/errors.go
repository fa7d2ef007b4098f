package broker

import (
	"errors"
	"fmt"

	"github.com/snowmerak/pubsub.go/lib/message"
)

var (
	ErrRunning           = errors.New("broker is running")
	ErrAlreadyRan        = errors.New("broker already ran")
	ErrStopped           = errors.New("broker stopped")
	ErrEmptyName         = errors.New("module name is empty")
	ErrNilHandler        = errors.New("module handler is nil")
	ErrUnknownModule     = errors.New("unknown module")
	ErrProtocolViolation = errors.New("protocol violation")
)

// DeliveryError reports that a module's inbox could not accept a message.
type DeliveryError struct {
	Module message.ModuleID
	Name   string
	Kind   message.Kind
	Err    error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("failed to deliver %s to module %d (%q): %v", e.Kind, e.Module, e.Name, e.Err)
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}
