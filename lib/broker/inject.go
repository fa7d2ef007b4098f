package broker

import (
	"errors"
	"fmt"

	"github.com/snowmerak/pubsub.go/lib/message"
	"github.com/snowmerak/pubsub.go/lib/queue"
)

// Publish injects a Generic message from outside any module. It is routed like a module publication.
func (b *Broker) Publish(topic string, payload message.Payload) error {
	return b.inject(message.Envelope{From: message.External, Message: message.Generic(topic, payload)})
}

// Send injects a Startup, Shutdown or Tick message for a single module.
func (b *Broker) Send(to message.ModuleID, msg message.Message) error {
	if !externalControl(msg.Kind) {
		return fmt.Errorf("send %s: %w", msg.Kind, ErrProtocolViolation)
	}
	if to == message.External || b.lookup(to) == nil {
		return fmt.Errorf("send %s to module %d: %w", msg.Kind, to, ErrUnknownModule)
	}
	return b.inject(message.Envelope{From: message.External, To: to, Message: msg})
}

// Broadcast injects a Startup, Shutdown or Tick message for every live module.
func (b *Broker) Broadcast(msg message.Message) error {
	if !externalControl(msg.Kind) {
		return fmt.Errorf("broadcast %s: %w", msg.Kind, ErrProtocolViolation)
	}
	return b.inject(message.Envelope{From: message.External, To: message.External, Message: msg})
}

func (b *Broker) inject(env message.Envelope) error {
	if err := b.external.Push(env); err != nil {
		if errors.Is(err, queue.ErrClosed) {
			return ErrStopped
		}
		return err
	}
	return nil
}

func externalControl(k message.Kind) bool {
	switch k {
	case message.KindStartup, message.KindShutdown, message.KindTick:
		return true
	default:
		return false
	}
}
