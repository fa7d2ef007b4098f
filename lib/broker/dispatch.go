package broker

import (
	"go.uber.org/zap"

	"github.com/snowmerak/pubsub.go/lib/message"
)

// handle processes one envelope. A non-nil error stops the broker.
func (b *Broker) handle(env message.Envelope) error {
	msg := env.Message

	if env.From == message.External {
		return b.handleExternal(env)
	}

	e := b.lookup(env.From)
	if e == nil {
		b.violation(env, "unknown origin")
		return nil
	}

	if !msg.Kind.ModuleMayOriginate() {
		b.violation(env, "modules may not originate this kind")
		return nil
	}

	switch msg.Kind {
	case message.KindSubscribe:
		return b.subscribe(e, msg.Topic)
	case message.KindUnsubscribe:
		return b.unsubscribe(e, msg.Topic)
	default:
		return b.route(msg)
	}
}

func (b *Broker) handleExternal(env message.Envelope) error {
	msg := env.Message

	switch msg.Kind {
	case message.KindGeneric:
		return b.route(msg)
	case message.KindStartup, message.KindShutdown, message.KindTick:
		if env.To != message.External {
			e := b.lookup(env.To)
			if e == nil {
				b.logger.Warn("dropping message for unknown module", zap.Uint64("to", uint64(env.To)), zap.Stringer("kind", msg.Kind))
				return nil
			}
			if e.dead.Load() {
				return nil
			}
			return b.deliver(e, msg)
		}
		for _, e := range b.snapshotEntries() {
			if e.dead.Load() {
				continue
			}
			if err := b.deliver(e, msg.Clone()); err != nil {
				return err
			}
		}
		return nil
	default:
		b.violation(env, "external senders may not originate this kind")
		return nil
	}
}

func (b *Broker) subscribe(e *entry, topic string) error {
	if e.dead.Load() {
		return nil
	}

	added := e.subs.add(topic)
	b.logger.Info("subscribing module to topic",
		zap.Uint64("id", uint64(e.id)), zap.String("name", e.name), zap.String("topic", topic), zap.Bool("new", added))

	if !b.options.Acks {
		return nil
	}
	return b.ack(e, message.Subscribed(topic))
}

func (b *Broker) unsubscribe(e *entry, topic string) error {
	if e.dead.Load() {
		return nil
	}

	removed := e.subs.remove(topic)
	b.logger.Info("unsubscribing module from topic",
		zap.Uint64("id", uint64(e.id)), zap.String("name", e.name), zap.String("topic", topic), zap.Bool("was_member", removed))

	if !b.options.Acks {
		return nil
	}
	return b.ack(e, message.Unsubscribed(topic))
}

// ack replies to the requesting module only. It is counted only once it reached a live inbox.
func (b *Broker) ack(e *entry, msg message.Message) error {
	if err := b.deliver(e, msg); err != nil {
		return err
	}
	if !e.dead.Load() {
		b.stats.acks.Add(1)
	}
	return nil
}

// route fans msg out to every live module subscribed to msg.Topic at this instant.
// Modules publishing to a topic they are subscribed to receive their own message.
func (b *Broker) route(msg message.Message) error {
	if msg.ID == "" {
		if id, err := message.NewID(); err == nil {
			msg.ID = id
		}
	}
	b.stats.routed.Add(1)

	delivered := 0
	for _, e := range b.snapshotEntries() {
		if e.dead.Load() || !e.subs.has(msg.Topic) {
			continue
		}
		if err := b.deliver(e, msg.Clone()); err != nil {
			return err
		}
		if !e.dead.Load() {
			delivered++
		}
	}

	if delivered == 0 {
		b.stats.unrouted.Add(1)
		b.logger.Debug("no subscribers", zap.String("topic", msg.Topic), zap.String("trace", msg.ID))
		return nil
	}

	b.stats.delivered.Add(uint64(delivered))
	b.logger.Debug("routed", zap.String("topic", msg.Topic), zap.String("trace", msg.ID), zap.Int("recipients", delivered))
	return nil
}

// deliver pushes msg into the module's inbox and applies the failure policy on error.
// It only returns an error when the broker must stop.
func (b *Broker) deliver(e *entry, msg message.Message) error {
	err := e.inbox.Push(msg)
	if err == nil {
		return nil
	}

	b.stats.failures.Add(1)
	derr := &DeliveryError{Module: e.id, Name: e.name, Kind: msg.Kind, Err: err}

	if b.options.FailurePolicy == FailureAbort {
		return derr
	}

	b.isolate(e, derr)
	return nil
}

// isolate marks a module dead and removes it from every topic.
func (b *Broker) isolate(e *entry, cause error) {
	if !e.dead.CompareAndSwap(false, true) {
		return
	}
	e.subs.clear()
	b.logger.Warn("module unreachable, isolating",
		zap.Uint64("id", uint64(e.id)), zap.String("name", e.name), zap.Error(cause))
}

func (b *Broker) violation(env message.Envelope, reason string) {
	b.stats.violations.Add(1)
	b.logger.Warn("protocol violation",
		zap.Uint64("from", uint64(env.From)), zap.Stringer("kind", env.Message.Kind), zap.String("reason", reason))
}
