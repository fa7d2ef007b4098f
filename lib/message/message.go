// Package message defines the closed set of messages exchanged between modules and the broker.
//
// This file contains the message kinds, the Message value and the Envelope used on outbound paths.
package message

// Kind represents the kind of a message
type Kind uint8

const (
	KindStartup      Kind = 0x01 // one-time init, broker to module
	KindShutdown     Kind = 0x02 // one-time teardown (advisory), broker to module
	KindTick         Kind = 0x03 // periodic stimulus, producer is external
	KindSubscribe    Kind = 0x04 // module asks to join a topic
	KindUnsubscribe  Kind = 0x05 // module asks to leave a topic
	KindSubscribed   Kind = 0x06 // ack of Subscribe
	KindUnsubscribed Kind = 0x07 // ack of Unsubscribe
	KindGeneric      Kind = 0x08 // application payload addressed to a topic
)

// String returns the string representation of Kind
func (k Kind) String() string {
	switch k {
	case KindStartup:
		return "startup"
	case KindShutdown:
		return "shutdown"
	case KindTick:
		return "tick"
	case KindSubscribe:
		return "subscribe"
	case KindUnsubscribe:
		return "unsubscribe"
	case KindSubscribed:
		return "subscribed"
	case KindUnsubscribed:
		return "unsubscribed"
	case KindGeneric:
		return "generic"
	default:
		return "unknown"
	}
}

// ModuleMayOriginate reports whether a module is allowed to send this kind to the broker.
func (k Kind) ModuleMayOriginate() bool {
	switch k {
	case KindSubscribe, KindUnsubscribe, KindGeneric:
		return true
	default:
		return false
	}
}

// IsAck reports whether the kind is a subscription acknowledgment.
func (k Kind) IsAck() bool {
	return k == KindSubscribed || k == KindUnsubscribed
}

// Message is a tagged value. Topic is set for subscription requests, acks and Generic.
// Payload and ID are only meaningful for Generic.
type Message struct {
	Kind    Kind
	Topic   string
	Payload Payload
	ID      string
}

// Clone returns a copy that shares no mutable state with m.
func (m Message) Clone() Message {
	cp := m
	if m.Payload != nil {
		cp.Payload = m.Payload.Clone()
	}
	return cp
}

func Startup() Message  { return Message{Kind: KindStartup} }
func Shutdown() Message { return Message{Kind: KindShutdown} }
func Tick() Message     { return Message{Kind: KindTick} }

func Subscribe(topic string) Message    { return Message{Kind: KindSubscribe, Topic: topic} }
func Unsubscribe(topic string) Message  { return Message{Kind: KindUnsubscribe, Topic: topic} }
func Subscribed(topic string) Message   { return Message{Kind: KindSubscribed, Topic: topic} }
func Unsubscribed(topic string) Message { return Message{Kind: KindUnsubscribed, Topic: topic} }

// Generic creates an application message for topic.
func Generic(topic string, payload Payload) Message {
	return Message{Kind: KindGeneric, Topic: topic, Payload: payload}
}

// ModuleID identifies a module for the lifetime of a broker.
type ModuleID uint64

// External is the origin of messages injected by the embedding program.
const External ModuleID = 0

// Envelope carries a message together with its origin and, for injected messages, its target.
// To is External when the message is routed by topic or broadcast.
type Envelope struct {
	From    ModuleID
	To      ModuleID
	Message Message
}
