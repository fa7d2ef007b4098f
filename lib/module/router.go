package module

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/snowmerak/pubsub.go/lib/message"
)

// HookFunc handles a payload-less lifecycle message (Startup, Shutdown, Tick).
type HookFunc func(ctx context.Context) ([]message.Message, error)

// TopicFunc handles a Generic message or an acknowledgment.
type TopicFunc func(ctx context.Context, msg message.Message) ([]message.Message, error)

// Router is a Handler that dispatches by message kind and, for Generic messages, by topic.
// Kinds without a registered function are ignored.
type Router struct {
	mu            sync.RWMutex
	startup       HookFunc
	shutdown      HookFunc
	tick          HookFunc
	ack           TopicFunc
	topics        map[string]TopicFunc
	autoSubscribe bool
}

// NewRouter creates an empty Router.
func NewRouter() *Router {
	return &Router{
		topics: make(map[string]TopicFunc),
	}
}

// AutoSubscribe makes Startup emit a Subscribe request for every registered topic,
// in lexical order, ahead of whatever the startup hook returns.
func (r *Router) AutoSubscribe() *Router {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.autoSubscribe = true
	return r
}

func (r *Router) OnStartup(fn HookFunc) *Router {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.startup = fn
	return r
}

func (r *Router) OnShutdown(fn HookFunc) *Router {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.shutdown = fn
	return r
}

func (r *Router) OnTick(fn HookFunc) *Router {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tick = fn
	return r
}

// OnAck registers a function for Subscribed and Unsubscribed acknowledgments.
func (r *Router) OnAck(fn TopicFunc) *Router {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ack = fn
	return r
}

// OnTopic registers fn for Generic messages delivered from topic.
// Registering the same topic twice is a programming error and panics.
func (r *Router) OnTopic(topic string, fn TopicFunc) *Router {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.topics[topic]; exists {
		panic(fmt.Sprintf("handler for topic %s already registered", topic))
	}
	r.topics[topic] = fn
	return r
}

// RemoveTopic removes the function for topic. It does not unsubscribe.
func (r *Router) RemoveTopic(topic string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.topics, topic)
}

// Topics returns the registered topics in lexical order.
func (r *Router) Topics() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.topics))
	for t := range r.topics {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Handle implements Handler interface
func (r *Router) Handle(ctx context.Context, msg message.Message) ([]message.Message, error) {
	r.mu.RLock()
	var (
		hook  HookFunc
		topic TopicFunc
		subs  []message.Message
	)
	switch kind := msg.Kind; {
	case kind.IsAck():
		topic = r.ack
	case kind == message.KindStartup:
		hook = r.startup
		if r.autoSubscribe {
			for t := range r.topics {
				subs = append(subs, message.Subscribe(t))
			}
			sort.Slice(subs, func(i, j int) bool { return subs[i].Topic < subs[j].Topic })
		}
	case kind == message.KindShutdown:
		hook = r.shutdown
	case kind == message.KindTick:
		hook = r.tick
	case kind == message.KindGeneric:
		topic = r.topics[msg.Topic]
	}
	r.mu.RUnlock()

	switch {
	case hook != nil:
		out, err := hook(ctx)
		if err != nil {
			return nil, err
		}
		return append(subs, out...), nil
	case topic != nil:
		return topic(ctx, msg)
	default:
		return subs, nil
	}
}
