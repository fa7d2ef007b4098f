package broker

import (
	"sort"
	"sync"
	"sync/atomic"

	"github.com/snowmerak/pubsub.go/lib/message"
	"github.com/snowmerak/pubsub.go/lib/module"
	"github.com/snowmerak/pubsub.go/lib/queue"
)

// subscriptions is one module's topic set. Only the broker goroutine mutates it;
// the lock serializes those writes against snapshot readers.
type subscriptions struct {
	mu     sync.RWMutex
	topics map[string]struct{}
}

func newSubscriptions() *subscriptions {
	return &subscriptions{topics: make(map[string]struct{})}
}

// add reports whether topic was newly inserted.
func (s *subscriptions) add(topic string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.topics[topic]; ok {
		return false
	}
	s.topics[topic] = struct{}{}
	return true
}

// remove reports whether topic was present.
func (s *subscriptions) remove(topic string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.topics[topic]; !ok {
		return false
	}
	delete(s.topics, topic)
	return true
}

func (s *subscriptions) has(topic string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.topics[topic]
	return ok
}

func (s *subscriptions) clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.topics)
}

func (s *subscriptions) list() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.topics))
	for t := range s.topics {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// entry is the broker's view of a running module.
type entry struct {
	id     message.ModuleID
	name   string
	worker *module.Worker
	inbox  *queue.Queue[message.Message]
	outbox *queue.Queue[message.Envelope]
	subs   *subscriptions
	dead   atomic.Bool
}

// ModuleInfo is a point-in-time snapshot of a module.
type ModuleInfo struct {
	ID      message.ModuleID
	Name    string
	Topics  []string
	Alive   bool // false once isolated after a failed delivery
	Stopped bool // the worker goroutine has returned
	Pending int
	Handled uint64
	Failed  uint64
}

func (e *entry) info() ModuleInfo {
	return ModuleInfo{
		ID:      e.id,
		Name:    e.name,
		Topics:  e.subs.list(),
		Alive:   !e.dead.Load(),
		Stopped: e.worker.Stopped(),
		Pending: e.inbox.Len(),
		Handled: e.worker.Handled(),
		Failed:  e.worker.Failed(),
	}
}
