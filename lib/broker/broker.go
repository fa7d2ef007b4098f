// Package broker owns the module registry and every subscription set, and routes all traffic
// between modules.
//
// The broker is the sole writer of subscription state. Generic messages are fanned out to every
// module subscribed to the topic at the instant of dispatch, each recipient getting its own copy.
package broker

import (
	"sync"

	"go.uber.org/zap"

	"github.com/snowmerak/pubsub.go/lib/itrie"
	"github.com/snowmerak/pubsub.go/lib/message"
	"github.com/snowmerak/pubsub.go/lib/module"
	"github.com/snowmerak/pubsub.go/lib/queue"
)

// Broker routes messages between modules.
type Broker struct {
	options *Options
	logger  *zap.Logger

	mu      sync.RWMutex
	entries []*entry // registration order, fixed once Run starts
	byID    *itrie.ITrie[entry]
	nextID  message.ModuleID
	started bool

	// collector receives every outbound envelope in push mode; external messages share it.
	// In pull mode external has its own queue and each module has a private outbox.
	collector *queue.Queue[message.Envelope]
	external  *queue.Queue[message.Envelope]

	stats counters
	wg    sync.WaitGroup
}

// New creates a broker. Options are applied over DefaultOptions.
func New(opts ...Option) *Broker {
	options := DefaultOptions()
	for _, opt := range opts {
		opt(options)
	}

	b := &Broker{
		options: options,
		logger:  options.Logger.Named("broker"),
		byID:    itrie.New[entry](),
	}

	if options.Strategy == StrategyPull {
		b.external = queue.New[message.Envelope]()
	} else {
		b.collector = queue.New[message.Envelope]()
		b.external = b.collector
	}

	return b
}

// Options returns the effective options.
func (b *Broker) Options() Options {
	return *b.options
}

// Spawn registers a module with an empty subscription set. Its worker starts, and it is
// sent Startup, when Run begins. IDs start at 1 and are never reused.
func (b *Broker) Spawn(name string, handler module.Handler) (message.ModuleID, error) {
	if name == "" {
		return 0, ErrEmptyName
	}
	if handler == nil {
		return 0, ErrNilHandler
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.started {
		return 0, ErrRunning
	}

	b.nextID++
	id := b.nextID

	outbox := b.collector
	if b.options.Strategy == StrategyPull {
		outbox = queue.New[message.Envelope]()
	}
	inbox := queue.New[message.Message]()

	e := &entry{
		id:     id,
		name:   name,
		worker: module.NewWorker(id, name, handler, inbox, outbox, b.options.Logger),
		inbox:  inbox,
		outbox: outbox,
		subs:   newSubscriptions(),
	}
	b.entries = append(b.entries, e)
	b.byID.Insert(uint64(id), e)

	b.logger.Info("creating module", zap.Uint64("id", uint64(id)), zap.String("name", name))
	return id, nil
}

// Lookup returns the ID of the first module registered under name.
func (b *Broker) Lookup(name string) (message.ModuleID, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, e := range b.entries {
		if e.name == name {
			return e.id, true
		}
	}
	return 0, false
}

// Modules returns a snapshot of every registered module in registration order.
func (b *Broker) Modules() []ModuleInfo {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]ModuleInfo, 0, len(b.entries))
	for _, e := range b.entries {
		out = append(out, e.info())
	}
	return out
}

// Subscriptions returns the sorted topic set of a module.
func (b *Broker) Subscriptions(id message.ModuleID) ([]string, error) {
	e := b.lookup(id)
	if e == nil {
		return nil, ErrUnknownModule
	}
	return e.subs.list(), nil
}

// Stats returns a snapshot of the routing counters.
func (b *Broker) Stats() Stats {
	return b.stats.snapshot()
}

// lookup does not take mu; the trie is safe for concurrent readers.
func (b *Broker) lookup(id message.ModuleID) *entry {
	return b.byID.Search(uint64(id))
}

func (b *Broker) snapshotEntries() []*entry {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]*entry(nil), b.entries...)
}
