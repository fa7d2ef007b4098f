package broker

import "sync/atomic"

// Stats contains routing counters
type Stats struct {
	Routed     uint64 // Generic messages routed
	Delivered  uint64 // Generic copies placed in inboxes
	Unrouted   uint64 // Generic messages with no subscriber
	Acks       uint64 // Subscribed/Unsubscribed replies sent
	Violations uint64 // requests a sender may not originate
	Failures   uint64 // failed deliveries
}

type counters struct {
	routed     atomic.Uint64
	delivered  atomic.Uint64
	unrouted   atomic.Uint64
	acks       atomic.Uint64
	violations atomic.Uint64
	failures   atomic.Uint64
}

func (c *counters) snapshot() Stats {
	return Stats{
		Routed:     c.routed.Load(),
		Delivered:  c.delivered.Load(),
		Unrouted:   c.unrouted.Load(),
		Acks:       c.acks.Load(),
		Violations: c.violations.Load(),
		Failures:   c.failures.Load(),
	}
}
