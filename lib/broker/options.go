package broker

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Strategy selects how the broker collects outbound messages from modules
type Strategy int

const (
	// StrategyPush shares one collector between all modules; the broker blocks on it (default)
	StrategyPush Strategy = iota
	// StrategyPull gives each module its own outbox; the broker polls them round-robin
	StrategyPull
)

// String returns the string representation of Strategy
func (s Strategy) String() string {
	switch s {
	case StrategyPush:
		return "push"
	case StrategyPull:
		return "pull"
	default:
		return "unknown"
	}
}

// ParseStrategy parses "push" or "pull". An empty string means push.
func ParseStrategy(s string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "push":
		return StrategyPush, nil
	case "pull":
		return StrategyPull, nil
	default:
		return 0, fmt.Errorf("unknown strategy %q (want push or pull)", s)
	}
}

// FailurePolicy decides what happens when a module's inbox can no longer be delivered to
type FailurePolicy int

const (
	// FailureIsolate marks the module dead, clears its subscriptions and keeps routing (default)
	FailureIsolate FailurePolicy = iota
	// FailureAbort stops the broker and makes Run return the *DeliveryError
	FailureAbort
)

// String returns the string representation of FailurePolicy
func (p FailurePolicy) String() string {
	switch p {
	case FailureIsolate:
		return "isolate"
	case FailureAbort:
		return "abort"
	default:
		return "unknown"
	}
}

// ParseFailurePolicy parses "isolate" or "abort". An empty string means isolate.
func ParseFailurePolicy(s string) (FailurePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "isolate":
		return FailureIsolate, nil
	case "abort":
		return FailureAbort, nil
	default:
		return 0, fmt.Errorf("unknown delivery failure policy %q (want isolate or abort)", s)
	}
}

// Options defines options for creating a Broker
type Options struct {
	// Strategy specifies how outbound messages are collected
	Strategy Strategy

	// IdleInterval is how long the pull strategy sleeps after a cycle that moved nothing
	IdleInterval time.Duration

	// Acks enables Subscribed/Unsubscribed replies
	Acks bool

	// FailurePolicy applies to failed deliveries
	FailurePolicy FailurePolicy

	// ShutdownGrace bounds how long Run waits for workers after sending Shutdown
	ShutdownGrace time.Duration

	// Logger receives the broker narration; nil means no logging
	Logger *zap.Logger
}

// DefaultOptions returns push strategy with acks and dead-module isolation
func DefaultOptions() *Options {
	return &Options{
		Strategy:      StrategyPush,
		IdleInterval:  100 * time.Millisecond,
		Acks:          true,
		FailurePolicy: FailureIsolate,
		ShutdownGrace: 2 * time.Second,
		Logger:        zap.NewNop(),
	}
}

// Option mutates Options
type Option func(*Options)

func WithStrategy(s Strategy) Option {
	return func(o *Options) { o.Strategy = s }
}

// WithIdleInterval sets the pull strategy idle sleep. Non-positive values are ignored.
func WithIdleInterval(d time.Duration) Option {
	return func(o *Options) {
		if d > 0 {
			o.IdleInterval = d
		}
	}
}

func WithAcks(enabled bool) Option {
	return func(o *Options) { o.Acks = enabled }
}

func WithFailurePolicy(p FailurePolicy) Option {
	return func(o *Options) { o.FailurePolicy = p }
}

// WithShutdownGrace sets the shutdown wait. Non-positive values are ignored.
func WithShutdownGrace(d time.Duration) Option {
	return func(o *Options) {
		if d > 0 {
			o.ShutdownGrace = d
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(o *Options) {
		if l != nil {
			o.Logger = l
		}
	}
}
