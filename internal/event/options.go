package event

import (
	"fmt"
	"time"

	"go.uber.org/zap"
)

// FailurePolicy decides what a failing listener does to the rest of an
// emission pass.
type FailurePolicy int

const (
	// FailFast stops the pass at the first failing listener and returns its error.
	FailFast FailurePolicy = iota

	// Isolate runs every listener and returns the aggregated failures.
	Isolate
)

// String returns the configuration name of the policy.
func (p FailurePolicy) String() string {
	switch p {
	case FailFast:
		return "fail-fast"
	case Isolate:
		return "isolate"
	default:
		return "unknown"
	}
}

// ParseFailurePolicy parses a configuration name.
func ParseFailurePolicy(s string) (FailurePolicy, error) {
	switch s {
	case "", "fail-fast", "failfast":
		return FailFast, nil
	case "isolate":
		return Isolate, nil
	default:
		return FailFast, fmt.Errorf("unknown failure policy %q", s)
	}
}

// OnceMode decides what a one-shot listener removes when it fires.
type OnceMode int

const (
	// OnceRemoveSelf removes only the firing registration.
	OnceRemoveSelf OnceMode = iota

	// OnceRemoveIdentifier removes every listener under the same exact name.
	// Pattern registrations still remove only themselves.
	OnceRemoveIdentifier
)

// String returns the configuration name of the mode.
func (m OnceMode) String() string {
	switch m {
	case OnceRemoveSelf:
		return "self"
	case OnceRemoveIdentifier:
		return "identifier"
	default:
		return "unknown"
	}
}

// ParseOnceMode parses a configuration name.
func ParseOnceMode(s string) (OnceMode, error) {
	switch s {
	case "", "self":
		return OnceRemoveSelf, nil
	case "identifier":
		return OnceRemoveIdentifier, nil
	default:
		return OnceRemoveSelf, fmt.Errorf("unknown once mode %q", s)
	}
}

// PatternRemoval decides which pattern entries Unsubscribe removes.
type PatternRemoval int

const (
	// RemoveEqual removes entries registered with an equal pattern.
	RemoveEqual PatternRemoval = iota

	// RemoveMatching additionally removes entries whose pattern text is
	// matched by the given pattern.
	RemoveMatching
)

// String returns the configuration name of the mode.
func (r PatternRemoval) String() string {
	switch r {
	case RemoveEqual:
		return "equal"
	case RemoveMatching:
		return "matching"
	default:
		return "unknown"
	}
}

// ParsePatternRemoval parses a configuration name.
func ParsePatternRemoval(s string) (PatternRemoval, error) {
	switch s {
	case "", "equal":
		return RemoveEqual, nil
	case "matching":
		return RemoveMatching, nil
	default:
		return RemoveEqual, fmt.Errorf("unknown pattern removal %q", s)
	}
}

// RegistryOption configures a Registry.
type RegistryOption func(*registryConfig)

type registryConfig struct {
	failurePolicy   FailurePolicy
	onceMode        OnceMode
	patternRemoval  PatternRemoval
	listenerTimeout time.Duration
	logger          *zap.Logger
	metrics         *Metrics
	panicHandler    PanicHandler
}

func defaultRegistryConfig() registryConfig {
	return registryConfig{
		failurePolicy:  FailFast,
		onceMode:       OnceRemoveSelf,
		patternRemoval: RemoveEqual,
		logger:         zap.NewNop(),
	}
}

// WithFailurePolicy sets how listener failures affect an emission pass.
func WithFailurePolicy(p FailurePolicy) RegistryOption {
	return func(c *registryConfig) {
		c.failurePolicy = p
	}
}

// WithOnceMode sets what a firing one-shot listener removes.
func WithOnceMode(m OnceMode) RegistryOption {
	return func(c *registryConfig) {
		c.onceMode = m
	}
}

// WithPatternRemoval sets how Unsubscribe selects pattern entries.
func WithPatternRemoval(r PatternRemoval) RegistryOption {
	return func(c *registryConfig) {
		c.patternRemoval = r
	}
}

// WithListenerTimeout bounds each listener call with a derived deadline.
func WithListenerTimeout(d time.Duration) RegistryOption {
	return func(c *registryConfig) {
		if d >= 0 {
			c.listenerTimeout = d
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *zap.Logger) RegistryOption {
	return func(c *registryConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithMetrics records emissions into prometheus collectors.
func WithMetrics(m *Metrics) RegistryOption {
	return func(c *registryConfig) {
		c.metrics = m
	}
}

// WithPanicHandler sets a callback notified of recovered listener panics.
func WithPanicHandler(h PanicHandler) RegistryOption {
	return func(c *registryConfig) {
		c.panicHandler = h
	}
}
