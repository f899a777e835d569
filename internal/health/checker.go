package health

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
)

// StatusOK is reported for a passing component.
const StatusOK = "OK"

var (
	// ErrMachineStopped indicates the polling loop is not running.
	ErrMachineStopped = errors.New("state machine is not running")
	// ErrNotConfigured indicates a checker without its component.
	ErrNotConfigured = errors.New("component not configured")
)

// Checkable represents a component that can report its health status.
type Checkable interface {
	HealthCheck(ctx context.Context) error
}

// CheckFunc adapts a function to Checkable.
type CheckFunc func(ctx context.Context) error

// HealthCheck calls f.
func (f CheckFunc) HealthCheck(ctx context.Context) error {
	return f(ctx)
}

// Checker aggregates health checks for multiple components.
type Checker struct {
	log *slog.Logger

	mu     sync.RWMutex
	checks map[string]Checkable
}

// NewChecker instantiates a Checker with the provided logger.
func NewChecker(log *slog.Logger) *Checker {
	if log == nil {
		log = slog.Default()
	}

	return &Checker{
		log:    log,
		checks: make(map[string]Checkable),
	}
}

// AddCheck registers a checkable component by name.
func (c *Checker) AddCheck(name string, check Checkable) {
	if name == "" || check == nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.checks[name] = check
}

// Names returns the registered component names in order.
func (c *Checker) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]string, 0, len(c.checks))
	for name := range c.checks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Check runs all registered health checks and returns their statuses.
func (c *Checker) Check(ctx context.Context) map[string]string {
	c.mu.RLock()
	checks := make(map[string]Checkable, len(c.checks))
	for name, check := range c.checks {
		checks[name] = check
	}
	c.mu.RUnlock()

	results := make(map[string]string, len(checks))

	for name, check := range checks {
		if err := check.HealthCheck(ctx); err != nil {
			results[name] = err.Error()
			c.log.Warn("health check failed", slog.String("component", name), slog.Any("error", err))
			continue
		}

		results[name] = StatusOK
	}

	return results
}

// Healthy reports whether every status in results is OK.
func Healthy(results map[string]string) bool {
	for _, status := range results {
		if status != StatusOK {
			return false
		}
	}
	return true
}

// LoopState is the part of state.Machine the machine check reads.
type LoopState interface {
	Running() bool
}

// MachineChecker reports whether the polling loop is running.
type MachineChecker struct {
	loop LoopState
}

// NewMachineChecker constructs a MachineChecker.
func NewMachineChecker(loop LoopState) *MachineChecker {
	return &MachineChecker{loop: loop}
}

// HealthCheck fails when the loop has not started or has stopped.
func (c *MachineChecker) HealthCheck(context.Context) error {
	if c == nil || c.loop == nil {
		return ErrNotConfigured
	}
	if !c.loop.Running() {
		return ErrMachineStopped
	}
	return nil
}

// Pinger abstracts the subset of the redis client used for health checks.
type Pinger interface {
	Ping(ctx context.Context) error
}

// RedisChecker verifies connectivity to a Redis instance.
type RedisChecker struct {
	pinger Pinger
}

// NewRedisChecker constructs a RedisChecker.
func NewRedisChecker(pinger Pinger) *RedisChecker {
	return &RedisChecker{pinger: pinger}
}

// HealthCheck issues a PING command against Redis.
func (c *RedisChecker) HealthCheck(ctx context.Context) error {
	if c == nil || c.pinger == nil {
		return ErrNotConfigured
	}
	return c.pinger.Ping(ctx)
}
