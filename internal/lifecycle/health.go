package lifecycle

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/Proton-105/signalctl/internal/health"
)

// HealthChecker exposes liveness and readiness probes.
type HealthChecker interface {
	Liveness(ctx context.Context) error
	Readiness(ctx context.Context) error
}

// Probes answers liveness from the polling loop and readiness from every
// registered component check.
type Probes struct {
	log     *slog.Logger
	loop    health.Checkable
	checker *health.Checker
}

var _ HealthChecker = (*Probes)(nil)

// NewProbes creates a new Probes instance. loop decides liveness; checker
// decides readiness.
func NewProbes(log *slog.Logger, loop health.Checkable, checker *health.Checker) *Probes {
	if log == nil {
		log = slog.Default()
	}
	return &Probes{log: log, loop: loop, checker: checker}
}

// Liveness fails once the polling loop has stopped.
func (p *Probes) Liveness(ctx context.Context) error {
	p.log.Debug("liveness probe called")
	if p.loop == nil {
		return nil
	}
	return p.loop.HealthCheck(ctx)
}

// Readiness fails when any component check fails.
func (p *Probes) Readiness(ctx context.Context) error {
	p.log.Debug("readiness probe called")
	if p.checker == nil {
		return nil
	}

	results := p.checker.Check(ctx)
	if health.Healthy(results) {
		return nil
	}

	failed := make([]string, 0, len(results))
	for name, status := range results {
		if status != health.StatusOK {
			failed = append(failed, fmt.Sprintf("%s: %s", name, status))
		}
	}
	sort.Strings(failed)

	return fmt.Errorf("not ready: %s", strings.Join(failed, "; "))
}
