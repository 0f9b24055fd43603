package finance

import (
	"context"
	"fmt"
	"sync"
)

// CancellationChecker is supplied by an owning domain (sales, purchases,
// expenses, payroll) and reports whether its record is cancelled or otherwise terminal.
type CancellationChecker interface {
	IsCancelled(ctx context.Context, externalID string) (bool, error)
}

// CancellationCheckerFunc adapts a function to CancellationChecker
type CancellationCheckerFunc func(ctx context.Context, externalID string) (bool, error)

// IsCancelled calls f
func (f CancellationCheckerFunc) IsCancelled(ctx context.Context, externalID string) (bool, error) {
	return f(ctx, externalID)
}

// CancellationPolicy dispatches the cancellation check to the checker registered for the obligation's kind.
// Kinds without a checker are never considered cancelled.
type CancellationPolicy struct {
	mu       sync.RWMutex
	checkers map[ObligationKind]CancellationChecker
}

// NewCancellationPolicy creates an empty policy
func NewCancellationPolicy() *CancellationPolicy {
	return &CancellationPolicy{checkers: make(map[ObligationKind]CancellationChecker)}
}

// Register sets the checker for kind, replacing any previous one
func (p *CancellationPolicy) Register(kind ObligationKind, checker CancellationChecker) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.checkers[kind] = checker
}

// HasChecker reports whether kind has a registered checker
func (p *CancellationPolicy) HasChecker(kind ObligationKind) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.checkers[kind]
	return ok
}

// EnsureActive returns ErrObligationCancelled when the owning record is cancelled
func (p *CancellationPolicy) EnsureActive(ctx context.Context, o *Obligation) error {
	p.mu.RLock()
	checker, ok := p.checkers[o.Kind]
	p.mu.RUnlock()
	if !ok {
		return nil
	}

	cancelled, err := checker.IsCancelled(ctx, o.ExternalID)
	if err != nil {
		return fmt.Errorf("cancellation check for %s %s: %w", o.Kind, o.ExternalID, err)
	}
	if cancelled {
		return ErrObligationCancelled
	}
	return nil
}
