// Package scheduler runs recurring background jobs for the dues engine.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/erp/dues/internal/domain/finance"
	"go.uber.org/zap"
)

// LedgerVerifier compares stored paid amounts with payment ledgers
type LedgerVerifier interface {
	VerifyLedger(ctx context.Context, filter finance.ObligationFilter) ([]finance.IntegrityMismatchError, error)
}

// LedgerSweepConfig holds configuration for the daily integrity sweep
type LedgerSweepConfig struct {
	// Hour and Minute of the daily run, in UTC
	Hour   int
	Minute int

	// CheckInterval is how often to check if it's time to run
	CheckInterval time.Duration

	// Timeout bounds a single sweep
	Timeout time.Duration
}

// DefaultLedgerSweepConfig returns default sweep configuration
func DefaultLedgerSweepConfig() LedgerSweepConfig {
	return LedgerSweepConfig{
		Hour:          2, // 2am
		Minute:        0,
		CheckInterval: time.Minute,
		Timeout:       30 * time.Minute,
	}
}

func (c LedgerSweepConfig) validate() error {
	if c.Hour < 0 || c.Hour > 23 || c.Minute < 0 || c.Minute > 59 {
		return fmt.Errorf("%w: run time %02d:%02d", ErrInvalidConfig, c.Hour, c.Minute)
	}
	if c.CheckInterval <= 0 {
		return fmt.Errorf("%w: check interval must be positive", ErrInvalidConfig)
	}
	return nil
}

// SweepResult summarizes one sweep
type SweepResult struct {
	StartedAt  time.Time
	Duration   time.Duration
	Mismatches []finance.IntegrityMismatchError
}

// LedgerSweepTrigger verifies the whole payment ledger once a day.
// Mismatches are reported by the verifier itself (metrics and integrity
// events); the trigger only schedules and logs.
type LedgerSweepTrigger struct {
	config   LedgerSweepConfig
	verifier LedgerVerifier
	logger   *zap.Logger
	now      func() time.Time

	cancel      context.CancelFunc
	wg          sync.WaitGroup
	mu          sync.Mutex
	isRunning   bool
	sweeping    bool
	lastRunDate string // Track which date we last ran for
	last        *SweepResult
}

// NewLedgerSweepTrigger creates a new sweep trigger
func NewLedgerSweepTrigger(config LedgerSweepConfig, verifier LedgerVerifier, logger *zap.Logger) (*LedgerSweepTrigger, error) {
	if err := config.validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LedgerSweepTrigger{
		config:   config,
		verifier: verifier,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}, nil
}

// Start starts the trigger loop
func (t *LedgerSweepTrigger) Start(ctx context.Context) error {
	t.mu.Lock()
	if t.isRunning {
		t.mu.Unlock()
		return nil
	}
	t.isRunning = true
	t.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	t.cancel = cancel

	t.wg.Add(1)
	go t.runLoop(ctx)

	t.logger.Info("Ledger sweep trigger started",
		zap.Int("hour", t.config.Hour),
		zap.Int("minute", t.config.Minute),
		zap.Duration("check_interval", t.config.CheckInterval),
	)
	return nil
}

// Stop stops the trigger and waits for a running sweep to return
func (t *LedgerSweepTrigger) Stop(ctx context.Context) error {
	t.mu.Lock()
	if !t.isRunning {
		t.mu.Unlock()
		return nil
	}
	t.isRunning = false
	t.mu.Unlock()

	if t.cancel != nil {
		t.cancel()
	}

	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		t.logger.Info("Ledger sweep trigger stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// LastResult returns the most recent sweep result, or nil before the first sweep
func (t *LedgerSweepTrigger) LastResult() *SweepResult {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.last
}

func (t *LedgerSweepTrigger) runLoop(ctx context.Context) {
	defer t.wg.Done()

	ticker := time.NewTicker(t.config.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.checkAndTrigger(ctx)
		}
	}
}

// checkAndTrigger runs the sweep if it is due and has not run today
func (t *LedgerSweepTrigger) checkAndTrigger(ctx context.Context) {
	now := t.now()
	currentDate := now.Format("2006-01-02")

	t.mu.Lock()
	if t.lastRunDate == currentDate {
		t.mu.Unlock()
		return
	}
	if now.Hour() != t.config.Hour || now.Minute() != t.config.Minute {
		t.mu.Unlock()
		return
	}
	t.lastRunDate = currentDate
	t.mu.Unlock()

	t.logger.Info("Triggering daily ledger sweep")
	if _, err := t.RunOnce(ctx); err != nil {
		t.logger.Error("Ledger sweep failed", zap.Error(err))
	}
}

// RunOnce verifies every obligation now. Concurrent calls return ErrSweepInProgress.
func (t *LedgerSweepTrigger) RunOnce(ctx context.Context) (*SweepResult, error) {
	t.mu.Lock()
	if t.sweeping {
		t.mu.Unlock()
		return nil, ErrSweepInProgress
	}
	t.sweeping = true
	t.mu.Unlock()
	defer func() {
		t.mu.Lock()
		t.sweeping = false
		t.mu.Unlock()
	}()

	if t.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.config.Timeout)
		defer cancel()
	}

	started := t.now()
	mismatches, err := t.verifier.VerifyLedger(ctx, finance.ObligationFilter{})
	if err != nil {
		return nil, fmt.Errorf("verify ledger: %w", err)
	}

	result := &SweepResult{
		StartedAt:  started,
		Duration:   t.now().Sub(started),
		Mismatches: mismatches,
	}
	t.mu.Lock()
	t.last = result
	t.mu.Unlock()

	if len(mismatches) > 0 {
		t.logger.Warn("Ledger sweep found integrity mismatches",
			zap.Int("mismatches", len(mismatches)),
			zap.Duration("duration", result.Duration),
		)
	} else {
		t.logger.Info("Ledger sweep finished clean", zap.Duration("duration", result.Duration))
	}
	return result, nil
}
