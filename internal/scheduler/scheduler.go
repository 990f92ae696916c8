// Package scheduler runs the snow analysis on a cron cadence and hands the
// result to a delivery callback.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/adhocore/gronx"
)

// DefaultExpr runs the analysis every six hours.
const DefaultExpr = "0 0,6,12,18 * * *"

// AnalyzeFunc produces the analysis text.
type AnalyzeFunc func(ctx context.Context) (string, error)

// DeliverFunc ships a finished analysis somewhere (Slack, broadcast).
type DeliverFunc func(ctx context.Context, analysis string) error

// Scheduler fires the analysis at cron ticks.
type Scheduler struct {
	logger  *slog.Logger
	expr    string
	analyze AnalyzeFunc
	deliver DeliverFunc
	now     func() time.Time

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// New creates a Scheduler. expr may be empty for the six-hour default;
// deliver may be nil when results are only logged.
func New(logger *slog.Logger, expr string, analyze AnalyzeFunc, deliver DeliverFunc) (*Scheduler, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if expr == "" {
		expr = DefaultExpr
	}
	if !gronx.New().IsValid(expr) {
		return nil, fmt.Errorf("invalid cron expression %q", expr)
	}
	return &Scheduler{
		logger:  logger,
		expr:    expr,
		analyze: analyze,
		deliver: deliver,
		now:     time.Now,
	}, nil
}

// Start begins the scheduling loop. It returns immediately; ticks run on a
// background goroutine until Stop or context cancellation.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}
	s.stopCh = make(chan struct{})
	s.running = true

	s.wg.Add(1)
	go s.loop(ctx, s.stopCh)

	s.logger.Info("analysis scheduler started", "expr", s.expr)
	return nil
}

// Stop halts the loop and waits for an in-flight run to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	close(s.stopCh)
	s.running = false
	s.mu.Unlock()

	s.wg.Wait()
	s.logger.Info("analysis scheduler stopped")
}

func (s *Scheduler) loop(ctx context.Context, stopCh chan struct{}) {
	defer s.wg.Done()
	for {
		next, err := gronx.NextTickAfter(s.expr, s.now(), false)
		if err != nil {
			s.logger.Error("cron schedule computation failed", "expr", s.expr, "error", err)
			return
		}
		timer := time.NewTimer(time.Until(next))
		select {
		case <-timer.C:
			s.RunNow(ctx)
		case <-stopCh:
			timer.Stop()
			return
		case <-ctx.Done():
			timer.Stop()
			return
		}
	}
}

// RunNow executes one analysis cycle immediately. Failures are logged, not
// returned; a failed scheduled run must not stop the cadence.
func (s *Scheduler) RunNow(ctx context.Context) {
	started := s.now()
	s.logger.Info("scheduled snow analysis starting")

	analysis, err := s.analyze(ctx)
	if err != nil {
		s.logger.Error("scheduled snow analysis failed", "error", err)
		return
	}

	if s.deliver != nil {
		if err := s.deliver(ctx, analysis); err != nil {
			s.logger.Error("analysis delivery failed", "error", err)
			return
		}
	}
	s.logger.Info("scheduled snow analysis completed", "duration", s.now().Sub(started), "delivered", s.deliver != nil)
}
