package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/adhocore/gronx"

	"learnhub/internal/infrastructure/metrics"
	"learnhub/pkg/config"
	"learnhub/pkg/logger"
)

var ErrSweepInProgress = errors.New("orphan sweep already in progress")

// Sweeper removes attachment objects that never became part of a message.
type Sweeper interface {
	SweepOrphans(ctx context.Context, gracePeriod time.Duration) (int, error)
}

// OrphanSweeper runs a Sweeper on a cron schedule.
type OrphanSweeper struct {
	target     Sweeper
	cron       string
	grace      time.Duration
	metrics    *metrics.Metrics
	retryDelay time.Duration
	now        func() time.Time

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	running bool
}

func NewOrphanSweeper(target Sweeper, cfg config.SweeperConfig, m *metrics.Metrics) *OrphanSweeper {
	return &OrphanSweeper{
		target:     target,
		cron:       cfg.Cron,
		grace:      cfg.GracePeriod,
		metrics:    m,
		retryDelay: 30 * time.Second,
		now:        time.Now,
	}
}

// Start launches the schedule loop. An empty cron expression disables it.
func (s *OrphanSweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		return fmt.Errorf("orphan sweeper already started")
	}

	if s.cron == "" {
		logger.Info("Orphan sweeper disabled")
		return nil
	}

	if !gronx.IsValid(s.cron) {
		return fmt.Errorf("invalid cron expression %q", s.cron)
	}

	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})

	logger.Info("Orphan sweeper scheduled with cron %q, grace period %v", s.cron, s.grace)
	go s.scheduleLoop(loopCtx, s.done)
	return nil
}

// Stop cancels the loop and waits for a sweep in flight. It is safe to call
// more than once.
func (s *OrphanSweeper) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	logger.Info("Orphan sweeper stopped")
}

func (s *OrphanSweeper) scheduleLoop(ctx context.Context, done chan struct{}) {
	defer close(done)

	for {
		next, err := gronx.NextTickAfter(s.cron, s.now(), false)
		if err != nil {
			logger.Error("Orphan sweeper: next tick for %q failed: %v", s.cron, err)
			if !sleep(ctx, s.retryDelay) {
				return
			}
			continue
		}

		if !sleep(ctx, next.Sub(s.now())) {
			return
		}

		if _, err := s.RunNow(ctx); err != nil && !errors.Is(err, ErrSweepInProgress) {
			logger.Error("Orphan sweep failed: %v", err)
		}
	}
}

// RunNow performs one sweep unless another is already running.
func (s *OrphanSweeper) RunNow(ctx context.Context) (int, error) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return 0, ErrSweepInProgress
	}
	s.running = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	started := s.now()
	removed, err := s.target.SweepOrphans(ctx, s.grace)
	s.metrics.SweepFinished(removed, err)

	if err == nil {
		logger.Info("Orphan sweep removed %d attachments in %v", removed, s.now().Sub(started))
	}
	return removed, err
}

// sleep waits for d or until ctx ends and reports whether to continue.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		d = time.Second
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
