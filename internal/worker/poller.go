package worker

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pushmint/notify-api/internal/model"
	"github.com/pushmint/notify-api/internal/repository"
	"github.com/pushmint/notify-api/internal/service/dispatch"
	"github.com/pushmint/notify-api/pkg/errors"
	"github.com/pushmint/notify-api/pkg/logger"
	"github.com/pushmint/notify-api/pkg/metrics"
)

// AlertMailer notifies operators when a scheduled request fails. A nil mailer
// disables alerting.
type AlertMailer interface {
	SendDispatchFailureAlert(ctx context.Context, req *model.NotificationRequest, reason string) error
}

// ProcessedResult reports what one poll cycle did with one due request.
type ProcessedResult struct {
	ID      uuid.UUID
	Status  model.NotificationStatus
	Summary *model.DispatchSummary
	Err     error
}

type PollerConfig struct {
	Interval time.Duration
}

// Poller scans for due scheduled notifications on a fixed cadence and hands
// them to the dispatcher one at a time.
type Poller struct {
	repo       repository.NotificationRepository
	dispatcher dispatch.Dispatcher
	mailer     AlertMailer
	logger     *logger.Logger
	metrics    *metrics.Metrics
	interval   time.Duration

	// mu enforces the no-overlapping-polls invariant: a tick that fires
	// while the previous cycle is still running is skipped, never queued.
	mu sync.Mutex
}

func NewPoller(
	repo repository.NotificationRepository,
	dispatcher dispatch.Dispatcher,
	mailer AlertMailer,
	logger *logger.Logger,
	m *metrics.Metrics,
	cfg PollerConfig,
) *Poller {
	interval := cfg.Interval
	if interval <= 0 {
		interval = time.Minute
	}
	return &Poller{
		repo:       repo,
		dispatcher: dispatcher,
		mailer:     mailer,
		logger:     logger,
		metrics:    m,
		interval:   interval,
	}
}

func (p *Poller) Start(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.logger.Info("starting notification poller", "interval", p.interval.String())

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("shutting down notification poller")
			return
		case <-ticker.C:
			p.Trigger(ctx, time.Now())
		}
	}
}

// Trigger runs one poll cycle unless the previous one is still in flight.
// Skipped ticks do no work; the next successful tick picks up anything
// still due.
func (p *Poller) Trigger(ctx context.Context, now time.Time) []ProcessedResult {
	if !p.mu.TryLock() {
		p.metrics.PollCyclesSkipped.Inc()
		p.logger.Warn("previous poll cycle still running, skipping tick")
		return nil
	}
	defer p.mu.Unlock()

	return p.pollOnce(ctx, now)
}

// pollOnce processes all due requests sequentially. One bad request never
// aborts the cycle: its error is logged, the request is marked failed, and
// the loop continues.
func (p *Poller) pollOnce(ctx context.Context, now time.Time) []ProcessedResult {
	start := time.Now()
	defer func() {
		p.metrics.PollCycles.Inc()
		p.metrics.PollDuration.Observe(time.Since(start).Seconds())
	}()

	due, err := p.repo.FindDueScheduled(ctx, now)
	if err != nil {
		p.logger.Error(err, "failed to query due notifications")
		return nil
	}

	if len(due) == 0 {
		return nil
	}

	p.logger.Info("processing due notifications", "count", len(due))

	results := make([]ProcessedResult, 0, len(due))
	for _, req := range due {
		results = append(results, p.processOne(ctx, req))
	}

	return results
}

func (p *Poller) processOne(ctx context.Context, req *model.NotificationRequest) ProcessedResult {
	summary, err := p.dispatcher.Dispatch(ctx, req)
	if err == nil {
		p.logger.Info("dispatched scheduled notification",
			"notification_id", req.ID.String(),
			"total", summary.Total,
			"successful", summary.Successful,
			"failed", summary.Failed)
		return ProcessedResult{ID: req.ID, Status: model.NotificationStatusSent, Summary: summary}
	}

	// A request cancelled between the due query and dispatch is not a
	// failure; the dispatcher already declined it with no state change.
	if errors.HasCode(err, errors.ErrInvalidStateTransition) {
		p.logger.Info("skipping notification no longer pending",
			"notification_id", req.ID.String())
		return ProcessedResult{ID: req.ID, Status: req.Status, Err: err}
	}

	p.logger.Error(err, "failed to dispatch scheduled notification",
		"notification_id", req.ID.String())

	if updateErr := p.repo.UpdateStatus(ctx, req.ID, model.NotificationStatusFailed, err.Error()); updateErr != nil {
		p.logger.Error(updateErr, "failed to mark notification failed",
			"notification_id", req.ID.String())
	}

	p.alertFailure(ctx, req, err.Error())

	return ProcessedResult{ID: req.ID, Status: model.NotificationStatusFailed, Err: err}
}

func (p *Poller) alertFailure(ctx context.Context, req *model.NotificationRequest, reason string) {
	if p.mailer == nil {
		return
	}
	if err := p.mailer.SendDispatchFailureAlert(ctx, req, reason); err != nil {
		p.logger.Error(err, "failed to send dispatch failure alert",
			"notification_id", req.ID.String())
	}
}
