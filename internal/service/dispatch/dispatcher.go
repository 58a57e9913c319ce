package dispatch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pushmint/notify-api/internal/model"
	"github.com/pushmint/notify-api/internal/push"
	"github.com/pushmint/notify-api/internal/repository"
	"github.com/pushmint/notify-api/pkg/errors"
	"github.com/pushmint/notify-api/pkg/logger"
	"github.com/pushmint/notify-api/pkg/messaging"
	"github.com/pushmint/notify-api/pkg/metrics"
)

const dispatchedChannel = "notifications.dispatched"

// Dispatcher resolves a notification request's recipients and invokes
// delivery once per device token.
type Dispatcher interface {
	Dispatch(ctx context.Context, req *model.NotificationRequest) (*model.DispatchSummary, error)
}

type Config struct {
	// Concurrency bounds the per-recipient fan-out. 1 keeps deliveries
	// strictly sequential.
	Concurrency int
}

type dispatcher struct {
	notifRepo   repository.NotificationRepository
	userRepo    repository.UserRepository
	gateway     push.Gateway
	recorder    *Recorder
	broker      messaging.Broker
	logger      *logger.Logger
	metrics     *metrics.Metrics
	concurrency int
}

func NewDispatcher(
	notifRepo repository.NotificationRepository,
	userRepo repository.UserRepository,
	gateway push.Gateway,
	recorder *Recorder,
	broker messaging.Broker,
	logger *logger.Logger,
	m *metrics.Metrics,
	cfg Config,
) Dispatcher {
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	return &dispatcher{
		notifRepo:   notifRepo,
		userRepo:    userRepo,
		gateway:     gateway,
		recorder:    recorder,
		broker:      broker,
		logger:      logger,
		metrics:     m,
		concurrency: concurrency,
	}
}

func (d *dispatcher) Dispatch(ctx context.Context, req *model.NotificationRequest) (*model.DispatchSummary, error) {
	start := time.Now()
	defer func() {
		d.metrics.DispatchDuration.Observe(time.Since(start).Seconds())
	}()

	// Re-check the live status: an admin may have cancelled the request
	// between the poll query and this point. Abort with no state change.
	fresh, err := d.notifRepo.Get(ctx, req.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to re-read notification request: %w", err)
	}
	if fresh.Status != model.NotificationStatusPending {
		return nil, errors.InvalidStateTransition(
			fmt.Sprintf("notification request is %s, not pending", fresh.Status))
	}

	recipients, err := d.resolveTarget(ctx, fresh)
	if err != nil {
		d.metrics.DispatchesFailed.Inc()
		return nil, err
	}

	results := d.fanOut(ctx, fresh, recipients)

	summary, err := d.recorder.Record(ctx, fresh.ID, results, time.Now())
	if err != nil {
		return nil, fmt.Errorf("failed to record dispatch outcome: %w", err)
	}

	d.metrics.DispatchesCompleted.Inc()
	d.publishDispatched(ctx, fresh.ID, summary)

	return summary, nil
}

// resolveTarget turns the request's target variant into a recipient set.
func (d *dispatcher) resolveTarget(ctx context.Context, req *model.NotificationRequest) ([]*model.User, error) {
	target, err := model.TargetFromRequest(req)
	if err != nil {
		return nil, err
	}

	switch t := target.(type) {
	case model.SingleUser:
		user, err := d.userRepo.Get(ctx, t.UserID)
		if err != nil {
			if errors.HasCode(err, errors.ErrNotFound) {
				return nil, errors.TargetNotFound("user", t.UserID.String())
			}
			return nil, fmt.Errorf("failed to resolve user target: %w", err)
		}
		return []*model.User{user}, nil

	case model.UserGroup:
		exists, err := d.userRepo.GroupExists(ctx, t.GroupID)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve group target: %w", err)
		}
		if !exists {
			return nil, errors.TargetNotFound("user group", t.GroupID.String())
		}
		// An empty membership list is not an error; it yields a zero-total
		// summary.
		members, err := d.userRepo.ListGroupMembers(ctx, t.GroupID)
		if err != nil {
			return nil, fmt.Errorf("failed to list group members: %w", err)
		}
		return members, nil

	case model.AllUsers:
		users, err := d.userRepo.ListAll(ctx, t.ExcludeAdmins)
		if err != nil {
			return nil, fmt.Errorf("failed to list users: %w", err)
		}
		return users, nil

	default:
		return nil, errors.Validation(fmt.Sprintf("unhandled target type %T", target))
	}
}

// fanOut delivers to each recipient with a token. Results keep recipient
// order so aggregation is deterministic regardless of worker scheduling.
func (d *dispatcher) fanOut(ctx context.Context, req *model.NotificationRequest, recipients []*model.User) []model.RecipientResult {
	payload := &push.Payload{
		Notification: push.Notification{
			Title: req.Title,
			Body:  req.Body,
		},
		Data: req.ExtraData,
	}
	if payload.Data == nil {
		payload.Data = map[string]interface{}{}
	}

	results := make([]model.RecipientResult, len(recipients))

	var wg sync.WaitGroup
	sem := make(chan struct{}, d.concurrency)

	for i, recipient := range recipients {
		if !recipient.HasDeviceToken() {
			results[i] = model.RecipientResult{
				RecipientID: recipient.ID,
				Skipped:     true,
				Message:     "no device token",
			}
			d.metrics.DeliveriesTotal.WithLabelValues("skipped").Inc()
			continue
		}

		wg.Add(1)
		sem <- struct{}{}
		go func(i int, recipient *model.User) {
			defer wg.Done()
			defer func() { <-sem }()

			res := d.gateway.Send(ctx, recipient.DeviceToken, payload)
			results[i] = model.RecipientResult{
				RecipientID: recipient.ID,
				Success:     res.Success,
				Message:     res.Message,
			}

			if res.Success {
				d.metrics.DeliveriesTotal.WithLabelValues("success").Inc()
			} else {
				d.metrics.DeliveriesTotal.WithLabelValues("failure").Inc()
				d.logger.Warn("push delivery failed",
					"notification_id", req.ID.String(),
					"recipient_id", recipient.ID.String(),
					"reason", res.Message)
			}
		}(i, recipient)
	}

	wg.Wait()
	return results
}

func (d *dispatcher) publishDispatched(ctx context.Context, id uuid.UUID, summary *model.DispatchSummary) {
	if d.broker == nil {
		return
	}

	event := messaging.Message{
		Type: "notification.dispatched",
		Payload: map[string]interface{}{
			"notification_id": id.String(),
			"total":           summary.Total,
			"successful":      summary.Successful,
			"failed":          summary.Failed,
			"skipped":         summary.Skipped,
		},
	}
	if err := d.broker.Publish(ctx, dispatchedChannel, event); err != nil {
		d.logger.Error(err, "failed to publish dispatched event",
			"notification_id", id.String())
	}
}
