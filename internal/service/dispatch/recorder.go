package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/pushmint/notify-api/internal/model"
	"github.com/pushmint/notify-api/internal/repository"
)

// Recorder aggregates per-recipient outcomes and persists the final counts
// onto the notification request. Aggregation is a pure fold over the outcome
// list, so recording the same list twice yields identical counts.
type Recorder struct {
	repo repository.NotificationRepository
}

func NewRecorder(repo repository.NotificationRepository) *Recorder {
	return &Recorder{repo: repo}
}

// Summarize folds outcomes into a summary. Tokenless recipients count toward
// Total and Skipped; only attempted deliveries count as successful or failed.
func Summarize(results []model.RecipientResult) *model.DispatchSummary {
	summary := &model.DispatchSummary{
		Total:   len(results),
		Results: results,
	}

	for _, res := range results {
		switch {
		case res.Skipped:
			summary.Skipped++
		case res.Success:
			summary.Successful++
		default:
			summary.Failed++
		}
	}

	return summary
}

// Record persists the aggregated outcome: success/fail counts, sent_at, and
// the pending -> sent transition. A dispatch with zero successes is still a
// completed dispatch; failed status is reserved for resolution-level errors.
func (r *Recorder) Record(ctx context.Context, id uuid.UUID, results []model.RecipientResult, sentAt time.Time) (*model.DispatchSummary, error) {
	summary := Summarize(results)

	if err := r.repo.MarkDispatched(ctx, id, summary.Successful, summary.Failed, sentAt); err != nil {
		return nil, fmt.Errorf("failed to persist dispatch counts: %w", err)
	}

	return summary, nil
}
