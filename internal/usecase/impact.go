package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/campusiq/campusiq/internal/domain"
	"github.com/campusiq/campusiq/internal/ports"
)

// ImpactEstimator produces a bounded, read-only preview of the records a
// plan would affect, plus a rollback feasibility note. It never mutates
// state; its queries run under their own timeout because a preview that
// hangs must not stall the submission pipeline.
type ImpactEstimator struct {
	store        ports.DomainStore
	previewLimit int
	queryTimeout time.Duration
}

// NewImpactEstimator creates an impact estimator bounded to previewLimit
// rows per preview.
func NewImpactEstimator(store ports.DomainStore, previewLimit int, queryTimeout time.Duration) *ImpactEstimator {
	if previewLimit <= 0 {
		previewLimit = 50
	}
	return &ImpactEstimator{store: store, previewLimit: previewLimit, queryTimeout: queryTimeout}
}

// Estimate returns the full estimated impact count (which may exceed the
// preview size) and the bounded preview. For CREATE the impact is the one
// record being created and the preview carries only the proposed row.
func (e *ImpactEstimator) Estimate(ctx context.Context, intent domain.Intent, entity domain.EntityInfo) (int, domain.Preview, error) {
	if e.queryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.queryTimeout)
		defer cancel()
	}

	preview := domain.Preview{
		Rows:     []domain.Record{},
		Rollback: rollbackNote(intent.Type, entity),
	}

	if intent.Type == domain.IntentCreate {
		preview.TotalCount = 1
		preview.Proposed = []domain.Record{domain.Record(nil).WithValues(intent.Values)}
		return 1, preview, nil
	}

	count, err := e.store.Count(ctx, entity.Name, intent.Filters)
	if err != nil {
		return 0, preview, fmt.Errorf("failed to estimate impact: %w", err)
	}
	preview.TotalCount = count

	rows, err := e.store.Query(ctx, entity.Name, intent.Filters, e.previewLimit)
	if err != nil {
		return 0, preview, fmt.Errorf("failed to build preview: %w", err)
	}
	preview.Rows = rows

	if intent.Type == domain.IntentUpdate && len(intent.Values) > 0 {
		proposed := make([]domain.Record, 0, len(rows))
		for _, row := range rows {
			proposed = append(proposed, row.WithValues(intent.Values))
		}
		preview.Proposed = proposed
	}

	return count, preview, nil
}

// rollbackNote states up front whether the operation will be reversible.
// Reads have nothing to roll back; deleting records with dependent rows
// cascades beyond what a before_state snapshot can restore.
func rollbackNote(intent domain.IntentType, entity domain.EntityInfo) domain.RollbackNote {
	if !intent.IsMutating() {
		return domain.RollbackNote{
			SupportsRollback: false,
			Reason:           "read-only operation has no state to restore",
		}
	}
	if intent == domain.IntentDelete && entity.HasDependents {
		return domain.RollbackNote{
			SupportsRollback: false,
			Reason:           fmt.Sprintf("deleting %s records cascades to dependent rows; snapshots cannot restore them", entity.Name),
		}
	}
	return domain.RollbackNote{SupportsRollback: true}
}
