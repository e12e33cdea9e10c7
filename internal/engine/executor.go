package engine

import (
	"context"
	"fmt"

	"github.com/campusiq/campusiq/internal/domain"
	"github.com/campusiq/campusiq/internal/ports"
)

// Executor applies approved plans against the domain data store, capturing
// index-aligned before/after snapshots around the mutation. Both the
// auto-execute path and the gated path enter here; routing by risk tier is
// the orchestrator's job. The store's own transaction boundary is relied
// upon: a mutation either fully applies or fully fails.
type Executor struct {
	store    ports.DomainStore
	execRepo ports.ExecutionRepository
}

// NewExecutor creates a new execution engine.
func NewExecutor(store ports.DomainStore, execRepo ports.ExecutionRepository) *Executor {
	return &Executor{store: store, execRepo: execRepo}
}

// Execute applies the plan's operation and persists an Execution record.
// On mutation failure a failed Execution carrying the attempted
// before_state is still persisted for forensics, and the error is
// returned alongside it.
func (e *Executor) Execute(ctx context.Context, plan *domain.Plan, executedBy string) (*domain.Execution, error) {
	execution := domain.NewExecution(plan, executedBy)

	if !plan.Intent.Type.IsMutating() {
		// READ/ANALYZE/ESCALATE touch nothing; snapshots stay empty.
		count, err := e.store.Count(ctx, plan.Intent.Entity, plan.Intent.Filters)
		if err != nil {
			return e.fail(ctx, execution, fmt.Errorf("failed to count records: %w", err))
		}
		execution.Status = domain.ExecutionStatusExecuted
		execution.AffectedCount = count
		execution.BeforeState = []domain.Record{}
		execution.AfterState = []domain.Record{}
		if err := e.execRepo.Create(ctx, execution); err != nil {
			return nil, fmt.Errorf("failed to persist execution: %w", err)
		}
		return execution, nil
	}

	targets, err := e.targetRows(ctx, plan)
	if err != nil {
		return e.fail(ctx, execution, err)
	}

	before := make([]domain.Record, 0, len(targets))
	for _, row := range targets {
		before = append(before, row.Clone())
	}
	execution.BeforeState = before

	after, err := e.applyMutation(ctx, plan, targets)
	if err != nil {
		return e.fail(ctx, execution, err)
	}

	// CREATE has no targets, so pad before_state with empty records to
	// keep the snapshots index-aligned with the created rows.
	for len(execution.BeforeState) < len(after) {
		execution.BeforeState = append(execution.BeforeState, domain.Record{})
	}
	execution.AfterState = after
	execution.Status = domain.ExecutionStatusExecuted
	execution.AffectedCount = len(after)
	if err := e.execRepo.Create(ctx, execution); err != nil {
		return nil, fmt.Errorf("failed to persist execution: %w", err)
	}
	return execution, nil
}

// targetRows resolves the records the mutation will touch, honoring an
// approval-scope narrowing to specific keys when the reviewer granted one.
func (e *Executor) targetRows(ctx context.Context, plan *domain.Plan) ([]domain.Record, error) {
	if plan.Intent.Type == domain.IntentCreate {
		return nil, nil
	}
	rows, err := e.store.Query(ctx, plan.Intent.Entity, plan.Intent.Filters, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to query target records: %w", err)
	}
	approved := approvedKeySet(plan)
	if approved == nil {
		return rows, nil
	}
	scoped := rows[:0]
	for _, row := range rows {
		if key, ok := row.Key(); ok && approved[fmt.Sprintf("%v", key)] {
			scoped = append(scoped, row)
		}
	}
	return scoped, nil
}

func approvedKeySet(plan *domain.Plan) map[string]bool {
	if plan.Decision == nil || len(plan.Decision.ApprovedIDs) == 0 {
		return nil
	}
	set := make(map[string]bool, len(plan.Decision.ApprovedIDs))
	for _, id := range plan.Decision.ApprovedIDs {
		set[id] = true
	}
	return set
}

// applyMutation performs the single atomic change and returns the
// after_state aligned index-for-index with the before_state: CREATE pads
// before with empty records, DELETE pads after with empty records, and
// UPDATE re-aligns the store's result rows by primary key.
func (e *Executor) applyMutation(ctx context.Context, plan *domain.Plan, targets []domain.Record) ([]domain.Record, error) {
	switch plan.Intent.Type {
	case domain.IntentCreate:
		created, err := e.store.Mutate(ctx, ports.MutationRequest{
			Entity:    plan.Intent.Entity,
			Operation: domain.IntentCreate,
			Values:    plan.Intent.Values,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create record: %w", err)
		}
		return created, nil

	case domain.IntentUpdate:
		keys := recordKeys(targets)
		updated, err := e.store.Mutate(ctx, ports.MutationRequest{
			Entity:    plan.Intent.Entity,
			Operation: domain.IntentUpdate,
			Filters:   plan.Intent.Filters,
			Values:    plan.Intent.Values,
			Keys:      keys,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to update records: %w", err)
		}
		return alignByKey(targets, updated), nil

	case domain.IntentDelete:
		keys := recordKeys(targets)
		if _, err := e.store.Mutate(ctx, ports.MutationRequest{
			Entity:    plan.Intent.Entity,
			Operation: domain.IntentDelete,
			Filters:   plan.Intent.Filters,
			Keys:      keys,
		}); err != nil {
			return nil, fmt.Errorf("failed to delete records: %w", err)
		}
		after := make([]domain.Record, len(targets))
		for i := range after {
			after[i] = domain.Record{}
		}
		return after, nil
	}
	return nil, fmt.Errorf("intent %s is not executable", plan.Intent.Type)
}

// Rollback re-applies the inverse of an execution from its captured
// before_state: restore for UPDATE/DELETE, delete-by-key for CREATE.
// Idempotent: a second rollback of an already-rolled-back execution is a
// no-op success.
func (e *Executor) Rollback(ctx context.Context, execution *domain.Execution) error {
	if execution.Status == domain.ExecutionStatusRolledBack {
		return nil
	}
	if !execution.IntentType.IsMutating() || !execution.Rollback.SupportsRollback {
		return domain.ErrRollbackUnsupported
	}
	if execution.Status != domain.ExecutionStatusExecuted {
		// A failed execution applied nothing; there is nothing to invert.
		return domain.ErrRollbackUnsupported
	}

	for i := range execution.BeforeState {
		before := execution.BeforeState[i]
		var after domain.Record
		if i < len(execution.AfterState) {
			after = execution.AfterState[i]
		}
		if err := e.invert(ctx, execution.Entity, before, after); err != nil {
			return fmt.Errorf("failed to roll back record %d: %w", i, err)
		}
	}

	if err := e.execRepo.MarkRolledBack(ctx, execution.ExecutionID); err != nil {
		return fmt.Errorf("failed to mark execution rolled back: %w", err)
	}
	execution.Status = domain.ExecutionStatusRolledBack
	return nil
}

// invert applies the inverse mutation for one index-aligned snapshot pair.
func (e *Executor) invert(ctx context.Context, entity string, before, after domain.Record) error {
	switch {
	case len(before) == 0 && len(after) > 0:
		// CREATE: delete the created row by key.
		key, ok := after.Key()
		if !ok {
			return fmt.Errorf("created record has no key to delete by")
		}
		_, err := e.store.Mutate(ctx, ports.MutationRequest{
			Entity:    entity,
			Operation: domain.IntentDelete,
			Keys:      []interface{}{key},
		})
		return err

	case len(before) > 0 && len(after) == 0:
		// DELETE: re-insert the full before snapshot, key included.
		_, err := e.store.Mutate(ctx, ports.MutationRequest{
			Entity:    entity,
			Operation: domain.IntentCreate,
			Values:    before,
		})
		return err

	case len(before) > 0:
		// UPDATE: restore the before values by key.
		key, ok := before.Key()
		if !ok {
			return fmt.Errorf("updated record has no key to restore by")
		}
		_, err := e.store.Mutate(ctx, ports.MutationRequest{
			Entity:    entity,
			Operation: domain.IntentUpdate,
			Values:    before,
			Keys:      []interface{}{key},
		})
		return err
	}
	return nil
}

// fail persists a failed execution with whatever before_state was
// captured, padding after_state so the snapshots stay index-aligned.
func (e *Executor) fail(ctx context.Context, execution *domain.Execution, cause error) (*domain.Execution, error) {
	execution.Status = domain.ExecutionStatusFailed
	execution.Error = cause.Error()
	if execution.BeforeState == nil {
		execution.BeforeState = []domain.Record{}
	}
	execution.AfterState = make([]domain.Record, len(execution.BeforeState))
	for i := range execution.AfterState {
		execution.AfterState[i] = domain.Record{}
	}
	if err := e.execRepo.Create(ctx, execution); err != nil {
		return nil, fmt.Errorf("failed to persist failed execution: %w (cause: %v)", err, cause)
	}
	return execution, fmt.Errorf("%w: %v", domain.ErrExecutionFailed, cause)
}

func recordKeys(rows []domain.Record) []interface{} {
	keys := make([]interface{}, 0, len(rows))
	for _, row := range rows {
		if key, ok := row.Key(); ok {
			keys = append(keys, key)
		}
	}
	return keys
}

// alignByKey orders the store's result rows to match the before snapshot
// order so the two sequences stay index-aligned.
func alignByKey(before, results []domain.Record) []domain.Record {
	byKey := make(map[string]domain.Record, len(results))
	for _, row := range results {
		if key, ok := row.Key(); ok {
			byKey[fmt.Sprintf("%v", key)] = row
		}
	}
	aligned := make([]domain.Record, len(before))
	for i, row := range before {
		if key, ok := row.Key(); ok {
			if match, found := byKey[fmt.Sprintf("%v", key)]; found {
				aligned[i] = match
				continue
			}
		}
		aligned[i] = domain.Record{}
	}
	return aligned
}
