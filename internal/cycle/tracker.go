// Package cycle implements the wrapping sweep counter that guarantees every
// catalog entity is eventually revisited, independent of gap detection. The
// counter is a ratchet: it advances only once the entire catalog carries the
// current cycle's stamp, so cycles complete atomically across many bounded
// runs.
package cycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"curator/internal/catalog"
	"curator/internal/logging"
)

// Tracker coordinates per-entity-type sweep cycles over the catalog.
type Tracker struct {
	store          *catalog.Store
	rotationLength int
	logger         *slog.Logger
}

// NewTracker builds a tracker over the catalog store. rotationLength is the
// modulus the cycle counter wraps at.
func NewTracker(store *catalog.Store, rotationLength int, logger *slog.Logger) *Tracker {
	if rotationLength < 1 {
		rotationLength = 1
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Tracker{
		store:          store,
		rotationLength: rotationLength,
		logger:         logging.NewComponentLogger(logger, "cycle-tracker"),
	}
}

// RotationLength returns the configured cycle modulus.
func (t *Tracker) RotationLength() int {
	return t.rotationLength
}

// CurrentCycle returns the active cycle number for an entity type, creating
// the record at cycle 0 on first use.
func (t *Tracker) CurrentCycle(ctx context.Context, entityType catalog.EntityType) (int, error) {
	record, err := t.store.CycleRecordFor(ctx, entityType)
	if err != nil {
		return 0, fmt.Errorf("current cycle: %w", err)
	}
	return record.CurrentCycle, nil
}

// Record returns the full cycle record for an entity type.
func (t *Tracker) Record(ctx context.Context, entityType catalog.EntityType) (*catalog.CycleRecord, error) {
	return t.store.CycleRecordFor(ctx, entityType)
}

// SelectDue returns up to limit entity ids still owing a stamp for the current
// cycle, oldest-touched first with popularity breaking ties.
func (t *Tracker) SelectDue(ctx context.Context, entityType catalog.EntityType, limit int) ([]int64, error) {
	record, err := t.store.CycleRecordFor(ctx, entityType)
	if err != nil {
		return nil, fmt.Errorf("select due: %w", err)
	}
	switch entityType {
	case catalog.EntityTypeContent:
		return t.store.SelectContentDue(ctx, record.CurrentCycle, limit)
	case catalog.EntityTypePeople:
		return t.store.SelectPeopleDue(ctx, record.CurrentCycle, limit)
	default:
		return nil, fmt.Errorf("select due: unknown entity type %q", entityType)
	}
}

// Stamp marks an entity as enriched in the given cycle. An entity counts
// toward a cycle exactly once; restamping with the same cycle is harmless.
func (t *Tracker) Stamp(ctx context.Context, entityType catalog.EntityType, id int64, cycleNumber int) error {
	switch entityType {
	case catalog.EntityTypeContent:
		return t.store.StampContent(ctx, id, cycleNumber)
	case catalog.EntityTypePeople:
		return t.store.StampPerson(ctx, id, cycleNumber)
	default:
		return fmt.Errorf("stamp: unknown entity type %q", entityType)
	}
}

// CheckAndIncrement advances the cycle counter when the whole catalog carries
// the current cycle's stamp. It reports whether an advance happened. Losing
// the optimistic concurrency race to another runner is not an error; the
// check is simply re-evaluated on the next pass.
func (t *Tracker) CheckAndIncrement(ctx context.Context, entityType catalog.EntityType) (bool, error) {
	record, err := t.store.CycleRecordFor(ctx, entityType)
	if err != nil {
		return false, fmt.Errorf("check cycle: %w", err)
	}

	total, stamped, err := t.counts(ctx, entityType, record.CurrentCycle)
	if err != nil {
		return false, err
	}
	if total == 0 || stamped < total {
		return false, nil
	}

	if err := t.store.MarkCycleCompleted(ctx, entityType); err != nil {
		return false, err
	}

	next := (record.CurrentCycle + 1) % t.rotationLength
	if err := t.store.AdvanceCycle(ctx, entityType, record.Version, next); err != nil {
		if errors.Is(err, catalog.ErrStaleCycle) {
			t.logger.Debug("cycle advance lost race",
				logging.String("entity_type", string(entityType)),
				logging.Int("cycle", record.CurrentCycle))
			return false, nil
		}
		return false, err
	}

	t.logger.Info("cycle advanced",
		logging.String("entity_type", string(entityType)),
		logging.Int("from", record.CurrentCycle),
		logging.Int("to", next),
		logging.Int("total_items", total))
	return true, nil
}

// UpdateStats recomputes totals on the cycle record for observability and
// returns the refreshed record.
func (t *Tracker) UpdateStats(ctx context.Context, entityType catalog.EntityType) (*catalog.CycleRecord, error) {
	record, err := t.store.CycleRecordFor(ctx, entityType)
	if err != nil {
		return nil, fmt.Errorf("update stats: %w", err)
	}
	total, stamped, err := t.counts(ctx, entityType, record.CurrentCycle)
	if err != nil {
		return nil, err
	}
	if err := t.store.UpdateCycleStats(ctx, entityType, total, stamped); err != nil {
		return nil, err
	}
	return t.store.CycleRecordFor(ctx, entityType)
}

func (t *Tracker) counts(ctx context.Context, entityType catalog.EntityType, cycleNumber int) (total, stamped int, err error) {
	switch entityType {
	case catalog.EntityTypeContent:
		if total, err = t.store.CountContent(ctx); err != nil {
			return 0, 0, err
		}
		if stamped, err = t.store.CountContentStamped(ctx, cycleNumber); err != nil {
			return 0, 0, err
		}
	case catalog.EntityTypePeople:
		if total, err = t.store.CountPeople(ctx); err != nil {
			return 0, 0, err
		}
		if stamped, err = t.store.CountPeopleStamped(ctx, cycleNumber); err != nil {
			return 0, 0, err
		}
	default:
		return 0, 0, fmt.Errorf("counts: unknown entity type %q", entityType)
	}
	return total, stamped, nil
}
