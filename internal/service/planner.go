package service

import (
	"context"
	"log/slog"

	"github.com/tradelog/journal-engine/internal/id"
	"github.com/tradelog/journal-engine/internal/metrics"
	"github.com/tradelog/journal-engine/internal/model"
)

// Planner coordinates the compound create of a position and its plan entry.
// Both ids are minted up front so each record can reference the other: the
// entry is written first, carrying the position id it belongs to, then the
// position is written carrying the entry id. If the position write fails the
// orphaned entry is deleted best-effort; a rollback failure is logged and the
// original error returned, so a failed plan can leave a dangling entry. That
// is the one documented partial-write gap in the system.
type Planner struct {
	positions *PositionService
	journal   *JournalService
}

// NewPlanner creates a planner over the position and journal services.
func NewPlanner(positions *PositionService, journal *JournalService) *Planner {
	return &Planner{positions: positions, journal: journal}
}

// CreatePlannedPosition creates a position together with its position_plan
// journal entry, cross-referenced both ways. The entry's fields carry the
// plan prompts and responses; validation of either record fails the whole
// operation before the other is visible (modulo the rollback gap above).
func (pl *Planner) CreatePlannedPosition(ctx context.Context, p model.Position, fields []model.EntryField) (*model.Position, *model.JournalEntry, error) {
	if p.ID == "" {
		p.ID = id.NewPosition()
	}

	entry, err := pl.journal.Create(ctx, model.JournalEntry{
		ID:         id.NewULID(),
		PositionID: p.ID,
		EntryType:  model.EntryPositionPlan,
		Fields:     fields,
	})
	if err != nil {
		return nil, nil, err
	}

	p.JournalEntryIDs = append(p.JournalEntryIDs, entry.ID)
	created, err := pl.positions.Create(ctx, p)
	if err != nil {
		metrics.PlanRollbacks.Inc()
		if derr := pl.journal.Delete(ctx, entry.ID); derr != nil {
			slog.Warn("plan rollback failed, journal entry orphaned",
				"entry_id", entry.ID,
				"position_id", p.ID,
				"err", derr,
			)
		}
		return nil, nil, err
	}

	slog.Info("position plan created", "position_id", created.ID, "entry_id", entry.ID)
	return created, entry, nil
}
