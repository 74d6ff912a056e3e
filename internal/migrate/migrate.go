// Package migrate normalizes legacy stored records at read time. Records are
// stamped with a schema version on write; a record read back with an older
// version (or none, which reads as version 0) is lifted step by step to the
// current shape before any other code sees it.
//
// Every step is a pure transform. Nothing here persists: a migrated record
// becomes durable only if the caller later performs an explicit update.
package migrate

import "github.com/tradelog/journal-engine/internal/model"

// positionSteps maps a from-version to the transform lifting a position one
// version up. Steps chain until model.CurrentPositionVersion is reached.
var positionSteps = map[int]func(model.Position) model.Position{
	0: positionV0toV1,
}

// Position lifts a stored position to the current schema version. Applying
// it to an already-current record is a no-op, and a record carrying a newer
// version than this build knows about passes through untouched.
func Position(p model.Position) model.Position {
	for p.SchemaVersion < model.CurrentPositionVersion {
		step, ok := positionSteps[p.SchemaVersion]
		if !ok {
			break
		}
		p = step(p)
	}
	return p
}

// Positions applies Position across a slice in place and returns it.
func Positions(ps []model.Position) []model.Position {
	for i := range ps {
		ps[i] = Position(ps[i])
	}
	return ps
}

// positionV0toV1 backfills the strategy classification fields. Version 0
// records predate the option-strategy work and are all plain long stock.
// Values already present are kept; only the version stamp always moves.
func positionV0toV1(p model.Position) model.Position {
	if p.StrategyType == "" {
		p.StrategyType = model.StrategyLongStock
	}
	if p.TradeKind == "" {
		p.TradeKind = model.TradeKindStock
	}
	p.SchemaVersion = 1
	return p
}
