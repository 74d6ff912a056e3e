package calc

import "github.com/tradelog/journal-engine/internal/model"

// Status derives the lifecycle state from a trade list: planned with no
// trades, closed when the net open quantity is back to exactly zero, open
// otherwise. A closed position with a fresh fill derives straight back to
// open; there is no terminal state.
//
// Callers must re-derive after every trade mutation. The status field stored
// on a position is a cache of this function, never an independent source of
// truth.
func Status(trades []model.Trade) model.PositionStatus {
	if len(trades) == 0 {
		return model.StatusPlanned
	}
	if OpenQuantity(trades).IsZero() {
		return model.StatusClosed
	}
	return model.StatusOpen
}
