// Package service implements the journal-engine domain services: position,
// trade, journal-entry, and price orchestration over a store.Store, plus the
// planner that creates a position and its plan entry as an atomic pair.
//
// Every operation follows the same sequence: validate input, call the store,
// normalize (migrate) whatever is read back, derive computed values, return a
// typed result. Validation and constraint failures surface before any write;
// store failures propagate as-is.
package service

import "github.com/tradelog/journal-engine/internal/store"

// wrapped carries a contractual message over an errors.Is-visible cause.
// Callers and tests match the message text verbatim, so the cause must not
// leak into Error().
type wrapped struct {
	msg   string
	cause error
}

func (e *wrapped) Error() string { return e.msg }
func (e *wrapped) Unwrap() error { return e.cause }

func errPositionNotFound(positionID string) error {
	return &wrapped{msg: "Position not found: " + positionID, cause: store.ErrNotFound}
}

func errPositionExists(positionID string) error {
	return &wrapped{msg: "position already exists: " + positionID, cause: store.ErrDuplicate}
}
