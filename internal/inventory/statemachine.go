package inventory

import (
	"fmt"
	"time"

	"github.com/barthig/Biblioteka-sub002/pkg/db/models"
	"github.com/barthig/Biblioteka-sub002/pkg/enums"
	pkgerrors "github.com/barthig/Biblioteka-sub002/pkg/errors"
)

// copySuccessors is the allowed transition table for a physical copy.
// WITHDRAWN is terminal.
var copySuccessors = map[enums.CopyStatus][]enums.CopyStatus{
	enums.CopyStatusAvailable: {
		enums.CopyStatusBorrowed,
		enums.CopyStatusReserved,
		enums.CopyStatusMaintenance,
		enums.CopyStatusWithdrawn,
	},
	// BORROWED moves straight to RESERVED when a return hands the copy to
	// the next queued patron, skipping an AVAILABLE window.
	enums.CopyStatusBorrowed: {
		enums.CopyStatusAvailable,
		enums.CopyStatusReserved,
		enums.CopyStatusMaintenance,
	},
	enums.CopyStatusReserved: {
		enums.CopyStatusBorrowed,
		enums.CopyStatusAvailable,
	},
	enums.CopyStatusMaintenance: {
		enums.CopyStatusAvailable,
		enums.CopyStatusWithdrawn,
	},
	enums.CopyStatusWithdrawn: {},
}

// CanTransition reports whether target is in the successor set of from.
func CanTransition(from, to enums.CopyStatus) bool {
	for _, candidate := range copySuccessors[from] {
		if candidate == to {
			return true
		}
	}
	return false
}

// Transition moves a copy to the target status in memory, or fails with a
// state conflict naming both states. Persisting the change is the caller's
// job, inside the same transaction as the counter recalculation.
func Transition(copy *models.BookCopy, target enums.CopyStatus, now time.Time) error {
	if copy == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "copy required")
	}
	if !target.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid copy status %q", target))
	}
	if copy.Status == enums.CopyStatusWithdrawn {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "copy has been withdrawn from circulation")
	}
	if !CanTransition(copy.Status, target) {
		return pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("copy cannot move from %s to %s", copy.Status, target))
	}
	copy.Status = target
	copy.UpdatedAt = now
	return nil
}
