package models

import (
	dErrors "roster/pkg/domain-errors"
)

// Operation is a lifecycle operation that changes membership status.
type Operation string

const (
	OpBlacklist Operation = "blacklist"
	OpRemove    Operation = "remove"
	OpRestore   Operation = "restore"
)

// Operations lists every lifecycle operation.
var Operations = []Operation{OpBlacklist, OpRemove, OpRestore}

// IdentityEffect is what an operation does to the linked identity account.
type IdentityEffect int

const (
	IdentityUntouched IdentityEffect = iota
	IdentityDisable
	IdentityEnable
)

// Transition describes one row of the lifecycle table.
//
// Sources include the target status so a repeated call after a confirmed success
// re-applies the terminal state instead of failing.
type Transition struct {
	Sources  []Status
	Target   Status
	Identity IdentityEffect
}

// transitions is the complete lifecycle table. Restore accepts active as a source so a
// restore that failed after writing the status can be retried to re-enable the identity.
// Blacklist leaves the identity account alone; blacklisted members still authenticate.
var transitions = map[Operation]Transition{
	OpBlacklist: {
		Sources:  []Status{StatusActive, StatusBlacklisted},
		Target:   StatusBlacklisted,
		Identity: IdentityUntouched,
	},
	OpRemove: {
		Sources:  []Status{StatusActive, StatusBlacklisted, StatusRemoved},
		Target:   StatusRemoved,
		Identity: IdentityDisable,
	},
	OpRestore: {
		Sources:  []Status{StatusRemoved, StatusActive},
		Target:   StatusActive,
		Identity: IdentityEnable,
	},
}

// TransitionFor returns the table row for op.
func TransitionFor(op Operation) (Transition, bool) {
	t, ok := transitions[op]
	return t, ok
}

// Allows reports whether the transition may start from status.
func (t Transition) Allows(status Status) bool {
	for _, s := range t.Sources {
		if s == status {
			return true
		}
	}
	return false
}

// CheckTransition validates that op may run on a membership in status from.
func CheckTransition(op Operation, from Status) (Transition, error) {
	t, ok := transitions[op]
	if !ok {
		return Transition{}, dErrors.New(dErrors.CodeInvariantViolation, "unknown lifecycle operation "+string(op))
	}
	if !t.Allows(from) {
		return Transition{}, dErrors.New(dErrors.CodeInvariantViolation,
			"cannot "+string(op)+" a membership in status "+string(from))
	}
	return t, nil
}
