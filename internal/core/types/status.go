package types

import (
	"fmt"
	"strings"
)

// Status is the lifecycle status of an entry
type Status int

const (
	// StatusActive is a live, visible entry
	StatusActive Status = iota

	// StatusDeleted is an entry sitting in the trash
	StatusDeleted

	// StatusPendingDeletion marks a hard delete that the backend accepted
	// but has not executed yet
	StatusPendingDeletion

	// StatusPermanentlyDeleted is terminal
	StatusPermanentlyDeleted
)

func (s Status) String() string {
	switch s {
	case StatusActive:
		return "active"
	case StatusDeleted:
		return "deleted"
	case StatusPendingDeletion:
		return "pending_deletion"
	case StatusPermanentlyDeleted:
		return "permanently_deleted"
	default:
		return "unknown"
	}
}

// IsTerminal reports whether no transition can leave s
func (s Status) IsTerminal() bool {
	return s == StatusPermanentlyDeleted
}

// ParseStatus is the inverse of Status.String
func ParseStatus(s string) (Status, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "active":
		return StatusActive, nil
	case "deleted":
		return StatusDeleted, nil
	case "pending_deletion":
		return StatusPendingDeletion, nil
	case "permanently_deleted":
		return StatusPermanentlyDeleted, nil
	}
	return StatusActive, fmt.Errorf("unknown status %q", s)
}

var statusEdges = map[Status][]Status{
	StatusActive:          {StatusDeleted},
	StatusDeleted:         {StatusActive, StatusPermanentlyDeleted, StatusPendingDeletion},
	StatusPendingDeletion: {StatusPermanentlyDeleted},
}

// CanTransition reports whether an entry may move from one status to
// another. hasTrash is false for backends that delete in a single step,
// which is the only case where Active may go straight to PermanentlyDeleted.
func CanTransition(from, to Status, hasTrash bool) bool {
	if from == StatusActive && to == StatusPermanentlyDeleted {
		return !hasTrash
	}
	for _, s := range statusEdges[from] {
		if s == to {
			return hasTrash || from != StatusActive
		}
	}
	return false
}
