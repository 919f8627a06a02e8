package trash

import (
	"fmt"

	"github.com/babarot/kura/internal/core/types"
	"github.com/babarot/kura/internal/provider"
)

// State is the lifecycle state tracked by the engine
type State int

const (
	StateActive State = iota
	StateTrashed
	StatePendingPurge
	StatePermanentlyDeleted
)

func (s State) String() string {
	switch s {
	case StateActive:
		return "active"
	case StateTrashed:
		return "trashed"
	case StatePendingPurge:
		return "pending_purge"
	case StatePermanentlyDeleted:
		return "permanently_deleted"
	default:
		return "unknown"
	}
}

// Status maps the state onto the entry status
func (s State) Status() types.Status {
	switch s {
	case StateTrashed:
		return types.StatusDeleted
	case StatePendingPurge:
		return types.StatusPendingDeletion
	case StatePermanentlyDeleted:
		return types.StatusPermanentlyDeleted
	default:
		return types.StatusActive
	}
}

// StateOf maps an entry status onto the engine state
func StateOf(st types.Status) State {
	switch st {
	case types.StatusDeleted:
		return StateTrashed
	case types.StatusPendingDeletion:
		return StatePendingPurge
	case types.StatusPermanentlyDeleted:
		return StatePermanentlyDeleted
	default:
		return StateActive
	}
}

// Event drives a transition
type Event int

const (
	EventDelete Event = iota
	EventRestore
	EventPurge
	EventPrivilegedPurge
	EventEvict
	EventExpire
)

func (e Event) String() string {
	switch e {
	case EventDelete:
		return "delete"
	case EventRestore:
		return "restore"
	case EventPurge:
		return "permanently_delete"
	case EventPrivilegedPurge:
		return "permanently_delete(privileged)"
	case EventEvict:
		return "quota_eviction"
	case EventExpire:
		return "deadline_elapsed"
	default:
		return "unknown"
	}
}

type condition func(provider.TrashPolicy) bool

func noTrash(p provider.TrashPolicy) bool     { return !p.Enabled }
func withTrash(p provider.TrashPolicy) bool   { return p.Enabled }
func singleStage(p provider.TrashPolicy) bool { return p.Enabled && !p.TwoStage }
func twoStage(p provider.TrashPolicy) bool    { return p.Enabled && p.TwoStage }
func quotaPurge(p provider.TrashPolicy) bool  { return p.Enabled && p.QuotaBasedPurge }

type transition struct {
	from  State
	event Event
	when  condition
	to    State
}

// transitions is the complete lifecycle. Anything not listed is invalid.
var transitions = []transition{
	{StateActive, EventDelete, noTrash, StatePermanentlyDeleted},
	{StateActive, EventDelete, withTrash, StateTrashed},
	{StateTrashed, EventRestore, withTrash, StateActive},
	{StateTrashed, EventPurge, singleStage, StatePermanentlyDeleted},
	{StateTrashed, EventPrivilegedPurge, singleStage, StatePermanentlyDeleted},
	{StateTrashed, EventPurge, twoStage, StatePendingPurge},
	{StateTrashed, EventPrivilegedPurge, twoStage, StatePendingPurge},
	{StatePendingPurge, EventPrivilegedPurge, twoStage, StatePermanentlyDeleted},
	{StateTrashed, EventEvict, quotaPurge, StatePermanentlyDeleted},
	{StateTrashed, EventExpire, withTrash, StatePermanentlyDeleted},
	{StatePendingPurge, EventExpire, withTrash, StatePermanentlyDeleted},
}

// Next returns the state reached from `from` on ev under policy p
func Next(from State, ev Event, p provider.TrashPolicy) (State, error) {
	for _, t := range transitions {
		if t.from == from && t.event == ev && t.when(p) {
			return t.to, nil
		}
	}

	if from == StatePendingPurge && ev == EventPurge && twoStage(p) {
		return from, provider.Errorf(provider.KindPermissionDenied, ev.String(), types.Address{},
			"pending purge requires a privileged call")
	}
	return from, provider.Errorf(provider.KindInvalidState, ev.String(), types.Address{},
		fmt.Sprintf("%s is not valid from %s", ev, from))
}
