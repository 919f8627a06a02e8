package provider

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/babarot/kura/internal/core/types"
)

// Retention answers how long a trashed entry is kept
type Retention interface {
	// Duration returns the window and whether the backend declares one
	Duration(ctx context.Context) (time.Duration, bool, error)
}

// NoRetention is for backends that keep trash until purged
type NoRetention struct{}

func (NoRetention) Duration(context.Context) (time.Duration, bool, error) {
	return 0, false, nil
}

// FixedRetention is a single window for every account
type FixedRetention time.Duration

func (r FixedRetention) Duration(context.Context) (time.Duration, bool, error) {
	return time.Duration(r), true, nil
}

// TierRetention picks a window by account tier. Tier is asked every
// time; the backend owns the lookup.
type TierRetention struct {
	Tier      func(ctx context.Context) (string, error)
	Durations map[string]time.Duration
}

func (r TierRetention) Duration(ctx context.Context) (time.Duration, bool, error) {
	if r.Tier == nil {
		return 0, false, fmt.Errorf("tier retention: no tier lookup")
	}
	tier, err := r.Tier(ctx)
	if err != nil {
		return 0, false, fmt.Errorf("tier retention: %w", err)
	}
	d, ok := r.Durations[tier]
	if !ok {
		tiers := make([]string, 0, len(r.Durations))
		for t := range r.Durations {
			tiers = append(tiers, t)
		}
		sort.Strings(tiers)
		return 0, false, fmt.Errorf("tier retention: unknown tier %q (known: %v)", tier, tiers)
	}
	return d, true, nil
}

// TrashPolicy is the per-provider description of trash behavior
type TrashPolicy struct {
	// Enabled is false for backends that delete in one step
	Enabled bool

	Retention Retention

	// TwoStage requires a second, privileged purge
	TwoStage bool

	// QuotaBasedPurge means the backend evicts trashed entries on its own
	// when trash space runs out
	QuotaBasedPurge bool

	// NativeEmptyTrash means the backend empties trash in one call
	NativeEmptyTrash bool
}

// NoTrash is the policy of single-step delete backends
func NoTrash() TrashPolicy {
	return TrashPolicy{Retention: NoRetention{}}
}

// Deadline computes the retention deadline for an entry deleted at t
func (p TrashPolicy) Deadline(ctx context.Context, t time.Time) (*time.Time, error) {
	if !p.Enabled || p.Retention == nil {
		return nil, nil
	}
	d, ok, err := p.Retention.Duration(ctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	deadline := t.Add(d)
	return &deadline, nil
}

// Stage is where a trashed entry sits
type Stage int

const (
	StageTrashed Stage = iota
	StagePendingPurge
)

func (s Stage) String() string {
	if s == StagePendingPurge {
		return "pending_purge"
	}
	return "trashed"
}

// Status maps the stage onto the entry status
func (s Stage) Status() types.Status {
	if s == StagePendingPurge {
		return types.StatusPendingDeletion
	}
	return types.StatusDeleted
}

// TrashRecord describes a single trashed entry
type TrashRecord struct {
	Entry            types.Entry
	DeletedAt        time.Time
	OriginalLocation types.Address
	DeletingActor    string

	// RetentionDeadline is nil when the backend declares no window
	RetentionDeadline *time.Time

	Stage Stage
}

// Validate checks record consistency
func (r TrashRecord) Validate() error {
	if r.RetentionDeadline != nil && r.RetentionDeadline.Before(r.DeletedAt) {
		return fmt.Errorf("retention deadline %s is before deletion time %s",
			r.RetentionDeadline.Format(time.RFC3339), r.DeletedAt.Format(time.RFC3339))
	}
	return nil
}

// Expired reports whether the deadline has passed at now
func (r TrashRecord) Expired(now time.Time) bool {
	return r.RetentionDeadline != nil && !now.Before(*r.RetentionDeadline)
}

// TrashPage is one page of list_deleted
type TrashPage struct {
	Records   []TrashRecord
	NextToken string
}
