// Package trash normalizes delete, restore and purge across backends
// whose trash semantics differ. Backends only declare a policy; the
// transitions live here.
package trash

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/babarot/kura/internal/capability"
	"github.com/babarot/kura/internal/core/types"
	"github.com/babarot/kura/internal/provider"
)

// ErrNoDefaultConflict is returned by NewEngine when the default
// conflict policy is left unset
var ErrNoDefaultConflict = errors.New("default conflict policy must be set explicitly")

// Config configures an Engine
type Config struct {
	// DefaultConflict is used when restore is called with ConflictDefault.
	// It is required.
	DefaultConflict ConflictPolicy

	// Concurrency bounds the empty trash fallback. <= 0 means 4.
	Concurrency int

	// Actor is recorded as the deleting actor
	Actor string

	Clock  func() time.Time
	Logger *slog.Logger
}

// Engine drives entries through the trash lifecycle. It keeps no state
// of its own: every decision re-reads the backend first.
type Engine struct {
	conflict    ConflictPolicy
	concurrency int
	actor       string
	clock       func() time.Time
	log         *slog.Logger
}

// NewEngine validates cfg and returns an engine
func NewEngine(cfg Config) (*Engine, error) {
	switch cfg.DefaultConflict {
	case ConflictRename, ConflictFail, ConflictOverwrite:
	case ConflictDefault:
		return nil, ErrNoDefaultConflict
	default:
		return nil, fmt.Errorf("unknown conflict policy %d", cfg.DefaultConflict)
	}

	e := &Engine{
		conflict:    cfg.DefaultConflict,
		concurrency: cfg.Concurrency,
		actor:       cfg.Actor,
		clock:       cfg.Clock,
		log:         cfg.Logger,
	}
	if e.concurrency <= 0 {
		e.concurrency = 4
	}
	if e.clock == nil {
		e.clock = time.Now
	}
	if e.log == nil {
		e.log = slog.Default()
	}
	return e, nil
}

// DefaultConflict returns the configured default policy
func (e *Engine) DefaultConflict() ConflictPolicy { return e.conflict }

// Outcome is the result of a lifecycle operation
type Outcome struct {
	From  State
	To    State
	Entry types.Entry

	// Record is set while the entry sits in the trash
	Record *provider.TrashRecord
}

func invalid(op string, addr types.Address, format string, args ...any) error {
	return provider.Errorf(provider.KindInvalidState, op, addr, fmt.Sprintf(format, args...))
}

// Status re-reads the current state of entry from the backend. A trashed
// entry that the backend no longer holds has expired or been evicted and
// is reported as permanently deleted.
func (e *Engine) Status(ctx context.Context, conn *provider.Conn, entry types.Entry) (State, *provider.TrashRecord, error) {
	switch StateOf(entry.Status) {
	case StatePermanentlyDeleted:
		return StatePermanentlyDeleted, nil, nil

	case StateActive:
		cur, err := conn.GetMetadata(ctx, entry.Address)
		if err != nil {
			return StateActive, nil, err
		}
		st := StateOf(cur.Status)
		if st == StateActive || !conn.Capabilities().Has(capability.TrashManagement) {
			return st, nil, nil
		}
		return e.trashState(ctx, conn, cur.Address)

	default:
		if !conn.Capabilities().Has(capability.TrashManagement) {
			return StateOf(entry.Status), nil, invalid("status", entry.Address,
				"%s has no trash", conn.ProviderID())
		}
		return e.trashState(ctx, conn, entry.Address)
	}
}

func (e *Engine) trashState(ctx context.Context, conn *provider.Conn, addr types.Address) (State, *provider.TrashRecord, error) {
	rec, err := conn.TrashStat(ctx, addr)
	if provider.IsEntryNotFound(err) {
		e.log.Debug("trashed entry is gone", "address", addr.String())
		return StatePermanentlyDeleted, nil, nil
	}
	if err != nil {
		return StateTrashed, nil, err
	}
	return StateOf(rec.Stage.Status()), &rec, nil
}

// Delete moves an active entry to the trash, or removes it when the
// backend has none
func (e *Engine) Delete(ctx context.Context, conn *provider.Conn, entry types.Entry) (Outcome, error) {
	const op = "delete"
	if entry.Status.IsTerminal() {
		return Outcome{}, invalid(op, entry.Address, "entry is permanently deleted")
	}
	if err := conn.Require(op, entry.Address, capability.Delete); err != nil {
		return Outcome{}, err
	}

	cur, err := conn.GetMetadata(ctx, entry.Address)
	if err != nil {
		return Outcome{}, err
	}
	from := StateOf(cur.Status)
	policy := conn.Policy()
	to, err := Next(from, EventDelete, policy)
	if err != nil {
		return Outcome{}, provider.Wrap(op, conn.ProviderID(), entry.Address, err)
	}

	now := e.clock()
	deadline, err := policy.Deadline(ctx, now)
	if err != nil {
		return Outcome{}, provider.Wrap(op, conn.ProviderID(), entry.Address, err)
	}

	res, err := conn.Delete(ctx, cur.Address)
	if err != nil {
		return Outcome{}, err
	}
	if got := StateOf(res.Status); got != to {
		e.log.Warn("backend reported unexpected state", "op", op, "want", to, "got", got)
	}
	if res.Address.IsZero() {
		res.Address = cur.Address
	}
	if res.Name == "" {
		res.Name = cur.Name
	}

	out := Outcome{From: from, To: to, Entry: res.WithStatus(to.Status())}
	if to == StateTrashed {
		rec := provider.TrashRecord{
			Entry:             out.Entry,
			DeletedAt:         now,
			OriginalLocation:  cur.Address,
			DeletingActor:     e.actor,
			RetentionDeadline: deadline,
			Stage:             provider.StageTrashed,
		}
		if conn.Capabilities().Has(capability.TrashManagement) {
			if stat, err := conn.TrashStat(ctx, res.Address); err == nil && !stat.OriginalLocation.IsZero() {
				rec.OriginalLocation = stat.OriginalLocation
			}
		}
		if err := rec.Validate(); err != nil {
			return out, invalid(op, res.Address, "%v", err)
		}
		out.Record = &rec
	}

	e.log.Info("deleted", "provider", conn.ProviderID(), "address", cur.Address.String(), "state", to)
	return out, nil
}

// Restore puts a trashed entry back. The entry's state is re-read first;
// only trashed entries can be restored.
func (e *Engine) Restore(ctx context.Context, conn *provider.Conn, entry types.Entry, policy ConflictPolicy) (types.Entry, error) {
	const op = "restore"
	if entry.Status.IsTerminal() {
		return types.Entry{}, invalid(op, entry.Address, "entry is permanently deleted")
	}
	if err := conn.Require(op, entry.Address, capability.FileRestoration); err != nil {
		return types.Entry{}, err
	}

	state, rec, err := e.Status(ctx, conn, entry)
	if err != nil {
		return types.Entry{}, err
	}
	to, err := Next(state, EventRestore, conn.Policy())
	if err != nil {
		return types.Entry{}, provider.Wrap(op, conn.ProviderID(), entry.Address, err)
	}

	if rec == nil {
		return types.Entry{}, invalid(op, entry.Address, "no trash record")
	}
	if policy == ConflictDefault {
		policy = e.conflict
	}

	dst := rec.OriginalLocation
	overwrite := false
	exists, err := conn.EntryExists(ctx, dst)
	if err != nil {
		return types.Entry{}, err
	}
	if exists {
		switch policy {
		case ConflictFail:
			return types.Entry{}, provider.Errorf(provider.KindConflict, op, dst, "original location is occupied")
		case ConflictOverwrite:
			overwrite = true
		case ConflictRename:
			if dst, err = freeName(ctx, conn, dst); err != nil {
				return types.Entry{}, provider.Wrap(op, conn.ProviderID(), entry.Address, err)
			}
		}
		e.log.Debug("restore target occupied", "policy", policy, "destination", dst.String())
	}

	restored, err := conn.Restore(ctx, rec.Entry.Address, provider.RestoreOptions{
		Destination: dst,
		Overwrite:   overwrite,
	})
	if err != nil {
		return types.Entry{}, err
	}

	e.log.Info("restored", "provider", conn.ProviderID(), "destination", dst.String())
	return restored.WithStatus(to.Status()), nil
}

// PurgeOptions controls PermanentlyDelete
type PurgeOptions struct {
	// Privileged is required for the second stage of two-stage backends
	Privileged bool
}

// PermanentlyDelete purges a trashed entry. On two-stage backends the
// first call only reaches PendingPurge.
func (e *Engine) PermanentlyDelete(ctx context.Context, conn *provider.Conn, entry types.Entry, opts PurgeOptions) (Outcome, error) {
	const op = "permanently_delete"
	if entry.Status.IsTerminal() {
		return Outcome{}, invalid(op, entry.Address, "entry is already permanently deleted")
	}
	if err := conn.Require(op, entry.Address, capability.PermanentDeletion); err != nil {
		return Outcome{}, err
	}

	state, rec, err := e.Status(ctx, conn, entry)
	if err != nil {
		return Outcome{}, err
	}

	ev := EventPurge
	if opts.Privileged {
		ev = EventPrivilegedPurge
	}
	to, err := Next(state, ev, conn.Policy())
	if err != nil {
		return Outcome{}, provider.Wrap(op, conn.ProviderID(), entry.Address, err)
	}

	addr := entry.Address
	if rec != nil {
		addr = rec.Entry.Address
	}
	got, err := conn.PermanentlyDelete(ctx, addr, opts.Privileged)
	if err != nil {
		return Outcome{}, err
	}

	final := to
	switch gs := StateOf(got); {
	case gs == to:
	case to == StatePermanentlyDeleted && gs == StatePendingPurge:
		// hard delete accepted but not executed yet
		final = gs
	default:
		e.log.Warn("backend reported unexpected state", "op", op, "want", to, "got", gs)
	}

	out := Outcome{From: state, To: final, Entry: entry.WithStatus(final.Status())}
	out.Entry.Address = addr
	if rec != nil && final == StatePendingPurge {
		r := *rec
		r.Stage = provider.StagePendingPurge
		r.Entry = out.Entry
		out.Record = &r
	}

	e.log.Info("purged", "provider", conn.ProviderID(), "address", addr.String(), "state", final)
	return out, nil
}

// Watch forwards the backend's quota evictions until ctx is done. Each
// eviction is an out of band Trashed -> PermanentlyDeleted transition.
func (e *Engine) Watch(ctx context.Context, conn *provider.Conn) (<-chan provider.Eviction, error) {
	src, err := conn.Evictions()
	if err != nil {
		return nil, err
	}

	out := make(chan provider.Eviction)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-src:
				if !ok {
					return
				}
				if _, err := Next(StateOf(ev.Record.Entry.Status), EventEvict, conn.Policy()); err != nil {
					e.log.Warn("eviction outside the lifecycle", "address", ev.Record.Entry.Address.String(), "error", err)
				}
				e.log.Info("evicted", "provider", conn.ProviderID(), "address", ev.Record.Entry.Address.String(), "reason", ev.Reason)
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
