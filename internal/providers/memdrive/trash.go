package memdrive

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/babarot/kura/internal/core/types"
	"github.com/babarot/kura/internal/provider"
)

func (d *Drive) trashed() []*node {
	var out []*node
	for _, n := range d.nodes {
		if n.trashed() {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].trash.deletedAt, out[j].trash.deletedAt
		if !a.Equal(b) {
			return a.Before(b)
		}
		return out[i].id < out[j].id
	})
	return out
}

// expire drops trashed entries whose retention has run out. The drive
// does this on its own schedule; callers only observe the result.
func (d *Drive) expire() {
	now := d.clock()
	for _, n := range d.trashed() {
		if n.trash.deadline != nil && !now.Before(*n.trash.deadline) {
			d.log.Debug("retention expired", "id", n.id, "path", n.trash.origPath)
			d.remove(n)
		}
	}
}

// enforceQuota evicts the oldest trashed entries while trash holds more
// than its share of capacity
func (d *Drive) enforceQuota() {
	if d.capacity <= 0 || d.trashPercent <= 0 {
		return
	}
	limit := d.capacity * int64(d.trashPercent) / 100
	for _, n := range d.trashed() {
		if _, inTrash := d.used(); inTrash <= limit {
			return
		}
		rec := d.record(n)
		d.remove(n)
		ev := provider.Eviction{
			Record:    rec,
			Reason:    fmt.Sprintf("trash exceeds %d%% of capacity", d.trashPercent),
			EvictedAt: d.clock(),
		}
		select {
		case d.events <- ev:
		default:
			d.log.Warn("eviction feed is full, dropping event", "id", n.id)
		}
	}
}

func (s *session) Evictions() <-chan provider.Eviction { return s.d.events }

func (s *session) ListDeleted(ctx context.Context, opts types.ListOptions) (provider.TrashPage, error) {
	const op = "list_deleted"
	unlock, err := s.begin(ctx, op, types.Address{})
	if err != nil {
		return provider.TrashPage{}, err
	}
	defer unlock()

	after, afterID, err := decodeTrashToken(opts.Token)
	if err != nil {
		return provider.TrashPage{}, provider.NewError(provider.KindInvalidAddress, op, types.Address{}, err)
	}
	size := opts.PageSize
	if size <= 0 {
		size = s.d.pageSize
	}

	var (
		page provider.TrashPage
		last *node
	)
	for _, n := range s.d.trashed() {
		if opts.Token != "" && !laterThan(n, after, afterID) {
			continue
		}
		if len(page.Records) == size {
			page.NextToken = encodeTrashToken(last)
			break
		}
		page.Records = append(page.Records, s.d.record(n))
		last = n
	}
	return page, nil
}

func laterThan(n *node, at time.Time, id string) bool {
	if !n.trash.deletedAt.Equal(at) {
		return n.trash.deletedAt.After(at)
	}
	return n.id > id
}

func encodeTrashToken(n *node) string {
	return encodeToken(strconv.FormatInt(n.trash.deletedAt.UnixNano(), 10) + ":" + n.id)
}

func decodeTrashToken(token string) (time.Time, string, error) {
	if token == "" {
		return time.Time{}, "", nil
	}
	raw, err := decodeToken(token)
	if err != nil {
		return time.Time{}, "", err
	}
	ts, id, ok := strings.Cut(raw, ":")
	if !ok {
		return time.Time{}, "", fmt.Errorf("malformed token")
	}
	nanos, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return time.Time{}, "", fmt.Errorf("malformed token: %w", err)
	}
	return time.Unix(0, nanos), id, nil
}

// trashedNode looks up an entry that is in the trash. Anything the
// drive no longer holds is reported as not found.
func (d *Drive) trashedNode(op string, addr types.Address) (*node, error) {
	if addr.Mode != types.AddressID {
		for _, n := range d.trashed() {
			if n.trash.origPath == addr.Value {
				return n, nil
			}
		}
		return nil, provider.NewError(provider.KindEntryNotFound, op, addr, nil)
	}
	n, err := d.resolve(op, addr)
	if err != nil {
		return nil, err
	}
	if !n.trashed() {
		return nil, provider.Errorf(provider.KindInvalidState, op, addr, "entry is not in the trash")
	}
	return n, nil
}

func (s *session) TrashStat(ctx context.Context, addr types.Address) (provider.TrashRecord, error) {
	const op = "trash_stat"
	unlock, err := s.begin(ctx, op, addr)
	if err != nil {
		return provider.TrashRecord{}, err
	}
	defer unlock()

	n, err := s.d.trashedNode(op, addr)
	if err != nil {
		return provider.TrashRecord{}, err
	}
	return s.d.record(n), nil
}

func (s *session) Restore(ctx context.Context, addr types.Address, opts provider.RestoreOptions) (types.Entry, error) {
	const op = "restore"
	unlock, err := s.begin(ctx, op, addr)
	if err != nil {
		return types.Entry{}, err
	}
	defer unlock()

	n, err := s.d.trashedNode(op, addr)
	if err != nil {
		return types.Entry{}, err
	}
	if n.trash.stage != provider.StageTrashed {
		return types.Entry{}, provider.Errorf(provider.KindInvalidState, op, addr, "entry is pending purge")
	}

	dest := n.trash.origPath
	if !opts.Destination.IsZero() {
		if opts.Destination.Mode != types.AddressPath {
			return types.Entry{}, provider.Errorf(provider.KindInvalidAddress, op, opts.Destination, "destination must be a path")
		}
		dest = opts.Destination.Value
	}
	parent, name, err := s.d.parentFor(op, dest, true)
	if err != nil {
		return types.Entry{}, err
	}
	if existing := s.d.child(parent, name); existing != nil {
		if !opts.Overwrite {
			return types.Entry{}, provider.NewError(provider.KindAlreadyExists, op, types.Path(dest), nil)
		}
		s.d.remove(existing)
	}

	n.parent = parent.id
	n.name = name
	n.trash = nil
	n.status = types.StatusActive
	return s.d.entry(n), nil
}

func (s *session) PermanentlyDelete(ctx context.Context, addr types.Address, privileged bool) (types.Status, error) {
	const op = "permanently_delete"
	unlock, err := s.begin(ctx, op, addr)
	if err != nil {
		return 0, err
	}
	defer unlock()

	n, err := s.d.trashedNode(op, addr)
	if err != nil {
		return 0, err
	}
	if s.policy.TwoStage {
		switch {
		case n.trash.stage == provider.StageTrashed:
			n.trash.stage = provider.StagePendingPurge
			n.status = types.StatusPendingDeletion
			return types.StatusPendingDeletion, nil
		case !privileged:
			return 0, provider.Errorf(provider.KindPermissionDenied, op, addr, "final purge needs an administrator")
		}
	}
	s.d.remove(n)
	return types.StatusPermanentlyDeleted, nil
}

func (s *session) EmptyTrash(ctx context.Context) error {
	const op = "empty_trash"
	unlock, err := s.begin(ctx, op, types.Address{})
	if err != nil {
		return err
	}
	defer unlock()

	if !s.policy.NativeEmptyTrash {
		return provider.Errorf(provider.KindUnsupportedCapability, op, types.Address{}, "no native empty trash")
	}
	for _, n := range s.d.trashed() {
		s.d.remove(n)
	}
	return nil
}
