package xdg

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/babarot/kura/internal/capability"
	"github.com/babarot/kura/internal/core/atomic"
	"github.com/babarot/kura/internal/core/types"
	"github.com/babarot/kura/internal/provider"
	"github.com/babarot/kura/internal/providers/local"
)

// session adds the trash operations to a local session
type session struct {
	*local.Session
	p    *Provider
	caps *capability.Set
}

var _ provider.TrashSession = (*session)(nil)

func (s *session) Capabilities() *capability.Set { return s.caps }
func (s *session) Policy() provider.TrashPolicy  { return s.p.policy() }

// locationFor picks the trash on the same device as abs, falling back
// to the home trash
func (s *session) locationFor(abs string) *location {
	for _, loc := range s.p.locations[1:] {
		if same, err := sameDevice(abs, loc.root); err == nil && same {
			return loc
		}
	}
	return s.p.home
}

// reserve claims a free name in loc by creating its info file
func (s *session) reserve(loc *location, abs string, now time.Time) (string, error) {
	base := filepath.Base(abs)
	info := &TrashInfo{Path: abs, DeletionDate: now, MountRoot: loc.mount}
	for i := 0; i < 1000; i++ {
		name := base
		if i > 0 {
			name = fmt.Sprintf("%s_%d", base, i)
		}
		if _, err := os.Lstat(filepath.Join(loc.files, name)); err == nil {
			continue
		}
		err := info.Save(loc.infoPath(name))
		if errors.Is(err, os.ErrExist) {
			continue
		}
		if err != nil {
			return "", err
		}
		return name, nil
	}
	return "", fmt.Errorf("no free trash name for %s", base)
}

func (s *session) Delete(ctx context.Context, addr types.Address) (types.Entry, error) {
	const op = "delete"
	abs, err := s.Abs(op, addr)
	if err != nil {
		return types.Entry{}, err
	}
	if abs == s.p.Root() {
		return types.Entry{}, provider.Errorf(provider.KindPermissionDenied, op, addr, "cannot delete the root")
	}
	if _, err := os.Lstat(abs); err != nil {
		return types.Entry{}, err
	}
	if err := ctx.Err(); err != nil {
		return types.Entry{}, err
	}

	loc := s.locationFor(abs)
	name, err := s.reserve(loc, abs, s.p.clock())
	if err != nil {
		return types.Entry{}, err
	}
	dst := filepath.Join(loc.files, name)
	if err := atomic.Move(abs, dst, atomic.MoveOptions{}); err != nil {
		os.Remove(loc.infoPath(name))
		return types.Entry{}, fmt.Errorf("move to trash: %w", err)
	}
	s.p.log.Debug("moved to trash", "path", abs, "trash", dst)

	rec, err := s.record(loc, name)
	if err != nil {
		return types.Entry{}, err
	}
	return rec.Entry, nil
}

// record describes one trashed entry
func (s *session) record(loc *location, name string) (provider.TrashRecord, error) {
	info, err := loadTrashInfo(loc.infoPath(name), loc.mount)
	if err != nil {
		return provider.TrashRecord{}, err
	}
	path := filepath.Join(loc.files, name)
	fi, err := os.Lstat(path)
	if err != nil {
		return provider.TrashRecord{}, err
	}

	orig := info.AbsolutePath()
	origAddr, ok := s.Rel(orig)
	if !ok {
		origAddr = types.Path(filepath.ToSlash(orig))
	}

	e := types.Entry{
		Address:    types.ID(path),
		Name:       filepath.Base(orig),
		IsDir:      fi.IsDir(),
		Status:     types.StatusDeleted,
		ModifiedAt: fi.ModTime(),
		Metadata: types.Metadata{
			"original_path": types.String(orig),
			"trash_dir":     types.String(loc.root),
		},
	}
	if !fi.IsDir() {
		e.Size = types.Int64(fi.Size())
	}

	rec := provider.TrashRecord{
		Entry:            e,
		DeletedAt:        info.DeletionDate,
		OriginalLocation: origAddr,
		Stage:            provider.StageTrashed,
	}
	if s.p.retention > 0 {
		deadline := info.DeletionDate.Add(s.p.retention)
		rec.RetentionDeadline = &deadline
	}
	return rec, nil
}

// records lists the trashed entries that came from inside the root
func (s *session) records() ([]provider.TrashRecord, error) {
	var out []provider.TrashRecord
	for _, loc := range s.p.locations {
		dirents, err := os.ReadDir(loc.files)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return nil, err
		}
		for _, d := range dirents {
			rec, err := s.record(loc, d.Name())
			if err != nil {
				s.p.log.Debug("skipping trash entry", "name", d.Name(), "error", err)
				continue
			}
			if _, inside := s.Rel(rec.Entry.Metadata["original_path"].Str()); !inside {
				continue
			}
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].DeletedAt.Equal(out[j].DeletedAt) {
			return out[i].DeletedAt.Before(out[j].DeletedAt)
		}
		return out[i].Entry.Address.Value < out[j].Entry.Address.Value
	})
	return out, nil
}

func (s *session) GetMetadata(ctx context.Context, addr types.Address) (types.Entry, error) {
	if addr.Mode != types.AddressID {
		return s.Session.GetMetadata(ctx, addr)
	}
	rec, err := s.TrashStat(ctx, addr)
	if err != nil {
		return types.Entry{}, err
	}
	return rec.Entry, nil
}

func (s *session) lookup(op string, addr types.Address) (*location, string, error) {
	if addr.Mode != types.AddressID {
		return nil, "", provider.Errorf(provider.KindInvalidAddress, op, addr, "trashed entries are addressed by id")
	}
	loc, name, err := s.p.trashed(addr.Value)
	if err != nil {
		return nil, "", provider.NewError(provider.KindInvalidAddress, op, addr, err)
	}
	// entries trashed from outside the root are as invisible here as they
	// are in ListDeleted
	info, err := loadTrashInfo(loc.infoPath(name), loc.mount)
	if err != nil {
		return nil, "", provider.NewError(provider.KindEntryNotFound, op, addr, err)
	}
	if _, inside := s.Rel(info.AbsolutePath()); !inside {
		return nil, "", provider.Errorf(provider.KindEntryNotFound, op, addr, "trashed outside "+s.p.Root())
	}
	return loc, name, nil
}

func (s *session) TrashStat(ctx context.Context, addr types.Address) (provider.TrashRecord, error) {
	const op = "trash_stat"
	loc, name, err := s.lookup(op, addr)
	if err != nil {
		return provider.TrashRecord{}, err
	}
	rec, err := s.record(loc, name)
	if errors.Is(err, os.ErrNotExist) {
		return provider.TrashRecord{}, provider.NewError(provider.KindEntryNotFound, op, addr, err)
	}
	return rec, err
}

func (s *session) ListDeleted(ctx context.Context, opts types.ListOptions) (provider.TrashPage, error) {
	recs, err := s.records()
	if err != nil {
		return provider.TrashPage{}, err
	}

	start := 0
	if opts.Token != "" {
		at, id, err := decodeToken(opts.Token)
		if err != nil {
			return provider.TrashPage{}, provider.NewError(provider.KindInvalidAddress, "list_deleted", types.Address{}, err)
		}
		start = sort.Search(len(recs), func(i int) bool {
			r := recs[i]
			if !r.DeletedAt.Equal(at) {
				return r.DeletedAt.After(at)
			}
			return r.Entry.Address.Value > id
		})
	}
	size := opts.PageSize
	if size <= 0 {
		size = len(recs)
	}

	end := min(start+size, len(recs))
	page := provider.TrashPage{Records: recs[start:end]}
	if end < len(recs) && end > start {
		page.NextToken = encodeToken(recs[end-1])
	}
	return page, nil
}

func encodeToken(r provider.TrashRecord) string {
	raw := strconv.FormatInt(r.DeletedAt.UnixNano(), 10) + ":" + r.Entry.Address.Value
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

func decodeToken(token string) (time.Time, string, error) {
	b, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return time.Time{}, "", err
	}
	ts, id, ok := strings.Cut(string(b), ":")
	if !ok {
		return time.Time{}, "", fmt.Errorf("malformed token")
	}
	n, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return time.Time{}, "", err
	}
	return time.Unix(0, n), id, nil
}

func (s *session) Restore(ctx context.Context, addr types.Address, opts provider.RestoreOptions) (types.Entry, error) {
	const op = "restore"
	loc, name, err := s.lookup(op, addr)
	if err != nil {
		return types.Entry{}, err
	}
	rec, err := s.record(loc, name)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return types.Entry{}, provider.NewError(provider.KindEntryNotFound, op, addr, err)
		}
		return types.Entry{}, err
	}

	dest := rec.OriginalLocation
	if !opts.Destination.IsZero() {
		dest = opts.Destination
	}
	abs, err := s.Abs(op, dest)
	if err != nil {
		return types.Entry{}, err
	}

	err = atomic.Move(filepath.Join(loc.files, name), abs, atomic.MoveOptions{Overwrite: opts.Overwrite})
	switch {
	case err == nil:
	case errors.Is(err, atomic.ErrDestinationExists):
		return types.Entry{}, provider.NewError(provider.KindAlreadyExists, op, dest, err)
	default:
		return types.Entry{}, err
	}
	if err := os.Remove(loc.infoPath(name)); err != nil {
		s.p.log.Warn("failed to remove trash info", "name", name, "error", err)
	}
	s.p.log.Debug("restored", "trash", name, "path", abs)
	return s.Entry(dest, abs, false)
}

func (s *session) PermanentlyDelete(ctx context.Context, addr types.Address, _ bool) (types.Status, error) {
	const op = "permanently_delete"
	loc, name, err := s.lookup(op, addr)
	if err != nil {
		return 0, err
	}
	if err := s.remove(loc, name); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, provider.NewError(provider.KindEntryNotFound, op, addr, err)
		}
		return 0, err
	}
	return types.StatusPermanentlyDeleted, nil
}

func (s *session) remove(loc *location, name string) error {
	path := filepath.Join(loc.files, name)
	if _, err := os.Lstat(path); err != nil {
		return err
	}
	if err := os.RemoveAll(path); err != nil {
		return err
	}
	if err := os.Remove(loc.infoPath(name)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// EmptyTrash removes every trashed entry that came from the root
func (s *session) EmptyTrash(ctx context.Context) error {
	recs, err := s.records()
	if err != nil {
		return err
	}
	var errs []error
	for _, rec := range recs {
		if err := ctx.Err(); err != nil {
			return err
		}
		loc, name, err := s.p.trashed(rec.Entry.Address.Value)
		if err == nil {
			err = s.remove(loc, name)
		}
		if err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
