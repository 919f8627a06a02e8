package local

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/babarot/kura/internal/capability"
	"github.com/babarot/kura/internal/core/atomic"
	"github.com/babarot/kura/internal/core/types"
	"github.com/babarot/kura/internal/provider"
	"github.com/gabriel-vasile/mimetype"
)

// Session is a local disk session. It has no remote state, so closing
// it only marks it unusable.
type Session struct {
	p      *Provider
	caps   *capability.Set
	closed bool
}

var _ provider.Session = (*Session)(nil)

func (s *Session) Capabilities() *capability.Set { return s.caps }
func (s *Session) Policy() provider.TrashPolicy  { return provider.NoTrash() }
func (s *Session) Provider() *Provider           { return s.p }

func (s *Session) Close() error {
	s.closed = true
	return nil
}

// Abs maps a path address onto the disk
func (s *Session) Abs(op string, addr types.Address) (string, error) {
	if s.closed {
		return "", provider.Errorf(provider.KindInvalidState, op, addr, "session is closed")
	}
	if addr.Mode != types.AddressPath {
		return "", provider.Errorf(provider.KindInvalidAddress, op, addr, "local entries are addressed by path")
	}
	clean := path.Clean("/" + addr.Value)
	return filepath.Join(s.p.root, filepath.FromSlash(clean)), nil
}

// Rel maps an absolute disk path back to an address. ok is false for
// paths outside the root.
func (s *Session) Rel(abs string) (types.Address, bool) {
	rel, err := filepath.Rel(s.p.root, abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return types.Address{}, false
	}
	return types.Path(path.Clean("/" + filepath.ToSlash(rel))), true
}

// Entry stats abs and describes it
func (s *Session) Entry(addr types.Address, abs string, detect bool) (types.Entry, error) {
	fi, err := os.Lstat(abs)
	if err != nil {
		return types.Entry{}, err
	}
	return s.entry(addr, abs, fi, detect), nil
}

func (s *Session) entry(addr types.Address, abs string, fi os.FileInfo, detect bool) types.Entry {
	e := types.Entry{
		Address:    addr,
		Name:       fi.Name(),
		IsDir:      fi.IsDir(),
		Status:     types.StatusActive,
		ModifiedAt: fi.ModTime(),
		Metadata: types.Metadata{
			"mode": types.String(fi.Mode().String()),
		},
	}
	if addr.Value == "/" {
		e.Name = "/"
	}
	if !fi.IsDir() {
		e.Size = types.Int64(fi.Size())
	}
	if detect && fi.Mode().IsRegular() {
		if mt, err := mimetype.DetectFile(abs); err == nil {
			e.Metadata["mime_type"] = types.String(mt.String())
		}
	}
	return e
}

func (s *Session) ListDirectory(ctx context.Context, addr types.Address, opts types.ListOptions) (types.Page, error) {
	const op = "list_directory"
	abs, err := s.Abs(op, addr)
	if err != nil {
		return types.Page{}, err
	}
	dirents, err := os.ReadDir(abs)
	if err != nil {
		return types.Page{}, err
	}
	sort.Slice(dirents, func(i, j int) bool { return dirents[i].Name() < dirents[j].Name() })

	after := ""
	if opts.Token != "" {
		b, err := base64.RawURLEncoding.DecodeString(opts.Token)
		if err != nil {
			return types.Page{}, provider.NewError(provider.KindInvalidAddress, op, addr, err)
		}
		after = string(b)
	}
	size := opts.PageSize
	if size <= 0 {
		size = defaultPageSize
	}

	var page types.Page
	for _, d := range dirents {
		if err := ctx.Err(); err != nil {
			return types.Page{}, err
		}
		if after != "" && d.Name() <= after {
			continue
		}
		if len(page.Entries) == size {
			last := page.Entries[len(page.Entries)-1].Name
			page.NextToken = base64.RawURLEncoding.EncodeToString([]byte(last))
			break
		}
		fi, err := d.Info()
		if err != nil {
			// vanished between readdir and stat
			continue
		}
		child := types.Path(path.Join(path.Clean("/"+addr.Value), d.Name()))
		page.Entries = append(page.Entries, s.entry(child, filepath.Join(abs, d.Name()), fi, false))
	}
	return page, nil
}

type rangeReader struct {
	io.Reader
	f *os.File
}

func (r rangeReader) Close() error { return r.f.Close() }

func (s *Session) ReadFile(ctx context.Context, addr types.Address, opts types.ReadOptions) (io.ReadCloser, error) {
	const op = "read_file"
	abs, err := s.Abs(op, addr)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(abs)
	if err != nil {
		return nil, err
	}
	if fi, err := f.Stat(); err == nil && fi.IsDir() {
		f.Close()
		return nil, provider.Errorf(provider.KindInvalidAddress, op, addr, "is a directory")
	}
	if opts.Offset > 0 {
		if _, err := f.Seek(opts.Offset, io.SeekStart); err != nil {
			f.Close()
			return nil, err
		}
	}
	var r io.Reader = f
	if opts.Length > 0 {
		r = io.LimitReader(f, opts.Length)
	}
	return rangeReader{Reader: r, f: f}, nil
}

// ctxReader stops a copy once ctx is done
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}

func (s *Session) WriteFile(ctx context.Context, addr types.Address, r io.Reader, opts types.WriteOptions) (types.Entry, error) {
	const op = "write_file"
	abs, err := s.Abs(op, addr)
	if err != nil {
		return types.Entry{}, err
	}
	if abs == s.p.root {
		return types.Entry{}, provider.Errorf(provider.KindInvalidAddress, op, addr, "cannot write the root")
	}

	if fi, err := os.Lstat(abs); err == nil {
		if fi.IsDir() {
			return types.Entry{}, provider.Errorf(provider.KindConflict, op, addr, "a directory exists at the target")
		}
		if !opts.Overwrite {
			return types.Entry{}, provider.NewError(provider.KindAlreadyExists, op, addr, nil)
		}
	}
	if err := s.ensureParent(op, addr, abs, opts.CreateParents); err != nil {
		return types.Entry{}, err
	}

	w, err := atomic.NewSafeWriter(abs)
	if err != nil {
		return types.Entry{}, err
	}
	if _, err := w.ReadFrom(ctxReader{ctx: ctx, r: r}); err != nil {
		_ = w.Cleanup()
		return types.Entry{}, err
	}
	if err := w.Commit(abs, opts.Overwrite); err != nil {
		if atomic.IsDestinationExists(err) {
			return types.Entry{}, provider.NewError(provider.KindAlreadyExists, op, addr, err)
		}
		return types.Entry{}, err
	}
	s.p.log.Debug("wrote file", "path", abs)
	return s.Entry(addr, abs, true)
}

func (s *Session) ensureParent(op string, addr types.Address, abs string, create bool) error {
	parent := filepath.Dir(abs)
	fi, err := os.Stat(parent)
	switch {
	case err == nil && !fi.IsDir():
		return provider.Errorf(provider.KindConflict, op, addr, "parent is not a directory")
	case err == nil:
		return nil
	case errors.Is(err, os.ErrNotExist) && create:
		return os.MkdirAll(parent, 0o755)
	case errors.Is(err, os.ErrNotExist):
		return provider.Errorf(provider.KindEntryNotFound, op, addr, "parent directory does not exist")
	default:
		return err
	}
}

func (s *Session) Delete(ctx context.Context, addr types.Address) (types.Entry, error) {
	const op = "delete"
	abs, err := s.Abs(op, addr)
	if err != nil {
		return types.Entry{}, err
	}
	if abs == s.p.root {
		return types.Entry{}, provider.Errorf(provider.KindPermissionDenied, op, addr, "cannot delete the root")
	}
	e, err := s.Entry(addr, abs, false)
	if err != nil {
		return types.Entry{}, err
	}
	if err := ctx.Err(); err != nil {
		return types.Entry{}, err
	}
	if err := os.RemoveAll(abs); err != nil {
		return types.Entry{}, err
	}
	s.p.log.Debug("removed", "path", abs)
	return e.WithStatus(types.StatusPermanentlyDeleted), nil
}

func (s *Session) GetMetadata(ctx context.Context, addr types.Address) (types.Entry, error) {
	abs, err := s.Abs("get_metadata", addr)
	if err != nil {
		return types.Entry{}, err
	}
	return s.Entry(addr, abs, s.p.detect)
}

func (s *Session) EntryExists(ctx context.Context, addr types.Address) (bool, error) {
	abs, err := s.Abs("entry_exists", addr)
	if err != nil {
		return false, err
	}
	_, err = os.Lstat(abs)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, os.ErrNotExist):
		return false, nil
	default:
		return false, err
	}
}

func (s *Session) CreateFolder(ctx context.Context, addr types.Address, opts types.WriteOptions) (types.Entry, error) {
	const op = "create_folder"
	abs, err := s.Abs(op, addr)
	if err != nil {
		return types.Entry{}, err
	}
	if _, err := os.Lstat(abs); err == nil {
		return types.Entry{}, provider.NewError(provider.KindAlreadyExists, op, addr, nil)
	}
	if err := s.ensureParent(op, addr, abs, opts.CreateParents); err != nil {
		return types.Entry{}, err
	}
	if err := os.Mkdir(abs, 0o755); err != nil {
		return types.Entry{}, err
	}
	return s.Entry(addr, abs, false)
}

func (s *Session) Move(ctx context.Context, src, dst types.Address, opts types.MoveOptions) (types.Entry, error) {
	const op = "move"
	from, err := s.Abs(op, src)
	if err != nil {
		return types.Entry{}, err
	}
	to, err := s.Abs(op, dst)
	if err != nil {
		return types.Entry{}, err
	}
	if from == s.p.root || strings.HasPrefix(to, from+string(filepath.Separator)) {
		return types.Entry{}, provider.Errorf(provider.KindInvalidAddress, op, dst, "cannot move a directory into itself")
	}

	switch err := atomic.Move(from, to, atomic.MoveOptions{Overwrite: opts.Overwrite}); {
	case err == nil:
	case errors.Is(err, atomic.ErrDestinationExists):
		return types.Entry{}, provider.NewError(provider.KindAlreadyExists, op, dst, err)
	case errors.Is(err, atomic.ErrSourceNotFound):
		return types.Entry{}, provider.NewError(provider.KindEntryNotFound, op, src, err)
	default:
		return types.Entry{}, err
	}
	return s.Entry(dst, to, false)
}
