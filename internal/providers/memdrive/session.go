package memdrive

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"io"
	"path"
	"sync/atomic"

	"github.com/babarot/kura/internal/capability"
	"github.com/babarot/kura/internal/core/types"
	"github.com/babarot/kura/internal/provider"
	"github.com/go-git/go-billy/v5/util"
)

type session struct {
	d      *Drive
	caps   *capability.Set
	policy provider.TrashPolicy
	closed atomic.Bool
}

var (
	_ provider.Session        = (*session)(nil)
	_ provider.TrashSession   = (*session)(nil)
	_ provider.UploadSession  = (*session)(nil)
	_ provider.EvictionSource = (*session)(nil)
	_ provider.VersionSession = (*session)(nil)
)

func (s *session) Capabilities() *capability.Set { return s.caps }
func (s *session) Policy() provider.TrashPolicy  { return s.policy }

func (s *session) Close() error {
	s.closed.Store(true)
	return nil
}

// begin runs the common preamble of every operation and returns with
// the drive locked
func (s *session) begin(ctx context.Context, op string, addr types.Address) (func(), error) {
	if s.closed.Load() {
		return nil, provider.Errorf(provider.KindInvalidState, op, addr, "session is closed")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.d.check(op, addr); err != nil {
		return nil, err
	}
	s.d.mu.Lock()
	s.d.expire()
	return s.d.mu.Unlock, nil
}

func (s *session) ListDirectory(ctx context.Context, addr types.Address, opts types.ListOptions) (types.Page, error) {
	const op = "list_directory"
	unlock, err := s.begin(ctx, op, addr)
	if err != nil {
		return types.Page{}, err
	}
	defer unlock()

	dir, err := s.d.resolveActive(op, addr)
	if err != nil {
		return types.Page{}, err
	}
	if !dir.dir {
		return types.Page{}, provider.Errorf(provider.KindInvalidAddress, op, addr, "not a folder")
	}

	after, err := decodeToken(opts.Token)
	if err != nil {
		return types.Page{}, provider.NewError(provider.KindInvalidAddress, op, addr, err)
	}
	size := opts.PageSize
	if size <= 0 {
		size = s.d.pageSize
	}

	var page types.Page
	for _, n := range s.d.children(dir) {
		if after != "" && n.name <= after {
			continue
		}
		if len(page.Entries) == size {
			page.NextToken = encodeToken(page.Entries[len(page.Entries)-1].Name)
			break
		}
		page.Entries = append(page.Entries, s.d.entry(n))
	}
	return page, nil
}

func (s *session) ReadFile(ctx context.Context, addr types.Address, opts types.ReadOptions) (io.ReadCloser, error) {
	const op = "read_file"
	unlock, err := s.begin(ctx, op, addr)
	if err != nil {
		return nil, err
	}
	defer unlock()

	n, err := s.d.resolveActive(op, addr)
	if err != nil {
		return nil, err
	}
	if n.dir {
		return nil, provider.Errorf(provider.KindInvalidAddress, op, addr, "is a folder")
	}
	data, err := s.d.readBlob(n.blob)
	if err != nil {
		return nil, err
	}

	start := min(max(opts.Offset, 0), int64(len(data)))
	end := int64(len(data))
	if opts.Length > 0 {
		end = min(start+opts.Length, end)
	}
	return io.NopCloser(bytes.NewReader(data[start:end])), nil
}

func (s *session) WriteFile(ctx context.Context, addr types.Address, r io.Reader, opts types.WriteOptions) (types.Entry, error) {
	const op = "write_file"
	// the whole body is read before anything becomes visible
	data, err := io.ReadAll(r)
	if err != nil {
		return types.Entry{}, err
	}
	unlock, err := s.begin(ctx, op, addr)
	if err != nil {
		return types.Entry{}, err
	}
	defer unlock()

	n, err := s.d.target(op, addr, opts)
	if err != nil {
		return types.Entry{}, err
	}
	if err := s.d.store(op, n, data, opts.ContentType); err != nil {
		return types.Entry{}, err
	}
	return s.d.entry(n), nil
}

// target finds or creates the node a write lands on
func (d *Drive) target(op string, addr types.Address, opts types.WriteOptions) (*node, error) {
	if addr.Mode == types.AddressID {
		n, err := d.resolveActive(op, addr)
		if err != nil {
			return nil, err
		}
		if n.dir {
			return nil, provider.Errorf(provider.KindConflict, op, addr, "is a folder")
		}
		if !opts.Overwrite {
			return nil, provider.NewError(provider.KindAlreadyExists, op, addr, nil)
		}
		return n, nil
	}

	parent, name, err := d.parentFor(op, addr.Value, opts.CreateParents)
	if err != nil {
		return nil, err
	}
	if n := d.child(parent, name); n != nil {
		switch {
		case n.dir:
			return nil, provider.Errorf(provider.KindConflict, op, addr, "a folder exists at the target")
		case !opts.Overwrite:
			return nil, provider.NewError(provider.KindAlreadyExists, op, addr, nil)
		}
		return n, nil
	}
	return d.newNode(parent, name, false), nil
}

// store swaps the content of n. The new blob is written first so a
// failure leaves the previous revision intact.
func (d *Drive) store(op string, n *node, data []byte, contentType string) error {
	if d.capacity > 0 {
		total, _ := d.used()
		if total-n.size+int64(len(data)) > d.capacity {
			if n.revision == 0 {
				delete(d.nodes, n.id)
			}
			return provider.Errorf(provider.KindQuotaExceeded, op, types.ID(n.id), "drive capacity reached")
		}
	}
	blob := path.Join(blobDir, newID())
	if err := util.WriteFile(d.fs, blob, data, 0o644); err != nil {
		if n.revision == 0 {
			delete(d.nodes, n.id)
		}
		return err
	}
	d.commit(n, blob, data, contentType)
	return nil
}

func (d *Drive) commit(n *node, blob string, data []byte, contentType string) {
	if n.blob != "" {
		d.keep(n)
	}
	sum := sha256.Sum256(data)
	n.blob = blob
	n.size = int64(len(data))
	n.hash = hex.EncodeToString(sum[:])
	n.native = contentType == NativeDocument
	if contentType != "" {
		n.contentType = contentType
	}
	n.modified = d.clock()
	n.revision++
}

func (s *session) Delete(ctx context.Context, addr types.Address) (types.Entry, error) {
	const op = "delete"
	unlock, err := s.begin(ctx, op, addr)
	if err != nil {
		return types.Entry{}, err
	}
	defer unlock()

	n, err := s.d.resolveActive(op, addr)
	if err != nil {
		return types.Entry{}, err
	}
	if n.id == s.d.rootID {
		return types.Entry{}, provider.Errorf(provider.KindPermissionDenied, op, addr, "cannot delete the root folder")
	}

	if !s.policy.Enabled {
		e := s.d.entry(n)
		s.d.remove(n)
		return e.WithStatus(types.StatusPermanentlyDeleted), nil
	}

	now := s.d.clock()
	deadline, err := s.policy.Deadline(ctx, now)
	if err != nil {
		return types.Entry{}, err
	}
	n.trash = &trashInfo{
		deletedAt: now,
		origPath:  s.d.pathOf(n),
		deadline:  deadline,
		stage:     provider.StageTrashed,
		actor:     "owner",
	}
	n.status = types.StatusDeleted
	e := s.d.entry(n)
	s.d.enforceQuota()
	return e, nil
}

func (s *session) GetMetadata(ctx context.Context, addr types.Address) (types.Entry, error) {
	const op = "get_metadata"
	unlock, err := s.begin(ctx, op, addr)
	if err != nil {
		return types.Entry{}, err
	}
	defer unlock()

	var n *node
	if addr.Mode == types.AddressID {
		n, err = s.d.resolve(op, addr)
	} else {
		n, err = s.d.resolveActive(op, addr)
	}
	if err != nil {
		return types.Entry{}, err
	}
	return s.d.entry(n), nil
}

func (s *session) EntryExists(ctx context.Context, addr types.Address) (bool, error) {
	const op = "entry_exists"
	unlock, err := s.begin(ctx, op, addr)
	if err != nil {
		return false, err
	}
	defer unlock()

	if _, err := s.d.resolveActive(op, addr); err != nil {
		if provider.IsEntryNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *session) CreateFolder(ctx context.Context, addr types.Address, opts types.WriteOptions) (types.Entry, error) {
	const op = "create_folder"
	unlock, err := s.begin(ctx, op, addr)
	if err != nil {
		return types.Entry{}, err
	}
	defer unlock()

	if addr.Mode == types.AddressID {
		return types.Entry{}, provider.Errorf(provider.KindInvalidAddress, op, addr, "folders are created by path")
	}
	parent, name, err := s.d.parentFor(op, addr.Value, opts.CreateParents)
	if err != nil {
		return types.Entry{}, err
	}
	if s.d.child(parent, name) != nil {
		return types.Entry{}, provider.NewError(provider.KindAlreadyExists, op, addr, nil)
	}
	return s.d.entry(s.d.newNode(parent, name, true)), nil
}

func (s *session) Move(ctx context.Context, src, dst types.Address, opts types.MoveOptions) (types.Entry, error) {
	const op = "move"
	unlock, err := s.begin(ctx, op, src)
	if err != nil {
		return types.Entry{}, err
	}
	defer unlock()

	n, err := s.d.resolveActive(op, src)
	if err != nil {
		return types.Entry{}, err
	}
	if dst.Mode != types.AddressPath {
		return types.Entry{}, provider.Errorf(provider.KindInvalidAddress, op, dst, "destination must be a path")
	}
	parent, name, err := s.d.parentFor(op, dst.Value, false)
	if err != nil {
		return types.Entry{}, err
	}
	if s.d.isAncestor(n, parent) {
		return types.Entry{}, provider.Errorf(provider.KindInvalidAddress, op, dst, "cannot move a folder into itself")
	}
	if existing := s.d.child(parent, name); existing != nil && existing.id != n.id {
		if !opts.Overwrite {
			return types.Entry{}, provider.NewError(provider.KindAlreadyExists, op, dst, nil)
		}
		if existing.dir {
			return types.Entry{}, provider.Errorf(provider.KindConflict, op, dst, "a folder exists at the destination")
		}
		s.d.remove(existing)
	}
	n.parent = parent.id
	n.name = name
	n.modified = s.d.clock()
	return s.d.entry(n), nil
}

func encodeToken(name string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(name))
}

func decodeToken(token string) (string, error) {
	if token == "" {
		return "", nil
	}
	b, err := base64.RawURLEncoding.DecodeString(token)
	return string(b), err
}
