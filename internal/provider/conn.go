package provider

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/babarot/kura/internal/capability"
	"github.com/babarot/kura/internal/core/types"
)

// Conn is a connected provider session. Every operation is checked
// against the capability set published when the session opened; a
// missing capability fails before the backend is touched.
type Conn struct {
	id      string
	session Session
	caps    *capability.Set
	policy  TrashPolicy
	log     *slog.Logger

	closeOnce sync.Once
	closeErr  error
}

// ConnOption configures Open
type ConnOption func(*Conn)

// WithLogger sets the logger used by the connection
func WithLogger(l *slog.Logger) ConnOption {
	return func(c *Conn) {
		if l != nil {
			c.log = l
		}
	}
}

// Open connects p and returns a gated connection
func Open(ctx context.Context, p Provider, opts ...ConnOption) (*Conn, error) {
	session, err := p.Connect(ctx)
	if err != nil {
		return nil, Wrap("connect", p.ID(), types.Address{}, err)
	}

	c := &Conn{
		id:      p.ID(),
		session: session,
		caps:    session.Capabilities(),
		policy:  session.Policy(),
		log:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.caps == nil {
		c.caps = p.Capabilities()
	}
	if c.policy.Retention == nil {
		c.policy.Retention = NoRetention{}
	}

	if c.policy.Enabled != c.caps.Has(capability.TrashManagement) {
		_ = session.Close()
		return nil, &Error{
			Op:       "connect",
			Provider: c.id,
			Kind:     KindInvalidState,
			Err: fmt.Errorf("trash policy enabled=%t disagrees with %s capability",
				c.policy.Enabled, capability.TrashManagement),
		}
	}

	c.log = c.log.With("provider", c.id)
	c.log.Debug("session opened", "capabilities", c.caps.String())
	return c, nil
}

// With opens a connection, runs fn and always closes the connection,
// also when fn fails or panics
func With(ctx context.Context, p Provider, fn func(*Conn) error, opts ...ConnOption) (err error) {
	conn, err := Open(ctx, p, opts...)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := conn.Close(); cerr != nil {
			err = errors.Join(err, cerr)
		}
	}()
	return fn(conn)
}

// ProviderID returns the id of the connected provider
func (c *Conn) ProviderID() string { return c.id }

// Capabilities returns the set published for this session
func (c *Conn) Capabilities() *capability.Set { return c.caps }

// Policy returns the trash policy declared by the backend
func (c *Conn) Policy() TrashPolicy { return c.policy }

// Logger returns the connection logger
func (c *Conn) Logger() *slog.Logger { return c.log }

// Close releases the session. Calling it more than once is harmless.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		if err := c.session.Close(); err != nil {
			c.closeErr = Wrap("release", c.id, types.Address{}, err)
		}
		c.log.Debug("session released")
	})
	return c.closeErr
}

// Require fails with KindUnsupportedCapability unless every flag is present
func (c *Conn) Require(op string, addr types.Address, flags ...capability.Flag) error {
	for _, f := range flags {
		if !c.caps.Has(f) {
			return &Error{
				Op:       op,
				Provider: c.id,
				Address:  addr,
				Kind:     KindUnsupportedCapability,
				Err:      fmt.Errorf("%w: %s", ErrUnsupportedCapability, f),
			}
		}
	}
	return nil
}

func (c *Conn) wrap(op string, addr types.Address, err error) error {
	return Wrap(op, c.id, addr, err)
}

func (c *Conn) trash(op string, addr types.Address) (TrashSession, error) {
	ts, ok := c.session.(TrashSession)
	if !ok {
		c.log.Warn("capability declared without implementation", "op", op)
		return nil, &Error{Op: op, Provider: c.id, Address: addr, Kind: KindUnsupportedCapability,
			Err: fmt.Errorf("%w: backend has no trash", ErrUnsupportedCapability)}
	}
	return ts, nil
}

func (c *Conn) ListDirectory(ctx context.Context, addr types.Address, opts types.ListOptions) (types.Page, error) {
	if err := c.Require("list_directory", addr, capability.List); err != nil {
		return types.Page{}, err
	}
	page, err := c.session.ListDirectory(ctx, addr, opts)
	return page, c.wrap("list_directory", addr, err)
}

// List returns a lazy listing starting at opts.Token
func (c *Conn) List(addr types.Address, opts types.ListOptions) *Iterator {
	return NewIterator(func(ctx context.Context, token string) (types.Page, error) {
		o := opts
		o.Token = token
		return c.ListDirectory(ctx, addr, o)
	}, opts.Token)
}

func (c *Conn) ReadFile(ctx context.Context, addr types.Address, opts types.ReadOptions) (io.ReadCloser, error) {
	flags := []capability.Flag{capability.Read}
	if opts.IsRange() {
		flags = append(flags, capability.Seek)
	}
	if err := c.Require("read_file", addr, flags...); err != nil {
		return nil, err
	}
	rc, err := c.session.ReadFile(ctx, addr, opts)
	if err != nil {
		return nil, c.wrap("read_file", addr, err)
	}
	return rc, nil
}

func (c *Conn) WriteFile(ctx context.Context, addr types.Address, r io.Reader, opts types.WriteOptions) (types.Entry, error) {
	if err := c.Require("write_file", addr, capability.Write); err != nil {
		return types.Entry{}, err
	}
	e, err := c.session.WriteFile(ctx, addr, r, opts)
	return e, c.wrap("write_file", addr, err)
}

func (c *Conn) Delete(ctx context.Context, addr types.Address) (types.Entry, error) {
	if err := c.Require("delete", addr, capability.Delete); err != nil {
		return types.Entry{}, err
	}
	e, err := c.session.Delete(ctx, addr)
	return e, c.wrap("delete", addr, err)
}

func (c *Conn) GetMetadata(ctx context.Context, addr types.Address) (types.Entry, error) {
	if err := c.Require("get_metadata", addr, capability.Metadata); err != nil {
		return types.Entry{}, err
	}
	e, err := c.session.GetMetadata(ctx, addr)
	return e, c.wrap("get_metadata", addr, err)
}

func (c *Conn) EntryExists(ctx context.Context, addr types.Address) (bool, error) {
	if err := c.Require("entry_exists", addr, capability.Metadata); err != nil {
		return false, err
	}
	ok, err := c.session.EntryExists(ctx, addr)
	return ok, c.wrap("entry_exists", addr, err)
}

func (c *Conn) CreateFolder(ctx context.Context, addr types.Address, opts types.WriteOptions) (types.Entry, error) {
	if err := c.Require("create_folder", addr, capability.Create); err != nil {
		return types.Entry{}, err
	}
	e, err := c.session.CreateFolder(ctx, addr, opts)
	return e, c.wrap("create_folder", addr, err)
}

func (c *Conn) Move(ctx context.Context, src, dst types.Address, opts types.MoveOptions) (types.Entry, error) {
	if err := c.Require("move", src, capability.Move); err != nil {
		return types.Entry{}, err
	}
	e, err := c.session.Move(ctx, src, dst, opts)
	return e, c.wrap("move", src, err)
}

func (c *Conn) ListDeleted(ctx context.Context, opts types.ListOptions) (TrashPage, error) {
	const op = "list_deleted"
	if err := c.Require(op, types.Address{}, capability.ListTrash); err != nil {
		return TrashPage{}, err
	}
	ts, err := c.trash(op, types.Address{})
	if err != nil {
		return TrashPage{}, err
	}
	page, err := ts.ListDeleted(ctx, opts)
	return page, c.wrap(op, types.Address{}, err)
}

func (c *Conn) TrashStat(ctx context.Context, addr types.Address) (TrashRecord, error) {
	const op = "trash_stat"
	if err := c.Require(op, addr, capability.TrashManagement); err != nil {
		return TrashRecord{}, err
	}
	ts, err := c.trash(op, addr)
	if err != nil {
		return TrashRecord{}, err
	}
	rec, err := ts.TrashStat(ctx, addr)
	return rec, c.wrap(op, addr, err)
}

func (c *Conn) Restore(ctx context.Context, addr types.Address, opts RestoreOptions) (types.Entry, error) {
	const op = "restore"
	if err := c.Require(op, addr, capability.FileRestoration); err != nil {
		return types.Entry{}, err
	}
	ts, err := c.trash(op, addr)
	if err != nil {
		return types.Entry{}, err
	}
	e, err := ts.Restore(ctx, addr, opts)
	return e, c.wrap(op, addr, err)
}

func (c *Conn) PermanentlyDelete(ctx context.Context, addr types.Address, privileged bool) (types.Status, error) {
	const op = "permanently_delete"
	if err := c.Require(op, addr, capability.PermanentDeletion); err != nil {
		return 0, err
	}
	ts, err := c.trash(op, addr)
	if err != nil {
		return 0, err
	}
	st, err := ts.PermanentlyDelete(ctx, addr, privileged)
	return st, c.wrap(op, addr, err)
}

func (c *Conn) EmptyTrash(ctx context.Context) error {
	const op = "empty_trash"
	if err := c.Require(op, types.Address{}, capability.EmptyTrash); err != nil {
		return err
	}
	ts, err := c.trash(op, types.Address{})
	if err != nil {
		return err
	}
	return c.wrap(op, types.Address{}, ts.EmptyTrash(ctx))
}

func (c *Conn) uploads(op string, addr types.Address) (UploadSession, error) {
	if err := c.Require(op, addr, capability.ResumableUpload); err != nil {
		return nil, err
	}
	us, ok := c.session.(UploadSession)
	if !ok {
		return nil, &Error{Op: op, Provider: c.id, Address: addr, Kind: KindUnsupportedCapability,
			Err: fmt.Errorf("%w: backend has no upload sessions", ErrUnsupportedCapability)}
	}
	return us, nil
}

func (c *Conn) StartUpload(ctx context.Context, addr types.Address, opts types.WriteOptions) (UploadState, error) {
	us, err := c.uploads("start_upload", addr)
	if err != nil {
		return UploadState{}, err
	}
	st, err := us.StartUpload(ctx, addr, opts)
	return st, c.wrap("start_upload", addr, err)
}

func (c *Conn) UploadChunk(ctx context.Context, token string, offset int64, data []byte) (UploadState, error) {
	us, err := c.uploads("upload_chunk", types.Address{})
	if err != nil {
		return UploadState{}, err
	}
	st, err := us.UploadChunk(ctx, token, offset, data)
	return st, c.wrap("upload_chunk", st.Target, err)
}

func (c *Conn) UploadStatus(ctx context.Context, token string) (UploadState, error) {
	us, err := c.uploads("upload_status", types.Address{})
	if err != nil {
		return UploadState{}, err
	}
	st, err := us.UploadStatus(ctx, token)
	return st, c.wrap("upload_status", st.Target, err)
}

func (c *Conn) CompleteUpload(ctx context.Context, token string) (types.Entry, error) {
	us, err := c.uploads("complete_upload", types.Address{})
	if err != nil {
		return types.Entry{}, err
	}
	e, err := us.CompleteUpload(ctx, token)
	return e, c.wrap("complete_upload", e.Address, err)
}

func (c *Conn) AbortUpload(ctx context.Context, token string) error {
	us, err := c.uploads("abort_upload", types.Address{})
	if err != nil {
		return err
	}
	return c.wrap("abort_upload", types.Address{}, us.AbortUpload(ctx, token))
}

// Evictions returns the backend's quota eviction feed
func (c *Conn) Evictions() (<-chan Eviction, error) {
	const op = "evictions"
	if !c.policy.QuotaBasedPurge {
		return nil, &Error{Op: op, Provider: c.id, Kind: KindUnsupportedCapability,
			Err: fmt.Errorf("%w: no quota based purge", ErrUnsupportedCapability)}
	}
	src, ok := c.session.(EvictionSource)
	if !ok {
		return nil, &Error{Op: op, Provider: c.id, Kind: KindUnsupportedCapability,
			Err: fmt.Errorf("%w: backend publishes no evictions", ErrUnsupportedCapability)}
	}
	return src.Evictions(), nil
}

func (c *Conn) versions(op string, addr types.Address) (VersionSession, error) {
	if err := c.Require(op, addr, capability.Versioning); err != nil {
		return nil, err
	}
	vs, ok := c.session.(VersionSession)
	if !ok {
		return nil, &Error{Op: op, Provider: c.id, Address: addr, Kind: KindUnsupportedCapability,
			Err: fmt.Errorf("%w: backend keeps no versions", ErrUnsupportedCapability)}
	}
	return vs, nil
}

func (c *Conn) ListVersions(ctx context.Context, addr types.Address) ([]Version, error) {
	const op = "list_versions"
	vs, err := c.versions(op, addr)
	if err != nil {
		return nil, err
	}
	out, err := vs.ListVersions(ctx, addr)
	return out, c.wrap(op, addr, err)
}

func (c *Conn) RevertToVersion(ctx context.Context, addr types.Address, id string) (types.Entry, error) {
	const op = "revert_to_version"
	vs, err := c.versions(op, addr)
	if err != nil {
		return types.Entry{}, err
	}
	if err := c.Require(op, addr, capability.Write); err != nil {
		return types.Entry{}, err
	}
	e, err := vs.RevertToVersion(ctx, addr, id)
	return e, c.wrap(op, addr, err)
}

func (c *Conn) DeleteVersion(ctx context.Context, addr types.Address, id string) error {
	const op = "delete_version"
	vs, err := c.versions(op, addr)
	if err != nil {
		return err
	}
	return c.wrap(op, addr, vs.DeleteVersion(ctx, addr, id))
}
