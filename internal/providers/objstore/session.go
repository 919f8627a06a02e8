package objstore

import (
	"bytes"
	"context"
	"encoding/base64"
	"io"
	"path"
	"strings"
	"time"

	"github.com/babarot/kura/internal/capability"
	"github.com/babarot/kura/internal/core/types"
	"github.com/babarot/kura/internal/provider"
	"github.com/minio/minio-go/v7"
	"golang.org/x/sync/errgroup"
)

type session struct {
	p      *Provider
	caps   *capability.Set
	closed bool
}

func (s *session) Capabilities() *capability.Set { return s.caps }
func (s *session) Policy() provider.TrashPolicy  { return provider.NoTrash() }

func (s *session) Close() error {
	s.closed = true
	return nil
}

func (s *session) check(op string, addr types.Address) error {
	if s.closed {
		return provider.Errorf(provider.KindInvalidState, op, addr, "session is closed")
	}
	if addr.Mode != types.AddressPath {
		return provider.Errorf(provider.KindInvalidAddress, op, addr, "objects are addressed by path")
	}
	return nil
}

func isRoot(addr types.Address) bool {
	return path.Clean("/"+addr.Value) == "/"
}

func (s *session) entry(obj minio.ObjectInfo) types.Entry {
	isDir := strings.HasSuffix(obj.Key, "/")
	addr := s.p.address(obj.Key)
	e := types.Entry{
		Address:    addr,
		Name:       path.Base(addr.Value),
		IsDir:      isDir,
		Status:     types.StatusActive,
		ModifiedAt: obj.LastModified,
		Revision:   obj.VersionID,
	}
	if isDir {
		return e
	}
	e.Size = types.Int64(obj.Size)
	if etag := strings.Trim(obj.ETag, `"`); etag != "" {
		e.ContentHash = &types.ContentHash{Algorithm: "etag", Value: etag}
	}
	e.Metadata = types.Metadata{"key": types.String(obj.Key)}
	if obj.ContentType != "" {
		e.Metadata["mime_type"] = types.String(obj.ContentType)
	}
	if obj.StorageClass != "" {
		e.Metadata["storage_class"] = types.String(obj.StorageClass)
	}
	return e
}

func folder(addr types.Address) types.Entry {
	return types.Entry{
		Address: types.Path(path.Clean("/" + addr.Value)),
		Name:    path.Base(path.Clean("/" + addr.Value)),
		IsDir:   true,
		Status:  types.StatusActive,
	}
}

// startAfter turns the last key of a page into the listing resume point.
// '0' sorts right after '/', so a folder's own keys are skipped too.
func startAfter(last string) string {
	if strings.HasSuffix(last, "/") {
		return strings.TrimSuffix(last, "/") + "0"
	}
	return last
}

func (s *session) ListDirectory(ctx context.Context, addr types.Address, opts types.ListOptions) (types.Page, error) {
	const op = "list_directory"
	if err := s.check(op, addr); err != nil {
		return types.Page{}, err
	}
	prefix := s.p.dirKey(addr)
	after := ""
	if opts.Token != "" {
		b, err := base64.RawURLEncoding.DecodeString(opts.Token)
		if err != nil {
			return types.Page{}, provider.NewError(provider.KindInvalidAddress, op, addr, err)
		}
		after = startAfter(string(b))
	}
	size := opts.PageSize
	if size <= 0 {
		size = s.p.pageSize
	}

	lctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		page types.Page
		seen bool
		last string
	)
	for obj := range s.p.client.ListObjects(lctx, s.p.bucket, minio.ListObjectsOptions{
		Prefix:     prefix,
		StartAfter: after,
	}) {
		if obj.Err != nil {
			return types.Page{}, translate(op, addr, obj.Err)
		}
		seen = true
		if obj.Key == prefix {
			continue
		}
		if len(page.Entries) == size {
			page.NextToken = base64.RawURLEncoding.EncodeToString([]byte(last))
			break
		}
		page.Entries = append(page.Entries, s.entry(obj))
		last = obj.Key
	}
	if !seen && opts.Token == "" && !isRoot(addr) {
		return types.Page{}, provider.Errorf(provider.KindEntryNotFound, op, addr, "no such folder")
	}
	return page, nil
}

func (s *session) ReadFile(ctx context.Context, addr types.Address, opts types.ReadOptions) (io.ReadCloser, error) {
	const op = "read_file"
	if err := s.check(op, addr); err != nil {
		return nil, err
	}
	var getOpts minio.GetObjectOptions
	if opts.IsRange() {
		var end int64
		if opts.Length > 0 {
			end = opts.Offset + opts.Length - 1
		}
		if err := getOpts.SetRange(opts.Offset, end); err != nil {
			return nil, provider.NewError(provider.KindInvalidAddress, op, addr, err)
		}
	}
	obj, err := s.p.client.GetObject(ctx, s.p.bucket, s.p.key(addr), getOpts)
	if err != nil {
		return nil, translate(op, addr, err)
	}
	// GetObject is lazy; Stat surfaces a missing key now
	if _, err := obj.Stat(); err != nil {
		obj.Close()
		return nil, translate(op, addr, err)
	}
	return obj, nil
}

func (s *session) WriteFile(ctx context.Context, addr types.Address, r io.Reader, opts types.WriteOptions) (types.Entry, error) {
	const op = "write_file"
	if err := s.check(op, addr); err != nil {
		return types.Entry{}, err
	}
	if isRoot(addr) {
		return types.Entry{}, provider.Errorf(provider.KindInvalidAddress, op, addr, "cannot write to the root")
	}
	if !opts.Overwrite {
		exists, err := s.EntryExists(ctx, addr)
		if err != nil {
			return types.Entry{}, err
		}
		if exists {
			return types.Entry{}, provider.NewError(provider.KindAlreadyExists, op, addr, nil)
		}
	}
	key := s.p.key(addr)
	info, err := s.p.client.PutObject(ctx, s.p.bucket, key, r, -1, minio.PutObjectOptions{
		ContentType: opts.ContentType,
	})
	if err != nil {
		return types.Entry{}, translate(op, addr, err)
	}
	s.p.log.Debug("put object", "key", key, "size", info.Size)

	modified := info.LastModified
	if modified.IsZero() {
		modified = time.Now()
	}
	return s.entry(minio.ObjectInfo{
		Key:          key,
		Size:         info.Size,
		ETag:         info.ETag,
		LastModified: modified,
		VersionID:    info.VersionID,
		ContentType:  opts.ContentType,
	}), nil
}

// stat resolves an object or a folder prefix
func (s *session) stat(ctx context.Context, op string, addr types.Address) (types.Entry, error) {
	if isRoot(addr) {
		return folder(addr), nil
	}
	obj, err := s.p.client.StatObject(ctx, s.p.bucket, s.p.key(addr), minio.StatObjectOptions{})
	if err == nil {
		return s.entry(obj), nil
	}
	if !notFound(err) {
		return types.Entry{}, translate(op, addr, err)
	}

	lctx, cancel := context.WithCancel(ctx)
	defer cancel()
	for obj := range s.p.client.ListObjects(lctx, s.p.bucket, minio.ListObjectsOptions{
		Prefix:  s.p.dirKey(addr),
		MaxKeys: 1,
	}) {
		if obj.Err != nil {
			return types.Entry{}, translate(op, addr, obj.Err)
		}
		return folder(addr), nil
	}
	return types.Entry{}, provider.Errorf(provider.KindEntryNotFound, op, addr, "no such object")
}

func (s *session) GetMetadata(ctx context.Context, addr types.Address) (types.Entry, error) {
	const op = "get_metadata"
	if err := s.check(op, addr); err != nil {
		return types.Entry{}, err
	}
	return s.stat(ctx, op, addr)
}

func (s *session) EntryExists(ctx context.Context, addr types.Address) (bool, error) {
	const op = "entry_exists"
	if err := s.check(op, addr); err != nil {
		return false, err
	}
	_, err := s.stat(ctx, op, addr)
	switch {
	case err == nil:
		return true, nil
	case provider.IsEntryNotFound(err):
		return false, nil
	default:
		return false, err
	}
}

func (s *session) Delete(ctx context.Context, addr types.Address) (types.Entry, error) {
	const op = "delete"
	if err := s.check(op, addr); err != nil {
		return types.Entry{}, err
	}
	if isRoot(addr) {
		return types.Entry{}, provider.Errorf(provider.KindPermissionDenied, op, addr, "cannot delete the root")
	}
	e, err := s.stat(ctx, op, addr)
	if err != nil {
		return types.Entry{}, err
	}
	if e.IsDir {
		err = s.removePrefix(ctx, s.p.dirKey(addr))
	} else {
		err = s.p.client.RemoveObject(ctx, s.p.bucket, s.p.key(addr), minio.RemoveObjectOptions{})
	}
	if err != nil {
		return types.Entry{}, translate(op, addr, err)
	}
	s.p.log.Debug("removed", "address", addr)
	return e.WithStatus(types.StatusPermanentlyDeleted), nil
}

// keys lists every key under prefix
func (s *session) keys(ctx context.Context, prefix string) ([]string, error) {
	var out []string
	for obj := range s.p.client.ListObjects(ctx, s.p.bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	}) {
		if obj.Err != nil {
			return nil, obj.Err
		}
		out = append(out, obj.Key)
	}
	return out, nil
}

func (s *session) removeKeys(ctx context.Context, keys []string) error {
	objects := make(chan minio.ObjectInfo, len(keys))
	for _, k := range keys {
		objects <- minio.ObjectInfo{Key: k}
	}
	close(objects)
	for res := range s.p.client.RemoveObjects(ctx, s.p.bucket, objects, minio.RemoveObjectsOptions{}) {
		if res.Err != nil {
			return res.Err
		}
	}
	return nil
}

func (s *session) removePrefix(ctx context.Context, prefix string) error {
	keys, err := s.keys(ctx, prefix)
	if err != nil {
		return err
	}
	return s.removeKeys(ctx, keys)
}

func (s *session) CreateFolder(ctx context.Context, addr types.Address, opts types.WriteOptions) (types.Entry, error) {
	const op = "create_folder"
	if err := s.check(op, addr); err != nil {
		return types.Entry{}, err
	}
	exists, err := s.EntryExists(ctx, addr)
	if err != nil {
		return types.Entry{}, err
	}
	if exists {
		return types.Entry{}, provider.NewError(provider.KindAlreadyExists, op, addr, nil)
	}
	_, err = s.p.client.PutObject(ctx, s.p.bucket, s.p.dirKey(addr), bytes.NewReader(nil), 0, minio.PutObjectOptions{})
	if err != nil {
		return types.Entry{}, translate(op, addr, err)
	}
	return folder(addr), nil
}

func (s *session) copy(ctx context.Context, src, dst string) error {
	_, err := s.p.client.CopyObject(ctx,
		minio.CopyDestOptions{Bucket: s.p.bucket, Object: dst},
		minio.CopySrcOptions{Bucket: s.p.bucket, Object: src},
	)
	return err
}

// Move copies then removes. A folder move is not atomic: a failure
// part way leaves keys at both places.
func (s *session) Move(ctx context.Context, src, dst types.Address, opts types.MoveOptions) (types.Entry, error) {
	const op = "move"
	if err := s.check(op, src); err != nil {
		return types.Entry{}, err
	}
	if err := s.check(op, dst); err != nil {
		return types.Entry{}, err
	}
	from, err := s.stat(ctx, op, src)
	if err != nil {
		return types.Entry{}, err
	}
	if isRoot(src) || isRoot(dst) {
		return types.Entry{}, provider.Errorf(provider.KindInvalidAddress, op, src, "cannot move the root")
	}
	if exists, err := s.EntryExists(ctx, dst); err != nil {
		return types.Entry{}, err
	} else if exists && !opts.Overwrite {
		return types.Entry{}, provider.NewError(provider.KindAlreadyExists, op, dst, nil)
	}

	if !from.IsDir {
		if err := s.copy(ctx, s.p.key(src), s.p.key(dst)); err != nil {
			return types.Entry{}, translate(op, src, err)
		}
		if err := s.p.client.RemoveObject(ctx, s.p.bucket, s.p.key(src), minio.RemoveObjectOptions{}); err != nil {
			return types.Entry{}, translate(op, src, err)
		}
		return s.stat(ctx, op, dst)
	}

	oldPrefix, newPrefix := s.p.dirKey(src), s.p.dirKey(dst)
	if strings.HasPrefix(newPrefix, oldPrefix) {
		return types.Entry{}, provider.Errorf(provider.KindInvalidAddress, op, dst, "cannot move a folder into itself")
	}
	keys, err := s.keys(ctx, oldPrefix)
	if err != nil {
		return types.Entry{}, translate(op, src, err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.p.concurrency)
	for _, k := range keys {
		g.Go(func() error {
			return s.copy(gctx, k, newPrefix+strings.TrimPrefix(k, oldPrefix))
		})
	}
	if err := g.Wait(); err != nil {
		return types.Entry{}, translate(op, src, err)
	}
	if err := s.removeKeys(ctx, keys); err != nil {
		return types.Entry{}, translate(op, src, err)
	}
	return folder(dst), nil
}
