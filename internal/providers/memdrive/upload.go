package memdrive

import (
	"context"
	"os"
	"path"
	"time"

	"github.com/babarot/kura/internal/core/types"
	"github.com/babarot/kura/internal/provider"
	"github.com/go-git/go-billy/v5/util"
	"github.com/rs/xid"
)

type upload struct {
	target  types.Address
	opts    types.WriteOptions
	blob    string
	size    int64
	started time.Time
}

func (u *upload) state(token string) provider.UploadState {
	return provider.UploadState{Token: token, Target: u.target, Committed: u.size, StartedAt: u.started}
}

func (s *session) lookupUpload(op, token string) (*upload, error) {
	u, ok := s.d.uploads[token]
	if !ok {
		return nil, provider.Errorf(provider.KindEntryNotFound, op, types.Address{}, "unknown upload "+token)
	}
	return u, nil
}

func (s *session) StartUpload(ctx context.Context, addr types.Address, opts types.WriteOptions) (provider.UploadState, error) {
	const op = "start_upload"
	unlock, err := s.begin(ctx, op, addr)
	if err != nil {
		return provider.UploadState{}, err
	}
	defer unlock()

	if addr.Mode != types.AddressPath {
		return provider.UploadState{}, provider.Errorf(provider.KindInvalidAddress, op, addr, "uploads target a path")
	}
	if _, err := s.d.checkTarget(op, addr, opts); err != nil {
		return provider.UploadState{}, err
	}

	token := xid.New().String()
	u := &upload{
		target:  addr,
		opts:    opts,
		blob:    path.Join(uploadDir, token),
		started: s.d.clock(),
	}
	if err := util.WriteFile(s.d.fs, u.blob, nil, 0o644); err != nil {
		return provider.UploadState{}, err
	}
	s.d.uploads[token] = u
	return u.state(token), nil
}

// checkTarget validates a path target without creating anything
func (d *Drive) checkTarget(op string, addr types.Address, opts types.WriteOptions) (*node, error) {
	dir := d.nodes[d.rootID]
	parts := split(addr.Value)
	if len(parts) == 0 {
		return nil, provider.Errorf(provider.KindInvalidAddress, op, addr, "root cannot be written")
	}
	for _, part := range parts[:len(parts)-1] {
		next := d.child(dir, part)
		if next == nil {
			if opts.CreateParents {
				return nil, nil
			}
			return nil, provider.Errorf(provider.KindEntryNotFound, op, addr, "parent folder does not exist")
		}
		if !next.dir {
			return nil, provider.Errorf(provider.KindConflict, op, addr, part+" is not a folder")
		}
		dir = next
	}
	existing := d.child(dir, parts[len(parts)-1])
	if existing != nil && (existing.dir || !opts.Overwrite) {
		return nil, provider.NewError(provider.KindAlreadyExists, op, addr, nil)
	}
	return existing, nil
}

func (s *session) UploadChunk(ctx context.Context, token string, offset int64, data []byte) (provider.UploadState, error) {
	const op = "upload_chunk"
	unlock, err := s.begin(ctx, op, types.Address{})
	if err != nil {
		return provider.UploadState{}, err
	}
	defer unlock()

	u, err := s.lookupUpload(op, token)
	if err != nil {
		return provider.UploadState{}, err
	}
	if offset != u.size {
		return u.state(token), provider.Errorf(provider.KindConflict, op, u.target,
			"chunk offset does not match the committed size")
	}
	f, err := s.d.fs.OpenFile(u.blob, os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return u.state(token), err
	}
	defer f.Close()
	if _, err := f.Write(data); err != nil {
		return u.state(token), err
	}
	u.size += int64(len(data))
	return u.state(token), nil
}

func (s *session) UploadStatus(ctx context.Context, token string) (provider.UploadState, error) {
	const op = "upload_status"
	unlock, err := s.begin(ctx, op, types.Address{})
	if err != nil {
		return provider.UploadState{}, err
	}
	defer unlock()

	u, err := s.lookupUpload(op, token)
	if err != nil {
		return provider.UploadState{}, err
	}
	return u.state(token), nil
}

func (s *session) CompleteUpload(ctx context.Context, token string) (types.Entry, error) {
	const op = "complete_upload"
	unlock, err := s.begin(ctx, op, types.Address{})
	if err != nil {
		return types.Entry{}, err
	}
	defer unlock()

	u, err := s.lookupUpload(op, token)
	if err != nil {
		return types.Entry{}, err
	}
	n, err := s.d.target(op, u.target, u.opts)
	if err != nil {
		return types.Entry{}, err
	}
	data, err := s.d.readBlob(u.blob)
	if err != nil {
		return types.Entry{}, err
	}
	if err := s.d.store(op, n, data, u.opts.ContentType); err != nil {
		return types.Entry{}, err
	}
	_ = util.RemoveAll(s.d.fs, u.blob)
	delete(s.d.uploads, token)
	return s.d.entry(n), nil
}

func (s *session) AbortUpload(ctx context.Context, token string) error {
	const op = "abort_upload"
	unlock, err := s.begin(ctx, op, types.Address{})
	if err != nil {
		return err
	}
	defer unlock()

	u, err := s.lookupUpload(op, token)
	if err != nil {
		return err
	}
	delete(s.d.uploads, token)
	return util.RemoveAll(s.d.fs, u.blob)
}
