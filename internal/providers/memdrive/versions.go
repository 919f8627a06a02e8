package memdrive

import (
	"context"
	"slices"
	"strconv"
	"time"

	"github.com/babarot/kura/internal/core/types"
	"github.com/babarot/kura/internal/provider"
	"github.com/go-git/go-billy/v5/util"
)

// revision is a superseded content of a file. Prior revisions do not
// count toward the drive capacity.
type revision struct {
	number      int
	blob        string
	size        int64
	hash        string
	contentType string
	modified    time.Time
}

// keep moves the current content of n into its history, dropping the
// oldest revisions past the limit
func (d *Drive) keep(n *node) {
	if d.versionLimit == 0 {
		_ = util.RemoveAll(d.fs, n.blob)
		return
	}
	n.history = append(n.history, revision{
		number:      n.revision,
		blob:        n.blob,
		size:        n.size,
		hash:        n.hash,
		contentType: n.contentType,
		modified:    n.modified,
	})
	for len(n.history) > d.versionLimit {
		_ = util.RemoveAll(d.fs, n.history[0].blob)
		n.history = n.history[1:]
	}
}

func (d *Drive) versionFile(op string, addr types.Address) (*node, error) {
	n, err := d.resolveActive(op, addr)
	if err != nil {
		return nil, err
	}
	if n.dir {
		return nil, provider.Errorf(provider.KindInvalidAddress, op, addr, "folders have no versions")
	}
	return n, nil
}

func (n *node) findRevision(id string) int {
	return slices.IndexFunc(n.history, func(r revision) bool {
		return strconv.Itoa(r.number) == id
	})
}

func (s *session) ListVersions(ctx context.Context, addr types.Address) ([]provider.Version, error) {
	const op = "list_versions"
	unlock, err := s.begin(ctx, op, addr)
	if err != nil {
		return nil, err
	}
	defer unlock()

	n, err := s.d.versionFile(op, addr)
	if err != nil {
		return nil, err
	}
	out := []provider.Version{{
		ID:          strconv.Itoa(n.revision),
		CreatedAt:   n.modified,
		Size:        n.size,
		ContentHash: &types.ContentHash{Algorithm: "sha256", Value: n.hash},
		Current:     true,
	}}
	for _, r := range slices.Backward(n.history) {
		out = append(out, provider.Version{
			ID:          strconv.Itoa(r.number),
			CreatedAt:   r.modified,
			Size:        r.size,
			ContentHash: &types.ContentHash{Algorithm: "sha256", Value: r.hash},
		})
	}
	return out, nil
}

func (s *session) RevertToVersion(ctx context.Context, addr types.Address, id string) (types.Entry, error) {
	const op = "revert_to_version"
	unlock, err := s.begin(ctx, op, addr)
	if err != nil {
		return types.Entry{}, err
	}
	defer unlock()

	n, err := s.d.versionFile(op, addr)
	if err != nil {
		return types.Entry{}, err
	}
	if id == strconv.Itoa(n.revision) {
		return s.d.entry(n), nil
	}
	i := n.findRevision(id)
	if i < 0 {
		return types.Entry{}, provider.Errorf(provider.KindEntryNotFound, op, addr, "no revision "+id)
	}
	r := n.history[i]
	data, err := s.d.readBlob(r.blob)
	if err != nil {
		return types.Entry{}, err
	}
	if err := s.d.store(op, n, data, r.contentType); err != nil {
		return types.Entry{}, err
	}
	return s.d.entry(n), nil
}

func (s *session) DeleteVersion(ctx context.Context, addr types.Address, id string) error {
	const op = "delete_version"
	unlock, err := s.begin(ctx, op, addr)
	if err != nil {
		return err
	}
	defer unlock()

	n, err := s.d.versionFile(op, addr)
	if err != nil {
		return err
	}
	if id == strconv.Itoa(n.revision) {
		return provider.Errorf(provider.KindConflict, op, addr, "cannot delete the current revision")
	}
	i := n.findRevision(id)
	if i < 0 {
		return provider.Errorf(provider.KindEntryNotFound, op, addr, "no revision "+id)
	}
	_ = util.RemoveAll(s.d.fs, n.history[i].blob)
	n.history = slices.Delete(n.history, i, i+1)
	return nil
}
