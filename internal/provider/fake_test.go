package provider

import (
	"context"
	"io"
	"strings"
	"sync"

	"github.com/babarot/kura/internal/capability"
	"github.com/babarot/kura/internal/core/types"
)

// fakeProvider hands out fakeSessions and counts every backend call
type fakeProvider struct {
	caps   *capability.Set
	policy TrashPolicy

	connectErr error
	closeErr   error

	mu       sync.Mutex
	calls    map[string]int
	sessions []*fakeSession
}

func newFakeProvider(caps *capability.Set, policy TrashPolicy) *fakeProvider {
	return &fakeProvider{caps: caps, policy: policy, calls: map[string]int{}}
}

func (p *fakeProvider) ID() string                    { return "fake" }
func (p *fakeProvider) Capabilities() *capability.Set { return p.caps }

func (p *fakeProvider) ParseAddress(raw string) (types.Address, error) {
	return types.Path(raw), nil
}

func (p *fakeProvider) Connect(context.Context) (Session, error) {
	if p.connectErr != nil {
		return nil, p.connectErr
	}
	s := &fakeSession{p: p}
	p.mu.Lock()
	p.sessions = append(p.sessions, s)
	p.mu.Unlock()
	return s, nil
}

func (p *fakeProvider) record(op string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls[op]++
}

func (p *fakeProvider) total() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for op, c := range p.calls {
		if op != "close" {
			n += c
		}
	}
	return n
}

func (p *fakeProvider) count(op string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[op]
}

type fakeSession struct {
	p *fakeProvider
}

func (s *fakeSession) Capabilities() *capability.Set { return s.p.caps }
func (s *fakeSession) Policy() TrashPolicy           { return s.p.policy }

func (s *fakeSession) ListDirectory(context.Context, types.Address, types.ListOptions) (types.Page, error) {
	s.p.record("list_directory")
	return types.Page{}, nil
}

func (s *fakeSession) ReadFile(context.Context, types.Address, types.ReadOptions) (io.ReadCloser, error) {
	s.p.record("read_file")
	return io.NopCloser(strings.NewReader("data")), nil
}

func (s *fakeSession) WriteFile(_ context.Context, addr types.Address, _ io.Reader, _ types.WriteOptions) (types.Entry, error) {
	s.p.record("write_file")
	return types.Entry{Address: addr}, nil
}

func (s *fakeSession) Delete(_ context.Context, addr types.Address) (types.Entry, error) {
	s.p.record("delete")
	return types.Entry{Address: addr, Status: types.StatusPermanentlyDeleted}, nil
}

func (s *fakeSession) GetMetadata(_ context.Context, addr types.Address) (types.Entry, error) {
	s.p.record("get_metadata")
	return types.Entry{Address: addr}, nil
}

func (s *fakeSession) EntryExists(context.Context, types.Address) (bool, error) {
	s.p.record("entry_exists")
	return true, nil
}

func (s *fakeSession) CreateFolder(_ context.Context, addr types.Address, _ types.WriteOptions) (types.Entry, error) {
	s.p.record("create_folder")
	return types.Entry{Address: addr, IsDir: true}, nil
}

func (s *fakeSession) Move(_ context.Context, _, dst types.Address, _ types.MoveOptions) (types.Entry, error) {
	s.p.record("move")
	return types.Entry{Address: dst}, nil
}

func (s *fakeSession) Close() error {
	s.p.record("close")
	return s.p.closeErr
}

func (s *fakeSession) ListDeleted(context.Context, types.ListOptions) (TrashPage, error) {
	s.p.record("list_deleted")
	return TrashPage{}, nil
}

func (s *fakeSession) TrashStat(context.Context, types.Address) (TrashRecord, error) {
	s.p.record("trash_stat")
	return TrashRecord{}, nil
}

func (s *fakeSession) Restore(_ context.Context, addr types.Address, _ RestoreOptions) (types.Entry, error) {
	s.p.record("restore")
	return types.Entry{Address: addr}, nil
}

func (s *fakeSession) PermanentlyDelete(context.Context, types.Address, bool) (types.Status, error) {
	s.p.record("permanently_delete")
	return types.StatusPermanentlyDeleted, nil
}

func (s *fakeSession) EmptyTrash(context.Context) error {
	s.p.record("empty_trash")
	return nil
}

func (s *fakeSession) ListVersions(context.Context, types.Address) ([]Version, error) {
	s.p.record("list_versions")
	return []Version{{ID: "2", Current: true}, {ID: "1"}}, nil
}

func (s *fakeSession) RevertToVersion(_ context.Context, addr types.Address, id string) (types.Entry, error) {
	s.p.record("revert_to_version")
	return types.Entry{Address: addr, Revision: id}, nil
}

func (s *fakeSession) DeleteVersion(context.Context, types.Address, string) error {
	s.p.record("delete_version")
	return nil
}
