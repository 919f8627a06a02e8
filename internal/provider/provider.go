// Package provider defines the contract every storage backend satisfies
// and the gated connection callers use to reach it.
package provider

import (
	"context"
	"io"
	"time"

	"github.com/babarot/kura/internal/capability"
	"github.com/babarot/kura/internal/core/types"
)

// Provider is a configured backend. It is cheap to hold; Connect does
// the expensive part.
type Provider interface {
	// ID is the stable provider id
	ID() string

	// Capabilities is what the provider declares before connecting.
	// A session may narrow it.
	Capabilities() *capability.Set

	// ParseAddress converts a raw user string into this backend's
	// addressing mode
	ParseAddress(raw string) (types.Address, error)

	// Connect opens a session. The caller must Close it.
	Connect(ctx context.Context) (Session, error)
}

// Session is a connected backend. Required operations only.
type Session interface {
	// Capabilities is fixed for the lifetime of the session
	Capabilities() *capability.Set
	Policy() TrashPolicy

	ListDirectory(ctx context.Context, addr types.Address, opts types.ListOptions) (types.Page, error)
	ReadFile(ctx context.Context, addr types.Address, opts types.ReadOptions) (io.ReadCloser, error)
	WriteFile(ctx context.Context, addr types.Address, r io.Reader, opts types.WriteOptions) (types.Entry, error)

	// Delete is the backend's own delete primitive: it moves the entry
	// to trash when the backend has one, and removes it otherwise. The
	// returned entry carries the resulting status and, for trashed
	// entries, the address under which the trash knows it.
	Delete(ctx context.Context, addr types.Address) (types.Entry, error)

	GetMetadata(ctx context.Context, addr types.Address) (types.Entry, error)
	EntryExists(ctx context.Context, addr types.Address) (bool, error)
	CreateFolder(ctx context.Context, addr types.Address, opts types.WriteOptions) (types.Entry, error)
	Move(ctx context.Context, src, dst types.Address, opts types.MoveOptions) (types.Entry, error)

	Close() error
}

// RestoreOptions tells the backend where to put a trashed entry back
type RestoreOptions struct {
	Destination types.Address
	Overwrite   bool
}

// TrashSession is implemented by sessions whose backend has a trash
type TrashSession interface {
	ListDeleted(ctx context.Context, opts types.ListOptions) (TrashPage, error)

	// TrashStat returns the current record. It fails with
	// KindEntryNotFound once the backend no longer holds the entry.
	TrashStat(ctx context.Context, addr types.Address) (TrashRecord, error)

	Restore(ctx context.Context, addr types.Address, opts RestoreOptions) (types.Entry, error)

	// PermanentlyDelete returns the status the entry reached
	PermanentlyDelete(ctx context.Context, addr types.Address, privileged bool) (types.Status, error)

	EmptyTrash(ctx context.Context) error
}

// UploadState is the server-side view of a resumable upload
type UploadState struct {
	Token     string
	Target    types.Address
	Committed int64
	StartedAt time.Time
}

// UploadSession is implemented by sessions that accept chunked uploads.
// Nothing is visible at the target until CompleteUpload.
type UploadSession interface {
	StartUpload(ctx context.Context, addr types.Address, opts types.WriteOptions) (UploadState, error)

	// UploadChunk appends data at offset. offset must equal the committed
	// size; bytes already committed are never discarded.
	UploadChunk(ctx context.Context, token string, offset int64, data []byte) (UploadState, error)

	UploadStatus(ctx context.Context, token string) (UploadState, error)
	CompleteUpload(ctx context.Context, token string) (types.Entry, error)
	AbortUpload(ctx context.Context, token string) error
}

// Eviction reports an entry the backend purged on its own
type Eviction struct {
	Record    TrashRecord
	Reason    string
	EvictedAt time.Time
}

// EvictionSource is implemented by sessions whose backend purges trash
// when its quota runs out
type EvictionSource interface {
	Evictions() <-chan Eviction
}

// Version is one stored revision of a file
type Version struct {
	ID          string
	CreatedAt   time.Time
	Size        int64
	ContentHash *types.ContentHash

	// Current marks the revision the file holds now
	Current bool
}

// VersionSession is implemented by sessions that keep prior revisions of
// a file. Reverting stores the chosen revision as a new current one, so
// history is never rewritten.
type VersionSession interface {
	// ListVersions returns every revision of the file, newest first
	ListVersions(ctx context.Context, addr types.Address) ([]Version, error)

	RevertToVersion(ctx context.Context, addr types.Address, id string) (types.Entry, error)

	// DeleteVersion drops a prior revision. The current one cannot be
	// deleted.
	DeleteVersion(ctx context.Context, addr types.Address, id string) error
}
