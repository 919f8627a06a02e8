// Package memdrive is an in-process, id addressed cloud drive. It keeps
// its content in a billy memory filesystem and implements the full
// trash family, including two-stage purge, tiered retention, quota
// eviction and server-side expiry, so the lifecycle can be exercised
// without a network.
package memdrive

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/babarot/kura/internal/capability"
	"github.com/babarot/kura/internal/core/types"
	"github.com/babarot/kura/internal/provider"
	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/google/uuid"
)

const (
	defaultPageSize = 100
	blobDir         = "blobs"
	uploadDir       = "uploads"
	evictionBuffer  = 64
	versionLimit    = 10

	// NativeDocument is the content type of entries that have no byte size
	NativeDocument = "application/vnd.kura.document"
)

// FaultFunc may fail an operation before the drive touches its state
type FaultFunc func(op string, addr types.Address) error

// Option configures a Drive
type Option func(*Drive)

// WithClock sets the server clock used for timestamps and expiry
func WithClock(now func() time.Time) Option {
	return func(d *Drive) { d.clock = now }
}

// WithoutTrash makes delete permanent
func WithoutTrash() Option {
	return func(d *Drive) { d.trash = false }
}

// WithRetention sets a fixed retention window
func WithRetention(window time.Duration) Option {
	return func(d *Drive) { d.retention = provider.FixedRetention(window) }
}

// WithTiers makes retention depend on the account tier
func WithTiers(tier string, windows map[string]time.Duration) Option {
	return func(d *Drive) {
		d.SetTier(tier)
		d.retention = provider.TierRetention{
			Tier:      func(context.Context) (string, error) { return d.Tier(), nil },
			Durations: windows,
		}
	}
}

// WithTwoStage requires a privileged second purge
func WithTwoStage() Option {
	return func(d *Drive) { d.twoStage = true }
}

// WithNativeEmptyTrash advertises a single call empty trash
func WithNativeEmptyTrash() Option {
	return func(d *Drive) { d.nativeEmpty = true }
}

// WithCapacity bounds total storage. When trashPercent > 0 the drive
// evicts trashed entries once trash exceeds that share of capacity.
func WithCapacity(bytes int64, trashPercent int) Option {
	return func(d *Drive) {
		d.capacity = bytes
		d.trashPercent = trashPercent
	}
}

// WithPageSize sets the default listing page size
func WithPageSize(n int) Option {
	return func(d *Drive) { d.pageSize = n }
}

// WithFaultInjector installs a hook that can fail any operation
func WithFaultInjector(f FaultFunc) Option {
	return func(d *Drive) { d.fault = f }
}

// WithInfo overrides the provider info
func WithInfo(info capability.ProviderInfo) Option {
	return func(d *Drive) { d.info = info }
}

// WithVersionLimit caps the prior revisions kept per file. Zero keeps
// none and drops the versioning capability.
func WithVersionLimit(n int) Option {
	return func(d *Drive) { d.versionLimit = max(n, 0) }
}

func WithLogger(l *slog.Logger) Option {
	return func(d *Drive) { d.log = l }
}

// Drive is the provider
type Drive struct {
	id string

	mu      sync.Mutex
	fs      billy.Filesystem
	nodes   map[string]*node
	rootID  string
	uploads map[string]*upload

	clock    func() time.Time
	tier     atomic.Pointer[string]
	pageSize int
	fault    FaultFunc
	info     capability.ProviderInfo
	log      *slog.Logger

	trash        bool
	retention    provider.Retention
	twoStage     bool
	nativeEmpty  bool
	capacity     int64
	trashPercent int
	versionLimit int

	events chan provider.Eviction
}

// New returns an empty drive
func New(id string, opts ...Option) *Drive {
	d := &Drive{
		id:           id,
		fs:           memfs.New(),
		nodes:        map[string]*node{},
		uploads:      map[string]*upload{},
		clock:        time.Now,
		pageSize:     defaultPageSize,
		trash:        true,
		versionLimit: versionLimit,
		retention:    provider.NoRetention{},
		info: capability.NewProviderInfo(id, "Memory drive").
			WithVersion("1.0.0").
			WithAPIVersion("v1").
			WithCategory("cloud_drive").
			WithTags("memory", "id-addressed"),
		log:    slog.Default(),
		events: make(chan provider.Eviction, evictionBuffer),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.pageSize <= 0 {
		d.pageSize = defaultPageSize
	}

	now := d.clock()
	root := &node{id: newID(), dir: true, created: now, modified: now}
	d.rootID = root.id
	d.nodes[root.id] = root
	d.log = d.log.With("provider", id)
	return d
}

func (d *Drive) ID() string { return d.id }

// Tier returns the current account tier
func (d *Drive) Tier() string {
	if t := d.tier.Load(); t != nil {
		return *t
	}
	return ""
}

// SetTier changes the account tier; it affects later deletes only
func (d *Drive) SetTier(tier string) {
	d.tier.Store(&tier)
}

// Capabilities builds a fresh set from the current configuration
func (d *Drive) Capabilities() *capability.Set {
	b := capability.ReadWrite(capability.CloudStorageService).
		With(capability.Seek, capability.ContentHash, capability.ResumableUpload).
		WithIf(d.versionLimit > 0, capability.Versioning).
		WithProviderInfo(d.info)
	if d.trash {
		b.With(capability.TrashManagement, capability.ListTrash, capability.FileRestoration,
			capability.PermanentDeletion, capability.TrashMetadata).
			WithIf(d.nativeEmpty, capability.EmptyTrash)
	} else {
		b.With(capability.PermanentDeletion)
	}
	return b.Build()
}

// Policy is the trash policy the drive declares
func (d *Drive) Policy() provider.TrashPolicy {
	if !d.trash {
		return provider.NoTrash()
	}
	return provider.TrashPolicy{
		Enabled:          true,
		Retention:        d.retention,
		TwoStage:         d.twoStage,
		QuotaBasedPurge:  d.capacity > 0 && d.trashPercent > 0,
		NativeEmptyTrash: d.nativeEmpty,
	}
}

// ParseAddress accepts "id:<id>" or a slash separated path
func (d *Drive) ParseAddress(raw string) (types.Address, error) {
	raw = strings.TrimSpace(raw)
	if id, ok := strings.CutPrefix(raw, "id:"); ok {
		if id == "" {
			return types.Address{}, provider.Errorf(provider.KindInvalidAddress, "parse_address", types.Address{}, "empty id")
		}
		return types.ID(id), nil
	}
	if raw == "" {
		raw = "/"
	}
	if !strings.HasPrefix(raw, "/") {
		raw = "/" + raw
	}
	return types.Path(raw), nil
}

// Connect opens a session; the capability set is built at this moment
func (d *Drive) Connect(ctx context.Context) (provider.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := d.check("connect", types.Address{}); err != nil {
		return nil, err
	}
	return &session{d: d, caps: d.Capabilities(), policy: d.Policy()}, nil
}

// RootID returns the id of the root folder
func (d *Drive) RootID() string { return d.rootID }

func (d *Drive) check(op string, addr types.Address) error {
	if d.fault == nil {
		return nil
	}
	return d.fault(op, addr)
}

func newID() string { return uuid.NewString() }
