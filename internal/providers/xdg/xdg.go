// Package xdg serves a local directory whose deletes go to the
// freedesktop.org trash: the home trash, or $topdir/.Trash-$uid for
// entries on another device.
package xdg

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/babarot/kura/internal/capability"
	"github.com/babarot/kura/internal/core/types"
	"github.com/babarot/kura/internal/provider"
	"github.com/babarot/kura/internal/providers/local"
)

type Option func(*Provider)

// WithTrashDir overrides the home trash ($XDG_DATA_HOME/Trash)
func WithTrashDir(dir string) Option {
	return func(p *Provider) { p.homeDir = dir }
}

// WithRetention declares how long entries are kept. Nothing enforces
// it on disk; it only sets deadlines on records.
func WithRetention(d time.Duration) Option {
	return func(p *Provider) { p.retention = d }
}

// WithExternalTrash enables $topdir trashes for other devices
func WithExternalTrash(enabled bool) Option {
	return func(p *Provider) { p.external = enabled }
}

func WithClock(now func() time.Time) Option {
	return func(p *Provider) { p.clock = now }
}

func WithLogger(l *slog.Logger) Option {
	return func(p *Provider) { p.log = l }
}

// Provider is a local directory with an XDG trash
type Provider struct {
	*local.Provider

	homeDir   string
	retention time.Duration
	external  bool
	clock     func() time.Time
	log       *slog.Logger

	home      *location
	locations []*location
	info      capability.ProviderInfo
}

type location struct {
	root  string
	files string
	info  string
	mount string
}

func newLocation(root, mount string) *location {
	return &location{
		root:  root,
		files: filepath.Join(root, "files"),
		info:  filepath.Join(root, "info"),
		mount: mount,
	}
}

func (l *location) create() error {
	for _, dir := range []string{l.files, l.info} {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("create trash directory: %w", err)
		}
	}
	return nil
}

func (l *location) infoPath(name string) string {
	return filepath.Join(l.info, name+trashInfoExt)
}

// New returns a provider serving root
func New(id, root string, opts ...Option) (*Provider, error) {
	p := &Provider{
		external: true,
		clock:    time.Now,
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	base, err := local.New(id, root, local.WithLogger(p.log))
	if err != nil {
		return nil, err
	}
	p.Provider = base
	p.log = p.log.With("provider", id)

	if p.homeDir == "" {
		p.homeDir, err = defaultHomeTrash()
		if err != nil {
			return nil, err
		}
	}
	p.home = newLocation(p.homeDir, "")
	if err := p.home.create(); err != nil {
		return nil, err
	}
	p.locations = []*location{p.home}

	if p.external {
		if loc := p.externalFor(base.Root()); loc != nil {
			if err := loc.create(); err != nil {
				p.log.Warn("external trash unusable, using home trash", "trash", loc.root, "error", err)
			} else {
				p.locations = append(p.locations, loc)
			}
		}
	}

	p.info = base.Info().
		WithMetadata("trash_dir", p.homeDir).
		WithTags("xdg-trash")
	return p, nil
}

func defaultHomeTrash() (string, error) {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataDir, "Trash"), nil
}

// externalFor returns the $topdir trash for path when path is on another
// device than the home trash, or nil when the home trash serves it
func (p *Provider) externalFor(path string) *location {
	if same, err := sameDevice(path, p.home.root); err != nil || same {
		return nil
	}
	mount, err := mountPoint(path)
	if err != nil {
		p.log.Debug("mount lookup failed", "path", path, "error", err)
		return nil
	}
	uid := strconv.Itoa(os.Getuid())

	shared := filepath.Join(mount, ".Trash")
	if validExternalTrash(shared) {
		return newLocation(filepath.Join(shared, uid), mount)
	}
	return newLocation(filepath.Join(mount, ".Trash-"+uid), mount)
}

func (p *Provider) Capabilities() *capability.Set {
	return local.Capabilities(p.info).
		With(capability.TrashManagement, capability.ListTrash, capability.FileRestoration,
			capability.TrashMetadata, capability.EmptyTrash).
		Build()
}

func (p *Provider) policy() provider.TrashPolicy {
	pol := provider.TrashPolicy{
		Enabled:          true,
		Retention:        provider.NoRetention{},
		NativeEmptyTrash: true,
	}
	if p.retention > 0 {
		pol.Retention = provider.FixedRetention(p.retention)
	}
	return pol
}

// ParseAddress accepts "id:<trash path>" for trashed entries and
// root relative paths otherwise
func (p *Provider) ParseAddress(raw string) (types.Address, error) {
	if id, ok := strings.CutPrefix(strings.TrimSpace(raw), "id:"); ok {
		if _, _, err := p.trashed(id); err != nil {
			return types.Address{}, provider.NewError(provider.KindInvalidAddress, "parse_address", types.ID(id), err)
		}
		return types.ID(id), nil
	}
	return p.Provider.ParseAddress(raw)
}

// trashed splits a trash id into its location and name
func (p *Provider) trashed(id string) (*location, string, error) {
	dir, name := filepath.Split(filepath.Clean(id))
	dir = filepath.Clean(dir)
	for _, loc := range p.locations {
		if loc.files == dir && name != "" {
			return loc, name, nil
		}
	}
	return nil, "", fmt.Errorf("%s is not inside a known trash", id)
}

func (p *Provider) Connect(ctx context.Context) (provider.Session, error) {
	if _, err := p.Provider.Connect(ctx); err != nil {
		return nil, err
	}
	if err := p.home.create(); err != nil {
		return nil, err
	}
	return &session{Session: p.Provider.Session(), p: p, caps: p.Capabilities()}, nil
}
