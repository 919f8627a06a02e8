// Package local serves a directory tree on the local disk. Delete is
// immediate: the backend has no trash of its own.
package local

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"

	"github.com/babarot/kura/internal/capability"
	"github.com/babarot/kura/internal/core/types"
	"github.com/babarot/kura/internal/provider"
	"github.com/moby/sys/mountinfo"
)

const defaultPageSize = 500

type Option func(*Provider)

func WithLogger(l *slog.Logger) Option {
	return func(p *Provider) { p.log = l }
}

// WithDetectContentType sniffs the content type in GetMetadata
func WithDetectContentType(enabled bool) Option {
	return func(p *Provider) { p.detect = enabled }
}

// WithReadOnly drops every writing capability. A root on a read-only
// mount is read-only regardless.
func WithReadOnly(ro bool) Option {
	return func(p *Provider) { p.readOnly = ro }
}

// Provider is a directory rooted local filesystem
type Provider struct {
	id       string
	root     string
	detect   bool
	readOnly bool
	log      *slog.Logger
	info     capability.ProviderInfo
}

// New returns a provider rooted at root, which must be an existing directory
func New(id, root string, opts ...Option) (*Provider, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	fi, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("local provider %s: %w", id, err)
	}
	if !fi.IsDir() {
		return nil, fmt.Errorf("local provider %s: %s is not a directory", id, abs)
	}

	p := &Provider{
		id:     id,
		root:   abs,
		detect: true,
		log:    slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.log = p.log.With("provider", id)

	p.info = capability.NewProviderInfo(id, "Local disk").
		WithCategory("local").
		WithTags("local", "path-addressed").
		WithMetadata("root", abs)
	if m, err := mountOf(abs); err == nil {
		p.info = p.info.WithMetadata("fs_type", m.FSType).WithMetadata("mount_point", m.Mountpoint)
		if slices.Contains(strings.Split(m.Options, ","), "ro") {
			p.readOnly = true
		}
	} else {
		p.log.Debug("mount lookup failed", "root", abs, "error", err)
	}
	return p, nil
}

// mountOf finds the mount holding dir
func mountOf(dir string) (*mountinfo.Info, error) {
	mounts, err := mountinfo.GetMounts(mountinfo.ParentsFilter(dir))
	if err != nil {
		return nil, err
	}
	var best *mountinfo.Info
	for _, m := range mounts {
		if best == nil || len(m.Mountpoint) > len(best.Mountpoint) {
			best = m
		}
	}
	if best == nil {
		return nil, fmt.Errorf("no mount found for %s", dir)
	}
	return best, nil
}

func (p *Provider) ID() string   { return p.id }
func (p *Provider) Root() string { return p.root }

// Capabilities of a plain local directory
func (p *Provider) Capabilities() *capability.Set {
	b := Capabilities(p.info)
	if p.readOnly {
		b.Without(capability.Write, capability.Create, capability.Delete,
			capability.Move, capability.Copy, capability.PermanentDeletion)
	}
	return b.Build()
}

// Capabilities is the builder shared with providers layered on a local
// directory
func Capabilities(info capability.ProviderInfo) *capability.Builder {
	return capability.ReadWrite(capability.LocalFileSystem).
		With(capability.Seek, capability.PermanentDeletion).
		WithProviderInfo(info)
}

// ParseAddress turns raw into a root relative path
func (p *Provider) ParseAddress(raw string) (types.Address, error) {
	raw = strings.TrimSpace(raw)
	if filepath.IsAbs(raw) && strings.HasPrefix(filepath.Clean(raw), p.root) {
		rel, err := filepath.Rel(p.root, raw)
		if err != nil {
			return types.Address{}, provider.NewError(provider.KindInvalidAddress, "parse_address", types.Path(raw), err)
		}
		raw = filepath.ToSlash(rel)
	}
	return types.Path(path.Clean("/" + raw)), nil
}

func (p *Provider) Connect(ctx context.Context) (provider.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if _, err := os.Stat(p.root); err != nil {
		return nil, err
	}
	return p.Session(), nil
}

// Session returns an unconnected session value; callers layering trash
// on top embed it
func (p *Provider) Session() *Session {
	return &Session{p: p, caps: p.Capabilities()}
}

func (p *Provider) Info() capability.ProviderInfo { return p.info }
