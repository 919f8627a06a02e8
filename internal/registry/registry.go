// Package registry keeps the configured providers and routes requests
// to them. A Registry is a plain value; there is no package level one.
package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/babarot/kura/internal/core/types"
	"github.com/babarot/kura/internal/provider"
	"github.com/babarot/kura/internal/trash"
	"github.com/gobwas/glob"
	"github.com/samber/lo"
)

// ErrAmbiguous is wrapped by Detect when more than one provider claims
// an address
var ErrAmbiguous = errors.New("address matches more than one provider")

type Option func(*Registry)

func WithLogger(l *slog.Logger) Option {
	return func(r *Registry) { r.log = l }
}

// WithEngine sets the engine that delete, restore and purge go through
func WithEngine(e *trash.Engine) Option {
	return func(r *Registry) { r.engine = e }
}

// WithConnOptions are passed to every connection the registry opens
func WithConnOptions(opts ...provider.ConnOption) Option {
	return func(r *Registry) { r.connOpts = append(r.connOpts, opts...) }
}

type registration struct {
	provider provider.Provider
	patterns []string
	globs    []glob.Glob
}

func (reg registration) match(raw string) bool {
	return lo.SomeBy(reg.globs, func(g glob.Glob) bool { return g.Match(raw) })
}

type Registry struct {
	mu    sync.RWMutex
	byID  map[string]registration
	order []string

	engine   *trash.Engine
	connOpts []provider.ConnOption
	log      *slog.Logger
}

func New(opts ...Option) *Registry {
	r := &Registry{
		byID: make(map[string]registration),
		log:  slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Engine returns the configured trash engine, or nil
func (r *Registry) Engine() *trash.Engine { return r.engine }

// Register adds p under id. patterns are slash separated globs used by
// Detect; a provider without patterns is only reachable by id.
func (r *Registry) Register(id string, p provider.Provider, patterns ...string) error {
	if id == "" {
		id = p.ID()
	}
	globs := make([]glob.Glob, 0, len(patterns))
	for _, pat := range patterns {
		g, err := glob.Compile(pat, '/')
		if err != nil {
			return fmt.Errorf("provider %s: invalid pattern %q: %w", id, pat, err)
		}
		globs = append(globs, g)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[id]; ok {
		return &provider.Error{
			Op:       "register",
			Provider: id,
			Kind:     provider.KindAlreadyExists,
			Err:      fmt.Errorf("%w: provider %s is already registered", provider.ErrAlreadyExists, id),
		}
	}
	r.byID[id] = registration{provider: p, patterns: patterns, globs: globs}
	r.order = append(r.order, id)
	r.log.Debug("provider registered", "id", id, "patterns", strings.Join(patterns, ","))
	return nil
}

func notFound(id string, err error) error {
	if err == nil {
		err = provider.ErrProviderNotFound
	} else {
		err = fmt.Errorf("%w: %w", provider.ErrProviderNotFound, err)
	}
	return &provider.Error{Op: "get_provider", Provider: id, Kind: provider.KindProviderNotFound, Err: err}
}

// Get returns the provider registered under id
func (r *Registry) Get(id string) (provider.Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	reg, ok := r.byID[id]
	if !ok {
		return nil, notFound(id, nil)
	}
	return reg.provider, nil
}

// IDs lists the registered ids in registration order
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// Patterns returns the detection patterns of id
func (r *Registry) Patterns(id string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.byID[id].patterns...)
}

// Detect picks the one provider whose patterns match raw and parses raw
// with it. It never falls back to a default.
func (r *Registry) Detect(raw string) (provider.Provider, types.Address, error) {
	r.mu.RLock()
	matches := lo.Filter(r.order, func(id string, _ int) bool {
		return r.byID[id].match(raw)
	})
	r.mu.RUnlock()

	switch len(matches) {
	case 0:
		return nil, types.Address{}, notFound("", fmt.Errorf("no provider matches %q", raw))
	case 1:
	default:
		return nil, types.Address{}, notFound("", fmt.Errorf("%w: %q is claimed by %s",
			ErrAmbiguous, raw, strings.Join(matches, ", ")))
	}

	p, err := r.Get(matches[0])
	if err != nil {
		return nil, types.Address{}, err
	}
	addr, err := p.ParseAddress(raw)
	if err != nil {
		return nil, types.Address{}, provider.Wrap("parse_address", p.ID(), types.Path(raw), err)
	}
	return p, addr, nil
}

// Resolve returns the provider and address for raw. With an id the
// provider is looked up directly, otherwise it is detected.
func (r *Registry) Resolve(id, raw string) (provider.Provider, types.Address, error) {
	if id == "" {
		return r.Detect(raw)
	}
	p, err := r.Get(id)
	if err != nil {
		return nil, types.Address{}, err
	}
	addr, err := p.ParseAddress(raw)
	if err != nil {
		return nil, types.Address{}, provider.Wrap("parse_address", id, types.Path(raw), err)
	}
	return p, addr, nil
}

// WithSession connects the provider id, runs fn and closes the session
func (r *Registry) WithSession(ctx context.Context, id string, fn func(*provider.Conn) error) error {
	p, err := r.Get(id)
	if err != nil {
		return err
	}
	return provider.With(ctx, p, fn, r.connOpts...)
}
