package capability

import (
	"maps"
	"slices"
	"strings"
)

// Set is an immutable capability description. A Set published for a
// session never changes; reconnecting produces a new Set.
type Set struct {
	bits     map[Namespace]uint64
	protocol ProtocolType
	info     *ProviderInfo
}

// Has reports whether f is present
func (s *Set) Has(f Flag) bool {
	if s == nil || f.name == "" {
		return false
	}
	return s.bits[f.ns]&f.mask() != 0
}

// HasNamespaceCapability reports whether f is present and belongs to ns
func (s *Set) HasNamespaceCapability(ns Namespace, f Flag) bool {
	return f.ns == ns && s.Has(f)
}

// HasNamespace reports whether any flag of ns is present
func (s *Set) HasNamespace(ns Namespace) bool {
	return s != nil && s.bits[ns] != 0
}

func (s *Set) HasAll(flags ...Flag) bool {
	for _, f := range flags {
		if !s.Has(f) {
			return false
		}
	}
	return true
}

func (s *Set) HasAny(flags ...Flag) bool {
	for _, f := range flags {
		if s.Has(f) {
			return true
		}
	}
	return false
}

// SupportsProtocol reports whether the declared protocol is p
func (s *Set) SupportsProtocol(p ProtocolType) bool {
	return s != nil && s.protocol == p
}

func (s *Set) Protocol() ProtocolType {
	if s == nil {
		return LocalFileSystem
	}
	return s.protocol
}

// ProviderInfo returns a copy of the embedded info, if any
func (s *Set) ProviderInfo() (ProviderInfo, bool) {
	if s == nil || s.info == nil {
		return ProviderInfo{}, false
	}
	return s.info.clone(), true
}

// Flags lists every present flag
func (s *Set) Flags() []Flag {
	if s == nil {
		return nil
	}
	var flags []Flag
	for _, f := range known {
		if s.Has(f) {
			flags = append(flags, f)
		}
	}
	sortFlags(flags)
	return flags
}

// Namespaces lists namespaces with at least one flag
func (s *Set) Namespaces() []Namespace {
	if s == nil {
		return nil
	}
	var out []Namespace
	for ns, bits := range s.bits {
		if bits != 0 {
			out = append(out, ns)
		}
	}
	slices.Sort(out)
	return out
}

func (s *Set) String() string {
	names := make([]string, 0)
	for _, f := range s.Flags() {
		names = append(names, f.String())
	}
	return s.Protocol().String() + "{" + strings.Join(names, ",") + "}"
}

// Builder accumulates flags. Every method returns the same builder.
type Builder struct {
	bits     map[Namespace]uint64
	protocol ProtocolType
	info     *ProviderInfo
}

// NewBuilder starts a set for the given protocol
func NewBuilder(p ProtocolType) *Builder {
	return &Builder{bits: map[Namespace]uint64{}, protocol: p}
}

// From starts a builder pre-filled with s
func From(s *Set) *Builder {
	b := NewBuilder(s.Protocol())
	if s != nil {
		b.bits = maps.Clone(s.bits)
		if s.info != nil {
			info := s.info.clone()
			b.info = &info
		}
	}
	return b
}

func (b *Builder) With(flags ...Flag) *Builder {
	for _, f := range flags {
		if f.name == "" {
			continue
		}
		b.bits[f.ns] |= f.mask()
	}
	return b
}

func (b *Builder) Without(flags ...Flag) *Builder {
	for _, f := range flags {
		b.bits[f.ns] &^= f.mask()
	}
	return b
}

// WithIf adds flags only when cond holds
func (b *Builder) WithIf(cond bool, flags ...Flag) *Builder {
	if cond {
		return b.With(flags...)
	}
	return b
}

func (b *Builder) WithProtocol(p ProtocolType) *Builder {
	b.protocol = p
	return b
}

func (b *Builder) WithProviderInfo(info ProviderInfo) *Builder {
	info = info.clone()
	b.info = &info
	return b
}

// Build finalizes the builder. The returned set shares nothing with b,
// so later builder calls do not affect it.
func (b *Builder) Build() *Set {
	s := &Set{
		bits:     make(map[Namespace]uint64, len(b.bits)),
		protocol: b.protocol,
	}
	for ns, bits := range b.bits {
		if bits != 0 {
			s.bits[ns] = bits
		}
	}
	if b.info != nil {
		info := b.info.clone()
		s.info = &info
	}
	return s
}

// ReadOnly is the common read-only profile
func ReadOnly(p ProtocolType) *Builder {
	return NewBuilder(p).With(Read, List, Metadata, Stream)
}

// ReadWrite is ReadOnly plus write, create, delete and move
func ReadWrite(p ProtocolType) *Builder {
	return ReadOnly(p).With(Write, Create, Delete, Move, Copy)
}
