package capability

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuilderAccumulates(t *testing.T) {
	b := NewBuilder(WebDAV)
	same := b.With(Read).With(WebDAVClass1, WebDAVClass2)
	require.Same(t, b, same)

	s := b.Build()
	assert.True(t, s.Has(Read))
	assert.True(t, s.Has(WebDAVClass2))
	assert.False(t, s.Has(Write))
	assert.True(t, s.SupportsProtocol(WebDAV))
	assert.False(t, s.SupportsProtocol(FTPSFTP))
}

func TestBuildFreezes(t *testing.T) {
	b := NewBuilder(CloudStorageService).With(Read)
	s := b.Build()

	b.With(Write, TrashManagement).Without(Read)

	assert.True(t, s.Has(Read), "published set changed after builder mutation")
	assert.False(t, s.Has(Write))
	assert.False(t, s.Has(TrashManagement))
}

func TestHasIsIdempotent(t *testing.T) {
	s := NewBuilder(LocalFileSystem).With(Read, PermanentDeletion).Build()
	for range 100 {
		assert.True(t, s.Has(PermanentDeletion))
		assert.False(t, s.Has(ListTrash))
	}
}

func TestHasNamespaceCapability(t *testing.T) {
	s := NewBuilder(WebDAV).With(WebDAVAccessControl, ListTrash).Build()

	tests := []struct {
		name string
		ns   Namespace
		flag Flag
		want bool
	}{
		{"matching namespace", NamespaceWebDAV, WebDAVAccessControl, true},
		{"general access control is distinct", NamespaceGeneral, AccessControl, false},
		{"namespace mismatch", NamespaceGeneral, WebDAVAccessControl, false},
		{"trash family", NamespaceTrash, ListTrash, true},
		{"absent", NamespaceWebDAV, WebDAVSearch, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, s.HasNamespaceCapability(tt.ns, tt.flag))
		})
	}
}

func TestCompositeChecks(t *testing.T) {
	s := NewBuilder(WebDAV).With(WebDAVClass1, WebDAVClass2).Build()
	assert.True(t, s.SupportsProtocol(WebDAV) && s.HasNamespaceCapability(NamespaceWebDAV, WebDAVClass2))
	assert.True(t, s.HasAll(WebDAVClass1, WebDAVClass2))
	assert.False(t, s.HasAll(WebDAVClass1, WebDAVClass3))
	assert.True(t, s.HasAny(WebDAVClass3, WebDAVClass1))
	assert.False(t, s.HasAny())
}

func TestFlagsDoNotCollideAcrossNamespaces(t *testing.T) {
	// first flag of every namespace shares bit 0
	s := NewBuilder(FTPSFTP).With(BasicFTP).Build()
	assert.True(t, s.Has(BasicFTP))
	assert.False(t, s.Has(Read))
	assert.False(t, s.Has(TrashManagement))
	assert.False(t, s.Has(S3Compatible))
	assert.Equal(t, []Namespace{NamespaceFTPSFTP}, s.Namespaces())
}

func TestProviderInfo(t *testing.T) {
	info := NewProviderInfo("mem", "Memory drive").
		WithVersion("1.0").
		WithAPIVersion("v3").
		WithCategory("cloud").
		WithTags("test", "cloud", "test").
		WithMetadata("region", "local")

	s := NewBuilder(CloudStorageService).WithProviderInfo(info).Build()
	got, ok := s.ProviderInfo()
	require.True(t, ok)
	assert.Equal(t, "mem", got.ID)
	assert.Equal(t, []string{"cloud", "test"}, got.Tags())
	assert.Empty(t, got.WebsiteURL)

	// copies never leak back into the set
	md := got.Metadata()
	md["region"] = "changed"
	again, _ := s.ProviderInfo()
	v, _ := again.MetadataValue("region")
	assert.Equal(t, "local", v)

	_, ok = NewBuilder(WebDAV).Build().ProviderInfo()
	assert.False(t, ok)
}

func TestParseFlag(t *testing.T) {
	tests := []struct {
		in      string
		want    Flag
		wantErr bool
	}{
		{in: "general.read", want: Read},
		{in: "read", want: Read},
		{in: "list_trash", want: ListTrash},
		{in: "webdav.search", want: WebDAVSearch},
		{in: "cloudstorage.s3_compatible", want: S3Compatible},
		{in: "search", wantErr: true},
		{in: "nope", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFlag(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNilSet(t *testing.T) {
	var s *Set
	assert.False(t, s.Has(Read))
	assert.Nil(t, s.Flags())
}

func TestWithoutAndHasNamespace(t *testing.T) {
	s := NewBuilder(LocalFileSystem).With(Read, Write, ListTrash).Without(Write, ListTrash).Build()

	assert.True(t, s.Has(Read))
	assert.False(t, s.Has(Write))
	assert.True(t, s.HasNamespace(NamespaceGeneral))
	assert.False(t, s.HasNamespace(NamespaceTrash), "namespace emptied by Without")
	assert.False(t, (*Set)(nil).HasNamespace(NamespaceGeneral))
}

func TestKnown(t *testing.T) {
	flags := Known()
	assert.Contains(t, flags, Read)
	assert.Contains(t, flags, ListTrash)
	assert.Contains(t, flags, S3Compatible)

	seen := map[string]bool{}
	for i, f := range flags {
		key := string(f.Namespace()) + "." + f.Name()
		assert.False(t, seen[key], "duplicate %s", key)
		seen[key] = true
		if i > 0 && flags[i-1].Namespace() == f.Namespace() {
			assert.Less(t, flags[i-1].bit, f.bit)
		}
	}
}
