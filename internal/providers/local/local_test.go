package local

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/babarot/kura/internal/capability"
	"github.com/babarot/kura/internal/core/types"
	"github.com/babarot/kura/internal/provider"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T) (string, *provider.Conn) {
	t.Helper()
	root := t.TempDir()
	p, err := New("disk", root)
	require.NoError(t, err)
	conn, err := provider.Open(context.Background(), p)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return root, conn
}

func TestNewRejectsFile(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(f, nil, 0o644))
	_, err := New("disk", f)
	assert.Error(t, err)
}

func TestCapabilities(t *testing.T) {
	_, conn := setup(t)
	caps := conn.Capabilities()
	assert.True(t, caps.SupportsProtocol(capability.LocalFileSystem))
	assert.True(t, caps.HasAll(capability.Read, capability.Write, capability.Seek, capability.PermanentDeletion))
	assert.False(t, caps.HasAny(capability.TrashManagement, capability.ListTrash, capability.FileRestoration))
	assert.False(t, conn.Policy().Enabled)

	info, ok := caps.ProviderInfo()
	require.True(t, ok)
	_, ok = info.MetadataValue("root")
	assert.True(t, ok)
}

func TestParseAddress(t *testing.T) {
	root := t.TempDir()
	p, err := New("disk", root)
	require.NoError(t, err)

	tests := []struct {
		raw  string
		want string
	}{
		{raw: "a/b.txt", want: "/a/b.txt"},
		{raw: "/a/../b", want: "/b"},
		{raw: "../../etc/passwd", want: "/etc/passwd"},
		{raw: filepath.Join(root, "x", "y"), want: "/x/y"},
		{raw: "", want: "/"},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := p.ParseAddress(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, types.Path(tt.want), got)
		})
	}
}

func TestWriteReadDelete(t *testing.T) {
	ctx := context.Background()
	root, conn := setup(t)

	e, err := conn.WriteFile(ctx, types.Path("/docs/a.txt"), strings.NewReader("hello world"),
		types.WriteOptions{CreateParents: true})
	require.NoError(t, err)
	assert.Equal(t, int64(11), e.SizeOrZero())
	assert.Nil(t, e.ContentHash)
	assert.Equal(t, "text/plain; charset=utf-8", e.Metadata["mime_type"].Str())

	rc, err := conn.ReadFile(ctx, e.Address, types.ReadOptions{Offset: 6, Length: 3})
	require.NoError(t, err)
	b, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, "wor", string(b))

	_, err = conn.WriteFile(ctx, e.Address, strings.NewReader("x"), types.WriteOptions{})
	assert.True(t, provider.IsAlreadyExists(err))

	got, err := conn.Delete(ctx, e.Address)
	require.NoError(t, err)
	assert.Equal(t, types.StatusPermanentlyDeleted, got.Status)
	_, err = os.Stat(filepath.Join(root, "docs", "a.txt"))
	assert.True(t, os.IsNotExist(err))

	_, err = conn.GetMetadata(ctx, e.Address)
	assert.True(t, provider.IsEntryNotFound(err))
}

func TestCanceledWriteLeavesNothing(t *testing.T) {
	root, conn := setup(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := conn.WriteFile(ctx, types.Path("/a.txt"), strings.NewReader("data"), types.WriteOptions{})
	require.Error(t, err)

	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestListPaging(t *testing.T) {
	ctx := context.Background()
	root, conn := setup(t)
	for _, name := range []string{"c", "a", "b"} {
		require.NoError(t, os.WriteFile(filepath.Join(root, name), []byte(name), 0o644))
	}

	page, err := conn.ListDirectory(ctx, types.Path("/"), types.ListOptions{PageSize: 2})
	require.NoError(t, err)
	require.Len(t, page.Entries, 2)
	assert.Equal(t, "a", page.Entries[0].Name)
	assert.Equal(t, types.Path("/a"), page.Entries[0].Address)
	require.NotEmpty(t, page.NextToken)

	all, err := conn.List(types.Path("/"), types.ListOptions{PageSize: 2}).All(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestCreateFolderAndMove(t *testing.T) {
	ctx := context.Background()
	root, conn := setup(t)

	_, err := conn.CreateFolder(ctx, types.Path("/dir"), types.WriteOptions{})
	require.NoError(t, err)
	_, err = conn.CreateFolder(ctx, types.Path("/dir"), types.WriteOptions{})
	assert.True(t, provider.IsAlreadyExists(err))

	require.NoError(t, os.WriteFile(filepath.Join(root, "f"), []byte("x"), 0o644))
	e, err := conn.Move(ctx, types.Path("/f"), types.Path("/dir/g"), types.MoveOptions{})
	require.NoError(t, err)
	assert.Equal(t, "g", e.Name)

	_, err = conn.Move(ctx, types.Path("/dir"), types.Path("/dir/inner"), types.MoveOptions{})
	assert.Equal(t, provider.KindInvalidAddress, provider.KindOf(err))

	_, err = conn.Move(ctx, types.Path("/missing"), types.Path("/other"), types.MoveOptions{})
	assert.True(t, provider.IsEntryNotFound(err))
}

func TestTrashOperationsUnsupported(t *testing.T) {
	ctx := context.Background()
	_, conn := setup(t)

	_, err := conn.ListDeleted(ctx, types.ListOptions{})
	assert.True(t, provider.IsUnsupportedCapability(err))
	_, err = conn.Restore(ctx, types.Path("/a"), provider.RestoreOptions{})
	assert.True(t, provider.IsUnsupportedCapability(err))
	assert.True(t, provider.IsUnsupportedCapability(conn.EmptyTrash(ctx)))
}

func TestReadOnly(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), []byte("a"), 0o644))

	p, err := New("disk", root, WithReadOnly(true))
	require.NoError(t, err)
	conn, err := provider.Open(ctx, p)
	require.NoError(t, err)
	defer conn.Close()

	caps := conn.Capabilities()
	assert.True(t, caps.HasAll(capability.Read, capability.List))
	assert.False(t, caps.HasAny(capability.Write, capability.Delete, capability.Move, capability.PermanentDeletion))

	_, err = conn.WriteFile(ctx, types.Path("/b.txt"), strings.NewReader("b"), types.WriteOptions{})
	assert.True(t, provider.IsUnsupportedCapability(err))
	_, err = conn.Delete(ctx, types.Path("/a.txt"))
	assert.True(t, provider.IsUnsupportedCapability(err))
	_, err = os.Stat(filepath.Join(root, "a.txt"))
	assert.NoError(t, err)
}
