package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/babarot/kura/internal/config"
	"github.com/babarot/kura/internal/core/types"
	"github.com/babarot/kura/internal/provider"
	"github.com/babarot/kura/internal/providers/memdrive"
	"github.com/babarot/kura/internal/registry"
	"github.com/babarot/kura/internal/trash"
	"github.com/babarot/kura/internal/utils/duration"
	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T, opts ...memdrive.Option) (*CLI, *bytes.Buffer) {
	t.Helper()
	color.NoColor = true

	engine, err := trash.NewEngine(trash.Config{DefaultConflict: trash.ConflictRename})
	require.NoError(t, err)
	reg := registry.New(registry.WithEngine(engine))
	require.NoError(t, reg.Register("drive", memdrive.New("drive", opts...), "/**"))

	var out bytes.Buffer
	return &CLI{
		version:  Version{AppName: "kura", Version: "v0.0.0-test"},
		out:      &out,
		ctx:      context.Background(),
		registry: reg,
		config:   config.Default(),
	}, &out
}

func (c *CLI) must(t *testing.T, args ...string) string {
	t.Helper()
	buf := c.out.(*bytes.Buffer)
	buf.Reset()
	require.NoError(t, c.Run(args))
	return buf.String()
}

func localFile(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestVersion(t *testing.T) {
	c, _ := setup(t)
	out := c.must(t, "--version")
	assert.Contains(t, out, "version:   v0.0.0-test")
	assert.Equal(t, "kura v0.0.0-test ()", c.version.String())
}

func TestFileCommands(t *testing.T) {
	c, _ := setup(t)
	src := localFile(t, "hello.txt", "hello world")

	out := c.must(t, "mkdir", "/docs")
	assert.Contains(t, out, "created /docs")

	out = c.must(t, "put", src, "/docs/hello.txt")
	assert.Contains(t, out, "wrote")

	assert.Error(t, c.Run([]string{"put", src, "/docs/hello.txt"}), "existing target without --overwrite")
	c.must(t, "put", "--overwrite", src, "/docs/hello.txt")

	out = c.must(t, "cat", "/docs/hello.txt")
	assert.Equal(t, "hello world", out)

	out = c.must(t, "cat", "--offset", "6", "--length", "3", "/docs/hello.txt")
	assert.Equal(t, "wor", out)

	out = c.must(t, "ls", "/docs")
	assert.Contains(t, out, "hello.txt")

	c.must(t, "mv", "/docs/hello.txt", "/docs/bye.txt")
	out = c.must(t, "ls", "/docs")
	assert.Contains(t, out, "bye.txt")
	assert.NotContains(t, out, "hello.txt")
}

func TestListPages(t *testing.T) {
	c, _ := setup(t, memdrive.WithPageSize(1))
	src := localFile(t, "x", "x")
	for _, n := range []string{"/a", "/b", "/c"} {
		c.must(t, "put", src, n)
	}

	out := c.must(t, "ls", "/")
	assert.Contains(t, out, "more: --token")

	out = c.must(t, "ls", "--all", "/")
	assert.NotContains(t, out, "more:")
	for _, n := range []string{"a", "b", "c"} {
		assert.Contains(t, out, n)
	}
}

func TestTrashLifecycle(t *testing.T) {
	c, _ := setup(t, memdrive.WithTwoStage())
	src := localFile(t, "a.txt", "a")
	c.must(t, "put", src, "/a.txt")

	out := c.must(t, "rm", "/a.txt")
	assert.Contains(t, out, "trashed /a.txt")

	out = c.must(t, "status", "/a.txt")
	assert.Contains(t, out, "trashed")
	assert.Contains(t, out, "from:    /a.txt")

	out = c.must(t, "trash")
	assert.Contains(t, out, "a.txt")

	c.must(t, "put", src, "/a.txt")
	out = c.must(t, "restore", "/a.txt")
	assert.Contains(t, out, "a (restored 1).txt")

	c.must(t, "rm", "/a.txt")
	out = c.must(t, "purge", "/a.txt")
	assert.Contains(t, out, "pending_purge")

	err := c.Run([]string{"purge", "/a.txt"})
	assert.True(t, provider.IsPermissionDenied(err))

	out = c.must(t, "empty", "--privileged")
	assert.Contains(t, out, "1 purged, 0 failed")

	out = c.must(t, "trash")
	assert.Contains(t, out, "The trash is empty.")
}

func TestRestoreConflictFlag(t *testing.T) {
	c, _ := setup(t)
	src := localFile(t, "a.txt", "a")
	c.must(t, "put", src, "/a.txt")
	c.must(t, "rm", "/a.txt")
	c.must(t, "put", src, "/a.txt")

	err := c.Run([]string{"restore", "--conflict", "fail", "/a.txt"})
	assert.True(t, provider.IsAlreadyExists(err))

	assert.Error(t, c.Run([]string{"restore", "--conflict", "merge", "/a.txt"}))
}

func TestTrashFilters(t *testing.T) {
	c, _ := setup(t)
	c.config.Core.TrashList.Exclude.Globs = []string{"*.log"}

	src := localFile(t, "x", "x")
	c.must(t, "put", src, "/keep.txt")
	c.must(t, "put", src, "/drop.log")
	c.must(t, "rm", "/keep.txt", "/drop.log")

	out := c.must(t, "trash")
	assert.Contains(t, out, "keep.txt")
	assert.NotContains(t, out, "drop.log")

	out = c.must(t, "trash", "--all")
	assert.Contains(t, out, "drop.log")
}

func TestRmReportsEveryFailure(t *testing.T) {
	c, _ := setup(t)
	src := localFile(t, "x", "x")
	c.must(t, "put", src, "/ok.txt")

	var out bytes.Buffer
	c.out = &out
	err := c.Run([]string{"rm", "/missing-1", "/ok.txt", "/missing-2"})
	require.Error(t, err)
	assert.ErrorContains(t, err, "/missing-1")
	assert.ErrorContains(t, err, "/missing-2")
	assert.Contains(t, out.String(), "trashed /ok.txt")

	err = c.Run([]string{"rm", "/"})
	assert.ErrorIs(t, err, errUnsafePath)
	err = c.Run([]string{"purge", "/docs/.."})
	assert.ErrorIs(t, err, errUnsafePath)
}

func TestWithoutTrash(t *testing.T) {
	c, _ := setup(t, memdrive.WithoutTrash())
	src := localFile(t, "x", "x")
	c.must(t, "put", src, "/x")

	out := c.must(t, "rm", "/x")
	assert.Contains(t, out, "permanently_deleted")

	err := c.Run([]string{"trash"})
	assert.True(t, provider.IsUnsupportedCapability(err))
}

func TestProvidersAndInfo(t *testing.T) {
	c, _ := setup(t, memdrive.WithNativeEmptyTrash(), memdrive.WithRetention(30*duration.Day))

	out := c.must(t, "providers")
	assert.Contains(t, out, "drive")
	assert.Contains(t, out, "cloud_drive")
	assert.Contains(t, out, "yes")

	out = c.must(t, "info")
	assert.Contains(t, out, "trash_management")
	assert.Contains(t, out, "native_empty=true")
	assert.Contains(t, out, "retention=1m")

	out = c.must(t, "info", "--all", "drive")
	assert.Contains(t, out, "versioning")
	assert.Contains(t, out, "shared_folder")
	assert.Regexp(t, `webdav\s+-`, out)
	assert.Regexp(t, `cloudstorage\s+-`, out)

	out = c.must(t, "info", "--dump", "drive")
	assert.Contains(t, out, "NativeEmptyTrash")

	err := c.Run([]string{"info", "nope"})
	assert.True(t, provider.IsProviderNotFound(err))
}

func TestProviderSelection(t *testing.T) {
	c, _ := setup(t)
	require.NoError(t, c.registry.Register("other", memdrive.New("other"), "other:/**"))

	_, err := c.providerID()
	assert.ErrorIs(t, err, errNoProvider)

	id, addr, err := c.target("/x")
	require.NoError(t, err)
	assert.Equal(t, "drive", id)
	assert.Equal(t, "/x", addr.String())

	err = c.Run([]string{"trash"})
	assert.ErrorIs(t, err, errNoProvider)

	src := localFile(t, "x", "x")
	c.must(t, "-p", "other", "put", src, "/x")
	out := c.must(t, "-p", "other", "ls", "/")
	assert.Contains(t, out, "x")
	assert.Equal(t, "other", c.option.Provider)
}

func TestVersionsAndRevert(t *testing.T) {
	c, _ := setup(t)
	c.must(t, "put", localFile(t, "v1", "first"), "/a.txt")
	c.must(t, "put", "--overwrite", localFile(t, "v2", "second"), "/a.txt")

	out := c.must(t, "versions", "/a.txt")
	assert.Contains(t, out, "2 *")
	assert.Contains(t, out, "1")

	out = c.must(t, "revert", "/a.txt", "1")
	assert.Contains(t, out, "reverted /a.txt to revision 1 as 3")
	assert.Equal(t, "first", c.must(t, "cat", "/a.txt"))

	err := c.Run([]string{"revert", "/a.txt", "7"})
	assert.True(t, provider.IsEntryNotFound(err))
}

// stuckDrive answers every listing with the same continuation token
type stuckDrive struct{ *memdrive.Drive }

type stuckSession struct {
	provider.Session
	provider.TrashSession
}

func (d stuckDrive) Connect(ctx context.Context) (provider.Session, error) {
	s, err := d.Drive.Connect(ctx)
	if err != nil {
		return nil, err
	}
	return stuckSession{Session: s, TrashSession: s.(provider.TrashSession)}, nil
}

func (stuckSession) ListDirectory(context.Context, types.Address, types.ListOptions) (types.Page, error) {
	return types.Page{NextToken: "same"}, nil
}

func (stuckSession) ListDeleted(context.Context, types.ListOptions) (provider.TrashPage, error) {
	return provider.TrashPage{NextToken: "same"}, nil
}

func TestListingsStopOnStuckToken(t *testing.T) {
	c, _ := setup(t)
	require.NoError(t, c.registry.Register("stuck", stuckDrive{memdrive.New("stuck")}, "stuck:/**"))

	for _, args := range [][]string{
		{"-p", "stuck", "ls", "--all", "/"},
		{"-p", "stuck", "trash"},
	} {
		t.Run(args[2], func(t *testing.T) {
			err := c.Run(args)
			assert.True(t, provider.IsInvalidState(err), "got %v", err)
			assert.ErrorContains(t, err, "did not advance")
		})
	}
}
