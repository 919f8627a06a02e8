package registry

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/babarot/kura/internal/core/types"
	"github.com/babarot/kura/internal/provider"
	"github.com/babarot/kura/internal/providers/memdrive"
	"github.com/babarot/kura/internal/trash"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEngine(t *testing.T) *trash.Engine {
	t.Helper()
	e, err := trash.NewEngine(trash.Config{DefaultConflict: trash.ConflictRename})
	require.NoError(t, err)
	return e
}

func TestRegisterGet(t *testing.T) {
	r := New()
	require.NoError(t, r.Register("a", memdrive.New("a")))
	require.NoError(t, r.Register("", memdrive.New("b")))

	assert.Equal(t, []string{"a", "b"}, r.IDs())

	p, err := r.Get("b")
	require.NoError(t, err)
	assert.Equal(t, "b", p.ID())

	_, err = r.Get("missing")
	assert.True(t, provider.IsProviderNotFound(err))
	assert.Equal(t, provider.KindProviderNotFound, provider.KindOf(err))

	err = r.Register("a", memdrive.New("a"))
	assert.True(t, provider.IsAlreadyExists(err))

	err = r.Register("c", memdrive.New("c"), "[")
	assert.ErrorContains(t, err, "invalid pattern")
	_, err = r.Get("c")
	assert.Error(t, err)
}

func TestRegistriesAreIndependent(t *testing.T) {
	r1, r2 := New(), New()
	require.NoError(t, r1.Register("a", memdrive.New("a")))

	_, err := r2.Get("a")
	assert.True(t, provider.IsProviderNotFound(err))
}

func TestDetect(t *testing.T) {
	r := New()
	require.NoError(t, r.Register("drive", memdrive.New("drive"), "drive:/**"))
	require.NoError(t, r.Register("photos", memdrive.New("photos"), "/photos/**", "*.jpg"))
	require.NoError(t, r.Register("shared", memdrive.New("shared"), "/shared/**", "*.jpg"))
	require.NoError(t, r.Register("hidden", memdrive.New("hidden")))

	tests := []struct {
		name      string
		raw       string
		want      string
		ambiguous bool
		notFound  bool
	}{
		{name: "single match", raw: "/photos/2024/a.png", want: "photos"},
		{name: "other provider", raw: "/shared/x", want: "shared"},
		{name: "ambiguous", raw: "a.jpg", ambiguous: true},
		{name: "no match", raw: "/etc/passwd", notFound: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, addr, err := r.Detect(tt.raw)
			switch {
			case tt.ambiguous:
				assert.ErrorIs(t, err, ErrAmbiguous)
				assert.True(t, provider.IsProviderNotFound(err))
				assert.Nil(t, p)
			case tt.notFound:
				assert.True(t, provider.IsProviderNotFound(err))
				assert.NotErrorIs(t, err, ErrAmbiguous)
			default:
				require.NoError(t, err)
				assert.Equal(t, tt.want, p.ID())
				assert.Equal(t, types.Path(tt.raw), addr)
			}
		})
	}

	p, addr, err := r.Resolve("hidden", "id:abc")
	require.NoError(t, err)
	assert.Equal(t, "hidden", p.ID())
	assert.Equal(t, types.ID("abc"), addr)
}

func TestDispatchFiles(t *testing.T) {
	ctx := context.Background()
	r := New()
	require.NoError(t, r.Register("drive", memdrive.New("drive")))

	resp, err := r.Dispatch(ctx, Request{
		ProviderID: "drive",
		Operation:  OpWrite,
		Address:    types.Path("/docs/a.txt"),
		Options: Options{
			Body:  strings.NewReader("hello"),
			Write: types.WriteOptions{CreateParents: true},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "a.txt", resp.Entry.Name)

	var out bytes.Buffer
	resp, err = r.Dispatch(ctx, Request{
		ProviderID: "drive",
		Operation:  OpRead,
		Address:    types.Path("/docs/a.txt"),
		Options:    Options{Output: &out},
	})
	require.NoError(t, err)
	assert.Equal(t, "hello", out.String())
	assert.EqualValues(t, 5, resp.Written)

	resp, err = r.Dispatch(ctx, Request{ProviderID: "drive", Operation: OpList, Address: types.Path("/docs")})
	require.NoError(t, err)
	require.Len(t, resp.Page.Entries, 1)

	resp, err = r.Dispatch(ctx, Request{ProviderID: "drive", Operation: OpExists, Address: types.Path("/docs/b.txt")})
	require.NoError(t, err)
	assert.False(t, resp.Exists)

	_, err = r.Dispatch(ctx, Request{ProviderID: "nope", Operation: OpList, Address: types.Path("/")})
	assert.True(t, provider.IsProviderNotFound(err))

	_, err = r.Dispatch(ctx, Request{ProviderID: "drive", Operation: "chmod", Address: types.Path("/")})
	assert.True(t, provider.IsUnsupportedCapability(err))

	_, err = r.Dispatch(ctx, Request{ProviderID: "drive", Operation: OpDelete, Address: types.Path("/docs/a.txt")})
	assert.True(t, provider.IsInvalidState(err), "delete needs an engine")
}

func TestDispatchLifecycle(t *testing.T) {
	ctx := context.Background()
	r := New(WithEngine(newEngine(t)))
	require.NoError(t, r.Register("drive", memdrive.New("drive", memdrive.WithTwoStage())))

	write := func(body string) {
		_, err := r.Dispatch(ctx, Request{
			ProviderID: "drive",
			Operation:  OpWrite,
			Address:    types.Path("/a.txt"),
			Options:    Options{Body: strings.NewReader(body), Write: types.WriteOptions{Overwrite: true}},
		})
		require.NoError(t, err)
	}

	write("one")
	resp, err := r.Dispatch(ctx, Request{ProviderID: "drive", Operation: OpDelete, Address: types.Path("/a.txt")})
	require.NoError(t, err)
	assert.Equal(t, trash.StateTrashed, resp.State)
	require.NotNil(t, resp.Record)
	assert.Equal(t, types.Path("/a.txt"), resp.Record.OriginalLocation)

	resp, err = r.Dispatch(ctx, Request{ProviderID: "drive", Operation: OpStatus, Address: resp.Entry.Address})
	require.NoError(t, err)
	assert.Equal(t, trash.StateTrashed, resp.State)

	// the original location is taken again, so restore renames
	write("two")
	resp, err = r.Dispatch(ctx, Request{ProviderID: "drive", Operation: OpRestore, Address: types.Path("/a.txt")})
	require.NoError(t, err)
	assert.Equal(t, "a (restored 1).txt", resp.Entry.Name)
	assert.Equal(t, types.StatusActive, resp.Entry.Status)

	resp, err = r.Dispatch(ctx, Request{ProviderID: "drive", Operation: OpDelete, Address: types.Path("/a.txt")})
	require.NoError(t, err)
	id := resp.Entry.Address

	resp, err = r.Dispatch(ctx, Request{ProviderID: "drive", Operation: OpPurge, Address: types.Path("/a.txt")})
	require.NoError(t, err)
	assert.Equal(t, trash.StatePendingPurge, resp.State)

	_, err = r.Dispatch(ctx, Request{ProviderID: "drive", Operation: OpPurge, Address: id})
	assert.True(t, provider.IsPermissionDenied(err))

	resp, err = r.Dispatch(ctx, Request{ProviderID: "drive", Operation: OpPurge, Address: id, Options: Options{Privileged: true}})
	require.NoError(t, err)
	assert.Equal(t, trash.StatePermanentlyDeleted, resp.State)

	resp, err = r.Dispatch(ctx, Request{ProviderID: "drive", Operation: OpListDeleted})
	require.NoError(t, err)
	assert.Empty(t, resp.Trash.Records)

	_, err = r.Dispatch(ctx, Request{ProviderID: "drive", Operation: OpRestore, Address: types.Path("/a.txt")})
	assert.True(t, provider.IsEntryNotFound(err))
}

func TestLifecycleOnActivePath(t *testing.T) {
	ctx := context.Background()
	r := New(WithEngine(newEngine(t)))
	require.NoError(t, r.Register("drive", memdrive.New("drive")))

	dispatch := func(op Operation) error {
		_, err := r.Dispatch(ctx, Request{ProviderID: "drive", Operation: op, Address: types.Path("/a.txt")})
		return err
	}
	_, err := r.Dispatch(ctx, Request{
		ProviderID: "drive",
		Operation:  OpWrite,
		Address:    types.Path("/a.txt"),
		Options:    Options{Body: strings.NewReader("a")},
	})
	require.NoError(t, err)

	tests := []struct {
		name string
		prep []Operation
		op   Operation
	}{
		{"restore active", nil, OpRestore},
		{"purge active", nil, OpPurge},
		{"purge after restore", []Operation{OpDelete, OpRestore}, OpPurge},
		{"restore after restore", []Operation{OpDelete, OpRestore}, OpRestore},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, op := range tt.prep {
				require.NoError(t, dispatch(op))
			}
			err := dispatch(tt.op)
			assert.True(t, provider.IsInvalidState(err), "got %v", err)
		})
	}

	_, err = r.Dispatch(ctx, Request{ProviderID: "drive", Operation: OpRestore, Address: types.Path("/never")})
	assert.True(t, provider.IsEntryNotFound(err))
}
