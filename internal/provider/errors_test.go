package provider

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"testing"

	"github.com/babarot/kura/internal/core/types"
	"github.com/stretchr/testify/assert"
)

func TestWrapClassifies(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"not exist", &fs.PathError{Op: "open", Path: "/x", Err: fs.ErrNotExist}, KindEntryNotFound},
		{"invalid", fmt.Errorf("stat: %w", fs.ErrInvalid), KindInvalidAddress},
		{"exist", fmt.Errorf("mkdir: %w", os.ErrExist), KindAlreadyExists},
		{"permission", os.ErrPermission, KindPermissionDenied},
		{"deadline", context.DeadlineExceeded, KindTransientNetwork},
		{"sentinel", fmt.Errorf("quota: %w", ErrQuotaExceeded), KindQuotaExceeded},
		{"auth", ErrAuthExpired, KindAuthExpired},
		{"unknown", errors.New("connection reset by peer"), KindTransientNetwork},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Wrap("read_file", "p", types.Path("/x"), tt.err)
			assert.Equal(t, tt.want, KindOf(err))
			assert.ErrorIs(t, err, tt.err)

			var e *Error
			assert.ErrorAs(t, err, &e)
			assert.Equal(t, "p", e.Provider)
		})
	}

	assert.NoError(t, Wrap("op", "p", types.Address{}, nil))
}

func TestWrapKeepsKind(t *testing.T) {
	inner := NewError(KindConflict, "", types.Address{}, nil)
	err := Wrap("restore", "mem", types.ID("1"), inner)

	var e *Error
	assert.ErrorAs(t, err, &e)
	assert.Equal(t, KindConflict, e.Kind)
	assert.Equal(t, "restore", e.Op)
	assert.Equal(t, "mem", e.Provider)
	assert.True(t, IsConflict(err))
	assert.Equal(t, "mem: restore id:1: conflict", err.Error())
}

func TestRetryable(t *testing.T) {
	for k := KindProviderNotFound; k <= KindInvalidAddress; k++ {
		want := k == KindTransientNetwork || k == KindAuthExpired
		assert.Equal(t, want, k.Retryable(), k.String())
	}
	assert.False(t, IsRetryable(errors.New("plain")))
}
