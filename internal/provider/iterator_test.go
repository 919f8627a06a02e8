package provider

import (
	"context"
	"fmt"
	"strconv"
	"testing"

	"github.com/babarot/kura/internal/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pager serves n entries in pages of size; tokens are start offsets
func pager(n, size int, fetched *[]string) PageFunc {
	return func(_ context.Context, token string) (types.Page, error) {
		*fetched = append(*fetched, token)
		start := 0
		if token != "" {
			var err error
			if start, err = strconv.Atoi(token); err != nil {
				return types.Page{}, err
			}
		}
		var page types.Page
		for i := start; i < n && i < start+size; i++ {
			page.Entries = append(page.Entries, types.Entry{Name: fmt.Sprintf("e%d", i)})
		}
		if start+size < n {
			page.NextToken = strconv.Itoa(start + size)
		}
		return page, nil
	}
}

func TestIteratorWalksAllPages(t *testing.T) {
	var fetched []string
	it := NewIterator(pager(7, 3, &fetched), "")

	entries, err := it.All(context.Background())
	require.NoError(t, err)
	assert.Len(t, entries, 7)
	assert.Equal(t, []string{"", "3", "6"}, fetched)
	assert.Empty(t, it.Token())

	// a drained iterator stays drained
	assert.False(t, it.Next(context.Background()))
	assert.Len(t, fetched, 3)
}

func TestIteratorResumesFromToken(t *testing.T) {
	ctx := context.Background()
	var fetched []string
	it := NewIterator(pager(7, 3, &fetched), "")

	for range 3 {
		require.True(t, it.Next(ctx))
	}
	token := it.Token()
	assert.Equal(t, "3", token)
	assert.Empty(t, it.Pending())

	resumed := NewIterator(pager(7, 3, &fetched), token)
	rest, err := resumed.All(ctx)
	require.NoError(t, err)
	require.Len(t, rest, 4)
	assert.Equal(t, "e3", rest[0].Name)
}

func TestIteratorEmpty(t *testing.T) {
	var fetched []string
	it := NewIterator(pager(0, 3, &fetched), "")
	assert.False(t, it.Next(context.Background()))
	assert.NoError(t, it.Err())
	assert.Len(t, fetched, 1)
}

func TestIteratorStuckToken(t *testing.T) {
	it := NewIterator(func(context.Context, string) (types.Page, error) {
		return types.Page{NextToken: "same"}, nil
	}, "same")
	assert.False(t, it.Next(context.Background()))
	assert.True(t, IsInvalidState(it.Err()))
}
