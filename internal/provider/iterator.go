package provider

import (
	"context"
	"fmt"

	"github.com/babarot/kura/internal/core/types"
)

// PageFunc fetches the page that starts at token
type PageFunc func(ctx context.Context, token string) (types.Page, error)

// Iterator walks a paginated listing lazily. It never restarts on its
// own: once drained or failed it stays that way, and a caller that wants
// to continue later passes Token to a new listing.
type Iterator struct {
	fetch PageFunc

	buf []types.Entry
	pos int
	cur types.Entry

	token   string
	started bool
	done    bool
	err     error
}

// NewIterator starts at token; empty starts from the beginning
func NewIterator(fetch PageFunc, token string) *Iterator {
	return &Iterator{fetch: fetch, token: token}
}

// Next advances to the next entry, fetching pages as needed
func (it *Iterator) Next(ctx context.Context) bool {
	for {
		if it.pos < len(it.buf) {
			it.cur = it.buf[it.pos]
			it.pos++
			return true
		}
		if it.done || it.err != nil {
			return false
		}
		if it.started && it.token == "" {
			it.done = true
			return false
		}

		prev := it.token
		page, err := it.fetch(ctx, it.token)
		it.started = true
		if err != nil {
			it.err = err
			return false
		}
		if page.NextToken != "" && page.NextToken == prev {
			it.err = Errorf(KindInvalidState, "list_directory", types.Address{},
				fmt.Sprintf("continuation token %q did not advance", prev))
			return false
		}
		it.buf, it.pos = page.Entries, 0
		it.token = page.NextToken
	}
}

// Entry returns the current entry
func (it *Iterator) Entry() types.Entry { return it.cur }

// Err returns the error that stopped the iteration
func (it *Iterator) Err() error { return it.err }

// Token is the continuation token of the next unfetched page. Empty
// after the last page.
func (it *Iterator) Token() string { return it.token }

// Pending returns entries already fetched but not yet returned by Next
func (it *Iterator) Pending() []types.Entry {
	return it.buf[it.pos:]
}

// All drains the iterator
func (it *Iterator) All(ctx context.Context) ([]types.Entry, error) {
	var out []types.Entry
	for it.Next(ctx) {
		out = append(out, it.Entry())
	}
	return out, it.Err()
}
