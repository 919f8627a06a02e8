package trash

import (
	"context"
	"errors"
	"fmt"

	"github.com/babarot/kura/internal/capability"
	"github.com/babarot/kura/internal/core/types"
	"github.com/babarot/kura/internal/provider"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"
)

// EmptyOptions controls EmptyTrash
type EmptyOptions struct {
	Privileged bool
}

// ItemResult is the outcome for one trashed entry
type ItemResult struct {
	Record provider.TrashRecord
	State  State
	Err    error
}

// EmptyResult reports what EmptyTrash did. Native results carry no items.
type EmptyResult struct {
	Native bool
	Items  []ItemResult
}

func (r EmptyResult) Succeeded() int {
	return lo.CountBy(r.Items, func(i ItemResult) bool { return i.Err == nil })
}

func (r EmptyResult) Failed() int {
	return len(r.Items) - r.Succeeded()
}

// Err joins every item failure
func (r EmptyResult) Err() error {
	var errs []error
	for _, item := range r.Items {
		if item.Err != nil {
			errs = append(errs, item.Err)
		}
	}
	return errors.Join(errs...)
}

// EmptyTrash empties the trash in one call when the backend can,
// otherwise purges each trashed entry and reports per item. One failing
// item never stops the others.
func (e *Engine) EmptyTrash(ctx context.Context, conn *provider.Conn, opts EmptyOptions) (EmptyResult, error) {
	const op = "empty_trash"
	if err := conn.Require(op, types.Address{}, capability.TrashManagement); err != nil {
		return EmptyResult{}, err
	}

	caps := conn.Capabilities()
	if conn.Policy().NativeEmptyTrash && caps.Has(capability.EmptyTrash) {
		if err := conn.EmptyTrash(ctx); err != nil {
			return EmptyResult{Native: true}, err
		}
		e.log.Info("emptied trash", "provider", conn.ProviderID(), "native", true)
		return EmptyResult{Native: true}, nil
	}

	if err := conn.Require(op, types.Address{}, capability.ListTrash, capability.PermanentDeletion); err != nil {
		return EmptyResult{}, err
	}

	records, err := ListAll(ctx, conn)
	if err != nil {
		return EmptyResult{}, err
	}

	results := make([]ItemResult, len(records))
	var g errgroup.Group
	g.SetLimit(e.concurrency)
	for i, rec := range records {
		g.Go(func() error {
			entry := rec.Entry.WithStatus(rec.Stage.Status())
			out, err := e.PermanentlyDelete(ctx, conn, entry, PurgeOptions{Privileged: opts.Privileged})
			results[i] = ItemResult{Record: rec, State: out.To, Err: err}
			if err != nil {
				results[i].State = StateOf(entry.Status)
			}
			return nil
		})
	}
	_ = g.Wait()

	res := EmptyResult{Items: results}
	e.log.Info("emptied trash", "provider", conn.ProviderID(), "native", false,
		"succeeded", res.Succeeded(), "failed", res.Failed())
	return res, nil
}

// ListAll walks every page of list_deleted
func ListAll(ctx context.Context, conn *provider.Conn) ([]provider.TrashRecord, error) {
	var (
		records []provider.TrashRecord
		token   string
	)
	for {
		page, err := conn.ListDeleted(ctx, types.ListOptions{Token: token})
		if err != nil {
			return records, err
		}
		records = append(records, page.Records...)
		if page.NextToken == "" {
			return records, nil
		}
		if page.NextToken == token {
			return records, provider.Errorf(provider.KindInvalidState, "list_deleted", types.Address{},
				fmt.Sprintf("continuation token %q did not advance", token))
		}
		token = page.NextToken
	}
}
