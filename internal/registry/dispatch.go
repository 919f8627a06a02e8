package registry

import (
	"context"
	"fmt"
	"io"

	"github.com/babarot/kura/internal/capability"
	"github.com/babarot/kura/internal/core/types"
	"github.com/babarot/kura/internal/provider"
	"github.com/babarot/kura/internal/trash"
)

// Operation names a request
type Operation string

const (
	OpList         Operation = "list_directory"
	OpRead         Operation = "read_file"
	OpWrite        Operation = "write_file"
	OpDelete       Operation = "delete"
	OpGetMetadata  Operation = "get_metadata"
	OpExists       Operation = "entry_exists"
	OpCreateFolder Operation = "create_folder"
	OpMove         Operation = "move"
	OpStatus       Operation = "status"
	OpListDeleted  Operation = "list_deleted"
	OpTrashStat    Operation = "trash_stat"
	OpRestore      Operation = "restore"
	OpPurge        Operation = "permanently_delete"
	OpEmptyTrash   Operation = "empty_trash"
	OpListVersions Operation = "list_versions"
	OpRevert       Operation = "revert_to_version"
)

// Options carries the per operation arguments. Only the fields the
// operation reads are looked at.
type Options struct {
	List  types.ListOptions
	Read  types.ReadOptions
	Write types.WriteOptions
	Move  types.MoveOptions

	// Destination is the move target
	Destination types.Address

	// Body is the content of a write
	Body io.Reader

	// Output receives the content of a read
	Output io.Writer

	Conflict   trash.ConflictPolicy
	Privileged bool

	// Version is the revision a revert goes back to
	Version string
}

// Request is an already parsed call: which provider, what to do, where
type Request struct {
	ProviderID string
	Operation  Operation
	Address    types.Address
	Options    Options
}

// Response holds whatever the operation produced
type Response struct {
	Entry    types.Entry
	Page     types.Page
	Trash    provider.TrashPage
	Exists   bool
	Written  int64
	State    trash.State
	Record   *provider.TrashRecord
	Outcome  trash.Outcome
	Empty    trash.EmptyResult
	Versions []provider.Version
}

// Dispatch connects the requested provider, runs one operation and
// closes the session again
func (r *Registry) Dispatch(ctx context.Context, req Request) (Response, error) {
	var resp Response
	err := r.WithSession(ctx, req.ProviderID, func(conn *provider.Conn) error {
		var err error
		resp, err = r.dispatch(ctx, conn, req)
		return err
	})
	if err != nil {
		r.log.Debug("dispatch failed", "provider", req.ProviderID, "op", req.Operation, "error", err)
	}
	return resp, err
}

func (r *Registry) needEngine(op Operation) (*trash.Engine, error) {
	if r.engine == nil {
		return nil, provider.Errorf(provider.KindInvalidState, string(op), types.Address{}, "no trash engine configured")
	}
	return r.engine, nil
}

func (r *Registry) dispatch(ctx context.Context, conn *provider.Conn, req Request) (Response, error) {
	var (
		resp Response
		err  error
		opts = req.Options
		addr = req.Address
	)

	switch req.Operation {
	case OpList:
		resp.Page, err = conn.ListDirectory(ctx, addr, opts.List)

	case OpRead:
		if opts.Output == nil {
			return resp, fmt.Errorf("%s: no output writer", req.Operation)
		}
		var rc io.ReadCloser
		if rc, err = conn.ReadFile(ctx, addr, opts.Read); err != nil {
			return resp, err
		}
		defer rc.Close()
		resp.Written, err = io.Copy(opts.Output, rc)

	case OpWrite:
		if opts.Body == nil {
			return resp, fmt.Errorf("%s: no body", req.Operation)
		}
		resp.Entry, err = conn.WriteFile(ctx, addr, opts.Body, opts.Write)

	case OpGetMetadata:
		resp.Entry, err = conn.GetMetadata(ctx, addr)

	case OpExists:
		resp.Exists, err = conn.EntryExists(ctx, addr)

	case OpCreateFolder:
		resp.Entry, err = conn.CreateFolder(ctx, addr, opts.Write)

	case OpMove:
		resp.Entry, err = conn.Move(ctx, addr, opts.Destination, opts.Move)

	case OpListVersions:
		resp.Versions, err = conn.ListVersions(ctx, addr)

	case OpRevert:
		resp.Entry, err = conn.RevertToVersion(ctx, addr, opts.Version)

	case OpListDeleted:
		resp.Trash, err = conn.ListDeleted(ctx, opts.List)

	case OpTrashStat:
		var rec provider.TrashRecord
		if addr, err = r.trashed(ctx, conn, addr); err != nil {
			return resp, err
		}
		if rec, err = conn.TrashStat(ctx, addr); err == nil {
			resp.Record = &rec
			resp.Entry = rec.Entry
		}

	case OpDelete:
		e, eerr := r.needEngine(req.Operation)
		if eerr != nil {
			return resp, eerr
		}
		resp.Outcome, err = e.Delete(ctx, conn, types.Entry{Address: addr, Status: types.StatusActive})
		resp.Entry, resp.State, resp.Record = resp.Outcome.Entry, resp.Outcome.To, resp.Outcome.Record

	case OpStatus:
		e, eerr := r.needEngine(req.Operation)
		if eerr != nil {
			return resp, eerr
		}
		entry, serr := r.current(ctx, conn, addr)
		if serr != nil {
			return resp, serr
		}
		resp.Entry = entry
		resp.State, resp.Record, err = e.Status(ctx, conn, entry)

	case OpRestore:
		e, eerr := r.needEngine(req.Operation)
		if eerr != nil {
			return resp, eerr
		}
		entry, lerr := r.lifecycleEntry(ctx, conn, addr)
		if lerr != nil {
			return resp, lerr
		}
		resp.Entry, err = e.Restore(ctx, conn, entry, opts.Conflict)
		resp.State = trash.StateActive

	case OpPurge:
		e, eerr := r.needEngine(req.Operation)
		if eerr != nil {
			return resp, eerr
		}
		entry := types.Entry{Address: addr, Status: types.StatusActive}
		if conn.Capabilities().Has(capability.TrashManagement) {
			var lerr error
			if entry, lerr = r.lifecycleEntry(ctx, conn, addr); lerr != nil {
				return resp, lerr
			}
		}
		resp.Outcome, err = e.PermanentlyDelete(ctx, conn, entry, trash.PurgeOptions{Privileged: opts.Privileged})
		resp.Entry, resp.State, resp.Record = resp.Outcome.Entry, resp.Outcome.To, resp.Outcome.Record

	case OpEmptyTrash:
		e, eerr := r.needEngine(req.Operation)
		if eerr != nil {
			return resp, eerr
		}
		resp.Empty, err = e.EmptyTrash(ctx, conn, trash.EmptyOptions{Privileged: opts.Privileged})

	default:
		return resp, provider.Errorf(provider.KindUnsupportedCapability, string(req.Operation), addr, "unknown operation")
	}
	return resp, err
}

// current fetches the entry at addr. An id that the backend only knows
// as trashed is returned as such.
func (r *Registry) current(ctx context.Context, conn *provider.Conn, addr types.Address) (types.Entry, error) {
	entry, err := conn.GetMetadata(ctx, addr)
	if err == nil || !provider.IsEntryNotFound(err) || !conn.Capabilities().Has(capability.TrashMetadata) {
		return entry, err
	}
	taddr, terr := r.trashed(ctx, conn, addr)
	if terr != nil {
		return entry, err
	}
	rec, terr := conn.TrashStat(ctx, taddr)
	if terr != nil {
		return entry, err
	}
	return rec.Entry.WithStatus(rec.Stage.Status()), nil
}

// lifecycleEntry is the entry restore and purge act on. A path with
// nothing in the trash that still exists is handed over as active, so the
// engine rejects it with InvalidState rather than EntryNotFound.
func (r *Registry) lifecycleEntry(ctx context.Context, conn *provider.Conn, addr types.Address) (types.Entry, error) {
	taddr, err := r.trashed(ctx, conn, addr)
	if err == nil {
		return types.Entry{Address: taddr, Status: types.StatusDeleted}, nil
	}
	if !provider.IsEntryNotFound(err) {
		return types.Entry{}, err
	}
	live, lerr := conn.EntryExists(ctx, addr)
	if lerr != nil || !live {
		return types.Entry{}, err
	}
	return types.Entry{Address: addr, Status: types.StatusActive}, nil
}

// trashed maps a path to the most recently trashed entry that came from
// it. Ids are returned as they are.
func (r *Registry) trashed(ctx context.Context, conn *provider.Conn, addr types.Address) (types.Address, error) {
	if addr.Mode != types.AddressPath || !conn.Capabilities().Has(capability.ListTrash) {
		return addr, nil
	}
	records, err := trash.ListAll(ctx, conn)
	if err != nil {
		return addr, err
	}
	var found *provider.TrashRecord
	for i := range records {
		rec := &records[i]
		if rec.OriginalLocation != addr {
			continue
		}
		if found == nil || rec.DeletedAt.After(found.DeletedAt) {
			found = rec
		}
	}
	if found == nil {
		return addr, provider.Errorf(provider.KindEntryNotFound, "trash_stat", addr, "nothing in the trash came from here")
	}
	return found.Entry.Address, nil
}
