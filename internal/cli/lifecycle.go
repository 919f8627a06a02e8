package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/babarot/kura/internal/core/types"
	"github.com/babarot/kura/internal/provider"
	"github.com/babarot/kura/internal/registry"
	"github.com/babarot/kura/internal/trash"
	"github.com/babarot/kura/internal/utils/fs"
)

var errUnsafePath = errors.New("refusing to delete")

// deletable is target for the delete family: roots and dot folders are
// refused before any provider sees them
func (c *CLI) deletable(raw string) (string, types.Address, error) {
	if fs.IsUnsafePath(raw) {
		return "", types.Address{}, fmt.Errorf("%w %q", errUnsafePath, raw)
	}
	return c.target(raw)
}

type rmCommand struct {
	cli *CLI

	Args struct {
		Addresses []string `positional-arg-name:"ADDR" required:"1"`
	} `positional-args:"yes"`
}

// Execute deletes every address. A failure is reported and the
// remaining addresses are still processed.
func (cmd *rmCommand) Execute([]string) error {
	c := cmd.cli
	var errs []error
	for _, raw := range cmd.Args.Addresses {
		id, addr, err := c.deletable(raw)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		resp, err := c.dispatch(id, registry.OpDelete, addr, registry.Options{})
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", raw, err))
			continue
		}
		fmt.Fprintf(c.out, "%s %s\n", state(resp.State), addr)
	}
	return errors.Join(errs...)
}

type statusCommand struct {
	cli *CLI

	Args struct {
		Address string `positional-arg-name:"ADDR" required:"yes"`
	} `positional-args:"yes"`
}

func (cmd *statusCommand) Execute([]string) error {
	c := cmd.cli
	id, addr, err := c.target(cmd.Args.Address)
	if err != nil {
		return err
	}
	resp, err := c.dispatch(id, registry.OpStatus, addr, registry.Options{})
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "%s %s\n", state(resp.State), addr)
	if rec := resp.Record; rec != nil {
		fmt.Fprintf(c.out, "  deleted: %s by %s\n", when(rec.DeletedAt), rec.DeletingActor)
		fmt.Fprintf(c.out, "  from:    %s\n", rec.OriginalLocation)
		fmt.Fprintf(c.out, "  purged:  %s\n", deadline(*rec, time.Now()))
	}
	return nil
}

type trashCommand struct {
	cli *CLI

	All bool `short:"a" long:"all" description:"Ignore the trash_list filters"`
}

func (cmd *trashCommand) Execute([]string) error {
	c := cmd.cli
	id, err := c.providerID()
	if err != nil {
		return err
	}

	var records []provider.TrashRecord
	if err := c.registry.WithSession(c.ctx, id, func(conn *provider.Conn) (err error) {
		records, err = trash.ListAll(c.ctx, conn)
		return err
	}); err != nil {
		return err
	}

	if !cmd.All {
		records = trash.FilterRecords(records, trash.FilterOptions{
			Include: c.config.Core.TrashList.Include,
			Exclude: c.config.Core.TrashList.Exclude,
		})
	}
	if len(records) == 0 {
		fmt.Fprintln(c.out, "The trash is empty.")
		return nil
	}
	renderRecords(c.out, records, time.Now())
	return nil
}

type restoreCommand struct {
	cli *CLI

	Conflict string `long:"conflict" description:"What to do when the original location is taken (default: from config)" choice:"rename" choice:"fail" choice:"overwrite"`

	Args struct {
		Addresses []string `positional-arg-name:"ADDR" required:"1"`
	} `positional-args:"yes"`
}

func (cmd *restoreCommand) Execute([]string) error {
	c := cmd.cli
	policy, err := trash.ParseConflictPolicy(cmd.Conflict)
	if err != nil {
		return err
	}

	var errs []error
	for _, raw := range cmd.Args.Addresses {
		id, addr, err := c.target(raw)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		resp, err := c.dispatch(id, registry.OpRestore, addr, registry.Options{Conflict: policy})
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", raw, err))
			continue
		}
		fmt.Fprintf(c.out, "%s %s as %s %s\n", state(resp.State), addr, resp.Entry.Name, gray(resp.Entry.Address.String()))
	}
	return errors.Join(errs...)
}

type purgeCommand struct {
	cli *CLI

	Privileged bool `long:"privileged" description:"Allow the final stage of a two-stage purge"`

	Args struct {
		Addresses []string `positional-arg-name:"ADDR" required:"1"`
	} `positional-args:"yes"`
}

func (cmd *purgeCommand) Execute([]string) error {
	c := cmd.cli
	var errs []error
	for _, raw := range cmd.Args.Addresses {
		id, addr, err := c.deletable(raw)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		resp, err := c.dispatch(id, registry.OpPurge, addr, registry.Options{Privileged: cmd.Privileged})
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", raw, err))
			continue
		}
		fmt.Fprintf(c.out, "%s %s\n", state(resp.State), addr)
	}
	return errors.Join(errs...)
}

type emptyCommand struct {
	cli *CLI

	Privileged bool `long:"privileged" description:"Also purge entries pending the final purge"`
}

func (cmd *emptyCommand) Execute([]string) error {
	c := cmd.cli
	id, err := c.providerID()
	if err != nil {
		return err
	}
	resp, err := c.dispatch(id, registry.OpEmptyTrash, types.Address{}, registry.Options{Privileged: cmd.Privileged})
	if err != nil {
		return err
	}

	res := resp.Empty
	if res.Native {
		fmt.Fprintln(c.out, green("trash emptied"))
		return nil
	}
	for _, item := range res.Items {
		if item.Err != nil {
			fmt.Fprintf(c.out, "%s %s: %v\n", red("failed"), item.Record.Entry.Address, item.Err)
		}
	}
	fmt.Fprintf(c.out, "%d purged, %d failed\n", res.Succeeded(), res.Failed())
	return res.Err()
}
