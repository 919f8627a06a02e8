package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/babarot/kura/internal/core/types"
	"github.com/babarot/kura/internal/provider"
	"github.com/babarot/kura/internal/registry"
	"github.com/gabriel-vasile/mimetype"
)

type lsCommand struct {
	cli *CLI

	PageSize int    `long:"page-size" description:"Entries per page; the provider decides when 0"`
	Token    string `long:"token" description:"Continue a previous listing"`
	All      bool   `short:"a" long:"all" description:"Follow continuation tokens to the end"`

	Args struct {
		Address string `positional-arg-name:"ADDR" description:"Folder to list (default: /)"`
	} `positional-args:"yes"`
}

func (cmd *lsCommand) Execute([]string) error {
	c := cmd.cli
	raw := cmd.Args.Address
	if raw == "" {
		raw = "/"
	}
	id, addr, err := c.target(raw)
	if err != nil {
		return err
	}

	fetch := func(_ context.Context, token string) (types.Page, error) {
		resp, err := c.dispatch(id, registry.OpList, addr, registry.Options{
			List: types.ListOptions{PageSize: cmd.PageSize, Token: token},
		})
		return resp.Page, err
	}

	var (
		entries []types.Entry
		next    string
	)
	if cmd.All {
		entries, err = provider.NewIterator(fetch, cmd.Token).All(c.ctx)
	} else {
		var page types.Page
		page, err = fetch(c.ctx, cmd.Token)
		entries, next = page.Entries, page.NextToken
	}
	if err != nil {
		return err
	}

	renderEntries(c.out, entries)
	if next != "" {
		fmt.Fprintln(c.out, gray("more: --token "+next))
	}
	return nil
}

type catCommand struct {
	cli *CLI

	Offset int64 `long:"offset" description:"First byte to read"`
	Length int64 `long:"length" description:"Bytes to read; 0 reads to the end"`

	Args struct {
		Address string `positional-arg-name:"ADDR" required:"yes"`
	} `positional-args:"yes"`
}

func (cmd *catCommand) Execute([]string) error {
	c := cmd.cli
	id, addr, err := c.target(cmd.Args.Address)
	if err != nil {
		return err
	}
	_, err = c.dispatch(id, registry.OpRead, addr, registry.Options{
		Read:   types.ReadOptions{Offset: cmd.Offset, Length: cmd.Length},
		Output: c.out,
	})
	return err
}

type putCommand struct {
	cli *CLI

	Overwrite bool `short:"f" long:"overwrite" description:"Replace an existing entry"`
	Parents   bool `long:"parents" description:"Create missing parent folders"`

	Args struct {
		Source  string `positional-arg-name:"SRC" required:"yes"`
		Address string `positional-arg-name:"ADDR" required:"yes"`
	} `positional-args:"yes"`
}

func (cmd *putCommand) Execute([]string) error {
	c := cmd.cli
	id, addr, err := c.target(cmd.Args.Address)
	if err != nil {
		return err
	}

	f, err := os.Open(cmd.Args.Source)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}
	if info.IsDir() {
		return fmt.Errorf("%s: is a directory", cmd.Args.Source)
	}

	var contentType string
	if mt, err := mimetype.DetectFile(cmd.Args.Source); err == nil {
		contentType = mt.String()
	}

	resp, err := c.dispatch(id, registry.OpWrite, addr, registry.Options{
		Write: types.WriteOptions{
			Overwrite:     cmd.Overwrite,
			CreateParents: cmd.Parents,
			ContentType:   contentType,
		},
		Body: f,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "%s %s (%s) %s\n", green("wrote"), addr, size(resp.Entry), gray(resp.Entry.Address.String()))
	return nil
}

type mkdirCommand struct {
	cli *CLI

	Parents bool `long:"parents" description:"Create missing parent folders"`

	Args struct {
		Address string `positional-arg-name:"ADDR" required:"yes"`
	} `positional-args:"yes"`
}

func (cmd *mkdirCommand) Execute([]string) error {
	c := cmd.cli
	id, addr, err := c.target(cmd.Args.Address)
	if err != nil {
		return err
	}
	resp, err := c.dispatch(id, registry.OpCreateFolder, addr, registry.Options{
		Write: types.WriteOptions{CreateParents: cmd.Parents},
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "%s %s %s\n", green("created"), addr, gray(resp.Entry.Address.String()))
	return nil
}

type mvCommand struct {
	cli *CLI

	Overwrite bool `short:"f" long:"overwrite" description:"Replace an existing destination"`

	Args struct {
		Source      string `positional-arg-name:"SRC" required:"yes"`
		Destination string `positional-arg-name:"DST" required:"yes"`
	} `positional-args:"yes"`
}

var errCrossProvider = errors.New("source and destination belong to different providers")

func (cmd *mvCommand) Execute([]string) error {
	c := cmd.cli
	id, src, err := c.target(cmd.Args.Source)
	if err != nil {
		return err
	}
	p, dst, err := c.registry.Resolve(id, cmd.Args.Destination)
	if err != nil {
		return err
	}
	if c.option.Provider == "" {
		// the destination must be claimed by the same provider on its own
		if other, _, err := c.registry.Detect(cmd.Args.Destination); err == nil && other.ID() != p.ID() {
			return errCrossProvider
		}
	}

	if _, err := c.dispatch(id, registry.OpMove, src, registry.Options{
		Destination: dst,
		Move:        types.MoveOptions{Overwrite: cmd.Overwrite},
	}); err != nil {
		return err
	}
	fmt.Fprintf(c.out, "%s %s -> %s\n", green("moved"), src, dst)
	return nil
}

type versionsCommand struct {
	cli *CLI

	Args struct {
		Address string `positional-arg-name:"ADDR" required:"yes"`
	} `positional-args:"yes"`
}

func (cmd *versionsCommand) Execute([]string) error {
	c := cmd.cli
	id, addr, err := c.target(cmd.Args.Address)
	if err != nil {
		return err
	}
	resp, err := c.dispatch(id, registry.OpListVersions, addr, registry.Options{})
	if err != nil {
		return err
	}
	renderVersions(c.out, resp.Versions)
	return nil
}

type revertCommand struct {
	cli *CLI

	Args struct {
		Address  string `positional-arg-name:"ADDR" required:"yes"`
		Revision string `positional-arg-name:"REVISION" required:"yes"`
	} `positional-args:"yes"`
}

func (cmd *revertCommand) Execute([]string) error {
	c := cmd.cli
	id, addr, err := c.target(cmd.Args.Address)
	if err != nil {
		return err
	}
	resp, err := c.dispatch(id, registry.OpRevert, addr, registry.Options{Version: cmd.Args.Revision})
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "%s %s to revision %s as %s\n", green("reverted"), addr, cmd.Args.Revision, resp.Entry.Revision)
	return nil
}
