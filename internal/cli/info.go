package cli

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/babarot/kura/internal/capability"
	"github.com/babarot/kura/internal/provider"
	"github.com/babarot/kura/internal/utils/duration"
	"github.com/k0kubun/pp/v3"
	"github.com/samber/lo"
)

type infoCommand struct {
	cli *CLI

	Dump bool `long:"dump" description:"Dump the raw provider description"`
	All  bool `short:"a" long:"all" description:"List every known capability, marking the missing ones"`

	Args struct {
		ID string `positional-arg-name:"ID" description:"Provider id (default: --provider)"`
	} `positional-args:"yes"`
}

type providerView struct {
	ID           string
	Name         string
	Protocol     string
	Patterns     []string
	Tags         []string
	Metadata     map[string]string
	Capabilities map[string][]string
	Trash        *trashView
}

type trashView struct {
	Retention        string
	TwoStage         bool
	QuotaBasedPurge  bool
	NativeEmptyTrash bool
}

func (c *CLI) describe(id string) (providerView, error) {
	p, err := c.registry.Get(id)
	if err != nil {
		return providerView{}, err
	}
	caps := p.Capabilities()
	view := providerView{
		ID:           id,
		Protocol:     caps.Protocol().String(),
		Patterns:     c.registry.Patterns(id),
		Capabilities: map[string][]string{},
	}
	for _, f := range caps.Flags() {
		ns := string(f.Namespace())
		view.Capabilities[ns] = append(view.Capabilities[ns], f.Name())
	}
	if info, ok := caps.ProviderInfo(); ok {
		view.Name = info.DisplayName
		view.Tags = info.Tags()
		view.Metadata = info.Metadata()
	}

	err = c.registry.WithSession(c.ctx, id, func(conn *provider.Conn) error {
		pol := conn.Policy()
		if !pol.Enabled {
			return nil
		}
		view.Trash = &trashView{
			Retention:        "none",
			TwoStage:         pol.TwoStage,
			QuotaBasedPurge:  pol.QuotaBasedPurge,
			NativeEmptyTrash: pol.NativeEmptyTrash,
		}
		if pol.Retention == nil {
			return nil
		}
		d, ok, err := pol.Retention.Duration(c.ctx)
		if err != nil {
			return err
		}
		if ok {
			view.Trash.Retention = duration.Format(d)
		}
		return nil
	})
	return view, err
}

func (cmd *infoCommand) Execute([]string) error {
	c := cmd.cli
	id := cmd.Args.ID
	if id == "" {
		var err error
		if id, err = c.providerID(); err != nil {
			return err
		}
	}
	view, err := c.describe(id)
	if err != nil {
		return err
	}

	if cmd.Dump {
		_, err := pp.Fprintln(c.out, view)
		return err
	}

	fmt.Fprintf(c.out, "%s (%s)\n", blue(view.ID), view.Name)
	fmt.Fprintf(c.out, "  protocol: %s\n", view.Protocol)
	if len(view.Patterns) > 0 {
		fmt.Fprintf(c.out, "  patterns: %s\n", strings.Join(view.Patterns, " "))
	}
	if cmd.All {
		if err := c.renderKnown(id); err != nil {
			return err
		}
	} else {
		t := newTable(c.out, "namespace", "capabilities")
		for _, ns := range slices.Sorted(maps.Keys(view.Capabilities)) {
			t.Append([]string{ns, strings.Join(view.Capabilities[ns], " ")})
		}
		t.Render()
	}
	if tr := view.Trash; tr != nil {
		fmt.Fprintf(c.out, "  trash: retention=%s two_stage=%t quota_purge=%t native_empty=%t\n",
			tr.Retention, tr.TwoStage, tr.QuotaBasedPurge, tr.NativeEmptyTrash)
	} else {
		fmt.Fprintf(c.out, "  trash: %s\n", gray("none"))
	}
	return nil
}

// renderKnown prints every defined flag, grouped by namespace. Flags the
// provider lacks are grayed out; a namespace it has nothing of is one dash.
func (c *CLI) renderKnown(id string) error {
	p, err := c.registry.Get(id)
	if err != nil {
		return err
	}
	caps := p.Capabilities()

	var (
		order []capability.Namespace
		names = map[capability.Namespace][]string{}
	)
	for _, f := range capability.Known() {
		ns := f.Namespace()
		if _, ok := names[ns]; !ok {
			order = append(order, ns)
		}
		names[ns] = append(names[ns], lo.Ternary(caps.Has(f), green(f.Name()), gray(f.Name())))
	}

	t := newTable(c.out, "namespace", "capabilities")
	for _, ns := range order {
		row := gray("-")
		if caps.HasNamespace(ns) {
			row = strings.Join(names[ns], " ")
		}
		t.Append([]string{string(ns), row})
	}
	t.Render()
	return nil
}

type providersCommand struct {
	cli *CLI
}

func (cmd *providersCommand) Execute([]string) error {
	c := cmd.cli
	t := newTable(c.out, "id", "protocol", "trash", "patterns")
	for _, id := range c.registry.IDs() {
		p, err := c.registry.Get(id)
		if err != nil {
			return err
		}
		caps := p.Capabilities()
		t.Append([]string{
			id,
			caps.Protocol().String(),
			lo.Ternary(caps.Has(capability.TrashManagement), green("yes"), gray("no")),
			strings.Join(c.registry.Patterns(id), " "),
		})
	}
	t.Render()
	return nil
}
