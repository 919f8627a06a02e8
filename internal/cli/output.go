package cli

import (
	"io"
	"time"

	"github.com/babarot/kura/internal/core/types"
	"github.com/babarot/kura/internal/provider"
	"github.com/babarot/kura/internal/trash"
	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/samber/lo"
)

var (
	gray   = color.New(color.FgHiBlack).SprintFunc()
	blue   = color.New(color.FgBlue, color.Bold).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	green  = color.New(color.FgGreen).SprintFunc()
)

func newTable(w io.Writer, header ...string) *tablewriter.Table {
	t := tablewriter.NewWriter(w)
	t.SetHeader(header)
	t.SetAutoWrapText(false)
	t.SetAutoFormatHeaders(true)
	t.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	t.SetAlignment(tablewriter.ALIGN_LEFT)
	t.SetBorder(false)
	t.SetColumnSeparator("")
	t.SetRowSeparator("")
	t.SetCenterSeparator("")
	t.SetHeaderLine(false)
	t.SetTablePadding("  ")
	t.SetNoWhiteSpace(true)
	return t
}

func size(e types.Entry) string {
	switch {
	case e.IsDir:
		return gray("-")
	case e.Size == nil:
		return gray("?")
	default:
		return humanize.Bytes(uint64(*e.Size))
	}
}

func name(e types.Entry) string {
	if e.IsDir {
		return blue(e.Name + "/")
	}
	return e.Name
}

func when(t time.Time) string {
	if t.IsZero() {
		return gray("-")
	}
	return humanize.Time(t)
}

func renderEntries(w io.Writer, entries []types.Entry) {
	t := newTable(w, "name", "size", "modified", "address")
	t.AppendBulk(lo.Map(entries, func(e types.Entry, _ int) []string {
		return []string{name(e), size(e), when(e.ModifiedAt), gray(e.Address.String())}
	}))
	t.Render()
}

func stage(r provider.TrashRecord) string {
	if r.Stage == provider.StagePendingPurge {
		return red(trash.StatePendingPurge.String())
	}
	return yellow(trash.StateTrashed.String())
}

func deadline(r provider.TrashRecord, now time.Time) string {
	switch {
	case r.RetentionDeadline == nil:
		return gray("never")
	case r.Expired(now):
		return red("expired")
	default:
		return humanize.Time(*r.RetentionDeadline)
	}
}

func renderRecords(w io.Writer, records []provider.TrashRecord, now time.Time) {
	t := newTable(w, "name", "size", "deleted", "from", "state", "purged", "address")
	t.AppendBulk(lo.Map(records, func(r provider.TrashRecord, _ int) []string {
		return []string{
			name(r.Entry),
			size(r.Entry),
			when(r.DeletedAt),
			r.OriginalLocation.String(),
			stage(r),
			deadline(r, now),
			gray(r.Entry.Address.String()),
		}
	}))
	t.Render()
}

func state(s trash.State) string {
	switch s {
	case trash.StateActive:
		return green(s.String())
	case trash.StateTrashed:
		return yellow(s.String())
	default:
		return red(s.String())
	}
}

func renderVersions(w io.Writer, versions []provider.Version) {
	t := newTable(w, "revision", "size", "modified", "sha256")
	t.AppendBulk(lo.Map(versions, func(v provider.Version, _ int) []string {
		id := v.ID
		if v.Current {
			id = green(id + " *")
		}
		hash := "-"
		if v.ContentHash != nil {
			hash = v.ContentHash.Value[:min(12, len(v.ContentHash.Value))]
		}
		return []string{id, humanize.Bytes(uint64(v.Size)), when(v.CreatedAt), gray(hash)}
	}))
	t.Render()
}
