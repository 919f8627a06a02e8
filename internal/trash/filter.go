package trash

import (
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"github.com/babarot/kura/internal/config"
	"github.com/babarot/kura/internal/provider"
	"github.com/docker/go-units"
	"github.com/gobwas/glob"
	"github.com/k1LoW/duration"
)

// Filterable defines what trashed items expose to filtering
type Filterable interface {
	// GetName returns the display name of the entry
	GetName() string
	// GetSize returns the size and whether it is known
	GetSize() (int64, bool)
	// GetDeletedAt returns when the entry was trashed
	GetDeletedAt() time.Time
}

// FilterOptions holds filtering configuration
type FilterOptions struct {
	Include config.IncludeConfig
	Exclude config.ExcludeConfig

	// Now defaults to time.Now
	Now func() time.Time
}

// Filter applies filtering rules to a slice of items
func Filter[T Filterable](items []T, opts FilterOptions) []T {
	items = rejectByNames(items, opts.Exclude.Files)
	items = rejectByPatterns(items, opts.Exclude.Patterns)
	items = rejectByGlobs(items, opts.Exclude.Globs)
	items = rejectBySize(items, opts.Exclude.Size)

	now := time.Now
	if opts.Now != nil {
		now = opts.Now
	}
	return filterByPeriod(items, opts.Include.Period, now())
}

type record struct {
	provider.TrashRecord
}

func (r record) GetName() string         { return r.Entry.Name }
func (r record) GetDeletedAt() time.Time { return r.DeletedAt }

func (r record) GetSize() (int64, bool) {
	if r.Entry.Size == nil {
		return 0, false
	}
	return *r.Entry.Size, true
}

// FilterRecords filters trash records with the same rules as Filter
func FilterRecords(recs []provider.TrashRecord, opts FilterOptions) []provider.TrashRecord {
	items := make([]record, len(recs))
	for i, r := range recs {
		items[i] = record{r}
	}
	kept := Filter(items, opts)
	out := make([]provider.TrashRecord, len(kept))
	for i, r := range kept {
		out[i] = r.TrashRecord
	}
	return out
}

func reject[T Filterable](items []T, drop func(T) bool) []T {
	var filtered []T
	for _, item := range items {
		if !drop(item) {
			filtered = append(filtered, item)
		}
	}
	return filtered
}

func rejectByNames[T Filterable](items []T, excludeFiles []string) []T {
	if len(excludeFiles) == 0 {
		return items
	}
	return reject(items, func(item T) bool {
		for _, exclude := range excludeFiles {
			if item.GetName() == exclude {
				return true
			}
		}
		return false
	})
}

func rejectByPatterns[T Filterable](items []T, patterns []string) []T {
	if len(patterns) == 0 {
		return items
	}
	var res []*regexp.Regexp
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			slog.Warn("skipping invalid pattern", "pattern", p, "error", err)
			continue
		}
		res = append(res, re)
	}
	return reject(items, func(item T) bool {
		for _, re := range res {
			if re.MatchString(item.GetName()) {
				return true
			}
		}
		return false
	})
}

func rejectByGlobs[T Filterable](items []T, globs []string) []T {
	if len(globs) == 0 {
		return items
	}
	var gs []glob.Glob
	for _, g := range globs {
		compiled, err := glob.Compile(g)
		if err != nil {
			slog.Warn("skipping invalid glob", "glob", g, "error", err)
			continue
		}
		gs = append(gs, compiled)
	}
	return reject(items, func(item T) bool {
		for _, g := range gs {
			if g.Match(item.GetName()) {
				return true
			}
		}
		return false
	})
}

func rejectBySize[T Filterable](items []T, size config.SizeConfig) []T {
	if size.Min == "" && size.Max == "" {
		return items
	}

	var (
		min, max       int64
		hasMin, hasMax bool
	)
	if size.Min != "" {
		if v, err := units.FromHumanSize(size.Min); err == nil {
			min, hasMin = v, true
		}
	}
	if size.Max != "" {
		if v, err := units.FromHumanSize(size.Max); err == nil {
			max, hasMax = v, true
		}
	}

	return reject(items, func(item T) bool {
		n, ok := item.GetSize()
		if !ok {
			// entries without a byte size are never excluded by size
			return false
		}
		if hasMin && n <= min {
			return true
		}
		if hasMax && max <= n {
			return true
		}
		return false
	})
}

func filterByPeriod[T Filterable](items []T, period int, now time.Time) []T {
	if period <= 0 {
		return items
	}

	d, err := duration.Parse(fmt.Sprintf("%d days", period))
	if err != nil {
		slog.Error("failed to parse duration", "error", err)
		return items
	}

	return reject(items, func(item T) bool {
		return now.Sub(item.GetDeletedAt()) >= d
	})
}
