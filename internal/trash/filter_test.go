package trash

import (
	"testing"
	"time"

	"github.com/babarot/kura/internal/config"
	"github.com/babarot/kura/internal/core/types"
	"github.com/babarot/kura/internal/provider"
)

// TestItem is a mock implementation of Filterable for testing
type TestItem struct {
	name      string
	size      int64
	sized     bool
	deletedAt time.Time
}

func (t TestItem) GetName() string         { return t.name }
func (t TestItem) GetSize() (int64, bool)  { return t.size, t.sized }
func (t TestItem) GetDeletedAt() time.Time { return t.deletedAt }

var filterNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// createTestItems generates a slice of test items for various test scenarios
func createTestItems() []TestItem {
	return []TestItem{
		{name: "file1.txt", size: 100, sized: true, deletedAt: filterNow.Add(-24 * time.Hour)},
		{name: "file2.log", size: 1024, sized: true, deletedAt: filterNow.Add(-48 * time.Hour)},
		{name: "important.txt", size: 10240, sized: true, deletedAt: filterNow.Add(-72 * time.Hour)},
		{name: "temp.tmp", size: 102400, sized: true, deletedAt: filterNow.Add(-96 * time.Hour)},
	}
}

func names[T Filterable](items []T) []string {
	var out []string
	for _, item := range items {
		out = append(out, item.GetName())
	}
	return out
}

func sameNames(t *testing.T, got, want []string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("Expected %v, got %v", want, got)
	}
	for i := range got {
		if got[i] != want[i] {
			t.Errorf("Expected %v, got %v", want, got)
			return
		}
	}
}

func TestRejectBySize(t *testing.T) {
	items := createTestItems()

	testCases := []struct {
		name          string
		sizeConfig    config.SizeConfig
		expectedNames []string
	}{
		{
			name:          "No size filter",
			sizeConfig:    config.SizeConfig{},
			expectedNames: []string{"file1.txt", "file2.log", "important.txt", "temp.tmp"},
		},
		{
			name:          "Filter by min size",
			sizeConfig:    config.SizeConfig{Min: "1KB"},
			expectedNames: []string{"file2.log", "important.txt", "temp.tmp"},
		},
		{
			name:          "Filter by max size",
			sizeConfig:    config.SizeConfig{Max: "10KB"},
			expectedNames: []string{"file1.txt", "file2.log"},
		},
		{
			name:          "Filter by both min and max size",
			sizeConfig:    config.SizeConfig{Min: "1KB", Max: "20KB"},
			expectedNames: []string{"file2.log", "important.txt"},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			sameNames(t, names(rejectBySize(items, tc.sizeConfig)), tc.expectedNames)
		})
	}
}

func TestRejectBySizeKeepsUnsized(t *testing.T) {
	items := []TestItem{{name: "gdoc"}, {name: "big", size: 1 << 30, sized: true}}
	got := rejectBySize(items, config.SizeConfig{Max: "1MB"})
	sameNames(t, names(got), []string{"gdoc"})
}

func TestFilter(t *testing.T) {
	items := createTestItems()

	testCases := []struct {
		name          string
		filterOptions FilterOptions
		expectedNames []string
	}{
		{
			name:          "No filters",
			filterOptions: FilterOptions{},
			expectedNames: []string{"file1.txt", "file2.log", "important.txt", "temp.tmp"},
		},
		{
			name: "Exclude by name",
			filterOptions: FilterOptions{
				Exclude: config.ExcludeConfig{Files: []string{"important.txt"}},
			},
			expectedNames: []string{"file1.txt", "file2.log", "temp.tmp"},
		},
		{
			name: "Exclude by glob",
			filterOptions: FilterOptions{
				Exclude: config.ExcludeConfig{Globs: []string{"*.txt"}},
			},
			expectedNames: []string{"file2.log", "temp.tmp"},
		},
		{
			name: "Within period",
			filterOptions: FilterOptions{
				Include: config.IncludeConfig{Period: 3},
			},
			expectedNames: []string{"file1.txt", "file2.log"},
		},
		{
			name: "Combined filters",
			filterOptions: FilterOptions{
				Include: config.IncludeConfig{Period: 5},
				Exclude: config.ExcludeConfig{
					Files:    []string{"important.txt"},
					Patterns: []string{`^temp`},
					Size:     config.SizeConfig{Min: "1KB", Max: "10KB"},
				},
			},
			expectedNames: []string{"file2.log"},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			opts := tc.filterOptions
			opts.Now = func() time.Time { return filterNow }
			sameNames(t, names(Filter(items, opts)), tc.expectedNames)
		})
	}
}

func TestFilterRecords(t *testing.T) {
	recs := []provider.TrashRecord{
		{Entry: types.Entry{Name: "a.txt", Size: types.Int64(10)}, DeletedAt: filterNow},
		{Entry: types.Entry{Name: ".DS_Store", Size: types.Int64(10)}, DeletedAt: filterNow},
	}
	got := FilterRecords(recs, FilterOptions{
		Exclude: config.ExcludeConfig{Files: []string{".DS_Store"}},
		Now:     func() time.Time { return filterNow },
	})
	if len(got) != 1 || got[0].Entry.Name != "a.txt" {
		t.Errorf("unexpected records: %+v", got)
	}
}
