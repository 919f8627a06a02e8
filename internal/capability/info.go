package capability

import (
	"maps"
	"slices"
)

// ProviderInfo identifies a concrete backend implementation
type ProviderInfo struct {
	ID          string
	DisplayName string
	Version     string
	APIVersion  string
	Category    string
	WebsiteURL  string

	tags     map[string]struct{}
	metadata map[string]string
}

// NewProviderInfo returns info with the required identity fields set
func NewProviderInfo(id, displayName string) ProviderInfo {
	return ProviderInfo{ID: id, DisplayName: displayName}
}

func (i ProviderInfo) WithVersion(v string) ProviderInfo {
	i.Version = v
	return i
}

func (i ProviderInfo) WithAPIVersion(v string) ProviderInfo {
	i.APIVersion = v
	return i
}

func (i ProviderInfo) WithCategory(c string) ProviderInfo {
	i.Category = c
	return i
}

func (i ProviderInfo) WithWebsite(url string) ProviderInfo {
	i.WebsiteURL = url
	return i
}

// WithTags adds tags; duplicates collapse
func (i ProviderInfo) WithTags(tags ...string) ProviderInfo {
	next := make(map[string]struct{}, len(i.tags)+len(tags))
	for t := range i.tags {
		next[t] = struct{}{}
	}
	for _, t := range tags {
		next[t] = struct{}{}
	}
	i.tags = next
	return i
}

func (i ProviderInfo) WithMetadata(key, value string) ProviderInfo {
	next := maps.Clone(i.metadata)
	if next == nil {
		next = map[string]string{}
	}
	next[key] = value
	i.metadata = next
	return i
}

// Tags returns the tag set sorted
func (i ProviderInfo) Tags() []string {
	return slices.Sorted(maps.Keys(i.tags))
}

func (i ProviderInfo) HasTag(tag string) bool {
	_, ok := i.tags[tag]
	return ok
}

// Metadata returns a copy of the metadata map
func (i ProviderInfo) Metadata() map[string]string {
	return maps.Clone(i.metadata)
}

func (i ProviderInfo) MetadataValue(key string) (string, bool) {
	v, ok := i.metadata[key]
	return v, ok
}

func (i ProviderInfo) clone() ProviderInfo {
	i.tags = maps.Clone(i.tags)
	i.metadata = maps.Clone(i.metadata)
	return i
}
