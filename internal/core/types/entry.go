package types

import "time"

// ContentHash is a backend defined digest of the entry content
type ContentHash struct {
	Algorithm string `json:"algorithm"`
	Value     string `json:"value"`
}

// Entry is a file or folder as reported by a provider
type Entry struct {
	Address Address `json:"address"`
	Name    string  `json:"name"`

	// Size is nil for content that has no fixed byte size
	// (e.g. native office documents on some drives)
	Size  *int64 `json:"size,omitempty"`
	IsDir bool   `json:"is_dir"`

	Status Status `json:"status"`

	ContentHash *ContentHash `json:"content_hash,omitempty"`

	CreatedAt  time.Time `json:"created_at,omitzero"`
	ModifiedAt time.Time `json:"modified_at,omitzero"`

	Revision string   `json:"revision,omitempty"`
	Metadata Metadata `json:"metadata,omitempty"`
}

// SizeOrZero returns the size or 0 when it is unknown
func (e Entry) SizeOrZero() int64 {
	if e.Size == nil {
		return 0
	}
	return *e.Size
}

// WithStatus returns a copy of e with the status replaced
func (e Entry) WithStatus(s Status) Entry {
	e.Status = s
	return e
}

// Int64 is a helper for building optional sizes
func Int64(n int64) *int64 {
	return &n
}
