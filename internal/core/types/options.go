package types

// ReadOptions selects a byte range. Zero values read the whole entry.
type ReadOptions struct {
	Offset int64
	// Length <= 0 reads to the end
	Length int64
}

// IsRange reports whether a partial read was requested
func (o ReadOptions) IsRange() bool {
	return o.Offset > 0 || o.Length > 0
}

// WriteOptions controls how a write treats the target location
type WriteOptions struct {
	Overwrite     bool
	CreateParents bool
	ContentType   string
}

// MoveOptions controls rename/move
type MoveOptions struct {
	Overwrite bool
}

// ListOptions requests one page of a directory listing
type ListOptions struct {
	// PageSize <= 0 lets the backend choose
	PageSize int
	// Token resumes a previous listing; empty starts from the beginning
	Token string
}

// Page is one slice of a listing. An empty NextToken means the listing
// is complete.
type Page struct {
	Entries   []Entry
	NextToken string
}
