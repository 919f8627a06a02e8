package trash

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/babarot/kura/internal/core/types"
	"github.com/babarot/kura/internal/provider"
)

// ConflictPolicy decides what restore does when the original location
// is taken
type ConflictPolicy int

const (
	// ConflictDefault defers to the engine's configured default
	ConflictDefault ConflictPolicy = iota
	ConflictRename
	ConflictFail
	ConflictOverwrite
)

func (c ConflictPolicy) String() string {
	switch c {
	case ConflictRename:
		return "rename"
	case ConflictFail:
		return "fail"
	case ConflictOverwrite:
		return "overwrite"
	default:
		return "default"
	}
}

// ParseConflictPolicy accepts rename, fail and overwrite. The empty
// string is ConflictDefault.
func ParseConflictPolicy(s string) (ConflictPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return ConflictDefault, nil
	case "rename":
		return ConflictRename, nil
	case "fail":
		return ConflictFail, nil
	case "overwrite":
		return ConflictOverwrite, nil
	}
	return ConflictDefault, fmt.Errorf("unknown conflict policy %q (rename, fail, overwrite)", s)
}

const maxRenameAttempts = 1000

// freeName finds the first "name (restored N).ext" next to dst that
// does not exist yet
func freeName(ctx context.Context, conn *provider.Conn, dst types.Address) (types.Address, error) {
	if dst.Mode != types.AddressPath {
		return dst, provider.Errorf(provider.KindConflict, "restore", dst,
			"cannot rename an id addressed location")
	}

	dir, base := path.Split(dst.Value)
	ext := path.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	if stem == "" {
		stem, ext = base, ""
	}

	for i := 1; i <= maxRenameAttempts; i++ {
		candidate := types.Path(fmt.Sprintf("%s%s (restored %d)%s", dir, stem, i, ext))
		exists, err := conn.EntryExists(ctx, candidate)
		if err != nil {
			return dst, err
		}
		if !exists {
			return candidate, nil
		}
	}
	return dst, provider.Errorf(provider.KindConflict, "restore", dst,
		fmt.Sprintf("no free name after %d attempts", maxRenameAttempts))
}
