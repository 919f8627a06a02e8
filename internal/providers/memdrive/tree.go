package memdrive

import (
	"io"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/babarot/kura/internal/core/types"
	"github.com/babarot/kura/internal/provider"
	"github.com/go-git/go-billy/v5/util"
)

type node struct {
	id     string
	parent string
	name   string
	dir    bool

	blob        string
	size        int64
	native      bool
	hash        string
	contentType string

	created  time.Time
	modified time.Time
	revision int
	history  []revision

	status types.Status
	trash  *trashInfo
	props  types.Metadata
}

type trashInfo struct {
	deletedAt time.Time
	origPath  string
	deadline  *time.Time
	stage     provider.Stage
	actor     string
}

func (n *node) trashed() bool { return n.trash != nil }

// resolve finds a node. Paths only see active entries; ids see trashed
// ones as well.
func (d *Drive) resolve(op string, addr types.Address) (*node, error) {
	switch addr.Mode {
	case types.AddressID:
		n, ok := d.nodes[addr.Value]
		if !ok {
			return nil, provider.NewError(provider.KindEntryNotFound, op, addr, nil)
		}
		return n, nil
	default:
		n := d.nodes[d.rootID]
		for _, part := range split(addr.Value) {
			child := d.child(n, part)
			if child == nil {
				return nil, provider.NewError(provider.KindEntryNotFound, op, addr, nil)
			}
			n = child
		}
		return n, nil
	}
}

// resolveActive is resolve restricted to entries outside the trash
func (d *Drive) resolveActive(op string, addr types.Address) (*node, error) {
	n, err := d.resolve(op, addr)
	if err != nil {
		return nil, err
	}
	if n.trashed() || d.underTrash(n) {
		return nil, provider.NewError(provider.KindEntryNotFound, op, addr, nil)
	}
	return n, nil
}

func (d *Drive) underTrash(n *node) bool {
	for p := d.nodes[n.parent]; p != nil; p = d.nodes[p.parent] {
		if p.trashed() {
			return true
		}
	}
	return false
}

func (d *Drive) child(dir *node, name string) *node {
	for _, n := range d.nodes {
		if n.parent == dir.id && n.name == name && !n.trashed() {
			return n
		}
	}
	return nil
}

func (d *Drive) children(dir *node) []*node {
	var out []*node
	for _, n := range d.nodes {
		if n.parent == dir.id && !n.trashed() {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out
}

func (d *Drive) pathOf(n *node) string {
	if n.id == d.rootID {
		return "/"
	}
	var parts []string
	for cur := n; cur != nil && cur.id != d.rootID; cur = d.nodes[cur.parent] {
		parts = append([]string{cur.name}, parts...)
	}
	return "/" + strings.Join(parts, "/")
}

// parentFor resolves the folder that will hold p, creating missing
// folders when mkdirs is set
func (d *Drive) parentFor(op string, p string, mkdirs bool) (*node, string, error) {
	parts := split(p)
	if len(parts) == 0 {
		return nil, "", provider.Errorf(provider.KindInvalidAddress, op, types.Path(p), "root has no parent")
	}
	dir := d.nodes[d.rootID]
	for _, part := range parts[:len(parts)-1] {
		next := d.child(dir, part)
		switch {
		case next == nil && mkdirs:
			next = d.newNode(dir, part, true)
		case next == nil:
			return nil, "", provider.Errorf(provider.KindEntryNotFound, op, types.Path(p),
				"parent folder "+path.Dir(p)+" does not exist")
		case !next.dir:
			return nil, "", provider.Errorf(provider.KindConflict, op, types.Path(p), part+" is not a folder")
		}
		dir = next
	}
	return dir, parts[len(parts)-1], nil
}

func (d *Drive) newNode(parent *node, name string, dir bool) *node {
	now := d.clock()
	n := &node{
		id:       newID(),
		parent:   parent.id,
		name:     name,
		dir:      dir,
		created:  now,
		modified: now,
		status:   types.StatusActive,
	}
	d.nodes[n.id] = n
	return n
}

// remove drops n and everything below it, blobs included. Children
// trashed on their own stay in the trash.
func (d *Drive) remove(n *node) {
	for _, c := range d.allChildren(n) {
		if !c.trashed() {
			d.remove(c)
		}
	}
	if n.blob != "" {
		_ = util.RemoveAll(d.fs, n.blob)
	}
	for _, r := range n.history {
		_ = util.RemoveAll(d.fs, r.blob)
	}
	delete(d.nodes, n.id)
}

func (d *Drive) allChildren(dir *node) []*node {
	var out []*node
	for _, n := range d.nodes {
		if n.parent == dir.id {
			out = append(out, n)
		}
	}
	return out
}

func (d *Drive) isAncestor(a, n *node) bool {
	for cur := n; cur != nil; cur = d.nodes[cur.parent] {
		if cur.id == a.id {
			return true
		}
		if cur.id == d.rootID {
			break
		}
	}
	return false
}

// used is the byte total of every stored file, trash included
func (d *Drive) used() (total, trash int64) {
	for _, n := range d.nodes {
		if n.dir {
			continue
		}
		total += n.size
		if n.trashed() || d.underTrash(n) {
			trash += n.size
		}
	}
	return total, trash
}

func (d *Drive) entry(n *node) types.Entry {
	e := types.Entry{
		Address:    types.ID(n.id),
		Name:       n.name,
		IsDir:      n.dir,
		Status:     n.status,
		CreatedAt:  n.created,
		ModifiedAt: n.modified,
		Metadata: types.Metadata{
			"path":    types.String(d.pathOf(n)),
			"starred": types.Bool(false),
		},
	}
	if n.trashed() {
		e.Metadata["path"] = types.String(n.trash.origPath)
	}
	if n.id == d.rootID {
		e.Name = "/"
	}
	if !n.dir {
		if !n.native {
			e.Size = types.Int64(n.size)
		}
		e.ContentHash = &types.ContentHash{Algorithm: "sha256", Value: n.hash}
		e.Revision = strconv.Itoa(n.revision)
		e.Metadata["revisions"] = types.Number(float64(n.revision))
		if n.contentType != "" {
			e.Metadata["mime_type"] = types.String(n.contentType)
		}
	}
	for k, v := range n.props {
		e.Metadata[k] = v
	}
	return e
}

func (d *Drive) record(n *node) provider.TrashRecord {
	return provider.TrashRecord{
		Entry:             d.entry(n),
		DeletedAt:         n.trash.deletedAt,
		OriginalLocation:  types.Path(n.trash.origPath),
		DeletingActor:     n.trash.actor,
		RetentionDeadline: n.trash.deadline,
		Stage:             n.trash.stage,
	}
}

func (d *Drive) readBlob(name string) ([]byte, error) {
	f, err := d.fs.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

func split(p string) []string {
	var parts []string
	for _, s := range strings.Split(path.Clean("/"+p), "/") {
		if s != "" {
			parts = append(parts, s)
		}
	}
	return parts
}
