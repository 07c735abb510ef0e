// Package tree builds the console's folder/file tree from the flat,
// path-keyed listing returned by the file service.
package tree

import (
	"sort"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/staticforge/console/pkg/models"
)

// Node is an entry placed in the tree. Children is non-nil if and only if
// IsFolder is true. Level is the depth the node is rendered at.
type Node struct {
	Key      string
	Name     string
	Path     string
	IsFolder bool
	Children []*Node
	Level    int
	File     models.FileEntry
}

// Build reconstructs the tree from a flat listing. It is pure and rebuilds
// everything on each call; nothing is carried over between calls.
//
// Paths that differ only by leading or trailing slashes denote the same
// node. Entries whose parent folder is missing are attached at the root.
func Build(entries []models.FileEntry) []*Node {
	sorted := sortEntries(entries)
	reg := make(registry, len(sorted))

	nodes := make([]*Node, 0, len(sorted))
	for _, e := range sorted {
		n := newNode(e)
		if reg.register(n) {
			nodes = append(nodes, n)
		}
	}

	roots := make([]*Node, 0)
	for _, n := range nodes {
		canonical := Canonical(n.Path)
		i := strings.LastIndex(canonical, "/")
		if i < 0 {
			roots = append(roots, n)
			continue
		}

		parent := reg.lookup(canonical[:i])
		if parent != nil && parent.IsFolder {
			parent.Children = append(parent.Children, n)
		} else {
			roots = append(roots, n)
		}
	}

	for _, n := range roots {
		setLevel(n, 0)
	}
	return roots
}

func newNode(e models.FileEntry) *Node {
	n := &Node{
		Key:      e.Path,
		Name:     e.Name,
		Path:     e.Path,
		IsFolder: e.IsFolder,
		File:     e,
	}
	if e.IsFolder {
		n.Children = []*Node{}
	}
	return n
}

// Children are attached in sorted-entry order, which can put a child under
// a folder before that folder is itself attached, so depth is assigned once
// the whole structure exists.
func setLevel(n *Node, level int) {
	n.Level = level
	for _, child := range n.Children {
		setLevel(child, level+1)
	}
}

// sortEntries orders folders before files, then by locale-aware name.
// Ties keep their input order.
func sortEntries(entries []models.FileEntry) []models.FileEntry {
	sorted := make([]models.FileEntry, len(entries))
	copy(sorted, entries)

	col := collate.New(language.Und)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.IsFolder != b.IsFolder {
			return a.IsFolder
		}
		return col.CompareString(a.Name, b.Name) < 0
	})
	return sorted
}

// registry resolves any slash variant of a path to the node owning it.
// Keys are canonical, so "a/b", "/a/b" and "a/b/" share a slot.
type registry map[string]*Node

// register reports whether n should appear in the tree. A second entry of
// the same kind on an occupied path is collapsed into the first. On a
// folder/file clash the folder owns the slot and the file stays a leaf.
func (r registry) register(n *Node) bool {
	key := Canonical(n.Path)
	existing, ok := r[key]
	if !ok {
		r[key] = n
		return true
	}
	if existing.IsFolder == n.IsFolder {
		return false
	}
	if n.IsFolder {
		r[key] = n
	}
	return true
}

func (r registry) lookup(path string) *Node {
	return r[Canonical(path)]
}

// Anomaly describes entries whose paths collide once normalized.
type Anomaly struct {
	Path  string
	Paths []string
	Mixed bool // folder and file on the same path
}

// Anomalies reports canonical paths claimed by more than one entry.
func Anomalies(entries []models.FileEntry) []Anomaly {
	type claim struct {
		paths   []string
		folders int
	}
	claims := make(map[string]*claim)
	var order []string
	for _, e := range entries {
		key := Canonical(e.Path)
		c, ok := claims[key]
		if !ok {
			c = &claim{}
			claims[key] = c
			order = append(order, key)
		}
		c.paths = append(c.paths, e.Path)
		if e.IsFolder {
			c.folders++
		}
	}

	var out []Anomaly
	for _, key := range order {
		c := claims[key]
		if len(c.paths) < 2 {
			continue
		}
		out = append(out, Anomaly{
			Path:  key,
			Paths: c.paths,
			Mixed: c.folders > 0 && c.folders < len(c.paths),
		})
	}
	return out
}

// Canonical strips leading and trailing slashes. It is used for parent/child
// resolution only; service calls always use the literal path.
func Canonical(path string) string {
	return strings.Trim(path, "/")
}

// SamePath reports whether two literal paths denote the same entry.
func SamePath(a, b string) bool {
	return Canonical(a) == Canonical(b)
}

// ParentDir returns the directory holding path, keeping the literal form
// ("/docs/a.md" -> "/docs"). Root-level paths yield "/".
func ParentDir(path string) string {
	trimmed := strings.TrimRight(path, "/")
	i := strings.LastIndex(trimmed, "/")
	if i <= 0 {
		return "/"
	}
	return trimmed[:i]
}

// BaseName returns the last segment of path.
func BaseName(path string) string {
	canonical := Canonical(path)
	return canonical[strings.LastIndex(canonical, "/")+1:]
}

// BuildChildPath constructs a child path from a directory and a name.
// The root directory "/" produces a bare name, as the service reports.
func BuildChildPath(dir, name string) string {
	dir = strings.TrimRight(dir, "/")
	if dir == "" {
		return name
	}
	return dir + "/" + name
}

// IsWithin reports whether path is dir itself or lies below it.
func IsWithin(path, dir string) bool {
	p, d := Canonical(path), Canonical(dir)
	if d == "" {
		return true
	}
	return p == d || strings.HasPrefix(p, d+"/")
}

// FindByPath resolves a path in the tree (recursive), accepting any slash
// variant.
func FindByPath(nodes []*Node, path string) *Node {
	want := Canonical(path)
	var found *Node
	Walk(nodes, func(n *Node) bool {
		if Canonical(n.Path) == want {
			found = n
			return false
		}
		return true
	})
	return found
}

// Walk visits nodes depth-first in display order until fn returns false.
func Walk(nodes []*Node, fn func(*Node) bool) bool {
	for _, n := range nodes {
		if !fn(n) {
			return false
		}
		if !Walk(n.Children, fn) {
			return false
		}
	}
	return true
}

// CountNodes counts all nodes in the tree.
func CountNodes(nodes []*Node) int {
	count := 0
	Walk(nodes, func(*Node) bool {
		count++
		return true
	})
	return count
}

// Flatten returns all nodes keyed by canonical path.
func Flatten(nodes []*Node) map[string]*Node {
	result := make(map[string]*Node)
	Walk(nodes, func(n *Node) bool {
		key := Canonical(n.Path)
		if _, ok := result[key]; !ok {
			result[key] = n
		}
		return true
	})
	return result
}
