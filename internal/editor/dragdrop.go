package editor

import (
	"github.com/staticforge/console/pkg/models"
	"github.com/staticforge/console/pkg/tree"
)

// DropPosition is where a dragged row lands relative to the row under the
// pointer.
type DropPosition int

const (
	DropBefore DropPosition = iota
	DropInside
	DropAfter
)

func (p DropPosition) String() string {
	switch p {
	case DropBefore:
		return "before"
	case DropInside:
		return "inside"
	case DropAfter:
		return "after"
	}
	return "unknown"
}

// ToGap reports whether the drop lands between rows rather than onto one.
func (p DropPosition) ToGap() bool {
	return p != DropInside
}

// ClassifyDrop buckets the pointer offset within a row of the given height.
// Folder rows split into a top quarter, a middle half and a bottom quarter;
// file rows only split at the midpoint since files cannot hold children.
func ClassifyDrop(offsetY, height float64, isFolder bool) DropPosition {
	if isFolder {
		switch {
		case offsetY < height*0.25:
			return DropBefore
		case offsetY > height*0.75:
			return DropAfter
		default:
			return DropInside
		}
	}
	if offsetY < height/2 {
		return DropBefore
	}
	return DropAfter
}

// ResolveMoveTarget returns the folder an entry dropped at dest moves into.
// A gap drop uses dest's parent; a drop onto a folder uses the folder; a
// drop onto a file uses the file's parent.
func ResolveMoveTarget(dest models.FileEntry, dropToGap bool) string {
	if !dropToGap && dest.IsFolder {
		return dest.Path
	}
	return tree.ParentDir(dest.Path)
}

// ExternalDropTarget returns the folder that files dropped from outside the
// tree are uploaded to: the folder row they landed on, otherwise the root.
func ExternalDropTarget(onto *models.FileEntry) string {
	if onto != nil && onto.IsFolder {
		return onto.Path
	}
	return "/"
}

// IsRootIndex reports whether path names the project's root index.html,
// which must never be renamed, moved or deleted.
func IsRootIndex(path string) bool {
	return path == "index.html" || path == "/index.html"
}
