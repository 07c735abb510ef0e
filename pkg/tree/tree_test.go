package tree

import (
	"testing"

	"github.com/staticforge/console/pkg/models"
)

func folder(path, name string) models.FileEntry {
	return models.FileEntry{Path: path, Name: name, IsFolder: true}
}

func file(path, name string) models.FileEntry {
	return models.FileEntry{Path: path, Name: name}
}

func names(nodes []*Node) []string {
	out := make([]string, len(nodes))
	for i, n := range nodes {
		out[i] = n.Name
	}
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestBuildSlashVariants(t *testing.T) {
	for _, childPath := range []string{"a/b", "/a/b", "a/b/", "/a/b/"} {
		for _, parentPath := range []string{"a", "/a", "a/", "/a/"} {
			roots := Build([]models.FileEntry{
				folder(parentPath, "a"),
				file(childPath, "b"),
			})
			if len(roots) != 1 {
				t.Fatalf("parent %q child %q: got %d roots, want 1", parentPath, childPath, len(roots))
			}
			a := roots[0]
			if len(a.Children) != 1 || a.Children[0].Name != "b" {
				t.Fatalf("parent %q child %q: b not attached once under a: %v", parentPath, childPath, names(a.Children))
			}
			if a.Children[0].Key != childPath {
				t.Errorf("child key = %q, want literal %q", a.Children[0].Key, childPath)
			}
			if a.Children[0].Level != 1 {
				t.Errorf("child level = %d, want 1", a.Children[0].Level)
			}
		}
	}
}

func TestBuildCollapsesSamePathVariants(t *testing.T) {
	roots := Build([]models.FileEntry{
		folder("a", "a"),
		file("a/b", "b"),
		file("/a/b/", "b"),
	})
	if len(roots) != 1 {
		t.Fatalf("got %d roots, want 1", len(roots))
	}
	if got := len(roots[0].Children); got != 1 {
		t.Errorf("b attached %d times, want once", got)
	}
}

func TestBuildOrdering(t *testing.T) {
	roots := Build([]models.FileEntry{
		folder("z", "z"),
		file("z/file.txt", "file.txt"),
		folder("a", "a"),
		file("a/file.txt", "file.txt"),
		file("m.txt", "m.txt"),
	})

	want := []string{"a", "z", "m.txt"}
	if got := names(roots); !equalStrings(got, want) {
		t.Errorf("root order = %v, want %v", got, want)
	}
	for _, n := range roots[:2] {
		if len(n.Children) != 1 || n.Children[0].Name != "file.txt" {
			t.Errorf("folder %s children = %v", n.Name, names(n.Children))
		}
	}
}

func TestBuildChildOrdering(t *testing.T) {
	roots := Build([]models.FileEntry{
		file("docs/zeta.md", "zeta.md"),
		file("docs/alpha.md", "alpha.md"),
		folder("docs/img", "img"),
		folder("docs", "docs"),
	})
	if len(roots) != 1 {
		t.Fatalf("got %d roots, want 1", len(roots))
	}
	want := []string{"img", "alpha.md", "zeta.md"}
	if got := names(roots[0].Children); !equalStrings(got, want) {
		t.Errorf("children = %v, want %v", got, want)
	}
}

func TestBuildOrphan(t *testing.T) {
	roots := Build([]models.FileEntry{
		file("index.html", "index.html"),
		file("orphan/x/file.txt", "file.txt"),
	})
	if len(roots) != 2 {
		t.Fatalf("got %d roots, want 2", len(roots))
	}
	orphan := FindByPath(roots, "orphan/x/file.txt")
	if orphan == nil {
		t.Fatal("orphan entry dropped")
	}
	if orphan.Level != 0 {
		t.Errorf("orphan level = %d, want 0", orphan.Level)
	}
}

func TestBuildParentIsFile(t *testing.T) {
	roots := Build([]models.FileEntry{
		file("a.txt", "a.txt"),
		file("a.txt/b.txt", "b.txt"),
	})
	if len(roots) != 2 {
		t.Fatalf("got %d roots, want 2 (file cannot hold children)", len(roots))
	}
}

func TestBuildLevelsDeepNesting(t *testing.T) {
	// "a" sorts before "b" and "m", so it is attached to b before b is
	// attached to m.
	roots := Build([]models.FileEntry{
		folder("m", "m"),
		folder("m/b", "b"),
		folder("m/b/a", "a"),
		file("m/b/a/page.html", "page.html"),
	})
	tests := []struct {
		path  string
		level int
	}{
		{"m", 0},
		{"m/b", 1},
		{"m/b/a", 2},
		{"m/b/a/page.html", 3},
	}
	for _, tt := range tests {
		n := FindByPath(roots, tt.path)
		if n == nil {
			t.Fatalf("%s missing", tt.path)
		}
		if n.Level != tt.level {
			t.Errorf("%s level = %d, want %d", tt.path, n.Level, tt.level)
		}
	}
}

func TestBuildChildrenInvariant(t *testing.T) {
	roots := Build([]models.FileEntry{
		folder("empty", "empty"),
		file("readme.md", "readme.md"),
	})
	Walk(roots, func(n *Node) bool {
		if n.IsFolder && n.Children == nil {
			t.Errorf("folder %s has nil children", n.Path)
		}
		if !n.IsFolder && n.Children != nil {
			t.Errorf("file %s has children slice", n.Path)
		}
		return true
	})
}

func TestBuildSameNameDifferentPaths(t *testing.T) {
	roots := Build([]models.FileEntry{
		folder("a", "a"),
		folder("b", "b"),
		file("a/style.css", "style.css"),
		file("b/style.css", "style.css"),
	})
	if CountNodes(roots) != 4 {
		t.Errorf("CountNodes = %d, want 4", CountNodes(roots))
	}
}

func TestBuildFolderFileClashPrefersFolder(t *testing.T) {
	entries := []models.FileEntry{
		file("assets", "assets"),
		folder("assets", "assets"),
		file("assets/logo.svg", "logo.svg"),
	}
	roots := Build(entries)

	var folderNode, fileNode *Node
	for _, n := range roots {
		if n.IsFolder {
			folderNode = n
		} else if n.Name == "assets" {
			fileNode = n
		}
	}
	if folderNode == nil || fileNode == nil {
		t.Fatalf("both clashing entries should be kept, roots = %v", names(roots))
	}
	if len(folderNode.Children) != 1 {
		t.Errorf("child should attach to the folder, got %d children", len(folderNode.Children))
	}

	anomalies := Anomalies(entries)
	if len(anomalies) != 1 || !anomalies[0].Mixed || anomalies[0].Path != "assets" {
		t.Errorf("Anomalies = %+v", anomalies)
	}
}

func TestBuildEmpty(t *testing.T) {
	if roots := Build(nil); len(roots) != 0 {
		t.Errorf("Build(nil) = %d roots", len(roots))
	}
}

func TestBuildDeterministic(t *testing.T) {
	entries := []models.FileEntry{
		folder("css", "css"),
		file("css/a.css", "a.css"),
		file("index.html", "index.html"),
		file("about.html", "about.html"),
	}
	first := Build(entries)
	second := Build(entries)
	if !equalStrings(names(first), names(second)) {
		t.Errorf("Build not deterministic: %v vs %v", names(first), names(second))
	}
	if entries[0].Path != "css" || entries[2].Path != "index.html" {
		t.Error("Build must not reorder the caller's slice")
	}
}

func TestCanonical(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"a/b", "a/b"},
		{"/a/b", "a/b"},
		{"a/b/", "a/b"},
		{"//a/b//", "a/b"},
		{"/", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := Canonical(tt.in); got != tt.want {
			t.Errorf("Canonical(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestParentDir(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"docs/readme.md", "docs"},
		{"/docs/readme.md", "/docs"},
		{"a/b/c.txt", "a/b"},
		{"x.txt", "/"},
		{"/x.txt", "/"},
		{"docs/", "/"},
	}
	for _, tt := range tests {
		if got := ParentDir(tt.in); got != tt.want {
			t.Errorf("ParentDir(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestBuildChildPath(t *testing.T) {
	tests := []struct {
		dir, name, want string
	}{
		{"/", "file.txt", "file.txt"},
		{"", "file.txt", "file.txt"},
		{"docs", "file.txt", "docs/file.txt"},
		{"docs/", "file.txt", "docs/file.txt"},
		{"/a/b", "c", "/a/b/c"},
	}
	for _, tt := range tests {
		if got := BuildChildPath(tt.dir, tt.name); got != tt.want {
			t.Errorf("BuildChildPath(%q, %q) = %q, want %q", tt.dir, tt.name, got, tt.want)
		}
	}
}

func TestBaseNameAndIsWithin(t *testing.T) {
	if got := BaseName("/a/b/c.txt/"); got != "c.txt" {
		t.Errorf("BaseName = %q", got)
	}
	if got := BaseName("top"); got != "top" {
		t.Errorf("BaseName = %q", got)
	}

	tests := []struct {
		path, dir string
		want      bool
	}{
		{"a/b", "a", true},
		{"a", "a", true},
		{"/a/b/c", "a/", true},
		{"ab/c", "a", false},
		{"x", "/", true},
	}
	for _, tt := range tests {
		if got := IsWithin(tt.path, tt.dir); got != tt.want {
			t.Errorf("IsWithin(%q, %q) = %v, want %v", tt.path, tt.dir, got, tt.want)
		}
	}
}

func TestFindByPathAndFlatten(t *testing.T) {
	roots := Build([]models.FileEntry{
		folder("/dir", "dir"),
		file("/dir/b.txt", "b.txt"),
		file("a.txt", "a.txt"),
	})

	for _, path := range []string{"dir", "/dir", "dir/b.txt", "a.txt", "/a.txt"} {
		if FindByPath(roots, path) == nil {
			t.Errorf("FindByPath(%q) = nil", path)
		}
	}
	if FindByPath(roots, "nonexistent") != nil {
		t.Error("FindByPath(nonexistent) should return nil")
	}
	if FindByPath(nil, "a.txt") != nil {
		t.Error("FindByPath(nil) should return nil")
	}

	flat := Flatten(roots)
	if len(flat) != 3 {
		t.Errorf("Flatten returned %d nodes, want 3", len(flat))
	}
	for _, key := range []string{"dir", "dir/b.txt", "a.txt"} {
		if _, ok := flat[key]; !ok {
			t.Errorf("Flatten missing %q", key)
		}
	}
}
