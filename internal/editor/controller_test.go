package editor

import (
	"context"
	"errors"
	"testing"

	"github.com/staticforge/console/pkg/models"
)

func TestOpenSelectsRootIndex(t *testing.T) {
	h := newHarness(t, site()...)
	if err := h.ctrl.Open(context.Background()); err != nil {
		t.Fatalf("Open: %v", err)
	}
	sel, ok := h.ctrl.SelectedFile()
	if !ok || sel.Path != "index.html" {
		t.Fatalf("selected = %+v, %v", sel, ok)
	}
	if h.ctrl.Content() != "<h1>home</h1>" {
		t.Errorf("content = %q", h.ctrl.Content())
	}
	if h.ctrl.Dirty() {
		t.Error("freshly opened file should not be dirty")
	}
}

func TestOpenKeepsExistingSelection(t *testing.T) {
	h := newHarness(t, site()...)
	h.selectPath(t, "about.html")
	if err := h.ctrl.Open(context.Background()); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if sel, _ := h.ctrl.SelectedFile(); sel.Path != "about.html" {
		t.Errorf("selected = %q, want about.html", sel.Path)
	}
}

func TestTargetPath(t *testing.T) {
	h := newHarness(t, append(site(), doc("/docs/deep.md", ""))...)

	if got := h.ctrl.TargetPath(); got != "/" {
		t.Errorf("nothing selected: TargetPath = %q, want /", got)
	}

	h.selectPath(t, "docs/readme.md")
	if got := h.ctrl.TargetPath(); got != "docs" {
		t.Errorf("file selected: TargetPath = %q, want docs", got)
	}

	h.selectPath(t, "about.html")
	if got := h.ctrl.TargetPath(); got != "/" {
		t.Errorf("root file selected: TargetPath = %q, want /", got)
	}

	h.selectPath(t, "/docs/deep.md")
	if got := h.ctrl.TargetPath(); got != "/docs" {
		t.Errorf("slash-prefixed file: TargetPath = %q, want /docs", got)
	}

	h.selectPath(t, "assets")
	if got := h.ctrl.TargetPath(); got != "assets" {
		t.Errorf("folder selected: TargetPath = %q, want assets", got)
	}
}

func TestSelectFileClearsSelectedFolder(t *testing.T) {
	h := newHarness(t, site()...)
	h.selectPath(t, "assets")
	if _, ok := h.ctrl.SelectedFolder(); !ok {
		t.Fatal("folder should be selected")
	}
	h.selectPath(t, "x.txt")
	if _, ok := h.ctrl.SelectedFolder(); ok {
		t.Error("selecting a file must clear the selected folder")
	}
}

func TestSelectFolderLeavesBufferAndToggles(t *testing.T) {
	h := newHarness(t, site()...)
	h.selectPath(t, "x.txt")
	h.ctrl.Edit("draft")

	if !h.ctrl.IsExpanded("docs") {
		t.Fatal("folders start expanded")
	}
	h.selectPath(t, "docs")
	if h.ctrl.IsExpanded("docs") {
		t.Error("first select should collapse")
	}
	if h.ctrl.Content() != "draft" {
		t.Errorf("buffer changed to %q", h.ctrl.Content())
	}
	if n := h.svc.count("write:"); n != 0 {
		t.Errorf("selecting a folder saved %d times", n)
	}

	h.selectPath(t, "/docs/")
	if !h.ctrl.IsExpanded("docs") {
		t.Error("second select should expand again")
	}
}

func TestCollapsedStateSurvivesRefresh(t *testing.T) {
	h := newHarness(t, site()...)
	h.selectPath(t, "docs")
	if err := h.ctrl.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if h.ctrl.IsExpanded("docs") {
		t.Error("collapsed folder reopened after refresh")
	}
}

func TestProtectedIndexRejectedBeforeAnyCall(t *testing.T) {
	for _, path := range []string{"index.html", "/index.html"} {
		t.Run(path, func(t *testing.T) {
			h := newHarness(t, site()...)
			h.selectPath(t, "about.html")
			before := len(h.svc.callLog())
			index := models.FileEntry{Path: path, Name: "index.html"}
			docs := h.entry(t, "docs")

			if err := h.ctrl.Rename(context.Background(), index, "home.html"); !errors.Is(err, ErrProtectedFile) {
				t.Errorf("Rename err = %v", err)
			}
			if err := h.ctrl.Move(context.Background(), index, docs, false); !errors.Is(err, ErrProtectedFile) {
				t.Errorf("Move err = %v", err)
			}
			if err := h.ctrl.Delete(context.Background(), index); !errors.Is(err, ErrProtectedFile) {
				t.Errorf("Delete err = %v", err)
			}

			if after := len(h.svc.callLog()); after != before {
				t.Errorf("service called %d times", after-before)
			}
			if sel, _ := h.ctrl.SelectedFile(); sel.Path != "about.html" {
				t.Errorf("selection changed to %q", sel.Path)
			}
			if len(h.ctrl.Files()) != len(site()) {
				t.Error("listing changed")
			}
			if len(h.notify.errors) != 3 {
				t.Errorf("errors notified = %v", h.notify.errors)
			}
		})
	}
}

func TestMoveTargets(t *testing.T) {
	entries := append(site(), doc("assets/logo.txt", "logo"))
	tests := []struct {
		name      string
		source    string
		dest      string
		dropToGap bool
		want      string
	}{
		{"onto folder", "x.txt", "docs", false, "move:x.txt->docs"},
		{"gap at file in folder", "x.txt", "docs/readme.md", true, "move:x.txt->docs"},
		{"onto file in folder", "x.txt", "docs/guide.md", false, "move:x.txt->docs"},
		{"gap at folder", "assets/logo.txt", "assets", true, "move:assets/logo.txt->/"},
		{"onto root file", "assets/logo.txt", "about.html", false, "move:assets/logo.txt->/"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, entries...)
			err := h.ctrl.Move(context.Background(), h.entry(t, tt.source), h.entry(t, tt.dest), tt.dropToGap)
			if err != nil {
				t.Fatalf("Move: %v", err)
			}
			if got := h.svc.mutating(); !equal(got, []string{tt.want}) {
				t.Errorf("calls = %v, want [%s]", got, tt.want)
			}
			if _, ok := h.ctrl.Lookup(tt.source); ok {
				t.Error("listing not refreshed after move")
			}
		})
	}
}

func TestMoveRejections(t *testing.T) {
	entries := append(site(), doc("docs/x.txt", "other x"), dir("docs/img"))
	tests := []struct {
		name      string
		source    string
		dest      string
		dropToGap bool
		want      error
		notified  bool
		warned    bool
	}{
		{"onto itself", "docs", "/docs/", false, ErrDropOnSelf, false, true},
		{"already in place", "docs/readme.md", "docs/guide.md", true, ErrAlreadyInPlace, false, true},
		{"name taken", "x.txt", "docs", false, ErrTargetExists, true, false},
		{"folder into child", "docs", "docs/img", false, ErrMoveIntoSelf, true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, entries...)
			err := h.ctrl.Move(context.Background(), h.entry(t, tt.source), h.entry(t, tt.dest), tt.dropToGap)
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
			if n := h.svc.count("move:"); n != 0 {
				t.Errorf("move called %d times", n)
			}
			if got := len(h.notify.errors) > 0; got != tt.notified {
				t.Errorf("notified = %v, want %v", got, tt.notified)
			}
			if got := len(h.notify.warnings) > 0; got != tt.warned {
				t.Errorf("warned = %v, want %v", got, tt.warned)
			}
		})
	}
}

func TestMoveFailureLeavesState(t *testing.T) {
	h := newHarness(t, site()...)
	h.svc.fail["move"] = errBoom
	lists := h.svc.count("list")

	err := h.ctrl.Move(context.Background(), h.entry(t, "x.txt"), h.entry(t, "docs"), false)
	if !errors.Is(err, errBoom) {
		t.Fatalf("err = %v", err)
	}
	if h.svc.count("list") != lists {
		t.Error("failed move must not refetch")
	}
	if len(h.notify.errors) != 1 || h.notify.errors[0] != "Failed to move x.txt: boom" {
		t.Errorf("errors = %v", h.notify.errors)
	}
}

func TestMoveSelectedFileFlushesAndRepoints(t *testing.T) {
	h := newHarness(t, site()...)
	h.selectPath(t, "x.txt")
	h.ctrl.Edit("edited x")

	if err := h.ctrl.Move(context.Background(), h.entry(t, "x.txt"), h.entry(t, "docs"), false); err != nil {
		t.Fatalf("Move: %v", err)
	}
	want := []string{"write:x.txt=edited x", "move:x.txt->docs"}
	if got := h.svc.mutating(); !equal(got, want) {
		t.Errorf("calls = %v, want %v", got, want)
	}
	sel, _ := h.ctrl.SelectedFile()
	if sel.Path != "docs/x.txt" {
		t.Errorf("selected path = %q, want docs/x.txt", sel.Path)
	}
	if h.ctrl.Dirty() {
		t.Error("buffer should be clean after flush")
	}
	if len(h.clock.pending()) != 0 {
		t.Error("autosave still pending after flush")
	}
}

func TestRename(t *testing.T) {
	h := newHarness(t, site()...)
	h.selectPath(t, "docs/readme.md")
	h.ctrl.Edit("# changed")

	if err := h.ctrl.Rename(context.Background(), h.entry(t, "docs/readme.md"), " README.md "); err != nil {
		t.Fatalf("Rename: %v", err)
	}
	want := []string{"write:docs/readme.md=# changed", "rename:docs/readme.md->README.md"}
	if got := h.svc.mutating(); !equal(got, want) {
		t.Errorf("calls = %v, want %v", got, want)
	}
	sel, _ := h.ctrl.SelectedFile()
	if sel.Path != "docs/README.md" || sel.Name != "README.md" {
		t.Errorf("selection = %+v", sel)
	}
	if _, ok := h.ctrl.Lookup("docs/README.md"); !ok {
		t.Error("listing not refreshed")
	}
}

func TestRenameFolderRepointsSelectionInside(t *testing.T) {
	h := newHarness(t, site()...)
	h.selectPath(t, "docs/guide.md")

	if err := h.ctrl.Rename(context.Background(), h.entry(t, "docs"), "manual"); err != nil {
		t.Fatalf("Rename: %v", err)
	}
	if sel, _ := h.ctrl.SelectedFile(); sel.Path != "manual/guide.md" {
		t.Errorf("selected path = %q", sel.Path)
	}
	if got := h.ctrl.TargetPath(); got != "manual" {
		t.Errorf("TargetPath = %q", got)
	}
}

func TestRenameRejectsEmptyName(t *testing.T) {
	h := newHarness(t, site()...)
	if err := h.ctrl.Rename(context.Background(), h.entry(t, "x.txt"), "  "); !errors.Is(err, ErrInvalidName) {
		t.Fatalf("err = %v", err)
	}
	if n := h.svc.count("rename:"); n != 0 {
		t.Errorf("rename called %d times", n)
	}
}

func TestDeleteSelectedFileClearsSelection(t *testing.T) {
	h := newHarness(t, site()...)
	h.selectPath(t, "about.html")
	h.ctrl.Edit("unsaved")

	if err := h.ctrl.Delete(context.Background(), h.entry(t, "about.html")); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok := h.ctrl.SelectedFile(); ok {
		t.Error("selection should be cleared")
	}
	if h.ctrl.Content() != "" {
		t.Errorf("buffer = %q", h.ctrl.Content())
	}
	if len(h.clock.pending()) != 0 {
		t.Error("autosave for a deleted file still pending")
	}
	if n := h.svc.count("write:"); n != 0 {
		t.Errorf("deleted file was saved %d times", n)
	}
	if _, ok := h.ctrl.Lookup("about.html"); ok {
		t.Error("listing not refreshed")
	}
}

func TestDeleteFolderHoldingSelection(t *testing.T) {
	h := newHarness(t, site()...)
	h.selectPath(t, "docs/readme.md")
	if err := h.ctrl.Delete(context.Background(), h.entry(t, "docs")); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok := h.ctrl.SelectedFile(); ok {
		t.Error("selection inside deleted folder should be cleared")
	}
}

func TestDeleteOtherFileKeepsSelection(t *testing.T) {
	h := newHarness(t, site()...)
	h.selectPath(t, "about.html")
	if err := h.ctrl.Delete(context.Background(), h.entry(t, "x.txt")); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if sel, ok := h.ctrl.SelectedFile(); !ok || sel.Path != "about.html" {
		t.Errorf("selection = %+v, %v", sel, ok)
	}
}

func TestDeleteFailureKeepsSelection(t *testing.T) {
	h := newHarness(t, site()...)
	h.selectPath(t, "about.html")
	h.svc.fail["delete"] = errBoom

	if err := h.ctrl.Delete(context.Background(), h.entry(t, "about.html")); err == nil {
		t.Fatal("expected error")
	}
	if _, ok := h.ctrl.SelectedFile(); !ok {
		t.Error("failed delete must not clear the selection")
	}
}

func TestHandleKey(t *testing.T) {
	h := newHarness(t, site()...)
	h.selectPath(t, "x.txt")
	h.ctrl.Edit("typed")

	for _, ev := range []KeyEvent{{Key: "s", Ctrl: true}, {Key: "S", Meta: true}} {
		handled, err := h.ctrl.HandleKey(context.Background(), ev)
		if !handled || err != nil {
			t.Errorf("HandleKey(%+v) = %v, %v", ev, handled, err)
		}
	}
	if handled, _ := h.ctrl.HandleKey(context.Background(), KeyEvent{Key: "s"}); handled {
		t.Error("plain s must not be handled")
	}
	if n := h.svc.count("write:x.txt=typed"); n != 2 {
		t.Errorf("saves = %d, want 2", n)
	}
}

func TestRefreshFailureNotifies(t *testing.T) {
	h := newHarness(t, site()...)
	h.svc.fail["list"] = errBoom
	if err := h.ctrl.Refresh(context.Background()); !errors.Is(err, errBoom) {
		t.Fatalf("err = %v", err)
	}
	if len(h.notify.errors) != 1 {
		t.Errorf("errors = %v", h.notify.errors)
	}
	if len(h.ctrl.Files()) != len(site()) {
		t.Error("failed refresh must keep the previous listing")
	}
}

func TestTreeBuiltFromListing(t *testing.T) {
	h := newHarness(t, site()...)
	roots := h.ctrl.Tree()
	if len(roots) != 5 {
		t.Fatalf("roots = %d, want 5", len(roots))
	}
	if roots[0].Name != "assets" || roots[1].Name != "docs" {
		t.Errorf("folders should lead: %s, %s", roots[0].Name, roots[1].Name)
	}
}

func equal(a, b []string) bool {
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
