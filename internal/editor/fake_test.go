package editor

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/staticforge/console/internal/logging"
	"github.com/staticforge/console/pkg/models"
	"github.com/staticforge/console/pkg/tree"
)

// fakeService is an in-memory FileService that records every call.
type fakeService struct {
	mu       sync.Mutex
	entries  []models.FileEntry
	contents map[string]string
	calls    []string
	fail     map[string]error
	failName map[string]bool
}

func newFakeService(entries ...models.FileEntry) *fakeService {
	s := &fakeService{
		contents: make(map[string]string),
		fail:     make(map[string]error),
		failName: make(map[string]bool),
	}
	for _, e := range entries {
		s.entries = append(s.entries, e)
		if !e.IsFolder {
			s.contents[e.Path] = e.Content
		}
	}
	return s
}

func (s *fakeService) record(call string) {
	s.calls = append(s.calls, call)
}

func (s *fakeService) List(ctx context.Context) ([]models.FileEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("list")
	if err := s.fail["list"]; err != nil {
		return nil, err
	}
	out := make([]models.FileEntry, len(s.entries))
	for i, e := range s.entries {
		e.Content = ""
		out[i] = e
	}
	return out, nil
}

func (s *fakeService) Read(ctx context.Context, path string) (*models.FileEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("read:" + path)
	if err := s.fail["read"]; err != nil {
		return nil, err
	}
	for _, e := range s.entries {
		if e.Path == path {
			e.Content = s.contents[path]
			return &e, nil
		}
	}
	return nil, errNotFound
}

func (s *fakeService) Write(ctx context.Context, path, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("write:" + path + "=" + content)
	if err := s.fail["write"]; err != nil {
		return err
	}
	s.contents[path] = content
	return nil
}

func (s *fakeService) Upload(ctx context.Context, dir, name string, data []byte) (*models.FileEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("upload:" + dir + "|" + name)
	if err := s.fail["upload"]; err != nil {
		return nil, err
	}
	if s.failName[name] {
		return nil, errUploadRejected
	}
	e := models.FileEntry{Path: tree.BuildChildPath(dir, name), Name: name, Size: int64(len(data))}
	s.entries = append(s.entries, e)
	s.contents[e.Path] = string(data)
	return &e, nil
}

func (s *fakeService) Rename(ctx context.Context, path, newName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("rename:" + path + "->" + newName)
	if err := s.fail["rename"]; err != nil {
		return err
	}
	s.relocate(path, tree.BuildChildPath(tree.ParentDir(path), newName))
	return nil
}

func (s *fakeService) Move(ctx context.Context, source, target string) (*models.FileEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("move:" + source + "->" + target)
	if err := s.fail["move"]; err != nil {
		return nil, err
	}
	newPath := tree.BuildChildPath(target, tree.BaseName(source))
	s.relocate(source, newPath)
	return &models.FileEntry{Path: newPath, Name: tree.BaseName(newPath)}, nil
}

func (s *fakeService) Delete(ctx context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("delete:" + path)
	if err := s.fail["delete"]; err != nil {
		return err
	}
	kept := s.entries[:0]
	for _, e := range s.entries {
		if !tree.IsWithin(e.Path, path) {
			kept = append(kept, e)
		}
	}
	s.entries = kept
	return nil
}

func (s *fakeService) Mkdir(ctx context.Context, dir, name string) (*models.FileEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("mkdir:" + dir + "|" + name)
	if err := s.fail["mkdir"]; err != nil {
		return nil, err
	}
	e := models.FileEntry{Path: tree.BuildChildPath(dir, name), Name: name, IsFolder: true}
	s.entries = append(s.entries, e)
	return &e, nil
}

func (s *fakeService) relocate(oldPath, newPath string) {
	for i, e := range s.entries {
		moved, ok := relocate(e.Path, oldPath, newPath)
		if !ok {
			continue
		}
		if !e.IsFolder {
			s.contents[moved] = s.contents[e.Path]
		}
		s.entries[i].Path = moved
		s.entries[i].Name = tree.BaseName(moved)
	}
}

func (s *fakeService) callLog() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.calls))
	copy(out, s.calls)
	return out
}

// mutating returns every recorded call that is not a list or read.
func (s *fakeService) mutating() []string {
	var out []string
	for _, c := range s.callLog() {
		if c == "list" || strings.HasPrefix(c, "read:") {
			continue
		}
		out = append(out, c)
	}
	return out
}

func (s *fakeService) count(prefix string) int {
	n := 0
	for _, c := range s.callLog() {
		if strings.HasPrefix(c, prefix) {
			n++
		}
	}
	return n
}

type fakeError string

func (e fakeError) Error() string { return string(e) }

const (
	errNotFound       = fakeError("File not found")
	errUploadRejected = fakeError("upload rejected")
	errBoom           = fakeError("boom")
)

// fakeClock hands out timers that only fire when the test says so.
type fakeClock struct {
	mu     sync.Mutex
	timers []*fakeTimer
}

type fakeTimer struct {
	d       time.Duration
	fn      func()
	stopped bool
	fired   bool
}

func (t *fakeTimer) Stop() bool {
	active := !t.stopped && !t.fired
	t.stopped = true
	return active
}

func (fc *fakeClock) AfterFunc(d time.Duration, fn func()) Timer {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	t := &fakeTimer{d: d, fn: fn}
	fc.timers = append(fc.timers, t)
	return t
}

func (fc *fakeClock) pending() []*fakeTimer {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	var out []*fakeTimer
	for _, t := range fc.timers {
		if !t.stopped && !t.fired {
			out = append(out, t)
		}
	}
	return out
}

// elapse fires every pending timer, as if the quiescence window passed.
func (fc *fakeClock) elapse() {
	for _, t := range fc.pending() {
		t.fired = true
		t.fn()
	}
}

type recordingNotifier struct {
	mu       sync.Mutex
	success  []string
	warnings []string
	errors   []string
}

func (n *recordingNotifier) Success(msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.success = append(n.success, msg)
}

func (n *recordingNotifier) Warning(msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.warnings = append(n.warnings, msg)
}

func (n *recordingNotifier) Error(msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.errors = append(n.errors, msg)
}

type harness struct {
	svc    *fakeService
	clock  *fakeClock
	notify *recordingNotifier
	ctrl   *Controller
}

func newHarness(t *testing.T, entries ...models.FileEntry) *harness {
	t.Helper()
	logging.InitNop()
	h := &harness{
		svc:    newFakeService(entries...),
		clock:  &fakeClock{},
		notify: &recordingNotifier{},
	}
	h.ctrl = New(h.svc, Options{
		Notifier:  h.notify,
		AfterFunc: h.clock.AfterFunc,
	})
	t.Cleanup(h.ctrl.Close)
	if err := h.ctrl.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	return h
}

func (h *harness) entry(t *testing.T, path string) models.FileEntry {
	t.Helper()
	e, ok := h.ctrl.Lookup(path)
	if !ok {
		t.Fatalf("no entry %q in listing", path)
	}
	return e
}

func (h *harness) selectPath(t *testing.T, path string) {
	t.Helper()
	if err := h.ctrl.Select(context.Background(), h.entry(t, path)); err != nil {
		t.Fatalf("Select(%s): %v", path, err)
	}
}

func dir(path string) models.FileEntry {
	return models.FileEntry{Path: path, Name: tree.BaseName(path), IsFolder: true}
}

func doc(path, content string) models.FileEntry {
	return models.FileEntry{Path: path, Name: tree.BaseName(path), Content: content, Size: int64(len(content))}
}

func site() []models.FileEntry {
	return []models.FileEntry{
		doc("index.html", "<h1>home</h1>"),
		doc("about.html", "<h1>about</h1>"),
		dir("docs"),
		doc("docs/readme.md", "# readme"),
		doc("docs/guide.md", "# guide"),
		dir("assets"),
		doc("x.txt", "x"),
	}
}
