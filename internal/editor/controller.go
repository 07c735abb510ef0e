package editor

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/staticforge/console/internal/logging"
	"github.com/staticforge/console/pkg/models"
	"github.com/staticforge/console/pkg/tree"
)

// Options configures a Controller. Zero values select the defaults.
type Options struct {
	AutosaveDelay time.Duration
	Notifier      Notifier
	AfterFunc     AfterFunc
	Logger        *zap.Logger
}

// Controller owns one editing session of a project. Every mutation is a
// remote call followed by a full re-fetch of the listing; the only local
// patch is the content of a file that was just saved.
//
// Remote operations never overlap: opMu is held for the whole of each one,
// including autosaves fired by the debounce timer. mu guards the state and
// is never held across a remote call, so Edit never blocks on the network.
type Controller struct {
	svc       FileService
	notify    Notifier
	delay     time.Duration
	afterFunc AfterFunc
	log       *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc

	opMu sync.Mutex

	mu             sync.Mutex
	files          []models.FileEntry
	nodes          []*tree.Node
	collapsed      map[string]bool
	selectedFile   *models.FileEntry
	selectedFolder *models.FileEntry
	content        string
	saving         bool
	timer          Timer
	editSeq        uint64
	closed         bool
}

// New creates a controller editing the project behind svc.
func New(svc FileService, opts Options) *Controller {
	if opts.AutosaveDelay <= 0 {
		opts.AutosaveDelay = DefaultAutosaveDelay
	}
	if opts.AfterFunc == nil {
		opts.AfterFunc = realAfterFunc
	}
	if opts.Logger == nil {
		opts.Logger = logging.Named("editor")
	}
	if opts.Notifier == nil {
		opts.Notifier = LogNotifier{Logger: opts.Logger}
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Controller{
		svc:       svc,
		notify:    opts.Notifier,
		delay:     opts.AutosaveDelay,
		afterFunc: opts.AfterFunc,
		log:       opts.Logger,
		ctx:       ctx,
		cancel:    cancel,
		collapsed: make(map[string]bool),
	}
}

// Open loads the listing and, when nothing is selected yet, opens the
// project's root index.html.
func (c *Controller) Open(ctx context.Context) error {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	if err := c.refreshLocked(ctx); err != nil {
		return err
	}

	c.mu.Lock()
	hasSelection := c.selectedFile != nil
	files := c.files
	c.mu.Unlock()
	if hasSelection {
		return nil
	}

	for _, f := range files {
		if !f.IsFolder && f.Name == "index.html" && IsRootIndex(f.Path) {
			return c.selectFileLocked(ctx, f)
		}
	}
	return nil
}

// Refresh re-fetches the listing and rebuilds the tree.
func (c *Controller) Refresh(ctx context.Context) error {
	c.opMu.Lock()
	defer c.opMu.Unlock()
	return c.refreshLocked(ctx)
}

func (c *Controller) refreshLocked(ctx context.Context) error {
	files, err := c.svc.List(ctx)
	if err != nil {
		c.notify.Error("Failed to load files: " + errorMessage(err))
		return fmt.Errorf("list files: %w", err)
	}

	for _, a := range tree.Anomalies(files) {
		c.log.Warn("entries share a path",
			zap.String("path", a.Path),
			zap.Strings("paths", a.Paths),
			zap.Bool("folder_file_clash", a.Mixed),
		)
	}
	nodes := tree.Build(files)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.files = files
	c.nodes = nodes
	present := tree.Flatten(nodes)
	for key := range c.collapsed {
		if _, ok := present[key]; !ok {
			delete(c.collapsed, key)
		}
	}
	c.log.Debug("listing refreshed", zap.Int("entries", len(files)))
	return nil
}

// Select opens a file in the buffer or toggles a folder.
//
// Selecting a folder flips its expanded state and makes it the target of
// uploads and creations; the buffer is left alone. Selecting a file first
// saves unsaved edits of the current file, then reads the new file.
func (c *Controller) Select(ctx context.Context, entry models.FileEntry) error {
	if entry.IsFolder {
		c.mu.Lock()
		defer c.mu.Unlock()
		key := tree.Canonical(entry.Path)
		if c.collapsed[key] {
			delete(c.collapsed, key)
		} else {
			c.collapsed[key] = true
		}
		folder := entry
		c.selectedFolder = &folder
		return nil
	}

	c.opMu.Lock()
	defer c.opMu.Unlock()
	return c.selectFileLocked(ctx, entry)
}

func (c *Controller) selectFileLocked(ctx context.Context, entry models.FileEntry) error {
	if err := c.flushLocked(ctx); err != nil {
		c.log.Warn("switching files with unsaved edits", zap.Error(err))
	}
	c.mu.Lock()
	seq := c.editSeq
	c.mu.Unlock()

	fetched, err := c.svc.Read(ctx, entry.Path)
	if err != nil {
		c.notify.Error(fmt.Sprintf("Failed to open %s: %s", entry.Path, errorMessage(err)))
		return fmt.Errorf("read %s: %w", entry.Path, err)
	}

	selected := *fetched
	if selected.Path == "" {
		selected.Path = entry.Path
	}
	if selected.Name == "" {
		selected.Name = entry.Name
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	// Edits typed while the read was in flight belong to the old file.
	for c.editSeq != seq && c.dirtyLocked() {
		c.mu.Unlock()
		err := c.saveLocked(ctx)
		c.mu.Lock()
		if err != nil {
			c.log.Warn("switching files with unsaved edits", zap.Error(err))
			break
		}
	}
	c.cancelAutosaveLocked()
	c.selectedFile = &selected
	c.selectedFolder = nil
	c.content = selected.Content
	return nil
}

// Edit replaces the buffer and restarts the autosave debounce.
func (c *Controller) Edit(content string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.content = content
	if c.selectedFile != nil {
		c.scheduleLocked()
	}
}

// Save writes the whole buffer to the selected file. Without a selected
// file it does nothing.
func (c *Controller) Save(ctx context.Context) error {
	c.opMu.Lock()
	defer c.opMu.Unlock()
	return c.saveLocked(ctx)
}

// Flush saves the buffer if it differs from what was last loaded or saved.
func (c *Controller) Flush(ctx context.Context) error {
	c.opMu.Lock()
	defer c.opMu.Unlock()
	return c.flushLocked(ctx)
}

func (c *Controller) flushLocked(ctx context.Context) error {
	c.mu.Lock()
	dirty := c.dirtyLocked()
	c.cancelAutosaveLocked()
	c.mu.Unlock()

	if !dirty {
		return nil
	}
	return c.saveLocked(ctx)
}

func (c *Controller) saveLocked(ctx context.Context) error {
	c.mu.Lock()
	if c.selectedFile == nil {
		c.mu.Unlock()
		return nil
	}
	c.cancelAutosaveLocked()
	path := c.selectedFile.Path
	content := c.content
	c.saving = true
	c.mu.Unlock()

	err := c.svc.Write(ctx, path, content)

	c.mu.Lock()
	c.saving = false
	if err == nil {
		for i := range c.files {
			if c.files[i].Path == path {
				c.files[i].Content = content
			}
		}
		if c.selectedFile != nil && c.selectedFile.Path == path {
			c.selectedFile.Content = content
		}
	}
	c.mu.Unlock()

	if err != nil {
		c.notify.Error(fmt.Sprintf("Failed to save %s: %s", path, errorMessage(err)))
		return fmt.Errorf("save %s: %w", path, err)
	}
	c.log.Debug("file saved", zap.String("path", path), zap.Int("bytes", len(content)))
	c.notify.Success("Saved " + path)
	return nil
}

// KeyEvent is a key press delivered to the editor.
type KeyEvent struct {
	Key  string
	Ctrl bool
	Meta bool
}

// HandleKey runs the editor's keyboard shortcuts and reports whether the
// event was consumed. Ctrl+S and Cmd+S save.
func (c *Controller) HandleKey(ctx context.Context, ev KeyEvent) (bool, error) {
	if (ev.Ctrl || ev.Meta) && strings.EqualFold(ev.Key, "s") {
		return true, c.Save(ctx)
	}
	return false, nil
}

// TargetPath is the folder uploads and creations go to: the selected
// folder, else the selected file's folder, else the root.
func (c *Controller) TargetPath() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.targetPathLocked()
}

func (c *Controller) targetPathLocked() string {
	if c.selectedFolder != nil {
		return c.selectedFolder.Path
	}
	if c.selectedFile != nil {
		return tree.ParentDir(c.selectedFile.Path)
	}
	return "/"
}

// Rename gives entry a new name within its folder.
func (c *Controller) Rename(ctx context.Context, entry models.FileEntry, newName string) error {
	if IsRootIndex(entry.Path) {
		c.notify.Error(ErrProtectedFile.Error())
		return ErrProtectedFile
	}
	newName = strings.TrimSpace(newName)
	if newName == "" {
		c.notify.Error(ErrInvalidName.Error())
		return ErrInvalidName
	}

	c.opMu.Lock()
	defer c.opMu.Unlock()

	c.flushIfAffectedLocked(ctx, entry.Path)
	if err := c.svc.Rename(ctx, entry.Path, newName); err != nil {
		c.notify.Error(fmt.Sprintf("Failed to rename %s: %s", entry.Path, errorMessage(err)))
		return fmt.Errorf("rename %s: %w", entry.Path, err)
	}
	c.notify.Success(fmt.Sprintf("Renamed %s to %s", entry.Path, newName))

	newPath := tree.BuildChildPath(tree.ParentDir(entry.Path), newName)
	return c.afterRelocateLocked(ctx, entry.Path, newPath)
}

// Move relocates source after it was dropped at dest. dropToGap is true
// when it landed between rows rather than onto dest.
func (c *Controller) Move(ctx context.Context, source, dest models.FileEntry, dropToGap bool) error {
	if tree.SamePath(source.Path, dest.Path) {
		c.notify.Warning(ErrDropOnSelf.Error())
		return ErrDropOnSelf
	}
	if IsRootIndex(source.Path) {
		c.notify.Error(ErrProtectedFile.Error())
		return ErrProtectedFile
	}

	target := ResolveMoveTarget(dest, dropToGap)
	name := source.Name
	if name == "" {
		name = tree.BaseName(source.Path)
	}
	newPath := tree.BuildChildPath(target, name)
	if tree.SamePath(source.Path, newPath) {
		c.notify.Warning(ErrAlreadyInPlace.Error())
		return ErrAlreadyInPlace
	}
	if source.IsFolder && tree.IsWithin(target, source.Path) {
		c.notify.Error(ErrMoveIntoSelf.Error())
		return ErrMoveIntoSelf
	}

	c.opMu.Lock()
	defer c.opMu.Unlock()

	if _, exists := c.Lookup(newPath); exists {
		c.notify.Error(ErrTargetExists.Error())
		return ErrTargetExists
	}

	c.flushIfAffectedLocked(ctx, source.Path)
	if _, err := c.svc.Move(ctx, source.Path, target); err != nil {
		c.notify.Error(fmt.Sprintf("Failed to move %s: %s", source.Path, errorMessage(err)))
		return fmt.Errorf("move %s: %w", source.Path, err)
	}
	c.notify.Success(fmt.Sprintf("Moved %s to %s", source.Path, target))
	return c.afterRelocateLocked(ctx, source.Path, newPath)
}

// Delete removes entry. Deleting the selected file, or a folder holding it,
// clears the selection and the buffer.
func (c *Controller) Delete(ctx context.Context, entry models.FileEntry) error {
	if IsRootIndex(entry.Path) {
		c.notify.Error(ErrProtectedFile.Error())
		return ErrProtectedFile
	}

	c.opMu.Lock()
	defer c.opMu.Unlock()

	if err := c.svc.Delete(ctx, entry.Path); err != nil {
		c.notify.Error(fmt.Sprintf("Failed to delete %s: %s", entry.Path, errorMessage(err)))
		return fmt.Errorf("delete %s: %w", entry.Path, err)
	}
	c.notify.Success("Deleted " + entry.Path)

	c.mu.Lock()
	if c.selectedFile != nil && tree.IsWithin(c.selectedFile.Path, entry.Path) {
		c.cancelAutosaveLocked()
		c.selectedFile = nil
		c.content = ""
	}
	if c.selectedFolder != nil && tree.IsWithin(c.selectedFolder.Path, entry.Path) {
		c.selectedFolder = nil
	}
	c.mu.Unlock()

	return c.refreshLocked(ctx)
}

// flushIfAffectedLocked saves pending edits before the selected file, or a
// folder holding it, changes path.
func (c *Controller) flushIfAffectedLocked(ctx context.Context, path string) {
	c.mu.Lock()
	affected := c.selectedFile != nil && tree.IsWithin(c.selectedFile.Path, path)
	c.mu.Unlock()
	if !affected {
		return
	}
	if err := c.flushLocked(ctx); err != nil {
		c.log.Warn("relocating file with unsaved edits", zap.String("path", path), zap.Error(err))
	}
}

// afterRelocateLocked refreshes after oldPath moved to newPath and points
// the selection and the collapsed folders at their new paths.
func (c *Controller) afterRelocateLocked(ctx context.Context, oldPath, newPath string) error {
	c.mu.Lock()
	for key := range c.collapsed {
		if moved, ok := relocate(key, oldPath, newPath); ok {
			delete(c.collapsed, key)
			c.collapsed[tree.Canonical(moved)] = true
		}
	}
	c.mu.Unlock()

	err := c.refreshLocked(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.selectedFile != nil {
		if moved, ok := relocate(c.selectedFile.Path, oldPath, newPath); ok {
			c.selectedFile.Path = c.literalLocked(moved)
			c.selectedFile.Name = tree.BaseName(moved)
		}
	}
	if c.selectedFolder != nil {
		if moved, ok := relocate(c.selectedFolder.Path, oldPath, newPath); ok {
			c.selectedFolder.Path = c.literalLocked(moved)
			c.selectedFolder.Name = tree.BaseName(moved)
		}
	}
	return err
}

// relocate maps path, if it is oldPath or lies below it, to its place
// under newPath.
func relocate(path, oldPath, newPath string) (string, bool) {
	if !tree.IsWithin(path, oldPath) {
		return "", false
	}
	rest := strings.TrimPrefix(tree.Canonical(path), tree.Canonical(oldPath))
	return tree.Canonical(newPath) + rest, true
}

// literalLocked returns the listing's spelling of path when it has one.
func (c *Controller) literalLocked(path string) string {
	for _, f := range c.files {
		if tree.SamePath(f.Path, path) {
			return f.Path
		}
	}
	return path
}

// Close cancels a pending autosave. Unsaved edits are dropped; call Flush
// first to keep them.
func (c *Controller) Close() {
	c.mu.Lock()
	c.closed = true
	c.cancelAutosaveLocked()
	c.mu.Unlock()
	c.cancel()
}

// Lookup finds the listed entry for any slash variant of path.
func (c *Controller) Lookup(path string) (models.FileEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, f := range c.files {
		if tree.SamePath(f.Path, path) {
			return f, true
		}
	}
	return models.FileEntry{}, false
}

// Files returns a copy of the latest listing.
func (c *Controller) Files() []models.FileEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]models.FileEntry, len(c.files))
	copy(out, c.files)
	return out
}

// Tree returns the tree built from the latest listing. Callers must treat
// it as read-only; it is replaced, not mutated, on refresh.
func (c *Controller) Tree() []*tree.Node {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.nodes
}

// IsExpanded reports whether the folder at path is shown open. Folders
// start expanded.
func (c *Controller) IsExpanded(path string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.collapsed[tree.Canonical(path)]
}

// SelectedFile returns the file open in the buffer.
func (c *Controller) SelectedFile() (models.FileEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.selectedFile == nil {
		return models.FileEntry{}, false
	}
	return *c.selectedFile, true
}

// SelectedFolder returns the folder chosen as upload target.
func (c *Controller) SelectedFolder() (models.FileEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.selectedFolder == nil {
		return models.FileEntry{}, false
	}
	return *c.selectedFolder, true
}

// Content returns the buffer.
func (c *Controller) Content() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.content
}

// Saving reports whether a save is in flight.
func (c *Controller) Saving() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.saving
}

// Dirty reports whether the buffer differs from the selected file's last
// loaded or saved content.
func (c *Controller) Dirty() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dirtyLocked()
}

func (c *Controller) dirtyLocked() bool {
	return c.selectedFile != nil && c.content != c.selectedFile.Content
}
