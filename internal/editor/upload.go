package editor

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/staticforge/console/pkg/models"
	"github.com/staticforge/console/pkg/tree"
)

// UploadResult tallies a batch upload.
type UploadResult struct {
	Succeeded int
	Failed    int
}

// Total is the number of files attempted.
func (r UploadResult) Total() int {
	return r.Succeeded + r.Failed
}

// UploadFiles uploads files into TargetPath.
func (c *Controller) UploadFiles(ctx context.Context, files []models.LocalFile) (UploadResult, error) {
	return c.UploadFilesTo(ctx, files, c.TargetPath())
}

// DropExternal uploads files dropped from outside the tree onto the row of
// onto, or onto the tree background when onto is nil.
func (c *Controller) DropExternal(ctx context.Context, files []models.LocalFile, onto *models.FileEntry) (UploadResult, error) {
	return c.UploadFilesTo(ctx, files, ExternalDropTarget(onto))
}

// UploadFilesTo uploads files into dir. A single file is reported on its
// own; several are uploaded one after another and reported once as a
// tally. The listing is re-fetched once at the end.
func (c *Controller) UploadFilesTo(ctx context.Context, files []models.LocalFile, dir string) (UploadResult, error) {
	if len(files) == 0 {
		return UploadResult{}, nil
	}

	c.opMu.Lock()
	defer c.opMu.Unlock()

	if len(files) == 1 {
		f := files[0]
		if _, err := c.svc.Upload(ctx, dir, f.Name, f.Data); err != nil {
			c.notify.Error(fmt.Sprintf("Failed to upload %s: %s", f.Name, errorMessage(err)))
			return UploadResult{Failed: 1}, fmt.Errorf("upload %s: %w", f.Name, err)
		}
		c.notify.Success("Uploaded " + f.Name)
		return UploadResult{Succeeded: 1}, c.refreshLocked(ctx)
	}

	uploads := make([]pendingUpload, len(files))
	for i, f := range files {
		uploads[i] = pendingUpload{dir: dir, file: f}
	}
	return c.uploadBatchLocked(ctx, uploads)
}

// UploadFolder uploads a picked folder into TargetPath, recreating its
// structure. The top-level segment of each RelativePath is the picked
// folder itself and is dropped.
func (c *Controller) UploadFolder(ctx context.Context, files []models.LocalFile) (UploadResult, error) {
	if len(files) == 0 {
		return UploadResult{}, nil
	}

	c.opMu.Lock()
	defer c.opMu.Unlock()

	c.mu.Lock()
	target := c.targetPathLocked()
	c.mu.Unlock()

	uploads := make([]pendingUpload, len(files))
	for i, f := range files {
		rel := f.RelativePath
		if rel == "" {
			rel = f.Name
		}
		uploads[i] = pendingUpload{dir: FolderUploadDir(target, rel), file: f}
	}
	return c.uploadBatchLocked(ctx, uploads)
}

type pendingUpload struct {
	dir  string
	file models.LocalFile
}

func (c *Controller) uploadBatchLocked(ctx context.Context, uploads []pendingUpload) (UploadResult, error) {
	var res UploadResult
	for _, u := range uploads {
		if _, err := c.svc.Upload(ctx, u.dir, u.file.Name, u.file.Data); err != nil {
			res.Failed++
			c.log.Warn("upload failed",
				zap.String("dir", u.dir),
				zap.String("name", u.file.Name),
				zap.Error(err),
			)
			continue
		}
		res.Succeeded++
	}

	if res.Failed == 0 {
		c.notify.Success(fmt.Sprintf("Uploaded %d files", res.Succeeded))
	} else {
		c.notify.Warning(fmt.Sprintf("Uploaded %d files, %d failed", res.Succeeded, res.Failed))
	}
	return res, c.refreshLocked(ctx)
}

var repeatedSlashes = regexp.MustCompile(`/+`)

// FolderUploadDir returns the folder a file from a picked folder is
// uploaded to. relativePath starts with the picked folder's name, which is
// dropped; the remaining directories are joined under target.
func FolderUploadDir(target, relativePath string) string {
	parts := strings.Split(relativePath, "/")
	parts = parts[1:]
	var sub string
	if len(parts) > 1 {
		sub = strings.Join(parts[:len(parts)-1], "/")
	}

	dir := sub
	if target != "/" {
		dir = repeatedSlashes.ReplaceAllString(target+"/"+sub, "/")
	}
	dir = strings.TrimRight(dir, "/")
	if dir == "" {
		return "/"
	}
	return dir
}

// CreateFolder creates an empty folder in TargetPath.
func (c *Controller) CreateFolder(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		c.notify.Error(ErrInvalidName.Error())
		return ErrInvalidName
	}

	c.opMu.Lock()
	defer c.opMu.Unlock()

	c.mu.Lock()
	dir := c.targetPathLocked()
	c.mu.Unlock()

	if _, err := c.svc.Mkdir(ctx, dir, name); err != nil {
		c.notify.Error(fmt.Sprintf("Failed to create folder %s: %s", name, errorMessage(err)))
		return fmt.Errorf("mkdir %s: %w", tree.BuildChildPath(dir, name), err)
	}
	c.notify.Success("Created folder " + tree.BuildChildPath(dir, name))
	return c.refreshLocked(ctx)
}

// CreateFile creates an empty file in TargetPath. The service has no
// dedicated call for it; a zero-byte upload is used.
func (c *Controller) CreateFile(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		c.notify.Error(ErrInvalidName.Error())
		return ErrInvalidName
	}

	c.opMu.Lock()
	defer c.opMu.Unlock()

	c.mu.Lock()
	dir := c.targetPathLocked()
	c.mu.Unlock()

	if _, err := c.svc.Upload(ctx, dir, name, []byte{}); err != nil {
		c.notify.Error(fmt.Sprintf("Failed to create file %s: %s", name, errorMessage(err)))
		return fmt.Errorf("create %s: %w", tree.BuildChildPath(dir, name), err)
	}
	c.notify.Success("Created file " + tree.BuildChildPath(dir, name))
	return c.refreshLocked(ctx)
}
