package client

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/url"

	"github.com/staticforge/console/pkg/models"
	"github.com/staticforge/console/pkg/protocol"
)

// ProjectFiles is the path-addressed file API of one project. Paths are
// sent exactly as given; the service owns their interpretation.
type ProjectFiles struct {
	c  *Client
	id string
}

// ID returns the project identifier.
func (p *ProjectFiles) ID() string {
	return p.id
}

func (p *ProjectFiles) endpoint(suffix string) string {
	return "/api/projects/" + url.PathEscape(p.id) + suffix
}

// Create creates the project with a default index.html.
func (p *ProjectFiles) Create(ctx context.Context, displayName string) error {
	cl, err := jsonCall(http.MethodPost, p.endpoint(""), protocol.CreateProjectRequest{DisplayName: displayName})
	if err != nil {
		return err
	}
	return p.c.do(ctx, cl, nil)
}

// List returns the flat listing of every file and folder in the project.
func (p *ProjectFiles) List(ctx context.Context) ([]models.FileEntry, error) {
	var files []models.FileEntry
	err := p.c.do(ctx, call{method: http.MethodGet, path: p.endpoint("/files")}, &files)
	if err != nil {
		return nil, err
	}
	if files == nil {
		files = []models.FileEntry{}
	}
	return files, nil
}

// Read returns the entry at path including its content.
func (p *ProjectFiles) Read(ctx context.Context, path string) (*models.FileEntry, error) {
	var entry models.FileEntry
	cl := call{
		method: http.MethodGet,
		path:   p.endpoint("/files/content"),
		query:  url.Values{"path": {path}},
	}
	if err := p.c.do(ctx, cl, &entry); err != nil {
		return nil, err
	}
	return &entry, nil
}

// Write replaces the full content of the file at path.
func (p *ProjectFiles) Write(ctx context.Context, path, content string) error {
	cl, err := jsonCall(http.MethodPut, p.endpoint("/files/content"), protocol.UpdateContentRequest{
		Path:    path,
		Content: content,
	})
	if err != nil {
		return err
	}
	return p.c.do(ctx, cl, nil)
}

// Upload stores data as a file called name inside dir ("/" for the root).
func (p *ProjectFiles) Upload(ctx context.Context, dir, name string, data []byte) (*models.FileEntry, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", name)
	if err != nil {
		return nil, fmt.Errorf("build upload: %w", err)
	}
	if _, err := fw.Write(data); err != nil {
		return nil, fmt.Errorf("build upload: %w", err)
	}
	if err := mw.WriteField("path", dir); err != nil {
		return nil, fmt.Errorf("build upload: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("build upload: %w", err)
	}

	var entry models.FileEntry
	cl := call{
		method:      http.MethodPost,
		path:        p.endpoint("/files/upload"),
		body:        buf.Bytes(),
		contentType: mw.FormDataContentType(),
	}
	if err := p.c.do(ctx, cl, &entry); err != nil {
		return nil, err
	}
	return &entry, nil
}

// Rename gives the entry at path a new base name in the same folder.
func (p *ProjectFiles) Rename(ctx context.Context, path, newName string) error {
	cl, err := jsonCall(http.MethodPost, p.endpoint("/files/rename"), protocol.RenameRequest{
		Path:    path,
		NewName: newName,
	})
	if err != nil {
		return err
	}
	return p.c.do(ctx, cl, nil)
}

// Move relocates the entry at source to target. A folder target receives
// the entry under its own base name.
func (p *ProjectFiles) Move(ctx context.Context, source, target string) (*models.FileEntry, error) {
	cl, err := jsonCall(http.MethodPost, p.endpoint("/files/move"), protocol.MoveRequest{
		SourcePath: source,
		TargetPath: target,
	})
	if err != nil {
		return nil, err
	}
	var entry models.FileEntry
	if err := p.c.do(ctx, cl, &entry); err != nil {
		return nil, err
	}
	return &entry, nil
}

// Delete removes the entry at path; folders are removed recursively.
func (p *ProjectFiles) Delete(ctx context.Context, path string) error {
	cl, err := jsonCall(http.MethodDelete, p.endpoint("/files/delete"), protocol.DeleteRequest{Path: path})
	if err != nil {
		return err
	}
	return p.c.do(ctx, cl, nil)
}

// Mkdir creates a folder called name inside dir.
func (p *ProjectFiles) Mkdir(ctx context.Context, dir, name string) (*models.FileEntry, error) {
	cl, err := jsonCall(http.MethodPost, p.endpoint("/folders"), protocol.CreateFolderRequest{
		Path: dir,
		Name: name,
	})
	if err != nil {
		return nil, err
	}
	var entry models.FileEntry
	if err := p.c.do(ctx, cl, &entry); err != nil {
		return nil, err
	}
	return &entry, nil
}
