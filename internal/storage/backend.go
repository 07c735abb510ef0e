// Package storage defines the Backend interface for project file storage
// and the path rules shared by every backend.
package storage

import (
	"context"
	"errors"
	"io"
	"path"
	"strings"
	"time"
)

var (
	// ErrNotFound is returned when a project or path does not exist.
	ErrNotFound = errors.New("not found")

	// ErrExists is returned when a write would replace an existing entry.
	ErrExists = errors.New("already exists")

	// ErrIsFolder is returned when file content is requested for a folder.
	ErrIsFolder = errors.New("is a folder")

	// ErrInvalidPath is returned for paths that escape the project root.
	ErrInvalidPath = errors.New("invalid path")
)

// Entry is a file or folder inside a project. Path is relative to the
// project root, slash-separated, without leading or trailing slashes.
type Entry struct {
	Path     string
	Name     string
	Size     int64
	IsFolder bool
	ModTime  time.Time
}

// Backend is the interface for project storage backends. Implementations
// store one tree per project and address everything by path; paths given
// to a Backend have already been through CleanPath.
type Backend interface {
	// CreateProject creates an empty project. ErrExists if it already exists.
	CreateProject(ctx context.Context, project string) error

	// ProjectExists reports whether the project has been created.
	ProjectExists(ctx context.Context, project string) (bool, error)

	// List returns every file and folder of the project, in no particular order.
	List(ctx context.Context, project string) ([]Entry, error)

	// Stat returns the entry at p, or ErrNotFound.
	Stat(ctx context.Context, project, p string) (*Entry, error)

	// ReadFile returns the content of the file at p.
	ReadFile(ctx context.Context, project, p string) ([]byte, error)

	// WriteFile stores content at p, creating missing parent folders and
	// replacing an existing file.
	WriteFile(ctx context.Context, project, p string, body io.Reader, size int64) error

	// Mkdir creates the folder at p and any missing parents.
	Mkdir(ctx context.Context, project, p string) error

	// Rename moves the file or folder at from to to. The parent of to must
	// exist or is created; to must not exist.
	Rename(ctx context.Context, project, from, to string) error

	// Remove deletes the file at p, or the folder and everything below it.
	Remove(ctx context.Context, project, p string) error

	// Type returns the backend type identifier ("local", "s3").
	Type() string

	// Close releases any resources held by the backend.
	Close() error
}

// CleanPath turns a client supplied path into the form backends use.
// Leading and trailing slashes are dropped and "." / ".." segments are
// resolved; a path that would leave the project root is ErrInvalidPath.
// The project root itself is "".
func CleanPath(p string) (string, error) {
	p = strings.ReplaceAll(p, "\\", "/")
	cleaned := path.Clean(strings.TrimLeft(p, "/"))
	if cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", ErrInvalidPath
	}
	if cleaned == "." {
		return "", nil
	}
	return cleaned, nil
}

// Join appends a base name to a cleaned folder path.
func Join(dir, name string) string {
	if dir == "" {
		return name
	}
	return dir + "/" + name
}

// SanitizeName strips path separators and traversal sequences from a file
// or folder name.
func SanitizeName(name string) string {
	name = strings.ReplaceAll(name, "..", "")
	name = strings.ReplaceAll(name, "/", "")
	name = strings.ReplaceAll(name, "\\", "")
	return strings.TrimSpace(name)
}
