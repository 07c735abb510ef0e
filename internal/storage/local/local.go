// Package local provides a local filesystem storage backend. Each project
// is a directory under the root.
package local

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/staticforge/console/internal/logging"
	"github.com/staticforge/console/internal/metrics"
	"github.com/staticforge/console/internal/storage"
)

// Config holds local filesystem backend settings.
type Config struct {
	RootPath   string
	CreateDirs bool
}

// Backend implements storage.Backend on the local filesystem.
type Backend struct {
	rootPath string
}

var _ storage.Backend = (*Backend)(nil)

// New creates a new local filesystem backend.
func New(cfg Config) (*Backend, error) {
	if cfg.RootPath == "" {
		return nil, fmt.Errorf("root path is required")
	}

	info, err := os.Stat(cfg.RootPath)
	if err != nil {
		if os.IsNotExist(err) && cfg.CreateDirs {
			if mkErr := os.MkdirAll(cfg.RootPath, 0755); mkErr != nil {
				return nil, fmt.Errorf("create root path %s: %w", cfg.RootPath, mkErr)
			}
		} else {
			return nil, fmt.Errorf("stat root path %s: %w", cfg.RootPath, err)
		}
	} else if !info.IsDir() {
		return nil, fmt.Errorf("root path %s is not a directory", cfg.RootPath)
	}

	return &Backend{rootPath: cfg.RootPath}, nil
}

func (b *Backend) projectPath(project string) string {
	return filepath.Join(b.rootPath, project)
}

func (b *Backend) fullPath(project, p string) string {
	return filepath.Join(b.projectPath(project), filepath.FromSlash(p))
}

func observe(op string, start time.Time, err error) {
	metrics.RecordStorageOperation("local", op, time.Since(start), err == nil)
}

// mapErr translates filesystem errors into storage errors.
func mapErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("%w: %v", storage.ErrNotFound, err)
	case errors.Is(err, fs.ErrExist):
		return fmt.Errorf("%w: %v", storage.ErrExists, err)
	}
	return err
}

// CreateProject creates the project directory.
func (b *Backend) CreateProject(_ context.Context, project string) (err error) {
	start := time.Now()
	defer func() { observe("create_project", start, err) }()

	if err := os.Mkdir(b.projectPath(project), 0755); err != nil {
		return fmt.Errorf("create project %s: %w", project, mapErr(err))
	}
	return nil
}

// ProjectExists reports whether the project directory exists.
func (b *Backend) ProjectExists(_ context.Context, project string) (bool, error) {
	info, err := os.Stat(b.projectPath(project))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("stat project %s: %w", project, err)
	}
	return info.IsDir(), nil
}

// List walks the project directory.
func (b *Backend) List(_ context.Context, project string) (entries []storage.Entry, err error) {
	start := time.Now()
	defer func() { observe("list", start, err) }()

	root := b.projectPath(project)
	entries = []storage.Entry{}
	err = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if p == root {
			return nil
		}
		if isTemp(d.Name()) {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		entries = append(entries, entryFromInfo(filepath.ToSlash(rel), info))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list project %s: %w", project, mapErr(err))
	}
	return entries, nil
}

// Stat returns the entry at p.
func (b *Backend) Stat(_ context.Context, project, p string) (*storage.Entry, error) {
	info, err := os.Stat(b.fullPath(project, p))
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", p, mapErr(err))
	}
	e := entryFromInfo(p, info)
	return &e, nil
}

// ReadFile reads the file at p.
func (b *Backend) ReadFile(_ context.Context, project, p string) (data []byte, err error) {
	start := time.Now()
	defer func() { observe("read", start, err) }()

	full := b.fullPath(project, p)
	info, err := os.Stat(full)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", p, mapErr(err))
	}
	if info.IsDir() {
		return nil, fmt.Errorf("read %s: %w", p, storage.ErrIsFolder)
	}
	data, err = os.ReadFile(full)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", p, mapErr(err))
	}
	return data, nil
}

// WriteFile writes content atomically via a temp file and rename.
func (b *Backend) WriteFile(_ context.Context, project, p string, body io.Reader, size int64) (err error) {
	start := time.Now()
	defer func() { observe("write", start, err) }()

	full := b.fullPath(project, p)
	dir := filepath.Dir(full)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create dirs for %s: %w", p, err)
	}

	tmp, err := os.CreateTemp(dir, ".staticforge-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp for %s: %w", p, err)
	}
	tmpName := tmp.Name()

	if _, err := io.Copy(tmp, body); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write %s: %w", p, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp for %s: %w", p, err)
	}
	if err := os.Rename(tmpName, full); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename temp to %s: %w", p, err)
	}

	logging.Debug("local write", zap.String("project", project), zap.String("path", p), zap.Int64("size", size))
	return nil
}

// Mkdir creates the folder at p.
func (b *Backend) Mkdir(_ context.Context, project, p string) (err error) {
	start := time.Now()
	defer func() { observe("mkdir", start, err) }()

	if err := os.MkdirAll(b.fullPath(project, p), 0755); err != nil {
		return fmt.Errorf("mkdir %s: %w", p, mapErr(err))
	}
	return nil
}

// Rename moves a file or folder.
func (b *Backend) Rename(_ context.Context, project, from, to string) (err error) {
	start := time.Now()
	defer func() { observe("rename", start, err) }()

	dst := b.fullPath(project, to)
	if _, err := os.Lstat(dst); err == nil {
		return fmt.Errorf("rename %s -> %s: %w", from, to, storage.ErrExists)
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return fmt.Errorf("create dirs for %s: %w", to, err)
	}
	if err := os.Rename(b.fullPath(project, from), dst); err != nil {
		return fmt.Errorf("rename %s -> %s: %w", from, to, mapErr(err))
	}
	return nil
}

// Remove deletes a file or a folder tree.
func (b *Backend) Remove(_ context.Context, project, p string) (err error) {
	start := time.Now()
	defer func() { observe("remove", start, err) }()

	full := b.fullPath(project, p)
	if _, err := os.Lstat(full); err != nil {
		return fmt.Errorf("remove %s: %w", p, mapErr(err))
	}
	if err := os.RemoveAll(full); err != nil {
		return fmt.Errorf("remove %s: %w", p, err)
	}
	return nil
}

// Type returns "local".
func (b *Backend) Type() string { return "local" }

// Close is a no-op for local backends.
func (b *Backend) Close() error { return nil }

func entryFromInfo(p string, info fs.FileInfo) storage.Entry {
	e := storage.Entry{
		Path:     p,
		Name:     info.Name(),
		IsFolder: info.IsDir(),
		ModTime:  info.ModTime(),
	}
	if !info.IsDir() {
		e.Size = info.Size()
	}
	return e
}

func isTemp(name string) bool {
	matched, _ := filepath.Match(".staticforge-*.tmp", name)
	return matched
}
