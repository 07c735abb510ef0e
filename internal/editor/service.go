// Package editor implements the console's editing session: selection, the
// autosaving buffer and every tree mutation, coordinated against a remote
// path-addressed file service.
package editor

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/staticforge/console/internal/logging"
	"github.com/staticforge/console/pkg/client"
	"github.com/staticforge/console/pkg/models"
)

// FileService is the project-scoped file store the controller edits.
// *client.ProjectFiles satisfies it.
type FileService interface {
	List(ctx context.Context) ([]models.FileEntry, error)
	Read(ctx context.Context, path string) (*models.FileEntry, error)
	Write(ctx context.Context, path, content string) error
	Upload(ctx context.Context, dir, name string, data []byte) (*models.FileEntry, error)
	Rename(ctx context.Context, path, newName string) error
	Move(ctx context.Context, source, target string) (*models.FileEntry, error)
	Delete(ctx context.Context, path string) error
	Mkdir(ctx context.Context, dir, name string) (*models.FileEntry, error)
}

var _ FileService = (*client.ProjectFiles)(nil)

// Notifier surfaces outcomes to the user.
type Notifier interface {
	Success(msg string)
	Warning(msg string)
	Error(msg string)
}

// LogNotifier reports through the structured logger.
type LogNotifier struct {
	Logger *zap.Logger
}

func (n LogNotifier) logger() *zap.Logger {
	if n.Logger != nil {
		return n.Logger
	}
	return logging.Named("editor")
}

func (n LogNotifier) Success(msg string) { n.logger().Info(msg) }
func (n LogNotifier) Warning(msg string) { n.logger().Warn(msg) }
func (n LogNotifier) Error(msg string)   { n.logger().Error(msg) }

// Client-side rejections. None of them reach the file service.
var (
	ErrProtectedFile  = errors.New("index.html cannot be renamed, moved or deleted")
	ErrDropOnSelf     = errors.New("cannot drop an entry onto itself")
	ErrAlreadyInPlace = errors.New("entry is already in the target folder")
	ErrTargetExists   = errors.New("a file with this name already exists in the target location")
	ErrMoveIntoSelf   = errors.New("cannot move a folder into itself")
	ErrInvalidName    = errors.New("name must not be empty")
)

// errorMessage returns the text shown to the user for a failed call.
func errorMessage(err error) string {
	if ae, ok := client.AsAPIError(err); ok {
		return ae.Message
	}
	return err.Error()
}
