// Package fileapi provides the HTTP handlers of the project file service.
// Every endpoint answers HTTP 200 with a protocol.Response envelope; the
// envelope code carries the outcome.
package fileapi

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/staticforge/console/internal/logging"
	"github.com/staticforge/console/internal/metrics"
	"github.com/staticforge/console/internal/storage"
	"github.com/staticforge/console/pkg/models"
	"github.com/staticforge/console/pkg/protocol"
)

// IndexFile is the entry page every project has. It cannot be renamed,
// moved or deleted.
const IndexFile = "index.html"

var projectIDRegex = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]{0,63}$`)

// Config holds server settings.
type Config struct {
	MaxUploadSize int64
	// APIToken enables bearer token checks when non-empty.
	APIToken string
}

// Server is the file service HTTP server.
type Server struct {
	backend  storage.Backend
	cfg      Config
	validate *validator.Validate
}

// NewServer creates a new server on top of a storage backend.
func NewServer(backend storage.Backend, cfg Config) *Server {
	if cfg.MaxUploadSize <= 0 {
		cfg.MaxUploadSize = 32 * 1024 * 1024
	}
	return &Server{
		backend:  backend,
		cfg:      cfg,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.Handle("GET /health", metrics.Route(http.HandlerFunc(s.handleHealth)))

	protected := http.NewServeMux()
	route := func(pattern string, h http.HandlerFunc) {
		protected.Handle(pattern, metrics.Route(h))
	}
	route("POST /api/projects/{id}", s.handleCreateProject)
	route("GET /api/projects/{id}/files", s.handleList)
	route("GET /api/projects/{id}/files/content", s.handleGetContent)
	route("PUT /api/projects/{id}/files/content", s.handleUpdateContent)
	route("POST /api/projects/{id}/files/upload", s.handleUpload)
	route("POST /api/projects/{id}/files/rename", s.handleRename)
	route("POST /api/projects/{id}/files/move", s.handleMove)
	route("DELETE /api/projects/{id}/files/delete", s.handleDelete)
	route("POST /api/projects/{id}/folders", s.handleCreateFolder)

	mux.Handle("/api/", s.authMiddleware(protected))

	// Apply logging and metrics middleware
	return metrics.Middleware(logging.Middleware(mux))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok", "backend": s.backend.Type()})
}

// authMiddleware checks the static bearer token when one is configured.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	if s.cfg.APIToken == "" {
		return next
	}
	want := []byte("Bearer " + s.cfg.APIToken)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got := []byte(r.Header.Get("Authorization"))
		if subtle.ConstantTimeCompare(got, want) != 1 {
			logging.WithContext(r.Context()).Warn("rejected request", zap.String("path", r.URL.Path))
			s.respond(w, protocol.CodeUnauthorized, protocol.MsgUnauthorized, nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ─── Envelope helpers ───────────────────────────────────────────────────────

func (s *Server) respond(w http.ResponseWriter, code int, message string, data any) {
	resp := protocol.Response{Code: code, Message: message}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			logging.Error("encode response data", zap.Error(err))
			resp = protocol.Response{Code: protocol.CodeInternal, Message: protocol.MsgInternalError}
		} else {
			resp.Data = raw
		}
	}
	logging.SetCode(w, resp.Code)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(resp)
}

// fail maps a storage error onto an envelope and records the operation.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	code, msg := protocol.CodeInternal, protocol.MsgInternalError
	switch {
	case errors.Is(err, storage.ErrInvalidPath):
		code, msg = protocol.CodeBadRequest, protocol.MsgInvalidPath
	case errors.Is(err, storage.ErrNotFound):
		code, msg = protocol.CodeNotFound, protocol.MsgFileNotFound
	case errors.Is(err, storage.ErrExists):
		code, msg = protocol.CodeBadRequest, protocol.MsgAlreadyExists
	case errors.Is(err, storage.ErrIsFolder):
		code, msg = protocol.CodeBadRequest, protocol.MsgFolderContent
	default:
		logging.WithContext(r.Context()).Error("file operation failed",
			zap.String("operation", op), zap.Error(err))
	}
	s.reject(w, op, code, msg)
}

func (s *Server) reject(w http.ResponseWriter, op string, code int, msg string) {
	metrics.RecordFileOperation(op, code)
	s.respond(w, code, msg, nil)
}

func (s *Server) ok(w http.ResponseWriter, op, msg string, data any) {
	metrics.RecordFileOperation(op, protocol.CodeOK)
	s.respond(w, protocol.CodeOK, msg, data)
}

// decode reads and validates a JSON request body.
func (s *Server) decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("decode body: %w", err)
	}
	return s.validate.Struct(v)
}

// project resolves the {id} path value and checks that the project exists.
// It writes the failure envelope and returns false when it does not.
func (s *Server) project(w http.ResponseWriter, r *http.Request, op string) (string, bool) {
	id := r.PathValue("id")
	if !projectIDRegex.MatchString(id) {
		s.reject(w, op, protocol.CodeBadRequest, protocol.MsgInvalidRequest)
		return "", false
	}
	exists, err := s.backend.ProjectExists(r.Context(), id)
	if err != nil {
		s.fail(w, r, op, err)
		return "", false
	}
	if !exists {
		s.reject(w, op, protocol.CodeNotFound, protocol.MsgProjectNotFound)
		return "", false
	}
	return id, true
}

func toModel(e storage.Entry) models.FileEntry {
	fe := models.FileEntry{
		Path:      e.Path,
		Name:      e.Name,
		Size:      e.Size,
		IsFolder:  e.IsFolder,
		UpdatedAt: e.ModTime.UTC().Format(time.RFC3339),
	}
	if !e.IsFolder {
		fe.MimeType = storage.MimeType(e.Name, nil)
	}
	return fe
}

func isIndex(p string) bool {
	return p == IndexFile
}

func parentOf(p string) string {
	if i := strings.LastIndexByte(p, '/'); i >= 0 {
		return p[:i]
	}
	return ""
}

func baseName(p string) string {
	if i := strings.LastIndexByte(p, '/'); i >= 0 {
		return p[i+1:]
	}
	return p
}
