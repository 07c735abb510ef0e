package fileapi

import (
	"bytes"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/staticforge/console/internal/logging"
	"github.com/staticforge/console/internal/metrics"
	"github.com/staticforge/console/internal/storage"
	"github.com/staticforge/console/pkg/models"
	"github.com/staticforge/console/pkg/protocol"
)

// multipartOverhead is allowed on top of MaxUploadSize for form headers.
const multipartOverhead = 1 << 20

// ─── Projects ───────────────────────────────────────────────────────────────

func (s *Server) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	const op = "create_project"
	id := r.PathValue("id")
	if !projectIDRegex.MatchString(id) {
		s.reject(w, op, protocol.CodeBadRequest, protocol.MsgInvalidRequest)
		return
	}

	var req protocol.CreateProjectRequest
	if r.ContentLength != 0 {
		if err := s.decode(r, &req); err != nil {
			s.reject(w, op, protocol.CodeBadRequest, protocol.MsgInvalidRequest)
			return
		}
	}
	name := req.DisplayName
	if name == "" {
		name = id
	}

	if err := s.backend.CreateProject(r.Context(), id); err != nil {
		if errors.Is(err, storage.ErrExists) {
			s.reject(w, op, protocol.CodeBadRequest, protocol.MsgProjectExists)
			return
		}
		s.fail(w, r, op, err)
		return
	}

	page := []byte(DefaultIndexHTML(name))
	if err := s.backend.WriteFile(r.Context(), id, IndexFile, bytes.NewReader(page), int64(len(page))); err != nil {
		s.fail(w, r, op, err)
		return
	}

	logging.WithContext(r.Context()).Info("project created", zap.String("project", id))
	s.ok(w, op, protocol.MsgProjectCreated, map[string]string{"id": id, "display_name": name})
}

// ─── Files ──────────────────────────────────────────────────────────────────

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	const op = "list"
	project, ok := s.project(w, r, op)
	if !ok {
		return
	}

	entries, err := s.backend.List(r.Context(), project)
	if err != nil {
		s.fail(w, r, op, err)
		return
	}

	files := make([]models.FileEntry, 0, len(entries))
	for _, e := range entries {
		files = append(files, toModel(e))
	}
	metrics.ObserveListing(len(files))
	s.ok(w, op, protocol.MsgSuccess, files)
}

func (s *Server) handleGetContent(w http.ResponseWriter, r *http.Request) {
	const op = "read"
	project, ok := s.project(w, r, op)
	if !ok {
		return
	}

	raw := r.URL.Query().Get("path")
	if raw == "" {
		s.reject(w, op, protocol.CodeBadRequest, protocol.MsgInvalidRequest)
		return
	}
	p, err := storage.CleanPath(raw)
	if err != nil {
		s.fail(w, r, op, err)
		return
	}
	if p == "" {
		s.reject(w, op, protocol.CodeBadRequest, protocol.MsgFolderContent)
		return
	}

	entry, err := s.backend.Stat(r.Context(), project, p)
	if err != nil {
		s.fail(w, r, op, err)
		return
	}
	if entry.IsFolder {
		s.reject(w, op, protocol.CodeBadRequest, protocol.MsgFolderContent)
		return
	}
	content, err := s.backend.ReadFile(r.Context(), project, p)
	if err != nil {
		s.fail(w, r, op, err)
		return
	}

	fe := toModel(*entry)
	fe.Content = string(content)
	s.ok(w, op, protocol.MsgSuccess, fe)
}

func (s *Server) handleUpdateContent(w http.ResponseWriter, r *http.Request) {
	const op = "write"
	project, ok := s.project(w, r, op)
	if !ok {
		return
	}

	var req protocol.UpdateContentRequest
	if err := s.decode(r, &req); err != nil {
		s.reject(w, op, protocol.CodeBadRequest, protocol.MsgInvalidRequest)
		return
	}
	p, err := storage.CleanPath(req.Path)
	if err != nil {
		s.fail(w, r, op, err)
		return
	}
	if p == "" {
		s.reject(w, op, protocol.CodeBadRequest, protocol.MsgFolderContent)
		return
	}

	entry, err := s.backend.Stat(r.Context(), project, p)
	if err != nil {
		s.fail(w, r, op, err)
		return
	}
	if entry.IsFolder {
		s.reject(w, op, protocol.CodeBadRequest, protocol.MsgFolderContent)
		return
	}

	body := strings.NewReader(req.Content)
	if err := s.backend.WriteFile(r.Context(), project, p, body, body.Size()); err != nil {
		s.fail(w, r, op, err)
		return
	}
	metrics.RecordUpload(int64(len(req.Content)))
	s.ok(w, op, protocol.MsgFileUpdated, nil)
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	const op = "upload"
	project, ok := s.project(w, r, op)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadSize+multipartOverhead)
	if err := r.ParseMultipartForm(multipartOverhead); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.reject(w, op, protocol.CodeBadRequest, protocol.MsgUploadTooLarge)
			return
		}
		s.reject(w, op, protocol.CodeBadRequest, protocol.MsgInvalidRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		s.reject(w, op, protocol.CodeBadRequest, protocol.MsgInvalidRequest)
		return
	}
	defer file.Close()

	if header.Size > s.cfg.MaxUploadSize {
		s.reject(w, op, protocol.CodeBadRequest, protocol.MsgUploadTooLarge)
		return
	}

	dirRaw := r.FormValue("path")
	if dirRaw == "" {
		dirRaw = "/"
	}
	dir, err := storage.CleanPath(dirRaw)
	if err != nil {
		s.fail(w, r, op, err)
		return
	}
	name := storage.SanitizeName(header.Filename)
	if name == "" {
		s.reject(w, op, protocol.CodeBadRequest, protocol.MsgInvalidRequest)
		return
	}
	if dir != "" {
		parent, err := s.backend.Stat(r.Context(), project, dir)
		if err == nil && !parent.IsFolder {
			s.reject(w, op, protocol.CodeBadRequest, protocol.MsgInvalidPath)
			return
		}
	}

	target := storage.Join(dir, name)
	if _, err := s.backend.Stat(r.Context(), project, target); err == nil {
		s.reject(w, op, protocol.CodeBadRequest, protocol.MsgAlreadyExists)
		return
	}

	if err := s.backend.WriteFile(r.Context(), project, target, file, header.Size); err != nil {
		s.fail(w, r, op, err)
		return
	}
	metrics.RecordUpload(header.Size)

	entry, err := s.backend.Stat(r.Context(), project, target)
	if err != nil {
		s.fail(w, r, op, err)
		return
	}
	s.ok(w, op, protocol.MsgFileUploaded, toModel(*entry))
}

func (s *Server) handleRename(w http.ResponseWriter, r *http.Request) {
	const op = "rename"
	project, ok := s.project(w, r, op)
	if !ok {
		return
	}

	var req protocol.RenameRequest
	if err := s.decode(r, &req); err != nil {
		s.reject(w, op, protocol.CodeBadRequest, protocol.MsgInvalidRequest)
		return
	}
	p, err := storage.CleanPath(req.Path)
	if err != nil || p == "" {
		s.reject(w, op, protocol.CodeBadRequest, protocol.MsgInvalidPath)
		return
	}
	if isIndex(p) {
		s.reject(w, op, protocol.CodeBadRequest, protocol.MsgProtectedIndex)
		return
	}
	name := storage.SanitizeName(req.NewName)
	if name == "" {
		s.reject(w, op, protocol.CodeBadRequest, protocol.MsgInvalidRequest)
		return
	}

	if _, err := s.backend.Stat(r.Context(), project, p); err != nil {
		s.fail(w, r, op, err)
		return
	}
	newPath := storage.Join(parentOf(p), name)
	if _, err := s.backend.Stat(r.Context(), project, newPath); err == nil {
		s.reject(w, op, protocol.CodeBadRequest, protocol.MsgAlreadyExists)
		return
	}

	if err := s.backend.Rename(r.Context(), project, p, newPath); err != nil {
		s.fail(w, r, op, err)
		return
	}
	s.ok(w, op, protocol.MsgFileRenamed, nil)
}

func (s *Server) handleMove(w http.ResponseWriter, r *http.Request) {
	const op = "move"
	project, ok := s.project(w, r, op)
	if !ok {
		return
	}

	var req protocol.MoveRequest
	if err := s.decode(r, &req); err != nil {
		s.reject(w, op, protocol.CodeBadRequest, protocol.MsgInvalidRequest)
		return
	}
	src, err := storage.CleanPath(req.SourcePath)
	if err != nil || src == "" {
		s.reject(w, op, protocol.CodeBadRequest, protocol.MsgInvalidPath)
		return
	}
	if isIndex(src) {
		s.reject(w, op, protocol.CodeBadRequest, protocol.MsgProtectedIndex)
		return
	}
	target, err := storage.CleanPath(req.TargetPath)
	if err != nil {
		s.reject(w, op, protocol.CodeBadRequest, protocol.MsgInvalidPath)
		return
	}

	source, err := s.backend.Stat(r.Context(), project, src)
	if err != nil {
		s.fail(w, r, op, err)
		return
	}

	dest := s.moveDestination(r, project, src, target)
	if source.IsFolder && strings.HasPrefix(dest, src+"/") {
		s.reject(w, op, protocol.CodeBadRequest, protocol.MsgMoveIntoSelf)
		return
	}
	if _, err := s.backend.Stat(r.Context(), project, dest); err == nil {
		s.reject(w, op, protocol.CodeBadRequest, protocol.MsgTargetExists)
		return
	}

	if err := s.backend.Rename(r.Context(), project, src, dest); err != nil {
		if errors.Is(err, storage.ErrExists) {
			s.reject(w, op, protocol.CodeBadRequest, protocol.MsgTargetExists)
			return
		}
		s.fail(w, r, op, err)
		return
	}

	entry, err := s.backend.Stat(r.Context(), project, dest)
	if err != nil {
		s.fail(w, r, op, err)
		return
	}
	s.ok(w, op, protocol.MsgFileMoved, toModel(*entry))
}

// moveDestination resolves where src lands: inside target when target is
// a folder (or the project root), otherwise beside target.
func (s *Server) moveDestination(r *http.Request, project, src, target string) string {
	name := baseName(src)
	if target == "" {
		return name
	}
	if e, err := s.backend.Stat(r.Context(), project, target); err == nil && e.IsFolder {
		return storage.Join(target, name)
	}
	return storage.Join(parentOf(target), name)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	const op = "delete"
	project, ok := s.project(w, r, op)
	if !ok {
		return
	}

	var req protocol.DeleteRequest
	if err := s.decode(r, &req); err != nil {
		s.reject(w, op, protocol.CodeBadRequest, protocol.MsgInvalidRequest)
		return
	}
	p, err := storage.CleanPath(req.Path)
	if err != nil || p == "" {
		s.reject(w, op, protocol.CodeBadRequest, protocol.MsgInvalidPath)
		return
	}
	if isIndex(p) {
		s.reject(w, op, protocol.CodeBadRequest, protocol.MsgProtectedIndex)
		return
	}

	if err := s.backend.Remove(r.Context(), project, p); err != nil {
		s.fail(w, r, op, err)
		return
	}
	s.ok(w, op, protocol.MsgFileDeleted, nil)
}

// ─── Folders ────────────────────────────────────────────────────────────────

func (s *Server) handleCreateFolder(w http.ResponseWriter, r *http.Request) {
	const op = "mkdir"
	project, ok := s.project(w, r, op)
	if !ok {
		return
	}

	var req protocol.CreateFolderRequest
	if err := s.decode(r, &req); err != nil {
		s.reject(w, op, protocol.CodeBadRequest, protocol.MsgInvalidRequest)
		return
	}
	dir, err := storage.CleanPath(req.Path)
	if err != nil {
		s.fail(w, r, op, err)
		return
	}
	name := storage.SanitizeName(req.Name)
	if name == "" {
		s.reject(w, op, protocol.CodeBadRequest, protocol.MsgInvalidRequest)
		return
	}

	target := storage.Join(dir, name)
	if _, err := s.backend.Stat(r.Context(), project, target); err == nil {
		s.reject(w, op, protocol.CodeBadRequest, protocol.MsgAlreadyExists)
		return
	}
	if err := s.backend.Mkdir(r.Context(), project, target); err != nil {
		s.fail(w, r, op, err)
		return
	}

	entry, err := s.backend.Stat(r.Context(), project, target)
	if err != nil {
		s.fail(w, r, op, err)
		return
	}
	s.ok(w, op, protocol.MsgFolderCreated, toModel(*entry))
}
