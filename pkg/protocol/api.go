// Package protocol defines the file service request/response types.
package protocol

import "encoding/json"

// Envelope codes. Any code other than CodeOK is a failure.
const (
	CodeOK           = 200
	CodeBadRequest   = 400
	CodeUnauthorized = 401
	CodeForbidden    = 403
	CodeNotFound     = 404
	CodeInternal     = 500
)

// Response is the envelope every file service endpoint answers with.
// The HTTP status is always 200; Code carries the outcome.
type Response struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// OK reports whether the envelope signals success.
func (r *Response) OK() bool {
	return r.Code == CodeOK
}

// UpdateContentRequest is the body for PUT /api/projects/{id}/files/content.
type UpdateContentRequest struct {
	Path    string `json:"path" validate:"required"`
	Content string `json:"content"`
}

// RenameRequest is the body for POST /api/projects/{id}/files/rename.
type RenameRequest struct {
	Path    string `json:"path" validate:"required"`
	NewName string `json:"new_name" validate:"required"`
}

// MoveRequest is the body for POST /api/projects/{id}/files/move.
type MoveRequest struct {
	SourcePath string `json:"source_path" validate:"required"`
	TargetPath string `json:"target_path" validate:"required"`
}

// CreateProjectRequest is the optional body for POST /api/projects/{id}.
type CreateProjectRequest struct {
	DisplayName string `json:"display_name" validate:"omitempty,max=100"`
}

// DeleteRequest is the body for DELETE /api/projects/{id}/files/delete.
type DeleteRequest struct {
	Path string `json:"path" validate:"required"`
}

// CreateFolderRequest is the body for POST /api/projects/{id}/folders.
type CreateFolderRequest struct {
	Path string `json:"path" validate:"required"`
	Name string `json:"name" validate:"required"`
}

// Messages returned by the file service.
const (
	MsgSuccess         = "success"
	MsgFileUpdated     = "File updated successfully"
	MsgFileRenamed     = "File renamed successfully"
	MsgFileDeleted     = "File deleted successfully"
	MsgFileUploaded    = "File uploaded successfully"
	MsgFolderCreated   = "Folder created successfully"
	MsgFileMoved       = "File moved successfully"
	MsgProjectCreated  = "Project created successfully"
	MsgInvalidRequest  = "Invalid request"
	MsgInvalidPath     = "Invalid file path"
	MsgProjectNotFound = "Project not found"
	MsgProjectExists   = "Project already exists"
	MsgFileNotFound    = "File not found"
	MsgAlreadyExists   = "A file with this name already exists"
	MsgTargetExists    = "A file with this name already exists in the target location"
	MsgProtectedIndex  = "index.html cannot be renamed, moved or deleted"
	MsgMoveIntoSelf    = "Cannot move a folder into itself"
	MsgFolderContent   = "Cannot access content of a folder"
	MsgUploadTooLarge  = "File exceeds the maximum upload size"
	MsgUnauthorized    = "Unauthorized"
	MsgInternalError   = "Internal server error"
)
