// Package models contains the data types shared by the console and the file service.
package models

// FileEntry is a file or folder of a project as reported by the file service.
// Path is the only identity an entry has.
type FileEntry struct {
	Path      string `json:"path"`
	Name      string `json:"name"`
	Size      int64  `json:"size"`
	MimeType  string `json:"mime_type"`
	IsFolder  bool   `json:"is_folder"`
	UpdatedAt string `json:"updated_at"`
	Content   string `json:"content,omitempty"`
}

// LocalFile is a file picked or dropped by the user, waiting to be uploaded.
// RelativePath is set for folder uploads ("site/css/main.css") and empty
// for plain file picks.
type LocalFile struct {
	Name         string
	RelativePath string
	Data         []byte
}
