// Package models defines the domain types exchanged with the document service.
package models

// Document is a logical unit with free-form metadata and a history of versions.
type Document struct {
	DocID         string    `json:"doc_id"`
	Metadata      Metadata  `json:"metadata"`
	LatestVersion int       `json:"latest_version"`
	Versions      []Version `json:"versions"`
}

// Version is one immutable snapshot of a document's source file and its
// rendered artifacts.
type Version struct {
	Version           int        `json:"version"`
	ChangeDescription string     `json:"change_description"`
	FilePath          string     `json:"file_path"`
	HTMLPaths         []HTMLPath `json:"html_paths"`
	FileConsistent    bool       `json:"file_consistent"`
	CreatedAt         string     `json:"created_at"`
}

// HTMLPath is a rendered artifact attached to a version.
type HTMLPath struct {
	Path       string `json:"path"`
	Consistent bool   `json:"consistent"`
}

// ActionResult is the body returned by the delete and vote endpoints.
type ActionResult struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}
