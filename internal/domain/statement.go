package domain

import "time"

// StatementStatus is the ingestion/review state of a statement.
type StatementStatus string

const (
	StatusNew       StatementStatus = "new"
	StatusProcessed StatementStatus = "processed"
	StatusReviewed  StatementStatus = "reviewed"
	StatusPublished StatementStatus = "published"
	StatusError     StatementStatus = "error"
)

// Statement is an uploaded bank document and its processing lifecycle.
type Statement struct {
	ID         string    `json:"id"`
	BankID     string    `json:"bank_id"`
	UploadedAt time.Time `json:"uploaded_at"`

	// SourceURI points at the original file (local path or gs:// URI).
	SourceURI string `json:"source_uri,omitempty"`
	// ExternalFileID is the file id returned by the extraction service upload.
	ExternalFileID string `json:"external_file_id,omitempty"`

	Status      StatementStatus `json:"status"`
	ProcessedAt *time.Time      `json:"processed_at"`
	ReviewedAt  *time.Time      `json:"reviewed_at"`
	PublishedAt *time.Time      `json:"published_at"`
	ArchivedAt  *time.Time      `json:"archived_at"`
}

// Archived reports whether the archive flag is set.
func (s *Statement) Archived() bool {
	return s.ArchivedAt != nil
}
