// Package models holds the shared domain types exchanged between services
// and handlers.
package models

import "time"

// UploadedFile is the metadata record for one stored spreadsheet.
type UploadedFile struct {
	ID           string    `json:"id"`
	OriginalName string    `json:"original_name"`
	StoredName   string    `json:"stored_name"`
	SizeBytes    int64     `json:"size_bytes"`
	UploadedAt   time.Time `json:"uploaded_at"`
	UploadedBy   string    `json:"uploaded_by"`
}

// UploadOutcome reports the result of saving one file from a batch upload.
// A failed file carries its error text; the rest of the batch is unaffected.
type UploadOutcome struct {
	OriginalName string        `json:"original_name"`
	Saved        bool          `json:"saved"`
	Error        string        `json:"error,omitempty"`
	File         *UploadedFile `json:"file,omitempty"`
}
