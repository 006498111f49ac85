package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// CaseStatus represents the processing state of an uploaded case document.
type CaseStatus string

// Possible case status values. The pipeline moves a case from pending
// through ocr_complete to complete; any stage failure marks it failed.
const (
	CaseStatusPending     CaseStatus = "pending"
	CaseStatusProcessing  CaseStatus = "processing"
	CaseStatusOCRComplete CaseStatus = "ocr_complete"
	CaseStatusComplete    CaseStatus = "complete"
	CaseStatusFailed      CaseStatus = "failed"
)

// Common validation errors for Case.
var (
	ErrEmptyCaseID       = errors.New("case ID cannot be empty")
	ErrEmptyCaseOwner    = errors.New("case owner ID cannot be empty")
	ErrEmptyCaseFilename = errors.New("case filename cannot be empty")
	ErrInvalidCaseStatus = errors.New("invalid case status")
)

// Case represents a scanned legal document uploaded by a user. The
// pipeline reads FilePath and UploadedBy and writes RawText and Status;
// the remaining fields belong to the surrounding CRUD surface.
type Case struct {
	ID           uuid.UUID  `json:"case_id"`
	UploadedBy   uuid.UUID  `json:"uploaded_by"`
	Filename     string     `json:"filename"`
	FilePath     string     `json:"file_path,omitempty"`
	RawText      string     `json:"-"`
	CourtName    string     `json:"court_name,omitempty"`
	CaseDate     *time.Time `json:"case_date,omitempty"`
	DocumentType string     `json:"document_type,omitempty"`
	Status       CaseStatus `json:"status"`
	IsDeleted    bool       `json:"-"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// NewCase creates a new pending Case for the given owner and file.
// Returns an error if validation fails.
func NewCase(uploadedBy uuid.UUID, filename, filePath string) (*Case, error) {
	now := time.Now().UTC()
	c := &Case{
		ID:         uuid.New(),
		UploadedBy: uploadedBy,
		Filename:   filename,
		FilePath:   filePath,
		Status:     CaseStatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}

	return c, nil
}

// Validate checks if the Case has valid data.
func (c *Case) Validate() error {
	if c.ID == uuid.Nil {
		return ErrEmptyCaseID
	}

	if c.UploadedBy == uuid.Nil {
		return ErrEmptyCaseOwner
	}

	if c.Filename == "" {
		return ErrEmptyCaseFilename
	}

	if !isValidCaseStatus(c.Status) {
		return ErrInvalidCaseStatus
	}

	return nil
}

// isValidCaseStatus checks if the given status is a valid CaseStatus.
func isValidCaseStatus(status CaseStatus) bool {
	switch status {
	case CaseStatusPending, CaseStatusProcessing, CaseStatusOCRComplete,
		CaseStatusComplete, CaseStatusFailed:
		return true
	default:
		return false
	}
}
