// Package pipeline implements the two document-processing stages,
// text extraction and entity extraction, executed by workers for a
// claimed task. The extraction engines themselves are opaque
// collaborators behind the TextExtractor and EntityRecognizer
// interfaces; this package owns ownership checks, progress reporting,
// persistence and stage chaining.
package pipeline

import (
	"context"
	"errors"
)

// Collaborator errors. Implementations return these so callers can
// distinguish a missing file from a document that yielded no text.
var (
	// ErrFileNotFound is returned when the referenced document file
	// does not exist.
	ErrFileNotFound = errors.New("document file not found")

	// ErrNoText is returned when extraction succeeded mechanically but
	// produced no text.
	ErrNoText = errors.New("extraction produced no text")
)

// PageSeparator joins page texts into the full document text.
// Recognizers split on it to attribute entity mentions to pages.
const PageSeparator = "\f"

// PageText is the text of a single document page.
type PageText struct {
	PageNumber int    `json:"page_number"`
	Text       string `json:"text"`
}

// RawEntity is one entity mention as reported by the recognizer,
// before vocabulary filtering and deduplication.
type RawEntity struct {
	Name       string
	Type       string
	Confidence float64
	PageNumber int
}

// TextExtractor is the opaque text-extraction capability.
// Version: 1.0
type TextExtractor interface {
	// ExtractText reads the referenced file and returns the full text
	// plus per-page text. Returns ErrFileNotFound when the file is
	// missing and ErrNoText when the document contains no extractable
	// text.
	ExtractText(ctx context.Context, filePath string) (string, []PageText, error)
}

// EntityRecognizer is the opaque named-entity-recognition capability.
// Version: 1.0
type EntityRecognizer interface {
	// ExtractEntities returns the entity mentions found in text.
	// Mentions with types outside the fixed vocabulary are discarded
	// by the caller, not the recognizer.
	ExtractEntities(ctx context.Context, text string) ([]RawEntity, error)
}
