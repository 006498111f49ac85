// Package prosener recognizes named entities in extracted legal text.
// It layers two sources: the prose statistical model for people and
// places, and regular expressions for the legal-domain types the model
// does not know about (courts, organizations, dates).
package prosener

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/jdkato/prose/v2"

	"github.com/lexigraph/lexigraph/internal/pipeline"
)

// Mention length bounds. Anything shorter is noise, anything longer is
// almost certainly a sentence fragment the tokenizer misjoined.
const (
	minMentionLen = 2
	maxMentionLen = 100
)

// Confidence assigned per source. The prose model reports no scores,
// so mentions carry a fixed confidence by origin; the legal patterns
// are more precise than the general model.
const (
	confidenceModel   = 0.80
	confidencePattern = 0.90
)

var (
	courtPattern = regexp.MustCompile(
		`\b(?:(?:Supreme|Superior|District|Circuit|Appellate|Municipal|Family|Bankruptcy)\s+Court|Court\s+of\s+(?:Appeals?|Common\s+Pleas|Claims))(?:\s+(?:of|for)\s+(?:the\s+)?[A-Z][A-Za-z]*(?:\s+[A-Z][A-Za-z]*)*)?`)

	orgPattern = regexp.MustCompile(
		`\b[A-Z][A-Za-z&'.-]*(?:\s+[A-Z&][A-Za-z&'.-]*)*\s+(?:Inc\.?|LLC|LLP|L\.L\.C\.|Corp\.?|Corporation|Company|Co\.|Ltd\.?|Associates|Partners)\b`)

	datePatterns = []*regexp.Regexp{
		regexp.MustCompile(`\b(?:January|February|March|April|May|June|July|August|September|October|November|December)\s+\d{1,2},\s+\d{4}\b`),
		regexp.MustCompile(`\b\d{1,2}/\d{1,2}/\d{4}\b`),
		regexp.MustCompile(`\b\d{4}-\d{2}-\d{2}\b`),
	}

	honorifics = []string{
		"Mr. ", "Mrs. ", "Ms. ", "Dr. ", "Hon. ",
		"Judge ", "Justice ", "Attorney ",
	}
)

// Recognizer finds entity mentions in document text.
type Recognizer struct {
	logger *slog.Logger
}

var _ pipeline.EntityRecognizer = (*Recognizer)(nil)

// NewRecognizer creates a recognizer.
func NewRecognizer(log *slog.Logger) *Recognizer {
	if log == nil {
		log = slog.Default()
	}
	return &Recognizer{logger: log.With(slog.String("component", "recognizer"))}
}

// ExtractEntities returns the entity mentions found in text. The text
// is split on the page separator so each mention is attributed to the
// page it occurs on; text without separators is treated as one page.
func (r *Recognizer) ExtractEntities(ctx context.Context, text string) ([]pipeline.RawEntity, error) {
	var mentions []pipeline.RawEntity

	for i, pageText := range strings.Split(text, pipeline.PageSeparator) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		// Empty segments are placeholders for pages the extractor
		// skipped; they still count toward page numbering.
		pageNumber := i + 1
		if strings.TrimSpace(pageText) == "" {
			continue
		}

		modelMentions, err := r.modelEntities(pageText, pageNumber)
		if err != nil {
			return nil, err
		}
		mentions = append(mentions, modelMentions...)
		mentions = append(mentions, patternEntities(pageText, pageNumber)...)
	}

	r.logger.Debug("recognized entity mentions", slog.Int("count", len(mentions)))
	return mentions, nil
}

// modelEntities runs the prose model over one page of text.
func (r *Recognizer) modelEntities(text string, pageNumber int) ([]pipeline.RawEntity, error) {
	doc, err := prose.NewDocument(text, prose.WithExtraction(true))
	if err != nil {
		return nil, fmt.Errorf("failed to analyze text: %w", err)
	}

	var mentions []pipeline.RawEntity
	for _, e := range doc.Entities() {
		name, ok := cleanMention(e.Text)
		if !ok {
			continue
		}

		var entityType string
		switch e.Label {
		case "PERSON":
			entityType = "PERSON"
		case "GPE":
			entityType = "LOCATION"
		default:
			continue
		}

		mentions = append(mentions, pipeline.RawEntity{
			Name:       name,
			Type:       entityType,
			Confidence: confidenceModel,
			PageNumber: pageNumber,
		})
	}
	return mentions, nil
}

// patternEntities applies the legal-domain patterns to one page.
func patternEntities(text string, pageNumber int) []pipeline.RawEntity {
	var mentions []pipeline.RawEntity

	appendMatches := func(matches []string, entityType string) {
		for _, m := range matches {
			name, ok := cleanMention(m)
			if !ok {
				continue
			}
			mentions = append(mentions, pipeline.RawEntity{
				Name:       name,
				Type:       entityType,
				Confidence: confidencePattern,
				PageNumber: pageNumber,
			})
		}
	}

	appendMatches(courtPattern.FindAllString(text, -1), "COURT")
	appendMatches(orgPattern.FindAllString(text, -1), "ORG")
	for _, p := range datePatterns {
		appendMatches(p.FindAllString(text, -1), "DATE")
	}

	return mentions
}

// cleanMention strips honorifics and surrounding whitespace and
// enforces the length bounds. The second return is false when the
// mention should be discarded.
func cleanMention(raw string) (string, bool) {
	name := strings.TrimSpace(raw)

	for _, h := range honorifics {
		if strings.HasPrefix(name, h) {
			name = strings.TrimSpace(strings.TrimPrefix(name, h))
			break
		}
	}

	if len(name) < minMentionLen || len(name) > maxMentionLen {
		return "", false
	}
	return name, true
}
