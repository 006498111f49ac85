// Package pdfextract extracts plain text from PDF documents, page by
// page.
package pdfextract

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/lexigraph/lexigraph/internal/pipeline"
)

// Extractor reads PDF files from the local filesystem.
type Extractor struct {
	logger *slog.Logger
}

var _ pipeline.TextExtractor = (*Extractor)(nil)

// NewExtractor creates a PDF text extractor.
func NewExtractor(log *slog.Logger) *Extractor {
	if log == nil {
		log = slog.Default()
	}
	return &Extractor{logger: log.With(slog.String("component", "pdf_extractor"))}
}

// ExtractText reads the PDF at filePath and returns its full text plus
// per-page text. Pages that cannot be decoded are skipped with a
// warning rather than failing the whole document; scanned legal
// filings routinely contain a few malformed pages. Every page keeps
// its slot in the joined text, empty for skipped pages, so the Nth
// separator-delimited segment is always PDF page N.
func (e *Extractor) ExtractText(ctx context.Context, filePath string) (string, []pipeline.PageText, error) {
	f, reader, err := pdf.Open(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil, fmt.Errorf("%w: %s", pipeline.ErrFileNotFound, filePath)
		}
		return "", nil, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer func() { _ = f.Close() }()

	total := reader.NumPage()
	pages := make([]pipeline.PageText, 0, total)
	texts := make([]string, total)

	for i := 1; i <= total; i++ {
		if err := ctx.Err(); err != nil {
			return "", nil, err
		}

		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil {
			e.logger.Warn("skipping undecodable page",
				slog.String("file_path", filePath),
				slog.Int("page", i),
				slog.String("error", err.Error()))
			continue
		}

		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}

		pages = append(pages, pipeline.PageText{PageNumber: i, Text: text})
		texts[i-1] = text
	}

	if len(pages) == 0 {
		return "", nil, fmt.Errorf("%w: %s", pipeline.ErrNoText, filePath)
	}

	return strings.Join(texts, pipeline.PageSeparator), pages, nil
}
