package pdfextract

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/lexigraph/lexigraph/internal/pipeline"
)

func TestExtractTextMissingFile(t *testing.T) {
	t.Parallel()

	e := NewExtractor(nil)
	missing := filepath.Join(t.TempDir(), "nope.pdf")

	_, _, err := e.ExtractText(context.Background(), missing)
	assert.ErrorIs(t, err, pipeline.ErrFileNotFound)
}
