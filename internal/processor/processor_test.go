package processor

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/semaj90/campaign-rag/internal/apperr"
)

func TestForMimeTypeResolvesKnownTypes(t *testing.T) {
	cases := map[string]interface{}{
		"application/pdf":   &PDFProcessor{},
		"text/plain":        &TextProcessor{Markdown: false},
		"text/markdown":     &TextProcessor{Markdown: true},
		"text/x-markdown":   &TextProcessor{Markdown: true},
	}
	for mimeType, want := range cases {
		got, err := ForMimeType(mimeType)
		require.NoError(t, err, mimeType)
		assert.IsType(t, want, got, mimeType)
	}
}

func TestForMimeTypeRejectsUnsupported(t *testing.T) {
	_, err := ForMimeType("application/zip")
	require.Error(t, err)
	assert.Equal(t, apperr.CodeUnsupportedMimeType, apperr.CodeOf(err))
}

func TestTextProcessorRejectsEmptyFile(t *testing.T) {
	p := &TextProcessor{}
	_, err := p.Process(context.Background(), "campaign-1", "doc-1", nil)
	require.Error(t, err)
	assert.Equal(t, apperr.CodeEmptyFile, apperr.CodeOf(err))
}

func TestTextProcessorRejectsInvalidUTF8(t *testing.T) {
	p := &TextProcessor{}
	_, err := p.Process(context.Background(), "campaign-1", "doc-1", []byte{0xff, 0xfe, 0xfd})
	require.Error(t, err)
	assert.Equal(t, apperr.CodeParseError, apperr.CodeOf(err))
}

func TestTextProcessorRejectsWhitespaceOnlyContent(t *testing.T) {
	p := &TextProcessor{}
	_, err := p.Process(context.Background(), "campaign-1", "doc-1", []byte("   \n\n  \t "))
	require.Error(t, err)
	assert.Equal(t, apperr.CodeEmptyContent, apperr.CodeOf(err))
}

func TestTextProcessorPlainTextReturnsSingleSyntheticSection(t *testing.T) {
	p := &TextProcessor{Markdown: false}
	result, err := p.Process(context.Background(), "campaign-1", "doc-1", []byte("just plain body text"))
	require.NoError(t, err)
	require.Len(t, result.Sections, 1)
	assert.Equal(t, 0, result.Sections[0].Level)
	assert.True(t, result.HasExtractedText)
}

func TestTextProcessorMarkdownDetectsATXHeadings(t *testing.T) {
	p := &TextProcessor{Markdown: true}
	content := "# Title\n\nIntro text.\n\n## Sub Section\n\nMore text.\n"
	result, err := p.Process(context.Background(), "campaign-1", "doc-1", []byte(content))
	require.NoError(t, err)
	require.Len(t, result.Sections, 2)
	assert.Equal(t, "Title", result.Sections[0].Title)
	assert.Equal(t, 1, result.Sections[0].Level)
	assert.Equal(t, "Sub Section", result.Sections[1].Title)
	assert.Equal(t, 2, result.Sections[1].Level)
}

func TestTextProcessorMarkdownWithPreHeadingContentKeepsSyntheticSection(t *testing.T) {
	p := &TextProcessor{Markdown: true}
	content := "Some preamble before any heading.\n\n# First Heading\n\nBody.\n"
	result, err := p.Process(context.Background(), "campaign-1", "doc-1", []byte(content))
	require.NoError(t, err)
	require.Len(t, result.Sections, 2)
	assert.Equal(t, "", result.Sections[0].Title)
	assert.Equal(t, 0, result.Sections[0].StartOffset)
}

func TestTextProcessorNormalizesCRLF(t *testing.T) {
	p := &TextProcessor{}
	result, err := p.Process(context.Background(), "c", "d", []byte("line one\r\nline two\r\n"))
	require.NoError(t, err)
	assert.False(t, strings.Contains(result.Content, "\r"))
}

func TestPDFProcessorRejectsEmptyFile(t *testing.T) {
	p := &PDFProcessor{}
	_, err := p.Process(context.Background(), "c", "d", nil)
	require.Error(t, err)
	assert.Equal(t, apperr.CodeEmptyFile, apperr.CodeOf(err))
}

func TestPDFProcessorRejectsGarbageBytes(t *testing.T) {
	p := &PDFProcessor{}
	_, err := p.Process(context.Background(), "c", "d", []byte("not a pdf at all"))
	require.Error(t, err)
	assert.Equal(t, apperr.CodeInvalidPDF, apperr.CodeOf(err))
}
