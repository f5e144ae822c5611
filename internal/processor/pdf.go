package processor

import (
	"bytes"
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/ledongthuc/pdf"

	"github.com/semaj90/campaign-rag/internal/apperr"
)

// scannedPageThreshold is the average-chars-per-page below which a PDF is
// treated as scanned (image-only, no usable text layer) per spec.md §4.1.
const scannedPageThreshold = 50

// PageDelimiterTemplate joins page content in the concatenated Content
// string. "{n}" is replaced with the 1-based page number.
const PageDelimiterTemplate = "\n\n--- page {n} ---\n\n"

// PDFProcessor extracts per-page plain text via ledongthuc/pdf, grounded
// in NISHADDEVENDRA-chatbot-backend's extractWithGoPDF fallback path.
type PDFProcessor struct{}

func (p *PDFProcessor) Process(ctx context.Context, campaignID, documentID string, raw []byte) (*Result, error) {
	if len(raw) == 0 {
		return nil, apperr.New(apperr.CodeEmptyFile, "pdf is empty")
	}
	if err := ctx.Err(); err != nil {
		return nil, apperr.Wrap(apperr.CodeCancelled, "extraction cancelled before start", err)
	}

	reader, err := pdf.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "encrypt") {
			return nil, apperr.Wrap(apperr.CodeEncryptedPDF, "pdf is encrypted", err)
		}
		return nil, apperr.Wrap(apperr.CodeInvalidPDF, "failed to open pdf", err)
	}

	numPages := reader.NumPage()
	if numPages == 0 {
		return nil, apperr.New(apperr.CodeInvalidPDF, "pdf has no pages")
	}

	var content strings.Builder
	offsets := make([]PageOffset, 0, numPages)
	totalChars := 0

	for i := 1; i <= numPages; i++ {
		if err := ctx.Err(); err != nil {
			return nil, apperr.Wrap(apperr.CodeCancelled, "extraction cancelled mid-document", err)
		}
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		fonts := make(map[string]*pdf.Font)
		text, err := page.GetPlainText(fonts)
		if err != nil {
			continue
		}

		delimiter := strings.ReplaceAll(PageDelimiterTemplate, "{n}", strconv.Itoa(i))
		start := content.Len() + len(delimiter)
		content.WriteString(delimiter)
		content.WriteString(text)
		end := content.Len()

		offsets = append(offsets, PageOffset{PageNumber: i, StartOffset: start, EndOffset: end})
		trimmed := strings.TrimSpace(text)
		totalChars += len(trimmed)
	}

	if len(offsets) == 0 {
		return nil, apperr.New(apperr.CodeParseError, "no extractable pages in pdf")
	}

	avgCharsPerPage := totalChars / numPages

	return &Result{
		Content:          content.String(),
		Pages:            offsets,
		Metadata:         extractInfo(reader),
		HasExtractedText: avgCharsPerPage >= scannedPageThreshold,
	}, nil
}

// extractInfo reads the PDF's Info dictionary. ledongthuc/pdf exposes raw
// dictionary values rather than typed accessors, so fields are read
// defensively and left zero when absent or malformed — the info dict is
// best-effort metadata, never required for indexing to proceed.
func extractInfo(reader *pdf.Reader) Metadata {
	var meta Metadata
	defer func() { recover() }()

	trailer := reader.Trailer()
	info := trailer.Key("Info")
	if info.IsNull() {
		return meta
	}
	meta.Title = info.Key("Title").Text()
	meta.Author = info.Key("Author").Text()
	meta.Created = parsePDFDate(info.Key("CreationDate").Text())
	meta.Updated = parsePDFDate(info.Key("ModDate").Text())
	return meta
}

// parsePDFDate converts the PDF date format "D:YYYYMMDDHHmmSS..." into
// RFC3339. Malformed or absent dates return "" — callers must treat an
// empty string as unknown, not as the zero time.
func parsePDFDate(raw string) string {
	raw = strings.TrimPrefix(raw, "D:")
	if len(raw) < 14 {
		return ""
	}
	t, err := time.Parse("20060102150405", raw[:14])
	if err != nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
