package processor

import (
	"context"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/semaj90/campaign-rag/internal/apperr"
)

var atxHeadingRE = regexp.MustCompile(`^(#{1,6})\s+(.*)$`)

// TextProcessor decodes plain text and, for markdown input, splits it
// into ATX-heading sections (spec.md §4.1). Plain text input skips
// section detection and returns a single synthetic section.
type TextProcessor struct {
	Markdown bool
}

func (p *TextProcessor) Process(ctx context.Context, campaignID, documentID string, raw []byte) (*Result, error) {
	if len(raw) == 0 {
		return nil, apperr.New(apperr.CodeEmptyFile, "document is empty")
	}
	if err := ctx.Err(); err != nil {
		return nil, apperr.Wrap(apperr.CodeCancelled, "extraction cancelled before start", err)
	}
	if !utf8.Valid(raw) {
		return nil, apperr.New(apperr.CodeParseError, "document is not valid utf-8")
	}

	content := normalizeNewlines(string(raw))
	if strings.TrimSpace(content) == "" {
		return nil, apperr.New(apperr.CodeEmptyContent, "document has no text content")
	}

	if !p.Markdown {
		return &Result{
			Content:          content,
			Sections:         []Section{{Title: "", Level: 0, StartOffset: 0}},
			HasExtractedText: true,
		}, nil
	}

	return &Result{
		Content:          content,
		Sections:         markdownSections(content),
		HasExtractedText: true,
	}, nil
}

func normalizeNewlines(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	return s
}

// markdownSections walks lines looking for ATX headings, emitting a
// synthetic level-0 section for any content before the first heading
// (spec.md §4.1's "including a synthetic level-0 section for pre-heading
// content").
func markdownSections(content string) []Section {
	sections := []Section{{Title: "", Level: 0, StartOffset: 0}}
	offset := 0
	for _, line := range strings.Split(content, "\n") {
		if m := atxHeadingRE.FindStringSubmatch(line); m != nil {
			sections = append(sections, Section{
				Title:       strings.TrimSpace(m[2]),
				Level:       len(m[1]),
				StartOffset: offset,
			})
		}
		offset += len(line) + 1
	}
	if len(sections) > 1 && sections[0].StartOffset == sections[1].StartOffset {
		sections = sections[1:]
	}
	return sections
}
