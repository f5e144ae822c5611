package chunker

import (
	"strings"

	"github.com/semaj90/campaign-rag/internal/processor"
)

// semantic implements spec.md §4.2's section-aware strategy: sections at
// or below maxHeadingLevel are emitted whole when they fit, oversize
// sections are split via fixed-size, and runs of undersize sections are
// accumulated until they clear minTokens.
func semantic(doc *processor.Result, opts SemanticOptions, fixedOpts FixedSizeOptions) []rawSpan {
	sections := filterSections(doc.Sections, opts.MaxHeadingLevel)
	if len(sections) == 0 {
		return fixedSize(doc.Content, fixedOpts)
	}

	var spans []rawSpan
	var pending strings.Builder
	pendingStart := -1
	pendingTitle := ""

	flush := func(endOffset int) {
		if pending.Len() == 0 {
			return
		}
		spans = append(spans, rawSpan{
			Content:     pending.String(),
			StartOffset: pendingStart,
			EndOffset:   endOffset,
			Section:     pendingTitle,
		})
		pending.Reset()
		pendingStart = -1
		pendingTitle = ""
	}

	for i, sec := range sections {
		end := len(doc.Content)
		if i+1 < len(sections) {
			end = sections[i+1].StartOffset
		}
		body := doc.Content[sec.StartOffset:end]
		tokens := EstimateTokens(body)

		switch {
		case tokens <= opts.MaxTokens:
			if pending.Len() > 0 && EstimateTokens(pending.String())+tokens <= opts.MaxTokens {
				pending.WriteString(body)
				if pendingTitle == "" {
					pendingTitle = sec.Title
				}
				if EstimateTokens(pending.String()) >= opts.MinTokens {
					flush(end)
				}
				continue
			}
			flush(sec.StartOffset)
			if tokens < opts.MinTokens {
				pending.WriteString(body)
				pendingStart = sec.StartOffset
				pendingTitle = sec.Title
				continue
			}
			spans = append(spans, rawSpan{Content: body, StartOffset: sec.StartOffset, EndOffset: end, Section: sec.Title})
		default:
			flush(sec.StartOffset)
			for _, sub := range fixedSize(body, fixedOpts) {
				spans = append(spans, rawSpan{
					Content:     sub.Content,
					StartOffset: sec.StartOffset + sub.StartOffset,
					EndOffset:   sec.StartOffset + sub.EndOffset,
					Section:     sec.Title,
				})
			}
		}
	}
	flush(len(doc.Content))
	return spans
}

func filterSections(sections []processor.Section, maxLevel int) []processor.Section {
	if maxLevel <= 0 {
		maxLevel = 6
	}
	out := make([]processor.Section, 0, len(sections))
	for _, s := range sections {
		if s.Level <= maxLevel {
			out = append(out, s)
		}
	}
	return out
}
