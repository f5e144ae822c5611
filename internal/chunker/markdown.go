package chunker

import (
	"regexp"
	"strings"
)

var mdHeadingRE = regexp.MustCompile(`(?m)^(#{1,6})\s+(.*)$`)
var mdListItemRE = regexp.MustCompile(`(?m)^(\s*)([-*+]|\d+\.)\s+`)

type span struct {
	start, end int
}

// markdownAware implements spec.md §4.2's markdown strategy: cuts are
// pushed past fenced code blocks and list-item runs rather than landing
// inside them, and the last heading seen before a cut becomes that
// chunk's Section.
func markdownAware(content string, opts MarkdownOptions) []rawSpan {
	targetChars := opts.TargetTokens * 4
	overlapChars := opts.OverlapTokens * 4
	if targetChars <= 0 {
		targetChars = 512
	}
	maxChars := int(float64(targetChars) * 1.5)

	protected := protectedSpans(content, opts)
	headings := headingPositions(content)

	var spans []rawSpan
	pos := 0
	n := len(content)
	for pos < n {
		end := pos + targetChars
		if end >= n {
			end = n
		} else if sp := containingSpan(protected, end); sp != nil {
			if sp.end-pos <= maxChars {
				end = sp.end
			} else {
				end = sp.start
				if end <= pos {
					end = sp.end
				}
			}
		}
		if end <= pos {
			end = n
		}

		spans = append(spans, rawSpan{
			Content:     content[pos:end],
			StartOffset: pos,
			EndOffset:   end,
			Section:     lastHeadingBefore(headings, end),
		})

		if end >= n {
			break
		}
		next := end - overlapChars
		if next <= pos || containingSpan(protected, next) != nil {
			next = end
		}
		pos = next
	}
	return spans
}

// protectedSpans collects fenced code block ranges and contiguous
// list-item runs (including indented continuation lines) that a cut
// should not split.
func protectedSpans(content string, opts MarkdownOptions) []span {
	var spans []span
	if opts.PreserveCodeBlocks {
		spans = append(spans, fencedCodeSpans(content)...)
	}
	if opts.PreserveLists {
		spans = append(spans, listRunSpans(content)...)
	}
	return spans
}

func fencedCodeSpans(content string) []span {
	var spans []span
	lines := strings.Split(content, "\n")
	offset := 0
	fenceStart := -1
	for _, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			if fenceStart < 0 {
				fenceStart = offset
			} else {
				spans = append(spans, span{start: fenceStart, end: offset + len(line)})
				fenceStart = -1
			}
		}
		offset += len(line) + 1
	}
	return spans
}

func listRunSpans(content string) []span {
	var spans []span
	lines := strings.Split(content, "\n")
	offset := 0
	runStart := -1
	runEnd := -1
	flush := func() {
		if runStart >= 0 {
			spans = append(spans, span{start: runStart, end: runEnd})
		}
		runStart, runEnd = -1, -1
	}
	for _, line := range lines {
		lineEnd := offset + len(line)
		isListLine := mdListItemRE.MatchString(line)
		isContinuation := runStart >= 0 && (strings.HasPrefix(line, "  ") || strings.HasPrefix(line, "\t")) && strings.TrimSpace(line) != ""
		switch {
		case isListLine:
			if runStart < 0 {
				runStart = offset
			}
			runEnd = lineEnd
		case isContinuation:
			runEnd = lineEnd
		case strings.TrimSpace(line) == "" && runStart >= 0:
			// blank line inside a list keeps the run open; a following
			// non-list, non-indented line closes it below.
		default:
			flush()
		}
		offset += len(line) + 1
	}
	flush()
	return spans
}

func containingSpan(spans []span, offset int) *span {
	for i := range spans {
		if offset > spans[i].start && offset < spans[i].end {
			return &spans[i]
		}
	}
	return nil
}

type headingMark struct {
	offset int
	title  string
}

func headingPositions(content string) []headingMark {
	matches := mdHeadingRE.FindAllStringSubmatch(content, -1)
	idx := mdHeadingRE.FindAllStringSubmatchIndex(content, -1)
	marks := make([]headingMark, 0, len(matches))
	for i, m := range matches {
		marks = append(marks, headingMark{offset: idx[i][0], title: strings.TrimSpace(m[2])})
	}
	return marks
}

// lastHeadingBefore returns the most recent heading's text seen at or
// before offset — the "current section" a chunk ending at offset falls
// under, matching spec.md §4.2's "headings inside a chunk are promoted
// to the chunk's section attribute".
func lastHeadingBefore(headings []headingMark, offset int) string {
	title := ""
	for _, h := range headings {
		if h.offset > offset {
			break
		}
		title = h.title
	}
	return title
}
