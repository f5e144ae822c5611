package chunker

import "strings"

// fixedSize implements spec.md §4.2's default strategy: walk content
// emitting ~targetTokens chunks with overlap, seeking backward for the
// best natural break before cutting, and folding a too-short tail into
// the previous chunk rather than emitting a stub.
func fixedSize(content string, opts FixedSizeOptions) []rawSpan {
	targetChars := opts.TargetTokens * 4
	overlapChars := opts.OverlapTokens * 4
	minChars := opts.MinChunkTokens * 4
	if targetChars <= 0 {
		targetChars = 512
	}
	lookback := targetChars / 10
	if lookback < 1 {
		lookback = 1
	}

	var spans []rawSpan
	pos := 0
	n := len(content)
	for pos < n {
		end := pos + targetChars
		if end >= n {
			end = n
		} else {
			end = bestBreak(content, pos, end, lookback)
		}
		if end <= pos {
			end = pos + targetChars
			if end > n {
				end = n
			}
		}
		spans = append(spans, rawSpan{Content: content[pos:end], StartOffset: pos, EndOffset: end})

		if end >= n {
			break
		}
		next := end - overlapChars
		if next <= pos {
			next = end
		}
		pos = next
	}

	if len(spans) > 1 {
		last := spans[len(spans)-1]
		if EstimateTokens(last.Content) < opts.MinChunkTokens && minChars > 0 {
			prev := spans[len(spans)-2]
			merged := rawSpan{
				Content:     content[prev.StartOffset:last.EndOffset],
				StartOffset: prev.StartOffset,
				EndOffset:   last.EndOffset,
			}
			spans = append(spans[:len(spans)-2], merged)
		}
	}
	return spans
}

// bestBreak searches [end-lookback, end] for the highest-priority
// natural break (double newline > single newline > sentence terminator
// > space), returning the offset right after the break. Falls back to
// end when nothing suitable is found in the window.
func bestBreak(content string, start, end, lookback int) int {
	windowStart := end - lookback
	if windowStart < start {
		windowStart = start
	}
	window := content[windowStart:end]

	if idx := strings.LastIndex(window, "\n\n"); idx >= 0 {
		return windowStart + idx + 2
	}
	if idx := strings.LastIndex(window, "\n"); idx >= 0 {
		return windowStart + idx + 1
	}
	if idx := lastSentenceBreak(window); idx >= 0 {
		return windowStart + idx
	}
	if idx := strings.LastIndex(window, " "); idx >= 0 {
		return windowStart + idx + 1
	}
	return end
}

// lastSentenceBreak finds the rightmost ". "/"! "/"? " (or terminator
// followed by newline) and returns the offset just past the whitespace.
func lastSentenceBreak(window string) int {
	best := -1
	for i := 0; i < len(window)-1; i++ {
		c := window[i]
		if c == '.' || c == '!' || c == '?' {
			next := window[i+1]
			if next == ' ' || next == '\n' {
				if i+2 > best {
					best = i + 2
				}
			}
		}
	}
	return best
}
