package chunker

// EstimateTokens approximates token count as ceil(len(text)/4) — the
// same coarse estimator used throughout spec.md §4.2, §4.7 and §4.8
// rather than a real tokenizer, since the exact model vocabulary isn't
// available to this package.
func EstimateTokens(s string) int {
	if len(s) == 0 {
		return 0
	}
	return (len(s) + 3) / 4
}
