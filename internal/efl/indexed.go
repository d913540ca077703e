package efl

import "regexp"

// Phrases that mark indexed or market-priced products. Deterministic
// monthly bills cannot be computed for these regardless of how cleanly the
// rest of the label parses.
var indexedPhraseRes = []*regexp.Regexp{
	regexp.MustCompile(`(?i)indexed\s+(?:product|plan|price|rate)`),
	regexp.MustCompile(`(?i)variable[\s-]+price\s+(?:product|plan)?`),
	regexp.MustCompile(`(?i)price\s+(?:is\s+)?(?:determined|set)\s+by\s+.{0,60}?(?:formula|index|market)`),
	regexp.MustCompile(`(?i)wholesale\s+(?:market\s+)?(?:price|rate)`),
}

// DetectIndexedPricing reports whether the label describes market-indexed
// pricing, with the first phrase that matched.
func DetectIndexedPricing(text string) (string, bool) {
	for _, re := range indexedPhraseRes {
		if m := re.FindString(text); m != "" {
			return m, true
		}
	}
	return "", false
}
