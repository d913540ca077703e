package efl

import "regexp"

var (
	maskMarkerRe  = regexp.MustCompile(`\*\*`)
	passThroughRe = regexp.MustCompile(`(?is)delivery\s+charges?.{0,240}?passed\s+through`)
)

// DetectMaskedTDSP reports whether the disclosure hides concrete delivery
// amounts behind footnote markers while stating that delivery charges are
// passed through. The flag is observability only: it explains which
// delivery assumption downstream validation chose, it never changes a
// price.
func DetectMaskedTDSP(text string) bool {
	return maskMarkerRe.MatchString(text) && passThroughRe.MatchString(text)
}
