package efl

import "regexp"

// Marketing phrases that only appear on time-of-use products. The list is
// closed: adding a pattern means a human reviewed labels that use it.
var touPhraseRes = []*regexp.Regexp{
	regexp.MustCompile(`(?i)free\s+(?:nights?|weekends?|days?|energy\s+(?:nights?|weekends?|days?))`),
	regexp.MustCompile(`(?i)(?:nights?|weekends?)\s+free`),
	regexp.MustCompile(`(?i)time[\s-]+of[\s-]+use`),
	regexp.MustCompile(`(?i)(?:on|off)[\s-]+peak\s+(?:hours?|rate|price|pricing|period)`),
	regexp.MustCompile(`(?i)between\s+the\s+hours\s+of\s+[0-9]{1,2}\s*(?:am|pm|:00)`),
}

// DetectTOULanguage reports whether the label text carries time-of-use
// marketing language, with the first phrase that matched. A hit on a plan
// whose structured model claims plain fixed pricing means the model and the
// document disagree, which classification treats as suspect rather than
// trusting either side.
func DetectTOULanguage(text string) (string, bool) {
	for _, re := range touPhraseRes {
		if m := re.FindString(text); m != "" {
			return m, true
		}
	}
	return "", false
}
