package recorder

import "strings"

// noisePhrases are transcripts that speech models commonly hallucinate on
// silence or breath noise and that never represent real dictation.
var noisePhrases = map[string]struct{}{
	"thanks for watching":    {},
	"thank you for watching": {},
	"subscribe":              {},
	"you":                    {},
	"thank you":              {},
	"merci":                  {},
	"bye":                    {},
	"ok":                     {},
	"okay":                   {},
	"um":                     {},
	"uh":                     {},
	"hmm":                    {},
	"huh":                    {},
	"ah":                     {},
	"oh":                     {},
	"eh":                     {},
}

// filterNoise drops transcripts that are almost certainly hallucinated
// noise rather than dictation. Returns the empty string when filtered.
func filterNoise(text string) string {
	text = strings.TrimSpace(text)
	if len(text) < 3 {
		return ""
	}

	lower := strings.ToLower(strings.Trim(text, ".!?, "))
	if _, ok := noisePhrases[lower]; ok {
		return ""
	}

	// A lone short word is almost always noise.
	if len(strings.Fields(text)) == 1 && len(text) < 10 {
		return ""
	}
	return text
}
