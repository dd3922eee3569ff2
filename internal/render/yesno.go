package render

import "strings"

var yesNoWords = map[string]bool{
	"do": true, "does": true, "is": true, "are": true, "have": true, "has": true,
}

// IsYesNo reports whether a query word asks for a yes/no answer
func IsYesNo(queryWord string) bool {
	return yesNoWords[strings.ToLower(strings.TrimSpace(queryWord))]
}

// YesNo prefixes text with "Yes, " or "No, " when the query word asks a
// yes/no question. Otherwise text is returned as is.
func YesNo(queryWord string, positive bool, text string) string {
	if !IsYesNo(queryWord) {
		return text
	}
	if positive {
		return "Yes, " + text
	}
	return "No, " + text
}
