package dispatcher

import (
	"strconv"
	"strings"
)

var numberWords = map[string]int{
	"uno": 1, "una": 1, "un": 1,
	"dos": 2, "tres": 3, "cuatro": 4, "cinco": 5,
	"seis": 6, "siete": 7, "ocho": 8, "nueve": 9,
}

// parseChoiceIndex reads a spoken selection during disambiguation: a bare
// number ("dos", "el 2") picks that option. Returns a zero-based index.
func parseChoiceIndex(text string, optionCount int) (int, bool) {
	for _, tok := range strings.Fields(strings.ToLower(strings.TrimSpace(text))) {
		n, ok := numberWords[tok]
		if !ok {
			parsed, err := strconv.Atoi(tok)
			if err != nil {
				continue
			}
			n = parsed
		}
		if n >= 1 && n <= optionCount {
			return n - 1, true
		}
	}
	return 0, false
}
