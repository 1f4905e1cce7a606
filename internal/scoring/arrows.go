package scoring

import (
	"strconv"
	"strings"
	"unicode"
)

// ParseArrowText tokenizes pasted or imported classification scores. Tokens
// are separated by commas or whitespace; "miss" in any case is 0, anything
// non-numeric or outside 0..10 is 0. The result has exactly count entries.
func ParseArrowText(text string, count int) []int {
	if count < 0 {
		count = 0
	}
	tokens := strings.FieldsFunc(text, func(r rune) bool {
		return r == ',' || unicode.IsSpace(r)
	})
	out := make([]int, count)
	for i, tok := range tokens {
		if i >= count {
			break
		}
		out[i] = arrowToken(tok)
	}
	return out
}

func arrowToken(tok string) int {
	if strings.EqualFold(tok, "miss") {
		return 0
	}
	n, err := strconv.Atoi(tok)
	if err != nil {
		return 0
	}
	return CoerceArrow(n)
}
