package extract

import (
	"regexp"
	"strconv"
	"strings"
)

// numberToken matches an amount as it appears inside free text: "320k",
// "$4.5K", "9,500". Commas only count as thousands separators, so "3100,2"
// stops at 3100. ParseAmount does the actual normalisation.
const numberToken = `\$?(?:\d{1,3}(?:,\d{3})+|\d+)(?:\.\d+)?[kK]?`

var amountPattern = regexp.MustCompile(`^(\d+(?:\.\d+)?)([kK])?$`)

// ParseAmount normalises a shorthand amount. Commas and a leading dollar sign
// are stripped and a trailing "k" multiplies by 1000. Tokens that do not look
// like an amount return false.
func ParseAmount(token string) (float64, bool) {
	t := strings.ReplaceAll(strings.TrimSpace(token), ",", "")
	t = strings.TrimPrefix(t, "$")

	m := amountPattern.FindStringSubmatch(t)
	if m == nil {
		return 0, false
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}
	if m[2] != "" {
		v *= 1000
	}
	return v, true
}
