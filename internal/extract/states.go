package extract

import (
	"cmp"
	"regexp"
	"slices"
	"strings"
)

var usStates = []string{
	"Alabama", "Alaska", "Arizona", "Arkansas", "California", "Colorado", "Connecticut",
	"Delaware", "District of Columbia", "Florida", "Georgia", "Hawaii", "Idaho", "Illinois",
	"Indiana", "Iowa", "Kansas", "Kentucky", "Louisiana", "Maine", "Maryland", "Massachusetts",
	"Michigan", "Minnesota", "Mississippi", "Missouri", "Montana", "Nebraska", "Nevada",
	"New Hampshire", "New Jersey", "New Mexico", "New York", "North Carolina", "North Dakota",
	"Ohio", "Oklahoma", "Oregon", "Pennsylvania", "Rhode Island", "South Carolina",
	"South Dakota", "Tennessee", "Texas", "Utah", "Vermont", "Virginia", "Washington",
	"West Virginia", "Wisconsin", "Wyoming",
}

var (
	stateByLower = func() map[string]string {
		m := make(map[string]string, len(usStates))
		for _, s := range usStates {
			m[strings.ToLower(s)] = s
		}
		return m
	}()

	statePattern = func() *regexp.Regexp {
		names := slices.Clone(usStates)
		slices.SortFunc(names, func(a, b string) int { return cmp.Compare(len(b), len(a)) })
		for i, n := range names {
			names[i] = regexp.QuoteMeta(n)
		}
		return regexp.MustCompile(`(?i)\b(` + strings.Join(names, "|") + `)\b`)
	}()
)

// FindState returns the first US state named in text, in canonical case.
func FindState(text string) (string, bool) {
	m := statePattern.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	return stateByLower[strings.ToLower(m[1])], true
}

func isState(word string) bool {
	_, ok := stateByLower[strings.ToLower(word)]
	return ok
}
