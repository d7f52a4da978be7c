package extract

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

const maxCustomerAccountRunes = 300

var trailingParenthetical = regexp.MustCompile(`\s*\(.*\)\s*$`)

func stripParenthetical(s string) string {
	return strings.TrimSpace(trailingParenthetical.ReplaceAllString(s, ""))
}

// replaceFirst removes only the leftmost match of re.
func replaceFirst(re *regexp.Regexp, s string) string {
	loc := re.FindStringIndex(s)
	if loc == nil {
		return s
	}
	return s[:loc[0]] + s[loc[1]:]
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return strings.TrimSuffix(line, "\r")
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}

// finalCustomerAccount applies the last cleanup pass to a DOM-mode value.
func finalCustomerAccount(s string) string {
	s = trailingParenthetical.ReplaceAllString(s, "")
	return truncateRunes(strings.TrimSpace(firstLine(s)), maxCustomerAccountRunes)
}
