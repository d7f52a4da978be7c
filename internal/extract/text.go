package extract

import (
	"regexp"
	"strings"
)

var (
	customerAccountInline   = regexp.MustCompile(`(?i)Customer Account\s*:\s*`)
	accountNameInline       = regexp.MustCompile(`(?i)Account Name\s*:\s*`)
	customerAccountNextLine = regexp.MustCompile(`(?i)Customer Account\s*\r?\n\s*([^-\r\n][^\r\n]{1,500})`)

	// Go's regexp has no lookahead, so value ends are located by searching
	// the remainder for a line break followed by the next field label.
	customerAccountEnd = regexp.MustCompile(`(?i)\r?\n(?:Subject:|Priority:|Actions for|Show Actions|Show more actions|Case\b)`)
	accountNameEnd     = regexp.MustCompile(`(?i)\r?\n(?:Subject:|Priority:|Actions for|Show Actions|Case\b)`)

	actionsForDigits = regexp.MustCompile(`(?i)Actions for\s+([0-9]{6,})`)
	caseNumberDigits = regexp.MustCompile(`(?i)Case Number\s*[:\n]\s*([0-9]{6,})`)
	actionLine       = regexp.MustCompile(`(?i)Actions for|Show Actions|Open\s+[0-9]{6,}`)
	digitRun         = regexp.MustCompile(`[0-9]{6,}`)
	titleCaseNumber  = regexp.MustCompile(`\b([0-9]{6,})\b`)
	lineBreak        = regexp.MustCompile(`\r?\n`)
)

// CustomerAccountFromText finds the customer account in flattened page text.
// Patterns are tried in order: an inline "Customer Account:" value, an inline
// "Account Name:" value, then a "Customer Account" label followed by the value
// on the next line. The first pattern that captures anything decides the
// result, even when cleanup leaves it empty.
func CustomerAccountFromText(t string) string {
	if t == "" {
		return ""
	}
	if raw := labeledValue(t, customerAccountInline, customerAccountEnd); raw != "" {
		return cleanTextValue(raw)
	}
	if raw := labeledValue(t, accountNameInline, accountNameEnd); raw != "" {
		return cleanTextValue(raw)
	}
	if m := customerAccountNextLine.FindStringSubmatch(t); m != nil && m[1] != "" {
		return stripParenthetical(strings.TrimSpace(m[1]))
	}
	return ""
}

// labeledValue returns the text after the first label match, stopping at the
// first terminator or end of text.
func labeledValue(t string, label, end *regexp.Regexp) string {
	loc := label.FindStringIndex(t)
	if loc == nil {
		return ""
	}
	rest := t[loc[1]:]
	if stop := end.FindStringIndex(rest); stop != nil {
		rest = rest[:stop[0]]
	}
	return rest
}

func cleanTextValue(raw string) string {
	v := stripParenthetical(strings.TrimSpace(raw))
	return strings.TrimSpace(lineBreak.ReplaceAllString(v, " "))
}

// ActionIDsFromText unions three sources of 6+ digit identifiers: "Actions
// for <id>" matches, "Case Number <id>" matches, and the first digit run on
// any line that mentions actions or an "Open <id>" link.
func ActionIDsFromText(t string) []string {
	ids := set{}
	if t == "" {
		return ids.sorted()
	}
	for _, m := range actionsForDigits.FindAllStringSubmatch(t, -1) {
		ids.add(m[1])
	}
	for _, m := range caseNumberDigits.FindAllStringSubmatch(t, -1) {
		ids.add(m[1])
	}
	for _, line := range strings.Split(t, "\n") {
		if !actionLine.MatchString(line) {
			continue
		}
		ids.add(digitRun.FindString(line))
	}
	return ids.sorted()
}

// CaseNumberFromTitle returns the first 6+ digit word in a page title.
func CaseNumberFromTitle(title string) string {
	m := titleCaseNumber.FindStringSubmatch(title)
	if m == nil {
		return ""
	}
	return m[1]
}
