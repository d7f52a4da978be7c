package extract

import (
	"bytes"
	"io"
	"log/slog"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html/charset"
)

const (
	sectionSelector      = ".records-record-layout-section"
	candidateSelector    = "span,div,label,dt,dd"
	accountFieldSelector = `[data-target-selection-name="sfdc:RecordField.Contact.AccountId"]`
	maxCandidateRunes    = 200
)

var (
	emailPattern    = regexp.MustCompile(`(?i)[A-Z0-9._%+-]+@[A-Z0-9.-]+\.[A-Z]{2,}`)
	actionsForEntry = regexp.MustCompile(`(?i)Actions for\s+(.+)`)
	actionDigits    = regexp.MustCompile(`[0-9]{6,}`)

	nameLabel            = regexp.MustCompile(`(?i)(^|\b)(Name|Full Name|Contact Name)\b:?`)
	accountLabel         = regexp.MustCompile(`(?i)(^|\b)(Account Name|Account)\b:?`)
	customerAccountLabel = regexp.MustCompile(`(?i)(^|\b)Customer Account\b:?`)
	accountNamePrefix    = regexp.MustCompile(`(?i)Account Name\s*:?`)
	fieldSpillover       = regexp.MustCompile(`(?i)Subject:|Priority:|Actions for|Show Actions|Show more actions|Case\b`)
)

// ParseDocument decodes markup to UTF-8 using the content type and any meta
// charset hints, then parses it.
func ParseDocument(r io.Reader, contentType string) (*goquery.Document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	enc, name, _ := charset.DetermineEncoding(data, contentType)
	decoded, err := enc.NewDecoder().Bytes(data)
	if err != nil {
		if !utf8.Valid(data) {
			return nil, err
		}
		slog.Debug("extract charset decode failed, using raw bytes", "charset", name, "error", err)
		decoded = data
	}
	return goquery.NewDocumentFromReader(bytes.NewReader(decoded))
}

// FromHTML runs DOM mode over serialized markup. Unparseable markup yields
// empty fields.
func FromHTML(markup string) Fields {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		slog.Debug("extract parse markup failed", "error", err)
		return Fields{ActionsForIDs: []string{}, ContactEmails: []string{}}
	}
	return FromDocument(doc)
}

// FromDocument runs DOM mode over a parsed page. Record layout sections are
// scanned in order until name, account name and customer account are all
// known; without sections the whole document is scanned.
func FromDocument(doc *goquery.Document) Fields {
	s := &domScan{emails: set{}, actions: set{}}

	sections := doc.Find(sectionSelector)
	if sections.Length() > 0 {
		sections.EachWithBreak(func(_ int, sec *goquery.Selection) bool {
			s.scanContainer(sec)
			return !s.complete()
		})
	} else {
		s.scanContainer(doc.Selection)
	}

	return Fields{
		Name:            s.name,
		AccountName:     s.accountName,
		CustomerAccount: finalCustomerAccount(s.customerAccount),
		ActionsForIDs:   s.actions.sorted(),
		ContactEmails:   s.emails.sorted(),
	}
}

type domScan struct {
	name            string
	accountName     string
	customerAccount string
	emails          set
	actions         set
}

func (s *domScan) complete() bool {
	return s.name != "" && s.accountName != "" && s.customerAccount != ""
}

func (s *domScan) scanContainer(c *goquery.Selection) {
	c.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		s.collectEmails(a)
	})

	c.Find("*").Each(func(_ int, n *goquery.Selection) {
		if id := actionIDFromElementText(textOf(n)); id != "" {
			s.actions.add(id)
		}
	})

	c.Find(candidateSelector).Each(func(_ int, el *goquery.Selection) {
		t := textOf(el)
		if t == "" || utf8.RuneCountInString(t) >= maxCandidateRunes {
			return
		}
		s.claimLabel(el, t)
	})
}

func (s *domScan) collectEmails(a *goquery.Selection) {
	href, _ := a.Attr("href")
	if len(href) >= len("mailto:") && strings.EqualFold(href[:len("mailto:")], "mailto:") {
		addr, _, _ := strings.Cut(href[len("mailto:"):], "?")
		s.emails.add(strings.TrimSpace(addr))
	}
	for _, m := range emailPattern.FindAllString(a.Text(), -1) {
		s.emails.add(m)
	}
}

// actionIDFromElementText resolves the identifier named by an "Actions for"
// label: the first run of six or more digits on the label's first line.
// Labels without such a run name nothing.
func actionIDFromElementText(t string) string {
	if t == "" {
		return ""
	}
	m := actionsForEntry.FindStringSubmatch(t)
	if m == nil {
		return ""
	}
	return actionDigits.FindString(firstLine(m[1]))
}

// claimLabel tests a candidate against the Name, Account and Customer Account
// labels in that order. A field is never overwritten once set.
func (s *domScan) claimLabel(el *goquery.Selection, t string) {
	if s.name == "" && nameLabel.MatchString(t) {
		if v := textOf(el.Next()); v != "" {
			s.name = v
			return
		}
		s.name = strings.TrimSpace(replaceFirst(nameLabel, t))
		if s.name != "" {
			return
		}
	}

	if s.accountName == "" && accountLabel.MatchString(t) {
		if v := textOf(el.Next()); v != "" {
			s.accountName = v
			return
		}
		s.accountName = strings.TrimSpace(replaceFirst(accountLabel, t))
		if s.accountName != "" {
			return
		}
	}

	if s.customerAccount == "" && customerAccountLabel.MatchString(t) {
		if v := textOf(el.Next()); v != "" {
			s.customerAccount = stripParenthetical(v)
			return
		}
		v := stripParenthetical(strings.TrimSpace(replaceFirst(customerAccountLabel, t)))
		if loc := fieldSpillover.FindStringIndex(v); loc != nil {
			v = v[:loc[0]]
		}
		s.customerAccount = strings.TrimSpace(v)
		if s.customerAccount != "" {
			return
		}
	}

	if s.accountName == "" {
		special := el.Find(accountFieldSelector).First()
		if special.Length() == 0 {
			return
		}
		txt := textOf(special.Find("a").First())
		if txt == "" {
			txt = textOf(special)
		}
		if txt != "" {
			s.accountName = strings.TrimSpace(replaceFirst(accountNamePrefix, txt))
		}
	}
}

func textOf(sel *goquery.Selection) string {
	if sel == nil || sel.Length() == 0 {
		return ""
	}
	return strings.TrimSpace(sel.First().Text())
}
