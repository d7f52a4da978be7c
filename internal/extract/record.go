// Package extract turns a captured case page into structured case fields.
//
// Two heuristics live here. DOM mode walks the captured markup and reads
// label/value pairs, mail links and "Actions for" entries out of the record
// layout sections. Text mode re-derives the customer account, action ids and
// case number from the flattened page text. Both are pure functions of their
// input and never return field-level errors.
package extract

import "sort"

// Page is the raw capture produced by the in-page script.
type Page struct {
	Title     string `json:"title"`
	URL       string `json:"url"`
	Text      string `json:"text"`
	HTML      string `json:"html"`
	Timestamp int64  `json:"ts"`
}

// Fields holds the DOM-mode heuristic output for one page.
type Fields struct {
	Name            string
	AccountName     string
	CustomerAccount string
	ActionsForIDs   []string
	ContactEmails   []string
}

// Record is the single cached extraction result.
type Record struct {
	Title           string   `json:"title"`
	URL             string   `json:"url"`
	Text            string   `json:"text"`
	HTML            string   `json:"html"`
	Timestamp       int64    `json:"timestamp"`
	Name            string   `json:"name"`
	AccountName     string   `json:"accountName"`
	CustomerAccount string   `json:"customerAccount"`
	ActionsForIDs   []string `json:"actionsForIds"`
	ContactEmails   []string `json:"contactEmails"`
}

// Run applies DOM mode to the captured markup and assembles the record.
func Run(p Page) Record {
	f := FromHTML(p.HTML)
	return Record{
		Title:           p.Title,
		URL:             p.URL,
		Text:            p.Text,
		HTML:            p.HTML,
		Timestamp:       p.Timestamp,
		Name:            f.Name,
		AccountName:     f.AccountName,
		CustomerAccount: f.CustomerAccount,
		ActionsForIDs:   f.ActionsForIDs,
		ContactEmails:   f.ContactEmails,
	}
}

// Normalize fills nil sets so a record always serializes them as arrays.
func (r Record) Normalize() Record {
	if r.ActionsForIDs == nil {
		r.ActionsForIDs = []string{}
	}
	if r.ContactEmails == nil {
		r.ContactEmails = []string{}
	}
	return r
}

type set map[string]struct{}

func (s set) add(v string) {
	if v == "" {
		return
	}
	s[v] = struct{}{}
}

// sorted keeps serialized sets stable across repeated extractions.
func (s set) sorted() []string {
	out := make([]string, 0, len(s))
	for v := range s {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
