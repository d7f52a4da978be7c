package extract

import "strings"

// Contacts is the composed block shown next to a cached record.
type Contacts struct {
	CaseNumber      string   `json:"caseNumber"`
	CustomerAccount string   `json:"customerAccount"`
	ActionsForIDs   []string `json:"actionsForIds"`
}

// DeriveContacts re-derives the contacts block from a stored record. Text
// mode results win; when text mode finds nothing the stored DOM-mode values
// pass through unchanged.
func DeriveContacts(r Record) Contacts {
	c := Contacts{CaseNumber: CaseNumberFromTitle(r.Title)}

	c.CustomerAccount = CustomerAccountFromText(r.Text)
	if c.CustomerAccount == "" {
		c.CustomerAccount = r.CustomerAccount
	}

	c.ActionsForIDs = ActionIDsFromText(r.Text)
	if len(c.ActionsForIDs) == 0 {
		c.ActionsForIDs = append([]string{}, r.ActionsForIDs...)
	}
	return c
}

// Empty reports whether there is nothing to show.
func (c Contacts) Empty() bool {
	return c.CaseNumber == "" && c.CustomerAccount == "" && len(c.ActionsForIDs) == 0
}

// Lines renders the block as display lines.
func (c Contacts) Lines() []string {
	var out []string
	if c.CaseNumber != "" {
		out = append(out, "Case: "+c.CaseNumber)
	}
	if c.CustomerAccount != "" {
		out = append(out, "Customer Account: "+c.CustomerAccount)
	}
	if len(c.ActionsForIDs) > 0 {
		out = append(out, "Actions for: "+strings.Join(c.ActionsForIDs, ", "))
	}
	if len(out) == 0 {
		out = append(out, "No contact details")
	}
	return out
}
