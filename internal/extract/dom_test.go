package extract

import (
	"reflect"
	"strings"
	"testing"
	"unicode/utf8"
)

const casePageHTML = `<!doctype html>
<html><head><title>00537006 | Case | Salesforce</title></head>
<body>
<div class="records-record-layout-section">
<dl>
<dt>Contact Name</dt><dd>Jane Doe</dd>
<dt>Account Name</dt><dd>Acme Holdings</dd>
<dt>Customer Account:</dt><dd>Acme Corp (123)</dd>
<dt>Subject:</dt><dd>Printer on fire</dd>
</dl>
<p>Actions for 00537006</p>
<p>Actions for 00537011</p>
<p>Actions for 2024</p>
<p><a href="mailto:jane.doe@acme.example?subject=Case">Email Jane</a>
<a href="/lightning/r/Contact/003/view">ops@acme.example</a></p>
</div>
</body></html>`

func TestFromHTMLRecordLayoutSection(t *testing.T) {
	f := FromHTML(casePageHTML)

	if f.Name != "Jane Doe" {
		t.Fatalf("Name = %q, want %q", f.Name, "Jane Doe")
	}
	if f.AccountName != "Acme Holdings" {
		t.Fatalf("AccountName = %q, want %q", f.AccountName, "Acme Holdings")
	}
	if f.CustomerAccount != "Acme Corp" {
		t.Fatalf("CustomerAccount = %q, want %q", f.CustomerAccount, "Acme Corp")
	}
	if want := []string{"00537006", "00537011"}; !reflect.DeepEqual(f.ActionsForIDs, want) {
		t.Fatalf("ActionsForIDs = %v, want %v", f.ActionsForIDs, want)
	}
	if want := []string{"jane.doe@acme.example", "ops@acme.example"}; !reflect.DeepEqual(f.ContactEmails, want) {
		t.Fatalf("ContactEmails = %v, want %v", f.ContactEmails, want)
	}
}

func TestFromHTMLStripsLabelWhenNoSibling(t *testing.T) {
	page := `<html><body>
<div class="records-record-layout-section">
<p><span>Full Name: Jane Doe</span></p>
<p><span>Account Name: Globex Holdings</span></p>
<p><span>Customer Account: Globex (77) Subject: Broken</span></p>
</div>
</body></html>`

	f := FromHTML(page)
	if f.Name != "Jane Doe" {
		t.Fatalf("Name = %q, want %q", f.Name, "Jane Doe")
	}
	if f.AccountName != "Globex Holdings" {
		t.Fatalf("AccountName = %q, want %q", f.AccountName, "Globex Holdings")
	}
	if f.CustomerAccount != "Globex" {
		t.Fatalf("CustomerAccount = %q, want %q", f.CustomerAccount, "Globex")
	}
}

func TestFromHTMLAccountFieldAttribute(t *testing.T) {
	page := `<html><body>
<div class="records-record-layout-section">
<p><span>Name: Jane Doe</span></p>
<div class="field"><div data-target-selection-name="sfdc:RecordField.Contact.AccountId"><a href="/001">Initech</a></div></div>
</div>
</body></html>`

	f := FromHTML(page)
	if f.AccountName != "Initech" {
		t.Fatalf("AccountName = %q, want %q", f.AccountName, "Initech")
	}
}

func TestFromHTMLStopsAfterCompleteSection(t *testing.T) {
	page := `<html><body>
<div class="records-record-layout-section">
<dl>
<dt>Name</dt><dd>First Contact</dd>
<dt>Account Name</dt><dd>First Account</dd>
<dt>Customer Account</dt><dd>First Customer</dd>
</dl>
</div>
<div class="records-record-layout-section">
<dl><dt>Name</dt><dd>Second Contact</dd></dl>
<p>Actions for 00999999</p>
<a href="mailto:second@example.com">mail</a>
</div>
</body></html>`

	f := FromHTML(page)
	if f.Name != "First Contact" {
		t.Fatalf("Name = %q, want %q", f.Name, "First Contact")
	}
	if f.CustomerAccount != "First Customer" {
		t.Fatalf("CustomerAccount = %q, want %q", f.CustomerAccount, "First Customer")
	}
	if len(f.ActionsForIDs) != 0 {
		t.Fatalf("ActionsForIDs = %v, want none from the second section", f.ActionsForIDs)
	}
	if len(f.ContactEmails) != 0 {
		t.Fatalf("ContactEmails = %v, want none from the second section", f.ContactEmails)
	}
}

func TestFromHTMLWholeDocumentFallback(t *testing.T) {
	page := `<html><body>
<div>
<span>Actions for 00424242</span>
</div>
<a href="MAILTO:help@initech.example">Help</a>
</body></html>`

	f := FromHTML(page)
	if want := []string{"00424242"}; !reflect.DeepEqual(f.ActionsForIDs, want) {
		t.Fatalf("ActionsForIDs = %v, want %v", f.ActionsForIDs, want)
	}
	if want := []string{"help@initech.example"}; !reflect.DeepEqual(f.ContactEmails, want) {
		t.Fatalf("ContactEmails = %v, want %v", f.ContactEmails, want)
	}
}

func TestFromHTMLEmptyMarkup(t *testing.T) {
	f := FromHTML("")
	if f.Name != "" || f.AccountName != "" || f.CustomerAccount != "" {
		t.Fatalf("expected empty scalar fields, got %+v", f)
	}
	if f.ActionsForIDs == nil || f.ContactEmails == nil {
		t.Fatalf("expected empty non-nil sets, got %+v", f)
	}
}

func TestActionIDFromElementText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "six_digit_id", in: "Actions for 00537006", want: "00537006"},
		{name: "year_rejected", in: "Actions for 2024", want: ""},
		{name: "first_line_only", in: "Actions for Case\n00537006", want: ""},
		{name: "digits_after_word", in: "Actions for Case 00537006 | Open", want: "00537006"},
		{name: "unspaced_neighbour", in: "Actions for 00537006Actions for 00537011", want: "00537006"},
		{name: "non_numeric_token_rejected", in: "Actions for INC-7781 | Jane", want: ""},
		{name: "name_rejected", in: "Actions for Bob", want: ""},
		{name: "no_label", in: "Show more actions", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := actionIDFromElementText(tt.in); got != tt.want {
				t.Fatalf("actionIDFromElementText(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseDocumentDecodesCharset(t *testing.T) {
	latin1 := "<html><head><title>Caf\xe9</title></head><body><p>Customer Account: Caf\xe9 Bleu</p></body></html>"
	doc, err := ParseDocument(strings.NewReader(latin1), "text/html; charset=iso-8859-1")
	if err != nil {
		t.Fatalf("ParseDocument() error = %v", err)
	}
	if got := doc.Find("title").Text(); got != "Café" {
		t.Fatalf("title = %q, want %q", got, "Café")
	}
}

func TestVisibleTextBreaksBlocks(t *testing.T) {
	doc, err := ParseDocument(strings.NewReader(`<html><head><title>x</title><style>p{}</style></head>
<body><div>Customer Account:</div><div>Acme   Corp</div><script>var a=1;</script><p>Actions for <b>00537006</b></p></body></html>`), "text/html")
	if err != nil {
		t.Fatalf("ParseDocument() error = %v", err)
	}
	want := "Customer Account:\nAcme Corp\nActions for 00537006"
	if got := VisibleText(doc); got != want {
		t.Fatalf("VisibleText() = %q, want %q", got, want)
	}
}

func TestFromHTMLCustomerAccountFirstLineCapped(t *testing.T) {
	long := strings.Repeat("é", 320)
	page := `<html><body><div class="records-record-layout-section"><dl>
<dt>Contact Name</dt><dd>Jane Doe</dd>
<dt>Account Name</dt><dd>Acme Holdings</dd>
<dt>Customer Account</dt><dd>` + long + `
second line</dd>
</dl></div></body></html>`

	f := FromHTML(page)
	if n := utf8.RuneCountInString(f.CustomerAccount); n != 300 {
		t.Fatalf("CustomerAccount has %d runes, want 300", n)
	}
	if f.CustomerAccount != strings.Repeat("é", 300) {
		t.Fatalf("CustomerAccount = %q, want first line cut to 300 runes", f.CustomerAccount)
	}
}

func TestActionIDsAgreeAcrossModes(t *testing.T) {
	page := `<html><body><div class="records-record-layout-section">
<p><span>Actions for Bob</span><span>Actions for 00537006</span><span>Open</span></p>
</div></body></html>`

	f := FromHTML(page)
	if want := []string{"00537006"}; !reflect.DeepEqual(f.ActionsForIDs, want) {
		t.Fatalf("DOM ActionsForIDs = %v, want %v", f.ActionsForIDs, want)
	}
	if got := ActionIDsFromText("Actions for Bob\nActions for 00537006"); !reflect.DeepEqual(got, f.ActionsForIDs) {
		t.Fatalf("text ids %v differ from DOM ids %v", got, f.ActionsForIDs)
	}
}
