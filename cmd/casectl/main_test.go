package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dgnsrekt/casewatch/internal/extract"
)

const casePage = `<html><head><title>00537006 | Case | Salesforce</title></head>
<body>
<div class="record-layout">
  <dl>
    <dt>Account Name</dt><dd>Acme Holdings</dd>
  </dl>
  <p>Customer Account: Acme Corp (123)</p>
  <p>Subject: printer on fire</p>
  <p>Actions for 00537006</p>
  <a href="mailto:ops@acme.test">ops@acme.test</a>
</div>
</body></html>`

func TestCommandsRegistered(t *testing.T) {
	want := map[string]bool{"extract": false, "show": false, "export": false, "capture": false}
	for _, cmd := range rootCmd.Commands() {
		if _, ok := want[cmd.Name()]; ok {
			want[cmd.Name()] = true
			if cmd.Short == "" {
				t.Errorf("%s has no Short description", cmd.Name())
			}
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("command %q not registered", name)
		}
	}
}

func TestPageFromHTML(t *testing.T) {
	page, err := pageFromHTML(strings.NewReader(casePage), "https://example.test/case/1")
	if err != nil {
		t.Fatalf("pageFromHTML() error = %v", err)
	}
	if page.Title != "00537006 | Case | Salesforce" {
		t.Fatalf("Title = %q", page.Title)
	}
	if !strings.Contains(page.Text, "Customer Account: Acme Corp (123)") {
		t.Fatalf("Text = %q", page.Text)
	}
	if page.HTML != casePage || page.Timestamp == 0 {
		t.Fatalf("page = %+v", page)
	}
}

func TestPrintRecordText(t *testing.T) {
	rec := extract.Record{
		Title:         "00537006 | Case | Salesforce",
		URL:           "https://example.test/case/1",
		Text:          "Customer Account: Acme Corp (123)\nActions for 00537006",
		ContactEmails: []string{"ops@acme.test"},
	}
	var buf bytes.Buffer
	if err := printRecord(&buf, rec, false, false); err != nil {
		t.Fatalf("printRecord() error = %v", err)
	}
	out := buf.String()
	for _, want := range []string{"Case: 00537006", "Customer Account: Acme Corp", "Actions for: 00537006", "Email: ops@acme.test"} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
}

func TestExtractThenShowAndExport(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("CACHE_BACKEND", "file")
	t.Setenv("CACHE_DIR", filepath.Join(dir, "cache"))
	page := filepath.Join(dir, "case.html")
	if err := os.WriteFile(page, []byte(casePage), 0o644); err != nil {
		t.Fatalf("write page: %v", err)
	}

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})

	rootCmd.SetArgs([]string{"extract", page, "--json", "--save", "--url", "https://example.test/case/1"})
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("extract error = %v\n%s", err, out.String())
	}
	var got struct {
		Title    string           `json:"title"`
		HTML     string           `json:"html"`
		Contacts extract.Contacts `json:"contacts"`
	}
	if err := json.Unmarshal(out.Bytes(), &got); err != nil {
		t.Fatalf("decode extract output: %v\n%s", err, out.String())
	}
	if got.Contacts.CaseNumber != "00537006" || got.Contacts.CustomerAccount != "Acme Corp" {
		t.Fatalf("contacts = %+v", got.Contacts)
	}
	if got.HTML != "" {
		t.Fatal("html printed without --with-html")
	}

	out.Reset()
	rootCmd.SetArgs([]string{"show", "--body", "off"})
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("show error = %v\n%s", err, out.String())
	}
	if !strings.Contains(out.String(), "Case: 00537006") || strings.Contains(out.String(), "printer on fire") {
		t.Fatalf("show output = %s", out.String())
	}

	out.Reset()
	exportDir := filepath.Join(dir, "exports")
	if err := os.MkdirAll(exportDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	rootCmd.SetArgs([]string{"export", "--dir", exportDir, "--format", "text"})
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("export error = %v\n%s", err, out.String())
	}
	path := strings.TrimSpace(out.String())
	if filepath.Ext(path) != ".txt" {
		t.Fatalf("export path = %q", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	if !strings.Contains(string(data), "printer on fire") {
		t.Fatalf("export = %q", data)
	}
}

func TestCaptureRejectsOffOriginURL(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("CASEWATCH_ALLOWED_ORIGIN", "https://example.test/")
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})

	rootCmd.SetArgs([]string{"capture", "https://example.test.evil.com/case"})
	err := rootCmd.Execute()
	if err == nil || !strings.Contains(err.Error(), "ORIGIN_NOT_ALLOWED") {
		t.Fatalf("capture error = %v, want ORIGIN_NOT_ALLOWED", err)
	}
}
