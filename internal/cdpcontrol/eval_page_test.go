package cdpcontrol

import (
	"strings"
	"testing"

	"github.com/dgnsrekt/casewatch/internal/extract"
)

func TestJSEvalWrappers(t *testing.T) {
	syncExpr := wrapJSEval("return 1;")
	if !strings.Contains(syncExpr, "(function(){\ntry {") {
		t.Fatalf("unexpected sync wrapper: %s", syncExpr)
	}
	if strings.Contains(syncExpr, "(async function") {
		t.Fatalf("sync wrapper should not be async: %s", syncExpr)
	}

	asyncExpr := wrapJSEvalAsync("await Promise.resolve(1);")
	if !strings.Contains(asyncExpr, "(async function(){\ntry {") {
		t.Fatalf("unexpected async wrapper: %s", asyncExpr)
	}
	if !strings.Contains(asyncExpr, "await Promise.resolve(1);") {
		t.Fatalf("async wrapper lost body: %s", asyncExpr)
	}
}

func TestCaptureExpressionReadsPage(t *testing.T) {
	expr := CaptureExpression()
	for _, want := range []string{"innerText", "outerHTML", "document.title", "location.href", "Date.now() + 2000"} {
		if !strings.Contains(expr, want) {
			t.Fatalf("capture script missing %q", want)
		}
	}
}

func TestDecodeEnvelope(t *testing.T) {
	t.Run("ok", func(t *testing.T) {
		var p extract.Page
		raw := `{"ok":true,"data":{"title":"T","url":"https://u/","text":"x","html":"<p>x</p>","ts":42}}`
		if err := DecodeEnvelope([]byte(raw), &p); err != nil {
			t.Fatalf("DecodeEnvelope() error = %v", err)
		}
		if p.Title != "T" || p.URL != "https://u/" || p.Timestamp != 42 {
			t.Fatalf("decoded page = %+v", p)
		}
	})

	t.Run("script_error_keeps_code", func(t *testing.T) {
		err := DecodeEnvelope([]byte(`{"ok":false,"error_code":"TAB_NOT_FOUND","error_message":"gone"}`), nil)
		if ErrorCode(err) != CodeTabNotFound {
			t.Fatalf("code = %q, want %q", ErrorCode(err), CodeTabNotFound)
		}
	})

	t.Run("script_error_default_code", func(t *testing.T) {
		err := DecodeEnvelope([]byte(`{"ok":false,"error_message":"boom"}`), nil)
		if ErrorCode(err) != CodeEvalFailure {
			t.Fatalf("code = %q, want %q", ErrorCode(err), CodeEvalFailure)
		}
	})

	t.Run("not_json", func(t *testing.T) {
		err := DecodeEnvelope([]byte(`undefined`), nil)
		if ErrorCode(err) != CodeEvalFailure {
			t.Fatalf("code = %q, want %q", ErrorCode(err), CodeEvalFailure)
		}
	})
}
