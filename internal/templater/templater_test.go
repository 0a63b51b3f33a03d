package templater

import (
	"strings"
	"testing"
)

func TestToTemplateMasksKnownForms(t *testing.T) {
	tpl := New()
	line := `2024-01-15T10:30:00Z User 550e8400-e29b-41d4-a716-446655440000 connected from 192.168.1.42 to https://api.example.com/v1/login?user=bob path "/var/log/app/out.log" size 4096`
	got := tpl.ToTemplate(line)
	want := `<ts> User <uuid> connected from <ip> to <url> path <path> size <num>`
	if got != want {
		t.Fatalf("ToTemplate() = %q, want %q", got, want)
	}
}

func TestToTemplateMasksNumbersAndIPs(t *testing.T) {
	tpl := New()
	got := tpl.ToTemplate("WARN user=42 ip=10.0.0.1 failed after 12ms")
	if !strings.Contains(got, "<num>") {
		t.Fatalf("expected <num> in template, got %q", got)
	}
	if !strings.Contains(got, "<ip>") {
		t.Fatalf("expected <ip> in template, got %q", got)
	}
	if again := tpl.ToTemplate(got); again != got {
		t.Fatalf("template not stable: %q vs %q", got, again)
	}
}

func TestToTemplateMasksRichLine(t *testing.T) {
	tpl := New()
	line := `ERROR user=jane email=jane.doe@example.com visited https://example.com/login path="/var/log/app.log" windows="C:\Temp\data.log" uuid=123e4567-e89b-12d3-a456-426614174000 hex=0xDEADBEEF note="unexpected drop"`
	got := tpl.ToTemplate(line)

	for _, mask := range []string{"<email>", "<url>", "<uuid>", "<hex>", "<str>"} {
		if !strings.Contains(got, mask) {
			t.Fatalf("expected %s in template, got %q", mask, got)
		}
	}
	if n := strings.Count(got, "<path>"); n != 2 {
		t.Fatalf("expected both the POSIX and Windows paths masked, got %d <path> in %q", n, got)
	}
}

func TestToTemplateIsIdempotent(t *testing.T) {
	tpl := New()
	line := `error 500 at 2024-01-15T10:30:00Z id=abc123def456abcd user@example.com "quoted value"`
	once := tpl.ToTemplate(line)
	twice := tpl.ToTemplate(once)
	if once != twice {
		t.Fatalf("ToTemplate not idempotent: first=%q second=%q", once, twice)
	}
}

func TestToTemplateCollapsesWhitespace(t *testing.T) {
	tpl := New()
	got := tpl.ToTemplate("a   b\tc\n\nd")
	want := "a b c d"
	if got != want {
		t.Fatalf("ToTemplate() = %q, want %q", got, want)
	}
}

func TestCustomMasksRunBeforeAndAfter(t *testing.T) {
	tpl := New()
	before := CompileCustomMasks([]string{`SECRET-\d+=<secret>`})
	after := CompileCustomMasks([]string{`<num> widgets=<count>`})
	tpl.SetCustomMasks(before, after)

	got := tpl.ToTemplate("token SECRET-42 ordered 7 widgets")
	want := "token <secret> ordered <count>"
	if got != want {
		t.Fatalf("ToTemplate() = %q, want %q", got, want)
	}
}

func TestCompileCustomMasksSkipsMalformed(t *testing.T) {
	masks := CompileCustomMasks([]string{"no-equals-sign", "(unclosed=x", "ok=fine"})
	if len(masks) != 1 {
		t.Fatalf("expected exactly one valid mask to survive, got %d", len(masks))
	}
	if masks[0].Name != "ok" {
		t.Fatalf("expected surviving mask to be %q, got %q", "ok", masks[0].Name)
	}
}

func TestClearCustomMasks(t *testing.T) {
	tpl := New()
	tpl.SetCustomMasks(CompileCustomMasks([]string{`foo=bar`}), nil)
	if got := tpl.ToTemplate("foo"); got != "bar" {
		t.Fatalf("expected custom mask applied, got %q", got)
	}
	tpl.ClearCustomMasks()
	if got := tpl.ToTemplate("foo"); got != "foo" {
		t.Fatalf("expected custom mask cleared, got %q", got)
	}
}
