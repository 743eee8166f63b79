package respond

import (
	"net/http"
	"strings"
	"testing"
)

func TestSelectFormat(t *testing.T) {
	tests := []struct {
		name   string
		accept string
		cbor   bool
	}{
		{"empty accept defaults to JSON", "", false},
		{"wildcard defaults to JSON", "*/*", false},
		{"application wildcard defaults to JSON", "application/*", false},
		{"explicit JSON", "application/json", false},
		{"explicit CBOR", "application/cbor", true},
		{"CBOR with q", "application/cbor;q=1.0", true},
		{"equal q prefers JSON", "application/json, application/cbor", false},
		{"CBOR preferred by q", "application/json;q=0.9, application/cbor", true},
		{"JSON preferred by q", "application/cbor;q=0.5, application/json;q=0.9", false},
		{"unsupported type defaults to JSON", "text/html", false},
		{"non-matching list defaults to JSON", "image/png, text/plain", false},
		{"problem+cbor", "application/problem+cbor", true},
		{"problem+json", "application/problem+json", false},
		{"problem+cbor beats problem+json by q", "application/problem+cbor;q=1.0, application/problem+json;q=0.5", true},
		{"problem+cbor beats plain json by specificity", "application/json, application/problem+cbor", true},
		{"CBOR excluded with q=0", "application/cbor;q=0, application/json", false},
		{"JSON excluded with q=0", "application/json;q=0, application/cbor", true},
		{"both excluded", "application/json;q=0, application/cbor;q=0", false},
		{"wildcard excluded", "*/*;q=0", false},
		{"low q CBOR still accepted", "application/cbor;q=0.1", true},
		{"specific CBOR beats low wildcard", "*/*;q=0.1, application/cbor", true},
		{"specific q=0 overrides wildcard", "*/*, application/cbor;q=0", false},
		{"structured suffix cbor", "application/*+cbor", true},
		{"structured suffix json", "application/*+json", false},
		{"case and whitespace insensitive", "  Application/CBOR ; Q=0.8 ", true},
		{"invalid q treated as 1", "application/json;q=0.5, application/cbor;q=oops", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := selectFormat(tt.accept); got != tt.cbor {
				t.Fatalf("selectFormat(%q) = %v, want %v", tt.accept, got, tt.cbor)
			}
		})
	}
}

func TestParseAccept(t *testing.T) {
	ranges := parseAccept("text, application/json;q=0.5;q=0.9, , application/cbor;q=2")
	if len(ranges) != 3 {
		t.Fatalf("expected 3 ranges with the empty entry skipped, got %d", len(ranges))
	}
	if ranges[0].typ != "text" || ranges[0].subtype != "*" {
		t.Fatalf("expected bare type to become text/*, got %s/%s", ranges[0].typ, ranges[0].subtype)
	}
	if ranges[1].q != 0.9 {
		t.Fatalf("expected last q value to win, got %v", ranges[1].q)
	}
	if ranges[2].q != 1.0 {
		t.Fatalf("expected out-of-range q to be treated as 1, got %v", ranges[2].q)
	}
}

func TestEnsureVary(t *testing.T) {
	h := make(http.Header)
	ensureVary(h)
	if len(h.Values("Vary")) != 0 {
		t.Fatalf("expected no Vary without values, got %v", h.Values("Vary"))
	}

	h.Set("Vary", "Accept-Encoding, accept")
	ensureVary(h, "Accept", "Origin", "Origin")

	counts := map[string]int{}
	for _, v := range h.Values("Vary") {
		for part := range strings.SplitSeq(v, ",") {
			counts[strings.ToLower(strings.TrimSpace(part))]++
		}
	}
	if counts["accept"] != 1 || counts["origin"] != 1 || counts["accept-encoding"] != 1 {
		t.Fatalf("unexpected Vary values: %v", h.Values("Vary"))
	}
}
