package compiler

import "testing"

func TestParseTensorLiteralMatrix(t *testing.T) {
	tn, err := parseTensorLiteral("[[1 2][3 4]]")
	if err != nil {
		t.Fatal(err)
	}
	if tn.Rank != 2 || tn.Shape[0] != 2 || tn.Shape[1] != 2 {
		t.Fatalf("got rank %d shape %v", tn.Rank, tn.Shape)
	}
}

func TestParseTensorLiteralRagged(t *testing.T) {
	_, err := parseTensorLiteral("[[1 2][3]]")
	if err == nil {
		t.Fatal("expected ragged-literal error")
	}
}

func TestParseTensorLiteralScalar(t *testing.T) {
	tn, err := parseTensorLiteral("3.5")
	if err != nil {
		t.Fatal(err)
	}
	if tn.Rank != 0 {
		t.Fatalf("got rank %d, want 0", tn.Rank)
	}
}

func TestParseStringLiteralEscapes(t *testing.T) {
	s, err := parseStringLiteral(`'a\'b\\c'`)
	if err != nil {
		t.Fatal(err)
	}
	if s != `a'b\c` {
		t.Fatalf("got %q", s)
	}
}

func TestSplitTopLevel(t *testing.T) {
	items, err := splitTopLevel("[1 2] [3 4]")
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 2 || items[0] != "[1 2]" || items[1] != "[3 4]" {
		t.Fatalf("got %v", items)
	}
}

func TestQuotedSectionsCompute(t *testing.T) {
	sections, tail, err := quotedSections(`c'A'B'C'D' 1 1 0 0`, 4)
	if err != nil {
		t.Fatal(err)
	}
	if sections[0] != "A" || sections[3] != "D" {
		t.Fatalf("got sections %v", sections)
	}
	if tail != "c 1 1 0 0" {
		t.Fatalf("got tail %q", tail)
	}
}

func TestQuotedSectionsUnescapesSemicolon(t *testing.T) {
	// escapeComputeSemicolons would have turned a real ';' into '\' inside
	// each quoted section; quotedSections must undo that.
	sections, _, err := quotedSections(`c'a\b'c'd'e' 1 1 0 0`, 4)
	if err != nil {
		t.Fatal(err)
	}
	if sections[0] != "a;b" {
		t.Fatalf("got %q, want %q", sections[0], "a;b")
	}
}
