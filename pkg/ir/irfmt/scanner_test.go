package irfmt

import (
	"strings"
	"testing"
)

func scanAll(t *testing.T, input string) []token {
	t.Helper()
	s := newScanner(strings.NewReader(input))
	var toks []token
	for {
		tok, err := s.next()
		if err != nil {
			t.Fatalf("scan error: %v", err)
		}
		toks = append(toks, tok)
		if tok.kind == tokEOF {
			return toks
		}
	}
}

func TestScannerTokenizesPunctuation(t *testing.T) {
	toks := scanAll(t, "#%:{}@,=()")
	want := []tokenKind{tokHash, tokPercent, tokColon, tokLBrace, tokRBrace, tokAt, tokComma, tokEqual, tokLParen, tokRParen, tokEOF}
	if len(toks) != len(want) {
		t.Fatalf("got %d tokens, want %d", len(toks), len(want))
	}
	for i, k := range want {
		if toks[i].kind != k {
			t.Errorf("token %d: got %s, want %s", i, toks[i].kind, k)
		}
	}
}

func TestScannerDistinguishesArrowFromEqual(t *testing.T) {
	toks := scanAll(t, "= =>")
	if toks[0].kind != tokEqual {
		t.Errorf("got %s, want =", toks[0].kind)
	}
	if toks[1].kind != tokArrow {
		t.Errorf("got %s, want =>", toks[1].kind)
	}
}

func TestScannerTokenizesIdentifiers(t *testing.T) {
	toks := scanAll(t, "mov phi jcc _x9")
	want := []string{"mov", "phi", "jcc", "_x9"}
	for i, text := range want {
		if toks[i].kind != tokIdent || toks[i].text != text {
			t.Errorf("token %d: got %v, want identifier %q", i, toks[i], text)
		}
	}
}

func TestScannerTokenizesNumbers(t *testing.T) {
	toks := scanAll(t, "42 -7 0")
	if toks[0].kind != tokNumber || toks[0].neg || toks[0].num != 42 {
		t.Errorf("got %v, want 42", toks[0])
	}
	if toks[1].kind != tokNumber || !toks[1].neg || toks[1].num != 7 {
		t.Errorf("got %v, want -7", toks[1])
	}
	if toks[2].kind != tokNumber || toks[2].neg || toks[2].num != 0 {
		t.Errorf("got %v, want 0", toks[2])
	}
}

func TestScannerSkipsWhitespaceAndNewlines(t *testing.T) {
	toks := scanAll(t, "  %0 \n\t :i64\n")
	want := []tokenKind{tokPercent, tokNumber, tokColon, tokIdent, tokEOF}
	if len(toks) != len(want) {
		t.Fatalf("got %d tokens, want %d", len(toks), len(want))
	}
	for i, k := range want {
		if toks[i].kind != k {
			t.Errorf("token %d: got %s, want %s", i, toks[i].kind, k)
		}
	}
}

func TestScannerRejectsUnexpectedCharacter(t *testing.T) {
	s := newScanner(strings.NewReader("$"))
	if _, err := s.next(); err == nil {
		t.Fatal("expected an error for an unrecognized character")
	}
}

func TestScannerRejectsBareMinusSign(t *testing.T) {
	s := newScanner(strings.NewReader("- "))
	if _, err := s.next(); err == nil {
		t.Fatal("expected an error for '-' not followed by a digit")
	}
}
