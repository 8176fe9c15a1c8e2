package irfmt

import (
	"strings"
	"testing"

	"github.com/arneph/katara/pkg/ir"
	"github.com/arneph/katara/pkg/ir/irtest"
)

func mustParse(t *testing.T, text string) *ir.Program {
	t.Helper()
	prog, err := Parse(strings.NewReader(text))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	return prog
}

func TestParseRoundTripsDiamondFixture(t *testing.T) {
	f, _, _, _, _ := irtest.Diamond()
	want := f.Format()

	prog := mustParse(t, want)
	funcs := prog.Funcs()
	if len(funcs) != 1 {
		t.Fatalf("got %d funcs, want 1", len(funcs))
	}
	got := funcs[0].Format()
	if got != want {
		t.Errorf("round trip mismatch:\n--- original ---\n%s\n--- reparsed ---\n%s", want, got)
	}
	if prog.EntryFunc() != funcs[0] {
		t.Errorf("entry func not set to the only parsed func")
	}
	if funcs[0].Entry() == nil {
		t.Errorf("entry block not set")
	}
}

func TestParseRoundTripsLoopFixture(t *testing.T) {
	f, _, _, _, _ := irtest.Loop()
	want := f.Format()

	prog := mustParse(t, want)
	got := prog.Funcs()[0].Format()
	if got != want {
		t.Errorf("round trip mismatch:\n--- original ---\n%s\n--- reparsed ---\n%s", want, got)
	}
}

func TestParseParsesCallWithResults(t *testing.T) {
	text := "@0 callee () => (i64) {\n" +
		"  {0}:\n" +
		"    ret #5:i64\n" +
		"}\n\n" +
		"@1 caller () => (i64) {\n" +
		"  {0}:\n" +
		"    %0:i64 = call @0()\n" +
		"    ret %0:i64\n" +
		"}"

	prog := mustParse(t, text)
	funcs := prog.Funcs()
	if len(funcs) != 2 {
		t.Fatalf("got %d funcs, want 2", len(funcs))
	}
	caller := funcs[1]
	instrs := caller.Entry().Instrs()
	call, ok := instrs[0].(*ir.Call)
	if !ok {
		t.Fatalf("first instr is %T, want *ir.Call", instrs[0])
	}
	if len(call.Rets) != 1 || call.Rets[0].ID != 0 {
		t.Errorf("unexpected call results: %v", call.Rets)
	}
	callee, ok := call.Callee.(ir.Constant)
	if !ok || callee.Typ != ir.FuncType || callee.Pattern != 0 {
		t.Errorf("unexpected callee: %#v", call.Callee)
	}
}

func TestParseParsesCallWithoutResults(t *testing.T) {
	text := "@0 f () => () {\n" +
		"  {0}:\n" +
		"    call @0()\n" +
		"    ret\n" +
		"}"
	prog := mustParse(t, text)
	instrs := prog.Funcs()[0].Entry().Instrs()
	call, ok := instrs[0].(*ir.Call)
	if !ok {
		t.Fatalf("first instr is %T, want *ir.Call", instrs[0])
	}
	if len(call.Rets) != 0 {
		t.Errorf("expected no results, got %v", call.Rets)
	}
}

func TestParseParsesNegativeSignedConstant(t *testing.T) {
	text := "@0 f () => (i32) {\n" +
		"  {0}:\n" +
		"    ret #-5:i32\n" +
		"}"
	prog := mustParse(t, text)
	ret := prog.Funcs()[0].Entry().Instrs()[0].(*ir.Return)
	c := ret.Args[0].(ir.Constant)
	if c.Typ != ir.I32 {
		t.Fatalf("got type %s, want i32", c.Typ)
	}
	if got := c.String(); got != "#-5:i32" {
		t.Errorf("got %q, want #-5:i32", got)
	}
}

func TestParseParsesBoolConstants(t *testing.T) {
	text := "@0 f () => (b, b) {\n" +
		"  {0}:\n" +
		"    ret #t, #f\n" +
		"}"
	prog := mustParse(t, text)
	ret := prog.Funcs()[0].Entry().Instrs()[0].(*ir.Return)
	if ret.Args[0].(ir.Constant).Pattern != 1 {
		t.Errorf("#t did not parse to pattern 1")
	}
	if ret.Args[1].(ir.Constant).Pattern != 0 {
		t.Errorf("#f did not parse to pattern 0")
	}
}

func TestParseHonorsNonContiguousBlockIDs(t *testing.T) {
	text := "@0 f () => (i64) {\n" +
		"  {0}:\n" +
		"    jmp {5}\n" +
		"  {5}:\n" +
		"    ret #1:i64\n" +
		"}"
	prog := mustParse(t, text)
	f := prog.Funcs()[0]
	if f.Block(5) == nil {
		t.Fatalf("block {5} not defined")
	}
	if f.Block(1) != nil {
		t.Errorf("phantom block {1} should not exist")
	}
	entry := f.Entry()
	if entry == nil || entry.ID() != 0 {
		t.Errorf("entry block should be {0}")
	}
}

func TestParseRejectsUnknownMnemonic(t *testing.T) {
	text := "@0 f () => (i64) {\n" +
		"  {0}:\n" +
		"    %0:i64 = frobnicate:i64 #1:i64\n" +
		"}"
	_, err := Parse(strings.NewReader(text))
	if err == nil {
		t.Fatal("expected an error for an unknown mnemonic")
	}
}

func TestParseRejectsMismatchedArgID(t *testing.T) {
	text := "@0 f (%1:i64) => (i64) {\n" +
		"  {0}:\n" +
		"    ret %1:i64\n" +
		"}"
	_, err := Parse(strings.NewReader(text))
	if err == nil {
		t.Fatal("expected an error for an out-of-sequence arg id")
	}
}

func TestParseRejectsUnexpectedEOF(t *testing.T) {
	_, err := Parse(strings.NewReader("@0 f (%0:i64"))
	if err == nil {
		t.Fatal("expected an error for truncated input")
	}
}
