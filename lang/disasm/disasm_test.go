package disasm

import (
	"strings"
	"testing"

	"github.com/makian123/C-interpreter/lang/bytecode"
	"github.com/makian123/C-interpreter/lang/parser"
)

func encode(t *testing.T, src string) []byte {
	t.Helper()
	prog, err := parser.ParseProgram(src)
	if err != nil {
		t.Fatalf("ParseProgram: %v", err)
	}
	code, err := bytecode.EncodeProgram(prog)
	if err != nil {
		t.Fatalf("EncodeProgram: %v", err)
	}
	return code
}

func TestDecodeRoundTripsPreambleAndFunction(t *testing.T) {
	code := encode(t, `int add(int a, int b){ return a+b; }`)
	instrs, err := Decode(code)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if instrs[0].Op != bytecode.FUNCS_BEGIN {
		t.Fatalf("expected first instruction to be FUNCS_BEGIN, got %s", instrs[0].Op)
	}
	var sawSig, sawFuncsEnd, sawFunction, sawIadd, sawIret bool
	for _, in := range instrs {
		switch {
		case in.Op == bytecode.FUNCTION && in.Sig == "add(int,int)" && !sawFuncsEnd:
			sawSig = true
		case in.Op == bytecode.FUNCS_END:
			sawFuncsEnd = true
		case in.Op == bytecode.FUNCTION:
			sawFunction = true
		case in.Op == bytecode.IADD:
			sawIadd = true
		case in.Op == bytecode.IRET:
			sawIret = true
		}
	}
	if !sawSig {
		t.Error("expected the preamble to list add(int,int)")
	}
	if !sawFuncsEnd {
		t.Error("expected FUNCS_END to close the preamble")
	}
	if !sawFunction {
		t.Error("expected a FUNCTION record for add")
	}
	if !sawIadd || !sawIret {
		t.Error("expected IADD and IRET in add's body")
	}
}

func TestFprintFormatsOneInstructionPerLine(t *testing.T) {
	code := encode(t, `int main(){ return 1+2; }`)
	var sb strings.Builder
	if err := Fprint(&sb, code); err != nil {
		t.Fatalf("Fprint: %v", err)
	}
	lines := strings.Split(strings.TrimRight(sb.String(), "\n"), "\n")
	instrs, _ := Decode(code)
	if len(lines) != len(instrs) {
		t.Fatalf("expected %d lines, got %d", len(instrs), len(lines))
	}
}

func TestDecodeTruncatedStreamFails(t *testing.T) {
	truncated := []byte{byte(bytecode.ICONST), 0x01, 0x02}
	if _, err := Decode(truncated); err == nil {
		t.Fatal("expected a truncation error on a chopped i32 payload")
	}
}
