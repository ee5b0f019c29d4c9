package bytecode

import (
	"testing"

	"github.com/makian123/C-interpreter/lang/parser"
)

func mustEncode(t *testing.T, src string) []byte {
	t.Helper()
	prog, err := parser.ParseProgram(src)
	if err != nil {
		t.Fatalf("ParseProgram(%q): %v", src, err)
	}
	code, err := EncodeProgram(prog)
	if err != nil {
		t.Fatalf("EncodeProgram: %v", err)
	}
	return code
}

// readU32 reads a little-endian u32 at pos.
func readU32(code []byte, pos int) uint32 {
	return uint32(code[pos]) | uint32(code[pos+1])<<8 | uint32(code[pos+2])<<16 | uint32(code[pos+3])<<24
}

func TestEncodePreambleListsDefinedFunctionsOnly(t *testing.T) {
	code := mustEncode(t, `
		int undeclaredOnly(int x);
		int add(int a, int b){ return a+b; }
		int main(){ return add(1,2); }
	`)
	if Op(code[0]) != FUNCS_BEGIN {
		t.Fatalf("expected stream to open with FUNCS_BEGIN, got %s", Op(code[0]))
	}
	if !contains(code, "add(int,int)\n") {
		t.Errorf("expected preamble to contain add(int,int) signature")
	}
	if contains(code, "undeclaredOnly") {
		t.Errorf("forward declaration without a body must not appear in the preamble")
	}
}

func contains(code []byte, s string) bool {
	return indexOf(string(code), s) >= 0
}

func indexOf(haystack, needle string) int {
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if haystack[i:i+len(needle)] == needle {
			return i
		}
	}
	return -1
}

// opStarts returns the byte offset of every opcode in code, stepping
// over payloads (and the preamble's bare signature lines) so that a
// payload byte is never mistaken for an opcode.
func opStarts(code []byte) []int {
	skipLine := func(i int) int {
		for code[i] != '\n' {
			i++
		}
		return i + 1
	}
	var starts []int
	for i := 0; i < len(code); {
		starts = append(starts, i)
		op := Op(code[i])
		i++
		switch op {
		case FUNCS_BEGIN:
			for Op(code[i]) != FUNCS_END {
				i = skipLine(i)
			}
		case FUNCTION:
			i = skipLine(i)
		case FUNCTIONCALL:
			i = skipLine(i) + 4
		case SKIP, BACK, ICONST, FCONST, ILOAD, FLOAD, ISTORE, FSTORE, INC, DEC, IF, WHILE, FOR:
			i += 4
		}
	}
	return starts
}

// TestIfOffsetsLandExactlyPastTheStatement checks the back-patch
// arithmetic for a conditional with no else: IF's false-skip offset
// must land exactly on the byte right after the matching SKIP's own
// offset field, and (with no else) SKIP's offset must be zero.
func TestIfOffsetsLandExactlyPastTheStatement(t *testing.T) {
	code := mustEncode(t, `int main(){ int x; if (1 < 2) { x = 1; } return 0; }`)

	ifPos, skipPos := -1, -1
	for _, i := range opStarts(code) {
		switch Op(code[i]) {
		case IF:
			if ifPos < 0 {
				ifPos = i
			}
		case SKIP:
			if ifPos >= 0 && skipPos < 0 {
				skipPos = i
			}
		}
	}
	if ifPos < 0 || skipPos < 0 {
		t.Fatalf("expected both an IF and a matching SKIP in the stream")
	}

	ifOff := readU32(code, ifPos+1)
	afterIfOffset := ifPos + 1 + 4
	if afterIfOffset+int(ifOff) != skipPos+1+4 {
		t.Errorf("IF offset should land just past SKIP's offset field: got target %d, want %d",
			afterIfOffset+int(ifOff), skipPos+1+4)
	}

	skipOff := readU32(code, skipPos+1)
	if skipOff != 0 {
		t.Errorf("else-less if should have a zero SKIP offset, got %d", skipOff)
	}
}

// TestLoopBackJumpReturnsToCondition checks that a while-loop's BACK
// offset, subtracted from the position just after its offset field,
// lands exactly on the loop's condition-evaluation start.
func TestLoopBackJumpReturnsToCondition(t *testing.T) {
	code := mustEncode(t, `int main(){ int i; i = 0; while (i < 3) { i = i + 1; } return i; }`)

	backPos := -1
	for i, b := range code {
		if Op(b) == BACK {
			backPos = i
		}
	}
	if backPos < 0 {
		t.Fatal("expected a BACK opcode")
	}
	off := readU32(code, backPos+1)
	pcAfterOffset := backPos + 1 + 4
	loopStart := pcAfterOffset - int(off)
	if loopStart < 0 || loopStart >= len(code) {
		t.Fatalf("BACK target %d out of range", loopStart)
	}
	// The byte at loopStart should be the start of the condition:
	// an ILOAD for `i`, since the condition is `i < 3`.
	if Op(code[loopStart]) != ILOAD {
		t.Errorf("expected loop-back target to land on ILOAD (condition start), got %s", Op(code[loopStart]))
	}
}

// TestSlotsAreContiguousWithinAFunction: declaring locals in sibling
// if-blocks should not make slot numbers grow unboundedly — each
// block's slots are released when its frame pops.
func TestSlotsAreContiguousWithinAFunction(t *testing.T) {
	e := NewEncoder()
	e.pushFrame()
	a := e.declare("a", false)
	e.pushFrame()
	b := e.declare("b", false)
	e.popFrame()
	e.pushFrame()
	c := e.declare("c", false)
	e.popFrame()
	e.popFrame()

	if a != 0 {
		t.Errorf("expected first local to take slot 0, got %d", a)
	}
	if b != 1 {
		t.Errorf("expected sibling block's local to take slot 1, got %d", b)
	}
	if c != 1 {
		t.Errorf("expected a later sibling block to reuse slot 1, got %d", c)
	}
	if e.nextSlot != 0 {
		t.Errorf("expected nextSlot to fully unwind to 0 after all frames pop, got %d", e.nextSlot)
	}
}

// TestFloatArithmeticUsesFloatOpcodes exercises the corrected
// opcode-identity dispatch (see DESIGN.md): a binary expression whose
// cached static type is float must use the F-family opcode.
func TestFloatArithmeticUsesFloatOpcodes(t *testing.T) {
	code := mustEncode(t, `float scale(float x){ return x*2.0; }`)
	found := false
	for _, b := range code {
		if Op(b) == FMUL {
			found = true
		}
		if Op(b) == IMUL {
			t.Fatalf("float multiplication must not emit the integer opcode")
		}
	}
	if !found {
		t.Fatalf("expected an FMUL in the encoded stream")
	}
}

// TestFunctionCallThreadsArguments checks that FUNCTIONCALL carries the
// callee's signature and a matching argument count — the corrected
// behavior replacing the reference's argument-not-threaded bug.
func TestFunctionCallThreadsArguments(t *testing.T) {
	code := mustEncode(t, `
		int add(int a, int b){ return a+b; }
		int main(){ return add(1,2); }
	`)
	for i, b := range code {
		if Op(b) == FUNCTIONCALL {
			// payload: ASCII sig, '\n', u32 argc
			j := i + 1
			for code[j] != '\n' {
				j++
			}
			sig := string(code[i+1 : j])
			if sig != "add(int,int)" {
				t.Fatalf("expected call signature add(int,int), got %q", sig)
			}
			argc := readU32(code, j+1)
			if argc != 2 {
				t.Fatalf("expected argc 2, got %d", argc)
			}
			return
		}
	}
	t.Fatal("expected a FUNCTIONCALL in the encoded stream")
}

func TestBreakOutsideLoopFails(t *testing.T) {
	prog, err := parser.ParseProgram(`int main(){ break; return 0; }`)
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	if _, err := EncodeProgram(prog); err == nil {
		t.Fatal("expected an error encoding a break outside any loop")
	}
}
