// Package disasm renders a compiled byte stream as a human-readable,
// one-instruction-per-line listing: offset, mnemonic, and decoded
// payload, the same shape cmd/clc prints when invoked with -disasm.
package disasm

import (
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/makian123/C-interpreter/lang/bytecode"
)

// payloadKind classifies how many bytes (and of what shape) follow an
// opcode, so Decode can decode without a giant per-opcode switch at
// every call site.
type payloadKind int

const (
	payloadNone payloadKind = iota
	payloadU32
	payloadI32
	payloadF32
	payloadSig     // newline-terminated ASCII signature
	payloadSigArgc // signature, then a u32 argument count
)

var payloads = map[bytecode.Op]payloadKind{
	bytecode.SKIP: payloadU32,
	bytecode.BACK: payloadU32,

	bytecode.ICONST: payloadI32,
	bytecode.FCONST: payloadF32,

	bytecode.ILOAD:  payloadU32,
	bytecode.FLOAD:  payloadU32,
	bytecode.ISTORE: payloadU32,
	bytecode.FSTORE: payloadU32,
	bytecode.INC:    payloadU32,
	bytecode.DEC:    payloadU32,

	bytecode.IF:    payloadU32,
	bytecode.WHILE: payloadU32,
	bytecode.FOR:   payloadU32,

	bytecode.FUNCTION:     payloadSig,
	bytecode.FUNCTIONCALL: payloadSigArgc,
}

// Instruction is one decoded entry in Decode's result.
type Instruction struct {
	Offset  int
	Op      bytecode.Op
	U32     uint32
	I32     int32
	F32     float32
	Sig     string
	ArgC    uint32
	HasArgs bool
}

// String renders the instruction the way cmd/clc prints it:
// "%06d  %-12s  <payload>".
func (in Instruction) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%06d  %-12s", in.Offset, in.Op.String())
	switch payloads[in.Op] {
	case payloadU32:
		fmt.Fprintf(&sb, "  %d", in.U32)
	case payloadI32:
		fmt.Fprintf(&sb, "  %d", in.I32)
	case payloadF32:
		fmt.Fprintf(&sb, "  %g", in.F32)
	case payloadSig:
		fmt.Fprintf(&sb, "  %s", in.Sig)
	case payloadSigArgc:
		fmt.Fprintf(&sb, "  %s argc=%d", in.Sig, in.ArgC)
	}
	return sb.String()
}

// Decode walks the preamble (FUNCS_BEGIN .. FUNCS_END) followed by
// every FUNCTION record in code, returning one Instruction per opcode
// in stream order. It does not validate control-flow offsets, and
// neither does the loader (lang/vm); the VM only reports a program
// counter that runs past the end of the code.
func Decode(code []byte) ([]Instruction, error) {
	var out []Instruction
	i := 0
	for i < len(code) {
		op := bytecode.Op(code[i])
		in := Instruction{Offset: i, Op: op}
		i++

		switch payloads[op] {
		case payloadU32:
			if i+4 > len(code) {
				return nil, fmt.Errorf("disasm: truncated u32 payload at offset %d", in.Offset)
			}
			in.U32 = readU32(code, i)
			i += 4
		case payloadI32:
			if i+4 > len(code) {
				return nil, fmt.Errorf("disasm: truncated i32 payload at offset %d", in.Offset)
			}
			in.I32 = int32(readU32(code, i))
			i += 4
		case payloadF32:
			if i+4 > len(code) {
				return nil, fmt.Errorf("disasm: truncated f32 payload at offset %d", in.Offset)
			}
			in.F32 = math.Float32frombits(readU32(code, i))
			i += 4
		case payloadSig:
			sig, next, err := readLine(code, i)
			if err != nil {
				return nil, err
			}
			in.Sig = sig
			i = next
		case payloadSigArgc:
			sig, next, err := readLine(code, i)
			if err != nil {
				return nil, err
			}
			if next+4 > len(code) {
				return nil, fmt.Errorf("disasm: truncated argc payload at offset %d", in.Offset)
			}
			in.Sig = sig
			in.ArgC = readU32(code, next)
			in.HasArgs = true
			i = next + 4
		}

		out = append(out, in)
		if op == bytecode.FUNCS_BEGIN {
			// the preamble is a run of bare newline-terminated
			// signatures with no leading opcode byte; consume them
			// up to FUNCS_END.
			for i < len(code) && bytecode.Op(code[i]) != bytecode.FUNCS_END {
				sig, next, err := readLine(code, i)
				if err != nil {
					return nil, err
				}
				out = append(out, Instruction{Offset: i, Op: bytecode.FUNCTION, Sig: sig})
				i = next
			}
		}
	}
	return out, nil
}

// Fprint writes the decoded listing of code to w.
func Fprint(w io.Writer, code []byte) error {
	instrs, err := Decode(code)
	if err != nil {
		return err
	}
	for _, in := range instrs {
		if _, err := fmt.Fprintln(w, in.String()); err != nil {
			return err
		}
	}
	return nil
}

func readU32(code []byte, pos int) uint32 {
	return uint32(code[pos]) | uint32(code[pos+1])<<8 | uint32(code[pos+2])<<16 | uint32(code[pos+3])<<24
}

// readLine reads an ASCII string up to (excluding) the next '\n',
// returning the string and the offset just past the newline.
func readLine(code []byte, from int) (string, int, error) {
	for i := from; i < len(code); i++ {
		if code[i] == '\n' {
			return string(code[from:i]), i + 1, nil
		}
	}
	return "", 0, fmt.Errorf("disasm: unterminated signature starting at offset %d", from)
}
