package vm

import (
	"fmt"

	"github.com/makian123/C-interpreter/lang/bytecode"
	"github.com/makian123/C-interpreter/lang/disasm"
)

// loadFunctionTable scans code for every real FUNCTION record (as
// opposed to the bare signature lines the FUNCS_BEGIN/FUNCS_END
// preamble also decodes as synthetic FUNCTION entries) and maps each
// function's signature to the byte offset its body starts at — the
// byte immediately following the record's signature line.
//
// A function's own signature is its only call-target identity; there
// is no separate numeric function index anywhere in the stream.
func loadFunctionTable(code []byte) (map[string]int, error) {
	instrs, err := disasm.Decode(code)
	if err != nil {
		return nil, fmt.Errorf("vm: decoding function table: %w", err)
	}

	table := map[string]int{}
	for i, in := range instrs {
		if in.Op != bytecode.FUNCTION {
			continue
		}
		if in.Offset >= len(code) || bytecode.Op(code[in.Offset]) != bytecode.FUNCTION {
			continue // a preamble signature line, not a real record
		}
		if i+1 >= len(instrs) {
			return nil, fmt.Errorf("vm: FUNCTION record for %q has no body", in.Sig)
		}
		table[in.Sig] = instrs[i+1].Offset
	}
	return table, nil
}
