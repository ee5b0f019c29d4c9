// Command clc compiles a single source file through the full
// pipeline — lex, parse, encode, run — and reports the exit value
// main() returned.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/makian123/C-interpreter/lang/bytecode"
	"github.com/makian123/C-interpreter/lang/disasm"
	"github.com/makian123/C-interpreter/lang/parser"
	"github.com/makian123/C-interpreter/lang/vm"
)

func main() {
	src := flag.String("src", "testcode.c", "path to the source file to compile and run")
	out := flag.String("out", "tmp.bin", "path to write the compiled bytecode to (empty to skip)")
	manifestPath := flag.String("manifest", "", "path to write a CBOR manifest sidecar to (optional)")
	printDisasm := flag.Bool("disasm", false, "print a disassembly of the compiled program before running it")
	flag.Parse()

	if *src == "" {
		log.Fatal("clc: -src is required")
	}

	buf, err := os.ReadFile(*src)
	if err != nil {
		log.Fatal(err)
	}

	prog, err := parser.ParseProgram(string(buf))
	if err != nil {
		log.Fatalf("clc: parse error: %v", err)
	}

	code, err := bytecode.EncodeProgram(prog)
	if err != nil {
		log.Fatalf("clc: encode error: %v", err)
	}

	if *out != "" {
		if err := os.WriteFile(*out, code, 0o644); err != nil {
			log.Fatalf("clc: writing %s: %v", *out, err)
		}
	}

	if *manifestPath != "" {
		m := bytecode.BuildManifest(prog, code)
		data, err := m.Marshal()
		if err != nil {
			log.Fatalf("clc: marshaling manifest: %v", err)
		}
		if err := os.WriteFile(*manifestPath, data, 0o644); err != nil {
			log.Fatalf("clc: writing %s: %v", *manifestPath, err)
		}
	}

	if *printDisasm {
		if err := disasm.Fprint(os.Stdout, code); err != nil {
			log.Fatalf("clc: disassembling: %v", err)
		}
	}

	machine, err := vm.New(code)
	if err != nil {
		log.Fatalf("clc: loading program: %v", err)
	}

	start := time.Now()
	result, err := machine.Run("main()")
	elapsed := time.Since(start)
	if err != nil {
		log.Fatalf("clc: execution failed: %v", err)
	}

	fmt.Printf("main() = %d (%s)\n", result.AsInt(), elapsed)
}
