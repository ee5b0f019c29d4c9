package vm

import (
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"golang.org/x/tools/txtar"

	"github.com/makian123/C-interpreter/lang/bytecode"
	"github.com/makian123/C-interpreter/lang/parser"
)

// TestGoldenFixtures runs every lang/vm/testdata/*.txtar archive: each
// holds a source.c and the expect.txt integer its main() must return.
func TestGoldenFixtures(t *testing.T) {
	paths, err := filepath.Glob("testdata/*.txtar")
	if err != nil {
		t.Fatalf("glob testdata: %v", err)
	}
	if len(paths) == 0 {
		t.Fatal("expected at least one testdata/*.txtar fixture")
	}

	for _, path := range paths {
		path := path
		t.Run(filepath.Base(path), func(t *testing.T) {
			arc, err := txtar.ParseFile(path)
			if err != nil {
				t.Fatalf("ParseFile: %v", err)
			}
			var source, expect string
			for _, f := range arc.Files {
				switch f.Name {
				case "source.c":
					source = string(f.Data)
				case "expect.txt":
					expect = strings.TrimSpace(string(f.Data))
				}
			}
			if source == "" || expect == "" {
				t.Fatalf("fixture %s missing source.c or expect.txt", path)
			}
			want, err := strconv.Atoi(expect)
			if err != nil {
				t.Fatalf("expect.txt must be an integer, got %q", expect)
			}

			prog, err := parser.ParseProgram(source)
			if err != nil {
				t.Fatalf("ParseProgram: %v", err)
			}
			code, err := bytecode.EncodeProgram(prog)
			if err != nil {
				t.Fatalf("EncodeProgram: %v", err)
			}
			machine, err := New(code)
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			got, err := machine.Run("main()")
			if err != nil {
				t.Fatalf("Run: %v", err)
			}
			if int(got.AsInt()) != want {
				t.Errorf("main() = %d, want %d", got.AsInt(), want)
			}
		})
	}
}
