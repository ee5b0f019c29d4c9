package vm

import (
	"testing"

	"github.com/makian123/C-interpreter/lang/bytecode"
	"github.com/makian123/C-interpreter/lang/parser"
)

func run(t *testing.T, src string) Result {
	t.Helper()
	prog, err := parser.ParseProgram(src)
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
	v, err := machine.Run("main()")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	return v
}

func TestArithmeticPrecedence(t *testing.T) {
	v := run(t, `int main(){ return 2+3*4; }`)
	if v.AsInt() != 14 {
		t.Errorf("2+3*4 = %d, want 14", v.AsInt())
	}
}

func TestRecursiveFibonacci(t *testing.T) {
	v := run(t, `
		int fib(int n){
			if (n < 2) { return n; }
			return fib(n-1) + fib(n-2);
		}
		int main(){ return fib(10); }
	`)
	if v.AsInt() != 55 {
		t.Errorf("fib(10) = %d, want 55", v.AsInt())
	}
}

func TestWhileLoopAccumulates(t *testing.T) {
	v := run(t, `
		int main(){
			int s;
			int i;
			s = 0;
			i = 0;
			while (i < 5) {
				s = s + i;
				i = i + 1;
			}
			return s;
		}
	`)
	if v.AsInt() != 10 {
		t.Errorf("sum 0..4 = %d, want 10", v.AsInt())
	}
}

func TestForLoopWithBreakAndContinue(t *testing.T) {
	v := run(t, `
		int main(){
			int s;
			s = 0;
			for (int i = 0; i < 10; i = i + 1) {
				if (i == 5) { break; }
				if (i == 2) { continue; }
				s = s + i;
			}
			return s;
		}
	`)
	// 0 + 1 + 3 + 4 = 8 (2 skipped by continue, loop stops before 5)
	if v.AsInt() != 8 {
		t.Errorf("got %d, want 8", v.AsInt())
	}
}

func TestFunctionArgumentsAreThreadedIntoCallee(t *testing.T) {
	v := run(t, `
		int sub(int a, int b){ return a-b; }
		int main(){ return sub(10, 3); }
	`)
	if v.AsInt() != 7 {
		t.Errorf("sub(10,3) = %d, want 7 (argument order/threading bug would give a different result)", v.AsInt())
	}
}

func TestFloatArithmeticUsesFloatPath(t *testing.T) {
	v := run(t, `
		float half(float x){ return x/2.0; }
		int main(){ return (int)half(7.0); }
	`)
	if v.AsInt() != 3 {
		t.Errorf("(int)(7.0/2.0) = %d, want 3", v.AsInt())
	}
}

func TestElseBranchRunsWhenConditionIsFalse(t *testing.T) {
	v := run(t, `
		int main(){
			int x;
			if (1 < 0) {
				x = 1;
			} else {
				x = 2;
			}
			return x;
		}
	`)
	if v.AsInt() != 2 {
		t.Errorf("got %d, want 2 (false branch should run the else body, not abort)", v.AsInt())
	}
}

func TestMainFallingOffTheEndYieldsNoValueSentinel(t *testing.T) {
	v := run(t, `int main(){ int x; x = 1; }`)
	if v.HasValue {
		t.Fatalf("main() without a return statement should carry no value, got %v", v.Value)
	}
	if v.AsInt() != -1 {
		t.Errorf("main() with no return statement = %d, want the -1 sentinel", v.AsInt())
	}
}

func TestEachCallGetsItsOwnLocalsFrame(t *testing.T) {
	// Two concurrently-live calls to the same signature (via
	// recursion) must not see each other's locals: each level keeps
	// its own copy of n.
	v := run(t, `
		int count(int n){
			int acc;
			acc = n;
			if (n < 1) { return acc; }
			return acc + count(n-1);
		}
		int main(){ return count(3); }
	`)
	if v.AsInt() != 6 {
		t.Errorf("count(3) = %d, want 6 (3+2+1+0)", v.AsInt())
	}
}
