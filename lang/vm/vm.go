// Package vm executes the flat byte stream lang/bytecode produces: a
// stack-based interpreter with one operand stack shared across calls
// and one locals frame (and one program counter) per active call —
// unlike the reference this behavior is drawn from, where both the
// locals deque and a per-signature byte cursor were shared globally
// across every call, corrupting anything recursive (see DESIGN.md).
package vm

import (
	"fmt"
	"math"

	"github.com/makian123/C-interpreter/lang/bytecode"
)

const (
	stackSize = 2048
	maxFrames = 1024
)

// Value is the VM's only operand type: either an int32 or an f32,
// tagged by Float. There is no boxing — the opcode performing an
// operation already knows which variant it wants from its own
// identity (see Op.IsFloat), never by inspecting the operand.
type Value struct {
	Float bool
	I     int32
	F     float32
}

func IntValue(i int32) Value     { return Value{I: i} }
func FloatValue(f float32) Value { return Value{Float: true, F: f} }

// AsInt interprets v as an int32, truncating a float if necessary.
func (v Value) AsInt() int32 {
	if v.Float {
		return int32(v.F)
	}
	return v.I
}

// Result is what a call, including the outermost Run invocation,
// produced: either a value from an explicit IRET/FRET, or no value at
// all, when the callee fell off its ENDFUNC without ever returning —
// distinct from a real, explicit zero (see DESIGN.md, "Falling off the
// end of a function body").
type Result struct {
	Value    Value
	HasValue bool
}

// AsInt reports r's exit-status value: the sentinel -1 if r carries
// no value (an unreturned main), the real int otherwise — used only
// at the program boundary (cmd/clc reporting exit values).
func (r Result) AsInt() int32 {
	if !r.HasValue {
		return -1
	}
	return r.Value.AsInt()
}

// frame is one call's private state: its own program counter into the
// shared code slice and its own locals, sized on demand as slots are
// addressed (the encoder never tells the VM a function's local count
// up front).
type frame struct {
	sig    string
	pc     int
	locals []Value
}

func (f *frame) ensure(slot uint32) {
	for uint32(len(f.locals)) <= slot {
		f.locals = append(f.locals, Value{})
	}
}

// VM holds one program's code, its signature-to-entry-point table, the
// shared operand stack, and the active call-frame stack.
type VM struct {
	code  []byte
	funcs map[string]int

	stack []Value
	sp    int

	frames []*frame
}

// New loads code's function table and returns a VM ready to Run an
// entry point.
func New(code []byte) (*VM, error) {
	funcs, err := loadFunctionTable(code)
	if err != nil {
		return nil, err
	}
	return &VM{
		code:  code,
		funcs: funcs,
		stack: make([]Value, stackSize),
	}, nil
}

// HasFunction reports whether signature names a defined function.
func (vm *VM) HasFunction(signature string) bool {
	_, ok := vm.funcs[signature]
	return ok
}

// Run executes signature as the entry point (main() in the ordinary
// case) with no arguments pre-loaded, to completion, and returns the
// result it returned — HasValue false if it fell off the end without
// an explicit return.
func (vm *VM) Run(signature string) (Result, error) {
	start, ok := vm.funcs[signature]
	if !ok {
		return Result{}, fmt.Errorf("vm: no function with signature %q", signature)
	}
	vm.frames = []*frame{{sig: signature, pc: start}}
	vm.sp = 0

	for {
		f := vm.currentFrame()
		if f.pc >= len(vm.code) {
			return Result{}, fmt.Errorf("vm: program counter ran off the end of the code segment in %q", f.sig)
		}
		op := bytecode.Op(vm.code[f.pc])
		f.pc++

		switch op {
		case bytecode.NOP, bytecode.ELSE:
			// no-op: ELSE is a marker the encoder's false-branch jump
			// lands on, never an instruction with its own effect.

		case bytecode.SKIP:
			off := vm.readU32(f)
			f.pc += int(off)

		case bytecode.BACK:
			off := vm.readU32(f)
			f.pc -= int(off)

		case bytecode.ICONST:
			v := vm.readI32(f)
			if err := vm.push(IntValue(v)); err != nil {
				return Result{}, err
			}

		case bytecode.FCONST:
			v := vm.readF32(f)
			if err := vm.push(FloatValue(v)); err != nil {
				return Result{}, err
			}

		case bytecode.ILOAD, bytecode.FLOAD:
			slot := vm.readU32(f)
			f.ensure(slot)
			if err := vm.push(f.locals[slot]); err != nil {
				return Result{}, err
			}

		case bytecode.ISTORE, bytecode.FSTORE:
			slot := vm.readU32(f)
			f.ensure(slot)
			f.locals[slot] = vm.pop()

		case bytecode.POP:
			vm.pop()

		case bytecode.DUP:
			top := vm.stack[vm.sp-1]
			if err := vm.push(top); err != nil {
				return Result{}, err
			}

		case bytecode.IADD, bytecode.FADD, bytecode.ISUB, bytecode.FSUB,
			bytecode.IMUL, bytecode.FMUL, bytecode.IDIV, bytecode.FDIV, bytecode.MOD:
			if err := vm.binaryArith(op); err != nil {
				return Result{}, err
			}

		case bytecode.IEQ, bytecode.FEQ, bytecode.ILE, bytecode.FLE, bytecode.IGE, bytecode.FGE:
			if err := vm.binaryCompare(op); err != nil {
				return Result{}, err
			}

		case bytecode.INC, bytecode.DEC:
			slot := vm.readU32(f)
			f.ensure(slot)
			if op == bytecode.INC {
				f.locals[slot].I++
			} else {
				f.locals[slot].I--
			}

		case bytecode.ITOF:
			v := vm.pop()
			if err := vm.push(FloatValue(float32(v.I))); err != nil {
				return Result{}, err
			}

		case bytecode.FTOI:
			v := vm.pop()
			if err := vm.push(IntValue(int32(v.F))); err != nil {
				return Result{}, err
			}

		case bytecode.IF, bytecode.WHILE, bytecode.FOR:
			off := vm.readU32(f)
			cond := vm.pop()
			if !truthy(cond) {
				f.pc += int(off)
			}

		case bytecode.IRET, bytecode.FRET:
			v := vm.pop()
			result, done := vm.doReturn(Result{Value: v, HasValue: true})
			if done {
				return result, nil
			}

		case bytecode.ENDFUNC:
			// fell off the end without an explicit return: no value
			// exists to hand the caller, distinct from an explicit
			// zero (see DESIGN.md, "Falling off the end of a function
			// body").
			result, done := vm.doReturn(Result{})
			if done {
				return result, nil
			}

		case bytecode.FUNCTIONCALL:
			if err := vm.execCall(f); err != nil {
				return Result{}, err
			}

		case bytecode.FUNCTION, bytecode.FUNCS_BEGIN, bytecode.FUNCS_END:
			return Result{}, fmt.Errorf("vm: opcode %s encountered during execution of %q (pc %d)", op, f.sig, f.pc-1)

		default:
			return Result{}, fmt.Errorf("vm: unknown opcode %s in %q (pc %d)", op, f.sig, f.pc-1)
		}
	}
}

// execCall reads a FUNCTIONCALL's signature and argument count,
// threads the popped argument values into the callee's fresh locals
// frame (slot 0 receives the first argument), and pushes that frame.
// The caller's own pc is already positioned past the FUNCTIONCALL
// payload, so it resumes there once the callee returns.
func (vm *VM) execCall(caller *frame) error {
	sig, err := vm.readLine(caller)
	if err != nil {
		return err
	}
	argc := vm.readU32(caller)

	start, ok := vm.funcs[sig]
	if !ok {
		return fmt.Errorf("vm: call to undefined function %q", sig)
	}

	locals := make([]Value, argc)
	for i := int(argc) - 1; i >= 0; i-- {
		locals[i] = vm.pop()
	}

	if len(vm.frames) >= maxFrames {
		return fmt.Errorf("vm: call stack overflow calling %q", sig)
	}
	vm.frames = append(vm.frames, &frame{sig: sig, pc: start, locals: locals})
	return nil
}

// doReturn pops the current frame and hands r to the caller: pushed
// onto the shared stack if one remains and r carries a value (per
// spec §4.5, "on return, if the callee returned a value, push it"),
// or returned as the program's final result if the outermost frame
// just finished.
func (vm *VM) doReturn(r Result) (Result, bool) {
	vm.frames = vm.frames[:len(vm.frames)-1]
	if len(vm.frames) == 0 {
		return r, true
	}
	if r.HasValue {
		vm.push(r.Value)
	}
	return Result{}, false
}

func (vm *VM) currentFrame() *frame { return vm.frames[len(vm.frames)-1] }

func (vm *VM) push(v Value) error {
	if vm.sp >= len(vm.stack) {
		return fmt.Errorf("vm: operand stack overflow")
	}
	vm.stack[vm.sp] = v
	vm.sp++
	return nil
}

func (vm *VM) pop() Value {
	vm.sp--
	return vm.stack[vm.sp]
}

func truthy(v Value) bool {
	if v.Float {
		return v.F != 0
	}
	return v.I != 0
}

// ==== payload readers: each advances the current frame's pc past
// the bytes it consumes. ====

func (vm *VM) readU32(f *frame) uint32 {
	v := uint32(vm.code[f.pc]) | uint32(vm.code[f.pc+1])<<8 | uint32(vm.code[f.pc+2])<<16 | uint32(vm.code[f.pc+3])<<24
	f.pc += 4
	return v
}

func (vm *VM) readI32(f *frame) int32 { return int32(vm.readU32(f)) }

func (vm *VM) readF32(f *frame) float32 { return math.Float32frombits(vm.readU32(f)) }

func (vm *VM) readLine(f *frame) (string, error) {
	start := f.pc
	for f.pc < len(vm.code) && vm.code[f.pc] != '\n' {
		f.pc++
	}
	if f.pc >= len(vm.code) {
		return "", fmt.Errorf("vm: unterminated signature at offset %d", start)
	}
	s := string(vm.code[start:f.pc])
	f.pc++ // consume '\n'
	return s, nil
}

// binaryArith pops right then left (left was pushed first) and pushes
// the result typed by the opcode's own identity, never by comparing
// against FCONST the way the reference this spec was drawn from did
// (see DESIGN.md, "float/int dispatch").
func (vm *VM) binaryArith(op bytecode.Op) error {
	right := vm.pop()
	left := vm.pop()
	if op.IsFloat() {
		l, r := asFloat(left), asFloat(right)
		var result float32
		switch op {
		case bytecode.FADD:
			result = l + r
		case bytecode.FSUB:
			result = l - r
		case bytecode.FMUL:
			result = l * r
		case bytecode.FDIV:
			result = l / r
		}
		return vm.push(FloatValue(result))
	}
	l, r := left.I, right.I
	var result int32
	switch op {
	case bytecode.IADD:
		result = l + r
	case bytecode.ISUB:
		result = l - r
	case bytecode.IMUL:
		result = l * r
	case bytecode.IDIV:
		if r == 0 {
			return fmt.Errorf("vm: integer division by zero")
		}
		result = l / r
	case bytecode.MOD:
		if r == 0 {
			return fmt.Errorf("vm: modulo by zero")
		}
		result = l % r
	}
	return vm.push(IntValue(result))
}

func (vm *VM) binaryCompare(op bytecode.Op) error {
	right := vm.pop()
	left := vm.pop()
	var result bool
	if op.IsFloat() {
		l, r := asFloat(left), asFloat(right)
		switch op {
		case bytecode.FEQ:
			result = l == r
		case bytecode.FLE:
			result = l < r
		case bytecode.FGE:
			result = l > r
		}
	} else {
		l, r := left.I, right.I
		switch op {
		case bytecode.IEQ:
			result = l == r
		case bytecode.ILE:
			result = l < r
		case bytecode.IGE:
			result = l > r
		}
	}
	if result {
		return vm.push(IntValue(1))
	}
	return vm.push(IntValue(0))
}

func asFloat(v Value) float32 {
	if v.Float {
		return v.F
	}
	return float32(v.I)
}
