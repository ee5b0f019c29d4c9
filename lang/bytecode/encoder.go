package bytecode

import (
	"fmt"
	"math"
	"strconv"

	"github.com/makian123/C-interpreter/lang/lexer"
	"github.com/makian123/C-interpreter/lang/parser"
)

// binding is a local variable's byte-code identity: which slot it lives
// in and which opcode family (I or F) addresses it.
type binding struct {
	slot    uint32
	isFloat bool
}

// frame is one pushed scope of locals: a function entry, a loop's own
// initializer scope, or a nested {} block inside control flow. Every
// frame pop releases the slots it allocated back to the encoder, so
// slot numbers stay a contiguous prefix within the enclosing function
// rather than growing across sibling blocks (see DESIGN.md).
type frame struct {
	names map[string]binding
}

// Encoder turns a parsed program into the flat byte stream the VM
// consumes. All mutable encoding state — the slot-frame stack, the
// next free slot, and the loop/break bookkeeping — lives on this
// struct rather than in package-level variables, so a single process
// can encode multiple programs (or, eventually, encode concurrently)
// without one invocation's state bleeding into another's (see
// DESIGN.md, "Per-package grounding", lang/bytecode).
type Encoder struct {
	code []byte

	frames   []*frame
	nextSlot uint32

	// loopBegins[i] is the byte position BACK jumps to for the i'th
	// (innermost-last) enclosing loop: the position just before its
	// condition is (re-)evaluated.
	loopBegins []int
	// breakSites[i] collects the byte positions of the reserved SKIP
	// offsets emitted by break statements inside loop i, patched once
	// the loop's end position is known.
	breakSites [][]int
	// postLoop[i] is the for-loop's post clause, re-emitted by a
	// continue statement before it jumps back to loopBegins[i]. nil
	// for while loops, which have no post clause.
	postLoop []parser.Stmt
}

// NewEncoder returns an Encoder ready to encode one program.
func NewEncoder() *Encoder {
	return &Encoder{}
}

// EncodeProgram writes the whole-program preamble (the FUNCS_BEGIN
// signature manifest) followed by one FUNCTION record per declared
// function, and returns the resulting byte stream.
func EncodeProgram(prog *parser.Program) ([]byte, error) {
	e := NewEncoder()

	e.writeOp(FUNCS_BEGIN)
	for _, fn := range prog.Funcs {
		if fn.Body == nil {
			continue // forward declaration only, no call target
		}
		e.writeString(fn.Func.Signature())
	}
	e.writeOp(FUNCS_END)

	for _, fn := range prog.Funcs {
		if fn.Body == nil {
			continue
		}
		if err := e.emitFuncDecl(fn); err != nil {
			return nil, err
		}
	}
	return e.code, nil
}

// ==== low-level byte emission ====

func (e *Encoder) pos() int { return len(e.code) }

func (e *Encoder) writeOp(op Op) { e.code = append(e.code, byte(op)) }

func (e *Encoder) writeU32(v uint32) {
	e.code = append(e.code, byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
}

func (e *Encoder) writeI32(v int32) { e.writeU32(uint32(v)) }

func (e *Encoder) writeF32(v float32) { e.writeU32(math.Float32bits(v)) }

// writeString emits s's bytes followed by the newline the preamble and
// FUNCTION/FUNCTIONCALL payloads use as their terminator.
func (e *Encoder) writeString(s string) {
	e.code = append(e.code, []byte(s)...)
	e.code = append(e.code, '\n')
}

// reserveU32 writes a zero placeholder and returns its byte position,
// to be overwritten later by patchU32 once the jump target is known.
func (e *Encoder) reserveU32() int {
	p := e.pos()
	e.writeU32(0)
	return p
}

func (e *Encoder) patchU32(at int, v uint32) {
	e.code[at] = byte(v)
	e.code[at+1] = byte(v >> 8)
	e.code[at+2] = byte(v >> 16)
	e.code[at+3] = byte(v >> 24)
}

// ==== slot frames ====

func (e *Encoder) pushFrame() { e.frames = append(e.frames, &frame{names: map[string]binding{}}) }

// popFrame releases every slot the popped frame allocated.
func (e *Encoder) popFrame() {
	top := e.frames[len(e.frames)-1]
	e.nextSlot -= uint32(len(top.names))
	e.frames = e.frames[:len(e.frames)-1]
}

// declare binds name to a freshly allocated slot in the current
// (innermost) frame.
func (e *Encoder) declare(name string, isFloat bool) uint32 {
	slot := e.nextSlot
	e.nextSlot++
	e.frames[len(e.frames)-1].names[name] = binding{slot: slot, isFloat: isFloat}
	return slot
}

// lookup walks the frame stack innermost-first, matching the scope
// tree's own shadowing rule: the closest declaration wins.
func (e *Encoder) lookup(name string) (binding, bool) {
	for i := len(e.frames) - 1; i >= 0; i-- {
		if b, ok := e.frames[i].names[name]; ok {
			return b, true
		}
	}
	return binding{}, false
}

// ==== functions ====

func (e *Encoder) emitFuncDecl(fn *parser.FuncDeclStmt) error {
	e.writeOp(FUNCTION)
	e.writeString(fn.Func.Signature())

	e.pushFrame()
	for _, p := range fn.Func.Params {
		e.declare(p.Name.Lexeme, p.Type.IsFloat())
	}
	for _, stmt := range fn.Body.Stmts {
		if err := e.emitStmt(stmt); err != nil {
			return err
		}
	}
	e.popFrame()

	e.writeOp(ENDFUNC)
	return nil
}

// ==== expressions ====

func (e *Encoder) emitExpr(expr parser.Expr) error {
	switch ex := expr.(type) {
	case *parser.ValueExpr:
		return e.emitValue(ex)
	case *parser.BinaryExpr:
		return e.emitBinary(ex)
	case *parser.UnaryExpr:
		return e.emitUnary(ex)
	case *parser.CastExpr:
		return e.emitCast(ex)
	case *parser.FuncCallExpr:
		return e.emitCall(ex)
	default:
		return fmt.Errorf("bytecode: unhandled expression type %T", expr)
	}
}

func (e *Encoder) emitValue(v *parser.ValueExpr) error {
	if v.ResolvedVar != nil {
		b, ok := e.lookup(v.ResolvedVar.Name.Lexeme)
		if !ok {
			return fmt.Errorf("bytecode: %q has no allocated slot", v.ResolvedVar.Name.Lexeme)
		}
		if b.isFloat {
			e.writeOp(FLOAD)
		} else {
			e.writeOp(ILOAD)
		}
		e.writeU32(b.slot)
		return nil
	}

	switch v.Tok.Kind {
	case lexer.FLOAT:
		f, err := strconv.ParseFloat(v.Tok.Lexeme, 32)
		if err != nil {
			return fmt.Errorf("bytecode: bad float literal %q: %w", v.Tok.Lexeme, err)
		}
		e.writeOp(FCONST)
		e.writeF32(float32(f))
		return nil
	default:
		n, err := strconv.ParseInt(v.Tok.Lexeme, 10, 32)
		if err != nil {
			return fmt.Errorf("bytecode: bad integer literal %q: %w", v.Tok.Lexeme, err)
		}
		e.writeOp(ICONST)
		e.writeI32(int32(n))
		return nil
	}
}

func (e *Encoder) emitBinary(b *parser.BinaryExpr) error {
	if err := e.emitExpr(b.Left); err != nil {
		return err
	}
	if err := e.emitExpr(b.Right); err != nil {
		return err
	}
	floating := b.Type != nil && b.Type.IsFloat()
	switch b.Op.Lexeme {
	case "+":
		e.writeOp(pick(floating, FADD, IADD))
	case "-":
		e.writeOp(pick(floating, FSUB, ISUB))
	case "*":
		e.writeOp(pick(floating, FMUL, IMUL))
	case "/":
		e.writeOp(pick(floating, FDIV, IDIV))
	case "%":
		e.writeOp(MOD)
	case "==":
		e.writeOp(pick(floating, FEQ, IEQ))
	case "<":
		e.writeOp(pick(floating, FLE, ILE))
	case ">":
		e.writeOp(pick(floating, FGE, IGE))
	default:
		return fmt.Errorf("bytecode: unknown binary operator %q", b.Op.Lexeme)
	}
	return nil
}

func pick(cond bool, ifTrue, ifFalse Op) Op {
	if cond {
		return ifTrue
	}
	return ifFalse
}

func (e *Encoder) emitUnary(u *parser.UnaryExpr) error {
	b, ok := e.lookup(u.Operand.ResolvedVar.Name.Lexeme)
	if !ok {
		return fmt.Errorf("bytecode: %q has no allocated slot", u.Operand.ResolvedVar.Name.Lexeme)
	}
	switch u.Op.Lexeme {
	case "++":
		e.writeOp(INC)
	case "--":
		e.writeOp(DEC)
	default:
		return fmt.Errorf("bytecode: unknown unary operator %q", u.Op.Lexeme)
	}
	e.writeU32(b.slot)
	return nil
}

// emitCast only emits a conversion opcode when the source and
// destination cross the int/float divide: the VM has a single
// floating-point width, so a float<->double cast (same IsFloat, a
// different structural Type) is already a no-op on the wire.
func (e *Encoder) emitCast(c *parser.CastExpr) error {
	if err := e.emitExpr(c.Inner); err != nil {
		return err
	}
	if c.OrigType.IsFloat() == c.DestType.IsFloat() {
		return nil
	}
	if c.DestType.IsFloat() {
		e.writeOp(ITOF)
	} else {
		e.writeOp(FTOI)
	}
	return nil
}

func (e *Encoder) emitCall(c *parser.FuncCallExpr) error {
	for _, arg := range c.Args {
		if err := e.emitExpr(arg); err != nil {
			return err
		}
	}
	e.writeOp(FUNCTIONCALL)
	e.writeString(c.ResolvedFunc.Signature())
	e.writeU32(uint32(len(c.Args)))
	return nil
}

// ==== statements ====

func (e *Encoder) emitStmt(stmt parser.Stmt) error {
	switch s := stmt.(type) {
	case *parser.BlockStmt:
		return e.emitBlock(s)
	case *parser.VarDeclStmt:
		return e.emitVarDecl(s)
	case *parser.VarAssignStmt:
		return e.emitVarAssign(s)
	case *parser.IfStmt:
		return e.emitIf(s)
	case *parser.WhileStmt:
		return e.emitWhile(s)
	case *parser.ForStmt:
		return e.emitFor(s)
	case *parser.BreakStmt:
		return e.emitBreak()
	case *parser.ContinueStmt:
		return e.emitContinue()
	case *parser.ExprStmt:
		if err := e.emitExpr(s.Expr); err != nil {
			return err
		}
		// INC/DEC update the slot in place and push nothing to discard.
		if _, ok := s.Expr.(*parser.UnaryExpr); !ok {
			e.writeOp(POP)
		}
		return nil
	case *parser.ReturnStmt:
		return e.emitReturn(s)
	default:
		return fmt.Errorf("bytecode: unhandled statement type %T", stmt)
	}
}

func (e *Encoder) emitBlock(b *parser.BlockStmt) error {
	e.pushFrame()
	for _, stmt := range b.Stmts {
		if err := e.emitStmt(stmt); err != nil {
			return err
		}
	}
	e.popFrame()
	return nil
}

func (e *Encoder) emitVarDecl(v *parser.VarDeclStmt) error {
	slot := e.declare(v.Var.Name.Lexeme, v.Var.Type.IsFloat())
	if v.Init == nil {
		return nil
	}
	if err := e.emitExpr(v.Init); err != nil {
		return err
	}
	e.writeOp(pick(v.Var.Type.IsFloat(), FSTORE, ISTORE))
	e.writeU32(slot)
	return nil
}

func (e *Encoder) emitVarAssign(v *parser.VarAssignStmt) error {
	b, ok := e.lookup(v.Name.Lexeme)
	if !ok {
		return fmt.Errorf("bytecode: %q has no allocated slot", v.Name.Lexeme)
	}
	if err := e.emitExpr(v.Val); err != nil {
		return err
	}
	e.writeOp(pick(b.isFloat, FSTORE, ISTORE))
	e.writeU32(b.slot)
	return nil
}

func (e *Encoder) emitReturn(r *parser.ReturnStmt) error {
	if err := e.emitExpr(r.Val); err != nil {
		return err
	}
	e.writeOp(pick(exprIsFloat(r.Val), FRET, IRET))
	return nil
}

// exprIsFloat reports whether expr's cached static type (attached by
// the parser) is the VM's float family, without walking the scope
// tree.
func exprIsFloat(expr parser.Expr) bool {
	switch e := expr.(type) {
	case *parser.ValueExpr:
		if e.ResolvedVar != nil {
			return e.ResolvedVar.Type.IsFloat()
		}
		return e.Tok.Kind == lexer.FLOAT
	case *parser.BinaryExpr:
		return e.Type != nil && e.Type.IsFloat()
	case *parser.CastExpr:
		return e.DestType.IsFloat()
	case *parser.FuncCallExpr:
		return e.ResolvedFunc != nil && e.ResolvedFunc.ReturnType.IsFloat()
	case *parser.UnaryExpr:
		return exprIsFloat(e.Operand)
	}
	return false
}

// emitIf follows the reference encoder's back-patch recipe exactly:
// IF reserves a false-skip offset that lands just past the matching
// SKIP's own offset field (i.e. at the else branch, or past the whole
// statement if there is none); SKIP's offset lands past the else
// branch (0 if there is none).
func (e *Encoder) emitIf(s *parser.IfStmt) error {
	if err := e.emitExpr(s.Cond); err != nil {
		return err
	}
	e.writeOp(IF)
	falseSkip := e.reserveU32()
	afterIfOffset := e.pos()

	if err := e.emitStmt(s.Then); err != nil {
		return err
	}

	e.writeOp(SKIP)
	skipElse := e.reserveU32()
	afterSkipOffset := e.pos()
	e.patchU32(falseSkip, uint32(afterSkipOffset-afterIfOffset))

	if s.Else != nil {
		e.writeOp(ELSE)
		if err := e.emitStmt(s.Else); err != nil {
			return err
		}
	}
	e.patchU32(skipElse, uint32(e.pos()-afterSkipOffset))
	return nil
}

// emitWhile mirrors the reference: condition re-evaluated at
// loopBegin every iteration, WHILE's offset skips past the trailing
// BACK once the condition is falsy.
func (e *Encoder) emitWhile(s *parser.WhileStmt) error {
	loopBegin := e.pos()
	if err := e.emitExpr(s.Cond); err != nil {
		return err
	}
	e.writeOp(WHILE)
	falseSkip := e.reserveU32()
	afterOffset := e.pos()

	e.breakSites = append(e.breakSites, nil)
	e.loopBegins = append(e.loopBegins, loopBegin)
	e.postLoop = append(e.postLoop, nil)

	if err := e.emitStmt(s.Body); err != nil {
		return err
	}

	e.writeOp(BACK)
	e.writeU32(uint32(e.pos() + 4 - loopBegin))

	end := e.pos()
	e.patchU32(falseSkip, uint32(end-afterOffset))
	for _, site := range e.breakSites[len(e.breakSites)-1] {
		e.patchU32(site, uint32(end-(site+4)))
	}
	e.breakSites = e.breakSites[:len(e.breakSites)-1]
	e.loopBegins = e.loopBegins[:len(e.loopBegins)-1]
	e.postLoop = e.postLoop[:len(e.postLoop)-1]
	return nil
}

// emitFor gives the loop its own slot frame (for the initializer, if
// any) in addition to the body's own frame, and records PostLoop so a
// continue statement can re-emit it before jumping back.
func (e *Encoder) emitFor(s *parser.ForStmt) error {
	e.pushFrame()
	if s.Initial != nil {
		if err := e.emitStmt(s.Initial); err != nil {
			return err
		}
	}

	loopBegin := e.pos()
	if s.Condition != nil {
		if err := e.emitExpr(s.Condition); err != nil {
			return err
		}
	} else {
		// no condition: push a true constant so FOR always falls through
		e.writeOp(ICONST)
		e.writeI32(1)
	}
	e.writeOp(FOR)
	falseSkip := e.reserveU32()
	afterOffset := e.pos()

	e.breakSites = append(e.breakSites, nil)
	e.loopBegins = append(e.loopBegins, loopBegin)
	e.postLoop = append(e.postLoop, s.PostLoop)

	if err := e.emitStmt(s.Body); err != nil {
		return err
	}
	if s.PostLoop != nil {
		if err := e.emitStmt(s.PostLoop); err != nil {
			return err
		}
	}

	e.writeOp(BACK)
	e.writeU32(uint32(e.pos() + 4 - loopBegin))

	end := e.pos()
	e.patchU32(falseSkip, uint32(end-afterOffset))
	for _, site := range e.breakSites[len(e.breakSites)-1] {
		e.patchU32(site, uint32(end-(site+4)))
	}
	e.breakSites = e.breakSites[:len(e.breakSites)-1]
	e.loopBegins = e.loopBegins[:len(e.loopBegins)-1]
	e.postLoop = e.postLoop[:len(e.postLoop)-1]

	e.popFrame()
	return nil
}

func (e *Encoder) emitBreak() error {
	if len(e.breakSites) == 0 {
		return fmt.Errorf("bytecode: break outside of a loop")
	}
	e.writeOp(SKIP)
	site := e.reserveU32()
	top := len(e.breakSites) - 1
	e.breakSites[top] = append(e.breakSites[top], site)
	return nil
}

func (e *Encoder) emitContinue() error {
	if len(e.loopBegins) == 0 {
		return fmt.Errorf("bytecode: continue outside of a loop")
	}
	top := len(e.loopBegins) - 1
	if post := e.postLoop[top]; post != nil {
		if err := e.emitStmt(post); err != nil {
			return err
		}
	}
	e.writeOp(BACK)
	e.writeU32(uint32(e.pos() + 4 - e.loopBegins[top]))
	return nil
}
