// Package parser consumes a token sequence and builds a typed AST plus a
// tree of Scopes holding types, variables, and function tables. It
// resolves identifiers, inserts implicit numeric casts, and evaluates
// expression types as it goes. The parser never recovers from an error:
// the first unexpected token fails the whole phase and there is no
// partial AST.
package parser

import (
	"fmt"
	"strconv"

	"github.com/makian123/C-interpreter/lang/lexer"
)

// Error reports the offending token's position, per spec §7.
type Error struct {
	Line int
	Col  int
	Msg  string
}

func (e *Error) Error() string {
	return fmt.Sprintf("parse error at line %d, col %d: %s", e.Line, e.Col, e.Msg)
}

func errAt(tok lexer.Token, format string, args ...any) error {
	return &Error{Line: tok.Line, Col: tok.Col, Msg: fmt.Sprintf(format, args...)}
}

// precedence is the Pratt binding-power table: higher binds tighter.
// Any operator absent from the table has precedence 0.
var precedence = map[lexer.Kind]int{
	lexer.STAR:    3,
	lexer.SLASH:   3,
	lexer.PLUS:    2,
	lexer.MINUS:   2,
	lexer.LESS:    1,
	lexer.GREATER: 1,
	lexer.EQUALS:  1,
}

// Parser holds the lexer cursor and the scope tree being built.
type Parser struct {
	lex     *lexer.Lexer
	scopes  *ScopeTree
	current ScopeID
}

// ParseProgram tokenizes and parses src, returning the AST plus the
// scope tree built while parsing. The AST nodes carry their resolved
// variables, functions and types, so the encoder does not read the tree.
func ParseProgram(src string) (*Program, error) {
	lx, err := lexer.New(src)
	if err != nil {
		return nil, err
	}
	tree, global := NewScopeTree()
	p := &Parser{lex: lx, scopes: tree, current: global}

	var funcs []*FuncDeclStmt
	for p.lex.Peek().Kind != lexer.NONE {
		decl, err := p.parseFuncDecl()
		if err != nil {
			return nil, err
		}
		funcs = append(funcs, decl)
	}
	return &Program{Scopes: tree, Global: global, Funcs: funcs}, nil
}

func (p *Parser) expect(k lexer.Kind) (lexer.Token, error) {
	tok := p.lex.Peek()
	if tok.Kind != k {
		return tok, errAt(tok, "expected %s, got %s %q", k, tok.Kind, tok.Lexeme)
	}
	return p.lex.Advance(), nil
}

// ==== Types ====

// parseType consumes a type name (a primitive type keyword, "struct"
// followed by an identifier, or an identifier naming a type or typedef)
// and resolves it against the current scope. It consumes no qualifier:
// parseVarDecl handles a leading "const", and "unsigned" is rejected.
func (p *Parser) parseType() (*Type, error) {
	tok := p.lex.Peek()

	if tok.Kind == lexer.STRUCT {
		p.lex.Advance()
		name, err := p.expect(lexer.IDENT)
		if err != nil {
			return nil, err
		}
		typ := p.scopes.FindType(p.current, name.Lexeme)
		if typ == nil {
			return nil, errAt(name, "unknown struct type %q", name.Lexeme)
		}
		return typ, nil
	}

	if !tok.Kind.IsTypeKeyword() && tok.Kind != lexer.IDENT {
		return nil, errAt(tok, "expected a type name, got %s %q", tok.Kind, tok.Lexeme)
	}
	p.lex.Advance()
	typ := p.scopes.FindType(p.current, tok.Lexeme)
	if typ == nil {
		return nil, errAt(tok, "unknown type %q", tok.Lexeme)
	}
	return typ, nil
}

// looksLikeType reports whether the token at the cursor starts a type
// name, used to disambiguate a cast `(T) expr` from a grouped
// expression `(expr)` without consuming input.
func (p *Parser) looksLikeType(tok lexer.Token) bool {
	return tok.Kind.IsTypeKeyword() || tok.Kind == lexer.STRUCT
}

// ==== Expressions ====

func (p *Parser) parsePrimary() (Expr, error) {
	tok := p.lex.Peek()

	switch tok.Kind {
	case lexer.INTEGER, lexer.FLOAT:
		p.lex.Advance()
		return &ValueExpr{Tok: tok}, nil

	case lexer.LPAREN:
		p.lex.Advance()
		if p.looksLikeType(p.lex.Peek()) {
			destType, err := p.parseType()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(lexer.RPAREN); err != nil {
				return nil, err
			}
			inner, err := p.parseExpr(0)
			if err != nil {
				return nil, err
			}
			origType := p.EvalType(inner)
			return &CastExpr{OrigType: origType, DestType: destType, Inner: inner}, nil
		}
		inner, err := p.parseExpr(0)
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(lexer.RPAREN); err != nil {
			return nil, err
		}
		return inner, nil

	case lexer.IDENT:
		if tok.Lexeme == "sizeof" {
			return p.parseSizeof()
		}
		p.lex.Advance()
		if p.lex.Peek().Kind == lexer.LPAREN {
			return p.parseFuncCall(tok)
		}
		v, _ := p.scopes.FindVar(p.current, tok.Lexeme)
		if v == nil {
			return nil, errAt(tok, "undeclared identifier %q", tok.Lexeme)
		}
		return &ValueExpr{Tok: tok, ResolvedVar: v}, nil
	}

	return nil, errAt(tok, "unexpected token %s %q in expression", tok.Kind, tok.Lexeme)
}

func (p *Parser) parseSizeof() (Expr, error) {
	kw := p.lex.Advance() // "sizeof"
	if _, err := p.expect(lexer.LPAREN); err != nil {
		return nil, err
	}
	typ, err := p.parseType()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.RPAREN); err != nil {
		return nil, err
	}
	return &ValueExpr{Tok: lexer.Token{
		Kind: lexer.INTEGER, Line: kw.Line, Col: kw.Col, Lexeme: strconv.Itoa(typ.Size),
	}}, nil
}

func (p *Parser) parseFuncCall(name lexer.Token) (Expr, error) {
	if _, err := p.expect(lexer.LPAREN); err != nil {
		return nil, err
	}
	fn := p.scopes.FindFunc(p.current, name.Lexeme)
	if fn == nil {
		return nil, errAt(name, "call to undeclared function %q", name.Lexeme)
	}

	var args []Expr
	for p.lex.Peek().Kind != lexer.RPAREN {
		if len(args) > 0 {
			if _, err := p.expect(lexer.COMMA); err != nil {
				return nil, err
			}
		}
		arg, err := p.parseExpr(0)
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
	}
	p.lex.Advance() // ')'

	if len(args) != len(fn.Params) {
		return nil, errAt(name, "function %q expects %d argument(s), got %d", name.Lexeme, len(fn.Params), len(args))
	}
	for i, arg := range args {
		argType := p.EvalType(arg)
		paramType := fn.Params[i].Type
		if argType.Equal(paramType) {
			continue
		}
		if !p.castAllowed(argType, paramType) {
			return nil, errAt(name, "argument %d to %q: cannot convert %s to %s", i+1, name.Lexeme, argType.Name.Lexeme, paramType.Name.Lexeme)
		}
		args[i] = &CastExpr{OrigType: argType, DestType: paramType, Inner: arg}
	}

	return &FuncCallExpr{Callee: name, Args: args, ResolvedFunc: fn}, nil
}

// castAllowed disallows struct<->struct conversions; any other
// primitive<->primitive conversion is permitted.
func (p *Parser) castAllowed(from, to *Type) bool {
	if from.Shape == ShapeStruct || to.Shape == ShapeStruct {
		return false
	}
	return true
}

// coerce wraps expr in a CastExpr when its static type doesn't match
// target, the same implicit-conversion rule parseFuncCall applies to
// call arguments, applied here to initializers and assignments so a
// declared variable's slot always holds the type it was declared
// with.
func (p *Parser) coerce(expr Expr, target *Type, at lexer.Token) (Expr, error) {
	exprType := p.EvalType(expr)
	if exprType.Equal(target) {
		return expr, nil
	}
	if !p.castAllowed(exprType, target) {
		return nil, errAt(at, "cannot convert %s to %s", exprType.Name.Lexeme, target.Name.Lexeme)
	}
	return &CastExpr{OrigType: exprType, DestType: target, Inner: expr}, nil
}

func (p *Parser) parseExpr(minPrec int) (Expr, error) {
	left, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for {
		op := p.lex.Peek()
		prec := precedence[op.Kind]
		if prec < minPrec || prec == 0 {
			break
		}
		p.lex.Advance()
		right, err := p.parseExpr(prec + 1)
		if err != nil {
			return nil, err
		}
		bin := &BinaryExpr{Left: left, Op: op, Right: right}
		bin.Type = p.EvalType(bin)
		left = bin
	}
	return left, nil
}

// EvalType computes the static type of expr within the parser's current
// scope, per spec §4.2.
func (p *Parser) EvalType(expr Expr) *Type {
	return p.evalTypeIn(expr, p.current)
}

func (p *Parser) evalTypeIn(expr Expr, scope ScopeID) *Type {
	switch e := expr.(type) {
	case *ValueExpr:
		switch e.Tok.Kind {
		case lexer.INTEGER:
			return p.scopes.FindType(scope, "int")
		case lexer.FLOAT:
			return p.scopes.FindType(scope, "double")
		default:
			if v, _ := p.scopes.FindVar(scope, e.Tok.Lexeme); v != nil {
				return v.Type
			}
			return nil
		}
	case *BinaryExpr:
		lt := p.evalTypeIn(e.Left, scope)
		rt := p.evalTypeIn(e.Right, scope)
		if lt.Equal(rt) {
			return lt
		}
		// "non-integer wins": promote the integer side to the other
		// side's type, whatever its width (long+float is float). When
		// both sides are integer types of different names, the right
		// side's type is used.
		if !lt.IsFloat() {
			return rt
		}
		return lt
	case *CastExpr:
		return e.DestType
	case *FuncCallExpr:
		fn := p.scopes.FindFunc(scope, e.Callee.Lexeme)
		if fn == nil {
			return nil
		}
		return fn.ReturnType
	case *UnaryExpr:
		return p.evalTypeIn(e.Operand, scope)
	}
	return nil
}

// ==== Statements ====

func (p *Parser) parseStmt() (Stmt, error) {
	tok := p.lex.Peek()
	switch tok.Kind {
	case lexer.LBRACE:
		return p.parseBlock()
	case lexer.IF:
		return p.parseIf()
	case lexer.WHILE:
		return p.parseWhile()
	case lexer.FOR:
		return p.parseFor()
	case lexer.RETURN:
		return p.parseReturn()
	case lexer.BREAK:
		p.lex.Advance()
		if _, err := p.expect(lexer.SEMICOLON); err != nil {
			return nil, err
		}
		return &BreakStmt{}, nil
	case lexer.CONTINUE:
		p.lex.Advance()
		if _, err := p.expect(lexer.SEMICOLON); err != nil {
			return nil, err
		}
		return &ContinueStmt{}, nil
	}

	if tok.Kind.IsTypeKeyword() || tok.Kind == lexer.STRUCT || tok.Kind == lexer.CONST || tok.Kind == lexer.UNSIGNED {
		return p.parseVarDecl()
	}

	if tok.Kind == lexer.IDENT {
		snapshot := p.lex.Index()
		name := p.lex.Advance()
		if p.lex.Peek().Kind == lexer.ASSIGN {
			return p.parseVarAssignRest(name)
		}
		if p.lex.Peek().Kind == lexer.PLUS_PLUS || p.lex.Peek().Kind == lexer.MINUS_MINUS {
			unary, err := p.parseIncDec(name)
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(lexer.SEMICOLON); err != nil {
				return nil, err
			}
			return &ExprStmt{Expr: unary}, nil
		}
		p.lex.SetIndex(snapshot)
		expr, err := p.parseExpr(0)
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(lexer.SEMICOLON); err != nil {
			return nil, err
		}
		return &ExprStmt{Expr: expr}, nil
	}

	return nil, errAt(tok, "unexpected token %s %q at start of statement", tok.Kind, tok.Lexeme)
}

// parseIncDec parses the `++`/`--` following an already-consumed
// identifier token into a UnaryExpr.
func (p *Parser) parseIncDec(name lexer.Token) (*UnaryExpr, error) {
	v, _ := p.scopes.FindVar(p.current, name.Lexeme)
	if v == nil {
		return nil, errAt(name, "undeclared identifier %q", name.Lexeme)
	}
	op := p.lex.Advance()
	return &UnaryExpr{Op: op, Operand: &ValueExpr{Tok: name, ResolvedVar: v}}, nil
}

// pushChildScope enters a new child scope of the current one, runs fn,
// then restores the parent — the "every {...} creates a child scope"
// discipline applied uniformly to function bodies, then/else branches,
// and loop bodies.
func (p *Parser) pushChildScope(fn func(child ScopeID) error) (ScopeID, error) {
	child := p.scopes.PushChild(p.current)
	parent := p.current
	p.current = child
	err := fn(child)
	p.current = parent
	return child, err
}

func (p *Parser) parseBlock() (*BlockStmt, error) {
	if _, err := p.expect(lexer.LBRACE); err != nil {
		return nil, err
	}
	block := &BlockStmt{}
	id, err := p.pushChildScope(func(child ScopeID) error {
		block.Scope = child
		for p.lex.Peek().Kind != lexer.RBRACE {
			stmt, err := p.parseStmt()
			if err != nil {
				return err
			}
			block.Stmts = append(block.Stmts, stmt)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	block.Scope = id
	if _, err := p.expect(lexer.RBRACE); err != nil {
		return nil, err
	}
	return block, nil
}

func (p *Parser) parseVarDecl() (Stmt, error) {
	var mods Modifiers
	for {
		tok := p.lex.Peek()
		if tok.Kind == lexer.CONST {
			mods |= ModConst
			p.lex.Advance()
			continue
		}
		break
	}

	typ, err := p.parseType()
	if err != nil {
		return nil, err
	}
	name, err := p.expect(lexer.IDENT)
	if err != nil {
		return nil, err
	}
	if p.scopes.DeclaredInScope(p.current, name.Lexeme) {
		return nil, errAt(name, "redeclaration of %q in the same scope", name.Lexeme)
	}

	var init Expr
	if p.lex.Peek().Kind == lexer.ASSIGN {
		p.lex.Advance()
		init, err = p.parseExpr(0)
		if err != nil {
			return nil, err
		}
		init, err = p.coerce(init, typ, name)
		if err != nil {
			return nil, err
		}
	}
	if _, err := p.expect(lexer.SEMICOLON); err != nil {
		return nil, err
	}

	v := &Variable{Type: typ, Name: name, Mods: mods}
	p.scopes.DefineVar(p.current, v)
	return &VarDeclStmt{Var: *v, Init: init}, nil
}

// parseAssign parses `name = expr` without consuming a trailing
// semicolon, so it can be reused for both assignment statements and a
// for-loop's semicolon-less post clause.
func (p *Parser) parseAssign(name lexer.Token) (*VarAssignStmt, error) {
	v, _ := p.scopes.FindVar(p.current, name.Lexeme)
	if v == nil {
		return nil, errAt(name, "assignment to undeclared identifier %q", name.Lexeme)
	}
	if _, err := p.expect(lexer.ASSIGN); err != nil {
		return nil, err
	}
	val, err := p.parseExpr(0)
	if err != nil {
		return nil, err
	}
	val, err = p.coerce(val, v.Type, name)
	if err != nil {
		return nil, err
	}
	return &VarAssignStmt{Name: name, Val: val}, nil
}

func (p *Parser) parseVarAssignRest(name lexer.Token) (Stmt, error) {
	stmt, err := p.parseAssign(name)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.SEMICOLON); err != nil {
		return nil, err
	}
	return stmt, nil
}

func (p *Parser) parseIf() (Stmt, error) {
	p.lex.Advance() // "if"
	if _, err := p.expect(lexer.LPAREN); err != nil {
		return nil, err
	}
	cond, err := p.parseExpr(0)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.RPAREN); err != nil {
		return nil, err
	}
	then, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	stmt := &IfStmt{Cond: cond, Then: then}
	if p.lex.Peek().Kind == lexer.ELSE {
		p.lex.Advance()
		els, err := p.parseBlock()
		if err != nil {
			return nil, err
		}
		stmt.Else = els
	}
	return stmt, nil
}

func (p *Parser) parseWhile() (Stmt, error) {
	p.lex.Advance() // "while"
	if _, err := p.expect(lexer.LPAREN); err != nil {
		return nil, err
	}
	cond, err := p.parseExpr(0)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.RPAREN); err != nil {
		return nil, err
	}
	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	return &WhileStmt{Cond: cond, Body: body}, nil
}

func (p *Parser) parseFor() (Stmt, error) {
	p.lex.Advance() // "for"
	if _, err := p.expect(lexer.LPAREN); err != nil {
		return nil, err
	}

	stmt := &ForStmt{}
	var err error
	var result Stmt
	_, err = p.pushChildScope(func(child ScopeID) error {
		if p.lex.Peek().Kind != lexer.SEMICOLON {
			if p.lex.Peek().Kind == lexer.IDENT {
				name := p.lex.Advance()
				s, err := p.parseVarAssignRest(name)
				if err != nil {
					return err
				}
				stmt.Initial = s
			} else {
				s, err := p.parseVarDecl()
				if err != nil {
					return err
				}
				stmt.Initial = s
			}
		} else {
			p.lex.Advance()
		}

		if p.lex.Peek().Kind != lexer.SEMICOLON {
			cond, err := p.parseExpr(0)
			if err != nil {
				return err
			}
			stmt.Condition = cond
		}
		if _, err := p.expect(lexer.SEMICOLON); err != nil {
			return err
		}

		if p.lex.Peek().Kind != lexer.RPAREN {
			name, err := p.expect(lexer.IDENT)
			if err != nil {
				return err
			}
			if p.lex.Peek().Kind == lexer.PLUS_PLUS || p.lex.Peek().Kind == lexer.MINUS_MINUS {
				unary, err := p.parseIncDec(name)
				if err != nil {
					return err
				}
				stmt.PostLoop = &ExprStmt{Expr: unary}
			} else {
				s, err := p.parseAssign(name)
				if err != nil {
					return err
				}
				stmt.PostLoop = s
			}
		}
		if _, err := p.expect(lexer.RPAREN); err != nil {
			return err
		}

		body, err := p.parseStmt()
		if err != nil {
			return err
		}
		stmt.Body = body
		result = stmt
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (p *Parser) parseReturn() (Stmt, error) {
	p.lex.Advance() // "return"
	val, err := p.parseExpr(0)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.SEMICOLON); err != nil {
		return nil, err
	}
	return &ReturnStmt{Val: val}, nil
}

func (p *Parser) parseFuncDecl() (*FuncDeclStmt, error) {
	retType, err := p.parseType()
	if err != nil {
		return nil, err
	}
	name, err := p.expect(lexer.IDENT)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.LPAREN); err != nil {
		return nil, err
	}

	fn := &Function{ReturnType: retType, Name: name}
	p.scopes.DefineFunc(p.current, fn)

	decl := &FuncDeclStmt{Func: fn}
	_, err = p.pushChildScope(func(child ScopeID) error {
		for p.lex.Peek().Kind != lexer.RPAREN {
			if len(fn.Params) > 0 {
				if _, err := p.expect(lexer.COMMA); err != nil {
					return err
				}
			}
			ptype, err := p.parseType()
			if err != nil {
				return err
			}
			pname, err := p.expect(lexer.IDENT)
			if err != nil {
				return err
			}
			v := Variable{Type: ptype, Name: pname}
			fn.Params = append(fn.Params, v)
			p.scopes.DefineVar(child, &v)
		}
		p.lex.Advance() // ')'

		if p.lex.Peek().Kind == lexer.SEMICOLON {
			p.lex.Advance()
			return nil
		}

		fn.Defined = true
		body, err := p.parseBlockInScope(child)
		if err != nil {
			return err
		}
		decl.Body = body
		return nil
	})
	return decl, err
}

// parseBlockInScope parses a `{...}` body directly into an
// already-pushed scope (used for function bodies, whose parameter
// scope and body scope are the same scope, unlike if/while/for).
func (p *Parser) parseBlockInScope(scope ScopeID) (*BlockStmt, error) {
	if _, err := p.expect(lexer.LBRACE); err != nil {
		return nil, err
	}
	block := &BlockStmt{Scope: scope}
	for p.lex.Peek().Kind != lexer.RBRACE {
		stmt, err := p.parseStmt()
		if err != nil {
			return nil, err
		}
		block.Stmts = append(block.Stmts, stmt)
	}
	if _, err := p.expect(lexer.RBRACE); err != nil {
		return nil, err
	}
	return block, nil
}
