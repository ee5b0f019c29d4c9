package parser

import "github.com/makian123/C-interpreter/lang/lexer"

// Expr is implemented by every expression node. Dispatch is by type
// switch on the concrete type, not by virtual method — these are tagged
// sum types, not a class hierarchy (see SPEC_FULL.md, "AST").
type Expr interface{ exprNode() }

// ValueExpr carries a literal or identifier token. ResolvedVar is set
// (by the parser, once, at resolution time) when Tok is an identifier,
// so the encoder never has to re-walk the scope chain to find a
// variable's slot or declared type.
type ValueExpr struct {
	Tok         lexer.Token
	ResolvedVar *Variable
}

func (*ValueExpr) exprNode() {}

// BinaryExpr is Left Op Right. Type is EvalType(expr) computed once at
// parse time and reused by the encoder to pick the I/F opcode variant,
// rather than re-deriving it from the (by-then-discarded) scope cursor.
type BinaryExpr struct {
	Left  Expr
	Op    lexer.Token
	Right Expr
	Type  *Type
}

func (*BinaryExpr) exprNode() {}

// UnaryExpr is Op applied to a single identifier operand (++ / --).
type UnaryExpr struct {
	Op      lexer.Token
	Operand *ValueExpr
}

func (*UnaryExpr) exprNode() {}

// CastExpr wraps Inner with an explicit source/destination type pair.
// OrigType and DestType point into a Scope's type table and are stable
// for the AST's lifetime (the scope tree outlives the AST walk).
type CastExpr struct {
	OrigType *Type
	DestType *Type
	Inner    Expr
}

func (*CastExpr) exprNode() {}

// FuncCallExpr is a call to Callee with an ordered argument list.
// ResolvedFunc is set by the parser at resolution time so the encoder
// can read the callee's signature without a scope lookup.
type FuncCallExpr struct {
	Callee       lexer.Token
	Args         []Expr
	ResolvedFunc *Function
}

func (*FuncCallExpr) exprNode() {}

// Stmt is implemented by every statement node.
type Stmt interface{ stmtNode() }

// BlockStmt is a `{ ... }` body; it always corresponds to one child
// scope in the ScopeTree.
type BlockStmt struct {
	Scope ScopeID
	Stmts []Stmt
}

func (*BlockStmt) stmtNode() {}

// VarDeclStmt is `type name [= expr];`.
type VarDeclStmt struct {
	Var  Variable
	Init Expr // nil when there is no initializer
}

func (*VarDeclStmt) stmtNode() {}

// VarAssignStmt is `name = expr;`.
type VarAssignStmt struct {
	Name lexer.Token
	Val  Expr
}

func (*VarAssignStmt) stmtNode() {}

// FuncDeclStmt is a function declaration or definition. Body is nil for
// a forward declaration.
type FuncDeclStmt struct {
	Func *Function
	Body *BlockStmt
}

func (*FuncDeclStmt) stmtNode() {}

// IfStmt is `if (cond) then [else else_]`.
type IfStmt struct {
	Cond Expr
	Then Stmt
	Else Stmt // nil when there is no else branch
}

func (*IfStmt) stmtNode() {}

// WhileStmt is `while (cond) body`.
type WhileStmt struct {
	Cond Expr
	Body Stmt
}

func (*WhileStmt) stmtNode() {}

// ForStmt is `for (initial; condition; postLoop) body`. Each of
// Initial/Condition/PostLoop may be nil.
type ForStmt struct {
	Initial   Stmt
	Condition Expr
	PostLoop  Stmt
	Body      Stmt
}

func (*ForStmt) stmtNode() {}

// BreakStmt is `break;`.
type BreakStmt struct{}

func (*BreakStmt) stmtNode() {}

// ContinueStmt is `continue;`.
type ContinueStmt struct{}

func (*ContinueStmt) stmtNode() {}

// ExprStmt is an expression evaluated for effect: a function call, a
// ++/-- on an identifier, or any other expression followed by ';'.
type ExprStmt struct {
	Expr Expr
}

func (*ExprStmt) stmtNode() {}

// ReturnStmt is `return expr;`.
type ReturnStmt struct {
	Val Expr
}

func (*ReturnStmt) stmtNode() {}

// Program is the parsed unit: the whole-scope tree plus the top-level
// function declarations, in source order.
type Program struct {
	Scopes  *ScopeTree
	Global  ScopeID
	Funcs   []*FuncDeclStmt
}
