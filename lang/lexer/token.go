// Package lexer turns a source buffer into a finite sequence of tokens.
package lexer

import "fmt"

// Kind identifies the lexical category of a Token.
type Kind int

const (
	NONE Kind = iota // sentinel: end of input

	IDENT   // identifier
	INTEGER // integer literal
	FLOAT   // float literal

	// Primitive type-name keywords. Kept in one contiguous run so
	// membership can be tested with a single range check
	// (TYPES_BEGIN <= k <= TYPES_END); struct/enum name a type but are
	// not primitives, so they sit outside this range and are checked
	// for explicitly wherever a type name is expected.
	VOID
	BOOL
	CHAR
	SHORT
	INT
	LONG
	FLOAT_T
	DOUBLE

	STRUCT
	ENUM

	CONST
	UNSIGNED
	RETURN
	IF
	ELSE
	DO
	WHILE
	FOR
	BREAK
	CONTINUE

	// Punctuation
	LBRACE
	RBRACE
	LPAREN
	RPAREN
	SEMICOLON
	COMMA

	// Operators
	ASSIGN
	PLUS
	MINUS
	STAR
	SLASH
	PERCENT
	LESS
	GREATER
	NOT
	EQUALS
	NOT_EQ
	LESS_EQ
	GREATER_EQ
	PLUS_PLUS
	MINUS_MINUS
	PLUS_ASSIGN
	MINUS_ASSIGN
	AND_LOGICAL
	OR_LOGICAL
)

// TYPES_BEGIN and TYPES_END bound the contiguous run of primitive
// type-name keywords above, so membership can be tested with a single
// range check (TYPES_BEGIN <= k <= TYPES_END).
const (
	TYPES_BEGIN = VOID
	TYPES_END   = DOUBLE
)

// keywords maps exact identifier text to its reclassified Kind.
var keywords = map[string]Kind{
	"void":     VOID,
	"bool":     BOOL,
	"char":     CHAR,
	"short":    SHORT,
	"int":      INT,
	"long":     LONG,
	"float":    FLOAT_T,
	"double":   DOUBLE,
	"struct":   STRUCT,
	"enum":     ENUM,
	"const":    CONST,
	"unsigned": UNSIGNED,
	"return":   RETURN,
	"if":       IF,
	"else":     ELSE,
	"do":       DO,
	"while":    WHILE,
	"for":      FOR,
	"break":    BREAK,
	"continue": CONTINUE,
}

var kindNames = map[Kind]string{
	NONE: "NONE", IDENT: "IDENT", INTEGER: "INTEGER", FLOAT: "FLOAT",
	VOID: "void", BOOL: "bool", CHAR: "char", SHORT: "short", INT: "int",
	LONG: "long", FLOAT_T: "float", DOUBLE: "double", STRUCT: "struct", ENUM: "enum",
	CONST: "const", UNSIGNED: "unsigned", RETURN: "return", IF: "if", ELSE: "else",
	DO: "do", WHILE: "while", FOR: "for", BREAK: "break", CONTINUE: "continue",
	LBRACE: "{", RBRACE: "}", LPAREN: "(", RPAREN: ")", SEMICOLON: ";", COMMA: ",",
	ASSIGN: "=", PLUS: "+", MINUS: "-", STAR: "*", SLASH: "/", PERCENT: "%",
	LESS: "<", GREATER: ">", NOT: "!", EQUALS: "==", NOT_EQ: "!=",
	LESS_EQ: "<=", GREATER_EQ: ">=", PLUS_PLUS: "++", MINUS_MINUS: "--",
	PLUS_ASSIGN: "+=", MINUS_ASSIGN: "-=", AND_LOGICAL: "&&", OR_LOGICAL: "||",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// IsTypeKeyword reports whether k is one of the built-in type-name keywords.
func (k Kind) IsTypeKeyword() bool {
	return k >= TYPES_BEGIN && k <= TYPES_END
}

// Token is a single lexical unit produced by the Lexer.
type Token struct {
	Kind   Kind
	Line   int
	Col    int
	Lexeme string
}

func (t Token) String() string {
	return fmt.Sprintf("%-10s %-10q line %d col %d", t.Kind, t.Lexeme, t.Line, t.Col)
}
