package parser

import "github.com/makian123/C-interpreter/lang/lexer"

// Modifiers is a bit set over the variable modifier keywords.
type Modifiers uint8

const (
	ModConst Modifiers = 1 << iota
	ModStatic
	ModInline
)

func (m Modifiers) Has(mod Modifiers) bool { return m&mod != 0 }

// ShapeKind discriminates the variant payload carried by a Type.
type ShapeKind int

const (
	ShapePrimitive ShapeKind = iota
	ShapeStruct
	ShapeArray
	ShapePointer
)

// StructMember is one field of a struct shape: the field itself plus its
// byte offset within the struct.
type StructMember struct {
	Field  Variable
	Offset int
}

// Type is a named, sized entry in a Scope's type table. Equality is
// structural over (Name, Size, Alignment), per spec.
type Type struct {
	Name      lexer.Token
	Size      int
	Alignment int
	Shape     ShapeKind

	// Struct shape
	Defined bool
	Members []StructMember

	// Array shape
	Len  int
	Elem *Type

	// Pointer shape
	Pointee *Type
}

// Equal reports structural equality: (name, size, alignment).
func (t *Type) Equal(other *Type) bool {
	if t == nil || other == nil {
		return t == other
	}
	return t.Name.Lexeme == other.Name.Lexeme && t.Size == other.Size && t.Alignment == other.Alignment
}

// IsFloat reports whether values of this type occupy the VM's float
// opcode family. The VM has a single floating-point width (f32), so
// both "float" and "double" map onto it.
func (t *Type) IsFloat() bool {
	return t.Shape == ShapePrimitive && (t.Name.Lexeme == "float" || t.Name.Lexeme == "double")
}

func (t *Type) IsPrimitive() bool { return t.Shape == ShapePrimitive }

// Variable is a typed, named slot: a local, a global, or a parameter.
type Variable struct {
	Type *Type
	Name lexer.Token
	Mods Modifiers
}

// Function is a callable entry in a Scope's function table.
type Function struct {
	Defined    bool
	ReturnType *Type
	Name       lexer.Token
	Params     []Variable
}

// Signature is the VM's sole function identity: name(t1,t2,...,tn).
func (f *Function) Signature() string {
	s := f.Name.Lexeme + "("
	for i, p := range f.Params {
		if i > 0 {
			s += ","
		}
		s += p.Type.Name.Lexeme
	}
	s += ")"
	return s
}

// primitiveSeed describes one of the built-in primitive types seeded into
// every freshly constructed global scope.
type primitiveSeed struct {
	name      string
	size      int
	alignment int
}

var primitiveSeeds = []primitiveSeed{
	{"void", 0, 0},
	{"bool", 1, 1},
	{"char", 1, 1},
	{"short", 2, 2},
	{"int", 4, 4},
	{"long", 8, 8},
	{"float", 4, 4},
	{"double", 8, 8},
}
