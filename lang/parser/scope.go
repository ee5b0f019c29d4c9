package parser

import "github.com/makian123/C-interpreter/lang/lexer"

// ScopeID identifies a Scope node within a ScopeTree's arena. Parent and
// child links are ids, not pointers: a Scope never owns its parent, and
// the arena (not individual nodes) owns every child (see DESIGN.md,
// "Per-package grounding", lang/parser).
type ScopeID int

// NoScope is the id of "no parent" (the root's parent).
const NoScope ScopeID = -1

// Typedef renames an existing type.
type Typedef struct {
	Original lexer.Token
	New      lexer.Token
}

// Scope is one node of the scope tree: it owns the typedefs, types,
// variables, and functions declared directly within it, plus the ids of
// its children. Lookup walks parent ids outward; first match wins.
type Scope struct {
	id       ScopeID
	parent   ScopeID
	children []ScopeID

	typedefs []Typedef
	types    []*Type
	vars     []*Variable
	funcs    []*Function
}

// ScopeTree is the arena owning every Scope created while parsing one
// program. It outlives the Parser only in the sense that callers may
// keep it around after parsing (Program.Scopes); the encoder does not
// read it.
type ScopeTree struct {
	nodes []*Scope
}

// NewScopeTree creates the tree with a single root (global) scope,
// seeded with the language's primitive types.
func NewScopeTree() (*ScopeTree, ScopeID) {
	t := &ScopeTree{}
	root := t.newScope(NoScope)
	for _, seed := range primitiveSeeds {
		t.nodes[root].types = append(t.nodes[root].types, &Type{
			Name:      lexer.Token{Kind: lexer.IDENT, Lexeme: seed.name},
			Size:      seed.size,
			Alignment: seed.alignment,
			Shape:     ShapePrimitive,
		})
	}
	return t, root
}

func (t *ScopeTree) newScope(parent ScopeID) ScopeID {
	id := ScopeID(len(t.nodes))
	t.nodes = append(t.nodes, &Scope{id: id, parent: parent})
	if parent != NoScope {
		t.nodes[parent].children = append(t.nodes[parent].children, id)
	}
	return id
}

// PushChild creates a new scope under parent and returns its id.
func (t *ScopeTree) PushChild(parent ScopeID) ScopeID { return t.newScope(parent) }

// Children returns the ids of the scopes created directly under id, in
// creation order.
func (t *ScopeTree) Children(id ScopeID) []ScopeID { return t.nodes[id].children }

func (t *ScopeTree) Parent(id ScopeID) ScopeID { return t.nodes[id].parent }

// DefineType adds a type to the scope's own type table.
func (t *ScopeTree) DefineType(id ScopeID, typ *Type) { t.nodes[id].types = append(t.nodes[id].types, typ) }

// DefineVar adds a variable to the scope's own variable table.
func (t *ScopeTree) DefineVar(id ScopeID, v *Variable) { t.nodes[id].vars = append(t.nodes[id].vars, v) }

// DefineFunc adds a function to the scope's own function table.
func (t *ScopeTree) DefineFunc(id ScopeID, f *Function) { t.nodes[id].funcs = append(t.nodes[id].funcs, f) }

// DefineTypedef records an alias in the scope's own typedef table.
func (t *ScopeTree) DefineTypedef(id ScopeID, td Typedef) { t.nodes[id].typedefs = append(t.nodes[id].typedefs, td) }

// FindType walks id's ancestor chain for a type named name.
func (t *ScopeTree) FindType(id ScopeID, name string) *Type {
	for cur := id; cur != NoScope; cur = t.nodes[cur].parent {
		for _, td := range t.nodes[cur].typedefs {
			if td.New.Lexeme == name {
				name = td.Original.Lexeme
			}
		}
		for _, typ := range t.nodes[cur].types {
			if typ.Name.Lexeme == name {
				return typ
			}
		}
	}
	return nil
}

// FindVar walks id's ancestor chain for a variable named name. Local
// scopes shadow outer ones; the first match wins.
func (t *ScopeTree) FindVar(id ScopeID, name string) (*Variable, ScopeID) {
	for cur := id; cur != NoScope; cur = t.nodes[cur].parent {
		for _, v := range t.nodes[cur].vars {
			if v.Name.Lexeme == name {
				return v, cur
			}
		}
	}
	return nil, NoScope
}

// DeclaredInScope reports whether name is already declared directly in
// id (not an ancestor) — used to reject redeclaration in the same scope.
func (t *ScopeTree) DeclaredInScope(id ScopeID, name string) bool {
	for _, v := range t.nodes[id].vars {
		if v.Name.Lexeme == name {
			return true
		}
	}
	return false
}

// FindFunc walks id's ancestor chain for a function named name.
func (t *ScopeTree) FindFunc(id ScopeID, name string) *Function {
	for cur := id; cur != NoScope; cur = t.nodes[cur].parent {
		for _, f := range t.nodes[cur].funcs {
			if f.Name.Lexeme == name {
				return f
			}
		}
	}
	return nil
}

// Funcs returns the functions declared directly in id, in declaration
// order. (The bytecode preamble is built from Program.Funcs instead.)
func (t *ScopeTree) Funcs(id ScopeID) []*Function { return t.nodes[id].funcs }
