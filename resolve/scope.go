// Package resolve turns the identifiers of surface refinement types into
// indexed predicates.
//
// Every binder (a refined type's bound variable, the arguments of a function
// type, the locals of a function body) pushes bindings onto a Scope. Each
// function type being resolved opens a new Scope on a Ctx, so that the number
// of scopes between a use and its binding is the de Bruijn depth of the use.
package resolve

import (
	"github.com/cottand/liquid/lqerr"
	"github.com/cottand/liquid/syntax"
	"github.com/cottand/liquid/ty"
	"github.com/cottand/liquid/util"
)

type binding struct {
	symbol    string
	predicate ty.Predicate
	base      ty.BaseTy
}

// Scope is the stack-backed lexical scope created by a refined base type
// or a dependent function type
type Scope struct {
	stack util.Stack[binding]
}

func NewScope() *Scope {
	return &Scope{}
}

// BindIdent pushes a binding of ident to predicate, of type base
func (s *Scope) BindIdent(ident syntax.Ident, predicate ty.Predicate, base ty.BaseTy) {
	s.stack.Push(binding{symbol: ident.Symbol, predicate: predicate, base: base})
}

// FreeIdent pops the most recent binding.
// Freeing an empty scope means binds and frees are unbalanced, and is fatal.
func (s *Scope) FreeIdent() {
	if _, ok := s.stack.Pop(); !ok {
		lqerr.Fatalf("stack for the current scope is empty")
	}
}

// SolveIdent returns the predicate and type ident is bound to.
// If the identifier was bound more than once, the latest binding wins.
func (s *Scope) SolveIdent(ident syntax.Ident) (ty.Predicate, ty.BaseTy, bool) {
	for _, b := range s.stack.FromTop() {
		if b.symbol == ident.Symbol {
			return b.predicate, b.base, true
		}
	}
	return nil, 0, false
}

func (s *Scope) Len() int { return s.stack.Len() }
