package ty

import (
	"strings"
)

// Ty is either a refined base type (*Refined) or a dependent function type (*FuncTy)
type Ty interface {
	isTy()
	String() string
}

var (
	_ Ty = (*Refined)(nil)
	_ Ty = (*FuncTy)(nil)
)

// Refined is the refined base type `{ b: Base | Pred }`
type Refined struct {
	Base BaseTy
	Pred Predicate
}

func NewRefined(base BaseTy, pred Predicate) *Refined {
	return &Refined{Base: base, Pred: pred}
}

func (*Refined) isTy() {}
func (t *Refined) String() string {
	return TyString(t, DumbShowCtx)
}

// FuncTy is the dependent function type `fn(a_1: T_1, ..., a_n: T_n) -> T`.
//
// The arguments a_i are referred to with Arg predicates: inside the arguments
// and the return type of this FuncTy they have depth 0, and each nested
// FuncTy adds one level.
type FuncTy struct {
	arguments []Ty
	returnTy  Ty
}

// NewFuncTy builds a dependent function type. De Bruijn indices are not validated.
func NewFuncTy(arguments []Ty, returnTy Ty) *FuncTy {
	return &FuncTy{arguments: arguments, returnTy: returnTy}
}

func (*FuncTy) isTy() {}

func (f *FuncTy) Arguments() []Ty { return f.arguments }
func (f *FuncTy) ReturnTy() Ty    { return f.returnTy }
func (f *FuncTy) Arity() int      { return len(f.arguments) }

func (f *FuncTy) String() string {
	return TyString(f, DumbShowCtx)
}

// ShapeEq reports whether both function types have the same arity and their
// arguments and return types have the same shape
func (f *FuncTy) ShapeEq(other *FuncTy) bool {
	if len(f.arguments) != len(other.arguments) {
		return false
	}
	for i := range f.arguments {
		if !ShapeEq(f.arguments[i], other.arguments[i]) {
			return false
		}
	}
	return ShapeEq(f.returnTy, other.returnTy)
}

// ProjectArgs replaces the arguments of f inside its own argument and return
// types with f(pos), leaving the arguments of any nested function type untouched.
func (f *FuncTy) ProjectArgs(fn func(pos int) Predicate) *FuncTy {
	return f.project(fn, 0)
}

func (f *FuncTy) project(fn func(int) Predicate, index int) *FuncTy {
	arity := len(f.arguments)
	return f.mapPredicates(index, func(p Predicate, depth int) Predicate {
		return projectPred(p, depth, arity, fn)
	})
}

// mapPredicates rebuilds f with fn applied to every predicate.
// The arguments and return type of f are at depth, nested function types increase it.
func (f *FuncTy) mapPredicates(depth int, fn func(p Predicate, depth int) Predicate) *FuncTy {
	arguments := make([]Ty, len(f.arguments))
	for i, argument := range f.arguments {
		arguments[i] = mapPredicates(argument, depth, fn)
	}
	return &FuncTy{
		arguments: arguments,
		returnTy:  mapPredicates(f.returnTy, depth, fn),
	}
}

func mapPredicates(t Ty, depth int, fn func(p Predicate, depth int) Predicate) Ty {
	switch t := t.(type) {
	case *Refined:
		return &Refined{Base: t.Base, Pred: fn(t.Pred, depth)}
	case *FuncTy:
		// entering a nested function type
		return t.mapPredicates(depth+1, fn)
	default:
		panic("unknown Ty")
	}
}

// ReplaceVariable replaces every occurrence of target with replacement in t.
// Argument variables are addressed relative to the context t appears in.
func ReplaceVariable(t Ty, target, replacement Variable) Ty {
	return mapPredicates(t, 0, func(p Predicate, depth int) Predicate {
		return ReplaceVariablePred(p, target.shift(depth), replacement.shift(depth))
	})
}

// ShapeEq reports whether a and b are equal when ignoring predicates
func ShapeEq(a, b Ty) bool {
	switch a := a.(type) {
	case *Refined:
		b, ok := b.(*Refined)
		return ok && a.Base == b.Base
	case *FuncTy:
		b, ok := b.(*FuncTy)
		return ok && a.ShapeEq(b)
	}
	return false
}

// GetBase returns the base type of t if it is a refined base type
func GetBase(t Ty) (BaseTy, bool) {
	if refined, ok := t.(*Refined); ok {
		return refined.Base, true
	}
	return 0, false
}

// HasBase checks if t is a refinement over target
func HasBase(t Ty, target BaseTy) bool {
	base, ok := GetBase(t)
	return ok && base == target
}

// Selfify turns `{ b: B | p }` into `{ b: B | p && b == v }`.
// Function types are returned unchanged.
func Selfify(t Ty, v Variable) Ty {
	refined, ok := t.(*Refined)
	if !ok {
		return t
	}
	return &Refined{
		Base: refined.Base,
		Pred: AndPred(refined.Pred, EqPred(refined.Base, Bound{}, v.Predicate())),
	}
}

// Singleton is the most precise type of a literal
func Singleton(literal Literal) Ty {
	base := literal.BaseTy()
	return &Refined{Base: base, Pred: EqPred(base, Bound{}, Lit{Literal: literal})}
}

// TyString renders t, naming locals through ctx
func TyString(t Ty, ctx ShowCtx) string {
	switch t := t.(type) {
	case *Refined:
		return "{ b: " + t.Base.String() + " | " + PredString(t.Pred, ctx) + " }"
	case *FuncTy:
		sb := &strings.Builder{}
		sb.WriteString("fn(")
		for i, argument := range t.arguments {
			if i != 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(TyString(argument, ctx))
		}
		sb.WriteString(") -> ")
		sb.WriteString(TyString(t.returnTy, ctx))
		return sb.String()
	default:
		return "<nil>"
	}
}

// EqualTy is structural equality, predicates included
func EqualTy(a, b Ty) bool {
	switch a := a.(type) {
	case *Refined:
		b, ok := b.(*Refined)
		return ok && a.Base == b.Base && EqualPred(a.Pred, b.Pred)
	case *FuncTy:
		b, ok := b.(*FuncTy)
		if !ok || len(a.arguments) != len(b.arguments) {
			return false
		}
		for i := range a.arguments {
			if !EqualTy(a.arguments[i], b.arguments[i]) {
				return false
			}
		}
		return EqualTy(a.returnTy, b.returnTy)
	}
	return false
}
