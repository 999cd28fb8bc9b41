package ty

import "fmt"

// LocalID identifies a local variable of a function body.
// It is the same index as mir.Local.
type LocalID uint32

// ArgIndex addresses the argument Pos of the dependent function type that is
// Depth binder levels away from the occurrence (0 is the innermost one).
type ArgIndex struct {
	Depth int
	Pos   int
}

// Inc returns the index as seen from n more function-type levels inside
func (a ArgIndex) Inc(n int) ArgIndex {
	a.Depth += n
	return a
}

func (a ArgIndex) String() string {
	return fmt.Sprintf("$%d.%d", a.Depth, a.Pos)
}

type varKind uint8

const (
	_ varKind = iota
	boundVar
	argVar
	localVar
)

// Variable is something that can be the target or the replacement of a
// substitution: the bound variable of a refinement, an argument slot or a local.
//
// A Predicate contains occurrences of variables (Bound, Arg, Local),
// a Variable is the thing being referred to.
type Variable struct {
	kind  varKind
	arg   ArgIndex
	local LocalID
}

func BoundVar() Variable              { return Variable{kind: boundVar} }
func ArgVar(index ArgIndex) Variable  { return Variable{kind: argVar, arg: index} }
func LocalVar(local LocalID) Variable { return Variable{kind: localVar, local: local} }

// Local returns the local this Variable refers to, if it refers to one
func (v Variable) Local() (LocalID, bool) {
	return v.local, v.kind == localVar
}

// Predicate returns the occurrence of v inside a predicate tree
func (v Variable) Predicate() Predicate {
	switch v.kind {
	case boundVar:
		return Bound{}
	case argVar:
		return Arg{Index: v.arg}
	case localVar:
		return Local{ID: v.local}
	default:
		panic("zero Variable")
	}
}

// shift moves argument variables depth levels inwards, other variables are
// not affected by function-type nesting.
func (v Variable) shift(depth int) Variable {
	if v.kind == argVar {
		v.arg = v.arg.Inc(depth)
	}
	return v
}

func (v Variable) matches(p Predicate) bool {
	switch p := p.(type) {
	case Bound:
		return v.kind == boundVar
	case Arg:
		return v.kind == argVar && v.arg == p.Index
	case Local:
		return v.kind == localVar && v.local == p.ID
	}
	return false
}

func (v Variable) String() string {
	return v.Predicate().String()
}
