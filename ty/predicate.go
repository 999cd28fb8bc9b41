package ty

import (
	"fmt"
	"slices"
	"strings"
)

// Predicate is a refinement: a boolean (or integer, for sub-terms) formula
// over the refined value, arguments of enclosing function types and locals.
//
// Predicates are immutable trees. Rewrites build new nodes.
type Predicate interface {
	fmt.Stringer
	isPredicate()
}

var (
	_ Predicate = Bound{}
	_ Predicate = Arg{}
	_ Predicate = Local{}
	_ Predicate = Lit{}
	_ Predicate = Hole{}
	_ Predicate = BinApp{}
	_ Predicate = UnApp{}
)

// Bound is the value being refined, the `b` in `{ b: int | b > 0 }`
type Bound struct{}

// Arg is an occurrence of an argument of an enclosing dependent function type
type Arg struct{ Index ArgIndex }

// Local is an occurrence of a local variable
type Local struct{ ID LocalID }

type Lit struct{ Literal Literal }

type HoleID uint64

// Subst is a pending substitution, to be applied on the solution of a Hole
type Subst struct {
	Target      Variable
	Replacement Predicate
}

// Hole is a refinement that is yet to be inferred by a solver.
// Substs are applied in order to whatever predicate the hole resolves to.
type Hole struct {
	ID     HoleID
	Substs []Subst
}

// withSubst returns a copy of h with s appended, h itself is left untouched
func (h Hole) withSubst(s Subst) Hole {
	substs := make([]Subst, len(h.Substs), len(h.Substs)+1)
	copy(substs, h.Substs)
	h.Substs = append(substs, s)
	return h
}

type BinApp struct {
	Op BinOp
	// Base is the base type of the operands
	Base     BaseTy
	Lhs, Rhs Predicate
}

type UnApp struct {
	Op      UnOp
	Base    BaseTy
	Operand Predicate
}

func (Bound) isPredicate()  {}
func (Arg) isPredicate()    {}
func (Local) isPredicate()  {}
func (Lit) isPredicate()    {}
func (Hole) isPredicate()   {}
func (BinApp) isPredicate() {}
func (UnApp) isPredicate()  {}

type BinOp uint8

const (
	_ BinOp = iota
	Add
	Sub
	Mul
	Eq
	Ne
	Lt
	Le
	Gt
	Ge
	And
	Or
)

var binOpSymbols = map[BinOp]string{
	Add: "+", Sub: "-", Mul: "*",
	Eq: "==", Ne: "!=", Lt: "<", Le: "<=", Gt: ">", Ge: ">=",
	And: "&&", Or: "||",
}

// BinOpFromSymbol parses the surface symbol of a binary operator
func BinOpFromSymbol(symbol string) (BinOp, bool) {
	for op, s := range binOpSymbols {
		if s == symbol {
			return op, true
		}
	}
	return 0, false
}

func (op BinOp) String() string { return binOpSymbols[op] }

func (op BinOp) IsArith() bool   { return op == Add || op == Sub || op == Mul }
func (op BinOp) IsCompare() bool { return op >= Lt && op <= Ge }
func (op BinOp) IsLogic() bool   { return op == And || op == Or }
func (op BinOp) IsEquality() bool {
	return op == Eq || op == Ne
}

// Typed returns the base type of the result of op for operands of base operand,
// or false if op cannot be applied to operand.
func (op BinOp) Typed(operand BaseTy) (BaseTy, bool) {
	switch {
	case op.IsArith():
		return Int, operand == Int
	case op.IsCompare():
		return Bool, operand == Int
	case op.IsLogic():
		return Bool, operand == Bool
	case op.IsEquality():
		return Bool, true
	}
	return 0, false
}

func (op BinOp) precedence() int {
	switch op {
	case Or:
		return 1
	case And:
		return 2
	case Eq, Ne, Lt, Le, Gt, Ge:
		return 3
	case Add, Sub:
		return 4
	default:
		return 5
	}
}

type UnOp uint8

const (
	_ UnOp = iota
	Not
	Neg
)

func (op UnOp) String() string {
	if op == Not {
		return "!"
	}
	return "-"
}

// Typed is like BinOp.Typed
func (op UnOp) Typed(operand BaseTy) (BaseTy, bool) {
	if op == Not {
		return Bool, operand == Bool
	}
	return Int, operand == Int
}

// True is the predicate that holds for every value
var True Predicate = Lit{Literal: BoolLit(true)}

func IsTrue(p Predicate) bool {
	lit, ok := p.(Lit)
	return ok && lit.Literal == BoolLit(true)
}

// Bin builds a binary application
func Bin(op BinOp, base BaseTy, lhs, rhs Predicate) Predicate {
	return BinApp{Op: op, Base: base, Lhs: lhs, Rhs: rhs}
}

// AndPred is the conjunction of lhs and rhs. A literal true side is dropped.
func AndPred(lhs, rhs Predicate) Predicate {
	if IsTrue(lhs) {
		return rhs
	}
	if IsTrue(rhs) {
		return lhs
	}
	return BinApp{Op: And, Base: Bool, Lhs: lhs, Rhs: rhs}
}

// Conj is the conjunction of all ps, True when there are none
func Conj(ps ...Predicate) Predicate {
	ret := True
	for _, p := range ps {
		ret = AndPred(ret, p)
	}
	return ret
}

// EqPred is the equality of two values of base type base
func EqPred(base BaseTy, lhs, rhs Predicate) Predicate {
	return BinApp{Op: Eq, Base: base, Lhs: lhs, Rhs: rhs}
}

func NotPred(p Predicate) Predicate {
	return UnApp{Op: Not, Base: Bool, Operand: p}
}

// MapPredicate rebuilds p bottom-up: fn is called on every node once its
// children have been rebuilt, and its result replaces the node.
// The result of fn is not visited again.
func MapPredicate(p Predicate, fn func(Predicate) Predicate) Predicate {
	switch p := p.(type) {
	case BinApp:
		p.Lhs = MapPredicate(p.Lhs, fn)
		p.Rhs = MapPredicate(p.Rhs, fn)
		return fn(p)
	case UnApp:
		p.Operand = MapPredicate(p.Operand, fn)
		return fn(p)
	default:
		return fn(p)
	}
}

// WalkPredicate calls visit on every node of p in pre-order
func WalkPredicate(p Predicate, visit func(Predicate)) {
	visit(p)
	switch p := p.(type) {
	case BinApp:
		WalkPredicate(p.Lhs, visit)
		WalkPredicate(p.Rhs, visit)
	case UnApp:
		WalkPredicate(p.Operand, visit)
	case Hole:
		for _, s := range p.Substs {
			WalkPredicate(s.Replacement, visit)
		}
	}
}

// ReplaceVariablePred replaces every occurrence of target in p by replacement.
// Holes cannot be inspected, so they record the substitution instead.
func ReplaceVariablePred(p Predicate, target, replacement Variable) Predicate {
	with := replacement.Predicate()
	return MapPredicate(p, func(node Predicate) Predicate {
		if target.matches(node) {
			return with
		}
		if hole, ok := node.(Hole); ok {
			return hole.withSubst(Subst{Target: target, Replacement: with})
		}
		return node
	})
}

// projectPred replaces the arguments at depth with f(pos). arity is the
// number of arguments of the function type being projected, used for holes.
func projectPred(p Predicate, depth, arity int, f func(int) Predicate) Predicate {
	return MapPredicate(p, func(node Predicate) Predicate {
		switch node := node.(type) {
		case Arg:
			if node.Index.Depth == depth {
				return f(node.Index.Pos)
			}
		case Hole:
			for pos := 0; pos < arity; pos++ {
				node = node.withSubst(Subst{
					Target:      ArgVar(ArgIndex{Depth: depth, Pos: pos}),
					Replacement: f(pos),
				})
			}
			return node
		}
		return node
	})
}

// ShowCtx decides how locals are named when printing
type ShowCtx interface {
	LocalName(LocalID) string
}

type dumbShowCtx struct{}

func (dumbShowCtx) LocalName(l LocalID) string { return fmt.Sprintf("_%d", l) }

var DumbShowCtx ShowCtx = dumbShowCtx{}

func (p Bound) String() string  { return "b" }
func (p Arg) String() string    { return p.Index.String() }
func (p Local) String() string  { return DumbShowCtx.LocalName(p.ID) }
func (p Lit) String() string    { return p.Literal.String() }
func (p Hole) String() string   { return PredString(p, DumbShowCtx) }
func (p BinApp) String() string { return PredString(p, DumbShowCtx) }
func (p UnApp) String() string  { return PredString(p, DumbShowCtx) }

// PredString renders p, naming locals through ctx
func PredString(p Predicate, ctx ShowCtx) string {
	sb := &strings.Builder{}
	showPred(sb, p, ctx, 0)
	return sb.String()
}

func showPred(sb *strings.Builder, p Predicate, ctx ShowCtx, outerPrecedence int) {
	switch p := p.(type) {
	case Local:
		sb.WriteString(ctx.LocalName(p.ID))
	case Hole:
		fmt.Fprintf(sb, "?%d", p.ID)
		if len(p.Substs) == 0 {
			return
		}
		substs := make([]string, 0, len(p.Substs))
		for _, s := range p.Substs {
			substs = append(substs, PredString(s.Replacement, ctx)+"/"+s.Target.String())
		}
		sb.WriteString("[" + strings.Join(substs, ", ") + "]")
	case BinApp:
		precedence := p.Op.precedence()
		if precedence <= outerPrecedence {
			sb.WriteString("(")
			defer sb.WriteString(")")
		}
		showPred(sb, p.Lhs, ctx, precedence-1)
		sb.WriteString(" " + p.Op.String() + " ")
		showPred(sb, p.Rhs, ctx, precedence)
	case UnApp:
		sb.WriteString(p.Op.String())
		showPred(sb, p.Operand, ctx, 6)
	default:
		sb.WriteString(p.String())
	}
}

// EqualPred is structural equality of predicates
func EqualPred(a, b Predicate) bool {
	switch a := a.(type) {
	case BinApp:
		b, ok := b.(BinApp)
		return ok && a.Op == b.Op && a.Base == b.Base && EqualPred(a.Lhs, b.Lhs) && EqualPred(a.Rhs, b.Rhs)
	case UnApp:
		b, ok := b.(UnApp)
		return ok && a.Op == b.Op && EqualPred(a.Operand, b.Operand)
	case Hole:
		b, ok := b.(Hole)
		return ok && a.ID == b.ID && slices.EqualFunc(a.Substs, b.Substs, func(s1, s2 Subst) bool {
			return s1.Target == s2.Target && EqualPred(s1.Replacement, s2.Replacement)
		})
	default:
		return a == b
	}
}
