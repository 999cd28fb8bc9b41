package lia

import (
	"maps"
	"math"
	"slices"

	"github.com/cottand/liquid/ty"
)

// giveUp is raised when a query is too large or overflows int64. It is
// recovered in Solver.Check.
type giveUp struct{ reason string }

func checkedAdd(a, b int64) int64 {
	sum := a + b
	if (sum > a) != (b > 0) {
		panic(giveUp{"integer overflow"})
	}
	return sum
}

func checkedMul(a, b int64) int64 {
	if a == 0 || b == 0 {
		return 0
	}
	if (a == -1 && b == math.MinInt64) || (b == -1 && a == math.MinInt64) {
		panic(giveUp{"integer overflow"})
	}
	product := a * b
	if product/b != a {
		panic(giveUp{"integer overflow"})
	}
	return product
}

// linExpr is the linear expression sum(coefs[v] * v) + c.
// Variables with a zero coefficient are never stored.
type linExpr struct {
	coefs map[string]int64
	c     int64
}

func constant(c int64) linExpr {
	return linExpr{coefs: map[string]int64{}, c: c}
}

func variable(name string) linExpr {
	return linExpr{coefs: map[string]int64{name: 1}}
}

func (e linExpr) isConst() bool { return len(e.coefs) == 0 }

func (e linExpr) plus(other linExpr) linExpr {
	ret := linExpr{coefs: maps.Clone(e.coefs), c: checkedAdd(e.c, other.c)}
	if ret.coefs == nil {
		ret.coefs = make(map[string]int64, len(other.coefs))
	}
	for v, coef := range other.coefs {
		sum := checkedAdd(ret.coefs[v], coef)
		if sum == 0 {
			delete(ret.coefs, v)
		} else {
			ret.coefs[v] = sum
		}
	}
	return ret
}

func (e linExpr) scale(k int64) linExpr {
	if k == 0 {
		return constant(0)
	}
	ret := linExpr{coefs: make(map[string]int64, len(e.coefs)), c: checkedMul(e.c, k)}
	for v, coef := range e.coefs {
		ret.coefs[v] = checkedMul(coef, k)
	}
	return ret
}

func (e linExpr) minus(other linExpr) linExpr {
	return e.plus(other.scale(-1))
}

func (e linExpr) addConst(k int64) linExpr {
	return e.plus(constant(k))
}

// without returns e with the term of v removed
func (e linExpr) without(v string) linExpr {
	ret := linExpr{coefs: maps.Clone(e.coefs), c: e.c}
	delete(ret.coefs, v)
	return ret
}

func (e linExpr) vars() []string {
	return slices.Sorted(maps.Keys(e.coefs))
}

func abs(v int64) int64 {
	if v == math.MinInt64 {
		panic(giveUp{"integer overflow"})
	}
	if v < 0 {
		return -v
	}
	return v
}

func gcd(a, b int64) int64 {
	a, b = abs(a), abs(b)
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

// coefsGCD is the gcd of the coefficients of e, 0 if it has none
func (e linExpr) coefsGCD() int64 {
	var g int64
	for _, coef := range e.coefs {
		g = gcd(g, coef)
	}
	return g
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}

// ----------------------------
// formulas in negation normal form

type formula interface{ isFormula() }

// literal is a formula that is part of a conjunction in disjunctive normal form
type literal interface {
	formula
	isLiteral()
}

type atomKind uint8

const (
	geqZero atomKind = iota
	eqZero
)

// atom is `e >= 0` or `e == 0`
type atom struct {
	e    linExpr
	kind atomKind
}

// boolVar is an opaque boolean, negated if neg is set
type boolVar struct {
	name string
	neg  bool
}

type fConst bool
type fAnd []formula
type fOr []formula

func (atom) isFormula()    {}
func (boolVar) isFormula() {}
func (fConst) isFormula()  {}
func (fAnd) isFormula()    {}
func (fOr) isFormula()     {}
func (atom) isLiteral()    {}
func (boolVar) isLiteral() {}

// opaqueName names a predicate that is treated as an uninterpreted variable.
// Structurally equal predicates get the same name.
func opaqueName(p ty.Predicate) string {
	return ty.PredString(p, ty.DumbShowCtx)
}

// negateCompare returns the comparison that holds exactly when op does not
func negateCompare(op ty.BinOp) ty.BinOp {
	switch op {
	case ty.Lt:
		return ty.Ge
	case ty.Le:
		return ty.Gt
	case ty.Gt:
		return ty.Le
	case ty.Ge:
		return ty.Lt
	case ty.Eq:
		return ty.Ne
	case ty.Ne:
		return ty.Eq
	}
	panic(giveUp{"not a comparison: " + op.String()})
}

// translate turns the boolean predicate p into a formula in negation
// normal form, equivalent to p if positive is set and to !p otherwise
func translate(p ty.Predicate, positive bool) formula {
	switch p := p.(type) {
	case ty.Lit:
		return fConst(p.Literal.Bool() == positive)

	case ty.UnApp:
		if p.Op == ty.Not {
			return translate(p.Operand, !positive)
		}

	case ty.BinApp:
		switch {
		case p.Op == ty.And && positive, p.Op == ty.Or && !positive:
			return fAnd{translate(p.Lhs, positive), translate(p.Rhs, positive)}
		case p.Op == ty.Or && positive, p.Op == ty.And && !positive:
			return fOr{translate(p.Lhs, positive), translate(p.Rhs, positive)}

		case p.Op.IsEquality() && p.Base == ty.Unit:
			return fConst((p.Op == ty.Eq) == positive)

		case p.Op.IsEquality() && p.Base == ty.Bool:
			if (p.Op == ty.Eq) == positive {
				return fOr{
					fAnd{translate(p.Lhs, true), translate(p.Rhs, true)},
					fAnd{translate(p.Lhs, false), translate(p.Rhs, false)},
				}
			}
			return fOr{
				fAnd{translate(p.Lhs, true), translate(p.Rhs, false)},
				fAnd{translate(p.Lhs, false), translate(p.Rhs, true)},
			}

		case p.Op.IsEquality() || p.Op.IsCompare():
			op := p.Op
			if !positive {
				op = negateCompare(op)
			}
			return compare(op, term(p.Lhs).minus(term(p.Rhs)))
		}
	}
	return boolVar{name: opaqueName(p), neg: !positive}
}

// compare is `d op 0` over the integers
func compare(op ty.BinOp, d linExpr) formula {
	switch op {
	case ty.Ge:
		return atom{e: d, kind: geqZero}
	case ty.Gt:
		return atom{e: d.addConst(-1), kind: geqZero}
	case ty.Le:
		return atom{e: d.scale(-1), kind: geqZero}
	case ty.Lt:
		return atom{e: d.scale(-1).addConst(-1), kind: geqZero}
	case ty.Eq:
		return atom{e: d, kind: eqZero}
	case ty.Ne:
		return fOr{compare(ty.Gt, d), compare(ty.Lt, d)}
	}
	panic(giveUp{"not a comparison: " + op.String()})
}

// term translates an integer-valued predicate. Non-linear products are opaque.
func term(p ty.Predicate) linExpr {
	switch p := p.(type) {
	case ty.Lit:
		return constant(p.Literal.Int())
	case ty.UnApp:
		if p.Op == ty.Neg {
			return term(p.Operand).scale(-1)
		}
	case ty.BinApp:
		switch p.Op {
		case ty.Add:
			return term(p.Lhs).plus(term(p.Rhs))
		case ty.Sub:
			return term(p.Lhs).minus(term(p.Rhs))
		case ty.Mul:
			lhs, rhs := term(p.Lhs), term(p.Rhs)
			if lhs.isConst() {
				return rhs.scale(lhs.c)
			}
			if rhs.isConst() {
				return lhs.scale(rhs.c)
			}
		}
	}
	return variable(opaqueName(p))
}
