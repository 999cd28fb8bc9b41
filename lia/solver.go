// Package lia decides the validity of verification conditions over linear
// integer arithmetic and booleans.
//
// A condition `hyps => goal` is valid when `hyps && !goal` has no solution.
// The negation is put in disjunctive normal form, and each conjunction is
// checked by eliminating equalities and then running Fourier-Motzkin
// elimination with integer tightening. The procedure is sound but not
// complete: it answers Valid only when the condition is valid, and may answer
// NotValid or Unknown for some valid conditions.
//
// Products of two non-constant terms, holes and any predicate the procedure
// does not understand are treated as uninterpreted variables.
package lia

import (
	"log/slog"
	"slices"

	"github.com/cottand/liquid/internal/log"
	"github.com/cottand/liquid/ty"
	"github.com/hashicorp/go-set/v3"
)

type Result uint8

const (
	Unknown Result = iota
	Valid
	// NotValid means the condition may be falsified
	NotValid
)

func (r Result) String() string {
	switch r {
	case Valid:
		return "valid"
	case NotValid:
		return "not valid"
	default:
		return "unknown"
	}
}

const (
	DefaultMaxDisjuncts   = 4096
	DefaultMaxConstraints = 2048
)

// Solver is safe for concurrent use
type Solver struct {
	// MaxDisjuncts bounds the size of the normal form of a query
	MaxDisjuncts int
	// MaxConstraints bounds the inequalities produced while eliminating a variable
	MaxConstraints int
	logger         *slog.Logger
}

func NewSolver() *Solver {
	return &Solver{
		MaxDisjuncts:   DefaultMaxDisjuncts,
		MaxConstraints: DefaultMaxConstraints,
		logger:         log.Section("solver"),
	}
}

// Valid reports whether the conjunction of hyps implies goal.
// Unknown results count as not valid.
func (s *Solver) Valid(hyps []ty.Predicate, goal ty.Predicate) bool {
	return s.Check(hyps, goal) == Valid
}

func (s *Solver) Check(hyps []ty.Predicate, goal ty.Predicate) (result Result) {
	defer func() {
		if r := recover(); r != nil {
			reason, ok := r.(giveUp)
			if !ok {
				panic(r)
			}
			s.logger.Debug("gave up on query", "reason", reason.reason, "goal", goal)
			result = Unknown
		}
	}()

	query := make(fAnd, 0, len(hyps)+1)
	for _, hyp := range hyps {
		query = append(query, translate(hyp, true))
	}
	query = append(query, translate(goal, false))

	for _, conjunction := range s.dnf(query) {
		if s.satisfiable(conjunction) {
			s.logger.Debug("found satisfiable case", "goal", goal, "hyps", len(hyps))
			return NotValid
		}
	}
	return Valid
}

func (s *Solver) checkSize(disjuncts int) {
	if disjuncts > s.MaxDisjuncts {
		panic(giveUp{"normal form is too large"})
	}
}

// dnf returns the disjunctive normal form of f, as a list of conjunctions
func (s *Solver) dnf(f formula) [][]literal {
	switch f := f.(type) {
	case fConst:
		if f {
			return [][]literal{{}}
		}
		return nil
	case atom:
		return [][]literal{{f}}
	case boolVar:
		return [][]literal{{f}}
	case fOr:
		var ret [][]literal
		for _, sub := range f {
			ret = append(ret, s.dnf(sub)...)
			s.checkSize(len(ret))
		}
		return ret
	case fAnd:
		ret := [][]literal{{}}
		for _, sub := range f {
			subDNF := s.dnf(sub)
			next := make([][]literal, 0, len(ret)*len(subDNF))
			for _, lhs := range ret {
				for _, rhs := range subDNF {
					conjunction := make([]literal, 0, len(lhs)+len(rhs))
					next = append(next, append(append(conjunction, lhs...), rhs...))
				}
			}
			s.checkSize(len(next))
			ret = next
			if len(ret) == 0 {
				return nil
			}
		}
		return ret
	}
	panic(giveUp{"unknown formula"})
}

// satisfiable checks the conjunction of literals over the rationals, with
// integer tightening. False means there is no integer solution.
func (s *Solver) satisfiable(literals []literal) bool {
	polarity := map[string]bool{}
	var equalities, inequalities []linExpr
	for _, lit := range literals {
		switch lit := lit.(type) {
		case boolVar:
			if neg, seen := polarity[lit.name]; seen && neg != lit.neg {
				return false
			}
			polarity[lit.name] = lit.neg
		case atom:
			if lit.kind == eqZero {
				equalities = append(equalities, lit.e)
			} else {
				inequalities = append(inequalities, lit.e)
			}
		}
	}

	inequalities, ok := eliminateEqualities(equalities, inequalities)
	if !ok {
		return false
	}
	return s.fourierMotzkin(inequalities)
}

// eliminateEqualities substitutes away every variable that some equality
// defines with a unit coefficient. The remaining equalities become pairs of
// inequalities. Returns false if an equality has no integer solution.
func eliminateEqualities(equalities, inequalities []linExpr) ([]linExpr, bool) {
	for len(equalities) > 0 {
		eq := equalities[0]
		equalities = equalities[1:]

		if eq.isConst() {
			if eq.c != 0 {
				return nil, false
			}
			continue
		}
		g := eq.coefsGCD()
		if eq.c%g != 0 {
			return nil, false
		}
		normalized := linExpr{coefs: make(map[string]int64, len(eq.coefs)), c: eq.c / g}
		for v, coef := range eq.coefs {
			normalized.coefs[v] = coef / g
		}
		eq = normalized

		pivot := ""
		for _, v := range eq.vars() {
			if coef := eq.coefs[v]; coef == 1 || coef == -1 {
				pivot = v
				break
			}
		}
		if pivot == "" {
			inequalities = append(inequalities, eq, eq.scale(-1))
			continue
		}

		// pivot == -coef * rest, as coef is its own inverse
		coef := eq.coefs[pivot]
		rest := eq.without(pivot)
		substitute := func(e linExpr) linExpr {
			k, ok := e.coefs[pivot]
			if !ok {
				return e
			}
			return e.without(pivot).plus(rest.scale(checkedMul(-coef, k)))
		}
		for i := range equalities {
			equalities[i] = substitute(equalities[i])
		}
		for i := range inequalities {
			inequalities[i] = substitute(inequalities[i])
		}
	}
	return inequalities, true
}

// tighten divides the coefficients of `e >= 0` by their gcd, rounding the
// constant down, which keeps the same integer solutions
func tighten(e linExpr) linExpr {
	g := e.coefsGCD()
	if g <= 1 {
		return e
	}
	ret := linExpr{coefs: make(map[string]int64, len(e.coefs)), c: floorDiv(e.c, g)}
	for v, coef := range e.coefs {
		ret.coefs[v] = coef / g
	}
	return ret
}

// fourierMotzkin checks that the inequalities `e >= 0` have a solution
func (s *Solver) fourierMotzkin(inequalities []linExpr) bool {
	for {
		var remaining []linExpr
		vars := set.New[string](0)
		for _, e := range inequalities {
			if e.isConst() {
				if e.c < 0 {
					return false
				}
				continue
			}
			e = tighten(e)
			remaining = append(remaining, e)
			for v := range e.coefs {
				vars.Insert(v)
			}
		}
		if len(remaining) == 0 {
			return true
		}
		if len(remaining) > s.MaxConstraints {
			panic(giveUp{"too many constraints"})
		}
		inequalities = eliminate(remaining, cheapestVar(remaining, vars))
	}
}

// cheapestVar picks the variable whose elimination produces the fewest constraints
func cheapestVar(inequalities []linExpr, vars *set.Set[string]) string {
	names := vars.Slice()
	slices.Sort(names)

	best, bestCost := "", -1
	for _, v := range names {
		pos, neg := 0, 0
		for _, e := range inequalities {
			switch coef := e.coefs[v]; {
			case coef > 0:
				pos++
			case coef < 0:
				neg++
			}
		}
		if cost := pos * neg; bestCost == -1 || cost < bestCost {
			best, bestCost = v, cost
		}
	}
	return best
}

// eliminate projects the inequalities onto the other variables than v
func eliminate(inequalities []linExpr, v string) []linExpr {
	var lower, upper, ret []linExpr
	for _, e := range inequalities {
		switch coef := e.coefs[v]; {
		case coef > 0:
			lower = append(lower, e)
		case coef < 0:
			upper = append(upper, e)
		default:
			ret = append(ret, e)
		}
	}
	for _, lo := range lower {
		for _, up := range upper {
			// lo: a*v + p >= 0 and up: -b*v + q >= 0 give b*p + a*q >= 0
			a, b := lo.coefs[v], -up.coefs[v]
			ret = append(ret, lo.scale(b).plus(up.scale(a)))
		}
	}
	return ret
}
