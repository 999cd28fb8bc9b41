package lia_test

import (
	"testing"

	"github.com/cottand/liquid/lia"
	"github.com/cottand/liquid/ty"
	"github.com/stretchr/testify/assert"
)

var (
	x = ty.Local{ID: 0}
	y = ty.Local{ID: 1}
	v = ty.Local{ID: 2}
	b = ty.Local{ID: 3}
)

func num(n int64) ty.Predicate { return ty.Lit{Literal: ty.IntLit(n)} }

func ints(op ty.BinOp, lhs, rhs ty.Predicate) ty.Predicate { return ty.Bin(op, ty.Int, lhs, rhs) }

func bools(op ty.BinOp, lhs, rhs ty.Predicate) ty.Predicate { return ty.Bin(op, ty.Bool, lhs, rhs) }

func TestCheck(t *testing.T) {
	cases := map[string]struct {
		hyps []ty.Predicate
		goal ty.Predicate
		want lia.Result
	}{
		"successor is greater": {
			hyps: []ty.Predicate{ints(ty.Eq, v, ints(ty.Add, x, num(1))), ints(ty.Ge, x, num(1))},
			goal: ints(ty.Gt, v, x),
			want: lia.Valid,
		},
		"predecessor is not greater": {
			hyps: []ty.Predicate{ints(ty.Eq, v, ints(ty.Sub, x, num(1))), ints(ty.Ge, x, num(1))},
			goal: ints(ty.Gt, v, x),
			want: lia.NotValid,
		},
		"true goal": {
			goal: ty.True,
			want: lia.Valid,
		},
		"false goal": {
			hyps: []ty.Predicate{ints(ty.Gt, x, num(0))},
			goal: ty.Lit{Literal: ty.BoolLit(false)},
			want: lia.NotValid,
		},
		"contradicting hypotheses": {
			hyps: []ty.Predicate{ints(ty.Gt, x, num(0)), ints(ty.Lt, x, num(0))},
			goal: ty.Lit{Literal: ty.BoolLit(false)},
			want: lia.Valid,
		},
		"transitivity": {
			hyps: []ty.Predicate{ints(ty.Lt, x, y), ints(ty.Lt, y, v)},
			goal: ints(ty.Le, ints(ty.Add, x, num(2)), v),
			want: lia.Valid,
		},
		"integer tightening": {
			hyps: []ty.Predicate{
				ints(ty.Ge, ints(ty.Mul, num(2), x), num(1)),
				ints(ty.Le, ints(ty.Mul, num(2), x), num(1)),
			},
			goal: ty.Lit{Literal: ty.BoolLit(false)},
			want: lia.Valid,
		},
		"equality without integer solution": {
			hyps: []ty.Predicate{ints(ty.Eq, ints(ty.Mul, x, num(2)), num(1))},
			goal: ty.Lit{Literal: ty.BoolLit(false)},
			want: lia.Valid,
		},
		"disequality splits": {
			hyps: []ty.Predicate{ints(ty.Ne, x, num(0)), ints(ty.Ge, x, num(0))},
			goal: ints(ty.Gt, x, num(0)),
			want: lia.Valid,
		},
		"boolean hypothesis": {
			hyps: []ty.Predicate{b},
			goal: b,
			want: lia.Valid,
		},
		"boolean without hypothesis": {
			goal: b,
			want: lia.NotValid,
		},
		"negated boolean": {
			hyps: []ty.Predicate{ty.NotPred(b)},
			goal: ty.NotPred(b),
			want: lia.Valid,
		},
		"boolean defined by comparison": {
			hyps: []ty.Predicate{
				bools(ty.Eq, b, ints(ty.Gt, x, num(0))),
				ints(ty.Eq, x, num(5)),
			},
			goal: b,
			want: lia.Valid,
		},
		"boolean disequality": {
			hyps: []ty.Predicate{bools(ty.Ne, b, ty.True)},
			goal: ty.NotPred(b),
			want: lia.Valid,
		},
		"disjunctive hypothesis": {
			hyps: []ty.Predicate{bools(ty.Or, ints(ty.Eq, x, num(1)), ints(ty.Eq, x, num(2)))},
			goal: bools(ty.And, ints(ty.Ge, x, num(1)), ints(ty.Le, x, num(2))),
			want: lia.Valid,
		},
		"unit equality": {
			goal: ty.EqPred(ty.Unit, ty.Lit{Literal: ty.UnitLit()}, ty.Lit{Literal: ty.UnitLit()}),
			want: lia.Valid,
		},
		"negation": {
			hyps: []ty.Predicate{ints(ty.Eq, v, ty.UnApp{Op: ty.Neg, Base: ty.Int, Operand: x}), ints(ty.Gt, x, num(3))},
			goal: ints(ty.Lt, v, num(-3)),
			want: lia.Valid,
		},
		"products are opaque": {
			hyps: []ty.Predicate{ints(ty.Gt, x, num(0)), ints(ty.Gt, y, num(0))},
			goal: ints(ty.Gt, ints(ty.Mul, x, y), num(0)),
			want: lia.NotValid,
		},
		"same products are equal": {
			goal: ints(ty.Eq, ints(ty.Mul, x, y), ints(ty.Mul, x, y)),
			want: lia.Valid,
		},
		"holes are opaque": {
			hyps: []ty.Predicate{ty.Hole{ID: 1}},
			goal: ty.Hole{ID: 1},
			want: lia.Valid,
		},
		"overflow gives up": {
			goal: ints(ty.Ge, ints(ty.Mul, ints(ty.Mul, x, num(1<<62)), num(4)), num(0)),
			want: lia.Unknown,
		},
	}

	solver := lia.NewSolver()
	for name, c := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, c.want, solver.Check(c.hyps, c.goal))
			assert.Equal(t, c.want == lia.Valid, solver.Valid(c.hyps, c.goal))
		})
	}
}

func TestCheckGivesUpOnLargeQueries(t *testing.T) {
	solver := lia.NewSolver()
	solver.MaxDisjuncts = 2

	var hyps []ty.Predicate
	for i := int64(0); i < 3; i++ {
		hyps = append(hyps, bools(ty.Or, ints(ty.Eq, x, num(i)), ints(ty.Eq, y, num(i))))
	}
	assert.Equal(t, lia.Unknown, solver.Check(hyps, ty.Lit{Literal: ty.BoolLit(false)}))
	assert.False(t, solver.Valid(hyps, ty.Lit{Literal: ty.BoolLit(false)}))
}

func TestResultString(t *testing.T) {
	assert.Equal(t, "valid", lia.Valid.String())
	assert.Equal(t, "not valid", lia.NotValid.String())
	assert.Equal(t, "unknown", lia.Unknown.String())
}
