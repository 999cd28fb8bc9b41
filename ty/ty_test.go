package ty_test

import (
	"fmt"
	"testing"

	"github.com/cottand/liquid/ty"
	"github.com/stretchr/testify/assert"
)

func gt(lhs, rhs ty.Predicate) ty.Predicate { return ty.Bin(ty.Gt, ty.Int, lhs, rhs) }

func arg(depth, pos int) ty.Predicate {
	return ty.Arg{Index: ty.ArgIndex{Depth: depth, Pos: pos}}
}

func TestShapeEqIgnoresPredicates(t *testing.T) {
	preds := []ty.Predicate{
		ty.True,
		gt(ty.Bound{}, ty.Lit{Literal: ty.IntLit(0)}),
		ty.Hole{ID: 3},
		arg(0, 1),
	}
	for _, p1 := range preds {
		for _, p2 := range preds {
			assert.True(t, ty.ShapeEq(ty.NewRefined(ty.Int, p1), ty.NewRefined(ty.Int, p2)), "%v ~ %v", p1, p2)
		}
	}

	fn1 := ty.NewFuncTy([]ty.Ty{ty.NewRefined(ty.Int, preds[1])}, ty.NewRefined(ty.Bool, ty.True))
	fn2 := ty.NewFuncTy([]ty.Ty{ty.NewRefined(ty.Int, ty.True)}, ty.NewRefined(ty.Bool, preds[2]))
	assert.True(t, ty.ShapeEq(fn1, fn2))
}

func TestShapeEqDifferentShapes(t *testing.T) {
	intTy := ty.NewRefined(ty.Int, ty.True)
	boolTy := ty.NewRefined(ty.Bool, ty.True)
	cases := map[string][2]ty.Ty{
		"base":         {intTy, boolTy},
		"refined/func": {intTy, ty.NewFuncTy(nil, intTy)},
		"arity":        {ty.NewFuncTy([]ty.Ty{intTy}, intTy), ty.NewFuncTy([]ty.Ty{intTy, intTy}, intTy)},
		"argument":     {ty.NewFuncTy([]ty.Ty{intTy}, intTy), ty.NewFuncTy([]ty.Ty{boolTy}, intTy)},
		"return":       {ty.NewFuncTy([]ty.Ty{intTy}, intTy), ty.NewFuncTy([]ty.Ty{intTy}, boolTy)},
		"nested": {
			ty.NewFuncTy([]ty.Ty{ty.NewFuncTy([]ty.Ty{intTy}, intTy)}, intTy),
			ty.NewFuncTy([]ty.Ty{ty.NewFuncTy([]ty.Ty{boolTy}, intTy)}, intTy),
		},
	}
	for name, c := range cases {
		t.Run(name, func(t *testing.T) {
			assert.False(t, ty.ShapeEq(c[0], c[1]))
			assert.False(t, ty.ShapeEq(c[1], c[0]))
		})
	}
}

func TestGetBase(t *testing.T) {
	base, ok := ty.GetBase(ty.NewRefined(ty.Bool, ty.True))
	assert.True(t, ok)
	assert.Equal(t, ty.Bool, base)

	_, ok = ty.GetBase(ty.NewFuncTy(nil, ty.NewRefined(ty.Int, ty.True)))
	assert.False(t, ok)
	assert.False(t, ty.HasBase(ty.NewFuncTy(nil, ty.NewRefined(ty.Int, ty.True)), ty.Int))
	assert.True(t, ty.HasBase(ty.NewRefined(ty.Int, ty.True), ty.Int))
	assert.False(t, ty.HasBase(ty.NewRefined(ty.Int, ty.True), ty.Bool))
}

// fn(x: int, y: { b | b > x }, g: fn(z: { b | b > z.0 }) -> { b | b > x }) -> { b | b > y }
func sampleFuncTy() *ty.FuncTy {
	nested := ty.NewFuncTy(
		[]ty.Ty{ty.NewRefined(ty.Int, gt(ty.Bound{}, arg(0, 0)))},
		ty.NewRefined(ty.Int, gt(ty.Bound{}, arg(1, 0))),
	)
	return ty.NewFuncTy([]ty.Ty{
		ty.NewRefined(ty.Int, ty.True),
		ty.NewRefined(ty.Int, gt(ty.Bound{}, arg(0, 0))),
		nested,
	}, ty.NewRefined(ty.Int, gt(ty.Bound{}, arg(0, 1))))
}

func TestProjectArgs(t *testing.T) {
	projected := sampleFuncTy().ProjectArgs(func(pos int) ty.Predicate {
		return ty.Local{ID: ty.LocalID(10 + pos)}
	})

	args := projected.Arguments()
	assert.Equal(t, "{ b: int | b > _10 }", args[1].String())
	assert.Equal(t, "{ b: int | b > _11 }", projected.ReturnTy().String())

	nested := args[2].(*ty.FuncTy)
	// the nested argument refers to its own binder and must be untouched
	assert.Equal(t, "{ b: int | b > $0.0 }", nested.Arguments()[0].String())
	// the nested return type refers to the outer x, one level out
	assert.Equal(t, "{ b: int | b > _10 }", nested.ReturnTy().String())
}

func TestProjectArgsDoesNotMutate(t *testing.T) {
	original := sampleFuncTy()
	before := original.String()
	_ = original.ProjectArgs(func(pos int) ty.Predicate { return ty.Lit{Literal: ty.IntLit(int64(pos))} })
	assert.Equal(t, before, original.String())
}

func TestProjectArgsRecordsOnHoles(t *testing.T) {
	fn := ty.NewFuncTy(
		[]ty.Ty{ty.NewRefined(ty.Int, ty.True), ty.NewRefined(ty.Int, ty.Hole{ID: 7})},
		ty.NewRefined(ty.Int, ty.True),
	)
	projected := fn.ProjectArgs(func(pos int) ty.Predicate { return ty.Local{ID: ty.LocalID(pos)} })
	hole := projected.Arguments()[1].(*ty.Refined).Pred.(ty.Hole)
	assert.Equal(t, ty.HoleID(7), hole.ID)
	assert.Len(t, hole.Substs, 2)
	assert.Equal(t, ty.ArgVar(ty.ArgIndex{Depth: 0, Pos: 1}), hole.Substs[1].Target)
	assert.Equal(t, ty.Local{ID: 1}, hole.Substs[1].Replacement)
}

func TestSelfify(t *testing.T) {
	refined := ty.NewRefined(ty.Int, gt(ty.Bound{}, ty.Lit{Literal: ty.IntLit(0)}))
	self := ty.Selfify(refined, ty.LocalVar(2))
	assert.Equal(t, "{ b: int | b > 0 && b == _2 }", self.String())

	// selfifying again is redundant but allowed
	twice := ty.Selfify(self, ty.LocalVar(2))
	assert.Equal(t, "{ b: int | b > 0 && b == _2 && b == _2 }", twice.String())

	fn := ty.NewFuncTy(nil, refined)
	assert.Same(t, fn, ty.Selfify(fn, ty.LocalVar(2)))

	trivial := ty.Selfify(ty.NewRefined(ty.Bool, ty.True), ty.LocalVar(0))
	assert.Equal(t, "{ b: bool | b == _0 }", trivial.String())
}

func TestSingleton(t *testing.T) {
	cases := map[ty.Literal]string{
		ty.IntLit(-1):    "{ b: int | b == -1 }",
		ty.BoolLit(true): "{ b: bool | b == true }",
		ty.UnitLit():     "{ b: () | b == () }",
	}
	for lit, expected := range cases {
		assert.Equal(t, expected, ty.Singleton(lit).String())
	}
}

func TestReplaceVariable(t *testing.T) {
	refined := ty.NewRefined(ty.Int, ty.AndPred(gt(ty.Bound{}, ty.Local{ID: 1}), ty.Hole{ID: 0}))
	replaced := ty.ReplaceVariable(refined, ty.LocalVar(1), ty.LocalVar(5))
	assert.Equal(t, "{ b: int | b > _5 && ?0[_5/_1] }", replaced.String())
	assert.Equal(t, "{ b: int | b > _1 && ?0 }", refined.String())
}

func TestReplaceVariableShiftsArguments(t *testing.T) {
	// fn(z: { b | b > $1.0 }) -> int, seen from a context where $0.0 is an argument
	fn := ty.NewFuncTy([]ty.Ty{ty.NewRefined(ty.Int, gt(ty.Bound{}, arg(1, 0)))}, ty.NewRefined(ty.Int, ty.True))
	replaced := ty.ReplaceVariable(fn, ty.ArgVar(ty.ArgIndex{Depth: 0, Pos: 0}), ty.LocalVar(3))
	assert.Equal(t, "fn({ b: int | b > _3 }) -> { b: int | true }", replaced.String())
}

func TestDisplay(t *testing.T) {
	assert.Equal(t,
		"fn({ b: int | true }, { b: int | b > $0.0 }, fn({ b: int | b > $0.0 }) -> { b: int | b > $1.0 }) -> { b: int | b > $0.1 }",
		sampleFuncTy().String(),
	)
	nested := ty.NewRefined(ty.Int, ty.Bin(ty.Mul, ty.Int, ty.Bin(ty.Add, ty.Int, ty.Bound{}, ty.Lit{Literal: ty.IntLit(1)}), arg(0, 0)))
	assert.Equal(t, "{ b: int | (b + 1) * $0.0 }", nested.String())
	assert.Equal(t, "{ b: bool | !(b && true) }",
		ty.NewRefined(ty.Bool, ty.NotPred(ty.Bin(ty.And, ty.Bool, ty.Bound{}, ty.True))).String())
}

func TestHoleGenUnique(t *testing.T) {
	gen := ty.NewHoleGen()
	const n = 100
	seen := make(map[ty.HoleID]bool, n)
	for i := 0; i < n; i++ {
		id := gen.Generate()
		assert.False(t, seen[id], fmt.Sprint("duplicate hole ", id))
		seen[id] = true
	}
	assert.Len(t, seen, n)
	assert.Equal(t, uint64(n), gen.Generated())
}

func TestHoleIDsAndFreeLocals(t *testing.T) {
	p := ty.AndPred(ty.Hole{ID: 1, Substs: []ty.Subst{{Target: ty.BoundVar(), Replacement: ty.Local{ID: 4}}}},
		ty.EqPred(ty.Int, ty.Local{ID: 2}, ty.Hole{ID: 9}))
	ids := ty.HoleIDs(p)
	assert.Equal(t, 2, ids.Size())
	assert.True(t, ids.Contains(1))
	assert.True(t, ids.Contains(9))

	locals := ty.FreeLocals(p)
	assert.True(t, locals.Contains(2))
	assert.True(t, locals.Contains(4))
	assert.True(t, ty.HasHoles(p))
	assert.False(t, ty.HasHoles(ty.True))
}
