package tycheck_test

import (
	"context"
	"go/token"
	"testing"

	"github.com/cottand/liquid/lower"
	"github.com/cottand/liquid/lqerr"
	"github.com/cottand/liquid/mir"
	"github.com/cottand/liquid/parser"
	"github.com/cottand/liquid/ty"
	"github.com/cottand/liquid/tycheck"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func load(t *testing.T, src string) *mir.Program {
	f, errs := parser.Parse(token.NewFileSet(), "test.lq", src)
	require.False(t, errs.HasError(), errs.Error())
	prog, errs := lower.Lower(f)
	require.False(t, errs.HasError(), errs.Error())
	return prog
}

func check(t *testing.T, src string) *tycheck.Report {
	report, err := tycheck.CheckProgram(context.Background(), load(t, src), tycheck.Options{})
	require.NoError(t, err)
	return report
}

func resultOf(t *testing.T, report *tycheck.Report, name string) tycheck.FuncResult {
	for _, res := range report.Funcs {
		if res.Name == name {
			return res
		}
	}
	require.Failf(t, "no such function", "function '%s' was not checked", name)
	return tycheck.FuncResult{}
}

func TestIncrement(t *testing.T) {
	report := check(t, `
fn inc(x: {b: int | b > 0}) -> {b: int | b > x} {
	let r: int;
	bb0 {
		r = x + 1;
		return r;
	}
}
`)
	assert.True(t, report.OK(), report.Errors().Error())
	assert.Empty(t, report.Constraints())
}

func TestDecrementFails(t *testing.T) {
	report := check(t, `
fn dec(x: {b: int | b > 0}) -> {b: int | b > x} {
	let r: int;
	bb0 {
		r = x - 1;
		return r;
	}
}
`)
	assert.False(t, report.OK())
	err := resultOf(t, report, "dec").Err
	require.NotNil(t, err)
	assert.Equal(t, lqerr.SubtypeFailure, err.Code())
	assert.Contains(t, err.Error(), "return")
	assert.Contains(t, err.Error(), "b > x")
}

func TestJumpFailureNamesBlock(t *testing.T) {
	src := func(op string) string {
		return `
fn f(x: {b: int | b >= 0}) -> {b: int | true} {
	let y: int;
	bb1 { y = x ` + op + ` 1; goto bb2; }
	bb2 [y: {b: int | b >= 0}] { return y; }
}
`
	}
	assert.True(t, check(t, src("+")).OK())

	report := check(t, src("-"))
	err := resultOf(t, report, "f").Err
	require.NotNil(t, err)
	assert.Equal(t, lqerr.SubtypeFailure, err.Code())
	assert.Contains(t, err.Error(), "jump to block 'bb2'")
	assert.Contains(t, err.Error(), "for 'y'")
}

func TestJumpWithMissingLocal(t *testing.T) {
	report := check(t, `
fn f(x: {b: int | true}) -> {b: int | true} {
	let y: int;
	bb0 { goto bb1; }
	bb1 [y: {b: int | true}] { return y; }
}
`)
	err := resultOf(t, report, "f").Err
	require.NotNil(t, err)
	assert.Equal(t, lqerr.SubtypeFailure, err.Code())
	assert.Contains(t, err.Error(), "no value is available")
}

const callees = `
fn inc(x: {b: int | b > 0}) -> {b: int | b > x} {
	let r: int;
	bb0 { r = x + 1; return r; }
}
`

func TestCallInstantiatesCallee(t *testing.T) {
	report := check(t, callees+`
fn main(a: {b: int | b > 5}) -> {b: int | b > 6} {
	let r: int;
	bb0 { r = call inc(a) goto bb1; }
	bb1 [a: {b: int | b > 5}, r: {b: int | b > a}] { return r; }
}
`)
	assert.True(t, report.OK(), report.Errors().Error())
}

func TestCallArgumentChecked(t *testing.T) {
	report := check(t, callees+`
fn main() -> {b: int | true} {
	let r: int;
	bb0 { r = call inc(0) goto bb1; }
	bb1 [r: {b: int | true}] { return r; }
}
`)
	assert.Nil(t, resultOf(t, report, "inc").Err)
	err := resultOf(t, report, "main").Err
	require.NotNil(t, err)
	assert.Equal(t, lqerr.SubtypeFailure, err.Code())
	assert.Contains(t, err.Error(), "argument 0 of call to 'inc'")
}

func TestCallArity(t *testing.T) {
	report := check(t, callees+`
fn main() -> {b: int | true} {
	let r: int;
	bb0 { r = call inc(1, 2) goto bb1; }
	bb1 [r: {b: int | true}] { return r; }
}
`)
	err := resultOf(t, report, "main").Err
	require.NotNil(t, err)
	assert.Equal(t, lqerr.SynthesisFailure, err.Code())
}

func TestCallNonFunction(t *testing.T) {
	report := check(t, `
fn main(x: {b: int | true}) -> {b: int | true} {
	let r: int;
	bb0 { r = call x(1) goto bb1; }
	bb1 [r: {b: int | true}] { return r; }
}
`)
	err := resultOf(t, report, "main").Err
	require.NotNil(t, err)
	assert.Equal(t, lqerr.SynthesisFailure, err.Code())
	assert.Contains(t, err.Error(), "'x' is not a function")
}

func TestIfGuards(t *testing.T) {
	src := func(then, els string) string {
		return `
fn abs(x: {b: int | true}) -> {b: int | b >= 0} {
	let c: bool;
	let r: int;
	bb0 { c = x < 0; if c then ` + then + ` else ` + els + `; }
	neg [x: {b: int | b < 0}] { r = -x; return r; }
	pos [x: {b: int | b >= 0}] { return x; }
}
`
	}
	report := check(t, src("neg", "pos"))
	assert.True(t, report.OK(), report.Errors().Error())

	report = check(t, src("pos", "neg"))
	err := resultOf(t, report, "abs").Err
	require.NotNil(t, err)
	assert.Contains(t, err.Error(), "jump to block 'pos'")
}

func TestIfConditionMustBeBool(t *testing.T) {
	report := check(t, `
fn f(x: {b: int | true}) -> {b: int | true} {
	bb0 { if x then bb1 else bb1; }
	bb1 [x: {b: int | true}] { return x; }
}
`)
	err := resultOf(t, report, "f").Err
	require.NotNil(t, err)
	assert.Equal(t, lqerr.SynthesisFailure, err.Code())
}

func TestAssert(t *testing.T) {
	src := func(expected, declared string) string {
		return `
fn f(x: {b: int | true}) -> {b: int | true} {
	let c: bool;
	bb0 { c = x > 0; assert c == ` + expected + ` goto bb1; }
	bb1 [x: {b: int | ` + declared + `}] { return x; }
}
`
	}
	assert.True(t, check(t, src("true", "b > 0")).OK())
	assert.True(t, check(t, src("false", "b <= 0")).OK())
	assert.False(t, check(t, src("false", "b > 0")).OK())
}

func TestAbortIsTerminal(t *testing.T) {
	report := check(t, `
fn f(x: {b: int | true}) -> {b: int | b > 0} {
	bb0 { abort; }
}
`)
	assert.True(t, report.OK())
}

func TestReassignmentKeepsFacts(t *testing.T) {
	report := check(t, `
fn f(x: {b: int | b > 0}) -> {b: int | b > x + 1} {
	let r: int;
	bb0 { r = x + 1; r = r + 1; return r; }
}
`)
	assert.True(t, report.OK(), report.Errors().Error())
}

func TestParametersCannotBeAssigned(t *testing.T) {
	cases := map[string]string{
		"statement": `
fn f(x: {b: int | b > 0}) -> {b: int | b > x} {
	let r: int;
	bb0 { x = 0; r = 1; return r; }
}`,
		"call destination": `
fn one() -> {b: int | b == 1} { bb0 { return 1; } }
fn f(x: {b: int | b > 0}) -> {b: int | b > x} {
	let r: int;
	bb0 { x = call one() goto bb1; }
	bb1 { r = 2; return r; }
}`,
	}
	for name, src := range cases {
		t.Run(name, func(t *testing.T) {
			report := check(t, src)
			err := resultOf(t, report, "f").Err
			require.NotNil(t, err)
			assert.Equal(t, lqerr.SynthesisFailure, err.Code(), err.Error())
			assert.Contains(t, err.Error(), "cannot assign to parameter 'x'")
		})
	}
}

func TestCallerTrustsCalleeReturn(t *testing.T) {
	report := check(t, `
fn f(x: {b: int | b > 0}) -> {b: int | b > x} {
	let r: int;
	bb0 { x = 0; r = 1; return r; }
}

fn g(a: {b: int | b > 0}) -> {b: int | b > 100} {
	let c: bool;
	let r: int;
	bb0 { c = a > 200; if c then big else small; }
	big [a: {b: int | b > 200}] { r = call f(a) goto done; }
	small { abort; }
	done [r: {b: int | b > 100}] { return r; }
}
`)
	assert.False(t, report.OK())
	assert.NotNil(t, resultOf(t, report, "f").Err)
	assert.Nil(t, resultOf(t, report, "g").Err)
}

func TestLoop(t *testing.T) {
	report := check(t, `
fn count(n: {b: int | b >= 0}) -> {b: int | b >= 0} {
	let i: int;
	let c: bool;
	bb0 { i = 0; goto loop; }
	loop [n: {b: int | b >= 0}, i: {b: int | b >= 0 && b <= n}] { c = i < n; if c then body else done; }
	body [n: {b: int | b >= 0}, i: {b: int | b >= 0 && b < n}] { i = i + 1; goto loop; }
	done [i: {b: int | b >= 0}] { return i; }
}
`)
	assert.True(t, report.OK(), report.Errors().Error())
}

func TestSynthesisFailures(t *testing.T) {
	cases := map[string]string{
		"use before assignment": `fn f() -> int { let r: int; bb0 { return r; } }`,
		"ill-typed operation":   `fn f(x: {b: int | true}) -> int { let r: int; bb0 { r = x + true; return r; } }`,
		"not on int":            `fn f(x: {b: int | true}) -> bool { let r: bool; bb0 { r = !x; return r; } }`,
		"assign bool to int":    `fn f() -> int { let r: int; bb0 { r = true; return r; } }`,
		"function in operation": `fn g() -> int { bb0 { return 1; } } fn f() -> int { let r: int; bb0 { r = g + 1; return r; } }`,
	}
	for name, src := range cases {
		t.Run(name, func(t *testing.T) {
			report := check(t, src)
			err := resultOf(t, report, "f").Err
			require.NotNil(t, err)
			assert.Equal(t, lqerr.SynthesisFailure, err.Code(), err.Error())
		})
	}
}

const higherOrder = `
fn apply(f: fn(y: {b: int | b > 0}) -> {b: int | b > y}, x: {b: int | b > 0}) -> {b: int | b > 0} {
	let r: int;
	bb0 { r = call f(x) goto bb1; }
	bb1 [x: {b: int | b > 0}, r: {b: int | b > x}] { return r; }
}
fn dec(x: {b: int | b > 0}) -> {b: int | b > x - 2} {
	let r: int;
	bb0 { r = x - 1; return r; }
}
`

func TestHigherOrder(t *testing.T) {
	report := check(t, higherOrder+callees+`
fn main(a: {b: int | b > 0}) -> {b: int | b > 0} {
	let r: int;
	bb0 { r = call apply(inc, a) goto bb1; }
	bb1 [r: {b: int | b > 0}] { return r; }
}
`)
	assert.True(t, report.OK(), report.Errors().Error())
}

func TestHigherOrderReturnIsCovariant(t *testing.T) {
	report := check(t, higherOrder+`
fn main(a: {b: int | b > 0}) -> {b: int | b > 0} {
	let r: int;
	bb0 { r = call apply(dec, a) goto bb1; }
	bb1 [r: {b: int | b > 0}] { return r; }
}
`)
	assert.Nil(t, resultOf(t, report, "apply").Err)
	assert.Nil(t, resultOf(t, report, "dec").Err)
	err := resultOf(t, report, "main").Err
	require.NotNil(t, err)
	assert.Equal(t, lqerr.SubtypeFailure, err.Code())
	assert.Contains(t, err.Error(), "argument 0 of call to 'apply'")
}

func TestHoleConstraintsDeferred(t *testing.T) {
	prog := load(t, `
fn id(x: int) -> int {
	bb0 { return x; }
}
`)
	report, err := tycheck.CheckProgram(context.Background(), prog, tycheck.Options{})
	require.NoError(t, err)
	assert.True(t, report.OK())
	constraints := report.Constraints()
	require.Len(t, constraints, 1)
	assert.Equal(t, "return", constraints[0].Origin)
	assert.Contains(t, constraints[0].Format(prog.Funcs[0]), " |- ?1")
	holes := report.Holes()
	assert.Equal(t, 2, holes.Size())
	assert.True(t, holes.Contains(0))
	assert.True(t, holes.Contains(1))
}

func TestHolesDoNotHideKnownFacts(t *testing.T) {
	// the hole-free hypotheses are enough, so nothing is deferred
	report := check(t, `
fn f(x: int) -> {b: int | b > x} {
	let r: int;
	bb0 { r = x + 1; return r; }
}
`)
	assert.True(t, report.OK())
	assert.Empty(t, report.Constraints())
}

const mixed = callees + `
fn bad(x: {b: int | b > 0}) -> {b: int | b > x} {
	let r: int;
	bb0 { r = x - 1; return r; }
}
fn holes(x: int) -> int {
	bb0 { return x; }
}
fn loop(n: {b: int | b >= 0}) -> {b: int | b >= 0} {
	let i: int;
	let c: bool;
	bb0 { i = 0; goto head; }
	head [n: {b: int | b >= 0}, i: {b: int | b >= 0 && b <= n}] { c = i < n; if c then body else done; }
	body [n: {b: int | b >= 0}, i: {b: int | b >= 0 && b < n}] { i = i + 1; goto head; }
	done [i: {b: int | b >= 0}] { return i; }
}
`

func TestParallelMatchesSequential(t *testing.T) {
	sequential, err := tycheck.CheckProgram(context.Background(), load(t, mixed), tycheck.Options{})
	require.NoError(t, err)
	parallel, err := tycheck.CheckProgram(context.Background(), load(t, mixed), tycheck.Options{Parallel: true})
	require.NoError(t, err)

	require.Len(t, parallel.Funcs, len(sequential.Funcs))
	for i, seq := range sequential.Funcs {
		par := parallel.Funcs[i]
		assert.Equal(t, seq.Name, par.Name)
		assert.Equal(t, seq.Err == nil, par.Err == nil, seq.Name)
		if seq.Err != nil && par.Err != nil {
			assert.Equal(t, seq.Err.Error(), par.Err.Error())
		}
		assert.Len(t, par.Constraints, len(seq.Constraints))
	}
	assert.Nil(t, resultOf(t, parallel, "inc").Err)
	assert.NotNil(t, resultOf(t, parallel, "bad").Err)
	assert.Nil(t, resultOf(t, parallel, "loop").Err)
}

func TestCheckProgramCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	for _, parallel := range []bool{false, true} {
		report, err := tycheck.CheckProgram(ctx, load(t, mixed), tycheck.Options{Parallel: parallel})
		assert.ErrorIs(t, err, context.Canceled)
		assert.Nil(t, report)
	}
}

type countingSolver struct {
	calls  int
	answer bool
}

func (s *countingSolver) Valid([]ty.Predicate, ty.Predicate) bool {
	s.calls++
	return s.answer
}

func TestCustomSolver(t *testing.T) {
	solver := &countingSolver{answer: true}
	report, err := tycheck.CheckProgram(context.Background(), load(t, `
fn dec(x: {b: int | b > 0}) -> {b: int | b > x} {
	let r: int;
	bb0 { r = x - 1; return r; }
}
`), tycheck.Options{Solver: solver})
	require.NoError(t, err)
	assert.True(t, report.OK())
	assert.Equal(t, 1, solver.calls)
}
