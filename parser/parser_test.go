package parser_test

import (
	"go/token"
	"testing"

	"github.com/cottand/liquid/lqerr"
	"github.com/cottand/liquid/parser"
	"github.com/cottand/liquid/syntax"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testParse(t *testing.T, input string) *syntax.File {
	f, errs := parser.Parse(token.NewFileSet(), "test.lq", input)
	require.False(t, errs.HasError(), errs.Error())
	return f
}

func TestNoPanics(t *testing.T) {
	files := map[string]string{
		"empty program":       ``,
		"only fn":             `fn`,
		"unclosed params":     `fn f(x: int`,
		"unclosed refinement": `fn f(x: {b: int | b > ) -> int { bb0 { return x; } }`,
		"no terminator":       `fn f() -> int { bb0 { } }`,
		"bad character":       `fn f() -> int { bb0 { return 1 $ 2; } }`,
		"huge literal":        `fn f() -> int { bb0 { return 99999999999999999999; } }`,
	}

	for name, file := range files {
		t.Run(name, func(t *testing.T) {
			assert.NotPanics(t, func() {
				_, _ = parser.Parse(token.NewFileSet(), "test.lq", file)
			})
		})
	}
}

func TestEmptyFile(t *testing.T) {
	f := testParse(t, "// nothing here\n")
	assert.Empty(t, f.Funcs)
	assert.Equal(t, "test.lq", f.Name)
}

func TestFunctionDecl(t *testing.T) {
	src := testParse(t, `
fn inc(x: {b: int | b > 0}) -> {v: int | v > x} {
	let r: int;
	bb0 {
		r = x + 1;
		return r;
	}
}
`)
	require.Len(t, src.Funcs, 1)
	fn := src.Funcs[0]
	assert.Equal(t, "inc", fn.Name.Symbol)

	require.Len(t, fn.Params, 1)
	assert.Equal(t, "x", fn.Params[0].Name.Symbol)
	assert.IsType(t, &syntax.RefinedType{}, fn.Params[0].Type)
	param := fn.Params[0].Type.(*syntax.RefinedType)
	assert.Equal(t, "b", param.Binder.Symbol)
	assert.Equal(t, "int", param.Base.Symbol)
	assert.IsType(t, &syntax.BinaryExpr{}, param.Pred)
	assert.Equal(t, ">", param.Pred.(*syntax.BinaryExpr).Op)

	assert.IsType(t, &syntax.RefinedType{}, fn.Result)
	assert.Equal(t, "v", fn.Result.(*syntax.RefinedType).Binder.Symbol)

	require.Len(t, fn.Locals, 1)
	assert.Equal(t, "r", fn.Locals[0].Name.Symbol)
	assert.Equal(t, "int", fn.Locals[0].Base.Symbol)

	require.Len(t, fn.Blocks, 1)
	block := fn.Blocks[0]
	assert.Equal(t, "bb0", block.Name.Symbol)
	assert.Empty(t, block.Entry)
	require.Len(t, block.Stmts, 1)
	assert.Equal(t, "r", block.Stmts[0].Dest.Symbol)
	assert.IsType(t, &syntax.BinaryExpr{}, block.Stmts[0].Value)
	binExpr := block.Stmts[0].Value.(*syntax.BinaryExpr)
	assert.Equal(t, "+", binExpr.Op)
	assert.Equal(t, "x", binExpr.Lhs.(*syntax.Ident).Symbol)
	assert.Equal(t, int64(1), binExpr.Rhs.(*syntax.IntLit).Value)

	assert.IsType(t, &syntax.ReturnTerm{}, block.Term)
	assert.Equal(t, "r", block.Term.(*syntax.ReturnTerm).Value.(*syntax.Ident).Symbol)
}

func TestTypes(t *testing.T) {
	src := testParse(t, `
fn f(a: int, b: {c: bool | _}, g: fn(y: int) -> {r: int | r = y}) -> () {
	bb0 { return (); }
}
`)
	fn := src.Funcs[0]
	require.Len(t, fn.Params, 3)

	assert.IsType(t, &syntax.BaseType{}, fn.Params[0].Type)
	assert.Equal(t, "int", fn.Params[0].Type.(*syntax.BaseType).Name.Symbol)

	assert.IsType(t, &syntax.RefinedType{}, fn.Params[1].Type)
	assert.Nil(t, fn.Params[1].Type.(*syntax.RefinedType).Pred)

	assert.IsType(t, &syntax.FuncType{}, fn.Params[2].Type)
	funcType := fn.Params[2].Type.(*syntax.FuncType)
	require.Len(t, funcType.Params, 1)
	assert.Equal(t, "y", funcType.Params[0].Name.Symbol)
	// `=` is read as equality in refinements
	assert.Equal(t, "==", funcType.Result.(*syntax.RefinedType).Pred.(*syntax.BinaryExpr).Op)

	assert.IsType(t, &syntax.BaseType{}, fn.Result)
	assert.Equal(t, "()", fn.Result.(*syntax.BaseType).Name.Symbol)
	assert.IsType(t, &syntax.UnitLit{}, fn.Blocks[0].Term.(*syntax.ReturnTerm).Value)
}

func TestPrecedence(t *testing.T) {
	src := testParse(t, `
fn f(x: int) -> bool {
	bb0 { return x + 1 * 2 > 3 && !(x == 0) || false; }
}
`)
	value := src.Funcs[0].Blocks[0].Term.(*syntax.ReturnTerm).Value

	or := value.(*syntax.BinaryExpr)
	assert.Equal(t, "||", or.Op)
	and := or.Lhs.(*syntax.BinaryExpr)
	assert.Equal(t, "&&", and.Op)
	gt := and.Lhs.(*syntax.BinaryExpr)
	assert.Equal(t, ">", gt.Op)
	plus := gt.Lhs.(*syntax.BinaryExpr)
	assert.Equal(t, "+", plus.Op)
	assert.Equal(t, "*", plus.Rhs.(*syntax.BinaryExpr).Op)

	not := and.Rhs.(*syntax.UnaryExpr)
	assert.Equal(t, "!", not.Op)
	assert.Equal(t, "==", not.Operand.(*syntax.BinaryExpr).Op)
}

func TestLeftAssociative(t *testing.T) {
	src := testParse(t, `fn f(x: int) -> int { bb0 { return x - 1 - 2; } }`)
	value := src.Funcs[0].Blocks[0].Term.(*syntax.ReturnTerm).Value.(*syntax.BinaryExpr)
	assert.Equal(t, "-", value.Op)
	assert.Equal(t, int64(2), value.Rhs.(*syntax.IntLit).Value)
	assert.Equal(t, "-", value.Lhs.(*syntax.BinaryExpr).Op)
}

func TestTerminators(t *testing.T) {
	src := testParse(t, `
fn f(x: int) -> int {
	let c: bool;
	let r: int;
	bb0 { c = x > 0; if c then bb1 else bb2; }
	bb1 [x: {b: int | b > 0}] { assert c == false goto bb3; }
	bb2 { r = call g(x, -1) goto bb3; }
	bb3 { goto bb4; }
	bb4 { assert c goto bb5; }
	bb5 { abort; }
}
`)
	blocks := src.Funcs[0].Blocks
	require.Len(t, blocks, 6)

	ifTerm := blocks[0].Term.(*syntax.IfTerm)
	assert.Equal(t, "c", ifTerm.Cond.(*syntax.Ident).Symbol)
	assert.Equal(t, "bb1", ifTerm.Then.Symbol)
	assert.Equal(t, "bb2", ifTerm.Else.Symbol)

	require.Len(t, blocks[1].Entry, 1)
	assert.Equal(t, "x", blocks[1].Entry[0].Name.Symbol)
	assertTerm := blocks[1].Term.(*syntax.AssertTerm)
	assert.Equal(t, "c", assertTerm.Cond.(*syntax.Ident).Symbol)
	assert.False(t, assertTerm.Expected)
	assert.Equal(t, "bb3", assertTerm.Target.Symbol)

	call := blocks[2].Term.(*syntax.CallTerm)
	assert.Equal(t, "r", call.Dest.Symbol)
	assert.Equal(t, "g", call.Callee.Symbol)
	require.Len(t, call.Args, 2)
	assert.Equal(t, "-", call.Args[1].(*syntax.UnaryExpr).Op)
	assert.Equal(t, "bb3", call.Target.Symbol)

	assert.Equal(t, "bb4", blocks[3].Term.(*syntax.GotoTerm).Target.Symbol)

	plainAssert := blocks[4].Term.(*syntax.AssertTerm)
	assert.True(t, plainAssert.Expected)
	assert.Equal(t, "c", plainAssert.Cond.(*syntax.Ident).Symbol)

	assert.IsType(t, &syntax.AbortTerm{}, blocks[5].Term)
}

func TestPositions(t *testing.T) {
	fSet := token.NewFileSet()
	src := "fn f() -> int {\n  bb0 { return x; }\n}\n"
	f, errs := parser.Parse(fSet, "pos.lq", src)
	require.False(t, errs.HasError())

	ret := f.Funcs[0].Blocks[0].Term.(*syntax.ReturnTerm)
	x := ret.Value.(*syntax.Ident)
	position := fSet.Position(x.Pos())
	assert.Equal(t, "pos.lq", position.Filename)
	assert.Equal(t, 2, position.Line)
	assert.Equal(t, 16, position.Column)
	assert.Equal(t, x.Pos()+1, x.End())

	assert.Equal(t, fSet.Position(f.Funcs[0].Pos()).Offset, 0)
	assert.Equal(t, fSet.Position(ret.Pos()).Column, 9)
}

func TestSyntaxErrors(t *testing.T) {
	cases := map[string]struct {
		src    string
		line   int
		column int
		msg    string
	}{
		"missing arrow":    {"fn f() int { bb0 { abort; } }", 1, 8, "expected '->'"},
		"missing semi":     {"fn f() -> int {\n bb0 { return 1 }\n}", 2, 17, "expected ';'"},
		"no blocks":        {"fn f() -> int { }", 1, 17, "has no blocks"},
		"no terminator":    {"fn f() -> int { bb0 { } }", 1, 23, "has no terminator"},
		"bad character":    {"fn f() -> int { bb0 { return 1 # 2; } }", 1, 32, "unexpected character"},
		"not a type":       {"fn f(x: 3) -> int { bb0 { abort; } }", 1, 9, "expected a type"},
		"not an expr":      {"fn f() -> int { bb0 { return ;} }", 1, 30, "expected an expression"},
		"unclosed":         {"fn f() -> int { bb0 { abort; }", 1, 31, "is not closed"},
		"literal too big":  {"fn f() -> int { bb0 { return 99999999999999999999; } }", 1, 30, "out of range"},
		"call without dst": {"fn f() -> int { bb0 { call g() goto bb1; } }", 1, 23, "expected identifier"},
	}
	for name, c := range cases {
		t.Run(name, func(t *testing.T) {
			fSet := token.NewFileSet()
			f, errs := parser.Parse(fSet, "err.lq", c.src)
			assert.Nil(t, f)
			require.True(t, errs.HasError())
			require.Len(t, errs.Errors(), 1)
			err := errs.Errors()[0]
			assert.Equal(t, lqerr.Syntax, err.Code())
			assert.Contains(t, err.Error(), c.msg)
			position := fSet.Position(err.Pos())
			assert.Equal(t, c.line, position.Line)
			assert.Equal(t, c.column, position.Column)
		})
	}
}
