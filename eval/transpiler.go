// Package eval runs mir programs by transpiling them to Go and interpreting
// the result with yaegi.
package eval

import (
	"bytes"
	"errors"
	"fmt"
	goast "go/ast"
	"go/format"
	"go/token"
	"log/slog"
	"strconv"

	"github.com/cottand/liquid/internal/log"
	"github.com/cottand/liquid/mir"
	"github.com/cottand/liquid/ty"
	"github.com/hashicorp/go-set/v3"
)

const goVersion = "1.23.3"

var liquidToGoOperators = map[ty.BinOp]token.Token{
	ty.Add: token.ADD,
	ty.Sub: token.SUB,
	ty.Mul: token.MUL,
	ty.Eq:  token.EQL,
	ty.Ne:  token.NEQ,
	ty.Lt:  token.LSS,
	ty.Le:  token.LEQ,
	ty.Gt:  token.GTR,
	ty.Ge:  token.GEQ,
	ty.And: token.LAND,
	ty.Or:  token.LOR,
}

// Transpiler renders a mir.Program as a Go main package. Every function
// becomes a Go function, every local a Go variable and every basic block a
// labelled sequence of statements ending in a jump, a return or a panic.
//
// Integers are int64, so unlike in refinements, arithmetic may overflow.
type Transpiler struct {
	prog *mir.Program

	*slog.Logger
}

func NewTranspiler(prog *mir.Program) *Transpiler {
	return &Transpiler{
		prog:   prog,
		Logger: log.Section("eval"),
	}
}

// Transpile renders prog as the source of a Go main package
func Transpile(prog *mir.Program) (string, error) {
	file, err := NewTranspiler(prog).TranspileProgram()
	if err != nil {
		return "", err
	}
	sourceBuf := bytes.NewBuffer(nil)
	if err := format.Node(sourceBuf, token.NewFileSet(), file); err != nil {
		return "", fmt.Errorf("could not print transpiled program: %w", err)
	}
	return sourceBuf.String(), nil
}

func (tp *Transpiler) TranspileProgram() (*goast.File, error) {
	var decls []goast.Decl
	var errs []error
	for _, fn := range tp.prog.Funcs {
		decl, err := tp.transpileFunc(fn)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		decls = append(decls, decl)
	}
	decls = append(decls, &goast.FuncDecl{
		Name: goast.NewIdent("main"),
		Type: &goast.FuncType{Params: &goast.FieldList{}},
		Body: &goast.BlockStmt{},
	})
	return &goast.File{
		Name:      goast.NewIdent("main"),
		GoVersion: goVersion,
		Decls:     decls,
	}, errors.Join(errs...)
}

// GoFuncName is the name of the Go function fn is transpiled to
func GoFuncName(fn *mir.Func) string {
	return "f_" + fn.Name
}

func localName(fn *mir.Func, l mir.Local) string {
	return "v_" + fn.LocalName(l)
}

func labelName(bb *mir.BBlock) string {
	return "b_" + bb.Name
}

func (tp *Transpiler) transpileFunc(fn *mir.Func) (*goast.FuncDecl, error) {
	funcType, err := tp.transpileFuncTy(fn.Ty)
	if err != nil {
		return nil, fmt.Errorf("function '%s': %w", fn.Name, err)
	}
	for pos, param := range fn.Params {
		funcType.Params.List[pos].Names = []*goast.Ident{goast.NewIdent(localName(fn, param))}
	}

	var body []goast.Stmt
	isParam := set.From(fn.Params)
	for l, decl := range fn.Locals {
		if isParam.Contains(mir.Local(l)) {
			continue
		}
		goType, err := tp.transpileType(decl.Ty)
		if err != nil {
			return nil, fmt.Errorf("function '%s': %w", fn.Name, err)
		}
		name := goast.NewIdent(localName(fn, mir.Local(l)))
		body = append(body,
			&goast.DeclStmt{Decl: &goast.GenDecl{
				Tok:   token.VAR,
				Specs: []goast.Spec{&goast.ValueSpec{Names: []*goast.Ident{name}, Type: goType}},
			}},
			// locals are not necessarily read
			&goast.AssignStmt{
				Lhs: []goast.Expr{goast.NewIdent("_")},
				Tok: token.ASSIGN,
				Rhs: []goast.Expr{goast.NewIdent(name.Name)},
			},
		)
	}

	jumpedTo := set.New[mir.BBlockID](len(fn.BBlocks))
	for _, bb := range fn.BBlocks {
		jumpedTo.InsertSlice(bb.Successors())
	}
	if len(fn.BBlocks) > 0 && fn.BBlocks[0].ID != fn.Entry {
		jumpedTo.Insert(fn.Entry)
		body = append(body, tp.jump(fn, fn.Entry))
	}

	for _, bb := range fn.BBlocks {
		stmts, err := tp.transpileBBlock(fn, bb)
		if err != nil {
			return nil, fmt.Errorf("function '%s', block '%s': %w", fn.Name, bb.Name, err)
		}
		if jumpedTo.Contains(bb.ID) {
			stmts[0] = &goast.LabeledStmt{Label: goast.NewIdent(labelName(bb)), Stmt: stmts[0]}
		}
		body = append(body, stmts...)
	}
	tp.Debug("transpiled function", "func", fn.Name, "blocks", len(fn.BBlocks), "labels", jumpedTo.Size())

	return &goast.FuncDecl{
		Name: goast.NewIdent(GoFuncName(fn)),
		Type: funcType,
		Body: &goast.BlockStmt{List: body},
	}, nil
}

// transpileBBlock returns at least one statement, the last one being the terminator
func (tp *Transpiler) transpileBBlock(fn *mir.Func, bb *mir.BBlock) ([]goast.Stmt, error) {
	var stmts []goast.Stmt
	for _, stmt := range bb.Statements {
		assign, ok := stmt.(*mir.Assign)
		if !ok {
			return nil, fmt.Errorf("unexpected statement %T", stmt)
		}
		value, err := tp.transpileRvalue(fn, assign.Rvalue)
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, &goast.AssignStmt{
			Lhs: []goast.Expr{goast.NewIdent(localName(fn, assign.Local))},
			Tok: token.ASSIGN,
			Rhs: []goast.Expr{value},
		})
	}
	terminator, err := tp.transpileTerminator(fn, bb)
	if err != nil {
		return nil, err
	}
	return append(stmts, terminator...), nil
}

func (tp *Transpiler) jump(fn *mir.Func, target mir.BBlockID) goast.Stmt {
	bb, ok := fn.BBlock(target)
	if !ok {
		return panicStmt(fmt.Sprintf("jump to missing block %d", target))
	}
	return &goast.BranchStmt{Tok: token.GOTO, Label: goast.NewIdent(labelName(bb))}
}

func panicStmt(msg string) goast.Stmt {
	return &goast.ExprStmt{X: &goast.CallExpr{
		Fun:  goast.NewIdent("panic"),
		Args: []goast.Expr{&goast.BasicLit{Kind: token.STRING, Value: strconv.Quote(msg)}},
	}}
}

func (tp *Transpiler) transpileTerminator(fn *mir.Func, bb *mir.BBlock) ([]goast.Stmt, error) {
	switch term := bb.Terminator.(type) {
	case *mir.Return:
		value, err := tp.transpileOperand(fn, term.Operand)
		if err != nil {
			return nil, err
		}
		return []goast.Stmt{&goast.ReturnStmt{Results: []goast.Expr{value}}}, nil

	case *mir.Goto:
		return []goast.Stmt{tp.jump(fn, term.Target)}, nil

	case *mir.If:
		cond, err := tp.transpileOperand(fn, term.Cond)
		if err != nil {
			return nil, err
		}
		return []goast.Stmt{&goast.IfStmt{
			Cond: cond,
			Body: &goast.BlockStmt{List: []goast.Stmt{tp.jump(fn, term.Then)}},
			Else: &goast.BlockStmt{List: []goast.Stmt{tp.jump(fn, term.Else)}},
		}}, nil

	case *mir.Assert:
		cond, err := tp.transpileOperand(fn, term.Cond)
		if err != nil {
			return nil, err
		}
		if term.Expected {
			cond = &goast.UnaryExpr{Op: token.NOT, X: cond}
		}
		msg := fmt.Sprintf("assertion failed in block '%s' of '%s'", bb.Name, fn.Name)
		return []goast.Stmt{
			&goast.IfStmt{Cond: cond, Body: &goast.BlockStmt{List: []goast.Stmt{panicStmt(msg)}}},
			tp.jump(fn, term.Target),
		}, nil

	case *mir.Call:
		callee, err := tp.transpileOperand(fn, term.Callee)
		if err != nil {
			return nil, err
		}
		call := &goast.CallExpr{Fun: callee}
		for _, arg := range term.Args {
			goArg, err := tp.transpileOperand(fn, arg)
			if err != nil {
				return nil, err
			}
			call.Args = append(call.Args, goArg)
		}
		return []goast.Stmt{
			&goast.AssignStmt{
				Lhs: []goast.Expr{goast.NewIdent(localName(fn, term.Dest))},
				Tok: token.ASSIGN,
				Rhs: []goast.Expr{call},
			},
			tp.jump(fn, term.Target),
		}, nil

	case *mir.Abort:
		return []goast.Stmt{panicStmt(fmt.Sprintf("abort in block '%s' of '%s'", bb.Name, fn.Name))}, nil
	}
	return nil, fmt.Errorf("unexpected terminator %T", bb.Terminator)
}

func (tp *Transpiler) transpileRvalue(fn *mir.Func, rv mir.Rvalue) (goast.Expr, error) {
	switch rv := rv.(type) {
	case *mir.Use:
		return tp.transpileOperand(fn, rv.Operand)
	case *mir.BinApp:
		op, ok := liquidToGoOperators[rv.Op]
		if !ok {
			return nil, fmt.Errorf("unexpected operator '%v'", rv.Op)
		}
		lhs, err := tp.transpileOperand(fn, rv.Lhs)
		if err != nil {
			return nil, err
		}
		rhs, err := tp.transpileOperand(fn, rv.Rhs)
		if err != nil {
			return nil, err
		}
		return &goast.BinaryExpr{X: lhs, Op: op, Y: rhs}, nil
	case *mir.UnApp:
		operand, err := tp.transpileOperand(fn, rv.Operand)
		if err != nil {
			return nil, err
		}
		op := token.SUB
		if rv.Op == ty.Not {
			op = token.NOT
		}
		return &goast.UnaryExpr{Op: op, X: &goast.ParenExpr{X: operand}}, nil
	}
	return nil, fmt.Errorf("unexpected rvalue %T", rv)
}

func (tp *Transpiler) transpileOperand(fn *mir.Func, op mir.Operand) (goast.Expr, error) {
	switch op := op.(type) {
	case *mir.LocalOp:
		return goast.NewIdent(localName(fn, op.Local)), nil
	case *mir.LitOp:
		return transpileLiteral(op.Literal), nil
	case *mir.FuncOp:
		callee, ok := tp.prog.Func(op.Func)
		if !ok {
			return nil, fmt.Errorf("reference to missing function %d", op.Func)
		}
		return goast.NewIdent(GoFuncName(callee)), nil
	}
	return nil, fmt.Errorf("unexpected operand %T", op)
}

func transpileLiteral(lit ty.Literal) goast.Expr {
	switch lit.BaseTy() {
	case ty.Int:
		return &goast.CallExpr{
			Fun:  goast.NewIdent("int64"),
			Args: []goast.Expr{&goast.BasicLit{Kind: token.INT, Value: strconv.FormatInt(lit.Int(), 10)}},
		}
	case ty.Bool:
		return goast.NewIdent(strconv.FormatBool(lit.Bool()))
	default:
		return &goast.CompositeLit{Type: unitType()}
	}
}

func unitType() goast.Expr {
	return &goast.StructType{Fields: &goast.FieldList{}}
}

func typeTagToGoType(base ty.BaseTy) (goast.Expr, bool) {
	switch base {
	case ty.Int:
		return goast.NewIdent("int64"), true
	case ty.Bool:
		return goast.NewIdent("bool"), true
	case ty.Unit:
		return unitType(), true
	}
	return nil, false
}

func (tp *Transpiler) transpileType(t ty.Ty) (goast.Expr, error) {
	switch t := t.(type) {
	case *ty.Refined:
		goType, ok := typeTagToGoType(t.Base)
		if !ok {
			return nil, fmt.Errorf("unexpected base type %v", t.Base)
		}
		return goType, nil
	case *ty.FuncTy:
		return tp.transpileFuncTy(t)
	}
	return nil, fmt.Errorf("unexpected type %T", t)
}

// transpileFuncTy drops refinements, which have no runtime representation
func (tp *Transpiler) transpileFuncTy(t *ty.FuncTy) (*goast.FuncType, error) {
	params := &goast.FieldList{}
	for _, arg := range t.Arguments() {
		goType, err := tp.transpileType(arg)
		if err != nil {
			return nil, err
		}
		params.List = append(params.List, &goast.Field{Type: goType})
	}
	result, err := tp.transpileType(t.ReturnTy())
	if err != nil {
		return nil, err
	}
	return &goast.FuncType{
		Params:  params,
		Results: &goast.FieldList{List: []*goast.Field{{Type: result}}},
	}, nil
}
