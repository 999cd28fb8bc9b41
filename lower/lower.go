// Package lower turns a parsed syntax.File into the mir.Program the checker
// works on: names become locals, blocks and functions, and every declared
// type is resolved into a ty.Ty.
package lower

import (
	"log/slog"

	"github.com/cottand/liquid/internal/log"
	"github.com/cottand/liquid/lqerr"
	"github.com/cottand/liquid/mir"
	"github.com/cottand/liquid/resolve"
	"github.com/cottand/liquid/syntax"
	"github.com/cottand/liquid/ty"
)

type lowerer struct {
	holes    *ty.HoleGen
	resolver *resolve.Resolver
	funcs    map[string]mir.FuncID
	logger   *slog.Logger
}

// Lower builds the program declared in file. Functions are lowered
// independently, and all their errors are reported together. No program is
// returned if there are any.
func Lower(file *syntax.File) (*mir.Program, *lqerr.Errors) {
	holes := ty.NewHoleGen()
	l := &lowerer{
		holes:    holes,
		resolver: resolve.NewResolver(resolve.GenHoles{Gen: holes}),
		funcs:    make(map[string]mir.FuncID, len(file.Funcs)),
		logger:   log.Section("lower"),
	}
	prog := &mir.Program{Holes: holes}
	var errs *lqerr.Errors

	for _, decl := range file.Funcs {
		if _, ok := l.funcs[decl.Name.Symbol]; ok {
			errs = errs.With(lqerr.New(lqerr.NewDuplicateName{Positioner: decl.Name.Range, Kind: "function", Name: decl.Name.Symbol}))
			continue
		}
		l.funcs[decl.Name.Symbol] = mir.FuncID(len(l.funcs))
	}
	if errs.HasError() {
		return nil, errs
	}

	for _, decl := range file.Funcs {
		f, fErrs := l.lowerFunc(decl)
		if fErrs.HasError() {
			l.logger.Debug("failed to lower function", "func", decl.Name.Symbol, "errors", fErrs)
			errs = errs.Merge(fErrs)
			continue
		}
		prog.Funcs = append(prog.Funcs, f)
	}
	if errs.HasError() {
		return nil, errs
	}
	l.logger.Debug("lowered program", "funcs", len(prog.Funcs), "holes", holes.Generated())
	return prog, nil
}

// funcLowerer lowers the body of a single function
type funcLowerer struct {
	*lowerer
	f      *mir.Func
	locals map[string]mir.Local
	blocks map[string]mir.BBlockID
	errs   *lqerr.Errors
}

func (l *lowerer) lowerFunc(decl *syntax.FuncDecl) (*mir.Func, *lqerr.Errors) {
	fnTy, err := l.resolver.FuncTy(resolve.NewCtx(), &syntax.FuncType{
		Range:  decl.Range,
		Params: decl.Params,
		Result: decl.Result,
	})
	if err != nil {
		return nil, (&lqerr.Errors{}).With(err)
	}

	fl := &funcLowerer{
		lowerer: l,
		f: &mir.Func{
			Range:     decl.Range,
			ID:        l.funcs[decl.Name.Symbol],
			Name:      decl.Name.Symbol,
			Ty:        fnTy,
			BBlockTys: map[mir.BBlockID]map[mir.Local]ty.Ty{},
		},
		locals: map[string]mir.Local{},
		blocks: map[string]mir.BBlockID{},
	}

	for i, param := range decl.Params {
		if local, ok := fl.declareLocal(param.Name, param.Range, fnTy.Arguments()[i]); ok {
			fl.f.Params = append(fl.f.Params, local)
		}
	}
	for _, let := range decl.Locals {
		base, ok := ty.BaseTyFromName(let.Base.Symbol)
		if !ok {
			fl.errs = fl.errs.With(lqerr.New(lqerr.NewUnboundIdentifier{Positioner: let.Base.Range, Symbol: let.Base.Symbol}))
			continue
		}
		fl.declareLocal(let.Name, let.Range, ty.NewRefined(base, ty.True))
	}

	for _, block := range decl.Blocks {
		if _, ok := fl.blocks[block.Name.Symbol]; ok {
			fl.errs = fl.errs.With(lqerr.New(lqerr.NewDuplicateName{Positioner: block.Name.Range, Kind: "block", Name: block.Name.Symbol}))
			continue
		}
		fl.blocks[block.Name.Symbol] = mir.BBlockID(len(fl.blocks))
	}
	if fl.errs.HasError() {
		return nil, fl.errs
	}

	for i, block := range decl.Blocks {
		bb := fl.lowerBlock(block)
		if i == 0 {
			fl.f.Entry = bb.ID
			if len(block.Entry) != 0 {
				fl.errs = fl.errs.With(lqerr.New(lqerr.NewSyntax{
					Positioner: block.Entry[0].Range,
					Message:    "the entry block is typed by the function arguments and cannot declare entry types",
				}))
			}
		} else {
			fl.lowerEntryTy(bb.ID, block.Entry)
		}
		fl.f.BBlocks = append(fl.f.BBlocks, bb)
	}
	if fl.errs.HasError() {
		return nil, fl.errs
	}
	return fl.f, nil
}

func (fl *funcLowerer) declareLocal(name syntax.Ident, rng syntax.Range, t ty.Ty) (mir.Local, bool) {
	if _, ok := fl.locals[name.Symbol]; ok {
		fl.errs = fl.errs.With(lqerr.New(lqerr.NewDuplicateName{Positioner: name.Range, Kind: "local", Name: name.Symbol}))
		return 0, false
	}
	local := mir.Local(len(fl.f.Locals))
	fl.f.Locals = append(fl.f.Locals, mir.LocalDecl{Range: rng, Name: name.Symbol, Ty: t})
	fl.locals[name.Symbol] = local
	return local, true
}

// localsScope binds the name of every local of base type, so that the
// refinements of block entry types can refer to them
func (fl *funcLowerer) localsScope() *resolve.Scope {
	scope := resolve.NewScope()
	for i, decl := range fl.f.Locals {
		if base, ok := ty.GetBase(decl.Ty); ok {
			scope.BindIdent(syntax.Ident{Symbol: decl.Name}, ty.Local{ID: mir.Local(i)}, base)
		}
	}
	return scope
}

func (fl *funcLowerer) lowerEntryTy(id mir.BBlockID, entry []syntax.Param) {
	declared := make(map[mir.Local]ty.Ty, len(entry))
	ctx := resolve.NewCtx(fl.localsScope())
	for _, param := range entry {
		local, ok := fl.locals[param.Name.Symbol]
		if !ok {
			fl.errs = fl.errs.With(lqerr.New(lqerr.NewUnboundIdentifier{Positioner: param.Name.Range, Symbol: param.Name.Symbol}))
			continue
		}
		if _, ok := declared[local]; ok {
			fl.errs = fl.errs.With(lqerr.New(lqerr.NewDuplicateName{Positioner: param.Name.Range, Kind: "entry type for local", Name: param.Name.Symbol}))
			continue
		}
		t, err := fl.resolver.Ty(ctx, param.Type)
		if err != nil {
			fl.errs = fl.errs.With(err)
			continue
		}
		declared[local] = t
	}
	fl.f.BBlockTys[id] = declared
}

func (fl *funcLowerer) lowerBlock(block *syntax.Block) *mir.BBlock {
	bb := &mir.BBlock{
		Range: block.Range,
		ID:    fl.blocks[block.Name.Symbol],
		Name:  block.Name.Symbol,
	}
	for _, stmt := range block.Stmts {
		local, ok := fl.local(stmt.Dest)
		rvalue := fl.rvalue(stmt.Value)
		if ok && rvalue != nil {
			bb.Statements = append(bb.Statements, &mir.Assign{Range: stmt.Range, Local: local, Rvalue: rvalue})
		}
	}
	bb.Terminator = fl.terminator(block.Term)
	return bb
}

func (fl *funcLowerer) terminator(term syntax.Terminator) mir.Terminator {
	switch term := term.(type) {
	case *syntax.ReturnTerm:
		return &mir.Return{Range: term.Range, Operand: fl.operand(term.Value)}
	case *syntax.GotoTerm:
		return &mir.Goto{Range: term.Range, Target: fl.block(term.Target)}
	case *syntax.IfTerm:
		return &mir.If{
			Range: term.Range,
			Cond:  fl.operand(term.Cond),
			Then:  fl.block(term.Then),
			Else:  fl.block(term.Else),
		}
	case *syntax.AssertTerm:
		return &mir.Assert{
			Range:    term.Range,
			Cond:     fl.operand(term.Cond),
			Expected: term.Expected,
			Target:   fl.block(term.Target),
		}
	case *syntax.CallTerm:
		call := &mir.Call{
			Range:  term.Range,
			Callee: fl.operand(&term.Callee),
			Target: fl.block(term.Target),
		}
		call.Dest, _ = fl.local(term.Dest)
		for _, arg := range term.Args {
			call.Args = append(call.Args, fl.operand(arg))
		}
		return call
	case *syntax.AbortTerm:
		return &mir.Abort{Range: term.Range}
	default:
		lqerr.FatalDump("unknown syntax.Terminator", term)
		return nil
	}
}

func (fl *funcLowerer) local(name syntax.Ident) (mir.Local, bool) {
	local, ok := fl.locals[name.Symbol]
	if !ok {
		fl.errs = fl.errs.With(lqerr.New(lqerr.NewUnboundIdentifier{Positioner: name.Range, Symbol: name.Symbol}))
	}
	return local, ok
}

func (fl *funcLowerer) block(name syntax.Ident) mir.BBlockID {
	id, ok := fl.blocks[name.Symbol]
	if !ok {
		fl.errs = fl.errs.With(lqerr.New(lqerr.NewUnknownBlock{Positioner: name.Range, Name: name.Symbol}))
	}
	return id
}

// rvalue lowers the value of an assignment, whose operands must be
// locals, functions or literals
func (fl *funcLowerer) rvalue(e syntax.Expr) mir.Rvalue {
	rng := syntax.RangeOf(e)
	switch e := e.(type) {
	case *syntax.BinaryExpr:
		op, ok := ty.BinOpFromSymbol(e.Op)
		if !ok {
			lqerr.Fatalf("parser produced unknown binary operator '%s'", e.Op)
		}
		return &mir.BinApp{Range: rng, Op: op, Lhs: fl.operand(e.Lhs), Rhs: fl.operand(e.Rhs)}
	case *syntax.UnaryExpr:
		if lit, ok := negativeLiteral(e); ok {
			return &mir.Use{Range: rng, Operand: lit}
		}
		op := ty.Neg
		if e.Op == "!" {
			op = ty.Not
		}
		return &mir.UnApp{Range: rng, Op: op, Operand: fl.operand(e.Operand)}
	default:
		return &mir.Use{Range: rng, Operand: fl.operand(e)}
	}
}

func negativeLiteral(e *syntax.UnaryExpr) (*mir.LitOp, bool) {
	lit, ok := e.Operand.(*syntax.IntLit)
	if e.Op != "-" || !ok {
		return nil, false
	}
	return &mir.LitOp{Range: e.Range, Literal: ty.IntLit(-lit.Value)}, true
}

func (fl *funcLowerer) operand(e syntax.Expr) mir.Operand {
	switch e := e.(type) {
	case *syntax.Ident:
		if local, ok := fl.locals[e.Symbol]; ok {
			return &mir.LocalOp{Range: e.Range, Local: local}
		}
		if fn, ok := fl.funcs[e.Symbol]; ok {
			return &mir.FuncOp{Range: e.Range, Func: fn}
		}
		fl.errs = fl.errs.With(lqerr.New(lqerr.NewUnboundIdentifier{Positioner: e.Range, Symbol: e.Symbol}))
	case *syntax.IntLit:
		return &mir.LitOp{Range: e.Range, Literal: ty.IntLit(e.Value)}
	case *syntax.BoolLit:
		return &mir.LitOp{Range: e.Range, Literal: ty.BoolLit(e.Value)}
	case *syntax.UnitLit:
		return &mir.LitOp{Range: e.Range, Literal: ty.UnitLit()}
	case *syntax.UnaryExpr:
		if lit, ok := negativeLiteral(e); ok {
			return lit
		}
		fl.errs = fl.errs.With(lqerr.New(lqerr.NewSyntax{
			Positioner: e.Range,
			Message:    "operands must be locals, functions or literals, assign the intermediate value to a local",
		}))
	default:
		fl.errs = fl.errs.With(lqerr.New(lqerr.NewSyntax{
			Positioner: syntax.RangeOf(e),
			Message:    "operands must be locals, functions or literals, assign the intermediate value to a local",
		}))
	}
	return nil
}
