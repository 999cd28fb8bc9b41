package resolve

import (
	"log/slog"

	"github.com/cottand/liquid/internal/log"
	"github.com/cottand/liquid/lqerr"
	"github.com/cottand/liquid/syntax"
	"github.com/cottand/liquid/ty"
)

// HoleSource mints the predicates of refinements left to be inferred
type HoleSource interface {
	NewPred() ty.Predicate
}

// GenHoles is a HoleSource backed by a ty.HoleGen
type GenHoles struct{ Gen *ty.HoleGen }

func (g GenHoles) NewPred() ty.Predicate { return g.Gen.NewHole() }

// Resolver resolves surface types and refinements into ty values
type Resolver struct {
	holes  HoleSource
	logger *slog.Logger
}

func NewResolver(holes HoleSource) *Resolver {
	return &Resolver{
		holes:  holes,
		logger: log.Section("resolve"),
	}
}

// FuncTy resolves a dependent function type. A new scope is opened for its
// arguments, so that every argument may refer to the previous ones and the
// return type may refer to all of them.
func (r *Resolver) FuncTy(ctx *Ctx, f *syntax.FuncType) (*ty.FuncTy, lqerr.LqError) {
	scope := NewScope()
	ctx.PushScope(scope)
	defer ctx.PopScope()

	arguments := make([]ty.Ty, 0, len(f.Params))
	for pos, param := range f.Params {
		argTy, err := r.Ty(ctx, param.Type)
		if err != nil {
			return nil, err
		}
		arguments = append(arguments, argTy)
		// function values cannot appear in refinements
		if base, ok := ty.GetBase(argTy); ok {
			scope.BindIdent(param.Name, ty.Arg{Index: ty.ArgIndex{Depth: 0, Pos: pos}}, base)
		}
	}
	returnTy, err := r.Ty(ctx, f.Result)
	if err != nil {
		return nil, err
	}
	for scope.Len() > 0 {
		scope.FreeIdent()
	}
	funcTy := ty.NewFuncTy(arguments, returnTy)
	r.logger.Debug("resolved function type", "type", funcTy, "depth", ctx.Depth())
	return funcTy, nil
}

// Ty resolves t in the scopes of ctx.
// A bare base type or a `_` refinement gets a fresh hole.
func (r *Resolver) Ty(ctx *Ctx, t syntax.Type) (ty.Ty, lqerr.LqError) {
	switch t := t.(type) {
	case *syntax.BaseType:
		base, err := resolveBase(t.Name)
		if err != nil {
			return nil, err
		}
		return ty.NewRefined(base, r.holes.NewPred()), nil

	case *syntax.RefinedType:
		base, err := resolveBase(t.Base)
		if err != nil {
			return nil, err
		}
		if t.Pred == nil {
			return ty.NewRefined(base, r.holes.NewPred()), nil
		}
		if ctx.Depth() == 0 {
			ctx.PushScope(NewScope())
			defer ctx.PopScope()
		}
		scope := ctx.Current()
		scope.BindIdent(t.Binder, ty.Bound{}, base)
		defer scope.FreeIdent()

		pred, predBase, err := r.Predicate(ctx, t.Pred)
		if err != nil {
			return nil, err
		}
		if predBase != ty.Bool {
			return nil, lqerr.New(lqerr.NewPredicateMismatch{
				Positioner: syntax.RangeOf(t.Pred),
				Op:         "refinement",
				Found:      predBase,
			})
		}
		return ty.NewRefined(base, pred), nil

	case *syntax.FuncType:
		return r.FuncTy(ctx, t)

	default:
		lqerr.FatalDump("unknown syntax.Type", t)
		return nil, nil
	}
}

// Predicate resolves a refinement expression, returning its base type too
func (r *Resolver) Predicate(ctx *Ctx, e syntax.Expr) (ty.Predicate, ty.BaseTy, lqerr.LqError) {
	switch e := e.(type) {
	case *syntax.Ident:
		return SolveIdent(ctx, *e)
	case *syntax.IntLit:
		return ty.Lit{Literal: ty.IntLit(e.Value)}, ty.Int, nil
	case *syntax.BoolLit:
		return ty.Lit{Literal: ty.BoolLit(e.Value)}, ty.Bool, nil
	case *syntax.UnitLit:
		return ty.Lit{Literal: ty.UnitLit()}, ty.Unit, nil

	case *syntax.UnaryExpr:
		operand, base, err := r.Predicate(ctx, e.Operand)
		if err != nil {
			return nil, 0, err
		}
		op := ty.Neg
		if e.Op == "!" {
			op = ty.Not
		}
		resBase, ok := op.Typed(base)
		if !ok {
			return nil, 0, lqerr.New(lqerr.NewPredicateMismatch{Positioner: e.Range, Op: e.Op, Found: base})
		}
		if lit, isLit := operand.(ty.Lit); isLit && op == ty.Neg {
			return ty.Lit{Literal: ty.IntLit(-lit.Literal.Int())}, ty.Int, nil
		}
		return ty.UnApp{Op: op, Base: base, Operand: operand}, resBase, nil

	case *syntax.BinaryExpr:
		op, ok := ty.BinOpFromSymbol(e.Op)
		if !ok {
			lqerr.Fatalf("parser produced unknown binary operator '%s'", e.Op)
		}
		lhs, lhsBase, err := r.Predicate(ctx, e.Lhs)
		if err != nil {
			return nil, 0, err
		}
		rhs, rhsBase, err := r.Predicate(ctx, e.Rhs)
		if err != nil {
			return nil, 0, err
		}
		resBase, ok := op.Typed(lhsBase)
		if !ok || lhsBase != rhsBase {
			return nil, 0, lqerr.New(lqerr.NewPredicateMismatch{Positioner: e.Range, Op: e.Op, Found: lhsBase, Other: rhsBase})
		}
		return ty.Bin(op, lhsBase, lhs, rhs), resBase, nil

	default:
		lqerr.FatalDump("unknown syntax.Expr", e)
		return nil, 0, nil
	}
}

func resolveBase(name syntax.Ident) (ty.BaseTy, lqerr.LqError) {
	base, ok := ty.BaseTyFromName(name.Symbol)
	if !ok {
		return 0, lqerr.New(lqerr.NewUnboundIdentifier{Positioner: name.Range, Symbol: name.Symbol})
	}
	return base, nil
}
