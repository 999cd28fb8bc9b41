package tycheck

import (
	"fmt"
	"log/slog"

	"github.com/cottand/liquid/internal/log"
	"github.com/cottand/liquid/lqerr"
	"github.com/cottand/liquid/mir"
	"github.com/cottand/liquid/syntax"
	"github.com/cottand/liquid/ty"
)

// funcArgPlaceholder stands for arguments of function type when projecting,
// as predicates never refer to them
var funcArgPlaceholder ty.Predicate = ty.Lit{Literal: ty.UnitLit()}

// Checker checks the body of a single function
type Checker struct {
	genv   *GlobEnv
	bbEnv  *BBlockEnv
	prog   *mir.Program
	fn     *mir.Func
	solver Solver
	// nextGhost is the next local that is not declared by fn
	nextGhost   mir.Local
	constraints []Constraint
	logger      *slog.Logger
}

func NewChecker(genv *GlobEnv, prog *mir.Program, fn *mir.Func, solver Solver) *Checker {
	return &Checker{
		genv:      genv,
		bbEnv:     NewBBlockEnv(genv, fn),
		prog:      prog,
		fn:        fn,
		solver:    solver,
		nextGhost: mir.Local(len(fn.Locals)),
		logger:    log.Section("check").With("func", fn.Name),
	}
}

// Constraints returns the conditions deferred so far because they mention holes
func (c *Checker) Constraints() []Constraint {
	return c.constraints
}

// CheckFunc checks every block of the function, stopping at the first error
func (c *Checker) CheckFunc() lqerr.LqError {
	for _, bb := range c.fn.BBlocks {
		if err := c.CheckBBlock(bb.ID); err != nil {
			c.logger.Debug("block failed", "block", bb.Name, "error", err.Error())
			return err
		}
	}
	return nil
}

// CheckBBlock checks the block starting from its declared type: the type of
// each statement is synthesised in turn, then the terminator is checked
func (c *Checker) CheckBBlock(id mir.BBlockID) lqerr.LqError {
	bb, ok := c.fn.BBlock(id)
	if !ok {
		lqerr.Fatalf("function '%s' has no block %d", c.fn.Name, id)
	}
	env := c.bbEnv.GetTy(id).Input
	c.logger.Debug("checking block", "block", bb.Name, "locals", env.Len())

	for _, stmt := range bb.Statements {
		var err lqerr.LqError
		env, err = c.synthStatement(env, stmt)
		if err != nil {
			return err
		}
	}
	return c.checkTerminator(env, bb.Terminator)
}

func (c *Checker) freshGhost() mir.Local {
	ghost := c.nextGhost
	c.nextGhost++
	return ghost
}

func (c *Checker) synthFailure(at syntax.Positioner, format string, args ...any) lqerr.LqError {
	return lqerr.New(lqerr.NewSynthesisFailure{Positioner: syntax.RangeOf(at), Reason: fmt.Sprintf(format, args...)})
}

func (c *Checker) operandString(op mir.Operand) string {
	return mir.OperandString(op, c.fn, c.prog)
}

// ----------------------------
// synthesis

func (c *Checker) synthStatement(env LocalEnv, stmt mir.Statement) (LocalEnv, lqerr.LqError) {
	switch stmt := stmt.(type) {
	case *mir.Assign:
		t, err := c.synthRvalue(env, stmt.Rvalue)
		if err != nil {
			return env, err
		}
		return c.assign(env, stmt, stmt.Local, t)
	default:
		lqerr.FatalDump("unknown mir.Statement", stmt)
		return env, nil
	}
}

// assign binds l to t. The previous value of l, if any, is moved to a fresh
// ghost local so that the facts that mention it stay true.
// Parameters cannot be assigned: the return type and the block types refer
// to them, and callers read those as the arguments they passed.
func (c *Checker) assign(env LocalEnv, at syntax.Positioner, l mir.Local, t ty.Ty) (LocalEnv, lqerr.LqError) {
	if c.fn.IsParam(l) {
		return env, c.synthFailure(at, "cannot assign to parameter '%s'", c.fn.LocalName(l))
	}
	declared := c.fn.Locals[l].Ty
	if !ty.ShapeEq(declared, t) {
		return env, c.synthFailure(at, "cannot assign a value of type %s to '%s', declared as %s",
			ty.TyString(t, c.fn), c.fn.LocalName(l), ty.TyString(declared, c.fn))
	}
	if old, ok := env.Get(l); ok {
		ghost := c.freshGhost()
		env = env.Rename(l, ghost).With(ghost, ty.ReplaceVariable(old, ty.LocalVar(l), ty.LocalVar(ghost)))
		t = ty.ReplaceVariable(t, ty.LocalVar(l), ty.LocalVar(ghost))
	}
	c.logger.Debug("assigned", "local", c.fn.LocalName(l), "type", t)
	return env.With(l, t), nil
}

// synthOperand returns the type of op: locals are selfified, literals get
// their singleton type and functions their declared type
func (c *Checker) synthOperand(env LocalEnv, op mir.Operand) (ty.Ty, lqerr.LqError) {
	switch op := op.(type) {
	case *mir.LocalOp:
		t, ok := env.Get(op.Local)
		if !ok {
			return nil, c.synthFailure(op, "'%s' has no value here", c.fn.LocalName(op.Local))
		}
		return ty.Selfify(t, ty.LocalVar(op.Local)), nil
	case *mir.LitOp:
		return ty.Singleton(op.Literal), nil
	case *mir.FuncOp:
		return c.genv.GetTy(op.Func), nil
	default:
		lqerr.FatalDump("unknown mir.Operand", op)
		return nil, nil
	}
}

// operandPred returns the predicate standing for the value of op, and its
// base type. Functions have no such predicate.
func (c *Checker) operandPred(env LocalEnv, op mir.Operand) (ty.Predicate, ty.BaseTy, lqerr.LqError) {
	t, err := c.synthOperand(env, op)
	if err != nil {
		return nil, 0, err
	}
	base, ok := ty.GetBase(t)
	if !ok {
		return nil, 0, c.synthFailure(op, "function '%s' cannot be used as a value of base type", c.operandString(op))
	}
	switch op := op.(type) {
	case *mir.LocalOp:
		return ty.Local{ID: op.Local}, base, nil
	case *mir.LitOp:
		return ty.Lit{Literal: op.Literal}, base, nil
	}
	lqerr.FatalDump("operand of base type is neither a local nor a literal", op)
	return nil, 0, nil
}

func (c *Checker) synthRvalue(env LocalEnv, rv mir.Rvalue) (ty.Ty, lqerr.LqError) {
	switch rv := rv.(type) {
	case *mir.Use:
		return c.synthOperand(env, rv.Operand)

	case *mir.BinApp:
		lhs, lhsBase, err := c.operandPred(env, rv.Lhs)
		if err != nil {
			return nil, err
		}
		rhs, rhsBase, err := c.operandPred(env, rv.Rhs)
		if err != nil {
			return nil, err
		}
		resBase, ok := rv.Op.Typed(lhsBase)
		if !ok || lhsBase != rhsBase {
			return nil, c.synthFailure(rv, "operator '%v' cannot be applied to '%v' and '%v'", rv.Op, lhsBase, rhsBase)
		}
		value := ty.Bin(rv.Op, lhsBase, lhs, rhs)
		return ty.NewRefined(resBase, ty.EqPred(resBase, ty.Bound{}, value)), nil

	case *mir.UnApp:
		operand, base, err := c.operandPred(env, rv.Operand)
		if err != nil {
			return nil, err
		}
		resBase, ok := rv.Op.Typed(base)
		if !ok {
			return nil, c.synthFailure(rv, "operator '%v' cannot be applied to '%v'", rv.Op, base)
		}
		value := ty.UnApp{Op: rv.Op, Base: base, Operand: operand}
		return ty.NewRefined(resBase, ty.EqPred(resBase, ty.Bound{}, value)), nil

	default:
		lqerr.FatalDump("unknown mir.Rvalue", rv)
		return nil, nil
	}
}

// ----------------------------
// terminators

func (c *Checker) blockName(id mir.BBlockID) string {
	if bb, ok := c.fn.BBlock(id); ok {
		return bb.Name
	}
	return fmt.Sprintf("bb%d", id)
}

func (c *Checker) checkTerminator(env LocalEnv, term mir.Terminator) lqerr.LqError {
	switch term := term.(type) {
	case *mir.Return:
		actual, err := c.synthOperand(env, term.Operand)
		if err != nil {
			return err
		}
		projected := c.genv.GetTy(c.fn.ID).ProjectArgs(func(pos int) ty.Predicate {
			return ty.Local{ID: c.fn.Params[pos]}
		})
		return c.subtype(env, term, actual, projected.ReturnTy(), "return", "")

	case *mir.Goto:
		return c.jump(env, term, term.Target)

	case *mir.If:
		guard, err := c.guard(env, term.Cond)
		if err != nil {
			return err
		}
		if err := c.jump(c.assume(env, guard), term, term.Then); err != nil {
			return err
		}
		return c.jump(c.assume(env, ty.NotPred(guard)), term, term.Else)

	case *mir.Assert:
		guard, err := c.guard(env, term.Cond)
		if err != nil {
			return err
		}
		if !term.Expected {
			guard = ty.NotPred(guard)
		}
		return c.jump(c.assume(env, guard), term, term.Target)

	case *mir.Call:
		env, err := c.call(env, term)
		if err != nil {
			return err
		}
		return c.jump(env, term, term.Target)

	case *mir.Abort:
		return nil

	default:
		lqerr.FatalDump("unknown mir.Terminator", term)
		return nil
	}
}

// guard returns the predicate a boolean condition stands for
func (c *Checker) guard(env LocalEnv, cond mir.Operand) (ty.Predicate, lqerr.LqError) {
	pred, base, err := c.operandPred(env, cond)
	if err != nil {
		return nil, err
	}
	if base != ty.Bool {
		return nil, c.synthFailure(cond, "condition '%s' is of type %v, not bool", c.operandString(cond), base)
	}
	return pred, nil
}

// assume adds a fact to env, as the type of a fresh ghost local
func (c *Checker) assume(env LocalEnv, fact ty.Predicate) LocalEnv {
	return env.With(c.freshGhost(), ty.NewRefined(ty.Bool, fact))
}

// call instantiates the type of the callee with the actual arguments, checks
// each argument against it and binds the destination to the instantiated
// return type
func (c *Checker) call(env LocalEnv, call *mir.Call) (LocalEnv, lqerr.LqError) {
	calleeTy, err := c.synthOperand(env, call.Callee)
	if err != nil {
		return env, err
	}
	fnTy, ok := calleeTy.(*ty.FuncTy)
	if !ok {
		return env, c.synthFailure(call.Callee, "'%s' is not a function", c.operandString(call.Callee))
	}
	callee := c.operandString(call.Callee)
	if fnTy.Arity() != len(call.Args) {
		return env, c.synthFailure(call, "'%s' takes %d arguments but is called with %d", callee, fnTy.Arity(), len(call.Args))
	}

	argPreds := make([]ty.Predicate, len(call.Args))
	for pos, arg := range call.Args {
		argPreds[pos] = funcArgPlaceholder
		if t, err := c.synthOperand(env, arg); err != nil {
			return env, err
		} else if _, isFunc := t.(*ty.FuncTy); isFunc {
			continue
		}
		argPreds[pos], _, err = c.operandPred(env, arg)
		if err != nil {
			return env, err
		}
	}
	instance := fnTy.ProjectArgs(func(pos int) ty.Predicate { return argPreds[pos] })

	for pos, arg := range call.Args {
		actual, err := c.synthOperand(env, arg)
		if err != nil {
			return env, err
		}
		target := fmt.Sprintf("argument %d of call to '%s'", pos, callee)
		if err := c.subtype(env, arg, actual, instance.Arguments()[pos], target, ""); err != nil {
			return env, err
		}
	}
	return c.assign(env, call, call.Dest, instance.ReturnTy())
}

// jump checks that env fits the declared type of the target block
func (c *Checker) jump(env LocalEnv, at syntax.Positioner, target mir.BBlockID) lqerr.LqError {
	declared := c.bbEnv.GetTy(target).Input
	desc := fmt.Sprintf("jump to block '%s'", c.blockName(target))
	c.logger.Debug("checking jump", "target", c.blockName(target))

	for l, expected := range declared.All() {
		actual, ok := env.Get(l)
		if !ok {
			return lqerr.New(lqerr.NewSubtypeFailure{
				Positioner: syntax.RangeOf(at),
				Expected:   expected,
				Target:     desc,
				Local:      c.fn.LocalName(l),
				Names:      c.fn,
			})
		}
		if err := c.subtypeLocal(env, at, l, actual, expected, desc); err != nil {
			return err
		}
	}
	return nil
}

// ----------------------------
// subtyping

func (c *Checker) failure(at syntax.Positioner, actual, expected ty.Ty, target, local string) lqerr.LqError {
	return lqerr.New(lqerr.NewSubtypeFailure{
		Positioner: syntax.RangeOf(at),
		Expected:   expected,
		Actual:     actual,
		Target:     target,
		Local:      local,
		Names:      c.fn,
	})
}

// subtypeLocal checks actual <: expected for the value of local l in env
func (c *Checker) subtypeLocal(env LocalEnv, at syntax.Positioner, l mir.Local, actual, expected ty.Ty, target string) lqerr.LqError {
	name := c.fn.LocalName(l)
	if !ty.ShapeEq(actual, expected) {
		return c.failure(at, actual, expected, target, name)
	}
	if expectedFn, ok := expected.(*ty.FuncTy); ok {
		return c.subtypeFunc(env, at, actual.(*ty.FuncTy), expectedFn, target, name)
	}
	// the facts about l are already among the hypotheses of env
	if !c.entails(at, env.Hypotheses(), refinementOf(expected, l), target) {
		return c.failure(at, actual, expected, target, name)
	}
	return nil
}

// subtype checks that a value of type actual may be used where expected is required
func (c *Checker) subtype(env LocalEnv, at syntax.Positioner, actual, expected ty.Ty, target, local string) lqerr.LqError {
	if !ty.ShapeEq(actual, expected) {
		return c.failure(at, actual, expected, target, local)
	}
	if expectedFn, ok := expected.(*ty.FuncTy); ok {
		return c.subtypeFunc(env, at, actual.(*ty.FuncTy), expectedFn, target, local)
	}
	value := c.freshGhost()
	hyps := env.Hypotheses()
	if fact := refinementOf(actual, value); !ty.IsTrue(fact) {
		hyps = append(hyps, fact)
	}
	if !c.entails(at, hyps, refinementOf(expected, value), target) {
		return c.failure(at, actual, expected, target, local)
	}
	return nil
}

// subtypeFunc checks function types: arguments are contravariant and the
// return type is covariant. Arguments are bound to fresh ghost locals, typed
// as the expected type promises.
func (c *Checker) subtypeFunc(env LocalEnv, at syntax.Positioner, actual, expected *ty.FuncTy, target, local string) lqerr.LqError {
	ghosts := make([]mir.Local, expected.Arity())
	for pos := range ghosts {
		ghosts[pos] = c.freshGhost()
	}
	toGhost := func(pos int) ty.Predicate { return ty.Local{ID: ghosts[pos]} }
	actualInst, expectedInst := actual.ProjectArgs(toGhost), expected.ProjectArgs(toGhost)

	for pos, ghost := range ghosts {
		argTarget := fmt.Sprintf("argument %d of function value at %s", pos, target)
		if err := c.subtype(env, at, expectedInst.Arguments()[pos], actualInst.Arguments()[pos], argTarget, local); err != nil {
			return err
		}
		env = env.With(ghost, expectedInst.Arguments()[pos])
	}
	return c.subtype(env, at, actualInst.ReturnTy(), expectedInst.ReturnTy(), "return of function value at "+target, local)
}

// entails decides whether hyps imply goal. Conditions the solver cannot
// decide because of holes are deferred as constraints, and count as holding.
func (c *Checker) entails(at syntax.Positioner, hyps []ty.Predicate, goal ty.Predicate, origin string) bool {
	if ty.IsTrue(goal) {
		return true
	}
	var known []ty.Predicate
	withHoles := ty.HasHoles(goal)
	for _, hyp := range hyps {
		if ty.HasHoles(hyp) {
			withHoles = true
			continue
		}
		known = append(known, hyp)
	}

	if !ty.HasHoles(goal) && c.solver.Valid(known, goal) {
		return true
	}
	if withHoles {
		c.logger.Debug("deferring constraint", "origin", origin, "goal", goal)
		c.constraints = append(c.constraints, Constraint{
			Range:  syntax.RangeOf(at),
			Hyps:   hyps,
			Goal:   goal,
			Origin: origin,
		})
		return true
	}
	c.logger.Debug("could not prove", "origin", origin, "goal", goal, "hyps", len(hyps))
	return false
}
