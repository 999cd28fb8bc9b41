package resolve

import (
	"iter"

	"github.com/cottand/liquid/lqerr"
	"github.com/cottand/liquid/syntax"
	"github.com/cottand/liquid/ty"
	"github.com/cottand/liquid/util"
)

// Ctx is the stack of scopes currently open. The innermost one has index 0.
type Ctx struct {
	scopes util.Stack[*Scope]
}

// NewCtx returns a Ctx with the given scopes open, the last one innermost
func NewCtx(scopes ...*Scope) *Ctx {
	ctx := &Ctx{}
	for _, scope := range scopes {
		ctx.PushScope(scope)
	}
	return ctx
}

func (c *Ctx) PushScope(scope *Scope) {
	c.scopes.Push(scope)
}

func (c *Ctx) PopScope() *Scope {
	scope, ok := c.scopes.Pop()
	if !ok {
		lqerr.Fatalf("no scope is open")
	}
	return scope
}

// Current returns the innermost scope
func (c *Ctx) Current() *Scope {
	scope, ok := c.scopes.Peek()
	if !ok {
		lqerr.Fatalf("no scope is open")
	}
	return scope
}

// Scopes iterates from the innermost scope outwards, along with their index
func (c *Ctx) Scopes() iter.Seq2[int, *Scope] {
	return c.scopes.FromTop()
}

func (c *Ctx) Depth() int { return c.scopes.Len() }

// SolveIdent resolves ident by looking through the open scopes, innermost first.
//
// When the identifier is bound to an argument, its de Bruijn depth is increased
// by the index of the scope it was found in, as each scope in between
// corresponds to one more function type between the use and the binder.
func SolveIdent(ctx *Ctx, ident syntax.Ident) (ty.Predicate, ty.BaseTy, lqerr.LqError) {
	for index, scope := range ctx.Scopes() {
		predicate, base, ok := scope.SolveIdent(ident)
		if !ok {
			continue
		}
		if arg, isArg := predicate.(ty.Arg); isArg {
			predicate = ty.Arg{Index: arg.Index.Inc(index)}
		}
		return predicate, base, nil
	}
	return nil, 0, lqerr.New(lqerr.NewUnboundIdentifier{
		Positioner: ident.Range,
		Symbol:     ident.Symbol,
	})
}
