// Package tycheck checks the bodies of the functions of a mir.Program
// against their declared refinement types.
package tycheck

import (
	"github.com/cottand/liquid/lqerr"
	"github.com/cottand/liquid/mir"
	"github.com/cottand/liquid/resolve"
	"github.com/cottand/liquid/ty"
)

// GlobEnv holds the declared types of every function of a program, and
// mints fresh holes. It is read-only once built, except for the hole
// generator which is safe for concurrent use.
type GlobEnv struct {
	tys   map[mir.FuncID]*ty.FuncTy
	holes *ty.HoleGen
}

var _ resolve.HoleSource = (*GlobEnv)(nil)

// NewGlobEnv registers the declared type of every function in prog.
// It keeps minting holes from prog.Holes, so ids stay unique across the program.
func NewGlobEnv(prog *mir.Program) *GlobEnv {
	holes := prog.Holes
	if holes == nil {
		holes = ty.NewHoleGen()
	}
	env := &GlobEnv{
		tys:   make(map[mir.FuncID]*ty.FuncTy, len(prog.Funcs)),
		holes: holes,
	}
	for _, fn := range prog.Funcs {
		env.tys[fn.ID] = fn.Ty
	}
	return env
}

// NewPred returns a fresh hole with no pending substitutions
func (g *GlobEnv) NewPred() ty.Predicate {
	return g.holes.NewHole()
}

// GetTy returns the declared type of a function.
// Asking for an unknown function is fatal.
func (g *GlobEnv) GetTy(id mir.FuncID) *ty.FuncTy {
	fnTy, ok := g.tys[id]
	if !ok {
		lqerr.Fatalf("no declared type for function %d", id)
	}
	return fnTy
}
