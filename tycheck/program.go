package tycheck

import (
	"context"

	"github.com/cottand/liquid/internal/log"
	"github.com/cottand/liquid/lia"
	"github.com/cottand/liquid/lqerr"
	"github.com/cottand/liquid/mir"
	"github.com/cottand/liquid/ty"
	"github.com/hashicorp/go-set/v3"
	"golang.org/x/sync/errgroup"
)

type Options struct {
	// Parallel checks the functions of the program concurrently
	Parallel bool
	// Solver decides hole-free conditions, lia.NewSolver() if nil
	Solver Solver
}

// FuncResult is the outcome of checking one function
type FuncResult struct {
	Func mir.FuncID
	Name string
	// Err is the first problem found in the function, nil if it checked
	Err lqerr.LqError
	// Constraints are the conditions deferred until holes are solved
	Constraints []Constraint
}

// Report holds the results of checking a program, one per function in
// program order
type Report struct {
	Funcs []FuncResult
}

func (r *Report) OK() bool {
	for _, res := range r.Funcs {
		if res.Err != nil {
			return false
		}
	}
	return true
}

func (r *Report) Errors() *lqerr.Errors {
	var errs *lqerr.Errors
	for _, res := range r.Funcs {
		if res.Err != nil {
			errs = errs.With(res.Err)
		}
	}
	return errs
}

func (r *Report) Constraints() []Constraint {
	var constraints []Constraint
	for _, res := range r.Funcs {
		constraints = append(constraints, res.Constraints...)
	}
	return constraints
}

// Holes returns the ids of the holes that the deferred constraints mention
func (r *Report) Holes() *set.Set[ty.HoleID] {
	holes := set.New[ty.HoleID](0)
	for _, constraint := range r.Constraints() {
		holes.InsertSlice(constraint.Holes().Slice())
	}
	return holes
}

// CheckProgram checks every function of prog against its declared type.
// A function failing does not prevent the others from being checked.
// The only error returned is the one of ctx, if it is done before all
// functions are checked.
func CheckProgram(ctx context.Context, prog *mir.Program, opts Options) (*Report, error) {
	solver := opts.Solver
	if solver == nil {
		solver = lia.NewSolver()
	}
	genv := NewGlobEnv(prog)
	logger := log.Section("check")
	report := &Report{Funcs: make([]FuncResult, len(prog.Funcs))}

	checkOne := func(i int) {
		fn := prog.Funcs[i]
		checker := NewChecker(genv, prog, fn, solver)
		err := checker.CheckFunc()
		report.Funcs[i] = FuncResult{
			Func:        fn.ID,
			Name:        fn.Name,
			Err:         err,
			Constraints: checker.Constraints(),
		}
		logger.Debug("checked function", "func", fn.Name, "ok", err == nil, "constraints", len(checker.Constraints()))
	}

	if !opts.Parallel {
		for i := range prog.Funcs {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			checkOne(i)
		}
		return report, nil
	}

	group, groupCtx := errgroup.WithContext(ctx)
	for i := range prog.Funcs {
		group.Go(func() error {
			if err := groupCtx.Err(); err != nil {
				return err
			}
			checkOne(i)
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}
	return report, nil
}
