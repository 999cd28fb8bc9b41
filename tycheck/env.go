package tycheck

import (
	"cmp"
	"iter"

	"github.com/benbjohnson/immutable"
	"github.com/cottand/liquid/lqerr"
	"github.com/cottand/liquid/mir"
	"github.com/cottand/liquid/ty"
)

type localComparer struct{}

func (localComparer) Compare(a, b mir.Local) int { return cmp.Compare(a, b) }

// LocalEnv maps locals to their current types. The predicates of the types
// may refer to other locals of the same LocalEnv.
//
// LocalEnv is persistent: updates return a new LocalEnv and leave the
// receiver untouched, so copies are cheap.
type LocalEnv struct {
	tys *immutable.SortedMap[mir.Local, ty.Ty]
}

func NewLocalEnv() LocalEnv {
	return LocalEnv{tys: immutable.NewSortedMap[mir.Local, ty.Ty](localComparer{})}
}

func (e LocalEnv) Get(l mir.Local) (ty.Ty, bool) {
	if e.tys == nil {
		return nil, false
	}
	return e.tys.Get(l)
}

func (e LocalEnv) With(l mir.Local, t ty.Ty) LocalEnv {
	if e.tys == nil {
		e = NewLocalEnv()
	}
	return LocalEnv{tys: e.tys.Set(l, t)}
}

func (e LocalEnv) Len() int {
	if e.tys == nil {
		return 0
	}
	return e.tys.Len()
}

// All iterates over the locals in ascending order
func (e LocalEnv) All() iter.Seq2[mir.Local, ty.Ty] {
	return func(yield func(mir.Local, ty.Ty) bool) {
		if e.tys == nil {
			return
		}
		it := e.tys.Iterator()
		for !it.Done() {
			l, t, _ := it.Next()
			if !yield(l, t) {
				return
			}
		}
	}
}

// Rename makes every type in e refer to `to` instead of `from`
func (e LocalEnv) Rename(from, to mir.Local) LocalEnv {
	renamed := NewLocalEnv()
	for l, t := range e.All() {
		renamed = renamed.With(l, ty.ReplaceVariable(t, ty.LocalVar(from), ty.LocalVar(to)))
	}
	return renamed
}

// Hypotheses are the facts e knows about its locals: the refinement of each
// local of base type, about that local
func (e LocalEnv) Hypotheses() []ty.Predicate {
	var hyps []ty.Predicate
	for l, t := range e.All() {
		if hyp := refinementOf(t, l); hyp != nil && !ty.IsTrue(hyp) {
			hyps = append(hyps, hyp)
		}
	}
	return hyps
}

// refinementOf returns the predicate of t about local l, or nil if t is a function type
func refinementOf(t ty.Ty, l mir.Local) ty.Predicate {
	refined, ok := t.(*ty.Refined)
	if !ok {
		return nil
	}
	return ty.ReplaceVariablePred(refined.Pred, ty.BoundVar(), ty.LocalVar(l))
}

// BBlockTy is the type of a basic block: the types its locals must have
// when control reaches it
type BBlockTy struct {
	Input LocalEnv
}

// BBlockEnv holds the types of the blocks of a function
type BBlockEnv struct {
	tys map[mir.BBlockID]BBlockTy
}

// NewBBlockEnv types the entry block of fn with the arguments of its declared
// type, and every other block with the entry type it declares
func NewBBlockEnv(genv *GlobEnv, fn *mir.Func) *BBlockEnv {
	env := &BBlockEnv{tys: make(map[mir.BBlockID]BBlockTy, len(fn.BBlocks))}
	fnTy := genv.GetTy(fn.ID)
	if fnTy.Arity() != len(fn.Params) {
		lqerr.Fatalf("function '%s' has %d parameters but its type has %d arguments", fn.Name, len(fn.Params), fnTy.Arity())
	}

	projected := fnTy.ProjectArgs(func(pos int) ty.Predicate {
		return ty.Local{ID: fn.Params[pos]}
	})
	entry := NewLocalEnv()
	for pos, param := range fn.Params {
		entry = entry.With(param, projected.Arguments()[pos])
	}
	env.tys[fn.Entry] = BBlockTy{Input: entry}

	for _, bb := range fn.BBlocks {
		if bb.ID == fn.Entry {
			continue
		}
		input := NewLocalEnv()
		for l, t := range fn.BBlockTys[bb.ID] {
			input = input.With(l, t)
		}
		env.tys[bb.ID] = BBlockTy{Input: input}
	}
	return env
}

func (e *BBlockEnv) GetTy(id mir.BBlockID) BBlockTy {
	bbTy, ok := e.tys[id]
	if !ok {
		lqerr.Fatalf("no type for basic block %d", id)
	}
	return bbTy
}
