package tycheck

import (
	"strings"

	"github.com/cottand/liquid/syntax"
	"github.com/cottand/liquid/ty"
	"github.com/hashicorp/go-set/v3"
)

// Solver decides whether the conjunction of hyps implies goal.
// Neither hyps nor goal contain holes when Valid is called.
type Solver interface {
	Valid(hyps []ty.Predicate, goal ty.Predicate) bool
}

// Constraint is a verification condition that mentions holes, which can only
// be decided once the holes are solved
type Constraint struct {
	syntax.Range
	Hyps []ty.Predicate
	Goal ty.Predicate
	// Origin describes the check the constraint comes from
	Origin string
}

// Format renders c as `hyp_1, ..., hyp_n |- goal`, naming locals with names
func (c Constraint) Format(names ty.ShowCtx) string {
	hyps := make([]string, len(c.Hyps))
	for i, hyp := range c.Hyps {
		hyps[i] = ty.PredString(hyp, names)
	}
	return strings.Join(hyps, ", ") + " |- " + ty.PredString(c.Goal, names)
}

// Holes returns the ids of the holes c mentions
func (c Constraint) Holes() *set.Set[ty.HoleID] {
	return ty.HoleIDs(append([]ty.Predicate{c.Goal}, c.Hyps...)...)
}
