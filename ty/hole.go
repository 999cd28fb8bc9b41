package ty

import (
	"sync/atomic"

	"github.com/hashicorp/go-set/v3"
)

// HoleGen mints unique HoleIDs. Its zero value is ready to use and
// it is safe to share between goroutines.
type HoleGen struct {
	next atomic.Uint64
}

func NewHoleGen() *HoleGen {
	return &HoleGen{}
}

// Generate returns an id strictly greater than all the previous ones
func (g *HoleGen) Generate() HoleID {
	return HoleID(g.next.Add(1) - 1)
}

// NewHole returns a Hole with a fresh id and no pending substitutions
func (g *HoleGen) NewHole() Hole {
	return Hole{ID: g.Generate()}
}

// Generated returns how many ids were minted so far
func (g *HoleGen) Generated() uint64 {
	return g.next.Load()
}

// Holes returns every hole occurring in p, pending substitutions included
func Holes(p Predicate) []Hole {
	var holes []Hole
	WalkPredicate(p, func(node Predicate) {
		if hole, ok := node.(Hole); ok {
			holes = append(holes, hole)
		}
	})
	return holes
}

// HoleIDs returns the set of the ids of the holes in ps
func HoleIDs(ps ...Predicate) *set.Set[HoleID] {
	ids := set.New[HoleID](0)
	for _, p := range ps {
		for _, hole := range Holes(p) {
			ids.Insert(hole.ID)
		}
	}
	return ids
}

func HasHoles(p Predicate) bool {
	found := false
	WalkPredicate(p, func(node Predicate) {
		_, isHole := node.(Hole)
		found = found || isHole
	})
	return found
}

// FreeLocals returns the set of locals that p mentions
func FreeLocals(p Predicate) *set.Set[LocalID] {
	locals := set.New[LocalID](0)
	WalkPredicate(p, func(node Predicate) {
		if local, ok := node.(Local); ok {
			locals.Insert(local.ID)
		}
	})
	return locals
}
