package syntax

import (
	"fmt"
	"go/token"
)

// Positioner is anything that knows where it came from in a .lq file:
// nodes of the surface tree, and the IR statements lowered from them.
type Positioner interface {
	Pos() token.Pos
	End() token.Pos
}

// Range is the span [PosStart, PosEnd) in a token.FileSet
type Range struct {
	PosStart token.Pos
	PosEnd   token.Pos
}

func (r Range) Pos() token.Pos { return r.PosStart }
func (r Range) End() token.Pos { return r.PosEnd }

func (r Range) String() string {
	if r.PosStart == r.PosEnd {
		return fmt.Sprint(r.PosStart)
	}
	return fmt.Sprintf("%v-%v", r.PosStart, r.PosEnd)
}

// Cover is the smallest range spanning both first and last.
// Unknown positions are skipped, so covering a node with no position
// yields the other one.
func Cover(first, last Positioner) Range {
	start, end := first.Pos(), last.End()
	if !start.IsValid() {
		start = last.Pos()
	}
	if !end.IsValid() {
		end = first.End()
	}
	return Range{PosStart: start, PosEnd: end}
}

// RangeOf copies the span of node, the zero Range for nil
func RangeOf(node Positioner) Range {
	switch node := node.(type) {
	case nil:
		return Range{}
	case Range:
		return node
	default:
		return Range{PosStart: node.Pos(), PosEnd: node.End()}
	}
}
