package syntax

import (
	"go/token"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCover(t *testing.T) {
	a := Range{PosStart: 3, PosEnd: 5}
	b := Range{PosStart: 9, PosEnd: 12}
	assert.Equal(t, Range{PosStart: 3, PosEnd: 12}, Cover(a, b))

	unknown := Range{}
	assert.Equal(t, Range{PosStart: 9, PosEnd: 12}, Cover(unknown, b))
	assert.Equal(t, Range{PosStart: 3, PosEnd: 5}, Cover(a, unknown))
}

func TestRangeOf(t *testing.T) {
	assert.Equal(t, Range{}, RangeOf(nil))

	id := &Ident{Symbol: "x", Range: Range{PosStart: token.Pos(4), PosEnd: token.Pos(5)}}
	assert.Equal(t, Range{PosStart: 4, PosEnd: 5}, RangeOf(id))
	assert.Equal(t, "4-5", RangeOf(id).String())
	assert.Equal(t, "7", Range{PosStart: 7, PosEnd: 7}.String())
}
