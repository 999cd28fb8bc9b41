package parser

import (
	"go/token"

	"github.com/cottand/liquid/lqerr"
	"github.com/cottand/liquid/syntax"
)

// syntaxError is raised as a panic by the parser to abandon parsing, and
// recovered in Parse
type syntaxError struct {
	start, end token.Pos
	msg        string
}

func (e *syntaxError) lqError() lqerr.LqError {
	return lqerr.New(lqerr.NewSyntax{
		Positioner: syntax.Range{PosStart: e.start, PosEnd: e.end},
		Message:    e.msg,
	})
}
