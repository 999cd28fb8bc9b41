package lqerr

import (
	"fmt"
	"go/token"
	"runtime/debug"
	"strings"

	"github.com/cottand/liquid/syntax"
	"github.com/cottand/liquid/ty"
	"github.com/davecgh/go-spew/spew"
	"github.com/pkg/errors"
)

// enableDebugErrorPrinting makes errors include the frame that created them when printed
var enableDebugErrorPrinting = false

type ErrCode int

const (
	None ErrCode = iota
	UnboundIdentifier
	SubtypeFailure
	SynthesisFailure
	Syntax
	PredicateMismatch
	DuplicateName
	UnknownBlock
)

// LqError is a problem in the checked program, to be reported to the user.
//
// Broken invariants of the checker itself are not LqErrors, see Fatalf.
type LqError interface {
	Error() string
	Code() ErrCode
	syntax.Positioner

	withStack([]byte) LqError
	getStack() []byte
}

func FormatWithCode(e LqError) string {
	if enableDebugErrorPrinting && e.getStack() != nil {
		stack := strings.Split(string(e.getStack()), "\n")
		frame := ""
		if len(stack) > 6 {
			frame = strings.TrimSpace(stack[6])
		}
		return fmt.Sprintf("%s:(E%03d) %s", frame, e.Code(), e.Error())
	}
	return fmt.Sprintf("(E%03d) %s", e.Code(), e.Error())
}

// FormatWithPosition prefixes the error with its file:line:column, as found in fSet
func FormatWithPosition(e LqError, fSet *token.FileSet) string {
	if fSet == nil || !e.Pos().IsValid() {
		return FormatWithCode(e)
	}
	return fmt.Sprintf("%v: %s", fSet.Position(e.Pos()), FormatWithCode(e))
}

func New[E LqError](err E) LqError {
	return err.withStack(debug.Stack())
}

// Fatalf stops the program because an invariant of the checker was broken.
// The panic value is an error carrying the stack where it happened.
func Fatalf(format string, args ...any) {
	panic(errors.Errorf(format, args...))
}

// FatalDump is like Fatalf, and includes a dump of state in the message
func FatalDump(msg string, state ...any) {
	panic(errors.Wrap(errors.New(spew.Sdump(state...)), msg))
}

type NewUnboundIdentifier struct {
	syntax.Positioner
	Symbol string
	stack  []byte
}

func (e NewUnboundIdentifier) Error() string {
	return fmt.Sprintf("identifier '%s' is not bound", e.Symbol)
}
func (e NewUnboundIdentifier) Code() ErrCode    { return UnboundIdentifier }
func (e NewUnboundIdentifier) getStack() []byte { return e.stack }
func (e NewUnboundIdentifier) withStack(stack []byte) LqError {
	e.stack = stack
	return e
}

// NewSubtypeFailure is reported when the type produced on some path is not a
// subtype of the type required where it flows to
type NewSubtypeFailure struct {
	syntax.Positioner
	Expected ty.Ty
	Actual   ty.Ty
	// Target describes where the value flows to, like "jump to block 'bb1'"
	Target string
	// Local names the local being checked, if the failure is about one
	Local string
	Names ty.ShowCtx
	stack []byte
}

func (e NewSubtypeFailure) Error() string {
	names := e.Names
	if names == nil {
		names = ty.DumbShowCtx
	}
	subject := ""
	if e.Local != "" {
		subject = fmt.Sprintf(" for '%s'", e.Local)
	}
	if e.Actual == nil {
		return fmt.Sprintf("subtype check failed at %s%s: expected %s, but no value is available",
			e.Target, subject, ty.TyString(e.Expected, names))
	}
	return fmt.Sprintf("subtype check failed at %s%s: expected %s, but found %s",
		e.Target, subject, ty.TyString(e.Expected, names), ty.TyString(e.Actual, names))
}
func (e NewSubtypeFailure) Code() ErrCode    { return SubtypeFailure }
func (e NewSubtypeFailure) getStack() []byte { return e.stack }
func (e NewSubtypeFailure) withStack(stack []byte) LqError {
	e.stack = stack
	return e
}

type NewSynthesisFailure struct {
	syntax.Positioner
	Reason string
	stack  []byte
}

func (e NewSynthesisFailure) Error() string {
	return fmt.Sprintf("could not synthesise a type: %s", e.Reason)
}
func (e NewSynthesisFailure) Code() ErrCode    { return SynthesisFailure }
func (e NewSynthesisFailure) getStack() []byte { return e.stack }
func (e NewSynthesisFailure) withStack(stack []byte) LqError {
	e.stack = stack
	return e
}

type NewSyntax struct {
	syntax.Positioner
	Message string
	stack   []byte
}

func (e NewSyntax) Error() string {
	return fmt.Sprintf("syntax error: %s", e.Message)
}
func (e NewSyntax) Code() ErrCode    { return Syntax }
func (e NewSyntax) getStack() []byte { return e.stack }
func (e NewSyntax) withStack(stack []byte) LqError {
	e.stack = stack
	return e
}

// NewPredicateMismatch is reported when an operator in a refinement is
// applied to operands of the wrong base type
type NewPredicateMismatch struct {
	syntax.Positioner
	Op    string
	Found ty.BaseTy
	Other ty.BaseTy
	stack []byte
}

func (e NewPredicateMismatch) Error() string {
	if e.Other != 0 && e.Other != e.Found {
		return fmt.Sprintf("operator '%s' cannot be applied to '%v' and '%v'", e.Op, e.Found, e.Other)
	}
	return fmt.Sprintf("operator '%s' cannot be applied to '%v'", e.Op, e.Found)
}
func (e NewPredicateMismatch) Code() ErrCode    { return PredicateMismatch }
func (e NewPredicateMismatch) getStack() []byte { return e.stack }
func (e NewPredicateMismatch) withStack(stack []byte) LqError {
	e.stack = stack
	return e
}

type NewDuplicateName struct {
	syntax.Positioner
	Kind  string
	Name  string
	stack []byte
}

func (e NewDuplicateName) Error() string {
	return fmt.Sprintf("%s '%s' is declared more than once", e.Kind, e.Name)
}
func (e NewDuplicateName) Code() ErrCode    { return DuplicateName }
func (e NewDuplicateName) getStack() []byte { return e.stack }
func (e NewDuplicateName) withStack(stack []byte) LqError {
	e.stack = stack
	return e
}

type NewUnknownBlock struct {
	syntax.Positioner
	Name  string
	stack []byte
}

func (e NewUnknownBlock) Error() string {
	return fmt.Sprintf("block '%s' is not defined in this function", e.Name)
}
func (e NewUnknownBlock) Code() ErrCode    { return UnknownBlock }
func (e NewUnknownBlock) getStack() []byte { return e.stack }
func (e NewUnknownBlock) withStack(stack []byte) LqError {
	e.stack = stack
	return e
}
