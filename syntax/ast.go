// Package syntax holds the surface syntax tree of liquid programs:
// functions annotated with refinement types, whose bodies are control-flow
// graphs of basic blocks.
package syntax

// Ident is a name as it appears in the source
type Ident struct {
	Range
	Symbol string
}

func (i Ident) String() string { return i.Symbol }

type File struct {
	Range
	Name  string
	Funcs []*FuncDecl
}

type FuncDecl struct {
	Range
	Name   Ident
	Params []Param
	Result Type
	Locals []LocalDecl
	// Blocks are in source order, the first one is the entry block
	Blocks []*Block
}

// Param is a name annotated with a type, used for function parameters
// and for the locals declared at the entry of a block
type Param struct {
	Range
	Name Ident
	Type Type
}

// LocalDecl is a `let name: base;` declaration
type LocalDecl struct {
	Range
	Name Ident
	Base Ident
}

// ----------------------------
// types

type Type interface {
	Positioner
	typeNode()
}

var (
	_ Type = (*BaseType)(nil)
	_ Type = (*RefinedType)(nil)
	_ Type = (*FuncType)(nil)
)

// BaseType is an unrefined type like `int`, whose refinement is to be inferred
type BaseType struct {
	Range
	Name Ident
}

// RefinedType is `{ Binder: Base | Pred }`. Pred is nil for `{ b: int | _ }`.
type RefinedType struct {
	Range
	Binder Ident
	Base   Ident
	Pred   Expr
}

type FuncType struct {
	Range
	Params []Param
	Result Type
}

func (*BaseType) typeNode()    {}
func (*RefinedType) typeNode() {}
func (*FuncType) typeNode()    {}

// ----------------------------
// expressions, used both in predicates and as statement values

type Expr interface {
	Positioner
	exprNode()
}

var (
	_ Expr = (*Ident)(nil)
	_ Expr = (*IntLit)(nil)
	_ Expr = (*BoolLit)(nil)
	_ Expr = (*UnitLit)(nil)
	_ Expr = (*BinaryExpr)(nil)
	_ Expr = (*UnaryExpr)(nil)
)

type IntLit struct {
	Range
	Value int64
}

type BoolLit struct {
	Range
	Value bool
}

type UnitLit struct {
	Range
}

type BinaryExpr struct {
	Range
	Op       string
	Lhs, Rhs Expr
}

type UnaryExpr struct {
	Range
	Op      string
	Operand Expr
}

func (*Ident) exprNode()      {}
func (*IntLit) exprNode()     {}
func (*BoolLit) exprNode()    {}
func (*UnitLit) exprNode()    {}
func (*BinaryExpr) exprNode() {}
func (*UnaryExpr) exprNode()  {}

// ----------------------------
// control flow

type Block struct {
	Range
	Name Ident
	// Entry lists the declared types of locals on entry to this block
	Entry []Param
	Stmts []*AssignStmt
	Term  Terminator
}

type AssignStmt struct {
	Range
	Dest  Ident
	Value Expr
}

type Terminator interface {
	Positioner
	termNode()
}

var (
	_ Terminator = (*ReturnTerm)(nil)
	_ Terminator = (*GotoTerm)(nil)
	_ Terminator = (*IfTerm)(nil)
	_ Terminator = (*AssertTerm)(nil)
	_ Terminator = (*CallTerm)(nil)
	_ Terminator = (*AbortTerm)(nil)
)

type ReturnTerm struct {
	Range
	Value Expr
}

type GotoTerm struct {
	Range
	Target Ident
}

type IfTerm struct {
	Range
	Cond       Expr
	Then, Else Ident
}

// AssertTerm is `assert cond == expected goto target;`
type AssertTerm struct {
	Range
	Cond     Expr
	Expected bool
	Target   Ident
}

// CallTerm is `dest = call callee(args...) goto target;`
type CallTerm struct {
	Range
	Dest   Ident
	Callee Ident
	Args   []Expr
	Target Ident
}

type AbortTerm struct {
	Range
}

func (*ReturnTerm) termNode() {}
func (*GotoTerm) termNode()   {}
func (*IfTerm) termNode()     {}
func (*AssertTerm) termNode() {}
func (*CallTerm) termNode()   {}
func (*AbortTerm) termNode()  {}
