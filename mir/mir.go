// Package mir is the intermediate representation being checked: functions
// whose bodies are control-flow graphs of basic blocks over numbered locals.
package mir

import (
	"fmt"
	"slices"
	"strings"

	"github.com/cottand/liquid/syntax"
	"github.com/cottand/liquid/ty"
)

type FuncID uint32

type BBlockID uint32

// Local is a local variable of a function. The parameters of a function
// are its first locals.
type Local = ty.LocalID

// Program is a whole program, functions are indexed by their FuncID
type Program struct {
	Funcs []*Func
	// Holes minted every hole in the declared types of Funcs.
	// Can be nil if there are none.
	Holes *ty.HoleGen
}

func (p *Program) Func(id FuncID) (*Func, bool) {
	if int(id) >= len(p.Funcs) {
		return nil, false
	}
	return p.Funcs[id], true
}

// FuncByName returns the function with the given name, if any
func (p *Program) FuncByName(name string) (*Func, bool) {
	for _, f := range p.Funcs {
		if f.Name == name {
			return f, true
		}
	}
	return nil, false
}

// LocalDecl is the declaration of a local. Ty is the type it was declared with:
// for parameters, the (unprojected) argument type, for other locals a
// refinement over their base type.
type LocalDecl struct {
	syntax.Range
	Name string
	Ty   ty.Ty
}

type Func struct {
	syntax.Range
	ID   FuncID
	Name string
	Ty   *ty.FuncTy
	// Params are the locals the arguments are bound to, in order
	Params []Local
	Locals []LocalDecl
	// BBlocks are indexed by their BBlockID
	BBlocks []*BBlock
	Entry   BBlockID
	// BBlockTys are the declared entry types of the blocks, keyed by block.
	// The entry block is typed by the function's arguments instead.
	BBlockTys map[BBlockID]map[Local]ty.Ty
}

func (f *Func) BBlock(id BBlockID) (*BBlock, bool) {
	if int(id) >= len(f.BBlocks) {
		return nil, false
	}
	return f.BBlocks[id], true
}

// IsParam reports whether l holds one of the function's arguments
func (f *Func) IsParam(l Local) bool {
	return slices.Contains(f.Params, l)
}

// LocalName implements ty.ShowCtx. Locals not declared by the function are
// introduced by the checker.
func (f *Func) LocalName(l Local) string {
	if int(l) < len(f.Locals) {
		return f.Locals[l].Name
	}
	return fmt.Sprintf("_%d", l)
}

type BBlock struct {
	syntax.Range
	ID         BBlockID
	Name       string
	Statements []Statement
	Terminator Terminator
}

// Successors returns the blocks control may be transferred to from b
func (b *BBlock) Successors() []BBlockID {
	switch term := b.Terminator.(type) {
	case *Goto:
		return []BBlockID{term.Target}
	case *If:
		return []BBlockID{term.Then, term.Else}
	case *Assert:
		return []BBlockID{term.Target}
	case *Call:
		return []BBlockID{term.Target}
	}
	return nil
}

// ----------------------------
// operands and values

type Operand interface {
	syntax.Positioner
	operand()
}

var (
	_ Operand = (*LocalOp)(nil)
	_ Operand = (*LitOp)(nil)
	_ Operand = (*FuncOp)(nil)
)

type LocalOp struct {
	syntax.Range
	Local Local
}

type LitOp struct {
	syntax.Range
	Literal ty.Literal
}

// FuncOp refers to a function of the program, as a value
type FuncOp struct {
	syntax.Range
	Func FuncID
}

func (*LocalOp) operand() {}
func (*LitOp) operand()   {}
func (*FuncOp) operand()  {}

type Rvalue interface {
	syntax.Positioner
	rvalue()
}

var (
	_ Rvalue = (*Use)(nil)
	_ Rvalue = (*BinApp)(nil)
	_ Rvalue = (*UnApp)(nil)
)

type Use struct {
	syntax.Range
	Operand Operand
}

type BinApp struct {
	syntax.Range
	Op       ty.BinOp
	Lhs, Rhs Operand
}

type UnApp struct {
	syntax.Range
	Op      ty.UnOp
	Operand Operand
}

func (*Use) rvalue()    {}
func (*BinApp) rvalue() {}
func (*UnApp) rvalue()  {}

// ----------------------------
// statements and terminators

type Statement interface {
	syntax.Positioner
	statement()
}

// Assign is `Local = Rvalue`
type Assign struct {
	syntax.Range
	Local  Local
	Rvalue Rvalue
}

func (*Assign) statement() {}

type Terminator interface {
	syntax.Positioner
	terminator()
}

var (
	_ Terminator = (*Return)(nil)
	_ Terminator = (*Goto)(nil)
	_ Terminator = (*If)(nil)
	_ Terminator = (*Assert)(nil)
	_ Terminator = (*Call)(nil)
	_ Terminator = (*Abort)(nil)
)

type Return struct {
	syntax.Range
	Operand Operand
}

type Goto struct {
	syntax.Range
	Target BBlockID
}

// If transfers control to Then when Cond is true, to Else otherwise
type If struct {
	syntax.Range
	Cond       Operand
	Then, Else BBlockID
}

// Assert aborts unless Cond equals Expected, and continues to Target otherwise
type Assert struct {
	syntax.Range
	Cond     Operand
	Expected bool
	Target   BBlockID
}

// Call calls Callee, stores the result in Dest and continues to Target
type Call struct {
	syntax.Range
	Callee Operand
	Args   []Operand
	Dest   Local
	Target BBlockID
}

type Abort struct {
	syntax.Range
}

func (*Return) terminator() {}
func (*Goto) terminator()   {}
func (*If) terminator()     {}
func (*Assert) terminator() {}
func (*Call) terminator()   {}
func (*Abort) terminator()  {}

// ----------------------------
// printing

func OperandString(op Operand, f *Func, prog *Program) string {
	switch op := op.(type) {
	case *LocalOp:
		return f.LocalName(op.Local)
	case *LitOp:
		return op.Literal.String()
	case *FuncOp:
		if fn, ok := prog.Func(op.Func); ok {
			return fn.Name
		}
		return fmt.Sprintf("fn%d", op.Func)
	}
	return "<nil>"
}

func RvalueString(rv Rvalue, f *Func, prog *Program) string {
	switch rv := rv.(type) {
	case *Use:
		return OperandString(rv.Operand, f, prog)
	case *BinApp:
		return OperandString(rv.Lhs, f, prog) + " " + rv.Op.String() + " " + OperandString(rv.Rhs, f, prog)
	case *UnApp:
		return rv.Op.String() + OperandString(rv.Operand, f, prog)
	}
	return "<nil>"
}

// String renders f close to its surface syntax. Argument references and
// holes are shown in their indexed form.
func (f *Func) String(prog *Program) string {
	sb := &strings.Builder{}
	sb.WriteString("fn " + f.Name + "(")
	for i, param := range f.Params {
		if i != 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(sb, "%s: %s", f.LocalName(param), ty.TyString(f.Ty.Arguments()[i], f))
	}
	fmt.Fprintf(sb, ") -> %s {\n", ty.TyString(f.Ty.ReturnTy(), f))
	for _, local := range f.Locals[len(f.Params):] {
		base, _ := ty.GetBase(local.Ty)
		fmt.Fprintf(sb, "    let %s: %v;\n", local.Name, base)
	}
	for _, bb := range f.BBlocks {
		sb.WriteString("    " + bb.Name)
		if entry := f.BBlockTys[bb.ID]; len(entry) > 0 {
			sb.WriteString(" [")
			first := true
			for l := range f.Locals {
				t, ok := entry[Local(l)]
				if !ok {
					continue
				}
				if !first {
					sb.WriteString(", ")
				}
				first = false
				fmt.Fprintf(sb, "%s: %s", f.LocalName(Local(l)), ty.TyString(t, f))
			}
			sb.WriteString("]")
		}
		sb.WriteString(" {\n")
		for _, stmt := range bb.Statements {
			if assign, ok := stmt.(*Assign); ok {
				fmt.Fprintf(sb, "        %s = %s;\n", f.LocalName(assign.Local), RvalueString(assign.Rvalue, f, prog))
			}
		}
		sb.WriteString("        " + f.TerminatorString(bb.Terminator, prog) + "\n    }\n")
	}
	sb.WriteString("}\n")
	return sb.String()
}

func (f *Func) TerminatorString(term Terminator, prog *Program) string {
	blockName := func(id BBlockID) string {
		if bb, ok := f.BBlock(id); ok {
			return bb.Name
		}
		return fmt.Sprintf("bb%d", id)
	}
	switch term := term.(type) {
	case *Return:
		return "return " + OperandString(term.Operand, f, prog) + ";"
	case *Goto:
		return "goto " + blockName(term.Target) + ";"
	case *If:
		return fmt.Sprintf("if %s then %s else %s;", OperandString(term.Cond, f, prog), blockName(term.Then), blockName(term.Else))
	case *Assert:
		return fmt.Sprintf("assert %s == %v goto %s;", OperandString(term.Cond, f, prog), term.Expected, blockName(term.Target))
	case *Call:
		args := make([]string, len(term.Args))
		for i, arg := range term.Args {
			args[i] = OperandString(arg, f, prog)
		}
		return fmt.Sprintf("%s = call %s(%s) goto %s;", f.LocalName(term.Dest), OperandString(term.Callee, f, prog),
			strings.Join(args, ", "), blockName(term.Target))
	case *Abort:
		return "abort;"
	}
	return "<nil>"
}
