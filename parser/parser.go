// Package parser turns liquid source code into a syntax.File
package parser

import (
	"fmt"
	"go/token"
	"strconv"

	"github.com/cottand/liquid/syntax"
)

// binaryPrecedence of the infix operators, higher binds tighter.
// A single `=` is accepted as equality, as refinements are usually written that way.
var binaryPrecedence = map[string]int{
	"||": 1,
	"&&": 2,
	"==": 3, "=": 3, "!=": 3, "<": 3, "<=": 3, ">": 3, ">=": 3,
	"+": 4, "-": 4,
	"*": 5,
}

var terminatorKeywords = map[string]bool{
	"return": true, "goto": true, "if": true, "assert": true, "abort": true,
}

type parser struct {
	file   *token.File
	tokens []lexToken
	pos    int
}

func (p *parser) peek() lexToken { return p.peekN(0) }

func (p *parser) peekN(n int) lexToken {
	if p.pos+n >= len(p.tokens) {
		return p.tokens[len(p.tokens)-1]
	}
	return p.tokens[p.pos+n]
}

func (p *parser) advance() lexToken {
	tok := p.tokens[p.pos]
	if tok.kind != tokEOF {
		p.pos++
	}
	return tok
}

func isSymbol(tok lexToken, text string) bool {
	return (tok.kind == tokPunct || tok.kind == tokKeyword) && tok.text == text
}

func (p *parser) is(text string) bool { return isSymbol(p.peek(), text) }

func (p *parser) errorf(tok lexToken, format string, args ...any) {
	panic(&syntaxError{
		start: p.file.Pos(tok.start),
		end:   p.file.Pos(tok.end),
		msg:   fmt.Sprintf(format, args...),
	})
}

func (p *parser) expect(text string) lexToken {
	if !p.is(text) {
		p.errorf(p.peek(), "expected '%s', found %v", text, p.peek())
	}
	return p.advance()
}

func (p *parser) rangeOf(tok lexToken) syntax.Range {
	return syntax.Range{PosStart: p.file.Pos(tok.start), PosEnd: p.file.Pos(tok.end)}
}

// rangeFrom spans from start up to the last consumed token
func (p *parser) rangeFrom(start lexToken) syntax.Range {
	last := p.tokens[p.pos-1]
	return syntax.Range{PosStart: p.file.Pos(start.start), PosEnd: p.file.Pos(last.end)}
}

func (p *parser) ident() syntax.Ident {
	tok := p.peek()
	if tok.kind != tokIdent {
		p.errorf(tok, "expected identifier, found %v", tok)
	}
	p.advance()
	return syntax.Ident{Range: p.rangeOf(tok), Symbol: tok.text}
}

// baseName parses the name of a base type, which may be the unit type `()`
func (p *parser) baseName() syntax.Ident {
	start := p.peek()
	if isSymbol(start, "(") && isSymbol(p.peekN(1), ")") {
		p.advance()
		p.advance()
		return syntax.Ident{Range: p.rangeFrom(start), Symbol: "()"}
	}
	return p.ident()
}

func (p *parser) parseFileRecovering(name string) (f *syntax.File, err *syntaxError) {
	defer func() {
		if r := recover(); r != nil {
			asSyntax, ok := r.(*syntaxError)
			if !ok {
				panic(r)
			}
			f, err = nil, asSyntax
		}
	}()
	return p.parseFile(name), nil
}

func (p *parser) parseFile(name string) *syntax.File {
	f := &syntax.File{
		Name:  name,
		Range: syntax.Range{PosStart: p.file.Pos(0), PosEnd: p.file.Pos(p.file.Size())},
	}
	for p.peek().kind != tokEOF {
		f.Funcs = append(f.Funcs, p.parseFunc())
	}
	return f
}

func (p *parser) parseFunc() *syntax.FuncDecl {
	start := p.expect("fn")
	decl := &syntax.FuncDecl{Name: p.ident()}
	decl.Params = p.parseParams("(", ")")
	p.expect("->")
	decl.Result = p.parseType()

	p.expect("{")
	for p.is("let") {
		decl.Locals = append(decl.Locals, p.parseLocal())
	}
	for !p.is("}") {
		if p.peek().kind == tokEOF {
			p.errorf(p.peek(), "function '%s' is not closed", decl.Name.Symbol)
		}
		decl.Blocks = append(decl.Blocks, p.parseBlock())
	}
	if len(decl.Blocks) == 0 {
		p.errorf(p.peek(), "function '%s' has no blocks", decl.Name.Symbol)
	}
	p.expect("}")
	decl.Range = p.rangeFrom(start)
	return decl
}

func (p *parser) parseParams(open, close string) []syntax.Param {
	p.expect(open)
	var params []syntax.Param
	for !p.is(close) {
		if len(params) != 0 {
			p.expect(",")
		}
		start := p.peek()
		name := p.ident()
		p.expect(":")
		typ := p.parseType()
		params = append(params, syntax.Param{Range: p.rangeFrom(start), Name: name, Type: typ})
	}
	p.expect(close)
	return params
}

func (p *parser) parseType() syntax.Type {
	start := p.peek()
	switch {
	case p.is("fn"):
		p.advance()
		params := p.parseParams("(", ")")
		p.expect("->")
		result := p.parseType()
		return &syntax.FuncType{Range: p.rangeFrom(start), Params: params, Result: result}

	case p.is("{"):
		p.advance()
		refined := &syntax.RefinedType{Binder: p.ident()}
		p.expect(":")
		refined.Base = p.baseName()
		p.expect("|")
		if p.is("_") {
			p.advance()
		} else {
			refined.Pred = p.parseExpr()
		}
		p.expect("}")
		refined.Range = p.rangeFrom(start)
		return refined

	case start.kind == tokIdent, isSymbol(start, "("):
		name := p.baseName()
		return &syntax.BaseType{Range: name.Range, Name: name}
	}
	p.errorf(start, "expected a type, found %v", start)
	return nil
}

func (p *parser) parseLocal() syntax.LocalDecl {
	start := p.expect("let")
	local := syntax.LocalDecl{Name: p.ident()}
	p.expect(":")
	local.Base = p.baseName()
	p.expect(";")
	local.Range = p.rangeFrom(start)
	return local
}

func (p *parser) parseBlock() *syntax.Block {
	start := p.peek()
	block := &syntax.Block{Name: p.ident()}
	if p.is("[") {
		block.Entry = p.parseParams("[", "]")
	}
	p.expect("{")
	for !p.atTerminator() {
		if p.is("}") {
			p.errorf(p.peek(), "block '%s' has no terminator", block.Name.Symbol)
		}
		block.Stmts = append(block.Stmts, p.parseAssign())
	}
	block.Term = p.parseTerminator()
	p.expect("}")
	block.Range = p.rangeFrom(start)
	return block
}

func (p *parser) atTerminator() bool {
	tok := p.peek()
	if tok.kind == tokKeyword && terminatorKeywords[tok.text] {
		return true
	}
	return tok.kind == tokIdent && isSymbol(p.peekN(1), "=") && isSymbol(p.peekN(2), "call")
}

func (p *parser) parseAssign() *syntax.AssignStmt {
	start := p.peek()
	stmt := &syntax.AssignStmt{Dest: p.ident()}
	p.expect("=")
	stmt.Value = p.parseExpr()
	p.expect(";")
	stmt.Range = p.rangeFrom(start)
	return stmt
}

func (p *parser) parseTerminator() syntax.Terminator {
	start := p.peek()
	switch {
	case p.is("return"):
		p.advance()
		value := p.parseExpr()
		p.expect(";")
		return &syntax.ReturnTerm{Range: p.rangeFrom(start), Value: value}

	case p.is("goto"):
		p.advance()
		target := p.ident()
		p.expect(";")
		return &syntax.GotoTerm{Range: p.rangeFrom(start), Target: target}

	case p.is("if"):
		p.advance()
		term := &syntax.IfTerm{Cond: p.parseExpr()}
		p.expect("then")
		term.Then = p.ident()
		p.expect("else")
		term.Else = p.ident()
		p.expect(";")
		term.Range = p.rangeFrom(start)
		return term

	case p.is("assert"):
		p.advance()
		term := &syntax.AssertTerm{Cond: p.parseExpr(), Expected: true}
		// `assert c == false` expects c to be false rather than c == false to be true
		if eq, ok := term.Cond.(*syntax.BinaryExpr); ok && eq.Op == "==" {
			if lit, isBool := eq.Rhs.(*syntax.BoolLit); isBool {
				term.Cond, term.Expected = eq.Lhs, lit.Value
			}
		}
		p.expect("goto")
		term.Target = p.ident()
		p.expect(";")
		term.Range = p.rangeFrom(start)
		return term

	case p.is("abort"):
		p.advance()
		p.expect(";")
		return &syntax.AbortTerm{Range: p.rangeFrom(start)}
	}

	term := &syntax.CallTerm{Dest: p.ident()}
	p.expect("=")
	p.expect("call")
	term.Callee = p.ident()
	p.expect("(")
	for !p.is(")") {
		if len(term.Args) != 0 {
			p.expect(",")
		}
		term.Args = append(term.Args, p.parseExpr())
	}
	p.expect(")")
	p.expect("goto")
	term.Target = p.ident()
	p.expect(";")
	term.Range = p.rangeFrom(start)
	return term
}

func (p *parser) parseExpr() syntax.Expr {
	return p.parseBinary(1)
}

// parseBinary parses operators of at least minPrecedence, left associatively
func (p *parser) parseBinary(minPrecedence int) syntax.Expr {
	lhs := p.parseUnary()
	for {
		tok := p.peek()
		precedence, isOp := binaryPrecedence[tok.text]
		if tok.kind != tokPunct || !isOp || precedence < minPrecedence {
			return lhs
		}
		p.advance()
		rhs := p.parseBinary(precedence + 1)
		op := tok.text
		if op == "=" {
			op = "=="
		}
		lhs = &syntax.BinaryExpr{Range: syntax.Cover(lhs, rhs), Op: op, Lhs: lhs, Rhs: rhs}
	}
}

func (p *parser) parseUnary() syntax.Expr {
	start := p.peek()
	if p.is("!") || p.is("-") {
		p.advance()
		operand := p.parseUnary()
		return &syntax.UnaryExpr{
			Range:   syntax.Range{PosStart: p.file.Pos(start.start), PosEnd: operand.End()},
			Op:      start.text,
			Operand: operand,
		}
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() syntax.Expr {
	tok := p.peek()
	switch {
	case tok.kind == tokInt:
		p.advance()
		value, err := strconv.ParseInt(tok.text, 10, 64)
		if err != nil {
			p.errorf(tok, "integer literal %s is out of range", tok.text)
		}
		return &syntax.IntLit{Range: p.rangeOf(tok), Value: value}

	case isSymbol(tok, "true"), isSymbol(tok, "false"):
		p.advance()
		return &syntax.BoolLit{Range: p.rangeOf(tok), Value: tok.text == "true"}

	case isSymbol(tok, "("):
		p.advance()
		if p.is(")") {
			p.advance()
			return &syntax.UnitLit{Range: p.rangeFrom(tok)}
		}
		inner := p.parseExpr()
		p.expect(")")
		return inner

	case tok.kind == tokIdent:
		ident := p.ident()
		return &ident
	}
	p.errorf(tok, "expected an expression, found %v", tok)
	return nil
}
