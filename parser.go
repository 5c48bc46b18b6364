package main

import (
	"fmt"
	"io"
)

// precedence levels, lowest to highest; mirrors spec.md §4.3's table and,
// directly, the original C4 implementation's own level constants.
const (
	lvAssign = iota + 1
	lvCond
	lvLor
	lvLan
	lvOr
	lvXor
	lvAnd
	lvEq
	lvRel
	lvShift
	lvAdd
	lvMul
)

var tokLevel = map[tokKind]int{
	tokLOr: lvLor, tokLAnd: lvLan,
	tokOr: lvOr, tokXor: lvXor, tokAnd: lvAnd,
	tokEq: lvEq, tokNe: lvEq,
	tokLt: lvRel, tokGt: lvRel, tokLe: lvRel, tokGe: lvRel,
	tokShl: lvShift, tokShr: lvShift,
	tokAdd: lvAdd, tokSub: lvAdd,
	tokMul: lvMul, tokDiv: lvMul, tokMod: lvMul,
}

// parser is the single-pass recursive-descent parser and code generator.
// There is no AST: as each construct is recognized, instructions (and, for
// globals/strings, bytes) are appended directly to code/data.
//
// Grounded structurally on gothird's read/compile/compileHeader emission
// style (first.go, internals.go), generalized from FIRST's threaded
// dictionary to a full C expression/statement grammar with precedence
// climbing.
type parser struct {
	lx     *lexer
	tok    token
	peeked *token

	sym *symTab

	code []int64
	data []byte

	// exprType is the static type of the expression just emitted, tracked
	// in a single ambient register exactly as spec.md §4.3/§9 describe
	// (and as the original source does); spec.md's Design Notes flag
	// threading it as an explicit return value as the cleaner alternative,
	// but the ambient-register form is what this spec's emission rules are
	// written against.
	exprType typ

	// curLocals counts local declarations at the top of the current
	// function body, before the first statement; negative slots are
	// assigned in declaration order as locals are seen.
	curLocals int64

	// curParamCount is the current function's total parameter count, known
	// by the time any LEA for a parameter is emitted (those only appear in
	// the body, parsed after the parameter list closes). See frameOffset.
	curParamCount int64

	// curScopeMark is the symTab.enterScope mark for the innermost scope
	// currently open, used by checkDuplicate; zero at file scope, since no
	// enterScope call has happened yet when topLevel starts.
	curScopeMark int
}

func newParser(name, src string) *parser {
	p := &parser{lx: newLexer(name, src), sym: newSymTab()}
	installBuiltins(p.sym)
	return p
}

// program is the compiled output: code and data segments plus the resolved
// entry point for main.
type program struct {
	code  []int64
	data  []byte
	entry int64
}

// compile runs the parser to completion and returns the assembled program.
func compile(name, src string) (prog *program, err error) {
	p := newParser(name, src)
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(error); ok {
				err = e
				return
			}
			panic(r)
		}
	}()
	p.advance()
	for p.tok.kind != tokEOF {
		p.topLevel()
	}
	main := p.sym.getMain()
	if main == nil {
		p.fail(parseError{loc: p.tok.loc, line: p.srcLine(), msg: "undefined symbol: main"})
	}
	return &program{code: p.code, data: p.data, entry: main.value}, nil
}

func (p *parser) srcLine() string { return p.lx.currentLine() }

func (p *parser) fail(err error) { panic(err) }

func (p *parser) errf(format string, args ...interface{}) {
	p.fail(parseError{loc: p.tok.loc, line: p.srcLine(), msg: fmt.Sprintf(format, args...)})
}

func (p *parser) typeErrf(format string, args ...interface{}) {
	p.fail(typeError{loc: p.tok.loc, line: p.srcLine(), msg: fmt.Sprintf(format, args...)})
}

// checkDuplicate raises a parse error if name was already (re)bound in the
// current scope, per spec.md §4.3's duplicate-definition rule and §4.2's
// exists_in_current_scope operation.
func (p *parser) checkDuplicate(name string, loc location) {
	if p.sym.existsInCurrentScope(name, p.curScopeMark) {
		p.fail(parseError{loc: loc, line: p.srcLine(), msg: fmt.Sprintf("duplicate definition: %s", name)})
	}
}

func (p *parser) lexNext() token {
	tok, err := p.lx.nextToken()
	if err != nil {
		if err == io.EOF {
			return token{kind: tokEOF}
		}
		p.fail(err)
	}
	return tok
}

func (p *parser) advance() {
	if p.peeked != nil {
		p.tok = *p.peeked
		p.peeked = nil
		return
	}
	p.tok = p.lexNext()
}

// peek returns the token following the current one without consuming it.
// Used only to disambiguate a cast `( int|char|void ...)` from a
// parenthesized expression one token past the '('.
func (p *parser) peek() token {
	if p.peeked == nil {
		tok := p.lexNext()
		p.peeked = &tok
	}
	return *p.peeked
}

func (p *parser) expect(k tokKind) token {
	if p.tok.kind != k {
		p.errf("expected %v, got %v", k, p.tok)
	}
	tok := p.tok
	p.advance()
	return tok
}

func (p *parser) accept(k tokKind) bool {
	if p.tok.kind == k {
		p.advance()
		return true
	}
	return false
}

// --- emission helpers ---

func (p *parser) emit(o op) int {
	idx := len(p.code)
	p.code = append(p.code, int64(o))
	return idx
}

func (p *parser) emitImm(o op, v int64) int {
	idx := p.emit(o)
	p.code = append(p.code, v)
	return idx
}

func (p *parser) patch(idx int, v int64) { p.code[idx+1] = v }

func (p *parser) here() int64 { return int64(len(p.code)) }

// isLvalue reports whether the last emitted instruction is LI or LC, per
// spec.md §4.3's lvalue-by-peeking discipline.
func (p *parser) isLvalue() bool {
	if len(p.code) == 0 {
		return false
	}
	last := op(p.code[len(p.code)-1])
	return last == opLI || last == opLC
}

// dropLastLoad removes a trailing LI/LC, e.g. to turn an lvalue's address
// computation into an address-of expression, or to prepare an assignment.
func (p *parser) dropLastLoad() {
	p.code = p.code[:len(p.code)-1]
}

// loadOpFor returns LI or LC depending on t's storage width.
func loadOpFor(t typ) op {
	if isWord(t) {
		return opLI
	}
	return opLC
}

// --- top-level declarations ---

func (p *parser) topLevel() {
	if p.tok.kind == tokEnum {
		p.enumDecl()
		return
	}
	wasVoid := p.tok.kind == tokVoid
	base := p.baseType()
	first := p.declarator(base)
	if p.tok.kind == tokLParen {
		p.funcDef(first)
		return
	}
	if wasVoid {
		p.errf("void is not a legal variable type")
	}
	p.finishGlobal(first)
	for p.accept(tokComma) {
		d := p.declarator(base)
		p.finishGlobal(d)
	}
	p.expect(tokSemi)
}

// baseType parses int/char/void, defaulting to int when none is given.
// void has no representation of its own in this lattice (typ's {Char,Int}
// base plus pointer level); it type-checks as Int and is legal as a
// function's return type, a parameter's type, or the base of a cast or
// sizeof type name, but not as a variable's type (spec.md §9, resolved in
// SPEC_FULL.md §9) -- callers enforce that restriction themselves.
func (p *parser) baseType() typ {
	switch p.tok.kind {
	case tokInt:
		p.advance()
		return typInt
	case tokChar:
		p.advance()
		return typChar
	case tokVoid:
		p.advance()
		return typInt
	default:
		return typInt
	}
}

type declarator struct {
	name string
	typ  typ
	loc  location
}

// declarator parses '*'* IDENT, raising base's pointer level once per '*'.
func (p *parser) declarator(base typ) declarator {
	t := base
	for p.accept(tokMul) {
		t = ptrTo(t)
	}
	if p.tok.kind != tokIdent {
		p.errf("expected identifier, got %v", p.tok)
	}
	name := p.tok.name
	loc := p.tok.loc
	p.advance()
	return declarator{name: name, typ: t, loc: loc}
}

// enumDecl parses `enum [tag] { NAME [= NUM] , ... } ;`. Each member becomes
// a Num symbol with a running counter.
func (p *parser) enumDecl() {
	p.advance() // enum
	if p.tok.kind == tokIdent {
		p.advance() // optional tag, discarded: this subset has no use for it
	}
	p.expect(tokLBrace)
	var counter int64
	for p.tok.kind != tokRBrace {
		tok := p.expect(tokIdent)
		name := tok.name
		if p.accept(tokAssign) {
			counter = p.constExpr()
		}
		p.checkDuplicate(name, tok.loc)
		p.sym.add(name, clsNum, typInt, counter)
		counter++
		if !p.accept(tokComma) {
			break
		}
	}
	p.expect(tokRBrace)
	p.accept(tokSemi)
}

// constExpr parses a compile-time integer constant, as used by enum members
// and array-length declarators. This subset only needs numeric literals and
// a leading unary minus.
func (p *parser) constExpr() int64 {
	neg := p.accept(tokSub)
	if p.tok.kind != tokNum {
		p.errf("expected integer constant, got %v", p.tok)
	}
	v := p.tok.ival
	p.advance()
	if neg {
		v = -v
	}
	return v
}

// finishGlobal reserves data-segment space for a global declarator,
// including an optional array length and/or numeric initializer, storing
// initializers little-endian per spec.md §3.
func (p *parser) finishGlobal(d declarator) {
	length := int64(1)
	isArray := false
	if p.accept(tokLBrak) {
		isArray = true
		length = p.constExpr()
		p.expect(tokRBrak)
	}

	addr := int64(len(p.data))
	elemSize := sizeOf(d.typ)
	total := elemSize * length

	var init int64
	hasInit := false
	if !isArray && p.accept(tokAssign) {
		hasInit = true
		init = p.constExpr()
	}

	buf := make([]byte, total)
	if hasInit {
		putLE(buf[:elemSize], init, elemSize)
	}
	p.data = append(p.data, buf...)

	symTyp := d.typ
	if isArray {
		symTyp = ptrTo(d.typ)
	}
	p.checkDuplicate(d.name, d.loc)
	sym := p.sym.add(d.name, clsGlo, symTyp, addr)
	sym.isArray = isArray
}

func putLE(buf []byte, v int64, size int64) {
	u := uint64(v)
	for i := int64(0); i < size; i++ {
		buf[i] = byte(u)
		u >>= 8
	}
}

// funcDef parses `( params ) { body }` for a previously-declarator'd
// function name, per spec.md §4.3's numbered steps.
func (p *parser) funcDef(d declarator) {
	entry := p.here()
	p.checkDuplicate(d.name, d.loc)
	p.sym.add(d.name, clsFun, d.typ, entry)

	mark := p.sym.enterScope()
	savedScopeMark := p.curScopeMark
	p.curScopeMark = mark
	defer func() {
		p.sym.exitScope(mark)
		p.curScopeMark = savedScopeMark
	}()

	p.expect(tokLParen)
	paramIdx := int64(1)
	if p.tok.kind != tokRParen {
		for {
			pt := p.baseType()
			pd := p.declarator(pt)
			p.checkDuplicate(pd.name, pd.loc)
			p.sym.add(pd.name, clsLoc, pd.typ, paramIdx)
			paramIdx++
			if !p.accept(tokComma) {
				break
			}
		}
	}
	p.expect(tokRParen)

	savedParamCount := p.curParamCount
	p.curParamCount = paramIdx - 1

	p.expect(tokLBrace)

	savedLocals := p.curLocals
	p.curLocals = 0
	// void is deliberately excluded here: a local variable's base type may
	// only be int or char (SPEC_FULL.md §9).
	for p.tok.kind == tokInt || p.tok.kind == tokChar {
		base := p.baseType()
		for {
			ld := p.declarator(base)
			p.installLocal(ld)
			if !p.accept(tokComma) {
				break
			}
		}
		p.expect(tokSemi)
	}

	p.emitImm(opENT, p.curLocals)

	for p.tok.kind != tokRBrace {
		p.statement()
	}
	p.expect(tokRBrace)

	p.emit(opLEV)
	p.curLocals = savedLocals
	p.curParamCount = savedParamCount
}

// frameOffset resolves a Loc symbol's value into the actual BP-relative
// offset LEA must use. Locals are already stored as the correct negative
// offset. Parameters are stored as their 1-based declaration order, which
// frameOffset converts to a positive BP offset counting back from the end
// of the argument block: JSR's return address always lands at BP+1 (ENT's
// own "push BP" runs immediately after it), so the last-declared parameter
// -- pushed last by the caller's left-to-right evaluation, and therefore
// closest to BP -- sits at BP+2, and earlier parameters follow above it.
func (p *parser) frameOffset(sym *symbol) int64 {
	if sym.value > 0 {
		return p.curParamCount - sym.value + 2
	}
	return sym.value
}

// installLocal assigns the next negative frame slot to a local declarator.
// Arrays get contiguous slots, one whole word per element, per SPEC_FULL's
// local-array addition to spec.md's globals-only array rule.
func (p *parser) installLocal(d declarator) {
	length := int64(1)
	isArray := false
	t := d.typ
	if p.accept(tokLBrak) {
		isArray = true
		length = p.constExpr()
		p.expect(tokRBrak)
		if sizeOf(d.typ) != wordSize {
			// a local array's elements each get a whole stack slot (see
			// below), so indexing into it only scales correctly when an
			// element's declared size already is one word; char would
			// silently index by the wrong stride.
			p.errf("local arrays of char are not supported; declare a global instead")
		}
		t = ptrTo(d.typ)
	}
	// an array gets one slot per element (already word-sized, checked
	// above); a scalar gets exactly one slot.
	words := length
	if !isArray {
		words = (sizeOf(d.typ)*length + wordSize - 1) / wordSize
		if words < 1 {
			words = 1
		}
	}
	p.curLocals += words
	slot := -p.curLocals
	p.checkDuplicate(d.name, d.loc)
	sym := p.sym.add(d.name, clsLoc, t, slot)
	sym.isArray = isArray
}

// --- statements ---

func (p *parser) statement() {
	switch p.tok.kind {
	case tokIf:
		p.ifStatement()
	case tokWhile:
		p.whileStatement()
	case tokReturn:
		p.returnStatement()
	case tokLBrace:
		p.advance()
		for p.tok.kind != tokRBrace {
			p.statement()
		}
		p.expect(tokRBrace)
	case tokSemi:
		p.advance()
	default:
		p.expr(lvAssign)
		p.expect(tokSemi)
	}
}

func (p *parser) ifStatement() {
	p.advance()
	p.expect(tokLParen)
	p.expr(lvAssign)
	p.expect(tokRParen)

	bz := p.emitImm(opBZ, 0)
	p.statement()

	if p.tok.kind == tokElse {
		p.advance()
		jmp := p.emitImm(opJMP, 0)
		p.patch(bz, p.here())
		p.statement()
		p.patch(jmp, p.here())
	} else {
		p.patch(bz, p.here())
	}
}

func (p *parser) whileStatement() {
	p.advance()
	top := p.here()
	p.expect(tokLParen)
	p.expr(lvAssign)
	p.expect(tokRParen)

	bz := p.emitImm(opBZ, 0)
	p.statement()
	p.emitImm(opJMP, top)
	p.patch(bz, p.here())
}

func (p *parser) returnStatement() {
	p.advance()
	if p.tok.kind != tokSemi {
		p.expr(lvAssign)
	}
	p.expect(tokSemi)
	p.emit(opLEV)
}

// --- expressions ---

// expr parses and emits an expression at the given minimum precedence
// level, leaving its value in AX and its type in p.exprType, per spec.md
// §4.3's code-generation invariants.
func (p *parser) expr(level int) {
	p.unary()

	for {
		if level <= lvAssign && p.tok.kind == tokAssign {
			p.assignment()
			continue
		}
		if level <= lvCond && p.tok.kind == tokCond {
			p.ternary()
			continue
		}
		if level <= lvLor && p.tok.kind == tokLOr {
			p.logical(opBNZ, lvLan)
			continue
		}
		if level <= lvLan && p.tok.kind == tokLAnd {
			p.logical(opBZ, lvOr)
			continue
		}
		opLevel, ok := tokLevel[p.tok.kind]
		if !ok || level > opLevel {
			return
		}
		p.binary(opLevel)
	}
}

// assignment implements `lvalue = rhs`: the lvalue must have a trailing
// LI/LC; that load is deleted, the address is pushed, rhs is evaluated,
// then SI/SC stores according to the lvalue's type.
func (p *parser) assignment() {
	if !p.isLvalue() {
		p.errf("left side of assignment is not an lvalue")
	}
	lhsType := p.exprType
	p.dropLastLoad()
	p.emit(opPSH)
	p.advance() // '='
	p.expr(lvAssign)
	if isWord(lhsType) {
		p.emit(opSI)
	} else {
		p.emit(opSC)
	}
	p.exprType = lhsType
}

func (p *parser) ternary() {
	p.advance() // '?'
	bz := p.emitImm(opBZ, 0)
	p.expr(lvAssign)
	thenType := p.exprType
	p.expect(tokColon)
	jmp := p.emitImm(opJMP, 0)
	p.patch(bz, p.here())
	p.expr(lvCond)
	p.patch(jmp, p.here())
	p.exprType = thenType
}

// logical implements short-circuit && (branch-if-zero over the rhs) and ||
// (branch-if-nonzero over the rhs).
func (p *parser) logical(branch op, nextLevel int) {
	p.advance()
	b := p.emitImm(branch, 0)
	p.expr(nextLevel)
	p.patch(b, p.here())
	p.exprType = typInt
}

// binary implements the left-associative arithmetic/relational/bitwise
// operators: push the left operand, recurse at one level higher, then emit
// the mapped opcode, scaling pointer arithmetic as spec.md §4.3 requires.
func (p *parser) binary(level int) {
	kind := p.tok.kind
	lhsType := p.exprType
	p.advance()
	p.emit(opPSH)
	p.expr(level + 1)
	rhsType := p.exprType

	switch kind {
	case tokAdd:
		p.pointerScale(lhsType, rhsType)
		p.emit(opADD)
		if lhsType.isPtr() {
			p.exprType = lhsType
		} else if rhsType.isPtr() {
			p.exprType = rhsType
		} else {
			p.exprType = typInt
		}
		return
	case tokSub:
		if lhsType.isPtr() && rhsType.isPtr() {
			p.emit(opSUB)
			p.emit(opPSH)
			p.emitImm(opIMM, wordSize)
			p.emit(opDIV)
			p.exprType = typInt
			return
		}
		if lhsType.isPtr() && !rhsType.isPtr() {
			p.scaleBy(lhsType)
			p.emit(opSUB)
			p.exprType = lhsType
			return
		}
		p.emit(opSUB)
		p.exprType = typInt
		return
	}

	o, ok := binOpFor[kind]
	if !ok {
		p.errf("unsupported binary operator %v", kind)
	}
	p.emit(o)
	p.exprType = typInt
}

// pointerScale scales the rhs of a `+` by the pointee size when exactly one
// side is a non-Char pointer, per spec.md §4.3's pointer-arithmetic rule.
// Both operands are already emitted (lhs pushed, rhs in AX) by the time
// this runs, so scaling the "integer operand" always means scaling AX.
func (p *parser) pointerScale(lhsType, rhsType typ) {
	if lhsType.isPtr() && !rhsType.isPtr() {
		p.scaleBy(lhsType)
	} else if rhsType.isPtr() && !lhsType.isPtr() {
		p.scaleBy(rhsType)
	}
}

func (p *parser) scaleBy(ptr typ) {
	elem, _ := elemType(ptr)
	if sizeOf(elem) == 1 {
		return
	}
	p.emit(opPSH)
	p.emitImm(opIMM, wordSize)
	p.emit(opMUL)
}

// unary parses a unary expression: prefix ++/--, *, &, !, ~, +, -, a cast,
// sizeof, or a postfix-qualified primary.
func (p *parser) unary() {
	switch p.tok.kind {
	case tokInc, tokDec:
		p.prefixIncDec(p.tok.kind == tokInc)
		return
	case tokMul:
		p.advance()
		p.unary()
		elem, ok := elemType(p.exprType)
		if !ok {
			p.typeErrf("cannot dereference non-pointer type %v", p.exprType)
		}
		p.emit(loadOpFor(elem))
		p.exprType = elem
		return
	case tokAnd:
		p.advance()
		p.unary()
		if !p.isLvalue() {
			p.errf("operand of & is not an lvalue")
		}
		p.dropLastLoad()
		p.exprType = ptrTo(p.exprType)
		return
	case tokNot:
		p.advance()
		p.unary()
		p.emit(opPSH)
		p.emitImm(opIMM, 0)
		p.emit(opEQ)
		p.exprType = typInt
		return
	case tokTilde:
		p.advance()
		p.unary()
		p.emit(opPSH)
		p.emitImm(opIMM, -1)
		p.emit(opXOR)
		p.exprType = typInt
		return
	case tokAdd:
		p.advance()
		p.unary()
		return
	case tokSub:
		p.advance()
		if p.tok.kind == tokNum {
			v := -p.tok.ival
			p.advance()
			p.emitImm(opIMM, v)
			p.exprType = typInt
			return
		}
		p.emitImm(opIMM, 0)
		p.emit(opPSH)
		p.unary()
		p.emit(opSUB)
		p.exprType = typInt
		return
	case tokSizeof:
		p.advance()
		p.expect(tokLParen)
		t := p.typeName()
		p.expect(tokRParen)
		p.emitImm(opIMM, sizeOf(t))
		p.exprType = typInt
		return
	case tokLParen:
		if p.isCastAhead() {
			p.advance()
			t := p.typeName()
			p.expect(tokRParen)
			p.unary()
			p.exprType = t
			return
		}
	}
	p.postfix()
}

// isCastAhead reports whether `(` begins a cast `(int|char|void '*'*)`
// rather than a parenthesized expression: a cast's first token after `(`
// is always int/char/void, which can never begin a parenthesized
// expression (those start with a primary), so one token of lookahead past
// the `(` is enough to disambiguate.
func (p *parser) isCastAhead() bool {
	nt := p.peek()
	return nt.kind == tokInt || nt.kind == tokChar || nt.kind == tokVoid
}

// typeName parses `int|char|void '*'*` as used by casts and sizeof.
func (p *parser) typeName() typ {
	t := p.baseType()
	for p.accept(tokMul) {
		t = ptrTo(t)
	}
	return t
}

// prefixIncDec implements prefix ++/--: the operand must be an lvalue.
func (p *parser) prefixIncDec(isInc bool) {
	p.advance()
	p.unary()
	if !p.isLvalue() {
		p.errf("operand of ++/-- is not an lvalue")
	}
	t := p.exprType
	step := stepFor(t)
	loadOp := loadOpFor(t)

	// the trailing LI/LC consumed AX-as-address to produce AX-as-value;
	// drop it so AX is the address again, PSH that address, then redo the
	// load -- this is the "rewrite the trailing LI/LC" spec.md describes.
	p.dropLastLoad()
	p.emit(opPSH)  // [addr]
	p.emit(loadOp) // AX <- old value
	p.emit(opPSH)  // [addr, old]
	p.emitImm(opIMM, step)
	if isInc {
		p.emit(opADD)
	} else {
		p.emit(opSUB)
	}
	// stack: [addr]; AX: new value -- store it back.
	if isWord(t) {
		p.emit(opSI)
	} else {
		p.emit(opSC)
	}
	// AX now holds new value (prefix result is the updated value).
	p.exprType = t
}

func stepFor(t typ) int64 {
	if t.isPtr() {
		return wordSize
	}
	return 1
}

// postfix parses a primary expression followed by any number of `[ ]`
// index and postfix ++/-- operators.
func (p *parser) postfix() {
	p.primary()
	for {
		switch p.tok.kind {
		case tokLBrak:
			p.index()
		case tokInc, tokDec:
			p.postfixIncDec(p.tok.kind == tokInc)
		default:
			return
		}
	}
}

// index implements `a[i]` as exactly `*(a + i)`.
func (p *parser) index() {
	p.advance()
	lhsType := p.exprType
	p.emit(opPSH)
	p.expr(lvAssign)
	rhsType := p.exprType
	p.expect(tokRBrak)

	p.pointerScale(lhsType, rhsType)
	p.emit(opADD)
	elem, ok := elemType(lhsType)
	if !ok {
		p.typeErrf("cannot index non-pointer type %v", lhsType)
	}
	p.emit(loadOpFor(elem))
	p.exprType = elem
}

// postfixIncDec: require lvalue, rewrite the trailing load into the same
// load/add/store sequence as prefix form, but reverse-adjust so the
// un-modified value ends up in AX.
func (p *parser) postfixIncDec(isInc bool) {
	p.advance()
	if !p.isLvalue() {
		p.errf("operand of ++/-- is not an lvalue")
	}
	t := p.exprType
	step := stepFor(t)
	loadOp := loadOpFor(t)

	p.dropLastLoad()
	p.emit(opPSH)  // [addr]
	p.emit(loadOp) // AX <- old value
	p.emit(opPSH)  // [addr, old]
	p.emitImm(opIMM, step)
	if isInc {
		p.emit(opADD)
	} else {
		p.emit(opSUB)
	}
	if isWord(t) {
		p.emit(opSI)
	} else {
		p.emit(opSC)
	}
	// AX holds the new value; reverse-adjust back to the old value so the
	// expression's result is the pre-increment value.
	p.emit(opPSH)
	p.emitImm(opIMM, step)
	if isInc {
		p.emit(opSUB)
	} else {
		p.emit(opADD)
	}
	p.exprType = t
}

// primary parses number/string/identifier/call/cast-free-paren forms.
func (p *parser) primary() {
	switch p.tok.kind {
	case tokNum:
		p.emitImm(opIMM, p.tok.ival)
		p.exprType = typInt
		p.advance()
	case tokStr:
		addr := int64(len(p.data))
		p.data = append(p.data, []byte(p.tok.name)...)
		p.data = append(p.data, 0)
		p.emitImm(opIMM, addr)
		p.exprType = ptrTo(typChar)
		p.advance()
	case tokLParen:
		p.advance()
		p.expr(lvAssign)
		p.expect(tokRParen)
	case tokIdent:
		p.identOrCall()
	default:
		p.errf("unexpected token %v", p.tok)
	}
}

func (p *parser) identOrCall() {
	name := p.tok.name
	loc := p.tok.loc
	p.advance()

	if p.tok.kind == tokLParen {
		p.call(name, loc)
		return
	}

	sym := p.sym.get(name)
	if sym == nil {
		p.fail(parseError{loc: loc, line: p.srcLine(), msg: fmt.Sprintf("undefined identifier: %s", name)})
	}
	switch sym.class {
	case clsNum:
		p.emitImm(opIMM, sym.value)
		p.exprType = typInt
	case clsLoc:
		p.emitImm(opLEA, p.frameOffset(sym))
		if !sym.isArray {
			p.emit(loadOpFor(sym.typ))
		}
		p.exprType = sym.typ
	case clsGlo:
		p.emitImm(opIMM, sym.value)
		if !sym.isArray {
			p.emit(loadOpFor(sym.typ))
		}
		p.exprType = sym.typ
	case clsFun, clsSys:
		p.fail(parseError{loc: loc, line: p.srcLine(), msg: fmt.Sprintf("%s is a function, not a value", name)})
	}
}

// call implements `IDENT ( args )`: arguments are evaluated left-to-right,
// each followed by PSH, then the callee is invoked and ADJ drops the
// arguments, per spec.md §4.3's calling convention.
func (p *parser) call(name string, loc location) {
	sym := p.sym.get(name)
	if sym == nil {
		p.fail(parseError{loc: loc, line: p.srcLine(), msg: fmt.Sprintf("undefined identifier: %s", name)})
	}
	if sym.class != clsFun && sym.class != clsSys {
		p.fail(parseError{loc: loc, line: p.srcLine(), msg: fmt.Sprintf("%s is not callable", name)})
	}

	p.expect(tokLParen)
	var argc int64
	if p.tok.kind != tokRParen {
		for {
			p.expr(lvAssign)
			p.emit(opPSH)
			argc++
			if !p.accept(tokComma) {
				break
			}
		}
	}
	p.expect(tokRParen)

	switch sym.class {
	case clsSys:
		o := op(sym.value)
		if hasOperand[o] {
			p.emitImm(o, argc)
		} else {
			p.emit(o)
		}
	case clsFun:
		p.emitImm(opJSR, sym.value)
	}
	if argc > 0 {
		p.emitImm(opADJ, argc)
	}
	p.exprType = sym.typ
}
