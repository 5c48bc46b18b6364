package main

import "fmt"

// wordSize is the machine word used throughout the code and data segments;
// fixed at 8 bytes to match the original C4 implementation.
const wordSize = 8

// baseType is the element base of a typ: the two base tags a pointer chain
// ultimately bottoms out at. A pointer is represented not by a third base
// tag but by ptrLevel>=1 over one of these -- see typ below.
type baseType int

const (
	baseChar baseType = iota
	baseInt
)

func (b baseType) String() string {
	switch b {
	case baseChar:
		return "char"
	case baseInt:
		return "int"
	default:
		return fmt.Sprintf("baseType(%d)", int(b))
	}
}

// typ is the small type lattice {Char, Int, Pointer}. It is represented as
// a flat base+level pair rather than a recursive sum type -- spec.md's
// Design Notes call out both as equally correct; this is the
// representation that keeps sizeOf/ptrTo/elemType to a field check and a
// level increment or decrement.
type typ struct {
	base     baseType
	ptrLevel int // 0 for a bare Char/Int; >=1 for every level of pointer
}

var (
	typChar = typ{base: baseChar}
	typInt  = typ{base: baseInt}
)

func (t typ) String() string {
	out := t.base.String()
	for i := 0; i < t.ptrLevel; i++ {
		out += "*"
	}
	return out
}

func (t typ) isPtr() bool { return t.ptrLevel > 0 }

// ptrTo raises the pointer level of t by one. Char and Int become
// pointer-to-Char/Int at level 1; a pointer at level n becomes level n+1.
func ptrTo(t typ) typ {
	t.ptrLevel++
	return t
}

// elemType is the inverse of ptrTo. Applying it to a non-pointer is a type
// error, reported by the caller (the parser), not panicked here.
func elemType(t typ) (typ, bool) {
	if !t.isPtr() {
		return typ{}, false
	}
	t.ptrLevel--
	return t, true
}

// sizeOf returns the size in bytes of t: Char is 1 byte, Int and any
// Pointer is one machine word.
func sizeOf(t typ) int64 {
	if t.base == baseChar && t.ptrLevel == 0 {
		return 1
	}
	return wordSize
}

// isWord reports whether a load/store of t uses word (LI/SI) rather than
// byte (LC/SC) width.
func isWord(t typ) bool { return sizeOf(t) == wordSize }
