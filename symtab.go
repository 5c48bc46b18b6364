package main

// symClass is the storage class of a symbol.
type symClass int

const (
	clsNum symClass = iota // integer constant / enum member
	clsFun                 // user function: value = code address
	clsSys                 // built-in syscall: value = the opcode implementing it
	clsGlo                 // global variable: value = byte offset into data
	clsLoc                 // local/parameter: value = frame-relative slot index
)

func (c symClass) String() string {
	switch c {
	case clsNum:
		return "Num"
	case clsFun:
		return "Fun"
	case clsSys:
		return "Sys"
	case clsGlo:
		return "Glo"
	case clsLoc:
		return "Loc"
	default:
		return "?"
	}
}

// symbol is a name bound to a class/type/value triple, plus a shadow triple
// that lets a local transiently hide a global and restore it on scope exit.
// One slot per name is enough: the language subset disallows nested
// same-name locals in different blocks (spec.md §3, "Symbol").
type symbol struct {
	name  string
	class symClass
	typ   typ
	value int64

	// isArray marks a Glo/Loc symbol declared with a `[N]` length: its typ
	// is already the decayed pointer-to-element type, and a bare reference
	// to it must yield that address directly rather than loading through
	// it the way an ordinary pointer *variable* reference would.
	isArray bool

	shadowed     bool
	savedClass   symClass
	savedTyp     typ
	savedValue   int64
	savedIsArray bool
}

// symTab is the insertion-ordered collection of symbol entries with a name
// index, as spec.md §3/§4.2 describe. Scopes are modeled by marking the
// table length on enterScope and truncating back on exitScope, restoring
// any shadowed entries as it goes.
//
// gothird's own symbols type (symbols.go in the teacher) is a flat
// insertion-ordered name->id table with no scoping at all -- FIRST has no
// lexical scope. This generalizes that idiom with the shadow-triple
// discipline spec.md requires.
type symTab struct {
	order  []string
	byName map[string]*symbol
}

func newSymTab() *symTab {
	st := &symTab{byName: make(map[string]*symbol)}
	return st
}

// add inserts or overwrites name, saving the prior binding into its shadow
// triple first so exitScope can restore it. Returns the live symbol; set
// its isArray field directly afterward for an array declarator.
func (st *symTab) add(name string, class symClass, t typ, value int64) *symbol {
	sym, exists := st.byName[name]
	if !exists {
		sym = &symbol{name: name}
		st.byName[name] = sym
	} else {
		sym.savedClass, sym.savedTyp, sym.savedValue = sym.class, sym.typ, sym.value
		sym.savedIsArray = sym.isArray
		sym.shadowed = true
	}
	st.order = append(st.order, name)
	sym.class, sym.typ, sym.value = class, t, value
	sym.isArray = false
	return sym
}

// get returns the innermost visible binding for name, or nil.
func (st *symTab) get(name string) *symbol { return st.byName[name] }

// existsInCurrentScope reports whether name was (re)bound since the most
// recent enterScope mark.
func (st *symTab) existsInCurrentScope(name string, mark int) bool {
	for i := mark; i < len(st.order); i++ {
		if st.order[i] == name {
			return true
		}
	}
	return false
}

// enterScope returns a mark to later pass to exitScope.
func (st *symTab) enterScope() int { return len(st.order) }

// exitScope removes every entry added since mark, restoring any shadowed
// outer binding as it unwinds, innermost-added-last.
func (st *symTab) exitScope(mark int) {
	for i := len(st.order) - 1; i >= mark; i-- {
		name := st.order[i]
		sym := st.byName[name]
		if sym.shadowed {
			sym.class, sym.typ, sym.value = sym.savedClass, sym.savedTyp, sym.savedValue
			sym.isArray = sym.savedIsArray
			sym.shadowed = false
		} else {
			delete(st.byName, name)
		}
	}
	st.order = st.order[:mark]
}

// getMain returns the Fun symbol named "main", or nil if compilation never
// defined one.
func (st *symTab) getMain() *symbol {
	if sym := st.get("main"); sym != nil && sym.class == clsFun {
		return sym
	}
	return nil
}

// sysNames is the insertion order of the nine built-in syscalls, installed
// before any enterScope per spec.md §4.2.
var sysNames = []struct {
	name string
	op   op
}{
	{"open", opOPEN},
	{"read", opREAD},
	{"close", opCLOS},
	{"printf", opPRTF},
	{"malloc", opMALC},
	{"free", opFREE},
	{"memset", opMSET},
	{"memcmp", opMCMP},
	{"exit", opEXIT},
}

// installBuiltins seeds st with the nine syscalls, per spec.md §4.2's
// initial-insertion invariant. void has no symbol-table entry here: unlike
// the original source (where Void is a plain identifier bound at startup),
// this lexer tokenizes "void" as its own keyword, so no lookup ever reaches
// the symbol table for it.
func installBuiltins(st *symTab) {
	for _, s := range sysNames {
		st.add(s.name, clsSys, typInt, int64(s.op))
	}
}
