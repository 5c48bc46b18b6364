/* Package main: c4go -- a tiny C compiler and virtual machine

c4go compiles a small subset of C directly into an instruction stream for an
in-process accumulator machine, then runs that stream and exits with
whatever status the compiled program returns.

There is no AST. The parser is a single recursive-descent pass: as it
recognizes a declaration, statement, or expression it appends instructions
(and, for globals and string literals, bytes) to a pair of growing
buffers -- the code segment and the data segment -- and then forgets about
the syntax it just consumed. Forward branches are handled by reserving an
operand slot and patching it once the jump target is known.

The virtual machine is a stack-plus-accumulator design: almost every
instruction either produces a value into the accumulator or consumes the
accumulator together with the top of an explicit value stack. A small
number of opcodes are not instructions at all but syscalls -- printf,
malloc, and friends -- dispatched directly by opcode rather than through a
call address, because the compiled program has no way to know where they
"live".

Section 1: see token.go, lexer.go -- turning source text into tokens.
Section 2: see types.go, symtab.go -- the type lattice and scoped symbols.
Section 3: see opcodes.go, parser.go -- the instruction set and the
single-pass compiler that emits it.
Section 4: see vm.go, host.go, syscalls.go -- the machine that runs the
emitted code, and the syscalls it exposes to it.
*/
package main
