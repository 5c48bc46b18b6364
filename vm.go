package main

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/jcorbin/c4go/internal/flushio"
)

// stackOrigin tags every address LEA produces as belonging to the stack
// plane rather than the data plane. spec.md's Design Notes call for
// "dispatch loads/stores by the source address's provenance (data vs
// stack) plus the chosen width" -- this is that dispatch, done by
// reserving a disjoint numeric range for each plane rather than carrying
// an explicit tag value alongside every address. Addresses in both planes
// are byte units (so pointer arithmetic scales uniformly by element size
// regardless of which plane it ends up indexing); stackSlot below converts
// a stack-plane address back to a vm.stack (word-sliced) index.
const stackOrigin = int64(1) << 48

// defaultStackWords is the VM's stack capacity when no WithStackSize
// option overrides it.
const defaultStackWords = 64 * 1024

// VM is a stack-plus-accumulator machine over word-sized values: the fetch-decode-
// execute loop reads an opcode at pc, advances pc past it (and any
// operand), and performs its effect. Grounded on gothird's own
// step/exec/run loop and its call/exit/pushr/popr primitives
// (internals.go, first.go), generalized from FIRST's dictionary-threaded
// calling convention to this spec's ENT/LEV/ADJ frame convention.
type VM struct {
	code []int64
	data []byte

	stack []int64
	sp    int // index of the top of stack; stack[sp] is the most recent push
	bp    int
	pc    int
	ax    int64

	cycle  uint64
	lastOp op

	host Host
	out  flushio.WriteFlusher
	logf func(format string, args ...interface{})

	memLimit int
}

// New constructs a VM ready to run a compiled program, per the functional
// options in options.go (gothird's own VMOption pattern).
func New(opts ...VMOption) *VM {
	vm := &VM{host: &osHost{}}
	defaultVMOptions.apply(vm)
	VMOptions(opts...).apply(vm)
	return vm
}

// Load installs a compiled program's code and data segments.
func (vm *VM) Load(prog *program) {
	vm.code = prog.code
	vm.data = append([]byte(nil), prog.data...)
}

// Run executes the loaded program to completion starting at its entry
// point, returning the hosted program's exit status (or a VM error).
// Grounded on gothird's VM.Run(ctx)/api.go: Run recovers a panic
// (internal/panicerr style -- inlined here since the recover is trivial
// and doesn't need goroutine isolation) into a returned error.
func (vm *VM) Run(ctx context.Context, entry int64, argv []string) (status int, err error) {
	defer func() {
		// a single flush on the way out, win or lose: matches gothird's own
		// discipline of never flushing output mid-run (flushio.WriteFlusher).
		if vm.out != nil {
			vm.out.Flush()
		}
		if r := recover(); r != nil {
			if e, ok := r.(error); ok {
				err = e
				return
			}
			panic(r)
		}
	}()

	if len(vm.stack) == 0 {
		vm.stack = make([]int64, defaultStackWords)
	}
	vm.sp = len(vm.stack)
	vm.bp = vm.sp

	trampoline := len(vm.code)
	vm.code = append(vm.code, int64(opPSH), int64(opEXIT))

	argvAddr := vm.marshalArgv(argv)

	// Pushed deepest-first so that, once main's own ENT pushes its saved BP
	// on top, the frame layout matches an ordinary two-argument call: argc
	// at BP+3, argv at BP+2, the sentinel return address at BP+1 (see
	// parser.go's frameOffset for why parameters start at BP+2, not BP+1).
	vm.push(int64(len(argv)))  // argc
	vm.push(argvAddr)          // argv
	vm.push(int64(trampoline)) // synthetic return sentinel

	// these three pushes play the role of arguments to "main" as if it had
	// been called conventionally: main's own ENT establishes BP past them.
	vm.bp = vm.sp

	vm.pc = int(entry)
	status = int(vm.exec(ctx))
	return status, nil
}

// marshalArgv copies argv into the data segment as NUL-terminated byte
// strings followed by a word array of their addresses, resolving spec.md
// §9's open question about argv in favor of a fully marshalled array
// (SPEC_FULL.md §4.5/§9).
func (vm *VM) marshalArgv(argv []string) int64 {
	if len(argv) == 0 {
		return 0
	}
	addrs := make([]int64, len(argv))
	for i, a := range argv {
		addrs[i] = int64(len(vm.data))
		vm.data = append(vm.data, []byte(a)...)
		vm.data = append(vm.data, 0)
	}
	arr := int64(len(vm.data))
	for _, a := range addrs {
		var buf [8]byte
		binary.LittleEndian.PutUint64(buf[:], uint64(a))
		vm.data = append(vm.data, buf[:]...)
	}
	return arr
}

// exec is the fetch-decode-execute loop.
func (vm *VM) exec(ctx context.Context) int64 {
	for {
		if err := ctx.Err(); err != nil {
			vm.fault("context: %v", err)
		}
		vm.cycle++

		o := vm.fetch()
		vm.lastOp = o
		if vm.logf != nil {
			vm.logf("@%d cycle=%d %v ax=%d sp=%d bp=%d", vm.pc-1, vm.cycle, o, vm.ax, vm.sp, vm.bp)
		}

		if status, halted := vm.step(o); halted {
			return status
		}
	}
}

func (vm *VM) fetch() op {
	if vm.pc < 0 || vm.pc >= len(vm.code) {
		vm.fault("pc out of range")
	}
	o := op(vm.code[vm.pc])
	vm.pc++
	if hasOperand[o] {
		if vm.pc >= len(vm.code) {
			vm.fault("truncated operand")
		}
	}
	return o
}

func (vm *VM) operand() int64 {
	v := vm.code[vm.pc]
	vm.pc++
	return v
}

// step executes a single instruction; the second return is true once EXIT
// has halted the machine, with the first return then the exit status.
func (vm *VM) step(o op) (status int64, halted bool) {
	switch o {
	case opIMM:
		vm.ax = vm.operand()
	case opLEA:
		off := vm.operand()
		vm.ax = stackOrigin + (int64(vm.bp)+off)*wordSize
	case opLI:
		vm.ax = vm.loadWord(vm.ax)
	case opLC:
		vm.ax = vm.loadByte(vm.ax)
	case opSI:
		addr := vm.top()
		vm.storeWord(addr, vm.ax)
		vm.pop()
	case opSC:
		addr := vm.top()
		vm.storeByte(addr, vm.ax)
		vm.pop()
	case opPSH:
		vm.push(vm.ax)
	case opJMP:
		vm.pc = int(vm.operand())
	case opJSR:
		t := vm.operand()
		vm.push(int64(vm.pc))
		vm.pc = int(t)
	case opBZ:
		t := vm.operand()
		if vm.ax == 0 {
			vm.pc = int(t)
		}
	case opBNZ:
		t := vm.operand()
		if vm.ax != 0 {
			vm.pc = int(t)
		}
	case opENT:
		n := vm.operand()
		vm.push(int64(vm.bp))
		vm.bp = vm.sp
		vm.sp -= int(n)
		if vm.sp < 0 {
			vm.fault("stack overflow")
		}
	case opADJ:
		n := vm.operand()
		vm.sp += int(n)
		if vm.sp > len(vm.stack) {
			vm.fault("stack underflow")
		}
	case opLEV:
		vm.sp = vm.bp
		vm.bp = int(vm.pop())
		vm.pc = int(vm.pop())

	case opOR:
		vm.binOp(func(a, b int64) int64 { return a | b })
	case opXOR:
		vm.binOp(func(a, b int64) int64 { return a ^ b })
	case opAND:
		vm.binOp(func(a, b int64) int64 { return a & b })
	case opEQ:
		vm.binOp(func(a, b int64) int64 { return boolW(a == b) })
	case opNE:
		vm.binOp(func(a, b int64) int64 { return boolW(a != b) })
	case opLT:
		vm.binOp(func(a, b int64) int64 { return boolW(a < b) })
	case opGT:
		vm.binOp(func(a, b int64) int64 { return boolW(a > b) })
	case opLE:
		vm.binOp(func(a, b int64) int64 { return boolW(a <= b) })
	case opGE:
		vm.binOp(func(a, b int64) int64 { return boolW(a >= b) })
	case opSHL:
		vm.binOp(func(a, b int64) int64 { return a << (uint(b) & 63) })
	case opSHR:
		vm.binOp(func(a, b int64) int64 { return a >> (uint(b) & 63) })
	case opADD:
		vm.binOp(func(a, b int64) int64 { return a + b })
	case opSUB:
		vm.binOp(func(a, b int64) int64 { return a - b })
	case opMUL:
		vm.binOp(func(a, b int64) int64 { return a * b })
	case opDIV:
		vm.binOp(func(a, b int64) int64 {
			if b == 0 {
				vm.fault("division by zero")
			}
			return a / b
		})
	case opMOD:
		vm.binOp(func(a, b int64) int64 {
			if b == 0 {
				vm.fault("modulo by zero")
			}
			return a % b
		})

	case opOPEN, opREAD, opCLOS, opPRTF, opMALC, opFREE, opMSET, opMCMP:
		vm.syscall(o)
	case opEXIT:
		return vm.syscallExit(), true

	default:
		vm.fault("unknown opcode %v", o)
	}
	return 0, false
}

func boolW(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

// binOp implements the "AX <- pop ⊕ AX" shape shared by every arithmetic
// and logical instruction.
func (vm *VM) binOp(f func(a, b int64) int64) {
	a := vm.pop()
	vm.ax = f(a, vm.ax)
}

func (vm *VM) push(v int64) {
	vm.sp--
	if vm.sp < 0 {
		vm.fault("stack overflow")
	}
	vm.stack[vm.sp] = v
}

func (vm *VM) pop() int64 {
	if vm.sp >= len(vm.stack) {
		vm.fault("stack underflow")
	}
	v := vm.stack[vm.sp]
	vm.sp++
	return v
}

func (vm *VM) top() int64 {
	if vm.sp >= len(vm.stack) {
		vm.fault("stack underflow")
	}
	return vm.stack[vm.sp]
}

// --- unified stack/data address plane ---

// stackSlot converts a stack-plane address (byte units, like every other
// address in this VM -- see LEA) into a vm.stack index (word units). A
// stack address is always word-aligned since LEA only ever produces one
// (every frame slot is a whole word), so the truncating divide never drops
// a fractional byte in practice; storeByte/loadByte additionally rely on
// this rounding down to the enclosing slot, per the stack's "byte store
// replaces the whole word slot" rule below.
func (vm *VM) stackSlot(addr int64) int {
	idx := int((addr - stackOrigin) / wordSize)
	if idx < 0 || idx >= len(vm.stack) {
		vm.fault("stack address out of range")
	}
	return idx
}

func (vm *VM) loadWord(addr int64) int64 {
	if addr >= stackOrigin {
		return vm.stack[vm.stackSlot(addr)]
	}
	vm.ensureData(addr + wordSize)
	return int64(binary.LittleEndian.Uint64(vm.data[addr : addr+wordSize]))
}

func (vm *VM) storeWord(addr, v int64) {
	if addr >= stackOrigin {
		vm.stack[vm.stackSlot(addr)] = v
		return
	}
	vm.ensureData(addr + wordSize)
	binary.LittleEndian.PutUint64(vm.data[addr:addr+wordSize], uint64(v))
}

// loadByte/storeByte on the stack plane act on the entire word slot the
// address falls within, rather than packing several bytes per slot the way
// the data segment does -- a local char variable or array element always
// occupies one whole slot.
func (vm *VM) loadByte(addr int64) int64 {
	if addr >= stackOrigin {
		return int64(byte(vm.stack[vm.stackSlot(addr)]))
	}
	vm.ensureData(addr + 1)
	return int64(vm.data[addr])
}

func (vm *VM) storeByte(addr, v int64) {
	if addr >= stackOrigin {
		vm.stack[vm.stackSlot(addr)] = int64(byte(v))
		return
	}
	vm.ensureData(addr + 1)
	vm.data[addr] = byte(v)
}

// ensureData grows the data segment on demand, as MALC and out-of-range
// stores require; memLimit (if set) caps how far it may grow.
func (vm *VM) ensureData(need int64) {
	if vm.memLimit != 0 && need > int64(vm.memLimit) {
		vm.fault("out of memory")
	}
	if need <= int64(len(vm.data)) {
		return
	}
	if need < 0 {
		vm.fault("invalid address")
	}
	grown := make([]byte, need)
	copy(grown, vm.data)
	vm.data = grown
}

func (vm *VM) fault(format string, args ...interface{}) {
	panic(vmError{op: vm.lastOp, cycle: vm.cycle, pc: vm.pc, msg: fmt.Sprintf(format, args...)})
}
