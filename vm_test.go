package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// addressing round-trip: a data-segment address and a stack-plane address
// must dispatch to the right backing store purely by numeric range, per
// spec.md §9's "dispatch loads/stores by the source address's provenance".
func Test_VM_AddressDispatch(t *testing.T) {
	vm := New(WithStackSize(8))
	vm.data = make([]byte, 16)

	vm.storeWord(0, 0x1122334455667788)
	assert.Equal(t, int64(0x1122334455667788), vm.loadWord(0))

	// stack addresses are byte units, like every other address (see LEA),
	// so slot 3 sits at stackOrigin + 3*wordSize, not stackOrigin + 3.
	stackAddr := stackOrigin + 3*wordSize
	vm.storeWord(stackAddr, 99)
	assert.Equal(t, int64(99), vm.stack[3])
	assert.Equal(t, int64(99), vm.loadWord(stackAddr))
}

// loadByte/storeByte on the stack plane replace the entire word slot, not a
// packed sub-byte -- only the data segment packs multiple bytes per word.
func Test_VM_StackByteIsWholeSlot(t *testing.T) {
	vm := New(WithStackSize(8))
	vm.stack[2] = -1
	addr := stackOrigin + 2*wordSize
	vm.storeByte(addr, 0x41)
	assert.Equal(t, int64(0x41), vm.stack[2])
	assert.Equal(t, int64(0x41), vm.loadByte(addr))
}

// SHL/SHR mask the shift count to 0..63 rather than letting Go panic on a
// negative shift or zero the value on an over-wide one, per SPEC_FULL.md
// §4.5's resolved rule.
func Test_VM_ShiftMasking(t *testing.T) {
	vm := New()
	vm.stack = make([]int64, 4)
	vm.sp = 4

	vm.push(1)
	vm.ax = 64 // masks to 0: without masking, Go's shift-beyond-width rule
	// would instead zero the value out entirely
	vm.step(opSHL)
	assert.Equal(t, int64(1), vm.ax)

	vm.push(-1)
	vm.ax = 65 // masks to 1
	vm.step(opSHL)
	assert.Equal(t, int64(-2), vm.ax)
}

func Test_VM_DivModByZeroFaults(t *testing.T) {
	vm := New()
	vm.stack = make([]int64, 4)
	vm.sp = 4
	vm.push(1)
	vm.ax = 0

	assert.Panics(t, func() { vm.step(opDIV) })

	vm.push(1)
	vm.ax = 0
	assert.Panics(t, func() { vm.step(opMOD) })
}

// argv marshalling round-trip: each argument lands as a NUL-terminated
// string in the data segment, followed by a little-endian address array
// whose address marshalArgv returns and Run pushes as main's argv.
func Test_VM_MarshalArgv(t *testing.T) {
	vm := New()
	addr := vm.marshalArgv([]string{"ab", "c"})
	require.True(t, addr > 0)

	s0 := vm.readCString(0)
	assert.Equal(t, "ab", s0)
	s1 := vm.readCString(3)
	assert.Equal(t, "c", s1)

	word0 := vm.loadWord(addr)
	word1 := vm.loadWord(addr + wordSize)
	assert.Equal(t, int64(0), word0)
	assert.Equal(t, int64(3), word1)
}

func Test_VM_MarshalArgv_Empty(t *testing.T) {
	vm := New()
	assert.Equal(t, int64(0), vm.marshalArgv(nil))
}
