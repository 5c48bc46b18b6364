package main

import (
	"strconv"
	"strings"
)

// syscall dispatches one of the fixed-arity library calls. Arguments were
// pushed left-to-right by the caller's call() and have not yet been popped
// (the parser always follows a Sys call with ADJ argc, per spec.md §4.3) so
// a syscall reads them directly off the stack rather than popping.
func (vm *VM) syscall(o op) {
	switch o {
	case opOPEN:
		path := vm.readCString(vm.arg(2, 1))
		flags := vm.arg(2, 2)
		fd, err := vm.host.Open(path, flags)
		if err != nil {
			vm.ax = -1
			return
		}
		vm.ax = int64(fd)
	case opREAD:
		fd := int(vm.arg(3, 1))
		bufAddr := vm.arg(3, 2)
		count := vm.arg(3, 3)
		buf := make([]byte, count)
		n, err := vm.host.Read(fd, buf)
		if err != nil {
			vm.ax = -1
			return
		}
		for i := 0; i < n; i++ {
			vm.storeByte(bufAddr+int64(i), int64(buf[i]))
		}
		vm.ax = int64(n)
	case opCLOS:
		fd := int(vm.arg(1, 1))
		if err := vm.host.Close(fd); err != nil {
			vm.ax = -1
			return
		}
		vm.ax = 0
	case opPRTF:
		argc := int(vm.operand())
		vm.ax = vm.printf(argc)
	case opMALC:
		size := vm.arg(1, 1)
		vm.ax = int64(len(vm.data))
		vm.ensureData(vm.ax + size)
	case opFREE:
		// the data segment only ever grows (spec.md's Non-goals exclude a
		// real allocator); FREE is accepted and ignored.
		vm.ax = 0
	case opMSET:
		dst := vm.arg(3, 1)
		b := byte(vm.arg(3, 2))
		count := vm.arg(3, 3)
		for i := int64(0); i < count; i++ {
			vm.storeByte(dst+i, int64(b))
		}
		vm.ax = dst
	case opMCMP:
		a := vm.arg(3, 1)
		b := vm.arg(3, 2)
		count := vm.arg(3, 3)
		var cmp int64
		for i := int64(0); i < count; i++ {
			ca := vm.loadByte(a + i)
			cb := vm.loadByte(b + i)
			if ca != cb {
				cmp = ca - cb
				break
			}
		}
		vm.ax = cmp
	}
}

// syscallExit reads the one status argument EXIT was called with. It is
// reached both from a hosted exit(status) call and from the trampoline
// Run installs after main's entry point (vm.go), which PSHes AX before
// jumping here so the two paths share this one argument convention.
func (vm *VM) syscallExit() int64 {
	status := vm.arg(1, 1)
	vm.sp++ // drop the pushed argument; no ADJ follows this EXIT
	return status
}

// arg returns the i'th (1-based, left-to-right) of argc arguments most
// recently pushed, without popping them -- the caller's own ADJ argc does
// that once the syscall returns.
func (vm *VM) arg(argc, i int) int64 {
	idx := vm.sp + argc - i
	if idx < 0 || idx >= len(vm.stack) {
		vm.fault("syscall argument out of range")
	}
	return vm.stack[idx]
}

// readCString reads a NUL-terminated byte string out of the data segment.
func (vm *VM) readCString(addr int64) string {
	var sb strings.Builder
	for {
		b := vm.loadByte(addr)
		if b == 0 {
			break
		}
		sb.WriteByte(byte(b))
		addr++
	}
	return sb.String()
}

// printf implements the PRTF syscall's minimal conversion set: %d, %c, %s,
// %%, matching the subset spec.md's PRTF opcode documents.
func (vm *VM) printf(argc int) int64 {
	format := vm.readCString(vm.arg(argc, 1))
	nextArg := 2

	var sb strings.Builder
	for i := 0; i < len(format); i++ {
		c := format[i]
		if c != '%' || i+1 >= len(format) {
			sb.WriteByte(c)
			continue
		}
		i++
		switch format[i] {
		case 'd':
			v := vm.arg(argc, nextArg)
			nextArg++
			sb.WriteString(strconv.FormatInt(v, 10))
		case 'c':
			v := vm.arg(argc, nextArg)
			nextArg++
			sb.WriteByte(byte(v))
		case 's':
			v := vm.arg(argc, nextArg)
			nextArg++
			sb.WriteString(vm.readCString(v))
		case '%':
			sb.WriteByte('%')
		default:
			sb.WriteByte('%')
			sb.WriteByte(format[i])
		}
	}

	out := sb.String()
	if vm.out != nil {
		vm.out.Write([]byte(out))
	}
	return int64(len(out))
}
