package main

import (
	"io"
	"io/ioutil"

	"github.com/jcorbin/c4go/internal/flushio"
)

// VMOption configures a VM at construction time. Grounded on gothird's own
// options.go pattern: small private option types implementing apply, folded
// together by VMOptions into a single flattened VMOption.
type VMOption interface{ apply(vm *VM) }

var defaultVMOptions = VMOptions(
	WithOutput(ioutil.Discard),
)

// VMOptions flattens opts into a single VMOption, so New can apply them in
// one pass regardless of how they were grouped by the caller.
func VMOptions(opts ...VMOption) VMOption {
	var res vmOptionList
	for _, opt := range opts {
		switch impl := opt.(type) {
		case nil, noVMOption:
		case vmOptionList:
			res = append(res, impl...)
		default:
			res = append(res, opt)
		}
	}
	switch len(res) {
	case 0:
		return noVMOption{}
	case 1:
		return res[0]
	default:
		return res
	}
}

type noVMOption struct{}

func (noVMOption) apply(*VM) {}

type vmOptionList []VMOption

func (opts vmOptionList) apply(vm *VM) {
	for _, opt := range opts {
		if opt != nil {
			opt.apply(vm)
		}
	}
}

type outputOption struct{ io.Writer }
type teeOption struct{ io.Writer }
type hostOption struct{ Host }
type stackSizeOption int
type memLimitOption int
type logOption func(format string, args ...interface{})

// WithOutput directs PRTF output to w, replacing any previously configured
// output.
func WithOutput(w io.Writer) VMOption { return outputOption{w} }

// WithTee adds an additional destination for PRTF output, alongside
// whatever WithOutput already configured.
func WithTee(w io.Writer) VMOption { return teeOption{w} }

// WithHost replaces the default OS-backed Host, letting an embedder sandbox
// or fake OPEN/READ/CLOS.
func WithHost(h Host) VMOption { return hostOption{h} }

// WithStackSize overrides the VM's fixed stack capacity, in words.
func WithStackSize(words int) VMOption { return stackSizeOption(words) }

// WithMemLimit caps how large the data segment may grow via MALC or
// out-of-range stores; 0 (the default) means unlimited.
func WithMemLimit(bytes int) VMOption { return memLimitOption(bytes) }

// WithLog installs a per-cycle trace function, called once per executed
// instruction with the current pc/opcode/registers.
func WithLog(f func(format string, args ...interface{})) VMOption { return logOption(f) }

func (o outputOption) apply(vm *VM) {
	if vm.out != nil {
		vm.out.Flush()
	}
	vm.out = flushio.NewWriteFlusher(o.Writer)
}

func (o teeOption) apply(vm *VM) {
	vm.out = flushio.WriteFlushers(vm.out, flushio.NewWriteFlusher(o.Writer))
}

func (o hostOption) apply(vm *VM) { vm.host = o.Host }

func (n stackSizeOption) apply(vm *VM) { vm.stack = make([]int64, int(n)) }

func (n memLimitOption) apply(vm *VM) { vm.memLimit = int(n) }

func (f logOption) apply(vm *VM) { vm.logf = f }
