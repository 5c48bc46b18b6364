package main

import (
	"context"

	"github.com/jcorbin/c4go/internal/panicerr"
)

// Program is a compiled source file, ready to load into one or more VMs.
type Program struct {
	prog *program
}

// Compile lexes and parses src (named for diagnostics by name), returning a
// Program or a sourceError describing the first failure.
func Compile(name, src string) (*Program, error) {
	prog, err := compile(name, src)
	if err != nil {
		return nil, err
	}
	return &Program{prog: prog}, nil
}

// Run loads p into a fresh VM built from opts and executes it to
// completion, returning the hosted program's exit status.
//
// Grounded on gothird's own api.go Run(ctx), generalized from its
// goroutine-isolated panicerr.Recover (needed there because FIRST programs
// can infinite-loop in ways only a context cancellation reaches) to the
// same recovery here, since this VM's Run already honors ctx itself.
func (p *Program) Run(ctx context.Context, argv []string, opts ...VMOption) (status int, err error) {
	vm := New(opts...)
	vm.Load(p.prog)
	err = panicerr.Recover("vm", func() error {
		var runErr error
		status, runErr = vm.Run(ctx, p.prog.entry, argv)
		return runErr
	})
	return status, err
}
