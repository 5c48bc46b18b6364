package main

import (
	"context"
	"flag"
	"io/ioutil"
	"os"
	"time"

	"github.com/jcorbin/c4go/internal/logio"
	"github.com/jcorbin/c4go/internal/panicerr"
)

func main() {
	var (
		printSource bool
		printCode   bool
		verbose     bool
		timeout     time.Duration
		memLimit    int
	)
	flag.BoolVar(&printSource, "s", false, "compile only; do not execute")
	flag.BoolVar(&printCode, "d", false, "print the emitted instructions once compilation finishes")
	flag.BoolVar(&verbose, "v", false, "trace each executed instruction")
	flag.DurationVar(&timeout, "timeout", 0, "kill the hosted program after this long")
	flag.IntVar(&memLimit, "mem-limit", 0, "cap the data segment's size in bytes (0: unlimited)")
	flag.Parse()

	log := logio.Logger{}
	log.SetOutput(os.Stderr)
	defer func() { os.Exit(log.ExitCode()) }()

	args := flag.Args()
	if len(args) < 1 {
		log.Errorf("usage: c4go [-s] [-d] [-v] [-timeout d] [-mem-limit n] file.c [args...]")
		return
	}
	path := args[0]

	src, err := ioutil.ReadFile(path)
	if err != nil {
		log.Errorf("%v", ioError{path: path, err: err})
		return
	}

	prog, err := Compile(path, string(src))
	if err != nil {
		log.Errorf("%s", render(err))
		return
	}

	if printCode {
		traceCode(&log, prog.prog)
	}

	if printSource {
		return
	}

	opts := []VMOption{WithOutput(os.Stdout)}
	if verbose {
		opts = append(opts, WithLog(log.Leveledf("TRACE")))
	}
	if memLimit > 0 {
		opts = append(opts, WithMemLimit(memLimit))
	}

	ctx := context.Background()
	if timeout != 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	status, err := prog.Run(ctx, args[1:], opts...)
	if err != nil {
		if verbose && panicerr.IsPanic(err) {
			log.Printf("PANIC", "%s", panicerr.PanicStack(err))
		}
		log.Errorf("%s", render(err))
		return
	}
	if status != 0 {
		os.Exit(status)
	}
}

func traceCode(log *logio.Logger, prog *program) {
	for i := 0; i < len(prog.code); i++ {
		o := op(prog.code[i])
		if hasOperand[o] && i+1 < len(prog.code) {
			log.Printf("CODE", "%4d %v %d", i, o, prog.code[i+1])
			i++
		} else {
			log.Printf("CODE", "%4d %v", i, o)
		}
	}
	log.Printf("CODE", "entry: %d", prog.entry)
}
