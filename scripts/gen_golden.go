// Command gen_golden (re)compiles and runs every program under examples/,
// concurrently, and rewrites examples/golden.json with each one's observed
// exit status.
//
// Adapted from gothird's scripts/gen_vm_expects.go: that tool shells out to
// goimports through a pipe to regenerate a fixture file; this one shells out
// to `go run .` once per example, through the same errgroup+context
// concurrency idiom, since examples/golden.json is a plain JSON fixture with
// no gofmt pass of its own to pipe through.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io/ioutil"
	"log"
	"os/exec"
	"path/filepath"
	"sort"
	"time"

	"golang.org/x/net/context"
	"golang.org/x/sync/errgroup"
)

func main() {
	dir := flag.String("dir", "examples", "directory of .c programs to run")
	out := flag.String("out", "examples/golden.json", "golden fixture file to write")
	timeout := flag.Duration("timeout", 5*time.Second, "per-example run timeout")
	flag.Parse()

	if err := run(*dir, *out, *timeout); err != nil {
		log.Fatalln(err)
	}
}

func run(dir, out string, timeout time.Duration) error {
	entries, err := ioutil.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("reading %v: %w", dir, err)
	}

	var names []string
	for _, ent := range entries {
		if !ent.IsDir() && filepath.Ext(ent.Name()) == ".c" {
			names = append(names, ent.Name())
		}
	}
	sort.Strings(names)

	ctx, cancel := context.WithTimeout(context.Background(), timeout*time.Duration(len(names)+1))
	defer cancel()
	eg, ctx := errgroup.WithContext(ctx)

	statuses := make([]int, len(names))
	for i, name := range names {
		i, name := i, name
		eg.Go(func() error {
			status, err := runOne(ctx, filepath.Join(dir, name), timeout)
			if err != nil {
				return fmt.Errorf("%v: %w", name, err)
			}
			statuses[i] = status
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return err
	}

	golden := make(map[string]int, len(names))
	for i, name := range names {
		golden[name] = statuses[i]
	}
	buf, err := json.MarshalIndent(golden, "", "  ")
	if err != nil {
		return err
	}
	buf = append(buf, '\n')
	return ioutil.WriteFile(out, buf, 0644)
}

// runOne compiles and runs one example through the c4go command, one
// process per example so a misbehaving program's fault or timeout cannot
// take down the others sharing this run.
func runOne(ctx context.Context, path string, timeout time.Duration) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "go", "run", ".", path)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err == nil {
		return 0, nil
	}
	if exitErr, ok := err.(*exec.ExitError); ok {
		return exitErr.ExitCode(), nil
	}
	return 0, fmt.Errorf("%w: %s", err, stderr.String())
}
