package main

import (
	"context"
	"encoding/json"
	"io/ioutil"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// end-to-end scenarios: compile and run a small program, check its exit
// status. Table-driven in gothird's own style (vm_test.go), simplified to
// this package's much smaller Compile/Run surface.
func Test_EndToEnd(t *testing.T) {
	cases := []struct {
		name string
		src  string
		want int
	}{
		{"return constant", `int main(){ return 42; }`, 42},
		{"locals and addition", `int main(){ int x; int y; x=10; y=20; return x+y; }`, 30},
		{"while loop sum", `int main(){ int i; int s; i=1; s=0; while(i<=10){ s=s+i; i=i+1; } return s; }`, 55},
		{"recursive factorial", `int f(int n){ if(n<=1) return 1; return n*f(n-1); } int main(){ return f(5); }`, 120},
		{"pointer store", `int main(){ int a; int *p; a=10; p=&a; *p=20; return a; }`, 20},
		{"enum member", `enum{R,G,B=5,Y}; int main(){ return Y; }`, 6},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			prog, err := Compile(t.Name(), tc.src)
			require.NoError(t, err)

			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()

			status, err := prog.Run(ctx, nil)
			require.NoError(t, err)
			assert.Equal(t, tc.want, status)
		})
	}
}

// Expected compile-time failures: compilation must reject each of these.
func Test_CompileFailures(t *testing.T) {
	cases := []struct {
		name string
		src  string
	}{
		{"missing semicolon", `int main(){ return 1 }`},
		{"undefined identifier", `int main(){ return undeclared; }`},
		{"deref of non-pointer", `int main(){ int x; return *x; }`},
		{"no main", `int f(){ return 1; }`},
		{"duplicate global", `int x; int x; int main(){ return 0; }`},
		{"duplicate local", `int main(){ int x; int x; return 0; }`},
		{"param redeclared as local", `int f(int n){ int n; return n; } int main(){ return f(1); }`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Compile(t.Name(), tc.src)
			require.Error(t, err)
		})
	}
}

func Test_PRTFAndArgv(t *testing.T) {
	src := `
int main(int argc, char **argv) {
	printf("argc=%d\n", argc);
	return argc;
}
`
	prog, err := Compile("argv.c", src)
	require.NoError(t, err)

	var out strings.Builder
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	status, err := prog.Run(ctx, []string{"a", "b", "c"}, WithOutput(&out))
	require.NoError(t, err)
	assert.Equal(t, 3, status)
	assert.Equal(t, "argc=3\n", out.String())
}

func Test_ExitSyscall(t *testing.T) {
	src := `int main(){ exit(7); return 0; }`
	prog, err := Compile("exit.c", src)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	status, err := prog.Run(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 7, status)
}

// golden corpus: every example under examples/ must compile and run to the
// exit status recorded in examples/golden.json, regenerated by
// scripts/gen_golden.go. Catches a compiler/VM regression across the whole
// corpus at once rather than one inline scenario at a time.
func Test_GoldenCorpus(t *testing.T) {
	const dir = "examples"

	raw, err := ioutil.ReadFile(filepath.Join(dir, "golden.json"))
	require.NoError(t, err)
	var golden map[string]int
	require.NoError(t, json.Unmarshal(raw, &golden))
	require.NotEmpty(t, golden)

	names := make([]string, 0, len(golden))
	for name := range golden {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		name, want := name, golden[name]
		t.Run(name, func(t *testing.T) {
			src, err := ioutil.ReadFile(filepath.Join(dir, name))
			require.NoError(t, err)

			prog, err := Compile(name, string(src))
			require.NoError(t, err)

			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			status, err := prog.Run(ctx, nil)
			require.NoError(t, err)
			assert.Equal(t, want, status)
		})
	}
}

func Test_RunTimeout(t *testing.T) {
	src := `int main(){ int i; i=0; while(1){ i=i+1; } return i; }`
	prog, err := Compile("loop.c", src)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = prog.Run(ctx, nil)
	assert.Error(t, err)
}
