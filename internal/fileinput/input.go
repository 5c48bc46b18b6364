// Package fileinput tracks line/column position and recent line text while
// reading runes from a single named source, for lexer diagnostics.
package fileinput

import (
	"bytes"
	"fmt"
	"io"

	"github.com/jcorbin/c4go/internal/runeio"
)

// Location names a line within a named source.
type Location struct {
	Name string
	Line int
}

// Line combines a Location along with a bytes.Buffer for its text.
type Line struct {
	Location
	bytes.Buffer
}

func (loc Location) String() string { return fmt.Sprintf("%v:%v", loc.Name, loc.Line) }
func (il Line) String() string      { return fmt.Sprintf("%v %q", il.Location, il.Buffer.String()) }

// Input implements sequential rune reading over one source, tracking both
// the line currently being scanned and the last completed line so a caller
// can report a diagnostic against either.
//
// gothird's own Input (internal/fileinput in the teacher) reads through a
// Queue of readers, for its REPL's stacked stdin/file/kernel sources; a
// compiler call here only ever has the one source text, so the queue is
// gone and Set replaces nextIn/nextLine's pop-the-next-reader logic.
type Input struct {
	rr   io.RuneReader
	name string
	Last Line
	Scan Line
}

// Set points in at r, named name, starting at line 1.
func (in *Input) Set(r io.Reader, name string) {
	in.rr = runeio.NewReader(r)
	in.name = name
	in.Last = Line{}
	in.Scan = Line{Location: Location{Name: name, Line: 1}}
}

// ReadRune reads one rune from the source, appending it into the current
// Scan line, and rolling Scan over to Last after a line feed.
func (in *Input) ReadRune() (rune, int, error) {
	if in.rr == nil {
		return 0, 0, io.EOF
	}

	r, n, err := in.rr.ReadRune()
	if r == '\n' {
		in.nextLine()
	} else if r != 0 {
		in.Scan.WriteRune(r)
	}
	return r, n, err
}

func (in *Input) nextLine() {
	in.Last.Reset()
	in.Last.Name = in.Scan.Name
	in.Last.Line = in.Scan.Line
	in.Last.Write(in.Scan.Bytes())
	in.Scan.Reset()
	in.Scan.Name = in.name
	in.Scan.Line++
}
