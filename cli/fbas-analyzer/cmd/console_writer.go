package cmd

import (
	"fmt"
	"io"
	"os"
)

// consoleWriter is where commands print their output (and errors), tests replace
// it to capture the output.
var consoleWriter consoleWrapper = newStdWriter(os.Stdout, os.Stderr)

type (
	consoleWrapper interface {
		Println(a ...any)
		Print(a ...any)
		// Errorln prints to the error stream
		Errorln(a ...any)
	}

	stdWriter struct {
		out, err io.Writer
	}
)

func newStdWriter(out, err io.Writer) consoleWrapper {
	return &stdWriter{out: out, err: err}
}

func (w *stdWriter) Println(a ...any) {
	_, _ = fmt.Fprintln(w.out, a...)
}

func (w *stdWriter) Print(a ...any) {
	_, _ = fmt.Fprint(w.out, a...)
}

func (w *stdWriter) Errorln(a ...any) {
	_, _ = fmt.Fprintln(w.err, a...)
}
