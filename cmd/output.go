package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mitchellh/colorstring"
	"golang.org/x/term"

	wberr "wirebridge/internal/errors"
	"wirebridge/internal/runner"
	"wirebridge/internal/table"
)

// printer writes colorstring-marked text, dropping the colors when the
// output is not a terminal.
type printer struct {
	out      io.Writer
	colorize *colorstring.Colorize
}

func newPrinter(out io.Writer, noColor bool) *printer {
	return &printer{
		out: out,
		colorize: &colorstring.Colorize{
			Colors:  colorstring.DefaultColors,
			Disable: noColor || !isTerminal(out),
			Reset:   true,
		},
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func (p *printer) printf(format string, a ...any) {
	fmt.Fprint(p.out, p.colorize.Color(fmt.Sprintf(format, a...)))
}

var statusColors = map[runner.Status]string{
	runner.StatusPassed:    "[green]",
	runner.StatusFailed:    "[red]",
	runner.StatusMismatch:  "[red]",
	runner.StatusUndefined: "[yellow]",
	runner.StatusAmbiguous: "[yellow]",
	runner.StatusSkipped:   "[cyan]",
}

// diff renders a table diff with removed rows red, added rows green
// and column notes yellow.
func (p *printer) diff(d *table.Diff, indent string) {
	for _, line := range strings.Split(strings.TrimRight(d.String(), "\n"), "\n") {
		color := "[reset]"
		switch {
		case strings.HasPrefix(line, "-"):
			color = "[red]"
		case strings.HasPrefix(line, "+"):
			color = "[green]"
		case strings.HasPrefix(line, "missing columns"), strings.HasPrefix(line, "surplus columns"):
			color = "[yellow]"
		}
		fmt.Fprintln(p.out, p.colorize.Color(color+indent+line))
	}
}

// failure prints what went wrong with a step: the diff for a table
// mismatch, otherwise the message and any backtrace.
func (p *printer) failure(err error, indent string) {
	if err == nil {
		return
	}
	var tm *wberr.TableMismatchError
	if wberr.As(err, &tm) {
		p.diff(tm.Diff, indent)
	} else {
		p.printf("%s[red]%s\n", indent, err.Error())
	}
	for _, frame := range wberr.RemoteBacktrace(err) {
		p.printf("%s[dark_gray]  at %s\n", indent, frame)
	}
}
