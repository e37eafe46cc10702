package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/wippyai/wasm-callgate/runtime"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	funcStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	typeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	resultStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))

	errorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FF6B6B"))

	frameStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

// printer writes command output, styled when color is enabled.
type printer struct {
	out   io.Writer
	color bool
}

func newPrinter(out io.Writer, mode string) *printer {
	color := mode == "always"
	if mode == "auto" {
		if f, ok := out.(*os.File); ok {
			color = term.IsTerminal(int(f.Fd()))
		}
	}
	return &printer{out: out, color: color}
}

func (p *printer) style(s lipgloss.Style, text string) string {
	if !p.color {
		return text
	}
	return s.Render(text)
}

func (p *printer) title(text string) {
	fmt.Fprintln(p.out, p.style(titleStyle, text))
}

// signature renders name(params) -> result.
func (p *printer) signature(fn *runtime.FunctionInstance, name string) string {
	sig := fn.Type()
	params := make([]string, len(sig.Params))
	for i, t := range sig.Params {
		params[i] = p.style(typeStyle, t.String())
	}
	s := p.style(funcStyle, name) + "(" + strings.Join(params, ", ") + ")"
	if sig.Arity() == 1 {
		s += " -> " + p.style(typeStyle, sig.Result.String())
	}
	return s
}

func (p *printer) result(res runtime.Result) {
	fmt.Fprintln(p.out, p.style(resultStyle, res.String()))
}

// exception renders the cause followed by one numbered frame per line.
func (p *printer) exception(exc *runtime.Exception) {
	fmt.Fprintln(p.out, p.style(errorStyle, exc.Error()))
	for i, frame := range exc.CallStack {
		fmt.Fprintf(p.out, "  %s %s\n", p.style(frameStyle, fmt.Sprintf("#%d", i)), frame)
	}
}
