package main

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	"github.com/muesli/termenv"
	"github.com/wraeth/kcheck"
)

// colorMode selects when terminal output is colorized.
type colorMode int

const (
	colorAuto colorMode = iota
	colorAlways
	colorNever
)

var colorModeIds = map[colorMode][]string{
	colorAuto:   {"auto"},
	colorAlways: {"always"},
	colorNever:  {"never"},
}

// enabled reports whether output written to w gets colors.
func (m colorMode) enabled(w io.Writer) bool {
	switch m {
	case colorAlways:
		return true
	case colorNever:
		return false
	}

	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	if !isatty.IsTerminal(f.Fd()) && !isatty.IsCygwinTerminal(f.Fd()) {
		return false
	}
	return termenv.NewOutput(f).EnvColorProfile() != termenv.Ascii
}

type renderOptions struct {
	Color   bool
	Verbose bool
}

type renderer struct {
	w       io.Writer
	verbose bool

	good lipgloss.Style
	warn lipgloss.Style
	bad  lipgloss.Style
	bold lipgloss.Style
}

func newRenderer(w io.Writer, opts renderOptions) *renderer {
	lr := lipgloss.NewRenderer(w)
	if opts.Color {
		lr.SetColorProfile(termenv.ANSI)
	} else {
		lr.SetColorProfile(termenv.Ascii)
	}

	return &renderer{
		w:       w,
		verbose: opts.Verbose,
		good:    lr.NewStyle().Foreground(lipgloss.Color("2")),
		warn:    lr.NewStyle().Foreground(lipgloss.Color("3")),
		bad:     lr.NewStyle().Foreground(lipgloss.Color("1")),
		bold:    lr.NewStyle().Bold(true),
	}
}

func (r *renderer) report(rep *kcheck.Report) error {
	var err error
	printf := func(format string, args ...any) {
		if err == nil {
			_, err = fmt.Fprintf(r.w, format, args...)
		}
	}

	if len(rep.Mismatches) > 0 {
		printf("%s\n", r.bold.Render("Mismatched symbols:"))
		for _, m := range rep.Mismatches {
			// Enabled tristates with the wrong value are warnings.
			observed := r.bad
			if m.Kind == kcheck.KindTernary && m.State.IsEnabled() {
				observed = r.warn
			}
			printf("  %s: found %s, required %s\n",
				r.bold.Render(m.Symbol), observed.Render(m.DescribeObserved()), r.good.Render(kcheck.FormatValues(m.Required)))
		}
		printf("\n")
	}

	if len(rep.Missing) > 0 {
		printf("%s\n", r.bold.Render("Missing symbols:"))
		for _, s := range rep.Missing {
			printf("  %s\n", r.warn.Render(s))
		}
		printf("\n")
	}

	sev := rep.Severity()
	total := rep.Matched + sev
	if sev == 0 {
		printf("%s\n", r.good.Render(fmt.Sprintf("All %d required symbols satisfied", total)))
	} else {
		printf("%s\n", r.bad.Render(fmt.Sprintf("%d of %d required symbols not satisfied", sev, total)))
	}
	if r.verbose {
		printf("Matched: %d, mismatched: %d, missing: %d\n", rep.Matched, len(rep.Mismatches), len(rep.Missing))
	}
	return err
}

func (r *renderer) generators() error {
	if _, err := fmt.Fprintln(r.w, "The following requirements generators are available:"); err != nil {
		return err
	}
	for _, name := range kcheck.Generators() {
		if _, err := fmt.Fprintf(r.w, "    %-10s %s\n", r.bold.Render(name), kcheck.GeneratorDescription(name)); err != nil {
			return err
		}
	}
	return nil
}

func (r *renderer) generated(gen *kcheck.Generated, written int, output string) error {
	var err error
	printf := func(format string, args ...any) {
		if err == nil {
			_, err = fmt.Fprintf(r.w, format, args...)
		}
	}

	if r.verbose {
		for _, s := range gen.Symbols {
			source := s.Source
			if source == "" {
				source = "-"
			}
			printf("  %s = %s (%s)\n", r.bold.Render(s.Symbol), s.Values, source)
		}
	}

	errStyle := r.good
	if gen.Errors > 0 {
		errStyle = r.warn
	}
	printf("Got %s symbols and %s errors (%d duplicates)\n",
		r.bold.Render(fmt.Sprint(len(gen.Symbols))), errStyle.Render(fmt.Sprint(gen.Errors)), gen.Duplicates)

	dest := output
	if output == "-" {
		dest = "stdout"
	}
	printf("%d discovered required symbols written to %s\n", written, dest)
	return err
}
