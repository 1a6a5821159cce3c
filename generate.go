package kcheck

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
)

// ErrUnknownGenerator is returned by [NewGenerator] for an unregistered name.
var ErrUnknownGenerator = errors.New("unknown requirements generator")

// GeneratedSymbol is a required symbol discovered by a [Generator].
type GeneratedSymbol struct {
	// Symbol is the canonical symbol name.
	Symbol string
	// Values is the ternary value string, e.g. "YM".
	Values string
	// Source names where the symbol was found (an ebuild, an object file).
	Source string
}

// Generated is the output of a [Generator].
type Generated struct {
	// Symbols in discovery order. A symbol appears at most once.
	Symbols []GeneratedSymbol
	// Errors counts directives that could not be turned into a symbol.
	Errors int
	// Duplicates counts later declarations of an already seen symbol.
	Duplicates int

	seen map[string]struct{}
}

func newGenerated() *Generated {
	return &Generated{seen: make(map[string]struct{})}
}

// add records s unless its symbol was already seen; the first declaration wins.
func (g *Generated) add(s GeneratedSymbol) bool {
	s.Symbol = CanonicalSymbol(s.Symbol)
	if _, ok := g.seen[s.Symbol]; ok {
		g.Duplicates++
		return false
	}
	g.seen[s.Symbol] = struct{}{}
	g.Symbols = append(g.Symbols, s)
	return true
}

// Generator produces required symbols from some external metadata source,
// such as a package manager database.
type Generator interface {
	Name() string
	Generate() (*Generated, error)
}

// GeneratorConfig carries backend-specific inputs.
type GeneratorConfig struct {
	// Root is the installed-package database for the portage backend.
	Root string
	// Objects are eBPF object files for the elf backend.
	Objects []string
}

type generatorFactory struct {
	description string
	new         func(GeneratorConfig, options) Generator
}

var generatorRegistry = map[string]generatorFactory{
	"portage": {
		description: "installed Gentoo packages inheriting linux-info",
		new:         newPortageGenerator,
	},
	"elf": {
		description: "eBPF object files (program and map types)",
		new:         newELFGenerator,
	},
}

// Generators returns the registered generator names, sorted.
func Generators() []string {
	names := make([]string, 0, len(generatorRegistry))
	for name := range generatorRegistry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GeneratorDescription returns a one-line description of the named generator.
func GeneratorDescription(name string) string {
	return generatorRegistry[name].description
}

// NewGenerator returns the generator registered under name.
func NewGenerator(name string, cfg GeneratorConfig, opts ...Option) (Generator, error) {
	f, ok := generatorRegistry[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q (available: %s)", ErrUnknownGenerator, name, strings.Join(Generators(), ", "))
	}
	return f.new(cfg, newOptions(opts)), nil
}

// WriteRequirements writes gen as a requirements file to w and returns the
// number of symbols written. Symbols already present in skip are left out.
// The output loads with [LoadRequirements] unchanged.
func WriteRequirements(w io.Writer, gen *Generated, skip *Requirements) (int, error) {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "[%s]\n", sectionTernary)

	written := 0
	for _, s := range gen.Symbols {
		if skip.Has(s.Symbol) {
			continue
		}
		if s.Source != "" {
			fmt.Fprintf(bw, "; from %s\n", s.Source)
		}
		fmt.Fprintf(bw, "%s = %s\n", strings.TrimPrefix(s.Symbol, SymbolPrefix), s.Values)
		written++
	}

	if err := bw.Flush(); err != nil {
		return 0, err
	}
	return written, nil
}
