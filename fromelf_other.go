//go:build !linux

package kcheck

import "fmt"

type elfGenerator struct{}

func newELFGenerator(GeneratorConfig, options) Generator {
	return elfGenerator{}
}

func (elfGenerator) Name() string { return "elf" }

// Generate always fails: eBPF objects are only inspected on Linux.
func (elfGenerator) Generate() (*Generated, error) {
	return nil, fmt.Errorf("elf: %w", ErrUnsupportedPlatform)
}

// FromELF derives the kernel config symbols an eBPF ELF object needs.
// On non-Linux platforms it always returns an unsupported-platform error.
func FromELF(_ string) ([]GeneratedSymbol, error) {
	return nil, ErrUnsupportedPlatform
}
