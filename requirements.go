package kcheck

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"
)

// Sections recognized in a requirements file. Others are ignored.
const (
	sectionTernary = "ternary"
	sectionString  = "string"
)

// LoadRequirements reads the requirements file at path.
//
// The file has a [ternary] section whose keys map to an optional set of
// Y, M and N characters ({Y, M} when omitted), and a [string] section whose
// keys map to a literal value. Keys are case-insensitive and prefixed with
// CONFIG_ when needed. Malformed input, including a key repeated within a
// section, yields a *[FormatError] and no mapping.
func LoadRequirements(path string, opts ...Option) (*Requirements, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open requirements: %w", err)
	}
	defer f.Close()

	return parseRequirements(f, path, newOptions(opts))
}

// ParseRequirements parses requirements from r. See [LoadRequirements].
func ParseRequirements(r io.Reader, opts ...Option) (*Requirements, error) {
	return parseRequirements(r, "", newOptions(opts))
}

func parseRequirements(r io.Reader, path string, o options) (*Requirements, error) {
	sections, err := parseINI(r)
	if err != nil {
		var fe *FormatError
		if errors.As(err, &fe) {
			fe.Path = path
		}
		return nil, err
	}

	b := newRequirementsBuilder()
	for _, sec := range sections {
		var kind Kind
		switch sec.name {
		case sectionTernary:
			kind = KindTernary
		case sectionString:
			kind = KindString
		default:
			o.logger.Debug("ignoring unknown section", zap.String("path", path), zap.String("section", sec.name))
			continue
		}

		for _, e := range sec.entries {
			req, err := requirementFrom(kind, e)
			if err == nil {
				err = b.add(req)
			}
			if err != nil {
				return nil, &FormatError{Path: path, Line: e.line, Section: sec.name, Key: e.key, Err: err}
			}
		}
	}

	rs := b.build()
	o.logger.Debug("loaded requirements",
		zap.String("path", path),
		zap.Int("ternary", rs.Count(KindTernary)),
		zap.Int("string", rs.Count(KindString)))
	return rs, nil
}

func requirementFrom(kind Kind, e iniEntry) (Requirement, error) {
	symbol := CanonicalSymbol(e.key)
	if symbol == SymbolPrefix {
		return Requirement{}, fmt.Errorf("%w: empty symbol name", ErrSyntax)
	}

	if kind == KindString {
		if e.value == "" {
			return Requirement{}, fmt.Errorf("%w: string symbol needs a value", ErrInvalidValue)
		}
		return Requirement{Symbol: symbol, Kind: KindString, Values: []string{e.value}}, nil
	}

	values, err := ternaryValues(e.value)
	if err != nil {
		return Requirement{}, err
	}
	return Requirement{Symbol: symbol, Kind: KindTernary, Values: values}, nil
}

// ternaryValues upper-cases raw and explodes it into its distinct characters,
// each of which must be Y, M or N. An empty raw means DefaultTernary.
func ternaryValues(raw string) ([]string, error) {
	if raw == "" {
		raw = DefaultTernary
	}
	raw = strings.ToUpper(raw)

	values := make([]string, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))
	for _, c := range raw {
		v := string(c)
		switch v {
		case ValueBuiltin, ValueModule, ValueNo:
		default:
			return nil, fmt.Errorf("%w: %q is not one of Y, M, N", ErrInvalidValue, v)
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		values = append(values, v)
	}
	return values, nil
}
