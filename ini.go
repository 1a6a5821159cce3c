package kcheck

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// iniEntry is one key of a requirements file section.
type iniEntry struct {
	key      string
	value    string
	hasValue bool
	line     int
	indent   int
}

type iniSection struct {
	name    string
	line    int
	entries []iniEntry
}

// parseINI reads section-based key/value text.
//
// Supported syntax: [section] headers, "key = value" or "key: value" pairs,
// bare keys without a value, full-line comments starting with # or ;, and
// continuation lines indented deeper than their key that extend the
// previous value. Keys are
// case-insensitive. A repeated section or a repeated key within a section is
// a *FormatError; nothing is returned in that case.
func parseINI(r io.Reader) ([]iniSection, error) {
	var (
		sections []iniSection
		current  = -1
		seenSec  = make(map[string]struct{})
		seenKey  map[string]struct{}
		lineno   int
	)

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		lineno++
		raw := scanner.Text()
		line := strings.TrimSpace(raw)

		if line == "" || line[0] == '#' || line[0] == ';' {
			continue
		}

		indent := len(raw) - len(strings.TrimLeft(raw, " \t"))

		// Continuation of the previous value.
		if indent > 0 && current >= 0 && len(sections[current].entries) > 0 {
			entries := sections[current].entries
			last := &entries[len(entries)-1]
			if last.hasValue && indent > last.indent {
				if last.value != "" {
					last.value += "\n"
				}
				last.value += line
				continue
			}
		}

		if line[0] == '[' {
			if !strings.HasSuffix(line, "]") {
				return nil, &FormatError{Line: lineno, Err: fmt.Errorf("%w: unterminated section header", ErrSyntax)}
			}
			name := strings.TrimSpace(line[1 : len(line)-1])
			if name == "" {
				return nil, &FormatError{Line: lineno, Err: fmt.Errorf("%w: empty section name", ErrSyntax)}
			}
			if _, dup := seenSec[name]; dup {
				return nil, &FormatError{Line: lineno, Section: name, Err: ErrDuplicateSection}
			}
			seenSec[name] = struct{}{}
			seenKey = make(map[string]struct{})
			sections = append(sections, iniSection{name: name, line: lineno})
			current = len(sections) - 1
			continue
		}

		if current < 0 {
			return nil, &FormatError{Line: lineno, Err: fmt.Errorf("%w: key outside of a section", ErrSyntax)}
		}

		sec := &sections[current]
		entry := iniEntry{line: lineno, indent: indent}
		if i := strings.IndexAny(line, "=:"); i >= 0 {
			entry.key = strings.TrimSpace(line[:i])
			entry.value = strings.TrimSpace(line[i+1:])
			entry.hasValue = true
		} else {
			entry.key = line
		}
		if entry.key == "" {
			return nil, &FormatError{Line: lineno, Section: sec.name, Err: fmt.Errorf("%w: empty key", ErrSyntax)}
		}

		folded := strings.ToLower(entry.key)
		if _, dup := seenKey[folded]; dup {
			return nil, &FormatError{Line: lineno, Section: sec.name, Key: entry.key, Err: ErrDuplicateKey}
		}
		seenKey[folded] = struct{}{}
		sec.entries = append(sec.entries, entry)
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return sections, nil
}
