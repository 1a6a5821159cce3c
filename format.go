package kcheck

import (
	"fmt"
	"strings"
)

// String returns a human-readable summary of the report.
func (r *Report) String() string {
	var b strings.Builder

	if len(r.Mismatches) > 0 {
		b.WriteString("Mismatched symbols:\n")
		for _, m := range r.Mismatches {
			writeMismatch(&b, m)
		}
		b.WriteString("\n")
	}

	if len(r.Missing) > 0 {
		b.WriteString("Missing symbols:\n")
		for _, s := range r.Missing {
			fmt.Fprintf(&b, "  %s\n", s)
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "Matched: %d, mismatched: %d, missing: %d\n",
		r.Matched, len(r.Mismatches), len(r.Missing))

	return b.String()
}

func writeMismatch(b *strings.Builder, m Mismatch) {
	fmt.Fprintf(b, "  %s: found %s, required %s\n", m.Symbol, m.DescribeObserved(), FormatValues(m.Required))
}
