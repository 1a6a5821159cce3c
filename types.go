package kcheck

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"
)

// SymbolPrefix is carried by every kernel configuration symbol.
const SymbolPrefix = "CONFIG_"

// Canonical ternary value tokens.
const (
	ValueBuiltin = "Y"
	ValueModule  = "M"
	ValueNo      = "N"

	// DefaultTernary is the value set of a ternary declaration without a value.
	DefaultTernary = ValueBuiltin + ValueModule
)

var (
	// ErrNoKernelConfig is returned when the kernel config cannot be opened.
	ErrNoKernelConfig = errors.New("no kernel config found")
	// ErrUnsupportedPlatform is returned by operations that need Linux.
	ErrUnsupportedPlatform = errors.New("unsupported platform")

	ErrSyntax           = errors.New("syntax error")
	ErrDuplicateSection = errors.New("duplicate section")
	ErrDuplicateKey     = errors.New("duplicate key")
	ErrDuplicateSymbol  = errors.New("duplicate symbol")
	ErrInvalidValue     = errors.New("invalid value")
)

// FormatError reports a malformed requirements file.
// Err is one of ErrSyntax, ErrDuplicateSection, ErrDuplicateKey,
// ErrDuplicateSymbol or ErrInvalidValue, possibly wrapped with detail.
type FormatError struct {
	Path    string
	Line    int
	Section string
	Key     string
	Err     error
}

func (e *FormatError) Error() string {
	var b strings.Builder
	if e.Path != "" {
		b.WriteString(e.Path)
	} else {
		b.WriteString("requirements")
	}
	if e.Line > 0 {
		fmt.Fprintf(&b, ":%d", e.Line)
	}
	if e.Section != "" {
		fmt.Fprintf(&b, ": section %q", e.Section)
	}
	if e.Key != "" {
		fmt.Fprintf(&b, ": key %q", e.Key)
	}
	fmt.Fprintf(&b, ": %v", e.Err)
	return b.String()
}

func (e *FormatError) Unwrap() error {
	return e.Err
}

// CanonicalSymbol upper-cases name and adds the CONFIG_ prefix when missing.
func CanonicalSymbol(name string) string {
	s := strings.ToUpper(strings.TrimSpace(name))
	if !strings.HasPrefix(s, SymbolPrefix) {
		s = SymbolPrefix + s
	}
	return s
}

// Kind is the declaration kind of a required symbol.
type Kind int

const (
	// KindTernary symbols accept a subset of Y, M and N.
	KindTernary Kind = iota
	// KindString symbols accept exactly one literal value.
	KindString
)

func (k Kind) String() string {
	switch k {
	case KindTernary:
		return sectionTernary
	case KindString:
		return sectionString
	default:
		return fmt.Sprintf("Kind(%d)", k)
	}
}

// MarshalText encodes k as its section name.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Requirement is a required symbol and the values it may take.
type Requirement struct {
	Symbol string
	Kind   Kind
	// Values is an ordered set of acceptable values.
	Values []string
}

// Allows reports whether observed, as read from a kernel config, satisfies r.
//
// Kernel config values are upper-cased and unquoted when read, so string
// literals are compared the same way.
func (r Requirement) Allows(observed string) bool {
	if r.Kind == KindString {
		for _, v := range r.Values {
			if strings.EqualFold(strings.ReplaceAll(v, `"`, ""), observed) {
				return true
			}
		}
		return false
	}
	return slices.Contains(r.Values, observed)
}

func (r Requirement) equal(o Requirement) bool {
	return r.Symbol == o.Symbol && r.Kind == o.Kind && slices.Equal(r.Values, o.Values)
}

// Requirements is an immutable mapping of symbol to [Requirement].
type Requirements struct {
	items map[string]Requirement
	order []string
}

// NewRequirements builds a mapping from reqs. Symbols are canonicalized;
// declaring the same symbol twice with different values fails with
// ErrDuplicateSymbol.
func NewRequirements(reqs ...Requirement) (*Requirements, error) {
	b := newRequirementsBuilder()
	for _, r := range reqs {
		r.Symbol = CanonicalSymbol(r.Symbol)
		r.Values = slices.Clone(r.Values)
		if err := b.add(r); err != nil {
			return nil, err
		}
	}
	return b.build(), nil
}

// Get returns the requirement for symbol, which is canonicalized first.
func (rs *Requirements) Get(symbol string) (Requirement, bool) {
	if rs == nil {
		return Requirement{}, false
	}
	r, ok := rs.items[CanonicalSymbol(symbol)]
	if !ok {
		return Requirement{}, false
	}
	r.Values = slices.Clone(r.Values)
	return r, true
}

// Has reports whether symbol is required.
func (rs *Requirements) Has(symbol string) bool {
	if rs == nil {
		return false
	}
	_, ok := rs.items[CanonicalSymbol(symbol)]
	return ok
}

// Len returns the number of required symbols.
func (rs *Requirements) Len() int {
	if rs == nil {
		return 0
	}
	return len(rs.order)
}

// Count returns the number of required symbols of kind k.
func (rs *Requirements) Count(k Kind) int {
	if rs == nil {
		return 0
	}
	n := 0
	for _, r := range rs.items {
		if r.Kind == k {
			n++
		}
	}
	return n
}

// Symbols returns the required symbols in declaration order.
func (rs *Requirements) Symbols() []string {
	if rs == nil {
		return nil
	}
	return slices.Clone(rs.order)
}

type requirementsBuilder struct {
	items map[string]Requirement
	order []string
}

func newRequirementsBuilder() *requirementsBuilder {
	return &requirementsBuilder{items: make(map[string]Requirement)}
}

// add records r. A symbol seen again with identical kind and values is
// collapsed into the first declaration.
func (b *requirementsBuilder) add(r Requirement) error {
	if prev, ok := b.items[r.Symbol]; ok {
		if prev.equal(r) {
			return nil
		}
		return fmt.Errorf("%w: %s already declared as %s %s",
			ErrDuplicateSymbol, r.Symbol, prev.Kind, FormatValues(prev.Values))
	}
	b.items[r.Symbol] = r
	b.order = append(b.order, r.Symbol)
	return nil
}

func (b *requirementsBuilder) build() *Requirements {
	return &Requirements{items: b.items, order: b.order}
}

// ConfigValue represents a kernel configuration option's tristate.
type ConfigValue int

const (
	// ConfigNotSet means the option is absent or disabled.
	ConfigNotSet ConfigValue = iota
	// ConfigModule means the option is set to =m (module).
	ConfigModule
	// ConfigBuiltin means the option is set to =y (built-in).
	ConfigBuiltin
	// ConfigOther means the option holds a value that is not a tristate.
	ConfigOther
)

// IsEnabled returns true if the config option is set (either =m or =y).
func (v ConfigValue) IsEnabled() bool {
	return v == ConfigModule || v == ConfigBuiltin
}

func (v ConfigValue) String() string {
	switch v {
	case ConfigNotSet:
		return "disabled"
	case ConfigModule:
		return "module"
	case ConfigBuiltin:
		return "built-in"
	case ConfigOther:
		return "other"
	default:
		return fmt.Sprintf("ConfigValue(%d)", v)
	}
}

// KernelConfig holds the symbols observed in a kernel .config file.
type KernelConfig struct {
	raw map[string]string
}

// NewKernelConfig creates a KernelConfig from a map of full symbol names
// (CONFIG_BPF) to values. The map is copied to ensure immutability after construction.
func NewKernelConfig(raw map[string]string) *KernelConfig {
	copied := make(map[string]string, len(raw))
	for k, v := range raw {
		copied[k] = v
	}
	return &KernelConfig{raw: copied}
}

// Get returns the observed value of symbol. The CONFIG_ prefix may be omitted.
func (kc *KernelConfig) Get(symbol string) (string, bool) {
	if kc == nil || kc.raw == nil {
		return "", false
	}
	v, ok := kc.raw[CanonicalSymbol(symbol)]
	return v, ok
}

// Value returns the tristate view of symbol. An absent symbol is ConfigNotSet.
func (kc *KernelConfig) Value(symbol string) ConfigValue {
	v, ok := kc.Get(symbol)
	switch {
	case !ok || v == ValueNo:
		return ConfigNotSet
	case v == ValueBuiltin:
		return ConfigBuiltin
	case v == ValueModule:
		return ConfigModule
	default:
		return ConfigOther
	}
}

// Len returns the number of observed symbols, including disabled ones.
func (kc *KernelConfig) Len() int {
	if kc == nil {
		return 0
	}
	return len(kc.raw)
}

// Symbols returns the observed symbols, sorted.
func (kc *KernelConfig) Symbols() []string {
	if kc == nil {
		return nil
	}
	symbols := make([]string, 0, len(kc.raw))
	for s := range kc.raw {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)
	return symbols
}

// Mismatch is a required symbol whose observed value is not acceptable.
type Mismatch struct {
	Symbol   string   `json:"symbol"`
	Kind     Kind     `json:"kind"`
	Observed string   `json:"observed"`
	Required []string `json:"required"`
	// State is the tristate view of Observed; meaningful for KindTernary only.
	State ConfigValue `json:"-"`
}

// DescribeObserved renders the observed value for display, annotating
// tristate values with their meaning, e.g. "M (module)".
func (m Mismatch) DescribeObserved() string {
	if m.Observed == "" {
		return `""`
	}
	if m.Kind == KindTernary && m.State != ConfigOther {
		return m.Observed + " (" + m.State.String() + ")"
	}
	return m.Observed
}

// Report is the outcome of reconciling requirements with a kernel config.
// Mismatches and Missing follow requirement declaration order.
type Report struct {
	Mismatches []Mismatch `json:"mismatches"`
	Missing    []string   `json:"missing"`
	Matched    int        `json:"matched"`
}

// Severity is the number of mismatched plus missing symbols.
func (r *Report) Severity() int {
	if r == nil {
		return 0
	}
	return len(r.Mismatches) + len(r.Missing)
}

// OK reports whether every required symbol matched.
func (r *Report) OK() bool {
	return r.Severity() == 0
}

// FormatValues renders a value set as {A, B}.
func FormatValues(values []string) string {
	return "{" + strings.Join(values, ", ") + "}"
}
