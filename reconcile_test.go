package kcheck

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func mustRequirements(t *testing.T, reqs ...Requirement) *Requirements {
	t.Helper()
	rs, err := NewRequirements(reqs...)
	if err != nil {
		t.Fatalf("NewRequirements() error = %v", err)
	}
	return rs
}

func TestReconcile_MatchAndMissing(t *testing.T) {
	required := mustRequirements(t,
		Requirement{Symbol: "CONFIG_A", Kind: KindTernary, Values: []string{"Y", "M"}},
		Requirement{Symbol: "CONFIG_B", Kind: KindString, Values: []string{"/opt"}},
	)
	observed := NewKernelConfig(map[string]string{
		"CONFIG_A": "Y",
		"CONFIG_C": "1",
	})

	got := Reconcile(required, observed)
	want := &Report{
		Mismatches: []Mismatch{},
		Missing:    []string{"CONFIG_B"},
		Matched:    1,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Reconcile() mismatch (-want +got):\n%s", diff)
	}
	if got.Severity() != 1 {
		t.Errorf("Severity() = %d, want 1", got.Severity())
	}
}

func TestReconcile_Mismatch(t *testing.T) {
	required := mustRequirements(t,
		Requirement{Symbol: "CONFIG_A", Kind: KindTernary, Values: []string{"Y"}},
	)
	observed := NewKernelConfig(map[string]string{"CONFIG_A": "M"})

	got := Reconcile(required, observed)
	want := &Report{
		Mismatches: []Mismatch{{Symbol: "CONFIG_A", Observed: "M", Required: []string{"Y"}, State: ConfigModule}},
		Missing:    []string{},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Reconcile() mismatch (-want +got):\n%s", diff)
	}
	if got.Severity() != 1 {
		t.Errorf("Severity() = %d, want 1", got.Severity())
	}
}

func TestReconcile_DisabledSymbols(t *testing.T) {
	required := mustRequirements(t,
		Requirement{Symbol: "OFF", Kind: KindTernary, Values: []string{"N"}},
		Requirement{Symbol: "ON", Kind: KindTernary, Values: []string{"Y", "M"}},
	)
	observed, err := ParseKernelConfig(strings.NewReader("# CONFIG_OFF is not set\n# CONFIG_ON is not set\n"))
	if err != nil {
		t.Fatal(err)
	}

	got := Reconcile(required, observed)
	if got.Matched != 1 {
		t.Errorf("Matched = %d, want 1", got.Matched)
	}
	want := []Mismatch{{Symbol: "CONFIG_ON", Observed: "N", Required: []string{"Y", "M"}}}
	if diff := cmp.Diff(want, got.Mismatches); diff != "" {
		t.Errorf("Mismatches (-want +got):\n%s", diff)
	}
}

func TestReconcile_OrderFollowsDeclarations(t *testing.T) {
	required := mustRequirements(t,
		Requirement{Symbol: "Z", Values: []string{"Y"}},
		Requirement{Symbol: "A", Values: []string{"Y"}},
		Requirement{Symbol: "M", Values: []string{"Y"}},
	)
	got := Reconcile(required, NewKernelConfig(nil))
	if diff := cmp.Diff([]string{"CONFIG_Z", "CONFIG_A", "CONFIG_M"}, got.Missing); diff != "" {
		t.Errorf("Missing (-want +got):\n%s", diff)
	}
}

func TestReconcile_Empty(t *testing.T) {
	got := Reconcile(nil, nil)
	if !got.OK() {
		t.Errorf("Reconcile(nil, nil) severity = %d, want 0", got.Severity())
	}
}

func TestCheck_Testdata(t *testing.T) {
	report, err := Check("testdata/kcheck.conf", "testdata/config-test")
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}

	want := &Report{
		Mismatches: []Mismatch{},
		Missing:    []string{"CONFIG_DEVTMPFS"},
		Matched:    7,
	}
	if diff := cmp.Diff(want, report); diff != "" {
		t.Errorf("Check() mismatch (-want +got):\n%s", diff)
	}
}

func TestCheck_MissingKernelConfig(t *testing.T) {
	_, err := Check("testdata/kcheck.conf", filepath.Join(t.TempDir(), "nope"))
	if !errors.Is(err, ErrNoKernelConfig) {
		t.Errorf("Check() error = %v, want ErrNoKernelConfig", err)
	}
}

func TestCheck_BadRequirements(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kcheck.conf")
	if err := os.WriteFile(path, []byte("[ternary]\nfoo\nFOO\n"), 0644); err != nil {
		t.Fatal(err)
	}
	_, err := Check(path, "testdata/config-test")
	if !errors.Is(err, ErrDuplicateKey) {
		t.Errorf("Check() error = %v, want ErrDuplicateKey", err)
	}
}

func TestReport_String(t *testing.T) {
	r := &Report{
		Mismatches: []Mismatch{
			{Symbol: "CONFIG_A", Observed: "M", Required: []string{"Y"}, State: ConfigModule},
			{Symbol: "CONFIG_HZ", Kind: KindString, Observed: "300", Required: []string{"1000"}},
			{Symbol: "CONFIG_LOCALVERSION", Kind: KindString, Observed: "", Required: []string{"-gentoo"}},
		},
		Missing: []string{"CONFIG_B"},
		Matched: 2,
	}
	want := `Mismatched symbols:
  CONFIG_A: found M (module), required {Y}
  CONFIG_HZ: found 300, required {1000}
  CONFIG_LOCALVERSION: found "", required {-gentoo}

Missing symbols:
  CONFIG_B

Matched: 2, mismatched: 3, missing: 1
`
	if diff := cmp.Diff(want, r.String()); diff != "" {
		t.Errorf("String() mismatch (-want +got):\n%s", diff)
	}
}

func TestReconcile_MismatchState(t *testing.T) {
	required := mustRequirements(t,
		Requirement{Symbol: "OFF", Kind: KindTernary, Values: []string{"Y"}},
		Requirement{Symbol: "MOD", Kind: KindTernary, Values: []string{"Y"}},
		Requirement{Symbol: "HZ", Kind: KindTernary, Values: []string{"Y"}},
		Requirement{Symbol: "NAME", Kind: KindString, Values: []string{"gentoo"}},
	)
	observed := NewKernelConfig(map[string]string{
		"CONFIG_OFF":  "N",
		"CONFIG_MOD":  "M",
		"CONFIG_HZ":   "1000",
		"CONFIG_NAME": "DEBIAN",
	})

	got := Reconcile(required, observed)
	want := []Mismatch{
		{Symbol: "CONFIG_OFF", Kind: KindTernary, Observed: "N", Required: []string{"Y"}, State: ConfigNotSet},
		{Symbol: "CONFIG_MOD", Kind: KindTernary, Observed: "M", Required: []string{"Y"}, State: ConfigModule},
		{Symbol: "CONFIG_HZ", Kind: KindTernary, Observed: "1000", Required: []string{"Y"}, State: ConfigOther},
		{Symbol: "CONFIG_NAME", Kind: KindString, Observed: "DEBIAN", Required: []string{"gentoo"}},
	}
	if diff := cmp.Diff(want, got.Mismatches); diff != "" {
		t.Fatalf("Mismatches (-want +got):\n%s", diff)
	}

	descriptions := make([]string, 0, len(got.Mismatches))
	for _, m := range got.Mismatches {
		descriptions = append(descriptions, m.DescribeObserved())
	}
	wantDescriptions := []string{"N (disabled)", "M (module)", "1000", "DEBIAN"}
	if diff := cmp.Diff(wantDescriptions, descriptions); diff != "" {
		t.Errorf("DescribeObserved() (-want +got):\n%s", diff)
	}
}

func TestMismatch_JSON(t *testing.T) {
	m := Mismatch{Symbol: "CONFIG_HZ", Kind: KindString, Observed: "300", Required: []string{"1000"}}
	data, err := json.Marshal(m)
	if err != nil {
		t.Fatal(err)
	}
	want := `{"symbol":"CONFIG_HZ","kind":"string","observed":"300","required":["1000"]}`
	if got := string(data); got != want {
		t.Errorf("json.Marshal() = %s, want %s", got, want)
	}
}
