//go:build linux

package kcheck

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cilium/ebpf"
	"github.com/google/go-cmp/cmp"
)

func TestSymbolsFromCollectionSpec_DedupAndStableOrder(t *testing.T) {
	spec := &ebpf.CollectionSpec{
		Programs: map[string]*ebpf.ProgramSpec{
			"p2": {Type: ebpf.XDP},
			"p1": {Type: ebpf.Kprobe},
			"p3": {Type: ebpf.Kprobe}, // duplicate
			"p4": {Type: ebpf.SchedCLS},
		},
		Maps: map[string]*ebpf.MapSpec{
			"m1": {Type: ebpf.Hash},
			"m2": {Type: ebpf.PerfEventArray},
			"m3": {Type: ebpf.XSKMap},
		},
	}

	got, err := symbolsFromCollectionSpec(spec)
	if err != nil {
		t.Fatalf("symbolsFromCollectionSpec() error = %v", err)
	}

	want := []GeneratedSymbol{
		{Symbol: "CONFIG_BPF_EVENTS", Values: "Y"},
		{Symbol: "CONFIG_BPF_SYSCALL", Values: "Y"},
		{Symbol: "CONFIG_KPROBES", Values: "Y"},
		{Symbol: "CONFIG_NET_CLS_BPF", Values: "YM"},
		{Symbol: "CONFIG_PERF_EVENTS", Values: "Y"},
		{Symbol: "CONFIG_XDP_SOCKETS", Values: "Y"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("symbolsFromCollectionSpec() mismatch (-want +got):\n%s", diff)
	}
}

func TestSymbolsFromCollectionSpec_Empty(t *testing.T) {
	got, err := symbolsFromCollectionSpec(&ebpf.CollectionSpec{})
	if err != nil {
		t.Fatalf("symbolsFromCollectionSpec() error = %v", err)
	}
	want := []GeneratedSymbol{{Symbol: "CONFIG_BPF_SYSCALL", Values: "Y"}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("symbolsFromCollectionSpec() mismatch (-want +got):\n%s", diff)
	}
}

func TestSymbolsFromCollectionSpec_FailClosedUnknownKinds(t *testing.T) {
	t.Run("unspecified program type", func(t *testing.T) {
		spec := &ebpf.CollectionSpec{
			Programs: map[string]*ebpf.ProgramSpec{
				"bad-prog": {Type: ebpf.UnspecifiedProgram},
			},
		}
		_, err := symbolsFromCollectionSpec(spec)
		if err == nil {
			t.Fatal("expected error")
		}
		if !strings.Contains(err.Error(), `program "bad-prog": unsupported/unspecified program type`) {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("unknown map type", func(t *testing.T) {
		spec := &ebpf.CollectionSpec{
			Maps: map[string]*ebpf.MapSpec{
				"bad-map": {Type: ebpf.MapType(9999)},
			},
		}
		_, err := symbolsFromCollectionSpec(spec)
		if err == nil {
			t.Fatal("expected error")
		}
		if !strings.Contains(err.Error(), `map "bad-map": unknown map type 9999`) {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("nil spec", func(t *testing.T) {
		if _, err := symbolsFromCollectionSpec(nil); err == nil {
			t.Fatal("expected error")
		}
	})
}

func TestFromELF_InvalidInput(t *testing.T) {
	t.Run("empty path", func(t *testing.T) {
		if _, err := FromELF(" "); err == nil {
			t.Fatal("expected error")
		}
	})

	t.Run("not an ELF", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "prog.o")
		if err := os.WriteFile(path, []byte("not elf"), 0644); err != nil {
			t.Fatal(err)
		}
		_, err := FromELF(path)
		if err == nil {
			t.Fatal("expected error")
		}
		if !strings.Contains(err.Error(), "load collection spec") {
			t.Fatalf("unexpected error: %v", err)
		}
	})
}

func TestELFGenerator_NoObjects(t *testing.T) {
	g, err := NewGenerator("elf", GeneratorConfig{})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := g.Generate(); err == nil {
		t.Fatal("expected error without object files")
	}
}
