//go:build linux

package kcheck

import (
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/cilium/ebpf"
	"go.uber.org/zap"
)

// Every eBPF object needs the bpf() syscall.
const bpfSyscallSymbol = "BPF_SYSCALL"

// programTypeSymbols lists the kernel symbols a program type depends on
// beyond BPF_SYSCALL.
var programTypeSymbols = map[ebpf.ProgramType][]string{
	ebpf.Kprobe:                {"KPROBES", "BPF_EVENTS"},
	ebpf.TracePoint:            {"TRACEPOINTS", "BPF_EVENTS"},
	ebpf.RawTracepoint:         {"BPF_EVENTS"},
	ebpf.RawTracepointWritable: {"BPF_EVENTS"},
	ebpf.PerfEvent:             {"PERF_EVENTS", "BPF_EVENTS"},
	ebpf.Tracing:               {"BPF_JIT", "DEBUG_INFO_BTF", "FUNCTION_TRACER"},
	ebpf.LSM:                   {"BPF_LSM", "DEBUG_INFO_BTF"},
	ebpf.StructOps:             {"DEBUG_INFO_BTF"},
	ebpf.Extension:             {"DEBUG_INFO_BTF"},
	ebpf.SchedCLS:              {"NET_CLS_BPF"},
	ebpf.SchedACT:              {"NET_ACT_BPF"},
	ebpf.CGroupSKB:             {"CGROUP_BPF"},
	ebpf.CGroupSock:            {"CGROUP_BPF"},
	ebpf.CGroupSockAddr:        {"CGROUP_BPF"},
	ebpf.CGroupDevice:          {"CGROUP_BPF"},
	ebpf.CGroupSysctl:          {"CGROUP_BPF"},
	ebpf.CGroupSockopt:         {"CGROUP_BPF"},
	ebpf.SockOps:               {"CGROUP_BPF"},
	ebpf.SkMsg:                 {"NET_SOCK_MSG"},
	ebpf.SkSKB:                 {"BPF_STREAM_PARSER"},
	ebpf.LWTIn:                 {"LWTUNNEL_BPF"},
	ebpf.LWTOut:                {"LWTUNNEL_BPF"},
	ebpf.LWTXmit:               {"LWTUNNEL_BPF"},
	ebpf.LircMode2:             {"BPF_LIRC_MODE2"},
}

// mapTypeSymbols lists the kernel symbols a map type depends on beyond
// BPF_SYSCALL.
var mapTypeSymbols = map[ebpf.MapType][]string{
	ebpf.PerfEventArray:      {"PERF_EVENTS"},
	ebpf.StackTrace:          {"PERF_EVENTS"},
	ebpf.XSKMap:              {"XDP_SOCKETS"},
	ebpf.CGroupStorage:       {"CGROUP_BPF"},
	ebpf.PerCPUCGroupStorage: {"CGROUP_BPF"},
	ebpf.InodeStorage:        {"BPF_LSM"},
	ebpf.StructOpsMap:        {"DEBUG_INFO_BTF"},
}

// tristateSymbols may be satisfied by a module; everything else must be built in.
var tristateSymbols = map[string]bool{
	"NET_CLS_BPF": true,
	"NET_ACT_BPF": true,
}

type elfGenerator struct {
	objects []string
	logger  *zap.Logger
}

func newELFGenerator(cfg GeneratorConfig, o options) Generator {
	return &elfGenerator{objects: cfg.Objects, logger: o.logger}
}

func (*elfGenerator) Name() string { return "elf" }

// Generate derives required symbols from every configured object file.
func (g *elfGenerator) Generate() (*Generated, error) {
	if len(g.objects) == 0 {
		return nil, fmt.Errorf("elf: no object files given")
	}

	gen := newGenerated()
	for _, obj := range g.objects {
		symbols, err := FromELF(obj)
		if err != nil {
			return nil, err
		}
		added := 0
		for _, s := range symbols {
			if gen.add(s) {
				added++
			}
		}
		g.logger.Info("scanned object", zap.String("object", obj), zap.Int("symbols", added))
	}
	return gen, nil
}

// FromELF derives the kernel config symbols an eBPF ELF object needs from
// its program and map types.
//
// Output is deduplicated and sorted by symbol. Unknown or unspecified program
// and map types fail closed with an error.
func FromELF(path string) ([]GeneratedSymbol, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("from ELF: empty path")
	}

	spec, err := ebpf.LoadCollectionSpec(path)
	if err != nil {
		return nil, fmt.Errorf("from ELF %q: load collection spec: %w", path, err)
	}

	symbols, err := symbolsFromCollectionSpec(spec)
	if err != nil {
		return nil, fmt.Errorf("from ELF %q: %w", path, err)
	}
	source := filepath.Base(path)
	for i := range symbols {
		symbols[i].Source = source
	}
	return symbols, nil
}

func symbolsFromCollectionSpec(spec *ebpf.CollectionSpec) ([]GeneratedSymbol, error) {
	if spec == nil {
		return nil, fmt.Errorf("nil collection spec")
	}

	seen := map[string]struct{}{bpfSyscallSymbol: {}}

	for name, prog := range spec.Programs {
		if prog == nil {
			return nil, fmt.Errorf("program %q: nil program spec", name)
		}
		if err := validateProgramType(prog.Type); err != nil {
			return nil, fmt.Errorf("program %q: %w", name, err)
		}
		for _, s := range programTypeSymbols[prog.Type] {
			seen[s] = struct{}{}
		}
	}

	for name, m := range spec.Maps {
		if m == nil {
			return nil, fmt.Errorf("map %q: nil map spec", name)
		}
		if err := validateMapType(m.Type); err != nil {
			return nil, fmt.Errorf("map %q: %w", name, err)
		}
		for _, s := range mapTypeSymbols[m.Type] {
			seen[s] = struct{}{}
		}
	}

	names := make([]string, 0, len(seen))
	for s := range seen {
		names = append(names, s)
	}
	slices.Sort(names)

	symbols := make([]GeneratedSymbol, 0, len(names))
	for _, s := range names {
		values := ValueBuiltin
		if tristateSymbols[s] {
			values = DefaultTernary
		}
		symbols = append(symbols, GeneratedSymbol{Symbol: SymbolPrefix + s, Values: values})
	}
	return symbols, nil
}

func validateProgramType(pt ebpf.ProgramType) error {
	if pt == ebpf.UnspecifiedProgram {
		return fmt.Errorf("unsupported/unspecified program type")
	}
	if strings.HasPrefix(pt.String(), "ProgramType(") {
		return fmt.Errorf("unknown program type %d", pt)
	}
	return nil
}

func validateMapType(mt ebpf.MapType) error {
	if mt == ebpf.UnspecifiedMap {
		return fmt.Errorf("unsupported/unspecified map type")
	}
	if strings.HasPrefix(mt.String(), "MapType(") {
		return fmt.Errorf("unknown map type %d", mt)
	}
	return nil
}
