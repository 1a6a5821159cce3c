// Package kcheck checks a compiled kernel configuration against a set of
// required configuration symbols.
//
// Requirements are declared in a small section-based key/value file. Symbols
// under [ternary] accept a subset of Y (built-in), M (module) and N
// (disabled), defaulting to Y or M; symbols under [string] accept one literal
// value. Keys are case-insensitive and the CONFIG_ prefix is optional:
//
//	[ternary]
//	; any form
//	NET
//	BPF_SYSCALL = y
//	CONFIG_IKCONFIG = ym
//
//	[string]
//	DEFAULT_HOSTNAME = gentoo
//
// # Quick Check
//
//	report, err := kcheck.Check("/etc/kcheck.conf", "/proc/config.gz")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Print(report)
//	os.Exit(report.Severity())
//
// # Pipeline
//
// [LoadRequirements] and [ReadKernelConfig] build two immutable mappings
// independently; [Reconcile] compares them and returns a [Report] of
// mismatched and missing symbols. The comparison is one-directional: symbols
// the kernel sets but nobody requires are never reported.
//
// [Report.Severity] counts mismatched plus missing symbols; zero means the
// kernel satisfies every requirement.
//
// # Kernel Config Format
//
// [ReadKernelConfig] understands the three line shapes written by the kernel
// build system:
//
//	CONFIG_BPF=y
//	CONFIG_DEFAULT_HOSTNAME="gentoo"
//	# CONFIG_BPF_LSM is not set
//
// Files ending in .gz are decompressed first. Other lines are skipped.
//
// # Generators
//
// A [Generator] derives requirements from installed metadata and
// [WriteRequirements] emits them in the same file format. Generators are
// registered at compile time; see [Generators] and [NewGenerator].
package kcheck
