package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"

	"github.com/leodido/structcli"
	"github.com/spf13/cobra"
	"github.com/thediveo/enumflag/v2"
	"github.com/wraeth/kcheck"
	"go.uber.org/zap"
)

// Build metadata injected via ldflags.
// When built without ldflags (e.g., plain `go build`), these remain
// at their zero values and the version command omits them gracefully.
var (
	version = ""
	commit  = ""
	date    = ""
)

const defaultGenerator = "portage"

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// exitError carries a process exit status out of a command.
type exitError struct {
	code int
}

func (e *exitError) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}

// exitCode clamps a count to a valid process exit status.
func exitCode(n int) int {
	return min(n, 255)
}

func run(args []string, stdout, stderr io.Writer) int {
	g := &globalOptions{}
	defer g.close()

	root := rootCmd(g)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	if err := root.Execute(); err != nil {
		var ee *exitError
		if errors.As(err, &ee) {
			return ee.code
		}
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

// globalOptions holds the persistent flags and what is built from them.
type globalOptions struct {
	Verbose int
	LogFile string
	Color   colorMode

	logger  *zap.Logger
	cleanup func()
}

func (g *globalOptions) close() {
	if g.logger != nil {
		_ = g.logger.Sync()
	}
	if g.cleanup != nil {
		g.cleanup()
	}
}

func (g *globalOptions) renderOptions(w io.Writer) renderOptions {
	return renderOptions{
		Color:   g.Color.enabled(w),
		Verbose: g.Verbose > 0,
	}
}

func rootCmd(g *globalOptions) *cobra.Command {
	root := checkCmd(g, "kcheck")
	root.Short = "Kernel configuration check utility"
	root.Long = `kcheck compares the symbols required by a requirements file against a
compiled kernel .config (optionally gzip-compressed) and reports mismatched
and missing symbols. The exit status is the number of unsatisfied symbols.

The genconfig command derives a requirements file from installed metadata.`
	root.SilenceUsage = true
	root.SilenceErrors = true

	root.PersistentPreRunE = func(c *cobra.Command, args []string) error {
		logger, cleanup, err := newLogger(c.ErrOrStderr(), g.Verbose, g.LogFile)
		if err != nil {
			return fmt.Errorf("initialize logger: %w", err)
		}
		g.logger, g.cleanup = logger, cleanup
		g.logger.Info("kcheck", zap.String("version", versionString()))
		g.logger.Debug("called with arguments", zap.Strings("args", args), zap.String("command", c.CommandPath()))
		return nil
	}

	pf := root.PersistentFlags()
	pf.CountVarP(&g.Verbose, "verbose", "v", "Output extra information (repeat for more)")
	pf.StringVar(&g.LogFile, "logfile", "", "File to write logging into")
	pf.Var(enumflag.New(&g.Color, "when", colorModeIds, enumflag.EnumCaseInsensitive),
		"color", "Colorize output: auto, always or never")

	root.AddCommand(checkCmd(g, "check"))
	root.AddCommand(genconfigCmd(g))
	root.AddCommand(versionCmd())
	return root
}

// CheckOptions defines flags for the check command.
type CheckOptions struct {
	Config string `flag:"config" flagshort:"c" flagdescr:"Requirements file (default: first kcheck.conf found in the XDG config dirs or /etc)"`
	Kernel string `flag:"kernel" flagshort:"k" flagdescr:"Kernel config file, decompressed when ending in .gz (default: /usr/src/linux/.config, /proc/config.gz, /boot, /lib/modules)"`
	JSON   bool   `flag:"json" flagshort:"j" flagdescr:"Output in JSON format"`
}

func (o *CheckOptions) Attach(c *cobra.Command) error {
	return structcli.Define(c, o)
}

func checkCmd(g *globalOptions, use string) *cobra.Command {
	opts := &CheckOptions{}

	cmd := &cobra.Command{
		Use:   use,
		Short: "Check a kernel config against the required symbols",
		Args:  cobra.NoArgs,
		PreRunE: func(c *cobra.Command, args []string) error {
			return structcli.Unmarshal(c, opts)
		},
		RunE: func(c *cobra.Command, args []string) error {
			requirementsPath := opts.Config
			if requirementsPath == "" {
				p, err := findRequirementsFile()
				if err != nil {
					return err
				}
				requirementsPath = p
			}

			kernelPath := opts.Kernel
			if kernelPath == "" {
				p, err := kcheck.FindKernelConfig()
				if err != nil {
					return err
				}
				kernelPath = p
			}

			report, err := kcheck.Check(requirementsPath, kernelPath, kcheck.WithLogger(g.logger))
			if err != nil {
				return err
			}

			out := c.OutOrStdout()
			if opts.JSON {
				err = printJSON(out, map[string]any{
					"ok":            report.OK(),
					"severity":      report.Severity(),
					"requirements":  requirementsPath,
					"kernel_config": kernelPath,
					"matched":       report.Matched,
					"mismatches":    report.Mismatches,
					"missing":       report.Missing,
				})
			} else {
				err = newRenderer(out, g.renderOptions(out)).report(report)
			}
			if err != nil {
				return err
			}

			if sev := report.Severity(); sev > 0 {
				return &exitError{code: exitCode(sev)}
			}
			return nil
		},
	}

	if err := opts.Attach(cmd); err != nil {
		panic(err)
	}
	return cmd
}

// GenconfigOptions defines flags for the genconfig command.
type GenconfigOptions struct {
	List    bool   `flag:"list" flagshort:"l" flagdescr:"List available requirements generators"`
	Manager string `flag:"manager" flagshort:"m" flagdescr:"Requirements generator (default: portage)"`
	Output  string `flag:"output" flagshort:"o" flagdescr:"File to write requirements into, - for stdout (default: kcheck.conf)"`
	Config  string `flag:"config" flagshort:"c" flagdescr:"Existing requirements file whose symbols are skipped (default: discovered kcheck.conf)"`
	Root    string `flag:"root" flagdescr:"Installed-package database for portage (default: /var/db/pkg)"`
}

func (o *GenconfigOptions) Attach(c *cobra.Command) error {
	return structcli.Define(c, o)
}

func genconfigCmd(g *globalOptions) *cobra.Command {
	opts := &GenconfigOptions{}

	cmd := &cobra.Command{
		Use:   "genconfig [object...]",
		Short: "Generate required symbols from installed packages or eBPF objects",
		PreRunE: func(c *cobra.Command, args []string) error {
			return structcli.Unmarshal(c, opts)
		},
		RunE: func(c *cobra.Command, args []string) error {
			out := c.OutOrStdout()
			if opts.List {
				return newRenderer(out, g.renderOptions(out)).generators()
			}

			manager := opts.Manager
			if manager == "" {
				manager = defaultGenerator
			}
			gen, err := kcheck.NewGenerator(manager,
				kcheck.GeneratorConfig{Root: opts.Root, Objects: args},
				kcheck.WithLogger(g.logger))
			if err != nil {
				return err
			}

			existing, err := loadExisting(opts.Config, g.logger)
			if err != nil {
				return err
			}

			result, err := gen.Generate()
			if err != nil {
				return err
			}

			output := opts.Output
			if output == "" {
				output = requirementsFile
			}
			written, err := writeGenerated(output, out, result, existing)
			if err != nil {
				return err
			}
			g.logger.Info("wrote requirements", zap.String("output", output), zap.Int("symbols", written))

			// Keep stdout clean when the requirements go there.
			summary := out
			if output == "-" {
				summary = c.ErrOrStderr()
			}
			if err := newRenderer(summary, g.renderOptions(summary)).generated(result, written, output); err != nil {
				return err
			}

			if result.Errors > 0 {
				return &exitError{code: exitCode(result.Errors)}
			}
			return nil
		},
	}

	if err := opts.Attach(cmd); err != nil {
		panic(err)
	}
	return cmd
}

// loadExisting loads the requirements whose symbols genconfig must not
// repeat. A missing file means there is nothing to skip.
func loadExisting(path string, logger *zap.Logger) (*kcheck.Requirements, error) {
	if path == "" {
		p, err := findRequirementsFile()
		if err != nil {
			logger.Debug("no existing requirements file", zap.Error(err))
			return nil, nil
		}
		path = p
	}

	rs, err := kcheck.LoadRequirements(path, kcheck.WithLogger(logger))
	if errors.Is(err, os.ErrNotExist) {
		logger.Debug("no existing requirements file", zap.String("path", path))
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	logger.Debug("skipping symbols of existing requirements", zap.String("path", path), zap.Int("symbols", rs.Len()))
	return rs, nil
}

func writeGenerated(output string, stdout io.Writer, gen *kcheck.Generated, skip *kcheck.Requirements) (int, error) {
	if output == "-" {
		return kcheck.WriteRequirements(stdout, gen, skip)
	}

	f, err := os.Create(output)
	if err != nil {
		return 0, err
	}
	n, err := kcheck.WriteRequirements(f, gen, skip)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	return n, err
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show tool and kernel version",
		RunE: func(c *cobra.Command, args []string) error {
			out := c.OutOrStdout()
			fmt.Fprintf(out, "kcheck %s (%s)\n", versionString(), runtime.Version())

			if release, err := kcheck.KernelRelease(); err == nil {
				fmt.Fprintf(out, "Kernel: %s\n", release)
			}
			return nil
		},
	}
}

func versionString() string {
	if version == "" {
		return "(dev)"
	}
	s := version
	if commit != "" {
		s += " " + commit
	}
	if date != "" {
		s += " built " + date
	}
	return s
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
