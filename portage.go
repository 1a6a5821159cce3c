package kcheck

import (
	"bufio"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"regexp"
	"slices"
	"strings"

	"go.uber.org/zap"
)

// DefaultPortageRoot is the installed-package database of portage.
const DefaultPortageRoot = "/var/db/pkg"

// linuxInfoEclass is the eclass providing kernel config checks to ebuilds.
const linuxInfoEclass = "linux-info"

var (
	chkconfigPattern   = regexp.MustCompile(`^.*\s(linux_chkconfig_\w+)\s+([A-Za-z0-9_]*).*$`)
	configCheckPattern = regexp.MustCompile(`^(?:local\s+)?CONFIG_CHECK\+?=["']([^"']*)["']`)
	symbolNamePattern  = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

	// A CONFIG_CHECK whose quoted value continues on the following lines.
	configCheckOpenPattern = regexp.MustCompile(`^(?:local\s+)?CONFIG_CHECK\+?=(["'])[^"']*$`)
)

// chkconfigModes maps linux-info helpers to the values they accept.
var chkconfigModes = map[string]string{
	"linux_chkconfig_present": DefaultTernary,
	"linux_chkconfig_module":  ValueModule,
	"linux_chkconfig_builtin": ValueBuiltin,
}

type portageGenerator struct {
	fsys   fs.FS
	logger *zap.Logger
}

func newPortageGenerator(cfg GeneratorConfig, o options) Generator {
	root := cfg.Root
	if root == "" {
		root = DefaultPortageRoot
	}
	return &portageGenerator{fsys: os.DirFS(root), logger: o.logger.With(zap.String("root", root))}
}

func (*portageGenerator) Name() string { return "portage" }

// Generate scans the ebuild of every installed package inheriting linux-info.
// Unreadable ebuilds and unusable directives are counted in Generated.Errors.
func (p *portageGenerator) Generate() (*Generated, error) {
	ebuilds, err := p.kernelEbuilds()
	if err != nil {
		return nil, fmt.Errorf("portage: %w", err)
	}
	p.logger.Info("found ebuilds inheriting "+linuxInfoEclass, zap.Int("count", len(ebuilds)))

	gen := newGenerated()
	for _, ebuild := range ebuilds {
		p.scanEbuild(ebuild, gen)
	}
	return gen, nil
}

// kernelEbuilds returns category/PF/PF.ebuild for each installed package
// whose INHERITED file lists linux-info, in database order.
func (p *portageGenerator) kernelEbuilds() ([]string, error) {
	categories, err := fs.ReadDir(p.fsys, ".")
	if err != nil {
		return nil, err
	}

	var ebuilds []string
	for _, cat := range categories {
		if !cat.IsDir() {
			continue
		}
		pkgs, err := fs.ReadDir(p.fsys, cat.Name())
		if err != nil {
			return nil, err
		}
		for _, pkg := range pkgs {
			if !pkg.IsDir() {
				continue
			}
			dir := path.Join(cat.Name(), pkg.Name())
			inherited, err := fs.ReadFile(p.fsys, path.Join(dir, "INHERITED"))
			if err != nil {
				continue
			}
			if !slices.Contains(strings.Fields(string(inherited)), linuxInfoEclass) {
				continue
			}
			ebuilds = append(ebuilds, path.Join(dir, pkg.Name()+".ebuild"))
		}
	}
	return ebuilds, nil
}

func (p *portageGenerator) scanEbuild(name string, gen *Generated) {
	log := p.logger.With(zap.String("ebuild", name))

	f, err := p.fsys.Open(name)
	if err != nil {
		log.Error("cannot open ebuild", zap.Error(err))
		gen.Errors++
		return
	}
	defer f.Close()

	source := path.Base(name)
	var symbols, errs int
	lines, err := ebuildDirectives(f)
	if err != nil {
		log.Error("cannot read ebuild", zap.Error(err))
		errs++
	}
	for _, line := range lines {
		found, err := parseEbuildLine(line)
		if err != nil {
			log.Error("cannot get symbol from line", zap.String("line", line), zap.Error(err))
			errs++
		}
		for _, s := range found {
			s.Source = source
			if !gen.add(s) {
				log.Warn("additional instance of symbol, only the first is used",
					zap.String("symbol", s.Symbol), zap.String("values", s.Values))
				continue
			}
			log.Debug("got symbol", zap.String("symbol", s.Symbol), zap.String("values", s.Values))
			symbols++
		}
	}

	log.Info("scanned ebuild", zap.Int("symbols", symbols), zap.Int("errors", errs))
	gen.Errors += errs
}

// ebuildDirectives returns the trimmed lines of an ebuild, with a quoted
// CONFIG_CHECK value spanning several lines joined into one:
//
//	CONFIG_CHECK="
//		~NF_TABLES
//		!NF_TABLES_LEGACY
//	"
//
// becomes CONFIG_CHECK=" ~NF_TABLES !NF_TABLES_LEGACY ". An unterminated
// value is an error; the lines read until then are still returned.
func ebuildDirectives(r io.Reader) ([]string, error) {
	var (
		lines   []string
		pending strings.Builder
		quote   string
		start   int
		lineno  int
	)

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		lineno++
		line := strings.TrimSpace(scanner.Text())

		if quote != "" {
			pending.WriteByte(' ')
			if i := strings.Index(line, quote); i >= 0 {
				pending.WriteString(line[:i+1])
				lines = append(lines, pending.String())
				pending.Reset()
				quote = ""
				continue
			}
			pending.WriteString(line)
			continue
		}

		if m := configCheckOpenPattern.FindStringSubmatch(line); m != nil {
			quote, start = m[1], lineno
			pending.WriteString(line)
			continue
		}
		lines = append(lines, line)
	}
	if err := scanner.Err(); err != nil {
		return lines, err
	}
	if quote != "" {
		return lines, fmt.Errorf("unterminated CONFIG_CHECK starting on line %d", start)
	}
	return lines, nil
}

// parseEbuildLine extracts required symbols from one trimmed ebuild line.
//
// Two directive forms are understood:
//
//	if linux_chkconfig_present NET; then
//	CONFIG_CHECK="~NET !DEVTMPFS_MOUNT"
//
// In CONFIG_CHECK a leading ~ only downgrades the failure to a warning, so
// the symbol is still required; a leading ! requires the symbol to be off.
// Tokens relying on shell expansion are skipped.
func parseEbuildLine(line string) ([]GeneratedSymbol, error) {
	if m := chkconfigPattern.FindStringSubmatch(line); m != nil {
		helper, symbol := m[1], m[2]
		mode, ok := chkconfigModes[helper]
		if !ok {
			return nil, fmt.Errorf("unsupported helper %s", helper)
		}
		if symbol == "" {
			return nil, fmt.Errorf("no symbol after %s", helper)
		}
		return []GeneratedSymbol{{Symbol: symbol, Values: mode}}, nil
	}

	m := configCheckPattern.FindStringSubmatch(line)
	if m == nil {
		return nil, nil
	}

	var (
		found []GeneratedSymbol
		bad   []string
	)
	for _, tok := range strings.Fields(m[1]) {
		if strings.ContainsAny(tok, "${}") {
			continue
		}
		mode := DefaultTernary
		name := strings.TrimPrefix(tok, "~")
		if strings.HasPrefix(name, "!") {
			mode = ValueNo
			name = name[1:]
		}
		if !symbolNamePattern.MatchString(name) {
			bad = append(bad, tok)
			continue
		}
		found = append(found, GeneratedSymbol{Symbol: name, Values: mode})
	}
	if len(bad) > 0 {
		return found, fmt.Errorf("invalid CONFIG_CHECK tokens %s", strings.Join(bad, " "))
	}
	return found, nil
}
