package kcheck

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/gzip"
	"go.uber.org/zap"
)

// "# CONFIG_FOO is not set": the symbol sits between a two byte comment
// marker and this eleven byte suffix.
const (
	notSetMarker = "is not set"
	notSetPrefix = "# "
	notSetSuffix = " " + notSetMarker
)

// ReadKernelConfig reads and parses the kernel configuration at path.
//
// Paths ending in .gz are decompressed; anything else is read as plain text.
// The suffix is the only signal, content is not sniffed. A path that cannot
// be opened yields an error wrapping [ErrNoKernelConfig].
func ReadKernelConfig(path string, opts ...Option) (*KernelConfig, error) {
	o := newOptions(opts)

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNoKernelConfig, err)
	}
	defer f.Close()

	var reader io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gr, err := gzip.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("decompress %s: %w", path, err)
		}
		defer gr.Close()
		reader = gr
	}

	kc, err := parseKernelConfig(reader, o)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	o.logger.Debug("read kernel config", zap.String("path", path), zap.Int("symbols", kc.Len()))
	return kc, nil
}

// ParseKernelConfig parses kernel configuration from r.
func ParseKernelConfig(r io.Reader, opts ...Option) (*KernelConfig, error) {
	return parseKernelConfig(r, newOptions(opts))
}

// parseKernelConfig collects CONFIG_ symbols from r.
//
// Recognized shapes are CONFIG_FOO=y, CONFIG_FOO=m, CONFIG_FOO="text" (and
// any other CONFIG_FOO=value) and "# CONFIG_FOO is not set", which reads as N.
// Values are upper-cased and stripped of double quotes. A repeated symbol
// keeps its last value. Lines of any other shape are skipped.
func parseKernelConfig(r io.Reader, o options) (*KernelConfig, error) {
	raw := make(map[string]string)
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	lineno := 0
	for scanner.Scan() {
		lineno++
		line := scanner.Text()
		if !strings.Contains(line, SymbolPrefix) {
			continue
		}
		line = strings.TrimSpace(line)

		if strings.HasPrefix(line, "#") {
			if !strings.Contains(line, notSetMarker) {
				// Commented-out assignments and prose mentioning a symbol.
				o.logger.Debug("skipping kernel config comment", zap.Int("line", lineno), zap.String("text", line))
				continue
			}
			if len(line) <= len(notSetPrefix)+len(notSetSuffix) ||
				!strings.HasPrefix(line, notSetPrefix) || !strings.HasSuffix(line, notSetSuffix) {
				o.logger.Warn("skipping malformed kernel config line", zap.Int("line", lineno), zap.String("text", line))
				continue
			}
			raw[line[len(notSetPrefix):len(line)-len(notSetSuffix)]] = ValueNo
			continue
		}

		symbol, value, ok := strings.Cut(line, "=")
		if !ok || symbol == "" {
			o.logger.Warn("skipping malformed kernel config line", zap.Int("line", lineno), zap.String("text", line))
			continue
		}

		value = strings.ToUpper(value)
		if strings.Contains(value, `"`) {
			value = strings.ReplaceAll(value, `"`, "")
		}
		raw[symbol] = value
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return &KernelConfig{raw: raw}, nil
}
