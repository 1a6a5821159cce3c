package kcheck

import (
	"fmt"
	"os"
	"strings"
)

// FindKernelConfig returns the first existing kernel config among
// [KernelConfigPaths].
func FindKernelConfig() (string, error) {
	paths, err := KernelConfigPaths()
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrNoKernelConfig, err)
	}
	return firstRegularFile(paths)
}

func firstRegularFile(paths []string) (string, error) {
	for _, p := range paths {
		fi, err := os.Stat(p)
		if err == nil && fi.Mode().IsRegular() {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w: tried %s", ErrNoKernelConfig, strings.Join(paths, ", "))
}
