package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
)

const (
	requirementsFile       = "kcheck.conf"
	systemRequirementsPath = "/etc/kcheck.conf"
)

// requirementsSearchPaths lists candidate requirements files, most specific first.
func requirementsSearchPaths() []string {
	paths := []string{filepath.Join(xdg.ConfigHome, "kcheck", requirementsFile)}
	for _, dir := range xdg.ConfigDirs {
		paths = append(paths, filepath.Join(dir, "kcheck", requirementsFile))
	}
	return append(paths, systemRequirementsPath)
}

func findRequirementsFile() (string, error) {
	paths := requirementsSearchPaths()
	for _, p := range paths {
		if fi, err := os.Stat(p); err == nil && fi.Mode().IsRegular() {
			return p, nil
		}
	}
	return "", fmt.Errorf("no requirements file found (tried %s), use --config", strings.Join(paths, ", "))
}
