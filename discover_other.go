//go:build !linux

package kcheck

// KernelConfigPaths returns the locations [FindKernelConfig] tries.
// On non-Linux platforms there are none.
func KernelConfigPaths() ([]string, error) {
	return nil, ErrUnsupportedPlatform
}

// KernelRelease returns the running kernel release string.
// On non-Linux platforms it is never available.
func KernelRelease() (string, error) {
	return "", ErrUnsupportedPlatform
}
