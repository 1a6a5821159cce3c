//go:build linux

package kcheck

import "golang.org/x/sys/unix"

// KernelConfigPaths returns the locations [FindKernelConfig] tries, in order:
//  1. /usr/src/linux/.config (the configured kernel source tree)
//  2. /proc/config.gz (requires CONFIG_IKCONFIG_PROC=y)
//  3. /boot/config-$(uname -r)
//  4. /lib/modules/$(uname -r)/config
func KernelConfigPaths() ([]string, error) {
	release, err := KernelRelease()
	if err != nil {
		return nil, err
	}

	return []string{
		"/usr/src/linux/.config",
		"/proc/config.gz",
		"/boot/config-" + release,
		"/lib/modules/" + release + "/config",
	}, nil
}

// KernelRelease returns the running kernel release string (e.g., "6.17.0-1005-aws").
func KernelRelease() (string, error) {
	var uname unix.Utsname
	if err := unix.Uname(&uname); err != nil {
		return "", err
	}
	return unix.ByteSliceToString(uname.Release[:]), nil
}
