//go:build linux

package termctl

import "golang.org/x/sys/unix"

const (
	ioctlGetTermios = unix.TCGETS
	// ioctlSetTermiosDrain applies terminal settings only after all queued
	// output has drained (TCSETSW), the mode original_source/ind.c uses for
	// both its initial raw-mode switch and its final restore, rather than
	// TCSETS's apply-immediately semantics.
	ioctlSetTermiosDrain = unix.TCSETSW
)
