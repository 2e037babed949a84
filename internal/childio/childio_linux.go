//go:build linux

package childio

import (
	"os"

	"golang.org/x/sys/unix"
)

const (
	ioctlGetTermios    = unix.TCGETS
	ioctlSetTermiosNow = unix.TCSETS
)

// getTermios and setTermiosNow template a freshly allocated PTY slave on
// the parent's own terminal settings before the child ever touches it,
// matching original_source/ind.c's setup_pty. Unlike termctl's drain-mode
// apply used for the parent's own raw-mode switch, there is no pending
// output on a brand new slave to drain, so the immediate-apply ioctl is
// used here.
func getTermios(f *os.File) (*unix.Termios, error) {
	return unix.IoctlGetTermios(int(f.Fd()), ioctlGetTermios)
}

func setTermiosNow(f *os.File, t *unix.Termios) error {
	return unix.IoctlSetTermios(int(f.Fd()), ioctlSetTermiosNow, t)
}
