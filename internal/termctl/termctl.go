// Package termctl manages the parent process's own controlling terminal:
// detecting whether a stream is a TTY, switching it into raw mode for the
// duration of a child's run and restoring it afterward, and propagating
// window-size changes down to the PTYs wired to the child.
package termctl

import (
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/creack/pty"
	"github.com/mattn/go-isatty"
	"golang.org/x/sys/unix"

	"github.com/outprefix/ind/internal/strftimefmt"
)

func decorationExpand(pattern string) (string, error) {
	return strftimefmt.Expand(pattern, false)
}

// IsTerminal reports whether f refers to a terminal device.
func IsTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd())
}

// Snapshot captures a terminal's mode so it can later be restored. A
// Snapshot taken from a non-terminal is Valid == false and Restore on it is
// a no-op, which lets callers take a Snapshot unconditionally and defer its
// restoration without branching on whether the stream was ever a TTY.
type Snapshot struct {
	termios *unix.Termios
	Valid   bool
}

// Capture reads f's current terminal mode and puts f into the raw mode ind
// runs its own controlling terminal in while a child is attached: canonical
// processing, echo, and signal-generating control characters are disabled,
// so every keystroke passes straight through to the child instead of being
// line-edited or echoed twice. outputIsTTY additionally disables local
// newline translation, matching the behavior original_source/ind.c only
// applies when the decorated stdout is itself a terminal.
//
// If f is not a terminal, Capture returns an invalid Snapshot and no error:
// there is nothing to put into raw mode. A failure applying the new mode to
// an actual terminal is returned, since a half-applied raw mode would leave
// the user's shell in a confusing state.
func Capture(f *os.File, outputIsTTY bool) (*Snapshot, error) {
	fd := int(f.Fd())
	orig, err := unix.IoctlGetTermios(fd, ioctlGetTermios)
	if err != nil {
		return &Snapshot{Valid: false}, nil
	}
	snap := &Snapshot{termios: orig, Valid: true}

	raw := *orig
	raw.Iflag &^= unix.IGNBRK | unix.BRKINT | unix.PARMRK | unix.ISTRIP | unix.IXON
	raw.Lflag &^= unix.ISIG | unix.IEXTEN | unix.ECHO | unix.ECHONL | unix.ICANON
	if outputIsTTY {
		raw.Iflag &^= unix.INLCR | unix.IGNCR | unix.ICRNL
	}
	raw.Cc[unix.VMIN] = 1
	raw.Cc[unix.VTIME] = 0

	if err := unix.IoctlSetTermios(fd, ioctlSetTermiosDrain, &raw); err != nil {
		return snap, err
	}
	return snap, nil
}

// Restore puts f back into the mode snap captured it in. It is always safe
// to call, including with a nil or invalid snap, so defer sites never need
// a conditional.
func Restore(f *os.File, snap *Snapshot) error {
	if snap == nil || !snap.Valid {
		return nil
	}
	return unix.IoctlSetTermios(int(f.Fd()), ioctlSetTermiosDrain, snap.termios)
}

// DecorationWidth expands prefixPattern and postfixPattern once (in
// non-bail mode, same as the line framer) and returns the combined column
// width they occupy on a line. It is used to shrink a child PTY's reported
// window size so the child wraps its own output to fit beside the
// decoration instead of assuming it owns the full terminal width.
func DecorationWidth(prefixPattern, postfixPattern string) int {
	prefix, _ := decorationExpand(prefixPattern)
	postfix, _ := decorationExpand(postfixPattern)
	return len(prefix) + len(postfix)
}

// AdjustSize shrinks ws by decorationCols, returning the adjusted size and
// true, or false if the decoration would consume the entire line (no room
// left for the child to draw into).
func AdjustSize(ws *pty.Winsize, decorationCols int) (*pty.Winsize, bool) {
	if decorationCols >= int(ws.Cols) {
		return nil, false
	}
	adjusted := *ws
	adjusted.Cols = ws.Cols - uint16(decorationCols)
	return &adjusted, true
}

// WatchResize registers for SIGWINCH and SIGCONT and increments counter on
// every delivery. Go cannot run arbitrary code inside a real signal
// handler, so unlike original_source/ind.c's sig_window_resize, which sets
// a flag straight from the handler for the main loop to poll, the
// equivalent here is a goroutine relaying signal.Notify deliveries into an
// atomic counter that the event loop polls once per iteration; SIGCONT is
// included because a shell resuming a stopped ind from a job-control stop
// can change the terminal size without ever delivering SIGWINCH.
// stop unregisters the signal and terminates the goroutine.
func WatchResize(counter *atomic.Uint64) (stop func()) {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGWINCH, syscall.SIGCONT)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-ch:
				counter.Add(1)
			case <-done:
				return
			}
		}
	}()
	return func() {
		signal.Stop(ch)
		close(done)
	}
}
