// Package childio decides, per standard stream, whether the child should
// see a PTY slave or a plain pipe, allocates whichever is appropriate, and
// wires the result into an exec.Cmd ready to start.
package childio

import (
	"fmt"
	"os"
	"os/exec"
	"syscall"

	"github.com/creack/pty"

	"github.com/outprefix/ind/internal/termctl"
)

// Channel is the parent-side end of one of the child's standard streams:
// the PTY master if IsPTY, otherwise the pipe's read or write end.
type Channel struct {
	File  *os.File
	IsPTY bool
}

// Channels holds the parent-side descriptors for all three of the child's
// standard streams.
type Channels struct {
	Stdin  *Channel
	Stdout *Channel
	Stderr *Channel
}

// CloseAll closes every live parent-side descriptor. Stdin and Stdout are
// deduplicated when they alias the same PTY master (see Wire), so each
// underlying file descriptor is only closed once.
func (c *Channels) CloseAll() {
	if c.Stdin != nil {
		c.Stdin.File.Close()
	}
	if c.Stdout != nil && (c.Stdin == nil || c.Stdout.File != c.Stdin.File) {
		c.Stdout.File.Close()
	}
	if c.Stderr != nil {
		c.Stderr.File.Close()
	}
}

// childSideFiles holds the slave/pipe ends handed to the child process.
// The parent must close its references to these immediately after Start,
// the same fork discipline original_source/ind.c's do_close3 calls enforce
// in both the parent and child branches around fork().
type childSideFiles struct {
	stdin, stdout, stderr *os.File
}

func (f *childSideFiles) closeAll() {
	seen := make(map[*os.File]bool, 3)
	for _, fh := range [...]*os.File{f.stdin, f.stdout, f.stderr} {
		if fh == nil || seen[fh] {
			continue
		}
		fh.Close()
		seen[fh] = true
	}
}

// Wire decides pipe-vs-PTY for stdin and stdout by checking whether
// parentStdin/parentStdout are themselves terminals, reuses a single PTY
// pair between them when both name the same underlying tty device (so a
// plain interactive invocation gets one pty, not two), and always gives the
// child a plain pipe for stderr, matching original_source/ind.c's stream
// setup in main()/setup_pty(). decorationCols is subtracted from any
// allocated PTY's initial window size; original_source/ind.c's fixup_wsp
// always uses stdout's prefix/postfix width for this, even when sizing the
// stdin PTY, so callers should pass termctl.DecorationWidth computed from
// the stdout patterns regardless of which stream is being wired.
//
// Wire returns the parent-side Channels, an unstarted *exec.Cmd, and the
// child-side descriptors that must be closed (via Start, or directly on a
// setup failure) once the child has been forked.
func Wire(argv []string, parentStdin, parentStdout *os.File, decorationCols int) (*Channels, *exec.Cmd, *childSideFiles, error) {
	stdinIsTTY := termctl.IsTerminal(parentStdin)
	stdoutIsTTY := termctl.IsTerminal(parentStdout)

	reuse := false
	if stdinIsTTY && stdoutIsTTY {
		n1, err1 := ttyName(parentStdin)
		n2, err2 := ttyName(parentStdout)
		reuse = err1 == nil && err2 == nil && n1 == n2
	}

	var stdin, stdout *Channel
	var stdinSlave, stdoutSlave *os.File

	if stdinIsTTY {
		master, slave, err := pty.Open()
		if err != nil {
			return nil, nil, nil, fmt.Errorf("opening stdin pty: %w", err)
		}
		applyInitialPTYSetup(slave, parentStdin, decorationCols)
		stdin = &Channel{File: master, IsPTY: true}
		stdinSlave = slave
		if reuse {
			stdout = &Channel{File: master, IsPTY: true}
			stdoutSlave = slave
		}
	} else {
		r, w, err := os.Pipe()
		if err != nil {
			return nil, nil, nil, fmt.Errorf("opening stdin pipe: %w", err)
		}
		stdin = &Channel{File: w, IsPTY: false}
		stdinSlave = r
	}

	if stdout == nil {
		if stdoutIsTTY {
			master, slave, err := pty.Open()
			if err != nil {
				stdin.File.Close()
				stdinSlave.Close()
				return nil, nil, nil, fmt.Errorf("opening stdout pty: %w", err)
			}
			applyInitialPTYSetup(slave, parentStdout, decorationCols)
			stdout = &Channel{File: master, IsPTY: true}
			stdoutSlave = slave
		} else {
			r, w, err := os.Pipe()
			if err != nil {
				stdin.File.Close()
				stdinSlave.Close()
				return nil, nil, nil, fmt.Errorf("opening stdout pipe: %w", err)
			}
			stdout = &Channel{File: r, IsPTY: false}
			stdoutSlave = w
		}
	}

	errRead, errWrite, err := os.Pipe()
	if err != nil {
		stdin.File.Close()
		stdinSlave.Close()
		if stdoutSlave != stdinSlave {
			stdout.File.Close()
			stdoutSlave.Close()
		}
		return nil, nil, nil, fmt.Errorf("opening stderr pipe: %w", err)
	}
	stderr := &Channel{File: errRead, IsPTY: false}

	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Stdin = stdinSlave
	cmd.Stdout = stdoutSlave
	cmd.Stderr = errWrite
	cmd.Env = os.Environ()

	// original_source/ind.c only calls login_tty() — which both starts a
	// new session and sets the controlling terminal — when at least one of
	// the child's streams is actually a tty; a fully piped invocation
	// leaves the child in ind's own session, same as any other child
	// process. Setsid/Setctty are gated the same way here.
	attr := &syscall.SysProcAttr{}
	switch {
	case stdoutIsTTY:
		attr.Setsid = true
		attr.Setctty = true
		attr.Ctty = 1
	case stdinIsTTY:
		attr.Setsid = true
		attr.Setctty = true
		attr.Ctty = 0
	}
	// stderr is never a candidate for the controlling terminal: it is
	// always a plain pipe in this design, so the third preference
	// original_source/ind.c lists (stdout, then stdin, then stderr) never
	// actually triggers there either, since ind_stderr is never a tty.
	cmd.SysProcAttr = attr

	channels := &Channels{Stdin: stdin, Stdout: stdout, Stderr: stderr}
	side := &childSideFiles{stdin: stdinSlave, stdout: stdoutSlave, stderr: errWrite}
	return channels, cmd, side, nil
}

// Start execs cmd and then closes the parent's references to the
// child-side descriptors returned alongside it by Wire, mirroring the
// fork discipline of original_source/ind.c's do_close3 calls: once the
// child has its own duplicated file descriptors, the parent has no more
// use for the slave/pipe ends it handed over.
func Start(cmd *exec.Cmd, side *childSideFiles) error {
	if err := cmd.Start(); err != nil {
		return err
	}
	side.closeAll()
	return nil
}

// CloseChildSide closes the child-side descriptors without starting cmd,
// for use when a later step in setup fails after Wire has already
// succeeded.
func CloseChildSide(side *childSideFiles) {
	side.closeAll()
}

func applyInitialPTYSetup(slave, parentFD *os.File, decorationCols int) {
	if t, err := getTermios(parentFD); err == nil {
		setTermiosNow(slave, t)
	}
	if ws, err := pty.GetsizeFull(parentFD); err == nil {
		if adjusted, ok := termctl.AdjustSize(ws, decorationCols); ok {
			pty.Setsize(slave, adjusted)
		}
	}
}

// ttyName resolves the device path behind an open file descriptor, the
// Linux equivalent of POSIX ttyname(3) (whose own glibc implementation
// falls back to exactly this /proc/self/fd lookup). Two streams that
// resolve to the same path are the same terminal device, which is how Wire
// decides to reuse a single PTY between stdin and stdout instead of
// allocating two.
func ttyName(f *os.File) (string, error) {
	return os.Readlink(fmt.Sprintf("/proc/self/fd/%d", int(f.Fd())))
}
