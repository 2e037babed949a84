// Package engine runs the decorated child process end to end: it wires up
// the child's streams, puts the parent's own terminal in and out of raw
// mode around the run, and multiplexes the child's output (and its
// stdin-PTY echo, when applicable) through the line framer while forwarding
// the parent's own input to the child.
package engine

import (
	"errors"
	"fmt"
	"log"
	"os"
	"os/exec"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/creack/pty"

	"github.com/outprefix/ind/internal/childio"
	"github.com/outprefix/ind/internal/cliopts"
	"github.com/outprefix/ind/internal/framer"
	"github.com/outprefix/ind/internal/termctl"
)

const readChunkSize = 4096

// Run wires the child according to cfg, runs it to completion, and returns
// the process exit status to report to the operating system.
func Run(cfg *cliopts.Config, stdin, stdout, stderr *os.File) (int, error) {
	stdinIsTTY := termctl.IsTerminal(stdin)
	stdoutIsTTY := termctl.IsTerminal(stdout)

	outCols := termctl.DecorationWidth(cfg.PrefixOut, cfg.PostfixOut)

	channels, cmd, side, err := childio.Wire(cfg.Argv, stdin, stdout, outCols)
	if err != nil {
		return 1, fmt.Errorf("setting up child streams: %w", err)
	}

	var snap *termctl.Snapshot
	if stdinIsTTY {
		snap, err = termctl.Capture(stdin, stdoutIsTTY)
		if err != nil {
			channels.CloseAll()
			childio.CloseChildSide(side)
			return 1, fmt.Errorf("configuring terminal: %w", err)
		}
	}
	restore := func() {
		if rerr := termctl.Restore(stdin, snap); rerr != nil {
			log.Printf("ind: restoring terminal: %v", rerr)
		}
	}

	if err := childio.Start(cmd, side); err != nil {
		restore()
		channels.CloseAll()
		childio.CloseChildSide(side)
		return 1, fmt.Errorf("starting child: %w", err)
	}

	var resizeCounter atomic.Uint64
	stopWatch := termctl.WatchResize(&resizeCounter)
	defer stopWatch()

	m := &multiplexer{
		cfg:               cfg,
		channels:          channels,
		stdin:             stdin,
		stdout:            stdout,
		stderr:            stderr,
		stdinIsTTY:        stdinIsTTY,
		stdoutIsTTY:       stdoutIsTTY,
		separateStdinEcho: channels.Stdin.IsPTY && channels.Stdin.File != channels.Stdout.File,
		outState:          *framer.NewState(),
		errState:          *framer.NewState(),
	}

	runErr := m.run(&resizeCounter)
	restore()
	channels.CloseAll()

	if runErr != nil {
		return 1, runErr
	}

	status, err := waitStatus(cmd)
	return status, err
}

func waitStatus(cmd *exec.Cmd) (int, error) {
	err := cmd.Wait()
	if err == nil {
		return 0, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if ws, ok := exitErr.Sys().(syscall.WaitStatus); ok {
			if ws.Signaled() {
				return 128 + int(ws.Signal()), nil
			}
			return ws.ExitStatus(), nil
		}
		return exitErr.ExitCode(), nil
	}
	return 1, err
}

type chunk struct {
	data []byte
	err  error
}

func readerChan(f *os.File) chan chunk {
	ch := make(chan chunk, 1)
	go func() {
		buf := make([]byte, readChunkSize)
		for {
			n, err := f.Read(buf)
			if n > 0 {
				data := make([]byte, n)
				copy(data, buf[:n])
				ch <- chunk{data: data}
			}
			if err != nil {
				ch <- chunk{err: err}
				return
			}
		}
	}()
	return ch
}

type multiplexer struct {
	cfg               *cliopts.Config
	channels          *childio.Channels
	stdin             *os.File
	stdout            *os.File
	stderr            *os.File
	stdinIsTTY        bool
	stdoutIsTTY       bool
	separateStdinEcho bool
	outState          framer.State
	errState          framer.State
}

// run is the single cooperative consumer of every readable stream in
// play. original_source/ind.c drives the equivalent loop with select(2)
// over raw file descriptors from one thread; Go has no portable way to
// select across arbitrary blocking *os.File reads, so each source instead
// gets its own goroutine feeding a buffered channel, and this loop is the
// only place that ever acts on what they produce. That preserves the
// original's single-threaded-consumer semantics (no two sources are ever
// framed or forwarded concurrently) while accommodating Go's blocking I/O
// model.
func (m *multiplexer) run(resizeCounter *atomic.Uint64) error {
	outCh := readerChan(m.channels.Stdout.File)
	errCh := readerChan(m.channels.Stderr.File)
	stdinCh := readerChan(m.stdin)

	var echoCh chan chunk
	if m.separateStdinEcho {
		echoCh = readerChan(m.channels.Stdin.File)
	}

	stdoutAlive := true
	stderrAlive := true
	stdinWriterAlive := true
	parentStdinAlive := true

	var lastResize uint64

	// The original's select(2) loop is interrupted by EINTR the moment a
	// signal arrives, so it re-checks its resize flag immediately even
	// with the child otherwise silent. Go's select has no equivalent
	// interruption, and resizeCounter is otherwise only checked between
	// blocking reads, so a quiet child would leave a pending resize
	// unapplied indefinitely; this ticker bounds that to one interval
	// instead.
	resizeTick := time.NewTicker(50 * time.Millisecond)
	defer resizeTick.Stop()

	done := func() bool {
		if m.stdinIsTTY {
			return !stdinWriterAlive && !stdoutAlive && !stderrAlive
		}
		return !parentStdinAlive && !stdinWriterAlive && !stdoutAlive && !stderrAlive
	}

	for !done() {
		if r := resizeCounter.Load(); r != lastResize {
			lastResize = r
			m.propagateResize()
		}

		// original_source/ind.c's main loop rechecks, on every pass,
		// whether the real stdin is a tty but the stdin-PTY source has
		// stopped being one (isatty(stdin_fileno) && !isatty(ind_stdin))
		// and preemptively closes that source rather than waiting for a
		// read error. Mirror that here for the separate-stdin-PTY echo
		// channel.
		if echoCh != nil && m.stdinIsTTY && !termctl.IsTerminal(m.channels.Stdin.File) {
			echoCh = nil
		}

		select {
		case <-resizeTick.C:
			if r := resizeCounter.Load(); r != lastResize {
				lastResize = r
				m.propagateResize()
			}

		case c := <-outCh:
			if c.err != nil {
				stdoutAlive = false
				outCh = nil
				m.channels.Stdout.File.Close()
				if m.channels.Stdin.File == m.channels.Stdout.File {
					stdinWriterAlive = false
				}
				continue
			}
			if werr := framer.Frame(m.stdout, c.data, m.cfg.PrefixOut, m.cfg.PostfixOut, &m.outState); werr != nil {
				log.Printf("ind: writing stdout: %v", werr)
			}

		case c := <-errCh:
			if c.err != nil {
				stderrAlive = false
				errCh = nil
				m.channels.Stderr.File.Close()
				continue
			}
			if werr := framer.Frame(m.stderr, c.data, m.cfg.PrefixErr, m.cfg.PostfixErr, &m.errState); werr != nil {
				log.Printf("ind: writing stderr: %v", werr)
			}

		case c := <-echoCh:
			if c.err != nil {
				// The stdin PTY master is both the echo source and the
				// child's stdin writer: once it reports EOF/EIO (the child
				// has closed every slave copy), that channel is dead.
				echoCh = nil
				if stdinWriterAlive {
					m.channels.Stdin.File.Close()
					stdinWriterAlive = false
				}
				continue
			}
			if m.stdoutIsTTY {
				if werr := framer.Frame(m.stdout, c.data, m.cfg.PrefixOut, m.cfg.PostfixOut, &m.outState); werr != nil {
					log.Printf("ind: writing stdout: %v", werr)
				}
			}
			// Otherwise, the real stdout isn't a terminal at all (so there
			// is nowhere sensible to frame this local-echo traffic into):
			// the bytes are simply drained.

		case c := <-stdinCh:
			if c.err != nil {
				parentStdinAlive = false
				stdinCh = nil
				if stdinWriterAlive {
					m.channels.Stdin.File.Close()
					stdinWriterAlive = false
				}
				continue
			}
			if stdinWriterAlive {
				if _, werr := m.channels.Stdin.File.Write(c.data); werr != nil {
					// A short or failed write to the child's stdin is
					// treated as fatal rather than just closing that one
					// channel, matching original_source/ind.c's
					// safe_write check in its own main loop: the data
					// that failed to land can't be replayed, and limping
					// on would risk writing the rest of the child's input
					// out of order.
					return fmt.Errorf("writing to child stdin: %w", werr)
				}
			}
		}
	}
	return nil
}

func (m *multiplexer) propagateResize() {
	cols := termctl.DecorationWidth(m.cfg.PrefixOut, m.cfg.PostfixOut)
	if m.channels.Stdin.IsPTY {
		resizeChildPTY(m.stdin, m.channels.Stdin.File, cols)
	}
	if m.channels.Stdout.IsPTY && m.channels.Stdout.File != m.channels.Stdin.File {
		resizeChildPTY(m.stdout, m.channels.Stdout.File, cols)
	}
}

func resizeChildPTY(parent, childMaster *os.File, decorationCols int) {
	ws, err := pty.GetsizeFull(parent)
	if err != nil {
		return
	}
	adjusted, ok := termctl.AdjustSize(ws, decorationCols)
	if !ok {
		return
	}
	if err := pty.Setsize(childMaster, adjusted); err != nil {
		log.Printf("ind: resizing child pty: %v", err)
	}
}
