package engine

import (
	"bytes"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/creack/pty"

	"github.com/outprefix/ind/internal/cliopts"
)

// nonTTYStdio returns stand-ins for the parent's stdin/stdout/stderr that
// are guaranteed not to be terminals, so Run exercises the plain-pipe path
// deterministically regardless of the environment the test runs in.
func nonTTYStdio(t *testing.T) (stdin, stdout, stderr *os.File) {
	t.Helper()
	devnull, err := os.Open(os.DevNull)
	if err != nil {
		t.Fatalf("opening %s: %v", os.DevNull, err)
	}
	t.Cleanup(func() { devnull.Close() })

	dir := t.TempDir()
	out, err := os.CreateTemp(dir, "stdout-*")
	if err != nil {
		t.Fatalf("creating temp stdout: %v", err)
	}
	t.Cleanup(func() { out.Close() })

	errf, err := os.CreateTemp(dir, "stderr-*")
	if err != nil {
		t.Fatalf("creating temp stderr: %v", err)
	}
	t.Cleanup(func() { errf.Close() })

	return devnull, out, errf
}

func readAll(t *testing.T, f *os.File) string {
	t.Helper()
	if _, err := f.Seek(0, 0); err != nil {
		t.Fatalf("seeking: %v", err)
	}
	var buf bytes.Buffer
	buf.ReadFrom(f)
	return buf.String()
}

func TestRunDecoratesStdoutLines(t *testing.T) {
	stdin, stdout, stderr := nonTTYStdio(t)
	cfg := &cliopts.Config{
		PrefixOut: ">> ",
		PrefixErr: "",
		Argv:      []string{"/bin/sh", "-c", "printf 'one\\ntwo\\n'"},
	}

	status, err := Run(cfg, stdin, stdout, stderr)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if status != 0 {
		t.Fatalf("status = %d, want 0", status)
	}
	if got, want := readAll(t, stdout), ">> one\n>> two\n"; got != want {
		t.Fatalf("stdout = %q, want %q", got, want)
	}
}

func TestRunDecoratesStderrIndependently(t *testing.T) {
	stdin, stdout, stderr := nonTTYStdio(t)
	cfg := &cliopts.Config{
		PrefixOut: "",
		PrefixErr: "!! ",
		Argv:      []string{"/bin/sh", "-c", "echo out; echo err 1>&2"},
	}

	if _, err := Run(cfg, stdin, stdout, stderr); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if got, want := readAll(t, stdout), "out\n"; got != want {
		t.Fatalf("stdout = %q, want %q", got, want)
	}
	if got, want := readAll(t, stderr), "!! err\n"; got != want {
		t.Fatalf("stderr = %q, want %q", got, want)
	}
}

func TestRunReportsErrorForUnstartableCommand(t *testing.T) {
	stdin, stdout, stderr := nonTTYStdio(t)
	cfg := &cliopts.Config{Argv: []string{"/no/such/binary-ind-test"}}

	// A failed exec must not panic or hang; Run should unwind the
	// child-side descriptors it allocated via childio.Wire and return
	// promptly with a non-nil error.
	if _, err := Run(cfg, stdin, stdout, stderr); err == nil {
		t.Fatal("Run should return an error when the child command can't be started")
	}
}

func TestRunReportsNonZeroExitStatus(t *testing.T) {
	stdin, stdout, stderr := nonTTYStdio(t)
	cfg := &cliopts.Config{Argv: []string{"/bin/sh", "-c", "exit 7"}}

	status, err := Run(cfg, stdin, stdout, stderr)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if status != 7 {
		t.Fatalf("status = %d, want 7", status)
	}
}

func TestRunReportsSignalKilledStatus(t *testing.T) {
	stdin, stdout, stderr := nonTTYStdio(t)
	cfg := &cliopts.Config{Argv: []string{"/bin/sh", "-c", "kill -TERM $$"}}

	status, err := Run(cfg, stdin, stdout, stderr)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if status != 128+15 {
		t.Fatalf("status = %d, want %d (128+SIGTERM)", status, 128+15)
	}
}

func TestRunForwardsParentStdinToChild(t *testing.T) {
	dir := t.TempDir()
	stdinFile, err := os.CreateTemp(dir, "stdin-*")
	if err != nil {
		t.Fatalf("creating temp stdin: %v", err)
	}
	if _, err := stdinFile.WriteString("hello from parent\n"); err != nil {
		t.Fatalf("writing stdin fixture: %v", err)
	}
	if _, err := stdinFile.Seek(0, 0); err != nil {
		t.Fatalf("seeking: %v", err)
	}
	defer stdinFile.Close()

	_, stdout, stderr := nonTTYStdio(t)
	cfg := &cliopts.Config{Argv: []string{"/bin/cat"}}

	if _, err := Run(cfg, stdinFile, stdout, stderr); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if got, want := readAll(t, stdout), "hello from parent\n"; got != want {
		t.Fatalf("stdout = %q, want %q", got, want)
	}
}

func TestRunLongOutputDoesNotDeadlock(t *testing.T) {
	stdin, stdout, stderr := nonTTYStdio(t)
	cfg := &cliopts.Config{
		Argv: []string{"/bin/sh", "-c", "yes line | head -n 5000"},
	}

	if _, err := Run(cfg, stdin, stdout, stderr); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	got := readAll(t, stdout)
	if n := strings.Count(got, "\n"); n != 5000 {
		t.Fatalf("got %d lines, want 5000", n)
	}
}

// readWithTimeout drains f until no more data arrives within timeout,
// which a pty master's Read would otherwise block on indefinitely since
// nothing closes it from the other end in these tests.
func readWithTimeout(t *testing.T, f *os.File, timeout time.Duration) string {
	t.Helper()
	if err := f.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		t.Fatalf("SetReadDeadline: %v", err)
	}
	var buf bytes.Buffer
	tmp := make([]byte, 4096)
	for {
		n, err := f.Read(tmp)
		if n > 0 {
			buf.Write(tmp[:n])
		}
		if err != nil {
			break
		}
	}
	return buf.String()
}

func TestResizeChildPTYShrinksByDecorationWidth(t *testing.T) {
	parentMaster, parentSlave, err := pty.Open()
	if err != nil {
		t.Fatalf("opening parent pty: %v", err)
	}
	defer parentMaster.Close()
	defer parentSlave.Close()
	if err := pty.Setsize(parentMaster, &pty.Winsize{Rows: 40, Cols: 100}); err != nil {
		t.Fatalf("Setsize on parent pty: %v", err)
	}

	childMaster, childSlave, err := pty.Open()
	if err != nil {
		t.Fatalf("opening child pty: %v", err)
	}
	defer childMaster.Close()
	defer childSlave.Close()

	resizeChildPTY(parentSlave, childMaster, 10)

	got, err := pty.GetsizeFull(childMaster)
	if err != nil {
		t.Fatalf("GetsizeFull on child pty: %v", err)
	}
	if got.Cols != 90 {
		t.Fatalf("child pty Cols = %d, want 90", got.Cols)
	}
	if got.Rows != 40 {
		t.Fatalf("child pty Rows = %d, want unchanged 40", got.Rows)
	}
}

func TestRunFramesSeparateStdinPTYLocalEcho(t *testing.T) {
	masterIn, slaveIn, err := pty.Open()
	if err != nil {
		t.Fatalf("opening stdin pty: %v", err)
	}
	defer masterIn.Close()
	defer slaveIn.Close()

	masterOut, slaveOut, err := pty.Open()
	if err != nil {
		t.Fatalf("opening stdout pty: %v", err)
	}
	defer masterOut.Close()
	defer slaveOut.Close()

	stderrDevNull, err := os.Open(os.DevNull)
	if err != nil {
		t.Fatalf("opening devnull: %v", err)
	}
	defer stderrDevNull.Close()

	cfg := &cliopts.Config{
		PrefixOut: ">> ",
		Argv:      []string{"/bin/sh", "-c", "sleep 0.3"},
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		time.Sleep(80 * time.Millisecond)
		masterIn.Write([]byte("hello\n"))
	}()

	status, err := Run(cfg, slaveIn, slaveOut, stderrDevNull)
	<-done
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if status != 0 {
		t.Fatalf("status = %d, want 0", status)
	}

	got := readWithTimeout(t, masterOut, 200*time.Millisecond)
	if !strings.Contains(got, "hello") {
		t.Fatalf("stdout = %q, want it to contain the stdin pty's local echo of %q", got, "hello")
	}
	if !strings.Contains(got, ">> ") {
		t.Fatalf("stdout = %q, want the local echo framed with the configured prefix", got)
	}
}
