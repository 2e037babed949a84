// Command ind runs a child process and decorates every line of its stdout
// and stderr with a configurable, timestamp-capable prefix and postfix,
// while preserving the child's view of its controlling terminal: PTY
// allocation, raw-mode forwarding of the parent's own input, and window-size
// propagation all carry through untouched.
package main

import (
	"fmt"
	"io"
	"log"
	"os"

	"github.com/outprefix/ind/internal/cliopts"
	"github.com/outprefix/ind/internal/engine"
)

func main() {
	os.Exit(run())
}

func run() int {
	result, err := cliopts.Parse(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, "ind:", err)
		cliopts.Usage(os.Stderr, os.Args[0])
		return 1
	}

	switch result.Action {
	case cliopts.ActionHelp:
		cliopts.Usage(os.Stdout, os.Args[0])
		return 0
	case cliopts.ActionVersion:
		cliopts.PrintVersion(os.Stdout)
		return 0
	case cliopts.ActionCopying:
		cliopts.PrintCopying(os.Stdout)
		return 0
	}

	cfg := result.Config
	if cfg.Verbose == 0 {
		log.SetOutput(io.Discard)
	} else {
		log.SetFlags(0)
		log.SetPrefix("ind: ")
	}

	status, err := engine.Run(cfg, os.Stdin, os.Stdout, os.Stderr)
	if err != nil {
		fmt.Fprintln(os.Stderr, "ind:", err)
		if status == 0 {
			status = 1
		}
	}
	return status
}
