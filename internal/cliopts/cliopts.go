// Package cliopts parses ind's command line: the prefix/postfix format
// flags, verbosity, and the child command vector that follows them.
package cliopts

import (
	"fmt"

	"github.com/outprefix/ind/internal/strftimefmt"
)

const (
	defaultPrefixOut  = "  "
	defaultPostfixOut = ""
	defaultPrefixErr  = ">>"
	defaultPostfixErr = ""
)

// Config holds a fully parsed, validated invocation.
type Config struct {
	PrefixOut  string
	PostfixOut string
	PrefixErr  string
	PostfixErr string
	Verbose    int
	Argv       []string
}

// Action is what main should do with a ParseResult.
type Action int

const (
	// ActionRun means Config is populated and the child should be launched.
	ActionRun Action = iota
	// ActionHelp, ActionVersion, and ActionCopying are purely informational:
	// main should print the corresponding text and exit 0 without ever
	// reaching the engine.
	ActionHelp
	ActionVersion
	ActionCopying
)

// ParseResult is Parse's outcome.
type ParseResult struct {
	Action Action
	Config *Config
}

// Parse scans args the way original_source/ind.c's main() does: a first
// pass recognizes the GNU-style long options (--help, --version,
// --copying), then a getopt(3)-style "+hp:a:P:A:v" short-option scan stops
// at the first argument that isn't a recognized option, leaving everything
// from there on as the child's own command and arguments. The stdlib flag
// package reorders flags after positional arguments and has no equivalent
// to getopt's leading '+' (stop at the first non-option), so this scan is
// hand-written rather than built on flag.Parse.
func Parse(args []string) (*ParseResult, error) {
	for _, a := range args {
		if a == "--" || len(a) < 2 || a[0] != '-' {
			// "--" ends option processing outright, and a non-option
			// argument starts the child's own command line: neither may be
			// scanned any further for ind's own long options, or a child
			// invoked as e.g. `ind mytool --help` would have its own
			// --help hijacked by ind itself.
			break
		}
		switch a {
		case "--help":
			return &ParseResult{Action: ActionHelp}, nil
		case "--version":
			return &ParseResult{Action: ActionVersion}, nil
		case "--copying":
			return &ParseResult{Action: ActionCopying}, nil
		}
	}

	cfg := &Config{
		PrefixOut:  defaultPrefixOut,
		PostfixOut: defaultPostfixOut,
		PrefixErr:  defaultPrefixErr,
		PostfixErr: defaultPostfixErr,
	}

	i := 0
	for ; i < len(args); i++ {
		a := args[i]
		if a == "--" {
			i++
			break
		}
		if len(a) < 2 || a[0] != '-' {
			break // first non-option argument: the rest is the child's argv
		}

		// getopt(3)'s "+hp:a:P:A:v" lets h and v bundle with one another
		// and with a following value-taking option (-hv, -vvv, -vp>> all
		// valid), the same as any getopt-style short-option string: walk
		// the token's characters one at a time, consuming the rest of the
		// token (or the next argv) as a value only once a value-taking
		// option is reached.
		consumedNext := false
		for j := 1; j < len(a); j++ {
			switch a[j] {
			case 'h':
				return &ParseResult{Action: ActionHelp}, nil
			case 'v':
				cfg.Verbose++
			case 'p', 'a', 'P', 'A':
				val, consumed, err := optionValue(args, i, "-"+string(a[j])+a[j+1:])
				if err != nil {
					return nil, fmt.Errorf("option %q requires a value", "-"+string(a[j]))
				}
				switch a[j] {
				case 'p':
					cfg.PrefixOut = val
				case 'a':
					cfg.PostfixOut = val
				case 'P':
					cfg.PrefixErr = val
				case 'A':
					cfg.PostfixErr = val
				}
				if consumed == 2 {
					consumedNext = true
				}
				j = len(a) // the rest of the token, if any, was the value
			default:
				return nil, fmt.Errorf("unknown option %q", "-"+string(a[j]))
			}
		}
		if consumedNext {
			i++
		}
	}

	cfg.Argv = args[i:]
	if len(cfg.Argv) == 0 {
		return nil, fmt.Errorf("missing command to run")
	}

	if err := validateFormats(cfg); err != nil {
		return nil, err
	}

	return &ParseResult{Action: ActionRun, Config: cfg}, nil
}

// optionValue extracts the value of a "-xVALUE" or "-x VALUE" option,
// returning how many entries of args it consumed starting at i (1 or 2).
func optionValue(args []string, i int, a string) (value string, consumed int, err error) {
	if len(a) > 2 {
		return a[2:], 1, nil
	}
	if i+1 >= len(args) {
		return "", 0, fmt.Errorf("option %q requires a value", a)
	}
	return args[i+1], 2, nil
}

func validateFormats(cfg *Config) error {
	for _, p := range []string{cfg.PrefixOut, cfg.PostfixOut, cfg.PrefixErr, cfg.PostfixErr} {
		if err := strftimefmt.MustValidate(p); err != nil {
			return err
		}
	}
	return nil
}
