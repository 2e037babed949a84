// Package strftimefmt expands ind's prefix/postfix format strings. Patterns
// use strftime(3) conversion specifiers (%Y, %H, %M, ...) plus the literal
// text surrounding them, and are re-expanded fresh for every chunk of output
// the line framer decorates (lines within one chunk share an expansion) so
// that, e.g., a seconds specifier advances as output streams in.
package strftimefmt

import (
	"fmt"
	"time"

	"github.com/lestrrat-go/strftime"
)

// maxLength bounds how large a single expansion may grow. A pattern that
// somehow balloons past this (a hostile or malformed locale strftime
// extension, for instance) is treated as broken rather than allowed to
// consume unbounded memory for one line's prefix or postfix.
const maxLength = 1 << 20

// Expand formats pattern against the current time. A pattern compile error
// or runaway expansion is "broken": in bail mode that's a returned error
// (used for up-front validation, where the program should refuse to start);
// otherwise Expand falls back to a fixed diagnostic string so a single bad
// format never interrupts the line stream it decorates.
//
// strftime's own FormatString can't distinguish "compiled fine, produced an
// empty string" from "nothing was written because of an internal error", so
// Expand prepends a literal space to the pattern before formatting and
// strips it back off afterward. Since the output always contains at least
// that leading literal byte when formatting actually ran, any expansion
// that comes back empty is unambiguously a failure.
func Expand(pattern string, bail bool) (string, error) {
	if pattern == "" {
		return "", nil
	}

	out, err := strftime.Format(" "+pattern, time.Now())
	if err == nil && len(out) > 0 && len(out) <= maxLength {
		return out[1:], nil
	}

	if err == nil {
		if len(out) == 0 {
			err = fmt.Errorf("expansion of %q produced no output", pattern)
		} else {
			err = fmt.Errorf("expansion of %q exceeds %d bytes", pattern, maxLength)
		}
	}
	if bail {
		return "", fmt.Errorf("format string %q is broken: %w", pattern, err)
	}
	return "ind fmt error", nil
}

// MustValidate reports whether pattern compiles and expands cleanly. It is
// meant for start-of-program validation of user-supplied -p/-a/-P/-A
// patterns, where a broken format should refuse to launch rather than spend
// the whole run printing a fallback string.
func MustValidate(pattern string) error {
	_, err := Expand(pattern, true)
	return err
}
