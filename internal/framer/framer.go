// Package framer inserts a prefix before, and a postfix after, every line
// of a byte stream without buffering whole lines: it walks each chunk as it
// arrives, splits on line terminators, and tracks only whether the stream
// is currently sitting at the start of a line.
package framer

import (
	"bytes"
	"io"

	"github.com/outprefix/ind/internal/strftimefmt"
)

// State is the line-framing cursor for one decorated stream (stdout or
// stderr). Its zero value has AtLineStart false, i.e. mid-line; use NewState
// for a fresh stream, which starts at a line boundary.
type State struct {
	AtLineStart bool
}

// NewState returns a State positioned at the start of a line.
func NewState() *State {
	return &State{AtLineStart: true}
}

// Frame writes chunk to dst, inserting prefix before each line's first byte
// and postfix immediately before the line terminator that ends it. CR and
// LF are both treated as independent line terminators: the "\r\n" in
// "a\r\nb" ends two lines ("a", and "" between the \r and \n) before "b"
// starts a third, matching a terminal's own
// treatment of a bare CR as a cursor-return rather than folding \r\n into a
// single terminator.
//
// prefixPattern and postfixPattern are strftime-style patterns; Frame
// expands each exactly once per call, so every line written by the same
// chunk shares one timestamp. A chunk that is appended to mid-line (no
// terminator yet) writes without a trailing postfix; the next chunk's call
// to Frame will close it out when a terminator finally arrives, without
// re-emitting the prefix.
func Frame(dst io.Writer, chunk []byte, prefixPattern, postfixPattern string, st *State) error {
	if len(chunk) == 0 {
		return nil
	}

	prefix, err := strftimefmt.Expand(prefixPattern, false)
	if err != nil {
		return err
	}
	postfix, err := strftimefmt.Expand(postfixPattern, false)
	if err != nil {
		return err
	}

	rest := chunk
	for {
		idx := bytes.IndexAny(rest, "\r\n")
		if idx < 0 {
			break
		}
		if st.AtLineStart {
			if _, werr := io.WriteString(dst, prefix); werr != nil {
				return werr
			}
			st.AtLineStart = false
		}
		if _, werr := dst.Write(rest[:idx]); werr != nil {
			return werr
		}
		if _, werr := io.WriteString(dst, postfix); werr != nil {
			return werr
		}
		if _, werr := dst.Write(rest[idx : idx+1]); werr != nil {
			return werr
		}
		st.AtLineStart = true
		rest = rest[idx+1:]
	}

	if len(rest) == 0 {
		return nil
	}
	if st.AtLineStart {
		if _, werr := io.WriteString(dst, prefix); werr != nil {
			return werr
		}
		st.AtLineStart = false
	}
	_, err = dst.Write(rest)
	return err
}
