package cliopts

import (
	"fmt"
	"io"
)

// Version is ind's reported version string.
const Version = "1.0.0"

// Usage writes the program's help text to w.
func Usage(w io.Writer, argv0 string) {
	fmt.Fprintf(w, `ind %s
usage: %s [-h] [-p fmt] [-a fmt] [-P fmt] [-A fmt] [-v] command [args...]

  -p fmt          prefix each stdout line (default "  ")
  -a fmt          postfix each stdout line (default "")
  -P fmt          prefix each stderr line (default ">>")
  -A fmt          postfix each stderr line (default "")
  -v              increase verbosity (repeatable)
  -h, --help      show this help text and exit
  --version       show version information and exit
  --copying       show license terms and exit
  --              stop option processing; everything after is the command

fmt is a strftime(3)-style pattern, expanded fresh for every chunk of
output the command writes, so a timestamp specifier stays current as
output streams in:

  %s -p '%%F %%T | ' make test
`, Version, argv0, argv0)
}

// PrintVersion writes version information to w.
func PrintVersion(w io.Writer) {
	fmt.Fprintf(w, "ind %s\n", Version)
}

// PrintCopying writes the program's license terms to w.
func PrintCopying(w io.Writer) {
	io.WriteString(w, copyingText)
}

const copyingText = `ind is distributed under a 3-clause BSD license.

Redistribution and use in source and binary forms, with or without
modification, are permitted provided that the following conditions are
met:

 1. Redistributions of source code must retain the above copyright
    notice, this list of conditions, and the following disclaimer.

 2. Redistributions in binary form must reproduce the above copyright
    notice, this list of conditions, and the following disclaimer in
    the documentation and/or other materials provided with the
    distribution.

 3. Neither the name of the project nor the names of its contributors
    may be used to endorse or promote products derived from this
    software without specific prior written permission.

This software is provided "as is", without warranty of any kind,
express or implied, including but not limited to warranties of
merchantability, fitness for a particular purpose, and
non-infringement. In no event shall the authors be liable for any
claim, damages, or other liability arising from, out of, or in
connection with the software or the use or other dealings in the
software.
`
