package utils

import (
	"regexp"
	"strconv"
	"strings"
)

var digitsRE = regexp.MustCompile(`\d+`)

// RemoveLineBreaks replaces every CRLF and LF with a single space and trims
// the result. Runs of spaces already in the text are left as they are.
func RemoveLineBreaks(s string) string {
	s = strings.ReplaceAll(s, "\r\n", " ")
	s = strings.ReplaceAll(s, "\n", " ")
	return strings.TrimSpace(s)
}

// FirstNumber returns the first run of decimal digits in s as an int.
// ok is false when s has no digits or the run overflows an int.
func FirstNumber(s string) (n int, ok bool) {
	m := digitsRE.FindString(s)
	if m == "" {
		return 0, false
	}
	n, err := strconv.Atoi(m)
	if err != nil {
		return 0, false
	}
	return n, true
}
