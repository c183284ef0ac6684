// Package reference formats and parses year-scoped loan reference codes
// such as MF-2025-0042.
package reference

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

const DefaultPrefix = "MF"

var prefixPattern = regexp.MustCompile(`^[A-Z0-9]{1,8}$`)

// ValidPrefix reports whether p can head a code that Parse accepts.
func ValidPrefix(p string) bool {
	return prefixPattern.MatchString(p)
}

// Code is a parsed reference.
type Code struct {
	Prefix   string
	Year     int
	Sequence int
}

func (c Code) String() string {
	return Format(c.Prefix, c.Year, c.Sequence)
}

// Format renders prefix-YYYY-NNNN. Sequences above 9999 keep all their digits.
func Format(prefix string, year, seq int) string {
	return fmt.Sprintf("%s-%04d-%04d", prefix, year, seq)
}

func Parse(s string) (Code, error) {
	parts := strings.Split(s, "-")
	if len(parts) != 3 || !ValidPrefix(parts[0]) {
		return Code{}, fmt.Errorf("malformed reference %q", s)
	}
	if len(parts[1]) != 4 {
		return Code{}, fmt.Errorf("malformed reference year in %q", s)
	}
	year, err := strconv.Atoi(parts[1])
	if err != nil {
		return Code{}, fmt.Errorf("malformed reference year in %q: %w", s, err)
	}
	if len(parts[2]) < 4 {
		return Code{}, fmt.Errorf("malformed reference sequence in %q", s)
	}
	seq, err := strconv.Atoi(parts[2])
	if err != nil || seq < 1 {
		return Code{}, fmt.Errorf("malformed reference sequence in %q", s)
	}
	return Code{Prefix: parts[0], Year: year, Sequence: seq}, nil
}
