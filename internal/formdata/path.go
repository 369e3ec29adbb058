// Package formdata works with the nested form-data trees produced by the
// questionnaire UI: typed field paths, path lookup, and the recursive walk
// that derives expected values for coverage checks.
package formdata

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrEmptyPath is returned when a path has no content
var ErrEmptyPath = errors.New("formdata: path cannot be empty")

// Segment is one step of a field path: either a map key or a list index.
type Segment struct {
	Key     string
	Index   int
	IsIndex bool
}

// String renders the segment the way it appears in a path
func (s Segment) String() string {
	if s.IsIndex {
		return "[" + strconv.Itoa(s.Index) + "]"
	}
	return s.Key
}

// Path is a parsed field path such as section13.entries[0].supervisor.name
type Path []Segment

// String renders the path back into dot/bracket notation
func (p Path) String() string {
	var sb strings.Builder
	for i, seg := range p {
		if !seg.IsIndex && i > 0 {
			sb.WriteByte('.')
		}
		sb.WriteString(seg.String())
	}
	return sb.String()
}

// Keys returns only the key segments, in order
func (p Path) Keys() []string {
	keys := make([]string, 0, len(p))
	for _, seg := range p {
		if !seg.IsIndex {
			keys = append(keys, seg.Key)
		}
	}
	return keys
}

// HasKey reports whether any key segment equals key exactly. Unlike a
// substring test, "fromDate" does not match "platformDate".
func (p Path) HasKey(key string) bool {
	for _, seg := range p {
		if !seg.IsIndex && seg.Key == key {
			return true
		}
	}
	return false
}

// ParsePath splits a dot/bracket path into typed segments.
//
// Grammar: path = key { "." key | "[" digits "]" }, where a key is a
// non-empty run of characters other than '.', '[' and ']'.
func ParsePath(raw string) (Path, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, ErrEmptyPath
	}

	var (
		path    Path
		key     strings.Builder
		i       int
		lastDot = true // a key is required at the start and after each dot
	)

	flushKey := func(pos int) error {
		if key.Len() == 0 {
			if lastDot {
				return fmt.Errorf("formdata: empty key at offset %d in %q", pos, raw)
			}
			return nil
		}
		path = append(path, Segment{Key: key.String()})
		key.Reset()
		lastDot = false
		return nil
	}

	for i < len(raw) {
		c := raw[i]
		switch c {
		case '.':
			if err := flushKey(i); err != nil {
				return nil, err
			}
			lastDot = true
			i++
		case '[':
			if err := flushKey(i); err != nil {
				return nil, err
			}
			end := strings.IndexByte(raw[i:], ']')
			if end < 0 {
				return nil, fmt.Errorf("formdata: unclosed '[' at offset %d in %q", i, raw)
			}
			digits := raw[i+1 : i+end]
			idx, err := strconv.Atoi(digits)
			if err != nil || !isDigits(digits) {
				return nil, fmt.Errorf("formdata: invalid index %q at offset %d in %q", digits, i, raw)
			}
			path = append(path, Segment{Index: idx, IsIndex: true})
			i += end + 1
			if i < len(raw) && raw[i] != '.' && raw[i] != '[' {
				return nil, fmt.Errorf("formdata: unexpected %q after index at offset %d in %q", raw[i], i, raw)
			}
		case ']':
			return nil, fmt.Errorf("formdata: unexpected ']' at offset %d in %q", i, raw)
		default:
			key.WriteByte(c)
			i++
		}
	}

	if lastDot && key.Len() == 0 {
		return nil, fmt.Errorf("formdata: path %q ends with '.'", raw)
	}
	if err := flushKey(len(raw)); err != nil {
		return nil, err
	}
	return path, nil
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// MustParsePath is ParsePath for static paths; it panics on malformed input.
func MustParsePath(raw string) Path {
	p, err := ParsePath(raw)
	if err != nil {
		panic(err)
	}
	return p
}
