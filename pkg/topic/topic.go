// Package topic implements MQTT-style topic pattern matching.
//
// A pattern is a '/'-separated path where '+' matches exactly one level
// (including an empty one) and a trailing '#' matches any number of
// remaining levels, including zero.
package topic

import (
	"errors"
	"strings"
)

// ErrInvalidPattern is returned when a pattern is malformed.
var ErrInvalidPattern = errors.New("topic: invalid pattern")

// HasWildcard reports whether the pattern contains a wildcard level.
func HasWildcard(pattern string) bool {
	return strings.IndexByte(pattern, '+') >= 0 || strings.IndexByte(pattern, '#') >= 0
}

// Validate checks that a pattern is well formed: '#' may only appear as the
// final level, and '+' or '#' must occupy a whole level.
func Validate(pattern string) error {
	rest := pattern
	for {
		var level string
		i := strings.IndexByte(rest, '/')
		last := i < 0
		if last {
			level, rest = rest, ""
		} else {
			level, rest = rest[:i], rest[i+1:]
		}
		if strings.IndexByte(level, '#') >= 0 && (level != "#" || !last) {
			return ErrInvalidPattern
		}
		if strings.IndexByte(level, '+') >= 0 && level != "+" {
			return ErrInvalidPattern
		}
		if last {
			return nil
		}
	}
}

// Match reports whether topic matches pattern.
//
// Exact string equality is the fast path. Otherwise the two are compared
// level by level: '+' matches any single level, a trailing '#' matches all
// remaining levels (zero or more). Both pattern and topic must be fully
// consumed for a match unless a trailing '#' matched.
func Match(pattern, topic string) bool {
	if pattern == topic {
		return true
	}
	if !HasWildcard(pattern) {
		return false
	}

	p, t := pattern, topic
	pLast, tLast := false, false
	for !pLast {
		var plev string
		if i := strings.IndexByte(p, '/'); i >= 0 {
			plev, p = p[:i], p[i+1:]
		} else {
			plev, p, pLast = p, "", true
		}

		// A trailing '#' matches everything that remains, including
		// nothing at all ("a/#" matches "a").
		if plev == "#" && pLast {
			return true
		}

		if tLast {
			// Pattern still requires a level but the topic has none left.
			return false
		}

		var tlev string
		if i := strings.IndexByte(t, '/'); i >= 0 {
			tlev, t = t[:i], t[i+1:]
		} else {
			tlev, t, tLast = t, "", true
		}

		if plev != "+" && plev != tlev {
			return false
		}
	}
	return tLast
}
