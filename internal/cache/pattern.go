package cache

import "strings"

// MatchPattern reports whether key matches a Redis-style glob: '*' matches
// any run of characters, '?' exactly one, "[abc]", "[a-z]" and "[^a]" a
// class, and '\' escapes the next character.
func MatchPattern(pattern, key string) bool {
	p, k := []rune(pattern), []rune(key)

	// Position to resume from after the most recent '*'.
	starP, starK := -1, -1
	pi, ki := 0, 0

	for ki < len(k) {
		if pi < len(p) {
			switch p[pi] {
			case '*':
				starP, starK = pi, ki
				pi++
				continue
			case '?':
				pi++
				ki++
				continue
			case '[':
				if ok, next, valid := matchClass(p, pi, k[ki]); valid {
					if ok {
						pi = next
						ki++
						continue
					}
				} else if k[ki] == '[' {
					pi++
					ki++
					continue
				}
			case '\\':
				if pi+1 < len(p) && p[pi+1] == k[ki] {
					pi += 2
					ki++
					continue
				}
			default:
				if p[pi] == k[ki] {
					pi++
					ki++
					continue
				}
			}
		}

		if starP < 0 {
			return false
		}
		starK++
		pi, ki = starP+1, starK
	}

	for pi < len(p) && p[pi] == '*' {
		pi++
	}
	return pi == len(p)
}

// matchClass matches c against the class opening at p[start]. valid is
// false when the class is never closed; the '[' is then a literal.
func matchClass(p []rune, start int, c rune) (matched bool, next int, valid bool) {
	i := start + 1
	negate := false
	if i < len(p) && p[i] == '^' {
		negate = true
		i++
	}

	first := true
	for i < len(p) {
		if p[i] == ']' && !first {
			return matched != negate, i + 1, true
		}
		first = false

		lo := p[i]
		if lo == '\\' && i+1 < len(p) {
			i++
			lo = p[i]
		}
		i++

		hi := lo
		if i+1 < len(p) && p[i] == '-' && p[i+1] != ']' {
			hi = p[i+1]
			if hi == '\\' && i+2 < len(p) {
				hi = p[i+2]
				i++
			}
			i += 2
		}
		if lo > hi {
			lo, hi = hi, lo
		}
		if c >= lo && c <= hi {
			matched = true
		}
	}

	return false, 0, false
}

// literalPrefix returns the part of pattern before its first metacharacter.
// Levels that list by prefix use it to narrow the scan.
func literalPrefix(pattern string) string {
	if i := strings.IndexAny(pattern, `*?[\`); i >= 0 {
		return pattern[:i]
	}
	return pattern
}
