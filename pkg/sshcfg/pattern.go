package sshcfg

import "strings"

// matchPatterns applies a Host pattern list to a host name. The stanza
// applies when at least one positive pattern matches and no negated pattern
// (leading '!') does. Matching is case-insensitive.
func matchPatterns(patterns []string, host string) bool {
	host = strings.ToLower(host)
	matched := false
	for _, p := range patterns {
		negated := strings.HasPrefix(p, "!")
		if negated {
			p = p[1:]
		}
		if !matchPattern(strings.ToLower(p), host) {
			continue
		}
		if negated {
			return false
		}
		matched = true
	}
	return matched
}

// matchPattern implements the shell-style glob used by ssh_config patterns:
// '*' matches any run of characters, '?' matches exactly one.
func matchPattern(pattern, s string) bool {
	p := []rune(pattern)
	r := []rune(s)

	pi, si := 0, 0
	star, starSi := -1, 0
	for si < len(r) {
		switch {
		case pi < len(p) && (p[pi] == '?' || p[pi] == r[si]):
			pi++
			si++
		case pi < len(p) && p[pi] == '*':
			star, starSi = pi, si
			pi++
		case star >= 0:
			// Backtrack: let the last '*' swallow one more rune.
			starSi++
			si = starSi
			pi = star + 1
		default:
			return false
		}
	}
	for pi < len(p) && p[pi] == '*' {
		pi++
	}
	return pi == len(p)
}
