package query

// globMatch reports whether target matches the shell-style pattern in full.
// '*' matches any run of bytes (including empty), '?' matches exactly one
// byte. The match is anchored: a pattern without leading/trailing '*' must
// cover the whole target. Matching is byte-wise and case-sensitive.
//
// Iterative two-pointer matcher with single-star backtracking; linear in
// practice and immune to pathological patterns.
func globMatch(pattern, target string) bool {
	p, t := 0, 0
	starP, starT := -1, 0

	for t < len(target) {
		switch {
		case p < len(pattern) && (pattern[p] == '?' || pattern[p] == target[t]):
			p++
			t++
		case p < len(pattern) && pattern[p] == '*':
			// Record star position; tentatively match zero bytes.
			starP = p
			starT = t
			p++
		case starP >= 0:
			// Mismatch after a star: grow the star's span by one byte.
			starT++
			p = starP + 1
			t = starT
		default:
			return false
		}
	}

	// Only trailing stars may remain unconsumed.
	for p < len(pattern) && pattern[p] == '*' {
		p++
	}
	return p == len(pattern)
}
