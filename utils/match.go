package utils

// MatchModel checks whether a model name matches a rule's model pattern.
// Patterns may include the wildcard '*', which matches any sequence of
// characters (including none). A bare "*" covers every model.
func MatchModel(model, pattern string) bool {
	if pattern == "*" || pattern == model {
		return true
	}
	return matchPattern(model, pattern)
}

// matchPattern matches a value against a pattern containing '*' wildcards.
func matchPattern(value, pattern string) bool {
	vIndex, pIndex := 0, 0
	vLen, pLen := len(value), len(pattern)
	starIdx, matchIdx := -1, 0

	for vIndex < vLen {
		switch {
		case pIndex < pLen && pattern[pIndex] == '*':
			starIdx = pIndex
			matchIdx = vIndex
			pIndex++
		case pIndex < pLen && pattern[pIndex] == value[vIndex]:
			vIndex++
			pIndex++
		case starIdx != -1:
			// backtrack: let the last '*' absorb one more character
			matchIdx++
			vIndex = matchIdx
			pIndex = starIdx + 1
		default:
			return false
		}
	}
	for pIndex < pLen && pattern[pIndex] == '*' {
		pIndex++
	}
	return pIndex == pLen
}
