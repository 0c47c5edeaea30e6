package recon

import "strings"

// DefaultFuzzyThreshold is the similarity ratio below which a fuzzy
// match fails when the rule does not set its own threshold.
const DefaultFuzzyThreshold = 0.8

// Similarity computes a Ratcliff/Obershelp edit-similarity ratio in
// [0,1]: twice the number of matching characters over the combined
// length. It is symmetric in its inputs and 1 for identical strings.
func Similarity(s1, s2 string) float64 {
	a := []rune(s1)
	b := []rune(s2)
	if len(a) == 0 && len(b) == 0 {
		return 1
	}
	matched := matchingChars(a, b)
	return float64(2*matched) / float64(len(a)+len(b))
}

// NormalizedSimilarity trims surrounding whitespace and case-folds both
// inputs before scoring, per the fuzzy_match normalization contract.
func NormalizedSimilarity(s1, s2 string) float64 {
	return Similarity(normalize(s1), normalize(s2))
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// matchingChars counts characters in matching blocks: the longest common
// substring, plus recursively the matches to its left and right.
func matchingChars(a, b []rune) int {
	aStart, bStart, size := longestCommonSubstring(a, b)
	if size == 0 {
		return 0
	}
	total := size
	total += matchingChars(a[:aStart], b[:bStart])
	total += matchingChars(a[aStart+size:], b[bStart+size:])
	return total
}

// longestCommonSubstring finds the longest run of characters common to
// both inputs, returning its start offsets and length.
func longestCommonSubstring(a, b []rune) (aStart, bStart, size int) {
	if len(a) == 0 || len(b) == 0 {
		return 0, 0, 0
	}

	// lengths[j] holds the common-suffix length ending at a[i-1], b[j-1]
	// for the current row i.
	lengths := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		prev := 0
		for j := 1; j <= len(b); j++ {
			cur := lengths[j]
			if a[i-1] == b[j-1] {
				lengths[j] = prev + 1
				if lengths[j] > size {
					size = lengths[j]
					aStart = i - size
					bStart = j - size
				}
			} else {
				lengths[j] = 0
			}
			prev = cur
		}
	}
	return aStart, bStart, size
}
