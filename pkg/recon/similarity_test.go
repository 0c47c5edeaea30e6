package recon

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/crosscheckhq/crosscheck/pkg/rules"
)

func TestSimilarity(t *testing.T) {
	tests := []struct {
		name string
		s1   string
		s2   string
		want float64
	}{
		{"identical", "ACME Corp", "ACME Corp", 1},
		{"both empty", "", "", 1},
		{"one empty", "ACME", "", 0},
		{"disjoint", "abc", "xyz", 0},
		{"partial", "abcd", "bcde", 0.75},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Similarity(tt.s1, tt.s2), 1e-9)
		})
	}
}

func TestSimilarityProperties(t *testing.T) {
	pairs := [][2]string{
		{"ACME Corporation", "ACME Corp"},
		{"hello world", "world hello"},
		{"a", "ab"},
	}
	for _, p := range pairs {
		r1 := Similarity(p[0], p[1])
		r2 := Similarity(p[1], p[0])
		assert.InDelta(t, r1, r2, 1e-9, "similarity must be symmetric")
		assert.GreaterOrEqual(t, r1, 0.0)
		assert.LessOrEqual(t, r1, 1.0)
	}
}

func TestNormalizedSimilarity(t *testing.T) {
	assert.InDelta(t, 1, NormalizedSimilarity("  ACME Corp  ", "acme corp"), 1e-9)
	assert.Less(t, NormalizedSimilarity("ACME Corp", "ACNE Group"), 1.0)
}

func TestFuzzyThreshold(t *testing.T) {
	assert.InDelta(t, 0.8, fuzzyThreshold(nil), 1e-9)
	assert.InDelta(t, 0.9,
		fuzzyThreshold(&rules.Tolerance{Type: rules.TolerancePercentage, Value: 90}), 1e-9)
	assert.InDelta(t, 0.75,
		fuzzyThreshold(&rules.Tolerance{Type: rules.TolerancePercentage, Value: 0.75}), 1e-9)
}
