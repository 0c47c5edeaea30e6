package assist

import (
	"math"

	"github.com/crosscheckhq/crosscheck/pkg/tabular"
)

// maxSampleValues bounds the example values carried in a profile.
const maxSampleValues = 5

// ColumnProfile summarizes one dataset column for rule suggestion.
type ColumnProfile struct {
	Column        string  `json:"column"`
	TotalCount    int     `json:"total_count"`
	NullCount     int     `json:"null_count"`
	NullRate      float64 `json:"null_rate"`
	DistinctCount int     `json:"distinct_count"`
	AllUnique     bool    `json:"all_unique"`

	IsNumeric    bool     `json:"is_numeric"`
	Min          *float64 `json:"min,omitempty"`
	Max          *float64 `json:"max,omitempty"`
	Mean         *float64 `json:"mean,omitempty"`
	HasNegatives bool     `json:"has_negatives,omitempty"`

	MinLength int      `json:"min_length,omitempty"`
	MaxLength int      `json:"max_length,omitempty"`
	Samples   []string `json:"sample_values,omitempty"`
}

// Profile computes summary statistics for a column. A column counts as
// numeric when every non-null cell coerces to a number.
func Profile(ds *tabular.Dataset, column string) (ColumnProfile, error) {
	values, err := ds.Column(column)
	if err != nil {
		return ColumnProfile{}, err
	}

	profile := ColumnProfile{
		Column:     column,
		TotalCount: len(values),
		IsNumeric:  true,
	}

	distinct := make(map[string]struct{}, len(values))
	var sum float64
	var numericCount int
	minLen, maxLen := math.MaxInt32, 0

	for _, v := range values {
		if v.IsNull() {
			profile.NullCount++
			continue
		}
		s := v.String()
		if _, seen := distinct[s]; !seen {
			distinct[s] = struct{}{}
			if len(profile.Samples) < maxSampleValues {
				profile.Samples = append(profile.Samples, s)
			}
		}

		n := len([]rune(s))
		if n < minLen {
			minLen = n
		}
		if n > maxLen {
			maxLen = n
		}

		f, err := v.AsNumber()
		if err != nil {
			profile.IsNumeric = false
			continue
		}
		numericCount++
		sum += f
		if f < 0 {
			profile.HasNegatives = true
		}
		if profile.Min == nil || f < *profile.Min {
			profile.Min = ptr(f)
		}
		if profile.Max == nil || f > *profile.Max {
			profile.Max = ptr(f)
		}
	}

	profile.DistinctCount = len(distinct)
	nonNull := profile.TotalCount - profile.NullCount
	profile.AllUnique = nonNull > 0 && profile.DistinctCount == nonNull
	if profile.TotalCount > 0 {
		profile.NullRate = float64(profile.NullCount) / float64(profile.TotalCount)
	}
	if nonNull == 0 {
		profile.IsNumeric = false
	}
	if profile.IsNumeric && numericCount > 0 {
		profile.Mean = ptr(sum / float64(numericCount))
	} else {
		profile.Min, profile.Max, profile.Mean = nil, nil, nil
		profile.HasNegatives = false
	}
	if nonNull > 0 {
		profile.MinLength = minLen
		profile.MaxLength = maxLen
	}

	return profile, nil
}

func ptr(f float64) *float64 {
	return &f
}
