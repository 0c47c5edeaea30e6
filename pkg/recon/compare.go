// Package recon implements the reconciliation comparator: key matching,
// value comparison under tolerance, fuzzy text matching, and aggregate
// statistic checks between two datasets.
package recon

import (
	"fmt"
	"math"
	"strings"

	"github.com/crosscheckhq/crosscheck/pkg/rules"
	"github.com/crosscheckhq/crosscheck/pkg/tabular"
)

// Difference describes how two compared values differ. Numeric
// differences carry the absolute delta; null and string mismatches
// carry a sentinel label instead.
type Difference struct {
	Value   float64
	Numeric bool
	Label   string
}

// String renders the difference for reporting.
func (d Difference) String() string {
	if d.Numeric {
		return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.4f", d.Value), "0"), ".")
	}
	return d.Label
}

var (
	nullMismatch   = Difference{Label: "NULL mismatch"}
	stringMismatch = Difference{Label: "string mismatch"}
	zeroDiff       = Difference{Numeric: true}
)

// Compare evaluates two cells under an optional tolerance and returns
// whether they match plus the computed difference.
//
// Null semantics: both null is a match with zero difference; exactly one
// null is a mismatch regardless of tolerance. Equality at exactly the
// tolerance boundary is a match (<=, not <).
func Compare(v1, v2 tabular.Value, tol *rules.Tolerance) (bool, Difference) {
	if v1.IsNull() && v2.IsNull() {
		return true, zeroDiff
	}
	if v1.IsNull() || v2.IsNull() {
		return false, nullMismatch
	}

	if tol != nil && tol.Type == rules.ToleranceDays {
		return compareDates(v1, v2, tol)
	}

	n1, err1 := v1.AsNumber()
	n2, err2 := v2.AsNumber()
	if err1 == nil && err2 == nil {
		return compareNumbers(n1, n2, tol)
	}

	// Fall back to structural string comparison.
	s1 := strings.TrimSpace(v1.String())
	s2 := strings.TrimSpace(v2.String())
	if s1 == s2 {
		return true, zeroDiff
	}
	return false, stringMismatch
}

// compareNumbers applies the tolerance rule to two numerics.
func compareNumbers(n1, n2 float64, tol *rules.Tolerance) (bool, Difference) {
	diff := Difference{Value: math.Abs(n1 - n2), Numeric: true}

	if tol == nil || tol.Value == 0 {
		return n1 == n2, diff
	}

	switch tol.Type {
	case rules.TolerancePercentage:
		if n1 == 0 {
			// Avoid division by zero: zero matches only zero.
			return n2 == 0, diff
		}
		pct := (diff.Value / math.Abs(n1)) * 100
		return pct <= tol.Value, diff
	case rules.ToleranceAbsolute:
		return diff.Value <= tol.Value, diff
	default:
		return diff.Value <= tol.Value, diff
	}
}

// compareDates compares two date cells under a day-count tolerance.
// Cells that cannot be coerced to dates fall back to numeric handling.
func compareDates(v1, v2 tabular.Value, tol *rules.Tolerance) (bool, Difference) {
	d1, err1 := v1.AsDate("")
	d2, err2 := v2.AsDate("")
	if err1 != nil || err2 != nil {
		n1, nerr1 := v1.AsNumber()
		n2, nerr2 := v2.AsNumber()
		if nerr1 == nil && nerr2 == nil {
			return compareNumbers(n1, n2, tol)
		}
		return false, Difference{Label: "date mismatch"}
	}

	days := math.Abs(d1.Sub(d2).Hours() / 24)
	return days <= tol.Value, Difference{Value: days, Numeric: true}
}
