// Package core holds the domain types and the small amount of form
// normalization the submission flow needs.
package core

import (
	"fmt"
	"strconv"
	"strings"
)

// ConvertTransferDate rewrites a human-entered dd/mm/yyyy date into the
// stored yyyy-mm-dd form. An empty field maps to nil (stored as NULL).
// The components are reordered, not validated: "99/99/2024" is accepted
// as-is, matching the submission contract.
func ConvertTransferDate(s string) (*string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, "/")
	if len(parts) != 3 {
		return nil, fmt.Errorf("malformed transfer date %q: want dd/mm/yyyy", s)
	}
	iso := parts[2] + "-" + parts[1] + "-" + parts[0]
	return &iso, nil
}

// CoerceAmount converts the raw amount field to a float the way the REAL
// column would coerce it: unparseable input degrades to 0 instead of
// failing the submission.
func CoerceAmount(s string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return f
}
