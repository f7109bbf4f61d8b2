package enums

import (
	"fmt"
	"strings"
)

// CopyStatus tracks the circulation state of one physical book copy.
type CopyStatus string

const (
	CopyStatusAvailable   CopyStatus = "AVAILABLE"
	CopyStatusBorrowed    CopyStatus = "BORROWED"
	CopyStatusReserved    CopyStatus = "RESERVED"
	CopyStatusMaintenance CopyStatus = "MAINTENANCE"
	CopyStatusWithdrawn   CopyStatus = "WITHDRAWN"
)

var validCopyStatuses = []CopyStatus{
	CopyStatusAvailable,
	CopyStatusBorrowed,
	CopyStatusReserved,
	CopyStatusMaintenance,
	CopyStatusWithdrawn,
}

// String implements fmt.Stringer.
func (c CopyStatus) String() string {
	return string(c)
}

// IsValid reports whether the value is a known CopyStatus.
func (c CopyStatus) IsValid() bool {
	for _, candidate := range validCopyStatuses {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParseCopyStatus converts raw input into a CopyStatus. Input is upper-cased
// and trimmed before matching; unknown values are rejected.
func ParseCopyStatus(value string) (CopyStatus, error) {
	normalized := CopyStatus(strings.ToUpper(strings.TrimSpace(value)))
	for _, candidate := range validCopyStatuses {
		if candidate == normalized {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid copy status %q", value)
}

// NormalizeCopyStatus behaves like ParseCopyStatus but falls back to
// AVAILABLE on unknown input. Only the bulk catalog import uses this.
func NormalizeCopyStatus(value string) CopyStatus {
	status, err := ParseCopyStatus(value)
	if err != nil {
		return CopyStatusAvailable
	}
	return status
}
