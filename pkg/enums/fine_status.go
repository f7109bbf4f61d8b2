package enums

import (
	"fmt"
	"strings"
)

// FineStatus maps to the fine_status enum in Postgres.
type FineStatus string

const (
	FinePending   FineStatus = "PENDING"
	FinePaid      FineStatus = "PAID"
	FineCancelled FineStatus = "CANCELLED"
)

var validFineStatuses = []FineStatus{
	FinePending,
	FinePaid,
	FineCancelled,
}

func (s FineStatus) String() string {
	return string(s)
}

// IsValid reports whether the value matches the canonical fine_status enum.
func (s FineStatus) IsValid() bool {
	for _, candidate := range validFineStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsSettled reports whether the fine no longer accepts transitions.
func (s FineStatus) IsSettled() bool {
	return s == FinePaid || s == FineCancelled
}

// ParseFineStatus converts raw input into FineStatus.
func ParseFineStatus(value string) (FineStatus, error) {
	normalized := FineStatus(strings.ToUpper(strings.TrimSpace(value)))
	if normalized.IsValid() {
		return normalized, nil
	}
	return "", fmt.Errorf("invalid fine status %q", value)
}
