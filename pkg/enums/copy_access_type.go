package enums

import (
	"fmt"
	"strings"
)

// CopyAccessType describes where and how a copy may be used. REFERENCE
// copies never circulate.
type CopyAccessType string

const (
	CopyAccessStorage   CopyAccessType = "STORAGE"
	CopyAccessOpenStack CopyAccessType = "OPEN_STACK"
	CopyAccessReference CopyAccessType = "REFERENCE"
)

var validCopyAccessTypes = []CopyAccessType{
	CopyAccessStorage,
	CopyAccessOpenStack,
	CopyAccessReference,
}

// String implements fmt.Stringer.
func (a CopyAccessType) String() string {
	return string(a)
}

// IsValid reports whether the value is a known CopyAccessType.
func (a CopyAccessType) IsValid() bool {
	for _, candidate := range validCopyAccessTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// Circulates reports whether copies of this access type may be lent out.
func (a CopyAccessType) Circulates() bool {
	return a != CopyAccessReference
}

// ParseCopyAccessType converts raw input into a CopyAccessType. Input is
// upper-cased and trimmed before matching; unknown values are rejected.
func ParseCopyAccessType(value string) (CopyAccessType, error) {
	normalized := CopyAccessType(strings.ToUpper(strings.TrimSpace(value)))
	for _, candidate := range validCopyAccessTypes {
		if candidate == normalized {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid copy access type %q", value)
}

// NormalizeCopyAccessType behaves like ParseCopyAccessType but falls back to
// STORAGE on unknown input. Only the bulk catalog import uses this.
func NormalizeCopyAccessType(value string) CopyAccessType {
	accessType, err := ParseCopyAccessType(value)
	if err != nil {
		return CopyAccessStorage
	}
	return accessType
}
