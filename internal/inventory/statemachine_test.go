package inventory

import (
	"testing"
	"time"

	"github.com/barthig/Biblioteka-sub002/pkg/db/models"
	"github.com/barthig/Biblioteka-sub002/pkg/enums"
	pkgerrors "github.com/barthig/Biblioteka-sub002/pkg/errors"
)

func TestTransitionAllowedPaths(t *testing.T) {
	cases := []struct {
		from enums.CopyStatus
		to   enums.CopyStatus
	}{
		{enums.CopyStatusAvailable, enums.CopyStatusBorrowed},
		{enums.CopyStatusAvailable, enums.CopyStatusReserved},
		{enums.CopyStatusAvailable, enums.CopyStatusMaintenance},
		{enums.CopyStatusAvailable, enums.CopyStatusWithdrawn},
		{enums.CopyStatusBorrowed, enums.CopyStatusAvailable},
		{enums.CopyStatusBorrowed, enums.CopyStatusReserved},
		{enums.CopyStatusBorrowed, enums.CopyStatusMaintenance},
		{enums.CopyStatusReserved, enums.CopyStatusBorrowed},
		{enums.CopyStatusReserved, enums.CopyStatusAvailable},
		{enums.CopyStatusMaintenance, enums.CopyStatusAvailable},
		{enums.CopyStatusMaintenance, enums.CopyStatusWithdrawn},
	}
	now := time.Now().UTC()
	for _, tc := range cases {
		copy := &models.BookCopy{Status: tc.from}
		if err := Transition(copy, tc.to, now); err != nil {
			t.Fatalf("%s -> %s should be allowed, got %v", tc.from, tc.to, err)
		}
		if copy.Status != tc.to {
			t.Fatalf("expected status %s got %s", tc.to, copy.Status)
		}
		if !copy.UpdatedAt.Equal(now) {
			t.Fatalf("expected updated_at to be touched")
		}
	}
}

func TestTransitionRejectedPaths(t *testing.T) {
	cases := []struct {
		from enums.CopyStatus
		to   enums.CopyStatus
	}{
		{enums.CopyStatusBorrowed, enums.CopyStatusWithdrawn},
		{enums.CopyStatusReserved, enums.CopyStatusMaintenance},
		{enums.CopyStatusReserved, enums.CopyStatusWithdrawn},
		{enums.CopyStatusMaintenance, enums.CopyStatusBorrowed},
		{enums.CopyStatusAvailable, enums.CopyStatusAvailable},
	}
	now := time.Now().UTC()
	for _, tc := range cases {
		copy := &models.BookCopy{Status: tc.from}
		err := Transition(copy, tc.to, now)
		if err == nil {
			t.Fatalf("%s -> %s should be rejected", tc.from, tc.to)
		}
		if !pkgerrors.HasCode(err, pkgerrors.CodeStateConflict) {
			t.Fatalf("expected state conflict for %s -> %s, got %v", tc.from, tc.to, err)
		}
		if copy.Status != tc.from {
			t.Fatalf("rejected transition must not mutate status")
		}
	}
}

func TestTransitionWithdrawnIsTerminal(t *testing.T) {
	now := time.Now().UTC()
	for _, target := range []enums.CopyStatus{
		enums.CopyStatusAvailable,
		enums.CopyStatusBorrowed,
		enums.CopyStatusReserved,
		enums.CopyStatusMaintenance,
	} {
		copy := &models.BookCopy{Status: enums.CopyStatusWithdrawn}
		err := Transition(copy, target, now)
		if err == nil {
			t.Fatalf("WITHDRAWN -> %s should be rejected", target)
		}
		typed := pkgerrors.As(err)
		if typed == nil || typed.Message() != "copy has been withdrawn from circulation" {
			t.Fatalf("unexpected error %v", err)
		}
	}
}

func TestTransitionInvalidTarget(t *testing.T) {
	copy := &models.BookCopy{Status: enums.CopyStatusAvailable}
	err := Transition(copy, enums.CopyStatus("LOST"), time.Now().UTC())
	if !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
