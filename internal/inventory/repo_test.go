package inventory

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/barthig/Biblioteka-sub002/pkg/db/models"
	"github.com/barthig/Biblioteka-sub002/pkg/enums"
	"github.com/barthig/Biblioteka-sub002/pkg/pagination"
)

func TestRepositoryCounterRecalculation(t *testing.T) {
	conn := openTestDB(t)
	tx := conn.Begin()
	if tx.Error != nil {
		t.Fatalf("begin tx: %v", tx.Error)
	}
	t.Cleanup(func() {
		_ = tx.Rollback()
	})

	repo := NewRepository(tx)
	ctx := context.Background()

	book := mustCreateTestBook(t, tx)
	mustCreateTestCopy(t, tx, book.ID, enums.CopyStatusAvailable, enums.CopyAccessStorage)
	mustCreateTestCopy(t, tx, book.ID, enums.CopyStatusAvailable, enums.CopyAccessOpenStack)
	mustCreateTestCopy(t, tx, book.ID, enums.CopyStatusBorrowed, enums.CopyAccessStorage)
	mustCreateTestCopy(t, tx, book.ID, enums.CopyStatusAvailable, enums.CopyAccessReference)
	mustCreateTestCopy(t, tx, book.ID, enums.CopyStatusWithdrawn, enums.CopyAccessStorage)

	if err := repo.RecalculateCounters(ctx, book.ID); err != nil {
		t.Fatalf("recalculate: %v", err)
	}

	fetched, err := repo.FindBookByID(ctx, book.ID)
	if err != nil {
		t.Fatalf("find book: %v", err)
	}
	if fetched.TotalCopies != 5 {
		t.Fatalf("expected total 5 got %d", fetched.TotalCopies)
	}
	if fetched.AvailableCopies != 1 {
		t.Fatalf("expected available 1 got %d", fetched.AvailableCopies)
	}
	if fetched.OpenStackCopies != 1 {
		t.Fatalf("expected open stack 1 got %d", fetched.OpenStackCopies)
	}
}

func TestRepositoryFindLendableCopySkipsReference(t *testing.T) {
	conn := openTestDB(t)
	tx := conn.Begin()
	if tx.Error != nil {
		t.Fatalf("begin tx: %v", tx.Error)
	}
	t.Cleanup(func() {
		_ = tx.Rollback()
	})

	repo := NewRepository(tx)
	ctx := context.Background()

	book := mustCreateTestBook(t, tx)
	mustCreateTestCopy(t, tx, book.ID, enums.CopyStatusAvailable, enums.CopyAccessReference)
	mustCreateTestCopy(t, tx, book.ID, enums.CopyStatusBorrowed, enums.CopyAccessStorage)

	if _, err := repo.FindLendableCopy(ctx, book.ID); err == nil {
		t.Fatal("expected no lendable copy while only reference and borrowed exist")
	}

	lendable := mustCreateTestCopy(t, tx, book.ID, enums.CopyStatusAvailable, enums.CopyAccessOpenStack)
	found, err := repo.FindLendableCopy(ctx, book.ID)
	if err != nil {
		t.Fatalf("find lendable: %v", err)
	}
	if found.ID != lendable.ID {
		t.Fatalf("expected copy %s got %s", lendable.ID, found.ID)
	}
}

func TestRepositoryGuardedStatusUpdateDetectsConcurrentChange(t *testing.T) {
	conn := openTestDB(t)
	tx := conn.Begin()
	if tx.Error != nil {
		t.Fatalf("begin tx: %v", tx.Error)
	}
	t.Cleanup(func() {
		_ = tx.Rollback()
	})

	repo := NewRepository(tx)
	ctx := context.Background()

	book := mustCreateTestBook(t, tx)
	copy := mustCreateTestCopy(t, tx, book.ID, enums.CopyStatusAvailable, enums.CopyAccessStorage)

	copy.Status = enums.CopyStatusBorrowed
	copy.UpdatedAt = time.Now().UTC()
	if err := repo.UpdateCopyStatusGuarded(ctx, copy, enums.CopyStatusAvailable); err != nil {
		t.Fatalf("guarded update: %v", err)
	}

	// The row is BORROWED now, so a second writer that still believes the
	// copy is AVAILABLE must lose.
	stale := *copy
	stale.Status = enums.CopyStatusReserved
	if err := repo.UpdateCopyStatusGuarded(ctx, &stale, enums.CopyStatusAvailable); err == nil {
		t.Fatal("expected guarded update to fail for stale prior status")
	}

	fetched, err := repo.FindCopyByID(ctx, copy.ID)
	if err != nil {
		t.Fatalf("find copy: %v", err)
	}
	if fetched.Status != enums.CopyStatusBorrowed {
		t.Fatalf("expected status BORROWED got %s", fetched.Status)
	}
}

func TestRepositoryListBooksCursor(t *testing.T) {
	conn := openTestDB(t)
	tx := conn.Begin()
	if tx.Error != nil {
		t.Fatalf("begin tx: %v", tx.Error)
	}
	t.Cleanup(func() {
		_ = tx.Rollback()
	})

	repo := NewRepository(tx)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		mustCreateTestBook(t, tx)
		time.Sleep(2 * time.Millisecond)
	}

	first, err := repo.ListBooks(ctx, pagination.Params{Limit: 2}, BookFilters{})
	if err != nil {
		t.Fatalf("list books: %v", err)
	}
	if len(first.Books) != 2 {
		t.Fatalf("expected 2 books got %d", len(first.Books))
	}
	if first.NextCursor == "" {
		t.Fatal("expected next cursor")
	}

	second, err := repo.ListBooks(ctx, pagination.Params{Limit: 2, Cursor: first.NextCursor}, BookFilters{})
	if err != nil {
		t.Fatalf("list books page 2: %v", err)
	}
	for _, b := range second.Books {
		for _, seen := range first.Books {
			if b.ID == seen.ID {
				t.Fatalf("book %s appeared on both pages", b.ID)
			}
		}
	}
}

func TestRepositoryWeedingRecords(t *testing.T) {
	conn := openTestDB(t)
	tx := conn.Begin()
	if tx.Error != nil {
		t.Fatalf("begin tx: %v", tx.Error)
	}
	t.Cleanup(func() {
		_ = tx.Rollback()
	})

	repo := NewRepository(tx)
	ctx := context.Background()

	book := mustCreateTestBook(t, tx)
	copy := mustCreateTestCopy(t, tx, book.ID, enums.CopyStatusWithdrawn, enums.CopyAccessStorage)

	err := repo.InsertWeedingRecord(ctx, &models.WeedingRecord{
		BookCopyID:    copy.ID,
		BookID:        book.ID,
		InventoryCode: copy.InventoryCode,
		Reason:        "damaged beyond repair",
		WithdrawnAt:   time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("insert weeding record: %v", err)
	}
	records, err := repo.ListWeedingRecords(ctx, book.ID)
	if err != nil {
		t.Fatalf("list weeding records: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record got %d", len(records))
	}
	if records[0].InventoryCode != copy.InventoryCode {
		t.Fatalf("expected code %s got %s", copy.InventoryCode, records[0].InventoryCode)
	}
	if records[0].BookCopyID == uuid.Nil {
		t.Fatal("expected copy id on record")
	}
}
