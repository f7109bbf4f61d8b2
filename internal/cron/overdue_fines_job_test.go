package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/barthig/Biblioteka-sub002/pkg/logger"
)

type fakeFineSweeper struct {
	assessed  int
	err       error
	lastBatch int
}

func (f *fakeFineSweeper) SweepOverdue(ctx context.Context, now time.Time, batchSize int) (int, error) {
	f.lastBatch = batchSize
	return f.assessed, f.err
}

func TestOverdueFinesJobSweeps(t *testing.T) {
	sweeper := &fakeFineSweeper{assessed: 2}
	jobIface, err := NewOverdueFinesJob(OverdueFinesJobParams{
		Logger:    logger.New(logger.Options{ServiceName: "test"}),
		Fines:     sweeper,
		BatchSize: 25,
	})
	if err != nil {
		t.Fatalf("NewOverdueFinesJob: %v", err)
	}

	if err := jobIface.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sweeper.lastBatch != 25 {
		t.Fatalf("expected batch 25, got %d", sweeper.lastBatch)
	}
}

func TestOverdueFinesJobPropagatesError(t *testing.T) {
	sweeper := &fakeFineSweeper{err: errors.New("boom")}
	jobIface, err := NewOverdueFinesJob(OverdueFinesJobParams{
		Logger: logger.New(logger.Options{ServiceName: "test"}),
		Fines:  sweeper,
	})
	if err != nil {
		t.Fatalf("NewOverdueFinesJob: %v", err)
	}

	if err := jobIface.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}
