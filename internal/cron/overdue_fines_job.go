package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/barthig/Biblioteka-sub002/pkg/logger"
)

const defaultFineSweepBatch = 200

type OverdueFinesJobParams struct {
	Logger    *logger.Logger
	Fines     fineSweeper
	BatchSize int
}

type fineSweeper interface {
	SweepOverdue(ctx context.Context, now time.Time, batchSize int) (int, error)
}

// NewOverdueFinesJob walks open overdue loans and assesses their fines.
func NewOverdueFinesJob(params OverdueFinesJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Fines == nil {
		return nil, fmt.Errorf("fines service required")
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultFineSweepBatch
	}
	return &overdueFinesJob{
		logg:  params.Logger,
		fines: params.Fines,
		batch: batch,
		now:   time.Now,
	}, nil
}

type overdueFinesJob struct {
	logg  *logger.Logger
	fines fineSweeper
	batch int
	now   func() time.Time
}

func (j *overdueFinesJob) Name() string { return "overdue-fines" }

func (j *overdueFinesJob) Run(ctx context.Context) error {
	now := j.now().UTC()
	assessed, err := j.fines.SweepOverdue(ctx, now, j.batch)
	if err != nil {
		return fmt.Errorf("overdue fine sweep: %w", err)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"assessed":   assessed,
		"batch_size": j.batch,
	})
	j.logg.Info(logCtx, "overdue fine sweep complete")
	return nil
}
