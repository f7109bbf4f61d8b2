package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/barthig/Biblioteka-sub002/pkg/logger"
	"github.com/barthig/Biblioteka-sub002/pkg/metrics"
)

const defaultExpirySweepBatch = 200

type ReservationExpiryJobParams struct {
	Logger       *logger.Logger
	Reservations reservationSweeper
	Metrics      *metrics.CirculationMetrics
	BatchSize    int
}

type reservationSweeper interface {
	ExpireDue(ctx context.Context, now time.Time, batchSize int) (int, error)
}

// NewReservationExpiryJob sweeps holds whose pickup window has lapsed.
func NewReservationExpiryJob(params ReservationExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Reservations == nil {
		return nil, fmt.Errorf("reservations service required")
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultExpirySweepBatch
	}
	return &reservationExpiryJob{
		logg:         params.Logger,
		reservations: params.Reservations,
		metrics:      params.Metrics,
		batch:        batch,
		now:          time.Now,
	}, nil
}

type reservationExpiryJob struct {
	logg         *logger.Logger
	reservations reservationSweeper
	metrics      *metrics.CirculationMetrics
	batch        int
	now          func() time.Time
}

func (j *reservationExpiryJob) Name() string { return "reservation-expiry" }

func (j *reservationExpiryJob) Run(ctx context.Context) error {
	now := j.now().UTC()
	expired, err := j.reservations.ExpireDue(ctx, now, j.batch)
	if err != nil {
		return fmt.Errorf("reservation expiry sweep: %w", err)
	}
	if expired > 0 {
		j.metrics.AddReservationsExpired(expired)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"expired":    expired,
		"batch_size": j.batch,
	})
	j.logg.Info(logCtx, "reservation expiry sweep complete")
	return nil
}
