package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/sokpheng-dev/salapay-backend/pkg/db/models"
	"github.com/sokpheng-dev/salapay-backend/pkg/logger"
)

const expiredTransactionsBatch = 500

type expiredTransactionsRepo interface {
	ListUnsettledExpiredTransactions(ctx context.Context, limit int) ([]models.PaywayTransaction, error)
}

type ExpiredTransactionsJobParams struct {
	Logger     *logger.Logger
	Repository expiredTransactionsRepo
	Batch      int
}

// NewExpiredTransactionsJob reports gateway transactions whose QR window
// lapsed without a pushback. A late pushback can still settle them, so the
// job only surfaces the backlog for the operators; it never flips state.
func NewExpiredTransactionsJob(params ExpiredTransactionsJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Repository == nil {
		return nil, fmt.Errorf("payway repository required")
	}
	batch := params.Batch
	if batch <= 0 {
		batch = expiredTransactionsBatch
	}
	return &expiredTransactionsJob{
		logg:  params.Logger,
		repo:  params.Repository,
		batch: batch,
		now:   time.Now,
	}, nil
}

type expiredTransactionsJob struct {
	logg  *logger.Logger
	repo  expiredTransactionsRepo
	batch int
	now   func() time.Time
}

func (j *expiredTransactionsJob) Name() string { return "expired-transactions" }

func (j *expiredTransactionsJob) Run(ctx context.Context) error {
	txns, err := j.repo.ListUnsettledExpiredTransactions(ctx, j.batch)
	if err != nil {
		return fmt.Errorf("expired transactions: %w", err)
	}
	if len(txns) == 0 {
		j.logg.Info(ctx, "no expired gateway transactions")
		return nil
	}

	var oldest *time.Time
	for i := range txns {
		if txns[i].ExpiresAt == nil {
			continue
		}
		if oldest == nil || txns[i].ExpiresAt.Before(*oldest) {
			oldest = txns[i].ExpiresAt
		}
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"count": len(txns),
	})
	if oldest != nil {
		logCtx = j.logg.WithField(logCtx, "oldest_expiry", oldest.UTC().Format(time.RFC3339))
	}
	j.logg.Warn(logCtx, "gateway transactions expired without settlement")
	return nil
}
