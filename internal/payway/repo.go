package payway

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/sokpheng-dev/salapay-backend/pkg/db/models"
)

// Repository handles gateway-side persistence: transactions, pushbacks and
// the payment rows the pushback path settles.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	UpsertTransactionByPayment(ctx context.Context, txn *models.PaywayTransaction) (*models.PaywayTransaction, error)
	FindTransactionByID(ctx context.Context, id uuid.UUID) (*models.PaywayTransaction, error)
	FindTransactionByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.PaywayTransaction, error)
	FindTransactionByTranID(ctx context.Context, tranID string) (*models.PaywayTransaction, error)
	UpdateTransaction(ctx context.Context, txn *models.PaywayTransaction) error
	ListUnsettledExpiredTransactions(ctx context.Context, limit int) ([]models.PaywayTransaction, error)
	FindPaymentByID(ctx context.Context, id uuid.UUID) (*models.Payment, error)
	UpdatePayment(ctx context.Context, payment *models.Payment) error
	CreatePushback(ctx context.Context, pushback *models.PaywayPushback) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a payway repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// UpsertTransactionByPayment keeps at most one gateway transaction per
// payment. The insert lands on the unique payment_id index, so an existing
// row is re-armed in place (tran_id, amount, expiry, status back to pending)
// atomically; concurrent first-time QR requests converge on one row.
func (r *repository) UpsertTransactionByPayment(ctx context.Context, txn *models.PaywayTransaction) (*models.PaywayTransaction, error) {
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "payment_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"tran_id", "amount", "status", "expires_at", "updated_at"}),
		}).
		Create(txn).Error
	if err != nil {
		return nil, err
	}

	var saved models.PaywayTransaction
	if err := r.db.WithContext(ctx).
		Where("payment_id = ?", txn.PaymentID).
		First(&saved).Error; err != nil {
		return nil, err
	}
	return &saved, nil
}

func (r *repository) FindTransactionByID(ctx context.Context, id uuid.UUID) (*models.PaywayTransaction, error) {
	var txn models.PaywayTransaction
	if err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&txn).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &txn, nil
}

// FindTransactionByIDForUpdate takes a row lock so near-simultaneous
// pushback deliveries for the same transaction serialize instead of racing.
func (r *repository) FindTransactionByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.PaywayTransaction, error) {
	var txn models.PaywayTransaction
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&txn).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &txn, nil
}

func (r *repository) FindTransactionByTranID(ctx context.Context, tranID string) (*models.PaywayTransaction, error) {
	if tranID == "" {
		return nil, nil
	}
	var txn models.PaywayTransaction
	if err := r.db.WithContext(ctx).
		Where("tran_id = ?", tranID).
		Order("created_at DESC").
		First(&txn).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &txn, nil
}

func (r *repository) UpdateTransaction(ctx context.Context, txn *models.PaywayTransaction) error {
	return r.db.WithContext(ctx).Save(txn).Error
}

func (r *repository) ListUnsettledExpiredTransactions(ctx context.Context, limit int) ([]models.PaywayTransaction, error) {
	if limit <= 0 {
		limit = 250
	}
	var txns []models.PaywayTransaction
	if err := r.db.WithContext(ctx).
		Where("status IN ?", []string{"pending", "processing"}).
		Where("expires_at IS NOT NULL AND expires_at < ?", time.Now()).
		Order("expires_at ASC").
		Limit(limit).
		Find(&txns).Error; err != nil {
		return nil, err
	}
	return txns, nil
}

func (r *repository) FindPaymentByID(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	var payment models.Payment
	if err := r.db.WithContext(ctx).
		Preload("Student").
		Where("id = ?", id).
		First(&payment).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &payment, nil
}

func (r *repository) UpdatePayment(ctx context.Context, payment *models.Payment) error {
	return r.db.WithContext(ctx).Save(payment).Error
}

func (r *repository) CreatePushback(ctx context.Context, pushback *models.PaywayPushback) error {
	return r.db.WithContext(ctx).Create(pushback).Error
}
