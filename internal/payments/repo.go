package payments

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sokpheng-dev/salapay-backend/pkg/db/models"
)

// Repository handles payment persistence.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, payment *models.Payment) error
	Update(ctx context.Context, payment *models.Payment) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Payment, error)
	FindByCode(ctx context.Context, code string) (*models.Payment, error)
	LastCodeWithPrefix(ctx context.Context, prefix string) (string, error)
	CurrentTransaction(ctx context.Context, paymentID uuid.UUID) (*models.PaywayTransaction, error)
	FindStudentByID(ctx context.Context, id uuid.UUID) (*models.Student, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a payments repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, payment *models.Payment) error {
	return r.db.WithContext(ctx).Create(payment).Error
}

func (r *repository) Update(ctx context.Context, payment *models.Payment) error {
	return r.db.WithContext(ctx).Save(payment).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
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

func (r *repository) FindByCode(ctx context.Context, code string) (*models.Payment, error) {
	if code == "" {
		return nil, nil
	}
	var payment models.Payment
	if err := r.db.WithContext(ctx).
		Preload("Student").
		Where("payment_code = ?", code).
		First(&payment).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &payment, nil
}

// LastCodeWithPrefix returns the highest issued payment code under the given
// monthly prefix, or "" when the month has no payments yet.
func (r *repository) LastCodeWithPrefix(ctx context.Context, prefix string) (string, error) {
	var payment models.Payment
	err := r.db.WithContext(ctx).
		Where("payment_code LIKE ?", prefix+"%").
		Order("payment_code DESC").
		First(&payment).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return "", nil
		}
		return "", err
	}
	return payment.PaymentCode, nil
}

// CurrentTransaction returns the payment's gateway attempt, if any. The
// unique payment_id constraint keeps this at most one row.
func (r *repository) CurrentTransaction(ctx context.Context, paymentID uuid.UUID) (*models.PaywayTransaction, error) {
	var txn models.PaywayTransaction
	if err := r.db.WithContext(ctx).
		Where("payment_id = ?", paymentID).
		Order("created_at DESC").
		First(&txn).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &txn, nil
}

func (r *repository) FindStudentByID(ctx context.Context, id uuid.UUID) (*models.Student, error) {
	var student models.Student
	if err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&student).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &student, nil
}
