package payments

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sokpheng-dev/salapay-backend/pkg/db"
	"github.com/sokpheng-dev/salapay-backend/pkg/db/models"
	"github.com/sokpheng-dev/salapay-backend/pkg/enums"
	pkgerrors "github.com/sokpheng-dev/salapay-backend/pkg/errors"
	"github.com/sokpheng-dev/salapay-backend/pkg/logger"
)

const codeRetryAttempts = 3

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// ServiceParams wires the payments service.
type ServiceParams struct {
	Repo     Repository
	TxRunner txRunner
	Logger   *logger.Logger
	Now      func() time.Time
}

// Service issues payment codes and answers status reads.
type Service struct {
	repo     Repository
	txRunner txRunner
	log      *logger.Logger
	now      func() time.Time
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "payments repo required")
	}
	if params.TxRunner == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		repo:     params.Repo,
		txRunner: params.TxRunner,
		log:      params.Logger,
		now:      now,
	}, nil
}

// Create issues a new receivable with a sequential monthly payment code.
// Two registrars creating payments in the same instant can race the code
// sequence; the unique constraint rejects the loser and we recompute.
func (s *Service) Create(ctx context.Context, input CreatePaymentInput) (*models.Payment, error) {
	if !input.Amount.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must be greater than zero")
	}
	if input.DueDate.IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "due date is required")
	}
	if input.StudentID != nil {
		student, err := s.repo.FindStudentByID(ctx, *input.StudentID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load student")
		}
		if student == nil {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "student not found")
		}
	}

	var created *models.Payment
	var lastErr error
	for attempt := 0; attempt < codeRetryAttempts; attempt++ {
		lastErr = s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
			repo := s.repo.WithTx(tx)
			code, err := s.nextPaymentCode(ctx, repo)
			if err != nil {
				return err
			}
			payment := &models.Payment{
				PaymentCode: code,
				StudentID:   input.StudentID,
				Amount:      input.Amount,
				Status:      enums.PaymentStatusPending,
				DueDate:     input.DueDate,
			}
			if input.Description != "" {
				description := input.Description
				payment.Description = &description
			}
			if err := repo.Create(ctx, payment); err != nil {
				return err
			}
			created = payment
			return nil
		})
		if lastErr == nil {
			s.log.Info(s.log.WithPaymentCode(ctx, created.PaymentCode), "payment created")
			return created, nil
		}
		if !db.IsUniqueViolation(lastErr, "payments_payment_code") {
			break
		}
	}
	if db.IsUniqueViolation(lastErr, "payments_payment_code") {
		return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, lastErr, "payment code contention")
	}
	return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, lastErr, "create payment")
}

// FindForCollection loads a payment that is still collectible: it must exist
// and must not already be settled. QR generation callers rely on this check.
func (s *Service) FindForCollection(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	payment, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment")
	}
	if payment == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment not found")
	}
	if payment.IsPaid() {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "payment is already settled")
	}
	if payment.Status == enums.PaymentStatusCancelled {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "payment is cancelled")
	}
	return payment, nil
}

// GetStatus returns the polling view: the payment plus its current gateway
// transaction, if one was ever started.
func (s *Service) GetStatus(ctx context.Context, id uuid.UUID) (*PaymentStatus, error) {
	payment, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment")
	}
	if payment == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment not found")
	}

	status := &PaymentStatus{
		PaymentID:     payment.ID,
		PaymentCode:   payment.PaymentCode,
		Amount:        payment.Amount,
		Status:        payment.Status,
		PaymentMethod: payment.PaymentMethod,
		KHQRReference: payment.KHQRReference,
		PaidAt:        payment.PaidAt,
		DueDate:       payment.DueDate,
	}

	txn, err := s.repo.CurrentTransaction(ctx, payment.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load gateway transaction")
	}
	if txn != nil {
		status.Transaction = &TransactionSnapshot{
			ID:        txn.ID,
			TranID:    txn.TranID,
			Status:    txn.Status,
			APV:       txn.APV,
			ExpiresAt: txn.ExpiresAt,
			Expired:   txn.IsExpired(),
		}
	}
	return status, nil
}

// nextPaymentCode issues PAY{YYYY}{MM}-NNNN, sequential within the month.
func (s *Service) nextPaymentCode(ctx context.Context, repo Repository) (string, error) {
	prefix := s.now().Format("PAY200601") + "-"
	last, err := repo.LastCodeWithPrefix(ctx, prefix)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read last payment code")
	}
	sequence := 1
	if last != "" {
		suffix := strings.TrimPrefix(last, prefix)
		parsed, parseErr := strconv.Atoi(suffix)
		if parseErr != nil {
			return "", pkgerrors.Wrap(pkgerrors.CodeInternal, parseErr, "parse last payment code")
		}
		sequence = parsed + 1
	}
	return fmt.Sprintf("%s%04d", prefix, sequence), nil
}
