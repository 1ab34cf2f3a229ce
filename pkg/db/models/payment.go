package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/sokpheng-dev/salapay-backend/pkg/enums"
)

// Payment is one receivable owed by a student. The gateway subsystem only
// ever flips its status through the pushback path; amount is immutable once
// a PaywayTransaction exists against it.
type Payment struct {
	ID            uuid.UUID            `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	PaymentCode   string               `gorm:"column:payment_code;not null;unique"`
	StudentID     *uuid.UUID           `gorm:"column:student_id;type:uuid;index"`
	Student       *Student             `gorm:"foreignKey:StudentID"`
	Amount        decimal.Decimal      `gorm:"column:amount;type:numeric(10,2);not null"`
	Description   *string              `gorm:"column:description"`
	PaymentMethod *enums.PaymentMethod `gorm:"column:payment_method;type:payment_method"`
	Status        enums.PaymentStatus  `gorm:"column:status;type:payment_status;not null;default:'pending';index"`
	KHQRReference *string              `gorm:"column:khqr_reference"`
	PaymentDate   *time.Time           `gorm:"column:payment_date"`
	DueDate       time.Time            `gorm:"column:due_date;not null"`
	PaidAt        *time.Time           `gorm:"column:paid_at"`
	CreatedAt     time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time            `gorm:"column:updated_at;autoUpdateTime"`
	DeletedAt     gorm.DeletedAt       `gorm:"column:deleted_at;index"`
}

// IsPaid reports whether the receivable has settled.
func (p *Payment) IsPaid() bool {
	return p.Status == enums.PaymentStatusPaid
}

// IsOverdue reports whether the receivable is past due without settlement.
func (p *Payment) IsOverdue() bool {
	if p.Status == enums.PaymentStatusOverdue {
		return true
	}
	return p.Status == enums.PaymentStatusPending && p.DueDate.Before(time.Now())
}
