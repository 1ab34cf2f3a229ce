package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/sokpheng-dev/salapay-backend/pkg/enums"
)

// PaywayTransaction is one gateway-side attempt to collect a Payment. The
// unique payment_id column is what turns repeat QR requests into upserts
// instead of duplicate rows.
type PaywayTransaction struct {
	ID         uuid.UUID               `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	PaymentID  uuid.UUID               `gorm:"column:payment_id;type:uuid;not null;uniqueIndex:idx_payway_transactions_payment_id"`
	Payment    *Payment                `gorm:"foreignKey:PaymentID"`
	TranID     string                  `gorm:"column:tran_id;not null;index"`
	Amount     decimal.Decimal         `gorm:"column:amount;type:numeric(10,2);not null"`
	Status     enums.TransactionStatus `gorm:"column:status;type:transaction_status;not null;default:'pending';index"`
	QRString   *string                 `gorm:"column:qr_string"`
	QRURL      *string                 `gorm:"column:qr_url"`
	Deeplink   *string                 `gorm:"column:deeplink"`
	APV        *string                 `gorm:"column:apv"`
	PushbackID *uuid.UUID              `gorm:"column:pushback_id;type:uuid"`
	ExpiresAt  *time.Time              `gorm:"column:expires_at"`
	CreatedAt  time.Time               `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time               `gorm:"column:updated_at;autoUpdateTime"`
	DeletedAt  gorm.DeletedAt          `gorm:"column:deleted_at;index"`
}

// IsExpired reports whether the QR validity window has lapsed.
func (t *PaywayTransaction) IsExpired() bool {
	return t.ExpiresAt != nil && t.ExpiresAt.Before(time.Now())
}

// IsSettled reports whether the attempt reached a terminal state.
func (t *PaywayTransaction) IsSettled() bool {
	return t.Status.IsTerminal()
}
