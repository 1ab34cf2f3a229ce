package payments

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sokpheng-dev/salapay-backend/pkg/enums"
)

// CreatePaymentInput captures a new receivable from the registrar.
type CreatePaymentInput struct {
	StudentID   *uuid.UUID
	Amount      decimal.Decimal
	Description string
	DueDate     time.Time
}

// TransactionSnapshot is the gateway-side view included in a status read.
type TransactionSnapshot struct {
	ID        uuid.UUID               `json:"id"`
	TranID    string                  `json:"tran_id"`
	Status    enums.TransactionStatus `json:"status"`
	APV       *string                 `json:"apv,omitempty"`
	ExpiresAt *time.Time              `json:"expires_at,omitempty"`
	Expired   bool                    `json:"expired"`
}

// PaymentStatus is the polling view a payer or the front office reads while
// waiting for the pushback to land.
type PaymentStatus struct {
	PaymentID     uuid.UUID            `json:"payment_id"`
	PaymentCode   string               `json:"payment_code"`
	Amount        decimal.Decimal      `json:"amount"`
	Status        enums.PaymentStatus  `json:"status"`
	PaymentMethod *enums.PaymentMethod `json:"payment_method,omitempty"`
	KHQRReference *string              `json:"khqr_reference,omitempty"`
	PaidAt        *time.Time           `json:"paid_at,omitempty"`
	DueDate       time.Time            `json:"due_date"`
	Transaction   *TransactionSnapshot `json:"transaction,omitempty"`
}
