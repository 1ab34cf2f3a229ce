package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// PaywayPushback is the append-only log of inbound gateway webhooks. One row
// per delivery attempt, written before any validation and never mutated.
type PaywayPushback struct {
	ID            uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	TranID        string          `gorm:"column:tran_id;not null;index"`
	APV           *string         `gorm:"column:apv"`
	StatusCode    int             `gorm:"column:status;not null;index"`
	StatusMessage *string         `gorm:"column:status_message"`
	ReturnParams  *string         `gorm:"column:return_params"`
	Data          json.RawMessage `gorm:"column:data;type:jsonb;not null"`
	CreatedAt     time.Time       `gorm:"column:created_at;autoCreateTime"`
}

// IsSuccessful reports whether the gateway settled the transaction.
// PayWay uses status code 0 for success; everything else is a failure.
func (p *PaywayPushback) IsSuccessful() bool {
	return p.StatusCode == 0
}
