package payway

import (
	"encoding/base64"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CustomerInfo are the optional payer fields forwarded to PayWay. Blank name
// and phone fields fall back to the linked student record; email is only
// ever caller-supplied.
type CustomerInfo struct {
	FirstName string
	LastName  string
	Email     string
	Phone     string
}

// QRResult is the caller-facing outcome of a QR generation attempt. Success
// is always set; Message carries the operator-facing detail only on failure.
type QRResult struct {
	Success       bool            `json:"success"`
	TransactionID uuid.UUID       `json:"transaction_id"`
	TranID        string          `json:"tran_id"`
	Amount        decimal.Decimal `json:"amount"`
	QRString      *string         `json:"qr_string,omitempty"`
	QRImageURL    *string         `json:"qr_image_url,omitempty"`
	Deeplink      *string         `json:"deeplink,omitempty"`
	ExpiresAt     *time.Time      `json:"expires_at,omitempty"`
	PaymentCode   string          `json:"payment_code"`
	Message       string          `json:"message,omitempty"`
}

// returnParams is the opaque correlation blob we hand PayWay and expect back
// unchanged on the pushback. It rides the wire as base64 of its JSON form.
type returnParams struct {
	TransactionUUID string `json:"transaction_uuid"`
	PaymentUUID     string `json:"payment_uuid"`
}

func (p returnParams) encode() string {
	raw, _ := json.Marshal(p)
	return base64.StdEncoding.EncodeToString(raw)
}

func decodeReturnParams(encoded string) (returnParams, error) {
	var params returnParams
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return params, err
	}
	if err := json.Unmarshal(raw, &params); err != nil {
		return params, err
	}
	return params, nil
}

// deeplinkPayload is the base64 JSON blob the mobile apps use to return to
// the school portal after an in-app payment.
type deeplinkPayload struct {
	AndroidScheme string `json:"android_scheme"`
	IOSScheme     string `json:"ios_scheme"`
}

func (p deeplinkPayload) encode() string {
	raw, _ := json.Marshal(p)
	return base64.StdEncoding.EncodeToString(raw)
}

// lineItem mirrors PayWay's item descriptor; the gateway renders these on
// the checkout page.
type lineItem struct {
	Name     string `json:"name"`
	Price    string `json:"price"`
	Quantity int    `json:"quantity"`
}

func encodeItems(items []lineItem) string {
	raw, _ := json.Marshal(items)
	return base64.StdEncoding.EncodeToString(raw)
}
