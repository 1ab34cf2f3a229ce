package payway

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/base64"
)

// Hash placeholders PayWay expects even when the feature is unused. Order and
// exact serialization are part of the wire contract; an empty string is still
// a field.
const (
	purchaseType     = "purchase"
	currencyUSD      = "USD"
	emptyCancelURL   = ""
	emptyCustomField = ""
	emptyPayout      = ""
	emptyLifetime    = ""
	emptyAdditional  = ""
	emptyGooglePay   = ""
)

// Signer computes PayWay request signatures: HMAC-SHA512 over the
// concatenated ordered fields, base64 of the raw MAC.
type Signer struct {
	apiKey []byte
}

func NewSigner(apiKey string) *Signer {
	return &Signer{apiKey: []byte(apiKey)}
}

// Sign concatenates the fields in the given order with no separator and
// returns the encoded MAC. Callers own the field order; the signer never
// knows which operation it is signing.
func (s *Signer) Sign(orderedFields []string) string {
	mac := hmac.New(sha512.New, s.apiKey)
	for _, field := range orderedFields {
		mac.Write([]byte(field))
	}
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// PurchaseHashFields fixes the field order for the purchase / KHQR request
// hash at compile time. Fields the integration never sets (cancel URL,
// payout, lifetime, additional params, Google Pay token) are pinned to the
// empty placeholders PayWay still hashes over.
type PurchaseHashFields struct {
	ReqTime            string
	MerchantID         string
	TranID             string
	Amount             string
	Items              string
	Shipping           string
	FirstName          string
	LastName           string
	Email              string
	Phone              string
	PaymentOption      string
	ReturnURL          string
	ContinueSuccessURL string
	ReturnDeeplink     string
	ReturnParams       string
}

func (f PurchaseHashFields) Ordered() []string {
	return []string{
		f.ReqTime,
		f.MerchantID,
		f.TranID,
		f.Amount,
		f.Items,
		f.Shipping,
		f.FirstName,
		f.LastName,
		f.Email,
		f.Phone,
		purchaseType,
		f.PaymentOption,
		f.ReturnURL,
		emptyCancelURL,
		f.ContinueSuccessURL,
		f.ReturnDeeplink,
		currencyUSD,
		emptyCustomField,
		f.ReturnParams,
		emptyPayout,
		emptyLifetime,
		emptyAdditional,
		emptyGooglePay,
	}
}

// StatusCheckHashFields fixes the much shorter field order for the
// check-transaction request hash.
type StatusCheckHashFields struct {
	ReqTime    string
	MerchantID string
	TranID     string
}

func (f StatusCheckHashFields) Ordered() []string {
	return []string{f.ReqTime, f.MerchantID, f.TranID}
}
