package enums

import "fmt"

// PaymentMethod mirrors the collection channels the registrar accepts.
type PaymentMethod string

const (
	PaymentMethodCash         PaymentMethod = "cash"
	PaymentMethodBankTransfer PaymentMethod = "bank_transfer"
	PaymentMethodKHQR         PaymentMethod = "khqr"
	PaymentMethodABA          PaymentMethod = "aba"
	PaymentMethodAcleda       PaymentMethod = "acleda"
	PaymentMethodWing         PaymentMethod = "wing"
)

var validPaymentMethods = []PaymentMethod{
	PaymentMethodCash,
	PaymentMethodBankTransfer,
	PaymentMethodKHQR,
	PaymentMethodABA,
	PaymentMethodAcleda,
	PaymentMethodWing,
}

// String implements fmt.Stringer.
func (p PaymentMethod) String() string {
	return string(p)
}

// IsValid reports whether the value is known.
func (p PaymentMethod) IsValid() bool {
	for _, candidate := range validPaymentMethods {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParsePaymentMethod converts raw input into a PaymentMethod.
func ParsePaymentMethod(value string) (PaymentMethod, error) {
	for _, candidate := range validPaymentMethods {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment method %q", value)
}
