package shop

import (
	"fmt"
	"time"
)

// PaymentMethod is how a buyer pays for an item.
type PaymentMethod string

const (
	MethodNone     PaymentMethod = ""
	MethodStars    PaymentMethod = "stars"
	MethodTransfer PaymentMethod = "transfer"
)

// PurchaseIntent is the buyer's current selection.
type PurchaseIntent struct {
	BuyerID  int64         `json:"buyer_id"`
	Kind     Kind          `json:"kind"`
	ItemName string        `json:"item_name"`
	Method   PaymentMethod `json:"method,omitempty"`
	// AdminID is the admin who reviews a transfer receipt; zero means the configured fallback.
	AdminID int64 `json:"admin_id,omitempty"`
}

// HandshakeState tracks a manual-transfer confirmation.
type HandshakeState string

const (
	HandshakePending           HandshakeState = "pending"
	HandshakeConfirmingApprove HandshakeState = "confirming_approve"
	HandshakeConfirmingReject  HandshakeState = "confirming_reject"
	HandshakeReleased          HandshakeState = "released"
	HandshakeRejected          HandshakeState = "rejected"
	HandshakeExpired           HandshakeState = "expired"
)

// Terminal reports whether no further decision may be applied.
func (s HandshakeState) Terminal() bool {
	switch s {
	case HandshakeReleased, HandshakeRejected, HandshakeExpired:
		return true
	}
	return false
}

// Handshake is the buyer/bot/admin receipt confirmation. The buyer's session owns it;
// only AdminID may decide.
type Handshake struct {
	Token      string         `json:"token"`
	BuyerID    int64          `json:"buyer_id"`
	Kind       Kind           `json:"kind"`
	ItemName   string         `json:"item_name"`
	ReceiptRef string         `json:"receipt_ref"`
	AdminID    int64          `json:"admin_id"`
	Prompt     MessageRef     `json:"prompt"`
	Confirm    MessageRef     `json:"confirm,omitempty"`
	State      HandshakeState `json:"state"`
	OpenedAt   time.Time      `json:"opened_at"`
}

// InvoicePayload encodes the purchase into the invoice payload ("guide:Name").
func InvoicePayload(kind Kind, name string) string {
	return kind.String() + ":" + name
}

// ParseInvoicePayload is the inverse of InvoicePayload.
func ParseInvoicePayload(payload string) (Kind, string, error) {
	for i := 0; i < len(payload); i++ {
		if payload[i] == ':' {
			kind, err := ParseKind(payload[:i])
			if err != nil {
				return KindUnknown, "", err
			}
			if payload[i+1:] == "" {
				break
			}
			return kind, payload[i+1:], nil
		}
	}
	return KindUnknown, "", fmt.Errorf("shop: malformed invoice payload %q", payload)
}
