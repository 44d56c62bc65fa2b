package models

import "fmt"

// PaymentRail represents a settlement method for a package purchase.
type PaymentRail string

const (
	RailBalance   PaymentRail = "BALANCE"
	RailQRIS      PaymentRail = "QRIS"
	RailDana      PaymentRail = "DANA"
	RailOVO       PaymentRail = "OVO"
	RailShopeePay PaymentRail = "SHOPEEPAY"
	RailGoPay     PaymentRail = "GOPAY"
)

// AllRails lists every supported payment rail.
func AllRails() []PaymentRail {
	return []PaymentRail{RailBalance, RailQRIS, RailDana, RailOVO, RailShopeePay, RailGoPay}
}

// ParseRail parses a rail name, case-sensitively matching the wire values.
func ParseRail(s string) (PaymentRail, error) {
	for _, r := range AllRails() {
		if string(r) == s {
			return r, nil
		}
	}
	return "", fmt.Errorf("unknown payment rail: %s", s)
}

// RequiresWalletNumber reports whether settlement on this rail needs a
// routable wallet phone number from the buyer.
func (r PaymentRail) RequiresWalletNumber() bool {
	return r == RailDana || r == RailOVO
}

// IsWallet reports whether the rail settles through an e-wallet provider.
func (r PaymentRail) IsWallet() bool {
	switch r {
	case RailDana, RailOVO, RailShopeePay, RailGoPay:
		return true
	}
	return false
}

// PaymentItem is one line item submitted to settlement.
type PaymentItem struct {
	ItemCode          string `json:"item_code"`
	ProductType       string `json:"product_type"`
	ItemPrice         int64  `json:"item_price"`
	ItemName          string `json:"item_name"`
	Tax               int64  `json:"tax"`
	TokenConfirmation string `json:"token_confirmation"`
}

// SettlementResult is the outcome of a purchase settlement.
type SettlementResult struct {
	Status        string `json:"status"`
	Message       string `json:"message,omitempty"`
	TransactionID string `json:"transaction_id,omitempty"`
	Deeplink      string `json:"deeplink,omitempty"`
	QRISCode      string `json:"qris_code,omitempty"`
}

// Succeeded reports whether the settlement completed.
func (r *SettlementResult) Succeeded() bool {
	return r != nil && r.Status == "SUCCESS"
}
