package client

import (
	"context"
	"fmt"

	"github.com/paketku/paketku/internal/errors"
	"github.com/paketku/paketku/internal/models"
)

// PurchaseClient settles package purchases over the supported payment rails.
type PurchaseClient struct {
	*baseClient
}

// NewPurchaseClient creates the settlement client.
func NewPurchaseClient(opts Options) *PurchaseClient {
	return &PurchaseClient{baseClient: newBaseClient(opts)}
}

// SettleWithBalance charges the package to the line's main balance.
func (c *PurchaseClient) SettleWithBalance(ctx context.Context, sess *models.Session, item models.PaymentItem) (*models.SettlementResult, error) {
	return c.settle(ctx, sess, "/purchase/balance", map[string]interface{}{
		"item": item,
	})
}

// SettleWithWallet routes the purchase through an e-wallet provider. Rails
// that require a routable wallet number (DANA, OVO) must pass one; the
// returned result carries the provider deeplink to finish payment in the
// wallet app.
func (c *PurchaseClient) SettleWithWallet(ctx context.Context, sess *models.Session, item models.PaymentItem, rail models.PaymentRail, walletNumber string) (*models.SettlementResult, error) {
	if !rail.IsWallet() {
		return nil, &errors.ErrRemoteAPI{
			Endpoint: "/purchase/wallet",
			Err:      fmt.Errorf("rail %s is not a wallet rail", rail),
		}
	}
	if rail.RequiresWalletNumber() && walletNumber == "" {
		return nil, &errors.ErrRemoteAPI{
			Endpoint: "/purchase/wallet",
			Err:      fmt.Errorf("rail %s requires a wallet number", rail),
		}
	}

	body := map[string]interface{}{
		"item": item,
		"rail": string(rail),
	}
	if walletNumber != "" {
		body["wallet_number"] = walletNumber
	}
	return c.settle(ctx, sess, "/purchase/wallet", body)
}

// SettleWithQRIS creates a QRIS payment for the package. The result carries
// the QR string to render and the transaction ID to poll.
func (c *PurchaseClient) SettleWithQRIS(ctx context.Context, sess *models.Session, item models.PaymentItem) (*models.SettlementResult, error) {
	return c.settle(ctx, sess, "/purchase/qris", map[string]interface{}{
		"item": item,
	})
}

func (c *PurchaseClient) settle(ctx context.Context, sess *models.Session, endpoint string, body map[string]interface{}) (*models.SettlementResult, error) {
	data, err := c.postJSON(ctx, c.baseURL, endpoint, sess, body)
	if err != nil {
		return nil, err
	}
	var result models.SettlementResult
	if err := decodeInto(data, endpoint, &result); err != nil {
		return nil, err
	}
	c.logger.InfoWithContext(ctx, "settlement submitted",
		"endpoint", endpoint,
		"status", result.Status)
	return &result, nil
}
