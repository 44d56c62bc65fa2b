package client

import (
	"context"
	"encoding/json"

	"github.com/paketku/paketku/internal/errors"
	"github.com/paketku/paketku/internal/models"
)

// SubscriberClient reads subscriber data: profile, balance, quotas, package
// catalog, history, and shared plans. Every call requires a live session.
type SubscriberClient struct {
	*baseClient
}

// NewSubscriberClient creates the subscriber data client.
func NewSubscriberClient(opts Options) *SubscriberClient {
	return &SubscriberClient{baseClient: newBaseClient(opts)}
}

func decodeInto(data json.RawMessage, endpoint string, dst interface{}) error {
	if err := json.Unmarshal(data, dst); err != nil {
		return &errors.ErrRemoteAPI{Endpoint: endpoint, Err: err}
	}
	return nil
}

// FetchProfile returns the subscriber profile for the session's line.
func (c *SubscriberClient) FetchProfile(ctx context.Context, sess *models.Session) (*models.Profile, error) {
	data, err := c.postJSON(ctx, c.baseURL, "/subscriber/profile", sess, map[string]string{
		"subscriber_id": sess.SubscriberID,
	})
	if err != nil {
		return nil, err
	}
	var profile models.Profile
	if err := decodeInto(data, "/subscriber/profile", &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

// GetBalance returns the remaining main balance and its expiry.
func (c *SubscriberClient) GetBalance(ctx context.Context, sess *models.Session) (*models.Balance, error) {
	data, err := c.postJSON(ctx, c.baseURL, "/subscriber/balance", sess, map[string]string{
		"subscriber_id": sess.SubscriberID,
	})
	if err != nil {
		return nil, err
	}
	var balance models.Balance
	if err := decodeInto(data, "/subscriber/balance", &balance); err != nil {
		return nil, err
	}
	return &balance, nil
}

// GetQuotas returns the packages currently attached to the line with their
// benefit buckets.
func (c *SubscriberClient) GetQuotas(ctx context.Context, sess *models.Session) ([]models.ActivePackage, error) {
	data, err := c.postJSON(ctx, c.baseURL, "/subscriber/quotas", sess, map[string]string{
		"subscriber_id": sess.SubscriberID,
	})
	if err != nil {
		return nil, err
	}
	var result struct {
		Packages []models.ActivePackage `json:"packages"`
	}
	if err := decodeInto(data, "/subscriber/quotas", &result); err != nil {
		return nil, err
	}
	return result.Packages, nil
}

// GetFamilyPackages returns the browsable variants of one package family.
func (c *SubscriberClient) GetFamilyPackages(ctx context.Context, sess *models.Session, familyCode string, isEnterprise bool) (*models.PackageFamily, error) {
	data, err := c.postJSON(ctx, c.baseURL, "/packages/family", sess, map[string]interface{}{
		"family_code":   familyCode,
		"is_enterprise": isEnterprise,
	})
	if err != nil {
		return nil, err
	}
	var family models.PackageFamily
	if err := decodeInto(data, "/packages/family", &family); err != nil {
		return nil, err
	}
	return &family, nil
}

// GetPackageDetail returns the full detail of one purchasable option,
// including the confirmation token settlement requires.
func (c *SubscriberClient) GetPackageDetail(ctx context.Context, sess *models.Session, optionCode string) (*models.PackageDetail, error) {
	data, err := c.postJSON(ctx, c.baseURL, "/packages/detail", sess, map[string]string{
		"option_code": optionCode,
	})
	if err != nil {
		return nil, err
	}
	var detail models.PackageDetail
	if err := decodeInto(data, "/packages/detail", &detail); err != nil {
		return nil, err
	}
	return &detail, nil
}

// GetStoreSegments returns the promo shelves of the vendor store.
func (c *SubscriberClient) GetStoreSegments(ctx context.Context, sess *models.Session, isEnterprise bool) ([]models.StoreSegment, error) {
	data, err := c.postJSON(ctx, c.baseURL, "/packages/segments", sess, map[string]interface{}{
		"is_enterprise": isEnterprise,
	})
	if err != nil {
		return nil, err
	}
	var result struct {
		Segments []models.StoreSegment `json:"store_segments"`
	}
	if err := decodeInto(data, "/packages/segments", &result); err != nil {
		return nil, err
	}
	return result.Segments, nil
}

// GetTransactionHistory returns the purchase history, newest first.
func (c *SubscriberClient) GetTransactionHistory(ctx context.Context, sess *models.Session) ([]models.Transaction, error) {
	data, err := c.postJSON(ctx, c.baseURL, "/subscriber/transactions", sess, map[string]string{
		"subscriber_id": sess.SubscriberID,
	})
	if err != nil {
		return nil, err
	}
	var result struct {
		Transactions []models.Transaction `json:"transactions"`
	}
	if err := decodeInto(data, "/subscriber/transactions", &result); err != nil {
		return nil, err
	}
	return result.Transactions, nil
}

// GetFamilyPlan returns the family plan group the line belongs to, or an API
// failure when the line has none.
func (c *SubscriberClient) GetFamilyPlan(ctx context.Context, sess *models.Session) (*models.SharedPlan, error) {
	return c.getSharedPlan(ctx, sess, "/subscriber/family-plan")
}

// GetCircle returns the circle group the line belongs to.
func (c *SubscriberClient) GetCircle(ctx context.Context, sess *models.Session) (*models.SharedPlan, error) {
	return c.getSharedPlan(ctx, sess, "/subscriber/circle")
}

func (c *SubscriberClient) getSharedPlan(ctx context.Context, sess *models.Session, endpoint string) (*models.SharedPlan, error) {
	data, err := c.postJSON(ctx, c.baseURL, endpoint, sess, map[string]string{
		"subscriber_id": sess.SubscriberID,
	})
	if err != nil {
		return nil, err
	}
	var plan models.SharedPlan
	if err := decodeInto(data, endpoint, &plan); err != nil {
		return nil, err
	}
	return &plan, nil
}
