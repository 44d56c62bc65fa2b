package models

import "time"

// Profile is the subscriber profile returned by the remote API.
type Profile struct {
	PhoneNumber      string           `json:"phone_number"`
	SubscriberID     string           `json:"subscriber_id"`
	SubscriptionType SubscriptionType `json:"subscription_type"`
}

// Balance is the main credit balance of a line.
type Balance struct {
	Remaining int64 `json:"remaining"`
	ExpiredAt int64 `json:"expired_at"` // unix seconds, 0 when absent
}

// QuotaBenefit is one benefit bucket inside an active package.
type QuotaBenefit struct {
	Name      string `json:"name"`
	DataType  string `json:"data_type"`
	Total     int64  `json:"total"`
	Remaining int64  `json:"remaining"`
}

// ActivePackage is one package currently attached to the line.
type ActivePackage struct {
	Name       string         `json:"name"`
	ExpiredAt  int64          `json:"expired_at"`
	Benefits   []QuotaBenefit `json:"benefits"`
	FamilyCode string         `json:"family_code,omitempty"`
}

// Transaction is one entry of the purchase history.
type Transaction struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Price     int64     `json:"price"`
	Status    string    `json:"status"`
	Method    string    `json:"method"`
	Timestamp time.Time `json:"timestamp"`
}

// PlanMember is one member of a shared plan (family plan or circle).
type PlanMember struct {
	Alias       string `json:"alias"`
	PhoneNumber string `json:"phone_number"`
	IsOwner     bool   `json:"is_owner"`
	QuotaUsed   int64  `json:"quota_used"`
	QuotaTotal  int64  `json:"quota_total"`
}

// SharedPlan describes a family plan or circle group for the line.
type SharedPlan struct {
	Name      string       `json:"name"`
	PlanType  string       `json:"plan_type"` // "FAMILY" or "CIRCLE"
	Members   []PlanMember `json:"members"`
	ExpiredAt int64        `json:"expired_at"`
}

// PackageVariant is one variant inside a package family.
type PackageVariant struct {
	Name    string          `json:"name"`
	Options []PackageOption `json:"options"`
}

// PackageOption is one purchasable option inside a variant.
type PackageOption struct {
	Name  string `json:"name"`
	Code  string `json:"code"`
	Price int64  `json:"price"`
	Order int    `json:"order"`
}

// PackageFamily is a browsable group of package variants.
type PackageFamily struct {
	Code       string           `json:"code"`
	Name       string           `json:"name"`
	PaymentFor string           `json:"payment_for"`
	Variants   []PackageVariant `json:"variants"`
}

// PackageDetail is the full detail of one purchasable option, including the
// confirmation token required by settlement.
type PackageDetail struct {
	Family            PackageFamily `json:"package_family"`
	Option            PackageOption `json:"package_option"`
	TokenConfirmation string        `json:"token_confirmation"`
}

// Banner action types as delivered by the store segments endpoint. PDP links
// a single option, PLP links a whole family.
const (
	BannerActionDetail = "PDP"
	BannerActionFamily = "PLP"
)

// SegmentBanner is one promoted entry inside a store segment.
type SegmentBanner struct {
	Title           string `json:"title"`
	DiscountedPrice int64  `json:"discounted_price"`
	ActionType      string `json:"action_type"`
	ActionParam     string `json:"action_param"`
}

// StoreSegment is one promo shelf of the vendor store.
type StoreSegment struct {
	Title   string          `json:"title"`
	Banners []SegmentBanner `json:"banners"`
}
