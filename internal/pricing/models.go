package pricing

import "time"

// Amounts are expressed in minor currency units using int64. The billing
// currency has no fractional units, so one minor unit is one won.

// CampaignType selects the pricing rules that apply to a campaign.
type CampaignType string

const (
	CampaignTypeGeneral  CampaignType = "general"
	CampaignTypeFourWeek CampaignType = "four_week"
	CampaignTypeSale     CampaignType = "sale"
)

func (t CampaignType) Valid() bool {
	switch t {
	case CampaignTypeGeneral, CampaignTypeFourWeek, CampaignTypeSale:
		return true
	default:
		return false
	}
}

// PackageTier is immutable reference data: a pricing bucket with a fixed unit
// price per creator. Tiers are created and updated only by configuration,
// never by the billing flow.
type PackageTier struct {
	ID          string `json:"id" db:"id"`
	DisplayName string `json:"display_name" db:"display_name"`

	CampaignType CampaignType `json:"campaign_type" db:"campaign_type"`

	// UnitPriceMinor is the per-creator package price.
	UnitPriceMinor int64 `json:"unit_price_minor" db:"unit_price_minor"`

	// Audience bounds are descriptive hints (expected follower reach),
	// not enforced limits.
	AudienceMin int `json:"audience_min" db:"audience_min"`
	AudienceMax int `json:"audience_max" db:"audience_max"`

	Status TierStatus `json:"status" db:"status"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

type TierStatus string

const (
	TierStatusActive   TierStatus = "active"
	TierStatusInactive TierStatus = "inactive"
)

// Quote is a derived value, never stored. Its total must be reproducible
// byte-for-byte from (unit price, creator count, campaign type) under a fixed
// policy; nothing random or time-dependent feeds the calculation.
type Quote struct {
	CampaignType CampaignType `json:"campaign_type"`
	Currency     string       `json:"currency"`

	UnitPriceMinor int64 `json:"unit_price_minor"`
	CreatorCount   int   `json:"creator_count"`

	SubtotalMinor int64 `json:"subtotal_minor"`

	DiscountRateBP int64 `json:"discount_rate_bp"`
	DiscountMinor  int64 `json:"discount_minor"`

	TaxableBaseMinor int64 `json:"taxable_base_minor"`
	VATMinor         int64 `json:"vat_minor"`
	TotalMinor       int64 `json:"total_minor"`

	// RewardPerCreatorMinor is the creator payout share of the unit price.
	RewardPerCreatorMinor int64 `json:"reward_per_creator_minor"`
}
