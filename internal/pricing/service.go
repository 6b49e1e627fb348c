package pricing

import (
	"context"
	"errors"
)

// Service computes billing quotes from package tiers and creator counts.
//
// Contract:
// - Quote is a pure function of (unit price, creator count, campaign type)
//   under a fixed Policy; calling it twice returns identical results.
// - Rounding order is part of the contract: the volume discount is floored,
//   VAT is rounded half-up on the post-discount base, and the creator reward
//   is floored on the unit price. Reordering these shifts totals by one minor
//   unit at boundary values.
type Service struct {
	repo     TierRepository
	policy   Policy
	currency string
}

func NewService(repo TierRepository, policy Policy, currency string) *Service {
	if currency == "" {
		currency = "KRW"
	}
	return &Service{repo: repo, policy: policy.withDefaults(), currency: currency}
}

// Policy holds the pricing constants that are configuration, not code.
type Policy struct {
	// VolumeDiscountThresholdMinor is the pre-VAT subtotal at which the
	// volume discount starts to apply.
	VolumeDiscountThresholdMinor int64

	// VolumeDiscountRateBP is the discount rate in basis points.
	VolumeDiscountRateBP int64
}

func (p Policy) withDefaults() Policy {
	out := p
	if out.VolumeDiscountThresholdMinor <= 0 {
		out.VolumeDiscountThresholdMinor = 10_000_000
	}
	if out.VolumeDiscountRateBP <= 0 {
		out.VolumeDiscountRateBP = 500
	}
	return out
}

// VAT and reward rates are statutory/contractual, not tunable per deployment.
const (
	vatRateBP    = 1_000
	rewardRateBP = 6_000
)

var (
	ErrInvalidInput = errors.New("pricing: invalid input")
	ErrTierNotFound = errors.New("pricing: tier not found")
)

type QuoteRequest struct {
	UnitPriceMinor int64
	CreatorCount   int
	CampaignType   CampaignType
}

// Quote computes a billing quote. Pure: no I/O, no clock.
func (s *Service) Quote(req QuoteRequest) (Quote, error) {
	if req.UnitPriceMinor <= 0 || req.CreatorCount <= 0 {
		return Quote{}, ErrInvalidInput
	}
	if !req.CampaignType.Valid() {
		return Quote{}, ErrInvalidInput
	}

	subtotal := req.UnitPriceMinor * int64(req.CreatorCount)

	// The 4-week and sale campaign variants deliberately exclude the volume
	// discount; only the general type qualifies.
	var rateBP int64
	if req.CampaignType == CampaignTypeGeneral && subtotal >= s.policy.VolumeDiscountThresholdMinor {
		rateBP = s.policy.VolumeDiscountRateBP
	}
	discount := floorRate(subtotal, rateBP)

	taxable := subtotal - discount
	vat := roundHalfUpRate(taxable, vatRateBP)

	return Quote{
		CampaignType:          req.CampaignType,
		Currency:              s.currency,
		UnitPriceMinor:        req.UnitPriceMinor,
		CreatorCount:          req.CreatorCount,
		SubtotalMinor:         subtotal,
		DiscountRateBP:        rateBP,
		DiscountMinor:         discount,
		TaxableBaseMinor:      taxable,
		VATMinor:              vat,
		TotalMinor:            taxable + vat,
		RewardPerCreatorMinor: floorRate(req.UnitPriceMinor, rewardRateBP),
	}, nil
}

// QuoteForTier resolves a package tier and computes its quote.
func (s *Service) QuoteForTier(ctx context.Context, tierID string, creatorCount int) (Quote, error) {
	if tierID == "" || creatorCount <= 0 {
		return Quote{}, ErrInvalidInput
	}
	if s.repo == nil {
		return Quote{}, errors.New("pricing: tier repository not configured")
	}

	tier, ok, err := s.repo.FindTier(ctx, tierID)
	if err != nil {
		return Quote{}, err
	}
	if !ok || tier.Status != TierStatusActive {
		return Quote{}, ErrTierNotFound
	}

	return s.Quote(QuoteRequest{
		UnitPriceMinor: tier.UnitPriceMinor,
		CreatorCount:   creatorCount,
		CampaignType:   tier.CampaignType,
	})
}

// ListTiers returns active tiers, optionally filtered by campaign type.
func (s *Service) ListTiers(ctx context.Context, campaignType CampaignType) ([]PackageTier, error) {
	if s.repo == nil {
		return nil, errors.New("pricing: tier repository not configured")
	}
	if campaignType != "" && !campaignType.Valid() {
		return nil, ErrInvalidInput
	}
	return s.repo.ListTiers(ctx, campaignType)
}

// TierRepository abstracts package tier persistence.
// Implementation can be Postgres, cached, etc.
type TierRepository interface {
	FindTier(ctx context.Context, id string) (PackageTier, bool, error)
	// ListTiers returns active tiers; empty campaignType means all types.
	ListTiers(ctx context.Context, campaignType CampaignType) ([]PackageTier, error)
}

// floorRate applies a basis-point rate, truncating toward zero.
func floorRate(amountMinor, rateBP int64) int64 {
	return amountMinor * rateBP / 10_000
}

// roundHalfUpRate applies a basis-point rate, rounding half up.
func roundHalfUpRate(amountMinor, rateBP int64) int64 {
	return (amountMinor*rateBP + 5_000) / 10_000
}
