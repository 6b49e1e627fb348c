package pricing

import "context"

// MemoryRepo is a simple in-memory tier repository useful for tests and early
// development. Tiers are reference data, so a seeded in-memory copy is also a
// workable production fallback until the Postgres implementation lands.
type MemoryRepo struct {
	Tiers []PackageTier
}

// NewSeededMemoryRepo returns a MemoryRepo with the standard tier catalogue.
func NewSeededMemoryRepo() *MemoryRepo {
	return &MemoryRepo{Tiers: DefaultTiers()}
}

func (r *MemoryRepo) FindTier(ctx context.Context, id string) (PackageTier, bool, error) {
	_ = ctx
	for _, t := range r.Tiers {
		if t.ID == id {
			return t, true, nil
		}
	}
	return PackageTier{}, false, nil
}

func (r *MemoryRepo) ListTiers(ctx context.Context, campaignType CampaignType) ([]PackageTier, error) {
	_ = ctx
	var out []PackageTier
	for _, t := range r.Tiers {
		if t.Status != TierStatusActive {
			continue
		}
		if campaignType != "" && t.CampaignType != campaignType {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

// DefaultTiers is the seeded tier catalogue. Audience bounds are follower
// reach hints shown to advertisers, not enforced limits.
func DefaultTiers() []PackageTier {
	return []PackageTier{
		{ID: "basic", DisplayName: "Basic", CampaignType: CampaignTypeGeneral, UnitPriceMinor: 200_000, AudienceMin: 1_000, AudienceMax: 10_000, Status: TierStatusActive},
		{ID: "standard", DisplayName: "Standard", CampaignType: CampaignTypeGeneral, UnitPriceMinor: 300_000, AudienceMin: 10_000, AudienceMax: 50_000, Status: TierStatusActive},
		{ID: "premium", DisplayName: "Premium", CampaignType: CampaignTypeGeneral, UnitPriceMinor: 500_000, AudienceMin: 50_000, AudienceMax: 100_000, Status: TierStatusActive},
		{ID: "professional", DisplayName: "Professional", CampaignType: CampaignTypeGeneral, UnitPriceMinor: 800_000, AudienceMin: 100_000, AudienceMax: 500_000, Status: TierStatusActive},
		{ID: "enterprise", DisplayName: "Enterprise", CampaignType: CampaignTypeGeneral, UnitPriceMinor: 1_200_000, AudienceMin: 500_000, AudienceMax: 0, Status: TierStatusActive},

		{ID: "four_week_basic", DisplayName: "4-Week Basic", CampaignType: CampaignTypeFourWeek, UnitPriceMinor: 400_000, AudienceMin: 10_000, AudienceMax: 50_000, Status: TierStatusActive},
		{ID: "four_week_premium", DisplayName: "4-Week Premium", CampaignType: CampaignTypeFourWeek, UnitPriceMinor: 900_000, AudienceMin: 50_000, AudienceMax: 500_000, Status: TierStatusActive},

		{ID: "sale_basic", DisplayName: "Sale Basic", CampaignType: CampaignTypeSale, UnitPriceMinor: 150_000, AudienceMin: 1_000, AudienceMax: 10_000, Status: TierStatusActive},
		{ID: "sale_standard", DisplayName: "Sale Standard", CampaignType: CampaignTypeSale, UnitPriceMinor: 250_000, AudienceMin: 10_000, AudienceMax: 50_000, Status: TierStatusActive},
	}
}
