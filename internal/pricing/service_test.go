package pricing

import (
	"context"
	"testing"
)

func newTestService() *Service {
	return NewService(NewSeededMemoryRepo(), Policy{}, "KRW")
}

func TestQuote_RejectsInvalidInput(t *testing.T) {
	svc := newTestService()

	if _, err := svc.Quote(QuoteRequest{UnitPriceMinor: 0, CreatorCount: 1, CampaignType: CampaignTypeGeneral}); err != ErrInvalidInput {
		t.Fatalf("expected ErrInvalidInput for zero unit price, got %v", err)
	}
	if _, err := svc.Quote(QuoteRequest{UnitPriceMinor: -100, CreatorCount: 1, CampaignType: CampaignTypeGeneral}); err != ErrInvalidInput {
		t.Fatalf("expected ErrInvalidInput for negative unit price, got %v", err)
	}
	if _, err := svc.Quote(QuoteRequest{UnitPriceMinor: 100, CreatorCount: 0, CampaignType: CampaignTypeGeneral}); err != ErrInvalidInput {
		t.Fatalf("expected ErrInvalidInput for zero creators, got %v", err)
	}
	if _, err := svc.Quote(QuoteRequest{UnitPriceMinor: 100, CreatorCount: 1, CampaignType: "weekly"}); err != ErrInvalidInput {
		t.Fatalf("expected ErrInvalidInput for unknown campaign type, got %v", err)
	}
}

func TestQuote_EndToEnd(t *testing.T) {
	svc := newTestService()

	q, err := svc.Quote(QuoteRequest{UnitPriceMinor: 300_000, CreatorCount: 10, CampaignType: CampaignTypeGeneral})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q.SubtotalMinor != 3_000_000 {
		t.Fatalf("expected subtotal 3000000, got %d", q.SubtotalMinor)
	}
	if q.DiscountMinor != 0 {
		t.Fatalf("expected no discount, got %d", q.DiscountMinor)
	}
	if q.VATMinor != 300_000 {
		t.Fatalf("expected vat 300000, got %d", q.VATMinor)
	}
	if q.TotalMinor != 3_300_000 {
		t.Fatalf("expected total 3300000, got %d", q.TotalMinor)
	}
	if q.RewardPerCreatorMinor != 180_000 {
		t.Fatalf("expected reward 180000, got %d", q.RewardPerCreatorMinor)
	}
}

func TestQuote_Deterministic(t *testing.T) {
	svc := newTestService()
	req := QuoteRequest{UnitPriceMinor: 333_333, CreatorCount: 7, CampaignType: CampaignTypeGeneral}

	a, err := svc.Quote(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, err := svc.Quote(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a != b {
		t.Fatalf("expected identical quotes, got %+v vs %+v", a, b)
	}
}

func TestQuote_DiscountBoundary(t *testing.T) {
	svc := newTestService()

	// One minor unit below the threshold: no discount.
	q, err := svc.Quote(QuoteRequest{UnitPriceMinor: 9_999_999, CreatorCount: 1, CampaignType: CampaignTypeGeneral})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q.DiscountMinor != 0 {
		t.Fatalf("expected no discount below threshold, got %d", q.DiscountMinor)
	}

	// Exactly at the threshold: 5% floored.
	q, err = svc.Quote(QuoteRequest{UnitPriceMinor: 1_000_000, CreatorCount: 10, CampaignType: CampaignTypeGeneral})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q.DiscountMinor != 500_000 {
		t.Fatalf("expected discount 500000 at threshold, got %d", q.DiscountMinor)
	}
	if q.TaxableBaseMinor != 9_500_000 {
		t.Fatalf("expected taxable base 9500000, got %d", q.TaxableBaseMinor)
	}
}

func TestQuote_FourWeekExcludesVolumeDiscount(t *testing.T) {
	svc := newTestService()

	q, err := svc.Quote(QuoteRequest{UnitPriceMinor: 1_000_000, CreatorCount: 10, CampaignType: CampaignTypeFourWeek})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q.DiscountMinor != 0 {
		t.Fatalf("4-week campaigns must not get the volume discount, got %d", q.DiscountMinor)
	}

	q, err = svc.Quote(QuoteRequest{UnitPriceMinor: 1_000_000, CreatorCount: 10, CampaignType: CampaignTypeSale})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q.DiscountMinor != 0 {
		t.Fatalf("sale campaigns must not get the volume discount, got %d", q.DiscountMinor)
	}
}

func TestQuote_VATRoundsHalfUpOnPostDiscountBase(t *testing.T) {
	svc := newTestService()

	// subtotal 10,000,005 -> discount floor(500,000.25) = 500,000
	// taxable 9,500,005 -> vat half-up(950,000.5) = 950,001
	q, err := svc.Quote(QuoteRequest{UnitPriceMinor: 2_000_001, CreatorCount: 5, CampaignType: CampaignTypeGeneral})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q.DiscountMinor != 500_000 {
		t.Fatalf("expected discount floored to 500000, got %d", q.DiscountMinor)
	}
	if q.TaxableBaseMinor != 9_500_005 {
		t.Fatalf("expected taxable base 9500005, got %d", q.TaxableBaseMinor)
	}
	if q.VATMinor != 950_001 {
		t.Fatalf("expected vat rounded half-up to 950001, got %d", q.VATMinor)
	}
	if q.TotalMinor != q.TaxableBaseMinor+q.VATMinor {
		t.Fatalf("total must equal taxable base plus vat, got %d", q.TotalMinor)
	}

	// A bare .5 VAT boundary without discount.
	q, err = svc.Quote(QuoteRequest{UnitPriceMinor: 5, CreatorCount: 3, CampaignType: CampaignTypeGeneral})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q.VATMinor != 2 {
		t.Fatalf("expected vat half-up(1.5) = 2, got %d", q.VATMinor)
	}
}

func TestQuote_RewardFlooredOnUnitPrice(t *testing.T) {
	svc := newTestService()

	q, err := svc.Quote(QuoteRequest{UnitPriceMinor: 333_333, CreatorCount: 3, CampaignType: CampaignTypeGeneral})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// floor(333333 * 0.6) = 199999 (exact product 199999.8)
	if q.RewardPerCreatorMinor != 199_999 {
		t.Fatalf("expected reward 199999, got %d", q.RewardPerCreatorMinor)
	}
}

func TestQuoteForTier(t *testing.T) {
	svc := newTestService()

	q, err := svc.QuoteForTier(context.Background(), "standard", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q.UnitPriceMinor != 300_000 || q.TotalMinor != 3_300_000 {
		t.Fatalf("unexpected tier quote: %+v", q)
	}

	if _, err := svc.QuoteForTier(context.Background(), "no_such_tier", 10); err != ErrTierNotFound {
		t.Fatalf("expected ErrTierNotFound, got %v", err)
	}
}

func TestListTiers_FiltersByCampaignType(t *testing.T) {
	svc := newTestService()

	tiers, err := svc.ListTiers(context.Background(), CampaignTypeFourWeek)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(tiers) == 0 {
		t.Fatalf("expected four-week tiers")
	}
	for _, tier := range tiers {
		if tier.CampaignType != CampaignTypeFourWeek {
			t.Fatalf("expected only four-week tiers, got %q", tier.ID)
		}
	}
}
