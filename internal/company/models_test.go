package company

import "testing"

func TestResolveBillingProfile_PrefersTaxProfile(t *testing.T) {
	c := Company{
		Name:           "Acme Inc",
		BusinessNumber: "111-22-33333",
		Email:          "ops@acme.test",
		Address:        "Seoul",
		TaxInvoice: TaxProfile{
			LegalName: "Acme Incorporated",
			Email:     "tax@acme.test",
		},
	}

	p := c.ResolveBillingProfile()
	if p.LegalName != "Acme Incorporated" {
		t.Fatalf("expected dedicated legal name, got %q", p.LegalName)
	}
	if p.Email != "tax@acme.test" {
		t.Fatalf("expected dedicated email, got %q", p.Email)
	}
	// Fields without a dedicated value fall back to the company record.
	if p.BusinessNumber != "111-22-33333" {
		t.Fatalf("expected fallback business number, got %q", p.BusinessNumber)
	}
	if p.Address != "Seoul" {
		t.Fatalf("expected fallback address, got %q", p.Address)
	}
}

func TestResolveBillingProfile_AllFallback(t *testing.T) {
	c := Company{Name: "Solo", BusinessNumber: "999-88-77777", Email: "x@solo.test"}
	p := c.ResolveBillingProfile()
	if p.LegalName != "Solo" || p.BusinessNumber != "999-88-77777" || p.Email != "x@solo.test" {
		t.Fatalf("unexpected profile: %+v", p)
	}
}
