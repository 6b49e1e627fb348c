package company

import "time"

// Company is an advertiser account. It carries two sets of billing fields:
// the general company-record fields entered at signup, and an optional set of
// dedicated tax-invoice fields maintained by the finance team. Invoice
// snapshots prefer the dedicated fields and fall back per field to the
// company record.
type Company struct {
	ID          string `json:"id" db:"id"`
	WorkspaceID string `json:"workspace_id" db:"workspace_id"`

	// General company-record fields.
	Name             string `json:"name" db:"name"`
	BusinessNumber   string `json:"business_number" db:"business_number"`
	Representative   string `json:"representative" db:"representative"`
	Email            string `json:"email" db:"email"`
	Phone            string `json:"phone" db:"phone"`
	Address          string `json:"address" db:"address"`
	BusinessType     string `json:"business_type" db:"business_type"`
	BusinessCategory string `json:"business_category" db:"business_category"`

	// Dedicated tax-invoice fields. Any subset may be present.
	TaxInvoice TaxProfile `json:"tax_invoice" db:"-"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// TaxProfile holds the tax-invoice specific overrides for a company.
type TaxProfile struct {
	LegalName        string `json:"legal_name,omitempty" db:"legal_name"`
	BusinessNumber   string `json:"business_number,omitempty" db:"business_number"`
	Representative   string `json:"representative,omitempty" db:"representative"`
	Email            string `json:"email,omitempty" db:"email"`
	Phone            string `json:"phone,omitempty" db:"phone"`
	Address          string `json:"address,omitempty" db:"address"`
	BusinessType     string `json:"business_type,omitempty" db:"business_type"`
	BusinessCategory string `json:"business_category,omitempty" db:"business_category"`
}

// BillingProfile is the resolved, per-field merge of the tax profile over the
// company record. This is what gets frozen into an invoice snapshot.
type BillingProfile struct {
	LegalName        string `json:"legal_name"`
	BusinessNumber   string `json:"business_number"`
	Representative   string `json:"representative"`
	Email            string `json:"email"`
	Phone            string `json:"phone"`
	Address          string `json:"address"`
	BusinessType     string `json:"business_type"`
	BusinessCategory string `json:"business_category"`
}

// ResolveBillingProfile merges the dedicated tax-invoice fields over the
// company-record fields, field by field.
func (c Company) ResolveBillingProfile() BillingProfile {
	return BillingProfile{
		LegalName:        firstNonEmpty(c.TaxInvoice.LegalName, c.Name),
		BusinessNumber:   firstNonEmpty(c.TaxInvoice.BusinessNumber, c.BusinessNumber),
		Representative:   firstNonEmpty(c.TaxInvoice.Representative, c.Representative),
		Email:            firstNonEmpty(c.TaxInvoice.Email, c.Email),
		Phone:            firstNonEmpty(c.TaxInvoice.Phone, c.Phone),
		Address:          firstNonEmpty(c.TaxInvoice.Address, c.Address),
		BusinessType:     firstNonEmpty(c.TaxInvoice.BusinessType, c.BusinessType),
		BusinessCategory: firstNonEmpty(c.TaxInvoice.BusinessCategory, c.BusinessCategory),
	}
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}
