package invoice

import "context"

// Store is the durable record of invoice requests.
//
// IMPORTANT:
// - Records are mutated exclusively by the lifecycle Service; UI-facing code
//   never writes here.
// - Records are never deleted (financial record).
// - Implementations must enforce workspace filtering.
type Store interface {
	Create(ctx context.Context, r InvoiceRequest) error
	Get(ctx context.Context, workspaceID, id string) (InvoiceRequest, error)
	// Update persists the full lifecycle state of an existing record,
	// appending new issuance rows and the cancellation event as needed.
	Update(ctx context.Context, r InvoiceRequest) error
	List(ctx context.Context, workspaceID string, f Filter) ([]InvoiceRequest, error)
}
