package audit

import (
	"context"
	"testing"
)

func TestService_AppendRequiresWorkspaceAndType(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)

	if err := svc.Append(context.Background(), Event{Type: EventTypeIssuance}); err == nil {
		t.Fatalf("expected error")
	}
	if err := svc.Append(context.Background(), Event{WorkspaceID: "w"}); err == nil {
		t.Fatalf("expected error")
	}
}

func TestService_AppendsImmutableEvents(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)

	if err := svc.LogIssuance(context.Background(), "w", "u", "finance", "inv-1", "forced issuance", "{}"); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if err := svc.LogCancellation(context.Background(), "w", "u", "finance", "inv-1", "contract termination", "{}"); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	evs := repo.Events()
	if len(evs) != 2 {
		t.Fatalf("expected 2 events, got %d", len(evs))
	}
	if evs[0].Type != EventTypeIssuance || evs[0].InvoiceRequestID != "inv-1" {
		t.Fatalf("unexpected first event %+v", evs[0])
	}
	if evs[1].Type != EventTypeCancellation {
		t.Fatalf("unexpected second event %+v", evs[1])
	}
	if evs[0].ID == "" || evs[0].CreatedAt.IsZero() {
		t.Fatalf("expected id and timestamp to be filled")
	}
}
