package audit

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Repository is the persistence contract for audit events.
//
// It MUST be append-only.
// No Update/Delete methods are provided by design.
type Repository interface {
	Append(ctx context.Context, e Event) error
}

// Service logs internal audit information.
//
// IMPORTANT:
// - Audit is internal-only. Do not expose these records to tenant users by
//   default.
// - Callers should treat audit logging as best-effort.
type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

var ErrInvalidEvent = errors.New("audit: invalid event")

func (s *Service) Append(ctx context.Context, e Event) error {
	if s.repo == nil {
		return errors.New("audit: repository not configured")
	}
	if e.WorkspaceID == "" {
		return ErrInvalidEvent
	}
	if e.Type == "" {
		return ErrInvalidEvent
	}

	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.clock().UTC()
	}
	return s.repo.Append(ctx, e)
}

// LogIssuance records an invoice issuance or reissuance.
func (s *Service) LogIssuance(ctx context.Context, workspaceID, actorUserID, actorRole, requestID, message, metadata string) error {
	return s.Append(ctx, Event{
		WorkspaceID:      workspaceID,
		Type:             EventTypeIssuance,
		ActorUserID:      actorUserID,
		ActorRole:        actorRole,
		InvoiceRequestID: requestID,
		Message:          message,
		Metadata:         metadata,
	})
}

// LogCancellation records a negative issuance.
func (s *Service) LogCancellation(ctx context.Context, workspaceID, actorUserID, actorRole, requestID, message, metadata string) error {
	return s.Append(ctx, Event{
		WorkspaceID:      workspaceID,
		Type:             EventTypeCancellation,
		ActorUserID:      actorUserID,
		ActorRole:        actorRole,
		InvoiceRequestID: requestID,
		Message:          message,
		Metadata:         metadata,
	})
}

// LogDeposit records deposit activity (recorded transfer, confirmation,
// manual adjustment).
func (s *Service) LogDeposit(ctx context.Context, workspaceID, actorUserID, actorRole, companyID, depositID, message, metadata string) error {
	return s.Append(ctx, Event{
		WorkspaceID: workspaceID,
		Type:        EventTypeDeposit,
		ActorUserID: actorUserID,
		ActorRole:   actorRole,
		CompanyID:   companyID,
		DepositID:   depositID,
		Message:     message,
		Metadata:    metadata,
	})
}
