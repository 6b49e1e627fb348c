package invoice

import (
	"context"

	"campaign-billing/internal/audit"
	"campaign-billing/internal/auth"
)

// AuditLog is the lifecycle manager's audit hook. Audit failures never block
// a billing transition.
type AuditLog interface {
	LogIssuance(ctx context.Context, workspaceID, requestID, message, metadata string)
	LogCancellation(ctx context.Context, workspaceID, requestID, message, metadata string)
}

// AuditAdapter bridges the lifecycle audit hook to the shared audit.Service,
// resolving the actor from the authenticated request context.
type AuditAdapter struct {
	Audit *audit.Service
}

func (a AuditAdapter) LogIssuance(ctx context.Context, workspaceID, requestID, message, metadata string) {
	if a.Audit == nil {
		return
	}
	uid, role := actorFrom(ctx)
	_ = a.Audit.LogIssuance(ctx, workspaceID, uid, role, requestID, message, metadata)
}

func (a AuditAdapter) LogCancellation(ctx context.Context, workspaceID, requestID, message, metadata string) {
	if a.Audit == nil {
		return
	}
	uid, role := actorFrom(ctx)
	_ = a.Audit.LogCancellation(ctx, workspaceID, uid, role, requestID, message, metadata)
}

func actorFrom(ctx context.Context) (userID, role string) {
	userID, _ = auth.UserID(ctx)
	role, _ = auth.Role(ctx)
	return userID, role
}
