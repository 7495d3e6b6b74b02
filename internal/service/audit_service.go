package service

import (
	"context"

	"github.com/Lyamouni-et-Khaled/Rrsellbooster/internal/domain"
	"github.com/Lyamouni-et-Khaled/Rrsellbooster/internal/logger"
	"github.com/Lyamouni-et-Khaled/Rrsellbooster/internal/store"
)

// AuditService handles audit logging
type AuditService struct {
	store store.Store
}

// NewAuditService creates a new audit service
func NewAuditService(s store.Store) *AuditService {
	return &AuditService{store: s}
}

// Log creates a new audit log entry in its own transaction. Failures are logged only.
func (s *AuditService) Log(ctx context.Context, actorID, targetID, action, category string, details map[string]interface{}) {
	err := s.store.RunTx(ctx, func(ctx context.Context, tx store.Tx) error {
		return appendAudit(ctx, tx, actorID, targetID, action, category, details)
	})
	if err != nil {
		logger.Error("failed to create audit log", "error", err, "action", action, "actor_id", actorID)
	}
}

// LogAdminAction logs an admin action against a member
func (s *AuditService) LogAdminAction(ctx context.Context, adminID, action, targetUserID string, details map[string]interface{}) {
	if details == nil {
		details = make(map[string]interface{})
	}
	details["admin_id"] = adminID
	s.Log(ctx, adminID, targetUserID, action, domain.AuditCategoryAdmin, details)
}

// Recent returns the latest audit logs, newest first
func (s *AuditService) Recent(ctx context.Context, limit int) ([]*domain.AuditLog, error) {
	return s.store.AuditLog(ctx, limit)
}
