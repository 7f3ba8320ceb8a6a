package service

import (
	"context"
	"database/sql"
	"encoding/json"

	"storefront-service/internal/models"
	"storefront-service/internal/util"

	"go.uber.org/zap"
)

// Actor identifies the admin performing a mutation, taken from the
// authenticated request.
type Actor struct {
	UserID int64
	Name   string
	Role   string
}

type auditStore interface {
	CreateAuditLog(ctx context.Context, entry *models.AuditLog) error
	ListAuditLogs(ctx context.Context, resourceType string, resourceID int64, limit int) ([]models.AuditLog, error)
}

// AuditLogger records admin actions. Audit failures are logged and
// swallowed; they never fail the mutation they describe.
type AuditLogger struct {
	store  auditStore
	logger *zap.Logger
}

// NewAuditLogger creates an audit logger
func NewAuditLogger(store auditStore) *AuditLogger {
	return &AuditLogger{store: store, logger: util.GetLogger()}
}

// Log writes one audit entry. previous and next are serialized to JSON;
// nil values leave the column empty.
func (a *AuditLogger) Log(ctx context.Context, actor Actor, action, resourceType string, resourceID int64, resourceName string, previous, next interface{}, description string) {
	entry := &models.AuditLog{
		UserID:            actor.UserID,
		UserRole:          actor.Role,
		Action:            action,
		ResourceType:      resourceType,
		ChangeDescription: description,
	}
	if actor.Name != "" {
		entry.UserName = sql.NullString{String: actor.Name, Valid: true}
	}
	if resourceID != 0 {
		entry.ResourceID = sql.NullInt64{Int64: resourceID, Valid: true}
	}
	if resourceName != "" {
		entry.ResourceName = sql.NullString{String: resourceName, Valid: true}
	}
	if previous != nil {
		if raw, err := json.Marshal(previous); err == nil {
			entry.PreviousValue = sql.NullString{String: string(raw), Valid: true}
		}
	}
	if next != nil {
		if raw, err := json.Marshal(next); err == nil {
			entry.NewValue = sql.NullString{String: string(raw), Valid: true}
		}
	}

	if err := a.store.CreateAuditLog(ctx, entry); err != nil {
		a.logger.Error("Failed to write audit log",
			zap.String("action", action),
			zap.String("resource_type", resourceType),
			zap.Int64("resource_id", resourceID),
			zap.Error(err))
	}
}

// History returns recent audit entries for one resource
func (a *AuditLogger) History(ctx context.Context, resourceType string, resourceID int64, limit int) ([]models.AuditLog, error) {
	return a.store.ListAuditLogs(ctx, resourceType, resourceID, limit)
}
