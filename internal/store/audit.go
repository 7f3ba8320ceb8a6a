package store

import (
	"context"

	"storefront-service/internal/models"
)

// CreateAuditLog appends an audit record. Audit writes are additive only;
// there is no update or delete path.
func (s *Store) CreateAuditLog(ctx context.Context, entry *models.AuditLog) error {
	query := `
		INSERT INTO audit_logs
			(user_id, user_name, user_role, action, resource_type, resource_id,
			 resource_name, previous_value, new_value, change_description)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at`

	return s.db.GetContext(ctx, entry, query,
		entry.UserID, entry.UserName, entry.UserRole, entry.Action,
		entry.ResourceType, entry.ResourceID, entry.ResourceName,
		entry.PreviousValue, entry.NewValue, entry.ChangeDescription)
}

// ListAuditLogs retrieves recent audit entries for a resource
func (s *Store) ListAuditLogs(ctx context.Context, resourceType string, resourceID int64, limit int) ([]models.AuditLog, error) {
	if limit <= 0 {
		limit = 50
	}
	var logs []models.AuditLog
	err := s.db.SelectContext(ctx, &logs, `
		SELECT * FROM audit_logs
		WHERE resource_type = $1 AND resource_id = $2
		ORDER BY created_at DESC
		LIMIT $3`, resourceType, resourceID, limit)
	return logs, err
}
