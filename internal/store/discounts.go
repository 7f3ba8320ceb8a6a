package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"storefront-service/internal/models"
)

// DiscountFilter narrows ListDiscounts.
type DiscountFilter struct {
	Search    string
	Status    string // all, active, inactive, expired
	Type      string // all, percentage, fixed
	SortBy    string // code, created_at, used_count, expires_at
	SortOrder string
	Limit     int
	Offset    int
	Now       time.Time
}

func (f DiscountFilter) whereClause() (string, []interface{}) {
	var conds []string
	var args []interface{}
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if f.Search != "" {
		p := arg("%" + f.Search + "%")
		conds = append(conds, fmt.Sprintf("(code ILIKE %s OR description ILIKE %s)", p, p))
	}
	switch f.Status {
	case "active":
		conds = append(conds, "is_active = TRUE")
		conds = append(conds, "(expires_at IS NULL OR expires_at >= "+arg(f.Now)+")")
	case "inactive":
		conds = append(conds, "is_active = FALSE")
	case "expired":
		conds = append(conds, "expires_at <= "+arg(f.Now))
	}
	if f.Type != "" && f.Type != "all" {
		conds = append(conds, "discount_type = "+arg(f.Type))
	}

	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func (f DiscountFilter) orderClause() string {
	col := "created_at"
	switch f.SortBy {
	case "code":
		col = "code"
	case "used_count":
		col = "used_count"
	case "expires_at":
		col = "expires_at"
	}
	dir := "DESC"
	if strings.EqualFold(f.SortOrder, "asc") {
		dir = "ASC"
	}
	return fmt.Sprintf(" ORDER BY %s %s", col, dir)
}

// ListDiscounts retrieves discount codes matching the filter
func (s *Store) ListDiscounts(ctx context.Context, f DiscountFilter) ([]models.DiscountCode, error) {
	where, args := f.whereClause()
	query := "SELECT * FROM discount_codes" + where + f.orderClause()
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if f.Offset > 0 {
		args = append(args, f.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	var codes []models.DiscountCode
	err := s.db.SelectContext(ctx, &codes, query, args...)
	return codes, err
}

// CountDiscounts counts discount codes matching the filter
func (s *Store) CountDiscounts(ctx context.Context, f DiscountFilter) (int, error) {
	where, args := f.whereClause()
	var total int
	err := s.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM discount_codes"+where, args...)
	return total, err
}

// GetDiscountByID retrieves a discount code by ID
func (s *Store) GetDiscountByID(ctx context.Context, id int64) (*models.DiscountCode, error) {
	var code models.DiscountCode
	err := s.db.GetContext(ctx, &code, "SELECT * FROM discount_codes WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &code, nil
}

// GetDiscountByCode retrieves a discount code by its (uppercase) code
func (s *Store) GetDiscountByCode(ctx context.Context, code string) (*models.DiscountCode, error) {
	var dc models.DiscountCode
	err := s.db.GetContext(ctx, &dc, "SELECT * FROM discount_codes WHERE code = $1", code)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &dc, nil
}

// CreateDiscount inserts a new discount code
func (s *Store) CreateDiscount(ctx context.Context, dc *models.DiscountCode) error {
	query := `
		INSERT INTO discount_codes
			(code, description, discount_type, discount_value, min_purchase_in_cents,
			 max_uses_total, max_uses_per_customer, is_active, starts_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, used_count, created_at, updated_at`

	return s.db.GetContext(ctx, dc, query,
		dc.Code, dc.Description, dc.DiscountType, dc.DiscountValue, dc.MinPurchaseInCents,
		dc.MaxUsesTotal, dc.MaxUsesPerCustomer, dc.IsActive, dc.StartsAt, dc.ExpiresAt)
}

// UpdateDiscount overwrites the mutable fields of a discount code
func (s *Store) UpdateDiscount(ctx context.Context, dc *models.DiscountCode) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE discount_codes SET
			code = $1, description = $2, discount_type = $3, discount_value = $4,
			min_purchase_in_cents = $5, max_uses_total = $6, max_uses_per_customer = $7,
			is_active = $8, starts_at = $9, expires_at = $10, updated_at = NOW()
		WHERE id = $11`,
		dc.Code, dc.Description, dc.DiscountType, dc.DiscountValue,
		dc.MinPurchaseInCents, dc.MaxUsesTotal, dc.MaxUsesPerCustomer,
		dc.IsActive, dc.StartsAt, dc.ExpiresAt, dc.ID)
	return err
}

// DeactivateDiscount soft deletes a discount code; the row is kept so usage
// history survives.
func (s *Store) DeactivateDiscount(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE discount_codes SET is_active = FALSE, updated_at = NOW() WHERE id = $1", id)
	return err
}

// DiscountStats aggregates code usage for the admin dashboard.
type DiscountStats struct {
	TotalCodes   int
	ActiveCodes  int
	ExpiredCodes int
	TotalUses    int64
	MostUsed     []models.DiscountCode
}

// GetDiscountStats computes discount dashboard numbers
func (s *Store) GetDiscountStats(ctx context.Context, now time.Time) (*DiscountStats, error) {
	stats := &DiscountStats{}

	if err := s.db.GetContext(ctx, &stats.TotalCodes,
		"SELECT COUNT(*) FROM discount_codes"); err != nil {
		return nil, err
	}
	if err := s.db.GetContext(ctx, &stats.ActiveCodes,
		"SELECT COUNT(*) FROM discount_codes WHERE is_active = TRUE AND (expires_at IS NULL OR expires_at >= $1)", now); err != nil {
		return nil, err
	}
	if err := s.db.GetContext(ctx, &stats.ExpiredCodes,
		"SELECT COUNT(*) FROM discount_codes WHERE expires_at <= $1", now); err != nil {
		return nil, err
	}
	if err := s.db.GetContext(ctx, &stats.TotalUses,
		"SELECT COALESCE(SUM(used_count), 0) FROM discount_codes"); err != nil {
		return nil, err
	}
	if err := s.db.SelectContext(ctx, &stats.MostUsed,
		"SELECT * FROM discount_codes ORDER BY used_count DESC LIMIT 5"); err != nil {
		return nil, err
	}

	return stats, nil
}
