package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"storefront-service/internal/models"
)

// OrderFilter narrows ListOrders. Zero values mean "no filter".
type OrderFilter struct {
	Search        string
	Status        string
	PaymentStatus string
	StartDate     *time.Time
	EndDate       *time.Time
	SortBy        string // created_at, total, status
	SortOrder     string // asc, desc
	Limit         int
	Offset        int
}

func (f OrderFilter) whereClause() (string, []interface{}) {
	var conds []string
	var args []interface{}
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if f.Search != "" {
		// a single placeholder serves all four columns
		p := arg("%" + f.Search + "%")
		conds = append(conds, fmt.Sprintf(
			"(order_number ILIKE %s OR email ILIKE %s OR shipping_first_name ILIKE %s OR shipping_last_name ILIKE %s)",
			p, p, p, p))
	}
	if f.Status != "" && f.Status != "all" {
		conds = append(conds, "status = "+arg(f.Status))
	}
	if f.PaymentStatus != "" && f.PaymentStatus != "all" {
		conds = append(conds, "payment_status = "+arg(f.PaymentStatus))
	}
	if f.StartDate != nil {
		conds = append(conds, "created_at >= "+arg(*f.StartDate))
	}
	if f.EndDate != nil {
		conds = append(conds, "created_at <= "+arg(*f.EndDate))
	}

	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func (f OrderFilter) orderClause() string {
	col := "created_at"
	switch f.SortBy {
	case "total":
		col = "total_in_cents"
	case "status":
		col = "status"
	}
	dir := "DESC"
	if strings.EqualFold(f.SortOrder, "asc") {
		dir = "ASC"
	}
	return fmt.Sprintf(" ORDER BY %s %s", col, dir)
}

// ListOrders retrieves orders matching the filter
func (s *Store) ListOrders(ctx context.Context, f OrderFilter) ([]models.Order, error) {
	where, args := f.whereClause()
	query := "SELECT * FROM orders" + where + f.orderClause()
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if f.Offset > 0 {
		args = append(args, f.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	var orders []models.Order
	err := s.db.SelectContext(ctx, &orders, query, args...)
	return orders, err
}

// CountOrders counts orders matching the filter
func (s *Store) CountOrders(ctx context.Context, f OrderFilter) (int, error) {
	where, args := f.whereClause()
	var total int
	err := s.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM orders"+where, args...)
	return total, err
}

// GetOrderByID retrieves an order by ID
func (s *Store) GetOrderByID(ctx context.Context, id int64) (*models.Order, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order, "SELECT * FROM orders WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// GetOrderItemsByOrderID retrieves all items for an order
func (s *Store) GetOrderItemsByOrderID(ctx context.Context, orderID int64) ([]models.OrderItem, error) {
	var items []models.OrderItem
	err := s.db.SelectContext(ctx, &items,
		"SELECT * FROM order_items WHERE order_id = $1 ORDER BY id", orderID)
	return items, err
}

// OrderUpdate carries the mutable fields written by a status transition.
// Nil pointers leave the column untouched.
type OrderUpdate struct {
	Status          string
	PaymentStatus   *string
	TrackingNumber  *string
	ShippingCarrier *string
	AdminNotes      *string
	ShippedAt       *time.Time
	DeliveredAt     *time.Time
}

// UpdateOrderStatusCAS transitions an order in a single statement, guarded on
// the expected current status. Returns false when the guard did not match
// (the order moved concurrently or does not exist).
func (s *Store) UpdateOrderStatusCAS(ctx context.Context, orderID int64, fromStatus string, upd OrderUpdate) (bool, error) {
	sets := []string{"status = $1", "updated_at = NOW()"}
	args := []interface{}{upd.Status}
	add := func(col string, v interface{}) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}

	if upd.PaymentStatus != nil {
		add("payment_status", *upd.PaymentStatus)
	}
	if upd.TrackingNumber != nil {
		add("tracking_number", *upd.TrackingNumber)
	}
	if upd.ShippingCarrier != nil {
		add("shipping_carrier", *upd.ShippingCarrier)
	}
	if upd.AdminNotes != nil {
		add("admin_notes", *upd.AdminNotes)
	}
	if upd.ShippedAt != nil {
		add("shipped_at", *upd.ShippedAt)
	}
	if upd.DeliveredAt != nil {
		add("delivered_at", *upd.DeliveredAt)
	}

	args = append(args, orderID)
	idPos := len(args)
	args = append(args, fromStatus)
	fromPos := len(args)

	query := fmt.Sprintf("UPDATE orders SET %s WHERE id = $%d AND status = $%d",
		strings.Join(sets, ", "), idPos, fromPos)

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// AppendAdminNote appends a note to the order's admin notes blob.
func (s *Store) AppendAdminNote(ctx context.Context, orderID int64, entry string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE orders
		SET admin_notes = CASE WHEN admin_notes IS NULL OR admin_notes = '' THEN $1
		                       ELSE admin_notes || E'\n\n' || $1 END,
		    updated_at = NOW()
		WHERE id = $2`,
		entry, orderID)
	return err
}

// OrderStats aggregates counts per status plus today's volume.
type OrderStats struct {
	ByStatus            map[string]int
	TodayOrders         int
	TodayRevenueInCents int64
}

// GetOrderStats computes order dashboard numbers
func (s *Store) GetOrderStats(ctx context.Context, todayStart time.Time) (*OrderStats, error) {
	rows := []struct {
		Status string `db:"status"`
		Count  int    `db:"count"`
	}{}
	if err := s.db.SelectContext(ctx, &rows,
		"SELECT status, COUNT(*) AS count FROM orders GROUP BY status"); err != nil {
		return nil, err
	}

	stats := &OrderStats{ByStatus: make(map[string]int)}
	for _, r := range rows {
		stats.ByStatus[r.Status] = r.Count
	}

	if err := s.db.GetContext(ctx, &stats.TodayOrders,
		"SELECT COUNT(*) FROM orders WHERE created_at >= $1", todayStart); err != nil {
		return nil, err
	}

	if err := s.db.GetContext(ctx, &stats.TodayRevenueInCents,
		"SELECT COALESCE(SUM(total_in_cents), 0) FROM orders WHERE created_at >= $1 AND payment_status = $2",
		todayStart, models.PaymentStatusPaid); err != nil {
		return nil, err
	}

	return stats, nil
}
