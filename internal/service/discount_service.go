package service

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"storefront-service/internal/apperr"
	"storefront-service/internal/models"
	"storefront-service/internal/store"
	"storefront-service/internal/util"

	"go.uber.org/zap"
)

// DeriveDiscountStatus computes the display status for a discount code.
// Precedence: Inactive beats Expired beats Scheduled beats Active.
func DeriveDiscountStatus(dc *models.DiscountCode, now time.Time) string {
	if !dc.IsActive {
		return models.DiscountStatusInactive
	}
	if dc.ExpiresAt.Valid && !dc.ExpiresAt.Time.After(now) {
		return models.DiscountStatusExpired
	}
	if dc.StartsAt.Valid && dc.StartsAt.Time.After(now) {
		return models.DiscountStatusScheduled
	}
	return models.DiscountStatusActive
}

type discountStore interface {
	ListDiscounts(ctx context.Context, f store.DiscountFilter) ([]models.DiscountCode, error)
	CountDiscounts(ctx context.Context, f store.DiscountFilter) (int, error)
	GetDiscountByID(ctx context.Context, id int64) (*models.DiscountCode, error)
	GetDiscountByCode(ctx context.Context, code string) (*models.DiscountCode, error)
	CreateDiscount(ctx context.Context, dc *models.DiscountCode) error
	UpdateDiscount(ctx context.Context, dc *models.DiscountCode) error
	DeactivateDiscount(ctx context.Context, id int64) error
	GetDiscountStats(ctx context.Context, now time.Time) (*store.DiscountStats, error)
}

// DiscountService manages discount code CRUD and reporting.
type DiscountService struct {
	store  discountStore
	audit  *AuditLogger
	logger *zap.Logger
	now    func() time.Time
}

// NewDiscountService creates a new discount service
func NewDiscountService(st discountStore, audit *AuditLogger) *DiscountService {
	return &DiscountService{
		store:  st,
		audit:  audit,
		logger: util.GetLogger(),
		now:    time.Now,
	}
}

// DiscountView is a discount code with its derived display status.
type DiscountView struct {
	models.DiscountCode
	Status string `json:"status"`
}

func (s *DiscountService) view(dc *models.DiscountCode) *DiscountView {
	return &DiscountView{DiscountCode: *dc, Status: DeriveDiscountStatus(dc, s.now())}
}

// ListDiscountsRequest narrows the discount list.
type ListDiscountsRequest struct {
	Page      int    `form:"page" json:"page"`
	Limit     int    `form:"limit" json:"limit"`
	Search    string `form:"search" json:"search"`
	Status    string `form:"status" json:"status"`
	Type      string `form:"type" json:"type"`
	SortBy    string `form:"sort_by" json:"sort_by"`
	SortOrder string `form:"sort_order" json:"sort_order"`
}

// ListDiscountsResponse is one page of discount codes.
type ListDiscountsResponse struct {
	Discounts  []DiscountView `json:"discounts"`
	Pagination Pagination     `json:"pagination"`
}

// ListDiscounts retrieves a filtered page of discount codes
func (s *DiscountService) ListDiscounts(ctx context.Context, req *ListDiscountsRequest) (*ListDiscountsResponse, error) {
	page, limit := normalizePaging(req.Page, req.Limit)

	filter := store.DiscountFilter{
		Search:    req.Search,
		Status:    req.Status,
		Type:      req.Type,
		SortBy:    req.SortBy,
		SortOrder: req.SortOrder,
		Limit:     limit,
		Offset:    (page - 1) * limit,
		Now:       s.now(),
	}

	discounts, err := s.store.ListDiscounts(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list discounts: %w", err)
	}
	total, err := s.store.CountDiscounts(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to count discounts: %w", err)
	}

	views := make([]DiscountView, 0, len(discounts))
	for i := range discounts {
		views = append(views, *s.view(&discounts[i]))
	}

	return &ListDiscountsResponse{
		Discounts: views,
		Pagination: Pagination{
			Page:       page,
			Limit:      limit,
			Total:      total,
			TotalPages: (total + limit - 1) / limit,
		},
	}, nil
}

// GetDiscount retrieves a single discount code
func (s *DiscountService) GetDiscount(ctx context.Context, id int64) (*DiscountView, error) {
	dc, err := s.store.GetDiscountByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get discount: %w", err)
	}
	if dc == nil {
		return nil, apperr.NotFound("Discount code not found")
	}
	return s.view(dc), nil
}

// DiscountRequest carries create/update fields for a discount code.
type DiscountRequest struct {
	Code               string     `json:"code" binding:"required"`
	Description        string     `json:"description,omitempty"`
	DiscountType       string     `json:"discount_type" binding:"required"`
	DiscountValue      int64      `json:"discount_value" binding:"required"`
	MinPurchaseInCents int64      `json:"min_purchase_in_cents,omitempty"`
	MaxUsesTotal       *int64     `json:"max_uses_total,omitempty"`
	MaxUsesPerCustomer int        `json:"max_uses_per_customer,omitempty"`
	IsActive           *bool      `json:"is_active,omitempty"`
	StartsAt           *time.Time `json:"starts_at,omitempty"`
	ExpiresAt          *time.Time `json:"expires_at,omitempty"`
}

func validateDiscountRequest(req *DiscountRequest) error {
	switch req.DiscountType {
	case models.DiscountTypePercentage:
		if req.DiscountValue < 1 || req.DiscountValue > 100 {
			return apperr.BadRequest("Percentage discount must be between 1 and 100")
		}
	case models.DiscountTypeFixed:
		if req.DiscountValue <= 0 {
			return apperr.BadRequest("Fixed discount must be a positive amount in cents")
		}
	default:
		return apperr.BadRequest("Invalid discount type: %s", req.DiscountType)
	}
	if req.StartsAt != nil && req.ExpiresAt != nil && !req.ExpiresAt.After(*req.StartsAt) {
		return apperr.BadRequest("Expiry must be after the start date")
	}
	return nil
}

func (req *DiscountRequest) apply(dc *models.DiscountCode) {
	dc.Code = strings.ToUpper(strings.TrimSpace(req.Code))
	dc.DiscountType = req.DiscountType
	dc.DiscountValue = req.DiscountValue
	dc.MinPurchaseInCents = req.MinPurchaseInCents
	dc.Description = sql.NullString{String: req.Description, Valid: req.Description != ""}
	if req.MaxUsesTotal != nil {
		dc.MaxUsesTotal = sql.NullInt64{Int64: *req.MaxUsesTotal, Valid: true}
	} else {
		dc.MaxUsesTotal = sql.NullInt64{}
	}
	dc.MaxUsesPerCustomer = req.MaxUsesPerCustomer
	if dc.MaxUsesPerCustomer <= 0 {
		dc.MaxUsesPerCustomer = 1
	}
	dc.IsActive = true
	if req.IsActive != nil {
		dc.IsActive = *req.IsActive
	}
	if req.StartsAt != nil {
		dc.StartsAt = sql.NullTime{Time: *req.StartsAt, Valid: true}
	} else {
		dc.StartsAt = sql.NullTime{}
	}
	if req.ExpiresAt != nil {
		dc.ExpiresAt = sql.NullTime{Time: *req.ExpiresAt, Valid: true}
	} else {
		dc.ExpiresAt = sql.NullTime{}
	}
}

// CreateDiscount creates a new discount code. Codes are uppercased before
// the uniqueness check, so collisions are case-insensitive.
func (s *DiscountService) CreateDiscount(ctx context.Context, actor Actor, req *DiscountRequest) (*DiscountView, error) {
	ctx, span := util.StartSpan(ctx, "DiscountService.CreateDiscount")
	defer span.End()

	if err := validateDiscountRequest(req); err != nil {
		return nil, err
	}

	code := strings.ToUpper(strings.TrimSpace(req.Code))
	if code == "" {
		return nil, apperr.BadRequest("Discount code is required")
	}

	existing, err := s.store.GetDiscountByCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to check discount code: %w", err)
	}
	if existing != nil {
		return nil, apperr.Conflict("Discount code %s already exists", code)
	}

	dc := &models.DiscountCode{}
	req.apply(dc)

	if err := s.store.CreateDiscount(ctx, dc); err != nil {
		return nil, fmt.Errorf("failed to create discount: %w", err)
	}

	util.DiscountCodesCreatedTotal.Inc()
	s.logger.Info("Discount code created",
		zap.Int64("discount_id", dc.ID),
		zap.String("code", dc.Code))

	s.audit.Log(ctx, actor, models.AuditActionCreate, models.AuditResourceDiscount, dc.ID, dc.Code,
		nil, dc, fmt.Sprintf("Created discount code %s", dc.Code))

	return s.view(dc), nil
}

// UpdateDiscount overwrites a discount code's mutable fields. A code
// rename re-runs the uniqueness check against the new code.
func (s *DiscountService) UpdateDiscount(ctx context.Context, actor Actor, id int64, req *DiscountRequest) (*DiscountView, error) {
	ctx, span := util.StartSpan(ctx, "DiscountService.UpdateDiscount")
	defer span.End()

	if err := validateDiscountRequest(req); err != nil {
		return nil, err
	}

	dc, err := s.store.GetDiscountByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get discount: %w", err)
	}
	if dc == nil {
		return nil, apperr.NotFound("Discount code not found")
	}

	code := strings.ToUpper(strings.TrimSpace(req.Code))
	if code != dc.Code {
		existing, err := s.store.GetDiscountByCode(ctx, code)
		if err != nil {
			return nil, fmt.Errorf("failed to check discount code: %w", err)
		}
		if existing != nil {
			return nil, apperr.Conflict("Discount code %s already exists", code)
		}
	}

	previous := *dc
	req.apply(dc)

	if err := s.store.UpdateDiscount(ctx, dc); err != nil {
		return nil, fmt.Errorf("failed to update discount: %w", err)
	}

	s.audit.Log(ctx, actor, models.AuditActionUpdate, models.AuditResourceDiscount, dc.ID, dc.Code,
		&previous, dc, fmt.Sprintf("Updated discount code %s", dc.Code))

	return s.view(dc), nil
}

// DeleteDiscount soft-deletes a code by flipping it inactive, keeping
// its usage history.
func (s *DiscountService) DeleteDiscount(ctx context.Context, actor Actor, id int64) error {
	dc, err := s.store.GetDiscountByID(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to get discount: %w", err)
	}
	if dc == nil {
		return apperr.NotFound("Discount code not found")
	}

	if err := s.store.DeactivateDiscount(ctx, id); err != nil {
		return fmt.Errorf("failed to deactivate discount: %w", err)
	}

	s.logger.Info("Discount code deactivated",
		zap.Int64("discount_id", id),
		zap.String("code", dc.Code))

	s.audit.Log(ctx, actor, models.AuditActionDelete, models.AuditResourceDiscount, dc.ID, dc.Code,
		map[string]bool{"is_active": dc.IsActive},
		map[string]bool{"is_active": false},
		fmt.Sprintf("Deactivated discount code %s", dc.Code))

	return nil
}

// DiscountStatsResponse is the discount dashboard summary.
type DiscountStatsResponse struct {
	TotalCodes   int            `json:"total_codes"`
	ActiveCodes  int            `json:"active_codes"`
	ExpiredCodes int            `json:"expired_codes"`
	TotalUses    int64          `json:"total_uses"`
	MostUsed     []DiscountView `json:"most_used"`
}

// GetStats computes discount dashboard numbers
func (s *DiscountService) GetStats(ctx context.Context) (*DiscountStatsResponse, error) {
	stats, err := s.store.GetDiscountStats(ctx, s.now())
	if err != nil {
		return nil, fmt.Errorf("failed to get discount stats: %w", err)
	}

	mostUsed := make([]DiscountView, 0, len(stats.MostUsed))
	for i := range stats.MostUsed {
		mostUsed = append(mostUsed, *s.view(&stats.MostUsed[i]))
	}

	return &DiscountStatsResponse{
		TotalCodes:   stats.TotalCodes,
		ActiveCodes:  stats.ActiveCodes,
		ExpiredCodes: stats.ExpiredCodes,
		TotalUses:    stats.TotalUses,
		MostUsed:     mostUsed,
	}, nil
}
