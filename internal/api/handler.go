package api

import (
	"net/http"
	"strconv"
	"time"

	"storefront-service/internal/apperr"
	"storefront-service/internal/service"
	"storefront-service/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Handler contains HTTP handlers
type Handler struct {
	orders        *service.OrderService
	discounts     *service.DiscountService
	referrals     *service.ReferralService
	shipping      *service.ShippingService
	subscriptions *service.SubscriptionService
	audit         *service.AuditLogger

	jwtSecret   string
	rateLimiter rateCounter
	ratePerMin  int
	logger      *zap.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(
	orders *service.OrderService,
	discounts *service.DiscountService,
	referrals *service.ReferralService,
	shippingSvc *service.ShippingService,
	subscriptions *service.SubscriptionService,
	audit *service.AuditLogger,
	jwtSecret string,
	rateLimiter rateCounter,
	ratePerMin int,
) *Handler {
	return &Handler{
		orders:        orders,
		discounts:     discounts,
		referrals:     referrals,
		shipping:      shippingSvc,
		subscriptions: subscriptions,
		audit:         audit,
		jwtSecret:     jwtSecret,
		rateLimiter:   rateLimiter,
		ratePerMin:    ratePerMin,
		logger:        util.GetLogger(),
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Click tracking and code validation are unauthenticated: the
	// visitor has no account yet.
	router.POST("/api/v1/referrals/track/:code", h.trackReferralClick)
	router.GET("/api/v1/referrals/validate/:code", h.validateReferralCode)

	v1 := router.Group("/api/v1")
	v1.Use(authMiddleware(h.jwtSecret))
	v1.Use(rateLimitMiddleware(h.rateLimiter, h.ratePerMin))
	{
		referrals := v1.Group("/referrals")
		{
			referrals.GET("/code", h.getMyReferralCode)
			referrals.GET("/stats", h.getMyReferralStats)
			referrals.GET("", h.getMyReferrals)
			referrals.GET("/credits", h.getMyCredits)
			referrals.POST("/complete", h.completeReferral)
			referrals.POST("/credits/apply", h.applyCredits)
		}

		subscriptions := v1.Group("/subscriptions")
		{
			subscriptions.GET("", h.listSubscriptions)
			subscriptions.GET("/:id", h.getSubscription)
			subscriptions.POST("/:id/pause", h.pauseSubscription)
			subscriptions.POST("/:id/resume", h.resumeSubscription)
			subscriptions.POST("/:id/cancel", h.cancelSubscription)
			subscriptions.POST("/:id/skip", h.skipNextDelivery)
			subscriptions.PUT("/:id/payment-method", h.updatePaymentMethod)
			subscriptions.POST("/:id/setup-intent", h.createSetupIntent)
			subscriptions.POST("/:id/portal-session", h.createPortalSession)
		}
	}

	admin := router.Group("/api/v1/admin")
	admin.Use(authMiddleware(h.jwtSecret))
	admin.Use(adminOnly())
	admin.Use(rateLimitMiddleware(h.rateLimiter, h.ratePerMin))
	{
		orders := admin.Group("/orders")
		{
			orders.GET("", h.listOrders)
			orders.GET("/stats", h.getOrderStats)
			orders.GET("/:id", h.getOrder)
			orders.PUT("/:id/status", h.updateOrderStatus)
			orders.POST("/:id/cancel", h.cancelOrder)
			orders.POST("/:id/refund", h.refundOrder)
			orders.POST("/:id/notes", h.addOrderNote)
			orders.GET("/:id/audit", h.getOrderAudit)
		}

		discounts := admin.Group("/discounts")
		{
			discounts.GET("", h.listDiscounts)
			discounts.GET("/stats", h.getDiscountStats)
			discounts.GET("/:id", h.getDiscount)
			discounts.POST("", h.createDiscount)
			discounts.PUT("/:id", h.updateDiscount)
			discounts.DELETE("/:id", h.deleteDiscount)
		}

		shipping := admin.Group("/shipping")
		{
			shipping.POST("/validate-address", h.validateAddress)
			shipping.POST("/rates", h.getShippingRates)
			shipping.POST("/rates/lowest", h.getLowestRate)
			shipping.GET("/pending", h.getPendingShipments)
			shipping.POST("/orders/:id/shipment", h.createShipment)
			shipping.GET("/orders/:id/tracking", h.getTracking)
			shipping.GET("/orders/:id/packing-slip", h.getPackingSlip)
			shipping.POST("/labels/:shipmentId/refund", h.refundLabel)
		}
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck handles readiness check requests
func (h *Handler) readinessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

// respondError maps service errors to HTTP responses. Messages are
// written for direct display in the admin UI; internal failures are
// also logged with the full chain.
func (h *Handler) respondError(c *gin.Context, err error) {
	status := apperr.HTTPStatus(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("Request failed",
			zap.String("path", c.FullPath()),
			zap.Error(err))
	}
	c.JSON(status, gin.H{
		"error": apperr.MessageOf(err),
		"code":  string(apperr.CodeOf(err)),
	})
}

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid ID"})
		return 0, false
	}
	return id, true
}
