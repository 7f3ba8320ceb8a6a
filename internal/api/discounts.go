package api

import (
	"net/http"

	"storefront-service/internal/service"

	"github.com/gin-gonic/gin"
)

// listDiscounts handles the admin discount list
func (h *Handler) listDiscounts(c *gin.Context) {
	var req service.ListDiscountsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid query parameters", "details": err.Error()})
		return
	}

	resp, err := h.discounts.ListDiscounts(c.Request.Context(), &req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// getDiscount handles get discount by ID
func (h *Handler) getDiscount(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	dc, err := h.discounts.GetDiscount(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dc)
}

// createDiscount handles discount creation
func (h *Handler) createDiscount(c *gin.Context) {
	var req service.DiscountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	dc, err := h.discounts.CreateDiscount(c.Request.Context(), actorFrom(c), &req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, dc)
}

// updateDiscount handles discount updates
func (h *Handler) updateDiscount(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	var req service.DiscountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	dc, err := h.discounts.UpdateDiscount(c.Request.Context(), actorFrom(c), id, &req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dc)
}

// deleteDiscount handles discount soft deletion
func (h *Handler) deleteDiscount(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	if err := h.discounts.DeleteDiscount(c.Request.Context(), actorFrom(c), id); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Discount code deactivated"})
}

// getDiscountStats handles the discount dashboard summary
func (h *Handler) getDiscountStats(c *gin.Context) {
	stats, err := h.discounts.GetStats(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}
