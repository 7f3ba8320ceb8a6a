package api

import (
	"net/http"
	"strconv"

	"storefront-service/internal/models"
	"storefront-service/internal/service"

	"github.com/gin-gonic/gin"
)

// validateAddress runs carrier delivery verification
func (h *Handler) validateAddress(c *gin.Context) {
	var addr models.Address
	if err := c.ShouldBindJSON(&addr); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	result, err := h.shipping.ValidateAddress(c.Request.Context(), addr)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// getShippingRates requests carrier quotes
func (h *Handler) getShippingRates(c *gin.Context) {
	var req service.RatesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	rates, err := h.shipping.GetRates(c.Request.Context(), &req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"rates": rates})
}

// getLowestRate returns the cheapest matching quote
func (h *Handler) getLowestRate(c *gin.Context) {
	var req service.LowestRateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	rate, err := h.shipping.GetLowestRate(c.Request.Context(), &req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, rate)
}

// createShipment buys a label and ships the order
func (h *Handler) createShipment(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	var req service.CreateShipmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	resp, err := h.shipping.CreateShipment(c.Request.Context(), actorFrom(c), id, &req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// getTracking fetches tracking state for an order
func (h *Handler) getTracking(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	info, err := h.shipping.GetTracking(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, info)
}

// refundLabel requests a refund for an unused label
func (h *Handler) refundLabel(c *gin.Context) {
	resp, err := h.shipping.RefundLabel(c.Request.Context(), c.Param("shipmentId"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// getPendingShipments lists processing orders awaiting labels
func (h *Handler) getPendingShipments(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	orders, err := h.shipping.GetPendingShipments(c.Request.Context(), limit)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders})
}

// getPackingSlip renders a plain-text packing slip
func (h *Handler) getPackingSlip(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	slip, err := h.shipping.GetPackingSlip(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.String(http.StatusOK, slip)
}
