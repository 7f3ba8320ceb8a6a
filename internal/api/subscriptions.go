package api

import (
	"net/http"

	"storefront-service/internal/service"

	"github.com/gin-gonic/gin"
)

// listSubscriptions lists the caller's subscriptions
func (h *Handler) listSubscriptions(c *gin.Context) {
	subs, err := h.subscriptions.List(c.Request.Context(), actorFrom(c).UserID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"subscriptions": subs})
}

// getSubscription retrieves one of the caller's subscriptions
func (h *Handler) getSubscription(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	sub, err := h.subscriptions.Get(c.Request.Context(), id, actorFrom(c).UserID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, sub)
}

// pauseSubscription pauses an active subscription
func (h *Handler) pauseSubscription(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	sub, err := h.subscriptions.Pause(c.Request.Context(), actorFrom(c), id, actorFrom(c).UserID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, sub)
}

// resumeSubscription restarts a paused subscription
func (h *Handler) resumeSubscription(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	sub, err := h.subscriptions.Resume(c.Request.Context(), actorFrom(c), id, actorFrom(c).UserID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, sub)
}

// cancelSubscription cancels a subscription at period end
func (h *Handler) cancelSubscription(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	var req service.CancelSubscriptionRequest
	_ = c.ShouldBindJSON(&req) // reason is optional

	sub, err := h.subscriptions.Cancel(c.Request.Context(), actorFrom(c), id, actorFrom(c).UserID, &req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, sub)
}

// skipNextDelivery pushes the next billing date out one interval
func (h *Handler) skipNextDelivery(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	sub, err := h.subscriptions.SkipNextDelivery(c.Request.Context(), actorFrom(c), id, actorFrom(c).UserID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, sub)
}

// updatePaymentMethod sets the subscription's default payment method
func (h *Handler) updatePaymentMethod(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	var req service.UpdatePaymentMethodRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Payment method ID is required"})
		return
	}

	if err := h.subscriptions.UpdatePaymentMethod(c.Request.Context(), id, actorFrom(c).UserID, &req); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Payment method updated"})
}

// createSetupIntent starts a payment-method update flow
func (h *Handler) createSetupIntent(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	resp, err := h.subscriptions.CreateSetupIntent(c.Request.Context(), id, actorFrom(c).UserID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// createPortalSession opens a billing portal session
func (h *Handler) createPortalSession(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	resp, err := h.subscriptions.CreatePortalSession(c.Request.Context(), id, actorFrom(c).UserID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
