package api

import (
	"net/http"

	"storefront-service/internal/service"

	"github.com/gin-gonic/gin"
)

// getMyReferralCode returns the caller's referral code, creating one if
// needed
func (h *Handler) getMyReferralCode(c *gin.Context) {
	resp, err := h.referrals.GetMyReferralCode(c.Request.Context(), actorFrom(c).UserID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// getMyReferralStats returns the caller's referral dashboard numbers
func (h *Handler) getMyReferralStats(c *gin.Context) {
	resp, err := h.referrals.GetMyReferralStats(c.Request.Context(), actorFrom(c).UserID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// getMyReferrals lists the caller's referral records
func (h *Handler) getMyReferrals(c *gin.Context) {
	refs, err := h.referrals.GetMyReferrals(c.Request.Context(), actorFrom(c).UserID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"referrals": refs})
}

// getMyCredits lists the caller's unused credits
func (h *Handler) getMyCredits(c *gin.Context) {
	resp, err := h.referrals.GetMyCredits(c.Request.Context(), actorFrom(c).UserID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// validateReferralCode checks a code on behalf of the caller
func (h *Handler) validateReferralCode(c *gin.Context) {
	resp, err := h.referrals.ValidateReferralCode(c.Request.Context(), c.Param("code"), actorFrom(c).UserID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// trackReferralClick counts a landing-page visit. The body is optional
// and may carry the visitor's email.
func (h *Handler) trackReferralClick(c *gin.Context) {
	var req service.TrackClickRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
			return
		}
	}

	if err := h.referrals.TrackReferralClick(c.Request.Context(), c.Param("code"), req.Email); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Click recorded"})
}

// completeReferral reports a referred user's first purchase
func (h *Handler) completeReferral(c *gin.Context) {
	var req service.CompleteReferralRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	if err := h.referrals.CompleteReferral(c.Request.Context(), &req); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Referral completed"})
}

// applyCredits spends the caller's credits against an order
func (h *Handler) applyCredits(c *gin.Context) {
	var req service.ApplyCreditsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	resp, err := h.referrals.ApplyCredits(c.Request.Context(), actorFrom(c).UserID, &req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
