package api

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"storefront-service/internal/models"
	"storefront-service/internal/service"
	"storefront-service/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

const actorKey = "actor"

// Claims is the JWT payload issued by the auth service.
type Claims struct {
	UserID int64  `json:"user_id"`
	Name   string `json:"name"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

type rateCounter interface {
	IncrRateCounter(ctx context.Context, clientKey string, window time.Duration) (int64, error)
}

// authMiddleware validates the bearer token and stores the actor on the
// request context.
func authMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Missing bearer token"})
			return
		}

		claims := &Claims{}
		token, err := jwt.ParseWithClaims(strings.TrimPrefix(header, "Bearer "), claims,
			func(t *jwt.Token) (interface{}, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, jwt.ErrSignatureInvalid
				}
				return []byte(secret), nil
			})
		if err != nil || !token.Valid {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			return
		}

		c.Set(actorKey, service.Actor{
			UserID: claims.UserID,
			Name:   claims.Name,
			Role:   claims.Role,
		})
		c.Next()
	}
}

// adminOnly requires a staff, admin or owner role.
func adminOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor := actorFrom(c)
		if !models.HasAdminAccess(actor.Role) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Admin access required"})
			return
		}
		c.Next()
	}
}

func actorFrom(c *gin.Context) service.Actor {
	if v, ok := c.Get(actorKey); ok {
		if actor, ok := v.(service.Actor); ok {
			return actor
		}
	}
	return service.Actor{}
}

// rateLimitMiddleware enforces a fixed-window per-client request cap.
// A Redis outage fails open; throttling is not worth an outage.
func rateLimitMiddleware(counter rateCounter, perMinute int) gin.HandlerFunc {
	logger := util.GetLogger()
	return func(c *gin.Context) {
		key := c.ClientIP()
		if actor := actorFrom(c); actor.UserID != 0 {
			key = "user:" + strconv.FormatInt(actor.UserID, 10)
		}

		count, err := counter.IncrRateCounter(c.Request.Context(), key, time.Minute)
		if err != nil {
			logger.Warn("Rate counter unavailable", zap.Error(err))
			c.Next()
			return
		}
		if count > int64(perMinute) {
			util.RateLimitedRequestsTotal.Inc()
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Too many requests"})
			return
		}
		c.Next()
	}
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}
