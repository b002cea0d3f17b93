package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Context keys for request-scoped identity
type contextKey string

const (
	TenantIDKey  contextKey = "tenantID"
	RequestIDKey contextKey = "requestID"
)

// TenantMiddleware extracts the tenant from the X-Tenant-ID header set by
// the upstream gateway. Webhook endpoints and the health check carry no
// tenant; the gateway event payload identifies the account instead.
func TenantMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if strings.HasPrefix(c.Request.URL.Path, "/webhooks/") || c.Request.URL.Path == "/health" {
			c.Next()
			return
		}

		tenantID := c.GetHeader("X-Tenant-ID")

		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Header("X-Request-ID", requestID)

		ctx := context.WithValue(c.Request.Context(), TenantIDKey, tenantID)
		ctx = context.WithValue(ctx, RequestIDKey, requestID)
		c.Request = c.Request.WithContext(ctx)

		c.Set("tenantID", tenantID)
		c.Set("requestID", requestID)

		c.Next()
	}
}

// RequireTenantID rejects requests that carry no tenant identification.
func RequireTenantID() gin.HandlerFunc {
	return func(c *gin.Context) {
		tenantID := c.GetString("tenantID")
		if tenantID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "Unauthorized",
				"message": "Tenant ID is required",
			})
			return
		}
		c.Next()
	}
}

// GetTenantID extracts the tenant ID from a request context
func GetTenantID(ctx context.Context) string {
	if v := ctx.Value(TenantIDKey); v != nil {
		return v.(string)
	}
	return ""
}

// GetRequestID extracts the request ID from a request context
func GetRequestID(ctx context.Context) string {
	if v := ctx.Value(RequestIDKey); v != nil {
		return v.(string)
	}
	return ""
}
