package middleware

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-grouping-api/internal/models"
)

const (
	auditResourceIDKey = "audit_resource_id"
	auditDetailsKey    = "audit_details"
)

// AuditRecorder persists audit entries.
type AuditRecorder interface {
	Create(ctx context.Context, log *models.AuditLog) error
}

// SetAuditResource names the record a mutation touched when the route does not carry it.
func SetAuditResource(c *gin.Context, id string) {
	if id != "" {
		c.Set(auditResourceIDKey, id)
	}
}

// SetAuditDetail adds a value to the new_values payload of the audit entry.
func SetAuditDetail(c *gin.Context, key string, value interface{}) {
	details := c.GetStringMap(auditDetailsKey)
	if details == nil {
		details = map[string]interface{}{}
	}
	details[key] = value
	c.Set(auditDetailsKey, details)
}

// Audit records an audit entry after a request completes with a non-error
// status. Failures to write the entry are logged and never alter the response.
func Audit(recorder AuditRecorder, logger *zap.Logger, action, resource string) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *gin.Context) {
		start := time.Now().UTC()
		c.Next()

		if recorder == nil || c.Writer.Status() >= 400 {
			return
		}

		var userID *string
		if claims, ok := CurrentUser(c); ok {
			userID = &claims.UserID
		}

		resourceID := c.GetString(auditResourceIDKey)
		if resourceID == "" {
			resourceID = c.Param("proposalId")
		}
		var resourceRef *string
		if resourceID != "" {
			resourceRef = &resourceID
		}

		values := map[string]interface{}{
			"path":    c.FullPath(),
			"method":  c.Request.Method,
			"status":  c.Writer.Status(),
			"latency": time.Since(start).Milliseconds(),
		}
		for k, v := range c.GetStringMap(auditDetailsKey) {
			values[k] = v
		}
		body, err := json.Marshal(values)
		if err != nil {
			logger.Warn("encode audit payload", zap.String("action", action), zap.Error(err))
			body = nil
		}

		entry := &models.AuditLog{
			UserID:     userID,
			Action:     action,
			Resource:   resource,
			ResourceID: resourceRef,
			ClassID:    c.Param("classId"),
			NewValues:  body,
			IPAddress:  c.ClientIP(),
			UserAgent:  c.GetHeader("User-Agent"),
			CreatedAt:  start,
		}
		if err := recorder.Create(context.WithoutCancel(c.Request.Context()), entry); err != nil {
			logger.Error("record audit log",
				zap.String("action", action),
				zap.String("class_id", entry.ClassID),
				zap.Error(err),
			)
		}
	}
}
