package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/huangang/projecthub/backend/internal/utils"
	"github.com/huangang/projecthub/backend/internal/workflow"
	"github.com/huangang/projecthub/backend/pkg/logger"
	"github.com/huangang/projecthub/backend/pkg/response"
)

const (
	ContextUserID = "user_id"
	ContextName   = "name"
	ContextEmail  = "email"
	ContextRole   = "role"
)

// AuthRequired is a middleware that checks for a valid JWT token
func AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			response.Unauthorized(c, "authorization header required")
			c.Abort()
			return
		}

		// Extract token from "Bearer <token>"
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			response.Unauthorized(c, "invalid authorization header format")
			c.Abort()
			return
		}

		claims, err := utils.ParseToken(parts[1])
		if err != nil {
			response.Unauthorized(c, "invalid or expired token")
			c.Abort()
			return
		}

		c.Set(ContextUserID, claims.UserID)
		c.Set(ContextName, claims.Name)
		c.Set(ContextEmail, workflow.NormalizeEmail(claims.Email))
		c.Set(ContextRole, claims.Role)

		c.Next()
	}
}

// AdminRequired is a middleware that checks for admin role
func AdminRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if GetRole(c) != string(workflow.RoleAdmin) {
			response.Forbidden(c, "admin access required")
			c.Abort()
			return
		}
		c.Next()
	}
}

// UserTracker records authenticated callers.
type UserTracker interface {
	Touch(ctx context.Context, actor workflow.Actor) error
}

// TrackUser upserts the caller into the account table so roster emails can be
// resolved to them later. Failures are logged, the request goes on.
func TrackUser(tracker UserTracker) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor := GetActor(c)
		if actor.ID != "" {
			if err := tracker.Touch(c.Request.Context(), actor); err != nil {
				logger.Warn().Err(err).Str("user_id", actor.ID).Msg("failed to record user")
			}
		}
		c.Next()
	}
}

// GetUserID gets the current user ID from context
func GetUserID(c *gin.Context) string {
	return c.GetString(ContextUserID)
}

// GetName gets the current user display name from context
func GetName(c *gin.Context) string {
	return c.GetString(ContextName)
}

// GetRole gets the current user role from context
func GetRole(c *gin.Context) string {
	return c.GetString(ContextRole)
}

// GetActor builds the workflow actor for the authenticated caller.
func GetActor(c *gin.Context) workflow.Actor {
	role := workflow.RoleStudent
	if GetRole(c) == string(workflow.RoleAdmin) {
		role = workflow.RoleAdmin
	}
	return workflow.Actor{
		ID:    GetUserID(c),
		Name:  GetName(c),
		Email: c.GetString(ContextEmail),
		Role:  role,
	}
}
