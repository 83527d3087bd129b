package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/huangang/projecthub/backend/internal/middleware"
	"github.com/huangang/projecthub/backend/pkg/response"
)

type UserHandler struct{}

func NewUserHandler() *UserHandler {
	return &UserHandler{}
}

// Me echoes the authenticated identity
// GET /api/users/me
func (h *UserHandler) Me(c *gin.Context) {
	response.Success(c, middleware.GetActor(c))
}
