package handlers

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/huangang/projecthub/backend/internal/workflow"
	"github.com/huangang/projecthub/backend/pkg/logger"
	"github.com/huangang/projecthub/backend/pkg/response"
)

// toAppError maps workflow errors to HTTP responses. Anything unrecognised is
// an internal error.
func toAppError(err error) *response.AppError {
	switch {
	case errors.Is(err, workflow.ErrNotFound):
		return response.NewNotFound(err.Error())
	case errors.Is(err, workflow.ErrForbidden):
		return response.NewForbidden(err.Error())
	case errors.Is(err, workflow.ErrConflict):
		return response.NewConflict("submission was modified concurrently, reload and retry")
	case errors.Is(err, workflow.ErrInvalidStatus),
		errors.Is(err, workflow.ErrInvalidState),
		errors.Is(err, workflow.ErrValidation),
		errors.Is(err, workflow.ErrNotAMember):
		return response.NewBadRequest(err.Error())
	}
	return nil
}

func renderError(c *gin.Context, err error) {
	if appErr := toAppError(err); appErr != nil {
		response.Error(c, appErr)
		return
	}
	logger.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
	response.ServerError(c, "internal server error")
}
