package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/huangang/projecthub/backend/internal/middleware"
	"github.com/huangang/projecthub/backend/internal/services"
	"github.com/huangang/projecthub/backend/internal/workflow"
	"github.com/huangang/projecthub/backend/pkg/response"
)

// SubmissionHandler serves /api/projects and /api/workshops.
type SubmissionHandler struct {
	kind    workflow.Kind
	service *services.SubmissionService
}

func NewSubmissionHandler(kind workflow.Kind, service *services.SubmissionService) *SubmissionHandler {
	return &SubmissionHandler{kind: kind, service: service}
}

func (h *SubmissionHandler) newInput() services.ContentInput {
	if h.kind == workflow.KindWorkshop {
		return &services.WorkshopInput{}
	}
	return &services.ProjectInput{}
}

// Create submits a new project or workshop
// POST /api/{kind}s
func (h *SubmissionHandler) Create(c *gin.Context) {
	in := h.newInput()
	if err := c.ShouldBindJSON(in); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	sub, err := h.service.Create(c.Request.Context(), middleware.GetActor(c), in)
	if err != nil {
		renderError(c, err)
		return
	}
	response.Created(c, sub)
}

// Mine lists the caller's submissions
// GET /api/{kind}s/me
func (h *SubmissionHandler) Mine(c *gin.Context) {
	views, err := h.service.ListMine(c.Request.Context(), middleware.GetActor(c), h.kind)
	if err != nil {
		renderError(c, err)
		return
	}
	response.Success(c, views)
}

// List returns every submission, optionally filtered by ?status=
// GET /api/{kind}s
func (h *SubmissionHandler) List(c *gin.Context) {
	subs, err := h.service.ListAll(c.Request.Context(), middleware.GetActor(c), h.kind, c.Query("status"))
	if err != nil {
		renderError(c, err)
		return
	}
	response.Success(c, subs)
}

// Get returns one submission with the caller-relative flags
// GET /api/{kind}s/:id
func (h *SubmissionHandler) Get(c *gin.Context) {
	v, err := h.service.Get(c.Request.Context(), middleware.GetActor(c), h.kind, c.Param("id"))
	if err != nil {
		renderError(c, err)
		return
	}
	response.Success(c, v)
}

// Update replaces the content; resubmits when changes were requested
// PUT /api/{kind}s/:id
func (h *SubmissionHandler) Update(c *gin.Context) {
	in := h.newInput()
	if err := c.ShouldBindJSON(in); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	sub, err := h.service.Update(c.Request.Context(), middleware.GetActor(c), c.Param("id"), in)
	if err != nil {
		renderError(c, err)
		return
	}
	response.Success(c, sub)
}

// Delete removes a submission
// DELETE /api/{kind}s/:id
func (h *SubmissionHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), middleware.GetActor(c), h.kind, c.Param("id")); err != nil {
		renderError(c, err)
		return
	}
	response.NoContent(c, "deleted")
}

// Leave removes the caller from the roster
// POST /api/{kind}s/:id/leave
func (h *SubmissionHandler) Leave(c *gin.Context) {
	sub, err := h.service.Leave(c.Request.Context(), middleware.GetActor(c), h.kind, c.Param("id"))
	if err != nil {
		renderError(c, err)
		return
	}
	response.Success(c, sub)
}

// Review records a reviewer decision
// PATCH /api/{kind}s/:id/review
func (h *SubmissionHandler) Review(c *gin.Context) {
	var in services.ReviewInput
	if err := c.ShouldBindJSON(&in); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	sub, err := h.service.Review(c.Request.Context(), middleware.GetActor(c), h.kind, c.Param("id"), in)
	if err != nil {
		renderError(c, err)
		return
	}
	response.Success(c, sub)
}

// RequestChanges is a review to pending_changes
// PATCH /api/{kind}s/:id/request-changes
func (h *SubmissionHandler) RequestChanges(c *gin.Context) {
	var in services.CommentsInput
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&in); err != nil {
			response.BadRequest(c, err.Error())
			return
		}
	}

	sub, err := h.service.RequestChanges(c.Request.Context(), middleware.GetActor(c), h.kind, c.Param("id"), in.Comments)
	if err != nil {
		renderError(c, err)
		return
	}
	response.Success(c, sub)
}

// Complete closes an approved submission
// PATCH /api/{kind}s/:id/complete
func (h *SubmissionHandler) Complete(c *gin.Context) {
	var in services.CommentsInput
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&in); err != nil {
			response.BadRequest(c, err.Error())
			return
		}
	}

	sub, err := h.service.Complete(c.Request.Context(), middleware.GetActor(c), h.kind, c.Param("id"), in.Comments)
	if err != nil {
		renderError(c, err)
		return
	}
	response.Success(c, sub)
}

// AdditionalInfo patches the post-approval info of a project
// PATCH /api/projects/:id/additional-info
func (h *SubmissionHandler) AdditionalInfo(c *gin.Context) {
	var in services.AdditionalInfoInput
	if err := c.ShouldBindJSON(&in); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	p, err := h.service.UpdateAdditionalInfo(c.Request.Context(), middleware.GetActor(c), c.Param("id"), in)
	if err != nil {
		renderError(c, err)
		return
	}
	response.Success(c, p)
}
