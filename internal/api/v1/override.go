package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/psiflow/psiflow/internal/api/dto"
	"github.com/psiflow/psiflow/internal/coalesce"
	ierr "github.com/psiflow/psiflow/internal/errors"
	"github.com/psiflow/psiflow/internal/logger"
	"github.com/psiflow/psiflow/internal/service"
)

type OverrideHandler struct {
	overrideService service.OverrideService
	coalescer       *coalesce.Manager
	log             *logger.Logger
}

func NewOverrideHandler(overrideService service.OverrideService, coalescer *coalesce.Manager, log *logger.Logger) *OverrideHandler {
	return &OverrideHandler{
		overrideService: overrideService,
		coalescer:       coalescer,
		log:             log,
	}
}

// @Summary Grant a courtesy override
// @Description Grants a user a paid plan without a billing subscription. The override takes effect on the user's next sync.
// @Tags Overrides
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param override body dto.GrantOverrideRequest true "Override to grant"
// @Success 201 {object} dto.OverrideResponse
// @Failure 400 {object} ierr.ErrorResponse
// @Failure 403 {object} ierr.ErrorResponse
// @Failure 409 {object} ierr.ErrorResponse
// @Router /admin/overrides [post]
func (h *OverrideHandler) GrantOverride(c *gin.Context) {
	var req dto.GrantOverrideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Invalid request format").
			Mark(ierr.ErrValidation))
		return
	}

	resp, err := h.overrideService.Grant(c.Request.Context(), &req)
	if err != nil {
		c.Error(err)
		return
	}

	// Stale cached syncs must not mask the new grant.
	h.coalescer.Invalidate(c.Request.Context(), req.UserID)

	c.JSON(http.StatusCreated, resp)
}

// @Summary Revoke a courtesy override
// @Description Deactivates an override. The user falls back to provider state on their next sync.
// @Tags Overrides
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "Override ID"
// @Success 200 {object} dto.OverrideResponse
// @Failure 403 {object} ierr.ErrorResponse
// @Failure 404 {object} ierr.ErrorResponse
// @Router /admin/overrides/{id}/revoke [post]
func (h *OverrideHandler) RevokeOverride(c *gin.Context) {
	id := c.Param("id")

	resp, err := h.overrideService.Revoke(c.Request.Context(), id)
	if err != nil {
		c.Error(err)
		return
	}

	h.coalescer.Invalidate(c.Request.Context(), resp.UserID)

	c.JSON(http.StatusOK, resp)
}

// @Summary Get a user's active override
// @Tags Overrides
// @Produce json
// @Security ApiKeyAuth
// @Param user_id path string true "User ID"
// @Success 200 {object} dto.OverrideResponse
// @Failure 403 {object} ierr.ErrorResponse
// @Failure 404 {object} ierr.ErrorResponse
// @Router /admin/overrides/users/{user_id} [get]
func (h *OverrideHandler) GetActiveOverride(c *gin.Context) {
	userID := c.Param("user_id")

	resp, err := h.overrideService.GetActiveForUser(c.Request.Context(), userID)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}
