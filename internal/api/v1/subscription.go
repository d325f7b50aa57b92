package v1

import (
	"context"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/psiflow/psiflow/internal/api/dto"
	"github.com/psiflow/psiflow/internal/coalesce"
	ierr "github.com/psiflow/psiflow/internal/errors"
	"github.com/psiflow/psiflow/internal/logger"
	"github.com/psiflow/psiflow/internal/service"
	"github.com/psiflow/psiflow/internal/types"
)

type SubscriptionHandler struct {
	syncService service.SyncService
	coalescer   *coalesce.Manager
	log         *logger.Logger
}

func NewSubscriptionHandler(syncService service.SyncService, coalescer *coalesce.Manager, log *logger.Logger) *SubscriptionHandler {
	return &SubscriptionHandler{
		syncService: syncService,
		coalescer:   coalescer,
		log:         log,
	}
}

// @Summary Check the caller's subscription status
// @Description Reconciles the caller's plan against the billing provider and returns the result. Bursts coalesce into a single provider call.
// @Tags Subscriptions
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} dto.SubscriptionStatusResponse
// @Failure 403 {object} ierr.ErrorResponse
// @Failure 429 {object} ierr.ErrorResponse
// @Router /subscriptions/status [post]
func (h *SubscriptionHandler) GetStatus(c *gin.Context) {
	ctx := c.Request.Context()
	userID := types.GetUserID(ctx)

	resp, err := coalesce.Do(ctx, h.coalescer, types.SyncOperationCheck, userID,
		func(execCtx context.Context) (*dto.SubscriptionStatusResponse, error) {
			return h.syncService.CheckStatus(execCtx)
		})
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// @Summary Force a subscription sync
// @Description Recomputes the user's plan from the billing provider immediately, repairing any drift
// @Tags Subscriptions
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param sync body dto.SyncSubscriptionRequest false "Sync target; defaults to the caller"
// @Success 200 {object} dto.SyncSubscriptionResponse
// @Failure 403 {object} ierr.ErrorResponse
// @Failure 429 {object} ierr.ErrorResponse
// @Router /subscriptions/sync [post]
func (h *SubscriptionHandler) SyncSubscription(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.SyncSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil && err != io.EOF {
		c.Error(ierr.WithError(err).
			WithHint("Invalid request format").
			Mark(ierr.ErrValidation))
		return
	}
	if req.UserID == "" {
		req.UserID = types.GetUserID(ctx)
	}
	if err := req.Validate(); err != nil {
		c.Error(err)
		return
	}

	resp, err := coalesce.Do(ctx, h.coalescer, types.SyncOperationForce, req.UserID,
		func(execCtx context.Context) (*dto.SyncSubscriptionResponse, error) {
			return h.syncService.SyncUser(execCtx, req.UserID)
		})
	if err != nil {
		c.Error(err)
		return
	}

	// A forced sync supersedes whatever the routine check cached.
	h.coalescer.InvalidateOp(ctx, types.SyncOperationCheck, req.UserID)

	c.JSON(http.StatusOK, resp)
}

// @Summary List the caller's assignment history
// @Description Returns every plan assignment for the user, newest first. Admins may pass another user's ID.
// @Tags Subscriptions
// @Produce json
// @Security ApiKeyAuth
// @Param user_id query string false "User to inspect; defaults to the caller"
// @Success 200 {object} dto.AssignmentHistoryResponse
// @Failure 403 {object} ierr.ErrorResponse
// @Router /subscriptions/history [get]
func (h *SubscriptionHandler) GetHistory(c *gin.Context) {
	ctx := c.Request.Context()

	userID := c.Query("user_id")
	if userID == "" {
		userID = types.GetUserID(ctx)
	}

	resp, err := h.syncService.History(ctx, userID)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}
