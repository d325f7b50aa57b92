package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"

	ierr "github.com/psiflow/psiflow/internal/errors"
	"github.com/psiflow/psiflow/internal/logger"
	"github.com/psiflow/psiflow/internal/service"
)

type WebhookHandler struct {
	webhookService service.WebhookService
	log            *logger.Logger
}

func NewWebhookHandler(webhookService service.WebhookService, log *logger.Logger) *WebhookHandler {
	return &WebhookHandler{
		webhookService: webhookService,
		log:            log,
	}
}

// @Summary Ingest a billing provider webhook
// @Description Verifies the event signature, deduplicates by event ID and reconciles the affected user's plan
// @Tags Webhooks
// @Accept json
// @Produce json
// @Param Stripe-Signature header string true "Event signature"
// @Success 200 {object} dto.WebhookResponse
// @Failure 400 {object} ierr.ErrorResponse
// @Failure 500 {object} ierr.ErrorResponse
// @Router /webhooks/stripe [post]
func (h *WebhookHandler) HandleStripeWebhook(c *gin.Context) {
	payload, err := c.GetRawData()
	if err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Failed to read webhook payload").
			Mark(ierr.ErrValidation))
		return
	}

	signature := c.GetHeader("Stripe-Signature")
	if signature == "" {
		c.Error(ierr.NewError("missing Stripe-Signature header").
			Mark(ierr.ErrSignature))
		return
	}

	resp, err := h.webhookService.ProcessEvent(c.Request.Context(), payload, signature)
	if err != nil {
		h.log.Errorw("webhook processing failed", "error", err)
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}
