package handlers

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"ethioshop.com/app/internal/http/middleware"
	"ethioshop.com/app/internal/modules/payments"
	"ethioshop.com/app/internal/shared/apperr"
)

const maxWebhookBody = 1 << 20

type WebhookHandler struct {
	Logger     *slog.Logger
	Reconciler *payments.Reconciler
}

func NewWebhookHandler(logger *slog.Logger, rec *payments.Reconciler) *WebhookHandler {
	return &WebhookHandler{Logger: logger, Reconciler: rec}
}

// POST /payments/:provider/webhook
// The body is read raw; the provider's gateway checks the signature over it.
// Any non-2xx answer makes the provider retry.
func (h *WebhookHandler) Handle(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody+1))
	if err != nil {
		middleware.Fail(c, apperr.InvalidErr("Invalid body.", nil).WithCause(err))
		return
	}
	if len(body) > maxWebhookBody {
		middleware.Fail(c, apperr.InvalidErr("Body too large.", nil))
		return
	}

	res, err := h.Reconciler.HandleWebhook(c.Request.Context(), c.Param("provider"), c.Request.Header, body)
	if err != nil {
		middleware.Fail(c, toAppError(err))
		return
	}

	h.Logger.DebugContext(c.Request.Context(), "webhook acknowledged",
		"request_id", middleware.GetRequestID(c),
		"event_id", res.EventID,
		"duplicate", res.Duplicate,
		"ignored", res.Ignored,
		"unmatched", res.Unmatched,
	)
	c.JSON(http.StatusOK, gin.H{"received": true})
}
