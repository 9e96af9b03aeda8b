package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"ethioshop.com/app/internal/http/middleware"
	"ethioshop.com/app/internal/modules/payments"
)

type PaymentsHandler struct {
	Svc *payments.Service
}

func NewPaymentsHandler(svc *payments.Service) *PaymentsHandler {
	return &PaymentsHandler{Svc: svc}
}

type initiatePaymentRequest struct {
	OrderID     string           `json:"orderId" binding:"required,max=36"`
	Amount      *decimal.Decimal `json:"amount"`
	Email       string           `json:"email" binding:"required,email"`
	FirstName   string           `json:"firstName" binding:"required,max=100"`
	LastName    string           `json:"lastName" binding:"required,max=100"`
	Phone       string           `json:"phone" binding:"max=32"`
	Currency    string           `json:"currency" binding:"omitempty,len=3"`
	Name        string           `json:"name" binding:"max=255"`
	Description string           `json:"description" binding:"max=500"`
}

// POST /payments/:provider
func (h *PaymentsHandler) Initiate(c *gin.Context) {
	p, _ := middleware.CurrentPrincipal(c)

	var req initiatePaymentRequest
	if !bindJSON(c, &req) {
		return
	}

	res, err := h.Svc.Initiate(c.Request.Context(), payments.InitiateInput{
		Provider: c.Param("provider"),
		OrderID:  req.OrderID,
		Amount:   req.Amount,
		Currency: req.Currency,
		Payer: payments.Payer{
			Email:     req.Email,
			FirstName: req.FirstName,
			LastName:  req.LastName,
			Phone:     req.Phone,
		},
		Name:        req.Name,
		Description: req.Description,
		ActorID:     p.UserID,
		IsAdmin:     p.IsAdmin(),
		Origin:      originOf(c),
	})
	if err != nil {
		middleware.Fail(c, toAppError(err))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":           true,
		"paymentId":         res.PaymentID,
		"checkoutUrl":       res.CheckoutURL,
		"providerReference": res.ProviderReference,
	})
}

// GET /payments/:provider?tx_ref=... (chapa) or ?session_id=... (stripe).
// This is where the provider sends the payer back after checkout.
func (h *PaymentsHandler) Verify(c *gin.Context) {
	ref := strings.TrimSpace(c.Query("tx_ref"))
	if ref == "" {
		ref = strings.TrimSpace(c.Query("session_id"))
	}
	if ref == "" {
		ref = strings.TrimSpace(c.Query("reference"))
	}

	res, err := h.Svc.Verify(c.Request.Context(), c.Param("provider"), ref)
	if err != nil {
		middleware.Fail(c, toAppError(err))
		return
	}

	out := gin.H{
		"success":        res.PaymentStatus == payments.StatusCompleted,
		"message":        "Payment verified successfully",
		"paymentId":      res.PaymentID,
		"orderId":        res.OrderID,
		"paymentStatus":  res.PaymentStatus,
		"orderStatus":    res.OrderStatus,
		"alreadyApplied": res.AlreadyApplied,
	}
	if res.PaymentStatus == payments.StatusFailed {
		out["message"] = "Payment failed"
		out["failureReason"] = res.FailureReason
	}
	c.JSON(http.StatusOK, out)
}
