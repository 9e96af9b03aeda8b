package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"ethioshop.com/app/internal/auth"
	"ethioshop.com/app/internal/http/middleware"
	"ethioshop.com/app/internal/modules/orders"
	"ethioshop.com/app/internal/modules/payments"
	"ethioshop.com/app/internal/shared/apperr"
)

type OrdersHandler struct {
	Coordinator *orders.Coordinator
	Admin       *orders.AdminService
	Orders      *orders.Repo
	Payments    *payments.Repo
}

func NewOrdersHandler(coord *orders.Coordinator, admin *orders.AdminService, repo *orders.Repo, pays *payments.Repo) *OrdersHandler {
	return &OrdersHandler{Coordinator: coord, Admin: admin, Orders: repo, Payments: pays}
}

type cartItemRequest struct {
	ProductID string           `json:"productId" binding:"required,max=36"`
	Quantity  int              `json:"quantity" binding:"required,min=1,max=1000"`
	Price     *decimal.Decimal `json:"price"`
	VariantID string           `json:"variantId" binding:"max=36"`
}

type addressRequest struct {
	FirstName  string `json:"firstName" binding:"required,max=100"`
	LastName   string `json:"lastName" binding:"required,max=100"`
	Email      string `json:"email" binding:"required,email,max=255"`
	Phone      string `json:"phone" binding:"required,max=32"`
	Address1   string `json:"address1" binding:"required,max=255"`
	Address2   string `json:"address2" binding:"max=255"`
	City       string `json:"city" binding:"required,max=100"`
	Region     string `json:"region" binding:"required,max=100"`
	PostalCode string `json:"postalCode" binding:"max=20"`
}

func (a addressRequest) input() orders.AddressInput {
	return orders.AddressInput{
		FirstName:  a.FirstName,
		LastName:   a.LastName,
		Email:      a.Email,
		Phone:      a.Phone,
		Address1:   a.Address1,
		Address2:   a.Address2,
		City:       a.City,
		Region:     a.Region,
		PostalCode: a.PostalCode,
	}
}

type createOrderRequest struct {
	Items           []cartItemRequest `json:"items" binding:"required,min=1,max=100,dive"`
	ShippingAddress addressRequest    `json:"shippingAddress" binding:"required"`
	BillingAddress  *addressRequest   `json:"billingAddress"`
	Currency        string            `json:"currency" binding:"omitempty,len=3"`
	Notes           string            `json:"notes" binding:"max=1000"`
}

// POST /orders
func (h *OrdersHandler) Create(c *gin.Context) {
	p, _ := middleware.CurrentPrincipal(c)

	var req createOrderRequest
	if !bindJSON(c, &req) {
		return
	}

	billing := req.ShippingAddress
	if req.BillingAddress != nil {
		billing = *req.BillingAddress
	}
	currency := strings.ToUpper(req.Currency)
	if currency == "" {
		currency = "ETB"
	}

	items := make([]orders.CartItem, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, orders.CartItem{
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			UnitPrice: it.Price,
			VariantID: it.VariantID,
		})
	}

	o, err := h.Coordinator.Create(c.Request.Context(), orders.CreateInput{
		UserID:   p.UserID,
		Items:    items,
		Shipping: req.ShippingAddress.input(),
		Billing:  billing.input(),
		Currency: currency,
		Notes:    req.Notes,
		Origin:   originOf(c),
	})
	if err != nil {
		middleware.Fail(c, toAppError(err))
		return
	}

	c.JSON(http.StatusCreated, newOrderDTO(o))
}

// GET /orders?page&limit&status. Admins see every order and may search with q.
func (h *OrdersHandler) List(c *gin.Context) {
	p, _ := middleware.CurrentPrincipal(c)
	page := parseInt(c.Query("page"), 1)
	limit := parseInt(c.Query("limit"), 10)
	status := strings.ToUpper(strings.TrimSpace(c.Query("status")))
	if status != "" {
		if _, ok := orders.ParseStatus(status); !ok {
			middleware.Fail(c, apperr.InvalidErr("Invalid status.", map[string]string{"status": "Unknown order status."}))
			return
		}
	}

	var (
		res orders.ListResult
		err error
	)
	if p.IsAdmin() {
		res, err = h.Orders.AdminList(c.Request.Context(), orders.AdminListParams{
			Q: c.Query("q"), Status: status, Page: page, PageSize: limit,
		})
	} else {
		res, err = h.Orders.ListByUser(c.Request.Context(), orders.ListByUserParams{
			UserID: p.UserID, Status: status, Page: page, PageSize: limit,
		})
	}
	if err != nil {
		middleware.Fail(c, apperr.Wrap(err))
		return
	}

	ids := make([]string, 0, len(res.Items))
	for _, o := range res.Items {
		ids = append(ids, o.ID)
	}
	latest, err := h.Payments.LatestByOrders(c.Request.Context(), ids)
	if err != nil {
		middleware.Fail(c, apperr.Wrap(err))
		return
	}

	out := make([]orderDTO, 0, len(res.Items))
	for _, o := range res.Items {
		dto := newOrderDTO(o)
		if lp, ok := latest[o.ID]; ok {
			pd := newPaymentDTO(lp)
			dto.LatestPayment = &pd
		}
		out = append(out, dto)
	}

	c.JSON(http.StatusOK, gin.H{
		"orders": out,
		"pagination": pagination{
			Page:  res.Page,
			Limit: res.Size,
			Total: res.Total,
			Pages: pagesFromTotal(res.Total, res.Size),
		},
	})
}

// GET /orders/:id
func (h *OrdersHandler) Detail(c *gin.Context) {
	p, _ := middleware.CurrentPrincipal(c)

	o, err := h.Orders.GetDetail(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			middleware.Fail(c, apperr.NotFoundErr("Order not found."))
			return
		}
		middleware.Fail(c, apperr.Wrap(err))
		return
	}
	if o.UserID != p.UserID && p.Role != auth.RoleAdmin {
		middleware.Fail(c, apperr.ForbiddenErr("Forbidden."))
		return
	}

	pays, err := h.Payments.ListByOrder(c.Request.Context(), o.ID)
	if err != nil {
		middleware.Fail(c, apperr.Wrap(err))
		return
	}

	dto := newOrderDTO(o)
	dto.Payments = make([]paymentDTO, 0, len(pays))
	for _, pay := range pays {
		dto.Payments = append(dto.Payments, newPaymentDTO(pay))
	}
	c.JSON(http.StatusOK, dto)
}

type updateOrderRequest struct {
	Status *string `json:"status"`
	Notes  *string `json:"notes" binding:"omitempty,max=1000"`
}

// PATCH /orders/:id (admin, vendor)
func (h *OrdersHandler) Update(c *gin.Context) {
	p, _ := middleware.CurrentPrincipal(c)

	var req updateOrderRequest
	if !bindJSON(c, &req) {
		return
	}

	o, err := h.Admin.Update(c.Request.Context(), orders.UpdateInput{
		OrderID: c.Param("id"),
		ActorID: p.UserID,
		Status:  req.Status,
		Notes:   req.Notes,
		Origin:  originOf(c),
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			middleware.Fail(c, apperr.NotFoundErr("Order not found."))
			return
		}
		middleware.Fail(c, toAppError(err))
		return
	}
	c.JSON(http.StatusOK, newOrderDTO(o))
}
