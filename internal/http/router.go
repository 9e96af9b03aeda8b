package http

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"ethioshop.com/app/internal/auth"
	"ethioshop.com/app/internal/http/handlers"
	"ethioshop.com/app/internal/http/middleware"
	"ethioshop.com/app/internal/modules/orders"
	"ethioshop.com/app/internal/modules/payments"
	"ethioshop.com/app/internal/modules/products"
	"ethioshop.com/app/internal/observability"
)

type Deps struct {
	Logger   *slog.Logger
	DB       *gorm.DB
	Signer   *auth.Signer
	Metrics  *observability.Metrics
	Gatherer prometheus.Gatherer // nil disables /metrics
	Limiter  *middleware.RateLimiter

	Coordinator *orders.Coordinator
	OrderAdmin  *orders.AdminService
	Payments    *payments.Service
	Reconciler  *payments.Reconciler
}

func NewRouter(d Deps) *gin.Engine {
	r := gin.New()

	r.Use(
		middleware.RequestID(),
		middleware.Tracing(),
		middleware.Logger(d.Logger),
		middleware.Metrics(d.Metrics),
		middleware.ErrorHandler(d.Logger),
		middleware.Recovery(d.Logger),
		middleware.Authenticate(d.Signer),
	)

	health := &handlers.HealthHandler{DB: d.DB}
	r.GET("/healthz", health.Healthz)
	if d.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{})))
	}

	productsH := handlers.NewProductsHandler(products.NewRepo(d.DB))
	r.GET("/products", productsH.List)
	r.GET("/products/:id", productsH.Detail)

	ordersH := handlers.NewOrdersHandler(d.Coordinator, d.OrderAdmin, orders.NewRepo(d.DB), payments.NewRepo(d.DB))
	og := r.Group("/orders", middleware.RequireAuth())
	{
		og.POST("", ordersH.Create)
		og.GET("", ordersH.List)
		og.GET("/:id", ordersH.Detail)
		og.PATCH("/:id", middleware.RequireRole(auth.RoleAdmin, auth.RoleVendor), ordersH.Update)
	}

	paymentsH := handlers.NewPaymentsHandler(d.Payments)
	webhookH := handlers.NewWebhookHandler(d.Logger, d.Reconciler)
	// webhooks arrive from a few shared provider IPs and stay unlimited
	limited := d.Limiter.Middleware()
	pg := r.Group("/payments")
	{
		pg.POST("/:provider", limited, middleware.RequireAuth(), paymentsH.Initiate)
		pg.GET("/:provider", limited, paymentsH.Verify)
		pg.POST("/:provider/webhook", webhookH.Handle)
	}

	return r
}
