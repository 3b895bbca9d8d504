package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/imrishuroy/go-storefront-checkout/internal/cart"
	"github.com/imrishuroy/go-storefront-checkout/internal/catalog"
	"github.com/imrishuroy/go-storefront-checkout/internal/checkout"
	"github.com/imrishuroy/go-storefront-checkout/internal/discounts"
	"github.com/imrishuroy/go-storefront-checkout/internal/idempotency"
	"github.com/imrishuroy/go-storefront-checkout/internal/orders"
	"github.com/imrishuroy/go-storefront-checkout/internal/validation"
)

// HandlerConfig groups dependencies for the API routes.
type HandlerConfig struct {
	Products    *catalog.Store
	Discounts   *discounts.Service
	Cart        *cart.Service
	Checkout    *checkout.Service
	Idempotency *idempotency.Store // optional; without it Idempotency-Key is ignored
	Orders      *orders.Store
	JWTSecret   []byte
}

// NewRouter builds the gin engine with middleware, health and API routes.
func NewRouter(cfg HandlerConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), RequestID(), RequestLogger())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	RegisterRoutes(r, cfg)
	return r
}

// RegisterRoutes registers the storefront API.
func RegisterRoutes(r *gin.Engine, cfg HandlerConfig) {
	v := validation.New()
	auth := Authenticate(cfg.JWTSecret)

	products := &productHandler{store: cfg.Products}
	r.GET("/products", products.list)

	disc := &discountHandler{svc: cfg.Discounts, v: v}
	r.GET("/discounts", disc.listActive)
	admin := r.Group("/discounts/admin", auth, RequireAdmin())
	admin.GET("/all", disc.listAll)
	admin.POST("", disc.create)
	admin.PUT("/:id", disc.update)
	admin.DELETE("/:id", disc.delete)

	ch := &cartHandler{svc: cfg.Cart, v: v}
	cartGroup := r.Group("/cart", auth)
	cartGroup.GET("", ch.read)
	cartGroup.POST("/update", ch.update)
	cartGroup.POST("/remove", ch.remove)
	cartGroup.POST("/clear", ch.clear)

	co := &checkoutHandler{svc: cfg.Checkout, idem: cfg.Idempotency}
	r.POST("/checkout", auth, co.checkout)

	oh := &orderHandler{store: cfg.Orders}
	r.GET("/orders/:id", auth, oh.get)
}
