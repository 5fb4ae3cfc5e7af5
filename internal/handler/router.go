package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/latasoft/confiaticket-checkout/pkg/logger"
	"github.com/latasoft/confiaticket-checkout/pkg/middleware"
)

// RouterConfig holds what the HTTP router needs
type RouterConfig struct {
	Checkout    *CheckoutHandler
	Health      *HealthHandler
	JWT         *middleware.JWTConfig
	CORSOrigins []string
	Logger      *logger.Logger
	Debug       bool
}

// NewRouter builds the gin engine with the checkout routes under /api/v1/checkout
func NewRouter(cfg RouterConfig) *gin.Engine {
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	log := cfg.Logger
	if log == nil {
		log = logger.NewNop()
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.RequestLogger(log))
	if len(cfg.CORSOrigins) > 0 {
		r.Use(middleware.CORS(middleware.CheckoutCORSConfig(cfg.CORSOrigins)))
	}

	if cfg.Health != nil {
		r.GET("/health", cfg.Health.Health)
	}

	api := r.Group("/api/v1/checkout")
	if cfg.JWT != nil {
		api.Use(middleware.JWTMiddleware(cfg.JWT))
	}
	RegisterCheckoutRoutes(api, cfg.Checkout)
	return r
}

// RegisterCheckoutRoutes mounts the purchase session endpoints on rg
func RegisterCheckoutRoutes(rg gin.IRoutes, h *CheckoutHandler) {
	rg.POST("/sessions", h.CreateSession)
	rg.GET("/sessions/:id", h.GetSession)
	rg.DELETE("/sessions/:id", h.DeleteSession)

	rg.POST("/sessions/:id/sections/:sectionId/open", h.OpenSection)
	rg.POST("/sessions/:id/sections/:sectionId/seats/:seatId/toggle", h.ToggleSeat)
	rg.PUT("/sessions/:id/sections/:sectionId/quantity", h.SetQuantity)

	rg.POST("/sessions/:id/cart/sections/:sectionId", h.AddSection)
	rg.POST("/sessions/:id/cart/resale/:ticketId", h.SelectResaleTicket)
	rg.DELETE("/sessions/:id/cart/:kind/:itemId", h.RemoveLine)
	rg.GET("/sessions/:id/summary", h.Summary)

	rg.POST("/sessions/:id/checkout", h.Proceed)
	rg.POST("/sessions/:id/pay", h.Pay)
	rg.POST("/sessions/:id/test-payment", h.TestPay)
	rg.POST("/sessions/:id/return-to-select", h.ReturnToSelect)
	rg.POST("/sessions/:id/reset", h.Reset)
	rg.GET("/sessions/:id/tickets", h.Tickets)
}
