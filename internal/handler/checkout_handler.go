package handler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/latasoft/confiaticket-checkout/internal/checkout"
	"github.com/latasoft/confiaticket-checkout/internal/client"
	"github.com/latasoft/confiaticket-checkout/internal/domain"
	"github.com/latasoft/confiaticket-checkout/internal/service"
	"github.com/latasoft/confiaticket-checkout/pkg/logger"
	"github.com/latasoft/confiaticket-checkout/pkg/middleware"
	"github.com/latasoft/confiaticket-checkout/pkg/response"
	"github.com/latasoft/confiaticket-checkout/pkg/telemetry"
)

// CheckoutHandler handles purchase session HTTP requests
type CheckoutHandler struct {
	sessions *service.SessionManager
	log      *logger.Logger
}

// NewCheckoutHandler creates a new checkout handler
func NewCheckoutHandler(sessions *service.SessionManager, log *logger.Logger) *CheckoutHandler {
	if log == nil {
		log = logger.NewNop()
	}
	return &CheckoutHandler{sessions: sessions, log: log}
}

// CreateSession handles POST /sessions
func (h *CheckoutHandler) CreateSession(c *gin.Context) {
	ctx, span := h.startSpan(c, "handler.checkout.create_session")
	defer span.End()

	var req CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		span.SetStatus(codes.Error, "invalid request")
		c.JSON(http.StatusBadRequest, response.ValidationFailed(map[string]string{"eventId": err.Error()}))
		return
	}
	span.SetAttributes(telemetry.EventIDAttr(req.EventID))

	userID, _ := middleware.GetUserID(c)
	flow, err := h.sessions.Create(ctx, req.EventID, userID)
	if err != nil {
		telemetry.RecordError(span, err)
		var be *checkout.BackendError
		if !errors.As(err, &be) && !errors.Is(err, service.ErrUnsupportedMode) {
			h.log.WithContext(ctx).Warn("Failed to open purchase session", zap.Int("event_id", req.EventID), zap.Error(err))
			c.JSON(http.StatusBadGateway, response.Error(response.ErrCodeBadGateway, "Ticketing backend unavailable"))
			return
		}
		h.handleError(c, nil, err)
		return
	}

	span.SetStatus(codes.Ok, "")
	c.JSON(http.StatusCreated, response.Success(flow.Snapshot()))
}

// GetSession handles GET /sessions/:id
func (h *CheckoutHandler) GetSession(c *gin.Context) {
	flow, ok := h.flow(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, response.Success(flow.Snapshot()))
}

// DeleteSession handles DELETE /sessions/:id
func (h *CheckoutHandler) DeleteSession(c *gin.Context) {
	flow, ok := h.flow(c)
	if !ok {
		return
	}
	if err := h.sessions.Delete(c.Request.Context(), flow.ID()); err != nil {
		h.handleError(c, nil, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// OpenSection handles POST /sessions/:id/sections/:sectionId/open
func (h *CheckoutHandler) OpenSection(c *gin.Context) {
	ctx, span := h.startSpan(c, "handler.checkout.open_section")
	defer span.End()

	flow, ok := h.flow(c)
	if !ok {
		return
	}
	sectionID, ok := intParam(c, "sectionId")
	if !ok {
		return
	}

	snap, err := flow.OpenSection(ctx, sectionID)
	if err != nil {
		telemetry.RecordError(span, err)
		h.handleError(c, nil, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(snap))
}

// ToggleSeat handles POST /sessions/:id/sections/:sectionId/seats/:seatId/toggle
func (h *CheckoutHandler) ToggleSeat(c *gin.Context) {
	flow, ok := h.flow(c)
	if !ok {
		return
	}
	sectionID, ok := intParam(c, "sectionId")
	if !ok {
		return
	}
	seat := domain.SeatID(c.Param("seatId"))
	if seat == "" {
		c.JSON(http.StatusBadRequest, response.BadRequest("Seat is required"))
		return
	}

	snap, changed, err := flow.ToggleSeat(sectionID, seat)
	if err != nil {
		h.handleError(c, nil, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(ToggleSeatResponse{Selection: snap, Changed: changed}))
}

// SetQuantity handles PUT /sessions/:id/sections/:sectionId/quantity
func (h *CheckoutHandler) SetQuantity(c *gin.Context) {
	flow, ok := h.flow(c)
	if !ok {
		return
	}
	sectionID, ok := intParam(c, "sectionId")
	if !ok {
		return
	}

	var req SetQuantityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.ValidationFailed(map[string]string{"quantity": err.Error()}))
		return
	}

	snap, err := flow.SetQuantity(sectionID, *req.Quantity)
	if err != nil {
		h.handleError(c, nil, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(snap))
}

// AddSection handles POST /sessions/:id/cart/sections/:sectionId
func (h *CheckoutHandler) AddSection(c *gin.Context) {
	flow, ok := h.flow(c)
	if !ok {
		return
	}
	sectionID, ok := intParam(c, "sectionId")
	if !ok {
		return
	}

	summary, change, err := flow.AddSection(sectionID)
	if err != nil {
		h.handleError(c, nil, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(CartChangeResponse{Cart: summary, Change: change}))
}

// SelectResaleTicket handles POST /sessions/:id/cart/resale/:ticketId
func (h *CheckoutHandler) SelectResaleTicket(c *gin.Context) {
	flow, ok := h.flow(c)
	if !ok {
		return
	}
	ticketID, ok := intParam(c, "ticketId")
	if !ok {
		return
	}

	summary, change, err := flow.SelectResaleTicket(ticketID)
	if err != nil {
		h.handleError(c, nil, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(CartChangeResponse{Cart: summary, Change: change}))
}

// RemoveLine handles DELETE /sessions/:id/cart/:kind/:itemId
func (h *CheckoutHandler) RemoveLine(c *gin.Context) {
	flow, ok := h.flow(c)
	if !ok {
		return
	}
	itemID, ok := intParam(c, "itemId")
	if !ok {
		return
	}

	var key domain.LineKey
	switch c.Param("kind") {
	case "sections":
		key = domain.LineKey{ItemID: itemID}
	case "resale":
		key = domain.LineKey{Resale: true, ItemID: itemID}
	default:
		c.JSON(http.StatusBadRequest, response.BadRequest("Line kind must be sections or resale"))
		return
	}

	summary, err := flow.RemoveLine(key)
	if err != nil {
		h.handleError(c, nil, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(summary))
}

// Summary handles GET /sessions/:id/summary
func (h *CheckoutHandler) Summary(c *gin.Context) {
	flow, ok := h.flow(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, response.Success(flow.Summary()))
}

// Proceed handles POST /sessions/:id/checkout
func (h *CheckoutHandler) Proceed(c *gin.Context) {
	h.checkoutAction(c, "handler.checkout.proceed", func(ctx context.Context, flow *service.PurchaseFlow, req NavigationRequest) (checkout.Session, error) {
		_, authenticated := middleware.GetUserID(c)
		return flow.Proceed(ctx, authenticated, req.ReturnPath)
	})
}

// Pay handles POST /sessions/:id/pay
func (h *CheckoutHandler) Pay(c *gin.Context) {
	h.checkoutAction(c, "handler.checkout.pay", func(ctx context.Context, flow *service.PurchaseFlow, req NavigationRequest) (checkout.Session, error) {
		return flow.Pay(ctx, req.ReturnPath)
	})
}

// TestPay handles POST /sessions/:id/test-payment
func (h *CheckoutHandler) TestPay(c *gin.Context) {
	h.checkoutAction(c, "handler.checkout.test_payment", func(ctx context.Context, flow *service.PurchaseFlow, req NavigationRequest) (checkout.Session, error) {
		return flow.TestPay(ctx, req.ReturnPath)
	})
}

// ReturnToSelect handles POST /sessions/:id/return-to-select
func (h *CheckoutHandler) ReturnToSelect(c *gin.Context) {
	h.checkoutAction(c, "handler.checkout.return_to_select", func(ctx context.Context, flow *service.PurchaseFlow, _ NavigationRequest) (checkout.Session, error) {
		return flow.ReturnToSelect(ctx)
	})
}

// Reset handles POST /sessions/:id/reset
func (h *CheckoutHandler) Reset(c *gin.Context) {
	h.checkoutAction(c, "handler.checkout.reset", func(ctx context.Context, flow *service.PurchaseFlow, _ NavigationRequest) (checkout.Session, error) {
		return flow.Reset(ctx)
	})
}

// Tickets handles GET /sessions/:id/tickets
func (h *CheckoutHandler) Tickets(c *gin.Context) {
	ctx, span := h.startSpan(c, "handler.checkout.tickets")
	defer span.End()

	flow, ok := h.flow(c)
	if !ok {
		return
	}

	tickets, err := flow.Tickets(ctx)
	if err != nil {
		telemetry.RecordError(span, err)
		session := flow.Checkout()
		h.handleError(c, &session, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(tickets))
}

type actionFunc func(ctx context.Context, flow *service.PurchaseFlow, req NavigationRequest) (checkout.Session, error)

func (h *CheckoutHandler) checkoutAction(c *gin.Context, spanName string, action actionFunc) {
	ctx, span := h.startSpan(c, spanName)
	defer span.End()

	flow, ok := h.flow(c)
	if !ok {
		return
	}
	span.SetAttributes(telemetry.SessionIDAttr(flow.ID()))

	var req NavigationRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, response.BadRequest("Invalid request body"))
		return
	}

	session, err := action(ctx, flow, req)
	if err != nil {
		telemetry.RecordError(span, err)
		h.handleError(c, &session, err)
		return
	}

	span.SetStatus(codes.Ok, "")
	c.JSON(http.StatusOK, response.Success(session))
}

// startSpan opens a handler span and attaches the buyer's token for backend calls
func (h *CheckoutHandler) startSpan(c *gin.Context, name string) (context.Context, trace.Span) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), name)
	if token, ok := middleware.GetAccessToken(c); ok {
		ctx = client.WithAuthToken(ctx, token)
	}
	if id := c.Param("id"); id != "" {
		ctx = logger.ContextWithSessionID(ctx, id)
	}
	c.Request = c.Request.WithContext(ctx)
	return ctx, span
}

func (h *CheckoutHandler) flow(c *gin.Context) (*service.PurchaseFlow, bool) {
	flow, err := h.sessions.Get(c.Param("id"))
	if err != nil {
		h.handleError(c, nil, err)
		return nil, false
	}
	userID, _ := middleware.GetUserID(c)
	if err := flow.Claim(userID); err != nil {
		h.handleError(c, nil, err)
		return nil, false
	}
	return flow, true
}

func intParam(c *gin.Context, name string) (int, bool) {
	n, err := strconv.Atoi(c.Param(name))
	if err != nil || n <= 0 {
		c.JSON(http.StatusBadRequest, response.BadRequest("Invalid "+name))
		return 0, false
	}
	return n, true
}
