package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/latasoft/confiaticket-checkout/internal/cart"
	"github.com/latasoft/confiaticket-checkout/internal/checkout"
	"github.com/latasoft/confiaticket-checkout/internal/domain"
	"github.com/latasoft/confiaticket-checkout/internal/selection"
	"github.com/latasoft/confiaticket-checkout/internal/service"
	"github.com/latasoft/confiaticket-checkout/pkg/response"
)

// handleError converts flow and checkout errors to HTTP responses. session is
// the checkout state after the failed call, used for login redirects.
func (h *CheckoutHandler) handleError(c *gin.Context, session *checkout.Session, err error) {
	var actionErr *checkout.ActionError
	var backendErr *checkout.BackendError

	switch {
	case errors.Is(err, service.ErrSessionNotFound):
		c.JSON(http.StatusNotFound, response.Error(response.ErrCodeSessionNotFound, "Purchase session not found"))
	case errors.Is(err, checkout.ErrAuthRequired):
		details := map[string]string{}
		if session != nil && session.LoginRedirect != "" {
			details[response.DetailLoginRedirect] = session.LoginRedirect
		}
		c.JSON(http.StatusUnauthorized, response.ErrorWithDetails(response.ErrCodeUnauthorized, "Debes iniciar sesión para continuar", details))
	case errors.Is(err, service.ErrNotSessionOwner):
		c.JSON(http.StatusForbidden, response.Error(response.ErrCodeForbidden, "Purchase session belongs to another buyer"))
	case errors.As(err, &actionErr):
		h.actionError(c, actionErr)
	case errors.Is(err, checkout.ErrEmptyCart):
		c.JSON(http.StatusUnprocessableEntity, response.Error(response.ErrCodeCartEmpty, "Cart is empty"))
	case errors.Is(err, service.ErrCartLocked):
		c.JSON(http.StatusConflict, response.Error(response.ErrCodeCartLocked, err.Error()))
	case errors.Is(err, checkout.ErrBusy),
		errors.Is(err, checkout.ErrInvalidStateTransition),
		errors.Is(err, checkout.ErrNoReservation),
		errors.Is(err, service.ErrPurchaseIncomplete):
		details := map[string]string{}
		if session != nil {
			details[response.DetailStep] = string(session.Step)
		}
		c.JSON(http.StatusConflict, response.ErrorWithDetails(response.ErrCodeInvalidStep, err.Error(), details))
	case errors.Is(err, checkout.ErrTestPaymentDisabled):
		c.JSON(http.StatusForbidden, response.Error(response.ErrCodeTestPaymentDisabled, "Test payment is disabled"))
	case errors.Is(err, selection.ErrSelectionIncomplete):
		c.JSON(http.StatusUnprocessableEntity, response.Error(response.ErrCodeSelectionIncomplete, err.Error()))
	case errors.Is(err, selection.ErrSectionSoldOut):
		c.JSON(http.StatusConflict, response.Error(response.ErrCodeSectionInsufficientStock, err.Error()))
	case errors.Is(err, service.ErrSectionNotFound),
		errors.Is(err, service.ErrTicketNotFound),
		errors.Is(err, cart.ErrLineNotFound):
		c.JSON(http.StatusNotFound, response.NotFound(err.Error()))
	case errors.Is(err, service.ErrWrongMode),
		errors.Is(err, cart.ErrModeMismatch):
		c.JSON(http.StatusBadRequest, response.BadRequest(err.Error()))
	case isValidationError(err):
		c.JSON(http.StatusUnprocessableEntity, response.Error(response.ErrCodeUnprocessableEntity, err.Error()))
	case errors.Is(err, service.ErrUnsupportedMode):
		c.JSON(http.StatusUnprocessableEntity, response.Error(response.ErrCodeUnprocessableEntity, err.Error()))
	case errors.As(err, &backendErr):
		h.backendError(c, backendErr)
	default:
		h.log.WithContext(c.Request.Context()).Error("Unhandled checkout error", zap.Error(err))
		c.JSON(http.StatusInternalServerError, response.InternalError(""))
	}
}

func (h *CheckoutHandler) actionError(c *gin.Context, err *checkout.ActionError) {
	var be *checkout.BackendError
	hasBackend := errors.As(err, &be)

	status := response.GetHTTPStatus(string(err.Code))
	var resp *response.Response
	switch {
	case err.Code == checkout.CodeSeatsAlreadyReserved && hasBackend && len(be.ConflictingSeats) > 0:
		resp = response.SeatsAlreadyReserved(err.Message, be.ConflictingSeats)
	case err.Code == checkout.CodeUnknown:
		resp = response.Error(response.ErrCodeBadGateway, err.Message)
		status = http.StatusBadGateway
	default:
		resp = response.Error(string(err.Code), err.Message)
	}

	details := resp.Error.Details
	if details == nil {
		details = make(map[string]string)
	}
	details[response.DetailStep] = string(err.Step)
	if hasBackend {
		if be.SectionName != "" {
			details[response.DetailSectionName] = be.SectionName
		}
		if be.Available != nil {
			details[response.DetailAvailable] = strconv.Itoa(*be.Available)
		}
	}
	resp.Error.Details = details
	c.JSON(status, resp)
}

func (h *CheckoutHandler) backendError(c *gin.Context, err *checkout.BackendError) {
	if err.Status == http.StatusNotFound {
		c.JSON(http.StatusNotFound, response.NotFound("Event not found"))
		return
	}
	_ = c.Error(err)
	c.JSON(http.StatusBadGateway, response.Error(response.ErrCodeBadGateway, "Ticketing backend unavailable"))
}

func isValidationError(err error) bool {
	for _, target := range []error{
		domain.ErrInvalidQuantity,
		domain.ErrSeatCountMismatch,
		domain.ErrResaleQuantity,
		domain.ErrLineTarget,
		domain.ErrUnknownSeat,
		domain.ErrDuplicateSeat,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
