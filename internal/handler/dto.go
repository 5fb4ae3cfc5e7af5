package handler

import (
	"github.com/latasoft/confiaticket-checkout/internal/cart"
	"github.com/latasoft/confiaticket-checkout/internal/selection"
	"github.com/latasoft/confiaticket-checkout/internal/service"
)

// CreateSessionRequest opens a purchase session for an event
type CreateSessionRequest struct {
	EventID int `json:"eventId" binding:"required,min=1"`
}

// SetQuantityRequest changes the requested quantity of a section
type SetQuantityRequest struct {
	Quantity *int `json:"quantity" binding:"required"`
}

// NavigationRequest carries the page the buyer returns to after signing in
type NavigationRequest struct {
	ReturnPath string `json:"returnPath"`
}

// ToggleSeatResponse is the selection after a seat toggle
type ToggleSeatResponse struct {
	Selection selection.Snapshot `json:"selection"`
	Changed   bool               `json:"changed"`
}

// CartChangeResponse is the priced cart after an add
type CartChangeResponse struct {
	Cart   service.Summary `json:"cart"`
	Change cart.Change     `json:"change"`
}
