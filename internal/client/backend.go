package client

import (
	"context"

	"github.com/latasoft/confiaticket-checkout/internal/checkout"
	"github.com/latasoft/confiaticket-checkout/internal/domain"
)

// Backend is the ticketing backend as seen by the checkout service
type Backend interface {
	checkout.Backend

	GetEvent(ctx context.Context, eventID int) (*domain.Event, error)
	ListSections(ctx context.Context, eventID int) ([]domain.Section, error)
	ListResaleTickets(ctx context.Context, eventID int) ([]domain.ResaleTicket, error)
	OccupiedSeats(ctx context.Context, eventID, sectionID int) ([]domain.SeatID, error)
	SystemConfig(ctx context.Context) (*domain.SystemConfig, error)
	ListPurchasedTickets(ctx context.Context, q domain.TicketQuery) ([]domain.PurchasedTicket, error)
}

// CatalogInvalidator is implemented by backends that cache catalog reads
type CatalogInvalidator interface {
	Invalidate(ctx context.Context, eventID int) error
}

type authTokenKey struct{}

// WithAuthToken attaches the buyer's bearer token to outgoing backend calls
func WithAuthToken(ctx context.Context, token string) context.Context {
	if token == "" {
		return ctx
	}
	return context.WithValue(ctx, authTokenKey{}, token)
}

// AuthToken returns the bearer token carried by ctx
func AuthToken(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(authTokenKey{}).(string)
	return token, ok && token != ""
}
