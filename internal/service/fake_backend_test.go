package service

import (
	"context"
	"errors"
	"sync"

	"github.com/latasoft/confiaticket-checkout/internal/domain"
)

// fakeBackend is an in-memory ticketing backend with call counters
type fakeBackend struct {
	mu sync.Mutex

	event         *domain.Event
	sections      []domain.Section
	resale        []domain.ResaleTicket
	occupied      map[int][]domain.SeatID
	feeBps        int
	systemErr     error
	holdResult    *domain.HoldResult
	holdErr       error
	reservation   *domain.Reservation
	paymentInit   *domain.PaymentInit
	testPayResult *domain.TestPaymentResult
	tickets       []domain.PurchasedTicket

	holds        []domain.HoldRequest
	reservations []domain.ReservationRequest
	ticketQuery  domain.TicketQuery
	calls        map[string]int
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		occupied: make(map[int][]domain.SeatID),
		calls:    make(map[string]int),
	}
}

func (f *fakeBackend) count(op string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[op]++
}

func (f *fakeBackend) Calls(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *fakeBackend) GetEvent(ctx context.Context, eventID int) (*domain.Event, error) {
	f.count("GetEvent")
	if f.event == nil || f.event.ID != eventID {
		return nil, errors.New("event not found")
	}
	e := *f.event
	return &e, nil
}

func (f *fakeBackend) ListSections(ctx context.Context, eventID int) ([]domain.Section, error) {
	f.count("ListSections")
	return f.sections, nil
}

func (f *fakeBackend) ListResaleTickets(ctx context.Context, eventID int) ([]domain.ResaleTicket, error) {
	f.count("ListResaleTickets")
	return f.resale, nil
}

func (f *fakeBackend) OccupiedSeats(ctx context.Context, eventID, sectionID int) ([]domain.SeatID, error) {
	f.count("OccupiedSeats")
	return f.occupied[sectionID], nil
}

func (f *fakeBackend) SystemConfig(ctx context.Context) (*domain.SystemConfig, error) {
	f.count("SystemConfig")
	if f.systemErr != nil {
		return nil, f.systemErr
	}
	var cfg domain.SystemConfig
	cfg.PlatformFee.FeeBps = f.feeBps
	return &cfg, nil
}

func (f *fakeBackend) CreateHold(ctx context.Context, req domain.HoldRequest) (*domain.HoldResult, error) {
	f.count("CreateHold")
	f.mu.Lock()
	f.holds = append(f.holds, req)
	f.mu.Unlock()
	return f.holdResult, f.holdErr
}

func (f *fakeBackend) CreateReservation(ctx context.Context, req domain.ReservationRequest) (*domain.Reservation, error) {
	f.count("CreateReservation")
	f.mu.Lock()
	f.reservations = append(f.reservations, req)
	f.mu.Unlock()
	return f.reservation, nil
}

func (f *fakeBackend) InitiatePayment(ctx context.Context, reservationID int) (*domain.PaymentInit, error) {
	f.count("InitiatePayment")
	return f.paymentInit, nil
}

func (f *fakeBackend) ConfirmTestPayment(ctx context.Context, reservationID int) (*domain.TestPaymentResult, error) {
	f.count("ConfirmTestPayment")
	return f.testPayResult, nil
}

func (f *fakeBackend) ListPurchasedTickets(ctx context.Context, q domain.TicketQuery) ([]domain.PurchasedTicket, error) {
	f.count("ListPurchasedTickets")
	f.mu.Lock()
	f.ticketQuery = q
	f.mu.Unlock()
	return f.tickets, nil
}
