package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/latasoft/confiaticket-checkout/internal/checkout"
	"github.com/latasoft/confiaticket-checkout/internal/domain"
	"github.com/latasoft/confiaticket-checkout/pkg/logger"
	"github.com/latasoft/confiaticket-checkout/pkg/response"
	"github.com/latasoft/confiaticket-checkout/pkg/telemetry"
)

const maxResponseBytes = 1 << 20

// Config configures the HTTP backend
type Config struct {
	BaseURL string
	Timeout time.Duration
	Metrics *telemetry.CheckoutMetrics
}

// HTTPBackend implements Backend over the platform's REST API
type HTTPBackend struct {
	baseURL    string
	httpClient *http.Client
	metrics    *telemetry.CheckoutMetrics
}

// NewHTTPBackend creates a new HTTP backend client
func NewHTTPBackend(cfg Config) *HTTPBackend {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPBackend{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		metrics: cfg.Metrics,
	}
}

// GetEvent fetches the event descriptor
func (c *HTTPBackend) GetEvent(ctx context.Context, eventID int) (*domain.Event, error) {
	var event domain.Event
	if err := c.do(ctx, "get_event", http.MethodGet, fmt.Sprintf("/api/v1/events/%d", eventID), nil, nil, &event); err != nil {
		return nil, err
	}
	return &event, nil
}

// ListSections fetches the sections of an OWN event
func (c *HTTPBackend) ListSections(ctx context.Context, eventID int) ([]domain.Section, error) {
	var sections []domain.Section
	if err := c.do(ctx, "list_sections", http.MethodGet, fmt.Sprintf("/api/v1/events/%d/sections", eventID), nil, nil, &sections); err != nil {
		return nil, err
	}
	return sections, nil
}

// ListResaleTickets fetches the tickets listed on a RESALE event
func (c *HTTPBackend) ListResaleTickets(ctx context.Context, eventID int) ([]domain.ResaleTicket, error) {
	var tickets []domain.ResaleTicket
	if err := c.do(ctx, "list_resale_tickets", http.MethodGet, fmt.Sprintf("/api/v1/events/%d/resale-tickets", eventID), nil, nil, &tickets); err != nil {
		return nil, err
	}
	return tickets, nil
}

// OccupiedSeats fetches the seats already taken in a section
func (c *HTTPBackend) OccupiedSeats(ctx context.Context, eventID, sectionID int) ([]domain.SeatID, error) {
	var out domain.OccupiedSeats
	path := fmt.Sprintf("/api/v1/events/%d/sections/%d/occupied-seats", eventID, sectionID)
	if err := c.do(ctx, "occupied_seats", http.MethodGet, path, nil, nil, &out); err != nil {
		return nil, err
	}
	return out.OccupiedSeats, nil
}

// CreateHold reserves every line of an OWN cart
func (c *HTTPBackend) CreateHold(ctx context.Context, req domain.HoldRequest) (*domain.HoldResult, error) {
	var out domain.HoldResult
	if err := c.do(ctx, "create_hold", http.MethodPost, "/api/v1/bookings/holds", nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateReservation reserves a single resale ticket
func (c *HTTPBackend) CreateReservation(ctx context.Context, req domain.ReservationRequest) (*domain.Reservation, error) {
	var out domain.Reservation
	if err := c.do(ctx, "create_reservation", http.MethodPost, "/api/v1/bookings/reservations", nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// InitiatePayment starts the payment of a reservation
func (c *HTTPBackend) InitiatePayment(ctx context.Context, reservationID int) (*domain.PaymentInit, error) {
	var out domain.PaymentInit
	body := map[string]int{"reservationId": reservationID}
	if err := c.do(ctx, "initiate_payment", http.MethodPost, "/api/v1/payments/init", nil, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ConfirmTestPayment simulates a successful payment outside production
func (c *HTTPBackend) ConfirmTestPayment(ctx context.Context, reservationID int) (*domain.TestPaymentResult, error) {
	var out domain.TestPaymentResult
	body := map[string]int{"reservationId": reservationID}
	if err := c.do(ctx, "confirm_test_payment", http.MethodPost, "/api/v1/payments/test-confirm", nil, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SystemConfig fetches the platform settings
func (c *HTTPBackend) SystemConfig(ctx context.Context) (*domain.SystemConfig, error) {
	var out domain.SystemConfig
	if err := c.do(ctx, "system_config", http.MethodGet, "/api/v1/config/system", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListPurchasedTickets fetches the tickets issued for a reservation or purchase group
func (c *HTTPBackend) ListPurchasedTickets(ctx context.Context, q domain.TicketQuery) ([]domain.PurchasedTicket, error) {
	query := url.Values{}
	if q.PurchaseGroupID != nil {
		query.Set("purchaseGroupId", *q.PurchaseGroupID)
	} else if q.ReservationID != nil {
		query.Set("reservationId", strconv.Itoa(*q.ReservationID))
	} else {
		return nil, errors.New("ticket query needs a reservation or purchase group")
	}

	var tickets []domain.PurchasedTicket
	if err := c.do(ctx, "list_tickets", http.MethodGet, "/api/v1/bookings/tickets", query, nil, &tickets); err != nil {
		return nil, err
	}
	return tickets, nil
}

func (c *HTTPBackend) do(ctx context.Context, op, method, path string, query url.Values, body, out interface{}) (err error) {
	ctx, span := telemetry.StartSpan(ctx, "backend."+op)
	defer span.End()
	span.SetAttributes(
		telemetry.OperationAttr(op),
		attribute.String("http.method", method),
		attribute.String("http.route", path),
	)

	start := time.Now()
	defer func() {
		c.metrics.ObserveBackend(ctx, op, start, err)
		if err != nil {
			telemetry.RecordError(span, err)
		}
	}()

	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token, ok := AuthToken(ctx); ok {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if requestID, ok := ctx.Value(logger.RequestIDKey).(string); ok && requestID != "" {
		req.Header.Set("X-Request-ID", requestID)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s request failed: %w", op, err)
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("failed to read %s response: %w", op, err)
	}

	var envelope response.Envelope
	decodeErr := json.Unmarshal(raw, &envelope)

	if resp.StatusCode >= http.StatusBadRequest || (decodeErr == nil && !envelope.Success) {
		return backendError(resp.StatusCode, envelope.Error)
	}
	if decodeErr != nil {
		return fmt.Errorf("failed to decode %s response: %w", op, decodeErr)
	}

	if out == nil || len(envelope.Data) == 0 || string(envelope.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(envelope.Data, out); err != nil {
		return fmt.Errorf("failed to decode %s data: %w", op, err)
	}
	return nil
}

func backendError(status int, info *response.ErrorInfo) *checkout.BackendError {
	be := &checkout.BackendError{Status: status}
	if info == nil {
		be.Message = http.StatusText(status)
		return be
	}

	be.Code = checkout.ParseErrorCode(info.Code)
	be.RawCode = info.Code
	be.Message = info.Message
	be.ConflictingSeats = info.ConflictingSeats()
	be.SectionName = info.Details[response.DetailSectionName]
	if n, err := strconv.Atoi(info.Details[response.DetailAvailable]); err == nil {
		be.Available = &n
	}
	return be
}
