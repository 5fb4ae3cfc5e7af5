package checkout

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/latasoft/confiaticket-checkout/internal/domain"
	"github.com/latasoft/confiaticket-checkout/internal/pricing"
	"github.com/latasoft/confiaticket-checkout/pkg/logger"
	"github.com/latasoft/confiaticket-checkout/pkg/telemetry"
)

// Backend is the part of the ticketing backend the checkout flow calls
type Backend interface {
	CreateHold(ctx context.Context, req domain.HoldRequest) (*domain.HoldResult, error)
	CreateReservation(ctx context.Context, req domain.ReservationRequest) (*domain.Reservation, error)
	InitiatePayment(ctx context.Context, reservationID int) (*domain.PaymentInit, error)
	ConfirmTestPayment(ctx context.Context, reservationID int) (*domain.TestPaymentResult, error)
}

// ActionError is a failed checkout action after the machine settled on its new step
type ActionError struct {
	Step    Step
	Code    ErrorCode
	Message string
	Err     error
}

func (e *ActionError) Error() string {
	return e.Message
}

func (e *ActionError) Unwrap() error {
	return e.Err
}

// Options configures a Machine
type Options struct {
	SessionID        string
	Event            domain.Event
	Backend          Backend
	Journal          Journal
	Publisher        Publisher
	Metrics          *telemetry.CheckoutMetrics
	Logger           *logger.Logger
	AllowTestPayment bool
	LoginPath        string
	OnChange         func(Session)
	Clock            func() time.Time
}

// ProceedRequest is the cart handed to the hold step
type ProceedRequest struct {
	Lines         []domain.CartLine
	Breakdown     pricing.Breakdown
	Authenticated bool
	ReturnPath    string
}

// Machine drives one session through select, processing, confirm, success and error.
// The lock is never held across a backend call; the processing step rejects re-entry.
type Machine struct {
	mu      sync.Mutex
	session Session

	sessionID        string
	event            domain.Event
	backend          Backend
	journal          Journal
	publisher        Publisher
	metrics          *telemetry.CheckoutMetrics
	log              *logger.Logger
	allowTestPayment bool
	loginPath        string
	onChange         func(Session)
	now              func() time.Time
}

// NewMachine creates a machine in the select step
func NewMachine(opts Options) *Machine {
	m := &Machine{
		sessionID:        opts.SessionID,
		event:            opts.Event,
		backend:          opts.Backend,
		journal:          opts.Journal,
		publisher:        opts.Publisher,
		metrics:          opts.Metrics,
		log:              opts.Logger,
		allowTestPayment: opts.AllowTestPayment,
		loginPath:        opts.LoginPath,
		onChange:         opts.OnChange,
		now:              opts.Clock,
	}
	if m.journal == nil {
		m.journal = NewMemoryJournal()
	}
	if m.log == nil {
		m.log = logger.NewNop()
	}
	if m.loginPath == "" {
		m.loginPath = "/login"
	}
	if m.now == nil {
		m.now = time.Now
	}
	m.log = m.log.ForSession(m.sessionID, m.event.ID)
	m.session = Session{Step: StepSelect, UpdatedAt: m.now()}
	return m
}

// Session returns a snapshot of the checkout state
func (m *Machine) Session() Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session.clone()
}

// Step returns the current step
func (m *Machine) Step() Step {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session.Step
}

// Journal returns the transition journal
func (m *Machine) Journal() Journal {
	return m.journal
}

// Proceed holds the cart with the backend. On success the session moves to
// confirm carrying the reservation ids; on failure it returns to select.
func (m *Machine) Proceed(ctx context.Context, req ProceedRequest) (Session, error) {
	ctx, span := telemetry.StartSpan(ctx, "checkout.proceed")
	defer span.End()
	span.SetAttributes(telemetry.SessionIDAttr(m.sessionID), telemetry.CartLinesAttr(len(req.Lines)))

	m.mu.Lock()
	if err := m.requireStepLocked(StepSelect); err != nil {
		m.mu.Unlock()
		return m.Session(), err
	}
	if !req.Authenticated {
		m.session.LoginRedirect = m.loginURL(req.ReturnPath)
		snap := m.touchLocked()
		m.mu.Unlock()
		m.notify(snap)
		return snap, ErrAuthRequired
	}
	if len(req.Lines) == 0 {
		m.mu.Unlock()
		return m.Session(), ErrEmptyCart
	}
	for _, line := range req.Lines {
		if err := line.Validate(); err != nil {
			m.mu.Unlock()
			return m.Session(), err
		}
	}

	m.clearFeedbackLocked()
	m.session.Phase = PhaseHold
	tr, err := m.moveLocked(StepProcessing, "hold requested", CodeUnknown)
	snap := m.session.clone()
	m.mu.Unlock()
	if err != nil {
		return snap, err
	}
	m.emit(ctx, snap, tr)

	result, holdErr := m.hold(ctx, req.Lines)

	m.mu.Lock()
	var trs []Transition
	var actionErr error
	if holdErr != nil {
		actionErr = m.failLocked(holdErr, PhaseHold, StepSelect, req.ReturnPath, &trs)
	} else {
		first := result.ids[0]
		m.session.ReservationIDs = result.ids
		m.session.ReservationID = &first
		m.session.PurchaseGroupID = result.purchaseGroupID
		breakdown := req.Breakdown
		m.session.Breakdown = &breakdown
		m.session.Phase = ""
		trs = m.appendMoveLocked(trs, StepConfirm, "hold created", CodeUnknown)
	}
	snap = m.session.clone()
	m.mu.Unlock()

	m.emit(ctx, snap, trs...)
	if actionErr != nil {
		telemetry.RecordError(span, actionErr)
		return snap, actionErr
	}
	span.SetAttributes(telemetry.ReservationAttr(*snap.ReservationID))
	m.log.Info("Hold created",
		zap.Int("reservation_id", *snap.ReservationID),
		zap.Ints("reservation_ids", snap.ReservationIDs),
	)
	return snap, nil
}

type holdResult struct {
	ids             []int
	purchaseGroupID *string
}

func (m *Machine) hold(ctx context.Context, lines []domain.CartLine) (*holdResult, error) {
	if m.event.Mode == domain.EventModeResale {
		if len(lines) != 1 || !lines[0].IsResale || lines[0].Ticket == nil {
			return nil, domain.ErrResaleQuantity
		}
		res, err := m.backend.CreateReservation(ctx, domain.ReservationRequest{
			EventID:        m.event.ID,
			Quantity:       1,
			ResaleTicketID: lines[0].Ticket.ID,
		})
		if err != nil {
			return nil, err
		}
		if res == nil || res.ID <= 0 {
			return nil, errors.New("reservation response without id")
		}
		return &holdResult{ids: []int{res.ID}}, nil
	}

	req := domain.HoldRequest{EventID: m.event.ID, Sections: make([]domain.HoldSection, 0, len(lines))}
	for _, line := range lines {
		if line.IsResale || line.Section == nil {
			return nil, domain.ErrLineTarget
		}
		req.Sections = append(req.Sections, domain.HoldSection{
			SectionID: line.Section.ID,
			Quantity:  line.Quantity,
			Seats:     domain.SeatIDStrings(line.Seats),
		})
	}

	res, err := m.backend.CreateHold(ctx, req)
	if err != nil {
		return nil, err
	}
	if res == nil || res.PurchaseGroupID == "" || len(res.Reservations) == 0 {
		return nil, errors.New("hold response without reservations")
	}
	ids := make([]int, len(res.Reservations))
	for i, r := range res.Reservations {
		ids[i] = r.ID
	}
	pg := res.PurchaseGroupID
	return &holdResult{ids: ids, purchaseGroupID: &pg}, nil
}

// Pay starts the payment of the held reservation. A redirect URL keeps the
// session in confirm with the redirect recorded; no URL completes the purchase.
// A rejected login returns to confirm with a login redirect back to returnPath.
func (m *Machine) Pay(ctx context.Context, returnPath string) (Session, error) {
	ctx, span := telemetry.StartSpan(ctx, "checkout.pay")
	defer span.End()
	span.SetAttributes(telemetry.SessionIDAttr(m.sessionID))

	reservationID, err := m.beginPayment(ctx)
	if err != nil {
		return m.Session(), err
	}

	init, payErr := m.backend.InitiatePayment(ctx, reservationID)

	m.mu.Lock()
	var trs []Transition
	var actionErr error
	switch {
	case payErr != nil:
		actionErr = m.failLocked(payErr, PhasePayment, StepError, returnPath, &trs)
	case init != nil && init.URL != "":
		m.session.Payment = &PaymentRedirect{URL: init.URL, Token: init.Token}
		m.session.Phase = ""
		trs = m.appendMoveLocked(trs, StepConfirm, "payment redirect", CodeUnknown)
	default:
		m.session.Phase = ""
		trs = m.appendMoveLocked(trs, StepSuccess, "payment completed", CodeUnknown)
	}
	snap := m.session.clone()
	m.mu.Unlock()

	m.emit(ctx, snap, trs...)
	if actionErr != nil {
		telemetry.RecordError(span, actionErr)
	}
	return snap, actionErr
}

// TestPay simulates a payment outside production
func (m *Machine) TestPay(ctx context.Context, returnPath string) (Session, error) {
	if !m.allowTestPayment {
		return m.Session(), ErrTestPaymentDisabled
	}

	ctx, span := telemetry.StartSpan(ctx, "checkout.test_pay")
	defer span.End()
	span.SetAttributes(telemetry.SessionIDAttr(m.sessionID))

	reservationID, err := m.beginPayment(ctx)
	if err != nil {
		return m.Session(), err
	}

	result, payErr := m.backend.ConfirmTestPayment(ctx, reservationID)

	m.mu.Lock()
	var trs []Transition
	var actionErr error
	switch {
	case payErr != nil:
		actionErr = m.failLocked(payErr, PhasePayment, StepConfirm, returnPath, &trs)
	case result != nil && result.OK:
		m.session.Phase = ""
		trs = m.appendMoveLocked(trs, StepSuccess, "test payment confirmed", CodeUnknown)
	default:
		msg := msgPaymentFailed
		if result != nil && result.Error != "" {
			msg = result.Error
		}
		m.session.Error = msg
		m.session.ErrorCode = CodePaymentFailed
		m.session.Phase = ""
		trs = m.appendMoveLocked(trs, StepConfirm, "test payment rejected", CodePaymentFailed)
		actionErr = &ActionError{Step: StepConfirm, Code: CodePaymentFailed, Message: msg}
	}
	snap := m.session.clone()
	m.mu.Unlock()

	m.emit(ctx, snap, trs...)
	if actionErr != nil {
		telemetry.RecordError(span, actionErr)
	}
	return snap, actionErr
}

func (m *Machine) beginPayment(ctx context.Context) (int, error) {
	m.mu.Lock()
	if err := m.requireStepLocked(StepConfirm); err != nil {
		m.mu.Unlock()
		return 0, err
	}
	if m.session.ReservationID == nil {
		m.mu.Unlock()
		return 0, ErrNoReservation
	}
	reservationID := *m.session.ReservationID

	m.clearFeedbackLocked()
	m.session.Payment = nil
	m.session.Phase = PhasePayment
	tr, err := m.moveLocked(StepProcessing, "payment requested", CodeUnknown)
	snap := m.session.clone()
	m.mu.Unlock()
	if err != nil {
		return 0, err
	}
	m.emit(ctx, snap, tr)
	return reservationID, nil
}

// ReturnToSelect abandons a confirm or error step and clears the hold ids
func (m *Machine) ReturnToSelect(ctx context.Context) (Session, error) {
	m.mu.Lock()
	switch m.session.Step {
	case StepSelect:
		snap := m.session.clone()
		m.mu.Unlock()
		return snap, nil
	case StepProcessing:
		m.mu.Unlock()
		return m.Session(), ErrBusy
	}

	from := m.session.Step
	tr, err := m.moveLocked(StepSelect, "returned to select", CodeUnknown)
	if err != nil {
		m.mu.Unlock()
		return m.Session(), err
	}
	m.clearHoldLocked()
	snap := m.session.clone()
	m.mu.Unlock()

	m.emit(ctx, snap, tr)
	m.log.Info("Returned to select", zap.String("from", string(from)))
	return snap, nil
}

// Reset discards everything and starts over in select. Not allowed while processing.
func (m *Machine) Reset(ctx context.Context) (Session, error) {
	m.mu.Lock()
	if m.session.Step == StepProcessing {
		m.mu.Unlock()
		return m.Session(), ErrBusy
	}

	from := m.session.Step
	m.session = Session{Step: StepSelect, UpdatedAt: m.now()}
	var trs []Transition
	if from != StepSelect {
		trs = append(trs, m.newTransition(from, StepSelect, "reset", CodeUnknown))
	}
	snap := m.session.clone()
	m.mu.Unlock()

	m.emit(ctx, snap, trs...)
	return snap, nil
}

func (m *Machine) requireStepLocked(want Step) error {
	switch m.session.Step {
	case want:
		return nil
	case StepProcessing:
		return ErrBusy
	default:
		return fmt.Errorf("%w: step is %s, expected %s", ErrInvalidStateTransition, m.session.Step, want)
	}
}

// failLocked settles a failed backend call. Auth rejections go back to the
// step the buyer came from with a login redirect instead of target.
func (m *Machine) failLocked(err error, phase Phase, target Step, returnPath string, trs *[]Transition) error {
	var be *BackendError
	if errors.As(err, &be) && be.IsUnauthorized() {
		back := StepSelect
		if phase == PhasePayment {
			back = StepConfirm
		}
		m.session.LoginRedirect = m.loginURL(returnPath)
		m.session.Phase = ""
		*trs = m.appendMoveLocked(*trs, back, "login required", CodeUnauthorized)
		m.log.Warn("Backend rejected buyer session", zap.String("phase", string(phase)))
		return fmt.Errorf("%w: %v", ErrAuthRequired, err)
	}

	code, msg := Translate(err, phase)
	m.session.Error = msg
	m.session.ErrorCode = code
	m.session.Phase = ""
	*trs = m.appendMoveLocked(*trs, target, string(phase)+" failed", code)

	m.log.Warn("Checkout action failed",
		zap.String("phase", string(phase)),
		zap.String("error_code", string(code)),
		zap.Error(err),
	)
	return &ActionError{Step: target, Code: code, Message: msg, Err: err}
}

func (m *Machine) appendMoveLocked(trs []Transition, to Step, reason string, code ErrorCode) []Transition {
	tr, err := m.moveLocked(to, reason, code)
	if err != nil {
		// processing reaches every settle target, so this is a programming error
		m.log.Error("Illegal checkout transition", zap.Error(err))
		return trs
	}
	return append(trs, tr)
}

func (m *Machine) moveLocked(to Step, reason string, code ErrorCode) (Transition, error) {
	from := m.session.Step
	if !from.CanTransitionTo(to) {
		return Transition{}, fmt.Errorf("%w: cannot transition from %s to %s", ErrInvalidStateTransition, from, to)
	}
	m.session.Step = to
	m.session.UpdatedAt = m.now()
	return m.newTransition(from, to, reason, code), nil
}

func (m *Machine) newTransition(from, to Step, reason string, code ErrorCode) Transition {
	tr := Transition{
		ID:        uuid.New().String(),
		SessionID: m.sessionID,
		EventID:   m.event.ID,
		From:      from,
		To:        to,
		Reason:    reason,
		ErrorCode: code,
		Timestamp: m.now(),
	}
	if m.session.ReservationID != nil {
		id := *m.session.ReservationID
		tr.ReservationID = &id
	}
	if m.session.PurchaseGroupID != nil {
		pg := *m.session.PurchaseGroupID
		tr.PurchaseGroupID = &pg
	}
	return tr
}

func (m *Machine) touchLocked() Session {
	m.session.UpdatedAt = m.now()
	return m.session.clone()
}

func (m *Machine) clearFeedbackLocked() {
	m.session.Error = ""
	m.session.ErrorCode = CodeUnknown
	m.session.LoginRedirect = ""
}

func (m *Machine) clearHoldLocked() {
	m.clearFeedbackLocked()
	m.session.ReservationID = nil
	m.session.ReservationIDs = nil
	m.session.PurchaseGroupID = nil
	m.session.Payment = nil
	m.session.Breakdown = nil
	m.session.Phase = ""
}

func (m *Machine) loginURL(returnPath string) string {
	if returnPath == "" {
		return m.loginPath
	}
	return m.loginPath + "?redirect=" + url.QueryEscape(returnPath)
}

// emit records transitions and notifies listeners. Journal and publisher
// failures are logged only.
func (m *Machine) emit(ctx context.Context, snap Session, trs ...Transition) {
	ctx = context.WithoutCancel(ctx)
	for _, tr := range trs {
		if err := m.journal.Record(ctx, tr); err != nil {
			m.log.Warn("Failed to journal transition", zap.String("transition_id", tr.ID), zap.Error(err))
		}
		if m.publisher != nil {
			if err := m.publisher.Publish(ctx, tr); err != nil {
				m.log.Warn("Failed to publish transition", zap.String("transition_id", tr.ID), zap.Error(err))
			}
		}
		if m.metrics != nil {
			attrs := append(telemetry.StepAttrs(string(tr.From), string(tr.To)),
				telemetry.EventIDAttr(m.event.ID))
			if tr.ErrorCode != CodeUnknown {
				attrs = append(attrs, telemetry.ErrorCodeAttr(string(tr.ErrorCode)))
			}
			m.metrics.Transitions.Inc(ctx, attrs...)
		}
		m.log.Debug("Checkout transition",
			zap.String("from", string(tr.From)),
			zap.String("to", string(tr.To)),
			zap.String("reason", tr.Reason),
		)
	}
	m.notify(snap)
}

func (m *Machine) notify(snap Session) {
	if m.onChange != nil {
		m.onChange(snap)
	}
}
