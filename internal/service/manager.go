package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/latasoft/confiaticket-checkout/internal/checkout"
	"github.com/latasoft/confiaticket-checkout/internal/client"
	"github.com/latasoft/confiaticket-checkout/internal/domain"
	"github.com/latasoft/confiaticket-checkout/internal/pricing"
	"github.com/latasoft/confiaticket-checkout/internal/selection"
	"github.com/latasoft/confiaticket-checkout/pkg/config"
	"github.com/latasoft/confiaticket-checkout/pkg/logger"
	"github.com/latasoft/confiaticket-checkout/pkg/telemetry"
)

var (
	ErrSessionNotFound = errors.New("purchase session not found")
	ErrUnsupportedMode = errors.New("event mode not supported")
)

// ManagerOptions configures a SessionManager
type ManagerOptions struct {
	Backend   client.Backend
	Journal   checkout.Journal
	Publisher checkout.Publisher
	Metrics   *telemetry.CheckoutMetrics
	Logger    *logger.Logger
	Checkout  config.CheckoutConfig
	Clock     func() time.Time
}

// SessionManager keeps the purchase sessions of this instance in memory
type SessionManager struct {
	mu       sync.RWMutex
	sessions map[string]*PurchaseFlow

	backend   client.Backend
	journal   checkout.Journal
	publisher checkout.Publisher
	metrics   *telemetry.CheckoutMetrics
	log       *logger.Logger
	cfg       config.CheckoutConfig
	now       func() time.Time
}

// NewSessionManager creates an empty registry
func NewSessionManager(opts ManagerOptions) *SessionManager {
	if opts.Journal == nil {
		opts.Journal = checkout.NewMemoryJournal()
	}
	if opts.Logger == nil {
		opts.Logger = logger.NewNop()
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Checkout.MaxQuantity <= 0 {
		opts.Checkout.MaxQuantity = selection.DefaultBounds().Max
	}
	return &SessionManager{
		sessions:  make(map[string]*PurchaseFlow),
		backend:   opts.Backend,
		journal:   opts.Journal,
		publisher: opts.Publisher,
		metrics:   opts.Metrics,
		log:       opts.Logger,
		cfg:       opts.Checkout,
		now:       opts.Clock,
	}
}

// Create loads the event catalog and opens a new purchase session. A non-empty
// ownerID binds the session to that buyer.
func (m *SessionManager) Create(ctx context.Context, eventID int, ownerID string) (*PurchaseFlow, error) {
	ctx, span := telemetry.StartSpan(ctx, "checkout.session.create")
	defer span.End()
	span.SetAttributes(telemetry.EventIDAttr(eventID))

	event, err := m.backend.GetEvent(ctx, eventID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("load event %d: %w", eventID, err)
	}
	if !event.Mode.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedMode, event.Mode)
	}
	span.SetAttributes(telemetry.EventModeAttr(string(event.Mode)))

	var sections []domain.Section
	var resale []domain.ResaleTicket
	switch event.Mode {
	case domain.EventModeOwn:
		sections, err = m.backend.ListSections(ctx, eventID)
		if err != nil {
			telemetry.RecordError(span, err)
			return nil, fmt.Errorf("load sections: %w", err)
		}
	case domain.EventModeResale:
		tickets, err := m.backend.ListResaleTickets(ctx, eventID)
		if err != nil {
			telemetry.RecordError(span, err)
			return nil, fmt.Errorf("load resale tickets: %w", err)
		}
		resale = domain.AvailableResaleTickets(tickets)
	}

	calc, err := m.calculator(ctx, event)
	if err != nil {
		return nil, err
	}

	id := uuid.New().String()
	flow := newPurchaseFlow(flowDeps{
		id:               id,
		owner:            ownerID,
		event:            *event,
		sections:         sections,
		resale:           resale,
		bounds:           selection.Bounds{Min: 1, Max: m.cfg.MaxQuantity},
		calc:             calc,
		backend:          m.backend,
		journal:          m.journal,
		publisher:        m.publisher,
		metrics:          m.metrics,
		log:              m.log,
		allowTestPayment: m.cfg.TestPaymentEnabled,
		loginPath:        m.cfg.LoginPath,
		now:              m.now,
	})

	m.mu.Lock()
	m.sessions[id] = flow
	m.mu.Unlock()

	if m.metrics != nil {
		m.metrics.ActiveSessions.Inc(ctx, telemetry.EventModeAttr(string(event.Mode)))
	}
	m.log.WithContext(ctx).Info("Purchase session created",
		zap.String("session_id", id),
		zap.Int("event_id", event.ID),
		zap.String("mode", string(event.Mode)),
		zap.Int("fee_bps", calc.FeeBps()),
	)
	return flow, nil
}

// calculator prices with the platform fee, falling back to the configured default
func (m *SessionManager) calculator(ctx context.Context, event *domain.Event) (*pricing.Calculator, error) {
	currency := event.Currency
	if currency == "" {
		currency = m.cfg.Currency
	}

	feeBps := m.cfg.DefaultFeeBps
	sys, err := m.backend.SystemConfig(ctx)
	switch {
	case err != nil:
		m.log.WithContext(ctx).Warn("System config unavailable, using default fee",
			zap.Int("fee_bps", feeBps), zap.Error(err))
	case sys.PlatformFee.FeeBps < 0 || sys.PlatformFee.FeeBps > pricing.MaxFeeBps:
		m.log.WithContext(ctx).Warn("Ignoring out of range platform fee",
			zap.Int("fee_bps", sys.PlatformFee.FeeBps))
	default:
		feeBps = sys.PlatformFee.FeeBps
	}

	calc, err := pricing.NewCalculator(feeBps, event.Price, currency)
	if err != nil {
		return nil, fmt.Errorf("build price calculator: %w", err)
	}
	return calc, nil
}

// Get returns a session by id
func (m *SessionManager) Get(id string) (*PurchaseFlow, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	flow, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return flow, nil
}

// Delete discards a session
func (m *SessionManager) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	flow, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	if !ok {
		return ErrSessionNotFound
	}
	m.forget(ctx, flow)
	return nil
}

// Sweep drops sessions idle longer than the session TTL. Sessions waiting on
// the backend are kept.
func (m *SessionManager) Sweep(ctx context.Context) int {
	ttl := m.cfg.SessionTTL
	if ttl <= 0 {
		return 0
	}
	cutoff := m.now().Add(-ttl)

	// Flow locks are taken without holding the registry lock so a busy
	// session cannot stall Create or Get.
	m.mu.RLock()
	candidates := make(map[string]*PurchaseFlow, len(m.sessions))
	for id, flow := range m.sessions {
		candidates[id] = flow
	}
	m.mu.RUnlock()

	for id, flow := range candidates {
		if flow.Step() == checkout.StepProcessing || !flow.LastActive().Before(cutoff) {
			delete(candidates, id)
		}
	}

	var expired []*PurchaseFlow
	m.mu.Lock()
	for id, flow := range candidates {
		if m.sessions[id] == flow {
			delete(m.sessions, id)
			expired = append(expired, flow)
		}
	}
	m.mu.Unlock()

	for _, flow := range expired {
		m.forget(ctx, flow)
	}
	if len(expired) > 0 {
		m.log.Info("Swept idle purchase sessions", zap.Int("count", len(expired)))
	}
	return len(expired)
}

// Len returns the number of live sessions
func (m *SessionManager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

func (m *SessionManager) forget(ctx context.Context, flow *PurchaseFlow) {
	if mj, ok := m.journal.(*checkout.MemoryJournal); ok {
		mj.Forget(flow.ID())
	}
	if m.metrics != nil {
		m.metrics.ActiveSessions.Dec(ctx, telemetry.EventModeAttr(string(flow.Event().Mode)))
	}
}
