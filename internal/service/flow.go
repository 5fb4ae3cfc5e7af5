package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/latasoft/confiaticket-checkout/internal/cart"
	"github.com/latasoft/confiaticket-checkout/internal/checkout"
	"github.com/latasoft/confiaticket-checkout/internal/client"
	"github.com/latasoft/confiaticket-checkout/internal/domain"
	"github.com/latasoft/confiaticket-checkout/internal/pricing"
	"github.com/latasoft/confiaticket-checkout/internal/selection"
	"github.com/latasoft/confiaticket-checkout/pkg/logger"
	"github.com/latasoft/confiaticket-checkout/pkg/telemetry"
)

var (
	ErrSectionNotFound    = errors.New("section not found")
	ErrTicketNotFound     = errors.New("resale ticket not found")
	ErrCartLocked         = errors.New("cart can only change while selecting")
	ErrWrongMode          = errors.New("operation not available for this event mode")
	ErrPurchaseIncomplete = errors.New("purchase is not complete")
	ErrNotSessionOwner    = errors.New("purchase session belongs to another buyer")
)

// Summary is the priced cart
type Summary struct {
	Lines         []domain.CartLine `json:"lines"`
	Breakdown     pricing.Breakdown `json:"breakdown"`
	TotalQuantity int               `json:"totalQuantity"`
}

// Snapshot is the full state of a purchase session for rendering
type Snapshot struct {
	SessionID     string                `json:"sessionId"`
	Event         domain.Event          `json:"event"`
	Sections      []domain.Section      `json:"sections,omitempty"`
	ResaleTickets []domain.ResaleTicket `json:"resaleTickets,omitempty"`
	Selections    []selection.Snapshot  `json:"selections,omitempty"`
	Cart          Summary               `json:"cart"`
	Checkout      checkout.Session      `json:"checkout"`
	LastActive    time.Time             `json:"lastActive"`
}

// PurchaseFlow owns the catalog, selections, cart and checkout machine of one
// purchase session. Flow state is guarded by mu; the machine is only called
// with mu released because it reports changes back through notify.
type PurchaseFlow struct {
	mu sync.Mutex

	id       string
	owner    string
	event    domain.Event
	sections []domain.Section
	resale   []domain.ResaleTicket
	bounds   selection.Bounds

	selections map[int]*selection.State
	cart       *cart.Cart
	calc       *pricing.Calculator
	machine    *checkout.Machine
	submitting bool

	backend    client.Backend
	log        *logger.Logger
	now        func() time.Time
	lastActive time.Time

	listenerMu sync.RWMutex
	listener   func(Snapshot)
}

type flowDeps struct {
	id               string
	owner            string
	event            domain.Event
	sections         []domain.Section
	resale           []domain.ResaleTicket
	bounds           selection.Bounds
	calc             *pricing.Calculator
	backend          client.Backend
	journal          checkout.Journal
	publisher        checkout.Publisher
	metrics          *telemetry.CheckoutMetrics
	log              *logger.Logger
	allowTestPayment bool
	loginPath        string
	now              func() time.Time
}

func newPurchaseFlow(d flowDeps) *PurchaseFlow {
	if d.now == nil {
		d.now = time.Now
	}
	if d.log == nil {
		d.log = logger.NewNop()
	}
	f := &PurchaseFlow{
		id:         d.id,
		owner:      d.owner,
		event:      d.event,
		sections:   d.sections,
		resale:     d.resale,
		bounds:     d.bounds,
		selections: make(map[int]*selection.State),
		cart:       cart.New(d.event.Mode),
		calc:       d.calc,
		backend:    d.backend,
		log:        d.log.ForSession(d.id, d.event.ID),
		now:        d.now,
		lastActive: d.now(),
	}
	f.machine = checkout.NewMachine(checkout.Options{
		SessionID:        d.id,
		Event:            d.event,
		Backend:          d.backend,
		Journal:          d.journal,
		Publisher:        d.publisher,
		Metrics:          d.metrics,
		Logger:           d.log,
		AllowTestPayment: d.allowTestPayment,
		LoginPath:        d.loginPath,
		OnChange:         func(checkout.Session) { f.notify() },
		Clock:            d.now,
	})
	return f
}

// ID returns the session id
func (f *PurchaseFlow) ID() string {
	return f.id
}

// Event returns the event being purchased
func (f *PurchaseFlow) Event() domain.Event {
	return f.event
}

// OnChange registers the callback invoked with a fresh snapshot after every change
func (f *PurchaseFlow) OnChange(fn func(Snapshot)) {
	f.listenerMu.Lock()
	defer f.listenerMu.Unlock()
	f.listener = fn
}

// Claim checks that userID may use the session. An anonymous session is bound
// to the first authenticated buyer who touches it.
func (f *PurchaseFlow) Claim(userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch {
	case f.owner == "":
		f.owner = userID
	case userID == "":
		return checkout.ErrAuthRequired
	case userID != f.owner:
		return ErrNotSessionOwner
	}
	return nil
}

// LastActive returns when the session was last used
func (f *PurchaseFlow) LastActive() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastActive
}

// Step returns the checkout step
func (f *PurchaseFlow) Step() checkout.Step {
	return f.machine.Step()
}

// OpenSection prepares the selection of a section, fetching its occupancy the
// first time a seat-mapped section is opened.
func (f *PurchaseFlow) OpenSection(ctx context.Context, sectionID int) (selection.Snapshot, error) {
	f.mu.Lock()
	state, err := f.selectionLocked(sectionID)
	if err != nil {
		f.mu.Unlock()
		return selection.Snapshot{}, err
	}
	needsOccupancy := state.HasGrid() && !state.OccupancyLoaded()
	snap := state.Snapshot()
	f.mu.Unlock()

	if !needsOccupancy {
		return snap, nil
	}

	occupied, err := f.backend.OccupiedSeats(ctx, f.event.ID, sectionID)
	if err != nil {
		f.log.WithContext(ctx).Warn("Failed to load occupied seats", zap.Int("section_id", sectionID), zap.Error(err))
		return snap, fmt.Errorf("load occupied seats: %w", err)
	}

	f.mu.Lock()
	if !state.OccupancyLoaded() {
		if released := state.ApplyOccupancy(occupied); len(released) > 0 {
			f.log.Info("Released seats taken by others",
				zap.Int("section_id", sectionID),
				zap.Strings("seats", domain.SeatIDStrings(released)),
			)
		}
	}
	snap = state.Snapshot()
	f.touchLocked()
	f.mu.Unlock()

	f.notify()
	return snap, nil
}

// ToggleSeat picks or releases a seat. The returned bool is false when the
// toggle was ignored (occupied seat, unknown seat or quantity reached).
func (f *PurchaseFlow) ToggleSeat(sectionID int, seat domain.SeatID) (selection.Snapshot, bool, error) {
	f.mu.Lock()
	if err := f.requireEditableLocked(); err != nil {
		f.mu.Unlock()
		return selection.Snapshot{}, false, err
	}
	state, err := f.selectionLocked(sectionID)
	if err != nil {
		f.mu.Unlock()
		return selection.Snapshot{}, false, err
	}
	changed := state.Toggle(seat)
	snap := state.Snapshot()
	f.touchLocked()
	f.mu.Unlock()

	if changed {
		f.notify()
	}
	return snap, changed, nil
}

// SetQuantity changes the requested quantity of a section, clamped to its bounds
func (f *PurchaseFlow) SetQuantity(sectionID, quantity int) (selection.Snapshot, error) {
	f.mu.Lock()
	if err := f.requireEditableLocked(); err != nil {
		f.mu.Unlock()
		return selection.Snapshot{}, err
	}
	state, err := f.selectionLocked(sectionID)
	if err != nil {
		f.mu.Unlock()
		return selection.Snapshot{}, err
	}
	state.SetQuantity(quantity)
	snap := state.Snapshot()
	f.touchLocked()
	f.mu.Unlock()

	f.notify()
	return snap, nil
}

// AddSection puts the section's confirmed selection in the cart, replacing
// any earlier line for the same section.
func (f *PurchaseFlow) AddSection(sectionID int) (Summary, cart.Change, error) {
	f.mu.Lock()
	if err := f.requireEditableLocked(); err != nil {
		f.mu.Unlock()
		return Summary{}, "", err
	}
	state, err := f.selectionLocked(sectionID)
	if err != nil {
		f.mu.Unlock()
		return Summary{}, "", err
	}
	line, err := state.CartLine()
	if err != nil {
		f.mu.Unlock()
		return Summary{}, "", err
	}
	change, err := f.cart.AddOrUpdate(line)
	if err != nil {
		f.mu.Unlock()
		return Summary{}, "", err
	}
	summary := f.summaryLocked()
	f.touchLocked()
	f.mu.Unlock()

	f.log.Debug("Section added to cart", zap.Int("section_id", sectionID), zap.String("change", string(change)))
	f.notify()
	return summary, change, nil
}

// SelectResaleTicket makes ticketID the cart's only line; selecting it again empties the cart
func (f *PurchaseFlow) SelectResaleTicket(ticketID int) (Summary, cart.Change, error) {
	f.mu.Lock()
	if err := f.requireEditableLocked(); err != nil {
		f.mu.Unlock()
		return Summary{}, "", err
	}
	if f.event.Mode != domain.EventModeResale {
		f.mu.Unlock()
		return Summary{}, "", ErrWrongMode
	}
	ticket, ok := f.findTicketLocked(ticketID)
	if !ok {
		f.mu.Unlock()
		return Summary{}, "", fmt.Errorf("%w: %d", ErrTicketNotFound, ticketID)
	}
	change, err := f.cart.AddOrUpdate(domain.NewResaleLine(ticket))
	if err != nil {
		f.mu.Unlock()
		return Summary{}, "", err
	}
	summary := f.summaryLocked()
	f.touchLocked()
	f.mu.Unlock()

	f.notify()
	return summary, change, nil
}

// RemoveLine deletes a cart line. A section line takes its quantity and seat
// picks with it.
func (f *PurchaseFlow) RemoveLine(key domain.LineKey) (Summary, error) {
	f.mu.Lock()
	if err := f.requireEditableLocked(); err != nil {
		f.mu.Unlock()
		return Summary{}, err
	}
	if err := f.cart.Remove(key); err != nil {
		f.mu.Unlock()
		return Summary{}, err
	}
	if !key.Resale {
		delete(f.selections, key.ItemID)
	}
	summary := f.summaryLocked()
	f.touchLocked()
	f.mu.Unlock()

	f.notify()
	return summary, nil
}

// Summary prices the current cart
func (f *PurchaseFlow) Summary() Summary {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.summaryLocked()
}

// Proceed submits the cart for a hold. The cart is locked until the machine settles.
func (f *PurchaseFlow) Proceed(ctx context.Context, authenticated bool, returnPath string) (checkout.Session, error) {
	f.mu.Lock()
	if f.submitting {
		f.mu.Unlock()
		return f.machine.Session(), checkout.ErrBusy
	}
	summary := f.summaryLocked()
	f.submitting = true
	f.touchLocked()
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.submitting = false
		f.mu.Unlock()
	}()

	session, err := f.machine.Proceed(ctx, checkout.ProceedRequest{
		Lines:         summary.Lines,
		Breakdown:     summary.Breakdown,
		Authenticated: authenticated,
		ReturnPath:    returnPath,
	})

	var actionErr *checkout.ActionError
	if errors.As(err, &actionErr) {
		switch actionErr.Code {
		case checkout.CodeSeatsAlreadyReserved:
			f.dropSeatMaps()
		case checkout.CodeSectionInsufficientStock, checkout.CodeInsufficientStock:
			f.invalidateCatalog(ctx)
		}
	}
	return session, err
}

// invalidateCatalog forgets cached stock so the next session sees fresh availability
func (f *PurchaseFlow) invalidateCatalog(ctx context.Context) {
	inv, ok := f.backend.(client.CatalogInvalidator)
	if !ok {
		return
	}
	if err := inv.Invalidate(ctx, f.event.ID); err != nil {
		f.log.WithContext(ctx).Warn("Failed to invalidate catalog cache", zap.Error(err))
	}
}

// dropSeatMaps forgets seat-mapped selections so reopening a section reloads
// occupancy and restores the buyer's picks from the cart.
func (f *PurchaseFlow) dropSeatMaps() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, state := range f.selections {
		if state.HasGrid() {
			delete(f.selections, id)
		}
	}
}

// Pay starts the payment of the held reservation
func (f *PurchaseFlow) Pay(ctx context.Context, returnPath string) (checkout.Session, error) {
	f.touch()
	return f.machine.Pay(ctx, returnPath)
}

// TestPay simulates a payment outside production
func (f *PurchaseFlow) TestPay(ctx context.Context, returnPath string) (checkout.Session, error) {
	f.touch()
	return f.machine.TestPay(ctx, returnPath)
}

// ReturnToSelect leaves confirm or error and reopens the cart for editing
func (f *PurchaseFlow) ReturnToSelect(ctx context.Context) (checkout.Session, error) {
	f.touch()
	return f.machine.ReturnToSelect(ctx)
}

// Reset empties the cart and selections and restarts checkout
func (f *PurchaseFlow) Reset(ctx context.Context) (checkout.Session, error) {
	session, err := f.machine.Reset(ctx)
	if err != nil {
		return session, err
	}

	f.mu.Lock()
	f.cart.Clear()
	f.selections = make(map[int]*selection.State)
	f.touchLocked()
	f.mu.Unlock()

	f.notify()
	return session, nil
}

// Tickets lists the tickets issued by a completed purchase
func (f *PurchaseFlow) Tickets(ctx context.Context) ([]domain.PurchasedTicket, error) {
	session := f.machine.Session()
	if session.Step != checkout.StepSuccess {
		return nil, ErrPurchaseIncomplete
	}
	return f.backend.ListPurchasedTickets(ctx, domain.TicketQuery{
		ReservationID:   session.ReservationID,
		PurchaseGroupID: session.PurchaseGroupID,
	})
}

// Checkout returns the checkout state
func (f *PurchaseFlow) Checkout() checkout.Session {
	return f.machine.Session()
}

// Transitions returns the recorded step history of the session
func (f *PurchaseFlow) Transitions(ctx context.Context) ([]checkout.Transition, error) {
	return f.machine.Journal().History(ctx, f.id)
}

// Snapshot returns the full session state
func (f *PurchaseFlow) Snapshot() Snapshot {
	session := f.machine.Session()

	f.mu.Lock()
	defer f.mu.Unlock()

	snap := Snapshot{
		SessionID:     f.id,
		Event:         f.event,
		Sections:      append([]domain.Section(nil), f.sections...),
		ResaleTickets: append([]domain.ResaleTicket(nil), f.resale...),
		Cart:          f.summaryLocked(),
		Checkout:      session,
		LastActive:    f.lastActive,
	}
	for _, s := range f.sections {
		if state, ok := f.selections[s.ID]; ok {
			snap.Selections = append(snap.Selections, state.Snapshot())
		}
	}
	return snap
}

func (f *PurchaseFlow) selectionLocked(sectionID int) (*selection.State, error) {
	if f.event.Mode != domain.EventModeOwn {
		return nil, ErrWrongMode
	}
	if state, ok := f.selections[sectionID]; ok {
		return state, nil
	}
	section, ok := f.findSectionLocked(sectionID)
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrSectionNotFound, sectionID)
	}
	state := selection.New(section, f.bounds)
	if line, inCart := f.cart.Get(domain.LineKey{ItemID: sectionID}); inCart {
		state.Restore(line)
	}
	f.selections[sectionID] = state
	return state, nil
}

func (f *PurchaseFlow) findSectionLocked(id int) (domain.Section, bool) {
	for _, s := range f.sections {
		if s.ID == id {
			return s, true
		}
	}
	return domain.Section{}, false
}

func (f *PurchaseFlow) findTicketLocked(id int) (domain.ResaleTicket, bool) {
	for _, t := range f.resale {
		if t.ID == id {
			return t, true
		}
	}
	return domain.ResaleTicket{}, false
}

func (f *PurchaseFlow) requireEditableLocked() error {
	if f.submitting || f.machine.Step() != checkout.StepSelect {
		return ErrCartLocked
	}
	return nil
}

func (f *PurchaseFlow) summaryLocked() Summary {
	lines := f.cart.Lines()
	return Summary{
		Lines:         lines,
		Breakdown:     f.calc.Calculate(lines),
		TotalQuantity: f.cart.TotalQuantity(),
	}
}

func (f *PurchaseFlow) touch() {
	f.mu.Lock()
	f.touchLocked()
	f.mu.Unlock()
}

func (f *PurchaseFlow) touchLocked() {
	f.lastActive = f.now()
}

func (f *PurchaseFlow) notify() {
	f.listenerMu.RLock()
	fn := f.listener
	f.listenerMu.RUnlock()
	if fn != nil {
		fn(f.Snapshot())
	}
}
