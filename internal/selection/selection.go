package selection

import (
	"errors"
	"sort"

	"github.com/latasoft/confiaticket-checkout/internal/domain"
)

var (
	ErrSelectionIncomplete = errors.New("selected seats do not match the requested quantity")
	ErrSectionSoldOut      = errors.New("section has no remaining stock")
)

// SeatStatus is how a seat renders for the buyer
type SeatStatus string

const (
	SeatAvailable SeatStatus = "available"
	SeatSelected  SeatStatus = "selected"
	SeatOccupied  SeatStatus = "occupied"
)

// Bounds limits the quantity a buyer may request for one section
type Bounds struct {
	Min int
	Max int
}

// DefaultBounds is 1..10 tickets per section
func DefaultBounds() Bounds {
	return Bounds{Min: 1, Max: 10}
}

// State is the selection of one section: requested quantity, picked seats in pick
// order and the occupied snapshot reported by the backend. It is not safe for
// concurrent use; the owning purchase flow serialises access.
type State struct {
	section  domain.Section
	bounds   Bounds
	grid     []domain.SeatID
	inGrid   map[domain.SeatID]struct{}
	quantity int
	selected []domain.SeatID
	occupied map[domain.SeatID]struct{}
	loaded   bool
}

// New creates the selection for a section with quantity at the lower bound
func New(section domain.Section, bounds Bounds) *State {
	if bounds.Min < 1 {
		bounds.Min = 1
	}
	if bounds.Max < bounds.Min {
		bounds.Max = bounds.Min
	}

	grid := section.SeatGrid()
	inGrid := make(map[domain.SeatID]struct{}, len(grid))
	for _, s := range grid {
		inGrid[s] = struct{}{}
	}

	return &State{
		section:  section,
		bounds:   bounds,
		grid:     grid,
		inGrid:   inGrid,
		quantity: bounds.Min,
		occupied: make(map[domain.SeatID]struct{}),
	}
}

// Section returns the section this selection belongs to
func (s *State) Section() domain.Section {
	return s.section
}

// HasGrid reports whether seats must be picked individually
func (s *State) HasGrid() bool {
	return len(s.grid) > 0
}

// Quantity returns the requested quantity
func (s *State) Quantity() int {
	return s.quantity
}

// MaxQuantity is the configured bound further capped by known remaining stock
func (s *State) MaxQuantity() int {
	max := s.bounds.Max
	if s.section.Available != nil && *s.section.Available < max {
		max = *s.section.Available
	}
	if max < s.bounds.Min {
		max = s.bounds.Min
	}
	return max
}

// Selected returns a copy of the picked seats in pick order
func (s *State) Selected() []domain.SeatID {
	return append([]domain.SeatID(nil), s.selected...)
}

// Toggle picks or releases a seat and reports whether anything changed. Occupied
// seats and seats outside the layout are ignored; a new pick is ignored once the
// selection already holds quantity seats.
func (s *State) Toggle(seat domain.SeatID) bool {
	if _, ok := s.inGrid[seat]; !ok {
		return false
	}
	if _, taken := s.occupied[seat]; taken {
		return false
	}
	for i, picked := range s.selected {
		if picked == seat {
			s.selected = append(s.selected[:i], s.selected[i+1:]...)
			return true
		}
	}
	if len(s.selected) >= s.quantity {
		return false
	}
	s.selected = append(s.selected, seat)
	return true
}

// SetQuantity clamps n into [Min, MaxQuantity] and applies it. Shrinking keeps the
// earliest picks and drops the most recent ones; growing never picks seats on the
// buyer's behalf. It returns the quantity actually applied.
func (s *State) SetQuantity(n int) int {
	if n < s.bounds.Min {
		n = s.bounds.Min
	}
	if max := s.MaxQuantity(); n > max {
		n = max
	}
	if n < s.quantity && len(s.selected) > n {
		s.selected = s.selected[:n]
	}
	s.quantity = n
	return n
}

// OccupancyLoaded reports whether the occupied snapshot was already applied
func (s *State) OccupancyLoaded() bool {
	return s.loaded
}

// ApplyOccupancy records the occupied seats and releases any picked seat among
// them. It returns the seats that were released.
func (s *State) ApplyOccupancy(occupied []domain.SeatID) []domain.SeatID {
	s.occupied = make(map[domain.SeatID]struct{}, len(occupied))
	for _, seat := range occupied {
		s.occupied[seat] = struct{}{}
	}
	s.loaded = true

	var released []domain.SeatID
	kept := s.selected[:0]
	for _, seat := range s.selected {
		if _, taken := s.occupied[seat]; taken {
			released = append(released, seat)
			continue
		}
		kept = append(kept, seat)
	}
	s.selected = kept
	return released
}

// CanConfirm is true when the selection may become a cart line: quantity-only
// sections always can unless sold out, grid sections need exactly quantity seats.
func (s *State) CanConfirm() bool {
	if s.section.IsSoldOut() {
		return false
	}
	if !s.HasGrid() {
		return true
	}
	return len(s.selected) == s.quantity
}

// CartLine converts a confirmable selection into a cart line
func (s *State) CartLine() (domain.CartLine, error) {
	if s.section.IsSoldOut() {
		return domain.CartLine{}, ErrSectionSoldOut
	}
	if !s.CanConfirm() {
		return domain.CartLine{}, ErrSelectionIncomplete
	}
	return domain.NewSectionLine(s.section, s.quantity, s.selected), nil
}

// Restore seeds the selection from an existing cart line so re-editing starts
// where the buyer left off. Seats no longer valid are dropped.
func (s *State) Restore(line domain.CartLine) {
	s.SetQuantity(line.Quantity)
	s.selected = s.selected[:0]
	for _, seat := range line.Seats {
		s.Toggle(seat)
	}
}

// Status returns how a seat should render
func (s *State) Status(seat domain.SeatID) SeatStatus {
	if _, taken := s.occupied[seat]; taken {
		return SeatOccupied
	}
	for _, picked := range s.selected {
		if picked == seat {
			return SeatSelected
		}
	}
	return SeatAvailable
}

// Row is one rendered row of the seat map
type Row struct {
	Label string     `json:"label"`
	Seats []SeatView `json:"seats"`
}

// SeatView is one rendered seat
type SeatView struct {
	ID     domain.SeatID `json:"id"`
	Number int           `json:"number"`
	Status SeatStatus    `json:"status"`
}

// Snapshot is an immutable view of the selection for rendering
type Snapshot struct {
	SectionID       int             `json:"sectionId"`
	SectionName     string          `json:"sectionName"`
	Quantity        int             `json:"quantity"`
	MinQuantity     int             `json:"minQuantity"`
	MaxQuantity     int             `json:"maxQuantity"`
	HasGrid         bool            `json:"hasGrid"`
	Selected        []domain.SeatID `json:"selected"`
	Occupied        []domain.SeatID `json:"occupied"`
	OccupancyLoaded bool            `json:"occupancyLoaded"`
	CanConfirm      bool            `json:"canConfirm"`
	SoldOut         bool            `json:"soldOut"`
	Rows            []Row           `json:"rows,omitempty"`
}

// Snapshot copies the current state
func (s *State) Snapshot() Snapshot {
	occupied := make([]domain.SeatID, 0, len(s.occupied))
	for seat := range s.occupied {
		occupied = append(occupied, seat)
	}
	sort.Slice(occupied, func(i, j int) bool { return occupied[i] < occupied[j] })

	snap := Snapshot{
		SectionID:       s.section.ID,
		SectionName:     s.section.Name,
		Quantity:        s.quantity,
		MinQuantity:     s.bounds.Min,
		MaxQuantity:     s.MaxQuantity(),
		HasGrid:         s.HasGrid(),
		Selected:        s.Selected(),
		Occupied:        occupied,
		OccupancyLoaded: s.loaded,
		CanConfirm:      s.CanConfirm(),
		SoldOut:         s.section.IsSoldOut(),
	}

	if snap.HasGrid {
		byRow := make(map[string]int)
		for _, seat := range s.grid {
			label := seat.Row()
			idx, ok := byRow[label]
			if !ok {
				idx = len(snap.Rows)
				byRow[label] = idx
				snap.Rows = append(snap.Rows, Row{Label: label})
			}
			snap.Rows[idx].Seats = append(snap.Rows[idx].Seats, SeatView{
				ID:     seat,
				Number: seat.Number(),
				Status: s.Status(seat),
			})
		}
	}
	return snap
}
