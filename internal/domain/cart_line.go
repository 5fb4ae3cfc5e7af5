package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidQuantity   = errors.New("quantity must be at least 1")
	ErrSeatCountMismatch = errors.New("selected seats do not match quantity")
	ErrResaleQuantity    = errors.New("a resale ticket is bought alone with quantity 1")
	ErrLineTarget        = errors.New("cart line must reference exactly one section or resale ticket")
	ErrUnknownSeat       = errors.New("seat is not part of the section layout")
	ErrDuplicateSeat     = errors.New("seat selected twice")
)

// LineKey identifies a cart line; a section and a resale ticket never collide
// even when they share a numeric id.
type LineKey struct {
	Resale bool `json:"isResale"`
	ItemID int  `json:"itemId"`
}

func (k LineKey) String() string {
	if k.Resale {
		return fmt.Sprintf("resale:%d", k.ItemID)
	}
	return fmt.Sprintf("section:%d", k.ItemID)
}

// CartLine is one purchasable entry: a section with quantity (and seats when the
// section has a grid) or a single resale ticket.
type CartLine struct {
	Section  *Section      `json:"section,omitempty"`
	Ticket   *ResaleTicket `json:"ticket,omitempty"`
	Quantity int           `json:"quantity"`
	Seats    []SeatID      `json:"seats,omitempty"`
	IsResale bool          `json:"isResale"`
}

// NewSectionLine builds a line for an OWN section
func NewSectionLine(section Section, quantity int, seats []SeatID) CartLine {
	s := section
	return CartLine{
		Section:  &s,
		Quantity: quantity,
		Seats:    append([]SeatID(nil), seats...),
	}
}

// NewResaleLine builds the single-ticket line of a RESALE purchase
func NewResaleLine(ticket ResaleTicket) CartLine {
	t := ticket
	return CartLine{Ticket: &t, Quantity: 1, IsResale: true}
}

// Key returns the dedup key of the line
func (l CartLine) Key() LineKey {
	if l.IsResale && l.Ticket != nil {
		return LineKey{Resale: true, ItemID: l.Ticket.ID}
	}
	if l.Section != nil {
		return LineKey{ItemID: l.Section.ID}
	}
	return LineKey{Resale: l.IsResale}
}

// Validate checks the line is well formed before it enters a cart
func (l CartLine) Validate() error {
	if l.IsResale {
		if l.Ticket == nil || l.Section != nil {
			return ErrLineTarget
		}
		if l.Quantity != 1 || len(l.Seats) > 0 {
			return ErrResaleQuantity
		}
		return nil
	}

	if l.Section == nil || l.Ticket != nil {
		return ErrLineTarget
	}
	if l.Quantity < 1 {
		return ErrInvalidQuantity
	}

	grid := l.Section.SeatGrid()
	if len(grid) == 0 {
		// quantity-only sections carry no seats
		if len(l.Seats) > 0 {
			return ErrSeatCountMismatch
		}
		return nil
	}
	if len(l.Seats) != l.Quantity {
		return fmt.Errorf("%w: %d seats for quantity %d", ErrSeatCountMismatch, len(l.Seats), l.Quantity)
	}

	inGrid := make(map[SeatID]struct{}, len(grid))
	for _, s := range grid {
		inGrid[s] = struct{}{}
	}
	seen := make(map[SeatID]struct{}, len(l.Seats))
	for _, s := range l.Seats {
		if _, ok := inGrid[s]; !ok {
			return fmt.Errorf("%w: %s", ErrUnknownSeat, s)
		}
		if _, dup := seen[s]; dup {
			return fmt.Errorf("%w: %s", ErrDuplicateSeat, s)
		}
		seen[s] = struct{}{}
	}
	return nil
}

// Clone returns a deep copy so snapshots never alias live state
func (l CartLine) Clone() CartLine {
	out := CartLine{Quantity: l.Quantity, IsResale: l.IsResale}
	if l.Section != nil {
		s := *l.Section
		out.Section = &s
	}
	if l.Ticket != nil {
		t := *l.Ticket
		out.Ticket = &t
	}
	if len(l.Seats) > 0 {
		out.Seats = append([]SeatID(nil), l.Seats...)
	}
	return out
}
