package domain

import "time"

// EventMode tells how an event sells its inventory
type EventMode string

const (
	// EventModeOwn events are sold by section and quantity, optionally with numbered seats
	EventModeOwn EventMode = "OWN"
	// EventModeResale events sell individual tickets listed by other buyers
	EventModeResale EventMode = "RESALE"
)

// IsValid checks the mode is one of the known values
func (m EventMode) IsValid() bool {
	return m == EventModeOwn || m == EventModeResale
}

// Event is the purchasable event as described by the backend
type Event struct {
	ID       int       `json:"id"`
	Title    string    `json:"title"`
	Mode     EventMode `json:"mode"`
	Price    int64     `json:"price"` // one price per event, whole CLP
	Currency string    `json:"currency,omitempty"`
	StartsAt time.Time `json:"startsAt"`
}

// HasStarted reports whether the event start time has passed
func (e *Event) HasStarted(now time.Time) bool {
	return !e.StartsAt.IsZero() && !now.Before(e.StartsAt)
}

// Section is a sellable area of an OWN event. Row bounds may be numeric ("1".."20")
// or alphabetic ("A".."AB"); without both bounds and seatsPerRow it is quantity-only.
type Section struct {
	ID            int    `json:"id"`
	Name          string `json:"name"`
	RowStart      string `json:"rowStart,omitempty"`
	RowEnd        string `json:"rowEnd,omitempty"`
	SeatsPerRow   *int   `json:"seatsPerRow,omitempty"`
	TotalCapacity int    `json:"totalCapacity"`
	Available     *int   `json:"available,omitempty"`
}

// HasSeatGrid reports whether the section carries a usable numbered-seat layout
func (s *Section) HasSeatGrid() bool {
	return len(s.SeatGrid()) > 0
}

// SeatGrid expands the section layout into seat ids, row by row
func (s *Section) SeatGrid() []SeatID {
	if s.SeatsPerRow == nil {
		return nil
	}
	return SeatGrid(s.RowStart, s.RowEnd, *s.SeatsPerRow)
}

// Rows returns the row labels of the section layout
func (s *Section) Rows() []string {
	if s.SeatsPerRow == nil {
		return nil
	}
	return ExpandRows(s.RowStart, s.RowEnd, *s.SeatsPerRow)
}

// IsSoldOut is true only when the backend reported zero remaining stock
func (s *Section) IsSoldOut() bool {
	return s.Available != nil && *s.Available <= 0
}

// ResaleTicket is one physical ticket offered on a RESALE event
type ResaleTicket struct {
	ID         int     `json:"id"`
	Row        string  `json:"row"`
	Seat       string  `json:"seat"`
	Zone       *string `json:"zone,omitempty"`
	Level      *string `json:"level,omitempty"`
	TicketCode string  `json:"ticketCode"`
	Sold       bool    `json:"sold"`
}

// AvailableResaleTickets drops tickets already sold, keeping order
func AvailableResaleTickets(tickets []ResaleTicket) []ResaleTicket {
	out := make([]ResaleTicket, 0, len(tickets))
	for _, t := range tickets {
		if !t.Sold {
			out = append(out, t)
		}
	}
	return out
}
