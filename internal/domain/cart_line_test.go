package domain

import (
	"errors"
	"testing"
)

func gridSection(id int) Section {
	n := 2
	return Section{ID: id, Name: "Platea", RowStart: "A", RowEnd: "B", SeatsPerRow: &n, TotalCapacity: 4}
}

func TestCartLine_Validate(t *testing.T) {
	general := Section{ID: 9, Name: "Cancha", TotalCapacity: 500}

	tests := []struct {
		name    string
		line    CartLine
		wantErr error
	}{
		{"quantity-only section", NewSectionLine(general, 3, nil), nil},
		{"grid section with matching seats", NewSectionLine(gridSection(1), 2, []SeatID{"A-1", "B-2"}), nil},
		{"resale ticket", NewResaleLine(ResaleTicket{ID: 5}), nil},
		{"zero quantity", NewSectionLine(general, 0, nil), ErrInvalidQuantity},
		{"seats on quantity-only section", NewSectionLine(general, 1, []SeatID{"A-1"}), ErrSeatCountMismatch},
		{"too few seats", NewSectionLine(gridSection(1), 2, []SeatID{"A-1"}), ErrSeatCountMismatch},
		{"seat outside layout", NewSectionLine(gridSection(1), 1, []SeatID{"Z-9"}), ErrUnknownSeat},
		{"duplicate seat", NewSectionLine(gridSection(1), 2, []SeatID{"A-1", "A-1"}), ErrDuplicateSeat},
		{"resale with quantity 2", CartLine{Ticket: &ResaleTicket{ID: 5}, Quantity: 2, IsResale: true}, ErrResaleQuantity},
		{"resale without ticket", CartLine{Quantity: 1, IsResale: true}, ErrLineTarget},
		{"section line without section", CartLine{Quantity: 1}, ErrLineTarget},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.line.Validate()
			if tt.wantErr == nil && err != nil {
				t.Errorf("Validate() error = %v, want nil", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestCartLine_Key(t *testing.T) {
	section := NewSectionLine(Section{ID: 7}, 1, nil)
	resale := NewResaleLine(ResaleTicket{ID: 7})

	if section.Key() == resale.Key() {
		t.Error("section and resale ticket with the same id must not share a key")
	}
	if got := resale.Key().String(); got != "resale:7" {
		t.Errorf("Key().String() = %q, want resale:7", got)
	}
	if got := section.Key().String(); got != "section:7" {
		t.Errorf("Key().String() = %q, want section:7", got)
	}
}

func TestCartLine_CloneDoesNotAlias(t *testing.T) {
	line := NewSectionLine(gridSection(1), 1, []SeatID{"A-1"})
	clone := line.Clone()

	clone.Seats[0] = "B-2"
	clone.Section.Name = "Otro"

	if line.Seats[0] != "A-1" {
		t.Error("clone shares seat slice with original")
	}
	if line.Section.Name != "Platea" {
		t.Error("clone shares section with original")
	}
}
