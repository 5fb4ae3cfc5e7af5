package selection

import (
	"math/rand"
	"testing"

	"github.com/latasoft/confiaticket-checkout/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(n int) *int { return &n }

func gridSection() domain.Section {
	return domain.Section{
		ID:            1,
		Name:          "Platea Baja",
		RowStart:      "A",
		RowEnd:        "C",
		SeatsPerRow:   intPtr(4),
		TotalCapacity: 12,
	}
}

func TestToggle(t *testing.T) {
	s := New(gridSection(), DefaultBounds())
	s.SetQuantity(2)

	assert.True(t, s.Toggle("A-1"))
	assert.True(t, s.Toggle("A-2"))
	assert.False(t, s.Toggle("A-3"), "third pick must be ignored at quantity 2")
	assert.Equal(t, []domain.SeatID{"A-1", "A-2"}, s.Selected())

	assert.True(t, s.Toggle("A-1"), "picking a selected seat releases it")
	assert.Equal(t, []domain.SeatID{"A-2"}, s.Selected())

	assert.False(t, s.Toggle("Z-1"), "seat outside layout")
	assert.False(t, s.Toggle("A-99"), "seat number outside layout")
}

func TestToggle_OccupiedIsNoOp(t *testing.T) {
	s := New(gridSection(), DefaultBounds())
	s.ApplyOccupancy([]domain.SeatID{"B-2"})

	assert.False(t, s.Toggle("B-2"))
	assert.Empty(t, s.Selected())
	assert.Equal(t, SeatOccupied, s.Status("B-2"))
}

func TestApplyOccupancy_ReleasesPickedSeats(t *testing.T) {
	s := New(gridSection(), DefaultBounds())
	s.SetQuantity(3)
	s.Toggle("A-1")
	s.Toggle("A-2")
	s.Toggle("A-3")

	released := s.ApplyOccupancy([]domain.SeatID{"A-2", "C-4"})

	assert.Equal(t, []domain.SeatID{"A-2"}, released)
	assert.Equal(t, []domain.SeatID{"A-1", "A-3"}, s.Selected())
	assert.True(t, s.OccupancyLoaded())
	assert.False(t, s.CanConfirm())
}

func TestSetQuantity_ShrinkKeepsEarliestPicks(t *testing.T) {
	s := New(gridSection(), DefaultBounds())
	s.SetQuantity(3)
	s.Toggle("A-1")
	s.Toggle("A-2")
	s.Toggle("A-3")

	got := s.SetQuantity(1)

	assert.Equal(t, 1, got)
	assert.Equal(t, []domain.SeatID{"A-1"}, s.Selected())
	assert.True(t, s.CanConfirm())
}

func TestSetQuantity_GrowNeverAddsSeats(t *testing.T) {
	s := New(gridSection(), DefaultBounds())
	s.Toggle("A-1")
	require.True(t, s.CanConfirm())

	s.SetQuantity(3)

	assert.Equal(t, []domain.SeatID{"A-1"}, s.Selected())
	assert.False(t, s.CanConfirm())
}

func TestSetQuantity_Bounds(t *testing.T) {
	tests := []struct {
		name      string
		bounds    Bounds
		available *int
		in        int
		want      int
	}{
		{"below minimum", DefaultBounds(), nil, 0, 1},
		{"negative", DefaultBounds(), nil, -5, 1},
		{"above maximum", DefaultBounds(), nil, 11, 10},
		{"custom maximum", Bounds{Min: 1, Max: 4}, nil, 6, 4},
		{"capped by stock", DefaultBounds(), intPtr(3), 8, 3},
		{"stock above bound", DefaultBounds(), intPtr(50), 12, 10},
		{"within range", DefaultBounds(), nil, 6, 6},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			section := domain.Section{ID: 2, Name: "Cancha", Available: tt.available}
			s := New(section, tt.bounds)
			assert.Equal(t, tt.want, s.SetQuantity(tt.in))
			assert.Equal(t, tt.want, s.Quantity())
		})
	}
}

func TestCanConfirm_QuantityOnly(t *testing.T) {
	s := New(domain.Section{ID: 3, Name: "General"}, DefaultBounds())
	s.SetQuantity(4)

	assert.False(t, s.HasGrid())
	assert.True(t, s.CanConfirm())

	line, err := s.CartLine()
	require.NoError(t, err)
	assert.Equal(t, 4, line.Quantity)
	assert.Empty(t, line.Seats)
	assert.NoError(t, line.Validate())
}

func TestCanConfirm_SoldOut(t *testing.T) {
	s := New(domain.Section{ID: 4, Name: "VIP", Available: intPtr(0)}, DefaultBounds())

	assert.False(t, s.CanConfirm())
	_, err := s.CartLine()
	assert.ErrorIs(t, err, ErrSectionSoldOut)
}

func TestCartLine_Incomplete(t *testing.T) {
	s := New(gridSection(), DefaultBounds())
	s.SetQuantity(2)
	s.Toggle("A-1")

	_, err := s.CartLine()
	assert.ErrorIs(t, err, ErrSelectionIncomplete)

	s.Toggle("B-1")
	line, err := s.CartLine()
	require.NoError(t, err)
	assert.Equal(t, []domain.SeatID{"A-1", "B-1"}, line.Seats)
	assert.NoError(t, line.Validate())
}

func TestRestore(t *testing.T) {
	s := New(gridSection(), DefaultBounds())
	s.ApplyOccupancy([]domain.SeatID{"C-1"})

	s.Restore(domain.NewSectionLine(gridSection(), 2, []domain.SeatID{"B-3", "C-1"}))

	assert.Equal(t, 2, s.Quantity())
	assert.Equal(t, []domain.SeatID{"B-3"}, s.Selected(), "occupied seat must not come back")
}

func TestSnapshot(t *testing.T) {
	s := New(gridSection(), DefaultBounds())
	s.ApplyOccupancy([]domain.SeatID{"C-4", "A-4"})
	s.Toggle("A-1")

	snap := s.Snapshot()

	assert.Equal(t, 1, snap.SectionID)
	assert.True(t, snap.HasGrid)
	assert.True(t, snap.CanConfirm)
	assert.Equal(t, []domain.SeatID{"A-4", "C-4"}, snap.Occupied)
	require.Len(t, snap.Rows, 3)
	assert.Equal(t, "A", snap.Rows[0].Label)
	require.Len(t, snap.Rows[0].Seats, 4)
	assert.Equal(t, SeatSelected, snap.Rows[0].Seats[0].Status)
	assert.Equal(t, SeatAvailable, snap.Rows[0].Seats[1].Status)
	assert.Equal(t, SeatOccupied, snap.Rows[0].Seats[3].Status)

	snap.Selected[0] = "B-1"
	assert.Equal(t, []domain.SeatID{"A-1"}, s.Selected(), "snapshot must not alias state")
}

// Random toggles and quantity changes must never break the selection invariants.
func TestSelection_InvariantsUnderRandomOperations(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	section := gridSection()
	grid := section.SeatGrid()

	for run := 0; run < 200; run++ {
		s := New(gridSection(), DefaultBounds())
		occupied := []domain.SeatID{grid[rng.Intn(len(grid))], grid[rng.Intn(len(grid))]}

		for step := 0; step < 50; step++ {
			switch rng.Intn(4) {
			case 0:
				s.SetQuantity(rng.Intn(14) - 1)
			case 1:
				s.ApplyOccupancy(occupied)
			default:
				s.Toggle(grid[rng.Intn(len(grid))])
			}

			selected := s.Selected()
			if len(selected) > s.Quantity() {
				t.Fatalf("run %d step %d: %d seats selected for quantity %d", run, step, len(selected), s.Quantity())
			}
			if s.CanConfirm() != (len(selected) == s.Quantity()) {
				t.Fatalf("run %d step %d: CanConfirm disagrees with seat count", run, step)
			}
			if s.OccupancyLoaded() {
				for _, seat := range selected {
					for _, o := range occupied {
						if seat == o {
							t.Fatalf("run %d step %d: occupied seat %s is selected", run, step, seat)
						}
					}
				}
			}
		}
	}
}
