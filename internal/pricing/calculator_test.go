package pricing

import (
	"testing"

	"github.com/latasoft/confiaticket-checkout/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCalculator_Validation(t *testing.T) {
	tests := []struct {
		name      string
		feeBps    int
		unitPrice int64
		wantErr   error
	}{
		{"zero fee", 0, 1000, nil},
		{"full fee", MaxFeeBps, 1000, nil},
		{"negative fee", -1, 1000, ErrInvalidFeeBps},
		{"fee above 100%", MaxFeeBps + 1, 1000, ErrInvalidFeeBps},
		{"negative price", 100, -1, ErrNegativePrice},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewCalculator(tt.feeBps, tt.unitPrice, "")
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestCalculate(t *testing.T) {
	calc, err := NewCalculator(1000, 1000, "CLP")
	require.NoError(t, err)

	lines := []domain.CartLine{
		domain.NewSectionLine(domain.Section{ID: 1, Name: "Cancha"}, 2, nil),
		domain.NewSectionLine(domain.Section{ID: 2, Name: "Platea"}, 1, nil),
	}

	b := calc.Calculate(lines)

	assert.Equal(t, int64(3000), b.Subtotal)
	assert.Equal(t, int64(300), b.Fee)
	assert.Equal(t, int64(3300), b.Total)
	assert.Equal(t, 1000, b.FeeBps)
	assert.Equal(t, "CLP", b.Currency)
	require.Len(t, b.Lines, 2)
	assert.Equal(t, int64(2000), b.Lines[0].Amount)
	assert.Equal(t, "Cancha", b.Lines[0].Label)
}

func TestCalculate_Resale(t *testing.T) {
	calc, err := NewCalculator(500, 25000, "CLP")
	require.NoError(t, err)

	b := calc.Calculate([]domain.CartLine{domain.NewResaleLine(domain.ResaleTicket{ID: 3, Row: "F", Seat: "12"})})

	assert.Equal(t, int64(25000), b.Subtotal)
	assert.Equal(t, int64(1250), b.Fee)
	assert.Equal(t, int64(26250), b.Total)
	assert.Equal(t, "Fila F, asiento 12", b.Lines[0].Label)
}

func TestCalculate_EmptyCart(t *testing.T) {
	calc, err := NewCalculator(1000, 1000, "")
	require.NoError(t, err)

	b := calc.Calculate(nil)
	assert.Zero(t, b.Subtotal)
	assert.Zero(t, b.Fee)
	assert.Zero(t, b.Total)
	assert.Empty(t, b.Lines)
}

func TestFee_Rounding(t *testing.T) {
	tests := []struct {
		name     string
		feeBps   int
		subtotal int64
		want     int64
	}{
		{"exact", 1000, 3000, 300},
		{"half rounds up", 15, 1000, 2},           // 1.5
		{"below half rounds down", 33, 1000, 3},   // 3.3
		{"exactly half", 5, 1000, 1},              // 0.5
		{"above half", 7, 1000, 1},                // 0.7
		{"zero fee", 0, 99999, 0},
		{"full fee", MaxFeeBps, 1234, 1234},
		{"large amounts", 1250, 123456789, 15432099}, // 15432098.625
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calc, err := NewCalculator(tt.feeBps, 0, "")
			require.NoError(t, err)
			assert.Equal(t, tt.want, calc.Fee(tt.subtotal))
		})
	}
}

// The cart summary and the confirm step price the same lines with the same
// calculator; both must agree exactly.
func TestCalculate_Deterministic(t *testing.T) {
	calc, err := NewCalculator(1234, 4990, "CLP")
	require.NoError(t, err)

	lines := []domain.CartLine{
		domain.NewSectionLine(domain.Section{ID: 1, Name: "A"}, 3, nil),
		domain.NewSectionLine(domain.Section{ID: 2, Name: "B"}, 7, nil),
	}

	assert.Equal(t, calc.Calculate(lines), calc.Calculate(lines))
}
