package pricing

import (
	"errors"
	"fmt"

	"github.com/latasoft/confiaticket-checkout/internal/domain"
	"github.com/shopspring/decimal"
)

// MaxFeeBps is 100%
const MaxFeeBps = 10000

var (
	ErrInvalidFeeBps = errors.New("fee basis points out of range")
	ErrNegativePrice = errors.New("unit price must not be negative")
)

var bpsDivisor = decimal.NewFromInt(MaxFeeBps)

// Breakdown is the priced view of a cart. Amounts are whole currency units.
type Breakdown struct {
	Lines    []LineTotal `json:"lines"`
	Subtotal int64       `json:"subtotal"`
	FeeBps   int         `json:"feeBps"`
	Fee      int64       `json:"fee"`
	Total    int64       `json:"total"`
	Currency string      `json:"currency"`
}

// LineTotal prices one cart line
type LineTotal struct {
	Key       domain.LineKey `json:"key"`
	Label     string         `json:"label"`
	UnitPrice int64          `json:"unitPrice"`
	Quantity  int            `json:"quantity"`
	Amount    int64          `json:"amount"`
}

// Calculator prices carts for one event with a fixed platform fee
type Calculator struct {
	feeBps    int
	unitPrice int64
	currency  string
}

// NewCalculator builds a calculator. feeBps comes from the platform's system
// configuration; unitPrice is the event's single ticket price.
func NewCalculator(feeBps int, unitPrice int64, currency string) (*Calculator, error) {
	if feeBps < 0 || feeBps > MaxFeeBps {
		return nil, fmt.Errorf("%w: %d", ErrInvalidFeeBps, feeBps)
	}
	if unitPrice < 0 {
		return nil, fmt.Errorf("%w: %d", ErrNegativePrice, unitPrice)
	}
	if currency == "" {
		currency = "CLP"
	}
	return &Calculator{feeBps: feeBps, unitPrice: unitPrice, currency: currency}, nil
}

// FeeBps returns the injected fee in basis points
func (c *Calculator) FeeBps() int {
	return c.feeBps
}

// UnitPrice returns the per-ticket price
func (c *Calculator) UnitPrice() int64 {
	return c.unitPrice
}

// Fee returns round(subtotal * feeBps / 10000), halves rounded away from zero
func (c *Calculator) Fee(subtotal int64) int64 {
	return decimal.NewFromInt(subtotal).
		Mul(decimal.NewFromInt(int64(c.feeBps))).
		Div(bpsDivisor).
		Round(0).
		IntPart()
}

// Calculate prices the lines. Section and resale lines both use the event price.
func (c *Calculator) Calculate(lines []domain.CartLine) Breakdown {
	b := Breakdown{
		Lines:    make([]LineTotal, 0, len(lines)),
		FeeBps:   c.feeBps,
		Currency: c.currency,
	}
	for _, l := range lines {
		amount := c.unitPrice * int64(l.Quantity)
		b.Lines = append(b.Lines, LineTotal{
			Key:       l.Key(),
			Label:     label(l),
			UnitPrice: c.unitPrice,
			Quantity:  l.Quantity,
			Amount:    amount,
		})
		b.Subtotal += amount
	}
	b.Fee = c.Fee(b.Subtotal)
	b.Total = b.Subtotal + b.Fee
	return b
}

func label(l domain.CartLine) string {
	switch {
	case l.IsResale && l.Ticket != nil:
		return fmt.Sprintf("Fila %s, asiento %s", l.Ticket.Row, l.Ticket.Seat)
	case l.Section != nil:
		return l.Section.Name
	default:
		return ""
	}
}
