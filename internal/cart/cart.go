package cart

import (
	"errors"
	"fmt"

	"github.com/latasoft/confiaticket-checkout/internal/domain"
)

var (
	ErrModeMismatch = errors.New("cart line does not match the event mode")
	ErrLineNotFound = errors.New("cart line not found")
)

// Change describes what AddOrUpdate did
type Change string

const (
	ChangeAdded    Change = "added"
	ChangeReplaced Change = "replaced"
	ChangeRemoved  Change = "removed"
)

// Cart holds the buyer's lines in insertion order, at most one per key. A RESALE
// cart holds at most one line overall. Not safe for concurrent use.
type Cart struct {
	mode  domain.EventMode
	lines []domain.CartLine
}

// New creates an empty cart for an event mode
func New(mode domain.EventMode) *Cart {
	return &Cart{mode: mode}
}

// Mode returns the event mode the cart accepts
func (c *Cart) Mode() domain.EventMode {
	return c.mode
}

// AddOrUpdate inserts the line or replaces the line with the same key in place.
// In RESALE mode a different ticket evicts the current one and re-adding the
// current ticket removes it.
func (c *Cart) AddOrUpdate(line domain.CartLine) (Change, error) {
	if line.IsResale != (c.mode == domain.EventModeResale) {
		return "", fmt.Errorf("%w: %s cart", ErrModeMismatch, c.mode)
	}
	if err := line.Validate(); err != nil {
		return "", err
	}

	line = line.Clone()
	key := line.Key()

	if c.mode == domain.EventModeResale {
		if len(c.lines) == 1 && c.lines[0].Key() == key {
			c.lines = nil
			return ChangeRemoved, nil
		}
		c.lines = []domain.CartLine{line}
		return ChangeAdded, nil
	}

	if i := c.indexOf(key); i >= 0 {
		c.lines[i] = line
		return ChangeReplaced, nil
	}
	c.lines = append(c.lines, line)
	return ChangeAdded, nil
}

// Remove deletes the line with key
func (c *Cart) Remove(key domain.LineKey) error {
	i := c.indexOf(key)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrLineNotFound, key)
	}
	c.lines = append(c.lines[:i], c.lines[i+1:]...)
	return nil
}

// Get returns a copy of the line with key
func (c *Cart) Get(key domain.LineKey) (domain.CartLine, bool) {
	i := c.indexOf(key)
	if i < 0 {
		return domain.CartLine{}, false
	}
	return c.lines[i].Clone(), true
}

// Contains reports whether a line with key exists
func (c *Cart) Contains(key domain.LineKey) bool {
	return c.indexOf(key) >= 0
}

// Lines returns a deep copy of the lines in display order
func (c *Cart) Lines() []domain.CartLine {
	out := make([]domain.CartLine, len(c.lines))
	for i, l := range c.lines {
		out[i] = l.Clone()
	}
	return out
}

// Len returns the number of lines
func (c *Cart) Len() int {
	return len(c.lines)
}

// IsEmpty reports whether the cart has no lines
func (c *Cart) IsEmpty() bool {
	return len(c.lines) == 0
}

// TotalQuantity sums quantities across lines
func (c *Cart) TotalQuantity() int {
	total := 0
	for _, l := range c.lines {
		total += l.Quantity
	}
	return total
}

// Clear empties the cart
func (c *Cart) Clear() {
	c.lines = nil
}

func (c *Cart) indexOf(key domain.LineKey) int {
	for i, l := range c.lines {
		if l.Key() == key {
			return i
		}
	}
	return -1
}
