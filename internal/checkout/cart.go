package checkout

import (
	"fmt"

	"retail-pos-system/internal/core/domain"
)

// Cart holds the lines of one checkout session. At most one line exists per product id.
type Cart struct {
	lines []domain.CartLine
}

// Add merges the product into an existing line or appends a new line with quantity 1.
func (c *Cart) Add(product domain.Product) {
	for i := range c.lines {
		if c.lines[i].ID == product.ID {
			c.lines[i].Quantity++
			return
		}
	}
	c.lines = append(c.lines, domain.CartLine{Product: product, Quantity: 1})
}

// Remove deletes the line at index.
func (c *Cart) Remove(index int) error {
	if index < 0 || index >= len(c.lines) {
		return fmt.Errorf("%w: %d of %d", domain.ErrLineOutOfRange, index, len(c.lines))
	}
	c.lines = append(c.lines[:index], c.lines[index+1:]...)
	return nil
}

// SetQuantity replaces the quantity of the line at index. Quantities below 1 are rejected, never clamped.
func (c *Cart) SetQuantity(index, quantity int) error {
	if index < 0 || index >= len(c.lines) {
		return fmt.Errorf("%w: %d of %d", domain.ErrLineOutOfRange, index, len(c.lines))
	}
	if quantity < 1 {
		return fmt.Errorf("%w: got %d", domain.ErrInvalidQuantity, quantity)
	}
	c.lines[index].Quantity = quantity
	return nil
}

// Lines returns a copy of the cart lines in insertion order.
func (c *Cart) Lines() []domain.CartLine {
	out := make([]domain.CartLine, len(c.lines))
	copy(out, c.lines)
	return out
}

func (c *Cart) Len() int { return len(c.lines) }

func (c *Cart) IsEmpty() bool { return len(c.lines) == 0 }

func (c *Cart) Reset() { c.lines = nil }
