package cart

import (
	"errors"
	"fmt"
	"strings"
	"sync"
)

// MinQuantity is the floor for fractional-unit goods (quarter kilo, quarter liter).
const MinQuantity = 0.25

// ErrNotFound indicates the referenced product is not in the cart.
var ErrNotFound = errors.New("product not in cart")

// ErrInvalidPrice rejects a negative price before it can poison a subtotal.
var ErrInvalidPrice = errors.New("price must not be negative")

// Product is a catalog entry copied into the cart at add time. Later catalog
// changes do not affect items already in the cart.
type Product struct {
	ID    int64   `json:"id"`
	Name  string  `json:"name"`
	Price float64 `json:"price"`
	Stock float64 `json:"stock"`
	Unit  string  `json:"unit,omitempty"`
}

// Item is one cart line. Subtotal is cached and must be recomputed by every
// mutation that touches quantity or price.
type Item struct {
	Product  Product `json:"product"`
	Quantity float64 `json:"quantity"`
	Subtotal float64 `json:"subtotal"`
}

// Engine owns the in-memory cart. All mutations go through it; order of items
// is insertion order and is the display and voice-readout order.
type Engine struct {
	mu    sync.Mutex
	items []Item
}

func NewEngine() *Engine { return &Engine{} }

// Add appends items to the cart and returns the new total.
func (e *Engine) Add(items []Item) float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, it := range items {
		it.Subtotal = it.Quantity * it.Product.Price
		e.items = append(e.items, it)
	}
	return e.totalLocked()
}

// Replace discards the current cart and installs items.
func (e *Engine) Replace(items []Item) float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.items = e.items[:0]
	for _, it := range items {
		it.Subtotal = it.Quantity * it.Product.Price
		e.items = append(e.items, it)
	}
	return e.totalLocked()
}

// RemoveByProductID deletes the item holding the given product id and returns it.
func (e *Engine) RemoveByProductID(id int64) (Item, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i, it := range e.items {
		if it.Product.ID == id {
			e.items = append(e.items[:i], e.items[i+1:]...)
			return it, nil
		}
	}
	return Item{}, ErrNotFound
}

// ChangePrice updates the price of the first item whose product name matches
// query (case-insensitive substring, either direction) and recomputes its
// subtotal. Returns the updated item and the previous price.
func (e *Engine) ChangePrice(query string, newPrice float64) (Item, float64, error) {
	if newPrice < 0 {
		return Item{}, 0, ErrInvalidPrice
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	q := strings.ToLower(strings.TrimSpace(query))
	for i := range e.items {
		name := strings.ToLower(e.items[i].Product.Name)
		if strings.Contains(name, q) || strings.Contains(q, name) {
			old := e.items[i].Product.Price
			e.items[i].Product.Price = newPrice
			e.items[i].Subtotal = e.items[i].Quantity * newPrice
			return e.items[i], old, nil
		}
	}
	return Item{}, 0, ErrNotFound
}

// ChangeProduct swaps the product of the item holding oldID, keeping its
// quantity and recomputing the subtotal.
func (e *Engine) ChangeProduct(oldID int64, newProduct Product) (Item, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i := range e.items {
		if e.items[i].Product.ID == oldID {
			qty := e.items[i].Quantity
			e.items[i] = Item{Product: newProduct, Quantity: qty, Subtotal: qty * newProduct.Price}
			return e.items[i], nil
		}
	}
	return Item{}, ErrNotFound
}

// SetQuantity sets the quantity of the item at index, clamping to
// [MinQuantity, stock]. A non-empty warning is returned when clamped at stock.
func (e *Engine) SetQuantity(index int, qty float64) (Item, string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.setQuantityLocked(index, qty)
}

// ChangeQuantity applies a delta to the quantity of the item at index with the
// same clamping as SetQuantity.
func (e *Engine) ChangeQuantity(index int, delta float64) (Item, string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if index < 0 || index >= len(e.items) {
		return Item{}, "", ErrNotFound
	}
	return e.setQuantityLocked(index, e.items[index].Quantity+delta)
}

func (e *Engine) setQuantityLocked(index int, qty float64) (Item, string, error) {
	if index < 0 || index >= len(e.items) {
		return Item{}, "", ErrNotFound
	}
	it := &e.items[index]
	warning := ""
	if qty < MinQuantity {
		qty = MinQuantity
	}
	if qty > it.Product.Stock {
		qty = it.Product.Stock
		warning = fmt.Sprintf("Stock máximo: %s", FormatQuantity(it.Product.Stock))
	}
	it.Quantity = qty
	it.Subtotal = qty * it.Product.Price
	return *it, warning, nil
}

// Clear empties the cart.
func (e *Engine) Clear() {
	e.mu.Lock()
	e.items = e.items[:0]
	e.mu.Unlock()
}

// Total returns the sum of all subtotals.
func (e *Engine) Total() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.totalLocked()
}

func (e *Engine) totalLocked() float64 {
	var sum float64
	for _, it := range e.items {
		sum += it.Subtotal
	}
	return sum
}

// Items returns a copy of the cart lines in insertion order.
func (e *Engine) Items() []Item {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Item, len(e.items))
	copy(out, e.items)
	return out
}

// Len returns the number of cart lines.
func (e *Engine) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.items)
}

// Summary lists the cart lines for a spoken readout: "2 panes y un café".
func Summary(items []Item) string {
	parts := make([]string, 0, len(items))
	for _, it := range items {
		parts = append(parts, fmt.Sprintf("%s %s", FormatQuantity(it.Quantity), it.Product.Name))
	}
	return strings.Join(parts, " y ")
}
