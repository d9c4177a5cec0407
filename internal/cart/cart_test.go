package cart

import (
	"errors"
	"math"
	"testing"
)

func pan() Product   { return Product{ID: 1, Name: "Pan", Price: 0.50, Stock: 100} }
func leche() Product { return Product{ID: 2, Name: "Leche", Price: 4.00, Stock: 20} }

func almostEqual(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func checkInvariants(t *testing.T, e *Engine) {
	t.Helper()
	var sum float64
	for _, it := range e.Items() {
		if !almostEqual(it.Subtotal, it.Quantity*it.Product.Price) {
			t.Fatalf("subtotal %v != quantity %v * price %v for %s", it.Subtotal, it.Quantity, it.Product.Price, it.Product.Name)
		}
		if it.Quantity < MinQuantity {
			t.Fatalf("quantity %v below floor for %s", it.Quantity, it.Product.Name)
		}
		if it.Quantity > it.Product.Stock {
			t.Fatalf("quantity %v above stock %v for %s", it.Quantity, it.Product.Stock, it.Product.Name)
		}
		sum += it.Subtotal
	}
	if !almostEqual(e.Total(), sum) {
		t.Fatalf("total %v != sum of subtotals %v", e.Total(), sum)
	}
}

func TestAddComputesTotal(t *testing.T) {
	e := NewEngine()
	total := e.Add([]Item{{Product: pan(), Quantity: 10}})
	if !almostEqual(total, 5.00) {
		t.Fatalf("expected total 5.00, got %v", total)
	}
	checkInvariants(t, e)
}

func TestReplaceDiscardsCart(t *testing.T) {
	e := NewEngine()
	e.Add([]Item{{Product: pan(), Quantity: 10}})
	total := e.Replace([]Item{{Product: leche(), Quantity: 2}})
	if !almostEqual(total, 8.00) {
		t.Fatalf("expected total 8.00, got %v", total)
	}
	if e.Len() != 1 {
		t.Fatalf("expected 1 item after replace, got %d", e.Len())
	}
	checkInvariants(t, e)
}

func TestRemoveByProductID(t *testing.T) {
	e := NewEngine()
	e.Add([]Item{{Product: pan(), Quantity: 2}, {Product: leche(), Quantity: 1}})
	removed, err := e.RemoveByProductID(1)
	if err != nil {
		t.Fatalf("remove: %v", err)
	}
	if removed.Product.Name != "Pan" {
		t.Fatalf("expected Pan removed, got %s", removed.Product.Name)
	}
	if e.Len() != 1 {
		t.Fatalf("expected 1 item left, got %d", e.Len())
	}
	checkInvariants(t, e)
}

func TestRemoveMissingProduct(t *testing.T) {
	e := NewEngine()
	_, err := e.RemoveByProductID(99)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if e.Len() != 0 {
		t.Fatalf("cart must stay unchanged")
	}
}

func TestChangePriceRecomputesSubtotal(t *testing.T) {
	e := NewEngine()
	e.Add([]Item{{Product: leche(), Quantity: 2}})
	it, old, err := e.ChangePrice("leche", 4.50)
	if err != nil {
		t.Fatalf("change price: %v", err)
	}
	if !almostEqual(old, 4.00) {
		t.Fatalf("expected old price 4.00, got %v", old)
	}
	if !almostEqual(it.Product.Price, 4.50) || !almostEqual(it.Subtotal, 9.00) {
		t.Fatalf("expected price 4.50 subtotal 9.00, got %v %v", it.Product.Price, it.Subtotal)
	}
	checkInvariants(t, e)
}

func TestChangePriceMatchesEitherDirection(t *testing.T) {
	e := NewEngine()
	e.Add([]Item{{Product: Product{ID: 3, Name: "Inca Kola", Price: 3.00, Stock: 12}, Quantity: 1}})
	// query contains the full product name
	if _, _, err := e.ChangePrice("la inca kola grande", 5.00); err != nil {
		t.Fatalf("query containing the name should match: %v", err)
	}
	// query is a substring of the product name
	if _, _, err := e.ChangePrice("kola", 6.00); err != nil {
		t.Fatalf("substring query should match: %v", err)
	}
}

func TestChangePriceFirstMatchWins(t *testing.T) {
	e := NewEngine()
	e.Add([]Item{
		{Product: Product{ID: 4, Name: "Pan francés", Price: 0.30, Stock: 50}, Quantity: 1},
		{Product: Product{ID: 5, Name: "Pan integral", Price: 0.60, Stock: 50}, Quantity: 1},
	})
	it, _, err := e.ChangePrice("pan", 0.40)
	if err != nil {
		t.Fatalf("change price: %v", err)
	}
	if it.Product.ID != 4 {
		t.Fatalf("expected first match in cart order, got product %d", it.Product.ID)
	}
}

func TestChangePriceMissing(t *testing.T) {
	e := NewEngine()
	if _, _, err := e.ChangePrice("gaseosa", 2.00); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestChangePriceRejectsNegative(t *testing.T) {
	e := NewEngine()
	e.Add([]Item{{Product: leche(), Quantity: 2}})
	if _, _, err := e.ChangePrice("leche", -1.00); !errors.Is(err, ErrInvalidPrice) {
		t.Fatalf("expected ErrInvalidPrice, got %v", err)
	}
	it := e.Items()[0]
	if !almostEqual(it.Product.Price, 4.00) || !almostEqual(it.Subtotal, 8.00) {
		t.Fatalf("rejected price must leave the item untouched: %+v", it)
	}
	checkInvariants(t, e)
}

func TestChangeProductKeepsQuantity(t *testing.T) {
	e := NewEngine()
	e.Add([]Item{{Product: pan(), Quantity: 3}})
	it, err := e.ChangeProduct(1, leche())
	if err != nil {
		t.Fatalf("change product: %v", err)
	}
	if it.Product.ID != 2 || !almostEqual(it.Quantity, 3) || !almostEqual(it.Subtotal, 12.00) {
		t.Fatalf("unexpected item after swap: %+v", it)
	}
	checkInvariants(t, e)
}

func TestSetQuantityClampsToStock(t *testing.T) {
	e := NewEngine()
	e.Add([]Item{{Product: Product{ID: 6, Name: "Queso", Price: 10.00, Stock: 5}, Quantity: 1}})
	it, warning, err := e.SetQuantity(0, 11)
	if err != nil {
		t.Fatalf("set quantity: %v", err)
	}
	if !almostEqual(it.Quantity, 5) {
		t.Fatalf("expected clamp to stock 5, got %v", it.Quantity)
	}
	if warning == "" {
		t.Fatalf("expected stock warning")
	}
	checkInvariants(t, e)
}

func TestChangeQuantityStockExceededClamp(t *testing.T) {
	e := NewEngine()
	e.Add([]Item{{Product: Product{ID: 7, Name: "Arroz", Price: 4.00, Stock: 5}, Quantity: 1}})
	it, warning, err := e.ChangeQuantity(0, +10)
	if err != nil {
		t.Fatalf("change quantity: %v", err)
	}
	if !almostEqual(it.Quantity, 5) || warning == "" {
		t.Fatalf("expected clamp to 5 with warning, got qty=%v warning=%q", it.Quantity, warning)
	}
	checkInvariants(t, e)
}

func TestChangeQuantityFloor(t *testing.T) {
	e := NewEngine()
	e.Add([]Item{{Product: Product{ID: 8, Name: "Azúcar", Price: 3.00, Stock: 10, Unit: "kg"}, Quantity: 0.5}})
	it, _, err := e.ChangeQuantity(0, -2)
	if err != nil {
		t.Fatalf("change quantity: %v", err)
	}
	if !almostEqual(it.Quantity, MinQuantity) {
		t.Fatalf("expected floor %v, got %v", MinQuantity, it.Quantity)
	}
	checkInvariants(t, e)
}

// The source had paths updating quantity without the subtotal; this pins the
// consistent contract.
func TestSubtotalTracksQuantity(t *testing.T) {
	e := NewEngine()
	e.Add([]Item{{Product: leche(), Quantity: 2}})
	for _, delta := range []float64{+1, -0.75, +0.25, -2} {
		if _, _, err := e.ChangeQuantity(0, delta); err != nil {
			t.Fatalf("change quantity %v: %v", delta, err)
		}
		checkInvariants(t, e)
	}
}

func TestChangeQuantityBadIndex(t *testing.T) {
	e := NewEngine()
	if _, _, err := e.ChangeQuantity(0, 1); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on empty cart, got %v", err)
	}
}

func TestClearAndTotal(t *testing.T) {
	e := NewEngine()
	e.Add([]Item{{Product: pan(), Quantity: 10}, {Product: leche(), Quantity: 1}})
	e.Clear()
	if e.Len() != 0 || !almostEqual(e.Total(), 0) {
		t.Fatalf("expected empty cart after clear")
	}
}

func TestAddStaleSubtotalIsRecomputed(t *testing.T) {
	e := NewEngine()
	// caller supplies a wrong cached subtotal; the engine must not trust it
	e.Add([]Item{{Product: pan(), Quantity: 10, Subtotal: 99}})
	checkInvariants(t, e)
}

func TestSummary(t *testing.T) {
	items := []Item{
		{Product: pan(), Quantity: 10},
		{Product: leche(), Quantity: 1.5},
	}
	got := Summary(items)
	want := "10 Pan y 1.5 Leche"
	if got != want {
		t.Fatalf("summary: got %q want %q", got, want)
	}
}

func TestFormatPrice(t *testing.T) {
	cases := []struct {
		in   float64
		want string
	}{
		{5.00, "5 soles"},
		{1.00, "1 sol"},
		{4.50, "4 soles con 50 centavos"},
		{0.50, "0 soles con 50 centavos"},
		{2.999, "3 soles"},
	}
	for _, tc := range cases {
		if got := FormatPrice(tc.in); got != tc.want {
			t.Fatalf("FormatPrice(%v): got %q want %q", tc.in, got, tc.want)
		}
	}
}

func TestFormatQuantity(t *testing.T) {
	cases := []struct {
		in   float64
		want string
	}{
		{10, "10"},
		{0.25, "0.25"},
		{1.50, "1.5"},
	}
	for _, tc := range cases {
		if got := FormatQuantity(tc.in); got != tc.want {
			t.Fatalf("FormatQuantity(%v): got %q want %q", tc.in, got, tc.want)
		}
	}
}
