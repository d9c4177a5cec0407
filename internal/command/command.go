// Package command defines the structured result of classifying one utterance.
package command

import (
	"encoding/json"
	"fmt"

	"github.com/SoyDuilio/quevendi/internal/cart"
)

// Kind is the discriminant tag the classifier puts on its response.
type Kind string

const (
	KindCancel        Kind = "cancel"
	KindConfirm       Kind = "confirm"
	KindAdd           Kind = "add"
	KindSale          Kind = "sale"
	KindChangePrice   Kind = "change_price"
	KindChangeProduct Kind = "change_product"
	KindRemove        Kind = "remove"
	KindAmbiguous     Kind = "ambiguous"

	// KindUnknown covers tags this terminal does not handle; the dispatcher
	// logs them and mutates nothing.
	KindUnknown Kind = ""
)

// Choice is one unresolved product reference with its catalog candidates.
type Choice struct {
	Query   string         `json:"query"`
	Options []cart.Product `json:"options"`
}

// Command is the discriminated union of everything the classifier can return.
// Exactly one variant's fields are populated, selected by Kind.
type Command struct {
	Kind Kind `json:"type"`

	// add / sale
	Items []cart.Item `json:"items,omitempty"`
	Total float64     `json:"total,omitempty"`

	// change_price
	ProductQuery string  `json:"product_query,omitempty"`
	NewPrice     float64 `json:"new_price,omitempty"`

	// change_product
	OldProduct *cart.Product `json:"old_product,omitempty"`
	NewProduct *cart.Product `json:"new_product,omitempty"`

	// remove
	Product *cart.Product `json:"product,omitempty"`

	// ambiguous
	Ambiguous []Choice `json:"ambiguous_products,omitempty"`

	// spoken after the confirmation summary when present
	Warning string `json:"warning,omitempty"`
}

var known = map[Kind]bool{
	KindCancel:        true,
	KindConfirm:       true,
	KindAdd:           true,
	KindSale:          true,
	KindChangePrice:   true,
	KindChangeProduct: true,
	KindRemove:        true,
	KindAmbiguous:     true,
}

// Known reports whether the dispatcher has a handler for this tag.
func (c Command) Known() bool { return known[c.Kind] }

// Decode parses a classifier response body. Unknown tags are not an error;
// they decode with Known() == false and keep the raw tag for logging.
func Decode(data []byte) (Command, error) {
	var c Command
	if err := json.Unmarshal(data, &c); err != nil {
		return Command{}, fmt.Errorf("command: decode: %w", err)
	}
	return c, nil
}
