package cart

import (
	"fmt"
	"math"
	"strings"
)

// FormatPrice renders an amount the way the cashier hears it:
// "5 soles", "1 sol", "4 soles con 50 centavos".
func FormatPrice(price float64) string {
	soles := int(math.Floor(price))
	centavos := int(math.Round((price - float64(soles)) * 100))
	if centavos == 100 {
		soles++
		centavos = 0
	}
	unit := "soles"
	if soles == 1 {
		unit = "sol"
	}
	if centavos == 0 {
		return fmt.Sprintf("%d %s", soles, unit)
	}
	return fmt.Sprintf("%d %s con %d centavos", soles, unit, centavos)
}

// FormatQuantity trims trailing zeros from fractional quantities: "10", "0.25", "1.5".
func FormatQuantity(qty float64) string {
	if qty == math.Trunc(qty) {
		return fmt.Sprintf("%d", int64(qty))
	}
	s := fmt.Sprintf("%.2f", qty)
	s = strings.TrimRight(s, "0")
	s = strings.TrimRight(s, ".")
	return s
}
