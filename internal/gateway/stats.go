package gateway

import (
	"context"
	"net/http"
)

// StockAlert is a product running low or out.
type StockAlert struct {
	Name  string  `json:"name"`
	Stock float64 `json:"stock"`
}

// Stats is the idle-watchdog snapshot of today's trade.
type Stats struct {
	SalesCount int          `json:"sales_count"`
	LowStock   []StockAlert `json:"low_stock"`
	LastSale   string       `json:"last_sale"`
}

// TodayStats fetches the stats snapshot used by the idle watchdog. It reads
// only; nothing here may touch the cart.
func (c *Client) TodayStats(ctx context.Context) (Stats, error) {
	var s Stats
	if err := c.do(ctx, http.MethodGet, "/api/sales/stats/today", nil, &s); err != nil {
		return Stats{}, err
	}
	return s, nil
}

// OutOfStock filters the alerts down to products with zero stock.
func (s Stats) OutOfStock() []StockAlert {
	var out []StockAlert
	for _, a := range s.LowStock {
		if a.Stock == 0 {
			out = append(out, a)
		}
	}
	return out
}
