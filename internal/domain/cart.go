package domain

import (
	"fmt"
	"time"
)

// CartLine is one product in the client-side cart. Quantity stays within [1, StockCeiling].
type CartLine struct {
	ProductID    string  `json:"productId"`
	Name         string  `json:"name"`
	UnitPrice    float64 `json:"unitPrice"`
	Image        string  `json:"image"`
	Quantity     int     `json:"quantity"`
	StockCeiling int     `json:"stockCeiling"`
}

func (l CartLine) Subtotal() float64 {
	return l.UnitPrice * float64(l.Quantity)
}

// LineFromProduct builds a cart line seed; the quantity is filled in by the cart.
func LineFromProduct(p Product) CartLine {
	return CartLine{
		ProductID:    p.ID,
		Name:         p.Name,
		UnitPrice:    p.Price,
		Image:        p.Image,
		StockCeiling: p.Stock,
	}
}

// CartSnapshot represents the full cart state at checkout time
type CartSnapshot struct {
	Lines      []CartLine `json:"lines"`
	TotalPrice float64    `json:"total_price"`
	CapturedAt time.Time  `json:"captured_at"`
}

func (s CartSnapshot) IsEmpty() bool {
	return len(s.Lines) == 0
}

// FormatPrice renders an amount with two fraction digits. Rounding happens here only.
func FormatPrice(amount float64) string {
	return fmt.Sprintf("₹%.2f", amount)
}
