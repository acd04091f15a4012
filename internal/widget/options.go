// Package widget drives the hosted payment widget through a loopback page served by the client.
package widget

import "github.com/fjod/storefront/internal/domain"

const (
	DefaultMerchantName = "E-Store"
	DefaultDescription  = "Order Payment"
	DefaultThemeColor   = "#3B82F6"
)

type Theme struct {
	Color string `json:"color"`
}

// Options is the configuration object the hosted widget is opened with.
type Options struct {
	Key         string         `json:"key"`
	Amount      int64          `json:"amount"`
	Currency    string         `json:"currency"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	OrderID     string         `json:"order_id"`
	Prefill     domain.Prefill `json:"prefill"`
	Theme       Theme          `json:"theme"`
}

func BuildOptions(req domain.WidgetRequest) Options {
	name := req.MerchantName
	if name == "" {
		name = DefaultMerchantName
	}
	desc := req.Description
	if desc == "" {
		desc = DefaultDescription
	}
	color := req.ThemeColor
	if color == "" {
		color = DefaultThemeColor
	}
	return Options{
		Key:         req.Intent.Key,
		Amount:      req.Intent.Amount,
		Currency:    req.Intent.Currency,
		Name:        name,
		Description: desc,
		OrderID:     req.Intent.GatewayOrderID,
		Prefill:     req.Prefill,
		Theme:       Theme{Color: color},
	}
}
