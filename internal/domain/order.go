package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
	OrderStatusUnknown    OrderStatus = "unknown"
)

var orderStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusProcessing,
	OrderStatusShipped,
	OrderStatusDelivered,
	OrderStatusCancelled,
}

// OrderStatuses lists the statuses an admin may assign.
func OrderStatuses() []OrderStatus {
	return append([]OrderStatus(nil), orderStatuses...)
}

// ParseOrderStatus maps anything unrecognised to OrderStatusUnknown.
func ParseOrderStatus(s string) OrderStatus {
	for _, st := range orderStatuses {
		if string(st) == s {
			return st
		}
	}
	return OrderStatusUnknown
}

func (s OrderStatus) IsKnown() bool {
	return s != OrderStatusUnknown && ParseOrderStatus(string(s)) == s
}

// Label renders the status for display; empty and unrecognised values show as "unknown".
func (s OrderStatus) Label() string {
	if !s.IsKnown() {
		return string(OrderStatusUnknown)
	}
	return string(s)
}

func (s OrderStatus) String() string {
	return string(s)
}

func (s *OrderStatus) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		*s = OrderStatusUnknown
		return nil
	}
	*s = ParseOrderStatus(raw)
	return nil
}

type ShippingAddress struct {
	Street  string `json:"street"`
	City    string `json:"city"`
	State   string `json:"state"`
	ZipCode string `json:"zipCode"`
	Country string `json:"country"`
}

const DefaultCountry = "India"

// WithDefaults fills the country the way the checkout form pre-fills it.
func (a ShippingAddress) WithDefaults() ShippingAddress {
	if a.Country == "" {
		a.Country = DefaultCountry
	}
	return a
}

func (a ShippingAddress) Validate() error {
	required := []struct {
		name  string
		value string
	}{
		{"street", a.Street},
		{"city", a.City},
		{"state", a.State},
		{"zipCode", a.ZipCode},
		{"country", a.Country},
	}
	for _, f := range required {
		if f.value == "" {
			return fmt.Errorf("%w: %s is required", ErrInvalidInput, f.name)
		}
	}
	return nil
}

type OrderRequestItem struct {
	Product  string `json:"product"`
	Quantity int    `json:"quantity"`
}

type OrderRequest struct {
	Items           []OrderRequestItem `json:"items"`
	ShippingAddress ShippingAddress    `json:"shippingAddress"`
}

// NewOrderRequest builds the order payload from a cart snapshot: product id and quantity per line.
func NewOrderRequest(snapshot CartSnapshot, address ShippingAddress) OrderRequest {
	items := make([]OrderRequestItem, 0, len(snapshot.Lines))
	for _, l := range snapshot.Lines {
		items = append(items, OrderRequestItem{Product: l.ProductID, Quantity: l.Quantity})
	}
	return OrderRequest{Items: items, ShippingAddress: address}
}

type OrderItem struct {
	Product  *ProductRef `json:"product"`
	Quantity int         `json:"quantity"`
	Price    float64     `json:"price"`
}

// ProductName falls back to a placeholder when the product has been deleted.
func (i OrderItem) ProductName() string {
	if i.Product == nil || i.Product.Name == "" {
		return "Unknown Product"
	}
	return i.Product.Name
}

type Order struct {
	ID              string          `json:"_id"`
	User            *UserRef        `json:"user"`
	Items           []OrderItem     `json:"items"`
	TotalAmount     float64         `json:"totalAmount"`
	Status          OrderStatus     `json:"status"`
	PaymentStatus   PaymentStatus   `json:"paymentStatus"`
	PaymentID       string          `json:"paymentId,omitempty"`
	ShippingAddress ShippingAddress `json:"shippingAddress"`
	CreatedAt       time.Time       `json:"createdAt"`
	DeliveredAt     *time.Time      `json:"deliveredAt,omitempty"`
}

func (o Order) CustomerName() string {
	if o.User == nil || o.User.Name == "" {
		return "Unknown User"
	}
	return o.User.Name
}

// ShortID is the last eight characters of the id, as shown in order lists.
func (o Order) ShortID() string {
	if len(o.ID) <= 8 {
		return o.ID
	}
	return o.ID[len(o.ID)-8:]
}

type OrderQuery struct {
	Page   int
	Limit  int
	Status string
}

type OrderPage struct {
	Orders []Order `json:"orders"`
	Pagination
}
