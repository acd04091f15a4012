package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanTransitionTo(t *testing.T) {
	tests := []struct {
		from, to CheckoutState
		want     bool
	}{
		{CheckoutIdle, CheckoutSubmitting, true},
		{CheckoutIdle, CheckoutVerifying, false},
		{CheckoutSubmitting, CheckoutAwaitingPayment, true},
		{CheckoutSubmitting, CheckoutIdle, true},
		{CheckoutSubmitting, CheckoutSettled, false},
		{CheckoutAwaitingPayment, CheckoutVerifying, true},
		{CheckoutAwaitingPayment, CheckoutIdle, true},
		{CheckoutVerifying, CheckoutSettled, true},
		{CheckoutVerifying, CheckoutIdle, true},
		{CheckoutVerifying, CheckoutAwaitingPayment, false},
		{CheckoutSettled, CheckoutSubmitting, true},
		{CheckoutSettled, CheckoutIdle, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, CanTransitionTo(tt.from, tt.to))
		})
	}
}

func TestCheckoutState_InFlight(t *testing.T) {
	assert.False(t, CheckoutIdle.InFlight())
	assert.True(t, CheckoutSubmitting.InFlight())
	assert.True(t, CheckoutAwaitingPayment.InFlight())
	assert.True(t, CheckoutVerifying.InFlight())
	assert.False(t, CheckoutSettled.InFlight())
}

func TestOrderStatus_Decode(t *testing.T) {
	var order Order
	require.NoError(t, json.Unmarshal([]byte(`{"_id":"o1","status":"shipped","paymentStatus":"completed"}`), &order))
	assert.Equal(t, OrderStatusShipped, order.Status)
	assert.Equal(t, PaymentStatusCompleted, order.PaymentStatus)

	require.NoError(t, json.Unmarshal([]byte(`{"_id":"o2","status":"lost-in-transit","paymentStatus":"refunded"}`), &order))
	assert.Equal(t, OrderStatusUnknown, order.Status)
	assert.Equal(t, PaymentStatusUnknown, order.PaymentStatus)
}

func TestOrderStatus_Label(t *testing.T) {
	assert.Equal(t, "unknown", OrderStatus("").Label())
	assert.Equal(t, "unknown", OrderStatus("teleported").Label())
	assert.Equal(t, "delivered", OrderStatusDelivered.Label())
	assert.Equal(t, "unknown", PaymentStatus("").Label())
	assert.Equal(t, "failed", PaymentStatusFailed.Label())
}

func TestOrderStatuses_ReturnsCopy(t *testing.T) {
	statuses := OrderStatuses()
	require.Len(t, statuses, 5)
	statuses[0] = OrderStatusUnknown
	assert.Equal(t, OrderStatusPending, OrderStatuses()[0])
}

func TestUser_DecodesEitherID(t *testing.T) {
	var fromAuth, fromAdmin User
	require.NoError(t, json.Unmarshal([]byte(`{"id":"u1","name":"Asha","isAdmin":true}`), &fromAuth))
	require.NoError(t, json.Unmarshal([]byte(`{"_id":"u2","name":"Ravi"}`), &fromAdmin))

	assert.Equal(t, "u1", fromAuth.ID)
	assert.True(t, fromAuth.IsAdmin)
	assert.Equal(t, "u2", fromAdmin.ID)
	assert.Equal(t, "Ravi", fromAdmin.Name)
}

func TestShippingAddress(t *testing.T) {
	addr := ShippingAddress{Street: "1 MG Road", City: "Pune", State: "MH", ZipCode: "411001"}

	assert.ErrorIs(t, addr.Validate(), ErrInvalidInput)

	withCountry := addr.WithDefaults()
	assert.Equal(t, DefaultCountry, withCountry.Country)
	assert.NoError(t, withCountry.Validate())

	custom := ShippingAddress{Country: "Nepal"}.WithDefaults()
	assert.Equal(t, "Nepal", custom.Country)

	addr.Country = "India"
	addr.City = ""
	err := addr.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "city")
}

func TestNewOrderRequest(t *testing.T) {
	snap := CartSnapshot{Lines: []CartLine{
		{ProductID: "p1", Quantity: 2, UnitPrice: 10},
		{ProductID: "p2", Quantity: 1, UnitPrice: 5},
	}}
	addr := ShippingAddress{Street: "s", City: "c", State: "st", ZipCode: "z", Country: "India"}

	req := NewOrderRequest(snap, addr)

	data, err := json.Marshal(req)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"items":[{"product":"p1","quantity":2},{"product":"p2","quantity":1}],
		"shippingAddress":{"street":"s","city":"c","state":"st","zipCode":"z","country":"India"}
	}`, string(data))
}

func TestOrder_Placeholders(t *testing.T) {
	var order Order
	require.NoError(t, json.Unmarshal([]byte(`{"_id":"64f0c2a1b9e77d0012345678","user":null,"items":[{"product":null,"quantity":1,"price":9.5}]}`), &order))

	assert.Equal(t, "Unknown User", order.CustomerName())
	assert.Equal(t, "Unknown Product", order.Items[0].ProductName())
	assert.Equal(t, "12345678", order.ShortID())
	assert.Equal(t, "unknown", order.Status.Label())
	assert.Equal(t, "ab", Order{ID: "ab"}.ShortID())
}

func TestCartLine_Subtotal(t *testing.T) {
	line := CartLine{UnitPrice: 19.99, Quantity: 3}
	assert.InDelta(t, 59.97, line.Subtotal(), 1e-9)
	assert.Equal(t, "₹59.97", FormatPrice(line.Subtotal()))
}

func TestLineFromProduct(t *testing.T) {
	line := LineFromProduct(Product{ID: "p1", Name: "Lamp", Price: 250, Image: "lamp.png", Stock: 4})
	assert.Equal(t, CartLine{ProductID: "p1", Name: "Lamp", UnitPrice: 250, Image: "lamp.png", StockCeiling: 4}, line)
}

func TestCartSnapshot_IsEmpty(t *testing.T) {
	assert.True(t, CartSnapshot{CapturedAt: time.Now()}.IsEmpty())
	assert.False(t, CartSnapshot{Lines: []CartLine{{ProductID: "p"}}}.IsEmpty())
}

func TestProductInput_Validate(t *testing.T) {
	valid := ProductInput{Name: "Kettle", Price: 999, Category: "Home", Stock: 3}
	assert.NoError(t, valid.Validate())

	tests := []struct {
		name  string
		input ProductInput
	}{
		{"missing name", ProductInput{Price: 1, Category: "Home"}},
		{"negative price", ProductInput{Name: "x", Price: -1, Category: "Home"}},
		{"negative stock", ProductInput{Name: "x", Stock: -1, Category: "Home"}},
		{"bad category", ProductInput{Name: "x", Category: "Garden"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.input.Validate(), ErrInvalidInput)
		})
	}
}

func TestTopProduct_Name(t *testing.T) {
	assert.Equal(t, "Unknown Product", TopProduct{}.Name())
	assert.Equal(t, "Mug", TopProduct{Product: &ProductRef{Name: "Mug"}}.Name())
}
