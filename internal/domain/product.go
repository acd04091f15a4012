package domain

import (
	"fmt"
	"slices"
)

// Categories offered by the back-office product form.
var Categories = []string{"Electronics", "Clothing", "Books", "Home", "Sports", "Beauty", "Other"}

type Ratings struct {
	Average float64 `json:"average"`
	Count   int     `json:"count"`
}

type Product struct {
	ID          string  `json:"_id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Price       float64 `json:"price"`
	Category    string  `json:"category"`
	Image       string  `json:"image"`
	Stock       int     `json:"stock"`
	Ratings     Ratings `json:"ratings"`
	IsActive    bool    `json:"isActive"`
	CreatedAt   string  `json:"createdAt,omitempty"`
}

func (p Product) InStock() bool {
	return p.Stock > 0
}

// ProductRef is a populated product reference inside orders and dashboards.
type ProductRef struct {
	ID    string  `json:"_id"`
	Name  string  `json:"name"`
	Image string  `json:"image"`
	Price float64 `json:"price"`
}

type ProductQuery struct {
	Search   string
	Category string
	Page     int
	Limit    int
}

type ProductPage struct {
	Products []Product `json:"products"`
	Pagination
}

type ProductInput struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Price       float64 `json:"price"`
	Category    string  `json:"category"`
	Image       string  `json:"image"`
	Stock       int     `json:"stock"`
}

func (in ProductInput) Validate() error {
	if in.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	if in.Price < 0 {
		return fmt.Errorf("%w: price must not be negative", ErrInvalidInput)
	}
	if in.Stock < 0 {
		return fmt.Errorf("%w: stock must not be negative", ErrInvalidInput)
	}
	if !slices.Contains(Categories, in.Category) {
		return fmt.Errorf("%w: unknown category %q", ErrInvalidInput, in.Category)
	}
	return nil
}
