package shop

import (
	"strings"
	"time"
)

// Role values supplied by the access gateway.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleAdmin    Role = "admin"
)

// Caller is the authenticated identity a request runs as.
type Caller struct {
	UserID int64
	Role   Role
}

func (c Caller) IsAdmin() bool { return c.Role == RoleAdmin }

type Product struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Price       int64     `json:"price"`
	Quantity    int       `json:"quantity"`
	CategoryID  *int64    `json:"category_id"`
	Category    string    `json:"category,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// ProductInput is the full set of writable product fields.
type ProductInput struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Price       int64  `json:"price"`
	Quantity    int    `json:"quantity"`
	CategoryID  *int64 `json:"category_id"`
}

// Validate checks the fields every product write requires.
func (in ProductInput) Validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return Validation("name", "name is required")
	}
	if in.Price < 0 {
		return Validation("price", "price must be >= 0")
	}
	if in.Quantity < 0 {
		return Validation("quantity", "quantity must be >= 0")
	}
	if in.CategoryID != nil && *in.CategoryID <= 0 {
		return Validation("category_id", "category_id must be a positive integer")
	}
	return nil
}

type CartLine struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	ProductID int64     `json:"product_id"`
	Quantity  int       `json:"quantity"`
	CreatedAt time.Time `json:"created_at"`
}

type Order struct {
	ID          int64       `json:"id"`
	UserID      int64       `json:"user_id"`
	Address     string      `json:"address"`
	Fullname    string      `json:"fullname"`
	PhoneNumber string      `json:"phone_number"`
	CreatedAt   time.Time   `json:"created_at"`
	Lines       []OrderLine `json:"lines,omitempty"`
}

// OrderLine keeps the price the product had when the order was placed.
// Later price changes never touch it.
type OrderLine struct {
	ID        int64 `json:"id"`
	OrderID   int64 `json:"order_id"`
	ProductID int64 `json:"product_id"`
	UnitPrice int64 `json:"unit_price"`
	Quantity  int   `json:"quantity"`
	Subtotal  int64 `json:"subtotal"`
}

// LineItem is one requested (product, quantity) pair.
type LineItem struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

// Placed is the result of a committed checkout.
type Placed struct {
	OrderID   int64       `json:"order_id"`
	CreatedAt time.Time   `json:"created_at"`
	Lines     []OrderLine `json:"lines"`
	Total     int64       `json:"total"`
}
