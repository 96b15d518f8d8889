package domain

import (
	"fmt"
	"time"
)

// Category classifies an entity.
type Category string

const (
	CategoryBank    Category = "bank"
	CategoryExpense Category = "expense"
	CategoryIncome  Category = "income"
	CategorySavings Category = "savings"
)

// Categories lists every category in display order.
var Categories = []Category{CategoryBank, CategoryExpense, CategoryIncome, CategorySavings}

// ParseCategory validates a raw category name.
func ParseCategory(s string) (Category, error) {
	for _, c := range Categories {
		if string(c) == s {
			return c, nil
		}
	}
	return "", fmt.Errorf("%w: unknown category %q", ErrValidation, s)
}

// Entity is a labeled classification node usable as a transaction counterparty.
type Entity struct {
	ID       string   `json:"id"`
	Label    string   `json:"label"`
	Category Category `json:"category"`
	// Prompt is the classification hint sent to the extraction service.
	// For banks it is the bank-specific statement prompt.
	Prompt   string  `json:"prompt"`
	ParentID *string `json:"parent_id"`
	Currency string  `json:"currency"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsRoot reports whether the entity has no parent.
func (e *Entity) IsRoot() bool {
	return e.ParentID == nil || *e.ParentID == ""
}
