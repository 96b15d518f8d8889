package domain

import (
	"fmt"
	"time"
)

// Transaction is a monetary movement between up to two entities, owned by
// exactly one statement. Amounts are non-negative integer minor units.
type Transaction struct {
	ID          string    `json:"id"`
	StatementID string    `json:"statement_id"`
	SenderID    *string   `json:"sender_id"`
	RecipientID *string   `json:"recipient_id"`
	CreatedAt   time.Time `json:"created_at"`

	Amount      int64  `json:"amount"`
	Currency    string `json:"currency"`
	Description string `json:"description"`
	Location    string `json:"location,omitempty"`

	// SharedAmount is the owner's retained portion when Shared is set.
	Shared       bool   `json:"shared"`
	SharedAmount *int64 `json:"shared_amount"`

	ReviewedAt *time.Time `json:"reviewed_at"`
}

// Reviewed reports whether the transaction has been confirmed by the user.
func (t *Transaction) Reviewed() bool {
	return t.ReviewedAt != nil
}

// Validate checks the amount rules of a transaction.
func (t *Transaction) Validate() error {
	if t.Amount < 0 {
		return fmt.Errorf("%w: amount must be non-negative, got %d", ErrValidation, t.Amount)
	}
	if t.SharedAmount != nil {
		if *t.SharedAmount < 0 {
			return fmt.Errorf("%w: shared amount must be non-negative, got %d", ErrValidation, *t.SharedAmount)
		}
		if t.Shared && *t.SharedAmount > t.Amount {
			return fmt.Errorf("%w: shared amount %d exceeds amount %d", ErrValidation, *t.SharedAmount, t.Amount)
		}
	}
	return nil
}

// TransactionPatch is a sparse update. Only fields with Set=true are applied.
type TransactionPatch struct {
	SenderID     Field[*string]    `json:"sender_id"`
	RecipientID  Field[*string]    `json:"recipient_id"`
	Shared       Field[bool]       `json:"shared"`
	SharedAmount Field[*int64]     `json:"shared_amount"`
	Description  Field[string]     `json:"description"`
	ReviewedAt   Field[*time.Time] `json:"reviewed_at"`
}

// Apply writes the provided fields onto tx.
func (p TransactionPatch) Apply(tx *Transaction) {
	if p.SenderID.Set {
		tx.SenderID = p.SenderID.Value
	}
	if p.RecipientID.Set {
		tx.RecipientID = p.RecipientID.Value
	}
	if p.Shared.Set {
		tx.Shared = p.Shared.Value
	}
	if p.SharedAmount.Set {
		tx.SharedAmount = p.SharedAmount.Value
	}
	if p.Description.Set {
		tx.Description = p.Description.Value
	}
	if p.ReviewedAt.Set {
		tx.ReviewedAt = p.ReviewedAt.Value
	}
}

// TouchesReview reports whether applying the patch may change review state.
func (p TransactionPatch) TouchesReview() bool {
	return p.ReviewedAt.Set
}
