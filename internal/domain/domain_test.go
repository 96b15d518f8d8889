package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransactionPatch_JSON(t *testing.T) {
	var p TransactionPatch
	require.NoError(t, json.Unmarshal([]byte(`{"recipient_id":null,"description":"Lunch"}`), &p))

	assert.True(t, p.RecipientID.Set)
	assert.Nil(t, p.RecipientID.Value)
	assert.True(t, p.Description.Set)
	assert.False(t, p.SenderID.Set)
	assert.False(t, p.TouchesReview())

	recipient := "food"
	sender := "bank"
	tx := &Transaction{SenderID: &sender, RecipientID: &recipient, Description: "old"}
	p.Apply(tx)
	assert.Nil(t, tx.RecipientID)
	assert.Equal(t, &sender, tx.SenderID)
	assert.Equal(t, "Lunch", tx.Description)
}

func TestTransactionPatch_ReviewedAt(t *testing.T) {
	var p TransactionPatch
	require.NoError(t, json.Unmarshal([]byte(`{"reviewed_at":"2024-01-02T03:04:05Z"}`), &p))

	assert.True(t, p.TouchesReview())
	require.NotNil(t, p.ReviewedAt.Value)
	assert.True(t, p.ReviewedAt.Value.Equal(time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)))
}

func TestKind(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{fmt.Errorf("wrap: %w", ErrValidation), "validation"},
		{fmt.Errorf("wrap: %w", ErrAuth), "auth"},
		{ErrNetwork, "network"},
		{ErrParse, "parse"},
		{ErrCanceled, "canceled"},
		{ErrNotFound, "not_found"},
		{ErrConflict, "conflict"},
		{errors.New("disk full"), "internal"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Kind(tt.err))
	}
}

func TestParseCategory(t *testing.T) {
	c, err := ParseCategory("savings")
	require.NoError(t, err)
	assert.Equal(t, CategorySavings, c)

	_, err = ParseCategory("Savings")
	assert.ErrorIs(t, err, ErrValidation)
}
