package extraction

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/spendbook/internal/domain"
)

func TestParsePayload(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		want    int
		wantErr error
	}{
		{
			name: "bare object",
			text: `{"transactions":[{"date":"2024-03-01","description":"Tesco","amount":1250,"type":"debit"}]}`,
			want: 1,
		},
		{
			name: "fenced object",
			text: "```json\n{\"transactions\":[]}\n```",
			want: 0,
		},
		{
			name: "prose before trailing object",
			text: "Here is what I found {not json}. Result:\n{\"transactions\":[{\"date\":\"x\",\"description\":\"a\",\"amount\":\"3.5\"},{\"date\":\"y\",\"description\":\"b\",\"amount\":2}]}",
			want: 2,
		},
		{
			name: "braces inside strings",
			text: "Totals are approximate {see notes}.\n{\"transactions\":[{\"date\":\"x\",\"description\":\"Shop {A} \\\"}\\\" \",\"amount\":1}]}",
			want: 1,
		},
		{
			name: "stray brace after object",
			text: "{\"transactions\":[{\"date\":\"x\",\"description\":\"a\",\"amount\":1}]}\nHope this helps :}",
			want: 1,
		},
		{
			name: "long prose with braces",
			text: strings.Repeat("{ noise } \" ", 20000) + "\n{\"transactions\":[{\"date\":\"x\",\"description\":\"a\",\"amount\":1}]}",
			want: 1,
		},
		{
			name:    "no object",
			text:    "I could not read the statement.",
			wantErr: domain.ErrParse,
		},
		{
			name:    "bad amount",
			text:    `{"transactions":[{"amount":"lots"}]}`,
			wantErr: domain.ErrParse,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := ParsePayload(tt.text)
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Len(t, p.Transactions, tt.want)
		})
	}
}

func TestParsePayloadFields(t *testing.T) {
	p, err := ParsePayload(`{"transactions":[{"date":"2024-03-01","description":"Salary","amount":"250000.4","category":"inc-1","location":"London","isShared":true,"type":"credit"}]}`)
	require.NoError(t, err)
	require.Len(t, p.Transactions, 1)

	raw := p.Transactions[0]
	assert.Equal(t, "2024-03-01", raw.Date)
	assert.Equal(t, "250000.4", raw.Amount.String())
	assert.Equal(t, "inc-1", raw.Category)
	assert.Equal(t, "London", raw.Location)
	assert.True(t, raw.IsShared)
	assert.Equal(t, "credit", raw.Type)
}

func TestBuildPrompt(t *testing.T) {
	entities := []*domain.Entity{
		{ID: "e1", Label: "Groceries", Category: domain.CategoryExpense, Prompt: "supermarkets"},
		{ID: "b1", Label: "Monzo", Category: domain.CategoryBank, Prompt: "bank hint"},
	}
	prompt := BuildPrompt(entities, "Dates are DD/MM/YYYY.")

	assert.Contains(t, prompt, SystemPrompt)
	assert.Contains(t, prompt, "e1 | Groceries | expense (supermarkets)")
	assert.Contains(t, prompt, "b1 | Monzo | bank\n")
	assert.Contains(t, prompt, "Dates are DD/MM/YYYY.")
}
