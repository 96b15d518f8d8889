package pipeline

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dvloznov/spendbook/internal/catalog"
	"github.com/dvloznov/spendbook/internal/domain"
	"github.com/dvloznov/spendbook/internal/extraction"
	"github.com/dvloznov/spendbook/internal/transactions"
)

// dateLayouts are tried in order when parsing extracted dates.
var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"02/01/2006",
	"2 Jan 2006",
	"02 Jan 2006",
	"Jan 2, 2006",
	"2 January 2006",
}

// Materialize converts one extracted record into a transaction for the
// statement. For credits the bank receives money from the resolved
// category; otherwise the bank pays the category. Unresolved categories
// leave the counterparty nil. Unparsable dates fall back to now.
func Materialize(raw extraction.RawTransaction, statementID string, bank *domain.Entity, ix *catalog.Index, now time.Time) transactions.CreateInput {
	amount := raw.Amount.Round(0).IntPart()

	var counterpart *string
	if e, ok := ix.Resolve(raw.Category); ok {
		id := e.ID
		counterpart = &id
	}
	bankID := bank.ID

	in := transactions.CreateInput{
		StatementID: statementID,
		CreatedAt:   parseDate(raw.Date, now),
		Amount:      amount,
		Currency:    bank.Currency,
		Description: raw.Description,
		Location:    raw.Location,
		Shared:      raw.IsShared,
	}
	if strings.EqualFold(strings.TrimSpace(raw.Type), "credit") {
		in.SenderID, in.RecipientID = counterpart, &bankID
	} else {
		in.SenderID, in.RecipientID = &bankID, counterpart
	}
	if raw.IsShared {
		half := decimal.NewFromInt(amount).Div(decimal.NewFromInt(2)).Round(0).IntPart()
		in.SharedAmount = &half
	}
	return in
}

func parseDate(s string, now time.Time) time.Time {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return now.UTC()
}
