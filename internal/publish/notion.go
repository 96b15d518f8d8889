package publish

import (
	"context"
	"fmt"
	"time"

	"github.com/jomei/notionapi"

	"github.com/dvloznov/spendbook/internal/catalog"
	"github.com/dvloznov/spendbook/internal/domain"
	"github.com/dvloznov/spendbook/internal/logger"
)

// NotionService defines the Notion operations the sink needs.
type NotionService interface {
	CreatePage(ctx context.Context, databaseID string, properties notionapi.Properties) (*notionapi.Page, error)
	UpdatePage(ctx context.Context, pageID string, properties notionapi.Properties) (*notionapi.Page, error)
	QueryDatabase(ctx context.Context, databaseID string, filter *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error)
}

// NotionClient implements NotionService with the Notion SDK.
type NotionClient struct {
	client *notionapi.Client
}

func NewNotionClient(token string) *NotionClient {
	return &NotionClient{client: notionapi.NewClient(notionapi.Token(token))}
}

func (n *NotionClient) CreatePage(ctx context.Context, databaseID string, properties notionapi.Properties) (*notionapi.Page, error) {
	req := &notionapi.PageCreateRequest{
		Parent: notionapi.Parent{
			Type:       notionapi.ParentTypeDatabaseID,
			DatabaseID: notionapi.DatabaseID(databaseID),
		},
		Properties: properties,
	}
	page, err := n.client.Page.Create(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("CreatePage: %w", err)
	}
	return page, nil
}

func (n *NotionClient) UpdatePage(ctx context.Context, pageID string, properties notionapi.Properties) (*notionapi.Page, error) {
	page, err := n.client.Page.Update(ctx, notionapi.PageID(pageID), &notionapi.PageUpdateRequest{Properties: properties})
	if err != nil {
		return nil, fmt.Errorf("UpdatePage: %w", err)
	}
	return page, nil
}

func (n *NotionClient) QueryDatabase(ctx context.Context, databaseID string, filter *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error) {
	resp, err := n.client.Database.Query(ctx, notionapi.DatabaseID(databaseID), filter)
	if err != nil {
		return nil, fmt.Errorf("QueryDatabase: %w", err)
	}
	return resp, nil
}

// NotionSink upserts one page per transaction, keyed by the
// "Transaction ID" property.
type NotionSink struct {
	Client     NotionService
	DatabaseID string
	Index      Indexer
}

func (s *NotionSink) Name() string { return "notion" }

func (s *NotionSink) Publish(ctx context.Context, st *domain.Statement, txs []*domain.Transaction) error {
	log := logger.FromContext(ctx)
	ix, err := s.Index.Index(ctx)
	if err != nil {
		return err
	}

	pages, err := queryAllPages(ctx, s.Client, s.DatabaseID)
	if err != nil {
		return err
	}
	existing := make(map[string]string, len(pages))
	for _, p := range pages {
		if id := transactionIDOf(p); id != "" {
			existing[id] = string(p.ID)
		}
	}

	var created, updated int
	for _, tx := range txs {
		props := TransactionProperties(tx, ix)
		if pageID, ok := existing[tx.ID]; ok {
			if _, err := s.Client.UpdatePage(ctx, pageID, props); err != nil {
				return err
			}
			updated++
			continue
		}
		if _, err := s.Client.CreatePage(ctx, s.DatabaseID, props); err != nil {
			return err
		}
		created++
	}

	log.Info().
		Str("statement_id", st.ID).
		Int("created", created).
		Int("updated", updated).
		Msg("Notion sync completed")
	return nil
}

// TransactionProperties maps a transaction to Notion database properties.
func TransactionProperties(tx *domain.Transaction, ix *catalog.Index) notionapi.Properties {
	date := notionapi.Date(time.Date(tx.CreatedAt.Year(), tx.CreatedAt.Month(), tx.CreatedAt.Day(), 0, 0, 0, 0, time.UTC))
	props := notionapi.Properties{
		"Description": notionapi.TitleProperty{
			Title: richText(tx.Description),
		},
		"Transaction ID": notionapi.RichTextProperty{RichText: richText(tx.ID)},
		"Statement ID":   notionapi.RichTextProperty{RichText: richText(tx.StatementID)},
		"Date":           notionapi.DateProperty{Date: &notionapi.DateObject{Start: &date}},
		"Amount":         notionapi.NumberProperty{Number: float64(tx.Amount)},
		"Shared":         notionapi.CheckboxProperty{Checkbox: tx.Shared},
	}

	if tx.Currency != "" {
		props["Currency"] = notionapi.SelectProperty{Select: notionapi.Option{Name: tx.Currency}}
	}
	if s := label(ix, tx.SenderID); s != "" {
		props["Sender"] = notionapi.RichTextProperty{RichText: richText(s)}
	}
	if r := label(ix, tx.RecipientID); r != "" {
		props["Recipient"] = notionapi.RichTextProperty{RichText: richText(r)}
	}
	if g := expenseGroup(ix, tx.RecipientID); g != "" {
		props["Category"] = notionapi.SelectProperty{Select: notionapi.Option{Name: g}}
	}
	if tx.SharedAmount != nil {
		props["Shared Amount"] = notionapi.NumberProperty{Number: float64(*tx.SharedAmount)}
	}
	if tx.Location != "" {
		props["Location"] = notionapi.RichTextProperty{RichText: richText(tx.Location)}
	}
	return props
}

func richText(s string) []notionapi.RichText {
	return []notionapi.RichText{
		{
			Type: notionapi.ObjectTypeText,
			Text: &notionapi.Text{Content: s},
		},
	}
}

// queryAllPages returns every page of a database, following cursors.
func queryAllPages(ctx context.Context, client NotionService, databaseID string) ([]notionapi.Page, error) {
	var (
		all    []notionapi.Page
		cursor notionapi.Cursor
	)
	for {
		req := &notionapi.DatabaseQueryRequest{PageSize: 100}
		if cursor != "" {
			req.StartCursor = cursor
		}
		resp, err := client.QueryDatabase(ctx, databaseID, req)
		if err != nil {
			return nil, fmt.Errorf("queryAllPages: %w", err)
		}
		all = append(all, resp.Results...)
		if !resp.HasMore {
			break
		}
		cursor = resp.NextCursor
	}
	return all, nil
}

// transactionIDOf reads the "Transaction ID" property of a queried page.
func transactionIDOf(page notionapi.Page) string {
	prop, ok := page.Properties["Transaction ID"]
	if !ok {
		return ""
	}
	rt, ok := prop.(*notionapi.RichTextProperty)
	if !ok || len(rt.RichText) == 0 {
		return ""
	}
	return rt.RichText[0].PlainText
}
