package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/spendbook/internal/analytics"
	"github.com/dvloznov/spendbook/internal/catalog"
	"github.com/dvloznov/spendbook/internal/domain"
	"github.com/dvloznov/spendbook/internal/jobs"
	"github.com/dvloznov/spendbook/internal/jobs/inmemory"
	"github.com/dvloznov/spendbook/internal/statements"
	"github.com/dvloznov/spendbook/internal/store/memory"
	"github.com/dvloznov/spendbook/internal/transactions"
)

type fakeQueue struct {
	store     jobs.JobStore
	published []*jobs.IngestJob
}

func (q *fakeQueue) PublishIngest(ctx context.Context, job *jobs.IngestJob) error {
	job.JobID = "job-1"
	job.Status = jobs.JobStatusPending
	q.published = append(q.published, job)
	return q.store.SaveJob(ctx, job)
}

func (q *fakeQueue) Close() error { return nil }

func (q *fakeQueue) Cancel(ctx context.Context, id string) (*jobs.IngestJob, error) {
	job, err := q.store.GetJob(ctx, id)
	if err != nil {
		return nil, err
	}
	job.Status = jobs.JobStatusCanceled
	return job, q.store.SaveJob(ctx, job)
}

type fakeDocuments struct {
	uploaded map[string][]byte
}

func (d *fakeDocuments) Upload(_ context.Context, name string, r io.Reader) (string, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	d.uploaded[name] = b
	return "gs://statements-bucket/" + name, nil
}

func (d *fakeDocuments) Fetch(context.Context, string) ([]byte, error) { return nil, nil }

type recordingSink struct {
	got []*domain.Transaction
}

func (s *recordingSink) Name() string { return "recording" }

func (s *recordingSink) Publish(_ context.Context, _ *domain.Statement, txs []*domain.Transaction) error {
	s.got = txs
	return nil
}

type fixture struct {
	srv   *httptest.Server
	txs   *transactions.Service
	queue *fakeQueue
	docs  *fakeDocuments
	sink  *recordingSink
}

func newFixture(t *testing.T, withOptional bool) *fixture {
	t.Helper()
	s := memory.New()
	lifecycle := statements.NewService(s)
	txs := transactions.NewService(s, lifecycle)
	jobStore := inmemory.NewStore()

	f := &fixture{
		txs:   txs,
		queue: &fakeQueue{store: jobStore},
		docs:  &fakeDocuments{uploaded: map[string][]byte{}},
		sink:  &recordingSink{},
	}
	deps := Deps{
		Catalog:      catalog.NewService(s),
		Statements:   lifecycle,
		Transactions: txs,
		Analytics:    analytics.NewService(s),
		Jobs:         jobStore,
		Queue:        f.queue,
		Log:          zerolog.Nop(),
	}
	if withOptional {
		deps.Documents = f.docs
		deps.Sink = f.sink
	}
	f.srv = httptest.NewServer(NewRouter(deps))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fixture) do(t *testing.T, method, path string, body interface{}, out interface{}) int {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, f.srv.URL+path, rd)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func (f *fixture) entity(t *testing.T, in catalog.EntityInput) *domain.Entity {
	t.Helper()
	var e domain.Entity
	require.Equal(t, http.StatusCreated, f.do(t, http.MethodPost, "/api/entities", in, &e))
	return &e
}

func (f *fixture) statement(t *testing.T, bankID string) *domain.Statement {
	t.Helper()
	var st domain.Statement
	require.Equal(t, http.StatusCreated, f.do(t, http.MethodPost, "/api/statements", map[string]string{"bank_id": bankID}, &st))
	return &st
}

func TestHealth(t *testing.T) {
	f := newFixture(t, false)

	var body map[string]string
	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/health", nil, &body))
	assert.Equal(t, "healthy", body["status"])
}

func TestEntities(t *testing.T) {
	f := newFixture(t, false)

	food := f.entity(t, catalog.EntityInput{Label: "Food", Category: domain.CategoryExpense})
	groceries := f.entity(t, catalog.EntityInput{Label: "Groceries", Category: domain.CategoryExpense, ParentID: &food.ID})
	f.entity(t, catalog.EntityInput{Label: "Barclays", Category: domain.CategoryBank, Currency: "gbp"})

	t.Run("list by category", func(t *testing.T) {
		var body struct {
			Entities []domain.Entity `json:"entities"`
			Count    int             `json:"count"`
		}
		require.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/api/entities?category=expense", nil, &body))
		assert.Equal(t, 2, body.Count)
	})

	t.Run("root of child", func(t *testing.T) {
		var root domain.Entity
		require.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/api/entities/"+groceries.ID+"/root", nil, &root))
		assert.Equal(t, food.ID, root.ID)
	})

	t.Run("error kinds map to status", func(t *testing.T) {
		tests := []struct {
			name   string
			method string
			path   string
			body   interface{}
			status int
			kind   string
		}{
			{"bad category filter", http.MethodGet, "/api/entities?category=fun", nil, http.StatusBadRequest, "validation"},
			{"income with parent", http.MethodPost, "/api/entities", catalog.EntityInput{Label: "X", Category: domain.CategoryIncome, ParentID: &food.ID}, http.StatusBadRequest, "validation"},
			{"unknown field", http.MethodPost, "/api/entities", map[string]string{"label": "X", "colour": "red"}, http.StatusBadRequest, "validation"},
			{"missing entity", http.MethodGet, "/api/entities/nope", nil, http.StatusNotFound, "not_found"},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				var body map[string]string
				assert.Equal(t, tt.status, f.do(t, tt.method, tt.path, tt.body, &body))
				assert.Equal(t, tt.kind, body["kind"])
			})
		}
	})

	t.Run("update and delete", func(t *testing.T) {
		var e domain.Entity
		require.Equal(t, http.StatusOK, f.do(t, http.MethodPut, "/api/entities/"+food.ID, catalog.EntityInput{Label: "Eating", Category: domain.CategoryExpense}, &e))
		assert.Equal(t, "Eating", e.Label)

		assert.Equal(t, http.StatusNoContent, f.do(t, http.MethodDelete, "/api/entities/"+food.ID, nil, nil))
		assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, "/api/entities/"+food.ID, nil, nil))
	})
}

func TestStatementReviewAndPublish(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	bank := f.entity(t, catalog.EntityInput{Label: "Barclays", Category: domain.CategoryBank, Currency: "GBP"})
	food := f.entity(t, catalog.EntityInput{Label: "Food", Category: domain.CategoryExpense})
	st := f.statement(t, bank.ID)

	created := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	tx1, err := f.txs.Create(ctx, transactions.CreateInput{StatementID: st.ID, SenderID: &bank.ID, RecipientID: &food.ID, Amount: 100, Currency: "GBP", CreatedAt: created})
	require.NoError(t, err)
	_, err = f.txs.Create(ctx, transactions.CreateInput{StatementID: st.ID, SenderID: &bank.ID, RecipientID: &food.ID, Amount: 40, Currency: "GBP", CreatedAt: created})
	require.NoError(t, err)

	var body map[string]string
	assert.Equal(t, http.StatusConflict, f.do(t, http.MethodPost, "/api/statements/"+st.ID+"/publish", nil, &body))
	assert.Equal(t, "conflict", body["kind"])

	var patched domain.Transaction
	require.Equal(t, http.StatusOK, f.do(t, http.MethodPatch, "/api/transactions/"+tx1.ID, map[string]interface{}{"reviewed_at": created}, &patched))
	assert.True(t, patched.Reviewed())
	assert.Equal(t, int64(100), patched.Amount, "absent keys are left untouched")

	var got domain.Statement
	require.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/api/statements/"+st.ID, nil, &got))
	assert.Equal(t, domain.StatusProcessed, got.Status)

	require.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/api/statements/"+st.ID+"/review", map[string]bool{"reviewed": true}, &got))
	assert.Equal(t, domain.StatusReviewed, got.Status)

	var expenses struct {
		Expenses []analytics.ParentTotal `json:"expenses"`
	}
	require.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/api/analytics/expenses", nil, &expenses))
	require.Len(t, expenses.Expenses, 1)
	assert.Equal(t, int64(140), expenses.Expenses[0].Total)

	require.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/api/statements/"+st.ID+"/publish", nil, &got))
	assert.Equal(t, domain.StatusPublished, got.Status)
	assert.Len(t, f.sink.got, 2)

	var list struct {
		Transactions []domain.Transaction `json:"transactions"`
	}
	require.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/api/statements/"+st.ID+"/transactions", nil, &list))
	assert.Len(t, list.Transactions, 2)

	require.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/api/statements/"+st.ID+"/reprocess", nil, &got))
	assert.Equal(t, domain.StatusNew, got.Status)
	require.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/api/statements/"+st.ID+"/transactions", nil, &list))
	assert.Empty(t, list.Transactions)
}

func TestStatementArchiveFilter(t *testing.T) {
	f := newFixture(t, false)
	bank := f.entity(t, catalog.EntityInput{Label: "Monzo", Category: domain.CategoryBank})
	a := f.statement(t, bank.ID)
	f.statement(t, bank.ID)

	var got domain.Statement
	require.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/api/statements/"+a.ID+"/archive", nil, &got))
	assert.True(t, got.Archived())

	var body struct {
		Count int `json:"count"`
	}
	require.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/api/statements?archived=true", nil, &body))
	assert.Equal(t, 1, body.Count)
	require.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/api/statements?archived=false", nil, &body))
	assert.Equal(t, 1, body.Count)
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodGet, "/api/statements?archived=maybe", nil, nil))

	require.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/api/statements/"+a.ID+"/unarchive", nil, &got))
	assert.False(t, got.Archived())
}

func TestOptionalServicesUnavailable(t *testing.T) {
	f := newFixture(t, false)
	bank := f.entity(t, catalog.EntityInput{Label: "Monzo", Category: domain.CategoryBank})
	st := f.statement(t, bank.ID)

	assert.Equal(t, http.StatusServiceUnavailable, f.do(t, http.MethodPost, "/api/statements/"+st.ID+"/publish", nil, nil))
	assert.Equal(t, http.StatusServiceUnavailable, f.do(t, http.MethodPost, "/api/statements/upload", nil, nil))
}

func TestUpload(t *testing.T) {
	f := newFixture(t, true)
	bank := f.entity(t, catalog.EntityInput{Label: "Monzo", Category: domain.CategoryBank})

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("bank_id", bank.ID))
	part, err := mw.CreateFormFile("file", "march.pdf")
	require.NoError(t, err)
	_, err = part.Write([]byte("%PDF-1.4"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	resp, err := http.Post(f.srv.URL+"/api/statements/upload", mw.FormDataContentType(), &buf)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var st domain.Statement
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&st))
	assert.True(t, strings.HasPrefix(st.SourceURI, "gs://statements-bucket/statements/"+bank.ID+"/"))
	assert.True(t, strings.HasSuffix(st.SourceURI, "-march.pdf"))
	assert.Equal(t, domain.StatusNew, st.Status)
	require.Len(t, f.docs.uploaded, 1)
}

func TestIngestJobs(t *testing.T) {
	f := newFixture(t, false)
	bank := f.entity(t, catalog.EntityInput{Label: "Monzo", Category: domain.CategoryBank})
	st := f.statement(t, bank.ID)

	var job jobs.IngestJob
	require.Equal(t, http.StatusAccepted, f.do(t, http.MethodPost, "/api/statements/"+st.ID+"/ingest", nil, &job))
	assert.Equal(t, st.ID, job.StatementID)
	assert.Equal(t, jobs.JobStatusPending, job.Status)

	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodPost, "/api/statements/missing/ingest", nil, nil))
	assert.Len(t, f.queue.published, 1)

	var got jobs.IngestJob
	require.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/api/jobs/"+job.JobID, nil, &got))
	assert.Equal(t, st.ID, got.StatementID)

	var list struct {
		Count int `json:"count"`
	}
	require.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/api/jobs?statement_id="+st.ID, nil, &list))
	assert.Equal(t, 1, list.Count)
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodGet, "/api/jobs?limit=-1", nil, nil))

	require.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/api/jobs/"+job.JobID+"/cancel", nil, &got))
	assert.Equal(t, jobs.JobStatusCanceled, got.Status)

	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, "/api/jobs/nope", nil, nil))
}

func TestAnalyticsWindowAndExport(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	bank := f.entity(t, catalog.EntityInput{Label: "Monzo", Category: domain.CategoryBank})
	salary := f.entity(t, catalog.EntityInput{Label: "Salary", Category: domain.CategoryIncome})
	st := f.statement(t, bank.ID)

	reviewed := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	_, err := f.txs.Create(ctx, transactions.CreateInput{
		StatementID: st.ID, SenderID: &salary.ID, RecipientID: &bank.ID,
		Amount: 3000, Currency: "GBP", Description: "Pay",
		CreatedAt: time.Date(2024, 2, 28, 0, 0, 0, 0, time.UTC), ReviewedAt: &reviewed,
	})
	require.NoError(t, err)

	var m analytics.KeyMetrics
	require.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/api/analytics/metrics?income="+salary.ID, nil, &m))
	assert.Equal(t, int64(3000), m.Income)

	feb := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC).UnixMilli()
	jan := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).UnixMilli()
	var count map[string]int
	require.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/api/analytics/reviewed-count?start="+itoa(jan)+"&end="+itoa(feb), nil, &count))
	assert.Equal(t, 0, count["count"])
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodGet, "/api/analytics/reviewed-count?start="+itoa(feb)+"&end="+itoa(jan), nil, nil))
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodGet, "/api/analytics/banks?start=yesterday", nil, nil))

	var banks struct {
		Banks []analytics.BankSummary `json:"banks"`
	}
	require.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/api/analytics/banks", nil, &banks))
	require.Len(t, banks.Banks, 1)
	assert.Equal(t, bank.ID, banks.Banks[0].BankID)

	resp, err := http.Get(f.srv.URL + "/api/export.csv")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/csv", resp.Header.Get("Content-Type"))
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[1], "Pay")
}

func itoa(n int64) string {
	return strconv.FormatInt(n, 10)
}
