package resultapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ashare/internal/domain"
	"ashare/internal/store"
)

type fakeStore struct {
	runs   []store.RunSummary
	trades []domain.Trade
	daily  []domain.DailyRecord
	annual []domain.AnnualStats
	err    error
	limit  int
}

func (f *fakeStore) SaveRun(context.Context, *store.Run) (string, error) { return "", nil }

func (f *fakeStore) ListRuns(_ context.Context, limit int) ([]store.RunSummary, error) {
	f.limit = limit
	return f.runs, f.err
}

func (f *fakeStore) GetRun(_ context.Context, id string) (*store.RunSummary, error) {
	if f.err != nil {
		return nil, f.err
	}
	for i := range f.runs {
		if f.runs[i].ID == id {
			return &f.runs[i], nil
		}
	}
	return nil, store.ErrNotFound
}

func (f *fakeStore) lookup(id string) error {
	_, err := f.GetRun(context.Background(), id)
	return err
}

func (f *fakeStore) RunTrades(_ context.Context, id string) ([]domain.Trade, error) {
	if err := f.lookup(id); err != nil {
		return nil, err
	}
	return append([]domain.Trade(nil), f.trades...), nil
}

func (f *fakeStore) RunDaily(_ context.Context, id string) ([]domain.DailyRecord, error) {
	if err := f.lookup(id); err != nil {
		return nil, err
	}
	return f.daily, nil
}

func (f *fakeStore) RunAnnual(_ context.Context, id string) ([]domain.AnnualStats, error) {
	if err := f.lookup(id); err != nil {
		return nil, err
	}
	return f.annual, nil
}

func (f *fakeStore) Close() error { return nil }

func d(y int, m time.Month, day int) time.Time { return time.Date(y, m, day, 0, 0, 0, 0, time.UTC) }

func newFake() *fakeStore {
	f := &fakeStore{
		runs: []store.RunSummary{{ID: "r1", Name: "dividend_value", Start: d(2024, 1, 2), End: d(2024, 6, 28)}},
		trades: []domain.Trade{
			{Date: d(2024, 1, 2), Code: "sh.600000", Action: domain.ActionBuy, Shares: 1300},
			{Date: d(2024, 1, 2), Code: "sz.000651", Action: domain.ActionBuy, Shares: 200},
		},
		annual: []domain.AnnualStats{{Year: 2024, AnnualReturn: 1.5}},
	}
	for day := d(2024, 1, 1); !day.After(d(2024, 6, 30)); day = day.AddDate(0, 0, 1) {
		f.daily = append(f.daily, domain.DailyRecord{Date: day, TotalAsset: 1_000_000})
	}
	return f
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHealth(t *testing.T) {
	h := NewServer(newFake(), zerolog.Nop()).Handler()
	rec := get(t, h, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestListRuns(t *testing.T) {
	f := newFake()
	h := NewServer(f, zerolog.Nop()).Handler()

	rec := get(t, h, "/api/runs")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	var resp RunsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Runs, 1)
	assert.Equal(t, "r1", resp.Runs[0].ID)
	assert.Equal(t, defaultLimit, f.limit)

	get(t, h, "/api/runs?limit=10000")
	assert.Equal(t, maxLimit, f.limit)

	rec = get(t, h, "/api/runs?limit=zero")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListRunsEmptyIsArray(t *testing.T) {
	h := NewServer(&fakeStore{}, zerolog.Nop()).Handler()
	rec := get(t, h, "/api/runs")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"runs":[]}`, rec.Body.String())
}

func TestGetRunAndChildren(t *testing.T) {
	h := NewServer(newFake(), zerolog.Nop()).Handler()

	rec := get(t, h, "/api/runs/r1")
	require.Equal(t, http.StatusOK, rec.Code)
	var run store.RunSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &run))
	assert.Equal(t, "dividend_value", run.Name)

	rec = get(t, h, "/api/runs/r1/trades")
	require.Equal(t, http.StatusOK, rec.Code)
	var trades []domain.Trade
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &trades))
	assert.Len(t, trades, 2)

	rec = get(t, h, "/api/runs/r1/trades?code=sz.000651")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &trades))
	require.Len(t, trades, 1)
	assert.Equal(t, int64(200), trades[0].Shares)

	rec = get(t, h, "/api/runs/r1/annual")
	require.Equal(t, http.StatusOK, rec.Code)
	var annual []domain.AnnualStats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &annual))
	assert.Equal(t, 2024, annual[0].Year)

	rec = get(t, h, "/api/runs/r1/daily")
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestEquityIsResampled(t *testing.T) {
	h := NewServer(newFake(), zerolog.Nop()).Handler()
	rec := get(t, h, "/api/runs/r1/equity")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp EquityResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "r1", resp.RunID)
	assert.Equal(t, "weekly", resp.Granularity)
	assert.Len(t, resp.TotalAsset, len(resp.Dates))
	assert.Less(t, len(resp.Dates), 182)
}

func TestUnknownRunIs404(t *testing.T) {
	h := NewServer(newFake(), zerolog.Nop()).Handler()
	for _, path := range []string{
		"/api/runs/nope",
		"/api/runs/nope/trades",
		"/api/runs/nope/daily",
		"/api/runs/nope/annual",
		"/api/runs/nope/equity",
	} {
		rec := get(t, h, path)
		assert.Equal(t, http.StatusNotFound, rec.Code, path)
		assert.JSONEq(t, `{"error":"run not found"}`, rec.Body.String(), path)
	}
}

func TestStoreFailureIs500(t *testing.T) {
	f := newFake()
	f.err = errors.New("disk gone")
	h := NewServer(f, zerolog.Nop()).Handler()

	rec := get(t, h, "/api/runs")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "disk gone")
}

func TestMetricsEndpoint(t *testing.T) {
	h := NewServer(newFake(), zerolog.Nop()).Handler()
	get(t, h, "/api/runs/r1")

	rec := get(t, h, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ashare_http_requests_total")
	assert.Contains(t, rec.Body.String(), `route="/api/runs/{id}`)
}
