package zakat

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/ayush/zakat-tracker/internal/middleware"
	"github.com/ayush/zakat-tracker/internal/models"
)

// fakeEntryStore mirrors the Mongo store contract: ids are ObjectID hex and
// every by-id lookup is scoped to the owner.
type fakeEntryStore struct {
	mu      sync.Mutex
	entries map[string]models.Entry
	listErr error
	lists   int
}

func newFakeEntryStore() *fakeEntryStore {
	return &fakeEntryStore{entries: make(map[string]models.Entry)}
}

func (s *fakeEntryStore) Insert(ctx context.Context, e *models.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e.ID = primitive.NewObjectID().Hex()
	s.entries[e.ID] = *e
	return nil
}

func (s *fakeEntryStore) ListByUser(ctx context.Context, userID string) ([]models.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lists++
	if s.listErr != nil {
		return nil, s.listErr
	}
	var out []models.Entry
	for _, e := range s.entries {
		if e.UserID == userID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	return out, nil
}

func (s *fakeEntryStore) lookup(userID, id string) (models.Entry, error) {
	if _, err := primitive.ObjectIDFromHex(id); err != nil {
		return models.Entry{}, models.ErrInvalidID
	}
	e, ok := s.entries[id]
	if !ok || e.UserID != userID {
		return models.Entry{}, models.ErrEntryNotFound
	}
	return e, nil
}

func (s *fakeEntryStore) GetByID(ctx context.Context, userID, id string) (*models.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, err := s.lookup(userID, id)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (s *fakeEntryStore) Update(ctx context.Context, userID, id string, p models.EntryPatch) (*models.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, err := s.lookup(userID, id)
	if err != nil {
		return nil, err
	}
	if p.Amount != nil {
		e.Amount = *p.Amount
	}
	if p.ZakatAmount != nil {
		e.ZakatAmount = *p.ZakatAmount
	}
	if p.Category != nil {
		e.Category = *p.Category
	}
	if p.Description != nil {
		e.Description = p.Description
	}
	if p.Date != nil {
		e.Date = *p.Date
	}
	s.entries[id] = e
	return &e, nil
}

func (s *fakeEntryStore) Delete(ctx context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.lookup(userID, id); err != nil {
		return err
	}
	delete(s.entries, id)
	return nil
}

type fakeUsers map[string]*models.User

func (f fakeUsers) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	if u, ok := f[email]; ok {
		return u, nil
	}
	return nil, models.ErrUserNotFound
}

type fakeCache struct {
	data        map[string]models.Summary
	invalidated []string
}

func (c *fakeCache) Get(ctx context.Context, userID string) (*models.Summary, bool, error) {
	s, ok := c.data[userID]
	if !ok {
		return nil, false, nil
	}
	return &s, true, nil
}

func (c *fakeCache) Set(ctx context.Context, userID string, s *models.Summary) error {
	c.data[userID] = *s
	return nil
}

func (c *fakeCache) Invalidate(ctx context.Context, userID string) error {
	c.invalidated = append(c.invalidated, userID)
	delete(c.data, userID)
	return nil
}

type tokenTable map[string]string

func (t tokenTable) Verify(token string) (string, error) {
	if email, ok := t[token]; ok {
		return email, nil
	}
	return "", errors.New("invalid token")
}

type HandlerSuite struct {
	suite.Suite
	store  *fakeEntryStore
	cache  *fakeCache
	router http.Handler
}

func (s *HandlerSuite) SetupTest() {
	s.store = newFakeEntryStore()
	s.cache = &fakeCache{data: make(map[string]models.Summary)}
	users := fakeUsers{
		"alice@example.com": {ID: "alice-id", Email: "alice@example.com"},
		"bob@example.com":   {ID: "bob-id", Email: "bob@example.com"},
	}
	tokens := tokenTable{
		"alice-token": "alice@example.com",
		"bob-token":   "bob@example.com",
		"ghost-token": "ghost@example.com",
	}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	h := NewHandler(users, s.store, log, WithSummaryCache(s.cache))
	h.now = func() time.Time { return time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC) }

	r := chi.NewRouter()
	r.Route("/zakat", func(r chi.Router) {
		r.Use(middleware.RequireAuth(tokens, log))
		h.Routes(r)
	})
	s.router = r
}

func (s *HandlerSuite) do(method, path, token, body string) *httptest.ResponseRecorder {
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	s.router.ServeHTTP(rr, req)
	return rr
}

func (s *HandlerSuite) create(token, body string) models.Entry {
	rr := s.do(http.MethodPost, "/zakat", token, body)
	s.Require().Equal(http.StatusCreated, rr.Code, rr.Body.String())
	var e models.Entry
	s.Require().NoError(json.NewDecoder(rr.Body).Decode(&e))
	return e
}

func (s *HandlerSuite) TestCreate() {
	e := s.create("alice-token", `{"amount":1000,"category":"Gold","description":"bars","date":"2024-01-15T00:00:00Z"}`)

	s.NotEmpty(e.ID)
	s.Equal("alice-id", e.UserID)
	s.Equal(1000.0, e.Amount)
	s.Equal(25.0, e.ZakatAmount)
	s.Equal("Gold", e.Category)
	s.Require().NotNil(e.Description)
	s.Equal("bars", *e.Description)
	s.Equal(time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), e.Date)
	s.Equal([]string{"alice-id"}, s.cache.invalidated)
}

func (s *HandlerSuite) TestCreate_DefaultsDateToNow() {
	e := s.create("alice-token", `{"amount":40,"category":"Cash"}`)

	s.Equal(time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC), e.Date)
	s.Equal(e.CreatedAt, e.Date)
	s.Nil(e.Description)
}

func (s *HandlerSuite) TestCreate_DateFormats() {
	for _, tc := range []struct {
		date string
		want time.Time
	}{
		{"2024-05-01T10:00:00Z", time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)},
		{"2024-05-01T10:00:00", time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)},
		{"2024-05-01", time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)},
	} {
		e := s.create("alice-token", `{"amount":10,"category":"Cash","date":"`+tc.date+`"}`)
		s.Equal(tc.want, e.Date, tc.date)
	}

	rr := s.do(http.MethodPost, "/zakat", "alice-token", `{"amount":10,"category":"Cash","date":"01/05/2024"}`)
	s.Equal(http.StatusBadRequest, rr.Code)
}

func (s *HandlerSuite) TestUpdate_DateFormats() {
	e := s.create("alice-token", `{"amount":100,"category":"Cash"}`)

	for _, tc := range []struct {
		date string
		want time.Time
	}{
		{"2023-03-04T05:06:07", time.Date(2023, 3, 4, 5, 6, 7, 0, time.UTC)},
		{"2023-03-04", time.Date(2023, 3, 4, 0, 0, 0, 0, time.UTC)},
	} {
		rr := s.do(http.MethodPut, "/zakat/"+e.ID, "alice-token", `{"date":"`+tc.date+`"}`)
		s.Require().Equal(http.StatusOK, rr.Code, tc.date)

		var got models.Entry
		s.Require().NoError(json.NewDecoder(rr.Body).Decode(&got))
		s.Equal(tc.want, got.Date, tc.date)
	}
}

func (s *HandlerSuite) TestCreate_Validation() {
	for _, body := range []string{
		`{"category":"Cash"}`,
		`{"amount":100}`,
		`{"amount":-5,"category":"Cash"}`,
		`{"amount":0,"category":"Cash"}`,
		`{"amount":"lots","category":"Cash"}`,
		``,
	} {
		rr := s.do(http.MethodPost, "/zakat", "alice-token", body)
		s.Equal(http.StatusBadRequest, rr.Code, "body %q", body)
	}
	s.Empty(s.store.entries)
}

func (s *HandlerSuite) TestRequiresToken() {
	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/zakat"},
		{http.MethodPost, "/zakat"},
		{http.MethodGet, "/zakat/statistics/summary"},
		{http.MethodGet, "/zakat/" + primitive.NewObjectID().Hex()},
		{http.MethodDelete, "/zakat/" + primitive.NewObjectID().Hex()},
	} {
		rr := s.do(tc.method, tc.path, "", "")
		s.Equal(http.StatusUnauthorized, rr.Code, "%s %s", tc.method, tc.path)

		rr = s.do(tc.method, tc.path, "forged-token", "")
		s.Equal(http.StatusUnauthorized, rr.Code, "%s %s", tc.method, tc.path)
	}
}

func (s *HandlerSuite) TestDeletedUserIsNotFound() {
	rr := s.do(http.MethodGet, "/zakat", "ghost-token", "")
	s.Equal(http.StatusNotFound, rr.Code)
	s.Contains(rr.Body.String(), "User not found")
}

func (s *HandlerSuite) TestList_NewestFirst() {
	s.create("alice-token", `{"amount":1,"category":"Cash","date":"2023-01-01T00:00:00Z"}`)
	s.create("alice-token", `{"amount":2,"category":"Cash","date":"2024-01-01T00:00:00Z"}`)
	s.create("alice-token", `{"amount":3,"category":"Cash","date":"2023-06-01T00:00:00Z"}`)
	s.create("bob-token", `{"amount":4,"category":"Cash"}`)

	rr := s.do(http.MethodGet, "/zakat", "alice-token", "")
	s.Require().Equal(http.StatusOK, rr.Code)

	var entries []models.Entry
	s.Require().NoError(json.NewDecoder(rr.Body).Decode(&entries))
	s.Require().Len(entries, 3)
	s.Equal([]float64{2, 3, 1}, []float64{entries[0].Amount, entries[1].Amount, entries[2].Amount})
}

func (s *HandlerSuite) TestList_EmptyIsArray() {
	rr := s.do(http.MethodGet, "/zakat", "alice-token", "")
	s.Equal(http.StatusOK, rr.Code)
	s.JSONEq(`[]`, rr.Body.String())
}

func (s *HandlerSuite) TestGet() {
	e := s.create("alice-token", `{"amount":100,"category":"Cash"}`)

	rr := s.do(http.MethodGet, "/zakat/"+e.ID, "alice-token", "")
	s.Require().Equal(http.StatusOK, rr.Code)
	var got models.Entry
	s.Require().NoError(json.NewDecoder(rr.Body).Decode(&got))
	s.Equal(e, got)
}

func (s *HandlerSuite) TestGet_InvalidID() {
	rr := s.do(http.MethodGet, "/zakat/not-an-id", "alice-token", "")
	s.Equal(http.StatusBadRequest, rr.Code)
	s.Contains(rr.Body.String(), "Invalid zakat ID")
}

func (s *HandlerSuite) TestOtherUsersEntryIsNotFound() {
	e := s.create("alice-token", `{"amount":100,"category":"Cash"}`)
	missing := primitive.NewObjectID().Hex()

	for _, tc := range []struct{ method, body string }{
		{http.MethodGet, ""},
		{http.MethodPut, `{"amount":1}`},
		{http.MethodDelete, ""},
	} {
		foreign := s.do(tc.method, "/zakat/"+e.ID, "bob-token", tc.body)
		absent := s.do(tc.method, "/zakat/"+missing, "bob-token", tc.body)

		s.Equal(http.StatusNotFound, foreign.Code, tc.method)
		s.Equal(absent.Code, foreign.Code, tc.method)
		s.Equal(absent.Body.String(), foreign.Body.String(), tc.method)
	}

	stored, err := s.store.GetByID(context.Background(), "alice-id", e.ID)
	s.Require().NoError(err)
	s.Equal(100.0, stored.Amount)
}

func (s *HandlerSuite) TestUpdate_AmountRecomputesZakat() {
	e := s.create("alice-token", `{"amount":100,"category":"Cash","description":"wallet"}`)

	rr := s.do(http.MethodPut, "/zakat/"+e.ID, "alice-token", `{"amount":400}`)
	s.Require().Equal(http.StatusOK, rr.Code)

	var got models.Entry
	s.Require().NoError(json.NewDecoder(rr.Body).Decode(&got))
	s.Equal(400.0, got.Amount)
	s.Equal(10.0, got.ZakatAmount)
	s.Equal("Cash", got.Category)
	s.Require().NotNil(got.Description)
	s.Equal("wallet", *got.Description)
}

func (s *HandlerSuite) TestUpdate_OtherFieldsKeepZakat() {
	e := s.create("alice-token", `{"amount":100,"category":"Cash"}`)

	rr := s.do(http.MethodPut, "/zakat/"+e.ID, "alice-token", `{"category":"Gold","date":"2022-02-02T00:00:00Z"}`)
	s.Require().Equal(http.StatusOK, rr.Code)

	var got models.Entry
	s.Require().NoError(json.NewDecoder(rr.Body).Decode(&got))
	s.Equal("Gold", got.Category)
	s.Equal(2.5, got.ZakatAmount)
	s.Equal(time.Date(2022, 2, 2, 0, 0, 0, 0, time.UTC), got.Date)
}

func (s *HandlerSuite) TestUpdate_EmptyBodyLeavesEntry() {
	e := s.create("alice-token", `{"amount":100,"category":"Cash"}`)
	s.cache.invalidated = nil

	for _, body := range []string{`{}`, ``} {
		rr := s.do(http.MethodPut, "/zakat/"+e.ID, "alice-token", body)
		s.Require().Equal(http.StatusOK, rr.Code, "body %q", body)

		var got models.Entry
		s.Require().NoError(json.NewDecoder(rr.Body).Decode(&got))
		s.Equal(e, got)
	}
	s.Empty(s.cache.invalidated)
}

func (s *HandlerSuite) TestUpdate_Validation() {
	e := s.create("alice-token", `{"amount":100,"category":"Cash"}`)

	for _, body := range []string{`{"amount":-1}`, `{"category":""}`, `{"amount":`} {
		rr := s.do(http.MethodPut, "/zakat/"+e.ID, "alice-token", body)
		s.Equal(http.StatusBadRequest, rr.Code, "body %q", body)
	}
}

func (s *HandlerSuite) TestDelete() {
	e := s.create("alice-token", `{"amount":100,"category":"Cash"}`)

	rr := s.do(http.MethodDelete, "/zakat/"+e.ID, "alice-token", "")
	s.Equal(http.StatusNoContent, rr.Code)
	s.Empty(rr.Body.String())

	rr = s.do(http.MethodDelete, "/zakat/"+e.ID, "alice-token", "")
	s.Equal(http.StatusNotFound, rr.Code)

	rr = s.do(http.MethodGet, "/zakat/"+e.ID, "alice-token", "")
	s.Equal(http.StatusNotFound, rr.Code)
}

func (s *HandlerSuite) TestDelete_NeverExisted() {
	id := primitive.NewObjectID().Hex()
	for i := 0; i < 2; i++ {
		rr := s.do(http.MethodDelete, "/zakat/"+id, "alice-token", "")
		s.Equal(http.StatusNotFound, rr.Code)
	}
}

func (s *HandlerSuite) TestStatistics() {
	s.create("alice-token", `{"amount":100,"category":"Cash"}`)
	s.create("alice-token", `{"amount":200,"category":"Cash"}`)
	s.create("alice-token", `{"amount":50,"category":"Gold"}`)
	s.create("bob-token", `{"amount":999,"category":"Gold"}`)

	rr := s.do(http.MethodGet, "/zakat/statistics/summary", "alice-token", "")
	s.Require().Equal(http.StatusOK, rr.Code)
	s.JSONEq(`{
		"total_amount": 350,
		"total_zakat": 8.75,
		"total_entries": 3,
		"category_breakdown": {
			"Cash": {"count": 2, "total_amount": 300, "total_zakat": 7.5},
			"Gold": {"count": 1, "total_amount": 50, "total_zakat": 1.25}
		}
	}`, rr.Body.String())
}

func (s *HandlerSuite) TestStatistics_Empty() {
	rr := s.do(http.MethodGet, "/zakat/statistics/summary", "alice-token", "")
	s.Require().Equal(http.StatusOK, rr.Code)
	s.JSONEq(`{"total_amount":0,"total_zakat":0,"total_entries":0,"category_breakdown":{}}`, rr.Body.String())
}

func (s *HandlerSuite) TestStatistics_CachedUntilWrite() {
	s.create("alice-token", `{"amount":100,"category":"Cash"}`)

	s.do(http.MethodGet, "/zakat/statistics/summary", "alice-token", "")
	s.do(http.MethodGet, "/zakat/statistics/summary", "alice-token", "")
	s.Equal(1, s.store.lists)

	s.create("alice-token", `{"amount":100,"category":"Cash"}`)
	rr := s.do(http.MethodGet, "/zakat/statistics/summary", "alice-token", "")
	s.Equal(2, s.store.lists)

	var summary models.Summary
	s.Require().NoError(json.NewDecoder(rr.Body).Decode(&summary))
	s.Equal(2, summary.TotalEntries)
}

func (s *HandlerSuite) TestStoreFailureIsInternal() {
	s.store.listErr = errors.New("mongo: server selection timeout")

	rr := s.do(http.MethodGet, "/zakat", "alice-token", "")
	s.Equal(http.StatusInternalServerError, rr.Code)
	s.NotContains(rr.Body.String(), "mongo")
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func TestHandler_WithoutCache(t *testing.T) {
	store := newFakeEntryStore()
	users := fakeUsers{"alice@example.com": {ID: "alice-id"}}
	h := NewHandler(users, store, slog.New(slog.NewTextHandler(io.Discard, nil)))

	req := httptest.NewRequest(http.MethodGet, "/zakat/statistics/summary", nil)
	req = req.WithContext(middleware.WithEmail(req.Context(), "alice@example.com"))
	rr := httptest.NewRecorder()
	h.Statistics(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 1, store.lists)
}
