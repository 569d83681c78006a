package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/knoguchi/prodsearch/internal/auth"
	"github.com/knoguchi/prodsearch/internal/llm"
	"github.com/knoguchi/prodsearch/internal/memory"
	"github.com/knoguchi/prodsearch/internal/repository"
	"github.com/knoguchi/prodsearch/internal/retrieval"
	"github.com/knoguchi/prodsearch/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubIndex struct {
	candidates []retrieval.Candidate
	err        error
}

func (s *stubIndex) Query(context.Context, string, int) ([]retrieval.Candidate, error) {
	return s.candidates, s.err
}

type stubReadiness struct{ err error }

func (s stubReadiness) Ready(context.Context) error { return s.err }

type stubItems map[string]repository.Item

func (s stubItems) GetByID(_ context.Context, id string) (*repository.Item, error) {
	item, ok := s[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &item, nil
}

type stubLLM struct {
	answer string
	err    error
}

func (s stubLLM) Generate(context.Context, string, llm.GenerateOptions) (string, error) {
	return s.answer, s.err
}

func f64(v float64) *float64 { return &v }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type testEnv struct {
	router  http.Handler
	index   *stubIndex
	history *memory.Store
	jwt     *auth.JWTManager
}

func newTestEnv(t *testing.T, model llm.LLM) *testEnv {
	t.Helper()

	items := stubItems{
		"A": {ProductID: "A", Name: "Alpha Serum", Brand: "Lumi", Category: "Skincare", Price: f64(300), Rating: f64(4.8)},
		"B": {ProductID: "B", Name: "Beta Lipstick", Brand: "Rouge", Category: "Makeup", Price: f64(900)},
	}
	index := &stubIndex{candidates: []retrieval.Candidate{
		{Item: items["A"], Similarity: 0.9},
		{Item: items["B"], Similarity: 0.6},
	}}

	history := memory.NewStore(50, time.Hour)
	t.Cleanup(history.Close)

	jwt := auth.NewJWTManager(auth.DefaultJWTConfig("test-secret"))
	catalog := service.NewCatalogService(items, history)
	logger := discardLogger()

	api := API{
		Search: service.NewSearchService(retrieval.NewRetriever(index), history, service.SearchConfig{
			MaxTopK: 50, CandidateWidth: 50, Timeout: time.Second, HistoryLimit: 50,
		}, service.WithLogger(logger)),
		Catalog:     catalog,
		Explain:     service.NewExplainService(catalog, model, "test-model"),
		Readiness:   stubReadiness{},
		Auth:        jwt,
		DefaultTopK: 5,
		AppName:     "prodsearch",
		AppVersion:  "test",
	}

	return &testEnv{
		router:  NewRouter(api, logger, nil),
		index:   index,
		history: history,
		jwt:     jwt,
	}
}

func (e *testEnv) do(t *testing.T, method, target, body string, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestSearchGET(t *testing.T) {
	env := newTestEnv(t, stubLLM{})

	rec := env.do(t, http.MethodGet, "/search?q=serum&k=1", "", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	resp := decode[service.SearchResponse](t, rec)
	assert.Equal(t, "serum", resp.Query)
	require.Equal(t, 1, resp.Count)
	assert.Equal(t, "A", resp.Results[0].ProductID)
	assert.Equal(t, 1, resp.Results[0].Rank)
}

func TestSearchGET_DefaultTopKAndCategory(t *testing.T) {
	env := newTestEnv(t, stubLLM{})

	resp := decode[service.SearchResponse](t, env.do(t, http.MethodGet, "/search?q=x", "", nil))
	assert.Equal(t, 2, resp.Count)

	resp = decode[service.SearchResponse](t, env.do(t, http.MethodGet, "/search?q=x&category=MAKEUP", "", nil))
	require.Equal(t, 1, resp.Count)
	assert.Equal(t, "B", resp.Results[0].ProductID)

	rec := env.do(t, http.MethodGet, "/search?q=x&category=Fragrance", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resp = decode[service.SearchResponse](t, rec)
	assert.Equal(t, 0, resp.Count)
	assert.Contains(t, rec.Body.String(), `"results":[]`)
}

func TestSearchGET_BadRequests(t *testing.T) {
	env := newTestEnv(t, stubLLM{})

	for _, target := range []string{
		"/search",
		"/search?q=x&k=0",
		"/search?q=x&k=51",
		"/search?q=x&k=ten",
		"/search?q=x&price_min=abc",
		"/search?q=x&price_min=10&price_max=5",
	} {
		t.Run(target, func(t *testing.T) {
			rec := env.do(t, http.MethodGet, target, "", nil)
			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
		})
	}
}

func TestSearch_RetrievalFailureIs503(t *testing.T) {
	env := newTestEnv(t, stubLLM{})
	env.index.err = fmt.Errorf("%w: connection refused", retrieval.ErrIndexUnavailable)

	rec := env.do(t, http.MethodGet, "/search?q=x", "", nil)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	body := decode[errorResponse](t, rec)
	assert.True(t, body.Retryable)
	assert.NotContains(t, body.Error, "connection refused")
}

func TestSearch_UnexpectedErrorIs500(t *testing.T) {
	env := newTestEnv(t, stubLLM{})
	env.index.err = errors.New("boom")

	rec := env.do(t, http.MethodGet, "/search?q=x", "", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestSearchPOST_ExplicitAffinity(t *testing.T) {
	env := newTestEnv(t, stubLLM{})

	// similarity gap A 1.0 vs B 0.0 survives any prior
	body := `{"query":"gift","top_k":2,"brand_aff":{"rouge":1},"cat_aff":{"makeup":1},"price_band":{"low":800,"high":1000}}`
	rec := env.do(t, http.MethodPost, "/search", body, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	resp := decode[service.SearchResponse](t, rec)
	require.Equal(t, 2, resp.Count)
	assert.Equal(t, "A", resp.Results[0].ProductID)
	assert.Equal(t, 0.25, resp.Results[1].Score)

	rec = env.do(t, http.MethodPost, "/search", `{"query":"gift","brand_aff":{"rouge":2}}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/search", `{"query":`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetItem(t *testing.T) {
	env := newTestEnv(t, stubLLM{})

	rec := env.do(t, http.MethodGet, "/items/A", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	item := decode[itemResponse](t, rec)
	assert.Equal(t, "Alpha Serum", item.Name)
	assert.Nil(t, item.ReviewsCount)

	rec = env.do(t, http.MethodGet, "/items/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestExplainItem(t *testing.T) {
	env := newTestEnv(t, stubLLM{answer: "Lightweight and well reviewed."})

	rec := env.do(t, http.MethodPost, "/items/A/explain", `{"query":"light serum"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	got := decode[service.Explanation](t, rec)
	assert.Equal(t, "Lightweight and well reviewed.", got.Explanation)
	assert.Equal(t, "light serum", got.Query)

	// body is optional
	rec = env.do(t, http.MethodPost, "/items/A/explain", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = env.do(t, http.MethodPost, "/items/nope/explain", `{}`, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestExplainItem_LLMFailureIs503(t *testing.T) {
	env := newTestEnv(t, stubLLM{err: errors.New("ollama down")})

	rec := env.do(t, http.MethodPost, "/items/A/explain", `{"query":"q"}`, nil)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.True(t, decode[errorResponse](t, rec).Retryable)
}

func TestInteractionsPersonalizeSearch(t *testing.T) {
	env := newTestEnv(t, stubLLM{})

	token, err := env.jwt.GenerateToken("shopper-7")
	require.NoError(t, err)
	authHeader := http.Header{"Authorization": {"Bearer " + token}}

	rec := env.do(t, http.MethodPost, "/interactions", `{"product_id":"B","event":"Purchase","user_id":"shopper-7"}`, authHeader)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[interactionResponse](t, rec)
	assert.Equal(t, "shopper-7", created.UserID)
	assert.Equal(t, "Rouge", created.Brand)
	assert.Equal(t, "purchase", created.Event)

	history, err := env.history.ListByUser(context.Background(), "shopper-7", 0)
	require.NoError(t, err)
	require.Len(t, history, 1)

	// B gains brand and category affinity for this shopper only
	personal := decode[service.SearchResponse](t, env.do(t, http.MethodGet, "/search?q=x", "", authHeader))
	anonymous := decode[service.SearchResponse](t, env.do(t, http.MethodGet, "/search?q=x", "", nil))
	assert.Equal(t, 0.2, personal.Results[1].Score)
	assert.Equal(t, 0.0, anonymous.Results[1].Score)
}

func TestInteractions_Rejects(t *testing.T) {
	env := newTestEnv(t, stubLLM{})

	token, err := env.jwt.GenerateToken("u1")
	require.NoError(t, err)
	authHeader := http.Header{"Authorization": {"Bearer " + token}}

	rec := env.do(t, http.MethodPost, "/interactions", `{"product_id":"A","event":"wishlist"}`, authHeader)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/interactions", `{"product_id":"zzz","event":"view"}`, authHeader)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodPost, "/interactions", `{"product_id":"A","event":"view"}`, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(t, http.MethodGet, "/search?q=x", "", http.Header{"Authorization": {"Bearer not-a-token"}})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestBodyUserIDRequiresMatchingToken(t *testing.T) {
	env := newTestEnv(t, stubLLM{})
	ctx := context.Background()

	// Seed real history for the shopper whose identity is being claimed
	victimToken, err := env.jwt.GenerateToken("victim")
	require.NoError(t, err)
	victim := http.Header{"Authorization": {"Bearer " + victimToken}}
	rec := env.do(t, http.MethodPost, "/interactions", `{"product_id":"B","event":"purchase"}`, victim)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = env.do(t, http.MethodPost, "/interactions", `{"user_id":"victim","product_id":"B","event":"purchase"}`, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(t, http.MethodPost, "/search", `{"query":"x","user_id":"victim"}`, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	otherToken, err := env.jwt.GenerateToken("intruder")
	require.NoError(t, err)
	intruder := http.Header{"Authorization": {"Bearer " + otherToken}}

	rec = env.do(t, http.MethodPost, "/interactions", `{"user_id":"victim","product_id":"B","event":"purchase"}`, intruder)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(t, http.MethodPost, "/search", `{"query":"x","user_id":"victim"}`, intruder)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	history, err := env.history.ListByUser(ctx, "victim", 0)
	require.NoError(t, err)
	assert.Len(t, history, 1)
	history, err = env.history.ListByUser(ctx, "intruder", 0)
	require.NoError(t, err)
	assert.Empty(t, history)

	// Anonymous search without a claimed user stays unpersonalized
	anonymous := decode[service.SearchResponse](t, env.do(t, http.MethodPost, "/search", `{"query":"x"}`, nil))
	require.Len(t, anonymous.Results, 2)
	assert.Equal(t, 0.0, anonymous.Results[1].Score)

	personal := decode[service.SearchResponse](t, env.do(t, http.MethodPost, "/search", `{"query":"x","user_id":"victim"}`, victim))
	require.Len(t, personal.Results, 2)
	assert.Equal(t, 0.2, personal.Results[1].Score)
}

func TestHealthAndReadiness(t *testing.T) {
	env := newTestEnv(t, stubLLM{})

	rec := env.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/readyz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	notReady := NewRouter(API{Readiness: stubReadiness{err: retrieval.ErrIndexUnavailable}}, nil, nil)
	rec = httptest.NewRecorder()
	notReady.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestCORSPreflight(t *testing.T) {
	env := newTestEnv(t, stubLLM{})

	rec := env.do(t, http.MethodOptions, "/search", "", http.Header{"Origin": {"http://shop.example"}})
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
