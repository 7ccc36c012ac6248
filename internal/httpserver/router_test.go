package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"commerce-basket/internal/auth"
	"commerce-basket/internal/catalog"
	"commerce-basket/internal/domain"
	"commerce-basket/internal/logger"
	"commerce-basket/internal/registry"
	basketrepo "commerce-basket/internal/repository/basket"
	basketsvc "commerce-basket/internal/service/basket"
	"commerce-basket/internal/service/session"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(t *testing.T, verifier TokenVerifier) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	cat := catalog.NewMemory("price")
	cat.Put(domain.TargetRef{Type: domain.ProductType, ID: "p1"}, map[string]any{"price": "1.00"})
	cat.Put(domain.TargetRef{Type: domain.ProductType, ID: "p2"}, map[string]any{"price": "2.50"})

	svc, err := basketsvc.New(basketrepo.NewMemory(), basketsvc.Config{
		Options: registry.DefaultOptions(),
		Prices:  cat,
	}, nil)
	require.NoError(t, err)

	router, err := buildRouter(logger.Nop(), nil, Deps{
		Baskets:  svc,
		Sessions: session.NewMemory(time.Hour),
		Verifier: verifier,
	})
	require.NoError(t, err)
	return router
}

func do(router *gin.Engine, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeBasket(t *testing.T, rec *httptest.ResponseRecorder) basketResponse {
	t.Helper()
	var resp basketResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	return resp
}

func TestBasketIssuesSessionWhenMissing(t *testing.T) {
	router := newTestRouter(t, nil)

	rec := do(router, http.MethodGet, "/basket", "", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	key := rec.Header().Get(sessionHeader)
	require.NotEmpty(t, key)

	resp := decodeBasket(t, rec)
	assert.Equal(t, key, resp.SessionKey)
	assert.Equal(t, "0.00", resp.TotalPrice)
	assert.Empty(t, resp.Items)

	again := do(router, http.MethodGet, "/basket", "", map[string]string{sessionHeader: key})
	require.Equal(t, http.StatusOK, again.Code)
	assert.Equal(t, key, again.Header().Get(sessionHeader))
	assert.Equal(t, resp.ID, decodeBasket(t, again).ID)
}

func TestBasketReplacesUnknownSessionKey(t *testing.T) {
	router := newTestRouter(t, nil)
	rec := do(router, http.MethodGet, "/basket", "", map[string]string{sessionHeader: "forged"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEqual(t, "forged", rec.Header().Get(sessionHeader))
}

func TestBasketItemLifecycle(t *testing.T) {
	router := newTestRouter(t, nil)
	key := do(router, http.MethodPost, "/sessions", "", nil).Header().Get(sessionHeader)
	require.NotEmpty(t, key)
	headers := map[string]string{sessionHeader: key}

	rec := do(router, http.MethodPost, "/basket/items", `{"targets":[{"type":"product","id":"p1"},{"id":"p2"}]}`, headers)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decodeBasket(t, rec)
	assert.Equal(t, "3.50", resp.TotalPrice)
	require.Len(t, resp.Items, 2)
	assert.Equal(t, "p1", resp.Items[0].TargetID)
	assert.Equal(t, "reference", resp.Items[0].Kind)

	rec = do(router, http.MethodGet, "/basket/amount", "", headers)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"basketId":"`+resp.ID+`","amount":2}`, rec.Body.String())

	rec = do(router, http.MethodPost, "/basket/items/remove", `{"itemIds":["`+resp.Items[0].ID+`"]}`, headers)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "2.50", decodeBasket(t, rec).TotalPrice)

	rec = do(router, http.MethodPost, "/basket/clean", "", headers)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	cleaned := decodeBasket(t, rec)
	assert.Equal(t, "0.00", cleaned.TotalPrice)
	assert.Empty(t, cleaned.Items)
}

func TestBasketErrorStatuses(t *testing.T) {
	router := newTestRouter(t, nil)

	cases := []struct {
		name   string
		path   string
		body   string
		status int
		code   string
	}{
		{name: "unknown target", path: "/basket/items", body: `{"targets":[{"id":"missing"}]}`, status: http.StatusNotFound, code: "not_found"},
		{name: "malformed json", path: "/basket/items", body: `{"targets":`, status: http.StatusBadRequest, code: "invalid_input"},
		{name: "no item factory", path: "/basket/items/create", body: `{"items":[{"id":"p1","quantity":2}]}`, status: http.StatusInternalServerError, code: "misconfigured"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := do(router, http.MethodPost, tc.path, tc.body, nil)
			require.Equal(t, tc.status, rec.Code, rec.Body.String())
			var body map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tc.code, body["error"])
		})
	}
}

func TestLoginFoldsAnonymousBasket(t *testing.T) {
	verifier, err := auth.NewHS256("test-secret")
	require.NoError(t, err)
	router := newTestRouter(t, verifier)

	key := do(router, http.MethodGet, "/basket", "", nil).Header().Get(sessionHeader)
	rec := do(router, http.MethodPost, "/basket/items", `{"targets":[{"id":"p2"}]}`, map[string]string{sessionHeader: key})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = do(router, http.MethodPost, "/sessions/rotate", "", map[string]string{sessionHeader: key})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var rot map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rot))
	assert.Equal(t, key, rot["previousKey"])
	assert.Equal(t, true, rot["pendingMerge"])
	newKey := rec.Header().Get(sessionHeader)
	require.NotEqual(t, key, newKey)

	token, err := verifier.Sign("user-7", time.Hour)
	require.NoError(t, err)
	rec = do(router, http.MethodGet, "/basket", "", map[string]string{
		sessionHeader:   newKey,
		"Authorization": "Bearer " + token,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decodeBasket(t, rec)
	assert.True(t, resp.Merged)
	assert.Equal(t, "user-7", resp.OwnerID)
	assert.Equal(t, "2.50", resp.TotalPrice)
	require.Len(t, resp.Items, 1)
}

func TestRotateRequiresKnownSession(t *testing.T) {
	router := newTestRouter(t, nil)
	assert.Equal(t, http.StatusBadRequest, do(router, http.MethodPost, "/sessions/rotate", "", nil).Code)
	assert.Equal(t, http.StatusNotFound, do(router, http.MethodPost, "/sessions/rotate", "", map[string]string{sessionHeader: "nope"}).Code)
}

func TestPrincipalMiddlewareRejectsBadTokens(t *testing.T) {
	verifier, err := auth.NewHS256("test-secret")
	require.NoError(t, err)
	router := newTestRouter(t, verifier)

	for _, header := range []string{"Bearer not-a-token", "Basic dXNlcjpwYXNz"} {
		rec := do(router, http.MethodGet, "/basket", "", map[string]string{"Authorization": header})
		assert.Equal(t, http.StatusUnauthorized, rec.Code, header)
	}
}

type stubBasketService struct {
	err error
}

func (s *stubBasketService) ResolveForSession(_ context.Context, _ basketsvc.SessionMarkers, key string, _ *domain.Principal) (*domain.Basket, bool, error) {
	if s.err != nil {
		return nil, false, s.err
	}
	return &domain.Basket{ID: "b1", SessionKey: &key}, false, nil
}

func (s *stubBasketService) NoteRotation(context.Context, basketsvc.SessionMarkers, string, string) (bool, error) {
	return false, s.err
}

func (s *stubBasketService) AddItems(context.Context, *domain.Basket, []domain.TargetRef) ([]domain.Item, error) {
	return nil, s.err
}

func (s *stubBasketService) CreateItems(context.Context, *domain.Basket, []domain.ItemSpec) ([]domain.Item, error) {
	return nil, s.err
}

func (s *stubBasketService) RemoveItems(context.Context, *domain.Basket, []string) error {
	return s.err
}

func (s *stubBasketService) EmptyBasket(context.Context, *domain.Basket) error {
	return s.err
}

func (s *stubBasketService) ItemCount(context.Context, *domain.Basket) (int, error) {
	return 0, s.err
}

func TestWriteErrorMapping(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cases := map[string]struct {
		err    error
		status int
	}{
		"storage":        {err: &domain.StorageError{Op: "find_matching", Err: errors.New("conn refused")}, status: http.StatusServiceUnavailable},
		"configuration":  {err: domain.ErrConfiguration, status: http.StatusInternalServerError},
		"not found":      {err: domain.ErrNotFound, status: http.StatusNotFound},
		"invalid input":  {err: domain.ErrInvalidInput, status: http.StatusBadRequest},
		"unknown":        {err: errors.New("boom"), status: http.StatusInternalServerError},
		"wrapped config": {err: errors.Join(errors.New("resolve"), domain.ErrNotImplemented), status: http.StatusInternalServerError},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			router, err := buildRouter(logger.Nop(), nil, Deps{
				Baskets:  &stubBasketService{err: tc.err},
				Sessions: session.NewMemory(time.Hour),
			})
			require.NoError(t, err)
			rec := do(router, http.MethodGet, "/basket", "", nil)
			assert.Equal(t, tc.status, rec.Code, rec.Body.String())
		})
	}
}

func TestBuildRouterRequiresDeps(t *testing.T) {
	_, err := buildRouter(logger.Nop(), nil, Deps{Sessions: session.NewMemory(time.Hour)})
	assert.Error(t, err)
	_, err = buildRouter(logger.Nop(), nil, Deps{Baskets: &stubBasketService{}})
	assert.Error(t, err)
}

type stubPinger struct{ err error }

func (p stubPinger) Ping(context.Context) error { return p.err }

func TestReadyHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	for _, tc := range []struct {
		db     Pinger
		status int
	}{
		{db: nil, status: http.StatusOK},
		{db: stubPinger{}, status: http.StatusOK},
		{db: stubPinger{err: errors.New("down")}, status: http.StatusServiceUnavailable},
	} {
		router, err := buildRouter(logger.Nop(), tc.db, Deps{
			Baskets:  &stubBasketService{},
			Sessions: session.NewMemory(time.Hour),
		})
		require.NoError(t, err)
		assert.Equal(t, tc.status, do(router, http.MethodGet, "/readyz", "", nil).Code)
	}
	router, err := buildRouter(logger.Nop(), nil, Deps{Baskets: &stubBasketService{}, Sessions: session.NewMemory(time.Hour)})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, do(router, http.MethodGet, "/healthz", "", nil).Code)
}
