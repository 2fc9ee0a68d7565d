package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"perfume-store/internal/auth"
	"perfume-store/internal/idempotency"
	"perfume-store/internal/logger"
	"perfume-store/internal/metrics"
	"perfume-store/internal/models"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func issueToken(t *testing.T, issuer *auth.Issuer, role models.Role) (string, primitive.ObjectID) {
	t.Helper()
	id := primitive.NewObjectID()
	token, err := issuer.Issue(models.User{ID: id, Role: role, Email: "a@b.c"})
	require.NoError(t, err)
	return token, id
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	code, _ := body["error"].(string)
	return code
}

func guardedRouter(issuer *auth.Issuer, extra ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	handlers := append([]gin.HandlerFunc{AuthGuard(issuer, logger.Nop())}, extra...)
	handlers = append(handlers, func(c *gin.Context) {
		id, ok := Identity(c)
		fromCtx, ctxOK := auth.IdentityFrom(c.Request.Context())
		if !ok || !ctxOK || fromCtx != id {
			c.Status(http.StatusTeapot)
			return
		}
		c.String(http.StatusOK, id.UserID.Hex())
	})
	r.GET("/me", handlers...)
	return r
}

func TestAuthGuardTokenSources(t *testing.T) {
	issuer := auth.NewIssuer("secret", time.Minute)
	token, userID := issueToken(t, issuer, models.RoleUser)
	r := guardedRouter(issuer)

	cases := map[string]func(*http.Request){
		"bearer": func(req *http.Request) { req.Header.Set("Authorization", "Bearer "+token) },
		"cookie": func(req *http.Request) { req.AddCookie(&http.Cookie{Name: TokenCookie, Value: token}) },
		"query":  func(req *http.Request) { req.URL.RawQuery = "token=" + token },
	}
	for name, attach := range cases {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			attach(req)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, userID.Hex(), w.Body.String())
		})
	}
}

func TestAuthGuardRejects(t *testing.T) {
	issuer := auth.NewIssuer("secret", time.Minute)
	foreign, _ := issueToken(t, auth.NewIssuer("other", time.Minute), models.RoleUser)
	r := guardedRouter(issuer)

	for name, header := range map[string]string{
		"missing":   "",
		"malformed": "Token abc",
		"forged":    "Bearer " + foreign,
	} {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if header != "" {
				req.Header.Set("Authorization", header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.Equal(t, "UNAUTHORIZED", errorCode(t, w))
		})
	}
}

func TestRequireAdmin(t *testing.T) {
	issuer := auth.NewIssuer("secret", time.Minute)
	r := guardedRouter(issuer, RequireAdmin(logger.Nop()))

	userToken, _ := issueToken(t, issuer, models.RoleUser)
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+userToken)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "FORBIDDEN", errorCode(t, w))

	adminToken, _ := issueToken(t, issuer, models.RoleAdmin)
	req = httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+adminToken)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRequestIDEchoesOrGenerates(t *testing.T) {
	r := gin.New()
	r.Use(RequestID(logger.Nop()), AccessLog(logger.Nop()))
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(requestIDHeader, "abc-123")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "abc-123", w.Header().Get(requestIDHeader))

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.Len(t, w.Header().Get(requestIDHeader), 36)
}

func TestRecovererReturnsInternalError(t *testing.T) {
	r := gin.New()
	r.Use(Recoverer(logger.Nop()))
	r.GET("/boom", func(c *gin.Context) { panic("kaboom") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "INTERNAL_ERROR", errorCode(t, w))
}

func TestTimeoutSetsDeadline(t *testing.T) {
	r := gin.New()
	r.Use(Timeout(time.Second))
	r.GET("/t", func(c *gin.Context) {
		_, ok := c.Request.Context().Deadline()
		c.JSON(http.StatusOK, gin.H{"deadline": ok})
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/t", nil))
	assert.JSONEq(t, `{"deadline":true}`, w.Body.String())
}

func TestMetricsUsesRoutePattern(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	r := gin.New()
	r.Use(Metrics(m))
	r.GET("/orders/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/orders/1", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/orders/2", nil))

	count, err := testutil.GatherAndCount(reg, "perfume_store_http_requests_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

type fakeIdempotencyStore struct {
	data map[string]string
	ttls map[string]time.Duration
}

func newFakeIdempotencyStore() *fakeIdempotencyStore {
	return &fakeIdempotencyStore{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (f *fakeIdempotencyStore) Get(_ context.Context, key string) (string, error) {
	if v, ok := f.data[key]; ok {
		return v, nil
	}
	return "", idempotency.ErrMiss
}

func (f *fakeIdempotencyStore) SetNX(_ context.Context, key, value string, ttl time.Duration) (bool, error) {
	if _, ok := f.data[key]; ok {
		return false, nil
	}
	f.data[key] = value
	f.ttls[key] = ttl
	return true, nil
}

func (f *fakeIdempotencyStore) Set(_ context.Context, key, value string, ttl time.Duration) error {
	f.data[key] = value
	f.ttls[key] = ttl
	return nil
}

func (f *fakeIdempotencyStore) Del(_ context.Context, key string) error {
	delete(f.data, key)
	return nil
}

var testIdempotencyConfig = IdempotencyConfig{TTL: time.Hour, PendingTTL: 20 * time.Second}

func idempotentRouter(store idempotency.Store, status int, calls *int32) *gin.Engine {
	r := gin.New()
	r.POST("/orders", Idempotency(store, testIdempotencyConfig, logger.Nop()), func(c *gin.Context) {
		n := atomic.AddInt32(calls, 1)
		c.JSON(status, gin.H{"call": n})
	})
	return r
}

func post(r *gin.Engine, key, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/orders", strings.NewReader(body))
	if key != "" {
		req.Header.Set(idempotencyHeader, key)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestIdempotencyReplaysFirstResponse(t *testing.T) {
	var calls int32
	r := idempotentRouter(newFakeIdempotencyStore(), http.StatusCreated, &calls)

	first := post(r, "k1", `{"a":1}`)
	second := post(r, "k1", `{"a":1}`)

	assert.Equal(t, http.StatusCreated, first.Code)
	assert.Equal(t, http.StatusCreated, second.Code)
	assert.JSONEq(t, first.Body.String(), second.Body.String())
	assert.Equal(t, "true", second.Header().Get(replayedHeader))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestIdempotencyRejectsDifferentBody(t *testing.T) {
	var calls int32
	r := idempotentRouter(newFakeIdempotencyStore(), http.StatusCreated, &calls)

	post(r, "k1", `{"a":1}`)
	w := post(r, "k1", `{"a":2}`)

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "CONFLICT", errorCode(t, w))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestIdempotencyPendingKeyConflicts(t *testing.T) {
	store := newFakeIdempotencyStore()
	var calls int32
	r := idempotentRouter(store, http.StatusCreated, &calls)

	pending, err := idempotency.Record{Pending: true, RequestHash: idempotency.HashRequest([]byte(`{}`))}.Encode()
	require.NoError(t, err)
	store.data[idempotency.Key("anonymous", http.MethodPost, "/orders", "busy")] = pending

	w := post(r, "busy", `{}`)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Zero(t, atomic.LoadInt32(&calls))
}

func TestIdempotencyForgetsServerErrors(t *testing.T) {
	store := newFakeIdempotencyStore()
	var calls int32
	r := idempotentRouter(store, http.StatusServiceUnavailable, &calls)

	post(r, "k1", `{}`)
	post(r, "k1", `{}`)

	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
	assert.Empty(t, store.data)
}

func TestIdempotencyKeepsInternalErrors(t *testing.T) {
	store := newFakeIdempotencyStore()
	var calls int32
	r := idempotentRouter(store, http.StatusInternalServerError, &calls)

	first := post(r, "k1", `{}`)
	second := post(r, "k1", `{}`)

	assert.Equal(t, http.StatusInternalServerError, first.Code)
	assert.Equal(t, http.StatusInternalServerError, second.Code)
	assert.Equal(t, "true", second.Header().Get(replayedHeader))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestIdempotencyPendingMarkerUsesShortTTL(t *testing.T) {
	store := newFakeIdempotencyStore()
	key := idempotency.Key("anonymous", http.MethodPost, "/orders", "k1")

	var seen time.Duration
	r := gin.New()
	r.POST("/orders", Idempotency(store, testIdempotencyConfig, logger.Nop()), func(c *gin.Context) {
		seen = store.ttls[key]
		c.JSON(http.StatusCreated, gin.H{})
	})
	post(r, "k1", `{}`)

	assert.Equal(t, 20*time.Second, seen)
	assert.Equal(t, time.Hour, store.ttls[key])
}

func TestIdempotencyPendingTTLDefaultsAndCaps(t *testing.T) {
	assert.Equal(t, defaultPendingTTL, IdempotencyConfig{TTL: time.Hour}.pendingTTL())
	assert.Equal(t, time.Second, IdempotencyConfig{TTL: time.Second, PendingTTL: time.Minute}.pendingTTL())
}

func TestIdempotencyForgetsKeyAfterPanic(t *testing.T) {
	store := newFakeIdempotencyStore()
	var calls int32
	r := gin.New()
	r.Use(Recoverer(logger.Nop()))
	r.POST("/orders", Idempotency(store, testIdempotencyConfig, logger.Nop()), func(c *gin.Context) {
		if atomic.AddInt32(&calls, 1) == 1 {
			panic("boom")
		}
		c.JSON(http.StatusCreated, gin.H{"ok": true})
	})

	first := post(r, "k1", `{}`)
	assert.Equal(t, http.StatusInternalServerError, first.Code)
	assert.Empty(t, store.data)

	second := post(r, "k1", `{}`)
	assert.Equal(t, http.StatusCreated, second.Code)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestIdempotencyInertWithoutKeyOrStore(t *testing.T) {
	var calls int32
	r := idempotentRouter(newFakeIdempotencyStore(), http.StatusCreated, &calls)
	post(r, "", `{}`)
	post(r, "", `{}`)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))

	calls = 0
	r = idempotentRouter(nil, http.StatusCreated, &calls)
	post(r, "k", `{}`)
	post(r, "k", `{}`)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}
