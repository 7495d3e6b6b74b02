package http

import (
	"bytes"
	"context"
	"encoding/json"
	nethttp "net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Lyamouni-et-Khaled/Rrsellbooster/internal/config"
	"github.com/Lyamouni-et-Khaled/Rrsellbooster/internal/domain"
	"github.com/Lyamouni-et-Khaled/Rrsellbooster/internal/ledger"
	"github.com/Lyamouni-et-Khaled/Rrsellbooster/internal/service"
	"github.com/Lyamouni-et-Khaled/Rrsellbooster/internal/service/servicetest"
	"github.com/Lyamouni-et-Khaled/Rrsellbooster/internal/store"
	"github.com/Lyamouni-et-Khaled/Rrsellbooster/internal/ws"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type apiEnv struct {
	t      *testing.T
	router *gin.Engine
	store  *store.Memory
	token  string
}

func newAPIEnv(t *testing.T, withTokens bool) *apiEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	rules := config.DefaultRules()
	rules.AdminUserIDs = []string{"admin"}
	catalog := &config.Catalog{
		Products: []config.Product{{ID: "netflix", Name: "Netflix", Price: 10, PurchaseCost: 5}},
	}
	mem := store.NewMemory()
	l, err := ledger.New(mem, ledger.Options{NodeID: 2})
	require.NoError(t, err)
	svc := service.New(service.Deps{
		Store:    mem,
		Ledger:   l,
		Rules:    &rules,
		Catalog:  catalog,
		Platform: servicetest.NewPlatform(),
	})

	cfg := &config.Config{Version: "test", APIRateLimit: 1000, APIRateWindow: time.Minute}
	env := &apiEnv{t: t, router: gin.New(), store: mem}
	d := Deps{Config: cfg, Rules: &rules, Services: svc, Store: mem, Feed: ws.NewHub()}
	if withTokens {
		tokens, err := service.NewStaffTokens("secret", time.Hour)
		require.NoError(t, err)
		env.token, _, err = tokens.Issue("admin")
		require.NoError(t, err)
		d.Tokens = tokens
	}
	RegisterRoutes(env.router, d)
	return env
}

func (e *apiEnv) do(method, path string, body any) *httptest.ResponseRecorder {
	e.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(e.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if e.token != "" {
		req.Header.Set("Authorization", "Bearer "+e.token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decodeBody[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v))
	return v
}

func (e *apiEnv) seed(users ...*domain.User) {
	e.t.Helper()
	err := e.store.RunTx(context.Background(), func(ctx context.Context, tx store.Tx) error {
		for _, u := range users {
			if err := tx.PutUser(ctx, u); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(e.t, err)
}

func TestHealthEndpoints(t *testing.T) {
	env := newAPIEnv(t, false)

	assert.Equal(t, nethttp.StatusOK, env.do(nethttp.MethodGet, "/healthz", nil).Code)

	w := env.do(nethttp.MethodGet, "/readyz", nil)
	require.Equal(t, nethttp.StatusOK, w.Code)
	body := decodeBody[map[string]any](t, w)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "test", body["version"])
	assert.Equal(t, "healthy", body["checks"].(map[string]any)["database"])

	assert.Equal(t, nethttp.StatusOK, env.do(nethttp.MethodGet, "/health", nil).Code)
	assert.Equal(t, nethttp.StatusOK, env.do(nethttp.MethodGet, "/metrics", nil).Code)
}

func TestLeaderboard(t *testing.T) {
	env := newAPIEnv(t, false)
	env.seed(
		&domain.User{ID: "a", DisplayName: "Alice", XP: 500},
		&domain.User{ID: "b", DisplayName: "Bob", XP: 900},
		&domain.User{ID: "c", XP: 0},
	)

	w := env.do(nethttp.MethodGet, "/api/v1/leaderboard?category=xp&limit=5", nil)
	require.Equal(t, nethttp.StatusOK, w.Code)
	body := decodeBody[struct {
		Category string `json:"category"`
		Entries  []struct {
			Rank   int             `json:"rank"`
			UserID string          `json:"user_id"`
			Value  decimal.Decimal `json:"value"`
		} `json:"entries"`
	}](t, w)
	assert.Equal(t, "xp", body.Category)
	require.Len(t, body.Entries, 2)
	assert.Equal(t, "b", body.Entries[0].UserID)
	assert.Equal(t, 1, body.Entries[0].Rank)
	assert.True(t, decimal.NewFromInt(900).Equal(body.Entries[0].Value))

	w = env.do(nethttp.MethodGet, "/api/v1/leaderboard?category=karma", nil)
	assert.Equal(t, nethttp.StatusBadRequest, w.Code)
}

func TestProfileHidesPrivateFields(t *testing.T) {
	env := newAPIEnv(t, false)
	env.seed(&domain.User{ID: "a", DisplayName: "Alice", XP: 200, Level: 2, StoreCredit: decimal.NewFromInt(40)})

	w := env.do(nethttp.MethodGet, "/api/v1/profile/a", nil)
	require.Equal(t, nethttp.StatusOK, w.Code)
	body := decodeBody[map[string]any](t, w)
	assert.Equal(t, "Alice", body["display_name"])
	assert.EqualValues(t, 2, body["level"])
	assert.NotContains(t, body, "store_credit")
	assert.NotContains(t, body, "transaction_log")
	assert.Equal(t, []any{}, body["achievements"])
}

func TestGuildNotFound(t *testing.T) {
	env := newAPIEnv(t, false)
	assert.Equal(t, nethttp.StatusNotFound, env.do(nethttp.MethodGet, "/api/v1/guilds/nope", nil).Code)
}

func TestLotteryAndEvents(t *testing.T) {
	env := newAPIEnv(t, false)

	w := env.do(nethttp.MethodGet, "/api/v1/lottery", nil)
	require.Equal(t, nethttp.StatusOK, w.Code)
	assert.EqualValues(t, 0, decodeBody[map[string]any](t, w)["tickets"])

	w = env.do(nethttp.MethodGet, "/api/v1/events", nil)
	require.Equal(t, nethttp.StatusOK, w.Code)
	assert.EqualValues(t, 1, decodeBody[map[string]any](t, w)["xp_multiplier"])
}

func TestAdminRoutesAbsentWithoutTokens(t *testing.T) {
	env := newAPIEnv(t, false)
	assert.Equal(t, nethttp.StatusNotFound, env.do(nethttp.MethodGet, "/api/v1/admin/audit", nil).Code)
}

func TestAdminRequiresToken(t *testing.T) {
	env := newAPIEnv(t, true)
	env.token = ""
	assert.Equal(t, nethttp.StatusUnauthorized, env.do(nethttp.MethodGet, "/api/v1/admin/audit", nil).Code)
}

func TestAdminGrantXPIsAudited(t *testing.T) {
	env := newAPIEnv(t, true)

	w := env.do(nethttp.MethodPost, "/api/v1/admin/xp", map[string]any{"user_id": "u1", "amount": 50, "reason": "concours"})
	require.Equal(t, nethttp.StatusOK, w.Code, w.Body.String())
	assert.EqualValues(t, 50, decodeBody[map[string]any](t, w)["granted"])

	u, err := env.store.User(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(50), u.XP)

	w = env.do(nethttp.MethodGet, "/api/v1/admin/audit", nil)
	require.Equal(t, nethttp.StatusOK, w.Code)
	body := decodeBody[struct {
		Entries []domain.AuditLog `json:"entries"`
	}](t, w)
	require.NotEmpty(t, body.Entries)
	assert.Equal(t, "admin", body.Entries[0].ActorID)
	assert.Equal(t, "u1", body.Entries[0].TargetID)

	w = env.do(nethttp.MethodPost, "/api/v1/admin/xp", map[string]any{"user_id": "u1", "amount": 0})
	assert.Equal(t, nethttp.StatusBadRequest, w.Code)
}

func TestAdminEventLifecycle(t *testing.T) {
	env := newAPIEnv(t, true)

	w := env.do(nethttp.MethodPost, "/api/v1/admin/events", map[string]string{"event": "double_xp", "duration": "2h"})
	require.Equal(t, nethttp.StatusCreated, w.Code, w.Body.String())

	w = env.do(nethttp.MethodPost, "/api/v1/admin/events", map[string]string{"event": "double_xp", "duration": "1h"})
	assert.Equal(t, nethttp.StatusConflict, w.Code)

	w = env.do(nethttp.MethodGet, "/api/v1/events", nil)
	assert.EqualValues(t, 2, decodeBody[map[string]any](t, w)["xp_multiplier"])

	assert.Equal(t, nethttp.StatusOK, env.do(nethttp.MethodDelete, "/api/v1/admin/events/double_xp", nil).Code)
	assert.Equal(t, nethttp.StatusConflict, env.do(nethttp.MethodDelete, "/api/v1/admin/events/double_xp", nil).Code)

	w = env.do(nethttp.MethodPost, "/api/v1/admin/events", map[string]string{"event": "inconnu", "duration": "1h"})
	assert.Equal(t, nethttp.StatusBadRequest, w.Code)
}

func TestAdminRecordPurchase(t *testing.T) {
	env := newAPIEnv(t, true)
	env.seed(&domain.User{ID: "buyer", StoreCredit: decimal.NewFromInt(2)})

	w := env.do(nethttp.MethodPost, "/api/v1/admin/purchases", map[string]string{
		"user_id": "buyer", "product_id": "netflix", "credit_used": "1,5",
	})
	require.Equal(t, nethttp.StatusCreated, w.Code, w.Body.String())

	u, err := env.store.User(context.Background(), "buyer")
	require.NoError(t, err)
	assert.Equal(t, int64(1), u.PurchaseCount)
	assert.True(t, decimal.RequireFromString("0.5").Equal(u.StoreCredit))

	w = env.do(nethttp.MethodPost, "/api/v1/admin/purchases", map[string]string{"user_id": "buyer", "product_id": "absent"})
	assert.Equal(t, nethttp.StatusBadRequest, w.Code)
}

func TestAdminCashoutUnknown(t *testing.T) {
	env := newAPIEnv(t, true)
	assert.Equal(t, nethttp.StatusNotFound, env.do(nethttp.MethodPost, "/api/v1/admin/cashouts/nope/approve", nil).Code)
}
