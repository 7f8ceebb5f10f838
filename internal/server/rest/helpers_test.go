package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/notekeeper/internal/dbx"
	"github.com/dmitrijs2005/notekeeper/internal/logging"
	"github.com/dmitrijs2005/notekeeper/internal/server/config"
	"github.com/dmitrijs2005/notekeeper/internal/server/csrf"
	"github.com/dmitrijs2005/notekeeper/internal/server/kvstore"
	"github.com/dmitrijs2005/notekeeper/internal/server/ratelimit"
	"github.com/dmitrijs2005/notekeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/notekeeper/internal/server/services"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type testAPI struct {
	t       *testing.T
	handler http.Handler
	clock   *fakeClock
	tokens  *csrf.Registry
}

type apiOption func(*config.Config, *Deps)

func withServerSideRoles(cfg *config.Config, d *Deps) { d.ServerSideRoles = true }

func newTestAPI(t *testing.T, opts ...apiOption) *testAPI {
	t.Helper()
	ctx := context.Background()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := repomanager.Open(ctx, dbx.SQLite, "file:rest_"+name+"?mode=memory&cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	rm := repomanager.NewSQLRepositoryManager(dbx.SQLite)
	require.NoError(t, rm.RunMigrations(ctx, db))

	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.BcryptCost = bcrypt.MinCost

	clk := &fakeClock{t: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}
	tokens := csrf.NewRegistry(kvstore.NewMemory(clk.Now), time.Hour, clk.Now)
	limiter := ratelimit.New(kvstore.NewMemory(clk.Now), ratelimit.DefaultRules(), clk.Now)

	d := Deps{
		Users:          services.NewUserService(db, rm, tokens, cfg, logging.Nop{}).WithClock(clk.Now),
		Notes:          services.NewNoteService(db, rm, logging.Nop{}),
		Tokens:         tokens,
		Limiter:        limiter,
		Logger:         logging.Nop{},
		AllowedOrigins: []string{"*"},
	}
	for _, o := range opts {
		o(cfg, &d)
	}

	return &testAPI{t: t, handler: NewRouter(d), clock: clk, tokens: tokens}
}

// do sends a request and decodes a JSON object reply. Array replies are
// left in the recorder.
func (a *testAPI) do(method, path string, payload any, token string) (*httptest.ResponseRecorder, map[string]any) {
	a.t.Helper()

	var buf bytes.Buffer
	if payload != nil {
		require.NoError(a.t, json.NewEncoder(&buf).Encode(payload))
	}
	req := httptest.NewRequest(method, path, &buf)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("X-CSRF-Token", token)
	}

	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)

	out := map[string]any{}
	if strings.HasPrefix(strings.TrimSpace(rec.Body.String()), "{") {
		require.NoError(a.t, json.Unmarshal(rec.Body.Bytes(), &out))
	}
	return rec, out
}

func (a *testAPI) signup(username, email, password string) {
	a.t.Helper()
	_, out := a.do(http.MethodPost, "/api/signup", map[string]string{
		"username": username, "email": email, "password": password,
	}, "")
	require.Equal(a.t, true, out["success"], "signup %s: %v", username, out)
}

func (a *testAPI) login(email, password string) string {
	a.t.Helper()
	_, out := a.do(http.MethodPost, "/api/login", map[string]string{"email": email, "password": password}, "")
	require.Equal(a.t, true, out["success"], "login %s: %v", email, out)
	token, _ := out["csrfToken"].(string)
	require.NotEmpty(a.t, token)
	return token
}

func (a *testAPI) notes(path string, token string) []map[string]any {
	a.t.Helper()
	rec, _ := a.do(http.MethodGet, path, nil, token)
	require.Equal(a.t, http.StatusOK, rec.Code, rec.Body.String())
	var list []map[string]any
	require.NoError(a.t, json.Unmarshal(rec.Body.Bytes(), &list))
	return list
}
