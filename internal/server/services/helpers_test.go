package services

import (
	"context"
	"database/sql"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/notekeeper/internal/dbx"
	"github.com/dmitrijs2005/notekeeper/internal/logging"
	"github.com/dmitrijs2005/notekeeper/internal/server/config"
	"github.com/dmitrijs2005/notekeeper/internal/server/csrf"
	"github.com/dmitrijs2005/notekeeper/internal/server/kvstore"
	"github.com/dmitrijs2005/notekeeper/internal/server/repositories/repomanager"
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

type testEnv struct {
	db     *sql.DB
	rm     repomanager.RepositoryManager
	clock  *fakeClock
	store  *kvstore.Memory
	tokens *csrf.Registry
	users  *UserService
	notes  *NoteService
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.BcryptCost = bcrypt.MinCost
	return cfg
}

func newEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := repomanager.Open(ctx, dbx.SQLite, "file:"+name+"?mode=memory&cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	rm := repomanager.NewSQLRepositoryManager(dbx.SQLite)
	require.NoError(t, rm.RunMigrations(ctx, db))

	clk := &fakeClock{t: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}
	store := kvstore.NewMemory(clk.Now)
	tokens := csrf.NewRegistry(store, time.Hour, clk.Now)

	us := NewUserService(db, rm, tokens, testConfig(), logging.Nop{})
	us.now = clk.Now
	ns := NewNoteService(db, rm, logging.Nop{})
	ns.now = clk.Now

	return &testEnv{db: db, rm: rm, clock: clk, store: store, tokens: tokens, users: us, notes: ns}
}

func (e *testEnv) tokenCount(t *testing.T) int {
	t.Helper()
	m, err := e.store.Scan(context.Background(), "csrf:")
	require.NoError(t, err)
	return len(m)
}
