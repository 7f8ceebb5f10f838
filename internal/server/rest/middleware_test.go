package rest

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dmitrijs2005/notekeeper/internal/common"
	"github.com/dmitrijs2005/notekeeper/internal/logging"
	"github.com/dmitrijs2005/notekeeper/internal/server/auth"
	"github.com/dmitrijs2005/notekeeper/internal/server/kvstore"
	"github.com/dmitrijs2005/notekeeper/internal/server/ratelimit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadParams_BodyWinsOverQuery(t *testing.T) {
	var got params
	h := readParams(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = paramsFrom(r.Context())
		var v struct{ Title string }
		require.NoError(t, decodeBody(r, &v))
		assert.Equal(t, "hello", v.Title)
	}))

	req := httptest.NewRequest(http.MethodPost, "/x?role=admin&username=q&email=q@x.com",
		strings.NewReader(`{"role":"user","email":"b@x.com","title":"hello"}`))
	h.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, "user", got.Role)
	assert.Equal(t, "b@x.com", got.Email)
	assert.Equal(t, "q", got.Username)
}

func TestReadParams_RejectsBadJSON(t *testing.T) {
	h := readParams(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("handler must not run")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/x", strings.NewReader("{")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		check  func(t *testing.T, b body)
	}{
		{"validation", common.NewValidationError("bad"), http.StatusBadRequest, func(t *testing.T, b body) {
			assert.Equal(t, "bad", b.Error)
		}},
		{"locked", fmt.Errorf("wrap: %w", &auth.LockedError{MinutesLeft: 4}), http.StatusForbidden, func(t *testing.T, b body) {
			assert.True(t, b.AccountLocked)
			assert.Equal(t, 4, *b.MinutesLeft)
		}},
		{"session", common.ErrSessionExpired, http.StatusUnauthorized, func(t *testing.T, b body) {
			assert.True(t, b.SessionExpired)
		}},
		{"forbidden", common.ErrorForbidden, http.StatusForbidden, nil},
		{"not found", common.ErrorNotFound, http.StatusNotFound, func(t *testing.T, b body) {
			assert.Equal(t, msgNoteNotFound, b.Error)
		}},
		{"internal", errors.New("disk on fire"), http.StatusInternalServerError, func(t *testing.T, b body) {
			assert.Equal(t, msgServerError, b.Error)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, b := classify(tt.err)
			assert.Equal(t, tt.status, status)
			if tt.check != nil {
				tt.check(t, b)
			}
		})
	}
}

type failingStore struct{ kvstore.Store }

func (failingStore) Update(context.Context, string, kvstore.UpdateFunc) error {
	return errors.New("store down")
}

func TestRateLimit_FailsOpen(t *testing.T) {
	l := ratelimit.New(failingStore{}, ratelimit.DefaultRules(), nil)
	called := false
	h := RateLimit(l, ratelimit.ClassLogin, logging.Nop{})(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		called = true
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/login", nil))
	assert.True(t, called)
}

func TestClientIP(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "10.1.2.3:5555"
	assert.Equal(t, "10.1.2.3", clientIP(r))

	r.RemoteAddr = "pipe"
	assert.Equal(t, "pipe", clientIP(r))
}
