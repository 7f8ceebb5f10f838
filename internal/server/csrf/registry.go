// Package csrf issues and checks anti-forgery tokens. A token is bound to the
// email it was issued for and travels in the X-CSRF-Token header.
package csrf

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/notekeeper/internal/common"
	"github.com/dmitrijs2005/notekeeper/internal/server/kvstore"
)

const (
	DefaultTTL = time.Hour
	tokenBytes = 32
	keyPrefix  = "csrf:"

	// expired tokens are kept this long so they can be told apart from
	// unknown ones before the store drops them
	retention = 10 * time.Minute
)

var (
	ErrTokenMissing  = errors.New("CSRF token missing")
	ErrTokenInvalid  = errors.New("invalid CSRF token")
	ErrTokenExpired  = errors.New("CSRF token expired")
	ErrTokenMismatch = errors.New("CSRF token does not match user")
)

type entry struct {
	Identity  string    `json:"identity"`
	ExpiresAt time.Time `json:"expires_at"`
}

type Registry struct {
	store kvstore.Store
	ttl   time.Duration
	now   func() time.Time
	rand  func(int) (string, error)
}

func NewRegistry(store kvstore.Store, ttl time.Duration, now func() time.Time) *Registry {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if now == nil {
		now = time.Now
	}
	return &Registry{store: store, ttl: ttl, now: now, rand: common.MakeRandHexString}
}

// Issue creates a token bound to identity.
func (r *Registry) Issue(ctx context.Context, identity string) (string, error) {
	token, err := r.rand(tokenBytes)
	if err != nil {
		return "", fmt.Errorf("csrf token: %w", err)
	}

	e := entry{Identity: common.NormalizeEmail(identity), ExpiresAt: r.now().Add(r.ttl)}
	b, err := json.Marshal(e)
	if err != nil {
		return "", err
	}
	if err := r.store.Set(ctx, keyPrefix+token, b, e.ExpiresAt.Add(retention)); err != nil {
		return "", fmt.Errorf("csrf store: %w", err)
	}

	return token, nil
}

// Lookup returns the identity token is bound to. It reports
// ErrTokenMissing, ErrTokenInvalid or ErrTokenExpired; an expired token is
// deleted.
func (r *Registry) Lookup(ctx context.Context, token string) (string, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return "", ErrTokenMissing
	}

	b, ok, err := r.store.Get(ctx, keyPrefix+token)
	if err != nil {
		return "", fmt.Errorf("csrf store: %w", err)
	}
	if !ok {
		return "", ErrTokenInvalid
	}

	var e entry
	if err := json.Unmarshal(b, &e); err != nil {
		return "", ErrTokenInvalid
	}

	if !r.now().Before(e.ExpiresAt) {
		if _, err := r.store.Delete(ctx, keyPrefix+token); err != nil {
			return "", fmt.Errorf("csrf store: %w", err)
		}
		return "", ErrTokenExpired
	}

	return e.Identity, nil
}

// Validate checks token and, when claimed is not empty, that it was issued
// for claimed. Identities compare case-insensitively.
func (r *Registry) Validate(ctx context.Context, token, claimed string) error {
	identity, err := r.Lookup(ctx, token)
	if err != nil {
		return err
	}
	if !Matches(identity, claimed) {
		return ErrTokenMismatch
	}
	return nil
}

// Matches reports whether claimed is empty or names identity.
func Matches(identity, claimed string) bool {
	claimed = strings.TrimSpace(claimed)
	return claimed == "" || strings.EqualFold(claimed, identity)
}

// RevokeAll deletes every token bound to identity and reports how many.
func (r *Registry) RevokeAll(ctx context.Context, identity string) (int, error) {
	entries, err := r.store.Scan(ctx, keyPrefix)
	if err != nil {
		return 0, fmt.Errorf("csrf store: %w", err)
	}

	var keys []string
	for k, b := range entries {
		var e entry
		if err := json.Unmarshal(b, &e); err != nil {
			continue
		}
		if strings.EqualFold(e.Identity, identity) {
			keys = append(keys, k)
		}
	}

	n, err := r.store.Delete(ctx, keys...)
	if err != nil {
		return 0, fmt.Errorf("csrf store: %w", err)
	}
	return n, nil
}

// Sweep deletes tokens past their expiry, including those already past the
// retention window that Scan no longer reports.
func (r *Registry) Sweep(ctx context.Context) (int, error) {
	now := r.now()

	entries, err := r.store.Scan(ctx, keyPrefix)
	if err != nil {
		return 0, err
	}

	var keys []string
	for k, b := range entries {
		var e entry
		if err := json.Unmarshal(b, &e); err != nil || !now.Before(e.ExpiresAt) {
			keys = append(keys, k)
		}
	}

	n, err := r.store.Delete(ctx, keys...)
	if err != nil {
		return 0, err
	}

	dropped, err := r.store.Sweep(ctx, now)
	if err != nil {
		return n, err
	}
	return n + dropped, nil
}
