// Package ratelimit implements fixed-window request counting per endpoint
// class and client address.
package ratelimit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dmitrijs2005/notekeeper/internal/server/kvstore"
	"github.com/dmitrijs2005/notekeeper/internal/timex"
)

type Class string

const (
	ClassLogin          Class = "login"
	ClassSignup         Class = "signup"
	ClassPasswordChange Class = "password-change"
)

const keyPrefix = "rl:"

// Rule allows Max requests per Window.
type Rule struct {
	Max    int
	Window time.Duration
}

// DefaultRules are the stock per-class limits.
func DefaultRules() map[Class]Rule {
	return map[Class]Rule{
		ClassLogin:          {Max: 5, Window: 15 * time.Minute},
		ClassSignup:         {Max: 3, Window: 60 * time.Minute},
		ClassPasswordChange: {Max: 5, Window: 60 * time.Minute},
	}
}

// Result reports the state of a key after Allow.
type Result struct {
	Allowed     bool
	Count       int
	Limit       int
	ResetAt     time.Time
	MinutesLeft int
}

// RetryAfter is the time left in the window as of now.
func (r Result) RetryAfter(now time.Time) time.Duration {
	if d := r.ResetAt.Sub(now); d > 0 {
		return d
	}
	return 0
}

type record struct {
	Count   int       `json:"count"`
	ResetAt time.Time `json:"reset_at"`
}

type Limiter struct {
	store kvstore.Store
	rules map[Class]Rule
	now   func() time.Time
}

// New builds a Limiter. Classes missing from rules are never limited.
func New(store kvstore.Store, rules map[Class]Rule, now func() time.Time) *Limiter {
	if now == nil {
		now = time.Now
	}
	return &Limiter{store: store, rules: rules, now: now}
}

func Key(class Class, client string) string {
	return keyPrefix + string(class) + ":" + client
}

// Allow counts one request for (class, client). The read, compare and
// increment happen in one store update.
func (l *Limiter) Allow(ctx context.Context, class Class, client string) (Result, error) {
	rule, ok := l.rules[class]
	if !ok || rule.Max <= 0 || rule.Window <= 0 {
		return Result{Allowed: true}, nil
	}

	now := l.now()
	var res Result

	err := l.store.Update(ctx, Key(class, client), func(cur []byte, found bool) ([]byte, time.Time, error) {
		var rec record
		if found {
			if err := json.Unmarshal(cur, &rec); err != nil {
				found = false
			}
		}
		if !found || !now.Before(rec.ResetAt) {
			rec = record{ResetAt: now.Add(rule.Window)}
		}

		res = Result{Count: rec.Count, Limit: rule.Max, ResetAt: rec.ResetAt}

		if rec.Count >= rule.Max {
			res.MinutesLeft = timex.CeilMinutes(rec.ResetAt.Sub(now))
			return nil, time.Time{}, kvstore.ErrAbortUpdate
		}

		rec.Count++
		res.Allowed = true
		res.Count = rec.Count

		b, err := json.Marshal(rec)
		if err != nil {
			return nil, time.Time{}, err
		}
		return b, rec.ResetAt, nil
	})
	if err != nil {
		return Result{}, fmt.Errorf("rate limit %s: %w", class, err)
	}

	return res, nil
}

// Sweep drops windows that have ended.
func (l *Limiter) Sweep(ctx context.Context) (int, error) {
	return l.store.Sweep(ctx, l.now())
}
