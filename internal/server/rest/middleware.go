package rest

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/notekeeper/internal/common"
	"github.com/dmitrijs2005/notekeeper/internal/logging"
	"github.com/dmitrijs2005/notekeeper/internal/server/auth"
	"github.com/dmitrijs2005/notekeeper/internal/server/csrf"
	"github.com/dmitrijs2005/notekeeper/internal/server/metrics"
	"github.com/dmitrijs2005/notekeeper/internal/server/models"
	"github.com/dmitrijs2005/notekeeper/internal/server/ratelimit"
	"github.com/dmitrijs2005/notekeeper/internal/server/tracing"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const TraceIDHeader = "X-Trace-ID"

type requestIDKey struct{}

// RequestIDFromContext returns the ID assigned by RequestID.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// RequestID reuses an incoming X-Request-ID or mints one and echoes it back.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(common.RequestIDHeader)
		if id == "" {
			id = uuid.New().String()
		}
		w.Header().Set(common.RequestIDHeader, id)
		ctx := context.WithValue(r.Context(), requestIDKey{}, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Tracing starts a server span per request and exposes its trace ID.
func Tracing(next http.Handler) http.Handler {
	return otelhttp.NewHandler(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if id := tracing.TraceIDFromContext(r.Context()); id != "" {
				w.Header().Set(TraceIDHeader, id)
			}
			next.ServeHTTP(w, r)
		}),
		"http.request",
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}),
	)
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

// routeHolder lets the router report the matched template back to the
// logging middleware, which runs outside of it.
type routeHolder struct {
	template string
}

type routeKey struct{}

func captureRoute(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h, ok := r.Context().Value(routeKey{}).(*routeHolder); ok {
			if route := mux.CurrentRoute(r); route != nil {
				if tpl, err := route.GetPathTemplate(); err == nil {
					h.template = tpl
				}
			}
		}
		next.ServeHTTP(w, r)
	})
}

// StructuredLog writes one log line per request and records the HTTP
// metrics. The path label is the route template to keep cardinality low.
func StructuredLog(logger logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			holder := &routeHolder{}
			r = r.WithContext(context.WithValue(r.Context(), routeKey{}, holder))

			rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rw, r)
			duration := time.Since(start)

			args := []any{
				"request_id", RequestIDFromContext(r.Context()),
				"method", r.Method,
				"path", r.URL.Path,
				"status", rw.status,
				"duration_ms", duration.Milliseconds(),
			}
			if rw.status >= http.StatusInternalServerError {
				logger.Error(r.Context(), "http request", args...)
			} else {
				logger.Info(r.Context(), "http request", args...)
			}

			pathLabel := holder.template
			if pathLabel == "" {
				pathLabel = "unmatched"
			}
			metrics.HTTPRequestTotal.WithLabelValues(r.Method, pathLabel, strconv.Itoa(rw.status)).Inc()
			metrics.HTTPRequestDurationSeconds.WithLabelValues(r.Method, pathLabel).Observe(duration.Seconds())
		})
	}
}

// CORS allows the configured origins to call the API with the anti-forgery
// header.
func CORS(origins []string) func(http.Handler) http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", common.CSRFHeaderName, common.RequestIDHeader},
		ExposedHeaders: []string{common.RequestIDHeader, "Retry-After"},
	})
	return c.Handler
}

var rateLimitMessages = map[ratelimit.Class]string{
	ratelimit.ClassLogin:          "Too many login attempts",
	ratelimit.ClassSignup:         "Too many signup attempts",
	ratelimit.ClassPasswordChange: "Too many password change attempts",
}

// RateLimit rejects a client that used up the budget of class. Limiter
// failures let the request through.
func RateLimit(l *ratelimit.Limiter, class ratelimit.Class, logger logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			res, err := l.Allow(r.Context(), class, clientIP(r))
			if err != nil {
				logger.Warn(r.Context(), "rate limiter unavailable", "class", class, "error", err)
				next.ServeHTTP(w, r)
				return
			}
			if !res.Allowed {
				metrics.RateLimitedTotal.WithLabelValues(string(class)).Inc()
				w.Header().Set("Retry-After", strconv.Itoa(res.MinutesLeft*60))
				writeJSON(w, http.StatusTooManyRequests, body{
					Success:     boolPtr(false),
					Error:       fmt.Sprintf("%s. Please try again in %d minute(s).", rateLimitMessages[class], res.MinutesLeft),
					RateLimited: true,
					MinutesLeft: intPtr(res.MinutesLeft),
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

var csrfReasons = map[error]string{
	csrf.ErrTokenMissing:  "missing",
	csrf.ErrTokenInvalid:  "invalid",
	csrf.ErrTokenExpired:  "expired",
	csrf.ErrTokenMismatch: "mismatch",
}

type csrfIdentityKey struct{}

// csrfIdentityFrom returns the identity the request's token is bound to.
func csrfIdentityFrom(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(csrfIdentityKey{}).(string)
	return id, ok
}

// writeCSRFError answers 403 for a token rejection and reports whether err
// was one.
func writeCSRFError(w http.ResponseWriter, err error) bool {
	for sentinel, reason := range csrfReasons {
		if errors.Is(err, sentinel) {
			metrics.CSRFRejectionsTotal.WithLabelValues(reason).Inc()
			writeJSON(w, http.StatusForbidden, body{
				Success:   boolPtr(false),
				Error:     err.Error() + ". Please login again.",
				CSRFError: true,
			})
			return true
		}
	}
	return false
}

// RequireCSRF checks the X-CSRF-Token header against the registry. The
// claimed email, when the request has one, must match the token's binding.
// The bound identity is put into the context so RequireIdentity can check it
// against the resolved user. It expects readParams earlier in the chain.
func RequireCSRF(tokens *csrf.Registry, logger logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p := paramsFrom(r.Context())
			identity, err := tokens.Lookup(r.Context(), r.Header.Get(common.CSRFHeaderName))
			if err == nil && !csrf.Matches(identity, p.Email) {
				err = csrf.ErrTokenMismatch
			}
			if err == nil {
				next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), csrfIdentityKey{}, identity)))
				return
			}

			if writeCSRFError(w, err) {
				return
			}
			logger.Error(r.Context(), "csrf validation failed", "error", err)
			writeJSON(w, http.StatusInternalServerError, body{Error: msgServerError})
		})
	}
}

// Authenticator resolves a claimed identity to a stored user.
type Authenticator interface {
	Authenticate(ctx context.Context, claim auth.ClaimedIdentity) (*models.User, error)
}

// RequireIdentity resolves the request's username/email and puts the user
// into the context. Behind RequireCSRF the resolved user must be the one the
// token was issued to. It expects readParams earlier in the chain.
func RequireIdentity(users Authenticator, logger logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p := paramsFrom(r.Context())
			claim := auth.ClaimFromRequest(p.Username, p.Email)

			u, err := users.Authenticate(r.Context(), claim)
			if err != nil {
				writeServiceError(w, r, logger, err, false)
				return
			}
			if bound, ok := csrfIdentityFrom(r.Context()); ok && !strings.EqualFold(bound, u.Email) {
				logger.Warn(r.Context(), "csrf token used for another user", "claim", claim.String())
				writeCSRFError(w, csrf.ErrTokenMismatch)
				return
			}
			next.ServeHTTP(w, r.WithContext(auth.WithUser(r.Context(), u)))
		})
	}
}

// chain applies middleware so that the first one listed runs first.
func chain(h http.Handler, mws ...func(http.Handler) http.Handler) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}
