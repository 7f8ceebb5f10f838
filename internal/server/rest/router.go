// Package rest exposes NoteKeeper over HTTP/JSON.
package rest

import (
	"net/http"

	"github.com/dmitrijs2005/notekeeper/internal/logging"
	"github.com/dmitrijs2005/notekeeper/internal/server/csrf"
	"github.com/dmitrijs2005/notekeeper/internal/server/ratelimit"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Deps are the collaborators the router needs.
type Deps struct {
	Users           UserService
	Notes           NoteService
	Tokens          *csrf.Registry
	Limiter         *ratelimit.Limiter
	Logger          logging.Logger
	AllowedOrigins  []string
	ServerSideRoles bool
}

// NewRouter builds the full handler chain. Request ID, tracing, logging and
// CORS wrap the router so preflight requests never reach a route.
func NewRouter(d Deps) http.Handler {
	h := &handlers{
		users:           d.Users,
		notes:           d.Notes,
		logger:          d.Logger,
		serverSideRoles: d.ServerSideRoles,
	}

	r := mux.NewRouter()
	r.Use(captureRoute)
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusNotFound, body{Error: "Not found"})
	})

	r.HandleFunc("/", h.banner).Methods(http.MethodGet)
	r.HandleFunc("/health", h.health).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.Use(readParams)

	limit := func(c ratelimit.Class) func(http.Handler) http.Handler {
		return RateLimit(d.Limiter, c, d.Logger)
	}
	withCSRF := RequireCSRF(d.Tokens, d.Logger)
	withIdentity := RequireIdentity(d.Users, d.Logger)

	api.Handle("/signup", chain(http.HandlerFunc(h.signup), limit(ratelimit.ClassSignup))).Methods(http.MethodPost)
	api.Handle("/login", chain(http.HandlerFunc(h.login), limit(ratelimit.ClassLogin))).Methods(http.MethodPost)
	api.Handle("/change-password", chain(http.HandlerFunc(h.changePassword), limit(ratelimit.ClassPasswordChange), withCSRF)).Methods(http.MethodPost)

	notes := api.PathPrefix("/notes").Subrouter()
	notes.Use(withCSRF, withIdentity)
	notes.HandleFunc("", h.listNotes).Methods(http.MethodGet)
	notes.HandleFunc("", h.createNote).Methods(http.MethodPost)
	notes.HandleFunc("/search/{query}", h.searchNotes).Methods(http.MethodGet)
	notes.HandleFunc("/{id}", h.getNote).Methods(http.MethodGet)
	notes.HandleFunc("/{id}", h.updateNote).Methods(http.MethodPut)
	notes.HandleFunc("/{id}", h.deleteNote).Methods(http.MethodDelete)

	return chain(r,
		RequestID,
		Tracing,
		StructuredLog(d.Logger),
		CORS(d.AllowedOrigins),
	)
}
