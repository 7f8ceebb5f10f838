package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
)

const maxBodyBytes = 1 << 20

// params are the loosely typed identity fields a request carries, merged
// from the JSON body and the query string. Body is kept for the handler.
type params struct {
	Role     string `json:"role"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Body     []byte `json:"-"`
}

type paramsKey struct{}

func paramsFrom(ctx context.Context) params {
	p, _ := ctx.Value(paramsKey{}).(params)
	return p
}

// readParams buffers the body and exposes role/username/email to later
// middleware.
func readParams(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var p params

		if r.Body != nil && r.ContentLength != 0 {
			raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
			if err != nil {
				writeJSON(w, http.StatusRequestEntityTooLarge, body{Error: "Request body too large"})
				return
			}
			if len(bytes.TrimSpace(raw)) > 0 {
				if err := json.Unmarshal(raw, &p); err != nil {
					writeJSON(w, http.StatusBadRequest, body{Error: "Invalid JSON body"})
					return
				}
			}
			p.Body = raw
			r.Body = io.NopCloser(bytes.NewReader(raw))
		}

		q := r.URL.Query()
		if p.Role == "" {
			p.Role = q.Get("role")
		}
		if p.Username == "" {
			p.Username = q.Get("username")
		}
		if p.Email == "" {
			p.Email = q.Get("email")
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), paramsKey{}, p)))
	})
}

// decodeBody decodes the request JSON into v. An empty body leaves v as is.
func decodeBody(r *http.Request, v any) error {
	if p := paramsFrom(r.Context()); p.Body != nil {
		if len(bytes.TrimSpace(p.Body)) == 0 {
			return nil
		}
		return json.Unmarshal(p.Body, v)
	}
	if r.Body == nil {
		return nil
	}
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return err
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	return json.Unmarshal(raw, v)
}
