package api

import (
	"context"
	"net/http"
	"net/url"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

// RequestIDHeader carries the per-call identifier in both directions.
const RequestIDHeader = "X-Request-ID"

type ctxKey struct{}

// NewRouter mounts the service under /{name} next to /health, /debug/keys
// and, when metrics is non-nil, /metrics.
//
// Keys travel path-escaped in the last segment. Matching runs on the escaped
// path and cleaning is off, so "", "a//b" and ".." address distinct keys
// instead of being redirected.
func NewRouter(svc Service, name string, metrics http.Handler) *mux.Router {
	r := mux.NewRouter()
	r.UseEncodedPath()
	r.SkipClean(true)
	r.Use(requestIDMiddleware)

	s := r.PathPrefix("/" + url.PathEscape(name)).Subrouter()
	s.HandleFunc("/kv", HandleGetAll(svc)).Methods("GET")
	for _, path := range []string{"/kv/", "/kv/{key:.+}"} {
		s.HandleFunc(path, HandleGet(svc)).Methods("GET")
		s.HandleFunc(path, HandlePut(svc)).Methods("PUT")
		s.HandleFunc(path, HandleDelete(svc)).Methods("DELETE")
	}

	r.HandleFunc("/health", HandleHealth).Methods("GET")
	r.HandleFunc("/debug/keys", HandleKeys(svc)).Methods("GET")
	if metrics != nil {
		r.Handle("/metrics", metrics).Methods("GET")
	}
	return r
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		id := req.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		ctx := context.WithValue(req.Context(), ctxKey{}, id)
		next.ServeHTTP(w, req.WithContext(ctx))
	})
}

// RequestID returns the identifier attached by the router, or "".
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}
