package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"

	"github.com/gorilla/mux"

	"kvrpc/internal/logging"
	"kvrpc/internal/pool"
	"kvrpc/internal/service"
)

var alog = logging.For("api")

// GetResponse is the body of a successful get.
type GetResponse struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// GetAllResponse is the body of a successful getAll.
type GetAllResponse struct {
	Entries map[string]string `json:"entries"`
}

// KeysResponse lists the stored keys in sorted order.
type KeysResponse struct {
	Keys []string `json:"keys"`
}

// ErrorResponse is the body of every failed call.
type ErrorResponse struct {
	Error string `json:"error"`
}

// Service is the key-value core the handlers call into.
type Service interface {
	Get(ctx context.Context, key string) (string, error)
	Put(key, value string) error
	Delete(key string) error
	GetAll(ctx context.Context) (map[string]string, error)
	Keys(ctx context.Context) ([]string, error)
}

// keyVar returns the unescaped key from the request path. The empty-key
// route has no variable and yields "".
func keyVar(w http.ResponseWriter, req *http.Request) (string, bool) {
	key, err := url.PathUnescape(mux.Vars(req)["key"])
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid key escape: " + err.Error()})
		return "", false
	}
	return key, true
}

func HandleGet(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		key, ok := keyVar(w, req)
		if !ok {
			return
		}
		alog.Debug("get", "key", key, "request_id", RequestID(req.Context()))

		value, err := svc.Get(req.Context(), key)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, GetResponse{Key: key, Value: value})
	}
}

func HandlePut(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		key, ok := keyVar(w, req)
		if !ok {
			return
		}
		body, err := io.ReadAll(req.Body)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "reading body: " + err.Error()})
			return
		}
		alog.Debug("put", "key", key, "request_id", RequestID(req.Context()))

		if err := svc.Put(key, string(body)); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusAccepted)
	}
}

func HandleDelete(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		key, ok := keyVar(w, req)
		if !ok {
			return
		}
		alog.Debug("delete", "key", key, "request_id", RequestID(req.Context()))

		if err := svc.Delete(key); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusAccepted)
	}
}

func HandleGetAll(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		alog.Debug("getall", "request_id", RequestID(req.Context()))

		entries, err := svc.GetAll(req.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, GetAllResponse{Entries: entries})
	}
}

// HandleKeys serves the debug listing of stored keys.
func HandleKeys(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		keys, err := svc.Keys(req.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		if keys == nil {
			keys = []string{}
		}
		writeJSON(w, http.StatusOK, KeysResponse{Keys: keys})
	}
}

func HandleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

// statusFor maps core errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, pool.ErrPoolClosed):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), ErrorResponse{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		alog.Warn("encoding response", "err", err)
	}
}
