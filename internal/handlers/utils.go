package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/mouldconnect/apiserver/internal/services"
)

const (
	msgInvalidBody   = "Invalid request body"
	msgInternalError = "Internal Server Error"
	msgUnauthorized  = "Unauthorized"
)

type contextKey string

const contextIdentityKey contextKey = "identity"

// identity is the authenticated caller as carried by the bearer token.
type identity struct {
	UserID int
	Email  string
}

func withIdentity(ctx context.Context, id identity) context.Context {
	return context.WithValue(ctx, contextIdentityKey, id)
}

func identityFromContext(ctx context.Context) (identity, error) {
	id, ok := ctx.Value(contextIdentityKey).(identity)
	if !ok || id.UserID < 1 {
		return identity{}, errors.New("missing subject")
	}
	return id, nil
}

// ErrorResponse is the error payload shared by every endpoint.
type ErrorResponse struct {
	Message string               `json:"message"`
	Errors  []services.Violation `json:"errors,omitempty"`
	UserID  int                  `json:"userId,omitempty"`
}

// MessageResponse carries a bare confirmation message.
type MessageResponse struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Message: message})
}

var kindStatus = map[services.Kind]int{
	services.KindValidation:      http.StatusBadRequest,
	services.KindConflict:        http.StatusBadRequest,
	services.KindUnauthenticated: http.StatusUnauthorized,
	services.KindForbidden:       http.StatusForbidden,
	services.KindNotFound:        http.StatusNotFound,
}

// writeServiceError renders err for the client. Errors that are not part of
// the service taxonomy are logged and answered with a generic 500.
func writeServiceError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	var unverified *services.UnverifiedError
	if errors.As(err, &unverified) {
		writeJSON(w, http.StatusForbidden, ErrorResponse{Message: unverified.Error(), UserID: unverified.UserID})
		return
	}

	if svcErr, ok := services.AsError(err); ok {
		status, known := kindStatus[svcErr.Kind]
		if !known {
			status = http.StatusBadRequest
		}
		resp := ErrorResponse{Message: svcErr.Message}
		if len(svcErr.Violations) > 0 {
			resp.Errors = svcErr.Violations
		}
		writeJSON(w, status, resp)
		return
	}

	logger.ErrorContext(r.Context(), "request failed",
		slog.String("req_id", middleware.GetReqID(r.Context())),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.Any("err", err),
	)
	writeError(w, http.StatusInternalServerError, msgInternalError)
}

// decodeJSON reads a single JSON object from the body.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	return dec.Decode(dst)
}

// flexInt accepts a JSON number or a numeric string. Anything else decodes
// to zero, which no record uses.
type flexInt int

func (f *flexInt) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = 0
		return nil
	}
	raw := string(data)
	if unquoted, err := strconv.Unquote(raw); err == nil {
		raw = strings.TrimSpace(unquoted)
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		*f = 0
		return nil
	}
	*f = flexInt(n)
	return nil
}

// flexString accepts a JSON string or number, keeping the digits of the
// latter verbatim.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}

// pathUserID parses the {userID} parameter. Malformed ids yield zero, which
// never matches an authenticated subject.
func pathUserID(r *http.Request) int {
	id, err := strconv.Atoi(strings.TrimSpace(chi.URLParam(r, "userID")))
	if err != nil || id < 1 {
		return 0
	}
	return id
}
