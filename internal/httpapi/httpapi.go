package httpapi

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/goto/salt/log"

	"github.com/goto/pipewatch/core/identity"
	"github.com/goto/pipewatch/internal/errors"
)

const (
	HeaderUserID     = "X-User-Id"
	HeaderUserName   = "X-User-Name"
	HeaderUserRole   = "X-User-Role"
	HeaderUserTenant = "X-User-Tenant"

	maxBodyBytes = 1 << 20
)

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// UserFrom builds the caller identity out of the request headers
func UserFrom(r *http.Request) (identity.User, error) {
	return identity.NewUser(
		r.Header.Get(HeaderUserID),
		r.Header.Get(HeaderUserName),
		r.Header.Get(HeaderUserRole),
		r.Header.Get(HeaderUserTenant),
	)
}

func Decode(r *http.Request, entity string, v any) error {
	body := io.LimitReader(r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(v); err != nil {
		if err == io.EOF {
			return errors.InvalidArgument(entity, "request body is empty")
		}
		return errors.InvalidArgument(entity, "malformed request body: "+err.Error())
	}
	return nil
}

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError logs err and writes its status code with the human-readable reason
func WriteError(w http.ResponseWriter, l log.Logger, err error, msg string) {
	status := errors.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		l.Error("%s: %s", msg, err)
	} else {
		l.Warn("%s: %s", msg, err)
	}
	WriteJSON(w, status, ErrorResponse{
		Code:    errors.TypeOf(err).String(),
		Message: errors.Message(err),
	})
}
