package connectivity_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goto/salt/log"
	"github.com/stretchr/testify/assert"

	"github.com/goto/pipewatch/client/cmd/internal/connectivity"
	lerrors "github.com/goto/pipewatch/client/local/errors"
	"github.com/goto/pipewatch/config"
	"github.com/goto/pipewatch/internal/httpapi"
)

func TestConnectivity(t *testing.T) {
	user := config.UserConfig{ID: "u-1", Role: "saas_sre", Tenant: "acme"}

	t.Run("Get sends identity headers and decodes the body", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "u-1", r.Header.Get(httpapi.HeaderUserID))
			assert.Equal(t, "saas_sre", r.Header.Get(httpapi.HeaderUserRole))
			assert.Equal(t, "acme", r.Header.Get(httpapi.HeaderUserTenant))
			assert.Equal(t, "Failed", r.URL.Query().Get("status"))
			_ = json.NewEncoder(w).Encode(map[string]string{"server": "1.2.3"})
		}))
		defer server.Close()

		conn := connectivity.NewConnectivity(log.NewNoop(), server.URL, user, time.Second)
		defer conn.Close()

		var resp struct {
			Server string `json:"server"`
		}
		err := conn.Get("/api/v1/version", url.Values{"status": {"Failed"}}, &resp)
		assert.NoError(t, err)
		assert.Equal(t, "1.2.3", resp.Server)
	})
	t.Run("Post returns the api error with an exit code", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			httpapi.WriteJSON(w, http.StatusForbidden, httpapi.ErrorResponse{
				Code:    "Forbidden",
				Message: "Platform SREs cannot take action on Business Exceptions",
			})
		}))
		defer server.Close()

		conn := connectivity.NewConnectivity(log.NewNoop(), server.URL, user, time.Second)
		defer conn.Close()

		err := conn.Post("/api/v1/instances/i-1/actions", map[string]string{"action": "Resume"}, nil)
		assert.ErrorContains(t, err, "Platform SREs cannot take action on Business Exceptions")

		var cmdErr *lerrors.CmdError
		assert.True(t, errors.As(err, &cmdErr))
		assert.Equal(t, lerrors.ExitCodeForbidden, cmdErr.Code)

		var apiErr *connectivity.APIError
		assert.True(t, errors.As(err, &apiErr))
		assert.Equal(t, http.StatusForbidden, apiErr.StatusCode)
	})
	t.Run("returns not reachable when the host is down", func(t *testing.T) {
		server := httptest.NewServer(http.NotFoundHandler())
		host := server.URL
		server.Close()

		conn := connectivity.NewConnectivity(log.NewNoop(), host, user, time.Second)
		defer conn.Close()

		err := conn.Post("/api/v1/instances", map[string]string{}, nil)
		assert.ErrorContains(t, err, "Unable to reach pipewatch server")
	})
	t.Run("Get does not retry a server error response", func(t *testing.T) {
		var calls atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusNotFound)
			_ = json.NewEncoder(w).Encode(httpapi.ErrorResponse{Code: "NotFound", Message: "instance not found"})
		}))
		defer server.Close()

		conn := connectivity.NewConnectivity(log.NewNoop(), server.URL, user, time.Second)
		defer conn.Close()

		err := conn.Get("/api/v1/instances/missing", nil, nil)
		assert.ErrorContains(t, err, "instance not found")
		assert.Equal(t, int32(1), calls.Load())

		var cmdErr *lerrors.CmdError
		assert.True(t, errors.As(err, &cmdErr))
		assert.Equal(t, lerrors.ExitCodeWarn, cmdErr.Code)
	})
	t.Run("Get gives up on an unreachable host", func(t *testing.T) {
		server := httptest.NewServer(http.NotFoundHandler())
		host := server.URL
		server.Close()

		conn := connectivity.NewConnectivity(log.NewNoop(), host, user, time.Second)
		defer conn.Close()

		err := conn.Get("/api/v1/version", url.Values{}, nil)
		assert.ErrorContains(t, err, "Unable to reach pipewatch server")
	})
}
