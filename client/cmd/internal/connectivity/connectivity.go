package connectivity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/MakeNowJust/heredoc"
	"github.com/goto/salt/log"

	lerrors "github.com/goto/pipewatch/client/local/errors"
	"github.com/goto/pipewatch/config"
	"github.com/goto/pipewatch/internal/httpapi"
	"github.com/goto/pipewatch/internal/utils"
)

var retryPolicy = utils.RetryPolicy{MaxAttempts: 3, Backoff: 100 * time.Millisecond}

var errServerNotReachable = func(host string) error {
	return errors.New(heredoc.Docf(`Unable to reach pipewatch server at %s, this can happen due to following reasons:
		1. Check if you are connected to the network
		2. Is the host correctly configured in pipewatch config
		3. Is the pipewatch server currently unreachable`, host))
}

// APIError is a non 2xx response of the pipewatch server
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s (%d): %s", e.Code, e.StatusCode, e.Message)
}

// Connectivity defines client connection to a targeted server host
type Connectivity struct {
	requestCtx       context.Context //nolint:containedctx
	cancelRequestCtx func()

	logger  log.Logger
	client  *http.Client
	baseURL string
	user    config.UserConfig
}

// NewConnectivity initializes client connection, every request shares the same timeout
func NewConnectivity(l log.Logger, serverHost string, user config.UserConfig, requestTimeout time.Duration) *Connectivity {
	reqCtx, reqCancel := context.WithTimeout(context.Background(), requestTimeout)
	return &Connectivity{
		requestCtx:       reqCtx,
		cancelRequestCtx: reqCancel,
		logger:           l,
		client:           &http.Client{},
		baseURL:          baseURL(serverHost),
		user:             user,
	}
}

func baseURL(host string) string {
	host = strings.TrimSuffix(host, "/")
	if strings.HasPrefix(host, "http://") || strings.HasPrefix(host, "https://") {
		return host
	}
	return "http://" + host
}

// Get is retried on transport errors, server responses are returned as they are
func (c *Connectivity) Get(path string, query url.Values, out any) error {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	err := utils.Retry(c.requestCtx, c.logger, retryPolicy, func() error {
		req, err := http.NewRequestWithContext(c.requestCtx, http.MethodGet, target, nil)
		if err != nil {
			return utils.Permanent(err)
		}
		err = c.do(req, out)
		var transportErr *transportError
		if errors.As(err, &transportErr) {
			return err
		}
		return utils.Permanent(err)
	})
	var transportErr *transportError
	if errors.As(err, &transportErr) {
		return errServerNotReachable(c.baseURL)
	}
	return toCmdError(err)
}

func (c *Connectivity) Post(path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(c.requestCtx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	err = c.do(req, out)
	var transportErr *transportError
	if errors.As(err, &transportErr) {
		c.logger.Debug("request failed: %s", transportErr.err)
		return errServerNotReachable(c.baseURL)
	}
	return toCmdError(err)
}

func toCmdError(err error) error {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return lerrors.FromHTTPStatus(apiErr, apiErr.StatusCode)
	}
	return err
}

type transportError struct {
	err error
}

func (e *transportError) Error() string { return e.err.Error() }

func (c *Connectivity) do(req *http.Request, out any) error {
	req.Header.Set(httpapi.HeaderUserID, c.user.ID)
	req.Header.Set(httpapi.HeaderUserRole, c.user.Role)
	req.Header.Set(httpapi.HeaderUserTenant, c.user.Tenant)

	resp, err := c.client.Do(req)
	if err != nil {
		return &transportError{err: err}
	}
	defer resp.Body.Close()

	content, err := io.ReadAll(resp.Body)
	if err != nil {
		return &transportError{err: err}
	}

	if resp.StatusCode >= http.StatusBadRequest {
		var errResp httpapi.ErrorResponse
		if err := json.Unmarshal(content, &errResp); err != nil || errResp.Message == "" {
			errResp.Message = strings.TrimSpace(string(content))
		}
		return &APIError{StatusCode: resp.StatusCode, Code: errResp.Code, Message: errResp.Message}
	}

	if out == nil {
		return nil
	}
	return json.Unmarshal(content, out)
}

// Close cancels the request context
func (c *Connectivity) Close() {
	c.cancelRequestCtx()
}
