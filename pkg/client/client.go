package client

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/telekom/mail-dispatcher/pkg/api"
	"github.com/telekom/mail-dispatcher/pkg/apiresponses"
	"github.com/telekom/mail-dispatcher/pkg/endpoint"
	"github.com/telekom/mail-dispatcher/pkg/mail"
	"github.com/telekom/mail-dispatcher/pkg/version"
	"github.com/telekom/mail-dispatcher/pkg/worker"
)

const defaultTimeout = 30 * time.Second

type Client struct {
	http *resty.Client
}

type Option func(*Client) error

func New(opts ...Option) (*Client, error) {
	c := &Client{
		http: resty.New().
			SetTimeout(defaultTimeout).
			SetHeader("Accept", "application/json").
			SetHeader("User-Agent", version.UserAgent()),
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	if c.http.BaseURL == "" {
		return nil, errors.New("server is required")
	}
	return c, nil
}

func WithServer(server string) Option {
	return func(c *Client) error {
		if server == "" {
			return errors.New("server is required")
		}
		if !strings.HasPrefix(server, "http://") && !strings.HasPrefix(server, "https://") {
			return fmt.Errorf("invalid server %q: scheme must be http or https", server)
		}
		c.http.SetBaseURL(strings.TrimRight(server, "/"))
		return nil
	}
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) error {
		if d > 0 {
			c.http.SetTimeout(d)
		}
		return nil
	}
}

func WithTLSConfig(caFile string, insecureSkipTLSVerify bool) Option {
	return func(c *Client) error {
		tlsConfig := &tls.Config{MinVersion: tls.VersionTLS12, InsecureSkipVerify: insecureSkipTLSVerify} //nolint:gosec // opt-in flag
		if caFile != "" {
			data, err := os.ReadFile(caFile)
			if err != nil {
				return fmt.Errorf("failed to read CA file: %w", err)
			}
			pool := x509.NewCertPool()
			if !pool.AppendCertsFromPEM(data) {
				return errors.New("failed to parse CA file")
			}
			tlsConfig.RootCAs = pool
		}
		c.http.SetTLSClientConfig(tlsConfig)
		return nil
	}
}

// HTTPError is a non-2xx answer. Result is the dispatcher result code the
// server reported, if any.
type HTTPError struct {
	StatusCode int
	Message    string
	Result     mail.Code
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("request failed (%d): %s", e.StatusCode, e.Message)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any, query map[string]string) error {
	req := c.http.R().
		SetContext(ctx).
		SetError(&apiresponses.APIError{})
	if body != nil {
		req.SetHeader("Content-Type", "application/json").SetBody(body)
	}
	if out != nil {
		req.SetResult(out)
	}
	if len(query) > 0 {
		req.SetQueryParams(query)
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		return err
	}
	if !resp.IsError() {
		return nil
	}

	httpErr := &HTTPError{StatusCode: resp.StatusCode(), Message: resp.Status(), Result: mail.CodeGeneralError}
	if apiErr, ok := resp.Error().(*apiresponses.APIError); ok && apiErr.Error != "" {
		httpErr.Message = apiErr.Error
		httpErr.Result = apiErr.Result
	} else if raw := strings.TrimSpace(resp.String()); raw != "" {
		httpErr.Message = raw
	}
	return httpErr
}

// ResultCode extracts the dispatcher result code from an error returned by
// the client. Transport failures map to CodeGeneralError.
func ResultCode(err error) mail.Code {
	if err == nil {
		return mail.CodeSuccess
	}
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.Result
	}
	return mail.CodeGeneralError
}

func (c *Client) RegisterEndpoint(ctx context.Context, req api.RegisterEndpointRequest) (int64, error) {
	var out struct {
		ID int64 `json:"id"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/endpoints", req, &out, nil); err != nil {
		return 0, err
	}
	return out.ID, nil
}

func (c *Client) ListEndpoints(ctx context.Context) ([]endpoint.Config, error) {
	var out []endpoint.Config
	err := c.do(ctx, http.MethodGet, "/api/endpoints", nil, &out, nil)
	return out, err
}

func (c *Client) RemoveEndpoint(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, "/api/endpoints/"+strconv.FormatInt(id, 10), nil, nil, nil)
}

// Send submits an item and returns the result code: CodeSuccess for an
// accepted queued item, the delivery status for an immediate one.
func (c *Client) Send(ctx context.Context, endpointID int64, req api.SendItemRequest) (mail.Code, error) {
	var out struct {
		Result mail.Code `json:"result"`
	}
	path := "/api/endpoints/" + strconv.FormatInt(endpointID, 10) + "/items"
	if err := c.do(ctx, http.MethodPost, path, req, &out, nil); err != nil {
		return ResultCode(err), err
	}
	return out.Result, nil
}

func (c *Client) Result(ctx context.Context, endpointID, itemID int64, erase bool) (api.ResultResponse, error) {
	var out api.ResultResponse
	path := fmt.Sprintf("/api/endpoints/%d/items/%d/result", endpointID, itemID)
	err := c.do(ctx, http.MethodGet, path, nil, &out, map[string]string{"erase": strconv.FormatBool(erase)})
	return out, err
}

func (c *Client) QueueCount(ctx context.Context, database string, cancel bool, wait time.Duration) (int, error) {
	var out api.CountResponse
	query := map[string]string{
		"cancel": strconv.FormatBool(cancel),
		"waitMs": strconv.FormatInt(wait.Milliseconds(), 10),
	}
	err := c.do(ctx, http.MethodGet, "/api/queue/"+url.PathEscape(database)+"/count", nil, &out, query)
	return out.Count, err
}

func (c *Client) CancelQueued(ctx context.Context, database string) error {
	return c.do(ctx, http.MethodDelete, "/api/queue/"+url.PathEscape(database), nil, nil, nil)
}

func (c *Client) Workers(ctx context.Context) ([]worker.Info, error) {
	var out []worker.Info
	err := c.do(ctx, http.MethodGet, "/api/workers", nil, &out, nil)
	return out, err
}

func (c *Client) Version(ctx context.Context) (version.BuildInfo, error) {
	var out version.BuildInfo
	err := c.do(ctx, http.MethodGet, "/version", nil, &out, nil)
	return out, err
}
