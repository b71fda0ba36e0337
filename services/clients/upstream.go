package clients

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/oauth2"
)

// UpstreamError reports a failed call to a collaborating service.
type UpstreamError struct {
	Service    string
	StatusCode int
	Err        error
}

func (e *UpstreamError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s responded with status %d", e.Service, e.StatusCode)
	}
	return fmt.Sprintf("%s unreachable: %v", e.Service, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// Code is a stable identifier for the failure.
func (e *UpstreamError) Code() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s-status-%d", e.Service, e.StatusCode)
	}
	return e.Service + "-unreachable"
}

// newRestClient builds a resty client that authenticates every request with tokens.
func newRestClient(baseURL string, timeout time.Duration, tokens oauth2.TokenSource) *resty.Client {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")
	if tokens != nil {
		client.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
			tok, err := tokens.Token()
			if err != nil {
				return err
			}
			req.SetAuthToken(tok.AccessToken)
			return nil
		})
	}
	return client
}

// get performs an authenticated GET and decodes a 2xx body into result.
// It returns the response status so callers can treat some statuses as empty results.
func get(ctx context.Context, client *resty.Client, service, path string, query map[string]string, result interface{}) (int, error) {
	resp, err := client.R().
		SetContext(ctx).
		SetQueryParams(query).
		SetResult(result).
		Get(path)
	if err != nil {
		return 0, &UpstreamError{Service: service, Err: err}
	}
	if resp.IsError() {
		return resp.StatusCode(), &UpstreamError{Service: service, StatusCode: resp.StatusCode()}
	}
	return resp.StatusCode(), nil
}
