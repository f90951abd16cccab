package collector

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"TradeSentinel/internal/apiclient"
)

// ClientOptions configures the HTTP client shared by the remote fetchers.
type ClientOptions = apiclient.Options

// apiClient issues GETs through the shared limiter and breaker.
type apiClient struct {
	*apiclient.Client
}

// StatusError is returned for non-200 responses.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("status %d, body: %s", e.Code, e.Body)
}

func newAPIClient(name string, opts ClientOptions) *apiClient {
	return &apiClient{Client: apiclient.New(name, opts)}
}

// get performs a GET and returns the body of a 200 response.
func (c *apiClient) get(ctx context.Context, endpoint string, header http.Header) ([]byte, error) {
	body, err := c.Execute(ctx, func(hc *http.Client) ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, err
		}
		for k, vs := range header {
			for _, v := range vs {
				req.Header.Add(k, v)
			}
		}

		resp, err := hc.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("read body: %w", err)
		}
		if resp.StatusCode != http.StatusOK {
			if len(body) > 256 {
				body = body[:256]
			}
			return nil, &StatusError{Code: resp.StatusCode, Body: string(body)}
		}
		return body, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", c.Name(), err)
	}
	return body, nil
}
