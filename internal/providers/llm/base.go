package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/luvu182/luxbot/internal/core"
	"github.com/tidwall/gjson"
)

type baseProvider struct {
	client  *http.Client
	baseURL string
	apiKey  string
	// timeout bounds unary calls. Streams are bounded by the caller's context.
	timeout time.Duration
}

func newBaseProvider(baseURL, apiKey string, timeout time.Duration) baseProvider {
	return baseProvider{
		client:  &http.Client{},
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		timeout: timeout,
	}
}

func (b *baseProvider) doRequest(ctx context.Context, method, path string, body any, headers map[string]string) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, b.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	for k, v := range headers {
		req.Header.Set(k, v)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", core.LuxUserAgent)

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request: %w", err)
	}
	return resp, nil
}

// doUnary performs a request and returns the whole body of a 200 response.
func (b *baseProvider) doUnary(ctx context.Context, path string, body any, headers map[string]string) ([]byte, error) {
	if b.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.timeout)
		defer cancel()
	}

	resp, err := b.doRequest(ctx, http.MethodPost, path, body, headers)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, statusError(resp.StatusCode, data)
	}
	return data, nil
}

func statusError(status int, data []byte) error {
	msg := gjson.GetBytes(data, "error.message").String()
	if msg == "" {
		msg = strings.TrimSpace(string(data))
	}
	return fmt.Errorf("http %d: %s", status, msg)
}
