package tool

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// providerRequest is the wire shape posted to a remote tool provider.
type providerRequest struct {
	Tool      string         `json:"tool"`
	Arguments map[string]any `json:"arguments"`
}

// providerResponse is the wire shape a remote provider answers with: either
// a result or an error, never both.
type providerResponse struct {
	Result json.RawMessage `json:"result,omitempty"`
	Error  *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// HTTPProviderOptions configure a remote provider adapter.
type HTTPProviderOptions struct {
	// Client defaults to an http.Client with Timeout.
	Client *http.Client
	// Timeout applies when Client is nil. Default 30s.
	Timeout time.Duration
}

// NewHTTPProvider returns an InvokeFunc that forwards calls for toolName to a
// remote provider endpoint over request/response JSON. Error mapping:
// network failures, timeouts and 5xx responses become transient
// ProviderErrors; 4xx responses and provider-reported errors are permanent.
func NewHTTPProvider(toolName, endpoint string, optFns ...func(o *HTTPProviderOptions)) InvokeFunc {
	opts := HTTPProviderOptions{Timeout: 30 * time.Second}
	for _, fn := range optFns {
		fn(&opts)
	}
	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}

	return func(ctx context.Context, args map[string]any) (any, error) {
		body, err := json.Marshal(providerRequest{Tool: toolName, Arguments: args})
		if err != nil {
			return nil, NewProviderError(toolName, "ENCODE", err.Error(), false, err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
		if err != nil {
			return nil, NewProviderError(toolName, "REQUEST", err.Error(), false, err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := client.Do(req)
		if err != nil {
			return nil, NewProviderError(toolName, "NETWORK", err.Error(), true, err)
		}
		defer resp.Body.Close()

		payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		if err != nil {
			return nil, NewProviderError(toolName, "READ", err.Error(), true, err)
		}

		if resp.StatusCode >= 500 {
			return nil, NewProviderError(toolName, fmt.Sprintf("HTTP_%d", resp.StatusCode), string(payload), true, nil)
		}
		if resp.StatusCode >= 400 {
			return nil, NewProviderError(toolName, fmt.Sprintf("HTTP_%d", resp.StatusCode), string(payload), false, nil)
		}

		var decoded providerResponse
		if err := json.Unmarshal(payload, &decoded); err != nil {
			return nil, NewProviderError(toolName, "MALFORMED", "provider returned invalid JSON: "+err.Error(), false, err)
		}
		if decoded.Error != nil {
			return nil, NewProviderError(toolName, decoded.Error.Code, decoded.Error.Message, false, nil)
		}
		return decoded.Result, nil
	}
}
