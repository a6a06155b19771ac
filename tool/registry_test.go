package tool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func orderSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"order_id": map[string]any{"type": "string"},
			"quantity": map[string]any{"type": "integer"},
		},
		"required": []string{"order_id"},
	}
}

func TestRegistryRegisterDuplicate(t *testing.T) {
	r := NewRegistry(nil)
	desc := Descriptor{Name: "get_order", Parameters: orderSchema()}
	echo := func(ctx context.Context, args map[string]any) (any, error) { return args, nil }

	require.NoError(t, r.Register(desc, echo))
	err := r.Register(desc, echo)
	assert.ErrorIs(t, err, ErrDuplicateTool)
}

func TestRegistryDescribeAllOrder(t *testing.T) {
	r := NewRegistry(nil)
	noop := func(ctx context.Context, args map[string]any) (any, error) { return nil, nil }
	for _, name := range []string{"get_order", "get_customer", "cancel_order"} {
		require.NoError(t, r.Register(Descriptor{Name: name, Parameters: map[string]any{"type": "object"}}, noop))
	}

	descs := r.DescribeAll()
	require.Len(t, descs, 3)
	assert.Equal(t, "get_order", descs[0].Name)
	assert.Equal(t, "get_customer", descs[1].Name)
	assert.Equal(t, "cancel_order", descs[2].Name)
}

func TestRegistryInvokeUnknownTool(t *testing.T) {
	r := NewRegistry(nil)
	_, err := r.Invoke(context.Background(), "nonexistent", nil)
	assert.ErrorIs(t, err, ErrUnknownTool)
}

func TestRegistryInvokeValidation(t *testing.T) {
	r := NewRegistry(nil)
	require.NoError(t, r.Register(
		Descriptor{Name: "get_order", Parameters: orderSchema()},
		func(ctx context.Context, args map[string]any) (any, error) { return "ok", nil },
	))

	var vErr *ValidationError

	// Missing required field.
	_, err := r.Invoke(context.Background(), "get_order", json.RawMessage(`{}`))
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "order_id", vErr.Field)

	// Wrong type.
	_, err = r.Invoke(context.Background(), "get_order", json.RawMessage(`{"order_id":7}`))
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "order_id", vErr.Field)

	// Not a JSON object at all.
	_, err = r.Invoke(context.Background(), "get_order", json.RawMessage(`[1,2]`))
	assert.ErrorAs(t, err, &vErr)

	// Whole-number floats satisfy integer fields (JSON decoding artifact).
	_, err = r.Invoke(context.Background(), "get_order", json.RawMessage(`{"order_id":"ORD-1","quantity":3}`))
	assert.NoError(t, err)
}

func TestRegistryInvokeSuccess(t *testing.T) {
	r := NewRegistry(nil)
	require.NoError(t, r.Register(
		Descriptor{Name: "get_order", Parameters: orderSchema()},
		func(ctx context.Context, args map[string]any) (any, error) {
			return map[string]any{"order_id": args["order_id"], "status": "shipped"}, nil
		},
	))

	result, err := r.Invoke(context.Background(), "get_order", json.RawMessage(`{"order_id":"ORD-102"}`))
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(result, &decoded))
	assert.Equal(t, "shipped", decoded["status"])
}

func TestRegistryInvokeProviderError(t *testing.T) {
	r := NewRegistry(nil)
	require.NoError(t, r.Register(
		Descriptor{Name: "flaky", Parameters: map[string]any{"type": "object"}},
		func(ctx context.Context, args map[string]any) (any, error) {
			return nil, errors.New("connection refused")
		},
	))

	_, err := r.Invoke(context.Background(), "flaky", nil)
	var pErr *ProviderError
	require.ErrorAs(t, err, &pErr)
	assert.Equal(t, "flaky", pErr.Tool)
}

func TestRegistryInvokeRecoversPanic(t *testing.T) {
	r := NewRegistry(nil)
	require.NoError(t, r.Register(
		Descriptor{Name: "panicky", Parameters: map[string]any{"type": "object"}},
		func(ctx context.Context, args map[string]any) (any, error) { panic("boom") },
	))

	_, err := r.Invoke(context.Background(), "panicky", nil)
	var pErr *ProviderError
	require.ErrorAs(t, err, &pErr)
	assert.Equal(t, "PANIC", pErr.Code)
}

func TestRegistryInvokePreservesProviderError(t *testing.T) {
	r := NewRegistry(nil)
	orig := NewProviderError("remote", "TIMEOUT", "deadline exceeded", true, nil)
	require.NoError(t, r.Register(
		Descriptor{Name: "remote", Parameters: map[string]any{"type": "object"}},
		func(ctx context.Context, args map[string]any) (any, error) {
			return nil, fmt.Errorf("call failed: %w", orig)
		},
	))

	_, err := r.Invoke(context.Background(), "remote", nil)
	var pErr *ProviderError
	require.ErrorAs(t, err, &pErr)
	assert.True(t, pErr.Transient)
	assert.Equal(t, "TIMEOUT", pErr.Code)
}

func TestSchemaFromStruct(t *testing.T) {
	type cancelArgs struct {
		OrderID string  `json:"order_id" description:"Order to cancel"`
		Reason  *string `json:"reason" description:"Optional reason"`
		Notify  bool    `json:"notify,omitempty"`
	}

	schema := SchemaFromStruct(cancelArgs{})
	props, ok := schema["properties"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, props, "order_id")
	assert.Contains(t, props, "reason")
	assert.Contains(t, props, "notify")

	required, _ := schema["required"].([]string)
	assert.Equal(t, []string{"order_id"}, required)

	orderProp := props["order_id"].(map[string]any)
	assert.Equal(t, "string", orderProp["type"])
	assert.Equal(t, "Order to cancel", orderProp["description"])
}

func TestHTTPProvider(t *testing.T) {
	t.Run("success round trip", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			var in providerRequest
			require.NoError(t, json.NewDecoder(req.Body).Decode(&in))
			assert.Equal(t, "get_order", in.Tool)
			fmt.Fprintf(w, `{"result":{"order_id":%q,"status":"shipped"}}`, in.Arguments["order_id"])
		}))
		defer srv.Close()

		invoke := NewHTTPProvider("get_order", srv.URL)
		result, err := invoke(context.Background(), map[string]any{"order_id": "ORD-1"})
		require.NoError(t, err)

		payload, err := json.Marshal(result)
		require.NoError(t, err)
		assert.JSONEq(t, `{"order_id":"ORD-1","status":"shipped"}`, string(payload))
	})

	t.Run("5xx is transient", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer srv.Close()

		_, err := NewHTTPProvider("get_order", srv.URL)(context.Background(), nil)
		var pErr *ProviderError
		require.ErrorAs(t, err, &pErr)
		assert.True(t, pErr.Transient)
	})

	t.Run("provider-reported error is permanent", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			fmt.Fprint(w, `{"error":{"code":"NOT_FOUND","message":"no such order"}}`)
		}))
		defer srv.Close()

		_, err := NewHTTPProvider("get_order", srv.URL)(context.Background(), nil)
		var pErr *ProviderError
		require.ErrorAs(t, err, &pErr)
		assert.False(t, pErr.Transient)
		assert.Equal(t, "NOT_FOUND", pErr.Code)
	})
}
