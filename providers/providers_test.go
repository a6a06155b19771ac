package providers

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jewelryops/opsagent/tool"
)

func newRegistry(t *testing.T) (*tool.Registry, *Store) {
	t.Helper()
	reg := tool.NewRegistry(nil)
	store := NewStore()
	require.NoError(t, RegisterAll(reg, store))
	return reg, store
}

func invoke(t *testing.T, reg *tool.Registry, name, args string) map[string]any {
	t.Helper()
	raw, err := reg.Invoke(context.Background(), name, json.RawMessage(args))
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.Unmarshal(raw, &out))
	return out
}

func TestRegisterAllToolSet(t *testing.T) {
	reg, _ := newRegistry(t)

	descs := reg.DescribeAll()
	names := map[string]bool{}
	mutating := map[string]bool{}
	for _, d := range descs {
		names[d.Name] = true
		mutating[d.Name] = d.Mutating
	}
	for _, want := range []string{
		"get_customer", "search_customers", "get_order", "list_orders",
		"get_inventory_item", "check_stock", "get_notes",
		"add_note", "create_issue", "send_email", "cancel_order", "update_inventory",
	} {
		assert.True(t, names[want], "missing tool %s", want)
	}
	assert.False(t, mutating["get_order"])
	assert.False(t, mutating["check_stock"])
	assert.True(t, mutating["cancel_order"])
	assert.True(t, mutating["update_inventory"])
	assert.True(t, mutating["send_email"])
}

func TestGetCustomer(t *testing.T) {
	reg, _ := newRegistry(t)

	out := invoke(t, reg, "get_customer", `{"customer_id":"cust_001"}`)
	assert.Equal(t, "Lisa Park", out["name"])

	out = invoke(t, reg, "get_customer", `{"customer_id":"cust_999"}`)
	assert.Contains(t, out["error"], "not found")
}

func TestSearchCustomers(t *testing.T) {
	_, store := newRegistry(t)

	hits := store.SearchCustomers("chen")
	require.Len(t, hits, 1)
	assert.Equal(t, "cust_005", hits[0].ID)

	assert.Empty(t, store.SearchCustomers("nobody"))
}

func TestGetOrderAndListOrders(t *testing.T) {
	reg, _ := newRegistry(t)

	out := invoke(t, reg, "get_order", `{"order_id":"ORD-2038"}`)
	assert.Equal(t, "shipped", out["status"])
	assert.Equal(t, "cust_001", out["customer_id"])

	raw, err := reg.Invoke(context.Background(), "list_orders", json.RawMessage(`{"status":"processing"}`))
	require.NoError(t, err)
	var orders []Order
	require.NoError(t, json.Unmarshal(raw, &orders))
	require.Len(t, orders, 3)
	for _, o := range orders {
		assert.Equal(t, "processing", o.Status)
	}
}

func TestCheckStock(t *testing.T) {
	reg, _ := newRegistry(t)

	out := invoke(t, reg, "check_stock", `{"sku":"RING-101","quantity":3}`)
	assert.Equal(t, true, out["in_stock"])
	assert.Equal(t, float64(5), out["available"])

	out = invoke(t, reg, "check_stock", `{"sku":"BRAC-302"}`)
	assert.Equal(t, false, out["in_stock"])
}

func TestCancelOrderTransitions(t *testing.T) {
	reg, store := newRegistry(t)

	out := invoke(t, reg, "cancel_order", `{"order_id":"ORD-2050"}`)
	assert.Equal(t, true, out["ok"])
	o, _ := store.Order("ORD-2050")
	assert.Equal(t, "cancelled", o.Status)

	// Delivered and already-cancelled orders stay as they are.
	out = invoke(t, reg, "cancel_order", `{"order_id":"ORD-2041"}`)
	assert.Contains(t, out["error"], "cannot be cancelled")

	out = invoke(t, reg, "cancel_order", `{"order_id":"ORD-2050"}`)
	assert.Contains(t, out["error"], "cannot be cancelled")
}

func TestUpdateInventoryBounds(t *testing.T) {
	reg, store := newRegistry(t)

	out := invoke(t, reg, "update_inventory", `{"sku":"NECK-211","delta":-2}`)
	assert.Equal(t, true, out["ok"])
	i, _ := store.Inventory("NECK-211")
	assert.Equal(t, 4, i.Quantity)

	out = invoke(t, reg, "update_inventory", `{"sku":"NECK-211","delta":-100}`)
	assert.Contains(t, out["error"], "below zero")
	i, _ = store.Inventory("NECK-211")
	assert.Equal(t, 4, i.Quantity, "failed adjustment leaves the record unchanged")
}

func TestNotesRoundTrip(t *testing.T) {
	reg, _ := newRegistry(t)

	raw, err := reg.Invoke(context.Background(), "get_notes", json.RawMessage(`{"entity_type":"order","entity_id":"ORD-2038"}`))
	require.NoError(t, err)
	var notes []Note
	require.NoError(t, json.Unmarshal(raw, &notes))
	require.Len(t, notes, 1)
	assert.Contains(t, notes[0].Body, "4 days late")

	invoke(t, reg, "add_note", `{"entity_type":"order","entity_id":"ORD-2038","body":"Carrier confirmed delivery for tomorrow."}`)

	raw, err = reg.Invoke(context.Background(), "get_notes", json.RawMessage(`{"entity_type":"order","entity_id":"ORD-2038"}`))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &notes))
	require.Len(t, notes, 2)
	assert.Equal(t, "Agent", notes[1].Author)
}

func TestCreateIssueAndSendEmail(t *testing.T) {
	reg, store := newRegistry(t)

	out := invoke(t, reg, "create_issue", `{"title":"Refund pending for ORD-2035"}`)
	issue := out["issue"].(map[string]any)
	assert.Equal(t, "ISSUE-1", issue["id"])
	assert.Equal(t, "open", issue["status"])
	assert.Equal(t, "medium", issue["priority"])

	invoke(t, reg, "send_email", `{"to":"lisa.park@example.com","subject":"Your order","body":"It ships tomorrow."}`)
	emails := store.SentEmails()
	require.Len(t, emails, 1)
	assert.Equal(t, "support@jewelryops.test", emails[0].From)
}

func TestValidationRejectsMissingRequired(t *testing.T) {
	reg, _ := newRegistry(t)

	_, err := reg.Invoke(context.Background(), "get_order", json.RawMessage(`{}`))
	var verr *tool.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "order_id", verr.Field)
}
