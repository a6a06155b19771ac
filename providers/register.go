package providers

import (
	"context"

	"github.com/jewelryops/opsagent/tool"
)

// Argument structs define each tool's schema via reflection. Pointer and
// omitempty fields are optional.
type getCustomerArgs struct {
	CustomerID string `json:"customer_id" description:"Customer id, e.g. cust_001"`
}

type searchCustomersArgs struct {
	Query string `json:"query" description:"Name or email, case-insensitive partial match"`
}

type getOrderArgs struct {
	OrderID string `json:"order_id" description:"Order id, e.g. ORD-2038"`
}

type listOrdersArgs struct {
	Status string `json:"status,omitempty" description:"Filter: pending, processing, shipped, delivered, returned, cancelled. Empty for all"`
	Limit  int    `json:"limit,omitempty" description:"Maximum number of orders to return"`
}

type getInventoryItemArgs struct {
	SKU string `json:"sku" description:"Item SKU, e.g. RING-101"`
}

type checkStockArgs struct {
	SKU      string `json:"sku" description:"Item SKU, e.g. RING-101"`
	Quantity int    `json:"quantity,omitempty" description:"Requested quantity, default 1"`
}

type getNotesArgs struct {
	EntityType string `json:"entity_type" description:"customer, order or inventory"`
	EntityID   string `json:"entity_id" description:"Id of the entity the notes are attached to"`
}

type addNoteArgs struct {
	EntityType string `json:"entity_type" description:"customer, order or inventory"`
	EntityID   string `json:"entity_id" description:"Id of the entity to attach the note to"`
	Body       string `json:"body" description:"Note text"`
	Author     string `json:"author,omitempty" description:"Author name, default Agent"`
}

type createIssueArgs struct {
	Title    string `json:"title" description:"Short issue title"`
	Priority string `json:"priority,omitempty" description:"low, medium or high, default medium"`
}

type sendEmailArgs struct {
	To      string `json:"to" description:"Recipient address"`
	Subject string `json:"subject" description:"Subject line"`
	Body    string `json:"body" description:"Message body"`
}

type cancelOrderArgs struct {
	OrderID string `json:"order_id" description:"Order id to cancel, e.g. ORD-2050"`
}

type updateInventoryArgs struct {
	SKU   string `json:"sku" description:"Item SKU, e.g. RING-101"`
	Delta int    `json:"delta" description:"Signed quantity adjustment"`
}

// RegisterAll registers the full built-in tool set against the registry,
// backed by the given store. Read-only tools carry Mutating=false and pass
// the confirmation gate untouched; write tools are flagged mutating.
func RegisterAll(reg *tool.Registry, store *Store) error {
	specs := []struct {
		name        string
		description string
		args        any
		mutating    bool
		invoke      tool.InvokeFunc
	}{
		{
			name:        "get_customer",
			description: "Get a single customer by id.",
			args:        getCustomerArgs{},
			invoke: func(_ context.Context, args map[string]any) (any, error) {
				id := stringArg(args, "customer_id")
				c, ok := store.Customer(id)
				if !ok {
					return notFound("Customer not found: " + id), nil
				}
				return c, nil
			},
		},
		{
			name:        "search_customers",
			description: "Search customers by name or email (case-insensitive partial match).",
			args:        searchCustomersArgs{},
			invoke: func(_ context.Context, args map[string]any) (any, error) {
				return store.SearchCustomers(stringArg(args, "query")), nil
			},
		},
		{
			name:        "get_order",
			description: "Get a single order by id.",
			args:        getOrderArgs{},
			invoke: func(_ context.Context, args map[string]any) (any, error) {
				id := stringArg(args, "order_id")
				o, ok := store.Order(id)
				if !ok {
					return notFound("Order not found: " + id), nil
				}
				return o, nil
			},
		},
		{
			name:        "list_orders",
			description: "List orders, optionally filtered by status.",
			args:        listOrdersArgs{},
			invoke: func(_ context.Context, args map[string]any) (any, error) {
				limit := intArg(args, "limit", 20)
				return store.Orders(stringArg(args, "status"), limit), nil
			},
		},
		{
			name:        "get_inventory_item",
			description: "Get inventory for a single SKU.",
			args:        getInventoryItemArgs{},
			invoke: func(_ context.Context, args map[string]any) (any, error) {
				sku := stringArg(args, "sku")
				i, ok := store.Inventory(sku)
				if !ok {
					return notFound("SKU not found: " + sku), nil
				}
				return i, nil
			},
		},
		{
			name:        "check_stock",
			description: "Check whether a SKU has at least the given quantity available (quantity minus reserved).",
			args:        checkStockArgs{},
			invoke: func(_ context.Context, args map[string]any) (any, error) {
				sku := stringArg(args, "sku")
				requested := intArg(args, "quantity", 1)
				i, ok := store.Inventory(sku)
				if !ok {
					return notFound("SKU not found: " + sku), nil
				}
				available := i.Quantity - i.Reserved
				return map[string]any{
					"sku":       sku,
					"available": available,
					"requested": requested,
					"in_stock":  available >= requested,
				}, nil
			},
		},
		{
			name:        "get_notes",
			description: "Get notes attached to a customer, order or inventory item.",
			args:        getNotesArgs{},
			invoke: func(_ context.Context, args map[string]any) (any, error) {
				return store.Notes(stringArg(args, "entity_type"), stringArg(args, "entity_id")), nil
			},
		},
		{
			name:        "add_note",
			description: "Attach a note to a customer, order or inventory item.",
			args:        addNoteArgs{},
			mutating:    true,
			invoke: func(_ context.Context, args map[string]any) (any, error) {
				author := stringArg(args, "author")
				if author == "" {
					author = "Agent"
				}
				note := store.AddNote(stringArg(args, "entity_type"), stringArg(args, "entity_id"), author, stringArg(args, "body"))
				return map[string]any{"ok": true, "note": note}, nil
			},
		},
		{
			name:        "create_issue",
			description: "Create a new tracked issue.",
			args:        createIssueArgs{},
			mutating:    true,
			invoke: func(_ context.Context, args map[string]any) (any, error) {
				priority := stringArg(args, "priority")
				if priority == "" {
					priority = "medium"
				}
				issue := store.CreateIssue(stringArg(args, "title"), priority)
				return map[string]any{"ok": true, "issue": issue}, nil
			},
		},
		{
			name:        "send_email",
			description: "Send an email to a customer.",
			args:        sendEmailArgs{},
			mutating:    true,
			invoke: func(_ context.Context, args map[string]any) (any, error) {
				email := store.SendEmail(stringArg(args, "to"), "support@jewelryops.test", stringArg(args, "subject"), stringArg(args, "body"))
				return map[string]any{"ok": true, "email": email}, nil
			},
		},
		{
			name:        "cancel_order",
			description: "Cancel an order that has not shipped or been delivered.",
			args:        cancelOrderArgs{},
			mutating:    true,
			invoke: func(_ context.Context, args map[string]any) (any, error) {
				o, err := store.CancelOrder(stringArg(args, "order_id"))
				if err != nil {
					return notFound(err.Error()), nil
				}
				return map[string]any{"ok": true, "order": o}, nil
			},
		},
		{
			name:        "update_inventory",
			description: "Adjust a SKU's stock quantity by a signed delta.",
			args:        updateInventoryArgs{},
			mutating:    true,
			invoke: func(_ context.Context, args map[string]any) (any, error) {
				i, err := store.AdjustInventory(stringArg(args, "sku"), intArg(args, "delta", 0))
				if err != nil {
					return notFound(err.Error()), nil
				}
				return map[string]any{"ok": true, "item": i}, nil
			},
		},
	}

	for _, spec := range specs {
		err := reg.Register(tool.Descriptor{
			Name:        spec.name,
			Description: spec.description,
			Parameters:  tool.SchemaFromStruct(spec.args),
			Mutating:    spec.mutating,
		}, spec.invoke)
		if err != nil {
			return err
		}
	}
	return nil
}

// notFound mirrors the provider convention of reporting missing records and
// domain rejections as result payloads, not transport errors, so the oracle
// can read and react to them.
func notFound(msg string) map[string]any {
	return map[string]any{"error": msg}
}

func stringArg(args map[string]any, key string) string {
	s, _ := args[key].(string)
	return s
}

func intArg(args map[string]any, key string, fallback int) int {
	switch v := args[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return fallback
	}
}
