// Package providers implements the built-in jewelry-retail tool set over an
// in-memory business-records store seeded with demo data. It backs examples,
// tests and the default server wiring; production deployments register their
// own providers against the real systems.
package providers

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// Customer is a retail customer record.
type Customer struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone,omitempty"`
}

// Order is a placed order.
type Order struct {
	ID               string  `json:"id"`
	CustomerID       string  `json:"customer_id"`
	SKU              string  `json:"sku"`
	Status           string  `json:"status"`
	PlacedAt         string  `json:"placed_at"`
	ExpectedDelivery string  `json:"expected_delivery,omitempty"`
	TotalAmount      float64 `json:"total_amount"`
}

// InventoryItem tracks stock for one SKU.
type InventoryItem struct {
	SKU      string `json:"sku"`
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
	Reserved int    `json:"reserved"`
}

// Note is free-form context attached to a customer, order or inventory item.
type Note struct {
	ID         int    `json:"id"`
	EntityType string `json:"entity_type"`
	EntityID   string `json:"entity_id"`
	Author     string `json:"author"`
	Body       string `json:"body"`
	CreatedAt  string `json:"created_at"`
}

// Issue is a tracked work item.
type Issue struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Status   string `json:"status"`
	Priority string `json:"priority"`
}

// Email is an outbound message record.
type Email struct {
	To      string `json:"to"`
	From    string `json:"from"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
	SentAt  string `json:"sent_at"`
}

// Store holds the in-memory business records. Safe for concurrent use.
type Store struct {
	mu        sync.RWMutex
	customers map[string]Customer
	orders    map[string]Order
	inventory map[string]InventoryItem
	notes     []Note
	issues    []Issue
	emails    []Email
	nextNote  int
}

// NewStore creates a store seeded with the demo jewelry dataset.
func NewStore() *Store {
	s := &Store{
		customers: map[string]Customer{},
		orders:    map[string]Order{},
		inventory: map[string]InventoryItem{},
		nextNote:  1,
	}
	s.seed()
	return s
}

func (s *Store) seed() {
	for _, c := range []Customer{
		{"cust_001", "Lisa Park", "lisa.park@example.com", "+1-555-0101"},
		{"cust_002", "Daniel Kim", "daniel.kim@example.com", "+1-555-0102"},
		{"cust_003", "Amelia Stone", "amelia.stone@example.com", "+1-555-0103"},
		{"cust_004", "Marcus Rivera", "marcus.rivera@example.com", "+1-555-0104"},
		{"cust_005", "Sarah Chen", "sarah.chen@example.com", "+1-555-0105"},
	} {
		s.customers[c.ID] = c
	}

	for _, i := range []InventoryItem{
		{"RING-101", "18K Rose Gold Engagement Ring", 8, 3},
		{"RING-102", "Platinum Solitaire Diamond Ring", 2, 2},
		{"BRAC-301", "Platinum Tennis Bracelet", 4, 2},
		{"BRAC-302", "18K White Gold Diamond Bracelet", 0, 0},
		{"NECK-210", "White Gold Diamond Necklace", 2, 1},
		{"NECK-211", "Rose Gold Pearl Pendant", 6, 0},
		{"EARR-401", "Diamond Stud Earrings 2ct", 5, 1},
	} {
		s.inventory[i.SKU] = i
	}

	for _, o := range []Order{
		{"ORD-2038", "cust_001", "RING-101", "shipped", "2025-02-01T10:00:00Z", "2025-02-05T12:00:00Z", 2499.00},
		{"ORD-2041", "cust_002", "BRAC-301", "delivered", "2025-02-01T08:00:00Z", "2025-02-04T12:00:00Z", 3299.00},
		{"ORD-2050", "cust_003", "NECK-210", "processing", "2025-02-07T14:00:00Z", "2025-02-12T12:00:00Z", 4599.00},
		{"ORD-2035", "cust_004", "BRAC-302", "returned", "2025-01-25T09:00:00Z", "2025-01-28T12:00:00Z", 5299.00},
		{"ORD-2055", "cust_005", "RING-102", "processing", "2025-02-08T11:00:00Z", "2025-02-15T12:00:00Z", 8999.00},
		{"ORD-2052", "cust_001", "EARR-401", "processing", "2025-02-06T15:00:00Z", "2025-02-11T12:00:00Z", 1899.00},
	} {
		s.orders[o.ID] = o
	}

	created := "2025-02-09 12:00:00"
	for _, n := range []struct{ entityType, entityID, author, body string }{
		{"order", "ORD-2038", "Support", "Customer (Lisa Park) reported order is 4 days late. Carrier tracking shows package delayed at distribution center."},
		{"customer", "cust_001", "Support", "High-value customer, repeat buyer. Prefers concise email communication. Previous issue: 2025-01-15 late shipment resolved with $200 credit."},
		{"order", "ORD-2035", "Support", "Customer returned bracelet due to sizing issue. Return received 2025-02-08. Refund authorization pending."},
		{"customer", "cust_004", "Support", "First-time customer, high-value purchase ($5,299). Return within 14 days for full refund per policy. No prior complaints."},
		{"inventory", "BRAC-302", "Ops", "Out of stock. 2 units ordered from supplier on 2025-02-05, ETA 2025-02-20. 1 unit reserved for return processing."},
		{"inventory", "RING-102", "Ops", "Low stock (2 units). Both units reserved: 1 for ORD-2055, 1 hold for quality check. Next shipment ETA 2025-02-28."},
		{"order", "ORD-2052", "Support", "Earrings in high demand. Currently low stock (5 total, 1 reserved). Customer notified of 3-5 day processing delay."},
	} {
		s.notes = append(s.notes, Note{
			ID:         s.nextNote,
			EntityType: n.entityType,
			EntityID:   n.entityID,
			Author:     n.author,
			Body:       n.body,
			CreatedAt:  created,
		})
		s.nextNote++
	}
}

// Customer returns a customer by id.
func (s *Store) Customer(id string) (Customer, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.customers[id]
	return c, ok
}

// SearchCustomers matches name or email, case-insensitive partial match.
func (s *Store) SearchCustomers(query string) []Customer {
	q := strings.ToLower(query)
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Customer
	for _, c := range s.customers {
		if strings.Contains(strings.ToLower(c.Name), q) || strings.Contains(strings.ToLower(c.Email), q) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Order returns an order by id.
func (s *Store) Order(id string) (Order, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.orders[id]
	return o, ok
}

// Orders lists orders, optionally filtered by status, capped at limit.
func (s *Store) Orders(status string, limit int) []Order {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Order
	for _, o := range s.orders {
		if status != "" && o.Status != strings.ToLower(status) {
			continue
		}
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// CancelOrder transitions an order to cancelled. Orders already delivered,
// returned or cancelled cannot be cancelled.
func (s *Store) CancelOrder(id string) (Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return Order{}, fmt.Errorf("order not found: %s", id)
	}
	switch o.Status {
	case "delivered", "returned", "cancelled":
		return Order{}, fmt.Errorf("order %s cannot be cancelled in status %q", id, o.Status)
	}
	o.Status = "cancelled"
	s.orders[id] = o
	return o, nil
}

// Inventory returns the item for a SKU.
func (s *Store) Inventory(sku string) (InventoryItem, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.inventory[sku]
	return i, ok
}

// AdjustInventory applies a signed delta to a SKU's quantity. Going below
// zero is an error and leaves the record unchanged.
func (s *Store) AdjustInventory(sku string, delta int) (InventoryItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.inventory[sku]
	if !ok {
		return InventoryItem{}, fmt.Errorf("sku not found: %s", sku)
	}
	if i.Quantity+delta < 0 {
		return InventoryItem{}, fmt.Errorf("sku %s: quantity would drop below zero (have %d, delta %d)", sku, i.Quantity, delta)
	}
	i.Quantity += delta
	s.inventory[sku] = i
	return i, nil
}

// Notes returns notes attached to an entity, oldest first.
func (s *Store) Notes(entityType, entityID string) []Note {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Note
	for _, n := range s.notes {
		if n.EntityType == entityType && n.EntityID == entityID {
			out = append(out, n)
		}
	}
	return out
}

// AddNote attaches a note to an entity.
func (s *Store) AddNote(entityType, entityID, author, body string) Note {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := Note{
		ID:         s.nextNote,
		EntityType: entityType,
		EntityID:   entityID,
		Author:     author,
		Body:       body,
		CreatedAt:  time.Now().UTC().Format("2006-01-02 15:04:05"),
	}
	s.nextNote++
	s.notes = append(s.notes, n)
	return n
}

// CreateIssue records a new open issue and returns it.
func (s *Store) CreateIssue(title, priority string) Issue {
	s.mu.Lock()
	defer s.mu.Unlock()
	issue := Issue{
		ID:       fmt.Sprintf("ISSUE-%d", len(s.issues)+1),
		Title:    title,
		Status:   "open",
		Priority: priority,
	}
	s.issues = append(s.issues, issue)
	return issue
}

// SendEmail records an outbound email and returns it.
func (s *Store) SendEmail(to, from, subject, body string) Email {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := Email{
		To:      to,
		From:    from,
		Subject: subject,
		Body:    body,
		SentAt:  time.Now().UTC().Format(time.RFC3339),
	}
	s.emails = append(s.emails, e)
	return e
}

// SentEmails returns all recorded outbound emails.
func (s *Store) SentEmails() []Email {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Email, len(s.emails))
	copy(out, s.emails)
	return out
}
