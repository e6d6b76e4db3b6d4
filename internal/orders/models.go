package orders

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ariefcatur/little-lemon/internal/catalog"
	"github.com/ariefcatur/little-lemon/internal/money"
)

// MaxQuantity is the largest quantity a cart or order line can hold.
const MaxQuantity = 1<<31 - 1

// CartItem is one pending line of a user's cart. Price is always
// UnitPrice × Quantity.
type CartItem struct {
	ID        int64            `json:"id"`
	UserID    int64            `json:"user"`
	MenuItem  catalog.MenuItem `json:"menuitem"`
	Quantity  int              `json:"quantity"`
	UnitPrice money.Amount     `json:"unit_price"`
	Price     money.Amount     `json:"price"`
}

type Order struct {
	ID             int64        `json:"id"`
	UserID         int64        `json:"user"`
	DeliveryCrewID *int64       `json:"delivery_crew"`
	Status         Status       `json:"status"`
	Total          money.Amount `json:"total"`
	Date           Date         `json:"date"`
	Items          []OrderItem  `json:"order_items"`
}

// OrderItem is the snapshot of a cart line taken when the order was placed.
type OrderItem struct {
	ID         int64        `json:"id"`
	MenuItemID int64        `json:"menuitem"`
	Title      string       `json:"title"`
	Quantity   int          `json:"quantity"`
	UnitPrice  money.Amount `json:"unit_price"`
	Price      money.Amount `json:"price"`
}

// Date is a calendar day rendered as YYYY-MM-DD.
type Date struct{ time.Time }

const dateLayout = "2006-01-02"

func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.Format(dateLayout) + `"`), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return err
	}
	d.Time = t
	return nil
}

// Today is the date an order placed at now is booked on.
func Today(now time.Time) Date {
	y, m, dd := now.UTC().Date()
	return Date{time.Date(y, m, dd, 0, 0, 0, 0, time.UTC)}
}

// OptionalID distinguishes an absent JSON field from an explicit null.
type OptionalID struct {
	Set   bool
	Valid bool
	Value int64
}

func (o *OptionalID) UnmarshalJSON(b []byte) error {
	o.Set = true
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		o.Valid = false
		return nil
	}
	if err := json.Unmarshal(b, &o.Value); err != nil {
		return fmt.Errorf("delivery_crew must be a user id: %w", err)
	}
	o.Valid = true
	return nil
}

// Patch is the writable subset of an order. Unset fields are untouched.
type Patch struct {
	Status       *Status       `json:"status"`
	DeliveryCrew OptionalID    `json:"delivery_crew"`
	Total        *money.Amount `json:"total"`
}

func (p Patch) Empty() bool {
	return p.Status == nil && !p.DeliveryCrew.Set && p.Total == nil
}

// Fields lists the names of the fields p sets, in a stable order.
func (p Patch) Fields() []string {
	var out []string
	if p.Status != nil {
		out = append(out, "status")
	}
	if p.DeliveryCrew.Set {
		out = append(out, "delivery_crew")
	}
	if p.Total != nil {
		out = append(out, "total")
	}
	return out
}

// Filter scopes an order listing. Nil fields do not filter.
type Filter struct {
	UserID         *int64
	DeliveryCrewID *int64
	Status         *Status
	Ordering       []string
}
