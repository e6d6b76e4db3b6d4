package orders

import (
	"encoding/json"
	"net/url"
	"reflect"
	"testing"
	"time"

	"github.com/ariefcatur/little-lemon/internal/apperr"
)

func TestPatchDecoding(t *testing.T) {
	tests := []struct {
		body   string
		fields []string
		crew   OptionalID
	}{
		{`{"status": true}`, []string{"status"}, OptionalID{}},
		{`{"delivery_crew": 7}`, []string{"delivery_crew"}, OptionalID{Set: true, Valid: true, Value: 7}},
		{`{"delivery_crew": null}`, []string{"delivery_crew"}, OptionalID{Set: true}},
		{`{"status": 1, "total": "20.00"}`, []string{"status", "total"}, OptionalID{}},
		{`{}`, nil, OptionalID{}},
	}
	for _, tt := range tests {
		var p Patch
		if err := json.Unmarshal([]byte(tt.body), &p); err != nil {
			t.Fatalf("decode %s: %v", tt.body, err)
		}
		if got := p.Fields(); !reflect.DeepEqual(got, tt.fields) {
			t.Errorf("%s: Fields() = %v, want %v", tt.body, got, tt.fields)
		}
		if p.DeliveryCrew != tt.crew {
			t.Errorf("%s: crew = %+v, want %+v", tt.body, p.DeliveryCrew, tt.crew)
		}
		if p.Empty() != (len(tt.fields) == 0) {
			t.Errorf("%s: Empty() = %v", tt.body, p.Empty())
		}
	}

	var p Patch
	if err := json.Unmarshal([]byte(`{"status": "soon"}`), &p); err == nil {
		t.Fatalf("non boolean status should fail")
	}
	if err := json.Unmarshal([]byte(`{"delivery_crew": "bob"}`), &p); err == nil {
		t.Fatalf("non numeric delivery_crew should fail")
	}
}

func TestOrderJSON(t *testing.T) {
	crew := int64(3)
	o := Order{
		ID: 1, UserID: 2, DeliveryCrewID: &crew, Status: StatusOutForDelivery,
		Total: 2500, Date: Today(time.Date(2026, 10, 14, 23, 0, 0, 0, time.UTC)),
		Items: []OrderItem{{ID: 1, MenuItemID: 5, Title: "Bruschetta", Quantity: 2, UnitPrice: 1250, Price: 2500}},
	}
	b, err := json.Marshal(o)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"id":1,"user":2,"delivery_crew":3,"status":true,"total":"25.00","date":"2026-10-14",` +
		`"order_items":[{"id":1,"menuitem":5,"title":"Bruschetta","quantity":2,"unit_price":"12.50","price":"25.00"}]}`
	if string(b) != want {
		t.Fatalf("json =\n%s\nwant\n%s", b, want)
	}
}

func TestStatusString(t *testing.T) {
	if StatusPending.String() != "pending" || StatusOutForDelivery.String() != "out-for-delivery" {
		t.Fatalf("unexpected labels")
	}
}

func TestParseListParams(t *testing.T) {
	f, err := ParseListParams(url.Values{"status": {"True"}, "ordering": {"-date,total"}})
	if err != nil {
		t.Fatalf("ParseListParams: %v", err)
	}
	if f.Status == nil || *f.Status != StatusOutForDelivery {
		t.Fatalf("status = %v", f.Status)
	}
	uid := int64(4)
	f.UserID = &uid
	sql, args := f.SQL()
	wantSQL := " WHERE o.user_id = $1 AND o.status = $2 ORDER BY o.date DESC, o.total_cents ASC, o.id ASC"
	if sql != wantSQL {
		t.Fatalf("sql = %q", sql)
	}
	if !reflect.DeepEqual(args, []any{int64(4), true}) {
		t.Fatalf("args = %#v", args)
	}

	if _, err := ParseListParams(url.Values{"ordering": {"user"}}); !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("unknown ordering err = %v", err)
	}
}
