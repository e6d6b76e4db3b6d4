package orders

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/ariefcatur/little-lemon/internal/apperr"
)

var orderColumns = map[string]string{
	"id":    "o.id",
	"date":  "o.date",
	"total": "o.total_cents",
}

// ParseListParams reads the optional status filter and ordering of
// GET /orders. Scoping by caller is applied separately.
func ParseListParams(v url.Values) (Filter, error) {
	var f Filter
	fe := apperr.FieldErrors{}
	if s := v.Get("status"); s != "" {
		var st Status
		if err := st.UnmarshalJSON([]byte(strings.ToLower(s))); err != nil {
			fe.Add("status", "Must be a valid boolean.")
		} else {
			f.Status = &st
		}
	}
	if s := v.Get("ordering"); s != "" {
		for _, o := range strings.Split(s, ",") {
			o = strings.TrimSpace(o)
			if o == "" {
				continue
			}
			if _, ok := orderColumns[strings.TrimPrefix(o, "-")]; !ok {
				fe.Add("ordering", fmt.Sprintf("Unknown ordering field %q.", o))
				continue
			}
			f.Ordering = append(f.Ordering, o)
		}
	}
	if err := fe.Err(); err != nil {
		return Filter{}, err
	}
	return f, nil
}

// SQL renders the WHERE and ORDER BY tail for an order listing.
func (f Filter) SQL() (string, []any) {
	var (
		conds []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if f.UserID != nil {
		conds = append(conds, "o.user_id = "+arg(*f.UserID))
	}
	if f.DeliveryCrewID != nil {
		conds = append(conds, "o.delivery_crew_id = "+arg(*f.DeliveryCrewID))
	}
	if f.Status != nil {
		conds = append(conds, "o.status = "+arg(bool(*f.Status)))
	}

	var b strings.Builder
	if len(conds) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(conds, " AND "))
	}
	order := make([]string, 0, len(f.Ordering)+1)
	for _, o := range f.Ordering {
		dir := "ASC"
		if strings.HasPrefix(o, "-") {
			dir = "DESC"
			o = o[1:]
		}
		if col, ok := orderColumns[o]; ok {
			order = append(order, col+" "+dir)
		}
	}
	order = append(order, "o.id ASC")
	b.WriteString(" ORDER BY ")
	b.WriteString(strings.Join(order, ", "))
	return b.String(), args
}
