package catalog

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/ariefcatur/little-lemon/internal/apperr"
	"github.com/ariefcatur/little-lemon/internal/money"
)

const (
	MaxPerPage = 100
	MaxPage    = 1_000_000
)

var menuOrderColumns = map[string]string{
	"id":    "m.id",
	"price": "m.price_cents",
	"title": "m.title",
}

// MenuQuery narrows GET /menu-items. Zero values mean "no filter".
type MenuQuery struct {
	CategorySlug string
	Featured     *bool
	ToPrice      *money.Amount
	Search       string
	Ordering     []string
	PerPage      int
	Page         int
}

// ParseMenuQuery reads filter, search, ordering and paging parameters.
func ParseMenuQuery(v url.Values) (MenuQuery, error) {
	q := MenuQuery{
		CategorySlug: strings.TrimSpace(v.Get("category")),
		Search:       strings.TrimSpace(v.Get("search")),
	}
	fe := apperr.FieldErrors{}

	if s := v.Get("featured"); s != "" {
		b, err := strconv.ParseBool(s)
		if err != nil {
			fe.Add("featured", "Must be a valid boolean.")
		} else {
			q.Featured = &b
		}
	}
	if s := v.Get("to_price"); s != "" {
		p, err := money.Parse(s)
		if err != nil {
			fe.Add("to_price", err.Error())
		} else {
			q.ToPrice = &p
		}
	}
	if s := v.Get("ordering"); s != "" {
		for _, f := range strings.Split(s, ",") {
			f = strings.TrimSpace(f)
			if f == "" {
				continue
			}
			if _, ok := menuOrderColumns[strings.TrimPrefix(f, "-")]; !ok {
				fe.Add("ordering", fmt.Sprintf("Unknown ordering field %q.", f))
				continue
			}
			q.Ordering = append(q.Ordering, f)
		}
	}
	if s := v.Get("perpage"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 || n > MaxPerPage {
			fe.Add("perpage", fmt.Sprintf("Must be an integer between 1 and %d.", MaxPerPage))
		} else {
			q.PerPage = n
		}
	}
	if s := v.Get("page"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 || n > MaxPage {
			fe.Add("page", fmt.Sprintf("Must be an integer between 1 and %d.", MaxPage))
		} else {
			q.Page = n
		}
	}
	if err := fe.Err(); err != nil {
		return MenuQuery{}, err
	}
	return q, nil
}

// SQL renders the WHERE, ORDER BY and LIMIT/OFFSET tail of the menu item
// listing. Placeholders start at $1.
func (q MenuQuery) SQL() (string, []any) {
	var (
		conds []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if q.CategorySlug != "" {
		conds = append(conds, "c.slug = "+arg(q.CategorySlug))
	}
	if q.Featured != nil {
		conds = append(conds, "m.featured = "+arg(*q.Featured))
	}
	if q.ToPrice != nil {
		conds = append(conds, "m.price_cents <= "+arg(int64(*q.ToPrice)))
	}
	if q.Search != "" {
		conds = append(conds, "m.title ILIKE "+arg("%"+escapeLike(q.Search)+"%"))
	}

	var b strings.Builder
	if len(conds) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(conds, " AND "))
	}

	order := make([]string, 0, len(q.Ordering)+1)
	for _, f := range q.Ordering {
		dir := "ASC"
		if strings.HasPrefix(f, "-") {
			dir = "DESC"
			f = f[1:]
		}
		if col, ok := menuOrderColumns[f]; ok {
			order = append(order, col+" "+dir)
		}
	}
	order = append(order, "m.id ASC")
	b.WriteString(" ORDER BY ")
	b.WriteString(strings.Join(order, ", "))

	if q.PerPage > 0 {
		page := q.Page
		page = min(max(page, 1), MaxPage)
		b.WriteString(" LIMIT " + arg(q.PerPage))
		b.WriteString(" OFFSET " + arg((page-1)*q.PerPage))
	}
	return b.String(), args
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
