package catalog

import (
	"net/url"
	"reflect"
	"testing"

	"github.com/ariefcatur/little-lemon/internal/apperr"
)

func TestParseMenuQuery(t *testing.T) {
	v := url.Values{}
	v.Set("category", "mains")
	v.Set("featured", "true")
	v.Set("to_price", "9.5")
	v.Set("search", "pasta")
	v.Set("ordering", "-price,title")
	v.Set("perpage", "5")
	v.Set("page", "2")

	q, err := ParseMenuQuery(v)
	if err != nil {
		t.Fatalf("ParseMenuQuery: %v", err)
	}
	if q.CategorySlug != "mains" || q.Search != "pasta" || q.PerPage != 5 || q.Page != 2 {
		t.Fatalf("unexpected query %+v", q)
	}
	if q.Featured == nil || !*q.Featured {
		t.Fatalf("featured not parsed")
	}
	if q.ToPrice == nil || *q.ToPrice != 950 {
		t.Fatalf("to_price = %v", q.ToPrice)
	}
	if !reflect.DeepEqual(q.Ordering, []string{"-price", "title"}) {
		t.Fatalf("ordering = %v", q.Ordering)
	}
}

func TestParseMenuQueryRejects(t *testing.T) {
	tests := []url.Values{
		{"ordering": {"calories"}},
		{"perpage": {"0"}},
		{"perpage": {"101"}},
		{"page": {"-1"}},
		{"page": {"1000001"}},
		{"page": {"9223372036854775807"}},
		{"featured": {"maybe"}},
		{"to_price": {"cheap"}},
	}
	for _, v := range tests {
		_, err := ParseMenuQuery(v)
		if !apperr.Is(err, apperr.KindValidation) {
			t.Errorf("ParseMenuQuery(%v) err = %v, want validation", v, err)
		}
	}
}

func TestMenuQuerySQLClampsPage(t *testing.T) {
	_, args := MenuQuery{PerPage: MaxPerPage, Page: MaxPage * 10}.SQL()
	off, ok := args[len(args)-1].(int)
	if !ok || off != (MaxPage-1)*MaxPerPage {
		t.Fatalf("offset arg = %v, want %d", args[len(args)-1], (MaxPage-1)*MaxPerPage)
	}
}

func TestMenuQuerySQL(t *testing.T) {
	featured := true
	q := MenuQuery{
		CategorySlug: "mains",
		Featured:     &featured,
		Search:       "50%_off",
		Ordering:     []string{"-price"},
		PerPage:      10,
		Page:         3,
	}
	sql, args := q.SQL()

	wantSQL := " WHERE c.slug = $1 AND m.featured = $2 AND m.title ILIKE $3" +
		" ORDER BY m.price_cents DESC, m.id ASC LIMIT $4 OFFSET $5"
	if sql != wantSQL {
		t.Fatalf("sql =\n%q\nwant\n%q", sql, wantSQL)
	}
	wantArgs := []any{"mains", true, `%50\%\_off%`, 10, 20}
	if !reflect.DeepEqual(args, wantArgs) {
		t.Fatalf("args = %#v, want %#v", args, wantArgs)
	}
}

func TestMenuQuerySQLEmpty(t *testing.T) {
	sql, args := MenuQuery{}.SQL()
	if sql != " ORDER BY m.id ASC" || len(args) != 0 {
		t.Fatalf("empty query = %q %v", sql, args)
	}
}

func TestValidatePatches(t *testing.T) {
	slug, bad, title := "mains", "main dishes", "Mains"

	if err := (CategoryPatch{Slug: &slug, Title: &title}).Validate(true); err != nil {
		t.Fatalf("valid category rejected: %v", err)
	}
	if err := (CategoryPatch{Slug: &bad, Title: &title}).Validate(true); !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("slug with space should fail, got %v", err)
	}
	if err := (CategoryPatch{Title: &title}).Validate(true); err == nil {
		t.Fatalf("missing slug should fail on full validation")
	}
	if err := (CategoryPatch{Title: &title}).Validate(false); err != nil {
		t.Fatalf("partial update should allow missing slug: %v", err)
	}

	if err := (MenuItemPatch{Title: &title}).Validate(true); err == nil {
		t.Fatalf("menu item without price and category should fail")
	}
	if err := (MenuItemPatch{}).Validate(false); err != nil {
		t.Fatalf("empty patch is valid: %v", err)
	}
}
