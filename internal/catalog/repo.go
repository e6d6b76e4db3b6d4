package catalog

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ariefcatur/little-lemon/internal/apperr"
	"github.com/ariefcatur/little-lemon/internal/money"
	"github.com/ariefcatur/little-lemon/internal/postgres"
)

type Repo struct{ DB *pgxpool.Pool }

const menuItemSelect = `
	SELECT m.id, m.title, m.price_cents, m.featured, c.id, c.slug, c.title
	FROM menu_items m JOIN categories c ON c.id = m.category_id`

func (r *Repo) ListCategories(ctx context.Context) ([]Category, error) {
	rows, err := r.DB.Query(ctx, `SELECT id, slug, title FROM categories ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Category{}
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.ID, &c.Slug, &c.Title); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *Repo) GetCategory(ctx context.Context, id int64) (Category, error) {
	var c Category
	err := r.DB.QueryRow(ctx, `SELECT id, slug, title FROM categories WHERE id=$1`, id).
		Scan(&c.ID, &c.Slug, &c.Title)
	if postgres.IsNoRows(err) {
		return Category{}, apperr.NotFound("category %d not found", id).Wrap(err)
	}
	return c, err
}

// CreateCategory expects a patch that passed Validate(true).
func (r *Repo) CreateCategory(ctx context.Context, p CategoryPatch) (Category, error) {
	c := Category{Slug: strings.TrimSpace(*p.Slug), Title: strings.TrimSpace(*p.Title)}
	err := r.DB.QueryRow(ctx, `INSERT INTO categories(slug, title) VALUES ($1, $2) RETURNING id`,
		c.Slug, c.Title).Scan(&c.ID)
	if err != nil {
		return Category{}, categoryWriteErr(err)
	}
	return c, nil
}

func (r *Repo) UpdateCategory(ctx context.Context, id int64, p CategoryPatch) (Category, error) {
	var c Category
	err := r.DB.QueryRow(ctx, `
		UPDATE categories SET
			slug  = COALESCE($2, slug),
			title = COALESCE($3, title)
		WHERE id=$1
		RETURNING id, slug, title`, id, trimmed(p.Slug), trimmed(p.Title)).
		Scan(&c.ID, &c.Slug, &c.Title)
	if postgres.IsNoRows(err) {
		return Category{}, apperr.NotFound("category %d not found", id).Wrap(err)
	}
	if err != nil {
		return Category{}, categoryWriteErr(err)
	}
	return c, nil
}

func (r *Repo) DeleteCategory(ctx context.Context, id int64) error {
	ct, err := r.DB.Exec(ctx, `DELETE FROM categories WHERE id=$1`, id)
	if postgres.IsForeignKeyViolation(err) {
		return apperr.Validation("category %d is still used by menu items", id).Wrap(err)
	}
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return apperr.NotFound("category %d not found", id)
	}
	return nil
}

func (r *Repo) ListMenuItems(ctx context.Context, q MenuQuery) ([]MenuItem, error) {
	tail, args := q.SQL()
	rows, err := r.DB.Query(ctx, menuItemSelect+tail, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []MenuItem{}
	for rows.Next() {
		m, err := scanMenuItem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *Repo) GetMenuItem(ctx context.Context, id int64) (MenuItem, error) {
	m, err := scanMenuItem(r.DB.QueryRow(ctx, menuItemSelect+` WHERE m.id=$1`, id))
	if postgres.IsNoRows(err) {
		return MenuItem{}, apperr.NotFound("menu item %d not found", id).Wrap(err)
	}
	return m, err
}

// CreateMenuItem expects a patch that passed Validate(true).
func (r *Repo) CreateMenuItem(ctx context.Context, p MenuItemPatch) (MenuItem, error) {
	featured := false
	if p.Featured != nil {
		featured = *p.Featured
	}
	var id int64
	err := r.DB.QueryRow(ctx, `
		INSERT INTO menu_items(title, price_cents, featured, category_id)
		VALUES ($1, $2, $3, $4) RETURNING id`,
		strings.TrimSpace(*p.Title), int64(*p.Price), featured, *p.CategoryID).Scan(&id)
	if err != nil {
		return MenuItem{}, menuItemWriteErr(err, p)
	}
	return r.GetMenuItem(ctx, id)
}

func (r *Repo) UpdateMenuItem(ctx context.Context, id int64, p MenuItemPatch) (MenuItem, error) {
	var price *int64
	if p.Price != nil {
		v := int64(*p.Price)
		price = &v
	}
	ct, err := r.DB.Exec(ctx, `
		UPDATE menu_items SET
			title       = COALESCE($2, title),
			price_cents = COALESCE($3, price_cents),
			featured    = COALESCE($4, featured),
			category_id = COALESCE($5, category_id)
		WHERE id=$1`, id, trimmed(p.Title), price, p.Featured, p.CategoryID)
	if err != nil {
		return MenuItem{}, menuItemWriteErr(err, p)
	}
	if ct.RowsAffected() == 0 {
		return MenuItem{}, apperr.NotFound("menu item %d not found", id)
	}
	return r.GetMenuItem(ctx, id)
}

func (r *Repo) DeleteMenuItem(ctx context.Context, id int64) error {
	ct, err := r.DB.Exec(ctx, `DELETE FROM menu_items WHERE id=$1`, id)
	if postgres.IsForeignKeyViolation(err) {
		return apperr.Validation("menu item %d is referenced by orders", id).Wrap(err)
	}
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return apperr.NotFound("menu item %d not found", id)
	}
	return nil
}

func scanMenuItem(row pgx.Row) (MenuItem, error) {
	var (
		m     MenuItem
		cents int64
	)
	err := row.Scan(&m.ID, &m.Title, &cents, &m.Featured, &m.Category.ID, &m.Category.Slug, &m.Category.Title)
	m.Price = money.Amount(cents)
	return m, err
}

func categoryWriteErr(err error) error {
	if postgres.IsUniqueViolation(err) {
		e := &apperr.Error{Kind: apperr.KindValidation, Message: "invalid input",
			Fields: map[string][]string{"slug": {"category with this slug already exists."}}}
		return e.Wrap(err)
	}
	return fmt.Errorf("write category: %w", err)
}

func menuItemWriteErr(err error, p MenuItemPatch) error {
	if postgres.IsForeignKeyViolation(err) && p.CategoryID != nil {
		msg := fmt.Sprintf("Invalid pk \"%d\" - object does not exist.", *p.CategoryID)
		e := &apperr.Error{Kind: apperr.KindValidation, Message: "invalid input",
			Fields: map[string][]string{"category_id": {msg}}}
		return e.Wrap(err)
	}
	return fmt.Errorf("write menu item: %w", err)
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	t := strings.TrimSpace(*s)
	return &t
}
