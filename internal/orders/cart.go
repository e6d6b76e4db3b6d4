package orders

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ariefcatur/little-lemon/internal/apperr"
	"github.com/ariefcatur/little-lemon/internal/money"
	"github.com/ariefcatur/little-lemon/internal/postgres"
)

type CartRepo struct{ DB *pgxpool.Pool }

const cartItemSelect = `
	SELECT ci.id, ci.user_id, ci.quantity, ci.unit_price_cents, ci.price_cents,
	       m.id, m.title, m.price_cents, m.featured, c.id, c.slug, c.title
	FROM cart_items ci
	JOIN menu_items m ON m.id = ci.menuitem_id
	JOIN categories c ON c.id = m.category_id`

func (r *CartRepo) ListCart(ctx context.Context, userID int64) ([]CartItem, error) {
	rows, err := r.DB.Query(ctx, cartItemSelect+` WHERE ci.user_id=$1 ORDER BY ci.id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []CartItem{}
	for rows.Next() {
		it, err := scanCartItem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

// ClearCart deletes every line owned by userID and reports how many went.
func (r *CartRepo) ClearCart(ctx context.Context, userID int64) (int64, error) {
	ct, err := r.DB.Exec(ctx, `DELETE FROM cart_items WHERE user_id=$1`, userID)
	if err != nil {
		return 0, err
	}
	return ct.RowsAffected(), nil
}

// AddToCart merges qty of menuItemID into the user's cart in one upsert:
// a new line copies the menu item's current price, an existing line keeps
// its unit price and grows. created is true for a new line.
func (r *CartRepo) AddToCart(ctx context.Context, userID, menuItemID int64, qty int) (item CartItem, created bool, err error) {
	var id int64
	err = r.DB.QueryRow(ctx, `
		INSERT INTO cart_items(user_id, menuitem_id, quantity, unit_price_cents, price_cents)
		SELECT $1::bigint, m.id, $3::int, m.price_cents, m.price_cents * $3::bigint
		FROM menu_items m WHERE m.id = $2::bigint
		ON CONFLICT (user_id, menuitem_id) DO UPDATE SET
			quantity    = cart_items.quantity + EXCLUDED.quantity,
			price_cents = cart_items.unit_price_cents * (cart_items.quantity::bigint + EXCLUDED.quantity)
		RETURNING id, (xmax = 0)`, userID, menuItemID, qty).Scan(&id, &created)
	if postgres.IsNoRows(err) {
		return CartItem{}, false, apperr.NotFound("menu item %d not found", menuItemID).Wrap(err)
	}
	if postgres.IsOutOfRange(err) {
		return CartItem{}, false, QuantityTooLarge(err)
	}
	if err != nil {
		return CartItem{}, false, fmt.Errorf("upsert cart item: %w", err)
	}
	item, err = scanCartItem(r.DB.QueryRow(ctx, cartItemSelect+` WHERE ci.id=$1`, id))
	if err != nil {
		return CartItem{}, false, fmt.Errorf("load cart item: %w", err)
	}
	return item, created, nil
}

// QuantityTooLarge is the validation error for a line that would grow past
// MaxQuantity.
func QuantityTooLarge(cause error) error {
	return &apperr.Error{
		Kind:    apperr.KindValidation,
		Message: "invalid input",
		Fields: map[string][]string{
			"quantity": {fmt.Sprintf("Ensure this value is less than or equal to %d.", MaxQuantity)},
		},
		Err: cause,
	}
}

func scanCartItem(row pgx.Row) (CartItem, error) {
	var (
		it                     CartItem
		unit, price, menuPrice int64
	)
	err := row.Scan(&it.ID, &it.UserID, &it.Quantity, &unit, &price,
		&it.MenuItem.ID, &it.MenuItem.Title, &menuPrice, &it.MenuItem.Featured,
		&it.MenuItem.Category.ID, &it.MenuItem.Category.Slug, &it.MenuItem.Category.Title)
	it.UnitPrice = money.Amount(unit)
	it.Price = money.Amount(price)
	it.MenuItem.Price = money.Amount(menuPrice)
	return it, err
}
