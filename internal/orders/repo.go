package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ariefcatur/little-lemon/internal/apperr"
	"github.com/ariefcatur/little-lemon/internal/money"
	"github.com/ariefcatur/little-lemon/internal/postgres"
)

var ErrEmptyCart = errors.New("cart is empty")

type Repo struct{ DB *pgxpool.Pool }

const orderSelect = `SELECT o.id, o.user_id, o.delivery_crew_id, o.status, o.total_cents, o.date FROM orders o`

// PlaceOrder turns the user's cart into an order in one transaction: the
// cart rows are locked, copied into order_items and then deleted by id. An
// empty cart is a validation error and writes nothing.
func (r *Repo) PlaceOrder(ctx context.Context, userID int64, date Date) (Order, error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Order{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	rows, err := tx.Query(ctx, `
		SELECT ci.id, ci.menuitem_id, m.title, ci.quantity, ci.unit_price_cents, ci.price_cents
		FROM cart_items ci JOIN menu_items m ON m.id = ci.menuitem_id
		WHERE ci.user_id=$1
		ORDER BY ci.id
		FOR UPDATE OF ci`, userID)
	if err != nil {
		return Order{}, err
	}
	var (
		items   []OrderItem
		lineIDs []int64
		total   money.Amount
	)
	for rows.Next() {
		var (
			it          OrderItem
			lineID      int64
			unit, price int64
		)
		if err := rows.Scan(&lineID, &it.MenuItemID, &it.Title, &it.Quantity, &unit, &price); err != nil {
			rows.Close()
			return Order{}, err
		}
		it.UnitPrice, it.Price = money.Amount(unit), money.Amount(price)
		total += it.Price
		items = append(items, it)
		lineIDs = append(lineIDs, lineID)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return Order{}, err
	}
	if len(items) == 0 {
		return Order{}, apperr.Validation("no items in cart").Wrap(ErrEmptyCart)
	}

	o := Order{UserID: userID, Status: StatusPending, Total: total, Date: date}
	if err := tx.QueryRow(ctx, `
		INSERT INTO orders(user_id, status, total_cents, date)
		VALUES ($1, FALSE, $2, $3) RETURNING id`,
		userID, int64(total), date.Time).Scan(&o.ID); err != nil {
		return Order{}, fmt.Errorf("insert order: %w", err)
	}

	for i := range items {
		it := &items[i]
		if err := tx.QueryRow(ctx, `
			INSERT INTO order_items(order_id, menuitem_id, quantity, unit_price_cents, price_cents)
			VALUES ($1, $2, $3, $4, $5) RETURNING id`,
			o.ID, it.MenuItemID, it.Quantity, int64(it.UnitPrice), int64(it.Price)).Scan(&it.ID); err != nil {
			return Order{}, fmt.Errorf("insert order item: %w", err)
		}
	}

	// Only the locked lines: one committed after the SELECT stays in the cart.
	if _, err := tx.Exec(ctx, `DELETE FROM cart_items WHERE id = ANY($1)`, lineIDs); err != nil {
		return Order{}, fmt.Errorf("clear cart: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return Order{}, err
	}
	o.Items = items
	return o, nil
}

func (r *Repo) ListOrders(ctx context.Context, f Filter) ([]Order, error) {
	tail, args := f.SQL()
	rows, err := r.DB.Query(ctx, orderSelect+tail, args...)
	if err != nil {
		return nil, err
	}
	out := []Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		out = append(out, o)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := r.attachItems(ctx, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Repo) GetOrder(ctx context.Context, id int64) (Order, error) {
	o, err := scanOrder(r.DB.QueryRow(ctx, orderSelect+` WHERE o.id=$1`, id))
	if postgres.IsNoRows(err) {
		return Order{}, apperr.NotFound("order %d not found", id).Wrap(err)
	}
	if err != nil {
		return Order{}, err
	}
	list := []Order{o}
	if err := r.attachItems(ctx, list); err != nil {
		return Order{}, err
	}
	return list[0], nil
}

// UpdateOrder applies p. Authorization and delivery crew membership are
// checked by the caller.
func (r *Repo) UpdateOrder(ctx context.Context, id int64, p Patch) (Order, error) {
	var (
		status *bool
		total  *int64
		crew   *int64
	)
	if p.Status != nil {
		s := bool(*p.Status)
		status = &s
	}
	if p.Total != nil {
		t := int64(*p.Total)
		total = &t
	}
	if p.DeliveryCrew.Set && p.DeliveryCrew.Valid {
		crew = &p.DeliveryCrew.Value
	}
	o, err := scanOrder(r.DB.QueryRow(ctx, `
		UPDATE orders o SET
			status           = COALESCE($2::boolean, o.status),
			delivery_crew_id = CASE WHEN $3::boolean THEN $4::bigint ELSE o.delivery_crew_id END,
			total_cents      = COALESCE($5::bigint, o.total_cents)
		WHERE o.id=$1
		RETURNING o.id, o.user_id, o.delivery_crew_id, o.status, o.total_cents, o.date`,
		id, status, p.DeliveryCrew.Set, crew, total))
	if postgres.IsNoRows(err) {
		return Order{}, apperr.NotFound("order %d not found", id).Wrap(err)
	}
	if postgres.IsForeignKeyViolation(err) {
		return Order{}, apperr.Validation("user %d does not exist", p.DeliveryCrew.Value).Wrap(err)
	}
	if err != nil {
		return Order{}, fmt.Errorf("update order: %w", err)
	}
	list := []Order{o}
	if err := r.attachItems(ctx, list); err != nil {
		return Order{}, err
	}
	return list[0], nil
}

// DeleteOrder removes the order; its items go with it by cascade.
func (r *Repo) DeleteOrder(ctx context.Context, id int64) error {
	ct, err := r.DB.Exec(ctx, `DELETE FROM orders WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return apperr.NotFound("order %d not found", id)
	}
	return nil
}

func (r *Repo) attachItems(ctx context.Context, list []Order) error {
	if len(list) == 0 {
		return nil
	}
	ids := make([]int64, len(list))
	index := make(map[int64]int, len(list))
	for i, o := range list {
		ids[i] = o.ID
		index[o.ID] = i
		list[i].Items = []OrderItem{}
	}
	rows, err := r.DB.Query(ctx, `
		SELECT oi.order_id, oi.id, oi.menuitem_id, m.title, oi.quantity, oi.unit_price_cents, oi.price_cents
		FROM order_items oi JOIN menu_items m ON m.id = oi.menuitem_id
		WHERE oi.order_id = ANY($1)
		ORDER BY oi.id`, ids)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			orderID     int64
			it          OrderItem
			unit, price int64
		)
		if err := rows.Scan(&orderID, &it.ID, &it.MenuItemID, &it.Title, &it.Quantity, &unit, &price); err != nil {
			return err
		}
		it.UnitPrice, it.Price = money.Amount(unit), money.Amount(price)
		if i, ok := index[orderID]; ok {
			list[i].Items = append(list[i].Items, it)
		}
	}
	return rows.Err()
}

func scanOrder(row pgx.Row) (Order, error) {
	var (
		o      Order
		status bool
		total  int64
		date   time.Time
	)
	err := row.Scan(&o.ID, &o.UserID, &o.DeliveryCrewID, &status, &total, &date)
	o.Status = Status(status)
	o.Total = money.Amount(total)
	o.Date = Date{date}
	return o, err
}
