package httpx

import (
	"context"
	"time"

	"github.com/ariefcatur/little-lemon/internal/catalog"
	"github.com/ariefcatur/little-lemon/internal/orders"
	"github.com/ariefcatur/little-lemon/internal/users"
)

type CatalogStore interface {
	ListCategories(ctx context.Context) ([]catalog.Category, error)
	GetCategory(ctx context.Context, id int64) (catalog.Category, error)
	CreateCategory(ctx context.Context, p catalog.CategoryPatch) (catalog.Category, error)
	UpdateCategory(ctx context.Context, id int64, p catalog.CategoryPatch) (catalog.Category, error)
	DeleteCategory(ctx context.Context, id int64) error

	ListMenuItems(ctx context.Context, q catalog.MenuQuery) ([]catalog.MenuItem, error)
	GetMenuItem(ctx context.Context, id int64) (catalog.MenuItem, error)
	CreateMenuItem(ctx context.Context, p catalog.MenuItemPatch) (catalog.MenuItem, error)
	UpdateMenuItem(ctx context.Context, id int64, p catalog.MenuItemPatch) (catalog.MenuItem, error)
	DeleteMenuItem(ctx context.Context, id int64) error
}

type CartStore interface {
	ListCart(ctx context.Context, userID int64) ([]orders.CartItem, error)
	ClearCart(ctx context.Context, userID int64) (int64, error)
	AddToCart(ctx context.Context, userID, menuItemID int64, qty int) (orders.CartItem, bool, error)
}

type OrderStore interface {
	PlaceOrder(ctx context.Context, userID int64, date orders.Date) (orders.Order, error)
	ListOrders(ctx context.Context, f orders.Filter) ([]orders.Order, error)
	GetOrder(ctx context.Context, id int64) (orders.Order, error)
	UpdateOrder(ctx context.Context, id int64, p orders.Patch) (orders.Order, error)
	DeleteOrder(ctx context.Context, id int64) error
}

type UserStore interface {
	CreateUser(ctx context.Context, n users.NewUser) (users.User, error)
	GetUser(ctx context.Context, id int64) (users.User, error)
	GetUserByUsername(ctx context.Context, username string) (users.User, error)
	Credentials(ctx context.Context, username string) (users.User, string, error)
	UserByToken(ctx context.Context, key string) (users.User, error)
	IssueToken(ctx context.Context, userID int64, key string) (string, error)
	DeleteToken(ctx context.Context, key string) error

	InGroup(ctx context.Context, userID int64, group string) (bool, error)
	ListMembers(ctx context.Context, group string) ([]users.User, error)
	AddToGroup(ctx context.Context, userID int64, group string) error
	RemoveFromGroup(ctx context.Context, userID int64, group string) error
}

type RoleSource interface {
	GroupsOf(ctx context.Context, userID int64) ([]string, error)
}

type RoleInvalidator interface {
	Invalidate(ctx context.Context, userID int64) error
}

type OrderEvents interface {
	OrderPlaced(ctx context.Context, o orders.Order, traceID string) error
	OrderUpdated(ctx context.Context, o orders.Order, fields []string, actorID int64, traceID string) error
	OrderDeleted(ctx context.Context, orderID, actorID int64, traceID string) error
}

type Limiter interface {
	Allow(ctx context.Context, scope, subject string, limit int) (bool, time.Duration, error)
}

type nopEvents struct{}

func (nopEvents) OrderPlaced(context.Context, orders.Order, string) error { return nil }
func (nopEvents) OrderUpdated(context.Context, orders.Order, []string, int64, string) error {
	return nil
}
func (nopEvents) OrderDeleted(context.Context, int64, int64, string) error { return nil }

type nopInvalidator struct{}

func (nopInvalidator) Invalidate(context.Context, int64) error { return nil }
