package orders_test

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ariefcatur/little-lemon/internal/apperr"
	"github.com/ariefcatur/little-lemon/internal/catalog"
	"github.com/ariefcatur/little-lemon/internal/money"
	"github.com/ariefcatur/little-lemon/internal/orders"
	"github.com/ariefcatur/little-lemon/internal/postgres"
	"github.com/ariefcatur/little-lemon/internal/users"
)

// Integration tests need a disposable database in TEST_POSTGRES_DSN.
func testDB(t *testing.T) *pgxpool.Pool {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("skipping integration test: TEST_POSTGRES_DSN not set")
	}
	ctx := context.Background()
	db, err := postgres.Connect(ctx, dsn, postgres.PoolConfig{MaxConns: 4})
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(db.Close)
	if _, err := postgres.Migrate(ctx, db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func TestCartAndCheckoutAgainstPostgres(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	suffix := fmt.Sprint(time.Now().UnixNano())

	u, err := (&users.Repo{DB: db}).CreateUser(ctx, users.NewUser{Username: "it-" + suffix, Password: "integration"})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	cats := &catalog.Repo{DB: db}
	slug, title := "it-"+suffix, "Integration"
	c, err := cats.CreateCategory(ctx, catalog.CategoryPatch{Slug: &slug, Title: &title})
	if err != nil {
		t.Fatalf("CreateCategory: %v", err)
	}
	price := money.Amount(1250)
	dish := "Lemon pasta"
	m, err := cats.CreateMenuItem(ctx, catalog.MenuItemPatch{Title: &dish, Price: &price, CategoryID: &c.ID})
	if err != nil {
		t.Fatalf("CreateMenuItem: %v", err)
	}

	cart := &orders.CartRepo{DB: db}
	if _, created, err := cart.AddToCart(ctx, u.ID, m.ID, 2); err != nil || !created {
		t.Fatalf("AddToCart = created %v, %v", created, err)
	}
	line, created, err := cart.AddToCart(ctx, u.ID, m.ID, 2)
	if err != nil || created {
		t.Fatalf("merge AddToCart = created %v, %v", created, err)
	}
	if line.Quantity != 4 || line.Price != 5000 {
		t.Fatalf("merged line = %+v", line)
	}
	if _, _, err := cart.AddToCart(ctx, u.ID, -1, 1); !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("unknown menu item err = %v", err)
	}

	repo := &orders.Repo{DB: db}
	o, err := repo.PlaceOrder(ctx, u.ID, orders.Today(time.Now()))
	if err != nil {
		t.Fatalf("PlaceOrder: %v", err)
	}
	if o.Total != 5000 || len(o.Items) != 1 || o.Items[0].Quantity != 4 {
		t.Fatalf("order = %+v", o)
	}
	if left, _ := cart.ListCart(ctx, u.ID); len(left) != 0 {
		t.Fatalf("cart still has %d lines", len(left))
	}
	if _, err := repo.PlaceOrder(ctx, u.ID, orders.Today(time.Now())); !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("empty cart err = %v", err)
	}

	if err := cats.DeleteMenuItem(ctx, m.ID); !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("deleting an ordered menu item err = %v", err)
	}
	if err := repo.DeleteOrder(ctx, o.ID); err != nil {
		t.Fatalf("DeleteOrder: %v", err)
	}
	if _, err := repo.GetOrder(ctx, o.ID); !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("deleted order err = %v", err)
	}
}

func TestCheckoutKeepsLinesAddedConcurrently(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	suffix := fmt.Sprint(time.Now().UnixNano())

	u, err := (&users.Repo{DB: db}).CreateUser(ctx, users.NewUser{Username: "race-" + suffix, Password: "integration"})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	cats := &catalog.Repo{DB: db}
	slug, title := "race-"+suffix, "Race"
	c, err := cats.CreateCategory(ctx, catalog.CategoryPatch{Slug: &slug, Title: &title})
	if err != nil {
		t.Fatalf("CreateCategory: %v", err)
	}
	const n = 40
	menu := make([]int64, n)
	for i := range menu {
		price := money.Amount(100 + i)
		dish := fmt.Sprintf("Dish %d", i)
		m, err := cats.CreateMenuItem(ctx, catalog.MenuItemPatch{Title: &dish, Price: &price, CategoryID: &c.ID})
		if err != nil {
			t.Fatalf("CreateMenuItem: %v", err)
		}
		menu[i] = m.ID
	}

	cart := &orders.CartRepo{DB: db}
	repo := &orders.Repo{DB: db}
	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		placed []orders.Order
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		for _, id := range menu {
			if _, _, err := cart.AddToCart(ctx, u.ID, id, 1); err != nil {
				t.Errorf("AddToCart(%d): %v", id, err)
			}
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < n; i++ {
			o, err := repo.PlaceOrder(ctx, u.ID, orders.Today(time.Now()))
			if apperr.Is(err, apperr.KindValidation) {
				continue
			}
			if err != nil {
				t.Errorf("PlaceOrder: %v", err)
				return
			}
			mu.Lock()
			placed = append(placed, o)
			mu.Unlock()
		}
	}()
	wg.Wait()

	seen := map[int64]int{}
	for _, o := range placed {
		for _, it := range o.Items {
			seen[it.MenuItemID] += it.Quantity
		}
	}
	left, err := cart.ListCart(ctx, u.ID)
	if err != nil {
		t.Fatalf("ListCart: %v", err)
	}
	for _, it := range left {
		seen[it.MenuItem.ID] += it.Quantity
	}
	for _, id := range menu {
		if seen[id] != 1 {
			t.Fatalf("menu item %d accounted %d times, want 1", id, seen[id])
		}
	}
}

func TestCartQuantityBeyondSmallRanges(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	suffix := fmt.Sprint(time.Now().UnixNano())

	u, err := (&users.Repo{DB: db}).CreateUser(ctx, users.NewUser{Username: "bulk-" + suffix, Password: "integration"})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	cats := &catalog.Repo{DB: db}
	slug, title := "bulk-"+suffix, "Bulk"
	c, err := cats.CreateCategory(ctx, catalog.CategoryPatch{Slug: &slug, Title: &title})
	if err != nil {
		t.Fatalf("CreateCategory: %v", err)
	}
	price := money.Max
	dish := "Banquet"
	m, err := cats.CreateMenuItem(ctx, catalog.MenuItemPatch{Title: &dish, Price: &price, CategoryID: &c.ID})
	if err != nil {
		t.Fatalf("CreateMenuItem: %v", err)
	}

	cart := &orders.CartRepo{DB: db}
	line, _, err := cart.AddToCart(ctx, u.ID, m.ID, 40000)
	if err != nil {
		t.Fatalf("AddToCart: %v", err)
	}
	if line.Quantity != 40000 || line.Price != money.Max*40000 {
		t.Fatalf("line = %+v", line)
	}
	if _, _, err := cart.AddToCart(ctx, u.ID, m.ID, orders.MaxQuantity); !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("overflowing merge err = %v", err)
	}

	o, err := (&orders.Repo{DB: db}).PlaceOrder(ctx, u.ID, orders.Today(time.Now()))
	if err != nil {
		t.Fatalf("PlaceOrder: %v", err)
	}
	if o.Total != money.Max*40000 {
		t.Fatalf("total = %s", o.Total)
	}
}
