package httpx

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/ariefcatur/little-lemon/internal/apperr"
	"github.com/ariefcatur/little-lemon/internal/auth"
	"github.com/ariefcatur/little-lemon/internal/catalog"
	"github.com/ariefcatur/little-lemon/internal/orders"
	"github.com/ariefcatur/little-lemon/internal/users"
)

// memStore backs every store interface with maps guarded by one mutex.
type memStore struct {
	mu  sync.Mutex
	seq map[string]int64

	categories map[int64]catalog.Category
	items      map[int64]catalog.MenuItem
	cart       []orders.CartItem
	orders     map[int64]orders.Order

	users     map[int64]users.User
	passwords map[int64]string
	tokens    map[string]int64
	groups    map[int64][]string
}

func newMemStore() *memStore {
	return &memStore{
		seq:        map[string]int64{},
		categories: map[int64]catalog.Category{},
		items:      map[int64]catalog.MenuItem{},
		orders:     map[int64]orders.Order{},
		users:      map[int64]users.User{},
		passwords:  map[int64]string{},
		tokens:     map[string]int64{},
		groups:     map[int64][]string{},
	}
}

// id hands out ids per table, like a serial column.
func (s *memStore) id(table string) int64 {
	s.seq[table]++
	return s.seq[table]
}

// catalog

func (s *memStore) ListCategories(context.Context) ([]catalog.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []catalog.Category{}
	for _, c := range s.categories {
		out = append(out, c)
	}
	slices.SortFunc(out, func(a, b catalog.Category) int { return int(a.ID - b.ID) })
	return out, nil
}

func (s *memStore) GetCategory(_ context.Context, id int64) (catalog.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.categories[id]
	if !ok {
		return catalog.Category{}, apperr.NotFound("category %d not found", id)
	}
	return c, nil
}

func (s *memStore) CreateCategory(_ context.Context, p catalog.CategoryPatch) (catalog.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := catalog.Category{ID: s.id("categories"), Slug: *p.Slug, Title: *p.Title}
	s.categories[c.ID] = c
	return c, nil
}

func (s *memStore) UpdateCategory(_ context.Context, id int64, p catalog.CategoryPatch) (catalog.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.categories[id]
	if !ok {
		return catalog.Category{}, apperr.NotFound("category %d not found", id)
	}
	if p.Slug != nil {
		c.Slug = *p.Slug
	}
	if p.Title != nil {
		c.Title = *p.Title
	}
	s.categories[id] = c
	return c, nil
}

func (s *memStore) DeleteCategory(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.categories[id]; !ok {
		return apperr.NotFound("category %d not found", id)
	}
	for _, m := range s.items {
		if m.Category.ID == id {
			return apperr.Validation("category %d is still used by menu items", id)
		}
	}
	delete(s.categories, id)
	return nil
}

func (s *memStore) ListMenuItems(_ context.Context, q catalog.MenuQuery) ([]catalog.MenuItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []catalog.MenuItem{}
	for _, m := range s.items {
		if q.CategorySlug != "" && m.Category.Slug != q.CategorySlug {
			continue
		}
		out = append(out, m)
	}
	slices.SortFunc(out, func(a, b catalog.MenuItem) int { return int(a.ID - b.ID) })
	return out, nil
}

func (s *memStore) GetMenuItem(_ context.Context, id int64) (catalog.MenuItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.items[id]
	if !ok {
		return catalog.MenuItem{}, apperr.NotFound("menu item %d not found", id)
	}
	return m, nil
}

func (s *memStore) CreateMenuItem(_ context.Context, p catalog.MenuItemPatch) (catalog.MenuItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.categories[*p.CategoryID]
	if !ok {
		return catalog.MenuItem{}, badCategory(*p.CategoryID)
	}
	m := catalog.MenuItem{ID: s.id("menu_items"), Title: *p.Title, Price: *p.Price, Category: c}
	if p.Featured != nil {
		m.Featured = *p.Featured
	}
	s.items[m.ID] = m
	return m, nil
}

func (s *memStore) UpdateMenuItem(_ context.Context, id int64, p catalog.MenuItemPatch) (catalog.MenuItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.items[id]
	if !ok {
		return catalog.MenuItem{}, apperr.NotFound("menu item %d not found", id)
	}
	if p.CategoryID != nil {
		c, ok := s.categories[*p.CategoryID]
		if !ok {
			return catalog.MenuItem{}, badCategory(*p.CategoryID)
		}
		m.Category = c
	}
	if p.Title != nil {
		m.Title = *p.Title
	}
	if p.Price != nil {
		m.Price = *p.Price
	}
	if p.Featured != nil {
		m.Featured = *p.Featured
	}
	s.items[id] = m
	return m, nil
}

func (s *memStore) DeleteMenuItem(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[id]; !ok {
		return apperr.NotFound("menu item %d not found", id)
	}
	delete(s.items, id)
	return nil
}

func badCategory(id int64) error {
	return &apperr.Error{Kind: apperr.KindValidation, Message: "invalid input",
		Fields: map[string][]string{"category_id": {fmt.Sprintf("Invalid pk \"%d\" - object does not exist.", id)}}}
}

// cart

func (s *memStore) ListCart(_ context.Context, userID int64) ([]orders.CartItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []orders.CartItem{}
	for _, it := range s.cart {
		if it.UserID == userID {
			out = append(out, it)
		}
	}
	return out, nil
}

func (s *memStore) ClearCart(_ context.Context, userID int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	kept := s.cart[:0]
	for _, it := range s.cart {
		if it.UserID == userID {
			n++
			continue
		}
		kept = append(kept, it)
	}
	s.cart = kept
	return n, nil
}

func (s *memStore) AddToCart(_ context.Context, userID, menuItemID int64, qty int) (orders.CartItem, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.items[menuItemID]
	if !ok {
		return orders.CartItem{}, false, apperr.NotFound("menu item %d not found", menuItemID)
	}
	for i := range s.cart {
		it := &s.cart[i]
		if it.UserID == userID && it.MenuItem.ID == menuItemID {
			if int64(it.Quantity)+int64(qty) > orders.MaxQuantity {
				return orders.CartItem{}, false, orders.QuantityTooLarge(nil)
			}
			it.Quantity += qty
			it.Price = it.UnitPrice.Mul(it.Quantity)
			return *it, false, nil
		}
	}
	it := orders.CartItem{ID: s.id("cart_items"), UserID: userID, MenuItem: m, Quantity: qty, UnitPrice: m.Price, Price: m.Price.Mul(qty)}
	s.cart = append(s.cart, it)
	return it, true, nil
}

// orders

func (s *memStore) PlaceOrder(_ context.Context, userID int64, date orders.Date) (orders.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o := orders.Order{UserID: userID, Date: date, Items: []orders.OrderItem{}}
	kept := []orders.CartItem{}
	for _, it := range s.cart {
		if it.UserID != userID {
			kept = append(kept, it)
			continue
		}
		o.Items = append(o.Items, orders.OrderItem{
			ID: s.id("order_items"), MenuItemID: it.MenuItem.ID, Title: it.MenuItem.Title,
			Quantity: it.Quantity, UnitPrice: it.UnitPrice, Price: it.Price,
		})
		o.Total += it.Price
	}
	if len(o.Items) == 0 {
		return orders.Order{}, apperr.Validation("no items in cart").Wrap(orders.ErrEmptyCart)
	}
	o.ID = s.id("orders")
	s.orders[o.ID] = o
	s.cart = kept
	return o, nil
}

func (s *memStore) ListOrders(_ context.Context, f orders.Filter) ([]orders.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []orders.Order{}
	for _, o := range s.orders {
		if f.UserID != nil && o.UserID != *f.UserID {
			continue
		}
		if f.DeliveryCrewID != nil && (o.DeliveryCrewID == nil || *o.DeliveryCrewID != *f.DeliveryCrewID) {
			continue
		}
		if f.Status != nil && o.Status != *f.Status {
			continue
		}
		out = append(out, o)
	}
	slices.SortFunc(out, func(a, b orders.Order) int { return int(a.ID - b.ID) })
	return out, nil
}

func (s *memStore) GetOrder(_ context.Context, id int64) (orders.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return orders.Order{}, apperr.NotFound("order %d not found", id)
	}
	return o, nil
}

func (s *memStore) UpdateOrder(_ context.Context, id int64, p orders.Patch) (orders.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return orders.Order{}, apperr.NotFound("order %d not found", id)
	}
	if p.Status != nil {
		o.Status = *p.Status
	}
	if p.Total != nil {
		o.Total = *p.Total
	}
	if p.DeliveryCrew.Set {
		if p.DeliveryCrew.Valid {
			v := p.DeliveryCrew.Value
			o.DeliveryCrewID = &v
		} else {
			o.DeliveryCrewID = nil
		}
	}
	s.orders[id] = o
	return o, nil
}

func (s *memStore) DeleteOrder(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.orders[id]; !ok {
		return apperr.NotFound("order %d not found", id)
	}
	delete(s.orders, id)
	return nil
}

// users

func (s *memStore) CreateUser(_ context.Context, n users.NewUser) (users.User, error) {
	hash, err := auth.HashPassword(n.Password)
	if err != nil {
		return users.User{}, apperr.Validation("%v", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Username == n.Username {
			return users.User{}, &apperr.Error{Kind: apperr.KindValidation, Message: "invalid input",
				Fields: map[string][]string{"username": {"A user with that username already exists."}}}
		}
	}
	u := users.User{ID: s.id("users"), Username: n.Username, Email: n.Email, IsStaff: n.IsStaff, IsSuperuser: n.IsSuperuser}
	s.users[u.ID] = u
	s.passwords[u.ID] = hash
	return u, nil
}

// addUser registers a user with a token and the given groups.
func (s *memStore) addUser(username, token string, groups ...string) users.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := users.User{ID: s.id("users"), Username: username, Email: username + "@example.com"}
	s.users[u.ID] = u
	s.tokens[token] = u.ID
	s.groups[u.ID] = append([]string{}, groups...)
	return u
}

func (s *memStore) GetUser(_ context.Context, id int64) (users.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return users.User{}, apperr.NotFound("user %d not found", id)
	}
	return u, nil
}

func (s *memStore) GetUserByUsername(_ context.Context, username string) (users.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Username == username {
			return u, nil
		}
	}
	return users.User{}, apperr.NotFound("user %q not found", username)
}

func (s *memStore) Credentials(ctx context.Context, username string) (users.User, string, error) {
	u, err := s.GetUserByUsername(ctx, username)
	if err != nil {
		return users.User{}, "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return u, s.passwords[u.ID], nil
}

func (s *memStore) UserByToken(_ context.Context, key string) (users.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.tokens[key]
	if !ok {
		return users.User{}, apperr.Unauthenticated("Invalid token.")
	}
	return s.users[id], nil
}

func (s *memStore) IssueToken(_ context.Context, userID int64, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, id := range s.tokens {
		if id == userID {
			return k, nil
		}
	}
	s.tokens[key] = userID
	return key, nil
}

func (s *memStore) DeleteToken(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tokens, key)
	return nil
}

func (s *memStore) GroupsOf(_ context.Context, userID int64) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string{}, s.groups[userID]...), nil
}

func (s *memStore) InGroup(_ context.Context, userID int64, group string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Contains(s.groups[userID], group), nil
}

func (s *memStore) ListMembers(_ context.Context, group string) ([]users.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []users.User{}
	for id, gs := range s.groups {
		if slices.Contains(gs, group) {
			out = append(out, s.users[id])
		}
	}
	slices.SortFunc(out, func(a, b users.User) int { return int(a.ID - b.ID) })
	return out, nil
}

func (s *memStore) AddToGroup(_ context.Context, userID int64, group string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !slices.Contains(s.groups[userID], group) {
		s.groups[userID] = append(s.groups[userID], group)
	}
	return nil
}

func (s *memStore) RemoveFromGroup(_ context.Context, userID int64, group string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.groups[userID] = slices.DeleteFunc(s.groups[userID], func(g string) bool { return g == group })
	return nil
}

// recorder captures published events and role invalidations.
type recorder struct {
	mu          sync.Mutex
	events      []string
	fields      [][]string
	invalidated []int64
	traceIDs    []string
}

func (r *recorder) OrderPlaced(_ context.Context, o orders.Order, traceID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.traceIDs = append(r.traceIDs, traceID)
	r.events = append(r.events, fmt.Sprintf("%s:%d", orders.EventOrderPlaced, o.ID))
	return nil
}

func (r *recorder) OrderUpdated(_ context.Context, o orders.Order, fields []string, _ int64, traceID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.traceIDs = append(r.traceIDs, traceID)
	r.events = append(r.events, fmt.Sprintf("%s:%d", orders.EventOrderUpdated, o.ID))
	r.fields = append(r.fields, fields)
	return nil
}

func (r *recorder) OrderDeleted(_ context.Context, orderID, _ int64, traceID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.traceIDs = append(r.traceIDs, traceID)
	r.events = append(r.events, fmt.Sprintf("%s:%d", orders.EventOrderDeleted, orderID))
	return nil
}

func (r *recorder) Invalidate(_ context.Context, userID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.invalidated = append(r.invalidated, userID)
	return nil
}

// countingLimiter allows limit requests per scope and subject.
type countingLimiter struct {
	mu     sync.Mutex
	counts map[string]int
}

func (l *countingLimiter) Allow(_ context.Context, scope, subject string, limit int) (bool, time.Duration, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.counts == nil {
		l.counts = map[string]int{}
	}
	k := scope + ":" + subject
	l.counts[k]++
	return l.counts[k] <= limit, 30 * time.Second, nil
}
