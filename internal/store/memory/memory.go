// Package memory is an in-process implementation of store.Store. It backs
// STORE_DRIVER=memory and the service tests, and mirrors the MongoDB
// repositories' semantics, including the conditional stock decrement.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"perfume-store/internal/models"
	"perfume-store/internal/store"
)

type Store struct {
	mu       sync.RWMutex
	seq      int64
	products map[primitive.ObjectID]productRow
	orders   map[primitive.ObjectID]orderRow
	users    map[primitive.ObjectID]userRow
	tokens   map[primitive.ObjectID]models.RefreshToken
}

type productRow struct {
	seq int64
	doc models.Product
}

type orderRow struct {
	seq int64
	doc models.Order
}

type userRow struct {
	seq int64
	doc models.User
}

func New() *Store {
	return &Store{
		products: make(map[primitive.ObjectID]productRow),
		orders:   make(map[primitive.ObjectID]orderRow),
		users:    make(map[primitive.ObjectID]userRow),
		tokens:   make(map[primitive.ObjectID]models.RefreshToken),
	}
}

func (s *Store) Products() store.Products { return productRepo{s} }
func (s *Store) Orders() store.Orders { return orderRepo{s} }
func (s *Store) Users() store.Users { return userRepo{s} }
func (s *Store) RefreshTokens() store.RefreshTokens { return tokenRepo{s} }

func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (s *Store) Close(context.Context) error {
	return nil
}

func (s *Store) next() int64 {
	s.seq++
	return s.seq
}

func containsFold(value, needle string) bool {
	return strings.Contains(strings.ToLower(value), strings.ToLower(needle))
}

func page[T any](items []T, skip, limit int64) []T {
	if skip >= int64(len(items)) {
		return []T{}
	}
	items = items[skip:]
	if limit > 0 && limit < int64(len(items)) {
		items = items[:limit]
	}
	return items
}

/* =========================
   PRODUCTS
========================= */

type productRepo struct{ s *Store }

func (r productRepo) List(ctx context.Context, q store.ProductQuery) ([]models.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	rows := make([]productRow, 0, len(r.s.products))
	for _, row := range r.s.products {
		p := row.doc
		if q.Category != "" && p.Category != q.Category {
			continue
		}
		if q.Featured && !p.Featured {
			continue
		}
		if q.Search != "" && !containsFold(p.Name, q.Search) && !containsFold(p.NameAr, q.Search) &&
			!containsFold(p.Description, q.Search) && !containsFold(p.DescriptionAr, q.Search) {
			continue
		}
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool {
		if !rows[i].doc.CreatedAt.Equal(rows[j].doc.CreatedAt) {
			return rows[i].doc.CreatedAt.After(rows[j].doc.CreatedAt)
		}
		return rows[i].seq > rows[j].seq
	})

	out := make([]models.Product, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.doc)
	}
	return out, nil
}

func (r productRepo) Get(ctx context.Context, id primitive.ObjectID) (*models.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	row, ok := r.s.products[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	p := row.doc
	return &p, nil
}

func (r productRepo) GetMany(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]models.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := make(map[primitive.ObjectID]models.Product, len(ids))
	for _, id := range ids {
		if row, ok := r.s.products[id]; ok {
			out[id] = row.doc
		}
	}
	return out, nil
}

func (r productRepo) Insert(ctx context.Context, p *models.Product) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if p.ID.IsZero() {
		p.ID = primitive.NewObjectID()
	}
	if _, exists := r.s.products[p.ID]; exists {
		return store.ErrDuplicate
	}
	r.s.products[p.ID] = productRow{seq: r.s.next(), doc: *p}
	return nil
}

func (r productRepo) Update(ctx context.Context, id primitive.ObjectID, patch store.ProductPatch, now time.Time) (*models.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	row, ok := r.s.products[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	p := &row.doc
	if patch.Name != nil {
		p.Name = *patch.Name
	}
	if patch.NameAr != nil {
		p.NameAr = *patch.NameAr
	}
	if patch.Price != nil {
		p.Price = *patch.Price
	}
	if patch.Currency != nil {
		p.Currency = *patch.Currency
	}
	if patch.Description != nil {
		p.Description = *patch.Description
	}
	if patch.DescriptionAr != nil {
		p.DescriptionAr = *patch.DescriptionAr
	}
	if patch.Category != nil {
		p.Category = *patch.Category
	}
	if patch.Image != nil {
		p.Image = *patch.Image
	}
	if patch.BoxImage != nil {
		p.BoxImage = *patch.BoxImage
	}
	if patch.Stock != nil {
		p.Stock = *patch.Stock
	}
	if patch.Featured != nil {
		p.Featured = *patch.Featured
	}
	p.UpdatedAt = now
	r.s.products[id] = row

	updated := row.doc
	return &updated, nil
}

func (r productRepo) Delete(ctx context.Context, id primitive.ObjectID) (*models.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	row, ok := r.s.products[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	delete(r.s.products, id)
	return &row.doc, nil
}

func (r productRepo) Count(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return int64(len(r.s.products)), nil
}

func (r productRepo) DecrementStock(ctx context.Context, id primitive.ObjectID, qty int) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	row, ok := r.s.products[id]
	if !ok || row.doc.Stock < qty {
		return false, nil
	}
	row.doc.Stock -= qty
	r.s.products[id] = row
	return true, nil
}

func (r productRepo) IncrementStock(ctx context.Context, id primitive.ObjectID, qty int) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	row, ok := r.s.products[id]
	if !ok {
		return false, nil
	}
	row.doc.Stock += qty
	r.s.products[id] = row
	return true, nil
}

/* =========================
   ORDERS
========================= */

type orderRepo struct{ s *Store }

func cloneOrder(o models.Order) models.Order {
	o.Items = append([]models.OrderItem(nil), o.Items...)
	return o
}

func (r orderRepo) sorted(match func(models.Order) bool) []models.Order {
	rows := make([]orderRow, 0, len(r.s.orders))
	for _, row := range r.s.orders {
		if match(row.doc) {
			rows = append(rows, row)
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		if !rows[i].doc.CreatedAt.Equal(rows[j].doc.CreatedAt) {
			return rows[i].doc.CreatedAt.After(rows[j].doc.CreatedAt)
		}
		return rows[i].seq > rows[j].seq
	})
	out := make([]models.Order, 0, len(rows))
	for _, row := range rows {
		out = append(out, cloneOrder(row.doc))
	}
	return out
}

func (r orderRepo) Insert(ctx context.Context, o *models.Order) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if o.ID.IsZero() {
		o.ID = primitive.NewObjectID()
	}
	if _, exists := r.s.orders[o.ID]; exists {
		return store.ErrDuplicate
	}
	for _, row := range r.s.orders {
		if row.doc.OrderNumber == o.OrderNumber {
			return store.ErrDuplicate
		}
	}
	r.s.orders[o.ID] = orderRow{seq: r.s.next(), doc: cloneOrder(*o)}
	return nil
}

func (r orderRepo) Get(ctx context.Context, id primitive.ObjectID) (*models.Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	row, ok := r.s.orders[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	o := cloneOrder(row.doc)
	return &o, nil
}

func (r orderRepo) ListByUser(ctx context.Context, userID primitive.ObjectID) ([]models.Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	return r.sorted(func(o models.Order) bool { return o.UserID == userID }), nil
}

func (r orderRepo) List(ctx context.Context, q store.OrderQuery) ([]models.Order, int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	users := make(map[primitive.ObjectID]struct{}, len(q.UserIDs))
	for _, id := range q.UserIDs {
		users[id] = struct{}{}
	}
	all := r.sorted(func(o models.Order) bool {
		if q.Status != "" && o.Status != q.Status {
			return false
		}
		if q.Search != "" {
			_, byUser := users[o.UserID]
			if !byUser && !containsFold(o.OrderNumber, q.Search) {
				return false
			}
		}
		return true
	})
	return page(all, q.Skip, q.Limit), int64(len(all)), nil
}

func (r orderRepo) Recent(ctx context.Context, limit int64) ([]models.Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	return page(r.sorted(func(models.Order) bool { return true }), 0, limit), nil
}

func (r orderRepo) ListByStatusBetween(ctx context.Context, status models.OrderStatus, start, end time.Time) ([]models.Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	return r.sorted(func(o models.Order) bool {
		return o.Status == status && !o.CreatedAt.Before(start) && !o.CreatedAt.After(end)
	}), nil
}

func (r orderRepo) Count(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return int64(len(r.s.orders)), nil
}

func (r orderRepo) UpdateStatus(ctx context.Context, id primitive.ObjectID, from, to models.OrderStatus, now time.Time) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	row, ok := r.s.orders[id]
	if !ok || row.doc.Status != from {
		return false, nil
	}
	row.doc.Status = to
	row.doc.UpdatedAt = now
	r.s.orders[id] = row
	return true, nil
}

/* =========================
   USERS
========================= */

type userRepo struct{ s *Store }

func cloneUser(u models.User) models.User {
	u.Addresses = append([]models.Address(nil), u.Addresses...)
	return u
}

func (r userRepo) emailTaken(email string, except primitive.ObjectID) bool {
	for id, row := range r.s.users {
		if id != except && strings.EqualFold(row.doc.Email, email) {
			return true
		}
	}
	return false
}

func (r userRepo) Insert(ctx context.Context, u *models.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if u.ID.IsZero() {
		u.ID = primitive.NewObjectID()
	}
	if r.emailTaken(u.Email, u.ID) {
		return store.ErrDuplicate
	}
	r.s.users[u.ID] = userRow{seq: r.s.next(), doc: cloneUser(*u)}
	return nil
}

func (r userRepo) Get(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	row, ok := r.s.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	u := cloneUser(row.doc)
	return &u, nil
}

func (r userRepo) GetMany(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]models.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := make(map[primitive.ObjectID]models.User, len(ids))
	for _, id := range ids {
		if row, ok := r.s.users[id]; ok {
			out[id] = cloneUser(row.doc)
		}
	}
	return out, nil
}

func (r userRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, row := range r.s.users {
		if strings.EqualFold(row.doc.Email, email) {
			u := cloneUser(row.doc)
			return &u, nil
		}
	}
	return nil, store.ErrNotFound
}

func (r userRepo) Replace(ctx context.Context, u *models.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	row, ok := r.s.users[u.ID]
	if !ok {
		return store.ErrNotFound
	}
	if r.emailTaken(u.Email, u.ID) {
		return store.ErrDuplicate
	}
	row.doc = cloneUser(*u)
	r.s.users[u.ID] = row
	return nil
}

func (r userRepo) DeleteByEmail(ctx context.Context, email string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for id, row := range r.s.users {
		if strings.EqualFold(row.doc.Email, email) {
			delete(r.s.users, id)
		}
	}
	return nil
}

func (r userRepo) matching(match func(models.User) bool) []models.User {
	rows := make([]userRow, 0, len(r.s.users))
	for _, row := range r.s.users {
		if match(row.doc) {
			rows = append(rows, row)
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		if !rows[i].doc.CreatedAt.Equal(rows[j].doc.CreatedAt) {
			return rows[i].doc.CreatedAt.After(rows[j].doc.CreatedAt)
		}
		return rows[i].seq > rows[j].seq
	})
	out := make([]models.User, 0, len(rows))
	for _, row := range rows {
		out = append(out, cloneUser(row.doc))
	}
	return out
}

func (r userRepo) List(ctx context.Context, q store.UserQuery) ([]models.User, int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	all := r.matching(func(u models.User) bool {
		if q.Role != "" && u.Role != q.Role {
			return false
		}
		if q.Search != "" && !containsFold(u.Name, q.Search) && !containsFold(u.Email, q.Search) && !containsFold(u.Phone, q.Search) {
			return false
		}
		return true
	})
	return page(all, q.Skip, q.Limit), int64(len(all)), nil
}

func (r userRepo) SearchIDs(ctx context.Context, search string) ([]primitive.ObjectID, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	ids := make([]primitive.ObjectID, 0)
	for id, row := range r.s.users {
		if containsFold(row.doc.Name, search) || containsFold(row.doc.Email, search) {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (r userRepo) CountByRole(ctx context.Context, role models.Role) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var n int64
	for _, row := range r.s.users {
		if row.doc.Role == role {
			n++
		}
	}
	return n, nil
}

/* =========================
   REFRESH TOKENS
========================= */

type tokenRepo struct{ s *Store }

func (r tokenRepo) Insert(ctx context.Context, t *models.RefreshToken) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if t.ID.IsZero() {
		t.ID = primitive.NewObjectID()
	}
	r.s.tokens[t.ID] = *t
	return nil
}

func (r tokenRepo) FindActive(ctx context.Context, hash string) (*models.RefreshToken, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, t := range r.s.tokens {
		if t.TokenHash == hash && !t.Revoked {
			token := t
			return &token, nil
		}
	}
	return nil, store.ErrNotFound
}

func (r tokenRepo) Revoke(ctx context.Context, id primitive.ObjectID, replacedBy *primitive.ObjectID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	t, ok := r.s.tokens[id]
	if !ok {
		return store.ErrNotFound
	}
	t.Revoked = true
	t.ReplacedByToken = replacedBy
	r.s.tokens[id] = t
	return nil
}

func (r tokenRepo) RevokeByHash(ctx context.Context, hash string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for id, t := range r.s.tokens {
		if t.TokenHash == hash && !t.Revoked {
			t.Revoked = true
			r.s.tokens[id] = t
			return true, nil
		}
	}
	return false, nil
}
