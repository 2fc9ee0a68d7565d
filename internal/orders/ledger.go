// Package orders implements the order ledger: checkout, customer reads,
// self-service cancellation and admin status changes.
package orders

import (
	"context"
	"errors"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"perfume-store/internal/apperrors"
	"perfume-store/internal/auth"
	"perfume-store/internal/events"
	"perfume-store/internal/inventory"
	"perfume-store/internal/logger"
	"perfume-store/internal/metrics"
	"perfume-store/internal/models"
	"perfume-store/internal/store"
)

const (
	defaultPage      = 1
	defaultLimit     = 10
	maxLimit         = 100
	orderNumberTries = 3
	publishTimeout   = 3 * time.Second
	confirmTimeout   = 3 * time.Second
	defaultPayment   = "cash_on_delivery"
)

type Deps struct {
	Store      store.Store
	Reconciler *inventory.Reconciler
	Publisher  events.Publisher
	Logger     *logger.Logger
	Metrics    *metrics.Metrics
}

type Ledger struct {
	products   store.Products
	orders     store.Orders
	users      store.Users
	reconciler *inventory.Reconciler
	publisher  events.Publisher
	log        *logger.Logger
	metrics    *metrics.Metrics
	now        func() time.Time
	newNumber  func() string
}

func NewLedger(d Deps) *Ledger {
	log := d.Logger
	if log == nil {
		log = logger.Nop()
	}
	reconciler := d.Reconciler
	if reconciler == nil {
		reconciler = inventory.NewReconciler(d.Store.Products(), log, d.Metrics)
	}
	publisher := d.Publisher
	if publisher == nil {
		publisher = events.Noop{}
	}
	return &Ledger{
		products:   d.Store.Products(),
		orders:     d.Store.Orders(),
		users:      d.Store.Users(),
		reconciler: reconciler,
		publisher:  publisher,
		log:        log,
		metrics:    d.Metrics,
		now:        func() time.Time { return time.Now().UTC() },
		newNumber:  NewOrderNumber,
	}
}

// NewOrderNumber returns a display identifier such as ORD-1A2B3C4D.
func NewOrderNumber() string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "ORD-" + strings.ToUpper(raw[:8])
}

/* =========================
   CREATE
========================= */

type LineInput struct {
	ProductID string
	Quantity  int
}

type CreateInput struct {
	Items []LineInput
	// TotalAmount is optional; when present it must match the catalog total.
	TotalAmount     *float64
	ShippingAddress models.ShippingAddress
	PaymentMethod   string
}

func (in CreateInput) lines() ([]inventory.Line, error) {
	fields := map[string]string{}
	if len(in.Items) == 0 {
		fields["items"] = "at least one item is required"
	}
	if strings.TrimSpace(in.ShippingAddress.Address) == "" {
		fields["shippingAddress.address"] = "required"
	}
	if strings.TrimSpace(in.ShippingAddress.City) == "" {
		fields["shippingAddress.city"] = "required"
	}

	lines := make([]inventory.Line, 0, len(in.Items))
	for i, item := range in.Items {
		id, err := primitive.ObjectIDFromHex(strings.TrimSpace(item.ProductID))
		if err != nil {
			fields[itemField(i, "product")] = "invalid product id"
			continue
		}
		if item.Quantity < 1 {
			fields[itemField(i, "quantity")] = "must be at least 1"
			continue
		}
		lines = append(lines, inventory.Line{ProductID: id, Quantity: item.Quantity})
	}

	if len(fields) > 0 {
		return nil, apperrors.New(apperrors.CodeValidation, "invalid order").WithDetails(fields)
	}
	return inventory.Merge(lines), nil
}

func itemField(i int, name string) string {
	return "items[" + strconv.Itoa(i) + "]." + name
}

// Create validates the request against the catalog, reserves stock for
// every line and persists a pending order. Nothing is persisted and no
// stock is held when any step fails.
func (l *Ledger) Create(ctx context.Context, caller auth.Identity, in CreateInput) (*models.Order, error) {
	order, err := l.create(ctx, caller, in)
	l.metrics.RecordOrderOperation("create", err == nil)
	return order, err
}

func (l *Ledger) create(ctx context.Context, caller auth.Identity, in CreateInput) (*models.Order, error) {
	lines, err := in.lines()
	if err != nil {
		return nil, err
	}

	ids := make([]primitive.ObjectID, 0, len(lines))
	for _, line := range lines {
		ids = append(ids, line.ProductID)
	}
	catalog, err := l.products.GetMany(ctx, ids)
	if err != nil {
		return nil, writeFailure(apperrors.FromStore(err, "failed to load products"))
	}

	items := make([]models.OrderItem, 0, len(lines))
	total := decimal.Zero
	for i, line := range lines {
		product, ok := catalog[line.ProductID]
		if !ok {
			return nil, apperrors.Newf(apperrors.CodeNotFound, "product %s not found", line.ProductID.Hex()).
				WithDetails(map[string]any{"productId": line.ProductID.Hex()})
		}
		if product.Stock < line.Quantity {
			return nil, apperrors.Newf(apperrors.CodeInsufficientStock, "insufficient stock for %s", product.Name).
				WithDetails(map[string]any{
					"productId": product.ID.Hex(),
					"name":      product.Name,
					"available": product.Stock,
					"requested": line.Quantity,
				})
		}

		lines[i].Name = product.Name
		items = append(items, models.OrderItem{
			ProductID: product.ID,
			Name:      product.Name,
			NameAr:    product.NameAr,
			Image:     product.Image,
			Category:  product.Category,
			Price:     product.Price,
			Quantity:  line.Quantity,
		})
		total = total.Add(decimal.NewFromFloat(product.Price).Mul(decimal.NewFromInt(int64(line.Quantity))))
	}

	total = total.Round(2)
	if in.TotalAmount != nil {
		claimed := decimal.NewFromFloat(*in.TotalAmount).Round(2)
		if !claimed.Equal(total) {
			return nil, apperrors.New(apperrors.CodeValidation, "order total does not match item prices").
				WithDetails(map[string]any{
					"received": claimed.InexactFloat64(),
					"expected": total.InexactFloat64(),
				})
		}
	}

	if err := l.reconciler.Reserve(ctx, lines); err != nil {
		return nil, writeFailure(err)
	}

	payment := strings.TrimSpace(in.PaymentMethod)
	if payment == "" {
		payment = defaultPayment
	}
	now := l.now()
	order := &models.Order{
		UserID:          caller.UserID,
		Items:           items,
		TotalAmount:     total.InexactFloat64(),
		Status:          models.StatusPending,
		ShippingAddress: in.ShippingAddress,
		PaymentMethod:   payment,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := l.insert(ctx, order); err != nil {
		if !l.insertLanded(ctx, order, lines, err) {
			return nil, writeFailure(apperrors.FromStore(err, "failed to save order"))
		}
	}

	l.log.Event(ctx).
		Str("order_id", order.ID.Hex()).
		Str("order_number", order.OrderNumber).
		Float64("total", order.TotalAmount).
		Msg("order created")
	l.publish(ctx, events.TypeOrderCreated, order, "")
	return order, nil
}

// insert retries on the rare order-number collision.
func (l *Ledger) insert(ctx context.Context, order *models.Order) error {
	var err error
	for attempt := 0; attempt < orderNumberTries; attempt++ {
		order.ID = primitive.NewObjectID()
		order.OrderNumber = l.newNumber()
		err = l.orders.Insert(ctx, order)
		if !errors.Is(err, store.ErrDuplicate) {
			return err
		}
	}
	return err
}

// insertLanded settles the reservation of an order whose insert failed and
// reports whether the order was stored after all. Definite failures release
// the stock. An ambiguous failure may have committed, so the order is looked
// up by its id first; when that lookup fails too the reservation is kept for
// reconciliation.
func (l *Ledger) insertLanded(ctx context.Context, order *models.Order, lines []inventory.Line, err error) bool {
	if store.Ambiguous(err) {
		stored, known := l.confirm(ctx, order.ID)
		if stored != nil {
			l.log.Event(ctx).
				Str("order_id", order.ID.Hex()).
				Str("order_number", order.OrderNumber).
				Msg("order insert reported an error but the order was stored")
			return true
		}
		if !known {
			l.log.ErrorEvent(ctx, err).
				Str("order_id", order.ID.Hex()).
				Str("order_number", order.OrderNumber).
				Msg("order insert outcome unknown, stock kept reserved, reconciliation required")
			return false
		}
	}

	if releaseErr := l.reconciler.Apply(context.WithoutCancel(ctx), inventory.StockRelease, lines); releaseErr != nil {
		l.log.ErrorEvent(ctx, releaseErr).Str("order_id", order.ID.Hex()).Msg("releasing reservation after failed order insert")
	}
	return false
}

// confirm re-reads an order after a write whose outcome is unknown. It runs
// detached from ctx, which has usually expired by then. known is false when
// the lookup itself failed; a nil order with known set means no such order.
func (l *Ledger) confirm(ctx context.Context, id primitive.ObjectID) (order *models.Order, known bool) {
	lookupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), confirmTimeout)
	defer cancel()

	found, err := l.orders.Get(lookupCtx, id)
	switch {
	case err == nil:
		return found, true
	case errors.Is(err, store.ErrNotFound):
		return nil, true
	default:
		l.log.ErrorEvent(ctx, err).Str("order_id", id.Hex()).Msg("confirming order write failed")
		return nil, false
	}
}

// writeFailure reports timeouts on the checkout path as non-retryable:
// the client must not blindly resubmit an order.
func writeFailure(err error) error {
	if apperrors.Is(err, apperrors.CodeDependency) {
		return apperrors.Wrap(apperrors.CodeInternal, err, "order could not be confirmed, please check your orders before retrying")
	}
	return err
}

/* =========================
   READS
========================= */

// Listing is a page of orders with the products and customers they reference.
type Listing struct {
	Orders    []models.Order
	Products  map[primitive.ObjectID]models.Product
	Customers map[primitive.ObjectID]models.User
	Total     int64
	Page      int
	Limit     int
}

func (l Listing) Pages() int {
	if l.Limit <= 0 {
		return 1
	}
	return int(math.Ceil(float64(l.Total) / float64(l.Limit)))
}

// Detail is one order with its referenced products and customer.
type Detail struct {
	Order    models.Order
	Products map[primitive.ObjectID]models.Product
	Customer *models.User
}

func (l *Ledger) ListForUser(ctx context.Context, caller auth.Identity) (*Listing, error) {
	list, err := l.orders.ListByUser(ctx, caller.UserID)
	if err != nil {
		return nil, apperrors.FromStore(err, "failed to load orders")
	}
	products, err := l.productsFor(ctx, list)
	if err != nil {
		return nil, err
	}
	return &Listing{Orders: list, Products: products, Total: int64(len(list)), Page: 1, Limit: len(list)}, nil
}

func (l *Ledger) Get(ctx context.Context, caller auth.Identity, id primitive.ObjectID) (*Detail, error) {
	order, err := l.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !caller.Owns(order.UserID) {
		return nil, apperrors.New(apperrors.CodeForbidden, "not authorized to access this order")
	}

	products, err := l.productsFor(ctx, []models.Order{*order})
	if err != nil {
		return nil, err
	}

	detail := &Detail{Order: *order, Products: products}
	customer, err := l.users.Get(ctx, order.UserID)
	switch {
	case err == nil:
		detail.Customer = customer
	case !errors.Is(err, store.ErrNotFound):
		return nil, apperrors.FromStore(err, "failed to load customer")
	}
	return detail, nil
}

type AdminQuery struct {
	Status string
	Search string
	Page   int
	Limit  int
}

// AdminList pages through every order, newest first. Search matches the
// order number or the customer's name or email.
func (l *Ledger) AdminList(ctx context.Context, q AdminQuery) (*Listing, error) {
	page, limit := normalizePage(q.Page, q.Limit)
	query := store.OrderQuery{
		Search: strings.TrimSpace(q.Search),
		Skip:   int64((page - 1) * limit),
		Limit:  int64(limit),
	}

	if raw := strings.TrimSpace(q.Status); raw != "" && raw != "all" {
		status, err := ParseStatus(raw)
		if err != nil {
			return nil, err
		}
		query.Status = status
	}

	if query.Search != "" {
		ids, err := l.users.SearchIDs(ctx, query.Search)
		if err != nil {
			return nil, apperrors.FromStore(err, "failed to search customers")
		}
		query.UserIDs = ids
	}

	list, total, err := l.orders.List(ctx, query)
	if err != nil {
		return nil, apperrors.FromStore(err, "failed to load orders")
	}
	products, err := l.productsFor(ctx, list)
	if err != nil {
		return nil, err
	}
	customers, err := l.customersFor(ctx, list)
	if err != nil {
		return nil, err
	}

	return &Listing{
		Orders:    list,
		Products:  products,
		Customers: customers,
		Total:     total,
		Page:      page,
		Limit:     limit,
	}, nil
}

func normalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = defaultPage
	}
	if limit < 1 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	return page, limit
}

func (l *Ledger) load(ctx context.Context, id primitive.ObjectID) (*models.Order, error) {
	order, err := l.orders.Get(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperrors.New(apperrors.CodeNotFound, "order not found").
			WithDetails(map[string]any{"orderId": id.Hex()})
	}
	if err != nil {
		return nil, apperrors.FromStore(err, "failed to load order")
	}
	return order, nil
}

func (l *Ledger) productsFor(ctx context.Context, list []models.Order) (map[primitive.ObjectID]models.Product, error) {
	seen := map[primitive.ObjectID]struct{}{}
	ids := make([]primitive.ObjectID, 0)
	for _, order := range list {
		for _, item := range order.Items {
			if _, ok := seen[item.ProductID]; ok {
				continue
			}
			seen[item.ProductID] = struct{}{}
			ids = append(ids, item.ProductID)
		}
	}
	products, err := l.products.GetMany(ctx, ids)
	if err != nil {
		return nil, apperrors.FromStore(err, "failed to load products")
	}
	return products, nil
}

func (l *Ledger) customersFor(ctx context.Context, list []models.Order) (map[primitive.ObjectID]models.User, error) {
	seen := map[primitive.ObjectID]struct{}{}
	ids := make([]primitive.ObjectID, 0, len(list))
	for _, order := range list {
		if _, ok := seen[order.UserID]; ok {
			continue
		}
		seen[order.UserID] = struct{}{}
		ids = append(ids, order.UserID)
	}
	users, err := l.users.GetMany(ctx, ids)
	if err != nil {
		return nil, apperrors.FromStore(err, "failed to load customers")
	}
	return users, nil
}

/* =========================
   STATUS CHANGES
========================= */

func linesOf(order *models.Order) []inventory.Line {
	lines := make([]inventory.Line, 0, len(order.Items))
	for _, item := range order.Items {
		lines = append(lines, inventory.Line{ProductID: item.ProductID, Name: item.Name, Quantity: item.Quantity})
	}
	return lines
}

// Cancel lets the owner (or an admin) cancel a pending or processing order
// and returns its stock to the catalog.
func (l *Ledger) Cancel(ctx context.Context, caller auth.Identity, id primitive.ObjectID) (*models.Order, error) {
	order, err := l.cancel(ctx, caller, id)
	l.metrics.RecordOrderOperation("cancel", err == nil)
	return order, err
}

func (l *Ledger) cancel(ctx context.Context, caller auth.Identity, id primitive.ObjectID) (*models.Order, error) {
	order, err := l.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !caller.Owns(order.UserID) {
		return nil, apperrors.New(apperrors.CodeForbidden, "not authorized to cancel this order")
	}
	if !CanSelfCancel(order.Status) {
		return nil, apperrors.New(apperrors.CodeInvalidTransition, "order cannot be cancelled at this stage").
			WithDetails(map[string]any{"from": order.Status, "to": models.StatusCancelled})
	}

	effect, err := Transition(order.Status, models.StatusCancelled)
	if err != nil {
		return nil, err
	}
	return l.move(ctx, order, models.StatusCancelled, effect)
}

// UpdateStatus is the admin status change. Leaving cancelled reserves the
// stock again and fails with INSUFFICIENT_STOCK, leaving the order
// cancelled, when the catalog can no longer cover it.
func (l *Ledger) UpdateStatus(ctx context.Context, caller auth.Identity, id primitive.ObjectID, rawStatus string) (*models.Order, error) {
	order, err := l.updateStatus(ctx, caller, id, rawStatus)
	l.metrics.RecordOrderOperation("update_status", err == nil)
	return order, err
}

func (l *Ledger) updateStatus(ctx context.Context, caller auth.Identity, id primitive.ObjectID, rawStatus string) (*models.Order, error) {
	if !caller.IsAdmin() {
		return nil, apperrors.New(apperrors.CodeForbidden, "admin access required")
	}
	to, err := ParseStatus(rawStatus)
	if err != nil {
		return nil, err
	}

	order, err := l.load(ctx, id)
	if err != nil {
		return nil, err
	}
	effect, err := Transition(order.Status, to)
	if err != nil {
		return nil, err
	}
	if order.Status == to {
		return order, nil
	}
	return l.move(ctx, order, to, effect)
}

// move applies a validated transition. The status write is a compare-and-set
// on the status read earlier, so a concurrent writer makes this call fail
// with CONFLICT instead of applying the stock effect twice. Reservations
// happen before the write so a refusal leaves the order untouched; releases
// happen after it.
func (l *Ledger) move(ctx context.Context, order *models.Order, to models.OrderStatus, effect inventory.StockEffect) (*models.Order, error) {
	from := order.Status
	lines := linesOf(order)

	if effect == inventory.StockReserve {
		if err := l.reconciler.Apply(ctx, effect, lines); err != nil {
			return nil, err
		}
	}

	now := l.now()
	swapped, err := l.orders.UpdateStatus(ctx, order.ID, from, to, now)
	if err != nil && store.Ambiguous(err) {
		stored, known := l.confirm(ctx, order.ID)
		switch {
		case !known:
			l.log.ErrorEvent(ctx, err).
				Str("order_id", order.ID.Hex()).
				Str("to", string(to)).
				Str("stock", effect.String()).
				Msg("order status write outcome unknown, reconciliation required")
			return nil, apperrors.Wrap(apperrors.CodeInternal, err, "order status change could not be confirmed")
		case stored != nil && stored.Status == to && sameInstant(stored.UpdatedAt, now):
			swapped, err = true, nil
		}
	}
	if err != nil || !swapped {
		if effect == inventory.StockReserve {
			if undoErr := l.reconciler.Apply(context.WithoutCancel(ctx), effect.Inverse(), lines); undoErr != nil {
				l.log.ErrorEvent(ctx, undoErr).Str("order_id", order.ID.Hex()).Msg("undoing reservation failed")
			}
		}
		if err != nil {
			return nil, apperrors.FromStore(err, "failed to update order status")
		}
		return nil, apperrors.New(apperrors.CodeConflict, "order status was changed by another request").
			WithDetails(map[string]any{"from": from, "to": to})
	}

	order.Status = to
	order.UpdatedAt = now

	if effect == inventory.StockRelease {
		if err := l.reconciler.Apply(context.WithoutCancel(ctx), effect, lines); err != nil {
			l.log.ErrorEvent(ctx, err).
				Str("order_id", order.ID.Hex()).
				Msg("order status changed but stock release failed, reconciliation required")
			return nil, apperrors.Wrap(apperrors.CodeInternal, err, "order updated but stock could not be restored")
		}
	}

	l.log.Event(ctx).
		Str("order_id", order.ID.Hex()).
		Str("from", string(from)).
		Str("to", string(to)).
		Str("stock", effect.String()).
		Msg("order status changed")

	eventType := events.TypeOrderStatusChanged
	if to == models.StatusCancelled {
		eventType = events.TypeOrderCancelled
	}
	l.publish(ctx, eventType, order, from)
	return order, nil
}

// sameInstant compares write timestamps at the store's millisecond precision.
func sameInstant(stored, written time.Time) bool {
	d := stored.Sub(written)
	return d > -time.Millisecond && d < time.Millisecond
}

// publish never fails the caller; the ledger is the source of truth.
func (l *Ledger) publish(ctx context.Context, eventType string, order *models.Order, previous models.OrderStatus) {
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	err := l.publisher.Publish(pubCtx, events.OrderEvent{
		Type:           eventType,
		OrderID:        order.ID.Hex(),
		OrderNumber:    order.OrderNumber,
		UserID:         order.UserID.Hex(),
		Status:         string(order.Status),
		PreviousStatus: string(previous),
		TotalAmount:    order.TotalAmount,
		OccurredAt:     l.now(),
	})
	if err != nil {
		l.log.ErrorEvent(ctx, err).Str("event", eventType).Str("order_id", order.ID.Hex()).Msg("publish order event failed")
	}
}
