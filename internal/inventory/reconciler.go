// Package inventory keeps product stock consistent with order lines.
package inventory

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/multierr"

	"perfume-store/internal/apperrors"
	"perfume-store/internal/logger"
	"perfume-store/internal/metrics"
	"perfume-store/internal/store"
)

// StockEffect is the stock adjustment implied by an order status transition.
type StockEffect int

const (
	StockNone StockEffect = iota
	StockRelease
	StockReserve
)

func (e StockEffect) String() string {
	switch e {
	case StockRelease:
		return "release"
	case StockReserve:
		return "reserve"
	default:
		return "none"
	}
}

// Inverse is the adjustment that undoes e.
func (e StockEffect) Inverse() StockEffect {
	switch e {
	case StockRelease:
		return StockReserve
	case StockReserve:
		return StockRelease
	default:
		return StockNone
	}
}

// Line is a quantity of one product held by an order.
type Line struct {
	ProductID primitive.ObjectID
	Name      string
	Quantity  int
}

// Merge sums quantities per product, keeping first-seen order.
func Merge(lines []Line) []Line {
	index := make(map[primitive.ObjectID]int, len(lines))
	merged := make([]Line, 0, len(lines))
	for _, line := range lines {
		if i, ok := index[line.ProductID]; ok {
			merged[i].Quantity += line.Quantity
			continue
		}
		index[line.ProductID] = len(merged)
		merged = append(merged, line)
	}
	return merged
}

type Reconciler struct {
	products store.Products
	log      *logger.Logger
	metrics  *metrics.Metrics
}

func NewReconciler(products store.Products, log *logger.Logger, m *metrics.Metrics) *Reconciler {
	if log == nil {
		log = logger.Nop()
	}
	return &Reconciler{products: products, log: log, metrics: m}
}

// Reserve decrements stock for every line or for none of them. Each
// decrement is conditional on sufficient stock; on the first refusal the
// decrements already applied are compensated.
func (r *Reconciler) Reserve(ctx context.Context, lines []Line) error {
	lines = Merge(lines)
	applied := make([]Line, 0, len(lines))

	for _, line := range lines {
		ok, err := r.products.DecrementStock(ctx, line.ProductID, line.Quantity)
		if err != nil {
			r.metrics.RecordReservation("error")
			r.compensate(ctx, applied)
			return apperrors.FromStore(err, "failed to reserve stock")
		}
		if ok {
			applied = append(applied, line)
			continue
		}

		r.compensate(ctx, applied)
		return r.refusal(ctx, line)
	}

	r.metrics.RecordReservation("reserved")
	return nil
}

// refusal explains why a conditional decrement did not apply.
func (r *Reconciler) refusal(ctx context.Context, line Line) error {
	product, err := r.products.Get(ctx, line.ProductID)
	if errors.Is(err, store.ErrNotFound) {
		r.metrics.RecordReservation("not_found")
		return apperrors.Newf(apperrors.CodeNotFound, "product %s not found", line.ProductID.Hex()).
			WithDetails(map[string]any{"productId": line.ProductID.Hex()})
	}
	if err != nil {
		r.metrics.RecordReservation("error")
		return apperrors.FromStore(err, "failed to load product")
	}

	r.metrics.RecordReservation("insufficient")
	return apperrors.Newf(apperrors.CodeInsufficientStock, "insufficient stock for %s", product.Name).
		WithDetails(map[string]any{
			"productId": product.ID.Hex(),
			"name":      product.Name,
			"available": product.Stock,
			"requested": line.Quantity,
		})
}

// compensate undoes applied decrements. It runs detached from ctx so a
// cancelled request still returns the stock it took.
func (r *Reconciler) compensate(ctx context.Context, applied []Line) {
	if len(applied) == 0 {
		return
	}
	undoCtx := context.WithoutCancel(ctx)
	for _, line := range applied {
		if _, err := r.products.IncrementStock(undoCtx, line.ProductID, line.Quantity); err != nil {
			r.log.ErrorEvent(ctx, err).
				Str("product_id", line.ProductID.Hex()).
				Int("quantity", line.Quantity).
				Msg("stock compensation failed, reconciliation required")
		}
	}
}

// Release returns stock for every line. Products that no longer exist are
// skipped.
func (r *Reconciler) Release(ctx context.Context, lines []Line) error {
	var errs error
	for _, line := range Merge(lines) {
		found, err := r.products.IncrementStock(ctx, line.ProductID, line.Quantity)
		if err != nil {
			r.log.ErrorEvent(ctx, err).
				Str("product_id", line.ProductID.Hex()).
				Int("quantity", line.Quantity).
				Msg("stock release failed")
			errs = multierr.Append(errs, err)
			continue
		}
		if !found {
			r.log.Event(ctx).Str("product_id", line.ProductID.Hex()).Msg("release skipped, product missing")
			continue
		}
		r.metrics.RecordRelease()
	}
	if errs != nil {
		return apperrors.FromStore(errs, "failed to release stock")
	}
	return nil
}

// Apply performs the adjustment named by effect.
func (r *Reconciler) Apply(ctx context.Context, effect StockEffect, lines []Line) error {
	switch effect {
	case StockRelease:
		return r.Release(ctx, lines)
	case StockReserve:
		return r.Reserve(ctx, lines)
	default:
		return nil
	}
}
