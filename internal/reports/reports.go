// Package reports builds the admin dashboard, customer listing and sales
// report from the order ledger and catalog.
package reports

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"perfume-store/internal/apperrors"
	"perfume-store/internal/models"
	"perfume-store/internal/store"
)

const (
	recentOrdersLimit = 5
	dateLayout        = "2006-01-02"
	uncategorized     = "uncategorized"
)

type Service struct {
	products store.Products
	orders   store.Orders
	users    store.Users
	now      func() time.Time
}

func NewService(st store.Store) *Service {
	return &Service{
		products: st.Products(),
		orders:   st.Orders(),
		users:    st.Users(),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

/* =========================
   DASHBOARD
========================= */

type RecentOrder struct {
	ID          string             `json:"id"`
	OrderNumber string             `json:"orderNumber"`
	Customer    string             `json:"customer"`
	Date        time.Time          `json:"date"`
	Total       float64            `json:"total"`
	Status      models.OrderStatus `json:"status"`
}

type Dashboard struct {
	TotalProducts  int64         `json:"totalProducts"`
	TotalOrders    int64         `json:"totalOrders"`
	TotalCustomers int64         `json:"totalCustomers"`
	TotalRevenue   float64       `json:"totalRevenue"`
	RecentOrders   []RecentOrder `json:"recentOrders"`
}

// Dashboard counts products, orders and customers. Revenue only counts
// completed orders.
func (s *Service) Dashboard(ctx context.Context) (*Dashboard, error) {
	var d Dashboard
	var err error

	if d.TotalProducts, err = s.products.Count(ctx); err != nil {
		return nil, apperrors.FromStore(err, "failed to count products")
	}
	if d.TotalOrders, err = s.orders.Count(ctx); err != nil {
		return nil, apperrors.FromStore(err, "failed to count orders")
	}
	if d.TotalCustomers, err = s.users.CountByRole(ctx, models.RoleUser); err != nil {
		return nil, apperrors.FromStore(err, "failed to count customers")
	}

	completed, err := s.orders.ListByStatusBetween(ctx, models.StatusCompleted, time.Time{}, s.now())
	if err != nil {
		return nil, apperrors.FromStore(err, "failed to load completed orders")
	}
	d.TotalRevenue = sumTotals(completed).InexactFloat64()

	recent, err := s.orders.Recent(ctx, recentOrdersLimit)
	if err != nil {
		return nil, apperrors.FromStore(err, "failed to load recent orders")
	}
	customers, err := s.customerNames(ctx, recent)
	if err != nil {
		return nil, err
	}

	d.RecentOrders = make([]RecentOrder, 0, len(recent))
	for _, order := range recent {
		d.RecentOrders = append(d.RecentOrders, RecentOrder{
			ID:          order.ID.Hex(),
			OrderNumber: order.OrderNumber,
			Customer:    customers[order.UserID],
			Date:        order.CreatedAt,
			Total:       order.TotalAmount,
			Status:      order.Status,
		})
	}
	return &d, nil
}

func (s *Service) customerNames(ctx context.Context, list []models.Order) (map[primitive.ObjectID]string, error) {
	ids := make([]primitive.ObjectID, 0, len(list))
	for _, order := range list {
		ids = append(ids, order.UserID)
	}
	users, err := s.users.GetMany(ctx, ids)
	if err != nil {
		return nil, apperrors.FromStore(err, "failed to load customers")
	}
	names := make(map[primitive.ObjectID]string, len(users))
	for id, user := range users {
		names[id] = user.Name
	}
	return names, nil
}

func sumTotals(list []models.Order) decimal.Decimal {
	total := decimal.Zero
	for _, order := range list {
		total = total.Add(decimal.NewFromFloat(order.TotalAmount))
	}
	return total.Round(2)
}

/* =========================
   CUSTOMERS
========================= */

type CustomerQuery struct {
	Search string
	Page   int
	Limit  int
}

type CustomerPage struct {
	Customers      []models.User
	Page           int
	TotalPages     int
	TotalCustomers int64
}

func (s *Service) Customers(ctx context.Context, q CustomerQuery) (*CustomerPage, error) {
	page, limit := q.Page, q.Limit
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 10
	}
	if limit > 100 {
		limit = 100
	}

	users, total, err := s.users.List(ctx, store.UserQuery{
		Role:   models.RoleUser,
		Search: strings.TrimSpace(q.Search),
		Skip:   int64((page - 1) * limit),
		Limit:  int64(limit),
	})
	if err != nil {
		return nil, apperrors.FromStore(err, "failed to load customers")
	}

	return &CustomerPage{
		Customers:      users,
		Page:           page,
		TotalPages:     int(math.Ceil(float64(total) / float64(limit))),
		TotalCustomers: total,
	}, nil
}

/* =========================
   SALES REPORT
========================= */

type Period struct {
	StartDate time.Time `json:"startDate"`
	EndDate   time.Time `json:"endDate"`
}

type SalesReport struct {
	Period          Period             `json:"period"`
	TotalOrders     int                `json:"totalOrders"`
	TotalRevenue    float64            `json:"totalRevenue"`
	SalesByCategory map[string]float64 `json:"salesByCategory"`
	SalesByDate     map[string]float64 `json:"salesByDate"`
}

// Sales reports completed orders created between startDate and the end of
// endDate (both YYYY-MM-DD, UTC). Defaults cover the last month.
func (s *Service) Sales(ctx context.Context, startDate, endDate string) (*SalesReport, error) {
	period, err := s.period(startDate, endDate)
	if err != nil {
		return nil, err
	}

	completed, err := s.orders.ListByStatusBetween(ctx, models.StatusCompleted, period.StartDate, period.EndDate)
	if err != nil {
		return nil, apperrors.FromStore(err, "failed to load completed orders")
	}

	productIDs := make([]primitive.ObjectID, 0)
	for _, order := range completed {
		for _, item := range order.Items {
			productIDs = append(productIDs, item.ProductID)
		}
	}
	products, err := s.products.GetMany(ctx, productIDs)
	if err != nil {
		return nil, apperrors.FromStore(err, "failed to load products")
	}

	byCategory := map[string]decimal.Decimal{}
	byDate := map[string]decimal.Decimal{}
	for _, order := range completed {
		for _, item := range order.Items {
			category := string(item.Category)
			if product, ok := products[item.ProductID]; ok {
				category = string(product.Category)
			}
			if category == "" {
				category = uncategorized
			}
			line := decimal.NewFromFloat(item.Price).Mul(decimal.NewFromInt(int64(item.Quantity)))
			byCategory[category] = byCategory[category].Add(line)
		}
		day := order.CreatedAt.UTC().Format(dateLayout)
		byDate[day] = byDate[day].Add(decimal.NewFromFloat(order.TotalAmount))
	}

	return &SalesReport{
		Period:          period,
		TotalOrders:     len(completed),
		TotalRevenue:    sumTotals(completed).InexactFloat64(),
		SalesByCategory: toFloats(byCategory),
		SalesByDate:     toFloats(byDate),
	}, nil
}

func (s *Service) period(startDate, endDate string) (Period, error) {
	now := s.now()
	start := now.AddDate(0, -1, 0)
	end := now

	if raw := strings.TrimSpace(startDate); raw != "" {
		parsed, err := time.Parse(dateLayout, raw)
		if err != nil {
			return Period{}, invalidDate("startDate", raw)
		}
		start = parsed
	}
	if raw := strings.TrimSpace(endDate); raw != "" {
		parsed, err := time.Parse(dateLayout, raw)
		if err != nil {
			return Period{}, invalidDate("endDate", raw)
		}
		end = parsed
	}

	y, m, d := end.Date()
	end = time.Date(y, m, d, 23, 59, 59, int(999*time.Millisecond), time.UTC)
	if end.Before(start) {
		return Period{}, apperrors.New(apperrors.CodeValidation, "endDate must not be before startDate")
	}
	return Period{StartDate: start, EndDate: end}, nil
}

func invalidDate(field, value string) error {
	return apperrors.Newf(apperrors.CodeValidation, "%s must be YYYY-MM-DD", field).
		WithDetails(map[string]string{field: value})
}

func toFloats(in map[string]decimal.Decimal) map[string]float64 {
	out := make(map[string]float64, len(in))
	for key, value := range in {
		out[key] = value.Round(2).InexactFloat64()
	}
	return out
}
