package handlers

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"perfume-store/internal/accounts"
	"perfume-store/internal/media"
	"perfume-store/internal/models"
	"perfume-store/internal/orders"
)

/* =========================
   MEDIA URLS
========================= */

// mediaBase is the absolute origin prepended to stored upload references.
func (e *Env) mediaBase(c *gin.Context) string {
	if e.PublicBaseURL != "" {
		return e.PublicBaseURL
	}
	scheme := "http"
	if c.Request.TLS != nil {
		scheme = "https"
	}
	if forwarded := strings.TrimSpace(c.GetHeader("X-Forwarded-Proto")); forwarded != "" {
		scheme = forwarded
	}
	return scheme + "://" + c.Request.Host
}

func mediaURL(base, ref string) string {
	if strings.HasPrefix(ref, media.URLPrefix) {
		return base + ref
	}
	return ref
}

/* =========================
   PRODUCTS
========================= */

type productView struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	NameAr        string          `json:"nameAr"`
	Price         float64         `json:"price"`
	Currency      string          `json:"currency"`
	Description   string          `json:"description"`
	DescriptionAr string          `json:"descriptionAr"`
	Category      models.Category `json:"category"`
	Image         string          `json:"image"`
	BoxImage      string          `json:"boxImage"`
	Stock         int             `json:"stock"`
	Featured      bool            `json:"featured"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

func newProductView(base string, p models.Product) productView {
	return productView{
		ID:            p.ID.Hex(),
		Name:          p.Name,
		NameAr:        p.NameAr,
		Price:         p.Price,
		Currency:      p.Currency,
		Description:   p.Description,
		DescriptionAr: p.DescriptionAr,
		Category:      p.Category,
		Image:         mediaURL(base, p.Image),
		BoxImage:      mediaURL(base, p.BoxImage),
		Stock:         p.Stock,
		Featured:      p.Featured,
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}
}

func newProductViews(base string, list []models.Product) []productView {
	views := make([]productView, 0, len(list))
	for _, p := range list {
		views = append(views, newProductView(base, p))
	}
	return views
}

/* =========================
   USERS
========================= */

type userView struct {
	ID        string           `json:"id"`
	Name      string           `json:"name"`
	Email     string           `json:"email"`
	Role      models.Role      `json:"role"`
	Phone     string           `json:"phone,omitempty"`
	Addresses []models.Address `json:"addresses"`
	CreatedAt time.Time        `json:"createdAt"`
}

func newUserView(u models.User) userView {
	addresses := u.Addresses
	if addresses == nil {
		addresses = []models.Address{}
	}
	return userView{
		ID:        u.ID.Hex(),
		Name:      u.Name,
		Email:     u.Email,
		Role:      u.Role,
		Phone:     u.Phone,
		Addresses: addresses,
		CreatedAt: u.CreatedAt,
	}
}

type sessionView struct {
	Token        string   `json:"token"`
	RefreshToken string   `json:"refreshToken"`
	ExpiresIn    int64    `json:"expiresIn"`
	User         userView `json:"user"`
}

func newSessionView(s *accounts.Session) sessionView {
	return sessionView{
		Token:        s.AccessToken,
		RefreshToken: s.RefreshToken,
		ExpiresIn:    s.ExpiresIn,
		User:         newUserView(s.User),
	}
}

/* =========================
   ORDERS
========================= */

type itemProductView struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	NameAr string  `json:"nameAr,omitempty"`
	Price  float64 `json:"price"`
	Image  string  `json:"image,omitempty"`
}

type orderItemView struct {
	Product  itemProductView `json:"product"`
	Quantity int             `json:"quantity"`
	Price    float64         `json:"price"`
}

type customerView struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone,omitempty"`
}

type orderView struct {
	ID              string                 `json:"id"`
	OrderNumber     string                 `json:"orderNumber"`
	User            string                 `json:"user"`
	Customer        *customerView          `json:"customer,omitempty"`
	Items           []orderItemView        `json:"items"`
	TotalAmount     float64                `json:"totalAmount"`
	Status          models.OrderStatus     `json:"status"`
	ShippingAddress models.ShippingAddress `json:"shippingAddress"`
	PaymentMethod   string                 `json:"paymentMethod"`
	CreatedAt       time.Time              `json:"createdAt"`
	UpdatedAt       time.Time              `json:"updatedAt"`
}

// newOrderView resolves display fields from the live product when it still
// exists and falls back to the purchase-time snapshot otherwise. The line
// price is always the captured one.
func newOrderView(base string, o models.Order, products map[primitive.ObjectID]models.Product, customer *models.User) orderView {
	items := make([]orderItemView, 0, len(o.Items))
	for _, item := range o.Items {
		product := itemProductView{
			ID:     item.ProductID.Hex(),
			Name:   item.Name,
			NameAr: item.NameAr,
			Price:  item.Price,
			Image:  mediaURL(base, item.Image),
		}
		if live, ok := products[item.ProductID]; ok {
			product.Name = live.Name
			product.NameAr = live.NameAr
			product.Price = live.Price
			product.Image = mediaURL(base, live.Image)
		}
		items = append(items, orderItemView{Product: product, Quantity: item.Quantity, Price: item.Price})
	}

	view := orderView{
		ID:              o.ID.Hex(),
		OrderNumber:     o.OrderNumber,
		User:            o.UserID.Hex(),
		Items:           items,
		TotalAmount:     o.TotalAmount,
		Status:          o.Status,
		ShippingAddress: o.ShippingAddress,
		PaymentMethod:   o.PaymentMethod,
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
	}
	if customer != nil {
		view.Customer = &customerView{
			ID:    customer.ID.Hex(),
			Name:  customer.Name,
			Email: customer.Email,
			Phone: customer.Phone,
		}
	}
	return view
}

func newListingViews(base string, listing *orders.Listing) []orderView {
	views := make([]orderView, 0, len(listing.Orders))
	for _, o := range listing.Orders {
		var customer *models.User
		if u, ok := listing.Customers[o.UserID]; ok {
			customer = &u
		}
		views = append(views, newOrderView(base, o, listing.Products, customer))
	}
	return views
}
