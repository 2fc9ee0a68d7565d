package handlers

import (
	"github.com/gin-gonic/gin"

	"perfume-store/internal/models"
	"perfume-store/internal/orders"
	"perfume-store/internal/responses"
)

/* =========================
   REQUEST DTOs
========================= */

type createOrderItemRequest struct {
	Product  string   `json:"product"`
	Quantity int      `json:"quantity"`
	Price    *float64 `json:"price"`
}

type shippingAddressRequest struct {
	FullName   string `json:"fullName"`
	Address    string `json:"address"`
	City       string `json:"city"`
	PostalCode string `json:"postalCode"`
	Country    string `json:"country"`
	Phone      string `json:"phone"`
}

type createOrderRequest struct {
	Items           []createOrderItemRequest `json:"items"`
	TotalAmount     *float64                 `json:"totalAmount"`
	ShippingAddress shippingAddressRequest   `json:"shippingAddress"`
	PaymentMethod   string                   `json:"paymentMethod"`
}

// toInput drops client prices; the ledger captures prices from the catalog.
func (r createOrderRequest) toInput() orders.CreateInput {
	items := make([]orders.LineInput, 0, len(r.Items))
	for _, item := range r.Items {
		items = append(items, orders.LineInput{ProductID: item.Product, Quantity: item.Quantity})
	}
	return orders.CreateInput{
		Items:       items,
		TotalAmount: r.TotalAmount,
		ShippingAddress: models.ShippingAddress{
			FullName:   r.ShippingAddress.FullName,
			Address:    r.ShippingAddress.Address,
			City:       r.ShippingAddress.City,
			PostalCode: r.ShippingAddress.PostalCode,
			Country:    r.ShippingAddress.Country,
			Phone:      r.ShippingAddress.Phone,
		},
		PaymentMethod: r.PaymentMethod,
	}
}

/* =========================
   CUSTOMER ORDERS
========================= */

func CreateOrder(env *Env) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := caller(c)
		if err != nil {
			env.fail(c, err)
			return
		}

		var req createOrderRequest
		if err := bindJSON(c, &req, false); err != nil {
			env.fail(c, err)
			return
		}

		order, err := env.Ledger.Create(c.Request.Context(), id, req.toInput())
		if err != nil {
			env.fail(c, err)
			return
		}
		responses.Created(c, newOrderView(env.mediaBase(c), *order, nil, nil))
	}
}

func GetMyOrders(env *Env) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := caller(c)
		if err != nil {
			env.fail(c, err)
			return
		}

		listing, err := env.Ledger.ListForUser(c.Request.Context(), id)
		if err != nil {
			env.fail(c, err)
			return
		}
		responses.OK(c, newListingViews(env.mediaBase(c), listing))
	}
}

func GetOrder(env *Env) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := caller(c)
		if err != nil {
			env.fail(c, err)
			return
		}
		orderID, err := pathObjectID(c, "id")
		if err != nil {
			env.fail(c, err)
			return
		}

		detail, err := env.Ledger.Get(c.Request.Context(), id, orderID)
		if err != nil {
			env.fail(c, err)
			return
		}
		responses.OK(c, newOrderView(env.mediaBase(c), detail.Order, detail.Products, detail.Customer))
	}
}

func CancelOrder(env *Env) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := caller(c)
		if err != nil {
			env.fail(c, err)
			return
		}
		orderID, err := pathObjectID(c, "id")
		if err != nil {
			env.fail(c, err)
			return
		}

		order, err := env.Ledger.Cancel(c.Request.Context(), id, orderID)
		if err != nil {
			env.fail(c, err)
			return
		}
		responses.OK(c, newOrderView(env.mediaBase(c), *order, nil, nil))
	}
}
