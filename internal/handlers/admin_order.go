package handlers

import (
	"github.com/gin-gonic/gin"

	"perfume-store/internal/orders"
	"perfume-store/internal/responses"
)

type updateOrderStatusRequest struct {
	Status string `json:"status"`
}

type orderPageView struct {
	Orders      []orderView `json:"orders"`
	Page        int         `json:"page"`
	TotalPages  int         `json:"totalPages"`
	TotalOrders int64       `json:"totalOrders"`
}

func AdminListOrders(env *Env) gin.HandlerFunc {
	return func(c *gin.Context) {
		page, limit, err := parsePaginationParams(c)
		if err != nil {
			env.fail(c, err)
			return
		}

		listing, err := env.Ledger.AdminList(c.Request.Context(), orders.AdminQuery{
			Status: c.Query("status"),
			Search: c.Query("search"),
			Page:   page,
			Limit:  limit,
		})
		if err != nil {
			env.fail(c, err)
			return
		}

		responses.OK(c, orderPageView{
			Orders:      newListingViews(env.mediaBase(c), listing),
			Page:        listing.Page,
			TotalPages:  listing.Pages(),
			TotalOrders: listing.Total,
		})
	}
}

func AdminUpdateOrderStatus(env *Env) gin.HandlerFunc {
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

		var req updateOrderStatusRequest
		if err := bindJSON(c, &req, false); err != nil {
			env.fail(c, err)
			return
		}

		order, err := env.Ledger.UpdateStatus(c.Request.Context(), id, orderID, req.Status)
		if err != nil {
			env.fail(c, err)
			return
		}
		responses.OK(c, newOrderView(env.mediaBase(c), *order, nil, nil))
	}
}
