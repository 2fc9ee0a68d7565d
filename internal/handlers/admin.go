package handlers

import (
	"github.com/gin-gonic/gin"

	"perfume-store/internal/reports"
	"perfume-store/internal/responses"
)

type customerPageView struct {
	Customers      []userView `json:"customers"`
	Page           int        `json:"page"`
	TotalPages     int        `json:"totalPages"`
	TotalCustomers int64      `json:"totalCustomers"`
}

func AdminDashboard(env *Env) gin.HandlerFunc {
	return func(c *gin.Context) {
		dashboard, err := env.Reports.Dashboard(c.Request.Context())
		if err != nil {
			env.fail(c, err)
			return
		}
		responses.OK(c, dashboard)
	}
}

func AdminCustomers(env *Env) gin.HandlerFunc {
	return func(c *gin.Context) {
		page, limit, err := parsePaginationParams(c)
		if err != nil {
			env.fail(c, err)
			return
		}

		result, err := env.Reports.Customers(c.Request.Context(), reports.CustomerQuery{
			Search: c.Query("search"),
			Page:   page,
			Limit:  limit,
		})
		if err != nil {
			env.fail(c, err)
			return
		}

		customers := make([]userView, 0, len(result.Customers))
		for _, u := range result.Customers {
			customers = append(customers, newUserView(u))
		}
		responses.OK(c, customerPageView{
			Customers:      customers,
			Page:           result.Page,
			TotalPages:     result.TotalPages,
			TotalCustomers: result.TotalCustomers,
		})
	}
}

// AdminSalesReport takes startDate and endDate as YYYY-MM-DD.
func AdminSalesReport(env *Env) gin.HandlerFunc {
	return func(c *gin.Context) {
		report, err := env.Reports.Sales(c.Request.Context(), c.Query("startDate"), c.Query("endDate"))
		if err != nil {
			env.fail(c, err)
			return
		}
		responses.OK(c, report)
	}
}
