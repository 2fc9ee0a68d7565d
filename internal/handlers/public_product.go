package handlers

import (
	"github.com/gin-gonic/gin"

	"perfume-store/internal/responses"
)

// GetProducts lists the catalog newest first, filtered by category, search
// text and the featured flag.
func GetProducts(env *Env) gin.HandlerFunc {
	return func(c *gin.Context) {
		query, err := parseProductListQuery(c)
		if err != nil {
			env.fail(c, err)
			return
		}

		products, err := env.Catalog.List(c.Request.Context(), query)
		if err != nil {
			env.fail(c, err)
			return
		}
		responses.OK(c, newProductViews(env.mediaBase(c), products))
	}
}

func GetProduct(env *Env) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := pathObjectID(c, "id")
		if err != nil {
			env.fail(c, err)
			return
		}

		product, err := env.Catalog.Get(c.Request.Context(), id)
		if err != nil {
			env.fail(c, err)
			return
		}
		responses.OK(c, newProductView(env.mediaBase(c), *product))
	}
}
