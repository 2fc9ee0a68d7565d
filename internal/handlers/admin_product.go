package handlers

import (
	"github.com/gin-gonic/gin"

	"perfume-store/internal/responses"
)

func CreateProduct(env *Env) gin.HandlerFunc {
	return func(c *gin.Context) {
		form, err := parseMultipartProductRequest(c)
		if err != nil {
			env.fail(c, err)
			return
		}
		defer form.Close()

		product, err := env.Catalog.Create(c.Request.Context(), form.Input)
		if err != nil {
			env.fail(c, err)
			return
		}
		responses.Created(c, newProductView(env.mediaBase(c), *product))
	}
}

func UpdateProduct(env *Env) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := pathObjectID(c, "id")
		if err != nil {
			env.fail(c, err)
			return
		}
		form, err := parseMultipartProductRequest(c)
		if err != nil {
			env.fail(c, err)
			return
		}
		defer form.Close()

		product, err := env.Catalog.Update(c.Request.Context(), id, form.Input)
		if err != nil {
			env.fail(c, err)
			return
		}
		responses.OK(c, newProductView(env.mediaBase(c), *product))
	}
}

func DeleteProduct(env *Env) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := pathObjectID(c, "id")
		if err != nil {
			env.fail(c, err)
			return
		}

		if err := env.Catalog.Delete(c.Request.Context(), id); err != nil {
			env.fail(c, err)
			return
		}
		responses.OK(c, gin.H{"message": "product deleted successfully"})
	}
}
