package handlers

import (
	"strings"

	"github.com/gin-gonic/gin"

	"perfume-store/internal/accounts"
	"perfume-store/internal/responses"
)

type addressRequest struct {
	Title      string `json:"title"`
	FullName   string `json:"fullName"`
	Address    string `json:"address"`
	City       string `json:"city"`
	PostalCode string `json:"postalCode"`
	Country    string `json:"country"`
	Phone      string `json:"phone"`
	IsDefault  bool   `json:"isDefault"`
}

func (r addressRequest) toInput() accounts.AddressInput {
	return accounts.AddressInput{
		Title:      r.Title,
		FullName:   r.FullName,
		Address:    r.Address,
		City:       r.City,
		PostalCode: r.PostalCode,
		Country:    r.Country,
		Phone:      r.Phone,
		IsDefault:  r.IsDefault,
	}
}

func GetUserAddresses(env *Env) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := caller(c)
		if err != nil {
			env.fail(c, err)
			return
		}

		addresses, err := env.Accounts.ListAddresses(c.Request.Context(), id.UserID)
		if err != nil {
			env.fail(c, err)
			return
		}
		responses.OK(c, addresses)
	}
}

func CreateUserAddress(env *Env) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := caller(c)
		if err != nil {
			env.fail(c, err)
			return
		}

		var req addressRequest
		if err := bindJSON(c, &req, false); err != nil {
			env.fail(c, err)
			return
		}

		address, err := env.Accounts.AddAddress(c.Request.Context(), id.UserID, req.toInput())
		if err != nil {
			env.fail(c, err)
			return
		}
		responses.Created(c, address)
	}
}

func UpdateUserAddress(env *Env) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := caller(c)
		if err != nil {
			env.fail(c, err)
			return
		}

		var req addressRequest
		if err := bindJSON(c, &req, false); err != nil {
			env.fail(c, err)
			return
		}

		address, err := env.Accounts.UpdateAddress(c.Request.Context(), id.UserID, strings.TrimSpace(c.Param("id")), req.toInput())
		if err != nil {
			env.fail(c, err)
			return
		}
		responses.OK(c, address)
	}
}

func DeleteUserAddress(env *Env) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := caller(c)
		if err != nil {
			env.fail(c, err)
			return
		}

		if err := env.Accounts.DeleteAddress(c.Request.Context(), id.UserID, strings.TrimSpace(c.Param("id"))); err != nil {
			env.fail(c, err)
			return
		}
		responses.OK(c, gin.H{"message": "address deleted"})
	}
}
