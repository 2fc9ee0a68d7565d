package handlers

import (
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"perfume-store/internal/models"
)

func TestMediaBase(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/products", nil)
	c.Request.Host = "shop.local:8080"

	env := &Env{}
	assert.Equal(t, "http://shop.local:8080", env.mediaBase(c))

	c.Request.TLS = &tls.ConnectionState{}
	assert.Equal(t, "https://shop.local:8080", env.mediaBase(c))

	env.PublicBaseURL = "https://cdn.example.com"
	assert.Equal(t, "https://cdn.example.com", env.mediaBase(c))
}

func TestMediaURLOnlyRewritesUploads(t *testing.T) {
	base := "https://api.example.com"
	assert.Equal(t, "https://api.example.com/uploads/products/a.png", mediaURL(base, "/uploads/products/a.png"))
	assert.Equal(t, "https://elsewhere.com/a.png", mediaURL(base, "https://elsewhere.com/a.png"))
	assert.Equal(t, "", mediaURL(base, ""))
}

func TestOrderViewPrefersLiveProductAndKeepsCapturedPrice(t *testing.T) {
	live := primitive.NewObjectID()
	deleted := primitive.NewObjectID()
	order := models.Order{
		ID:     primitive.NewObjectID(),
		UserID: primitive.NewObjectID(),
		Items: []models.OrderItem{
			{ProductID: live, Name: "Old name", Price: 10, Quantity: 2, Image: "/uploads/products/old.png"},
			{ProductID: deleted, Name: "Gone", NameAr: "ذهب", Price: 7, Quantity: 1, Image: "/uploads/products/gone.png"},
		},
	}
	products := map[primitive.ObjectID]models.Product{
		live: {ID: live, Name: "New name", Price: 12, Image: "/uploads/products/new.png"},
	}

	view := newOrderView("http://h", order, products, nil)

	assert.Equal(t, "New name", view.Items[0].Product.Name)
	assert.Equal(t, 12.0, view.Items[0].Product.Price)
	assert.Equal(t, 10.0, view.Items[0].Price)
	assert.Equal(t, "http://h/uploads/products/new.png", view.Items[0].Product.Image)

	assert.Equal(t, "Gone", view.Items[1].Product.Name)
	assert.Equal(t, "ذهب", view.Items[1].Product.NameAr)
	assert.Equal(t, "http://h/uploads/products/gone.png", view.Items[1].Product.Image)
	assert.Nil(t, view.Customer)
}

func TestUserViewNeverNilAddresses(t *testing.T) {
	view := newUserView(models.User{ID: primitive.NewObjectID(), PasswordHash: "hash"})
	assert.NotNil(t, view.Addresses)
}
