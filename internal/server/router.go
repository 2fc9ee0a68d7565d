// Package server assembles the HTTP router.
package server

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"perfume-store/internal/auth"
	"perfume-store/internal/handlers"
	"perfume-store/internal/idempotency"
	"perfume-store/internal/metrics"
	"perfume-store/internal/middleware"
)

// idempotencyPendingMargin covers the work a request does after its store
// deadline: compensation, confirmation reads and event publishing.
const idempotencyPendingMargin = 15 * time.Second

type Options struct {
	Env            *handlers.Env
	Issuer         *auth.Issuer
	Metrics        *metrics.Metrics
	Gatherer       prometheus.Gatherer
	Idempotency    idempotency.Store
	IdempotencyTTL time.Duration
	RequestTimeout time.Duration
	UploadDir      string
}

func NewRouter(opts Options) *gin.Engine {
	env := opts.Env
	log := env.Log

	r := gin.New()
	r.Use(
		middleware.Recoverer(log),
		middleware.RequestID(log),
		middleware.AccessLog(log),
		middleware.Metrics(opts.Metrics),
		middleware.Timeout(opts.RequestTimeout),
	)

	r.GET("/health", handlers.Health(env))
	if opts.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{})))
	}
	if opts.UploadDir != "" {
		r.Static("/uploads", opts.UploadDir)
	}

	requireUser := middleware.AuthGuard(opts.Issuer, log)
	requireAdmin := middleware.RequireAdmin(log)
	idempotent := middleware.Idempotency(opts.Idempotency, middleware.IdempotencyConfig{
		TTL:        opts.IdempotencyTTL,
		PendingTTL: opts.RequestTimeout + idempotencyPendingMargin,
	}, log)

	authRoutes := r.Group("/auth")
	{
		authRoutes.POST("/register", handlers.Register(env))
		authRoutes.POST("/login", handlers.Login(env))
		authRoutes.POST("/refresh", handlers.Refresh(env))
		authRoutes.POST("/logout", handlers.Logout(env))
		authRoutes.GET("/me", requireUser, handlers.GetMe(env))
		authRoutes.PUT("/profile", requireUser, handlers.UpdateProfile(env))
	}

	r.GET("/categories", handlers.GetCategories())
	r.GET("/products", handlers.GetProducts(env))
	r.GET("/products/:id", handlers.GetProduct(env))
	r.POST("/products", requireUser, requireAdmin, handlers.CreateProduct(env))
	r.PUT("/products/:id", requireUser, requireAdmin, handlers.UpdateProduct(env))
	r.DELETE("/products/:id", requireUser, requireAdmin, handlers.DeleteProduct(env))

	orderRoutes := r.Group("/orders", requireUser)
	{
		orderRoutes.POST("", idempotent, handlers.CreateOrder(env))
		orderRoutes.GET("", handlers.GetMyOrders(env))
		orderRoutes.GET("/:id", handlers.GetOrder(env))
		orderRoutes.PUT("/:id/cancel", idempotent, handlers.CancelOrder(env))
	}

	userRoutes := r.Group("/user", requireUser)
	{
		userRoutes.GET("/addresses", handlers.GetUserAddresses(env))
		userRoutes.POST("/addresses", handlers.CreateUserAddress(env))
		userRoutes.PUT("/addresses/:id", handlers.UpdateUserAddress(env))
		userRoutes.DELETE("/addresses/:id", handlers.DeleteUserAddress(env))
	}

	r.POST("/admin/login", handlers.AdminLogin(env))
	admin := r.Group("/admin", requireUser, requireAdmin)
	{
		admin.GET("/dashboard", handlers.AdminDashboard(env))
		admin.GET("/orders", handlers.AdminListOrders(env))
		admin.PUT("/orders/:id/status", idempotent, handlers.AdminUpdateOrderStatus(env))
		admin.GET("/customers", handlers.AdminCustomers(env))
		admin.GET("/reports/sales", handlers.AdminSalesReport(env))
	}

	return r
}
