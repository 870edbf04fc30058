package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/services-marketplace/internal/config"
	"github.com/ignatzorin/services-marketplace/internal/http/handlers"
	"github.com/ignatzorin/services-marketplace/internal/http/middleware"
	"github.com/ignatzorin/services-marketplace/internal/interface/http/handler"
	"github.com/ignatzorin/services-marketplace/internal/models"
)

// Handlers набор обработчиков, которые собирает main.
type Handlers struct {
	Auth           *handlers.AuthHandler
	Address        *handlers.AddressHandler
	Catalog        *handlers.CatalogHandler
	Provider       *handlers.ProviderHandler
	Advertise      *handlers.AdvertiseHandler
	Favourite      *handlers.FavouriteHandler
	Notification   *handlers.NotificationHandler
	Rating         *handlers.RatingHandler
	Payment        *handlers.PaymentHandler
	Media          *handlers.MediaHandler
	WS             *handlers.WSHandler
	Health         *handlers.HealthHandler
	ServiceRequest *handler.ServiceRequestHandler
}

func SetupRouter(cfg *config.Config, h Handlers, tokens middleware.AccessTokenParser) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(middleware.Recovery())
	r.Use(middleware.RequestLogger())
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.CORSMiddleware(cfg.AllowedOrigins))

	r.GET("/health", h.Health.Health)
	r.StaticFS("/media", http.Dir(cfg.MediaStoragePath))

	api := r.Group("/api")
	api.GET("/health", h.Health.Health)

	authGroup := api.Group("/auth")
	authGroup.Use(middleware.RateLimitMiddleware(cfg.RateLimitLimit, cfg.RateLimitPeriod))
	{
		authGroup.POST("/register", h.Auth.Register)
		authGroup.POST("/login", h.Auth.Login)
		authGroup.POST("/refresh", h.Auth.Refresh)
	}

	// возврат из платёжного шлюза и webhook приходят без токена
	api.GET("/service-request/payments", h.ServiceRequest.PaymentReturn)
	api.POST("/payments/webhook", h.ServiceRequest.Webhook)

	protected := api.Group("/")
	protected.Use(middleware.AuthMiddleware(tokens))

	admin := middleware.RequireRoles(models.RoleAdmin)
	providerStaff := middleware.RequireRoles(models.RoleAdmin, models.RoleServiceProvider)
	id := middleware.UUIDValidator("id")
	priceLimit := middleware.RateLimitMiddleware(cfg.RateLimitLimit*6, cfg.RateLimitPeriod)

	protected.GET("/ws", h.WS.Handle)

	protected.POST("/auth/logout", h.Auth.Logout)
	protected.GET("/auth/me", h.Auth.Me)
	protected.PATCH("/auth/me", h.Auth.UpdateProfile)
	protected.GET("/auth/sessions", h.Auth.ListSessions)
	protected.DELETE("/auth/sessions/:id", id, h.Auth.DeleteSession)

	protected.GET("/addresses", h.Address.List)
	protected.POST("/addresses", h.Address.Create)
	protected.DELETE("/addresses/:id", id, h.Address.Delete)
	protected.POST("/devices", h.Address.RegisterDevice)

	protected.POST("/media/:folder", h.Media.Upload)

	services := protected.Group("/services")
	{
		services.GET("", h.Catalog.ListServices)
		services.GET("/dropdown", h.Catalog.ServicesDropdown)
		services.GET("/:id", id, h.Catalog.GetService)
		services.POST("", admin, h.Catalog.CreateService)
		services.PUT("/:id", id, admin, h.Catalog.UpdateService)
		services.DELETE("/:id", id, admin, h.Catalog.DeleteService)
	}

	features := protected.Group("/features")
	{
		features.GET("", h.Catalog.ListFeatures)
		features.GET("/field-types", h.Catalog.FieldTypes)
		features.GET("/dropdown", h.Catalog.FeaturesDropdown)
		features.GET("/:id", id, h.Catalog.GetFeature)
		features.POST("", admin, h.Catalog.CreateFeature)
		features.PUT("/:id", id, admin, h.Catalog.UpdateFeature)
		features.DELETE("/:id", id, admin, h.Catalog.DeleteFeature)
		features.POST("/:id/activate-deactivate", id, admin, h.Catalog.ToggleFeature)
		features.POST("/:id/activate-deactivate-field/:field_id",
			middleware.UUIDValidator("id", "field_id"), admin, h.Catalog.ToggleField)

		features.POST("/:id/service-request", id, h.ServiceRequest.Create)
		features.POST("/:id/extra-service-request", id, h.ServiceRequest.CreateExtra)
		features.POST("/:id/get-service-request-price", id, priceLimit, h.ServiceRequest.Price)
	}

	providers := protected.Group("/providers")
	{
		providers.GET("", admin, h.Provider.List)
		providers.POST("", admin, h.Provider.Create)
		providers.GET("/:id", id, admin, h.Provider.Get)
		providers.PUT("/:id", id, admin, h.Provider.Update)
		providers.DELETE("/:id", id, admin, h.Provider.Delete)
		providers.POST("/:id/add-employee", id, providerStaff, h.Provider.AddEmployee)
		providers.GET("/:id/get-employees", id, providerStaff, h.Provider.Employees)
		providers.GET("/:id/get-total-earning", id, providerStaff, h.Provider.TotalEarning)
	}

	requests := protected.Group("/service-requests")
	{
		requests.GET("", h.ServiceRequest.List)
		requests.GET("/count", h.ServiceRequest.Count)
		requests.GET("/:id", id, h.ServiceRequest.Get)
		requests.PATCH("/:id/approve", id, h.ServiceRequest.Approve())
		requests.PATCH("/:id/reject", id, h.ServiceRequest.Reject())
		requests.PATCH("/:id/supplier-accept", id, h.ServiceRequest.SupplierAccept())
		requests.PATCH("/:id/supplier-reject", id, h.ServiceRequest.SupplierReject())
		requests.PATCH("/:id/mark-inprogress", id, h.ServiceRequest.MarkInProgress())
		requests.PATCH("/:id/mark-completed", id, h.ServiceRequest.MarkCompleted())
		requests.PATCH("/:id/accept-completion", id, h.ServiceRequest.AcceptCompletion())
		requests.PATCH("/:id/reschedule", id, h.ServiceRequest.Reschedule())
		requests.PATCH("/:id/assign", id, h.ServiceRequest.Assign())
		requests.POST("/:id/get-payment-url", id, h.ServiceRequest.PaymentURL)
	}

	protected.GET("/ratings", h.Rating.List)
	protected.POST("/ratings", h.Rating.Create)
	protected.GET("/ratings/:id", id, h.Rating.Get)

	protected.GET("/payments", h.Payment.ListPayments)
	protected.GET("/payments/loyalty", h.Payment.Loyalty)
	protected.POST("/promo-codes", admin, h.Payment.CreatePromo)

	categories := protected.Group("/categories")
	{
		categories.GET("", h.Advertise.ListCategories)
		categories.GET("/:id", id, h.Advertise.GetCategory)
		categories.POST("", admin, h.Advertise.CreateCategory)
		categories.PUT("/:id", id, admin, h.Advertise.UpdateCategory)
		categories.DELETE("/:id", id, admin, h.Advertise.DeleteCategory)
	}

	ads := protected.Group("/advertisements")
	{
		ads.GET("", h.Advertise.ListAdvertisements)
		ads.GET("/kinds", h.Advertise.Kinds)
		ads.GET("/:id", id, h.Advertise.GetAdvertisement)
		ads.POST("", h.Advertise.CreateAdvertisement)
		ads.PUT("/:id", id, h.Advertise.UpdateAdvertisement)
		ads.DELETE("/:id", id, h.Advertise.DeleteAdvertisement)
	}

	protected.GET("/favourites", h.Favourite.List)
	protected.POST("/favourites", h.Favourite.Add)
	protected.DELETE("/favourites/:id", id, h.Favourite.Remove)

	protected.GET("/notifications", h.Notification.List)
	protected.PUT("/notifications/read-all", h.Notification.MarkAllAsRead)
	protected.PUT("/notifications/:id/read", id, h.Notification.MarkAsRead)

	return r
}
