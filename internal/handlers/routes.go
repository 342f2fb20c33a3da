package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"addressbook/internal/account"
	"addressbook/internal/address"
	"addressbook/internal/geo"
	"addressbook/internal/middleware"
)

// Dependencies are the objects the router is built from. Metrics and
// Checks may be nil.
type Dependencies struct {
	Production bool
	Logger     *zap.Logger
	Metrics    *middleware.HTTPMetrics
	Checks     map[string]Pinger

	Sessions  middleware.SessionValidator
	Accounts  *account.Service
	Addresses *address.Service
	Geocoder  *geo.Resolver
}

func NewRouter(deps Dependencies) *gin.Engine {
	if deps.Production {
		gin.SetMode(gin.ReleaseMode)
	}
	RegisterValidators()

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.AccessLog(deps.Logger))
	r.Use(deps.Metrics.Handler())

	r.GET("/healthz", Health(deps.Checks))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	auth := middleware.UserAuth(deps.Sessions, deps.Logger)

	users := r.Group("/users")
	{
		users.POST("/signup", Signup(deps.Accounts))
		users.POST("/login", Login(deps.Accounts))
		users.POST("/logout", auth, Logout(deps.Accounts))
		users.GET("/me", auth, GetMe())
	}

	addresses := r.Group("/address")
	addresses.Use(auth)
	{
		addresses.POST("", CreateAddress(deps.Addresses))
		addresses.GET("", ListAddresses(deps.Addresses))
		addresses.GET("/current", GetCurrentAddress(deps.Addresses))
		addresses.GET("/:id", GetAddress(deps.Addresses))
		addresses.PUT("/:id", UpdateAddress(deps.Addresses))
		addresses.DELETE("/:id", DeleteAddress(deps.Addresses))
	}

	geocode := r.Group("/geocode")
	geocode.Use(auth)
	{
		geocode.GET("/search", SearchAddresses(deps.Geocoder))
		geocode.GET("/reverse", ReverseGeocode(deps.Geocoder))
	}

	return r
}
