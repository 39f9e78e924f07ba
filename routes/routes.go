package routes

import (
	"net/http"
	"time"

	"roombooking-backend/config"
	"roombooking-backend/controllers"
	"roombooking-backend/models"
	"roombooking-backend/services"
	"roombooking-backend/utils"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// Deps is everything the router hands to the controllers.
type Deps struct {
	Config   config.Config
	Logger   *logrus.Logger
	Clock    utils.Clock
	Auth     *services.AuthService
	Tokens   *services.TokenService
	Clients  *services.ClientService
	Rooms    *services.RoomService
	Bookings *services.BookingService
	Credits  *services.CreditService
	Reports  *services.ReportService
}

func SetupRouter(d Deps) *gin.Engine {
	if d.Config.Production() {
		gin.SetMode(gin.ReleaseMode)
	}
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		utils.RegisterJSONTagNames(v)
	}

	r := gin.New()
	r.Use(gin.Recovery())

	r.Use(cors.New(cors.Config{
		AllowOrigins:     d.Config.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Authorization", "Content-Type", "Accept"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	r.Use(config.RequestLogger(d.Logger))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	authController := &controllers.AuthController{Auth: d.Auth, Tokens: d.Tokens, Logger: d.Logger}
	r.POST("/oauth/token", authController.Token)

	public := r.Group("/api")
	{
		public.POST("/login", authController.Login)
		public.POST("/refresh", authController.Refresh)
	}

	api := r.Group("/api")
	api.Use(utils.AuthMiddleware(d.Tokens))
	{
		api.GET("/user", authController.User)
		api.POST("/logout", authController.Logout)

		clientController := &controllers.ClientController{Clients: d.Clients, Logger: d.Logger}
		clients := api.Group("/clients")
		{
			clients.GET("", clientController.List)
			clients.POST("", clientController.Create)
			clients.GET("/:id", clientController.Get)
			clients.PUT("/:id", clientController.Update)
			clients.DELETE("/:id", clientController.Delete)
		}

		roomController := &controllers.RoomController{Rooms: d.Rooms, Logger: d.Logger}
		rooms := api.Group("/rooms")
		{
			rooms.GET("", roomController.List)
			rooms.GET("/:id", roomController.Get)
			rooms.POST("", utils.RequireRole(models.RoleAdmin), roomController.Create)
			rooms.PUT("/:id", utils.RequireRole(models.RoleAdmin), roomController.Update)
		}

		// Booking mutations are all POSTs, update and cancel included.
		bookingController := &controllers.BookingController{Bookings: d.Bookings, Logger: d.Logger}
		bookings := api.Group("/bookings")
		{
			bookings.POST("/list", bookingController.List)
			bookings.POST("/by-room", bookingController.ListByRoom)
			bookings.POST("", bookingController.Create)
			bookings.GET("/:id", bookingController.Get)
			bookings.POST("/:id/update", bookingController.Update)
			bookings.POST("/:id/cancel", bookingController.Cancel)
		}

		creditController := &controllers.CreditController{Credits: d.Credits, Logger: d.Logger}
		credits := api.Group("/credits")
		{
			credits.GET("/balance", creditController.Balance)
			credits.POST("/add", utils.RequireRole(models.RoleAdmin), creditController.Add)
		}

		reportController := &controllers.ReportController{Reports: d.Reports, Logger: d.Logger, Now: d.Clock}
		reports := api.Group("/reports")
		{
			reports.GET("/popular-days", reportController.PopularDays)
			reports.GET("/popular-times", reportController.PopularTimes)
			reports.GET("/popular-rooms", reportController.PopularRooms)
			reports.GET("/birthdays", reportController.Birthdays)
			reports.GET("/birthdays/today", reportController.BirthdaysToday)
			reports.GET("/bookings/export", reportController.ExportBookings)
		}
	}

	return r
}
