package router

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	echoSwagger "github.com/swaggo/echo-swagger"
	"golang.org/x/time/rate"
	"gorm.io/gorm"

	"mindbridge/internal/auth"
	"mindbridge/internal/cache"
	"mindbridge/internal/config"
	"mindbridge/internal/db"
	"mindbridge/internal/errors"
	"mindbridge/internal/handler"
	"mindbridge/internal/model"
)

// Register wires routes and middleware.
func Register(
	e *echo.Echo,
	cfg *config.Config,
	gormDB *gorm.DB,
	cacheClient *cache.Client,
	jwtService *auth.JWTService,
	tokenStore auth.TokenStoreInterface,
	accounts auth.AccountLookup,
	authHandler *handler.AuthHandler,
	userHandler *handler.UserHandler,
	conversationHandler *handler.ConversationHandler,
	messageHandler *handler.MessageHandler,
) {
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	if len(cfg.CorsOrigins) > 0 {
		e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins: cfg.CorsOrigins,
			AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
		}))
	}

	e.Validator = &CustomValidator{validator: validator.New()}

	e.GET("/healthz", func(c echo.Context) error {
		ctx := c.Request().Context()
		if err := db.Ping(gormDB); err != nil {
			c.Logger().Error(err)
			return c.JSON(http.StatusServiceUnavailable, errors.ErrorResponse{Error: "database unavailable", Code: "UNAVAILABLE"})
		}
		if err := cacheClient.Ping(ctx); err != nil {
			c.Logger().Error(err)
			return c.JSON(http.StatusServiceUnavailable, errors.ErrorResponse{Error: "redis unavailable", Code: "UNAVAILABLE"})
		}
		return c.String(http.StatusOK, "ok")
	})

	e.GET("/swagger/*", echoSwagger.WrapHandler)

	api := e.Group("/api")

	// Public routes
	authGroup := api.Group("/auth")
	if cfg.AuthRateLimit > 0 {
		authGroup.Use(middleware.RateLimiter(middleware.NewRateLimiterMemoryStore(rate.Limit(cfg.AuthRateLimit))))
	}
	authGroup.POST("/register", authHandler.Register)
	authGroup.POST("/login", authHandler.Login)
	authGroup.POST("/recover", authHandler.Recover)
	authGroup.POST("/refresh", authHandler.Refresh)
	authGroup.POST("/logout", authHandler.Logout)

	// Secured routes (require JWT authentication)
	secured := api.Group("", auth.JWT(jwtService), auth.Authenticate(tokenStore, accounts))

	students := auth.RequireRoles(model.RoleStudent)
	staff := auth.RequireRoles(model.RoleCounselor, model.RoleAdmin)
	participants := auth.RequireRoles(model.RoleStudent, model.RoleCounselor)
	admins := auth.RequireRoles(model.RoleAdmin)

	// Conversation routes; fixed segments before :id
	secured.POST("/conversations", conversationHandler.Create, students)
	secured.GET("/conversations", conversationHandler.List)
	secured.GET("/conversations/priority-queue", conversationHandler.PriorityQueue, staff)
	secured.GET("/conversations/statistics", conversationHandler.Statistics)
	secured.GET("/conversations/:id", conversationHandler.Get)
	secured.PATCH("/conversations/:id", conversationHandler.Update, staff)
	secured.PATCH("/conversations/:id/assign/:counselorId", conversationHandler.Assign, staff)
	secured.PATCH("/conversations/:id/toggle-anonymity", conversationHandler.ToggleAnonymity, students)

	// Message routes
	secured.POST("/conversations/:id/messages", messageHandler.Send, participants)
	secured.GET("/conversations/:id/messages", messageHandler.List)
	secured.PATCH("/conversations/:id/messages/mark-all-read", messageHandler.MarkAllAsRead, participants)
	secured.PATCH("/conversations/:id/messages/:messageId/read", messageHandler.MarkAsRead, participants)
	secured.GET("/messages/unread-count", messageHandler.UnreadCount)

	// User routes
	secured.GET("/users", userHandler.ListUsers, admins)
	secured.POST("/users", userHandler.CreateUser, admins)
	secured.GET("/users/counselors", userHandler.ListCounselors, staff)
	secured.GET("/users/me", userHandler.Me)
	secured.DELETE("/users/me", userHandler.DeleteMe)
	secured.PATCH("/users/me/password", userHandler.ChangePassword)
	secured.POST("/users/me/recovery-key", userHandler.RegenerateRecoveryKey)
	secured.PATCH("/users/:id/active", userHandler.SetActive, admins)
	secured.DELETE("/users/:id", userHandler.DeleteUser, admins)
}

// CustomValidator wraps validator for Echo.
type CustomValidator struct {
	validator *validator.Validate
}

// Validate implements echo.Validator interface.
func (cv *CustomValidator) Validate(i interface{}) error {
	return cv.validator.Struct(i)
}
