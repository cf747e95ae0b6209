package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"mindbridge/docs"
	"mindbridge/internal/auth"
	"mindbridge/internal/cache"
	"mindbridge/internal/config"
	"mindbridge/internal/db"
	"mindbridge/internal/handler"
	"mindbridge/internal/repository"
	"mindbridge/internal/router"
	"mindbridge/internal/service"
)

// @title MindBridge API
// @version 1.0
// @description Student-counselor messaging with role-scoped conversations and an urgency-ranked triage queue.
// @host localhost:8080
// @BasePath /api
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.
func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.RequestID())

	gormDB, err := db.Open(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		log.Fatalf("database init: %v", err)
	}

	if cfg.ResetDB {
		log.Println("RESET_DB=true detected, dropping all tables...")
		if err := db.Reset(gormDB); err != nil {
			log.Printf("Warning: failed to drop tables: %v", err)
		}
	}
	if err := db.Migrate(gormDB); err != nil {
		log.Fatalf("%v", err)
	}

	cacheClient := cache.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB, "mindbridge:")
	defer cacheClient.Close()

	// Initialize repositories
	userRepo := repository.NewUserRepository(gormDB)
	convRepo := repository.NewConversationRepository(gormDB)
	msgRepo := repository.NewMessageRepository(gormDB)

	// Initialize auth components
	jwtService := auth.NewJWTService(cfg.JWTSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
	tokenStore := auth.NewTokenStore(cacheClient)

	// Initialize services
	authService := service.NewAuthService(userRepo, jwtService, tokenStore)
	userService := service.NewUserService(userRepo, cacheClient, tokenStore)
	convService := service.NewConversationService(convRepo, userRepo)
	msgService := service.NewMessageService(convRepo, msgRepo)

	router.Register(
		e,
		cfg,
		gormDB,
		cacheClient,
		jwtService,
		tokenStore,
		userService,
		handler.NewAuthHandler(authService),
		handler.NewUserHandler(userService, authService),
		handler.NewConversationHandler(convService),
		handler.NewMessageHandler(msgService),
	)

	if cfg.SwaggerHost != "" {
		docs.SwaggerInfo.Host = cfg.SwaggerHost
	}
	log.Printf("Swagger documentation available at: http://%s/swagger/index.html", docs.SwaggerInfo.Host)

	addr := ":" + cfg.ServerPort
	go func() {
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server start: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGTERM, syscall.SIGINT)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		log.Printf("shutdown: %v", err)
	}
	log.Println("shutdown complete")
}
