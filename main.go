package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/handlers"

	"tour-server/config"
	apihandlers "tour-server/handlers"
	"tour-server/middleware"
	"tour-server/services"
	"tour-server/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	middleware.ShowErrorDetails(!cfg.IsProduction())

	ctx := context.Background()
	mongoClient, db, err := storage.ConnectMongo(ctx, cfg.MongoURI, cfg.MongoDatabase)
	if err != nil {
		log.Fatalf("MongoDB connection failed: %v", err)
	}
	redisClient, err := storage.ConnectRedis(ctx, cfg.RedisAddr, cfg.RedisDB)
	if err != nil {
		log.Fatalf("Redis connection failed: %v", err)
	}

	// Services
	userService := services.NewUserService(db, redisClient)
	tourService := services.NewTourService(db, userService)
	reviewService := services.NewReviewService(db, userService, tourService)
	bookingService := services.NewBookingService(db, tourService, userService)
	tokens := services.NewTokenIssuer(cfg.JWTSecret, cfg.JWTExpiresIn)
	authService := services.NewAuthService(userService, tokens, services.LogNotifier{})

	if err := storage.EnsureIndexes(ctx, userService, tourService, reviewService, bookingService); err != nil {
		log.Fatalf("Failed to create indexes: %v", err)
	}

	router := apihandlers.NewRouter(apihandlers.Routes{
		Auth: apihandlers.NewAuthHandler(authService, apihandlers.CookieConfig{
			Expires: cfg.JWTCookieExpires,
			Secure:  cfg.IsProduction(),
		}),
		Users:    apihandlers.NewUserHandler(userService),
		Tours:    apihandlers.NewTourHandler(tourService, reviewService),
		Reviews:  apihandlers.NewReviewHandler(reviewService),
		Bookings: apihandlers.NewBookingHandler(bookingService),
		Guard:    middleware.NewAuthGuard(tokens, userService),
		Limiter:  middleware.NewRateLimiter(cfg.RateLimitPerHour, time.Hour),
	})

	// CORS → security headers → request id → recover → router
	var handler http.Handler = middleware.ErrorMiddleware()(router)
	handler = middleware.RequestID(handler)
	handler = middleware.SecurityHeaders(handler)
	handler = middleware.CORSMiddleware(cfg.CORSOrigins)(handler)
	if !cfg.IsProduction() {
		handler = handlers.CombinedLoggingHandler(os.Stdout, handler)
	}

	server := &http.Server{
		Addr:              cfg.Port,
		Handler:           handler,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}
	server.RegisterOnShutdown(func() {
		if redisClient != nil {
			if err := redisClient.Close(); err != nil {
				log.Printf("Redis close failed: %v", err)
			}
		}
	})

	serverErr := make(chan error, 1)
	go func() {
		log.Printf("Server starting on %s (%s)", cfg.Port, cfg.Env)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	exitCode := 0
	select {
	case sig := <-sigCh:
		log.Printf("%s received, shutting down gracefully", sig)
	case err := <-serverErr:
		log.Printf("Server error: %v, shutting down", err)
		exitCode = 1
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Graceful shutdown failed: %v", err)
		exitCode = 1
	}
	if err := mongoClient.Disconnect(shutdownCtx); err != nil {
		log.Printf("MongoDB disconnect failed: %v", err)
	}
	cancel()
	log.Println("Server stopped")
	os.Exit(exitCode)
}
