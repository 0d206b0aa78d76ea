package main

import (
	"context"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"bookletku/config"
	"bookletku/internal/backend"
	"bookletku/internal/database"
	"bookletku/internal/gateway"
	"bookletku/internal/gateway/clients"
	"bookletku/internal/gateway/handlers"
	"bookletku/internal/gateway/health"
	"bookletku/internal/gateway/middleware"
	"bookletku/internal/session"
)

func main() {
	cfg := config.LoadConfig()
	if cfg.Auth.JWTSecret == "" {
		log.Fatal("JWT_SECRET is required")
	}

	platformClients, err := clients.NewPlatformClientsWithFallback(cfg)
	if err != nil {
		log.Fatalf("Failed to connect platform services: %v", err)
	}
	defer platformClients.Close()

	if err := database.Migrate(platformClients.DB); err != nil {
		log.Fatalf("Failed to migrate store database: %v", err)
	}

	var orders backend.OrderPublisher
	if platformClients.Broker != nil {
		orders = platformClients.Broker
	}
	store := backend.New(platformClients.DB, platformClients.Redis, backend.Options{
		JWTSecret:     []byte(cfg.Auth.JWTSecret),
		AccessTTL:     cfg.Auth.AccessTTL,
		RefreshTTL:    cfg.Auth.RefreshTTL,
		StorageDir:    cfg.Storage.Dir,
		PublicBaseURL: cfg.Storage.PublicBaseURL,
		Bucket:        cfg.Storage.Bucket,
		Orders:        orders,
	})

	// Guest session shared by the gateway. Logins made through the API are
	// announced on it so the mirror refetches.
	sessions := session.NewManager(store, store)

	startCtx, cancelStart := context.WithTimeout(context.Background(), 30*time.Second)
	gw, err := gateway.Open(startCtx, gateway.Deps{
		Tables:   store,
		Storage:  store,
		Feed:     store,
		Sessions: sessions,
	}, gateway.Config{
		StoreID:       cfg.Store.ID,
		ReorderSettle: cfg.Gateway.ReorderSettle,
		FetchTimeout:  cfg.Gateway.RequestTimeout,
	})
	cancelStart()
	if err != nil {
		log.Fatalf("Failed to open store gateway: %v", err)
	}
	defer gw.Close()

	healthServer := health.NewServer(platformClients.Checks(), func() bool {
		return gw.Snapshot().Status == gateway.StatusReady
	})
	lis, err := net.Listen("tcp", ":"+cfg.GRPC.Port)
	if err != nil {
		log.Fatalf("Failed to listen: %v", err)
	}
	go func() {
		if err := healthServer.Serve(lis); err != nil {
			log.Printf("gRPC health service stopped: %v", err)
		}
	}()
	defer healthServer.Stop()

	rateLimit, err := middleware.RateLimit(cfg.RateLimit.Rate)
	if err != nil {
		log.Fatalf("Error while running ratelimiter middleware: %v", err)
	}

	r := gin.New()

	r.Use(middleware.CORS(cfg.HTTP.AllowedOrigins))
	r.Use(gin.Logger())
	r.Use(gin.Recovery())
	r.Use(rateLimit)
	r.Use(serviceHealthMiddleware(healthServer))

	handlers.RegisterRoutes(r, store,
		handlers.NewMenuHTTPHandler(gw, cfg.Gateway.RequestTimeout, cfg.HTTP.AllowedOrigins),
		handlers.NewAuthHTTPHandler(store, store, gw, sessions, cfg.Gateway.RequestTimeout))

	r.Static("/storage/v1/object/public/"+cfg.Storage.Bucket, filepath.Join(cfg.Storage.Dir, cfg.Storage.Bucket))

	r.GET("/health", healthCheckHandler(healthServer, gw))
	r.GET("/health/detailed", detailedHealthCheckHandler(healthServer, gw))

	srv := &http.Server{
		Addr:    ":" + cfg.HTTP.Port,
		Handler: r,
	}
	go func() {
		log.Printf("Starting server on port %s", cfg.HTTP.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}
}

func serviceHealthMiddleware(hs *health.Server) gin.HandlerFunc {
	return func(c *gin.Context) {
		for name, result := range hs.Last() {
			status := "available"
			if result.Status != "healthy" {
				status = "unavailable"
			}
			c.Header("X-"+name+"-Service", status)
		}
		c.Next()
	}
}

func healthCheckHandler(hs *health.Server, gw *gateway.Gateway) gin.HandlerFunc {
	return func(c *gin.Context) {
		status := "healthy"
		httpStatus := http.StatusOK

		unavailableServices := hs.Unavailable()
		if unavailableServices == nil {
			unavailableServices = []string{}
		}
		if len(unavailableServices) > 0 {
			status = "degraded"
			httpStatus = http.StatusPartialContent
		}
		if gw.Snapshot().Status != gateway.StatusReady {
			status = "loading"
			httpStatus = http.StatusServiceUnavailable
		}

		c.JSON(httpStatus, gin.H{
			"status":               status,
			"message":              "Server is running",
			"unavailable_services": unavailableServices,
			"timestamp":            time.Now(),
		})
	}
}

func detailedHealthCheckHandler(hs *health.Server, gw *gateway.Gateway) gin.HandlerFunc {
	return func(c *gin.Context) {
		services := hs.Update(c.Request.Context())

		overallStatus := "healthy"
		for _, service := range services {
			if service.Status != "healthy" {
				overallStatus = "degraded"
			}
		}

		snap := gw.Snapshot()
		c.JSON(http.StatusOK, gin.H{
			"overall_status": overallStatus,
			"services":       services,
			"gateway": gin.H{
				"status":       snap.Status,
				"items":        len(snap.Items),
				"has_settings": snap.HasSettings,
				"version":      snap.Version,
			},
			"timestamp": time.Now(),
		})
	}
}
