package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"comicshelf/internal/admin"
	"comicshelf/internal/auth"
	"comicshelf/internal/catalog"
	"comicshelf/internal/events"
	"comicshelf/internal/meta"
	"comicshelf/internal/notify"
	"comicshelf/internal/progress"
	"comicshelf/internal/reader"
	"comicshelf/internal/render"
	"comicshelf/internal/scanner"
	"comicshelf/internal/settings"
	"comicshelf/pkg/database"
	"comicshelf/pkg/utils"
)

func main() {
	utils.LoadDotEnv()

	cfg := database.DefaultConfig()
	db := database.MustOpen(cfg)
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		log.Fatalf("db migrate failed: %v", err)
	}

	if err := auth.EnsureDefaultAdmin(context.Background(), auth.NewRepo(db)); err != nil {
		log.Fatalf("seed admin failed: %v", err)
	}

	router := gin.Default()

	// Optional: avoid “trusted all proxies” warning
	_ = router.SetTrustedProxies([]string{"127.0.0.1"})

	// Start the TCP event feed first (so you notice binding errors early)
	hub := events.NewHub()
	router.GET("/ws", events.WSHandler(hub))
	feedSrv := events.NewServer(utils.GetEnv("COMICSHELF_FEED_ADDR", ":7070"), hub)

	registry := notify.NewRegistry()
	notifySrv := notify.NewServer(
		utils.GetEnv("COMICSHELF_NOTIFY_ADDR", ":7071"),
		registry,
		log.New(os.Stderr, "[notify] ", log.LstdFlags),
	)

	rd := reader.New()
	renders := render.NewCache(render.DefaultDir(), rd.PDF)
	log.Printf("[main] backends: %v", rd.Capabilities())

	settingsRepo := settings.NewRepo(db)
	sc := scanner.New(db, rd, settingsRepo)
	sc.Hub = hub
	sc.Notifier = notifySrv

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "db": cfg.Path})
	})

	router.GET("/ready", func(c *gin.Context) {
		stats := hub.Stats()
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		if err := db.PingContext(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":      "not_ready",
				"db_error":    err.Error(),
				"tcp_clients": stats.TCPClients,
				"ws_clients":  stats.WSClients,
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status":      "ready",
			"db":          "ok",
			"tcp_clients": stats.TCPClients,
			"ws_clients":  stats.WSClients,
		})
	})

	// Auth
	authCfg := utils.LoadAuthConfig()
	tokenSvc := auth.TokenService{
		Secret:   []byte(authCfg.JWTSecret),
		Issuer:   authCfg.JWTIssuer,
		Duration: authCfg.JWTTTL,
	}
	authRepo := auth.NewRepo(db)
	authHandler := auth.NewHandler(authRepo, tokenSvc)

	api := router.Group("/api")
	authHandler.RegisterRoutes(api.Group("/auth"))

	// Reader-facing routes (any logged-in user)
	catalogRepo := catalog.NewRepo(db)
	catalogHandler := catalog.NewHandler(catalogRepo, rd, renders)
	progressHandler := progress.NewHandler(progress.NewRepo(db), catalogRepo, hub)
	metaHandler := meta.NewHandler(catalogRepo)

	authed := api.Group("")
	authed.Use(auth.AuthMiddleware(tokenSvc, authRepo))
	catalogHandler.RegisterRoutes(authed)
	progressHandler.RegisterRoutes(authed)
	metaHandler.RegisterRoutes(authed)

	// Admin surface
	adminHandler := admin.NewHandler(sc, settingsRepo, catalogRepo, rd, hub)

	adminGroup := api.Group("/admin")
	adminGroup.Use(auth.AuthMiddleware(tokenSvc, authRepo), auth.RequireAdmin())
	adminHandler.RegisterRoutes(adminGroup)
	metaHandler.RegisterAdminRoutes(adminGroup)
	progressHandler.RegisterAdminRoutes(adminGroup)
	authHandler.RegisterAdminRoutes(adminGroup)

	// Startup scan runs off the serving path; the catalog stays on its
	// previous state until the scan's transaction lands.
	if utils.GetEnvBool("COMICSHELF_SCAN_ON_START", true) {
		go func() {
			ctx := context.Background()
			root, source, err := settings.ResolveLibraryRoot(ctx, settingsRepo, os.LookupEnv)
			if err != nil {
				log.Printf("[main] resolve library root: %v", err)
				return
			}
			log.Printf("[main] startup scan of %s (%s root)", root, source)
			if _, err := sc.Run(ctx, root); err != nil {
				log.Printf("[main] startup scan failed: %v", err)
			}
		}()
	}

	httpSrv := &http.Server{
		Addr:    utils.GetEnv("COMICSHELF_ADDR", ":8080"),
		Handler: router,
	}

	errCh := make(chan error, 3)
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := feedSrv.Run(); err != nil {
			errCh <- err
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := notifySrv.Run(); err != nil {
			errCh <- err
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Printf("HTTP API server listening on %s", httpSrv.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Printf("shutdown signal received: %s", sig)
	case err := <-errCh:
		log.Printf("server error: %v", err)
	}

	log.Println("shutting down servers")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Printf("http shutdown error: %v", err)
	}
	if err := feedSrv.Close(); err != nil {
		log.Printf("feed shutdown error: %v", err)
	}
	if err := notifySrv.Close(); err != nil {
		log.Printf("notify shutdown error: %v", err)
	}

	wg.Wait()
	log.Println("servers stopped")
}
