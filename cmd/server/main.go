package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"civicreport/internal/config"
	"civicreport/internal/db"
	routes "civicreport/internal/http"
	"civicreport/internal/store"
)

func main() {
	// Allow running in production without a .env file.
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, reading from environment")
	}
	cfg := config.Load()

	var st store.Store
	if cfg.DemoMode {
		log.Println("DEMO_MODE enabled, using seeded in-memory store")
		mem := store.NewMemory()
		if err := store.Seed(mem); err != nil {
			log.Fatalf("Failed to seed demo store: %v", err)
		}
		st = mem
	} else {
		database, err := db.Connect(cfg.MongoURI, cfg.MongoDB)
		if err != nil {
			log.Fatalf("Failed to connect to MongoDB: %v", err)
		}
		defer db.Disconnect(database)

		mongoStore := store.NewMongo(database)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		if err := mongoStore.EnsureIndexes(ctx); err != nil {
			cancel()
			log.Fatalf("Failed to create indexes: %v", err)
		}
		cancel()
		st = mongoStore
	}

	router := gin.New()
	routes.SetupRoutes(router, st, cfg)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("Server listening on :%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	<-quit
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server exiting")
}
