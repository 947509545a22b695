package main

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/bellybox-pos/api/internal/config"
	"github.com/bellybox-pos/api/internal/router"
	"github.com/bellybox-pos/api/internal/store"
	"github.com/bellybox-pos/api/internal/store/memstore"
	"github.com/bellybox-pos/api/internal/store/postgres"
	"github.com/bellybox-pos/api/internal/ws"
	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	cfg := config.Load()

	var st store.Store
	switch cfg.StoreDriver {
	case "memory":
		log.Println("Using in-memory store (data is not persisted)")
		st = memstore.New()
	default:
		if err := postgres.Migrate(cfg.DatabaseURL); err != nil {
			log.Fatalf("migrate: %v", err)
		}
		pool, err := pgxpool.New(context.Background(), cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("connect to database: %v", err)
		}
		defer pool.Close()
		st = postgres.New(pool)
	}

	hub := ws.NewHub()
	go hub.Run()

	r := router.New(cfg, st, hub)

	log.Printf("Starting server on :%s", cfg.Port)
	if err := http.ListenAndServe(fmt.Sprintf(":%s", cfg.Port), r); err != nil {
		log.Fatal(err)
	}
}
