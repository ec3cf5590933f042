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

	"github.com/dmv-prep/backend/internal/config"
	"github.com/dmv-prep/backend/internal/database"
	"github.com/dmv-prep/backend/internal/events"
	"github.com/dmv-prep/backend/internal/middleware"
	"github.com/dmv-prep/backend/internal/progress"
	"github.com/dmv-prep/backend/internal/questions"
	"github.com/dmv-prep/backend/internal/sessions"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/cors"
)

func main() {
	cfg := config.Load()

	// Question bank
	bank, err := questions.Load(os.DirFS(cfg.BankDir), ".")
	if err != nil {
		log.Fatalf("Failed to load question bank from %s: %v", cfg.BankDir, err)
	}
	generator := questions.NewGenerator(bank, cfg.TestSize, cfg.TestSlots)
	training := questions.NewTrainingSelector(bank, cfg.TrainingSetSize)

	// Progress store
	store, closeStore, err := openStore(cfg)
	if err != nil {
		log.Fatalf("Failed to open progress store: %v", err)
	}
	defer closeStore()

	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := rdb.Ping(context.Background()).Err(); err != nil {
			log.Printf("WARN: Redis at %s unreachable, progress cache disabled: %v", cfg.RedisAddr, err)
			rdb.Close()
		} else {
			defer rdb.Close()
			store = progress.NewCachedStore(store, rdb, cfg.RedisTTL)
			log.Printf("Progress cache enabled (redis %s, ttl %s)", cfg.RedisAddr, cfg.RedisTTL)
		}
	}

	// Events
	publisher, err := events.NewEventPublisher(cfg.AMQPURL)
	if err != nil {
		log.Fatalf("Failed to start event publisher: %v", err)
	}
	defer publisher.Close()

	// Initialize services and handlers
	service := sessions.NewService(bank, generator, training, store, publisher, sessions.Config{
		PassPercent: cfg.PassPercent,
		Gate: questions.Gate{
			FreeTests:         cfg.FreeTestSlots,
			FreeTrainingSets:  cfg.FreeTrainingSets,
			ReferralsToUnlock: cfg.ReferralsToUnlock,
		},
	})
	sessionHandler := sessions.NewHandler(service)
	questionHandler := questions.NewHandler(bank, training)

	// Setup router
	r := mux.NewRouter()
	r.Use(middleware.Logging)
	api := r.PathPrefix("/api/v1").Subrouter()

	// Public routes
	api.HandleFunc("/states", questionHandler.ListStates).Methods("GET")
	api.HandleFunc("/states/{state}", questionHandler.GetState).Methods("GET")

	// Protected routes
	protected := api.PathPrefix("").Subrouter()
	protected.Use(middleware.Auth([]byte(cfg.JWTSecret)))
	sessionHandler.RegisterRoutes(protected)

	// Health check and metrics
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	}).Methods("GET")
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")

	// CORS
	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           c.Handler(r),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("Server starting on :%s (%d questions, %d states, progress=%s)",
			cfg.Port, bank.Size(), len(bank.States()), cfg.ProgressBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("WARN: graceful shutdown: %v", err)
	}
	log.Println("Server stopped")
}

// openStore builds the configured progress backend and its cleanup func.
func openStore(cfg *config.Config) (progress.Store, func(), error) {
	switch cfg.ProgressBackend {
	case "sqlite":
		store, err := progress.NewSQLiteStore(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		log.Printf("Progress store: sqlite (%s)", cfg.SQLitePath)
		return store, func() { store.Close() }, nil

	case "mongo":
		client, err := progress.ConnectMongo(context.Background(), cfg.MongoURI)
		if err != nil {
			return nil, nil, err
		}
		log.Printf("Progress store: mongo (db %s)", cfg.MongoDB)
		store := progress.NewMongoStore(client.Database(cfg.MongoDB))
		return store, func() { client.Disconnect(context.Background()) }, nil

	default:
		db, err := database.Connect(cfg.DB)
		if err != nil {
			return nil, nil, err
		}
		if err := database.Migrate(db); err != nil {
			db.Close()
			return nil, nil, err
		}
		log.Printf("Progress store: postgres (%s@%s/%s)", cfg.DB.User, cfg.DB.Host, cfg.DB.Name)
		return progress.NewPostgresStore(db), func() { db.Close() }, nil
	}
}
