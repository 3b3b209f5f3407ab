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

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"github.com/custompc-tech/storefront/backend/internal/clock"
	"github.com/custompc-tech/storefront/backend/internal/config"
	"github.com/custompc-tech/storefront/backend/internal/handler"
	"github.com/custompc-tech/storefront/backend/internal/model/build"
	"github.com/custompc-tech/storefront/backend/internal/realtime"
	"github.com/custompc-tech/storefront/backend/internal/service/auth"
	"github.com/custompc-tech/storefront/backend/internal/service/cart"
	"github.com/custompc-tech/storefront/backend/internal/service/chat"
	"github.com/custompc-tech/storefront/backend/internal/service/notify"
	"github.com/custompc-tech/storefront/backend/internal/service/payment"
	"github.com/custompc-tech/storefront/backend/internal/service/presence"
	"github.com/custompc-tech/storefront/backend/internal/service/review"
	"github.com/custompc-tech/storefront/backend/internal/service/submission"
	"github.com/custompc-tech/storefront/backend/internal/storage"
	"github.com/custompc-tech/storefront/backend/internal/storage/local"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
		log.Println("continuing with system environment variables only")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	c := clock.Real()

	store, err := storage.Open(cfg.Store)
	if err != nil {
		log.Fatalf("failed to open store: %v", err)
	}
	defer store.Close()
	adapter := local.New(store)
	log.Printf("local store driver: %s", cfg.Store.Driver)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	chatOpts := []chat.Option{
		chat.WithMetrics(chat.NewMetrics(registry)),
		chat.WithConnectTimeout(cfg.Realtime.ConnectTimeout),
	}
	if cfg.Realtime.Enabled() {
		db := realtime.NewRedisDB(redis.NewClient(&redis.Options{Addr: cfg.Realtime.RedisAddr}), cfg.Realtime.Prefix, c)
		defer db.Close()
		chatOpts = append(chatOpts, chat.WithRemote(chat.NewRemoteBackend(db, c), db))
	} else {
		log.Println("realtime database not configured, chat runs on the local store")
	}
	chatSvc := chat.NewService(chat.NewLocalBackend(adapter, c), chatOpts...)
	if chatSvc.Connect(ctx) {
		log.Println("realtime database connected")
	}

	cartCloud := cart.CloudStore(cart.NewLocalCloudStore(adapter))
	if cfg.Cart.Enabled() {
		supa, err := cart.NewSupabaseStore(cart.SupabaseConfig{
			URL:    cfg.Cart.SupabaseURL,
			APIKey: cfg.Cart.SupabaseKey,
			Table:  cfg.Cart.Table,
		}, c)
		if err != nil {
			log.Printf("warning: failed to initialize supabase cart store: %v", err)
		} else {
			cartCloud = supa
			log.Println("cloud carts stored in supabase")
		}
	}

	square := payment.NewSquareClient(payment.SquareConfig{
		BaseURL:     cfg.Payment.BaseURL,
		AccessToken: cfg.Payment.AccessToken,
		LocationID:  cfg.Payment.LocationID,
		Timeout:     cfg.Payment.Timeout,
	})
	if !square.Configured() {
		log.Println("square credentials not configured, payments are disabled")
	}

	router := handler.NewRouter(cfg.Server, cfg.Payment.Environment, handler.Services{
		Store:       adapter,
		Clock:       c,
		Builds:      build.NewMemoryStore(build.Seed()),
		Chat:        chatSvc,
		Presence:    presence.NewService(chatSvc, c),
		Notifier:    notify.New(adapter),
		Reviews:     review.NewService(adapter, c),
		Gate:        auth.NewGate(auth.DefaultCredentials(), c),
		Cart:        cart.NewService(cartCloud),
		Submissions: submission.NewService(chatSvc, adapter, c),
		Payments:    payment.NewProcessor(square, payment.WithClock(c)),
		Gateway:     square,
		Metrics:     registry,
	})

	startServer(ctx, cfg.Server, router)
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("CustomPC.tech backend listening on %s", addr)
	if err := runServer(ctx, srv); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
