package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bakerybms/client/internal/config"
	"bakerybms/client/internal/domain"
	"bakerybms/client/internal/httpapi"
	"bakerybms/client/internal/ledger"
	"bakerybms/client/internal/notify"
	"bakerybms/client/internal/remote"
	"bakerybms/client/internal/service"
	"bakerybms/client/internal/snapshot"
)

func main() {
	cfg := config.Load()
	if err := validateSecurityConfig(cfg); err != nil {
		log.Fatalf("invalid security configuration: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	closers := make([]func() error, 0, 2)

	var snapStore snapshot.Store
	switch {
	case cfg.DatabaseURL != "":
		pg, err := snapshot.NewPostgresStore(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("postgres unavailable (%v) and DATABASE_URL is set; refusing to start with a file fallback", err)
		}
		snapStore = pg
		closers = append(closers, pg.Close)
		log.Println("snapshot store: postgres")
	case cfg.RedisAddr != "":
		rd := snapshot.NewRedisStore(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err := rd.Ping(ctx); err != nil {
			log.Printf("redis unavailable (%v), using file store", err)
			snapStore = snapshot.NewFileStore(cfg.SnapshotPath)
			log.Println("snapshot store: file")
		} else {
			snapStore = rd
			closers = append(closers, rd.Close)
			log.Println("snapshot store: redis")
		}
	default:
		snapStore = snapshot.NewFileStore(cfg.SnapshotPath)
		log.Println("snapshot store: file")
	}

	engine := notify.NewEngine()
	store := ledger.NewSeeded(engine)
	// A restored snapshot overrides this below; the env value only seeds
	// fresh installs.
	threshold := cfg.LowStockThreshold
	store.UpdateSettings(domain.SettingsPatch{LowStockThreshold: &threshold})

	var remoteClient *remote.Client
	if cfg.BackendURL != "" {
		session := remote.NewSession(cfg.BackendURL, "", func() {
			log.Println("backend session expired, continuing in local mode until next login")
		})
		remoteClient = remote.New(cfg.BackendURL, session)
		log.Printf("backend sync: %s", cfg.BackendURL)
	} else {
		log.Println("backend sync: disabled (local mode)")
	}

	svc := service.New(store, remoteClient, engine, snapStore)
	if err := svc.LoadState(ctx); err != nil {
		log.Printf("state restore failed (%v), starting from seed data", err)
	}

	auth := httpapi.NewAuthManager(cfg.AuthSecret, time.Duration(cfg.AccessTokenTTLMinutes)*time.Minute, cfg.ManagerPassword, cfg.CashierPassword)
	api := httpapi.New(svc, auth, engine, cfg.AllowedOrigin)

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("bakery terminal listening on %s", cfg.Address())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}

	if err := svc.SaveState(shutdownCtx); err != nil {
		log.Printf("final state save failed: %v", err)
	}

	store.Close()
	engine.Close()
	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			log.Printf("close error: %v", err)
		}
	}

	log.Println("terminal stopped")
}

func validateSecurityConfig(cfg config.Config) error {
	if len(cfg.AuthSecret) < 32 {
		return fmt.Errorf("AUTH_SECRET must be set and at least 32 characters")
	}
	if len(cfg.ManagerPassword) < 6 {
		return fmt.Errorf("MANAGER_PASSWORD must be set and at least 6 characters")
	}
	if cfg.CashierPassword != "" && len(cfg.CashierPassword) < 6 {
		return fmt.Errorf("CASHIER_PASSWORD must be at least 6 characters when set")
	}
	if cfg.ManagerPassword == cfg.CashierPassword {
		return fmt.Errorf("MANAGER_PASSWORD and CASHIER_PASSWORD must differ")
	}
	return nil
}
