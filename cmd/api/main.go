package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/zestlabs/admin-sentinel/internal/analytics"
	"github.com/zestlabs/admin-sentinel/internal/auth"
	"github.com/zestlabs/admin-sentinel/internal/hardware"
	"github.com/zestlabs/admin-sentinel/internal/report"
	"github.com/zestlabs/admin-sentinel/internal/resolver"
	"github.com/zestlabs/admin-sentinel/internal/router"
	"github.com/zestlabs/admin-sentinel/pkg/firebase"
	"github.com/zestlabs/admin-sentinel/pkg/utilities"
)

func main() {
	// best-effort: without a .env file, real env vars apply
	_ = godotenv.Load()

	lg, err := utilities.NewLogger(utilities.LogConfigFromEnv())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer lg.Sync()

	sugar := lg.Sugar()
	sugar.Info("starting admin-sentinel")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Academy is the primary project; its service account is required.
	academyCfg := firebase.AcademyConfigFromEnv()
	academyHandle, err := firebase.Connect(ctx, academyCfg)
	if err != nil {
		sugar.Fatalf("connect academy project: %v", err)
	}
	defer academyHandle.Close()
	academySource := resolver.NewAdminSource(academyHandle)

	// Zestfolio's service account is optional; its live stores are reached
	// over client-keyed REST access with an anonymous session.
	zestfolioCfg := firebase.ZestfolioConfigFromEnv()
	zestfolioRest := resolver.NewRestSource(zestfolioCfg, nil, sugar)
	var zestfolioAccounts resolver.AccountLister
	if zestfolioCfg.Account.Configured() {
		zestfolioHandle, err := firebase.Connect(ctx, zestfolioCfg)
		if err != nil {
			sugar.Fatalf("connect zestfolio project: %v", err)
		}
		defer zestfolioHandle.Close()
		zestfolioAccounts = resolver.NewAdminSource(zestfolioHandle)
	} else {
		sugar.Warn("zestfolio service account not configured, tier 1 unavailable")
	}

	resolvers := resolver.Set{
		resolver.ProjectAcademy: resolver.New(resolver.ProjectAcademy, sugar,
			resolver.AdminTier{Accounts: academySource},
			resolver.DocumentTier{Store: academySource},
			resolver.RealtimeTier{Store: academySource},
		),
		resolver.ProjectZestfolio: resolver.New(resolver.ProjectZestfolio, sugar,
			resolver.AdminTier{Accounts: zestfolioAccounts},
			resolver.DocumentTier{Store: zestfolioRest},
			resolver.RealtimeTier{Store: zestfolioRest},
		),
	}
	catalogs := map[resolver.Project]resolver.Catalog{
		resolver.ProjectAcademy:   academySource,
		resolver.ProjectZestfolio: zestfolioRest,
	}

	session, err := auth.SessionFromEnv()
	if err != nil {
		sugar.Fatalf("session config: %v", err)
	}
	gate := hardware.NewGate(sugar)
	authSvc := auth.NewService(academyHandle.Auth, sugar)

	sender := report.NewTelegramSender(nil, sugar)
	reportSvc := report.NewService(resolvers, zestfolioRest, report.NewComposer(), sugar)

	handler := router.RegisterRoutes(sugar, router.Deps{
		Gate:      gate,
		Devices:   hardware.NewHandler(gate, sugar),
		Auth:      auth.NewHandler(authSvc, session, sugar),
		Session:   session,
		Resolver:  resolver.NewHandler(resolvers, catalogs, sugar),
		Analytics: analytics.NewHandler(resolvers, sugar),
		Webhook:   report.NewHandler(reportSvc, sender, sugar),
	})

	addr := os.Getenv("HTTP_ADDR")
	if addr == "" {
		addr = "0.0.0.0:8850"
	}
	srv := &http.Server{Addr: addr, Handler: handler}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			sugar.Fatalf("http server failed: %v", err)
		}
	}()

	sugar.Infow("service is running", "addr", addr)
	<-ctx.Done()

	sugar.Info("shutting down")
	doneCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(doneCtx); err != nil {
		sugar.Warnf("http server shutdown failed: %v", err)
	}
	sugar.Info("goodbye")
}
