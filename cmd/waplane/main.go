package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/talkgrid/waplane/config"
	"github.com/talkgrid/waplane/internal/adminapi"
	"github.com/talkgrid/waplane/internal/app"
	"github.com/talkgrid/waplane/internal/internalapi"
	"github.com/talkgrid/waplane/internal/lifecycle"
	"github.com/talkgrid/waplane/internal/orchestrator"
	"github.com/talkgrid/waplane/internal/proxy"
	"github.com/talkgrid/waplane/internal/tenantapi"
	"github.com/talkgrid/waplane/internal/webserver"
	"go.uber.org/zap"
)

var (
	h        = flag.Bool("h", false, "help usage")
	conffile = flag.String("c", "/etc/waplane.yml", "config file")
	initdb   = flag.Bool("initdb", false, "drop and recreate the schema, then exit")
)

func main() {
	flag.Parse()
	if *h {
		flag.Usage()
		os.Exit(0)
	}

	_ = godotenv.Load()
	cfg := config.LoadConfig(*conffile)

	application := app.NewApplication(cfg)
	application.Init(cfg)
	defer application.Release()

	if *initdb {
		application.InitDb()
		zap.L().Info("database initialized")
		return
	}

	reg := application.Registry()
	lm := lifecycle.NewManager(cfg.Web.CallbackURL, cfg.Web.InternalSecret)
	orch := orchestrator.New(reg, lm)
	fwd := proxy.New()

	server, err := webserver.New(cfg,
		webserver.TenantAuth(reg.Tenants),
		tenantapi.New(reg, orch, fwd),
		internalapi.New(reg),
		adminapi.New(reg, orch),
	)
	if err != nil {
		zap.S().Fatalf("webserver init error: %v", err)
	}

	go func() {
		if err := server.Start(); err != nil {
			zap.S().Fatalf("webserver error: %v", err)
		}
	}()
	go application.StartBackgroundJobs(context.Background())

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zap.L().Info("shutting down")
}
