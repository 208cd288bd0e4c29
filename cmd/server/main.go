package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/astrolabio1417/legacy-osu-bot/internal/config"
	"github.com/astrolabio1417/legacy-osu-bot/internal/httpapi"
	"github.com/astrolabio1417/legacy-osu-bot/internal/irc"
	"github.com/astrolabio1417/legacy-osu-bot/internal/manager"
	"github.com/astrolabio1417/legacy-osu-bot/internal/osuapi"
)

func main() {
	// .env is optional; real deployments set the variables directly.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger, err := zap.NewDevelopment()
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()

	clientID, err := strconv.Atoi(cfg.OsuAPI.ClientID)
	if err != nil {
		sugar.Fatalw("osu api client id must be numeric", "value", cfg.OsuAPI.ClientID)
	}
	provider := osuapi.NewClient(clientID, cfg.OsuAPI.ClientSecret, sugar)

	conn := irc.NewConn(irc.Config{
		Username: cfg.IRC.Username,
		Password: cfg.IRC.Password,
		Host:     cfg.IRC.Host,
		Port:     cfg.IRC.Port,
	}, sugar)
	m := manager.New(conn, sugar)

	auth := httpapi.NewAuth(cfg.HTTP.Secret, cfg.IRC.Username, cfg.IRC.Password)
	api := httpapi.NewAPI(m, provider, auth, sugar)

	srv := &http.Server{
		Addr:    cfg.HTTP.Addr,
		Handler: httpapi.SetupRoutes(api),
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		sugar.Infow("admin api listening", "addr", cfg.HTTP.Addr)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		sugar.Info("shutting down")
		m.Stop()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		sugar.Fatalw("server exited", "error", err)
	}
}
