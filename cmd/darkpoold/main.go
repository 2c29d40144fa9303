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

	"golang.org/x/sync/errgroup"

	"github.com/obscura-markets/darkpool/params"
	"github.com/obscura-markets/darkpool/pkg/api"
	"github.com/obscura-markets/darkpool/pkg/client"
	"github.com/obscura-markets/darkpool/pkg/keys"
	"github.com/obscura-markets/darkpool/pkg/ledger"
	"github.com/obscura-markets/darkpool/pkg/util"
)

func main() {
	// Load config from .env file and environment variables
	cfg := params.LoadFromEnv("") // "" means load from .env in current directory

	// Setup logging (write to both console and file)
	logger, err := util.NewLoggerWithFile(cfg.Node.LogFile)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()
	sugar.Infow("logger_initialized", "log_file", cfg.Node.LogFile)

	// ---- Node wallet ----
	walletFile := os.Getenv("WALLET_FILE")
	if walletFile == "" {
		walletFile = "data/wallet.key"
	}
	wallet, err := keys.Load(walletFile)
	if err != nil {
		wallet, err = keys.Generate()
		if err != nil {
			sugar.Fatalw("wallet_generate_failed", "err", err)
		}
		if err := wallet.Save(walletFile); err != nil {
			sugar.Fatalw("wallet_save_failed", "path", walletFile, "err", err)
		}
		sugar.Infow("wallet_generated", "path", walletFile, "identity", wallet.Identity())
	} else {
		sugar.Infow("wallet_loaded", "path", walletFile, "identity", wallet.Identity())
	}

	// ---- Ledger ----
	store, err := ledger.NewStore(cfg.Node.DBPath)
	if err != nil {
		sugar.Fatalw("store_open_failed", "path", cfg.Node.DBPath, "err", err)
	}
	defer store.Close()

	led, err := ledger.New(store, cfg.Program, util.RealClock{}, sugar)
	if err != nil {
		sugar.Fatalw("ledger_init_failed", "err", err)
	}

	// ---- Client ----
	c, err := client.New(cfg, led, wallet, sugar)
	if err != nil {
		sugar.Fatalw("client_init_failed", "err", err)
	}

	sugar.Infow("node_starting",
		"identity", c.Identity(),
		"darkpool_program", cfg.Program.DarkpoolID,
		"delegation_program", cfg.Program.DelegationID,
		"tee_validator", cfg.Program.TEEValidator,
		"api_addr", cfg.Node.APIAddr)

	// ---- API Server ----
	apiServer := api.NewServer(c, led)
	httpServer := &http.Server{
		Addr:    cfg.Node.APIAddr,
		Handler: apiServer.Handler(),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		go apiServer.RunHub()
		sugar.Infow("api_server_starting", "addr", cfg.Node.APIAddr)
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		sugar.Fatalw("node_failed", "err", err)
	}
	sugar.Info("node_stopped")
}
