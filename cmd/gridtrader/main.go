package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"

	"gridtrader/internal/alert"
	"gridtrader/internal/config"
	"gridtrader/internal/ledger"
	"gridtrader/internal/robinhood"
	"gridtrader/internal/safety"
	"gridtrader/internal/strategy"
)

const (
	maxPlaceFailures  = 5
	maxCancelFailures = 5
)

func main() {
	var (
		configPath      string
		gridSize        string
		usdPositionSize string
		pollInterval    int64
		metricsAddr     string
	)
	flag.StringVar(&configPath, "config", "", "config yaml path (optional)")
	flag.StringVar(&gridSize, "grid-size", "", "price increment between ladder levels, USD")
	flag.StringVar(&usdPositionSize, "usd-position-size", "", "notional per buy order, USD")
	flag.Int64Var(&pollInterval, "poll-interval", 0, "seconds between cycles")
	flag.StringVar(&metricsAddr, "metrics-addr", "", "listen address for /metrics (empty disables)")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		fatal(err.Error())
	}
	if gridSize != "" {
		v, err := decimal.NewFromString(gridSize)
		if err != nil {
			fatal("invalid --grid-size: " + err.Error())
		}
		cfg.Grid.Size = config.Decimal{Decimal: v}
	}
	if usdPositionSize != "" {
		v, err := decimal.NewFromString(usdPositionSize)
		if err != nil {
			fatal("invalid --usd-position-size: " + err.Error())
		}
		cfg.Grid.USDPositionSize = config.Decimal{Decimal: v}
	}
	if pollInterval > 0 {
		cfg.Grid.PollIntervalSec = pollInterval
	}
	if metricsAddr != "" {
		cfg.Metrics.Addr = metricsAddr
	}
	if err := cfg.ValidateGridParams(); err != nil {
		fatal(err.Error())
	}

	creds, err := config.LoadCredentials()
	if err != nil {
		fatal(err.Error())
	}
	signer, err := robinhood.NewSigner(creds.APIKey, creds.PrivateKey)
	if err != nil {
		fatal(err.Error())
	}
	client, err := robinhood.NewClient(signer, robinhood.Options{
		BaseURL:       cfg.BaseURL,
		Timeout:       time.Duration(cfg.HTTP.TimeoutSec) * time.Second,
		RetryAttempts: cfg.HTTP.RetryAttempts,
		RetryBackoff:  time.Duration(cfg.HTTP.RetryBackoffMs) * time.Millisecond,
	})
	if err != nil {
		fatal(err.Error())
	}

	led, err := ledger.New(cfg.State.Dir)
	if err != nil {
		fatal(err.Error())
	}
	lock, err := ledger.AcquireLock(cfg.State.Dir)
	if err != nil {
		fatal(err.Error())
	}
	defer func() {
		if relErr := lock.Release(); relErr != nil {
			fmt.Fprintf(os.Stderr, "release instance lock failed: %v\n", relErr)
		}
	}()

	alerts := buildAlertManager(cfg)
	if alerts != nil {
		defer func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := alerts.Close(closeCtx); err != nil {
				fmt.Fprintf(os.Stderr, "close alert manager failed: %v\n", err)
			}
		}()
	}

	if cfg.Metrics.Addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		go func() {
			log.Printf("level=INFO event=metrics_listening addr=%q", cfg.Metrics.Addr)
			if err := http.ListenAndServe(cfg.Metrics.Addr, mux); err != nil {
				log.Printf("level=ERROR event=metrics_server_failed err=%q", err.Error())
			}
		}()
	}

	breaker := safety.NewBreaker(true, maxPlaceFailures, maxCancelFailures)
	breaker.SetAlerter(alerts)

	eng := strategy.NewEngine(
		cfg.Symbol,
		cfg.Grid.Size.Decimal,
		cfg.Grid.USDPositionSize.Decimal,
		cfg.Grid.WindowUSD.Decimal,
		time.Duration(cfg.Grid.PollIntervalSec)*time.Second,
		client,
		client,
		led,
	)
	eng.SetBreaker(breaker)
	eng.SetAlerter(alerts)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Preflight: proves the credentials sign correctly before any order goes out.
	account, err := client.Account(ctx)
	if err != nil {
		fatal("account check failed: " + err.Error())
	}
	log.Printf("level=INFO event=account_verified account_number=%q status=%q buying_power=%s",
		account.AccountNumber, account.Status, account.BuyingPower)

	log.Printf("level=INFO event=grid_trader_started symbol=%q grid_size=%s usd_position_size=%s window_usd=%s poll_interval_sec=%d",
		cfg.Symbol, cfg.Grid.Size.Decimal, cfg.Grid.USDPositionSize.Decimal, cfg.Grid.WindowUSD.Decimal, cfg.Grid.PollIntervalSec)
	if err := eng.Run(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			log.Printf("level=INFO event=grid_trader_stopped symbol=%q", cfg.Symbol)
			return
		}
		fatal(err.Error())
	}
}

func buildAlertManager(cfg config.Config) *alert.Manager {
	tg := cfg.Telegram
	if !tg.Enabled {
		return nil
	}
	notifier := alert.NewTelegramNotifier(tg.BotToken, tg.ChatID, tg.APIBaseURL, time.Duration(tg.TimeoutSec)*time.Second)
	return alert.NewManager(cfg.Symbol, notifier)
}

func fatal(msg string) {
	fmt.Fprintln(os.Stderr, msg)
	os.Exit(1)
}
