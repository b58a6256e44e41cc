// profit reconciles fills against the exchange and prints realized and
// unrealized gains from the ledger.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gridtrader/internal/config"
	"gridtrader/internal/ledger"
	"gridtrader/internal/profit"
	"gridtrader/internal/robinhood"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "config yaml path (optional)")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := profit.SyncFills(ctx, client, led); err != nil {
		fatal(err.Error())
	}

	buys, err := led.Load(ledger.BuyFilled)
	if err != nil {
		fatal(err.Error())
	}
	sells, err := led.Load(ledger.SellFilled)
	if err != nil {
		fatal(err.Error())
	}

	realized := profit.RealizedGains(buys, sells)
	fmt.Printf("Realized Gains: $%s\n", realized.StringFixed(2))

	price, err := client.CurrentPrice(ctx, cfg.Symbol)
	if err != nil {
		fatal(fmt.Sprintf("current price: %v", err))
	}
	unrealized := profit.UnrealizedGains(buys, sells, price)
	fmt.Printf("Unrealized Gains: $%s\n", unrealized.StringFixed(2))
}

func fatal(msg string) {
	fmt.Fprintln(os.Stderr, msg)
	os.Exit(1)
}
