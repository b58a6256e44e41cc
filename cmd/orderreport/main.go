// orderreport fetches the full order history and prints the orders matching
// a side and state filter, followed by summary counts.
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
	"gridtrader/internal/core"
	"gridtrader/internal/report"
	"gridtrader/internal/robinhood"
)

func main() {
	var (
		configPath string
		orderType  string
		status     string
	)
	flag.StringVar(&configPath, "config", "", "config yaml path (optional)")
	flag.StringVar(&orderType, "type", "", "order side: buy or sell")
	flag.StringVar(&status, "status", "", "order state: filled or open")
	flag.Parse()

	var side core.Side
	switch orderType {
	case "buy":
		side = core.Buy
	case "sell":
		side = core.Sell
	default:
		fatal("--type must be buy or sell")
	}
	var state core.OrderState
	switch status {
	case "filled":
		state = core.OrderFilled
	case "open":
		state = core.OrderOpen
	default:
		fatal("--status must be filled or open")
	}

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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	orders, err := client.Orders(ctx)
	if err != nil {
		fatal(err.Error())
	}
	report.Render(os.Stdout, report.Filter(orders, side, state))
}

func fatal(msg string) {
	fmt.Fprintln(os.Stderr, msg)
	os.Exit(1)
}
