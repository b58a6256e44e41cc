// cancelorders cancels every open order on the account.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gridtrader/internal/config"
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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	open, err := client.OpenOrders(ctx)
	if err != nil {
		fatal(err.Error())
	}
	if len(open) == 0 {
		log.Printf("level=INFO event=no_open_orders")
		return
	}

	// Individual rejections are logged, not fatal; the tool still exits zero
	// so a partially-canceled book can be retried.
	failed := 0
	for i, ord := range open {
		if ctx.Err() != nil {
			log.Printf("level=INFO event=cancel_interrupted remaining=%d", len(open)-i)
			return
		}
		msg, err := client.CancelOrder(ctx, ord.ID)
		if err != nil {
			failed++
			log.Printf("level=ERROR event=cancel_failed order_id=%q err=%q", ord.ID, err.Error())
			continue
		}
		log.Printf("level=INFO event=order_canceled order_id=%q response=%q", ord.ID, msg)
	}
	log.Printf("level=INFO event=cancel_done total=%d failed=%d", len(open), failed)
}

func fatal(msg string) {
	fmt.Fprintln(os.Stderr, msg)
	os.Exit(1)
}
