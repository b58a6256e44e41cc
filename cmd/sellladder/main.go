// sellladder places a fixed ascending ladder of limit sell orders starting
// at an initial price and records each placement in the sell ledger.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shopspring/decimal"

	"gridtrader/internal/config"
	"gridtrader/internal/core"
	"gridtrader/internal/grid"
	"gridtrader/internal/ledger"
	"gridtrader/internal/robinhood"
)

func main() {
	var (
		configPath   string
		initialPrice string
		increment    string
		totalOrders  int
		sellAmount   string
	)
	flag.StringVar(&configPath, "config", "", "config yaml path (optional)")
	flag.StringVar(&initialPrice, "initial-price", "", "price of the first sell order, USD")
	flag.StringVar(&increment, "increment", "", "price step between consecutive sells, USD")
	flag.IntVar(&totalOrders, "total-orders", 0, "number of sell orders to place")
	flag.StringVar(&sellAmount, "sell-amount", "", "notional per sell order, USD")
	flag.Parse()

	price, err := requireDecimal("initial-price", initialPrice)
	if err != nil {
		fatal(err.Error())
	}
	step, err := requireDecimal("increment", increment)
	if err != nil {
		fatal(err.Error())
	}
	amount, err := requireDecimal("sell-amount", sellAmount)
	if err != nil {
		fatal(err.Error())
	}
	if totalOrders < 1 {
		fatal("--total-orders must be >= 1")
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fatal(err.Error())
	}
	client, led, err := bootstrap(cfg)
	if err != nil {
		fatal(err.Error())
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	for i := 0; i < totalOrders; i++ {
		if ctx.Err() != nil {
			log.Printf("level=INFO event=sell_ladder_interrupted placed=%d total=%d", i, totalOrders)
			return
		}
		limitPrice := grid.RoundPrice(price)
		qty := grid.QtyForNotional(amount, limitPrice)
		if qty.Cmp(decimal.Zero) <= 0 {
			fatal(fmt.Sprintf("sell amount %s at price %s rounds to zero quantity", amount, limitPrice))
		}
		placed, err := client.PlaceOrder(ctx, core.Order{
			Symbol:     cfg.Symbol,
			Side:       core.Sell,
			Type:       core.Limit,
			LimitPrice: limitPrice,
			AssetQty:   qty,
		})
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			fatal(fmt.Sprintf("place sell %d/%d at %s: %v", i+1, totalOrders, limitPrice, err))
		}
		if err := led.Append(ledger.SellPlaced, ledger.Record{
			Price:    limitPrice,
			Quantity: qty,
			OrderID:  placed.ID,
		}); err != nil {
			fatal(err.Error())
		}
		log.Printf("level=INFO event=sell_placed order_id=%q price=%s qty=%s", placed.ID, limitPrice, qty)
		price = price.Add(step)
	}
	log.Printf("level=INFO event=sell_ladder_done total=%d", totalOrders)
}

func bootstrap(cfg config.Config) (*robinhood.Client, *ledger.Ledger, error) {
	creds, err := config.LoadCredentials()
	if err != nil {
		return nil, nil, err
	}
	signer, err := robinhood.NewSigner(creds.APIKey, creds.PrivateKey)
	if err != nil {
		return nil, nil, err
	}
	client, err := robinhood.NewClient(signer, robinhood.Options{
		BaseURL:       cfg.BaseURL,
		Timeout:       time.Duration(cfg.HTTP.TimeoutSec) * time.Second,
		RetryAttempts: cfg.HTTP.RetryAttempts,
		RetryBackoff:  time.Duration(cfg.HTTP.RetryBackoffMs) * time.Millisecond,
	})
	if err != nil {
		return nil, nil, err
	}
	led, err := ledger.New(cfg.State.Dir)
	if err != nil {
		return nil, nil, err
	}
	return client, led, nil
}

func requireDecimal(name, raw string) (decimal.Decimal, error) {
	if raw == "" {
		return decimal.Decimal{}, fmt.Errorf("--%s is required", name)
	}
	v, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("invalid --%s: %w", name, err)
	}
	if v.Cmp(decimal.Zero) <= 0 {
		return decimal.Decimal{}, fmt.Errorf("--%s must be > 0", name)
	}
	return v, nil
}

func fatal(msg string) {
	fmt.Fprintln(os.Stderr, msg)
	os.Exit(1)
}
