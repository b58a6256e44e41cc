package robinhood

import (
	"time"

	"github.com/shopspring/decimal"

	"gridtrader/internal/core"
)

type limitOrderConfig struct {
	LimitPrice    string `json:"limit_price"`
	TimeInForce   string `json:"time_in_force,omitempty"`
	QuoteAmount   string `json:"quote_amount,omitempty"`
	AssetQuantity string `json:"asset_quantity,omitempty"`
}

type marketOrderConfig struct {
	AssetQuantity string `json:"asset_quantity"`
}

type orderRequest struct {
	ClientOrderID     string             `json:"client_order_id"`
	Side              string             `json:"side"`
	Type              string             `json:"type"`
	Symbol            string             `json:"symbol"`
	LimitOrderConfig  *limitOrderConfig  `json:"limit_order_config,omitempty"`
	MarketOrderConfig *marketOrderConfig `json:"market_order_config,omitempty"`
}

type orderResponse struct {
	ID                string             `json:"id"`
	ClientOrderID     string             `json:"client_order_id"`
	Side              string             `json:"side"`
	Type              string             `json:"type"`
	Symbol            string             `json:"symbol"`
	State             string             `json:"state"`
	CreatedAt         string             `json:"created_at"`
	UpdatedAt         string             `json:"updated_at"`
	LimitOrderConfig  *limitOrderConfig  `json:"limit_order_config,omitempty"`
	MarketOrderConfig *marketOrderConfig `json:"market_order_config,omitempty"`
}

type ordersPage struct {
	Results []orderResponse `json:"results"`
	Next    string          `json:"next"`
	Cursor  string          `json:"cursor"`
}

type bestBidAskResult struct {
	Symbol                   string `json:"symbol"`
	Price                    string `json:"price"`
	AskInclusiveOfBuySpread  string `json:"ask_inclusive_of_buy_spread"`
	BidInclusiveOfSellSpread string `json:"bid_inclusive_of_sell_spread"`
}

type bestBidAskPage struct {
	Results []bestBidAskResult `json:"results"`
}

type accountResponse struct {
	AccountNumber       string `json:"account_number"`
	Status              string `json:"status"`
	BuyingPower         string `json:"buying_power"`
	BuyingPowerCurrency string `json:"buying_power_currency"`
}

// Account is the trading account summary.
type Account struct {
	AccountNumber string
	Status        string
	BuyingPower   decimal.Decimal
}

// BestBidAsk is the spread-inclusive quote for one symbol.
type BestBidAsk struct {
	Symbol string
	Bid    decimal.Decimal
	Ask    decimal.Decimal
}

func (r orderResponse) toCore() core.Order {
	ord := core.Order{
		ID:       r.ID,
		ClientID: r.ClientOrderID,
		Symbol:   r.Symbol,
		Side:     core.Side(r.Side),
		Type:     core.OrderType(r.Type),
		State:    core.OrderState(r.State),
	}
	if cfg := r.LimitOrderConfig; cfg != nil {
		ord.LimitPrice, _ = decimal.NewFromString(cfg.LimitPrice)
		if cfg.AssetQuantity != "" {
			ord.AssetQty, _ = decimal.NewFromString(cfg.AssetQuantity)
		}
		if cfg.QuoteAmount != "" {
			ord.QuoteAmount, _ = decimal.NewFromString(cfg.QuoteAmount)
		}
	}
	if cfg := r.MarketOrderConfig; cfg != nil && cfg.AssetQuantity != "" {
		ord.AssetQty, _ = decimal.NewFromString(cfg.AssetQuantity)
	}
	if ts, err := time.Parse(time.RFC3339, r.CreatedAt); err == nil {
		ord.CreatedAt = ts
	}
	if ts, err := time.Parse(time.RFC3339, r.UpdatedAt); err == nil {
		ord.UpdatedAt = ts
	}
	return ord
}
