package kabus

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/tidwall/gjson"
)

// WalletCash returns the raw cash wallet payload.
func (c *Client) WalletCash(ctx context.Context) ([]byte, error) {
	return c.doRequest(ctx, http.MethodGet, "/wallet/cash", nil, nil)
}

// WalletMargin returns the raw margin wallet payload.
func (c *Client) WalletMargin(ctx context.Context) ([]byte, error) {
	return c.doRequest(ctx, http.MethodGet, "/wallet/margin", nil, nil)
}

// CashBalance extracts the spendable cash figure from the cash wallet.
func (c *Client) CashBalance(ctx context.Context) (float64, error) {
	body, err := c.WalletCash(ctx)
	if err != nil {
		return 0, err
	}
	return gjson.GetBytes(body, "StockAccountWallet").Float(), nil
}

// MarginBalance extracts the margin buying power figure.
func (c *Client) MarginBalance(ctx context.Context) (float64, error) {
	body, err := c.WalletMargin(ctx)
	if err != nil {
		return 0, err
	}
	return gjson.GetBytes(body, "MarginAccountWallet").Float(), nil
}

// Positions lists margin positions, optionally filtered by symbol. The
// broker's payload uses inconsistent key casing for the hold id, so fields
// are extracted leniently.
func (c *Client) Positions(ctx context.Context, symbol string) ([]Position, error) {
	params := url.Values{}
	params.Set("product", "2")
	params.Set("addinfo", "true")
	if symbol != "" {
		params.Set("symbol", symbol)
	}
	body, err := c.doRequest(ctx, http.MethodGet, "/positions", params, nil)
	if err != nil {
		return nil, err
	}
	parsed := gjson.ParseBytes(body)
	if !parsed.IsArray() {
		return nil, nil
	}
	var out []Position
	parsed.ForEach(func(_, item gjson.Result) bool {
		p := Position{
			HoldID:     firstString(item, "HoldID", "HoldId", "Holdid", "ExecutionID"),
			Symbol:     item.Get("Symbol").String(),
			SymbolName: item.Get("SymbolName").String(),
			Side:       item.Get("Side").String(),
		}
		if qty := item.Get("LeavesQty"); qty.Exists() {
			p.LeavesQty = int(qty.Int())
		} else {
			p.LeavesQty = int(item.Get("Qty").Int())
		}
		if v := item.Get("Price"); v.Exists() && v.Type != gjson.Null {
			f := v.Float()
			p.Price = &f
		}
		if v := item.Get("ProfitLoss"); v.Exists() && v.Type != gjson.Null {
			f := v.Float()
			p.ProfitLoss = &f
		}
		out = append(out, p)
		return true
	})
	return out, nil
}

// Orders lists the broker's order history, optionally filtered by symbol.
func (c *Client) Orders(ctx context.Context, symbol string) ([]Order, error) {
	params := url.Values{}
	params.Set("product", "2")
	params.Set("details", "true")
	if symbol != "" {
		params.Set("symbol", symbol)
	}
	body, err := c.doRequest(ctx, http.MethodGet, "/orders", params, nil)
	if err != nil {
		return nil, err
	}
	var orders []Order
	if err := json.Unmarshal(body, &orders); err != nil {
		return nil, fmt.Errorf("parsing kabus orders failed: %w", err)
	}
	return orders, nil
}

func firstString(item gjson.Result, keys ...string) string {
	for _, k := range keys {
		if v := item.Get(k); v.Exists() && v.String() != "" {
			return v.String()
		}
	}
	return ""
}
