package kabus

import (
	"context"
	"fmt"
	"net/http"

	"github.com/tidwall/gjson"
)

// Board returns the raw board payload for a symbol.
func (c *Client) Board(ctx context.Context, symbol string, exchange int) ([]byte, error) {
	path := fmt.Sprintf("/board/%s@%d", symbol, exchange)
	return c.doRequest(ctx, http.MethodGet, path, nil, nil)
}

// CurrentPrice returns the symbol's current price, or nil when the board
// carries no price (pre-open, halted).
func (c *Client) CurrentPrice(ctx context.Context, symbol string, exchange int) (*float64, error) {
	body, err := c.Board(ctx, symbol, exchange)
	if err != nil {
		return nil, err
	}
	v := gjson.GetBytes(body, "CurrentPrice")
	if !v.Exists() || v.Type == gjson.Null {
		return nil, nil
	}
	price := v.Float()
	if price <= 0 {
		return nil, nil
	}
	return &price, nil
}

// SymbolInfo returns the raw symbol master payload.
func (c *Client) SymbolInfo(ctx context.Context, symbol string, exchange int) ([]byte, error) {
	path := fmt.Sprintf("/symbol/%s@%d", symbol, exchange)
	return c.doRequest(ctx, http.MethodGet, path, nil, nil)
}

// ExchangeRate returns the raw FX payload for a pair such as "usdjpy".
func (c *Client) ExchangeRate(ctx context.Context, pair string) ([]byte, error) {
	return c.doRequest(ctx, http.MethodGet, "/exchange/"+pair, nil, nil)
}
