package kabus

import (
	"context"
	"fmt"
	"net/http"

	"github.com/tidwall/gjson"
)

// margin day-trade repayment order constants
const (
	securityTypeStock   = 1
	cashMarginRepay     = 3
	marginTradeDaytrade = 3
	accountTypeSpecific = 4
	frontOrderTypeIOC   = 27
)

// SubmitIOCExit places an immediate-or-cancel limit order closing qty of
// the position identified by holdID. side is the API side code of the
// closing order (opposite the held side). Returns the broker order id.
func (c *Client) SubmitIOCExit(ctx context.Context, symbol string, exchange int, side string, qty int, holdID string, price float64) (string, error) {
	c.mu.Lock()
	orderPassword := c.orderPassword
	c.mu.Unlock()
	if orderPassword == "" {
		return "", fmt.Errorf("kabus order password not configured")
	}
	if holdID == "" || qty <= 0 {
		return "", fmt.Errorf("invalid close request: hold_id=%q qty=%d", holdID, qty)
	}
	payload := map[string]any{
		"Password":        orderPassword,
		"Symbol":          symbol,
		"Exchange":        exchange,
		"SecurityType":    securityTypeStock,
		"Side":            side,
		"CashMargin":      cashMarginRepay,
		"MarginTradeType": marginTradeDaytrade,
		"DelivType":       0,
		"AccountType":     accountTypeSpecific,
		"Qty":             qty,
		"ClosePositions": []map[string]any{
			{"HoldID": holdID, "Qty": qty},
		},
		"FrontOrderType": frontOrderTypeIOC,
		"Price":          price,
		"ExpireDay":      0,
	}
	body, err := c.doRequest(ctx, http.MethodPost, "/sendorder", nil, payload)
	if err != nil {
		return "", err
	}
	parsed := gjson.ParseBytes(body)
	if result := parsed.Get("Result"); result.Exists() && result.Int() != 0 {
		return "", fmt.Errorf("kabus sendorder rejected: result=%d", result.Int())
	}
	return parsed.Get("OrderId").String(), nil
}
