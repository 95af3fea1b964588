package runner

import (
	"time"

	"kabutrade/internal/signal"
)

// State is the runtime snapshot of the trading loop. It is owned by the
// Runner and mutated only under its lock; everything outside reads it
// through GetState, which returns a copy.
type State struct {
	Running    bool        `json:"running"`
	Symbol     string      `json:"symbol"`
	Quantity   int         `json:"quantity"`
	LastPrice  *float64    `json:"last_price"`
	LastSignal *signal.Set `json:"last_signal"`
	LastError  *string     `json:"last_error"`
	LastUpdate *time.Time  `json:"last_update"`
	Mode       string      `json:"mode"`
}

// GetState returns a copy of the current runtime state. The loop never
// mutates values behind the pointer fields after publishing them, so the
// shallow copy is a consistent snapshot.
func (r *Runner) GetState() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}
