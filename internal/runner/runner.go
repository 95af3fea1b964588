// Package runner holds the trading control loop: a state machine that
// starts, stops, schedules and force-closes an intraday margin trading
// session, recording every trade and account sample in the ledger.
package runner

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"kabutrade/internal/gateway/kabus"
	"kabutrade/internal/gateway/notifier"
	"kabutrade/internal/ledger"
	"kabutrade/internal/logger"
	"kabutrade/internal/pkg/jst"
	"kabutrade/internal/signal"
)

var (
	ErrAlreadyRunning  = errors.New("trading loop already running")
	ErrNotConfigured   = errors.New("broker credentials not configured")
	ErrBadScheduleTime = errors.New("invalid schedule time")
)

// Gateway is the slice of the broker client the runner needs. The loop
// only ever sees "succeeds or fails"; HTTP and token semantics stay inside
// the kabus package.
type Gateway interface {
	Configured() bool
	CurrentPrice(ctx context.Context, symbol string, exchange int) (*float64, error)
	Positions(ctx context.Context, symbol string) ([]kabus.Position, error)
	SubmitIOCExit(ctx context.Context, symbol string, exchange int, side string, qty int, holdID string, price float64) (string, error)
	CashBalance(ctx context.Context) (float64, error)
	MarginBalance(ctx context.Context) (float64, error)
}

// Ledger is the slice of the store the runner writes to. Write failures
// are logged and swallowed; bookkeeping must never halt trading.
type Ledger interface {
	RecordTrade(in ledger.TradeInput) (int64, error)
	RecordOrder(symbol, side string, quantity int, orderType string, price *float64, orderID *string, status string, raw []byte) error
	RecordPLSnapshot(symbol *string, plTotal, walletCash, walletMargin *float64, positionsCount int) error
}

// Options are the per-session trading parameters. They are captured once
// at Start; changes via UpdateConfig apply from the next session.
type Options struct {
	Symbol          string
	Exchange        int
	Quantity        int
	SleepInterval   time.Duration
	ForceCloseTime  string
	MaxDailyLossPct float64
	StopLossPct     float64
	Mode            string
}

// Runner owns the runtime state and the loop goroutine. At most one loop
// runs at a time; terminal exits flip running false and a fresh Start may
// follow.
type Runner struct {
	gw     Gateway
	store  Ledger
	notify notifier.Notifier

	mu     sync.Mutex
	state  State
	opts   Options
	cancel context.CancelFunc
	gen    uint64

	schedMu     sync.Mutex
	schedTimer  *time.Timer
	schedTarget string

	now func() time.Time
}

func New(gw Gateway, store Ledger, notify notifier.Notifier, opts Options) *Runner {
	if opts.Mode == "" {
		opts.Mode = "daytrade"
	}
	if opts.SleepInterval <= 0 {
		opts.SleepInterval = 300 * time.Millisecond
	}
	if notify == nil {
		notify = notifier.Null{}
	}
	return &Runner{
		gw:     gw,
		store:  store,
		notify: notify,
		opts:   opts,
		state: State{
			Symbol:   opts.Symbol,
			Quantity: opts.Quantity,
			Mode:     opts.Mode,
		},
		now: jst.Now,
	}
}

// Start launches the loop goroutine and returns immediately. It fails when
// a loop is already running or when broker credentials are absent.
func (r *Runner) Start() error {
	if !r.gw.Configured() {
		return ErrNotConfigured
	}
	r.mu.Lock()
	if r.state.Running {
		r.mu.Unlock()
		return ErrAlreadyRunning
	}
	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	r.state.Running = true
	r.state.LastError = nil
	r.state.Symbol = r.opts.Symbol
	r.state.Quantity = r.opts.Quantity
	r.gen++
	gen := r.gen
	opts := r.opts
	r.mu.Unlock()

	id := strings.Split(uuid.NewString(), "-")[0]
	go r.run(ctx, cancel, gen, id, opts)
	return nil
}

// Stop raises the cancellation signal and flips running false. It does not
// wait for the loop goroutine; cancellation is observed at the next
// iteration boundary.
func (r *Runner) Stop() {
	r.mu.Lock()
	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}
	r.state.Running = false
	r.mu.Unlock()
	logger.Infof("trading loop stop requested")
}

// UpdateConfig changes the traded symbol and/or quantity. The change is
// visible in state immediately and takes effect at the next Start.
func (r *Runner) UpdateConfig(symbol *string, quantity *int) State {
	r.mu.Lock()
	defer r.mu.Unlock()
	if symbol != nil && strings.TrimSpace(*symbol) != "" {
		r.opts.Symbol = strings.TrimSpace(*symbol)
		r.state.Symbol = r.opts.Symbol
	}
	if quantity != nil && *quantity > 0 {
		r.opts.Quantity = *quantity
		r.state.Quantity = *quantity
	}
	return r.state
}

// Positions lists the broker's open positions for the configured symbol.
func (r *Runner) Positions(ctx context.Context) ([]kabus.Position, error) {
	r.mu.Lock()
	symbol := r.opts.Symbol
	r.mu.Unlock()
	return r.gw.Positions(ctx, symbol)
}

func (r *Runner) run(ctx context.Context, cancel context.CancelFunc, gen uint64, id string, opts Options) {
	defer cancel()
	err := r.loop(ctx, id, opts)

	r.mu.Lock()
	// a stopped session must not clobber the state of a newer one
	if r.gen == gen {
		r.state.Running = false
		if err != nil {
			msg := err.Error()
			r.state.LastError = &msg
		}
	}
	r.mu.Unlock()

	if err != nil {
		logger.Errorf("trading loop terminated: session=%s err=%v", id, err)
		r.notifySend("Trading loop failed", fmt.Sprintf("session %s: %v", id, err))
		return
	}
	logger.Infof("trading loop finished: session=%s", id)
}

func (r *Runner) notifySend(title, body string) {
	go func() {
		if err := r.notify.Send(title, body); err != nil {
			logger.Warnf("notification failed: %v", err)
		}
	}()
}

func (r *Runner) recordTrade(in ledger.TradeInput) (int64, bool) {
	id, err := r.store.RecordTrade(in)
	if err != nil {
		metricLedgerWriteFailed.Inc()
		logger.Errorf("recording %s trade failed: %v", in.TradeType, err)
		return 0, false
	}
	return id, true
}

func (r *Runner) recordOrder(symbol, side string, qty int, price *float64, orderID *string, status string) {
	if err := r.store.RecordOrder(symbol, side, qty, "ioc_close", price, orderID, status, nil); err != nil {
		metricLedgerWriteFailed.Inc()
		logger.Errorf("recording order failed: %v", err)
	}
}

func (r *Runner) publishPrice(price *float64) {
	now := r.now()
	r.mu.Lock()
	r.state.LastPrice = price
	r.state.LastUpdate = &now
	r.mu.Unlock()
}

func (r *Runner) publishSignal(set signal.Set) {
	s := set
	r.mu.Lock()
	r.state.LastSignal = &s
	r.mu.Unlock()
}

func (r *Runner) lastPrice() *float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state.LastPrice
}
