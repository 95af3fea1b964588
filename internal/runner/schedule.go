package runner

import (
	"fmt"
	"time"

	"kabutrade/internal/config"
	"kabutrade/internal/logger"
	"kabutrade/internal/pkg/jst"
)

// ScheduleStart arms a one-shot start at the next occurrence of target
// ("HH:MM", trading time zone). A target already passed today rolls to the
// same time tomorrow. Any previously armed schedule is replaced. Returns
// the delay until the start fires.
func (r *Runner) ScheduleStart(target string) (time.Duration, error) {
	hour, minute, err := config.ParseHHMM(target)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrBadScheduleTime, err)
	}

	r.schedMu.Lock()
	defer r.schedMu.Unlock()
	if r.schedTimer != nil {
		r.schedTimer.Stop()
		r.schedTimer = nil
	}

	now := r.now().In(jst.Location)
	at := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, jst.Location)
	if !at.After(now) {
		at = at.AddDate(0, 0, 1)
	}
	delay := at.Sub(now)

	r.schedTarget = target
	var timer *time.Timer
	timer = time.AfterFunc(delay, func() { r.scheduleFired(timer) })
	r.schedTimer = timer
	logger.Infof("start scheduled: target=%s delay=%s", target, delay.Round(time.Second))
	return delay, nil
}

// scheduleFired runs when an armed timer elapses. A timer that was replaced
// or cancelled while firing must neither start a session nor clear the
// schedule that superseded it.
func (r *Runner) scheduleFired(timer *time.Timer) {
	r.schedMu.Lock()
	if r.schedTimer != timer {
		r.schedMu.Unlock()
		return
	}
	r.schedTimer = nil
	r.schedTarget = ""
	r.schedMu.Unlock()
	if err := r.Start(); err != nil {
		logger.Errorf("scheduled start failed: %v", err)
	}
}

// CancelSchedule disarms the pending schedule. It returns false when
// nothing was armed.
func (r *Runner) CancelSchedule() bool {
	r.schedMu.Lock()
	defer r.schedMu.Unlock()
	if r.schedTimer == nil {
		return false
	}
	r.schedTimer.Stop()
	r.schedTimer = nil
	r.schedTarget = ""
	logger.Infof("scheduled start cancelled")
	return true
}

// Scheduled reports the armed target time, if any.
func (r *Runner) Scheduled() (string, bool) {
	r.schedMu.Lock()
	defer r.schedMu.Unlock()
	return r.schedTarget, r.schedTimer != nil
}
