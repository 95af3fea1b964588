package notifier

// Notifier delivers human-facing alerts (entries, stop-loss hits, forced
// liquidation, fatal errors). It is intentionally small so components can
// depend on it without importing concrete implementations.
//
// Callers treat delivery as best-effort: failures are logged, never acted on.
type Notifier interface {
	Send(title, body string) error
}

// Null is a Notifier that discards everything. Used when notifications are
// disabled in configuration.
type Null struct{}

func (Null) Send(string, string) error { return nil }
