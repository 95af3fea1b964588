package signal

// Set is one row of signal flags for the latest sample. Flags are counts,
// not booleans; anything non-zero triggers the corresponding action.
type Set struct {
	Buy               int `json:"buy"`
	Sell              int `json:"sell"`
	BuyExit           int `json:"buy_exit"`
	SellExit          int `json:"sell_exit"`
	EmergencyBuyExit  int `json:"emergency_buy_exit"`
	EmergencySellExit int `json:"emergency_sell_exit"`
}

// Any reports whether any flag is set.
func (s Set) Any() bool {
	return s.Buy != 0 || s.Sell != 0 || s.BuyExit != 0 || s.SellExit != 0 ||
		s.EmergencyBuyExit != 0 || s.EmergencySellExit != 0
}

// HasEntry reports whether an entry flag is set.
func (s Set) HasEntry() bool { return s.Buy != 0 || s.Sell != 0 }

// HasExit reports whether a normal exit flag is set.
func (s Set) HasExit() bool { return s.BuyExit != 0 || s.SellExit != 0 }
