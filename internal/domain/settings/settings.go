// Package settings defines mutable procurement settings consulted by the
// lifecycle guards. They are injected into decision functions rather than
// read from ambient state so the core stays testable without a live store.
package settings

import "time"

// Procurement holds the operator-tunable thresholds of the award lifecycle.
type Procurement struct {
	// CommitteeQuorum is the minimum number of quotations required before
	// scoring may begin.
	CommitteeQuorum int `json:"committee_quorum"`
	// StandbyDepth is how many runners-up are kept on standby under the
	// single-vendor strategy.
	StandbyDepth int `json:"standby_depth"`
	// ResponseWindow is the default vendor response window applied when a
	// finalize request supplies no explicit award response deadline.
	ResponseWindow time.Duration `json:"response_window"`
}

// Defaults returns the settings used when none are stored.
func Defaults() Procurement {
	return Procurement{
		CommitteeQuorum: 2,
		StandbyDepth:    2,
		ResponseWindow:  7 * 24 * time.Hour,
	}
}
