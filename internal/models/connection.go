package models

import "time"

// Quality classifies backend reachability by observed round-trip latency.
type Quality string

// Connection quality levels.
const (
	QualityGood    Quality = "good"
	QualitySlow    Quality = "slow"
	QualityPoor    Quality = "poor"
	QualityOffline Quality = "offline"
)

// ConnectionState is the derived view of network health. It is never
// persisted; it is recomputed from the online signal and health probes.
type ConnectionState struct {
	Online           bool          `json:"online"`
	BackendReachable bool          `json:"backend_reachable"`
	Quality          Quality       `json:"quality"`
	Latency          time.Duration `json:"latency"`
	LastChecked      time.Time     `json:"last_checked"`
}

// ClassifyLatency maps a probe round-trip time to a quality level. Probe
// failures classify as poor; the offline signal overrides everything.
func ClassifyLatency(latency time.Duration) Quality {
	switch {
	case latency < time.Second:
		return QualityGood
	case latency <= 3*time.Second:
		return QualitySlow
	default:
		return QualityPoor
	}
}
