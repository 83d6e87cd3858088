package status

import (
	"encoding/json"
	"math"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event          string     `json:"event,omitempty"`
	Reason         string     `json:"reason,omitempty"`
	BootID         string     `json:"boot_id"`
	SpeedKmh       float64    `json:"speed_kmh"`
	Pulses         uint64     `json:"pulses"`
	Brightness     int        `json:"brightness"`
	Lights         string     `json:"lights"`
	Phase          string     `json:"phase"`
	IdleSeconds    int64      `json:"idle_seconds"`
	SleepInSeconds int64      `json:"sleep_in_seconds"`
	Sleeps         int        `json:"sleeps"`
	LastSleep      string     `json:"last_sleep,omitempty"`
	LastWake       string     `json:"last_wake,omitempty"`
	UptimeSeconds  int64      `json:"uptime_seconds"`
	StartTime      string     `json:"start_time"`
	Timestamp      string     `json:"timestamp"`
	MQTT           MQTTStatus `json:"mqtt"`
	Config         ConfigJSON `json:"config"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	WheelRadius    float64 `json:"wheel_radius_m"`
	PulsesPerRev   int     `json:"pulses_per_rev"`
	DebounceMs     int64   `json:"debounce_ms"`
	SleepTimeoutMs int64   `json:"sleep_timeout_ms"`
	TickMs         int64   `json:"tick_ms"`
	HeartbeatMs    int64   `json:"heartbeat_ms"`
	Broker         string  `json:"broker"`
	HTTPAddr       string  `json:"http_addr"`
}

// OnOff renders a boolean the way events and the status page show it.
func OnOff(on bool) string {
	if on {
		return "ON"
	}
	return "OFF"
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func buildInner(snap Snapshot) StatusInner {
	phase := string(snap.Inactivity.Phase)
	if phase == "" {
		phase = "UNKNOWN"
	}

	return StatusInner{
		BootID:         snap.BootID,
		SpeedKmh:       math.Round(snap.Speed*10) / 10,
		Pulses:         snap.Pulses,
		Brightness:     snap.Brightness,
		Lights:         OnOff(snap.LightsOn),
		Phase:          phase,
		IdleSeconds:    int64(snap.Inactivity.Idle.Seconds()),
		SleepInSeconds: int64(snap.Inactivity.Remaining.Seconds()),
		Sleeps:         snap.Sleeps,
		LastSleep:      formatTime(snap.LastSleep),
		LastWake:       formatTime(snap.LastWake),
		UptimeSeconds:  int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:      formatTime(snap.StartTime),
		Timestamp:      formatTime(snap.Now),
		MQTT:           MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Config: ConfigJSON{
			WheelRadius:    snap.Config.WheelRadius,
			PulsesPerRev:   snap.Config.PulsesPerRev,
			DebounceMs:     snap.Config.DebounceMs,
			SleepTimeoutMs: snap.Config.SleepTimeoutMs,
			TickMs:         snap.Config.TickMs,
			HeartbeatMs:    snap.Config.HeartbeatMs,
			Broker:         snap.Config.Broker,
			HTTPAddr:       snap.Config.HTTPAddr,
		},
	}
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(StatusJSON{Status: buildInner(snap)}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
