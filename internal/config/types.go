package config

type Config struct {
	Logging LoggingConfig `json:"logging"`

	// Storage controls where trigger handles persist. Required: startup
	// restore and drift reconciliation both read it.
	Storage StorageConfig `json:"storage"`

	Trigger TriggerConfig `json:"trigger"`

	// Notify controls the delivery pipeline. If omitted, notifications go
	// to the console sink with default pacing.
	Notify *NotifyConfig `json:"notify,omitempty"`

	// Remote connects this process to the wellness backend. If omitted,
	// the process runs without sync: triggers exist only as long as both
	// the process and the handle index agree.
	Remote *RemoteConfig `json:"remote,omitempty"`

	// Reconcile controls the periodic index-vs-runtime drift check.
	Reconcile *ReconcileConfig `json:"reconcile,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// StorageConfig selects the handle index driver.
//
// Example:
//
//	"storage": { "driver": "file", "path": "./lembra_index" }
type StorageConfig struct {
	Driver      string `json:"driver"` // "file" or "sqlite"
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
}

type TriggerConfig struct {
	// Timezone for trigger firing, e.g. "America/Sao_Paulo".
	// Empty means the process-local zone.
	Timezone string `json:"timezone,omitempty"`
}

// NotifyConfig controls the async delivery pipeline.
//
// All durations are Go duration strings (e.g. "500ms", "10s", "1m").
//
// Defaults (when fields are omitted/zero):
//   - queue_size: 128
//   - rate_per_sec: 5
//   - retry_max: 3
//   - retry_base: "500ms"
//   - retry_max_delay: "5s"
//   - history_size: 100
type NotifyConfig struct {
	Console  bool          `json:"console"`
	Telegram *TelegramSink `json:"telegram,omitempty"`

	QueueSize     int    `json:"queue_size,omitempty"`
	RatePerSec    int    `json:"rate_per_sec,omitempty"`
	RetryMax      int    `json:"retry_max,omitempty"`
	RetryBase     string `json:"retry_base,omitempty"`
	RetryMaxDelay string `json:"retry_max_delay,omitempty"`
	HistorySize   int    `json:"history_size,omitempty"`
}

type TelegramSink struct {
	Enabled bool   `json:"enabled"`
	Token   string `json:"token"`
	ChatID  int64  `json:"chat_id"`
}

// RemoteConfig points at the backend's reminder API.
type RemoteConfig struct {
	BaseURL string `json:"base_url"`
	Token   string `json:"token"`
	// SyncInterval is a Go duration string. Default "5m".
	SyncInterval string `json:"sync_interval,omitempty"`
	// Timeout bounds a single API request. Default "10s".
	Timeout string `json:"timeout,omitempty"`
}

type ReconcileConfig struct {
	Enabled bool `json:"enabled"`
	// Interval is a Go duration string. Default "10m".
	Interval string `json:"interval,omitempty"`
}

// Default returns the configuration a fresh install starts from.
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{Level: "info", Console: true},
		Storage: StorageConfig{Driver: "file", Path: "./lembra_index"},
		Notify:  &NotifyConfig{Console: true},
		Reconcile: &ReconcileConfig{
			Enabled:  true,
			Interval: "10m",
		},
	}
}
