package app

import (
	"fmt"
	"strings"
	"time"

	"lembra/internal/index"
	"lembra/internal/notify"
	"lembra/internal/reconcile"
	"lembra/internal/remote"
	logx "lembra/pkg/logx"
)

func mapStorageConfig(cfg *Config) (index.Config, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Storage.Driver))
	path := strings.TrimSpace(cfg.Storage.Path)

	switch driver {
	case "file":
		return index.Config{Driver: "file", Path: path}, nil
	case "sqlite", "sqlite3":
		if path == "" {
			return index.Config{}, fmt.Errorf("storage.path is required when storage.driver=sqlite")
		}
		busy, err := parseDurationOrDefault("storage.busy_timeout", cfg.Storage.BusyTimeout, time.Second)
		if err != nil {
			return index.Config{}, err
		}
		return index.Config{Driver: driver, Path: path, BusyTimeout: busy}, nil
	default:
		return index.Config{}, fmt.Errorf("unknown storage.driver: %s", cfg.Storage.Driver)
	}
}

func mapNotifyConfig(cfg *Config) (notify.Config, error) {
	n := cfg.Notify
	if n == nil {
		return notify.Config{}, nil // notify.New fills defaults
	}
	retryBase, err := parseDurationOrDefault("notify.retry_base", n.RetryBase, 500*time.Millisecond)
	if err != nil {
		return notify.Config{}, err
	}
	retryMaxDelay, err := parseDurationOrDefault("notify.retry_max_delay", n.RetryMaxDelay, 5*time.Second)
	if err != nil {
		return notify.Config{}, err
	}
	return notify.Config{
		QueueSize:     n.QueueSize,
		RatePerSec:    n.RatePerSec,
		RetryMax:      n.RetryMax,
		RetryBase:     retryBase,
		RetryMaxDelay: retryMaxDelay,
		HistorySize:   n.HistorySize,
	}, nil
}

// buildSinks assembles the delivery sinks the config asks for. An omitted
// notify section means console only.
func buildSinks(cfg *Config, log logx.Logger) ([]notify.Sink, error) {
	n := cfg.Notify
	if n == nil {
		return []notify.Sink{notify.NewConsole(log)}, nil
	}

	var sinks []notify.Sink
	if n.Console {
		sinks = append(sinks, notify.NewConsole(log))
	}
	if n.Telegram != nil && n.Telegram.Enabled {
		tg, err := notify.NewTelegram(n.Telegram.Token, n.Telegram.ChatID)
		if err != nil {
			return nil, fmt.Errorf("notify.telegram: %w", err)
		}
		sinks = append(sinks, tg)
	}
	if len(sinks) == 0 {
		return nil, fmt.Errorf("notify: at least one sink must be enabled")
	}
	return sinks, nil
}

func mapRemoteConfig(cfg *Config) (remote.Config, remote.SyncConfig, bool, error) {
	r := cfg.Remote
	if r == nil {
		return remote.Config{}, remote.SyncConfig{}, false, nil
	}
	timeout, err := parseDurationOrDefault("remote.timeout", r.Timeout, 10*time.Second)
	if err != nil {
		return remote.Config{}, remote.SyncConfig{}, false, err
	}
	interval, err := parseDurationOrDefault("remote.sync_interval", r.SyncInterval, remote.DefaultSyncConfig().Interval)
	if err != nil {
		return remote.Config{}, remote.SyncConfig{}, false, err
	}
	return remote.Config{
		BaseURL: r.BaseURL,
		Token:   r.Token,
		Timeout: timeout,
	}, remote.SyncConfig{Interval: interval}, true, nil
}

func mapReconcileConfig(cfg *Config) (reconcile.Config, bool, error) {
	rc := cfg.Reconcile
	if rc == nil {
		// Omitted section keeps the default drift check running.
		return reconcile.DefaultConfig(), true, nil
	}
	if !rc.Enabled {
		return reconcile.Config{}, false, nil
	}
	interval, err := parseDurationOrDefault("reconcile.interval", rc.Interval, reconcile.DefaultConfig().Interval)
	if err != nil {
		return reconcile.Config{}, false, err
	}
	return reconcile.Config{Interval: interval}, true, nil
}
