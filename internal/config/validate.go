package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate rejects configs that would fail at wiring time. It is used both
// at startup and as the watch-time gate, so a bad edit never reaches a
// running process.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}

	if lvl := strings.ToLower(strings.TrimSpace(cfg.Logging.Level)); lvl != "" {
		switch lvl {
		case "trace", "debug", "info", "warn", "warning", "error":
		default:
			return fmt.Errorf("logging.level: unknown level %q", cfg.Logging.Level)
		}
	}

	switch drv := strings.TrimSpace(cfg.Storage.Driver); drv {
	case "":
		return errors.New("storage.driver is required")
	case "file", "sqlite", "sqlite3":
	default:
		return fmt.Errorf("storage.driver: unknown driver %q", drv)
	}
	if strings.TrimSpace(cfg.Storage.Path) == "" {
		return errors.New("storage.path is required")
	}
	if _, err := ParseDurationField("storage.busy_timeout", cfg.Storage.BusyTimeout); err != nil {
		return err
	}

	if n := cfg.Notify; n != nil {
		tgEnabled := n.Telegram != nil && n.Telegram.Enabled
		if !n.Console && !tgEnabled {
			return errors.New("notify: at least one sink must be enabled")
		}
		if tgEnabled {
			if strings.TrimSpace(n.Telegram.Token) == "" {
				return errors.New("notify.telegram.token is required when enabled")
			}
			if n.Telegram.ChatID == 0 {
				return errors.New("notify.telegram.chat_id is required when enabled")
			}
		}
		for _, f := range []struct{ path, raw string }{
			{"notify.retry_base", n.RetryBase},
			{"notify.retry_max_delay", n.RetryMaxDelay},
		} {
			if _, err := ParseDurationField(f.path, f.raw); err != nil {
				return err
			}
		}
	}

	if r := cfg.Remote; r != nil {
		if strings.TrimSpace(r.BaseURL) == "" {
			return errors.New("remote.base_url is required")
		}
		for _, f := range []struct{ path, raw string }{
			{"remote.sync_interval", r.SyncInterval},
			{"remote.timeout", r.Timeout},
		} {
			if _, err := ParseDurationField(f.path, f.raw); err != nil {
				return err
			}
		}
	}

	if rc := cfg.Reconcile; rc != nil {
		if _, err := ParseDurationField("reconcile.interval", rc.Interval); err != nil {
			return err
		}
	}

	return nil
}
