package config

import (
	"reflect"
	"sort"
	"strings"

	logx "lembra/pkg/logx"
)

// SummarizeConfigChange returns a compact list of changed sections plus
// safe structured attrs for logging. Secrets (API tokens) are reported
// only as set/unset.
func SummarizeConfigChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	changed := make([]string, 0, 6)
	attrs := make([]logx.Field, 0, 16)

	if !reflect.DeepEqual(oldCfg.Logging, newCfg.Logging) {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logx.level", newCfg.Logging.Level),
			logx.Bool("logx.console", newCfg.Logging.Console),
			logx.Bool("logx.file_enabled", newCfg.Logging.File.Enabled),
		)
	}

	if !reflect.DeepEqual(oldCfg.Storage, newCfg.Storage) {
		changed = append(changed, "storage")
		attrs = append(attrs,
			logx.String("storage.driver", strings.TrimSpace(newCfg.Storage.Driver)),
			logx.Bool("storage.path_set", strings.TrimSpace(newCfg.Storage.Path) != ""),
			logx.String("storage.busy_timeout", strings.TrimSpace(newCfg.Storage.BusyTimeout)),
		)
	}

	if strings.TrimSpace(oldCfg.Trigger.Timezone) != strings.TrimSpace(newCfg.Trigger.Timezone) {
		changed = append(changed, "trigger")
		attrs = append(attrs,
			logx.String("trigger.timezone", strings.TrimSpace(newCfg.Trigger.Timezone)),
		)
	}

	// Omitted notify means console defaults; compare against that so
	// adding the section with default values is not reported as a change.
	defN := &NotifyConfig{Console: true}
	oldN, newN := oldCfg.Notify, newCfg.Notify
	if oldN == nil {
		oldN = defN
	}
	if newN == nil {
		newN = defN
	}
	if !reflect.DeepEqual(*oldN, *newN) {
		changed = append(changed, "notify")
		tgEnabled := newN.Telegram != nil && newN.Telegram.Enabled
		attrs = append(attrs,
			logx.Bool("notify.console", newN.Console),
			logx.Bool("notify.telegram_enabled", tgEnabled),
			logx.Int("notify.queue_size", newN.QueueSize),
			logx.Int("notify.rate_per_sec", newN.RatePerSec),
			logx.Int("notify.retry_max", newN.RetryMax),
		)
		if tgEnabled {
			attrs = append(attrs,
				logx.Bool("notify.telegram_token_set", strings.TrimSpace(newN.Telegram.Token) != ""),
				logx.Bool("notify.telegram_chat_set", newN.Telegram.ChatID != 0),
			)
		}
	}

	// Remote (never log the token itself).
	var oBase, nBase, oInt, nInt string
	var oTokSet, nTokSet bool
	if oldCfg.Remote != nil {
		oBase = strings.TrimSpace(oldCfg.Remote.BaseURL)
		oInt = strings.TrimSpace(oldCfg.Remote.SyncInterval)
		oTokSet = strings.TrimSpace(oldCfg.Remote.Token) != ""
	}
	if newCfg.Remote != nil {
		nBase = strings.TrimSpace(newCfg.Remote.BaseURL)
		nInt = strings.TrimSpace(newCfg.Remote.SyncInterval)
		nTokSet = strings.TrimSpace(newCfg.Remote.Token) != ""
	}
	if oBase != nBase || oInt != nInt || oTokSet != nTokSet ||
		(oldCfg.Remote == nil) != (newCfg.Remote == nil) {
		changed = append(changed, "remote")
		attrs = append(attrs,
			logx.Bool("remote.present", newCfg.Remote != nil),
			logx.String("remote.base_url", nBase),
			logx.String("remote.sync_interval", nInt),
			logx.Bool("remote.token_set", nTokSet),
		)
	}

	defR := &ReconcileConfig{Enabled: true, Interval: "10m"}
	oldR, newR := oldCfg.Reconcile, newCfg.Reconcile
	if oldR == nil {
		oldR = defR
	}
	if newR == nil {
		newR = defR
	}
	if *oldR != *newR {
		changed = append(changed, "reconcile")
		attrs = append(attrs,
			logx.Bool("reconcile.enabled", newR.Enabled),
			logx.String("reconcile.interval", strings.TrimSpace(newR.Interval)),
		)
	}

	sort.Strings(changed)
	return changed, attrs
}
