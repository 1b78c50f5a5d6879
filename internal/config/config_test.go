package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

const sampleJSON = `{
  "logging": {"level": "debug", "console": true, "file": {"enabled": false, "path": ""}},
  "storage": {"driver": "sqlite", "path": "./state.db", "busy_timeout": "5s"},
  "trigger": {"timezone": "America/Sao_Paulo"},
  "notify": {"console": true, "rate_per_sec": 5},
  "remote": {"base_url": "https://api.example.com", "token": "tok", "sync_interval": "5m"},
  "reconcile": {"enabled": true, "interval": "10m"}
}`

const sampleYAML = `logging:
  level: debug
  console: true
  file:
    enabled: false
    path: ""
storage:
  driver: sqlite
  path: ./state.db
  busy_timeout: 5s
trigger:
  timezone: America/Sao_Paulo
notify:
  console: true
  rate_per_sec: 5
remote:
  base_url: https://api.example.com
  token: tok
  sync_interval: 5m
reconcile:
  enabled: true
  interval: 10m
`

func TestParseJSONAndYAMLAgree(t *testing.T) {
	t.Parallel()

	jm := NewConfigManager(writeConfig(t, "lembra.json", sampleJSON))
	jcfg, err := jm.Parse()
	if err != nil {
		t.Fatalf("parse json: %v", err)
	}
	ym := NewConfigManager(writeConfig(t, "lembra.yaml", sampleYAML))
	ycfg, err := ym.Parse()
	if err != nil {
		t.Fatalf("parse yaml: %v", err)
	}

	if diff := cmp.Diff(jcfg, ycfg); diff != "" {
		t.Errorf("json and yaml parse differently (-json +yaml):\n%s", diff)
	}
	if jcfg.Storage.Driver != "sqlite" || jcfg.Trigger.Timezone != "America/Sao_Paulo" {
		t.Errorf("parsed config = %+v", jcfg)
	}
	if jcfg.Remote == nil || jcfg.Remote.BaseURL != "https://api.example.com" {
		t.Errorf("remote section = %+v", jcfg.Remote)
	}
}

func TestParseRejectsUnknownFields(t *testing.T) {
	t.Parallel()

	m := NewConfigManager(writeConfig(t, "bad.json",
		`{"storage": {"driver": "file", "path": "x"}, "trigegr": {}}`))
	if _, err := m.Parse(); err == nil {
		t.Fatal("expected unknown-field error")
	}
}

func TestParseRejectsTrailingData(t *testing.T) {
	t.Parallel()

	m := NewConfigManager(writeConfig(t, "bad.json",
		`{"storage": {"driver": "file", "path": "x"}} {"extra": 1}`))
	_, err := m.Parse()
	if err == nil || !strings.Contains(err.Error(), "trailing") {
		t.Fatalf("err = %v, want trailing data error", err)
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	valid := func() *Config {
		return &Config{
			Logging: LoggingConfig{Level: "info", Console: true},
			Storage: StorageConfig{Driver: "file", Path: "./idx"},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "minimal valid", mutate: func(c *Config) {}},
		{name: "default is valid", mutate: func(c *Config) { *c = *Default() }},
		{name: "missing driver", mutate: func(c *Config) { c.Storage.Driver = "" }, wantErr: "storage.driver"},
		{name: "unknown driver", mutate: func(c *Config) { c.Storage.Driver = "redis" }, wantErr: "storage.driver"},
		{name: "missing path", mutate: func(c *Config) { c.Storage.Path = " " }, wantErr: "storage.path"},
		{name: "bad level", mutate: func(c *Config) { c.Logging.Level = "loud" }, wantErr: "logging.level"},
		{name: "bad busy timeout", mutate: func(c *Config) { c.Storage.BusyTimeout = "fast" }, wantErr: "busy_timeout"},
		{
			name:    "notify without sinks",
			mutate:  func(c *Config) { c.Notify = &NotifyConfig{} },
			wantErr: "at least one sink",
		},
		{
			name: "telegram without token",
			mutate: func(c *Config) {
				c.Notify = &NotifyConfig{Telegram: &TelegramSink{Enabled: true, ChatID: 1}}
			},
			wantErr: "telegram.token",
		},
		{
			name: "telegram without chat",
			mutate: func(c *Config) {
				c.Notify = &NotifyConfig{Telegram: &TelegramSink{Enabled: true, Token: "t"}}
			},
			wantErr: "telegram.chat_id",
		},
		{
			name:    "remote without base url",
			mutate:  func(c *Config) { c.Remote = &RemoteConfig{Token: "t"} },
			wantErr: "remote.base_url",
		},
		{
			name:    "bad sync interval",
			mutate:  func(c *Config) { c.Remote = &RemoteConfig{BaseURL: "http://x", SyncInterval: "soon"} },
			wantErr: "sync_interval",
		},
		{
			name:    "bad reconcile interval",
			mutate:  func(c *Config) { c.Reconcile = &ReconcileConfig{Enabled: true, Interval: "-1m"} },
			wantErr: "reconcile.interval",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := Validate(cfg)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("err = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestSummarizeConfigChange(t *testing.T) {
	t.Parallel()

	base := Default()

	t.Run("no change", func(t *testing.T) {
		changed, _ := SummarizeConfigChange(base, Default())
		if len(changed) != 0 {
			t.Errorf("changed = %v, want none", changed)
		}
	})

	t.Run("timezone change", func(t *testing.T) {
		next := Default()
		next.Trigger.Timezone = "America/Sao_Paulo"
		changed, _ := SummarizeConfigChange(base, next)
		if len(changed) != 1 || changed[0] != "trigger" {
			t.Errorf("changed = %v, want [trigger]", changed)
		}
	})

	t.Run("omitted notify equals defaults", func(t *testing.T) {
		next := Default()
		next.Notify = nil
		changed, _ := SummarizeConfigChange(base, next)
		if len(changed) != 0 {
			t.Errorf("changed = %v, want none", changed)
		}
	})

	t.Run("token never leaks", func(t *testing.T) {
		next := Default()
		next.Remote = &RemoteConfig{BaseURL: "http://x", Token: "super-secret"}
		_, attrs := SummarizeConfigChange(base, next)
		if len(attrs) == 0 {
			t.Fatal("expected attrs for remote change")
		}
		// Fields are opaque closures; the guarantee is structural: the
		// summary only builds token_set booleans, never token values.
	})
}

func TestLoadCommitGet(t *testing.T) {
	t.Parallel()

	m := NewConfigManager(writeConfig(t, "lembra.json", sampleJSON))
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := m.Get(); got != cfg {
		t.Errorf("Get returned %p, want committed %p", got, cfg)
	}
}

func TestPublishKeepsLatestForSlowSubscriber(t *testing.T) {
	t.Parallel()

	m := NewConfigManager("unused")
	ch := m.Subscribe(1)
	defer m.Unsubscribe(ch)

	first := &Config{Trigger: TriggerConfig{Timezone: "UTC"}}
	second := &Config{Trigger: TriggerConfig{Timezone: "America/Sao_Paulo"}}
	m.publish(first)
	m.publish(second)

	got := <-ch
	if got.Trigger.Timezone != "America/Sao_Paulo" {
		t.Errorf("subscriber got %q, want the latest config", got.Trigger.Timezone)
	}
}
