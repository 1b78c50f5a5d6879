// Package settings persists the app's typed preferences record through the
// same store as the handle index. One record, one key; never loose string
// flags scattered across call sites.
package settings

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"

	"lembra/internal/index"
	logx "lembra/pkg/logx"
)

const metaKey = "settings"

// Settings is the durable preferences record.
type Settings struct {
	// NotificationsEnabled gates all reminder scheduling globally. When
	// false, sync drives every reminder to zero live triggers.
	NotificationsEnabled bool `json:"notifications_enabled"`

	// InstallID identifies this installation to the backend. Minted once,
	// on first load.
	InstallID string `json:"install_id"`
}

func defaults() Settings {
	return Settings{NotificationsEnabled: true, InstallID: uuid.NewString()}
}

// Service caches the record and writes through to the index meta area.
type Service struct {
	mu     sync.Mutex
	ix     index.Index
	log    logx.Logger
	cur    Settings
	loaded bool
}

func NewService(ix index.Index, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{ix: ix, log: log}
}

// Load reads the persisted record, initializing it on first run. A record
// that fails to decode is replaced with defaults rather than wedging startup.
func (s *Service) Load(ctx context.Context) (Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, ok, err := s.ix.GetMeta(ctx, metaKey)
	if err != nil {
		return Settings{}, err
	}
	if !ok {
		s.cur = defaults()
		s.loaded = true
		return s.cur, s.saveLocked(ctx)
	}

	var st Settings
	if err := json.Unmarshal([]byte(raw), &st); err != nil {
		s.log.Warn("settings record unreadable, resetting", logx.Err(err))
		s.cur = defaults()
		s.loaded = true
		return s.cur, s.saveLocked(ctx)
	}
	if st.InstallID == "" {
		st.InstallID = uuid.NewString()
		s.cur = st
		s.loaded = true
		return s.cur, s.saveLocked(ctx)
	}
	s.cur = st
	s.loaded = true
	return s.cur, nil
}

// Current returns the cached record. Before a successful Load it reports
// the gate as open: a failed settings read must never mass-clear triggers,
// so the unknown state leans toward scheduling.
func (s *Service) Current() Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loaded {
		return Settings{NotificationsEnabled: true}
	}
	return s.cur
}

// SetNotificationsEnabled flips the global gate and persists it.
func (s *Service) SetNotificationsEnabled(ctx context.Context, enabled bool) (Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loaded {
		s.cur = defaults()
		s.loaded = true
	}
	s.cur.NotificationsEnabled = enabled
	if err := s.saveLocked(ctx); err != nil {
		return s.cur, err
	}
	return s.cur, nil
}

func (s *Service) saveLocked(ctx context.Context) error {
	b, err := json.Marshal(s.cur)
	if err != nil {
		return err
	}
	return s.ix.PutMeta(ctx, metaKey, string(b))
}
