package index

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/natefinch/atomic"

	logx "lembra/pkg/logx"
)

// fileIndex is a dependency-free backend.
//
// Files:
//   - <prefix>.snapshot.json (full state, atomically replaced)
//   - <prefix>.journal.jsonl (append-only journal since last snapshot)
//
// The journal is periodically compacted into the snapshot.
type fileIndex struct {
	log logx.Logger

	mu sync.Mutex

	snapshotPath string
	journal      *os.File

	entries map[string][]Entry
	meta    map[string]string

	writes int
}

// compactEvery bounds journal growth. Reminder churn is low, so compaction
// stays cheap even at a small interval.
const compactEvery = 64

type fileSnapshot struct {
	Entries map[string][]Entry `json:"entries"`
	Meta    map[string]string  `json:"meta,omitempty"`
}

type journalRecord struct {
	Op      string  `json:"op"` // put | remove | meta
	ID      string  `json:"id,omitempty"`
	Entries []Entry `json:"entries,omitempty"`
	Key     string  `json:"key,omitempty"`
	Value   string  `json:"value,omitempty"`
}

func openFile(cfg Config, log logx.Logger) (Index, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("index.path is required for file driver")
	}

	dir := filepath.Dir(path)
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	prefix := filepath.Join(dir, base)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	snapPath := prefix + ".snapshot.json"
	journalPath := prefix + ".journal.jsonl"

	entries := map[string][]Entry{}
	meta := map[string]string{}
	_ = loadSnapshot(snapPath, entries, meta)
	_ = replayJournal(journalPath, entries, meta)

	jf, err := os.OpenFile(journalPath, os.O_CREATE|os.O_APPEND|os.O_RDWR, 0o600)
	if err != nil {
		return nil, err
	}

	return &fileIndex{
		log:          log,
		snapshotPath: snapPath,
		journal:      jf,
		entries:      entries,
		meta:         meta,
	}, nil
}

func (s *fileIndex) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.journal == nil {
		return nil
	}
	// Compact on close so restarts load a single snapshot.
	if err := s.compactLocked(); err != nil {
		s.log.Debug("index compact on close failed", logx.Err(err))
	}
	err := s.journal.Close()
	s.journal = nil
	return err
}

func (s *fileIndex) Get(ctx context.Context, reminderID string) ([]Entry, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Entry(nil), s.entries[reminderID]...), nil
}

func (s *fileIndex) Put(ctx context.Context, reminderID string, entries []Entry) error {
	reminderID = strings.TrimSpace(reminderID)
	if reminderID == "" {
		return errors.New("empty reminder id")
	}
	if len(entries) == 0 {
		return s.Remove(ctx, reminderID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.journal == nil {
		return errors.New("index closed")
	}
	s.entries[reminderID] = append([]Entry(nil), entries...)
	return s.appendLocked(journalRecord{Op: "put", ID: reminderID, Entries: entries})
}

func (s *fileIndex) Remove(ctx context.Context, reminderID string) error {
	_ = ctx
	reminderID = strings.TrimSpace(reminderID)
	if reminderID == "" {
		return errors.New("empty reminder id")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.journal == nil {
		return errors.New("index closed")
	}
	if _, ok := s.entries[reminderID]; !ok {
		return nil
	}
	delete(s.entries, reminderID)
	return s.appendLocked(journalRecord{Op: "remove", ID: reminderID})
}

func (s *fileIndex) All(ctx context.Context) (map[string][]Entry, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string][]Entry, len(s.entries))
	for id, es := range s.entries {
		out[id] = append([]Entry(nil), es...)
	}
	return out, nil
}

func (s *fileIndex) GetMeta(ctx context.Context, key string) (string, bool, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.meta[key]
	return v, ok, nil
}

func (s *fileIndex) PutMeta(ctx context.Context, key, value string) error {
	_ = ctx
	key = strings.TrimSpace(key)
	if key == "" {
		return errors.New("empty meta key")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.journal == nil {
		return errors.New("index closed")
	}
	s.meta[key] = value
	return s.appendLocked(journalRecord{Op: "meta", Key: key, Value: value})
}

// appendLocked journals one record and compacts periodically. Memory is
// already updated when this runs: a journal write failure leaves the
// in-memory state ahead of disk, which callers surface as degraded success.
func (s *fileIndex) appendLocked(r journalRecord) error {
	if err := json.NewEncoder(s.journal).Encode(r); err != nil {
		return err
	}
	s.writes++
	if s.writes%compactEvery == 0 {
		if err := s.compactLocked(); err != nil {
			s.log.Debug("index compact failed", logx.Err(err))
		}
	}
	return nil
}

func (s *fileIndex) compactLocked() error {
	var buf bytes.Buffer
	snap := fileSnapshot{Entries: s.entries, Meta: s.meta}
	if err := json.NewEncoder(&buf).Encode(snap); err != nil {
		return err
	}
	if err := atomic.WriteFile(s.snapshotPath, &buf); err != nil {
		return err
	}
	if err := s.journal.Truncate(0); err != nil {
		return err
	}
	_, err := s.journal.Seek(0, 2)
	return err
}

func loadSnapshot(path string, entries map[string][]Entry, meta map[string]string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	var snap fileSnapshot
	if err := json.NewDecoder(f).Decode(&snap); err != nil {
		return err
	}
	for id, es := range snap.Entries {
		entries[id] = es
	}
	for k, v := range snap.Meta {
		meta[k] = v
	}
	return nil
}

func replayJournal(path string, entries map[string][]Entry, meta map[string]string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var r journalRecord
		if err := json.Unmarshal(sc.Bytes(), &r); err != nil {
			continue
		}
		switch r.Op {
		case "put":
			if r.ID != "" && len(r.Entries) > 0 {
				entries[r.ID] = r.Entries
			}
		case "remove":
			delete(entries, r.ID)
		case "meta":
			if r.Key != "" {
				meta[r.Key] = r.Value
			}
		}
	}
	return sc.Err()
}
