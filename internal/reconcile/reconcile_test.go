package reconcile

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"lembra/internal/eventbus"
	"lembra/internal/index"
	"lembra/internal/trigger"
	logx "lembra/pkg/logx"
)

type staticRuntime struct {
	keys []string
	err  error
}

func (s *staticRuntime) Schedule(context.Context, trigger.Request) (trigger.Handle, error) {
	return 0, errors.New("not used")
}
func (s *staticRuntime) Cancel(context.Context, string) error { return errors.New("not used") }
func (s *staticRuntime) ListAll(context.Context) ([]string, error) {
	return s.keys, s.err
}

func testIndex(t *testing.T, entries map[string][]index.Entry) index.Index {
	t.Helper()
	ix, err := index.Open(index.Config{Driver: "file", Path: filepath.Join(t.TempDir(), "handles.db")}, logx.Nop())
	if err != nil {
		t.Fatalf("open index: %v", err)
	}
	t.Cleanup(func() { ix.Close() })
	for id, es := range entries {
		if err := ix.Put(context.Background(), id, es); err != nil {
			t.Fatalf("seed index: %v", err)
		}
	}
	return ix
}

func TestCheckClean(t *testing.T) {
	ix := testIndex(t, map[string][]index.Entry{
		"r1": {{Key: "reminder_r1_day0", Handle: 1}, {Key: "reminder_r1_day4", Handle: 2}},
	})
	rt := &staticRuntime{keys: []string{"reminder_r1_day0", "reminder_r1_day4"}}

	rep, err := New(Config{}, rt, ix, nil, logx.Nop()).Check(context.Background())
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if !rep.Clean() {
		t.Fatalf("expected clean report, got %+v", rep)
	}
}

func TestCheckFindsMissingAndOrphaned(t *testing.T) {
	ix := testIndex(t, map[string][]index.Entry{
		"r1": {{Key: "reminder_r1_day0", Handle: 1}, {Key: "reminder_r1_day2", Handle: 2}},
	})
	// day2 never made it into the runtime; day6 is live but unindexed.
	rt := &staticRuntime{keys: []string{"reminder_r1_day0", "reminder_r9_day6"}}

	rep, err := New(Config{}, rt, ix, nil, logx.Nop()).Check(context.Background())
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if !reflect.DeepEqual(rep.Missing, []string{"reminder_r1_day2"}) {
		t.Fatalf("missing = %v", rep.Missing)
	}
	if !reflect.DeepEqual(rep.Orphaned, []string{"reminder_r9_day6"}) {
		t.Fatalf("orphaned = %v", rep.Orphaned)
	}
}

func TestCheckRuntimeError(t *testing.T) {
	ix := testIndex(t, nil)
	rt := &staticRuntime{err: errors.New("runtime down")}
	if _, err := New(Config{}, rt, ix, nil, logx.Nop()).Check(context.Background()); err == nil {
		t.Fatal("expected error from failing runtime")
	}
}

func TestDriftPublishesEvent(t *testing.T) {
	ix := testIndex(t, map[string][]index.Entry{
		"r1": {{Key: "reminder_r1_day0", Handle: 1}},
	})
	rt := &staticRuntime{keys: nil} // everything indexed is missing

	bus := eventbus.New()
	ch, unsub := bus.Subscribe(1)
	defer unsub()

	r := New(Config{}, rt, ix, bus, logx.Nop())
	r.cycle(context.Background())

	select {
	case e := <-ch:
		if e.Type != "reconcile.drift" {
			t.Fatalf("event type = %q", e.Type)
		}
		rep, ok := e.Data.(Report)
		if !ok {
			t.Fatalf("event data type %T", e.Data)
		}
		if len(rep.Missing) != 1 {
			t.Fatalf("report = %+v", rep)
		}
	case <-time.After(time.Second):
		t.Fatal("no drift event published")
	}
}

func TestCleanCyclePublishesNothing(t *testing.T) {
	ix := testIndex(t, nil)
	rt := &staticRuntime{}

	bus := eventbus.New()
	ch, unsub := bus.Subscribe(1)
	defer unsub()

	New(Config{}, rt, ix, bus, logx.Nop()).cycle(context.Background())

	select {
	case e := <-ch:
		t.Fatalf("unexpected event %q", e.Type)
	default:
	}
}
