package trigger

import (
	"context"
	"errors"
	"reflect"
	"testing"

	logx "lembra/pkg/logx"
)

func startedRuntime(t *testing.T) *CronRuntime {
	t.Helper()
	rt := NewCron(CronConfig{Timezone: "UTC"}, nil, logx.Nop())
	rt.Start(context.Background())
	t.Cleanup(func() { rt.Stop(context.Background()) })
	return rt
}

func TestScheduleCancelList(t *testing.T) {
	ctx := context.Background()
	rt := startedRuntime(t)

	reqs := []Request{
		{Key: "reminder_r1_day0", Weekday: 2, Hour: 9, Minute: 0, Title: "Beber Água"},
		{Key: "reminder_r1_day2", Weekday: 4, Hour: 9, Minute: 0, Title: "Beber Água"},
		{Key: "reminder_r2_day6", Weekday: 1, Hour: 21, Minute: 30, Title: "Hora de dormir"},
	}
	seen := map[Handle]bool{}
	for _, req := range reqs {
		h, err := rt.Schedule(ctx, req)
		if err != nil {
			t.Fatalf("Schedule(%s): %v", req.Key, err)
		}
		if h == 0 {
			t.Fatalf("Schedule(%s): zero handle", req.Key)
		}
		if seen[h] {
			t.Fatalf("Schedule(%s): handle %d reused", req.Key, h)
		}
		seen[h] = true
	}

	keys, err := rt.ListAll(ctx)
	if err != nil {
		t.Fatalf("ListAll: %v", err)
	}
	want := []string{"reminder_r1_day0", "reminder_r1_day2", "reminder_r2_day6"}
	if !reflect.DeepEqual(keys, want) {
		t.Fatalf("ListAll = %v, want %v", keys, want)
	}

	if err := rt.Cancel(ctx, "reminder_r1_day0"); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if err := rt.Cancel(ctx, "reminder_r1_day0"); err != nil {
		t.Fatalf("Cancel of absent key: %v", err)
	}
	keys, _ = rt.ListAll(ctx)
	if len(keys) != 2 {
		t.Fatalf("after cancel ListAll = %v", keys)
	}
}

func TestScheduleReplacesSameKey(t *testing.T) {
	ctx := context.Background()
	rt := startedRuntime(t)

	h1, err := rt.Schedule(ctx, Request{Key: "reminder_r1_day0", Weekday: 2, Hour: 9, Minute: 0})
	if err != nil {
		t.Fatalf("first Schedule: %v", err)
	}
	h2, err := rt.Schedule(ctx, Request{Key: "reminder_r1_day0", Weekday: 2, Hour: 10, Minute: 15})
	if err != nil {
		t.Fatalf("second Schedule: %v", err)
	}
	if h1 == h2 {
		t.Fatalf("replacement kept handle %d", h1)
	}
	keys, _ := rt.ListAll(ctx)
	if len(keys) != 1 {
		t.Fatalf("duplicate key scheduled twice: %v", keys)
	}
}

func TestScheduleRejectsBadRequests(t *testing.T) {
	ctx := context.Background()
	rt := startedRuntime(t)

	bad := []Request{
		{Key: "", Weekday: 2, Hour: 9},
		{Key: "k", Weekday: 0, Hour: 9},
		{Key: "k", Weekday: 8, Hour: 9},
		{Key: "k", Weekday: 2, Hour: 24},
		{Key: "k", Weekday: 2, Hour: 9, Minute: 60},
	}
	for _, req := range bad {
		if _, err := rt.Schedule(ctx, req); !errors.Is(err, ErrUnavailable) {
			t.Errorf("Schedule(%+v): err = %v, want ErrUnavailable", req, err)
		}
	}
	keys, _ := rt.ListAll(ctx)
	if len(keys) != 0 {
		t.Fatalf("rejected requests left triggers: %v", keys)
	}
}

func TestScheduleBeforeStart(t *testing.T) {
	rt := NewCron(CronConfig{}, nil, logx.Nop())
	_, err := rt.Schedule(context.Background(), Request{Key: "k", Weekday: 2, Hour: 9})
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("err = %v, want ErrUnavailable", err)
	}
}

func TestTimezoneChangeKeepsTriggers(t *testing.T) {
	ctx := context.Background()
	rt := startedRuntime(t)

	if _, err := rt.Schedule(ctx, Request{Key: "reminder_r1_day5", Weekday: 7, Hour: 8, Minute: 45}); err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	rt.Apply(CronConfig{Timezone: "America/Sao_Paulo"})

	keys, err := rt.ListAll(ctx)
	if err != nil {
		t.Fatalf("ListAll: %v", err)
	}
	if !reflect.DeepEqual(keys, []string{"reminder_r1_day5"}) {
		t.Fatalf("triggers lost across timezone change: %v", keys)
	}
	if err := rt.Cancel(ctx, "reminder_r1_day5"); err != nil {
		t.Fatalf("Cancel after restart: %v", err)
	}
}
