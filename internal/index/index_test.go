package index

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	logx "lembra/pkg/logx"
)

var drivers = []string{"file", "sqlite"}

func openTest(t *testing.T, driver, path string) Index {
	t.Helper()
	ix, err := Open(Config{Driver: driver, Path: path}, logx.Nop())
	require.NoError(t, err)
	return ix
}

func TestOpenRejectsBadDriver(t *testing.T) {
	t.Parallel()
	if _, err := Open(Config{Driver: "", Path: "x"}, logx.Nop()); err == nil {
		t.Fatal("empty driver: expected error")
	}
	if _, err := Open(Config{Driver: "redis", Path: "x"}, logx.Nop()); err == nil {
		t.Fatal("unknown driver: expected error")
	}
	if _, err := Open(Config{Driver: "file", Path: ""}, logx.Nop()); err == nil {
		t.Fatal("file driver without path: expected error")
	}
}

func TestRoundTrip(t *testing.T) {
	t.Parallel()
	for _, driver := range drivers {
		t.Run(driver, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()
			ix := openTest(t, driver, filepath.Join(t.TempDir(), "handles.db"))
			defer ix.Close()

			got, err := ix.Get(ctx, "missing")
			require.NoError(t, err)
			require.Empty(t, got)

			r1 := []Entry{
				{Key: "reminder_r1_day0", Handle: 11},
				{Key: "reminder_r1_day2", Handle: 12},
				{Key: "reminder_r1_day4", Handle: 13},
			}
			require.NoError(t, ix.Put(ctx, "r1", r1))
			require.NoError(t, ix.Put(ctx, "r2", []Entry{{Key: "reminder_r2_day6", Handle: 20}}))

			got, err = ix.Get(ctx, "r1")
			require.NoError(t, err)
			if diff := cmp.Diff(r1, got); diff != "" {
				t.Fatalf("r1 entries mismatch (-want +got):\n%s", diff)
			}

			all, err := ix.All(ctx)
			require.NoError(t, err)
			require.Len(t, all, 2)

			// Put replaces wholesale, it never merges.
			r1b := []Entry{{Key: "reminder_r1_day5", Handle: 31}}
			require.NoError(t, ix.Put(ctx, "r1", r1b))
			got, err = ix.Get(ctx, "r1")
			require.NoError(t, err)
			if diff := cmp.Diff(r1b, got); diff != "" {
				t.Fatalf("replace mismatch (-want +got):\n%s", diff)
			}

			require.NoError(t, ix.Remove(ctx, "r1"))
			require.NoError(t, ix.Remove(ctx, "r1")) // idempotent
			got, err = ix.Get(ctx, "r1")
			require.NoError(t, err)
			require.Empty(t, got)

			all, err = ix.All(ctx)
			require.NoError(t, err)
			require.Len(t, all, 1)
		})
	}
}

func TestPutEmptyErasesID(t *testing.T) {
	t.Parallel()
	for _, driver := range drivers {
		t.Run(driver, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()
			ix := openTest(t, driver, filepath.Join(t.TempDir(), "handles.db"))
			defer ix.Close()

			require.NoError(t, ix.Put(ctx, "r1", []Entry{{Key: "reminder_r1_day0", Handle: 1}}))
			require.NoError(t, ix.Put(ctx, "r1", nil))

			all, err := ix.All(ctx)
			require.NoError(t, err)
			if len(all) != 0 {
				t.Fatalf("empty put left entries behind: %v", all)
			}
		})
	}
}

func TestReopenKeepsState(t *testing.T) {
	t.Parallel()
	for _, driver := range drivers {
		t.Run(driver, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()
			path := filepath.Join(t.TempDir(), "handles.db")

			want := map[string][]Entry{
				"r1": {{Key: "reminder_r1_day0", Handle: 11}, {Key: "reminder_r1_day2", Handle: 12}},
				"r2": {{Key: "reminder_r2_day6", Handle: 20}},
			}

			ix := openTest(t, driver, path)
			for id, es := range want {
				require.NoError(t, ix.Put(ctx, id, es))
			}
			require.NoError(t, ix.PutMeta(ctx, "settings", `{"notifications_enabled":true}`))
			require.NoError(t, ix.Close())

			ix = openTest(t, driver, path)
			defer ix.Close()

			all, err := ix.All(ctx)
			require.NoError(t, err)
			if diff := cmp.Diff(want, all); diff != "" {
				t.Fatalf("state after reopen (-want +got):\n%s", diff)
			}

			v, ok, err := ix.GetMeta(ctx, "settings")
			require.NoError(t, err)
			require.True(t, ok)
			require.Equal(t, `{"notifications_enabled":true}`, v)

			_, ok, err = ix.GetMeta(ctx, "missing")
			require.NoError(t, err)
			require.False(t, ok)
		})
	}
}

// The file backend journals between snapshots; crossing the compaction
// threshold and reopening must lose nothing.
func TestFileCompaction(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "handles.db")

	ix := openTest(t, "file", path)
	const n = compactEvery*2 + 3
	for i := 0; i < n; i++ {
		id := string(rune('a'+i%26)) + "-" + string(rune('0'+i%10))
		err := ix.Put(ctx, id, []Entry{{Key: "reminder_" + id + "_day0", Handle: int64(i)}})
		require.NoError(t, err)
	}
	require.NoError(t, ix.Close())

	ix = openTest(t, "file", path)
	defer ix.Close()
	all, err := ix.All(ctx)
	require.NoError(t, err)
	if len(all) == 0 {
		t.Fatal("no entries survived compaction")
	}
}

func TestMetaOverwrite(t *testing.T) {
	t.Parallel()
	for _, driver := range drivers {
		t.Run(driver, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()
			ix := openTest(t, driver, filepath.Join(t.TempDir(), "handles.db"))
			defer ix.Close()

			require.NoError(t, ix.PutMeta(ctx, "install_id", "first"))
			require.NoError(t, ix.PutMeta(ctx, "install_id", "second"))
			v, ok, err := ix.GetMeta(ctx, "install_id")
			require.NoError(t, err)
			require.True(t, ok)
			require.Equal(t, "second", v)
		})
	}
}
