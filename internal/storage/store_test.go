package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	logx "gamenewsbot/pkg/logx"
)

var storeDrivers = []string{"sqlite", "file", "memory"}

func openTestStore(t *testing.T, driver, dir string) Store {
	t.Helper()
	st, err := Open(Config{Driver: driver, Path: filepath.Join(dir, "news.db")}, logx.Nop())
	if err != nil {
		t.Fatalf("open %s: %v", driver, err)
	}
	return st
}

func TestPostedSinceIsWindowed(t *testing.T) {
	t.Parallel()

	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	for _, driver := range storeDrivers {
		driver := driver
		t.Run(driver, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()
			st := openTestStore(t, driver, t.TempDir())
			defer st.Close()

			if err := st.AppendPosted(ctx, PostedRecord{Link: "https://x/1", DispatchedAt: base}); err != nil {
				t.Fatalf("append: %v", err)
			}

			cases := []struct {
				name  string
				link  string
				since time.Time
				want  bool
			}{
				{"before record", "https://x/1", base.Add(-time.Minute), true},
				{"exactly at record", "https://x/1", base, false},
				{"after record", "https://x/1", base.Add(time.Minute), false},
				{"other link", "https://x/2", base.Add(-time.Hour), false},
			}
			for _, tc := range cases {
				got, err := st.PostedSince(ctx, tc.link, tc.since)
				if err != nil {
					t.Fatalf("%s: PostedSince: %v", tc.name, err)
				}
				if got != tc.want {
					t.Fatalf("%s: PostedSince = %v, want %v", tc.name, got, tc.want)
				}
			}
		})
	}
}

func TestPrunePosted(t *testing.T) {
	t.Parallel()

	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	for _, driver := range storeDrivers {
		driver := driver
		t.Run(driver, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()
			st := openTestStore(t, driver, t.TempDir())
			defer st.Close()

			_ = st.AppendPosted(ctx, PostedRecord{Link: "https://x/old", DispatchedAt: base.Add(-48 * time.Hour)})
			_ = st.AppendPosted(ctx, PostedRecord{Link: "https://x/new", DispatchedAt: base})

			n, err := st.PrunePosted(ctx, base.Add(-24*time.Hour))
			if err != nil {
				t.Fatalf("prune: %v", err)
			}
			if n != 1 {
				t.Fatalf("pruned %d records, want 1", n)
			}
			if ok, _ := st.PostedSince(ctx, "https://x/old", base.Add(-72*time.Hour)); ok {
				t.Fatalf("old record should be gone")
			}
			if ok, _ := st.PostedSince(ctx, "https://x/new", base.Add(-time.Hour)); !ok {
				t.Fatalf("new record should survive prune")
			}
		})
	}
}

func TestPromoStateRoundTrip(t *testing.T) {
	t.Parallel()

	for _, driver := range storeDrivers {
		driver := driver
		t.Run(driver, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()
			st := openTestStore(t, driver, t.TempDir())
			defer st.Close()

			if _, ok, err := st.LoadPromoState(ctx); err != nil || ok {
				t.Fatalf("fresh store: ok=%v err=%v, want no state", ok, err)
			}
			sent := time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)
			if err := st.SavePromoState(ctx, sent); err != nil {
				t.Fatalf("save: %v", err)
			}
			if err := st.SavePromoState(ctx, sent.Add(time.Hour)); err != nil {
				t.Fatalf("save again: %v", err)
			}
			got, ok, err := st.LoadPromoState(ctx)
			if err != nil || !ok {
				t.Fatalf("load: ok=%v err=%v", ok, err)
			}
			if !got.Equal(sent.Add(time.Hour)) {
				t.Fatalf("load = %v, want %v", got, sent.Add(time.Hour))
			}
		})
	}
}

func TestDurableDriversSurviveReopen(t *testing.T) {
	t.Parallel()

	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	for _, driver := range []string{"sqlite", "file"} {
		driver := driver
		t.Run(driver, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()
			dir := t.TempDir()

			st := openTestStore(t, driver, dir)
			if err := st.AppendPosted(ctx, PostedRecord{Link: "https://x/1", DispatchedAt: base}); err != nil {
				t.Fatalf("append: %v", err)
			}
			if err := st.SavePromoState(ctx, base); err != nil {
				t.Fatalf("save promo: %v", err)
			}
			if err := st.Close(); err != nil {
				t.Fatalf("close: %v", err)
			}

			st = openTestStore(t, driver, dir)
			defer st.Close()
			ok, err := st.PostedSince(ctx, "https://x/1", base.Add(-time.Minute))
			if err != nil || !ok {
				t.Fatalf("after reopen: ok=%v err=%v", ok, err)
			}
			last, ok, err := st.LoadPromoState(ctx)
			if err != nil || !ok || !last.Equal(base) {
				t.Fatalf("promo after reopen: %v ok=%v err=%v", last, ok, err)
			}
		})
	}
}

func TestClosedStoreAndEmptyLink(t *testing.T) {
	t.Parallel()

	for _, driver := range storeDrivers {
		driver := driver
		t.Run(driver, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()
			st := openTestStore(t, driver, t.TempDir())

			if err := st.AppendPosted(ctx, PostedRecord{Link: "  "}); !errors.Is(err, ErrEmptyLink) {
				t.Fatalf("empty link: err=%v, want ErrEmptyLink", err)
			}
			if err := st.Close(); err != nil {
				t.Fatalf("close: %v", err)
			}
			if _, err := st.PostedSince(ctx, "https://x/1", time.Now()); !errors.Is(err, ErrClosed) {
				t.Fatalf("after close: err=%v, want ErrClosed", err)
			}
		})
	}
}

func TestOpenUnknownDriver(t *testing.T) {
	t.Parallel()

	if _, err := Open(Config{Driver: "redis"}, logx.Nop()); err == nil {
		t.Fatalf("expected error for unknown driver")
	}
	if _, err := Open(Config{Driver: "postgres"}, logx.Nop()); err == nil {
		t.Fatalf("expected error for postgres without dsn")
	}
}

func TestFileJournalTornTailIsDropped(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	dir := t.TempDir()
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	// A crash in the middle of an append leaves a line without its newline.
	journal := `{"link":"https://x/1","at":` + strconv.FormatInt(base.UnixMilli(), 10) + "}\n" + `{"link":"https://x/2","at":17`
	if err := os.WriteFile(filepath.Join(dir, "news.posted.journal.jsonl"), []byte(journal), 0o600); err != nil {
		t.Fatalf("write journal: %v", err)
	}

	st := openTestStore(t, "file", dir)
	if err := st.AppendPosted(ctx, PostedRecord{Link: "https://x/3", DispatchedAt: base}); err != nil {
		t.Fatalf("append: %v", err)
	}

	// Reopen without closing, as after another crash.
	again := openTestStore(t, "file", dir)
	defer again.Close()
	defer st.Close()
	for _, link := range []string{"https://x/1", "https://x/3"} {
		ok, err := again.PostedSince(ctx, link, base.Add(-time.Minute))
		if err != nil || !ok {
			t.Fatalf("%s after reopen: ok=%v err=%v", link, ok, err)
		}
	}
	if ok, _ := again.PostedSince(ctx, "https://x/2", time.Time{}); ok {
		t.Fatalf("torn record should not be replayed")
	}
}
