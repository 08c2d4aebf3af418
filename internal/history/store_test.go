package history_test

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"kctvfetch/internal/broadcast"
	"kctvfetch/internal/history"
	"kctvfetch/internal/testsupport"
)

func TestPutAndGet(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenHistory(t, cfg)
	ctx := context.Background()

	if store.Path() != filepath.Join(cfg.Paths.StateDir, "history.db") {
		t.Fatalf("unexpected db path %q", store.Path())
	}

	date := broadcast.NewDate(2024, 5, 1)
	rec := history.Record{
		Date:     date,
		Status:   history.StatusDelivered,
		RunID:    "run-1",
		MediaURL: "https://cdn.example/2024-05-01.mp4",
		FilePath: "/out/Full Broadcast 2024 05 01.mp4",
		Bytes:    1 << 30,
		Attempts: 2,
		Offsets:  []int{1800, 3600},
		Stages:   []string{"timestamps", "chapters"},
	}
	if err := store.Put(ctx, rec); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	got, err := store.Get(ctx, date)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got == nil {
		t.Fatal("expected record")
	}
	opts := []cmp.Option{
		cmp.Comparer(func(a, b broadcast.Date) bool { return a.String() == b.String() }),
		cmpopts.IgnoreFields(history.Record{}, "UpdatedAt"),
	}
	if diff := cmp.Diff(rec, *got, opts...); diff != "" {
		t.Fatalf("record mismatch (-want +got):\n%s", diff)
	}
	if got.UpdatedAt.IsZero() {
		t.Fatal("expected updated_at to be set")
	}

	missing, err := store.Get(ctx, broadcast.NewDate(2024, 5, 2))
	if err != nil {
		t.Fatalf("Get missing failed: %v", err)
	}
	if missing != nil {
		t.Fatalf("expected nil for unrecorded date, got %#v", missing)
	}
}

func TestPutReplacesExistingDate(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenHistory(t, cfg)
	ctx := context.Background()
	date := broadcast.NewDate(2024, 5, 1)

	if err := store.Put(ctx, history.Record{Date: date, Status: history.StatusIncomplete, RunID: "a", Error: "short body"}); err != nil {
		t.Fatal(err)
	}
	if err := store.Put(ctx, history.Record{Date: date, Status: history.StatusDelivered, RunID: "b"}); err != nil {
		t.Fatal(err)
	}

	got, err := store.Get(ctx, date)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != history.StatusDelivered || got.RunID != "b" || got.Error != "" {
		t.Fatalf("unexpected record after replace: %#v", got)
	}
}

func TestListAndCounts(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenHistory(t, cfg)
	ctx := context.Background()

	start := broadcast.NewDate(2024, 5, 1)
	statuses := []history.Status{history.StatusDelivered, history.StatusNotFound, history.StatusDelivered}
	for i, status := range statuses {
		rec := history.Record{Date: start.AddDays(i), Status: status, RunID: "run", UpdatedAt: time.Now()}
		if err := store.Put(ctx, rec); err != nil {
			t.Fatal(err)
		}
	}

	all, err := store.List(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 || all[0].Date.String() != "2024-05-03" || all[2].Date.String() != "2024-05-01" {
		t.Fatalf("unexpected order: %v", all)
	}

	limited, err := store.List(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(limited) != 1 {
		t.Fatalf("expected 1 record, got %d", len(limited))
	}

	counts, err := store.Counts(ctx)
	if err != nil {
		t.Fatal(err)
	}
	want := map[history.Status]int{history.StatusDelivered: 2, history.StatusNotFound: 1}
	if diff := cmp.Diff(want, counts); diff != "" {
		t.Fatalf("counts mismatch (-want +got):\n%s", diff)
	}
}

func TestReopenKeepsRows(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store, err := history.Open(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if err := store.Put(context.Background(), history.Record{Date: broadcast.NewDate(2024, 1, 1), Status: history.StatusExisting, RunID: "r"}); err != nil {
		t.Fatal(err)
	}
	if err := store.Close(); err != nil {
		t.Fatal(err)
	}

	reopened := testsupport.MustOpenHistory(t, cfg)
	rows, err := reopened.List(context.Background(), 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 || !rows[0].Status.Succeeded() {
		t.Fatalf("unexpected rows after reopen: %#v", rows)
	}
}

func TestPutRequiresDate(t *testing.T) {
	store := testsupport.MustOpenHistory(t, testsupport.NewConfig(t))
	if err := store.Put(context.Background(), history.Record{Status: history.StatusFailed}); err == nil {
		t.Fatal("expected error for zero date")
	}
}

func TestOpenRejectsOtherVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	store, err := history.OpenPath(path)
	if err != nil {
		t.Fatalf("OpenPath failed: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("sql.Open failed: %v", err)
	}
	if _, err := db.Exec("PRAGMA user_version = 7"); err != nil {
		t.Fatalf("set version: %v", err)
	}
	_ = db.Close()

	if _, err := history.OpenPath(path); !errors.Is(err, history.ErrSchemaMismatch) {
		t.Fatalf("expected ErrSchemaMismatch, got %v", err)
	}
}
