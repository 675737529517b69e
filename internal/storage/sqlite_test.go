package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"chatwatch/pkg/logx"
)

func openTestStore(t *testing.T) Store {
	t.Helper()
	st, err := Open(Config{
		Driver: "sqlite",
		Path:   filepath.Join(t.TempDir(), "history.db"),
	}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestOpenDisabled(t *testing.T) {
	t.Parallel()
	for _, driver := range []string{"", "none"} {
		st, err := Open(Config{Driver: driver}, logx.Nop())
		if err != nil || st != nil {
			t.Fatalf("Open(%q) = %v, %v; want nil, nil", driver, st, err)
		}
	}
}

func TestOpenUnknownDriver(t *testing.T) {
	t.Parallel()
	if _, err := Open(Config{Driver: "postgres"}, logx.Nop()); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}

func TestRecordAndCount(t *testing.T) {
	t.Parallel()
	st := openTestStore(t)
	ctx := context.Background()

	recs := []MessageRecord{
		{Site: "demo", Sender: "Ada", Recipients: "#general", Kind: "stream", Important: true},
		{Site: "demo", Sender: "Bob", Recipients: "@Ada", Kind: "private"},
		{Site: "work", Sender: "Eve", Recipients: "#ops", Kind: "stream"},
	}
	for _, r := range recs {
		if err := st.RecordMessage(ctx, r); err != nil {
			t.Fatalf("RecordMessage: %v", err)
		}
	}

	total, important, err := st.CountMessages(ctx, "demo")
	if err != nil {
		t.Fatalf("CountMessages: %v", err)
	}
	if total != 2 || important != 1 {
		t.Fatalf("demo counts = %d/%d, want 2/1", total, important)
	}

	total, _, err = st.CountMessages(ctx, "nowhere")
	if err != nil || total != 0 {
		t.Fatalf("empty site counts = %d, %v", total, err)
	}
}

func TestPrune(t *testing.T) {
	t.Parallel()
	st := openTestStore(t)
	ctx := context.Background()

	old := time.Now().Add(-48 * time.Hour)
	if err := st.RecordMessage(ctx, MessageRecord{At: old, Site: "demo", Sender: "Ada", Recipients: "#general", Kind: "stream"}); err != nil {
		t.Fatal(err)
	}
	if err := st.RecordMessage(ctx, MessageRecord{At: time.Now(), Site: "demo", Sender: "Bob", Recipients: "#general", Kind: "stream"}); err != nil {
		t.Fatal(err)
	}

	removed, err := st.Prune(ctx, time.Now().Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if removed != 1 {
		t.Fatalf("removed = %d, want 1", removed)
	}

	total, _, err := st.CountMessages(ctx, "demo")
	if err != nil || total != 1 {
		t.Fatalf("after prune: %d, %v", total, err)
	}
}
