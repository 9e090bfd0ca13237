package repository

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/foxseedlab/segmentd/internal/repository"
)

func newTestIndex(t *testing.T) *SQLiteRepository {
	t.Helper()
	r, err := OpenSQLite(":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(r.Close)
	if err := r.Init(context.Background()); err != nil {
		t.Fatalf("init: %v", err)
	}
	return r
}

func testSegment(hash string, seq int) repository.Segment {
	return repository.Segment{
		FileHash:      hash,
		Timestamp:     time.Date(2026, 10, 15, 9, 30, 0, 123456000, time.UTC),
		Sequence:      seq,
		LengthSeconds: 2.5,
		Text:          fmt.Sprintf("sentence %d.", seq),
		StoragePath:   fmt.Sprintf("/segments/%s/segment_%04d.wav", hash, seq),
		SegmentHash:   fmt.Sprintf("content-%d", seq),
	}
}

func TestInit_Idempotent(t *testing.T) {
	r := newTestIndex(t)
	if err := r.Init(context.Background()); err != nil {
		t.Fatalf("second init failed: %v", err)
	}
}

func TestQueryByHash_SortsOutOfOrderInserts(t *testing.T) {
	r := newTestIndex(t)
	ctx := context.Background()
	for _, seq := range []int{4, 0, 2, 1, 3} {
		if _, err := r.Insert(ctx, testSegment("hash-a", seq)); err != nil {
			t.Fatalf("insert %d: %v", seq, err)
		}
	}
	if _, err := r.Insert(ctx, testSegment("hash-b", 0)); err != nil {
		t.Fatalf("insert other hash: %v", err)
	}

	got, err := r.QueryByHash(ctx, "hash-a")
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(got) != 5 {
		t.Fatalf("expected 5 segments, got %d", len(got))
	}
	for i, seg := range got {
		if seg.Sequence != i {
			t.Fatalf("position %d has sequence %d", i, seg.Sequence)
		}
		if seg.FileHash != "hash-a" {
			t.Fatalf("unexpected hash %s", seg.FileHash)
		}
	}
}

func TestInsert_RoundTripsFields(t *testing.T) {
	r := newTestIndex(t)
	ctx := context.Background()
	want := testSegment("hash-a", 7)

	id, err := r.Insert(ctx, want)
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if id <= 0 {
		t.Fatalf("expected positive id, got %d", id)
	}

	got, err := r.QueryByID(ctx, id)
	if err != nil {
		t.Fatalf("query by id: %v", err)
	}
	if got == nil {
		t.Fatal("expected segment, got nil")
	}
	if got.ID != id || got.Sequence != 7 || got.Text != want.Text || got.StoragePath != want.StoragePath || got.SegmentHash != want.SegmentHash {
		t.Fatalf("unexpected segment: %+v", got)
	}
	if got.LengthSeconds != 2.5 {
		t.Fatalf("unexpected length: %v", got.LengthSeconds)
	}
	if d := got.Timestamp.Sub(want.Timestamp); d > time.Millisecond || d < -time.Millisecond {
		t.Fatalf("timestamp drifted: want %v got %v", want.Timestamp, got.Timestamp)
	}
	if got.CreatedAt.IsZero() {
		t.Fatal("expected created_at to be set")
	}
}

func TestInsert_EmptyTextIsStoredAsNull(t *testing.T) {
	r := newTestIndex(t)
	ctx := context.Background()
	seg := testSegment("hash-a", 0)
	seg.Text = ""
	id, err := r.Insert(ctx, seg)
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	var isNull bool
	if err := r.db.QueryRow(`SELECT text_content IS NULL FROM audio_segments WHERE id = ?`, id).Scan(&isNull); err != nil {
		t.Fatalf("raw query: %v", err)
	}
	if !isNull {
		t.Fatal("expected NULL text_content")
	}
	got, _ := r.QueryByID(ctx, id)
	if got.Text != "" {
		t.Fatalf("expected empty text, got %q", got.Text)
	}
}

func TestInsert_SameSequenceReplacesRow(t *testing.T) {
	r := newTestIndex(t)
	ctx := context.Background()
	first, err := r.Insert(ctx, testSegment("hash-a", 0))
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	updated := testSegment("hash-a", 0)
	updated.Text = "replaced."
	second, err := r.Insert(ctx, updated)
	if err != nil {
		t.Fatalf("re-insert: %v", err)
	}
	if first != second {
		t.Fatalf("expected id to be kept, got %d then %d", first, second)
	}
	got, _ := r.QueryByHash(ctx, "hash-a")
	if len(got) != 1 || got[0].Text != "replaced." {
		t.Fatalf("unexpected rows: %+v", got)
	}
}

func TestInsert_ConcurrentCommitsKeepUniqueness(t *testing.T) {
	r := newTestIndex(t)
	ctx := context.Background()
	var wg sync.WaitGroup
	for worker := 0; worker < 4; worker++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for seq := 0; seq < 10; seq++ {
				if _, err := r.Insert(ctx, testSegment("hash-a", seq)); err != nil {
					t.Errorf("insert %d: %v", seq, err)
				}
			}
		}()
	}
	wg.Wait()
	got, err := r.QueryByHash(ctx, "hash-a")
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(got) != 10 {
		t.Fatalf("expected 10 unique rows, got %d", len(got))
	}
}

func TestQueryByID_Absent(t *testing.T) {
	r := newTestIndex(t)
	got, err := r.QueryByID(context.Background(), 999)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil, got %+v", got)
	}
}

func TestQueryBySequence(t *testing.T) {
	r := newTestIndex(t)
	ctx := context.Background()
	for seq := 0; seq < 3; seq++ {
		if _, err := r.Insert(ctx, testSegment("hash-a", seq)); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}
	got, err := r.QueryBySequence(ctx, "hash-a", 2)
	if err != nil || got == nil || got.Sequence != 2 {
		t.Fatalf("unexpected result: %+v, %v", got, err)
	}
	missing, err := r.QueryBySequence(ctx, "hash-a", 9)
	if err != nil || missing != nil {
		t.Fatalf("expected nil/nil for missing sequence, got %+v, %v", missing, err)
	}
}

func TestDeleteByHash(t *testing.T) {
	r := newTestIndex(t)
	ctx := context.Background()
	for seq := 0; seq < 3; seq++ {
		_, _ = r.Insert(ctx, testSegment("hash-a", seq))
	}
	_, _ = r.Insert(ctx, testSegment("hash-b", 0))

	n, err := r.DeleteByHash(ctx, "hash-a")
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if n != 3 {
		t.Fatalf("expected 3 removed, got %d", n)
	}
	n, err = r.DeleteByHash(ctx, "hash-a")
	if err != nil || n != 0 {
		t.Fatalf("expected second delete to remove 0, got %d, %v", n, err)
	}
	rest, _ := r.QueryByHash(ctx, "hash-b")
	if len(rest) != 1 {
		t.Fatalf("expected other hash untouched, got %d rows", len(rest))
	}
}

func TestOpen_SelectsSQLiteByScheme(t *testing.T) {
	path := t.TempDir() + "/index.db"
	index, err := Open(context.Background(), "sqlite://"+path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer index.Close()
	if _, ok := index.(*SQLiteRepository); !ok {
		t.Fatalf("expected sqlite repository, got %T", index)
	}
	if err := index.Init(context.Background()); err != nil {
		t.Fatalf("init: %v", err)
	}
}
