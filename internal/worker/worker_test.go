package worker

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lpkmns/nihongo-exam/internal/config"
	"github.com/lpkmns/nihongo-exam/internal/model"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

// ─── Session snapshots ──────────────────────────────────────────────────────

type fakeSnapshotStore struct {
	mu      sync.Mutex
	saved   []model.ExamSession
	failFor int
}

func (f *fakeSnapshotStore) Persist(_ context.Context, s *model.ExamSession) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failFor > 0 {
		f.failFor--
		return false, errors.New("db down")
	}
	f.saved = append(f.saved, *s)
	return true, nil
}

func pushSnapshot(t *testing.T, mr *miniredis.Miniredis, s model.ExamSession) {
	t.Helper()
	data, err := json.Marshal(s)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := mr.Push(config.WorkerKey.PersistSessionsQueue, string(data)); err != nil {
		t.Fatal(err)
	}
}

func TestSnapshotWorkerPersistsAndRequeues(t *testing.T) {
	mr, rdb := newRedis(t)
	store := &fakeSnapshotStore{failFor: 1}
	w := NewSessionSnapshotWorker(store, rdb, zerolog.Nop())
	w.retry = 0

	id := uuid.New()
	pushSnapshot(t, mr, model.ExamSession{StudentID: id, TimeRemaining: 20000, Answers: map[string]int{"q1": 2}})

	ctx := context.Background()
	w.processNext(ctx)
	if len(store.saved) != 0 {
		t.Fatal("failed persist recorded a snapshot")
	}
	if n, _ := rdb.LLen(ctx, config.WorkerKey.PersistSessionsQueue).Result(); n != 1 {
		t.Fatalf("queue length after failure = %d, want 1", n)
	}

	w.processNext(ctx)
	if len(store.saved) != 1 || store.saved[0].StudentID != id || store.saved[0].Answers["q1"] != 2 {
		t.Fatalf("saved = %+v", store.saved)
	}
}

func TestSnapshotWorkerDropsMalformed(t *testing.T) {
	mr, rdb := newRedis(t)
	store := &fakeSnapshotStore{}
	w := NewSessionSnapshotWorker(store, rdb, zerolog.Nop())

	mr.Push(config.WorkerKey.PersistSessionsQueue, "{not json")
	w.processNext(context.Background())

	if n, _ := rdb.LLen(context.Background(), config.WorkerKey.PersistSessionsQueue).Result(); n != 0 {
		t.Errorf("malformed payload requeued, queue length %d", n)
	}
}

func TestSnapshotWorkerDrainsOnShutdown(t *testing.T) {
	mr, rdb := newRedis(t)
	store := &fakeSnapshotStore{}
	w := NewSessionSnapshotWorker(store, rdb, zerolog.Nop())

	for range 3 {
		pushSnapshot(t, mr, model.ExamSession{StudentID: uuid.New()})
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	done := make(chan struct{})
	go func() {
		w.Start(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not stop")
	}
	if len(store.saved) != 3 {
		t.Errorf("drained %d snapshots, want 3", len(store.saved))
	}
}

// ─── Batch workers ──────────────────────────────────────────────────────────

type fakeDB struct {
	mu       sync.Mutex
	copyErr  error
	execErr  func(sql string, args []any) error
	copied   [][]any
	execs    []string
	execArgs [][]any
}

func (f *fakeDB) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.execErr != nil {
		if err := f.execErr(sql, args); err != nil {
			return pgconn.CommandTag{}, err
		}
	}
	f.execs = append(f.execs, sql)
	f.execArgs = append(f.execArgs, args)
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

func (f *fakeDB) CopyFrom(_ context.Context, _ pgx.Identifier, _ []string, src pgx.CopyFromSource) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.copyErr != nil {
		return 0, f.copyErr
	}
	var n int64
	for src.Next() {
		vals, err := src.Values()
		if err != nil {
			return n, err
		}
		f.copied = append(f.copied, vals)
		n++
	}
	return n, nil
}

func violations(n int) []*model.Violation {
	out := make([]*model.Violation, n)
	for i := range out {
		out[i] = &model.Violation{
			StudentID:    uuid.New(),
			ExamCategory: "hiragana-basic",
			Kind:         "blur",
			Reason:       "Window lost focus",
			RecordedAt:   time.Date(2025, 1, 1, 10, 0, i, 0, time.UTC),
		}
	}
	return out
}

func TestViolationWorkerBulkCopy(t *testing.T) {
	_, rdb := newRedis(t)
	db := &fakeDB{}
	w := NewViolationWorker(db, rdb, zerolog.Nop())

	w.flushSafe(context.Background(), violations(3))

	if len(db.copied) != 3 {
		t.Fatalf("copied %d rows, want 3", len(db.copied))
	}
	if len(db.execs) != 0 {
		t.Errorf("fallback used after successful copy")
	}
}

func TestViolationWorkerFallbackAndRequeue(t *testing.T) {
	_, rdb := newRedis(t)
	batch := violations(3)
	deleted := batch[1].StudentID
	down := batch[2].StudentID

	db := &fakeDB{
		copyErr: errors.New("copy failed"),
		execErr: func(_ string, args []any) error {
			switch args[0] {
			case deleted:
				return &pgconn.PgError{Code: "23503"}
			case down:
				return errors.New("connection reset")
			}
			return nil
		},
	}
	w := NewViolationWorker(db, rdb, zerolog.Nop())
	w.retry = 0

	w.flushSafe(context.Background(), batch)

	if len(db.execs) != 1 {
		t.Errorf("inserted %d rows individually, want 1", len(db.execs))
	}
	queued, err := rdb.LRange(context.Background(), config.WorkerKey.PersistViolationsQueue, 0, -1).Result()
	if err != nil {
		t.Fatal(err)
	}
	if len(queued) != 1 {
		t.Fatalf("requeued %d items, want 1", len(queued))
	}
	var v model.Violation
	if err := json.Unmarshal([]byte(queued[0]), &v); err != nil || v.StudentID != down {
		t.Errorf("requeued %+v (%v)", v, err)
	}
}

func TestAggregateFoldsPerCategory(t *testing.T) {
	order, deltas := aggregate([]*ResultEvent{
		{ExamCategory: "kanji-basic", Percentage: 75, Passed: true},
		{ExamCategory: "hiragana-basic", Percentage: 40},
		{ExamCategory: "kanji-basic", Percentage: 50},
	})

	if strings.Join(order, ",") != "kanji-basic,hiragana-basic" {
		t.Fatalf("order = %v", order)
	}
	k := deltas["kanji-basic"]
	if k.attempts != 2 || k.percentage != 125 || k.passes != 1 {
		t.Errorf("kanji delta = %+v", *k)
	}
	h := deltas["hiragana-basic"]
	if h.attempts != 1 || h.percentage != 40 || h.passes != 0 {
		t.Errorf("hiragana delta = %+v", *h)
	}
}

func TestCategoryStatsFallbackRequeues(t *testing.T) {
	_, rdb := newRedis(t)
	db := &fakeDB{
		execErr: func(sql string, args []any) error {
			if strings.Contains(sql, "UNNEST") {
				return errors.New("bulk failed")
			}
			if args[0] == "grammar-ch1-2" {
				return errors.New("still failing")
			}
			return nil
		},
	}
	w := NewCategoryStatsWorker(db, rdb, zerolog.Nop())

	w.flushSafe(context.Background(), []*ResultEvent{
		{ExamCategory: "kanji-basic", Percentage: 80, Passed: true},
		{ExamCategory: "grammar-ch1-2", Percentage: 20},
	})

	if len(db.execs) != 1 {
		t.Fatalf("single upserts = %d, want 1", len(db.execs))
	}
	if db.execArgs[0][2] != 1 {
		t.Errorf("passes arg = %v, want 1", db.execArgs[0][2])
	}
	if n, _ := rdb.LLen(context.Background(), config.WorkerKey.PersistResultsQueue).Result(); n != 1 {
		t.Errorf("requeued %d events, want 1", n)
	}
}
