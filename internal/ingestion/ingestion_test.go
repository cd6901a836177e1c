package ingestion

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/maxrawlins/transaction-summary-api/internal/apperror"
	"github.com/maxrawlins/transaction-summary-api/internal/domain/models"
	"github.com/maxrawlins/transaction-summary-api/internal/storage"
)

// failingStore rejects every append and counts the calls it received.
type failingStore struct {
	storage.TransactionStore
	appends atomic.Int32
}

func (f *failingStore) AppendBatch(context.Context, []models.Transaction) (int, error) {
	f.appends.Add(1)
	return 0, errors.New("disk full")
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return p
}

func newMemoryService(t *testing.T) (Service, *storage.MemoryStore) {
	t.Helper()
	store := storage.NewMemoryStore()
	t.Cleanup(func() { _ = store.Close() })
	return NewService(store), store
}

func TestIngest_OK(t *testing.T) {
	svc, store := newMemoryService(t)
	src := header +
		"1,42,9,2024-01-05T10:00:00Z,15.79\n" +
		"2,42,9,2024-06-20T10:00:00Z,496.53\n" +
		"3,7,9,2024-06-20T10:00:00Z,1\n"

	res, err := svc.Ingest(context.Background(), strings.NewReader(src))
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if res.Status != models.IngestStatusOK || res.RowsInserted != 3 {
		t.Fatalf("unexpected result %+v", res)
	}
	if n, _ := store.Count(context.Background()); n != 3 {
		t.Fatalf("store count=%d", n)
	}
}

func TestIngest_HeaderOnly(t *testing.T) {
	svc, store := newMemoryService(t)
	res, err := svc.Ingest(context.Background(), strings.NewReader(header))
	if err != nil || res.RowsInserted != 0 || res.Status != models.IngestStatusOK {
		t.Fatalf("res=%+v err=%v", res, err)
	}
	if n, _ := store.Count(context.Background()); n != 0 {
		t.Fatalf("store count=%d", n)
	}
}

func TestIngest_BadRowRejectsWholeBatch(t *testing.T) {
	svc, store := newMemoryService(t)
	src := header +
		"1,42,9,2024-01-05T10:00:00Z,15.79\n" +
		"2,42,9,2024-06-20T10:00:00Z,not-a-number\n"

	_, err := svc.Ingest(context.Background(), strings.NewReader(src))
	if apperror.KindOf(err) != apperror.KindInvalidInput {
		t.Fatalf("want invalid input, got %v", err)
	}
	if n, _ := store.Count(context.Background()); n != 0 {
		t.Fatalf("rejected batch left %d rows", n)
	}
}

func TestIngest_MissingColumnsNeverTouchStore(t *testing.T) {
	fs := &failingStore{}
	svc := NewService(fs)

	_, err := svc.Ingest(context.Background(), strings.NewReader("transaction_id,user_id\n1,2\n"))
	if got := apperror.MessageOf(err, ""); got != "Missing columns: product_id, timestamp, transaction_amount" {
		t.Fatalf("unexpected message %q", got)
	}
	if fs.appends.Load() != 0 {
		t.Fatalf("store must not be called on invalid input")
	}
}

func TestIngest_StoreFailureIsInternal(t *testing.T) {
	fs := &failingStore{}
	svc := NewService(fs)

	_, err := svc.Ingest(context.Background(), strings.NewReader(header+"1,1,9,2024-01-05,1\n"))
	if apperror.KindOf(err) != apperror.KindInternal {
		t.Fatalf("want internal, got %v", err)
	}
	if !strings.Contains(err.Error(), "disk full") {
		t.Fatalf("cause not wrapped: %v", err)
	}
	if fs.appends.Load() != 1 {
		t.Fatalf("want exactly one append, got %d", fs.appends.Load())
	}
}

func TestIngest_CanceledContext(t *testing.T) {
	fs := &failingStore{}
	svc := NewService(fs)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.Ingest(ctx, strings.NewReader(header+"1,1,9,2024-01-05,1\n"))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("want context.Canceled, got %v", err)
	}
	if apperror.KindOf(err) != apperror.KindCanceled {
		t.Fatalf("want canceled kind, got %v", apperror.KindOf(err))
	}
	if fs.appends.Load() != 0 {
		t.Fatalf("canceled ingest must not append")
	}
}

func TestIngestFile(t *testing.T) {
	svc, _ := newMemoryService(t)
	dir := t.TempDir()
	p := writeFile(t, dir, "a.csv", header+"1,1,9,2024-01-05,1\n")

	res, err := svc.IngestFile(context.Background(), p)
	if err != nil || res.RowsInserted != 1 {
		t.Fatalf("res=%+v err=%v", res, err)
	}

	if _, err := svc.IngestFile(context.Background(), filepath.Join(dir, "missing.csv")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestIngestFiles(t *testing.T) {
	t.Run("all files land", func(t *testing.T) {
		svc, store := newMemoryService(t)
		dir := t.TempDir()
		var paths []string
		for i, name := range []string{"a.csv", "b.csv", "c.csv", "d.csv"} {
			body := header
			for j := 0; j <= i; j++ {
				body += "x,5,9,2024-01-05,2\n"
			}
			paths = append(paths, writeFile(t, dir, name, body))
		}

		results, err := svc.IngestFiles(context.Background(), paths, 2)
		if err != nil {
			t.Fatalf("IngestFiles: %v", err)
		}
		for i, r := range results {
			if r.Path != paths[i] || r.Result.RowsInserted != i+1 {
				t.Fatalf("result %d: %+v", i, r)
			}
		}
		if n, _ := store.Count(context.Background()); n != 10 {
			t.Fatalf("store count=%d want 10", n)
		}
	})

	t.Run("bad file is reported by name and lands nothing", func(t *testing.T) {
		svc, store := newMemoryService(t)
		dir := t.TempDir()
		bad := writeFile(t, dir, "bad.csv", header+"1,oops,9,2024-01-05,1\n")

		_, err := svc.IngestFiles(context.Background(), []string{bad}, 0)
		if err == nil || !strings.Contains(err.Error(), "bad.csv") {
			t.Fatalf("expected error naming bad.csv, got %v", err)
		}
		if apperror.KindOf(err) != apperror.KindInvalidInput {
			t.Fatalf("kind lost through wrapping: %v", err)
		}
		if n, _ := store.Count(context.Background()); n != 0 {
			t.Fatalf("store count=%d", n)
		}
	})
}
