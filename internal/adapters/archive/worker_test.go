package archive

import (
	"context"
	"encoding/json"
	"io"
	"strings"
	"testing"
	"time"

	"movercore/internal/blob"
	"movercore/internal/infra/persistence/memory"
	"movercore/pkg/domain"
)

func waitForExport(t *testing.T, w *Worker, id string) Record {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		record, ok := w.GetExport(id)
		if !ok {
			t.Fatalf("export %s vanished", id)
		}
		switch record.Status {
		case StatusSucceeded, StatusFailed:
			return record
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("export %s did not finish", id)
	return Record{}
}

func seedTransitions(t *testing.T, store *memory.Store) {
	t.Helper()
	ctx := context.Background()
	if _, err := store.Append(ctx, "m1", domain.ActionLoading, []string{"i1", "i2"}); err != nil {
		t.Fatalf("append: %v", err)
	}
	if _, err := store.Append(ctx, "m1", domain.ActionOnMission, []string{"i1", "i2"}); err != nil {
		t.Fatalf("append: %v", err)
	}
	if _, err := store.Append(ctx, "m2", domain.ActionLoading, []string{"i3"}); err != nil {
		t.Fatalf("append: %v", err)
	}
}

func TestWorkerExportsAllTransitions(t *testing.T) {
	store := memory.NewStore()
	seedTransitions(t, store)
	blobs := blob.NewMemory()
	worker := NewWorker(store, blobs)
	worker.Start()
	defer func() { _ = worker.Stop(context.Background()) }()

	queued, err := worker.EnqueueExport(context.Background(), Input{Formats: []Format{FormatJSON, FormatCSV}})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if queued.Status != StatusQueued {
		t.Fatalf("expected queued status, got %s", queued.Status)
	}

	record := waitForExport(t, worker, queued.ID)
	if record.Status != StatusSucceeded {
		t.Fatalf("export failed: %s", record.Error)
	}
	if len(record.Artifacts) != 2 {
		t.Fatalf("expected 2 artifacts, got %+v", record.Artifacts)
	}

	for _, artifact := range record.Artifacts {
		_, rc, err := blobs.Get(context.Background(), artifact.Key)
		if err != nil {
			t.Fatalf("artifact %s missing from blob store: %v", artifact.Key, err)
		}
		payload, _ := io.ReadAll(rc)
		_ = rc.Close()
		switch artifact.Format {
		case FormatJSON:
			var decoded []domain.TransitionRecord
			if err := json.Unmarshal(payload, &decoded); err != nil {
				t.Fatalf("decode json artifact: %v", err)
			}
			if len(decoded) != 3 {
				t.Fatalf("expected 3 records in json artifact, got %d", len(decoded))
			}
		case FormatCSV:
			lines := strings.Split(strings.TrimSpace(string(payload)), "\n")
			if len(lines) != 4 {
				t.Fatalf("expected header plus 3 rows, got %d lines", len(lines))
			}
			if !strings.HasPrefix(lines[0], "id,mover_id,action") {
				t.Fatalf("unexpected csv header %q", lines[0])
			}
		}
	}
}

func TestWorkerFiltersByMover(t *testing.T) {
	store := memory.NewStore()
	seedTransitions(t, store)
	worker := NewWorker(store, blob.NewMemory())
	worker.Start()
	defer func() { _ = worker.Stop(context.Background()) }()

	queued, err := worker.EnqueueExport(context.Background(), Input{MoverID: "m2", Formats: []Format{FormatJSON}})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	record := waitForExport(t, worker, queued.ID)
	if record.Status != StatusSucceeded {
		t.Fatalf("export failed: %s", record.Error)
	}
	if record.Artifacts[0].SizeBytes == 0 {
		t.Fatalf("artifact size not recorded")
	}
}

func TestWorkerRejectsUnknownFormat(t *testing.T) {
	worker := NewWorker(memory.NewStore(), blob.NewMemory())
	if _, err := worker.EnqueueExport(context.Background(), Input{Formats: []Format{"parquet"}}); err == nil {
		t.Fatalf("expected unsupported format error")
	}
}

func TestGetExportUnknownID(t *testing.T) {
	worker := NewWorker(memory.NewStore(), blob.NewMemory())
	if _, ok := worker.GetExport("ghost"); ok {
		t.Fatalf("unknown export resolved")
	}
}

func TestWorkerStopHonorsContext(t *testing.T) {
	worker := NewWorker(memory.NewStore(), blob.NewMemory())
	worker.Start()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := worker.Stop(ctx); err != nil {
		t.Fatalf("stop: %v", err)
	}
}
