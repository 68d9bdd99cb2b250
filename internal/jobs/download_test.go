package jobs_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/trafbaxter/Emergent-Video-Splitter-V2-sub000/internal/jobs"
)

func TestResolveDownload(t *testing.T) {
	store := newFakeStore()
	blob := newFakeBlob()
	blob.setOutputs("j1", seg("j1", "segment_000.mp4", 1000))

	res := jobs.NewDownloadResolver(store, blob, 15*time.Minute)
	url, err := res.ResolveDownload(context.Background(), "j1", "segment_000.mp4")
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if !strings.Contains(url, "outputs/j1/segment_000.mp4") {
		t.Errorf("url does not reference the object: %s", url)
	}
	if !strings.Contains(url, "expires=15m0s") {
		t.Errorf("url missing bounded expiry: %s", url)
	}
}

func TestResolveDownloadExistenceBeatsStatus(t *testing.T) {
	// The record still says processing, but the file is already there.
	store := newFakeStore()
	working := queuedRecord("j1")
	working.Status = jobs.StatusProcessing
	store.put(working)

	blob := newFakeBlob()
	blob.setOutputs("j1", seg("j1", "segment_000.mp4", 1000))

	res := jobs.NewDownloadResolver(store, blob, time.Minute)
	if _, err := res.ResolveDownload(context.Background(), "j1", "segment_000.mp4"); err != nil {
		t.Errorf("existing object must be downloadable regardless of record status: %v", err)
	}
}

func TestResolveDownloadMissingFileOnCompletedJob(t *testing.T) {
	store := newFakeStore()
	done := queuedRecord("j1")
	done.Status = jobs.StatusCompleted
	done.Progress = 100
	done.Results = []jobs.OutputSegment{seg("j1", "segment_000.mp4", 1000)}
	store.put(done)

	res := jobs.NewDownloadResolver(store, newFakeBlob(), time.Minute)
	_, err := res.ResolveDownload(context.Background(), "j1", "segment_999.mp4")
	if !errors.Is(err, jobs.ErrNotFound) {
		t.Errorf("expected ErrNotFound for absent output on completed job, got %v", err)
	}
}

func TestResolveDownloadFallsBackToRecord(t *testing.T) {
	store := newFakeStore()
	done := queuedRecord("j1")
	done.Status = jobs.StatusCompleted
	done.Progress = 100
	done.Results = []jobs.OutputSegment{seg("j1", "segment_000.mp4", 1000)}
	store.put(done)

	blob := newFakeBlob()
	blob.statErr = errors.New("timeout")

	res := jobs.NewDownloadResolver(store, blob, time.Minute)
	url, err := res.ResolveDownload(context.Background(), "j1", "segment_000.mp4")
	if err != nil {
		t.Fatalf("expected fallback to completed record, got %v", err)
	}
	if !strings.Contains(url, "segment_000.mp4") {
		t.Errorf("unexpected url %s", url)
	}
}

func TestResolveDownloadUnknownJob(t *testing.T) {
	blob := newFakeBlob()
	blob.statErr = errors.New("timeout")

	res := jobs.NewDownloadResolver(newFakeStore(), blob, time.Minute)
	_, err := res.ResolveDownload(context.Background(), "ghost", "a.mp4")
	if !errors.Is(err, jobs.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
