package jobs

import (
	"context"
	"errors"
	"time"

	"github.com/trafbaxter/Emergent-Video-Splitter-V2-sub000/internal/logger"
)

// DownloadResolver turns a completed job and a segment filename into a
// time-limited retrieval URL.
type DownloadResolver struct {
	store RecordStore
	blob  BlobStore
	ttl   time.Duration
}

// NewDownloadResolver creates a DownloadResolver. ttl bounds how long the
// returned URLs stay valid.
func NewDownloadResolver(store RecordStore, blob BlobStore, ttl time.Duration) *DownloadResolver {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &DownloadResolver{store: store, blob: blob, ttl: ttl}
}

// ResolveDownload returns a presigned URL for one output segment. Object
// existence in the output prefix is authoritative: a file that is there is
// downloadable even if the record has not caught up to completed yet, and a
// file that is not there is ErrNotFound even on a completed job.
func (d *DownloadResolver) ResolveDownload(ctx context.Context, jobID, filename string) (string, error) {
	seg, err := d.blob.StatOutput(ctx, jobID, filename)
	if err == nil {
		return d.presign(ctx, seg.StorageKey)
	}
	if errors.Is(err, ErrNotFound) {
		return "", notFoundError("output " + filename + " for job " + jobID)
	}

	// Stat failed transiently. A completed record naming the file is still
	// good enough to presign from.
	logger.Warn("output stat failed, consulting record", "job_id", jobID, "filename", filename, "error", err)
	rec, recErr := d.store.Get(ctx, jobID)
	if recErr != nil {
		if errors.Is(recErr, ErrNotFound) {
			return "", notFoundError("job " + jobID)
		}
		return "", storeError(recErr)
	}
	if rec.Status != StatusCompleted {
		return "", storeError(err)
	}
	for _, res := range rec.Results {
		if res.Filename == filename {
			return d.presign(ctx, res.StorageKey)
		}
	}
	return "", notFoundError("output " + filename + " for job " + jobID)
}

func (d *DownloadResolver) presign(ctx context.Context, storageKey string) (string, error) {
	url, err := d.blob.PresignDownload(ctx, storageKey, d.ttl)
	if err != nil {
		return "", storeError(err)
	}
	return url, nil
}
