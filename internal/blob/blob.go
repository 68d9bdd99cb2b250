// Package blob adapts an S3-compatible object store. It resolves source
// media under the known key conventions, lists worker outputs under the
// job-scoped prefix and presigns download URLs. The output prefix is
// written only by the worker; this package never writes objects.
package blob

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/trafbaxter/Emergent-Video-Splitter-V2-sub000/internal/config"
	"github.com/trafbaxter/Emergent-Video-Splitter-V2-sub000/internal/jobs"
)

// outputPrefix is where the worker drops split segments for a job.
const outputPrefix = "outputs/"

// recognizedExtensions are the container extensions counted as media
// outputs when reconciling job state from blob evidence.
var recognizedExtensions = map[string]bool{
	".mp4":  true,
	".mkv":  true,
	".mov":  true,
	".avi":  true,
	".webm": true,
	".m4v":  true,
	".ts":   true,
}

// Store is the S3-compatible blob store adapter.
type Store struct {
	client *minio.Client
	bucket string
}

// New connects to the configured S3-compatible endpoint.
func New(cfg config.S3Config) (*Store, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("blob store endpoint not configured")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("blob store bucket not configured")
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("connect blob store: %w", err)
	}

	return &Store{client: client, bucket: cfg.Bucket}, nil
}

// ResolveSource finds the input object for an upload id. Exact key
// candidates are checked first, then the videos/{id}/ prefix is scanned for
// its first media object.
func (s *Store) ResolveSource(ctx context.Context, id string) (jobs.SourceObject, error) {
	for _, key := range sourceKeyCandidates(id) {
		_, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{})
		if err == nil {
			return jobs.SourceObject{Bucket: s.bucket, Key: key}, nil
		}
		if !isNoSuchKey(err) {
			return jobs.SourceObject{}, fmt.Errorf("stat %s: %w", key, err)
		}
	}

	// Uploads routed through the media pipeline land under videos/{id}/.
	prefix := "videos/" + id + "/"
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if obj.Err != nil {
			return jobs.SourceObject{}, fmt.Errorf("list %s: %w", prefix, obj.Err)
		}
		if isRecognizedMedia(obj.Key) {
			return jobs.SourceObject{Bucket: s.bucket, Key: obj.Key}, nil
		}
	}

	return jobs.SourceObject{}, fmt.Errorf("%w: source for %s", jobs.ErrNotFound, id)
}

// ListOutputs returns recognized media outputs under outputs/{jobID}/,
// inspecting at most max entries so a pathological prefix cannot stall a
// status poll.
func (s *Store) ListOutputs(ctx context.Context, jobID string, max int) ([]jobs.OutputSegment, error) {
	if max <= 0 {
		max = 200
	}

	prefix := outputPrefix + jobID + "/"
	listCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var segments []jobs.OutputSegment
	inspected := 0
	for obj := range s.client.ListObjects(listCtx, s.bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("list %s: %w", prefix, obj.Err)
		}
		inspected++
		if isRecognizedMedia(obj.Key) {
			segments = append(segments, jobs.OutputSegment{
				Filename:   path.Base(obj.Key),
				SizeBytes:  obj.Size,
				StorageKey: obj.Key,
			})
		}
		if inspected >= max {
			cancel()
			break
		}
	}

	sort.Slice(segments, func(i, j int) bool { return segments[i].Filename < segments[j].Filename })
	return segments, nil
}

// StatOutput returns one named output segment, or jobs.ErrNotFound.
func (s *Store) StatOutput(ctx context.Context, jobID, filename string) (jobs.OutputSegment, error) {
	key := outputPrefix + jobID + "/" + filename
	info, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		if isNoSuchKey(err) {
			return jobs.OutputSegment{}, fmt.Errorf("%w: %s", jobs.ErrNotFound, key)
		}
		return jobs.OutputSegment{}, fmt.Errorf("stat %s: %w", key, err)
	}
	return jobs.OutputSegment{
		Filename:   filename,
		SizeBytes:  info.Size,
		StorageKey: key,
	}, nil
}

// PresignDownload produces a time-limited GET URL for a stored object.
func (s *Store) PresignDownload(ctx context.Context, storageKey string, expiry time.Duration) (string, error) {
	params := make(url.Values)
	params.Set("response-content-disposition",
		fmt.Sprintf("attachment; filename=%q", path.Base(storageKey)))

	u, err := s.client.PresignedGetObject(ctx, s.bucket, storageKey, expiry, params)
	if err != nil {
		return "", fmt.Errorf("presign %s: %w", storageKey, err)
	}
	return u.String(), nil
}

// Ping verifies the bucket is reachable.
func (s *Store) Ping(ctx context.Context) error {
	ok, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("bucket %s does not exist", s.bucket)
	}
	return nil
}

// sourceKeyCandidates lists the exact keys tried for an upload id, in
// order. The id may already be a full object key.
func sourceKeyCandidates(id string) []string {
	candidates := []string{id}
	if !strings.Contains(id, "/") {
		candidates = append(candidates, "uploads/"+id)
	}
	return candidates
}

func isRecognizedMedia(key string) bool {
	return recognizedExtensions[strings.ToLower(path.Ext(key))]
}

func isNoSuchKey(err error) bool {
	resp := minio.ToErrorResponse(err)
	return resp.Code == "NoSuchKey" || resp.Code == "NoSuchBucket" || resp.StatusCode == 404
}
