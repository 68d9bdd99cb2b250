package jobs_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/trafbaxter/Emergent-Video-Splitter-V2-sub000/internal/jobs"
)

// fakeStore is an in-memory RecordStore honoring the same monotonicity and
// sticky-terminal guards as the SQLite implementation.
type fakeStore struct {
	mu    sync.Mutex
	recs  map[string]*jobs.JobRecord
	seq   *[]string // shared call sequence, optional
	fail  bool      // all calls error when set
	calls map[string]int
}

func newFakeStore() *fakeStore {
	return &fakeStore{recs: make(map[string]*jobs.JobRecord), calls: make(map[string]int)}
}

func (f *fakeStore) log(op string) {
	f.calls[op]++
	if f.seq != nil {
		*f.seq = append(*f.seq, "store."+op)
	}
}

func clone(rec *jobs.JobRecord) *jobs.JobRecord {
	cp := *rec
	cp.Results = append([]jobs.OutputSegment(nil), rec.Results...)
	return &cp
}

func (f *fakeStore) Create(ctx context.Context, rec *jobs.JobRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.log("create")
	if f.fail {
		return errors.New("store down")
	}
	if _, ok := f.recs[rec.JobID]; ok {
		return fmt.Errorf("duplicate job %s", rec.JobID)
	}
	f.recs[rec.JobID] = clone(rec)
	return nil
}

func (f *fakeStore) Get(ctx context.Context, jobID string) (*jobs.JobRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.log("get")
	if f.fail {
		return nil, errors.New("store down")
	}
	rec, ok := f.recs[jobID]
	if !ok {
		return nil, fmt.Errorf("%w: job %s", jobs.ErrNotFound, jobID)
	}
	return clone(rec), nil
}

func (f *fakeStore) SetQueueMessageID(ctx context.Context, jobID, messageID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.log("setMessageID")
	if f.fail {
		return errors.New("store down")
	}
	if rec, ok := f.recs[jobID]; ok {
		rec.QueueMessageID = messageID
	}
	return nil
}

func (f *fakeStore) AdvanceProgress(ctx context.Context, jobID string, progress int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.log("advance")
	if f.fail {
		return 0, errors.New("store down")
	}
	rec, ok := f.recs[jobID]
	if !ok {
		return 0, fmt.Errorf("%w: job %s", jobs.ErrNotFound, jobID)
	}
	if !rec.Status.IsTerminal() && progress > rec.Progress {
		rec.Progress = progress
	}
	return rec.Progress, nil
}

func (f *fakeStore) MarkProcessing(ctx context.Context, jobID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.log("markProcessing")
	if f.fail {
		return errors.New("store down")
	}
	if rec, ok := f.recs[jobID]; ok && rec.Status == jobs.StatusQueued {
		rec.Status = jobs.StatusProcessing
	}
	return nil
}

func (f *fakeStore) MarkCompleted(ctx context.Context, jobID string, results []jobs.OutputSegment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.log("markCompleted")
	if f.fail {
		return errors.New("store down")
	}
	rec, ok := f.recs[jobID]
	if !ok {
		return fmt.Errorf("%w: job %s", jobs.ErrNotFound, jobID)
	}
	if rec.Status.IsTerminal() {
		return nil
	}
	rec.Status = jobs.StatusCompleted
	rec.Progress = 100
	rec.Results = append([]jobs.OutputSegment(nil), results...)
	rec.CompletedAt = time.Now().UTC()
	return nil
}

func (f *fakeStore) MarkFailed(ctx context.Context, jobID string, errorMessage string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.log("markFailed")
	if f.fail {
		return errors.New("store down")
	}
	rec, ok := f.recs[jobID]
	if !ok {
		return fmt.Errorf("%w: job %s", jobs.ErrNotFound, jobID)
	}
	if rec.Status.IsTerminal() {
		return nil
	}
	rec.Status = jobs.StatusFailed
	rec.ErrorMessage = errorMessage
	rec.FailedAt = time.Now().UTC()
	return nil
}

func (f *fakeStore) Close() error { return nil }

// put seeds a record directly, bypassing guards.
func (f *fakeStore) put(rec *jobs.JobRecord) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recs[rec.JobID] = clone(rec)
}

func (f *fakeStore) get(jobID string) *jobs.JobRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	return clone(f.recs[jobID])
}

// fakeBlob is a scriptable BlobStore.
type fakeBlob struct {
	mu        sync.Mutex
	sources   map[string]string // upload id -> resolved key
	outputs   map[string][]jobs.OutputSegment
	listErr   error
	statErr   error
	seq       *[]string
	listCalls int
	lastMax   int
}

func newFakeBlob() *fakeBlob {
	return &fakeBlob{
		sources: make(map[string]string),
		outputs: make(map[string][]jobs.OutputSegment),
	}
}

func (f *fakeBlob) log(op string) {
	if f.seq != nil {
		*f.seq = append(*f.seq, "blob."+op)
	}
}

func (f *fakeBlob) ResolveSource(ctx context.Context, id string) (jobs.SourceObject, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.log("resolve")
	key, ok := f.sources[id]
	if !ok {
		return jobs.SourceObject{}, fmt.Errorf("%w: source for %s", jobs.ErrNotFound, id)
	}
	return jobs.SourceObject{Bucket: "media", Key: key}, nil
}

func (f *fakeBlob) ListOutputs(ctx context.Context, jobID string, max int) ([]jobs.OutputSegment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.log("list")
	f.listCalls++
	f.lastMax = max
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]jobs.OutputSegment(nil), f.outputs[jobID]...), nil
}

func (f *fakeBlob) StatOutput(ctx context.Context, jobID, filename string) (jobs.OutputSegment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.log("stat")
	if f.statErr != nil {
		return jobs.OutputSegment{}, f.statErr
	}
	for _, seg := range f.outputs[jobID] {
		if seg.Filename == filename {
			return seg, nil
		}
	}
	return jobs.OutputSegment{}, fmt.Errorf("%w: output %s", jobs.ErrNotFound, filename)
}

func (f *fakeBlob) PresignDownload(ctx context.Context, storageKey string, expiry time.Duration) (string, error) {
	f.log("presign")
	return fmt.Sprintf("https://blobs.test/%s?expires=%s", storageKey, expiry), nil
}

func (f *fakeBlob) setOutputs(jobID string, segs ...jobs.OutputSegment) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.outputs[jobID] = segs
}

// fakeQueue is a scriptable QueueClient.
type fakeQueue struct {
	mu         sync.Mutex
	published  []jobs.WorkOrder
	publishErr error
	seq        *[]string
}

func (f *fakeQueue) Publish(ctx context.Context, order jobs.WorkOrder) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.seq != nil {
		*f.seq = append(*f.seq, "queue.publish")
	}
	if f.publishErr != nil {
		return "", f.publishErr
	}
	f.published = append(f.published, order)
	return fmt.Sprintf("msg-%d", len(f.published)), nil
}

func seg(jobID, filename string, size int64) jobs.OutputSegment {
	return jobs.OutputSegment{
		Filename:   filename,
		SizeBytes:  size,
		StorageKey: "outputs/" + jobID + "/" + filename,
	}
}
