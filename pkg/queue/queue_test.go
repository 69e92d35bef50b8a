package queue

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/kirki-ai/kirki-backend/pkg/config"
	"github.com/kirki-ai/kirki-backend/pkg/enums"
	pkgerrors "github.com/kirki-ai/kirki-backend/pkg/errors"
	"github.com/kirki-ai/kirki-backend/pkg/logger"
)

type fakeBroker struct {
	lists   map[string][]string
	hashes  map[string]map[string]string
	pushErr error
	hsetErr error
	delErr  error
}

func newFakeBroker() *fakeBroker {
	return &fakeBroker{
		lists:  map[string][]string{},
		hashes: map[string]map[string]string{},
	}
}

func (f *fakeBroker) Ping(ctx context.Context) error { return nil }

func (f *fakeBroker) LPush(ctx context.Context, key string, value any) error {
	if f.pushErr != nil {
		return f.pushErr
	}
	raw, ok := value.([]byte)
	if !ok {
		return errors.New("unexpected payload type")
	}
	f.lists[key] = append([]string{string(raw)}, f.lists[key]...)
	return nil
}

func (f *fakeBroker) BRPop(ctx context.Context, timeout time.Duration, keys ...string) ([]string, error) {
	for _, key := range keys {
		values := f.lists[key]
		if len(values) == 0 {
			continue
		}
		last := values[len(values)-1]
		f.lists[key] = values[:len(values)-1]
		return []string{key, last}, nil
	}
	return nil, errors.New("redis: nil")
}

func (f *fakeBroker) HSet(ctx context.Context, key string, values ...any) error {
	if f.hsetErr != nil {
		return f.hsetErr
	}
	hash := f.hashes[key]
	if hash == nil {
		hash = map[string]string{}
		f.hashes[key] = hash
	}
	for i := 0; i+1 < len(values); i += 2 {
		k, _ := values[i].(string)
		switch v := values[i+1].(type) {
		case string:
			hash[k] = v
		case int64:
			hash[k] = jsonNumber(v)
		default:
			raw, _ := json.Marshal(v)
			hash[k] = string(raw)
		}
	}
	return nil
}

func jsonNumber(v int64) string {
	raw, _ := json.Marshal(v)
	return string(raw)
}

func (f *fakeBroker) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	return f.hashes[key], nil
}

func (f *fakeBroker) Expire(ctx context.Context, key string, ttl time.Duration) error {
	return nil
}

func (f *fakeBroker) Del(ctx context.Context, keys ...string) error {
	if f.delErr != nil {
		return f.delErr
	}
	for _, key := range keys {
		delete(f.hashes, key)
		delete(f.lists, key)
	}
	return nil
}

type countingRunner struct {
	calls int
	err   error
}

func (c *countingRunner) Run(ctx context.Context, job Job) error {
	c.calls++
	return c.err
}

func testQueueConfig() config.QueueConfig {
	return config.QueueConfig{
		JobTimeout:   30 * time.Minute,
		StatusTTL:    24 * time.Hour,
		PollInterval: time.Second,
	}
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

func TestEnqueueQueuesJob(t *testing.T) {
	broker := newFakeBroker()
	dispatcher, err := NewDispatcher(broker, nil, testQueueConfig(), testLogger())
	if err != nil {
		t.Fatalf("NewDispatcher returned error: %v", err)
	}

	handle, err := dispatcher.Enqueue(context.Background(), Job{RecordingID: 7, StorageKey: "uploads/a.mp3"})
	if err != nil {
		t.Fatalf("Enqueue returned error: %v", err)
	}
	if handle.Mode != ModeQueued {
		t.Fatalf("expected queued mode, got %s", handle.Mode)
	}

	job, err := dispatcher.Dequeue(context.Background())
	if err != nil {
		t.Fatalf("Dequeue returned error: %v", err)
	}
	if job == nil || job.RecordingID != 7 {
		t.Fatalf("unexpected dequeued job: %+v", job)
	}
}

func TestEnqueueFallsBackInline(t *testing.T) {
	broker := newFakeBroker()
	broker.hsetErr = errors.New("connection refused")
	broker.pushErr = errors.New("connection refused")

	runner := &countingRunner{}
	dispatcher, err := NewDispatcher(broker, runner, testQueueConfig(), testLogger())
	if err != nil {
		t.Fatalf("NewDispatcher returned error: %v", err)
	}

	handle, err := dispatcher.Enqueue(context.Background(), Job{RecordingID: 7})
	if err != nil {
		t.Fatalf("Enqueue returned error: %v", err)
	}
	if handle.Mode != ModeInline {
		t.Fatalf("expected inline mode, got %s", handle.Mode)
	}
	if runner.calls != 1 {
		t.Fatalf("expected the job to run once inline, got %d", runner.calls)
	}

	status, err := dispatcher.Lookup(context.Background(), handle.JobID)
	if err != nil {
		t.Fatalf("Lookup returned error: %v", err)
	}
	if status.State != enums.JobStatusSucceeded {
		t.Fatalf("expected succeeded inline status, got %s", status.State)
	}
}

func TestEnqueueInlineFailureRecorded(t *testing.T) {
	broker := newFakeBroker()
	broker.hsetErr = errors.New("connection refused")
	broker.pushErr = errors.New("connection refused")

	runner := &countingRunner{err: errors.New("transcription failed")}
	dispatcher, _ := NewDispatcher(broker, runner, testQueueConfig(), testLogger())

	handle, err := dispatcher.Enqueue(context.Background(), Job{RecordingID: 7})
	if err != nil {
		t.Fatalf("inline dispatch itself must not error: %v", err)
	}

	status, err := dispatcher.Lookup(context.Background(), handle.JobID)
	if err != nil {
		t.Fatalf("Lookup returned error: %v", err)
	}
	if status.State != enums.JobStatusFailed {
		t.Fatalf("expected failed inline status, got %s", status.State)
	}
	if status.Error == "" {
		t.Fatal("expected the run error to be recorded")
	}
}

func TestEnqueuePartialFailureClearsStaleStatus(t *testing.T) {
	broker := newFakeBroker()
	broker.pushErr = errors.New("connection reset")

	runner := &countingRunner{}
	dispatcher, _ := NewDispatcher(broker, runner, testQueueConfig(), testLogger())

	handle, err := dispatcher.Enqueue(context.Background(), Job{RecordingID: 7})
	if err != nil {
		t.Fatalf("Enqueue returned error: %v", err)
	}
	if handle.Mode != ModeInline {
		t.Fatalf("expected inline mode, got %s", handle.Mode)
	}
	if runner.calls != 1 {
		t.Fatalf("expected the job to run once inline, got %d", runner.calls)
	}
	if len(broker.hashes) != 0 {
		t.Fatalf("expected the queued status hash to be removed, got %v", broker.hashes)
	}

	status, err := dispatcher.Lookup(context.Background(), handle.JobID)
	if err != nil {
		t.Fatalf("Lookup returned error: %v", err)
	}
	if status.State != enums.JobStatusSucceeded {
		t.Fatalf("expected succeeded inline status, got %s", status.State)
	}
}

func TestLookupPrefersTerminalInlineOverStaleBrokerRecord(t *testing.T) {
	broker := newFakeBroker()
	broker.pushErr = errors.New("connection reset")
	broker.delErr = errors.New("connection reset")

	runner := &countingRunner{}
	dispatcher, _ := NewDispatcher(broker, runner, testQueueConfig(), testLogger())

	handle, err := dispatcher.Enqueue(context.Background(), Job{RecordingID: 7})
	if err != nil {
		t.Fatalf("Enqueue returned error: %v", err)
	}
	// The queued record survived because the cleanup failed too.
	if len(broker.hashes) == 0 {
		t.Fatal("expected the stale queued hash to remain in the broker")
	}

	status, err := dispatcher.Lookup(context.Background(), handle.JobID)
	if err != nil {
		t.Fatalf("Lookup returned error: %v", err)
	}
	if status.State != enums.JobStatusSucceeded {
		t.Fatalf("expected the inline result to win over the stale record, got %s", status.State)
	}
}

func TestEnqueueWithoutRunnerSurfacesError(t *testing.T) {
	broker := newFakeBroker()
	broker.hsetErr = errors.New("connection refused")

	dispatcher, _ := NewDispatcher(broker, nil, testQueueConfig(), testLogger())

	_, err := dispatcher.Enqueue(context.Background(), Job{RecordingID: 7})
	if appErr := pkgerrors.As(err); appErr == nil || appErr.Code() != pkgerrors.CodeDependency {
		t.Fatalf("expected dependency error, got %v", err)
	}
}

func TestForceInlineSkipsBroker(t *testing.T) {
	broker := newFakeBroker()
	runner := &countingRunner{}
	dispatcher, _ := NewDispatcher(broker, runner, testQueueConfig(), testLogger())
	dispatcher.ForceInline(true)

	handle, err := dispatcher.Enqueue(context.Background(), Job{RecordingID: 7})
	if err != nil {
		t.Fatalf("Enqueue returned error: %v", err)
	}
	if handle.Mode != ModeInline {
		t.Fatalf("expected inline mode, got %s", handle.Mode)
	}
	if len(broker.lists) != 0 {
		t.Fatal("broker must not see jobs in forced inline mode")
	}
}

func TestStatusRoundtripThroughBroker(t *testing.T) {
	broker := newFakeBroker()
	dispatcher, _ := NewDispatcher(broker, nil, testQueueConfig(), testLogger())

	job := Job{ID: "job-1", RecordingID: 7, EnqueuedAt: time.Now().UTC()}
	if _, err := dispatcher.Enqueue(context.Background(), job); err != nil {
		t.Fatalf("Enqueue returned error: %v", err)
	}
	if err := dispatcher.MarkRunning(context.Background(), job); err != nil {
		t.Fatalf("MarkRunning returned error: %v", err)
	}

	status, err := dispatcher.Lookup(context.Background(), "job-1")
	if err != nil {
		t.Fatalf("Lookup returned error: %v", err)
	}
	if status.State != enums.JobStatusRunning {
		t.Fatalf("expected running, got %s", status.State)
	}
	if status.RecordingID != 7 {
		t.Fatalf("expected recording id 7, got %d", status.RecordingID)
	}

	if err := dispatcher.MarkFailed(context.Background(), job, errors.New("boom")); err != nil {
		t.Fatalf("MarkFailed returned error: %v", err)
	}
	status, err = dispatcher.Lookup(context.Background(), "job-1")
	if err != nil {
		t.Fatalf("Lookup returned error: %v", err)
	}
	if status.State != enums.JobStatusFailed || status.Error != "boom" {
		t.Fatalf("unexpected terminal status: %+v", status)
	}
}

func TestLookupUnknownJob(t *testing.T) {
	dispatcher, _ := NewDispatcher(newFakeBroker(), nil, testQueueConfig(), testLogger())

	_, err := dispatcher.Lookup(context.Background(), "missing")
	if appErr := pkgerrors.As(err); appErr == nil || appErr.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not-found error, got %v", err)
	}
}
