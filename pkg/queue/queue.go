package queue

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kirki-ai/kirki-backend/pkg/config"
	"github.com/kirki-ai/kirki-backend/pkg/enums"
	pkgerrors "github.com/kirki-ai/kirki-backend/pkg/errors"
	"github.com/kirki-ai/kirki-backend/pkg/logger"
	"github.com/kirki-ai/kirki-backend/pkg/metrics"
	"github.com/kirki-ai/kirki-backend/pkg/redis"
)

// Mode describes how a dispatched job was executed.
type Mode string

const (
	// ModeQueued means the job was placed on the broker for a worker.
	ModeQueued Mode = "queued"
	// ModeInline means the broker was unreachable and the job ran
	// synchronously in the calling process.
	ModeInline Mode = "inline"
)

const queueName = "pipeline"

// Job is the unit of work passed from the API to the pipeline worker. The
// payload carries references, not media bytes; the worker re-fetches content
// from object storage.
type Job struct {
	ID          string    `json:"id"`
	RecordingID int64     `json:"recording_id"`
	StorageKey  string    `json:"storage_key"`
	ContentType string    `json:"content_type"`
	Filename    string    `json:"filename"`
	EnqueuedAt  time.Time `json:"enqueued_at"`
}

// Handle identifies a dispatched job and how it ran.
type Handle struct {
	JobID string
	Mode  Mode
}

// Status is a point-in-time view of a job's lifecycle.
type Status struct {
	JobID       string
	RecordingID int64
	State       enums.JobStatus
	Error       string
	EnqueuedAt  time.Time
	UpdatedAt   time.Time
}

// Runner executes a job's pipeline. The worker provides the real
// implementation; the dispatcher only needs it for inline fallback.
type Runner interface {
	Run(ctx context.Context, job Job) error
}

type broker interface {
	Ping(ctx context.Context) error
	LPush(ctx context.Context, key string, value any) error
	BRPop(ctx context.Context, timeout time.Duration, keys ...string) ([]string, error)
	HSet(ctx context.Context, key string, values ...any) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	Expire(ctx context.Context, key string, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
}

// Dispatcher enqueues pipeline jobs on Redis and tracks their status. When
// the broker is unreachable at enqueue time it degrades to running the job
// synchronously so an upload never fails for a queue outage.
type Dispatcher struct {
	broker      broker
	runner      Runner
	cfg         config.QueueConfig
	logg        *logger.Logger
	metrics     *metrics.PipelineMetrics
	forceInline bool

	mu     sync.RWMutex
	inline map[string]Status
}

// NewDispatcher builds a Dispatcher. The runner may be nil when the caller
// never needs inline fallback (the worker's own dispatcher, for instance).
func NewDispatcher(broker broker, runner Runner, cfg config.QueueConfig, logg *logger.Logger) (*Dispatcher, error) {
	if broker == nil {
		return nil, errors.New("queue: broker is required")
	}
	if logg == nil {
		return nil, errors.New("queue: logger is required")
	}
	return &Dispatcher{
		broker: broker,
		runner: runner,
		cfg:    cfg,
		logg:   logg,
		inline: make(map[string]Status),
	}, nil
}

// SetRunner installs the inline-fallback runner after construction. The
// runner usually depends on services that themselves enqueue through this
// dispatcher, so it cannot always be supplied up front.
func (d *Dispatcher) SetRunner(runner Runner) {
	d.runner = runner
}

// SetMetrics installs the pipeline metrics collector. A nil collector is
// valid and disables recording.
func (d *Dispatcher) SetMetrics(pm *metrics.PipelineMetrics) {
	d.metrics = pm
}

// ForceInline bypasses the broker entirely so every job runs synchronously.
// Local runs and tests use this to work without redis.
func (d *Dispatcher) ForceInline(on bool) {
	d.forceInline = on
}

// Enqueue places a job on the queue. If the broker cannot accept it and a
// runner is configured, the job runs inline and the returned handle reports
// ModeInline with a terminal status already recorded.
func (d *Dispatcher) Enqueue(ctx context.Context, job Job) (*Handle, error) {
	if job.RecordingID <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "job requires a recording ID")
	}
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.EnqueuedAt.IsZero() {
		job.EnqueuedAt = time.Now().UTC()
	}

	if d.forceInline && d.runner != nil {
		return d.runInline(ctx, job)
	}

	payload, err := json.Marshal(job)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "marshal job payload")
	}

	enqueueErr := d.writeStatus(ctx, job, enums.JobStatusQueued, "")
	if enqueueErr == nil {
		enqueueErr = d.broker.LPush(ctx, redis.Key("queue", queueName), payload)
	}
	if enqueueErr == nil {
		return &Handle{JobID: job.ID, Mode: ModeQueued}, nil
	}

	if d.runner == nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, enqueueErr, "enqueue pipeline job")
	}

	d.logg.Warn(d.logg.WithField(ctx, "error", enqueueErr.Error()), "queue unreachable, running job inline")
	d.metrics.IncInlineFallback()
	// The status hash may have been written before the push failed; a
	// stale queued record would shadow the inline result on lookup.
	if delErr := d.broker.Del(ctx, redis.Key("job", job.ID)); delErr != nil {
		d.logg.Warn(d.logg.WithField(ctx, "error", delErr.Error()), "stale job status cleanup failed")
	}
	return d.runInline(ctx, job)
}

func (d *Dispatcher) runInline(ctx context.Context, job Job) (*Handle, error) {
	now := time.Now().UTC()
	status := Status{
		JobID:       job.ID,
		RecordingID: job.RecordingID,
		State:       enums.JobStatusRunning,
		EnqueuedAt:  job.EnqueuedAt,
		UpdatedAt:   now,
	}
	d.storeInline(status)

	runErr := d.runner.Run(ctx, job)

	status.UpdatedAt = time.Now().UTC()
	if runErr != nil {
		status.State = enums.JobStatusFailed
		status.Error = runErr.Error()
	} else {
		status.State = enums.JobStatusSucceeded
	}
	d.storeInline(status)

	// The recording row carries the real failure detail; inline dispatch
	// itself succeeded, so the caller still gets a handle.
	return &Handle{JobID: job.ID, Mode: ModeInline}, nil
}

func (d *Dispatcher) storeInline(status Status) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.inline[status.JobID] = status
}

// Dequeue blocks for up to the poll interval waiting for a job. It returns
// (nil, nil) when the wait times out with no work.
func (d *Dispatcher) Dequeue(ctx context.Context) (*Job, error) {
	values, err := d.broker.BRPop(ctx, d.cfg.PollInterval, redis.Key("queue", queueName))
	if err != nil {
		if redis.IsNil(err) {
			return nil, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "dequeue pipeline job")
	}
	if len(values) < 2 {
		return nil, nil
	}

	var job Job
	if err := json.Unmarshal([]byte(values[1]), &job); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "decode job payload")
	}

	return &job, nil
}

// MarkRunning records that a worker picked the job up.
func (d *Dispatcher) MarkRunning(ctx context.Context, job Job) error {
	return d.writeStatus(ctx, job, enums.JobStatusRunning, "")
}

// MarkSucceeded records terminal success.
func (d *Dispatcher) MarkSucceeded(ctx context.Context, job Job) error {
	return d.writeStatus(ctx, job, enums.JobStatusSucceeded, "")
}

// MarkFailed records terminal failure with the error message.
func (d *Dispatcher) MarkFailed(ctx context.Context, job Job, cause error) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	return d.writeStatus(ctx, job, enums.JobStatusFailed, msg)
}

func (d *Dispatcher) writeStatus(ctx context.Context, job Job, state enums.JobStatus, errMsg string) error {
	key := redis.Key("job", job.ID)
	fields := []any{
		"job_id", job.ID,
		"recording_id", job.RecordingID,
		"state", state.String(),
		"error", errMsg,
		"enqueued_at", job.EnqueuedAt.Format(time.RFC3339Nano),
		"updated_at", time.Now().UTC().Format(time.RFC3339Nano),
	}
	if err := d.broker.HSet(ctx, key, fields...); err != nil {
		return err
	}
	return d.broker.Expire(ctx, key, d.cfg.StatusTTL)
}

// Lookup returns the current status of a job. A terminal inline result is
// authoritative: the job already ran to completion in-process, so any broker
// record left behind by a partially failed enqueue is stale.
func (d *Dispatcher) Lookup(ctx context.Context, jobID string) (*Status, error) {
	jobID = strings.TrimSpace(jobID)
	if jobID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "job ID is required")
	}

	d.mu.RLock()
	inline, hasInline := d.inline[jobID]
	d.mu.RUnlock()
	if hasInline && inline.State.IsDone() {
		return &inline, nil
	}

	fields, err := d.broker.HGetAll(ctx, redis.Key("job", jobID))
	if err != nil && !redis.IsNil(err) {
		d.logg.Warn(d.logg.WithField(ctx, "error", err.Error()), "job status lookup failed, checking inline results")
	}
	if len(fields) > 0 {
		return statusFromFields(jobID, fields)
	}

	if hasInline {
		return &inline, nil
	}

	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "job not found")
}

// JobTimeout returns the per-job execution budget.
func (d *Dispatcher) JobTimeout() time.Duration {
	return d.cfg.JobTimeout
}

func statusFromFields(jobID string, fields map[string]string) (*Status, error) {
	state, err := enums.ParseJobStatus(fields["state"])
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "parse job state")
	}

	status := &Status{
		JobID: jobID,
		State: state,
		Error: fields["error"],
	}
	if raw := fields["recording_id"]; raw != "" {
		if id, parseErr := strconv.ParseInt(raw, 10, 64); parseErr == nil {
			status.RecordingID = id
		}
	}
	if ts, parseErr := time.Parse(time.RFC3339Nano, fields["enqueued_at"]); parseErr == nil {
		status.EnqueuedAt = ts
	}
	if ts, parseErr := time.Parse(time.RFC3339Nano, fields["updated_at"]); parseErr == nil {
		status.UpdatedAt = ts
	}

	return status, nil
}
