package queue

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/hirelens/hirelens/internal/utils"
)

// Queue names for the three screening stages.
const (
	QueueCVProcessing = "screening:cv-processing"
	QueueSimilarity   = "screening:similarity"
	QueueSummary      = "screening:summary-generation"
)

// HighPriorityThreshold routes jobs above it onto the priority stream.
const HighPriorityThreshold = 5

// Job is one unit of screening work. It travels between stages by being
// re-enqueued on the next stage's queue with the same identifiers.
type Job struct {
	ID            string `json:"id"`
	ApplicationID uint   `json:"application_id"`
	JobPostingID  uint   `json:"job_posting_id"`
	ScreeningID   uint   `json:"screening_id"`
	Priority      int    `json:"priority"`
	Force         bool   `json:"force"`
	Attempt       int    `json:"attempt"`
	ResumePath    string `json:"resume_path"`
	EnqueuedAtMs  int64  `json:"enqueued_at_ms"`
}

// Handler processes one job. A transient error (see utils.IsTransient)
// triggers a delayed re-enqueue; anything else goes to the failure handler.
type Handler func(ctx context.Context, job Job) error

// FailureHandler is invoked once per job after retries are exhausted or the
// error is permanent.
type FailureHandler func(ctx context.Context, job Job, err error)

type Config struct {
	Name        string
	Concurrency int
	MaxAttempts int           // total attempts including the first
	BaseBackoff time.Duration // doubled per retry
}

// Stats is a point-in-time snapshot of one queue's depth.
type Stats struct {
	Name        string `json:"name"`
	Concurrency int    `json:"concurrency"`
	PendingHigh int64  `json:"pending_high"`
	PendingNorm int64  `json:"pending_normal"`
	InFlight    int64  `json:"in_flight"`
	MaxAttempts int    `json:"max_attempts"`
}

// Queue is a Redis Streams consumer-group worker pool with a two-tier
// priority scheme: the high stream is always listed before the normal one
// in XReadGroup, so priority jobs drain first.
type Queue struct {
	rdb       *redis.Client
	cfg       Config
	handler   Handler
	onFailure FailureHandler
	log       *logrus.Entry

	highStream string
	normStream string
	group      string

	sleep func(context.Context, time.Duration)
}

func New(rdb *redis.Client, cfg Config, handler Handler, onFailure FailureHandler, log *logrus.Logger) *Queue {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.BaseBackoff <= 0 {
		cfg.BaseBackoff = 2 * time.Second
	}
	return &Queue{
		rdb:        rdb,
		cfg:        cfg,
		handler:    handler,
		onFailure:  onFailure,
		log:        log.WithField("queue", cfg.Name),
		highStream: cfg.Name + ":high",
		normStream: cfg.Name + ":norm",
		group:      cfg.Name + ":workers",
		sleep:      sleepCtx,
	}
}

func (q *Queue) Name() string { return q.cfg.Name }

// Enqueue appends the job to the stream matching its priority.
func (q *Queue) Enqueue(ctx context.Context, job Job) error {
	const op = "Queue.Enqueue"

	if job.Attempt == 0 {
		job.Attempt = 1
	}
	if job.EnqueuedAtMs == 0 {
		job.EnqueuedAtMs = time.Now().UnixMilli()
	}

	stream := q.normStream
	if job.Priority > HighPriorityThreshold {
		stream = q.highStream
	}

	err := q.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		Values: encodeJob(job),
	}).Err()
	if err != nil {
		return utils.E(utils.CodeUnavailable, op, "enqueue failed", err)
	}
	return nil
}

// Start creates the consumer group on both streams and spawns the worker
// goroutines. It returns immediately; workers stop when ctx is cancelled.
func (q *Queue) Start(ctx context.Context) {
	for _, s := range []string{q.highStream, q.normStream} {
		_ = q.rdb.XGroupCreateMkStream(ctx, s, q.group, "0").Err() // ignore BUSYGROUP
	}
	for i := 0; i < q.cfg.Concurrency; i++ {
		consumer := q.cfg.Name + "-c" + strconv.Itoa(i+1)
		go q.runConsumer(ctx, consumer)
	}
}

func (q *Queue) runConsumer(ctx context.Context, consumer string) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		res, err := q.rdb.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    q.group,
			Consumer: consumer,
			Streams:  []string{q.highStream, q.normStream, ">", ">"},
			Count:    1,
			Block:    5 * time.Second,
		}).Result()

		if err != nil {
			if err == redis.Nil {
				continue
			}
			if ctx.Err() != nil {
				return
			}
			q.sleep(ctx, 500*time.Millisecond)
			continue
		}

		for _, stream := range res {
			for _, msg := range stream.Messages {
				q.handleMsg(ctx, stream.Stream, msg)
				_ = q.rdb.XAck(ctx, stream.Stream, q.group, msg.ID).Err()
			}
		}
	}
}

func (q *Queue) handleMsg(ctx context.Context, stream string, msg redis.XMessage) {
	job, ok := decodeJob(msg)
	if !ok {
		q.log.WithField("redis_id", msg.ID).Warn("dropping malformed queue message")
		return
	}

	log := q.log.WithFields(logrus.Fields{
		"redis_id":       msg.ID,
		"job_id":         job.ID,
		"application_id": job.ApplicationID,
		"attempt":        job.Attempt,
	})

	err := q.handler(ctx, job)
	if err == nil {
		return
	}
	if ctx.Err() != nil {
		return
	}

	if utils.IsTransient(err) && job.Attempt < q.cfg.MaxAttempts {
		delay := backoffDelay(q.cfg.BaseBackoff, job.Attempt)
		log.WithError(err).WithField("retry_in", delay.String()).Warn("transient failure, re-enqueueing")

		q.sleep(ctx, delay)
		job.Attempt++
		if reErr := q.Enqueue(ctx, job); reErr != nil {
			log.WithError(reErr).Error("re-enqueue failed")
			q.fail(ctx, job, err)
		}
		return
	}

	log.WithError(err).Error("job failed permanently")
	q.fail(ctx, job, err)
}

func (q *Queue) fail(ctx context.Context, job Job, err error) {
	if q.onFailure != nil {
		q.onFailure(ctx, job, err)
	}
}

// Status reports stream depths and the unacked in-flight count.
func (q *Queue) Status(ctx context.Context) (Stats, error) {
	st := Stats{
		Name:        q.cfg.Name,
		Concurrency: q.cfg.Concurrency,
		MaxAttempts: q.cfg.MaxAttempts,
	}

	var err error
	if st.PendingHigh, err = q.rdb.XLen(ctx, q.highStream).Result(); err != nil && err != redis.Nil {
		return st, err
	}
	if st.PendingNorm, err = q.rdb.XLen(ctx, q.normStream).Result(); err != nil && err != redis.Nil {
		return st, err
	}

	for _, s := range []string{q.highStream, q.normStream} {
		p, err := q.rdb.XPending(ctx, s, q.group).Result()
		if err != nil {
			if err == redis.Nil {
				continue
			}
			// group may not exist yet
			continue
		}
		st.InFlight += p.Count
	}
	return st, nil
}

// backoffDelay doubles the base per prior attempt: base, 2x, 4x, ...
func backoffDelay(base time.Duration, attempt int) time.Duration {
	d := base
	for i := 1; i < attempt; i++ {
		d *= 2
	}
	return d
}

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

func encodeJob(j Job) map[string]interface{} {
	return map[string]interface{}{
		"id":             j.ID,
		"application_id": strconv.FormatUint(uint64(j.ApplicationID), 10),
		"job_posting_id": strconv.FormatUint(uint64(j.JobPostingID), 10),
		"screening_id":   strconv.FormatUint(uint64(j.ScreeningID), 10),
		"priority":       strconv.Itoa(j.Priority),
		"force":          strconv.FormatBool(j.Force),
		"attempt":        strconv.Itoa(j.Attempt),
		"resume_path":    j.ResumePath,
		"enqueued_at_ms": strconv.FormatInt(j.EnqueuedAtMs, 10),
	}
}

func decodeJob(msg redis.XMessage) (Job, bool) {
	getStr := func(k string) string {
		v, ok := msg.Values[k]
		if !ok || v == nil {
			return ""
		}
		s, _ := v.(string)
		return s
	}

	appID, err := strconv.ParseUint(getStr("application_id"), 10, 64)
	if err != nil || appID == 0 {
		return Job{}, false
	}
	jobPostingID, _ := strconv.ParseUint(getStr("job_posting_id"), 10, 64)
	screeningID, _ := strconv.ParseUint(getStr("screening_id"), 10, 64)
	priority, _ := strconv.Atoi(getStr("priority"))
	force, _ := strconv.ParseBool(getStr("force"))
	attempt, _ := strconv.Atoi(getStr("attempt"))
	if attempt <= 0 {
		attempt = 1
	}
	enqueuedAt, _ := strconv.ParseInt(getStr("enqueued_at_ms"), 10, 64)

	return Job{
		ID:            getStr("id"),
		ApplicationID: uint(appID),
		JobPostingID:  uint(jobPostingID),
		ScreeningID:   uint(screeningID),
		Priority:      priority,
		Force:         force,
		Attempt:       attempt,
		ResumePath:    getStr("resume_path"),
		EnqueuedAtMs:  enqueuedAt,
	}, true
}
