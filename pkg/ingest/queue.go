package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"
)

// ErrJobRunning rejects a submission while another rebuild is in flight.
var ErrJobRunning = errors.New("ingest: a job is already running")

type JobState string

const (
	StateIdle      JobState = "idle"
	StateRunning   JobState = "running"
	StateSucceeded JobState = "succeeded"
	StateFailed    JobState = "failed"
)

// JobStatus is the queryable state of the single ingestion slot.
type JobStatus struct {
	Id         string     `json:"id,omitempty"`
	State      JobState   `json:"state"`
	SourceName string     `json:"source_name,omitempty"`
	Path       string     `json:"path,omitempty"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Error      string     `json:"error,omitempty"`
	Reason     string     `json:"reason,omitempty"`
	Stats      *Stats     `json:"stats,omitempty"`
}

type jobRequest struct {
	Id         string `json:"id"`
	Path       string `json:"path"`
	SourceName string `json:"source_name"`
}

// Queue runs ingestion jobs one at a time off a watermill channel. The
// single consumer goroutine is the concurrency limit.
type Queue struct {
	pubSub   *gochannel.GoChannel
	topic    string
	pipeline *Pipeline

	mu     sync.Mutex
	status JobStatus
}

func NewQueue(pubSub *gochannel.GoChannel, topic string, pipeline *Pipeline) *Queue {
	return &Queue{
		pubSub:   pubSub,
		topic:    topic,
		pipeline: pipeline,
		status:   JobStatus{State: StateIdle},
	}
}

// Submit enqueues a rebuild. Returns ErrJobRunning while one is in flight.
func (q *Queue) Submit(path, sourceName string) (string, error) {
	q.mu.Lock()
	if q.status.State == StateRunning {
		q.mu.Unlock()
		return "", ErrJobRunning
	}
	id := uuid.New().String()
	now := time.Now()
	q.status = JobStatus{
		Id:         id,
		State:      StateRunning,
		SourceName: sourceName,
		Path:       path,
		StartedAt:  &now,
	}
	q.mu.Unlock()

	payload, err := json.Marshal(jobRequest{Id: id, Path: path, SourceName: sourceName})
	if err != nil {
		q.fail(id, err, "")
		return "", err
	}
	if err := q.pubSub.Publish(q.topic, message.NewMessage(id, payload)); err != nil {
		q.fail(id, err, "")
		return "", err
	}
	return id, nil
}

// Status returns a copy of the current slot state.
func (q *Queue) Status() JobStatus {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.status
}

// Consume starts the single worker goroutine.
func (q *Queue) Consume(ctx context.Context) error {
	messages, err := q.pubSub.Subscribe(ctx, q.topic)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			q.processMessage(ctx, msg)
		}
	}()

	return nil
}

func (q *Queue) processMessage(ctx context.Context, msg *message.Message) {
	defer msg.Ack()

	var req jobRequest
	if err := json.Unmarshal(msg.Payload, &req); err != nil {
		log.Printf("[ERROR] Failed to unmarshal ingest job: %v", err)
		return
	}

	defer func() {
		if r := recover(); r != nil {
			log.Printf("[ERROR] Ingest job %s panicked: %v", req.Id, r)
			q.fail(req.Id, errors.New("internal failure"), ReasonExtractionFailed)
		}
	}()

	log.Printf("[INFO] Ingest job %s started (source: %s)", req.Id, req.SourceName)
	stats, err := q.pipeline.IngestPath(ctx, req.Path, req.SourceName)
	if err != nil {
		log.Printf("[ERROR] Ingest job %s failed: %v", req.Id, err)
		q.fail(req.Id, err, ReasonOf(err))
		return
	}

	q.mu.Lock()
	if q.status.Id == req.Id {
		now := time.Now()
		q.status.State = StateSucceeded
		q.status.FinishedAt = &now
		q.status.Stats = stats
	}
	q.mu.Unlock()
	log.Printf("[INFO] Ingest job %s succeeded: %d chunks", req.Id, stats.Chunks)
}

func (q *Queue) fail(id string, err error, reason string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.status.Id != id {
		return
	}
	now := time.Now()
	q.status.State = StateFailed
	q.status.FinishedAt = &now
	q.status.Error = err.Error()
	q.status.Reason = reason
}
