package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/unclebandit/mica-backend/internal/execution"
	"github.com/unclebandit/mica-backend/internal/metrics"
)

// DayJobTopic carries execution.DayJob payloads.
const DayJobTopic = "campaign_days"

// Queue interface
type Queue interface {
	Publish(topic string, payload any) error
	Subscribe(topic string, handler func(payload any) error) error
}

// InMemoryQueue fans each message out to the topic's subscribers and
// retries failed handlers with a linear backoff.
type InMemoryQueue struct {
	MaxRetries int
	Backoff    time.Duration

	mu       sync.Mutex
	handlers map[string][]func(payload any) error
	wg       sync.WaitGroup
	log      zerolog.Logger
}

// NewInMemoryQueue creates a new queue
func NewInMemoryQueue(log zerolog.Logger) *InMemoryQueue {
	return &InMemoryQueue{
		MaxRetries: 3,
		Backoff:    500 * time.Millisecond,
		handlers:   make(map[string][]func(payload any) error),
		log:        log,
	}
}

// JobPayload wraps a message payload with retry info
type JobPayload struct {
	Payload    any
	RetryCount int
	MaxRetries int
}

// Publish sends a message to all subscribers
func (q *InMemoryQueue) Publish(topic string, payload any) error {
	q.mu.Lock()
	handlers := q.handlers[topic]
	q.mu.Unlock()

	if len(handlers) == 0 {
		metrics.RecordQueueMessage("published", topic, false)
		return fmt.Errorf("no subscribers for topic %s", topic)
	}

	job := JobPayload{
		Payload:    payload,
		RetryCount: 0,
		MaxRetries: q.MaxRetries,
	}

	for _, handler := range handlers {
		q.wg.Add(1)
		go q.processJob(topic, handler, job)
	}
	metrics.RecordQueueMessage("published", topic, true)
	return nil
}

// processJob handles retries and errors
func (q *InMemoryQueue) processJob(topic string, handler func(payload any) error, job JobPayload) {
	defer q.wg.Done()

	for job.RetryCount <= job.MaxRetries {
		err := handler(job.Payload)
		if err == nil {
			metrics.RecordQueueMessage("consumed", topic, true)
			q.log.Debug().Str("topic", topic).Interface("payload", job.Payload).Msg("job processed")
			return // ACK
		}

		job.RetryCount++
		q.log.Warn().Err(err).Str("topic", topic).Int("attempt", job.RetryCount).
			Int("max_retries", job.MaxRetries).Msg("job failed")

		if job.RetryCount > job.MaxRetries {
			metrics.RecordQueueMessage("consumed", topic, false)
			q.log.Error().Str("topic", topic).Interface("payload", job.Payload).Msg("job permanently failed")
			return // No requeue
		}

		time.Sleep(time.Duration(job.RetryCount) * q.Backoff)
	}
}

// Subscribe adds a handler for a topic
func (q *InMemoryQueue) Subscribe(topic string, handler func(payload any) error) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.handlers[topic] = append(q.handlers[topic], handler)
	return nil
}

// Wait blocks until every in-flight job has been acked or dropped.
func (q *InMemoryQueue) Wait() {
	q.wg.Wait()
}

// DayJobs publishes day jobs onto a Queue.
type DayJobs struct {
	Queue Queue
}

func (p *DayJobs) PublishDayJob(_ context.Context, job execution.DayJob) error {
	return p.Queue.Publish(DayJobTopic, job)
}

var _ execution.JobPublisher = (*DayJobs)(nil)

// SubscribeDayJobs routes DayJobTopic messages to handle. Payloads that are
// not day jobs are dropped without retry.
func SubscribeDayJobs(ctx context.Context, q Queue, log zerolog.Logger, handle func(context.Context, execution.DayJob) error) error {
	return q.Subscribe(DayJobTopic, func(payload any) error {
		job, err := decodeDayJob(payload)
		if err != nil {
			log.Warn().Err(err).Msg("⚠️ invalid day job payload")
			return nil
		}
		log.Info().Str("campaign_id", job.CampaignID).Int("day", job.Day).Msg("📩 processing day job")
		return handle(ctx, job)
	})
}

func decodeDayJob(payload any) (execution.DayJob, error) {
	switch p := payload.(type) {
	case execution.DayJob:
		return p, nil
	case *execution.DayJob:
		return *p, nil
	case []byte:
		var job execution.DayJob
		err := json.Unmarshal(p, &job)
		return job, err
	}
	return execution.DayJob{}, fmt.Errorf("unexpected payload type %T", payload)
}
