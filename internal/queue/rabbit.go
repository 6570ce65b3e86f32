package queue

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/streadway/amqp"

	"github.com/unclebandit/mica-backend/internal/execution"
	"github.com/unclebandit/mica-backend/internal/metrics"
)

const (
	retryHeader    = "x-retry-count"
	maxRedelivery  = 3
	reconnectDelay = 5 * time.Second
)

// RabbitClient publishes and consumes day jobs on a durable RabbitMQ queue.
type RabbitClient struct {
	url       string
	queueName string
	log       zerolog.Logger

	mu         sync.Mutex
	connection *amqp.Connection
	channel    *amqp.Channel
}

func NewRabbitClient(url, queueName string, log zerolog.Logger) *RabbitClient {
	c := &RabbitClient{url: url, queueName: queueName, log: log.With().Str("queue", queueName).Logger()}
	if err := c.connect(); err != nil {
		c.log.Warn().Err(err).Msg("initial RabbitMQ connection failed, will retry")
	}
	return c
}

func (c *RabbitClient) connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connectLocked()
}

func (c *RabbitClient) connectLocked() error {
	if c.channel != nil {
		c.channel.Close()
	}
	if c.connection != nil && !c.connection.IsClosed() {
		c.connection.Close()
	}

	conn, err := amqp.Dial(c.url)
	if err != nil {
		return err
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return err
	}
	if _, err := ch.QueueDeclare(
		c.queueName,
		true,  // durable
		false, // auto-delete
		false, // exclusive
		false, // no-wait
		nil,
	); err != nil {
		ch.Close()
		conn.Close()
		return err
	}

	c.connection = conn
	c.channel = ch
	c.log.Info().Msg("🐇 connected to RabbitMQ")
	return nil
}

func (c *RabbitClient) ensureConnection() (*amqp.Channel, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.connection == nil || c.connection.IsClosed() || c.channel == nil {
		c.log.Info().Msg("RabbitMQ connection closed, reconnecting")
		if err := c.connectLocked(); err != nil {
			return nil, err
		}
	}
	return c.channel, nil
}

func (c *RabbitClient) reset() {
	c.mu.Lock()
	c.channel = nil
	c.mu.Unlock()
}

// PublishDayJob implements execution.JobPublisher.
func (c *RabbitClient) PublishDayJob(_ context.Context, job execution.DayJob) error {
	body, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return c.publish(body, 0)
}

func (c *RabbitClient) publish(body []byte, retries int32) error {
	ch, err := c.ensureConnection()
	if err != nil {
		metrics.RecordQueueMessage("published", c.queueName, false)
		return err
	}

	err = ch.Publish(
		"",          // exchange
		c.queueName, // routing key
		false,       // mandatory
		false,       // immediate
		amqp.Publishing{
			DeliveryMode: amqp.Persistent,
			ContentType:  "application/json",
			Body:         body,
			Headers:      amqp.Table{retryHeader: retries},
		},
	)
	if err != nil {
		c.reset()
		metrics.RecordQueueMessage("published", c.queueName, false)
		return err
	}
	metrics.RecordQueueMessage("published", c.queueName, true)
	return nil
}

// Consume delivers day jobs to handle until ctx is done, reconnecting when
// the channel drops. A failed job is republished with its retry count
// bumped, up to maxRedelivery times, then dropped.
func (c *RabbitClient) Consume(ctx context.Context, handle func(context.Context, execution.DayJob) error) {
	for ctx.Err() == nil {
		ch, err := c.ensureConnection()
		if err != nil {
			c.log.Error().Err(err).Msg("RabbitMQ reconnect failed")
			if !sleep(ctx, reconnectDelay) {
				return
			}
			continue
		}

		msgs, err := ch.Consume(
			c.queueName,
			"",    // consumer tag
			false, // auto-ack
			false, // exclusive
			false, // no-local
			false, // no-wait
			nil,
		)
		if err != nil {
			c.log.Error().Err(err).Msg("failed to register consumer")
			c.reset()
			if !sleep(ctx, reconnectDelay) {
				return
			}
			continue
		}

		c.log.Info().Msg("👷 consumer registered, waiting for day jobs")
		if done := c.drain(ctx, msgs, handle); done {
			return
		}
		c.log.Warn().Msg("consumer channel closed, reconnecting")
		c.reset()
	}
}

func (c *RabbitClient) drain(ctx context.Context, msgs <-chan amqp.Delivery, handle func(context.Context, execution.DayJob) error) bool {
	for {
		select {
		case <-ctx.Done():
			return true
		case d, ok := <-msgs:
			if !ok {
				return false
			}
			c.deliver(ctx, d, handle)
		}
	}
}

func (c *RabbitClient) deliver(ctx context.Context, d amqp.Delivery, handle func(context.Context, execution.DayJob) error) {
	var job execution.DayJob
	if err := json.Unmarshal(d.Body, &job); err != nil {
		c.log.Warn().Err(err).Msg("⚠️ invalid day job")
		d.Ack(false)
		metrics.RecordQueueMessage("consumed", c.queueName, false)
		return
	}

	err := handle(ctx, job)
	if err != nil {
		retries := retryCount(d.Headers)
		c.log.Error().Err(err).Str("campaign_id", job.CampaignID).Int("day", job.Day).
			Int32("retries", retries).Msg("day job failed")
		if retries < maxRedelivery {
			if perr := c.publish(d.Body, retries+1); perr != nil {
				d.Nack(false, true)
				return
			}
		}
	}

	if ackErr := d.Ack(false); ackErr != nil {
		c.log.Error().Err(ackErr).Msg("failed to ack day job")
	}
	metrics.RecordQueueMessage("consumed", c.queueName, err == nil)
}

func retryCount(h amqp.Table) int32 {
	switch v := h[retryHeader].(type) {
	case int32:
		return v
	case int64:
		return int32(v)
	case int:
		return int32(v)
	}
	return 0
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func (c *RabbitClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.channel != nil {
		c.channel.Close()
	}
	if c.connection != nil {
		c.connection.Close()
	}
}

var _ execution.JobPublisher = (*RabbitClient)(nil)
