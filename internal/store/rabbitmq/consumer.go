package rabbitmq

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/cockroachdb/errors"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/suPer8Hu/readmegen/internal/generation"
	"github.com/suPer8Hu/readmegen/internal/worker"
)

// Submitter accepts tasks for execution; *worker.Pool satisfies it.
type Submitter interface {
	Submit(ctx context.Context, t worker.Task) error
}

type Consumer struct {
	conn        *amqp.Connection
	ch          *amqp.Channel
	queue       string
	concurrency int
	log         *zap.SugaredLogger
}

func NewConsumer(url, queue string, concurrency int, log *zap.SugaredLogger) (*Consumer, error) {
	conn, ch, err := dial(url, queue)
	if err != nil {
		return nil, err
	}
	// strict concurrency control: never hold more unacked deliveries than workers
	if err := ch.Qos(concurrency, 0, false); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, errors.Wrap(err, "qos")
	}
	return &Consumer{conn: conn, ch: ch, queue: queue, concurrency: concurrency, log: log}, nil
}

func (c *Consumer) Close() error {
	_ = c.ch.Close()
	return c.conn.Close()
}

// Run feeds deliveries to pool until ctx is done or the broker closes the
// channel. Each delivery is acked or nacked once its task finishes.
func (c *Consumer) Run(ctx context.Context, pool Submitter) error {
	msgs, err := c.ch.Consume(c.queue, "", false, false, false, false, nil)
	if err != nil {
		return errors.Wrap(err, "consume")
	}
	c.log.Infow("consumer started", "queue", c.queue, "concurrency", c.concurrency)

	for {
		select {
		case <-ctx.Done():
			c.log.Infow("consumer shutting down")
			return nil
		case d, ok := <-msgs:
			if !ok {
				return errors.New("delivery channel closed")
			}
			c.handle(ctx, pool, d)
		}
	}
}

func (c *Consumer) handle(ctx context.Context, pool Submitter, d amqp.Delivery) {
	jobID, err := decodeJobID(d.Body)
	if err != nil {
		c.log.Warnw("bad message", "err", err)
		_ = d.Nack(false, false)
		return
	}

	task := worker.Task{JobID: jobID, Done: func(err error) { settle(ctx, c.log, d, jobID, err) }}
	if err := pool.Submit(ctx, task); err != nil {
		_ = d.Nack(false, true)
	}
}

// Acknowledger is the part of amqp.Delivery settle needs.
type Acknowledger interface {
	Ack(multiple bool) error
	Nack(multiple, requeue bool) error
}

// settle acks finished and vanished jobs, requeues jobs interrupted by
// shutdown and dead-letters infrastructure failures.
func settle(ctx context.Context, log *zap.SugaredLogger, d Acknowledger, jobID string, err error) {
	switch {
	case err == nil, errors.Is(err, generation.ErrJobNotFound):
		if aerr := d.Ack(false); aerr != nil {
			log.Warnw("ack failed", "job_id", jobID, "err", aerr)
		}
	case ctx.Err() != nil:
		_ = d.Nack(false, true)
	default:
		log.Errorw("job dead-lettered", "job_id", jobID, "err", err)
		_ = d.Nack(false, false)
	}
}

func decodeJobID(body []byte) (string, error) {
	var m JobMessage
	if err := json.Unmarshal(body, &m); err != nil {
		return "", errors.Wrap(err, "decode job message")
	}
	id := strings.TrimSpace(m.JobID)
	if id == "" {
		return "", errors.New("job message without job_id")
	}
	return id, nil
}
