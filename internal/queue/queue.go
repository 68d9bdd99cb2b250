// Package queue implements the durable work-order queue on Postgres.
// Delivery is at-least-once: claimed messages become visible again after a
// visibility timeout unless acked, so workers must be idempotent.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/trafbaxter/Emergent-Video-Splitter-V2-sub000/internal/jobs"
)

const schema = `
CREATE TABLE IF NOT EXISTS work_orders (
	message_id UUID PRIMARY KEY,
	job_id TEXT NOT NULL,
	payload JSONB NOT NULL,
	attempts INTEGER NOT NULL DEFAULT 0,
	enqueued_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	visible_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	acked_at TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_work_orders_visible
	ON work_orders (visible_at) WHERE acked_at IS NULL;
`

// ErrEmpty is returned by Claim when no message is ready.
var ErrEmpty = errors.New("queue empty")

// Delivery is one claimed work order.
type Delivery struct {
	MessageID string
	Attempts  int
	Order     jobs.WorkOrder
}

// Queue is a Postgres-backed work-order queue.
type Queue struct {
	pool *pgxpool.Pool
}

// New connects to Postgres and ensures the queue schema exists.
func New(ctx context.Context, dsn string) (*Queue, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect queue database: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("create queue schema: %w", err)
	}
	return &Queue{pool: pool}, nil
}

// Publish durably enqueues a work order and returns its message id.
func (q *Queue) Publish(ctx context.Context, order jobs.WorkOrder) (string, error) {
	payload, err := json.Marshal(order)
	if err != nil {
		return "", fmt.Errorf("marshal work order: %w", err)
	}

	messageID := uuid.New().String()
	_, err = q.pool.Exec(ctx, `
		INSERT INTO work_orders (message_id, job_id, payload)
		VALUES ($1, $2, $3)
	`, messageID, order.JobID, payload)
	if err != nil {
		return "", fmt.Errorf("publish work order: %w", err)
	}
	return messageID, nil
}

// Claim atomically takes the oldest ready message and hides it for the
// visibility window. SKIP LOCKED keeps concurrent workers from claiming the
// same row; an unacked claim reappears once the window expires.
func (q *Queue) Claim(ctx context.Context, visibility time.Duration) (*Delivery, error) {
	row := q.pool.QueryRow(ctx, `
		UPDATE work_orders
		SET visible_at = now() + $1, attempts = attempts + 1
		WHERE message_id = (
			SELECT message_id FROM work_orders
			WHERE acked_at IS NULL AND visible_at <= now()
			ORDER BY enqueued_at
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING message_id, attempts, payload
	`, visibility)

	var d Delivery
	var payload []byte
	if err := row.Scan(&d.MessageID, &d.Attempts, &payload); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrEmpty
		}
		return nil, fmt.Errorf("claim work order: %w", err)
	}
	if err := json.Unmarshal(payload, &d.Order); err != nil {
		return nil, fmt.Errorf("decode work order %s: %w", d.MessageID, err)
	}
	return &d, nil
}

// Ack marks a delivery as consumed so it is never redelivered.
func (q *Queue) Ack(ctx context.Context, messageID string) error {
	_, err := q.pool.Exec(ctx,
		`UPDATE work_orders SET acked_at = now() WHERE message_id = $1`,
		messageID)
	return err
}

// Nack makes a claimed delivery immediately visible again.
func (q *Queue) Nack(ctx context.Context, messageID string) error {
	_, err := q.pool.Exec(ctx,
		`UPDATE work_orders SET visible_at = now() WHERE message_id = $1 AND acked_at IS NULL`,
		messageID)
	return err
}

// Depth returns the number of unconsumed messages.
func (q *Queue) Depth(ctx context.Context) (int, error) {
	var n int
	err := q.pool.QueryRow(ctx,
		`SELECT count(*) FROM work_orders WHERE acked_at IS NULL`).Scan(&n)
	return n, err
}

// Ping verifies the queue database is reachable.
func (q *Queue) Ping(ctx context.Context) error {
	return q.pool.Ping(ctx)
}

// Close releases the connection pool.
func (q *Queue) Close() {
	q.pool.Close()
}
