package postgres

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

type OutboxRecord struct {
	ID        int64
	EventID   string
	Topic     string
	Key       []byte
	Payload   json.RawMessage
	CreatedAt time.Time
}

type OutboxRepo struct{ DB *pgxpool.Pool }

// FetchPending returns unsent events, oldest first.
func (r *OutboxRepo) FetchPending(ctx context.Context, limit int) ([]OutboxRecord, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT id, event_id::text, topic, key, payload, created_at
		FROM outbox WHERE sent_at IS NULL
		ORDER BY id LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []OutboxRecord
	for rows.Next() {
		var (
			rec     OutboxRecord
			payload []byte
		)
		if err := rows.Scan(&rec.ID, &rec.EventID, &rec.Topic, &rec.Key, &payload, &rec.CreatedAt); err != nil {
			return nil, err
		}
		rec.Payload = payload
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (r *OutboxRepo) MarkSent(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := r.DB.Exec(ctx, `UPDATE outbox SET sent_at = now() WHERE id = ANY($1)`, ids)
	return err
}
