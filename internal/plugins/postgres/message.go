package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/samber/lo"

	"chatrelay/internal/core/domain"
)

type MessageRepo struct {
	db *sql.DB
}

func NewMessageRepo(db *sql.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

/*
	-- Messages
	CREATE TABLE messages (
		id          UUID PRIMARY KEY,
		room        TEXT NOT NULL REFERENCES rooms(name),
		author      TEXT NOT NULL,
		body        TEXT NOT NULL,
		kind        TEXT NOT NULL,
		file_url    TEXT,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
	);
	CREATE INDEX messages_room_created_at_idx ON messages (room, created_at DESC);
*/

func (r *MessageRepo) Append(ctx context.Context, msg domain.Message) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO messages (
			id, room, author, body, kind, file_url, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`,
		msg.ID,
		msg.Room,
		msg.Author,
		msg.Body,
		msg.Kind,
		msg.FileURL,
		msg.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("messages append: %w", err)
	}
	return nil
}

// Recent selects the newest limit messages for the room and flips them
// to chronological order, matching what a joining client replays.
func (r *MessageRepo) Recent(ctx context.Context, room string, limit int) ([]domain.Message, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, room, author, body, kind, file_url, created_at
		FROM messages
		WHERE room = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, room, limit)
	if err != nil {
		return nil, fmt.Errorf("messages recent: %w", err)
	}
	defer rows.Close()
	var msgs []domain.Message
	for rows.Next() {
		var m domain.Message
		var fileURL sql.NullString
		if err := rows.Scan(
			&m.ID,
			&m.Room,
			&m.Author,
			&m.Body,
			&m.Kind,
			&fileURL,
			&m.CreatedAt,
		); err != nil {
			return nil, err
		}
		m.FileURL = fileURL.String
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return lo.Reverse(msgs), nil
}
