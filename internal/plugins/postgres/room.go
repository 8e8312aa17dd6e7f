package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"chatrelay/internal/core/domain"
)

type RoomRepo struct {
	db *sql.DB
}

func NewRoomRepo(db *sql.DB) *RoomRepo {
	return &RoomRepo{db: db}
}

/*
	-- Rooms
	CREATE TABLE rooms (
		name        TEXT PRIMARY KEY,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
	);
*/

func (r *RoomRepo) Exists(ctx context.Context, name string) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx, `
		SELECT 1 FROM rooms WHERE name = $1
	`, name).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("rooms exists: %w", err)
	}
	return true, nil
}

func (r *RoomRepo) Create(ctx context.Context, name string) (domain.Room, error) {
	var room domain.Room
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO rooms (name)
		VALUES ($1)
		ON CONFLICT (name) DO NOTHING
		RETURNING name, created_at
	`, name).Scan(&room.Name, &room.CreatedAt)
	if err == sql.ErrNoRows {
		// Conflict path returns no row.
		return domain.Room{}, domain.ErrRoomExists
	}
	if err != nil {
		return domain.Room{}, fmt.Errorf("rooms create: %w", err)
	}
	return room, nil
}

func (r *RoomRepo) Ensure(ctx context.Context, name string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO rooms (name)
		VALUES ($1)
		ON CONFLICT (name) DO NOTHING
	`, name)
	if err != nil {
		return fmt.Errorf("rooms ensure: %w", err)
	}
	return nil
}

func (r *RoomRepo) List(ctx context.Context) ([]domain.Room, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT name, created_at FROM rooms ORDER BY name ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("rooms list: %w", err)
	}
	defer rows.Close()
	var rooms []domain.Room
	for rows.Next() {
		var room domain.Room
		if err := rows.Scan(&room.Name, &room.CreatedAt); err != nil {
			return nil, err
		}
		rooms = append(rooms, room)
	}
	return rooms, rows.Err()
}
