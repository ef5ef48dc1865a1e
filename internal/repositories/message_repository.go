package repositories

import (
	"context"

	"github.com/jmoiron/sqlx"

	"chatroom-service/internal/models"
)

// DefaultMessagePageSize caps a single listing page.
const DefaultMessagePageSize = 10

// MessageRepository abstracts chat message persistence.
type MessageRepository interface {
	Insert(ctx context.Context, msg models.ChatMessage) error
	ListByRoom(ctx context.Context, roomID string, skip, limit int) ([]models.ChatMessage, error)
	DeleteByRoom(ctx context.Context, roomID string) (int64, error)
}

// MessageRepo is a sqlx implementation of MessageRepository.
type MessageRepo struct {
	db *sqlx.DB
}

// NewMessageRepo constructs a MessageRepo.
func NewMessageRepo(db *sqlx.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

// Insert writes a single message. The id is assigned upstream by the
// messaging pipeline, so a redelivered event cannot duplicate the row.
func (r *MessageRepo) Insert(ctx context.Context, msg models.ChatMessage) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO messages (id, room_id, sender_id, sender_name, content, created_at)
         VALUES ($1, $2, $3, $4, $5, $6) ON CONFLICT (id) DO NOTHING`,
		msg.ID, msg.RoomID, msg.SenderID, msg.SenderName, msg.Content, msg.CreatedAt)
	return err
}

// ListByRoom returns messages newest first, honoring skip/limit pagination.
// Requests beyond the available range yield an empty slice, not an error.
func (r *MessageRepo) ListByRoom(ctx context.Context, roomID string, skip, limit int) ([]models.ChatMessage, error) {
	if limit <= 0 || limit > DefaultMessagePageSize {
		limit = DefaultMessagePageSize
	}
	if skip < 0 {
		skip = 0
	}
	msgs := []models.ChatMessage{}
	err := r.db.SelectContext(ctx, &msgs,
		`SELECT id, room_id, sender_id, sender_name, content, created_at
         FROM messages WHERE room_id=$1 ORDER BY created_at DESC, id DESC OFFSET $2 LIMIT $3`,
		roomID, skip, limit)
	return msgs, err
}

// DeleteByRoom removes every message referencing the room.
func (r *MessageRepo) DeleteByRoom(ctx context.Context, roomID string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM messages WHERE room_id=$1`, roomID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
